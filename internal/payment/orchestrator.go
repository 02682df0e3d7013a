package payment

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/merchware/backpay/internal/gateway"
	"github.com/merchware/backpay/internal/order"
	"github.com/merchware/backpay/internal/token"
)

// Outcome reasons, used for HTTP mapping and metrics labels.
const (
	ReasonApproved   = "approved"
	ReasonValidation = "validation_failed"
	ReasonOwnership  = "token_ownership"
	ReasonDeclined   = "declined"
	ReasonTransport  = "gateway_error"
	ReasonConflict   = "conflict"
	ReasonInternal   = "internal_error"
)

// Order note wording, kept stable because operators and support staff search
// for these strings in order histories.
const (
	noteVoidSuccess    = "Previous transaction ID %s voided."
	noteVoidFailure    = "Error voiding previous transaction ID %s. Response code: %s"
	noteOwnership      = "ERROR: The selected card does not belong to this customer."
	noteDeclined       = "Payment error: Please check your credit card details and try again."
	noteApproved       = "Payment %s for %s. Transaction ID: %s. AVS Response: %s. CVV2 Response: %s."
	wordAuthorized     = "authorized"
	wordCompleted      = "completed"
)

// Outcome is the structured result of a payment attempt. ProcessPayment
// always returns one; it never panics out to the caller.
type Outcome struct {
	Success       bool   `json:"success"`
	TransactionID string `json:"transaction_id,omitempty"`
	Note          string `json:"note,omitempty"`
	Reason        string `json:"reason"`
}

// Orchestrator runs the admin payment workflow against injected
// collaborators. All dependencies are provided at construction; nothing is
// resolved from ambient state.
type Orchestrator struct {
	gateway  gateway.Client
	settings gateway.Settings
	tokens   token.Store
	orders   order.Repository
	logger   *slog.Logger
	metrics  *Metrics
	tracer   trace.Tracer
}

// NewOrchestrator creates a new Orchestrator.
func NewOrchestrator(
	gw gateway.Client,
	settings gateway.Settings,
	tokens token.Store,
	orders order.Repository,
	logger *slog.Logger,
	metrics *Metrics,
) *Orchestrator {
	if logger == nil {
		logger = slog.Default()
	}
	if metrics == nil {
		metrics = NewMetrics()
	}
	return &Orchestrator{
		gateway:  gw,
		settings: settings,
		tokens:   tokens,
		orders:   orders,
		logger:   logger,
		metrics:  metrics,
		tracer:   otel.Tracer("payment"),
	}
}

// ProcessPayment executes the reconciliation workflow for one submitted
// intent: validate, void any prior transaction (best effort), charge,
// interpret, and commit order state exactly once for the outcome.
//
// The returned Outcome is the only signal to the caller; all errors are
// converted into failed outcomes.
func (o *Orchestrator) ProcessPayment(ctx context.Context, intent Intent) (out Outcome) {
	// Last-resort guard: an unexpected internal failure must still produce
	// a structured result for the admin surface.
	defer func() {
		if r := recover(); r != nil {
			o.logger.Error("payment processing panicked",
				slog.String("order_id", intent.OrderID),
				slog.Any("panic", r))
			o.metrics.RecordPayment(ReasonInternal)
			out = Outcome{Success: false, Reason: ReasonInternal}
		}
	}()

	ctx, span := o.tracer.Start(ctx, "payment.ProcessPayment",
		trace.WithAttributes(attribute.String("order.id", intent.OrderID)))
	defer span.End()

	if err := intent.Validate(); err != nil {
		o.metrics.RecordPayment(ReasonValidation)
		return Outcome{Success: false, Note: err.Error(), Reason: ReasonValidation}
	}

	ord, err := o.orders.GetByID(intent.OrderID)
	if err != nil {
		o.metrics.RecordPayment(ReasonValidation)
		return Outcome{Success: false, Note: "order not found", Reason: ReasonValidation}
	}
	if !ord.IsEligibleForPayment() {
		o.metrics.RecordPayment(ReasonValidation)
		return Outcome{
			Success: false,
			Note:    fmt.Sprintf("order status %s is not eligible for payment", ord.Status),
			Reason:  ReasonValidation,
		}
	}

	// Resolve the stored token before any gateway call. A token that belongs
	// to a different customer rejects the intent outright.
	var storedToken *token.PaymentToken
	if intent.UsesStoredToken() {
		storedToken, err = o.tokens.GetByID(intent.TokenID)
		if err != nil {
			o.metrics.RecordPayment(ReasonValidation)
			return Outcome{Success: false, Note: "selected payment method not found", Reason: ReasonValidation}
		}
		if storedToken.CustomerID != ord.CustomerID {
			o.logger.Warn("token ownership mismatch",
				slog.String("order_id", ord.ID),
				slog.String("token_id", storedToken.ID),
				slog.String("admin_id", intent.AdminID))
			ord.AddNote(noteOwnership)
			o.persistNotes(ord)
			o.metrics.RecordPayment(ReasonOwnership)
			return Outcome{Success: false, Note: noteOwnership, Reason: ReasonOwnership}
		}
	}

	// Best-effort void of the previous transaction. Uses the total captured
	// at form render, not the current total. Failure is noted and ignored;
	// the charge is the primary operation.
	if ord.Transaction != nil {
		o.voidPrevious(ctx, ord, intent)
	}

	source := gateway.ChargeSource{}
	if storedToken != nil {
		source.TokenValue = storedToken.Value
	} else {
		card := intent.Card
		source.Card = &card
	}

	resp, chargeErr := o.charge(ctx, ord, source)
	interp := Interpret(resp, chargeErr)

	switch interp.Category {
	case CategoryApproved:
		return o.commitApproved(ord, intent, storedToken, resp, interp)

	case CategoryDeclined:
		ord.AddNote(noteDeclined)
		o.persistNotes(ord)
		o.metrics.RecordPayment(ReasonDeclined)
		return Outcome{Success: false, Note: noteDeclined, Reason: ReasonDeclined}

	default: // CategoryTransportError
		ord.AddNote(interp.Err.Error())
		o.persistNotes(ord)
		o.metrics.RecordPayment(ReasonTransport)
		return Outcome{Success: false, Note: interp.Err.Error(), Reason: ReasonTransport}
	}
}

// voidPrevious issues the void for the order's recorded transaction and
// appends the audit note. It never fails the workflow.
func (o *Orchestrator) voidPrevious(ctx context.Context, ord *order.Order, intent Intent) {
	prevID := ord.Transaction.TransactionID

	ctx, span := o.tracer.Start(ctx, "gateway.Void",
		trace.WithAttributes(attribute.String("transaction.id", prevID)))
	defer span.End()

	start := time.Now()
	resp, err := o.gateway.Void(ctx, o.settings, ord, intent.RenderedTotal)
	o.metrics.ObserveGatewayDuration("void", time.Since(start).Seconds())

	if err == nil && resp != nil && resp.Transaction != nil &&
		resp.Transaction.ResponseCode == gateway.ResponseCodeApproved {
		ord.AddNote(fmt.Sprintf(noteVoidSuccess, prevID))
		o.metrics.RecordVoid("success")
		return
	}

	code := "unavailable"
	if resp != nil && resp.Transaction != nil && resp.Transaction.ResponseCode != "" {
		code = resp.Transaction.ResponseCode
	}
	if err != nil {
		o.logger.Warn("void request failed",
			slog.String("order_id", ord.ID),
			slog.String("transaction_id", prevID),
			slog.String("error", err.Error()))
	}
	ord.AddNote(fmt.Sprintf(noteVoidFailure, prevID, code))
	o.metrics.RecordVoid("failure")
}

// charge dispatches an authorize or purchase per the gateway account mode,
// always with the order's current total.
func (o *Orchestrator) charge(ctx context.Context, ord *order.Order, source gateway.ChargeSource) (*gateway.Response, error) {
	operation := "purchase"
	if o.settings.Mode == gateway.ModeAuthorize {
		operation = "authorize"
	}

	ctx, span := o.tracer.Start(ctx, "gateway."+operation,
		trace.WithAttributes(
			attribute.String("order.id", ord.ID),
			attribute.String("amount", ord.Total.StringFixed(2))))
	defer span.End()

	start := time.Now()
	var (
		resp *gateway.Response
		err  error
	)
	if o.settings.Mode == gateway.ModeAuthorize {
		resp, err = o.gateway.Authorize(ctx, o.settings, ord, ord.Total, source)
	} else {
		resp, err = o.gateway.Purchase(ctx, o.settings, ord, ord.Total, source)
	}
	o.metrics.ObserveGatewayDuration(operation, time.Since(start).Seconds())
	return resp, err
}

// commitApproved writes the approved charge to the order in a single guarded
// update, then saves the card token when requested and supported.
func (o *Orchestrator) commitApproved(
	ord *order.Order,
	intent Intent,
	storedToken *token.PaymentToken,
	resp *gateway.Response,
	interp Interpreted,
) Outcome {
	var expiry string
	if storedToken != nil {
		expiry = storedToken.ExpiryMMYY()
	} else {
		// Validate already accepted the expiry; a parse failure here means
		// the intent was mutated after validation.
		parsed, err := ParseCardExpiry(intent.Card.Expiry)
		if err != nil {
			o.logger.Error("card expiry unparsable after validation",
				slog.String("order_id", ord.ID))
		}
		expiry = parsed
	}

	txType := order.TypePurchase
	word := wordCompleted
	if o.settings.Mode == gateway.ModeAuthorize {
		txType = order.TypeAuthorize
		word = wordAuthorized
	}

	ord.Status = order.StatusProcessing
	ord.SetTransaction(order.TransactionRecord{
		TransactionID: interp.TransactionID,
		CardLast4:     interp.AccountLast4,
		CardExpiry:    expiry,
		Type:          txType,
	})

	note := fmt.Sprintf(noteApproved,
		word,
		ord.Total.StringFixed(2),
		interp.TransactionID,
		o.settings.AVSMessage(interp.AVSCode),
		o.settings.CVVMessage(interp.CVVCode))
	ord.AddNote(note)

	if err := o.orders.Update(ord); err != nil {
		if errors.Is(err, order.ErrVersionConflict) {
			// Another submission won the race. The charge went through at
			// the gateway, so surface it loudly instead of silently losing it.
			o.logger.Error("approved charge lost update race",
				slog.String("order_id", ord.ID),
				slog.String("transaction_id", interp.TransactionID))
			o.metrics.RecordPayment(ReasonConflict)
			return Outcome{
				Success:       false,
				TransactionID: interp.TransactionID,
				Note:          "order was updated concurrently; verify transaction " + interp.TransactionID + " at the gateway",
				Reason:        ReasonConflict,
			}
		}
		o.logger.Error("failed to persist approved charge",
			slog.String("order_id", ord.ID),
			slog.String("transaction_id", interp.TransactionID),
			slog.String("error", err.Error()))
		o.metrics.RecordPayment(ReasonInternal)
		return Outcome{Success: false, TransactionID: interp.TransactionID, Reason: ReasonInternal}
	}

	if intent.SaveCard && o.settings.StoredProfilesEnabled {
		if err := o.saveToken(resp, expiry, ord.CustomerID); err != nil {
			// Token persistence is a convenience; the payment already
			// succeeded, so log and move on.
			o.logger.Warn("failed to save payment token",
				slog.String("order_id", ord.ID),
				slog.String("error", err.Error()))
		}
	}

	o.metrics.RecordPayment(ReasonApproved)
	o.logger.Info("admin payment approved",
		slog.String("order_id", ord.ID),
		slog.String("transaction_id", interp.TransactionID),
		slog.String("type", string(txType)),
		slog.String("admin_id", intent.AdminID))

	return Outcome{
		Success:       true,
		TransactionID: interp.TransactionID,
		Note:          note,
		Reason:        ReasonApproved,
	}
}

// persistNotes writes accumulated audit notes without touching order status.
// Failures are logged only; notes never change the payment outcome.
func (o *Orchestrator) persistNotes(ord *order.Order) {
	if err := o.orders.Update(ord); err != nil {
		o.logger.Warn("failed to persist order notes",
			slog.String("order_id", ord.ID),
			slog.String("error", err.Error()))
	}
}
