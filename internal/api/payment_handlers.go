// Package api provides HTTP handlers for the back-office payment API.
package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/merchware/backpay/internal/gateway"
	"github.com/merchware/backpay/internal/middleware"
	"github.com/merchware/backpay/internal/order"
	"github.com/merchware/backpay/internal/payment"
)

// PaymentHandlers holds dependencies for payment-related HTTP handlers.
type PaymentHandlers struct {
	orchestrator *payment.Orchestrator
	orders       order.Repository
}

// NewPaymentHandlers creates a new PaymentHandlers instance.
func NewPaymentHandlers(orchestrator *payment.Orchestrator, orders order.Repository) *PaymentHandlers {
	return &PaymentHandlers{
		orchestrator: orchestrator,
		orders:       orders,
	}
}

// CardRequest carries the raw card fields for a one-off charge.
type CardRequest struct {
	Number string `json:"number"`
	Expiry string `json:"expiry"` // MM/YY as typed into the form
	CVV    string `json:"cvv"`
}

// SubmitPaymentRequest represents the payment form payload.
type SubmitPaymentRequest struct {
	TokenID       string          `json:"token_id,omitempty"`
	Card          CardRequest     `json:"card"`
	RenderedTotal decimal.Decimal `json:"rendered_total"`
	SaveCard      bool            `json:"save_card,omitempty"`
}

// SubmitPayment takes a payment against an order on the customer's behalf.
// POST /orders/{id}/payment
func (h *PaymentHandlers) SubmitPayment(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	if r.Method != http.MethodPost {
		ctx = middleware.SetErrorCode(ctx, ErrCodeBadRequest)
		WriteError(w, ctx, http.StatusMethodNotAllowed, ErrCodeBadRequest, "Method not allowed")
		return
	}

	orderID := orderIDFromPath(r.URL.Path, "/payment")
	if orderID == "" {
		ctx = middleware.SetErrorCode(ctx, ErrCodeBadRequest)
		WriteError(w, ctx, http.StatusBadRequest, ErrCodeBadRequest, "Order ID is required")
		return
	}

	var req SubmitPaymentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		ctx = middleware.SetErrorCode(ctx, ErrCodeBadRequest)
		WriteError(w, ctx, http.StatusBadRequest, ErrCodeBadRequest, "Invalid JSON in request body")
		return
	}

	// Resolve the order at the boundary so missing and ineligible orders get
	// precise error codes before the workflow runs.
	ord, err := h.orders.GetByID(orderID)
	if err != nil {
		if errors.Is(err, order.ErrOrderNotFound) {
			ctx = middleware.SetErrorCode(ctx, ErrCodeNotFound)
			WriteError(w, ctx, http.StatusNotFound, ErrCodeNotFound, "Order not found")
			return
		}
		slog.ErrorContext(ctx, "failed to get order", "order_id", orderID, "error", err)
		ctx = middleware.SetErrorCode(ctx, ErrCodeInternal)
		WriteError(w, ctx, http.StatusInternalServerError, ErrCodeInternal, "Failed to retrieve order")
		return
	}
	if !ord.IsEligibleForPayment() {
		ctx = middleware.SetErrorCode(ctx, ErrCodeOrderIneligible)
		WriteError(w, ctx, http.StatusBadRequest, ErrCodeOrderIneligible,
			"Order status "+string(ord.Status)+" does not accept payments")
		return
	}

	intent := payment.Intent{
		OrderID: orderID,
		TokenID: req.TokenID,
		Card: gateway.Card{
			Number: req.Card.Number,
			Expiry: req.Card.Expiry,
			CVV:    req.Card.CVV,
		},
		RenderedTotal: req.RenderedTotal,
		SaveCard:      req.SaveCard,
		AdminID:       middleware.GetAdminID(ctx),
	}

	outcome := h.orchestrator.ProcessPayment(ctx, intent)
	if !outcome.Success {
		code := outcomeErrorCode(outcome.Reason)
		message := outcome.Note
		if message == "" {
			message = "Payment failed"
		}
		ctx = middleware.SetErrorCode(ctx, code)
		WriteError(w, ctx, StatusCodeMapping(code), code, message)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	if err := json.NewEncoder(w).Encode(outcome); err != nil {
		slog.ErrorContext(ctx, "failed to encode payment response", "error", err)
	}
}

// EligibilityResponse reports whether an order accepts admin payments.
type EligibilityResponse struct {
	OrderID  string `json:"order_id"`
	Status   string `json:"status"`
	Eligible bool   `json:"eligible"`
}

// PaymentEligibility reports whether the order can take an admin payment.
// GET /orders/{id}/payment-eligibility
func (h *PaymentHandlers) PaymentEligibility(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	if r.Method != http.MethodGet {
		ctx = middleware.SetErrorCode(ctx, ErrCodeBadRequest)
		WriteError(w, ctx, http.StatusMethodNotAllowed, ErrCodeBadRequest, "Method not allowed")
		return
	}

	orderID := orderIDFromPath(r.URL.Path, "/payment-eligibility")
	if orderID == "" {
		ctx = middleware.SetErrorCode(ctx, ErrCodeBadRequest)
		WriteError(w, ctx, http.StatusBadRequest, ErrCodeBadRequest, "Order ID is required")
		return
	}

	ord, err := h.orders.GetByID(orderID)
	if err != nil {
		if errors.Is(err, order.ErrOrderNotFound) {
			ctx = middleware.SetErrorCode(ctx, ErrCodeNotFound)
			WriteError(w, ctx, http.StatusNotFound, ErrCodeNotFound, "Order not found")
			return
		}
		slog.ErrorContext(ctx, "failed to get order", "order_id", orderID, "error", err)
		ctx = middleware.SetErrorCode(ctx, ErrCodeInternal)
		WriteError(w, ctx, http.StatusInternalServerError, ErrCodeInternal, "Failed to retrieve order")
		return
	}

	response := EligibilityResponse{
		OrderID:  ord.ID,
		Status:   string(ord.Status),
		Eligible: ord.IsEligibleForPayment(),
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	if err := json.NewEncoder(w).Encode(response); err != nil {
		slog.ErrorContext(ctx, "failed to encode eligibility response", "error", err)
	}
}

// PaymentMethodsResponse wraps the saved-methods list for one customer.
type PaymentMethodsResponse struct {
	Methods []payment.SavedMethod `json:"methods"`
}

// ListPaymentMethods returns the customer's saved payment methods plus the
// "new payment method" entry, ordered for rendering.
// GET /customers/{id}/payment-methods
func (h *PaymentHandlers) ListPaymentMethods(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	if r.Method != http.MethodGet {
		ctx = middleware.SetErrorCode(ctx, ErrCodeBadRequest)
		WriteError(w, ctx, http.StatusMethodNotAllowed, ErrCodeBadRequest, "Method not allowed")
		return
	}

	pathParts := strings.Split(strings.TrimPrefix(r.URL.Path, "/customers/"), "/")
	if len(pathParts) < 2 || pathParts[0] == "" || pathParts[1] != "payment-methods" {
		ctx = middleware.SetErrorCode(ctx, ErrCodeBadRequest)
		WriteError(w, ctx, http.StatusBadRequest, ErrCodeBadRequest, "Customer ID is required")
		return
	}
	customerID := pathParts[0]

	methods, err := h.orchestrator.ListSavedMethods(customerID)
	if err != nil {
		slog.ErrorContext(ctx, "failed to list payment methods", "customer_id", customerID, "error", err)
		ctx = middleware.SetErrorCode(ctx, ErrCodeInternal)
		WriteError(w, ctx, http.StatusInternalServerError, ErrCodeInternal, "Failed to list payment methods")
		return
	}

	response := PaymentMethodsResponse{Methods: methods}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	if err := json.NewEncoder(w).Encode(response); err != nil {
		slog.ErrorContext(ctx, "failed to encode payment methods response", "error", err)
	}
}

// orderIDFromPath extracts the order ID from "/orders/{id}{suffix}" paths.
// Returns empty string when the path does not match.
func orderIDFromPath(path, suffix string) string {
	trimmed := strings.TrimPrefix(path, "/orders/")
	if trimmed == path {
		return ""
	}
	id, ok := strings.CutSuffix(trimmed, suffix)
	if !ok || id == "" || strings.Contains(id, "/") {
		return ""
	}
	return id
}

// outcomeErrorCode maps a workflow outcome reason to an API error code.
func outcomeErrorCode(reason string) string {
	switch reason {
	case payment.ReasonValidation:
		return ErrCodeValidation
	case payment.ReasonOwnership:
		return ErrCodeTokenOwnership
	case payment.ReasonDeclined:
		return ErrCodeDeclined
	case payment.ReasonTransport:
		return ErrCodeGatewayError
	case payment.ReasonConflict:
		return ErrCodeConflict
	default:
		return ErrCodeInternal
	}
}
