package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/merchware/backpay/internal/order"
)

// maxResponseBytes caps how much of a gateway response body is read.
const maxResponseBytes = 1 << 20

// HTTPClient implements Client against the gateway's JSON transaction API.
// Each call is one POST with no internal retry; timeouts come from the
// request context and the transport-level ceiling below.
type HTTPClient struct {
	apiURL         string
	loginID        string
	transactionKey string
	client         *http.Client
	logger         *slog.Logger
}

// NewHTTPClient creates a gateway client for the given API endpoint and
// merchant credentials.
func NewHTTPClient(apiURL, loginID, transactionKey string, logger *slog.Logger) *HTTPClient {
	if logger == nil {
		logger = slog.Default()
	}
	return &HTTPClient{
		apiURL:         apiURL,
		loginID:        loginID,
		transactionKey: transactionKey,
		client: &http.Client{
			Timeout: 30 * time.Second,
			Transport: &http.Transport{
				MaxIdleConns:        16,
				MaxIdleConnsPerHost: 4,
				IdleConnTimeout:     30 * time.Second,
			},
		},
		logger: logger,
	}
}

// Wire types for createTransactionRequest. Field casing follows the gateway's
// JSON schema, which is camelCase with a handful of irregular names.

type merchantAuthentication struct {
	Name           string `json:"name"`
	TransactionKey string `json:"transactionKey"`
}

type creditCard struct {
	CardNumber     string `json:"cardNumber"`
	ExpirationDate string `json:"expirationDate"`
	CardCode       string `json:"cardCode,omitempty"`
}

type paymentBlock struct {
	CreditCard *creditCard `json:"creditCard,omitempty"`
}

type paymentProfileRef struct {
	PaymentProfileID string `json:"paymentProfileId"`
}

// profileRequest does double duty on the wire: charging a stored profile sets
// the IDs, while createProfile=true asks the gateway to store the charged card.
type profileRequest struct {
	CreateProfile     bool               `json:"createProfile,omitempty"`
	CustomerProfileID string             `json:"customerProfileId,omitempty"`
	PaymentProfile    *paymentProfileRef `json:"paymentProfile,omitempty"`
}

type orderRef struct {
	InvoiceNumber string `json:"invoiceNumber"`
}

type transactionRequest struct {
	TransactionType string          `json:"transactionType"`
	Amount          string          `json:"amount,omitempty"`
	Payment         *paymentBlock   `json:"payment,omitempty"`
	Profile         *profileRequest `json:"profile,omitempty"`
	RefTransID      string          `json:"refTransId,omitempty"`
	Order           *orderRef       `json:"order,omitempty"`
}

type createTransactionRequest struct {
	MerchantAuthentication merchantAuthentication `json:"merchantAuthentication"`
	RefID                  string                 `json:"refId,omitempty"`
	TransactionRequest     transactionRequest     `json:"transactionRequest"`
}

type requestEnvelope struct {
	CreateTransactionRequest createTransactionRequest `json:"createTransactionRequest"`
}

// Void cancels the order's recorded transaction.
func (c *HTTPClient) Void(ctx context.Context, settings Settings, ord *order.Order, amount decimal.Decimal) (*Response, error) {
	if ord.Transaction == nil || ord.Transaction.TransactionID == "" {
		return nil, fmt.Errorf("order %s has no transaction to void", ord.ID)
	}

	tx := transactionRequest{
		TransactionType: "voidTransaction",
		RefTransID:      ord.Transaction.TransactionID,
	}
	return c.send(ctx, ord.ID, tx)
}

// Authorize reserves funds without capturing them.
func (c *HTTPClient) Authorize(ctx context.Context, settings Settings, ord *order.Order, amount decimal.Decimal, source ChargeSource) (*Response, error) {
	tx, err := c.chargeRequest("authOnlyTransaction", settings, ord, amount, source)
	if err != nil {
		return nil, err
	}
	return c.send(ctx, ord.ID, tx)
}

// Purchase authorizes and captures in one step.
func (c *HTTPClient) Purchase(ctx context.Context, settings Settings, ord *order.Order, amount decimal.Decimal, source ChargeSource) (*Response, error) {
	tx, err := c.chargeRequest("authCaptureTransaction", settings, ord, amount, source)
	if err != nil {
		return nil, err
	}
	return c.send(ctx, ord.ID, tx)
}

// chargeRequest assembles the transaction body for a charge against either a
// stored profile or raw card fields.
func (c *HTTPClient) chargeRequest(txType string, settings Settings, ord *order.Order, amount decimal.Decimal, source ChargeSource) (transactionRequest, error) {
	tx := transactionRequest{
		TransactionType: txType,
		Amount:          amount.StringFixed(2),
		Order:           &orderRef{InvoiceNumber: ord.ID},
	}

	switch {
	case source.TokenValue != "":
		customerProfileID, paymentProfileID, ok := strings.Cut(source.TokenValue, "|")
		if !ok || customerProfileID == "" || paymentProfileID == "" {
			return transactionRequest{}, fmt.Errorf("malformed token value for order %s", ord.ID)
		}
		tx.Profile = &profileRequest{
			CustomerProfileID: customerProfileID,
			PaymentProfile:    &paymentProfileRef{PaymentProfileID: paymentProfileID},
		}

	case source.Card != nil:
		tx.Payment = &paymentBlock{
			CreditCard: &creditCard{
				CardNumber:     source.Card.Number,
				ExpirationDate: source.Card.Expiry,
				CardCode:       source.Card.CVV,
			},
		}
		if settings.StoredProfilesEnabled {
			tx.Profile = &profileRequest{CreateProfile: true}
		}

	default:
		return transactionRequest{}, fmt.Errorf("charge source is empty for order %s", ord.ID)
	}

	return tx, nil
}

// send posts the transaction request and decodes the response body.
func (c *HTTPClient) send(ctx context.Context, orderID string, tx transactionRequest) (*Response, error) {
	envelope := requestEnvelope{
		CreateTransactionRequest: createTransactionRequest{
			MerchantAuthentication: merchantAuthentication{
				Name:           c.loginID,
				TransactionKey: c.transactionKey,
			},
			RefID:              orderID,
			TransactionRequest: tx,
		},
	}

	body, err := json.Marshal(envelope)
	if err != nil {
		return nil, fmt.Errorf("failed to encode gateway request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.apiURL, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to create gateway request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	start := time.Now()
	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("gateway request failed: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, fmt.Errorf("failed to read gateway response: %w", err)
	}

	c.logger.Debug("gateway call completed",
		slog.String("order_id", orderID),
		slog.String("transaction_type", tx.TransactionType),
		slog.Int("status", resp.StatusCode),
		slog.Duration("duration", time.Since(start)))

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("gateway returned status %d", resp.StatusCode)
	}

	// The gateway prefixes responses with a UTF-8 BOM.
	raw = bytes.TrimPrefix(raw, []byte("\xef\xbb\xbf"))

	return DecodeResponse(raw)
}
