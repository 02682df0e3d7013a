package gateway

import (
	"context"

	"github.com/shopspring/decimal"

	"github.com/merchware/backpay/internal/order"
)

// Card carries raw card fields entered by the operator for a one-off charge.
type Card struct {
	Number string
	Expiry string // MM/YY as typed into the form
	CVV    string
}

// ChargeSource selects what the charge runs against: a stored token value or
// raw card fields. Exactly one side is set.
type ChargeSource struct {
	TokenValue string
	Card       *Card
}

// Client is the payment gateway collaborator. Implementations own the wire
// format, signing, transport, and timeouts; each call is a single blocking
// attempt with no internal retry.
type Client interface {
	// Void cancels a prior, not-yet-settled transaction on the order.
	Void(ctx context.Context, settings Settings, ord *order.Order, amount decimal.Decimal) (*Response, error)

	// Authorize reserves funds without capturing them.
	Authorize(ctx context.Context, settings Settings, ord *order.Order, amount decimal.Decimal, source ChargeSource) (*Response, error)

	// Purchase authorizes and captures in one step.
	Purchase(ctx context.Context, settings Settings, ord *order.Order, amount decimal.Decimal, source ChargeSource) (*Response, error)
}
