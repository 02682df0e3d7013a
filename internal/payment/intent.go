// Package payment implements the back-office payment workflow: voiding prior
// transactions, dispatching charges, interpreting gateway responses, and
// committing order state exactly once per outcome.
package payment

import (
	"errors"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/merchware/backpay/internal/gateway"
	"github.com/merchware/backpay/internal/token"
	"github.com/merchware/backpay/internal/validate"
)

// Intent validation errors.
var (
	ErrMissingOrderID    = errors.New("order id is required")
	ErrMissingCardFields = errors.New("card number and expiry are required")
	ErrInvalidExpiry     = errors.New("card expiry must be in MM/YY format")
)

// Intent is a validated payment submission from the admin surface. It is
// built once at the HTTP boundary and passed by value into the orchestrator;
// the core never touches raw request state.
type Intent struct {
	OrderID string

	// TokenID selects a saved payment method. Empty or the "new" sentinel
	// means the raw Card fields are used instead.
	TokenID string

	// Card carries the raw card fields when no saved token is selected.
	Card gateway.Card

	// RenderedTotal is the order total captured when the payment form was
	// rendered. Voids of a prior transaction use this amount, not the
	// order's current total, so a drifting total cannot change what gets
	// reversed out from under the operator.
	RenderedTotal decimal.Decimal

	// SaveCard requests persisting the charged card as a reusable token.
	SaveCard bool

	// AdminID identifies the operator for audit logging.
	AdminID string
}

// UsesStoredToken reports whether the intent selects a saved payment method.
func (i Intent) UsesStoredToken() bool {
	return i.TokenID != "" && i.TokenID != token.NewMethodSentinel
}

// Validate checks the intent before any repository or gateway call.
func (i Intent) Validate() error {
	if i.OrderID == "" {
		return ErrMissingOrderID
	}
	if i.UsesStoredToken() {
		return nil
	}
	if i.Card.Number == "" || i.Card.Expiry == "" {
		return ErrMissingCardFields
	}
	if _, err := validate.CardNumber(i.Card.Number); err != nil {
		return err
	}
	if _, err := ParseCardExpiry(i.Card.Expiry); err != nil {
		return err
	}
	if i.Card.CVV != "" {
		if _, err := validate.CVV(i.Card.CVV); err != nil {
			return err
		}
	}
	return nil
}

// ParseCardExpiry converts a raw "MM/YY" (or "MM/YYYY") form value into the
// compact MMYY used by transaction records, e.g. "04/27" -> "0427".
func ParseCardExpiry(raw string) (string, error) {
	parts := strings.Split(raw, "/")
	if len(parts) != 2 {
		return "", ErrInvalidExpiry
	}
	month := strings.TrimSpace(parts[0])
	year := strings.TrimSpace(parts[1])
	if len(month) == 1 {
		month = "0" + month
	}
	if len(month) != 2 || len(year) < 2 {
		return "", ErrInvalidExpiry
	}
	for _, r := range month + year {
		if r < '0' || r > '9' {
			return "", ErrInvalidExpiry
		}
	}
	return fmt.Sprintf("%s%s", month, year[len(year)-2:]), nil
}
