// Package token provides models and stores for saved payment methods.
package token

import (
	"fmt"
	"strconv"
	"time"
)

// NewMethodSentinel is the token id the admin form submits when the operator
// chose "use a new payment method" instead of a saved card.
const NewMethodSentinel = "new"

// PaymentToken represents a gateway-side stored card belonging to a customer.
// Tokens are immutable once created except for deletion.
type PaymentToken struct {
	ID         string `json:"id"`
	CustomerID string `json:"customer_id"`
	GatewayID  string `json:"gateway_id"`

	// Value is the opaque gateway reference, formatted as
	// "customerProfileId|paymentProfileId" for profile-based gateways.
	Value string `json:"value"`

	CardType    string `json:"card_type"`
	Last4       string `json:"last4"`
	ExpiryMonth string `json:"expiry_month"` // MM
	ExpiryYear  string `json:"expiry_year"`  // YYYY
	Default     bool   `json:"default"`

	CreatedAt *time.Time `json:"created_at,omitempty"`
}

// DisplayName returns the label shown for the token in saved-method lists,
// e.g. "Visa ending in 4242 (expires 09/26)".
func (t *PaymentToken) DisplayName() string {
	cardType := t.CardType
	if cardType == "" {
		cardType = "Card"
	}
	expiry := ""
	if t.ExpiryMonth != "" && len(t.ExpiryYear) == 4 {
		expiry = fmt.Sprintf(" (expires %s/%s)", t.ExpiryMonth, t.ExpiryYear[2:])
	}
	return fmt.Sprintf("%s ending in %s%s", cardType, t.Last4, expiry)
}

// ExpiredAt reports whether the token's card expiry has passed as of the
// given time. A card is valid through the last day of its expiry month.
// Tokens without a parseable expiry are never considered expired.
func (t *PaymentToken) ExpiredAt(now time.Time) bool {
	if len(t.ExpiryMonth) == 0 || len(t.ExpiryYear) != 4 {
		return false
	}
	year, err := strconv.Atoi(t.ExpiryYear)
	if err != nil {
		return false
	}
	month, err := strconv.Atoi(t.ExpiryMonth)
	if err != nil || month < 1 || month > 12 {
		return false
	}
	if year != now.Year() {
		return year < now.Year()
	}
	return time.Month(month) < now.Month()
}

// ExpiryMMYY returns the token expiry in the compact MMYY form used by
// transaction records, e.g. month "09" year "2026" -> "0926".
func (t *PaymentToken) ExpiryMMYY() string {
	if t.ExpiryMonth == "" || len(t.ExpiryYear) < 2 {
		return ""
	}
	return t.ExpiryMonth + t.ExpiryYear[len(t.ExpiryYear)-2:]
}
