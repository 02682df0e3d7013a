// Package order provides models and repositories for back-office orders.
package order

import (
	"time"

	"github.com/shopspring/decimal"
)

// Status represents the lifecycle state of an order.
type Status string

// Order statuses. Only StatusPending and StatusOnHold accept admin payments.
const (
	StatusPending    Status = "pending"
	StatusOnHold     Status = "on-hold"
	StatusProcessing Status = "processing"
	StatusCompleted  Status = "completed"
	StatusCancelled  Status = "cancelled"
	StatusRefunded   Status = "refunded"
	StatusFailed     Status = "failed"
)

// TransactionType distinguishes an auth-only charge from an auth-and-capture charge.
type TransactionType string

const (
	TypeAuthorize TransactionType = "authorize"
	TypePurchase  TransactionType = "purchase"
)

// TransactionRecord holds the gateway transaction attached to an order after a
// successful charge. A later successful charge replaces the record wholesale;
// records are never merged.
type TransactionRecord struct {
	TransactionID string          `json:"transaction_id"`
	CardLast4     string          `json:"card_last4"`
	CardExpiry    string          `json:"card_expiry"` // MMYY
	Type          TransactionType `json:"type"`
}

// Note is a human-readable audit entry on an order.
type Note struct {
	ID        string    `json:"id"`
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"created_at"`
}

// Order represents a back-office order awaiting or holding payment.
type Order struct {
	ID          string             `json:"id"`
	CustomerID  string             `json:"customer_id"`
	Total       decimal.Decimal    `json:"total"`
	Currency    string             `json:"currency"`
	Status      Status             `json:"status"`
	Transaction *TransactionRecord `json:"transaction,omitempty"`
	Notes       []Note             `json:"notes,omitempty"`

	// Version is incremented on every successful Update and guards against
	// concurrent writes to the same order.
	Version int `json:"version"`

	CreatedAt *time.Time `json:"created_at,omitempty"`
	UpdatedAt *time.Time `json:"updated_at,omitempty"`
}

// IsEligibleForPayment reports whether an admin payment may be taken against
// the order. Orders that already moved past pending/on-hold are not chargeable
// from the back office.
func (o *Order) IsEligibleForPayment() bool {
	return o.Status == StatusPending || o.Status == StatusOnHold
}

// AddNote appends an audit note to the order. Notes are append-only.
func (o *Order) AddNote(content string) {
	o.Notes = append(o.Notes, Note{
		Content:   content,
		CreatedAt: time.Now(),
	})
}

// SetTransaction replaces the order's transaction record. Any previous record
// is discarded.
func (o *Order) SetTransaction(rec TransactionRecord) {
	o.Transaction = &rec
}
