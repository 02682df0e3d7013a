// Package order provides repositories for order persistence.
package order

import (
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
)

var (
	// ErrOrderNotFound is returned when an order is not found.
	ErrOrderNotFound = errors.New("order not found")

	// ErrVersionConflict is returned when an Update races with another write
	// to the same order. Callers must reload and decide whether to retry.
	ErrVersionConflict = errors.New("order was modified concurrently")
)

// Repository defines methods for order persistence.
type Repository interface {
	// GetByID retrieves an order by ID.
	// Returns ErrOrderNotFound if the order doesn't exist.
	GetByID(id string) (*Order, error)

	// Insert adds a new order.
	Insert(o *Order) error

	// Update persists the order's status, transaction record, and notes as a
	// single write. The order's Version must match the stored version;
	// otherwise ErrVersionConflict is returned and nothing is written.
	Update(o *Order) error
}

// InMemoryRepository implements Repository with in-memory storage.
type InMemoryRepository struct {
	mu     sync.RWMutex
	orders map[string]*Order
}

// NewInMemoryRepository creates a new in-memory order repository.
func NewInMemoryRepository() *InMemoryRepository {
	return &InMemoryRepository{
		orders: make(map[string]*Order),
	}
}

// Insert adds a new order.
func (r *InMemoryRepository) Insert(o *Order) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if o.ID == "" {
		o.ID = uuid.New().String()
	}

	now := time.Now()
	if o.CreatedAt == nil {
		o.CreatedAt = &now
	}
	if o.UpdatedAt == nil {
		o.UpdatedAt = &now
	}

	r.orders[o.ID] = copyOrder(o)
	return nil
}

// GetByID retrieves an order by ID.
func (r *InMemoryRepository) GetByID(id string) (*Order, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	o, ok := r.orders[id]
	if !ok {
		return nil, ErrOrderNotFound
	}
	return copyOrder(o), nil
}

// Update persists the order under an optimistic version check.
func (r *InMemoryRepository) Update(o *Order) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	stored, ok := r.orders[o.ID]
	if !ok {
		return ErrOrderNotFound
	}
	if stored.Version != o.Version {
		return ErrVersionConflict
	}

	o.Version++
	now := time.Now()
	o.UpdatedAt = &now

	for i := range o.Notes {
		if o.Notes[i].ID == "" {
			o.Notes[i].ID = uuid.New().String()
		}
	}

	r.orders[o.ID] = copyOrder(o)
	return nil
}

// copyOrder creates a deep copy of an Order to prevent external mutation.
func copyOrder(o *Order) *Order {
	if o == nil {
		return nil
	}

	copied := *o
	if o.Transaction != nil {
		tx := *o.Transaction
		copied.Transaction = &tx
	}
	if o.Notes != nil {
		copied.Notes = make([]Note, len(o.Notes))
		copy(copied.Notes, o.Notes)
	}
	return &copied
}
