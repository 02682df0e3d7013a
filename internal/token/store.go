// Package token provides stores for saved payment method persistence.
package token

import (
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

// ErrTokenNotFound is returned when a payment token is not found.
var ErrTokenNotFound = errors.New("payment token not found")

// Store defines methods for payment token persistence.
type Store interface {
	// GetByID retrieves a token by ID.
	// Returns ErrTokenNotFound if the token doesn't exist.
	GetByID(id string) (*PaymentToken, error)

	// ListByCustomer returns a customer's tokens for a gateway, default
	// token first, then oldest first.
	ListByCustomer(customerID, gatewayID string) ([]*PaymentToken, error)

	// Save persists a new token.
	Save(t *PaymentToken) error

	// Delete removes a token.
	// Returns ErrTokenNotFound if the token doesn't exist.
	Delete(id string) error
}

// InMemoryStore implements Store with in-memory storage.
type InMemoryStore struct {
	mu     sync.RWMutex
	tokens map[string]*PaymentToken
}

// NewInMemoryStore creates a new in-memory token store.
func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{
		tokens: make(map[string]*PaymentToken),
	}
}

// GetByID retrieves a token by ID.
func (s *InMemoryStore) GetByID(id string) (*PaymentToken, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	t, ok := s.tokens[id]
	if !ok {
		return nil, ErrTokenNotFound
	}
	copied := *t
	return &copied, nil
}

// ListByCustomer returns a customer's tokens for a gateway.
func (s *InMemoryStore) ListByCustomer(customerID, gatewayID string) ([]*PaymentToken, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []*PaymentToken
	for _, t := range s.tokens {
		if t.CustomerID == customerID && t.GatewayID == gatewayID {
			copied := *t
			out = append(out, &copied)
		}
	}

	sort.Slice(out, func(i, j int) bool {
		if out[i].Default != out[j].Default {
			return out[i].Default
		}
		ti, tj := out[i].CreatedAt, out[j].CreatedAt
		if ti != nil && tj != nil && !ti.Equal(*tj) {
			return ti.Before(*tj)
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

// Save persists a new token.
func (s *InMemoryStore) Save(t *PaymentToken) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if t.ID == "" {
		t.ID = uuid.New().String()
	}
	if t.CreatedAt == nil {
		now := time.Now()
		t.CreatedAt = &now
	}

	copied := *t
	s.tokens[t.ID] = &copied
	return nil
}

// DeleteExpired removes tokens whose card expiry has passed as of now.
// Returns the number of tokens removed.
func (s *InMemoryStore) DeleteExpired(now time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var removed int64
	for id, t := range s.tokens {
		if t.ExpiredAt(now) {
			delete(s.tokens, id)
			removed++
		}
	}
	return removed, nil
}

// Delete removes a token.
func (s *InMemoryStore) Delete(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.tokens[id]; !ok {
		return ErrTokenNotFound
	}
	delete(s.tokens, id)
	return nil
}
