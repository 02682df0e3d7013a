package token

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/merchware/backpay/internal/tracing"
)

// PostgresStore implements Store using PostgreSQL.
type PostgresStore struct {
	db     *sql.DB
	logger *slog.Logger
}

// NewPostgresStore creates a new PostgresStore.
func NewPostgresStore(db *sql.DB, logger *slog.Logger) *PostgresStore {
	if logger == nil {
		logger = slog.Default()
	}
	return &PostgresStore{
		db:     db,
		logger: logger,
	}
}

// GetByID retrieves a token by ID.
func (s *PostgresStore) GetByID(id string) (tok *PaymentToken, err error) {
	ctx, endSpan := tracing.StartDBSpan(context.Background(), "payment_tokens", tracing.DBOperationQuery)
	defer func() { endSpan(err) }()

	query := `
		SELECT id, customer_id, gateway_id, token_value, card_type, last4,
		       expiry_month, expiry_year, is_default, created_at
		FROM payment_tokens
		WHERE id = $1`

	var (
		t         PaymentToken
		createdAt time.Time
	)
	err = s.db.QueryRowContext(ctx, query, id).Scan(
		&t.ID, &t.CustomerID, &t.GatewayID, &t.Value, &t.CardType, &t.Last4,
		&t.ExpiryMonth, &t.ExpiryYear, &t.Default, &createdAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrTokenNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query payment token: %w", err)
	}
	t.CreatedAt = &createdAt
	return &t, nil
}

// ListByCustomer returns a customer's tokens for a gateway, default first,
// then oldest first.
func (s *PostgresStore) ListByCustomer(customerID, gatewayID string) (out []*PaymentToken, err error) {
	ctx, endSpan := tracing.StartDBSpan(context.Background(), "payment_tokens", tracing.DBOperationQuery)
	defer func() { endSpan(err) }()

	query := `
		SELECT id, customer_id, gateway_id, token_value, card_type, last4,
		       expiry_month, expiry_year, is_default, created_at
		FROM payment_tokens
		WHERE customer_id = $1 AND gateway_id = $2
		ORDER BY is_default DESC, created_at ASC, id ASC`

	rows, err := s.db.QueryContext(ctx, query, customerID, gatewayID)
	if err != nil {
		return nil, fmt.Errorf("failed to query payment tokens: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			t         PaymentToken
			createdAt time.Time
		)
		if err := rows.Scan(
			&t.ID, &t.CustomerID, &t.GatewayID, &t.Value, &t.CardType, &t.Last4,
			&t.ExpiryMonth, &t.ExpiryYear, &t.Default, &createdAt); err != nil {
			return nil, fmt.Errorf("failed to scan payment token: %w", err)
		}
		t.CreatedAt = &createdAt
		out = append(out, &t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate payment tokens: %w", err)
	}
	return out, nil
}

// Save persists a new token.
func (s *PostgresStore) Save(t *PaymentToken) (err error) {
	ctx, endSpan := tracing.StartDBSpan(context.Background(), "payment_tokens", tracing.DBOperationInsert)
	defer func() { endSpan(err) }()

	if t.ID == "" {
		t.ID = uuid.New().String()
	}
	if t.CreatedAt == nil {
		now := time.Now()
		t.CreatedAt = &now
	}

	query := `
		INSERT INTO payment_tokens (id, customer_id, gateway_id, token_value, card_type,
		                            last4, expiry_month, expiry_year, is_default, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`

	if _, err = s.db.ExecContext(ctx, query,
		t.ID, t.CustomerID, t.GatewayID, t.Value, t.CardType,
		t.Last4, t.ExpiryMonth, t.ExpiryYear, t.Default, t.CreatedAt); err != nil {
		return fmt.Errorf("failed to insert payment token: %w", err)
	}
	return nil
}

// DeleteExpired removes tokens whose card expiry month has passed as of now.
// Returns the number of tokens removed.
func (s *PostgresStore) DeleteExpired(now time.Time) (removed int64, err error) {
	ctx, endSpan := tracing.StartDBSpan(context.Background(), "payment_tokens", tracing.DBOperationDelete)
	defer func() { endSpan(err) }()

	// expiry_year is YYYY and expiry_month is MM, so string comparison of
	// the concatenation against the current YYYYMM is chronological.
	cutoff := now.Format("200601")
	res, err := s.db.ExecContext(ctx, `
		DELETE FROM payment_tokens
		WHERE expiry_year <> '' AND expiry_month <> ''
		  AND expiry_year || expiry_month < $1`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("failed to delete expired payment tokens: %w", err)
	}
	removed, err = res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to read delete result: %w", err)
	}
	return removed, nil
}

// Delete removes a token.
func (s *PostgresStore) Delete(id string) (err error) {
	ctx, endSpan := tracing.StartDBSpan(context.Background(), "payment_tokens", tracing.DBOperationDelete)
	defer func() { endSpan(err) }()

	res, err := s.db.ExecContext(ctx, `DELETE FROM payment_tokens WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete payment token: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read delete result: %w", err)
	}
	if affected == 0 {
		return ErrTokenNotFound
	}
	return nil
}
