package idempotency

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/lib/pq"
)

// PostgresRepository implements Repository backed by the idempotency_keys table.
type PostgresRepository struct {
	db *sql.DB
}

// NewPostgresRepository creates a new Postgres-backed idempotency key repository.
func NewPostgresRepository(db *sql.DB) *PostgresRepository {
	return &PostgresRepository{db: db}
}

// Get retrieves an idempotency key by its key value.
// Returns ErrKeyNotFound if the key doesn't exist.
func (r *PostgresRepository) Get(key string) (*IdempotencyKey, error) {
	record := &IdempotencyKey{}
	var transactionID sql.NullString

	err := r.db.QueryRow(`
		SELECT key, method, route, created_at, transaction_id,
		       response_hash, status, response_body, response_status_code
		FROM idempotency_keys
		WHERE key = $1`, key).Scan(
		&record.Key,
		&record.Method,
		&record.Route,
		&record.CreatedAt,
		&transactionID,
		&record.ResponseHash,
		&record.Status,
		&record.ResponseBody,
		&record.ResponseStatusCode,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrKeyNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get idempotency key: %w", err)
	}

	if transactionID.Valid {
		record.TransactionID = &transactionID.String
	}
	return record, nil
}

// Store saves a new idempotency key.
// Returns ErrKeyExists if the key already exists.
func (r *PostgresRepository) Store(record *IdempotencyKey) error {
	if err := ValidateKey(record.Key); err != nil {
		return err
	}

	if record.CreatedAt.IsZero() {
		record.CreatedAt = time.Now()
	}

	var transactionID sql.NullString
	if record.TransactionID != nil {
		transactionID = sql.NullString{String: *record.TransactionID, Valid: true}
	}

	_, err := r.db.Exec(`
		INSERT INTO idempotency_keys (
			key, method, route, created_at, transaction_id,
			response_hash, status, response_body, response_status_code
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		record.Key,
		record.Method,
		record.Route,
		record.CreatedAt,
		transactionID,
		record.ResponseHash,
		record.Status,
		record.ResponseBody,
		record.ResponseStatusCode,
	)
	if err != nil {
		var pqErr *pq.Error
		// 23505 is unique_violation
		if errors.As(err, &pqErr) && pqErr.Code == "23505" {
			return ErrKeyExists
		}
		return fmt.Errorf("failed to store idempotency key: %w", err)
	}
	return nil
}

// DeleteOlderThan removes idempotency keys older than the specified duration.
// Returns the number of keys deleted.
func (r *PostgresRepository) DeleteOlderThan(duration time.Duration) (int64, error) {
	result, err := r.db.Exec(`
		DELETE FROM idempotency_keys
		WHERE created_at < $1`, time.Now().Add(-duration))
	if err != nil {
		return 0, fmt.Errorf("failed to delete old idempotency keys: %w", err)
	}
	return result.RowsAffected()
}
