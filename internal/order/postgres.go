package order

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/merchware/backpay/internal/tracing"
)

// PostgresRepository implements Repository using PostgreSQL.
//
// An order row carries its transaction record inline (nullable columns) so that
// status, transaction id, and card metadata commit in a single statement.
// Notes live in order_notes and are append-only.
type PostgresRepository struct {
	db     *sql.DB
	logger *slog.Logger
}

// NewPostgresRepository creates a new PostgresRepository.
func NewPostgresRepository(db *sql.DB, logger *slog.Logger) *PostgresRepository {
	if logger == nil {
		logger = slog.Default()
	}
	return &PostgresRepository{
		db:     db,
		logger: logger,
	}
}

// Insert adds a new order.
func (r *PostgresRepository) Insert(o *Order) (err error) {
	ctx, endSpan := tracing.StartDBSpan(context.Background(), "orders", tracing.DBOperationInsert)
	defer func() { endSpan(err) }()

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

	query := `
		INSERT INTO orders (id, customer_id, total, currency, status, version, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`

	if _, err = r.db.ExecContext(ctx, query,
		o.ID, o.CustomerID, o.Total.String(), o.Currency, string(o.Status), o.Version, o.CreatedAt, o.UpdatedAt); err != nil {
		return fmt.Errorf("failed to insert order: %w", err)
	}
	return nil
}

// GetByID retrieves an order with its notes.
func (r *PostgresRepository) GetByID(id string) (ord *Order, err error) {
	ctx, endSpan := tracing.StartDBSpan(context.Background(), "orders", tracing.DBOperationQuery)
	defer func() { endSpan(err) }()

	query := `
		SELECT id, customer_id, total, currency, status, version,
		       transaction_id, card_last4, card_expiry, transaction_type,
		       created_at, updated_at
		FROM orders
		WHERE id = $1`

	var (
		o         Order
		total     string
		status    string
		txID      sql.NullString
		last4     sql.NullString
		expiry    sql.NullString
		txType    sql.NullString
		createdAt time.Time
		updatedAt time.Time
	)

	err = r.db.QueryRowContext(ctx, query, id).Scan(
		&o.ID, &o.CustomerID, &total, &o.Currency, &status, &o.Version,
		&txID, &last4, &expiry, &txType, &createdAt, &updatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrOrderNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query order: %w", err)
	}

	o.Total, err = decimal.NewFromString(total)
	if err != nil {
		return nil, fmt.Errorf("invalid total for order %s: %w", id, err)
	}
	o.Status = Status(status)
	o.CreatedAt = &createdAt
	o.UpdatedAt = &updatedAt

	if txID.Valid && txID.String != "" {
		o.Transaction = &TransactionRecord{
			TransactionID: txID.String,
			CardLast4:     last4.String,
			CardExpiry:    expiry.String,
			Type:          TransactionType(txType.String),
		}
	}

	notes, err := r.loadNotes(ctx, id)
	if err != nil {
		return nil, err
	}
	o.Notes = notes

	return &o, nil
}

// Update persists the order row and any new notes in one transaction, guarded
// by the optimistic version check.
func (r *PostgresRepository) Update(o *Order) (err error) {
	ctx, endSpan := tracing.StartDBSpan(context.Background(), "orders", tracing.DBOperationUpdate)
	defer func() { endSpan(err) }()

	tx, err := r.db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelReadCommitted})
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		if err := tx.Rollback(); err != nil && !errors.Is(err, sql.ErrTxDone) {
			r.logger.Warn("failed to rollback order update", slog.String("error", err.Error()))
		}
	}()

	var txID, last4, expiry, txType sql.NullString
	if o.Transaction != nil {
		txID = sql.NullString{String: o.Transaction.TransactionID, Valid: true}
		last4 = sql.NullString{String: o.Transaction.CardLast4, Valid: true}
		expiry = sql.NullString{String: o.Transaction.CardExpiry, Valid: true}
		txType = sql.NullString{String: string(o.Transaction.Type), Valid: true}
	}

	now := time.Now()
	query := `
		UPDATE orders
		SET status = $1, transaction_id = $2, card_last4 = $3, card_expiry = $4,
		    transaction_type = $5, version = version + 1, updated_at = $6
		WHERE id = $7 AND version = $8`

	res, err := tx.ExecContext(ctx, query,
		string(o.Status), txID, last4, expiry, txType, now, o.ID, o.Version)
	if err != nil {
		return fmt.Errorf("failed to update order: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read update result: %w", err)
	}
	if affected == 0 {
		// Either the order vanished or another writer got there first.
		var exists bool
		if err := tx.QueryRowContext(ctx, `SELECT EXISTS(SELECT 1 FROM orders WHERE id = $1)`, o.ID).Scan(&exists); err != nil {
			return fmt.Errorf("failed to check order existence: %w", err)
		}
		if !exists {
			return ErrOrderNotFound
		}
		return ErrVersionConflict
	}

	for i := range o.Notes {
		if o.Notes[i].ID != "" {
			continue
		}
		o.Notes[i].ID = uuid.New().String()
		_, err := tx.ExecContext(ctx,
			`INSERT INTO order_notes (id, order_id, content, created_at) VALUES ($1, $2, $3, $4)`,
			o.Notes[i].ID, o.ID, o.Notes[i].Content, o.Notes[i].CreatedAt)
		if err != nil {
			return fmt.Errorf("failed to insert order note: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit order update: %w", err)
	}

	o.Version++
	o.UpdatedAt = &now
	return nil
}

// loadNotes returns the order's notes oldest first.
func (r *PostgresRepository) loadNotes(ctx context.Context, orderID string) ([]Note, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, content, created_at FROM order_notes WHERE order_id = $1 ORDER BY created_at ASC`,
		orderID)
	if err != nil {
		return nil, fmt.Errorf("failed to query order notes: %w", err)
	}
	defer rows.Close()

	var notes []Note
	for rows.Next() {
		var n Note
		if err := rows.Scan(&n.ID, &n.Content, &n.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan order note: %w", err)
		}
		notes = append(notes, n)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate order notes: %w", err)
	}
	return notes, nil
}
