package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/lib/pq"

	"reconcile/internal/domain"
	"reconcile/internal/repository"
)

const uniqueViolation = "23505"

// PaymentRepository is a PostgreSQL implementation of repository.PaymentRepository.
type PaymentRepository struct {
	q Querier
}

// NewPaymentRepository creates a new PostgreSQL payment repository.
func NewPaymentRepository(db *sql.DB) *PaymentRepository {
	return &PaymentRepository{q: db}
}

// NewPaymentRepositoryWithTx creates a payment repository using a transaction.
func NewPaymentRepositoryWithTx(tx *sql.Tx) *PaymentRepository {
	return &PaymentRepository{q: tx}
}

const paymentColumns = `id, transaction_id, amount, upi_id, provider, ts, matched, order_id, match_method, matched_at, created_at`

// Create appends a payment event. The unique transaction_id makes redelivery a no-op.
func (r *PaymentRepository) Create(ctx context.Context, event *domain.PaymentEvent) error {
	query := `
		INSERT INTO payments (id, transaction_id, amount, upi_id, provider, ts, matched, order_id, match_method, matched_at, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		ON CONFLICT (transaction_id) DO NOTHING
	`

	result, err := r.q.ExecContext(ctx, query,
		event.ID,
		event.TransactionID,
		event.Amount,
		event.UPIID,
		event.Provider,
		event.Timestamp,
		event.Matched,
		nullString(event.OrderID),
		nullString(string(event.MatchMethod)),
		nullTime(event.MatchedAt),
		event.CreatedAt,
	)
	if err != nil {
		return err
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return err
	}

	if rowsAffected == 0 {
		return repository.ErrDuplicate
	}

	return nil
}

// GetByTransactionID retrieves a payment event by transaction id.
func (r *PaymentRepository) GetByTransactionID(ctx context.Context, transactionID string) (*domain.PaymentEvent, error) {
	query := `SELECT ` + paymentColumns + ` FROM payments WHERE transaction_id = $1`

	event, err := scanPayment(r.q.QueryRowContext(ctx, query, transactionID))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, repository.ErrNotFound
		}
		return nil, err
	}

	return event, nil
}

// MarkMatched sets the match fields of an unmatched event.
func (r *PaymentRepository) MarkMatched(ctx context.Context, transactionID, orderID string, method domain.MatchMethod, at time.Time) error {
	query := `
		UPDATE payments
		SET matched = TRUE, order_id = $2, match_method = $3, matched_at = $4
		WHERE transaction_id = $1 AND matched = FALSE
	`

	result, err := r.q.ExecContext(ctx, query, transactionID, orderID, method, at)
	if err != nil {
		// payments_order_matched_key: the order already has a matched payment.
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == uniqueViolation {
			return repository.ErrConflict
		}
		return err
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return err
	}

	if rowsAffected == 1 {
		return nil
	}

	var matched bool
	err = r.q.QueryRowContext(ctx, `SELECT matched FROM payments WHERE transaction_id = $1`, transactionID).Scan(&matched)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return repository.ErrNotFound
		}
		return err
	}

	return repository.ErrConflict
}

// List returns events newest first.
func (r *PaymentRepository) List(ctx context.Context, filter repository.PaymentFilter) ([]*domain.PaymentEvent, error) {
	var (
		conds []string
		args  []any
	)

	if !filter.From.IsZero() {
		args = append(args, filter.From)
		conds = append(conds, fmt.Sprintf("ts >= $%d", len(args)))
	}
	if !filter.To.IsZero() {
		args = append(args, filter.To)
		conds = append(conds, fmt.Sprintf("ts < $%d", len(args)))
	}
	if filter.Matched != nil {
		args = append(args, *filter.Matched)
		conds = append(conds, fmt.Sprintf("matched = $%d", len(args)))
	}

	query := `SELECT ` + paymentColumns + ` FROM payments`
	if len(conds) > 0 {
		query += ` WHERE ` + strings.Join(conds, " AND ")
	}
	query += ` ORDER BY ts DESC, created_at DESC`
	if filter.Limit > 0 {
		args = append(args, filter.Limit)
		query += fmt.Sprintf(" LIMIT $%d", len(args))
	}

	rows, err := r.q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var events []*domain.PaymentEvent
	for rows.Next() {
		event, err := scanPayment(rows)
		if err != nil {
			return nil, err
		}
		events = append(events, event)
	}
	return events, rows.Err()
}

func scanPayment(s scanner) (*domain.PaymentEvent, error) {
	var event domain.PaymentEvent
	var orderID sql.NullString
	var matchMethod sql.NullString
	var matchedAt sql.NullTime

	if err := s.Scan(
		&event.ID,
		&event.TransactionID,
		&event.Amount,
		&event.UPIID,
		&event.Provider,
		&event.Timestamp,
		&event.Matched,
		&orderID,
		&matchMethod,
		&matchedAt,
		&event.CreatedAt,
	); err != nil {
		return nil, err
	}

	if orderID.Valid {
		event.OrderID = orderID.String
	}
	if matchMethod.Valid {
		event.MatchMethod = domain.MatchMethod(matchMethod.String)
	}
	if matchedAt.Valid {
		event.MatchedAt = matchedAt.Time
	}

	return &event, nil
}
