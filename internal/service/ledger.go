package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"reconcile/internal/domain"
	"reconcile/internal/repository"
)

// LedgerFilter narrows a ledger query. Zero values mean "no constraint".
type LedgerFilter struct {
	Date    time.Time // Business day, matched on the provider timestamp
	Matched *bool
	Limit   int
}

// Ledger is the append-only record of payment notifications.
type Ledger struct {
	payments repository.PaymentRepository
	calendar *Calendar
}

// NewLedger creates a new Ledger.
func NewLedger(payments repository.PaymentRepository, calendar *Calendar) *Ledger {
	return &Ledger{
		payments: payments,
		calendar: calendar,
	}
}

// Record appends a payment event. It fills ID and CreatedAt when unset.
// Returns ErrDuplicateTransaction if the transaction id was already recorded.
func (l *Ledger) Record(ctx context.Context, event *domain.PaymentEvent) error {
	if strings.TrimSpace(event.TransactionID) == "" {
		return ErrInvalidTransactionID
	}
	if !domain.ValidAmount(event.Amount) {
		return ErrInvalidAmount
	}

	if event.ID == "" {
		event.ID = uuid.New().String()
	}
	if event.CreatedAt.IsZero() {
		event.CreatedAt = time.Now()
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = event.CreatedAt
	}

	if err := l.payments.Create(ctx, event); err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			return ErrDuplicateTransaction
		}
		return fmt.Errorf("record payment %s: %w", event.TransactionID, err)
	}

	return nil
}

// MarkMatched sets the match fields of an unmatched payment.
func (l *Ledger) MarkMatched(ctx context.Context, transactionID, orderID string, method domain.MatchMethod) error {
	return ledgerError(l.payments.MarkMatched(ctx, transactionID, orderID, method, time.Now()))
}

// Get returns the payment with the given transaction id.
func (l *Ledger) Get(ctx context.Context, transactionID string) (*domain.PaymentEvent, error) {
	if strings.TrimSpace(transactionID) == "" {
		return nil, ErrInvalidTransactionID
	}

	event, err := l.payments.GetByTransactionID(ctx, transactionID)
	if err != nil {
		return nil, ledgerError(err)
	}
	return event, nil
}

// Query returns payments matching filter, newest first.
func (l *Ledger) Query(ctx context.Context, filter LedgerFilter) ([]*domain.PaymentEvent, error) {
	f := repository.PaymentFilter{
		Matched: filter.Matched,
		Limit:   filter.Limit,
	}
	if !filter.Date.IsZero() {
		f.From, f.To = l.calendar.Bounds(filter.Date)
	}

	events, err := l.payments.List(ctx, f)
	if err != nil {
		return nil, fmt.Errorf("query ledger: %w", err)
	}
	return events, nil
}

// ledgerError translates repository errors on payments into service errors.
func ledgerError(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, repository.ErrNotFound):
		return ErrPaymentNotFound
	case errors.Is(err, repository.ErrConflict):
		return ErrAlreadyMatched
	default:
		return err
	}
}
