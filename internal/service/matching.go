package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"reconcile/internal/domain"
	"reconcile/internal/redis"
	"reconcile/internal/repository"
)

const (
	orderLockTTL = 10 * time.Second // Bounds a settlement; released explicitly on return

	// A delivery holds its transaction lock from Record until the outcome is
	// final. A redelivery waits up to txLockWait for it, then answers with
	// whatever the ledger holds.
	txLockTTL  = 30 * time.Second
	txLockWait = 15 * time.Second
	txLockPoll = 20 * time.Millisecond
)

// MatchingService decides the disposition of incoming payments and applies
// operator overrides. It is the only writer of the pending -> paid transition.
type MatchingService struct {
	txManager  repository.TxManager
	orders     repository.OrderRepository
	ledger     *Ledger
	registry   *Registry
	settings   *SettingsService
	lockStore  redis.LockStoreInterface
	statsCache redis.StatsCacheInterface // Optional
	notifier   *NotificationService      // Optional
	logger     *slog.Logger
}

// NewMatchingService creates a new MatchingService.
func NewMatchingService(
	txManager repository.TxManager,
	orders repository.OrderRepository,
	ledger *Ledger,
	registry *Registry,
	settings *SettingsService,
	lockStore redis.LockStoreInterface,
	statsCache redis.StatsCacheInterface,
	notifier *NotificationService,
	logger *slog.Logger,
) *MatchingService {
	return &MatchingService{
		txManager:  txManager,
		orders:     orders,
		ledger:     ledger,
		registry:   registry,
		settings:   settings,
		lockStore:  lockStore,
		statsCache: statsCache,
		notifier:   notifier,
		logger:     logger,
	}
}

// PaymentNotification is a payment as delivered by the soundbox provider.
type PaymentNotification struct {
	TransactionID string
	Amount        decimal.Decimal
	UPIID         string
	Provider      string
	Timestamp     time.Time // Zero means "now"
}

// MatchOutcome is the disposition of a payment.
type MatchOutcome struct {
	Event      *domain.PaymentEvent
	Matched    bool
	OrderID    string
	Duplicate  bool // The transaction was already recorded; Event is the stored one
	Candidates int  // Pending orders with the same amount at decision time
}

// HandlePayment records a payment and tries to settle the oldest pending order
// of exactly the same amount. Finding no order is not an error.
func (s *MatchingService) HandlePayment(ctx context.Context, n PaymentNotification) (*MatchOutcome, error) {
	event := &domain.PaymentEvent{
		TransactionID: strings.TrimSpace(n.TransactionID),
		Amount:        n.Amount,
		UPIID:         n.UPIID,
		Provider:      n.Provider,
		Timestamp:     n.Timestamp,
	}

	if event.TransactionID != "" && domain.ValidAmount(event.Amount) {
		release, err := s.lockTransaction(ctx, event.TransactionID)
		if err != nil {
			return nil, err
		}
		defer release()
	}

	err := s.ledger.Record(ctx, event)
	if errors.Is(err, ErrDuplicateTransaction) {
		prior, err := s.ledger.Get(ctx, event.TransactionID)
		if err != nil {
			return nil, err
		}
		s.logger.InfoContext(ctx, "duplicate payment delivery",
			"transaction_id", prior.TransactionID,
			"matched", prior.Matched,
			"order_id", prior.OrderID,
		)
		return &MatchOutcome{
			Event:     prior,
			Matched:   prior.Matched,
			OrderID:   prior.OrderID,
			Duplicate: true,
		}, nil
	}
	if err != nil {
		return nil, err
	}

	s.invalidateStats(ctx)
	s.publish(ctx, Notification{
		Type:          NotificationPaymentRecorded,
		TransactionID: event.TransactionID,
		Amount:        &event.Amount,
	})

	outcome := &MatchOutcome{Event: event}

	settings, err := s.settings.Matching(ctx)
	if err != nil {
		// The payment is recorded; leave it for the operator rather than fail the delivery.
		s.logger.ErrorContext(ctx, "matching settings unavailable", "transaction_id", event.TransactionID, "error", err)
		return s.unmatched(ctx, outcome), nil
	}
	if !settings.AutoMatch {
		return s.unmatched(ctx, outcome), nil
	}

	var since time.Time
	if window := settings.Window(); window > 0 {
		since = event.Timestamp.Add(-window)
	}

	candidates, err := s.registry.Candidates(ctx, event.Amount, since)
	if err != nil {
		return nil, err
	}
	outcome.Candidates = len(candidates)

	if len(candidates) > 1 {
		ids := make([]string, len(candidates))
		for i, c := range candidates {
			ids[i] = c.ID
		}
		s.logger.WarnContext(ctx, "ambiguous amount, settling oldest pending order",
			"transaction_id", event.TransactionID,
			"amount", event.Amount.StringFixed(domain.AmountScale),
			"candidates", ids,
		)
	}

	// Try each candidate, oldest first.
	for _, order := range candidates {
		err := s.settle(ctx, event.TransactionID, order.ID, domain.MatchMethodAuto)
		switch {
		case err == nil:
			event.Matched = true
			event.OrderID = order.ID
			event.MatchMethod = domain.MatchMethodAuto
			outcome.Matched = true
			outcome.OrderID = order.ID

			s.logger.InfoContext(ctx, "payment matched",
				"transaction_id", event.TransactionID,
				"order_id", order.ID,
				"method", domain.MatchMethodAuto,
			)
			return outcome, nil

		case errors.Is(err, ErrOrderLocked), errors.Is(err, ErrOrderNotPending):
			// Another request owns or already settled this order.
			continue

		case errors.Is(err, ErrAlreadyMatched):
			// An operator matched this payment while we were deciding.
			current, getErr := s.ledger.Get(ctx, event.TransactionID)
			if getErr != nil {
				return nil, getErr
			}
			outcome.Event = current
			outcome.Matched = current.Matched
			outcome.OrderID = current.OrderID
			return outcome, nil

		default:
			return nil, err
		}
	}

	return s.unmatched(ctx, outcome), nil
}

// ManualMatch settles order with an unmatched payment on an operator's behalf.
func (s *MatchingService) ManualMatch(ctx context.Context, transactionID, orderID string) error {
	if strings.TrimSpace(orderID) == "" {
		return ErrInvalidOrderID
	}

	event, err := s.ledger.Get(ctx, transactionID)
	if err != nil {
		return err
	}
	if event.Matched {
		return ErrAlreadyMatched
	}

	order, err := s.orders.GetByID(ctx, orderID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return ErrOrderNotFound
		}
		return err
	}
	if !order.IsPending() {
		return ErrOrderNotPending
	}
	if !domain.SameAmount(order.Amount, event.Amount) {
		s.logger.WarnContext(ctx, "manual match with differing amounts",
			"transaction_id", transactionID,
			"order_id", orderID,
			"payment_amount", event.Amount.StringFixed(domain.AmountScale),
			"order_amount", order.Amount.StringFixed(domain.AmountScale),
		)
	}

	if err := s.settle(ctx, transactionID, orderID, domain.MatchMethodManual); err != nil {
		return err
	}

	s.logger.InfoContext(ctx, "payment matched",
		"transaction_id", transactionID,
		"order_id", orderID,
		"method", domain.MatchMethodManual,
	)
	return nil
}

// MarkAsCash settles a pending order paid in cash. No ledger entry is created.
func (s *MatchingService) MarkAsCash(ctx context.Context, orderID string) error {
	err := s.withOrder(ctx, orderID, func(ctx context.Context, repos repository.Repositories, at time.Time) error {
		return repos.Orders.MarkPaid(ctx, orderID, domain.PaymentMethodCash, "", at)
	})
	if err != nil {
		return err
	}

	s.afterOrderSettled(ctx, Notification{Type: NotificationOrderPaidCash, OrderID: orderID})
	s.logger.InfoContext(ctx, "order paid in cash", "order_id", orderID)
	return nil
}

// Cancel withdraws a pending order. No payment is expected for it anymore.
func (s *MatchingService) Cancel(ctx context.Context, orderID string) error {
	err := s.withOrder(ctx, orderID, func(ctx context.Context, repos repository.Repositories, at time.Time) error {
		return repos.Orders.Cancel(ctx, orderID, at)
	})
	if err != nil {
		return err
	}

	s.afterOrderSettled(ctx, Notification{Type: NotificationOrderCancelled, OrderID: orderID})
	s.logger.InfoContext(ctx, "order cancelled", "order_id", orderID)
	return nil
}

// settle atomically pays orderID with transactionID under the order lock.
// Returns ErrOrderLocked, ErrOrderNotPending, ErrAlreadyMatched or ErrPaymentNotFound
// when the transition cannot happen.
func (s *MatchingService) settle(ctx context.Context, transactionID, orderID string, method domain.MatchMethod) error {
	var amount decimal.Decimal

	err := s.withLock(ctx, orderID, func() error {
		at := time.Now()
		return s.txManager.WithinTx(ctx, func(ctx context.Context, repos repository.Repositories) error {
			if err := repos.Orders.MarkPaid(ctx, orderID, domain.PaymentMethodOnline, transactionID, at); err != nil {
				if errors.Is(err, repository.ErrNotFound) {
					return ErrOrderNotPending
				}
				return fmt.Errorf("mark order %s paid: %w", orderID, err)
			}

			if err := repos.Payments.MarkMatched(ctx, transactionID, orderID, method, at); err != nil {
				return ledgerError(err)
			}

			event, err := repos.Payments.GetByTransactionID(ctx, transactionID)
			if err != nil {
				return ledgerError(err)
			}
			amount = event.Amount
			return nil
		})
	})
	if err != nil {
		return err
	}

	s.afterOrderSettled(ctx, Notification{
		Type:          NotificationPaymentMatched,
		TransactionID: transactionID,
		OrderID:       orderID,
		Amount:        &amount,
		MatchMethod:   method,
	})
	return nil
}

// withOrder runs fn in a transaction under the order lock. A missing or
// non-pending order yields ErrOrderNotFound.
func (s *MatchingService) withOrder(ctx context.Context, orderID string, fn func(ctx context.Context, repos repository.Repositories, at time.Time) error) error {
	if strings.TrimSpace(orderID) == "" {
		return ErrInvalidOrderID
	}

	return s.withLock(ctx, orderID, func() error {
		at := time.Now()
		err := s.txManager.WithinTx(ctx, func(ctx context.Context, repos repository.Repositories) error {
			return fn(ctx, repos, at)
		})
		if errors.Is(err, repository.ErrNotFound) {
			return ErrOrderNotFound
		}
		return err
	})
}

// lockTransaction waits for any in-flight delivery of the same transaction
// so a redelivery observes its final outcome.
func (s *MatchingService) lockTransaction(ctx context.Context, transactionID string) (func(), error) {
	deadline := time.Now().Add(txLockWait)
	ticker := time.NewTicker(txLockPoll)
	defer ticker.Stop()

	for {
		locked, err := s.lockStore.AcquireTransactionLock(ctx, transactionID, txLockTTL)
		if err != nil {
			return nil, fmt.Errorf("acquire transaction lock: %w", err)
		}
		if locked {
			return func() {
				if err := s.lockStore.ReleaseTransactionLock(context.WithoutCancel(ctx), transactionID); err != nil {
					s.logger.WarnContext(ctx, "release transaction lock failed", "transaction_id", transactionID, "error", err)
				}
			}, nil
		}
		if time.Now().After(deadline) {
			s.logger.WarnContext(ctx, "transaction still locked, answering from the ledger", "transaction_id", transactionID)
			return func() {}, nil
		}

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-ticker.C:
		}
	}
}

func (s *MatchingService) withLock(ctx context.Context, orderID string, fn func() error) error {
	locked, err := s.lockStore.AcquireOrderLock(ctx, orderID, orderLockTTL)
	if err != nil {
		return fmt.Errorf("acquire order lock: %w", err)
	}
	if !locked {
		return ErrOrderLocked
	}
	defer func() {
		if err := s.lockStore.ReleaseOrderLock(context.WithoutCancel(ctx), orderID); err != nil {
			s.logger.WarnContext(ctx, "release order lock failed", "order_id", orderID, "error", err)
		}
	}()

	return fn()
}

// afterOrderSettled runs once the transaction has committed. Failures here
// only leave caches stale until their TTL, so they are logged, not returned.
func (s *MatchingService) afterOrderSettled(ctx context.Context, n Notification) {
	if err := s.registry.Remove(ctx, n.OrderID); err != nil {
		s.logger.WarnContext(ctx, "pending cache eviction failed", "order_id", n.OrderID, "error", err)
	}
	s.invalidateStats(ctx)
	s.publish(ctx, n)
}

func (s *MatchingService) unmatched(ctx context.Context, outcome *MatchOutcome) *MatchOutcome {
	s.logger.InfoContext(ctx, "payment unmatched",
		"transaction_id", outcome.Event.TransactionID,
		"amount", outcome.Event.Amount.StringFixed(domain.AmountScale),
		"candidates", outcome.Candidates,
	)
	s.publish(ctx, Notification{
		Type:          NotificationPaymentUnmatched,
		TransactionID: outcome.Event.TransactionID,
		Amount:        &outcome.Event.Amount,
	})
	return outcome
}

func (s *MatchingService) invalidateStats(ctx context.Context) {
	if s.statsCache == nil {
		return
	}
	if err := s.statsCache.InvalidateStats(ctx); err != nil {
		s.logger.WarnContext(ctx, "stats cache invalidation failed", "error", err)
	}
}

func (s *MatchingService) publish(ctx context.Context, n Notification) {
	if s.notifier != nil {
		s.notifier.Publish(ctx, n)
	}
}
