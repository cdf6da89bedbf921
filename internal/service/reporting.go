package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"reconcile/internal/domain"
	"reconcile/internal/redis"
	"reconcile/internal/repository"
)

const (
	defaultHistoryLimit = 50
	maxHistoryLimit     = 500
	unmatchedLimit      = 100
)

// ReportingService derives stats and payment records from the ledger and orders.
// It holds no state of its own.
type ReportingService struct {
	ledger   *Ledger
	orders   repository.OrderRepository
	cache    redis.StatsCacheInterface // Optional
	calendar *Calendar
	logger   *slog.Logger
}

// NewReportingService creates a new ReportingService. cache may be nil.
func NewReportingService(ledger *Ledger, orders repository.OrderRepository, cache redis.StatsCacheInterface, calendar *Calendar, logger *slog.Logger) *ReportingService {
	return &ReportingService{
		ledger:   ledger,
		orders:   orders,
		cache:    cache,
		calendar: calendar,
		logger:   logger,
	}
}

// Stats returns the reconciliation stats of day.
func (s *ReportingService) Stats(ctx context.Context, day time.Time) (*domain.ReconciliationStats, error) {
	day = s.calendar.Day(day)
	key := s.calendar.Key(day)

	if s.cache != nil {
		cached, err := s.cache.GetStats(ctx, key)
		if err != nil {
			s.logger.WarnContext(ctx, "stats cache read failed", "date", key, "error", err)
		} else if cached != nil {
			return cachedToStats(cached), nil
		}
	}

	events, err := s.ledger.Query(ctx, LedgerFilter{Date: day})
	if err != nil {
		return nil, err
	}

	from, to := s.calendar.Bounds(day)
	paid, err := s.orders.ListPaid(ctx, from, to)
	if err != nil {
		return nil, fmt.Errorf("list paid orders: %w", err)
	}

	pending, err := s.orders.ListPending(ctx, repository.PendingFilter{From: from, To: to})
	if err != nil {
		return nil, fmt.Errorf("list pending orders: %w", err)
	}

	stats := domain.ComputeStats(day, events, paid, len(pending))

	if s.cache != nil {
		if err := s.cache.SetStats(ctx, key, statsToCached(&stats)); err != nil {
			s.logger.WarnContext(ctx, "stats cache write failed", "date", key, "error", err)
		}
	}

	return &stats, nil
}

// Records returns every payment of day, cash and UPI alike, newest first.
func (s *ReportingService) Records(ctx context.Context, day time.Time) ([]domain.PaymentRecord, error) {
	events, err := s.ledger.Query(ctx, LedgerFilter{Date: day})
	if err != nil {
		return nil, err
	}

	from, to := s.calendar.Bounds(day)
	paid, err := s.orders.ListPaid(ctx, from, to)
	if err != nil {
		return nil, fmt.Errorf("list paid orders: %w", err)
	}

	paidByID := make(map[string]*domain.Order, len(paid))
	records := make([]domain.PaymentRecord, 0, len(events)+len(paid))
	for _, o := range paid {
		paidByID[o.ID] = o
		if o.PaymentMethod == domain.PaymentMethodCash {
			records = append(records, domain.CashRecord{Order: *o})
		}
	}

	for _, e := range events {
		var order *domain.Order
		if e.Matched {
			order, err = s.matchedOrder(ctx, e.OrderID, paidByID)
			if err != nil {
				return nil, err
			}
		}
		records = append(records, domain.RecordForEvent(*e, order))
	}

	sort.SliceStable(records, func(i, j int) bool {
		return records[i].OccurredAt().After(records[j].OccurredAt())
	})

	return records, nil
}

// matchedOrder looks the order up in paid first; a payment matched late may
// belong to an order paid on another day.
func (s *ReportingService) matchedOrder(ctx context.Context, orderID string, paid map[string]*domain.Order) (*domain.Order, error) {
	if o, ok := paid[orderID]; ok {
		return o, nil
	}

	o, err := s.orders.GetByID(ctx, orderID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("get order %s: %w", orderID, err)
	}
	return o, nil
}

// History returns the most recent payments. limit <= 0 uses the default.
func (s *ReportingService) History(ctx context.Context, limit int) ([]*domain.PaymentEvent, error) {
	if limit <= 0 {
		limit = defaultHistoryLimit
	}
	if limit > maxHistoryLimit {
		limit = maxHistoryLimit
	}
	return s.ledger.Query(ctx, LedgerFilter{Limit: limit})
}

// Unmatched returns payments awaiting manual resolution, newest first.
func (s *ReportingService) Unmatched(ctx context.Context) ([]*domain.PaymentEvent, error) {
	matched := false
	return s.ledger.Query(ctx, LedgerFilter{Matched: &matched, Limit: unmatchedLimit})
}

func statsToCached(s *domain.ReconciliationStats) *redis.CachedStats {
	return &redis.CachedStats{
		Date:              s.Date,
		TotalPayments:     s.TotalPayments,
		MatchedPayments:   s.MatchedPayments,
		UnmatchedPayments: s.UnmatchedPayments,
		TotalAmount:       s.TotalAmount,
		CashOrders:        s.CashOrders,
		CashAmount:        s.CashAmount,
		OnlineOrders:      s.OnlineOrders,
		OnlineAmount:      s.OnlineAmount,
		PendingOrders:     s.PendingOrders,
	}
}

func cachedToStats(c *redis.CachedStats) *domain.ReconciliationStats {
	return &domain.ReconciliationStats{
		Date:              c.Date,
		TotalPayments:     c.TotalPayments,
		MatchedPayments:   c.MatchedPayments,
		UnmatchedPayments: c.UnmatchedPayments,
		TotalAmount:       c.TotalAmount,
		CashOrders:        c.CashOrders,
		CashAmount:        c.CashAmount,
		OnlineOrders:      c.OnlineOrders,
		OnlineAmount:      c.OnlineAmount,
		PendingOrders:     c.PendingOrders,
	}
}
