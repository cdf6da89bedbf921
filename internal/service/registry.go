package service

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/shopspring/decimal"

	"reconcile/internal/domain"
	"reconcile/internal/redis"
	"reconcile/internal/repository"
)

// Registry is the view of orders still awaiting payment. Reads go through
// the Redis cache when one is configured; the orders table stays authoritative.
type Registry struct {
	orders   repository.OrderRepository
	cache    redis.PendingCacheInterface // Optional
	calendar *Calendar
	logger   *slog.Logger
}

// NewRegistry creates a new Registry. cache may be nil.
func NewRegistry(orders repository.OrderRepository, cache redis.PendingCacheInterface, calendar *Calendar, logger *slog.Logger) *Registry {
	return &Registry{
		orders:   orders,
		cache:    cache,
		calendar: calendar,
		logger:   logger,
	}
}

// ListPending returns the orders created on day that still await payment, oldest first.
func (r *Registry) ListPending(ctx context.Context, day time.Time) ([]domain.PendingOrder, error) {
	key := r.calendar.Key(day)

	// The generation is read before the store so a concurrent settlement
	// makes the write below a no-op instead of caching a paid order.
	cacheable := false
	var generation int64
	if r.cache != nil {
		cached, ok, err := r.cache.GetPending(ctx, key)
		if err != nil {
			r.logger.WarnContext(ctx, "pending cache read failed", "date", key, "error", err)
		} else if ok {
			return cachedToPending(cached), nil
		}

		generation, err = r.cache.PendingGeneration(ctx)
		if err != nil {
			r.logger.WarnContext(ctx, "pending cache generation read failed", "date", key, "error", err)
		} else {
			cacheable = true
		}
	}

	from, to := r.calendar.Bounds(day)
	orders, err := r.orders.ListPending(ctx, repository.PendingFilter{From: from, To: to})
	if err != nil {
		return nil, fmt.Errorf("list pending orders: %w", err)
	}

	pending := make([]domain.PendingOrder, 0, len(orders))
	for _, o := range orders {
		pending = append(pending, o.Pending())
	}

	if cacheable {
		stored, err := r.cache.SetPending(ctx, key, generation, pendingToCached(pending))
		switch {
		case err != nil:
			r.logger.WarnContext(ctx, "pending cache write failed", "date", key, "error", err)
		case !stored:
			r.logger.DebugContext(ctx, "pending cache write skipped, evicted meanwhile", "date", key)
		}
	}

	return pending, nil
}

// Candidates returns pending orders whose amount equals amount exactly and that
// were created at or after since, oldest first. A zero since means no lower bound.
// Candidates are always read from the store; settlement re-checks them anyway.
func (r *Registry) Candidates(ctx context.Context, amount decimal.Decimal, since time.Time) ([]*domain.Order, error) {
	orders, err := r.orders.ListPending(ctx, repository.PendingFilter{
		From:   since,
		Amount: &amount,
	})
	if err != nil {
		return nil, fmt.Errorf("list candidates: %w", err)
	}

	// The store filters by amount already; keep only exact equals in case of
	// a coarser comparison there.
	out := orders[:0]
	for _, o := range orders {
		if domain.SameAmount(o.Amount, amount) {
			out = append(out, o)
		}
	}
	return out, nil
}

// Remove evicts the order from the cache. Unknown ids are a no-op.
func (r *Registry) Remove(ctx context.Context, orderID string) error {
	if r.cache == nil {
		return nil
	}
	return r.cache.RemovePendingOrder(ctx, orderID)
}

// Invalidate drops the cached pending list for day.
func (r *Registry) Invalidate(ctx context.Context, day time.Time) error {
	if r.cache == nil {
		return nil
	}
	return r.cache.InvalidatePending(ctx, r.calendar.Key(day))
}

func pendingToCached(orders []domain.PendingOrder) []redis.CachedPendingOrder {
	out := make([]redis.CachedPendingOrder, 0, len(orders))
	for _, o := range orders {
		items := make([]redis.CachedOrderItem, 0, len(o.Items))
		for _, it := range o.Items {
			items = append(items, redis.CachedOrderItem{
				MenuItemID: it.MenuItemID,
				Name:       it.Name,
				Quantity:   it.Quantity,
				Price:      it.Price,
			})
		}
		out = append(out, redis.CachedPendingOrder{
			OrderID:      o.OrderID,
			CustomerName: o.CustomerName,
			TableNumber:  o.TableNumber,
			Amount:       o.Amount,
			Items:        items,
			CreatedAt:    o.CreatedAt,
		})
	}
	return out
}

func cachedToPending(cached []redis.CachedPendingOrder) []domain.PendingOrder {
	out := make([]domain.PendingOrder, 0, len(cached))
	for _, c := range cached {
		items := make([]domain.OrderItem, 0, len(c.Items))
		for _, it := range c.Items {
			items = append(items, domain.OrderItem{
				MenuItemID: it.MenuItemID,
				Name:       it.Name,
				Quantity:   it.Quantity,
				Price:      it.Price,
			})
		}
		out = append(out, domain.PendingOrder{
			OrderID:      c.OrderID,
			CustomerName: c.CustomerName,
			TableNumber:  c.TableNumber,
			Amount:       c.Amount,
			Items:        items,
			CreatedAt:    c.CreatedAt,
		})
	}
	return out
}
