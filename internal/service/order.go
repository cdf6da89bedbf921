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

// OrderService mirrors orders pushed by the order system and keeps the
// pending registry in step with them.
type OrderService struct {
	orders     repository.OrderRepository
	registry   *Registry
	matching   *MatchingService
	statsCache redis.StatsCacheInterface // Optional
	notifier   *NotificationService      // Optional
	logger     *slog.Logger
}

// NewOrderService creates a new OrderService.
func NewOrderService(
	orders repository.OrderRepository,
	registry *Registry,
	matching *MatchingService,
	statsCache redis.StatsCacheInterface,
	notifier *NotificationService,
	logger *slog.Logger,
) *OrderService {
	return &OrderService{
		orders:     orders,
		registry:   registry,
		matching:   matching,
		statsCache: statsCache,
		notifier:   notifier,
		logger:     logger,
	}
}

// OrderInput is an order as placed in the order system.
type OrderInput struct {
	ID           string
	CustomerName string
	TableNumber  string
	Items        []domain.OrderItem
	Amount       decimal.Decimal
	Status       domain.OrderStatus // Empty means pending
	CreatedAt    time.Time          // Zero means "now"
}

// Upsert stores an order. Payment fields are owned by reconciliation and are
// never taken from the input.
func (s *OrderService) Upsert(ctx context.Context, in OrderInput) (*domain.Order, error) {
	id := strings.TrimSpace(in.ID)
	if id == "" {
		return nil, ErrInvalidOrderID
	}
	if !domain.ValidAmount(in.Amount) {
		return nil, ErrInvalidAmount
	}
	if in.Status == "" {
		in.Status = domain.OrderStatusPending
	}
	if !in.Status.Valid() {
		return nil, ErrInvalidOrderStatus
	}
	for _, it := range in.Items {
		if strings.TrimSpace(it.Name) == "" || it.Quantity <= 0 || it.Price.IsNegative() {
			return nil, ErrInvalidOrderItems
		}
	}

	now := time.Now()
	if in.CreatedAt.IsZero() {
		in.CreatedAt = now
	}

	order := &domain.Order{
		ID:            id,
		CustomerName:  in.CustomerName,
		TableNumber:   in.TableNumber,
		Items:         in.Items,
		Amount:        in.Amount,
		Status:        in.Status,
		PaymentStatus: domain.PaymentStatusPending,
		CreatedAt:     in.CreatedAt,
		UpdatedAt:     now,
	}

	if err := s.orders.Upsert(ctx, order); err != nil {
		return nil, fmt.Errorf("upsert order %s: %w", id, err)
	}

	// Re-read: an existing paid order keeps its payment fields.
	stored, err := s.orders.GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("get order %s: %w", id, err)
	}

	s.refresh(ctx, stored)
	if s.notifier != nil {
		s.notifier.Publish(ctx, Notification{Type: NotificationOrderUpserted, OrderID: id, Amount: &stored.Amount})
	}
	return stored, nil
}

// UpdateStatus applies a kitchen status change. Cancelling goes through the
// same settlement path as an operator cancel.
func (s *OrderService) UpdateStatus(ctx context.Context, id string, status domain.OrderStatus) (*domain.Order, error) {
	if strings.TrimSpace(id) == "" {
		return nil, ErrInvalidOrderID
	}
	if !status.Valid() {
		return nil, ErrInvalidOrderStatus
	}

	if status == domain.OrderStatusCancelled {
		if err := s.matching.Cancel(ctx, id); err != nil {
			return nil, err
		}
		return s.Get(ctx, id)
	}

	err := s.orders.UpdateStatus(ctx, id, status, time.Now())
	if errors.Is(err, repository.ErrNotFound) {
		// Either unknown or cancelled; a cancelled order never comes back.
		existing, getErr := s.Get(ctx, id)
		if getErr != nil {
			return nil, getErr
		}
		if existing.Status == domain.OrderStatusCancelled {
			return nil, ErrOrderNotPending
		}
		return nil, ErrOrderNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("update order %s status: %w", id, err)
	}

	order, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	s.refresh(ctx, order)
	return order, nil
}

// Get returns an order by id.
func (s *OrderService) Get(ctx context.Context, id string) (*domain.Order, error) {
	order, err := s.orders.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrOrderNotFound
		}
		return nil, err
	}
	return order, nil
}

// refresh invalidates every cache the order may appear in.
func (s *OrderService) refresh(ctx context.Context, order *domain.Order) {
	if err := s.registry.Remove(ctx, order.ID); err != nil {
		s.logger.WarnContext(ctx, "pending cache eviction failed", "order_id", order.ID, "error", err)
	}
	if err := s.registry.Invalidate(ctx, order.CreatedAt); err != nil {
		s.logger.WarnContext(ctx, "pending cache invalidation failed", "order_id", order.ID, "error", err)
	}
	if s.statsCache != nil {
		if err := s.statsCache.InvalidateStats(ctx); err != nil {
			s.logger.WarnContext(ctx, "stats cache invalidation failed", "error", err)
		}
	}
}
