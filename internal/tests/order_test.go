package tests

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"reconcile/internal/domain"
	"reconcile/internal/service"
)

func orderInput(id, amount string) service.OrderInput {
	return service.OrderInput{
		ID:           id,
		CustomerName: "Asha",
		TableNumber:  "T4",
		Items: []domain.OrderItem{
			{MenuItemID: "m1", Name: "Masala Dosa", Quantity: 2, Price: decimal.RequireFromString("120.00")},
		},
		Amount:    decimal.RequireFromString(amount),
		CreatedAt: baseTime,
	}
}

func TestOrderUpsert_BecomesCandidate(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)

	// Warm the cache so the upsert has something to invalidate.
	if _, err := h.registry.ListPending(ctx, baseTime); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	order, err := h.orderService.Upsert(ctx, orderInput("O1", "240.00"))
	if err != nil {
		t.Fatalf("upsert failed: %v", err)
	}
	if order.Status != domain.OrderStatusPending || order.PaymentStatus != domain.PaymentStatusPending {
		t.Errorf("expected new order pending, got %s/%s", order.Status, order.PaymentStatus)
	}

	pending, err := h.registry.ListPending(ctx, baseTime)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(pending) != 1 || pending[0].OrderID != "O1" {
		t.Fatalf("expected O1 pending after upsert, got %d orders", len(pending))
	}
	if len(pending[0].Items) != 1 || pending[0].Items[0].Name != "Masala Dosa" {
		t.Errorf("expected items carried through the cache, got %+v", pending[0].Items)
	}

	outcome, err := h.matching.HandlePayment(ctx, payment("tx1", "240", baseTime.Add(time.Minute)))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if outcome.OrderID != "O1" {
		t.Errorf("expected O1 matched, got %q", outcome.OrderID)
	}
}

func TestOrderUpsert_KeepsPaymentFields(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)

	if _, err := h.orderService.Upsert(ctx, orderInput("O1", "240.00")); err != nil {
		t.Fatalf("upsert failed: %v", err)
	}
	if err := h.matching.MarkAsCash(ctx, "O1"); err != nil {
		t.Fatalf("mark as cash failed: %v", err)
	}

	in := orderInput("O1", "240.00")
	in.Status = domain.OrderStatusServed
	order, err := h.orderService.Upsert(ctx, in)
	if err != nil {
		t.Fatalf("upsert failed: %v", err)
	}
	if order.PaymentStatus != domain.PaymentStatusPaid || order.PaymentMethod != domain.PaymentMethodCash {
		t.Errorf("expected payment fields preserved, got %s/%s", order.PaymentStatus, order.PaymentMethod)
	}
	if order.Status != domain.OrderStatusServed {
		t.Errorf("expected status served, got %s", order.Status)
	}
}

func TestOrderUpsert_Validation(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)

	blankID := orderInput(" ", "10.00")

	zero := orderInput("O1", "0")

	badStatus := orderInput("O1", "10.00")
	badStatus.Status = "eaten"

	badItem := orderInput("O1", "10.00")
	badItem.Items = []domain.OrderItem{{Name: "Tea", Quantity: 0, Price: decimal.RequireFromString("10.00")}}

	cases := []struct {
		name string
		in   service.OrderInput
		want error
	}{
		{"blank id", blankID, service.ErrInvalidOrderID},
		{"zero amount", zero, service.ErrInvalidAmount},
		{"unknown status", badStatus, service.ErrInvalidOrderStatus},
		{"zero quantity", badItem, service.ErrInvalidOrderItems},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := h.orderService.Upsert(ctx, tc.in); !errors.Is(err, tc.want) {
				t.Errorf("expected %v, got %v", tc.want, err)
			}
		})
	}
}

func TestOrderUpdateStatus(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)

	h.addPendingOrder("O1", "100.00", baseTime)

	order, err := h.orderService.UpdateStatus(ctx, "O1", domain.OrderStatusCooking)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if order.Status != domain.OrderStatusCooking || !order.IsPending() {
		t.Errorf("expected cooking and still awaiting payment, got %s", order.Status)
	}

	order, err = h.orderService.UpdateStatus(ctx, "O1", domain.OrderStatusCancelled)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if order.Status != domain.OrderStatusCancelled || order.IsPending() {
		t.Errorf("expected cancelled order out of pending, got %s", order.Status)
	}

	if _, err := h.orderService.UpdateStatus(ctx, "O-missing", domain.OrderStatusReady); !errors.Is(err, service.ErrOrderNotFound) {
		t.Errorf("expected ErrOrderNotFound, got %v", err)
	}
	if _, err := h.orderService.UpdateStatus(ctx, "O1", "eaten"); !errors.Is(err, service.ErrInvalidOrderStatus) {
		t.Errorf("expected ErrInvalidOrderStatus, got %v", err)
	}
}

func TestOrderUpdateStatus_CancelledIsTerminal(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)

	h.addPendingOrder("O5", "450.00", baseTime)
	if err := h.matching.Cancel(ctx, "O5"); err != nil {
		t.Fatalf("cancel failed: %v", err)
	}

	if _, err := h.orderService.UpdateStatus(ctx, "O5", domain.OrderStatusCooking); !errors.Is(err, service.ErrOrderNotPending) {
		t.Fatalf("expected ErrOrderNotPending for a cancelled order, got %v", err)
	}

	// A re-push from the order system with the default status keeps it cancelled.
	in := orderInput("O5", "450.00")
	in.Status = ""
	order, err := h.orderService.Upsert(ctx, in)
	if err != nil {
		t.Fatalf("upsert failed: %v", err)
	}
	if order.Status != domain.OrderStatusCancelled {
		t.Errorf("expected order to stay cancelled, got %s", order.Status)
	}

	outcome, err := h.matching.HandlePayment(ctx, payment("tx9", "450.00", baseTime.Add(time.Minute)))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if outcome.Matched {
		t.Errorf("expected cancelled order not to be matched, got %s", outcome.OrderID)
	}
	if got := h.orders.GetOrder("O5"); got.Status != domain.OrderStatusCancelled || got.PaymentStatus != domain.PaymentStatusPending {
		t.Errorf("expected O5 cancelled and unpaid, got %s/%s", got.Status, got.PaymentStatus)
	}
}

func TestOrderUpdateStatus_InvalidatesCaches(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)

	h.addPendingOrder("O1", "100.00", baseTime)

	if _, err := h.registry.ListPending(ctx, baseTime); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	date := h.calendar.Key(baseTime)
	if !h.cache.HasPending(date) {
		t.Fatal("expected pending bucket cached")
	}
	before := atomic.LoadInt32(&h.cache.InvalidateStatsCallCount)

	if _, err := h.orderService.UpdateStatus(ctx, "O1", domain.OrderStatusReady); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if h.cache.HasPending(date) {
		t.Error("expected pending bucket evicted after a status change")
	}
	if atomic.LoadInt32(&h.cache.InvalidateStatsCallCount) == before {
		t.Error("expected stats cache invalidated after a status change")
	}
}
