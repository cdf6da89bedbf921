package tests

import (
	"context"
	"errors"
	"testing"
	"time"

	"reconcile/internal/domain"
	"reconcile/internal/service"
)

func TestManualMatch_SettlesPendingOrder(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)

	if _, err := h.matching.HandlePayment(ctx, payment("tx3", "300.00", baseTime)); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	h.addPendingOrder("O3", "300.00", baseTime.Add(time.Minute))

	if err := h.matching.ManualMatch(ctx, "tx3", "O3"); err != nil {
		t.Fatalf("manual match failed: %v", err)
	}

	o3 := h.orders.GetOrder("O3")
	if o3.PaymentStatus != domain.PaymentStatusPaid {
		t.Errorf("expected O3 paid, got %s", o3.PaymentStatus)
	}

	event := h.payments.GetEvent("tx3")
	if !event.Matched || event.OrderID != "O3" || event.MatchMethod != domain.MatchMethodManual {
		t.Errorf("unexpected ledger entry: %+v", event)
	}

	pending, err := h.registry.ListPending(ctx, baseTime)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	for _, p := range pending {
		if p.OrderID == "O3" {
			t.Error("expected O3 to leave the pending registry")
		}
	}
}

func TestManualMatch_AllowsDifferingAmounts(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)

	if _, err := h.matching.HandlePayment(ctx, payment("tx1", "99.00", baseTime)); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	h.addPendingOrder("O1", "100.00", baseTime)

	if err := h.matching.ManualMatch(ctx, "tx1", "O1"); err != nil {
		t.Fatalf("expected operator override to succeed, got %v", err)
	}
	if h.orders.GetOrder("O1").PaymentStatus != domain.PaymentStatusPaid {
		t.Error("expected O1 paid")
	}
}

func TestManualMatch_Guards(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)

	h.addPendingOrder("O1", "450.00", baseTime)
	h.addPendingOrder("O2", "120.00", baseTime)
	if _, err := h.matching.HandlePayment(ctx, payment("tx-matched", "450.00", baseTime.Add(time.Minute))); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, err := h.matching.HandlePayment(ctx, payment("tx-free", "999.00", baseTime.Add(time.Minute))); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	cases := []struct {
		name    string
		txID    string
		orderID string
		want    error
	}{
		{"unknown transaction", "tx-missing", "O2", service.ErrPaymentNotFound},
		{"unknown order", "tx-free", "O-missing", service.ErrOrderNotFound},
		{"payment already matched", "tx-matched", "O2", service.ErrAlreadyMatched},
		{"order already paid", "tx-free", "O1", service.ErrOrderNotPending},
		{"blank order id", "tx-free", " ", service.ErrInvalidOrderID},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := h.matching.ManualMatch(ctx, tc.txID, tc.orderID)
			if !errors.Is(err, tc.want) {
				t.Errorf("expected %v, got %v", tc.want, err)
			}
		})
	}

	if h.orders.GetOrder("O2").PaymentStatus != domain.PaymentStatusPending {
		t.Error("expected O2 untouched by rejected overrides")
	}
	if h.payments.GetEvent("tx-free").Matched {
		t.Error("expected tx-free to remain unmatched")
	}
}

func TestManualMatch_LockedOrder(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)

	if _, err := h.matching.HandlePayment(ctx, payment("tx1", "80.00", baseTime)); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	h.addPendingOrder("O1", "80.00", baseTime.Add(time.Minute))
	h.locks.Hold("O1")

	err := h.matching.ManualMatch(ctx, "tx1", "O1")
	if !errors.Is(err, service.ErrOrderLocked) {
		t.Errorf("expected ErrOrderLocked, got %v", err)
	}
}

func TestMarkAsCash_CreatesNoLedgerEntry(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)

	h.addPendingOrder("O4", "220.00", baseTime)

	if err := h.matching.MarkAsCash(ctx, "O4"); err != nil {
		t.Fatalf("mark as cash failed: %v", err)
	}

	o4 := h.orders.GetOrder("O4")
	if o4.PaymentStatus != domain.PaymentStatusPaid || o4.PaymentMethod != domain.PaymentMethodCash {
		t.Errorf("expected O4 paid in cash, got %s/%s", o4.PaymentStatus, o4.PaymentMethod)
	}
	if o4.TransactionID != "" {
		t.Errorf("expected no transaction id, got %q", o4.TransactionID)
	}
	if h.payments.Count() != 0 {
		t.Errorf("expected no ledger entries, got %d", h.payments.Count())
	}

	// A second cash mark finds nothing pending.
	if err := h.matching.MarkAsCash(ctx, "O4"); !errors.Is(err, service.ErrOrderNotFound) {
		t.Errorf("expected ErrOrderNotFound, got %v", err)
	}
}

func TestCancel_RemovesFromPending(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)

	h.addPendingOrder("O5", "150.00", baseTime)

	if err := h.matching.Cancel(ctx, "O5"); err != nil {
		t.Fatalf("cancel failed: %v", err)
	}

	o5 := h.orders.GetOrder("O5")
	if o5.Status != domain.OrderStatusCancelled {
		t.Errorf("expected cancelled, got %s", o5.Status)
	}

	// Cancelled orders are never candidates.
	outcome, err := h.matching.HandlePayment(ctx, payment("tx1", "150.00", baseTime.Add(time.Minute)))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if outcome.Matched {
		t.Errorf("expected cancelled order to be skipped, matched %s", outcome.OrderID)
	}

	if err := h.matching.Cancel(ctx, "O5"); !errors.Is(err, service.ErrOrderNotFound) {
		t.Errorf("expected ErrOrderNotFound on second cancel, got %v", err)
	}
	if err := h.matching.Cancel(ctx, "O-missing"); !errors.Is(err, service.ErrOrderNotFound) {
		t.Errorf("expected ErrOrderNotFound for unknown order, got %v", err)
	}
}

func TestCancel_PaidOrderIsNotFound(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)

	h.addPendingOrder("O1", "450.00", baseTime)
	if _, err := h.matching.HandlePayment(ctx, payment("tx1", "450.00", baseTime.Add(time.Minute))); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if err := h.matching.Cancel(ctx, "O1"); !errors.Is(err, service.ErrOrderNotFound) {
		t.Errorf("expected ErrOrderNotFound, got %v", err)
	}
	if h.orders.GetOrder("O1").Status == domain.OrderStatusCancelled {
		t.Error("expected paid order to keep its status")
	}
}

func TestOverrides_PublishEvents(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)

	h.addPendingOrder("O1", "10.00", baseTime)
	h.addPendingOrder("O2", "20.00", baseTime)

	events, cancel := h.notifier.Subscribe()
	defer cancel()

	if err := h.matching.MarkAsCash(ctx, "O1"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := h.matching.Cancel(ctx, "O2"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	want := []struct {
		typ     service.NotificationType
		orderID string
	}{
		{service.NotificationOrderPaidCash, "O1"},
		{service.NotificationOrderCancelled, "O2"},
	}
	for _, w := range want {
		select {
		case n := <-events:
			if n.Type != w.typ || n.OrderID != w.orderID {
				t.Errorf("expected %s for %s, got %s for %s", w.typ, w.orderID, n.Type, n.OrderID)
			}
		case <-time.After(time.Second):
			t.Fatalf("timed out waiting for %s", w.typ)
		}
	}
}
