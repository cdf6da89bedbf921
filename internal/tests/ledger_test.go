package tests

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"reconcile/internal/domain"
	"reconcile/internal/service"
)

func TestLedger_RecordAssignsIdentity(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)

	event := &domain.PaymentEvent{
		TransactionID: "tx1",
		Amount:        decimal.RequireFromString("450.00"),
	}
	if err := h.ledger.Record(ctx, event); err != nil {
		t.Fatalf("record failed: %v", err)
	}
	if event.ID == "" || event.CreatedAt.IsZero() {
		t.Error("expected id and created_at assigned")
	}
	if !event.Timestamp.Equal(event.CreatedAt) {
		t.Error("expected missing provider timestamp to default to created_at")
	}

	dup := &domain.PaymentEvent{TransactionID: "tx1", Amount: decimal.RequireFromString("1.00")}
	if err := h.ledger.Record(ctx, dup); !errors.Is(err, service.ErrDuplicateTransaction) {
		t.Errorf("expected ErrDuplicateTransaction, got %v", err)
	}

	stored, err := h.ledger.Get(ctx, "tx1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !stored.Amount.Equal(decimal.RequireFromString("450")) {
		t.Errorf("expected first delivery kept, got amount %s", stored.Amount)
	}
}

func TestLedger_MarkMatchedOnce(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)

	if err := h.ledger.Record(ctx, &domain.PaymentEvent{TransactionID: "tx1", Amount: decimal.RequireFromString("5.00")}); err != nil {
		t.Fatalf("record failed: %v", err)
	}

	if err := h.ledger.MarkMatched(ctx, "tx1", "O1", domain.MatchMethodManual); err != nil {
		t.Fatalf("mark matched failed: %v", err)
	}
	if err := h.ledger.MarkMatched(ctx, "tx1", "O2", domain.MatchMethodManual); !errors.Is(err, service.ErrAlreadyMatched) {
		t.Errorf("expected ErrAlreadyMatched, got %v", err)
	}
	if err := h.ledger.MarkMatched(ctx, "tx-missing", "O2", domain.MatchMethodManual); !errors.Is(err, service.ErrPaymentNotFound) {
		t.Errorf("expected ErrPaymentNotFound, got %v", err)
	}

	event := h.payments.GetEvent("tx1")
	if event.OrderID != "O1" || event.MatchedAt.IsZero() {
		t.Errorf("expected first match kept, got %+v", event)
	}
}

func TestLedger_QueryByDate(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)

	for i, at := range []time.Time{
		baseTime.Add(-24 * time.Hour),
		baseTime,
		baseTime.Add(13*time.Hour + 59*time.Minute),
		baseTime.Add(14 * time.Hour), // Midnight of the next day
	} {
		event := &domain.PaymentEvent{
			TransactionID: "tx" + string(rune('a'+i)),
			Amount:        decimal.RequireFromString("1.00"),
			Timestamp:     at,
		}
		if err := h.ledger.Record(ctx, event); err != nil {
			t.Fatalf("record failed: %v", err)
		}
	}

	events, err := h.ledger.Query(ctx, service.LedgerFilter{Date: baseTime})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(events) != 2 {
		t.Fatalf("expected 2 events on the day, got %d", len(events))
	}
	if events[0].TransactionID != "txc" || events[1].TransactionID != "txb" {
		t.Errorf("expected newest first, got %s then %s", events[0].TransactionID, events[1].TransactionID)
	}
}

func TestCalendar_BusinessDayInTimeZone(t *testing.T) {
	ist, err := time.LoadLocation("Asia/Kolkata")
	if err != nil {
		t.Skipf("time zone data unavailable: %v", err)
	}
	cal := service.NewCalendar(ist)

	// 20:00 UTC is 01:30 the next day in India.
	late := time.Date(2024, 3, 15, 20, 0, 0, 0, time.UTC)
	if got := cal.Key(cal.Day(late)); got != "2024-03-16" {
		t.Errorf("expected 2024-03-16, got %s", got)
	}

	day, err := cal.Parse("2024-03-16")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	from, to := cal.Bounds(day)
	if !from.Equal(time.Date(2024, 3, 15, 18, 30, 0, 0, time.UTC)) {
		t.Errorf("unexpected day start %s", from.UTC())
	}
	if to.Sub(from) != 24*time.Hour {
		t.Errorf("expected a 24h day, got %s", to.Sub(from))
	}

	for _, bad := range []string{"", "16-03-2024", "2024-13-01", "today"} {
		if _, err := cal.Parse(bad); !errors.Is(err, service.ErrInvalidDate) {
			t.Errorf("%q: expected ErrInvalidDate, got %v", bad, err)
		}
	}
}

func TestRegistry_RemoveUnknownIsNoop(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)

	h.addPendingOrder("O1", "10.00", baseTime)
	if _, err := h.registry.ListPending(ctx, baseTime); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if err := h.registry.Remove(ctx, "O-unknown"); err != nil {
		t.Errorf("expected no-op, got %v", err)
	}
	if !h.cache.HasPending("2024-03-15") {
		t.Error("expected cached list untouched by unknown id")
	}

	// Served from cache on the second read.
	if _, err := h.registry.ListPending(ctx, baseTime); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if h.cache.GetPendingCallCount != 2 {
		t.Errorf("expected 2 cache reads, got %d", h.cache.GetPendingCallCount)
	}
}

func TestRegistry_DoesNotCacheListSettledMeanwhile(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)

	h.addPendingOrder("O1", "10.00", baseTime)

	// O1 is settled after the store read began but before the cache write.
	settled := false
	h.orders.OnListPending = func() {
		if settled {
			return
		}
		settled = true
		if err := h.registry.Remove(ctx, "O1"); err != nil {
			t.Errorf("unexpected error: %v", err)
		}
	}

	pending, err := h.registry.ListPending(ctx, baseTime)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(pending) != 1 {
		t.Fatalf("expected the stale read to return O1, got %d orders", len(pending))
	}
	if h.cache.HasPending("2024-03-15") {
		t.Error("expected a list read across an eviction not to be cached")
	}

	// The next read starts after the eviction and is cached.
	if _, err := h.registry.ListPending(ctx, baseTime); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !h.cache.HasPending("2024-03-15") {
		t.Error("expected a fresh read to be cached")
	}
}

func TestRegistry_WithoutCache(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	registry := service.NewRegistry(h.orders, nil, h.calendar, nil)

	h.addPendingOrder("O2", "20.00", baseTime.Add(time.Minute))
	h.addPendingOrder("O1", "10.00", baseTime)

	pending, err := registry.ListPending(ctx, baseTime)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(pending) != 2 || pending[0].OrderID != "O1" {
		t.Errorf("expected oldest first, got %+v", pending)
	}
	if err := registry.Remove(ctx, "O1"); err != nil {
		t.Errorf("expected nil-cache remove to succeed, got %v", err)
	}
}
