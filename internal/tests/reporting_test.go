package tests

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"reconcile/internal/domain"
)

// runDayScenario plays a day: an auto match, an unmatched payment, a
// redelivery, a manual match and a cash payment.
func runDayScenario(t *testing.T, h *harness, at time.Time) {
	t.Helper()
	ctx := context.Background()

	h.addPendingOrder("O1", "450.00", at)
	h.addPendingOrder("O2", "450.00", at.Add(5*time.Minute))
	h.addPendingOrder("O4", "220.00", at)

	steps := []func() error{
		func() error {
			_, err := h.matching.HandlePayment(ctx, payment("tx1", "450.00", at.Add(6*time.Minute)))
			return err
		},
		func() error {
			_, err := h.matching.HandlePayment(ctx, payment("tx2", "999.00", at.Add(7*time.Minute)))
			return err
		},
		func() error {
			_, err := h.matching.HandlePayment(ctx, payment("tx1", "450.00", at.Add(6*time.Minute)))
			return err
		},
		func() error {
			_, err := h.matching.HandlePayment(ctx, payment("tx3", "300.00", at.Add(8*time.Minute)))
			if err != nil {
				return err
			}
			h.addPendingOrder("O3", "300.00", at.Add(9*time.Minute))
			return h.matching.ManualMatch(ctx, "tx3", "O3")
		},
		func() error {
			return h.matching.MarkAsCash(ctx, "O4")
		},
	}

	for i, step := range steps {
		if err := step(); err != nil {
			t.Fatalf("step %d: %v", i+1, err)
		}
	}
}

func TestStats_AfterDayScenario(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)

	runDayScenario(t, h, baseTime)

	stats, err := h.reporting.Stats(ctx, baseTime)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if stats.TotalPayments != 3 {
		t.Errorf("expected 3 payments, got %d", stats.TotalPayments)
	}
	if stats.MatchedPayments != 2 {
		t.Errorf("expected 2 matched, got %d", stats.MatchedPayments)
	}
	if stats.UnmatchedPayments != 1 {
		t.Errorf("expected 1 unmatched, got %d", stats.UnmatchedPayments)
	}

	want := decimal.RequireFromString("750.00")
	if !stats.TotalAmount.Equal(want) {
		t.Errorf("expected total amount %s, got %s", want, stats.TotalAmount)
	}

	// O2 is the only order still awaiting payment.
	if stats.PendingOrders != 1 {
		t.Errorf("expected 1 pending order, got %d", stats.PendingOrders)
	}
}

func TestStats_EmptyDay(t *testing.T) {
	h := newHarness(t)

	stats, err := h.reporting.Stats(context.Background(), baseTime)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if stats.TotalPayments != 0 || !stats.TotalAmount.IsZero() {
		t.Errorf("expected empty stats, got %+v", stats)
	}
}

func TestStats_CachedUntilNextMutation(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)

	if _, err := h.matching.HandlePayment(ctx, payment("tx1", "10.00", baseTime)); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	first, err := h.reporting.Stats(ctx, baseTime)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if first.TotalPayments != 1 {
		t.Fatalf("expected 1 payment, got %d", first.TotalPayments)
	}

	// Served from cache while the ledger is unchanged.
	h.payments.ListError = fmt.Errorf("ledger should not be read")
	if _, err := h.reporting.Stats(ctx, baseTime); err != nil {
		t.Fatalf("expected cached stats, got %v", err)
	}
	h.payments.ListError = nil

	if _, err := h.matching.HandlePayment(ctx, payment("tx2", "20.00", baseTime)); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	second, err := h.reporting.Stats(ctx, baseTime)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if second.TotalPayments != 2 {
		t.Errorf("expected stats recomputed after a new payment, got %d", second.TotalPayments)
	}
}

func TestRecords_CoversEveryKind(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)

	// Settlement stamps paid_at with the current time; run the day today.
	now := time.Now().UTC().Truncate(time.Second)
	runDayScenario(t, h, now.Add(-10*time.Minute))

	day := h.orders.GetOrder("O4").PaidAt
	if h.calendar.Key(day) != h.calendar.Key(now.Add(-10*time.Minute)) {
		t.Skip("scenario straddles midnight")
	}
	records, err := h.reporting.Records(ctx, day)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	kinds := map[domain.RecordKind]int{}
	for _, r := range records {
		kinds[r.Kind()]++
	}

	if kinds[domain.RecordKindUPIMatched] != 2 {
		t.Errorf("expected 2 matched UPI records, got %d", kinds[domain.RecordKindUPIMatched])
	}
	if kinds[domain.RecordKindUPIUnmatched] != 1 {
		t.Errorf("expected 1 unmatched UPI record, got %d", kinds[domain.RecordKindUPIUnmatched])
	}
	if kinds[domain.RecordKindCash] != 1 {
		t.Errorf("expected 1 cash record, got %d", kinds[domain.RecordKindCash])
	}

	for i := 1; i < len(records); i++ {
		if records[i].OccurredAt().After(records[i-1].OccurredAt()) {
			t.Fatalf("records not newest first at index %d", i)
		}
	}

	for _, r := range records {
		if m, ok := r.(domain.UPIMatchedRecord); ok && m.Order == nil {
			t.Errorf("expected matched record %s to carry its order", m.Event.TransactionID)
		}
	}
}

func TestHistory_Limits(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)

	for i := 0; i < 60; i++ {
		h.payments.AddEvent(&domain.PaymentEvent{
			ID:            fmt.Sprintf("id-%d", i),
			TransactionID: fmt.Sprintf("tx-%02d", i),
			Amount:        decimal.RequireFromString("5.00"),
			Timestamp:     baseTime.Add(time.Duration(i) * time.Minute),
			CreatedAt:     baseTime.Add(time.Duration(i) * time.Minute),
		})
	}

	history, err := h.reporting.History(ctx, 0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(history) != 50 {
		t.Errorf("expected default limit of 50, got %d", len(history))
	}
	if history[0].TransactionID != "tx-59" {
		t.Errorf("expected newest first, got %s", history[0].TransactionID)
	}

	history, err = h.reporting.History(ctx, 5)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(history) != 5 {
		t.Errorf("expected 5 entries, got %d", len(history))
	}

	history, err = h.reporting.History(ctx, 10000)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(history) != 60 {
		t.Errorf("expected all 60 entries under the cap, got %d", len(history))
	}
}

func TestUnmatched_ExcludesMatched(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)

	runDayScenario(t, h, baseTime)

	unmatched, err := h.reporting.Unmatched(ctx)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(unmatched) != 1 || unmatched[0].TransactionID != "tx2" {
		t.Errorf("expected only tx2 unmatched, got %d entries", len(unmatched))
	}
}
