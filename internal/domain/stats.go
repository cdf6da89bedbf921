package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// ReconciliationStats aggregates one business day. It is always derived from
// the ledger and the orders table and never stored as a source of truth.
type ReconciliationStats struct {
	Date              time.Time
	TotalPayments     int
	MatchedPayments   int
	UnmatchedPayments int
	TotalAmount       decimal.Decimal // Sum of matched UPI payments

	CashOrders    int
	CashAmount    decimal.Decimal
	OnlineOrders  int
	OnlineAmount  decimal.Decimal
	PendingOrders int
}

// ComputeStats derives the day's stats from ledger entries, paid orders and
// the number of orders still pending.
func ComputeStats(date time.Time, events []*PaymentEvent, paidOrders []*Order, pendingOrders int) ReconciliationStats {
	stats := ReconciliationStats{
		Date:          date,
		TotalAmount:   decimal.Zero,
		CashAmount:    decimal.Zero,
		OnlineAmount:  decimal.Zero,
		PendingOrders: pendingOrders,
	}

	for _, e := range events {
		stats.TotalPayments++
		if e.Matched {
			stats.MatchedPayments++
			stats.TotalAmount = stats.TotalAmount.Add(e.Amount)
		} else {
			stats.UnmatchedPayments++
		}
	}

	for _, o := range paidOrders {
		switch o.PaymentMethod {
		case PaymentMethodCash:
			stats.CashOrders++
			stats.CashAmount = stats.CashAmount.Add(o.Amount)
		case PaymentMethodOnline:
			stats.OnlineOrders++
			stats.OnlineAmount = stats.OnlineAmount.Add(o.Amount)
		}
	}

	return stats
}
