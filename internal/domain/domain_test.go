package domain

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func amount(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func TestValidAmount(t *testing.T) {
	valid := []string{"0.01", "1", "450", "450.00", "99999.99"}
	for _, s := range valid {
		assert.True(t, ValidAmount(amount(s)), s)
	}

	invalid := []string{"0", "0.00", "-1", "10.001", "0.005"}
	for _, s := range invalid {
		assert.False(t, ValidAmount(amount(s)), s)
	}
}

func TestSameAmount(t *testing.T) {
	assert.True(t, SameAmount(amount("450"), amount("450.00")))
	assert.False(t, SameAmount(amount("450.00"), amount("450.01")))
	assert.True(t, SumAmounts(amount("0.10"), amount("0.20")).Equal(amount("0.30")))
	assert.True(t, SumAmounts().IsZero())
}

func TestOrderIsPending(t *testing.T) {
	o := &Order{Status: OrderStatusCooking, PaymentStatus: PaymentStatusPending}
	assert.True(t, o.IsPending())

	o.Status = OrderStatusCancelled
	assert.False(t, o.IsPending())

	o.Status = OrderStatusServed
	o.PaymentStatus = PaymentStatusPaid
	assert.False(t, o.IsPending())

	assert.False(t, OrderStatus("eaten").Valid())
}

func TestRecordForEvent(t *testing.T) {
	at := time.Date(2024, 3, 15, 10, 0, 0, 0, time.UTC)
	order := &Order{ID: "O1", Amount: amount("450")}

	matched := RecordForEvent(PaymentEvent{TransactionID: "tx1", Amount: amount("450"), Matched: true, OrderID: "O1", Timestamp: at}, order)
	assert.Equal(t, RecordKindUPIMatched, matched.Kind())
	assert.Equal(t, at, matched.OccurredAt())
	assert.Same(t, order, matched.(UPIMatchedRecord).Order)

	unmatched := RecordForEvent(PaymentEvent{TransactionID: "tx2", Amount: amount("999")}, nil)
	assert.Equal(t, RecordKindUPIUnmatched, unmatched.Kind())
	assert.True(t, unmatched.Amount().Equal(amount("999")))

	cash := CashRecord{Order: Order{ID: "O4", Amount: amount("220"), PaidAt: at}}
	assert.Equal(t, RecordKindCash, cash.Kind())
	assert.True(t, cash.Amount().Equal(amount("220")))
}

func TestComputeStats(t *testing.T) {
	day := time.Date(2024, 3, 15, 0, 0, 0, 0, time.UTC)
	events := []*PaymentEvent{
		{TransactionID: "tx1", Amount: amount("450.00"), Matched: true},
		{TransactionID: "tx2", Amount: amount("999.00")},
		{TransactionID: "tx3", Amount: amount("300.00"), Matched: true},
	}
	paid := []*Order{
		{ID: "O1", Amount: amount("450.00"), PaymentMethod: PaymentMethodOnline},
		{ID: "O3", Amount: amount("300.00"), PaymentMethod: PaymentMethodOnline},
		{ID: "O4", Amount: amount("220.00"), PaymentMethod: PaymentMethodCash},
	}

	stats := ComputeStats(day, events, paid, 1)

	assert.Equal(t, 3, stats.TotalPayments)
	assert.Equal(t, 2, stats.MatchedPayments)
	assert.Equal(t, 1, stats.UnmatchedPayments)
	assert.True(t, stats.TotalAmount.Equal(amount("750")), stats.TotalAmount.String())
	assert.Equal(t, 1, stats.CashOrders)
	assert.True(t, stats.CashAmount.Equal(amount("220")))
	assert.Equal(t, 2, stats.OnlineOrders)
	assert.True(t, stats.OnlineAmount.Equal(amount("750")))
	assert.Equal(t, 1, stats.PendingOrders)

	empty := ComputeStats(day, nil, nil, 0)
	assert.Zero(t, empty.TotalPayments)
	assert.True(t, empty.TotalAmount.IsZero())
}

func TestMatchingSettingsWindow(t *testing.T) {
	s := DefaultMatchingSettings()
	assert.True(t, s.AutoMatch)
	assert.Equal(t, 15*time.Minute, s.Window())

	s.PaymentTimeoutMinutes = 0
	assert.Zero(t, s.Window())

	assert.True(t, SoundboxProviderGPay.Valid())
	assert.False(t, SoundboxProvider("bharatpe").Valid())
}
