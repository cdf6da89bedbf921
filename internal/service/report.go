package service

import (
	"time"

	"github.com/shopspring/decimal"

	"reconcile/internal/domain"
)

// PaymentView is the JSON shape of a ledger entry.
type PaymentView struct {
	ID            string          `json:"id"`
	TransactionID string          `json:"transaction_id"`
	Amount        decimal.Decimal `json:"amount"`
	UPIID         string          `json:"upi_id,omitempty"`
	Provider      string          `json:"provider,omitempty"`
	Timestamp     time.Time       `json:"timestamp"`
	Matched       bool            `json:"matched"`
	OrderID       string          `json:"order_id,omitempty"`
	MatchMethod   string          `json:"match_method,omitempty"`
	MatchedAt     *time.Time      `json:"matched_at,omitempty"`
	CreatedAt     time.Time       `json:"created_at"`
}

// OrderItemView is the JSON shape of an order line.
type OrderItemView struct {
	MenuItemID string          `json:"menu_item_id,omitempty"`
	Name       string          `json:"name"`
	Quantity   int             `json:"quantity"`
	Price      decimal.Decimal `json:"price"`
}

// OrderView is the JSON shape of an order.
type OrderView struct {
	OrderID       string          `json:"order_id"`
	CustomerName  string          `json:"customer_name,omitempty"`
	TableNumber   string          `json:"table_number,omitempty"`
	Items         []OrderItemView `json:"items"`
	Amount        decimal.Decimal `json:"amount"`
	Status        string          `json:"status"`
	PaymentStatus string          `json:"payment_status"`
	PaymentMethod string          `json:"payment_method,omitempty"`
	TransactionID string          `json:"transaction_id,omitempty"`
	PaidAt        *time.Time      `json:"paid_at,omitempty"`
	CreatedAt     time.Time       `json:"created_at"`
}

// RecordView is the JSON shape of a PaymentRecord; Kind selects the variant.
type RecordView struct {
	Kind       domain.RecordKind `json:"kind"`
	Amount     decimal.Decimal   `json:"amount"`
	OccurredAt time.Time         `json:"occurred_at"`
	Payment    *PaymentView      `json:"payment,omitempty"`
	Order      *OrderView        `json:"order,omitempty"`
}

// StatsView is the JSON shape of ReconciliationStats.
type StatsView struct {
	Date              string          `json:"date"`
	TotalPayments     int             `json:"total_payments"`
	MatchedPayments   int             `json:"matched_payments"`
	UnmatchedPayments int             `json:"unmatched_payments"`
	TotalAmount       decimal.Decimal `json:"total_amount"`
	CashOrders        int             `json:"cash_orders"`
	CashAmount        decimal.Decimal `json:"cash_amount"`
	OnlineOrders      int             `json:"online_orders"`
	OnlineAmount      decimal.Decimal `json:"online_amount"`
	PendingOrders     int             `json:"pending_orders"`
}

// DailyReport is the archived document for one business day.
type DailyReport struct {
	Date        string       `json:"date"`
	GeneratedAt time.Time    `json:"generated_at"`
	Stats       StatsView    `json:"stats"`
	Records     []RecordView `json:"records"`
}

// NewPaymentView converts a ledger entry.
func NewPaymentView(e *domain.PaymentEvent) PaymentView {
	v := PaymentView{
		ID:            e.ID,
		TransactionID: e.TransactionID,
		Amount:        e.Amount.Round(domain.AmountScale),
		UPIID:         e.UPIID,
		Provider:      e.Provider,
		Timestamp:     e.Timestamp,
		Matched:       e.Matched,
		OrderID:       e.OrderID,
		MatchMethod:   string(e.MatchMethod),
		CreatedAt:     e.CreatedAt,
	}
	if !e.MatchedAt.IsZero() {
		at := e.MatchedAt
		v.MatchedAt = &at
	}
	return v
}

// NewPaymentViews converts ledger entries.
func NewPaymentViews(events []*domain.PaymentEvent) []PaymentView {
	out := make([]PaymentView, 0, len(events))
	for _, e := range events {
		out = append(out, NewPaymentView(e))
	}
	return out
}

// NewOrderView converts an order.
func NewOrderView(o *domain.Order) OrderView {
	v := OrderView{
		OrderID:       o.ID,
		CustomerName:  o.CustomerName,
		TableNumber:   o.TableNumber,
		Items:         newItemViews(o.Items),
		Amount:        o.Amount.Round(domain.AmountScale),
		Status:        string(o.Status),
		PaymentStatus: string(o.PaymentStatus),
		PaymentMethod: string(o.PaymentMethod),
		TransactionID: o.TransactionID,
		CreatedAt:     o.CreatedAt,
	}
	if !o.PaidAt.IsZero() {
		at := o.PaidAt
		v.PaidAt = &at
	}
	return v
}

// PendingOrderView is the JSON shape of a pending order.
type PendingOrderView struct {
	OrderID      string          `json:"order_id"`
	CustomerName string          `json:"customer_name,omitempty"`
	TableNumber  string          `json:"table_number,omitempty"`
	Amount       decimal.Decimal `json:"amount"`
	Items        []OrderItemView `json:"items"`
	CreatedAt    time.Time       `json:"created_at"`
}

// NewPendingOrderViews converts pending orders.
func NewPendingOrderViews(orders []domain.PendingOrder) []PendingOrderView {
	out := make([]PendingOrderView, 0, len(orders))
	for _, o := range orders {
		out = append(out, PendingOrderView{
			OrderID:      o.OrderID,
			CustomerName: o.CustomerName,
			TableNumber:  o.TableNumber,
			Amount:       o.Amount.Round(domain.AmountScale),
			Items:        newItemViews(o.Items),
			CreatedAt:    o.CreatedAt,
		})
	}
	return out
}

func newItemViews(items []domain.OrderItem) []OrderItemView {
	out := make([]OrderItemView, 0, len(items))
	for _, it := range items {
		out = append(out, OrderItemView{
			MenuItemID: it.MenuItemID,
			Name:       it.Name,
			Quantity:   it.Quantity,
			Price:      it.Price,
		})
	}
	return out
}

// NewRecordViews converts payment records.
func NewRecordViews(records []domain.PaymentRecord) []RecordView {
	out := make([]RecordView, 0, len(records))
	for _, r := range records {
		v := RecordView{
			Kind:       r.Kind(),
			Amount:     r.Amount().Round(domain.AmountScale),
			OccurredAt: r.OccurredAt(),
		}
		switch rec := r.(type) {
		case domain.CashRecord:
			order := NewOrderView(&rec.Order)
			v.Order = &order
		case domain.UPIMatchedRecord:
			payment := NewPaymentView(&rec.Event)
			v.Payment = &payment
			if rec.Order != nil {
				order := NewOrderView(rec.Order)
				v.Order = &order
			}
		case domain.UPIUnmatchedRecord:
			payment := NewPaymentView(&rec.Event)
			v.Payment = &payment
		}
		out = append(out, v)
	}
	return out
}

// NewStatsView converts stats. date is the formatted business day.
func NewStatsView(date string, s *domain.ReconciliationStats) StatsView {
	return StatsView{
		Date:              date,
		TotalPayments:     s.TotalPayments,
		MatchedPayments:   s.MatchedPayments,
		UnmatchedPayments: s.UnmatchedPayments,
		TotalAmount:       s.TotalAmount.Round(domain.AmountScale),
		CashOrders:        s.CashOrders,
		CashAmount:        s.CashAmount.Round(domain.AmountScale),
		OnlineOrders:      s.OnlineOrders,
		OnlineAmount:      s.OnlineAmount.Round(domain.AmountScale),
		PendingOrders:     s.PendingOrders,
	}
}
