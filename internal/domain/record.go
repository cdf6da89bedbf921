package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// RecordKind identifies the variant of a PaymentRecord.
type RecordKind string

const (
	RecordKindCash         RecordKind = "cash"
	RecordKindUPIMatched   RecordKind = "upi_matched"
	RecordKindUPIUnmatched RecordKind = "upi_unmatched"
)

// PaymentRecord is the single type reporting iterates over. The set of
// implementations is closed: CashRecord, UPIMatchedRecord, UPIUnmatchedRecord.
type PaymentRecord interface {
	Kind() RecordKind
	Amount() decimal.Decimal
	OccurredAt() time.Time
	isPaymentRecord()
}

// CashRecord is an order settled in cash. It has no ledger entry.
type CashRecord struct {
	Order Order
}

func (r CashRecord) Kind() RecordKind        { return RecordKindCash }
func (r CashRecord) Amount() decimal.Decimal { return r.Order.Amount }
func (r CashRecord) OccurredAt() time.Time   { return r.Order.PaidAt }
func (CashRecord) isPaymentRecord()          {}

// UPIMatchedRecord is a ledger entry associated with an order.
// Order is nil when the order row is no longer available.
type UPIMatchedRecord struct {
	Event PaymentEvent
	Order *Order
}

func (r UPIMatchedRecord) Kind() RecordKind        { return RecordKindUPIMatched }
func (r UPIMatchedRecord) Amount() decimal.Decimal { return r.Event.Amount }
func (r UPIMatchedRecord) OccurredAt() time.Time   { return r.Event.Timestamp }
func (UPIMatchedRecord) isPaymentRecord()          {}

// UPIUnmatchedRecord is a ledger entry awaiting manual resolution.
type UPIUnmatchedRecord struct {
	Event PaymentEvent
}

func (r UPIUnmatchedRecord) Kind() RecordKind        { return RecordKindUPIUnmatched }
func (r UPIUnmatchedRecord) Amount() decimal.Decimal { return r.Event.Amount }
func (r UPIUnmatchedRecord) OccurredAt() time.Time   { return r.Event.Timestamp }
func (UPIUnmatchedRecord) isPaymentRecord()          {}

// RecordForEvent wraps a ledger entry in its variant.
func RecordForEvent(event PaymentEvent, order *Order) PaymentRecord {
	if event.Matched {
		return UPIMatchedRecord{Event: event, Order: order}
	}
	return UPIUnmatchedRecord{Event: event}
}
