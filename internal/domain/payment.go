package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// MatchMethod records how a payment was associated with an order.
type MatchMethod string

const (
	MatchMethodAuto   MatchMethod = "auto"
	MatchMethodManual MatchMethod = "manual"
)

// PaymentEvent is a payment notification received from a soundbox provider.
// Once Matched is set, OrderID and MatchMethod never change.
type PaymentEvent struct {
	ID            string
	TransactionID string
	Amount        decimal.Decimal
	UPIID         string
	Provider      string
	Timestamp     time.Time // As reported by the provider
	Matched       bool
	OrderID       string
	MatchMethod   MatchMethod
	MatchedAt     time.Time
	CreatedAt     time.Time
}
