package service

import "errors"

var (
	// ErrDuplicateTransaction is returned when a transaction id is already in the ledger.
	ErrDuplicateTransaction = errors.New("duplicate transaction")

	// ErrAlreadyMatched is returned when a payment already has an order.
	ErrAlreadyMatched = errors.New("payment already matched")

	// ErrPaymentNotFound is returned when a transaction id is unknown.
	ErrPaymentNotFound = errors.New("payment not found")

	// ErrOrderNotFound is returned when an order id is unknown.
	ErrOrderNotFound = errors.New("order not found")

	// ErrOrderNotPending is returned when an order is already paid or cancelled.
	ErrOrderNotPending = errors.New("order is not pending payment")

	// ErrOrderLocked is returned when another request is settling the same order.
	ErrOrderLocked = errors.New("order is being settled by another request")

	// ErrInvalidAmount is returned when an amount is not positive or has more than two decimals.
	ErrInvalidAmount = errors.New("invalid amount")

	// ErrInvalidTransactionID is returned when transaction id is empty.
	ErrInvalidTransactionID = errors.New("invalid transaction id")

	// ErrInvalidOrderID is returned when order id is empty.
	ErrInvalidOrderID = errors.New("invalid order id")

	// ErrInvalidOrderStatus is returned for an unknown kitchen status.
	ErrInvalidOrderStatus = errors.New("invalid order status")

	// ErrInvalidOrderItems is returned when an order line is malformed.
	ErrInvalidOrderItems = errors.New("invalid order items")

	// ErrInvalidDate is returned when a date is not YYYY-MM-DD.
	ErrInvalidDate = errors.New("invalid date, expected YYYY-MM-DD")

	// ErrInvalidTimeout is returned when the payment timeout is out of range.
	ErrInvalidTimeout = errors.New("payment timeout must be between 0 and 1440 minutes")

	// ErrInvalidProvider is returned for an unknown soundbox provider.
	ErrInvalidProvider = errors.New("invalid soundbox provider")

	// ErrInvalidUPIID is returned when a merchant UPI id is malformed.
	ErrInvalidUPIID = errors.New("invalid upi id")

	// ErrSoundboxNotConfigured is returned when no soundbox configuration exists.
	ErrSoundboxNotConfigured = errors.New("soundbox not configured")

	// ErrSoundboxAlreadyConfigured is returned when creating a second configuration.
	ErrSoundboxAlreadyConfigured = errors.New("soundbox already configured")

	// ErrInvalidSignature is returned when a webhook signature does not verify.
	ErrInvalidSignature = errors.New("invalid webhook signature")

	// ErrArchiveDisabled is returned when no archive bucket is configured.
	ErrArchiveDisabled = errors.New("report archive not configured")
)
