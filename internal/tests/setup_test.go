package tests

import (
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"reconcile/internal/domain"
	"reconcile/internal/service"
)

// baseTime is 10:00 on the business day used by most scenarios.
var baseTime = time.Date(2024, 3, 15, 10, 0, 0, 0, time.UTC)

// harness wires the services over in-memory mocks.
type harness struct {
	payments *MockPaymentRepository
	orders   *MockOrderRepository
	settings *MockSettingsRepository
	tx       *MockTxManager
	locks    *MockLockStore
	cache    *MockCacheStore

	calendar     *service.Calendar
	notifier     *service.NotificationService
	settingsSvc  *service.SettingsService
	ledger       *service.Ledger
	registry     *service.Registry
	matching     *service.MatchingService
	reporting    *service.ReportingService
	orderService *service.OrderService
}

func newHarness(t *testing.T) *harness {
	t.Helper()

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	h := &harness{
		payments: NewMockPaymentRepository(),
		orders:   NewMockOrderRepository(),
		settings: NewMockSettingsRepository(),
		locks:    NewMockLockStore(),
		cache:    NewMockCacheStore(),
	}
	h.tx = NewMockTxManager(h.payments, h.orders)

	h.calendar = service.NewCalendar(time.UTC)
	h.notifier = service.NewNotificationService(nil, logger)
	h.settingsSvc = service.NewSettingsService(h.settings, domain.DefaultMatchingSettings())
	h.ledger = service.NewLedger(h.payments, h.calendar)
	h.registry = service.NewRegistry(h.orders, h.cache, h.calendar, logger)
	h.matching = service.NewMatchingService(
		h.tx, h.orders, h.ledger, h.registry, h.settingsSvc,
		h.locks, h.cache, h.notifier, logger,
	)
	h.reporting = service.NewReportingService(h.ledger, h.orders, h.cache, h.calendar, logger)
	h.orderService = service.NewOrderService(h.orders, h.registry, h.matching, h.cache, h.notifier, logger)

	return h
}

// addPendingOrder adds a pending order created at the given time.
func (h *harness) addPendingOrder(id, amount string, createdAt time.Time) {
	h.orders.AddOrder(&domain.Order{
		ID:        id,
		Amount:    decimal.RequireFromString(amount),
		CreatedAt: createdAt,
		UpdatedAt: createdAt,
	})
}

func payment(txID, amount string, at time.Time) service.PaymentNotification {
	return service.PaymentNotification{
		TransactionID: txID,
		Amount:        decimal.RequireFromString(amount),
		UPIID:         "customer@okaxis",
		Provider:      "paytm",
		Timestamp:     at,
	}
}
