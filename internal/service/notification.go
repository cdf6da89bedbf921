package service

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/shopspring/decimal"

	"reconcile/internal/domain"
	"reconcile/internal/redis"
)

// NotificationType represents the type of a reconciliation event.
type NotificationType string

const (
	NotificationPaymentRecorded  NotificationType = "payment.recorded"
	NotificationPaymentMatched   NotificationType = "payment.matched"
	NotificationPaymentUnmatched NotificationType = "payment.unmatched"
	NotificationOrderPaidCash    NotificationType = "order.paid_cash"
	NotificationOrderCancelled   NotificationType = "order.cancelled"
	NotificationOrderUpserted    NotificationType = "order.upserted"
)

const (
	subscriberBuffer = 32
	relayRetryMin    = 500 * time.Millisecond
	relayRetryMax    = 30 * time.Second
)

// Notification is a change to the ledger or the pending registry.
type Notification struct {
	Type          NotificationType   `json:"type"`
	TransactionID string             `json:"transaction_id,omitempty"`
	OrderID       string             `json:"order_id,omitempty"`
	Amount        *decimal.Decimal   `json:"amount,omitempty"`
	MatchMethod   domain.MatchMethod `json:"match_method,omitempty"`
	CreatedAt     time.Time          `json:"created_at"`
}

// NotificationService fans reconciliation events out to subscribers.
// With a relay configured, events travel through Redis so every instance
// delivers them; without one, or while this instance is not subscribed to
// it, they are also delivered in-process.
type NotificationService struct {
	relay  redis.EventBusInterface // Optional
	logger *slog.Logger

	relayUp  atomic.Bool
	retryMin time.Duration
	retryMax time.Duration

	mu     sync.RWMutex
	nextID int
	subs   map[int]chan Notification
}

// NewNotificationService creates a new NotificationService. relay may be nil.
func NewNotificationService(relay redis.EventBusInterface, logger *slog.Logger) *NotificationService {
	return &NotificationService{
		relay:    relay,
		logger:   logger,
		retryMin: relayRetryMin,
		retryMax: relayRetryMax,
		subs:     make(map[int]chan Notification),
	}
}

// SetRelayBackoff overrides the delays between relay subscription attempts.
func (s *NotificationService) SetRelayBackoff(initial, maxDelay time.Duration) {
	s.retryMin = initial
	s.retryMax = maxDelay
}

// Publish sends n to every subscriber.
func (s *NotificationService) Publish(ctx context.Context, n Notification) {
	if n.CreatedAt.IsZero() {
		n.CreatedAt = time.Now()
	}

	if s.relay != nil {
		payload, err := json.Marshal(n)
		if err == nil {
			err = s.relay.Publish(ctx, payload)
		}
		if err != nil {
			s.logger.WarnContext(ctx, "event relay publish failed, delivering locally", "type", n.Type, "error", err)
		} else if s.relayUp.Load() {
			return // Comes back through Run
		}
	}

	s.deliver(n)
}

// RelayConnected reports whether Run currently holds a relay subscription.
func (s *NotificationService) RelayConnected() bool {
	return s.relayUp.Load()
}

// Run forwards relayed events to local subscribers until ctx is done. A
// failed or dropped subscription is retried with exponential backoff; in
// the meantime Publish delivers locally. It returns immediately when no
// relay is configured.
func (s *NotificationService) Run(ctx context.Context) error {
	if s.relay == nil {
		return nil
	}

	backoff := s.retryMin
	for {
		payloads, err := s.relay.Subscribe(ctx)
		if err == nil {
			backoff = s.retryMin
			s.relayUp.Store(true)
			s.forward(ctx, payloads)
			s.relayUp.Store(false)
		}

		if ctx.Err() != nil {
			return ctx.Err()
		}
		if err != nil {
			s.logger.WarnContext(ctx, "event relay subscribe failed", "retry_in", backoff, "error", err)
		} else {
			s.logger.WarnContext(ctx, "event relay subscription closed", "retry_in", backoff)
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(backoff):
		}
		backoff = min(backoff*2, s.retryMax)
	}
}

func (s *NotificationService) forward(ctx context.Context, payloads <-chan []byte) {
	for payload := range payloads {
		var n Notification
		if err := json.Unmarshal(payload, &n); err != nil {
			s.logger.WarnContext(ctx, "dropping malformed relayed event", "error", err)
			continue
		}
		s.deliver(n)
	}
}

// Subscribe registers a subscriber. The returned cancel func must be called
// to release it; it closes the channel.
func (s *NotificationService) Subscribe() (<-chan Notification, func()) {
	ch := make(chan Notification, subscriberBuffer)

	s.mu.Lock()
	id := s.nextID
	s.nextID++
	s.subs[id] = ch
	s.mu.Unlock()

	var once sync.Once
	cancel := func() {
		once.Do(func() {
			s.mu.Lock()
			delete(s.subs, id)
			s.mu.Unlock()
			close(ch)
		})
	}
	return ch, cancel
}

// deliver never blocks: a subscriber with a full buffer misses the event.
func (s *NotificationService) deliver(n Notification) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for id, ch := range s.subs {
		select {
		case ch <- n:
		default:
			s.logger.Warn("subscriber too slow, event dropped", "subscriber", id, "type", n.Type)
		}
	}
}
