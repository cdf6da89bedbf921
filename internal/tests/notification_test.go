package tests

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync/atomic"
	"testing"
	"time"

	"reconcile/internal/service"
)

func TestNotification_RelayFanOut(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	bus := NewMockEventBus()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	notifier := service.NewNotificationService(bus, logger)

	events, unsubscribe := notifier.Subscribe()
	defer unsubscribe()

	done := make(chan error, 1)
	go func() { done <- notifier.Run(ctx) }()

	// Run subscribes asynchronously.
	deadline := time.Now().Add(time.Second)
	for !notifier.RelayConnected() {
		if time.Now().After(deadline) {
			t.Fatal("relay subscription never started")
		}
		time.Sleep(5 * time.Millisecond)
	}

	notifier.Publish(ctx, service.Notification{Type: service.NotificationOrderCancelled, OrderID: "O1"})

	select {
	case n := <-events:
		if n.Type != service.NotificationOrderCancelled || n.OrderID != "O1" {
			t.Errorf("unexpected notification: %+v", n)
		}
		if n.CreatedAt.IsZero() {
			t.Error("expected CreatedAt stamped")
		}
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for relayed event")
	}

	cancel()
	select {
	case err := <-done:
		if !errors.Is(err, context.Canceled) {
			t.Errorf("expected context.Canceled, got %v", err)
		}
	case <-time.After(time.Second):
		t.Fatal("Run did not stop")
	}
}

func TestNotification_FallsBackToLocalDelivery(t *testing.T) {
	bus := NewMockEventBus()
	bus.PublishError = errors.New("redis down")
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	notifier := service.NewNotificationService(bus, logger)

	events, unsubscribe := notifier.Subscribe()
	defer unsubscribe()

	notifier.Publish(context.Background(), service.Notification{Type: service.NotificationPaymentUnmatched, TransactionID: "tx9"})

	select {
	case n := <-events:
		if n.TransactionID != "tx9" {
			t.Errorf("expected tx9, got %s", n.TransactionID)
		}
	case <-time.After(time.Second):
		t.Fatal("expected local delivery when the relay fails")
	}
}

func TestNotification_SlowSubscriberDoesNotBlock(t *testing.T) {
	h := newHarness(t)

	_, unsubscribe := h.notifier.Subscribe()
	defer unsubscribe()

	done := make(chan struct{})
	go func() {
		for i := 0; i < 100; i++ {
			h.notifier.Publish(context.Background(), service.Notification{Type: service.NotificationOrderUpserted})
		}
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("publish blocked on an unread subscriber")
	}
}

func TestNotification_UnsubscribeClosesChannel(t *testing.T) {
	h := newHarness(t)

	events, unsubscribe := h.notifier.Subscribe()
	unsubscribe()
	unsubscribe()

	if _, ok := <-events; ok {
		t.Error("expected closed channel")
	}

	// Publishing after unsubscribe must not panic.
	h.notifier.Publish(context.Background(), service.Notification{Type: service.NotificationOrderUpserted})
}

func TestNotification_RetriesRelaySubscription(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	bus := NewMockEventBus()
	bus.SubscribeFailures = 2
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	notifier := service.NewNotificationService(bus, logger)
	notifier.SetRelayBackoff(10*time.Millisecond, 20*time.Millisecond)

	events, unsubscribe := notifier.Subscribe()
	defer unsubscribe()

	// Relay not subscribed yet: events still reach local subscribers.
	notifier.Publish(ctx, service.Notification{Type: service.NotificationOrderUpserted, OrderID: "O1"})
	select {
	case n := <-events:
		if n.OrderID != "O1" {
			t.Errorf("expected O1, got %s", n.OrderID)
		}
	case <-time.After(time.Second):
		t.Fatal("expected local delivery while the relay is down")
	}

	done := make(chan error, 1)
	go func() { done <- notifier.Run(ctx) }()

	deadline := time.Now().Add(2 * time.Second)
	for !notifier.RelayConnected() {
		if time.Now().After(deadline) {
			t.Fatalf("relay subscription never recovered after %d attempts", atomic.LoadInt32(&bus.SubscribeCallCount))
		}
		time.Sleep(5 * time.Millisecond)
	}
	if got := atomic.LoadInt32(&bus.SubscribeCallCount); got != 3 {
		t.Errorf("expected 3 subscribe attempts, got %d", got)
	}

	notifier.Publish(ctx, service.Notification{Type: service.NotificationOrderCancelled, OrderID: "O2"})
	select {
	case n := <-events:
		if n.OrderID != "O2" {
			t.Errorf("expected O2, got %s", n.OrderID)
		}
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for relayed event")
	}

	// Exactly once: nothing else is queued.
	select {
	case n := <-events:
		if n.OrderID == "O2" {
			t.Error("event delivered twice")
		}
	case <-time.After(50 * time.Millisecond):
	}

	cancel()
	if err := <-done; !errors.Is(err, context.Canceled) {
		t.Errorf("expected context.Canceled, got %v", err)
	}
}
