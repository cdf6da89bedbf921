package redis

import (
	"context"

	"github.com/redis/go-redis/v9"
)

// EventsChannel is the Pub/Sub channel carrying reconciliation events.
const EventsChannel = "reconcile:events"

// EventBus relays reconciliation events between service instances.
type EventBus struct {
	client *redis.Client
}

// NewEventBus creates a new EventBus.
func NewEventBus(client *redis.Client) *EventBus {
	return &EventBus{client: client}
}

// Publish sends an encoded event to every subscribed instance.
func (b *EventBus) Publish(ctx context.Context, payload []byte) error {
	return b.client.Publish(ctx, EventsChannel, payload).Err()
}

// Subscribe streams encoded events until ctx is done.
func (b *EventBus) Subscribe(ctx context.Context) (<-chan []byte, error) {
	sub := b.client.Subscribe(ctx, EventsChannel)

	// Wait for the subscription to be confirmed before returning.
	if _, err := sub.Receive(ctx); err != nil {
		_ = sub.Close()
		return nil, err
	}

	out := make(chan []byte)
	go func() {
		defer close(out)
		defer sub.Close()

		msgs := sub.Channel()
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-msgs:
				if !ok {
					return
				}
				select {
				case out <- []byte(msg.Payload):
				case <-ctx.Done():
					return
				}
			}
		}
	}()

	return out, nil
}
