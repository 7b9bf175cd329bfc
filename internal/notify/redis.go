package notify

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const eventsChannel = "crestline:events"

// RedisBroadcaster spans events across instances via Redis pub/sub. Every
// instance publishes to one channel and relays received events into its own
// hub, so a user connected anywhere sees pushes from everywhere.
type RedisBroadcaster struct {
	client *redis.Client
	hub    *Hub
	logger *zap.Logger
}

// NewRedisBroadcaster builds a broadcaster over an existing Redis client.
func NewRedisBroadcaster(client *redis.Client, hub *Hub, logger *zap.Logger) *RedisBroadcaster {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RedisBroadcaster{client: client, hub: hub, logger: logger}
}

// Broadcast publishes the event; delivery to local subscribers happens via
// the relay loop like on every other instance.
func (b *RedisBroadcaster) Broadcast(ctx context.Context, event Event) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}
	if err := b.client.Publish(ctx, eventsChannel, payload).Err(); err != nil {
		return fmt.Errorf("publish event: %w", err)
	}
	return nil
}

// Run subscribes to the events channel and relays messages into the hub
// until the context is cancelled. Intended to run in its own goroutine.
func (b *RedisBroadcaster) Run(ctx context.Context) {
	sub := b.client.Subscribe(ctx, eventsChannel)
	defer sub.Close()

	ch := sub.Channel()
	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-ch:
			if !ok {
				return
			}
			var event Event
			if err := json.Unmarshal([]byte(msg.Payload), &event); err != nil {
				b.logger.Warn("discarding malformed event", zap.Error(err))
				continue
			}
			b.hub.Deliver(event)
		}
	}
}
