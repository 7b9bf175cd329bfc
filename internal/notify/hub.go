package notify

import (
	"context"
	"sync"
	"sync/atomic"

	"go.uber.org/zap"
)

// Event is a push payload delivered to connected clients.
type Event struct {
	Type    string      `json:"type"`
	UserIDs []string    `json:"user_ids,omitempty"`
	Payload interface{} `json:"payload,omitempty"`
}

// Broadcaster fans an event out to the targeted users across all running
// instances. An empty UserIDs slice addresses every connected user.
type Broadcaster interface {
	Broadcast(ctx context.Context, event Event) error
}

// Hub tracks live stream subscriptions per user and delivers events to them.
// Each subscription gets a bounded buffer; a subscriber that cannot keep up
// loses events rather than blocking delivery to everyone else.
type Hub struct {
	mu     sync.RWMutex
	subs   map[string]map[chan Event]struct{}
	buffer int
	logger *zap.Logger
	// dropped is atomic: delivery runs under the read lock, so concurrent
	// broadcasts may hit the drop branch at the same time.
	dropped atomic.Int64
}

// NewHub builds a hub with the given per-subscription buffer size.
func NewHub(buffer int, logger *zap.Logger) *Hub {
	if buffer <= 0 {
		buffer = 16
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Hub{
		subs:   make(map[string]map[chan Event]struct{}),
		buffer: buffer,
		logger: logger,
	}
}

// Subscribe registers a stream for a user. The returned cancel must be called
// when the connection closes; it unregisters and closes the channel.
func (h *Hub) Subscribe(userID string) (<-chan Event, func()) {
	ch := make(chan Event, h.buffer)

	h.mu.Lock()
	set, ok := h.subs[userID]
	if !ok {
		set = make(map[chan Event]struct{})
		h.subs[userID] = set
	}
	set[ch] = struct{}{}
	h.mu.Unlock()

	cancel := func() {
		h.mu.Lock()
		if set, ok := h.subs[userID]; ok {
			if _, present := set[ch]; present {
				delete(set, ch)
				close(ch)
			}
			if len(set) == 0 {
				delete(h.subs, userID)
			}
		}
		h.mu.Unlock()
	}
	return ch, cancel
}

// Deliver pushes an event to the targeted users' local subscriptions. Events
// with no UserIDs go to every subscriber.
func (h *Hub) Deliver(event Event) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	if len(event.UserIDs) == 0 {
		for userID := range h.subs {
			h.deliverLocked(userID, event)
		}
		return
	}
	for _, userID := range event.UserIDs {
		h.deliverLocked(userID, event)
	}
}

func (h *Hub) deliverLocked(userID string, event Event) {
	for ch := range h.subs[userID] {
		select {
		case ch <- event:
		default:
			h.dropped.Add(1)
			h.logger.Warn("event dropped, slow subscriber",
				zap.String("user_id", userID),
				zap.String("type", event.Type),
			)
		}
	}
}

// Dropped returns how many events were discarded because a subscriber's
// buffer was full.
func (h *Hub) Dropped() int64 {
	return h.dropped.Load()
}

// Subscribers returns the number of live subscriptions for a user.
func (h *Hub) Subscribers(userID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subs[userID])
}

// LocalBroadcaster delivers events directly to the in-process hub. It is the
// single-instance fallback when Redis is unavailable, and the double used in
// tests.
type LocalBroadcaster struct {
	hub *Hub
}

// NewLocalBroadcaster wraps a hub as a Broadcaster.
func NewLocalBroadcaster(hub *Hub) *LocalBroadcaster {
	return &LocalBroadcaster{hub: hub}
}

// Broadcast delivers the event to local subscribers.
func (b *LocalBroadcaster) Broadcast(_ context.Context, event Event) error {
	b.hub.Deliver(event)
	return nil
}
