package notify

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHubDeliversToTargetedUsers(t *testing.T) {
	hub := NewHub(4, nil)

	aliceCh, cancelAlice := hub.Subscribe("alice")
	defer cancelAlice()
	bobCh, cancelBob := hub.Subscribe("bob")
	defer cancelBob()

	hub.Deliver(Event{Type: "notification.created", UserIDs: []string{"alice"}})

	select {
	case ev := <-aliceCh:
		assert.Equal(t, "notification.created", ev.Type)
	default:
		t.Fatal("alice should have received the event")
	}
	select {
	case <-bobCh:
		t.Fatal("bob should not have received the event")
	default:
	}
}

func TestHubBroadcastsWhenUntargeted(t *testing.T) {
	hub := NewHub(4, nil)

	aliceCh, cancelAlice := hub.Subscribe("alice")
	defer cancelAlice()
	bobCh, cancelBob := hub.Subscribe("bob")
	defer cancelBob()

	hub.Deliver(Event{Type: "system.maintenance"})

	require.Len(t, aliceCh, 1)
	require.Len(t, bobCh, 1)
}

func TestHubDropsWhenBufferFull(t *testing.T) {
	hub := NewHub(1, nil)

	ch, cancel := hub.Subscribe("alice")
	defer cancel()

	hub.Deliver(Event{Type: "first", UserIDs: []string{"alice"}})
	hub.Deliver(Event{Type: "second", UserIDs: []string{"alice"}})

	ev := <-ch
	assert.Equal(t, "first", ev.Type)
	assert.Empty(t, ch)
	assert.Equal(t, int64(1), hub.Dropped())
}

func TestHubConcurrentDeliveryToFullBuffer(t *testing.T) {
	hub := NewHub(1, nil)

	ch, cancel := hub.Subscribe("alice")
	defer cancel()

	// Fill the buffer so every concurrent delivery takes the drop branch.
	hub.Deliver(Event{Type: "fill", UserIDs: []string{"alice"}})

	const writers = 8
	var wg sync.WaitGroup
	wg.Add(writers)
	for i := 0; i < writers; i++ {
		go func() {
			defer wg.Done()
			hub.Deliver(Event{Type: "burst", UserIDs: []string{"alice"}})
		}()
	}
	wg.Wait()

	assert.Equal(t, int64(writers), hub.Dropped())
	require.Len(t, ch, 1)
}

func TestCancelUnsubscribes(t *testing.T) {
	hub := NewHub(4, nil)

	_, cancel := hub.Subscribe("alice")
	require.Equal(t, 1, hub.Subscribers("alice"))

	cancel()
	cancel() // idempotent
	assert.Equal(t, 0, hub.Subscribers("alice"))
}

func TestLocalBroadcaster(t *testing.T) {
	hub := NewHub(4, nil)
	b := NewLocalBroadcaster(hub)

	ch, cancel := hub.Subscribe("alice")
	defer cancel()

	require.NoError(t, b.Broadcast(context.Background(), Event{Type: "ping", UserIDs: []string{"alice"}}))
	assert.Len(t, ch, 1)
}
