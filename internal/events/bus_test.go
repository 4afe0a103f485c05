package events_test

import (
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/unibazaar/marketplace/internal/events"
)

// ── Delivery ──────────────────────────────────────────────────────────────────

func TestBus_DeliversToAllSubscribers(t *testing.T) {
	bus := events.NewBus(nil)

	const subscribers = 5
	var got int64
	var wg sync.WaitGroup
	wg.Add(subscribers)

	for i := 0; i < subscribers; i++ {
		bus.Subscribe(events.TypeBidPlaced, func(e events.Event) {
			defer wg.Done()
			if _, ok := e.(events.BidPlaced); !ok {
				t.Errorf("handler received %T, want events.BidPlaced", e)
			}
			atomic.AddInt64(&got, 1)
		})
	}

	bus.Publish(events.BidPlaced{ListingID: uuid.New(), BidID: uuid.New()})
	wg.Wait()

	if got != subscribers {
		t.Errorf("delivered to %d subscribers, want %d", got, subscribers)
	}
}

func TestBus_TypeIsolation(t *testing.T) {
	bus := events.NewBus(nil)

	var wrongType int64
	bus.Subscribe(events.TypeListingSold, func(events.Event) {
		atomic.AddInt64(&wrongType, 1)
	})

	bus.Publish(events.BidPlaced{ListingID: uuid.New()})
	bus.Drain()

	if wrongType != 0 {
		t.Errorf("handler for listing_sold received a bid_placed event")
	}
}

// ── Panic isolation ───────────────────────────────────────────────────────────

func TestBus_PanickingHandlerDoesNotAffectPeers(t *testing.T) {
	bus := events.NewBus(nil)

	var survived int64
	bus.Subscribe(events.TypeBidPlaced, func(events.Event) {
		panic("listener bug")
	})
	bus.Subscribe(events.TypeBidPlaced, func(events.Event) {
		atomic.AddInt64(&survived, 1)
	})

	// Must not panic the publisher either.
	bus.Publish(events.BidPlaced{ListingID: uuid.New()})
	bus.Drain()

	if survived != 1 {
		t.Errorf("healthy peer did not run after sibling panicked")
	}
}

// ── Drain semantics ───────────────────────────────────────────────────────────

func TestBus_DrainWaitsForInflightHandlers(t *testing.T) {
	bus := events.NewBus(nil)

	var finished int64
	bus.Subscribe(events.TypeBidPlaced, func(events.Event) {
		time.Sleep(50 * time.Millisecond)
		atomic.AddInt64(&finished, 1)
	})

	bus.Publish(events.BidPlaced{ListingID: uuid.New()})
	bus.Drain()

	if atomic.LoadInt64(&finished) != 1 {
		t.Error("Drain returned before the in-flight handler finished")
	}
}

func TestBus_PublishAfterDrainIsDropped(t *testing.T) {
	bus := events.NewBus(nil)

	var got int64
	bus.Subscribe(events.TypeBidPlaced, func(events.Event) {
		atomic.AddInt64(&got, 1)
	})

	bus.Drain()
	bus.Publish(events.BidPlaced{ListingID: uuid.New()})

	// Nothing to wait on; give a stray goroutine a moment to show up.
	time.Sleep(20 * time.Millisecond)
	if atomic.LoadInt64(&got) != 0 {
		t.Errorf("event published after Drain was delivered")
	}
}
