package events

import (
	"log/slog"
	"sync"
)

// Handler consumes a published event. Handlers run on bus goroutines and must
// not assume any delivery order, even relative to events they caused.
type Handler func(Event)

// ──────────────────────────────────────────────────────────────────────────────
// Bus
// ──────────────────────────────────────────────────────────────────────────────

// Bus is an in-process dispatcher. Construct one in main() and hand it to every
// component that publishes or subscribes; the composing process owns its
// lifecycle (subscribe at startup, Drain at shutdown).
//
// Publish never blocks the caller on subscriber work and never lets one
// subscriber's panic reach another subscriber or the publisher.
type Bus struct {
	mu       sync.RWMutex
	handlers map[Type][]Handler
	wg       sync.WaitGroup
	closed   bool
	logger   *slog.Logger
}

// NewBus creates an empty Bus.
func NewBus(logger *slog.Logger) *Bus {
	if logger == nil {
		logger = slog.Default()
	}
	return &Bus{
		handlers: make(map[Type][]Handler),
		logger:   logger,
	}
}

// Subscribe registers a handler for one event type. Intended to be called
// during startup wiring, before the first Publish.
func (b *Bus) Subscribe(t Type, h Handler) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.handlers[t] = append(b.handlers[t], h)
}

// Publish dispatches the event to every handler subscribed to its type, each
// on its own goroutine. Events published after Drain are dropped.
func (b *Bus) Publish(e Event) {
	b.mu.RLock()
	if b.closed {
		b.mu.RUnlock()
		return
	}
	hs := b.handlers[e.EventType()]
	b.wg.Add(len(hs))
	b.mu.RUnlock()

	for _, h := range hs {
		go b.dispatch(h, e)
	}
}

// dispatch runs one handler with panic isolation: a failing listener is
// logged and dropped, never thrown back at the publisher or its peers.
func (b *Bus) dispatch(h Handler, e Event) {
	defer b.wg.Done()
	defer func() {
		if r := recover(); r != nil {
			b.logger.Error("event handler panicked",
				"event", string(e.EventType()), "panic", r)
		}
	}()
	h(e)
}

// Drain stops accepting new events and blocks until all in-flight handler
// goroutines have finished. Call once during graceful shutdown.
func (b *Bus) Drain() {
	b.mu.Lock()
	b.closed = true
	b.mu.Unlock()
	b.wg.Wait()
}
