// Package events is the in-process change notification bus used by the planner.
package events

import (
	"sync"

	"github.com/rs/zerolog"
)

// Kind identifies what changed.
type Kind string

const (
	KindBundleCreated   Kind = "bundle-created"
	KindBundleDeleted   Kind = "bundle-deleted"
	KindBundleChanged   Kind = "bundle-changed"
	KindCustomerChanged Kind = "customer-changed"
	KindRestored        Kind = "planner-restored"
	KindReset           Kind = "planner-reset"
)

// Event describes one change. Payloads are hints: subscribers are expected to
// re-read current state through the planner rather than rely on Fields being complete.
type Event struct {
	Kind     Kind           `json:"kind"`
	BundleID string         `json:"bundleId,omitempty"`
	Group    string         `json:"group,omitempty"`
	Stage    string         `json:"stage,omitempty"`
	Fields   map[string]any `json:"fields,omitempty"`
}

// Handler receives published events.
type Handler func(Event)

type subscription struct {
	id   uint64
	kind Kind
	fn   Handler
}

// Bus fans events out to subscribers in subscription order.
// A panicking handler is logged and does not stop delivery to the others.
type Bus struct {
	mu     sync.RWMutex
	nextID uint64
	subs   []subscription
	log    zerolog.Logger
}

// NewBus constructs a bus that reports handler failures to log.
func NewBus(log zerolog.Logger) *Bus {
	return &Bus{log: log}
}

// Subscribe registers fn for events of kind. An empty kind receives every event.
// The returned function removes the subscription.
func (b *Bus) Subscribe(kind Kind, fn Handler) func() {
	b.mu.Lock()
	b.nextID++
	id := b.nextID
	b.subs = append(b.subs, subscription{id: id, kind: kind, fn: fn})
	b.mu.Unlock()

	return func() { b.unsubscribe(id) }
}

func (b *Bus) unsubscribe(id uint64) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for i, s := range b.subs {
		if s.id == id {
			b.subs = append(b.subs[:i:i], b.subs[i+1:]...)
			return
		}
	}
}

// Publish delivers ev synchronously to every matching subscriber.
func (b *Bus) Publish(ev Event) {
	if b == nil {
		return
	}
	b.mu.RLock()
	targets := make([]Handler, 0, len(b.subs))
	for _, s := range b.subs {
		if s.kind == "" || s.kind == ev.Kind {
			targets = append(targets, s.fn)
		}
	}
	b.mu.RUnlock()

	for _, fn := range targets {
		b.deliver(fn, ev)
	}
}

func (b *Bus) deliver(fn Handler, ev Event) {
	defer func() {
		if r := recover(); r != nil {
			b.log.Error().
				Str("kind", string(ev.Kind)).
				Str("bundle_id", ev.BundleID).
				Interface("panic", r).
				Msg("event handler panicked")
		}
	}()
	fn(ev)
}
