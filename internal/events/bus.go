// Package events delivers host lifecycle events to scoped subscribers.
package events

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/mcoot/regwhelp/internal/host"
	"github.com/mcoot/regwhelp/internal/model"
)

// Event is a single lifecycle notification
type Event struct {
	Type      model.EventType
	Timestamp time.Time

	// Subject is the ID of the player or entity the event is about
	Subject string
	// Player is the player involved; for EventInteract it is the interacting player
	Player host.Player
	// Region is the player's region after the event, when relevant
	Region string
}

// Handler receives events on the publisher's goroutine
type Handler func(ctx context.Context, ev Event)

type scopeKey struct {
	subject string
	typ     model.EventType
}

// Subscription is a registration released exactly once
type Subscription struct {
	bus      *Bus
	subject  string
	global   bool
	types    []model.EventType
	handler  Handler
	released atomic.Bool
}

// Bus fans events out to subscribers. For each event, handlers scoped to
// the event's subject run before global handlers, in subscription order.
type Bus struct {
	mu     sync.RWMutex
	scoped map[scopeKey][]*Subscription
	global map[model.EventType][]*Subscription
	logger *slog.Logger
}

// NewBus creates an empty Bus
func NewBus(logger *slog.Logger) *Bus {
	return &Bus{
		scoped: make(map[scopeKey][]*Subscription),
		global: make(map[model.EventType][]*Subscription),
		logger: logger.With(slog.String("component", "event-bus")),
	}
}

// Subscribe registers h for events of the given types about subject
func (b *Bus) Subscribe(subject string, h Handler, types ...model.EventType) *Subscription {
	sub := &Subscription{bus: b, subject: subject, types: types, handler: h}

	b.mu.Lock()
	defer b.mu.Unlock()
	for _, t := range types {
		key := scopeKey{subject: subject, typ: t}
		b.scoped[key] = append(b.scoped[key], sub)
	}
	return sub
}

// SubscribeAll registers h for events of the given types about any subject
func (b *Bus) SubscribeAll(h Handler, types ...model.EventType) *Subscription {
	sub := &Subscription{bus: b, global: true, types: types, handler: h}

	b.mu.Lock()
	defer b.mu.Unlock()
	for _, t := range types {
		b.global[t] = append(b.global[t], sub)
	}
	return sub
}

// Publish delivers ev synchronously. Subscriptions released while the
// event is being delivered are skipped.
func (b *Bus) Publish(ctx context.Context, ev Event) {
	b.mu.RLock()
	scoped := b.scoped[scopeKey{subject: ev.Subject, typ: ev.Type}]
	global := b.global[ev.Type]
	targets := make([]*Subscription, 0, len(scoped)+len(global))
	targets = append(targets, scoped...)
	targets = append(targets, global...)
	b.mu.RUnlock()

	for _, sub := range targets {
		if sub.released.Load() {
			continue
		}
		sub.handler(ctx, ev)
	}
}

// SubscriberCount returns the number of live subscriptions for subject
func (b *Bus) SubscriberCount(subject string) int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	seen := make(map[*Subscription]bool)
	for key, subs := range b.scoped {
		if key.subject != subject {
			continue
		}
		for _, s := range subs {
			seen[s] = true
		}
	}
	return len(seen)
}

// Release unregisters the subscription. Only the first call has any
// effect; it reports whether this call did the release.
func (s *Subscription) Release() bool {
	if s == nil || !s.released.CompareAndSwap(false, true) {
		return false
	}
	s.bus.remove(s)
	return true
}

func (b *Bus) remove(sub *Subscription) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, t := range sub.types {
		if sub.global {
			b.global[t] = without(b.global[t], sub)
			if len(b.global[t]) == 0 {
				delete(b.global, t)
			}
			continue
		}
		key := scopeKey{subject: sub.subject, typ: t}
		b.scoped[key] = without(b.scoped[key], sub)
		if len(b.scoped[key]) == 0 {
			delete(b.scoped, key)
		}
	}
}

func without(subs []*Subscription, target *Subscription) []*Subscription {
	out := make([]*Subscription, 0, len(subs))
	for _, s := range subs {
		if s != target {
			out = append(out, s)
		}
	}
	return out
}
