// Package identity provides the identity-change event stream shared by identity provider adapters.
package identity

import (
	"sync"

	domainauth "github.com/target/ward-console/internal/domain/auth"
	"github.com/target/ward-console/internal/ports"
)

var _ ports.IdentityFeed = (*Feed)(nil)

// Feed fans identity-change events out to subscribers.
//
// Delivery is synchronous and serialized: Publish returns after every subscriber
// has seen the event, and events reach each subscriber in emission order.
// A new subscriber immediately receives the most recent event, if any, so it
// never misses the provider's current state.
// Subscribers must not call Publish from inside their callback.
type Feed struct {
	emitMu sync.Mutex // serializes Publish and Subscribe replay

	mu      sync.Mutex
	subs    map[uint64]func(domainauth.IdentityEvent)
	order   []uint64
	nextID  uint64
	last    domainauth.IdentityEvent
	hasLast bool
}

// NewFeed creates an empty feed.
func NewFeed() *Feed {
	return &Feed{subs: make(map[uint64]func(domainauth.IdentityEvent))}
}

// Subscribe registers fn and returns an idempotent unsubscribe handle.
func (f *Feed) Subscribe(fn func(domainauth.IdentityEvent)) func() {
	if fn == nil {
		return func() {}
	}

	f.emitMu.Lock()
	defer f.emitMu.Unlock()

	f.mu.Lock()
	id := f.nextID
	f.nextID++
	f.subs[id] = fn
	f.order = append(f.order, id)
	last, hasLast := f.last, f.hasLast
	f.mu.Unlock()

	if hasLast {
		fn(cloneEvent(last))
	}

	var once sync.Once
	return func() {
		once.Do(func() { f.remove(id) })
	}
}

// Publish delivers ev to every current subscriber in registration order.
func (f *Feed) Publish(ev domainauth.IdentityEvent) {
	f.emitMu.Lock()
	defer f.emitMu.Unlock()

	f.mu.Lock()
	f.last = cloneEvent(ev)
	f.hasLast = true
	targets := make([]func(domainauth.IdentityEvent), 0, len(f.order))
	for _, id := range f.order {
		if fn, ok := f.subs[id]; ok {
			targets = append(targets, fn)
		}
	}
	f.mu.Unlock()

	for _, fn := range targets {
		fn(cloneEvent(ev))
	}
}

// Last returns the most recently published event.
func (f *Feed) Last() (domainauth.IdentityEvent, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return cloneEvent(f.last), f.hasLast
}

// Len returns the number of active subscribers.
func (f *Feed) Len() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.subs)
}

func (f *Feed) remove(id uint64) {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.subs, id)
	for i, v := range f.order {
		if v == id {
			f.order = append(f.order[:i], f.order[i+1:]...)
			break
		}
	}
}

// cloneEvent copies the identity so subscribers cannot mutate each other's view.
func cloneEvent(ev domainauth.IdentityEvent) domainauth.IdentityEvent {
	if ev.Identity == nil {
		return ev
	}
	id := *ev.Identity
	return domainauth.IdentityEvent{Identity: &id}
}
