// Package netmon tracks connectivity and fans change notifications out
// to subscribers. Notifications are at-least-once and best-effort;
// consumers must treat duplicate reports of the same state as no-ops.
package netmon

import "sync"

// Monitor exposes current connectivity and a change subscription.
type Monitor interface {
	// Current returns the connectivity flag as last observed.
	Current() bool
	// Subscribe registers fn for change notifications and returns a
	// handle for Unsubscribe. fn may be invoked from a monitor-owned
	// goroutine.
	Subscribe(fn func(online bool)) Subscription
	// Unsubscribe releases the handle. Safe to call more than once.
	Unsubscribe(sub Subscription)
}

// Subscription identifies one registered callback.
type Subscription int64

// Manual is a Monitor whose state is driven by its owner, used in tests
// and by embedders that have their own connectivity signal.
type Manual struct {
	mu     sync.Mutex
	online bool
	nextID Subscription
	subs   map[Subscription]func(bool)
}

func NewManual(online bool) *Manual {
	return &Manual{online: online, subs: make(map[Subscription]func(bool))}
}

func (m *Manual) Current() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.online
}

func (m *Manual) Subscribe(fn func(bool)) Subscription {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.nextID++
	id := m.nextID
	m.subs[id] = fn
	return id
}

func (m *Manual) Unsubscribe(sub Subscription) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.subs, sub)
}

// Set updates the flag and notifies subscribers. Duplicate sets still
// notify; consumers are required to tolerate that.
func (m *Manual) Set(online bool) {
	m.mu.Lock()
	m.online = online
	fns := make([]func(bool), 0, len(m.subs))
	for _, fn := range m.subs {
		fns = append(fns, fn)
	}
	m.mu.Unlock()
	for _, fn := range fns {
		fn(online)
	}
}
