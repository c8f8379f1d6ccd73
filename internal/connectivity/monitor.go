// Package connectivity tracks the last-known online/offline state and
// notifies subscribers on transitions. Online is a best-effort indicator;
// a true value does not guarantee the next round trip succeeds.
package connectivity

import (
	"context"
	"sync"
	"time"
)

// Monitor holds the current connectivity state and its subscribers.
type Monitor struct {
	mu     sync.Mutex
	online bool
	nextID int
	subs   map[int]func(bool)
}

// New creates a Monitor seeded with an initial state.
func New(initial bool) *Monitor {
	return &Monitor{
		online: initial,
		subs:   make(map[int]func(bool)),
	}
}

// IsOnline returns the last-known connectivity state.
func (m *Monitor) IsOnline() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.online
}

// Set ingests a platform connectivity signal. Subscribers are invoked only
// when the state actually changes.
func (m *Monitor) Set(online bool) {
	m.mu.Lock()
	if m.online == online {
		m.mu.Unlock()
		return
	}
	m.online = online
	cbs := make([]func(bool), 0, len(m.subs))
	for _, cb := range m.subs {
		cbs = append(cbs, cb)
	}
	m.mu.Unlock()

	// Callbacks run outside the lock so a subscriber may unsubscribe or
	// query state without deadlocking.
	for _, cb := range cbs {
		cb(online)
	}
}

// OnChange registers cb for connectivity transitions and returns an
// unsubscribe function. Unsubscribe is idempotent and safe to call after
// the monitor has stopped; once called, cb is never invoked again.
func (m *Monitor) OnChange(cb func(online bool)) (unsubscribe func()) {
	m.mu.Lock()
	id := m.nextID
	m.nextID++
	m.subs[id] = cb
	m.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			m.mu.Lock()
			delete(m.subs, id)
			m.mu.Unlock()
		})
	}
}

// Watch drives the monitor from a probe until ctx is cancelled. The probe
// runs immediately and then every interval; its result feeds Set.
func (m *Monitor) Watch(ctx context.Context, probe func(context.Context) bool, interval time.Duration) {
	m.Set(probe(ctx))

	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			m.Set(probe(ctx))
		}
	}
}
