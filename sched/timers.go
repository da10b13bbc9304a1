// Package sched holds the bot's scheduling primitives: one-shot in-process
// timers for delayed content continuations and a cron wrapper for periodic
// sweeps. Pending timers are not durable; a restart drops them.
package sched

import (
	"sync"
	"time"
)

// Timers is a registry of one-shot continuations keyed by caller-chosen ids.
// Scheduling under an existing key replaces the pending timer, so at most one
// continuation per key can be in flight.
type Timers struct {
	mu      sync.Mutex
	pending map[string]*time.Timer
}

// NewTimers builds an empty registry.
func NewTimers() *Timers {
	return &Timers{pending: make(map[string]*time.Timer)}
}

// Schedule arms fn to run once after d. The callback runs on the timer
// goroutine and is deregistered before it fires.
func (t *Timers) Schedule(key string, d time.Duration, fn func()) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if prev, ok := t.pending[key]; ok {
		prev.Stop()
	}
	t.pending[key] = time.AfterFunc(d, func() {
		t.mu.Lock()
		delete(t.pending, key)
		t.mu.Unlock()
		fn()
	})
}

// Cancel stops a pending timer. It reports whether one was pending.
func (t *Timers) Cancel(key string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	timer, ok := t.pending[key]
	if !ok {
		return false
	}
	timer.Stop()
	delete(t.pending, key)
	return true
}

// Pending returns the number of armed timers.
func (t *Timers) Pending() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.pending)
}

// StopAll cancels everything, for shutdown.
func (t *Timers) StopAll() {
	t.mu.Lock()
	defer t.mu.Unlock()
	for key, timer := range t.pending {
		timer.Stop()
		delete(t.pending, key)
	}
}
