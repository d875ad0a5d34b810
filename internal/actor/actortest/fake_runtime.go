// Package actortest provides test doubles for the actor framework.
package actortest

import (
	"context"
	"sync"
	"time"

	"github.com/fotescodev/claude-watch/cli/internal/actor"
)

// FakeRuntime records every effect batch the actor hands off instead of
// executing it. The zero value is ready to use.
type FakeRuntime struct {
	mu      sync.Mutex
	batches [][]actor.Effect
	changed chan struct{}

	// Handle, when non-nil, runs for each recorded effect and may emit
	// follow-up inputs back into the actor.
	Handle func(ctx context.Context, eff actor.Effect, emit func(actor.Input))
}

// HandleEffects implements actor.Runtime.
func (r *FakeRuntime) HandleEffects(ctx context.Context, effects []actor.Effect, emit func(actor.Input)) {
	r.mu.Lock()
	r.batches = append(r.batches, effects)
	if r.changed != nil {
		close(r.changed)
		r.changed = nil
	}
	handle := r.Handle
	r.mu.Unlock()

	if handle != nil {
		for _, eff := range effects {
			handle(ctx, eff, emit)
		}
	}
}

// Stop implements actor.Runtime.
func (r *FakeRuntime) Stop() {}

// Effects returns all recorded effects in arrival order.
func (r *FakeRuntime) Effects() []actor.Effect {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []actor.Effect
	for _, batch := range r.batches {
		out = append(out, batch...)
	}
	return out
}

// Batches returns how many HandleEffects calls were recorded.
func (r *FakeRuntime) Batches() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.batches)
}

// WaitEffects blocks until at least n effects were recorded or the timeout
// elapses, and reports whether the count was reached.
func (r *FakeRuntime) WaitEffects(n int, timeout time.Duration) bool {
	deadline := time.Now().Add(timeout)
	for {
		r.mu.Lock()
		total := 0
		for _, batch := range r.batches {
			total += len(batch)
		}
		if total >= n {
			r.mu.Unlock()
			return true
		}
		if r.changed == nil {
			r.changed = make(chan struct{})
		}
		wait := r.changed
		r.mu.Unlock()

		remaining := time.Until(deadline)
		if remaining <= 0 {
			return false
		}
		timer := time.NewTimer(remaining)
		select {
		case <-wait:
			timer.Stop()
		case <-timer.C:
			return false
		}
	}
}

// Reset discards all recorded effects.
func (r *FakeRuntime) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.batches = nil
}
