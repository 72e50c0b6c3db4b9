// Package cond provides a predicate-gated wait primitive with optional timeouts.
//
// A Condition pairs a mutex with a set of waiters. Writers mutate the data a
// predicate observes while holding the mutex (Update or Lock/Unlock), release
// it, and then call NotifyOne or NotifyAll. Waiters evaluate the predicate
// under the mutex and register themselves before releasing it, so a
// notification that follows a mutation is never lost. Every wakeup re-checks
// the predicate, which makes spurious wakeups harmless.
package cond

import (
	"context"
	"sync"
	"time"

	"github.com/jzx17/gothread/pkg/types"
)

// waiter is a single blocked caller. The channel holds at most one token.
type waiter struct {
	ch chan struct{}
}

// Condition is a mutex-guarded condition with timed waits
type Condition struct {
	mu sync.Mutex

	// waitersMu guards waiters; it is never held while blocking
	waitersMu sync.Mutex
	waiters   []*waiter

	clock types.Clock
}

// New creates a Condition backed by the real clock
func New() *Condition {
	return NewWithClock(types.NewRealClock())
}

// NewWithClock creates a Condition whose timeouts use clock
func NewWithClock(clock types.Clock) *Condition {
	return &Condition{clock: types.ClockOrReal(clock)}
}

// Lock acquires the mutex that guards predicate state
func (c *Condition) Lock() {
	c.mu.Lock()
}

// Unlock releases the mutex that guards predicate state
func (c *Condition) Unlock() {
	c.mu.Unlock()
}

// Update runs fn while holding the mutex. It does not notify.
func (c *Condition) Update(fn func()) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if fn != nil {
		fn()
	}
}

// Wait blocks until pred returns true
func (c *Condition) Wait(pred func() bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	for !pred() {
		w := c.enqueue()
		c.mu.Unlock()
		<-w.ch
		c.mu.Lock()
	}
}

// WaitFor blocks until pred returns true or timeout elapses. It returns the
// final value of pred, so false means the timeout expired with pred still false.
func (c *Condition) WaitFor(timeout time.Duration, pred func() bool) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if pred() {
		return true
	}
	if timeout <= 0 {
		return false
	}

	timer := c.clock.NewTimer(timeout, "cond", "WaitFor")
	defer timer.Stop()

	expired := false
	for !pred() {
		if expired {
			return false
		}
		w := c.enqueue()
		c.mu.Unlock()
		select {
		case <-w.ch:
		case <-timer.C:
			expired = true
			c.remove(w)
		}
		c.mu.Lock()
	}
	return true
}

// WaitContext blocks until pred returns true or ctx is done
func (c *Condition) WaitContext(ctx context.Context, pred func() bool) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	for !pred() {
		if err := ctx.Err(); err != nil {
			return err
		}
		w := c.enqueue()
		c.mu.Unlock()
		select {
		case <-w.ch:
		case <-ctx.Done():
			c.remove(w)
		}
		c.mu.Lock()
	}
	return nil
}

// NotifyOne wakes the longest waiting caller, if any
func (c *Condition) NotifyOne() {
	c.waitersMu.Lock()
	defer c.waitersMu.Unlock()

	if len(c.waiters) == 0 {
		return
	}
	w := c.waiters[0]
	c.waiters[0] = nil
	c.waiters = c.waiters[1:]
	w.ch <- struct{}{}
}

// NotifyAll wakes every waiting caller
func (c *Condition) NotifyAll() {
	c.waitersMu.Lock()
	defer c.waitersMu.Unlock()

	for _, w := range c.waiters {
		w.ch <- struct{}{}
	}
	c.waiters = nil
}

// Waiters returns the number of blocked callers
func (c *Condition) Waiters() int {
	c.waitersMu.Lock()
	defer c.waitersMu.Unlock()
	return len(c.waiters)
}

// enqueue registers a waiter. Caller holds c.mu.
func (c *Condition) enqueue() *waiter {
	w := &waiter{ch: make(chan struct{}, 1)}
	c.waitersMu.Lock()
	c.waiters = append(c.waiters, w)
	c.waitersMu.Unlock()
	return w
}

// remove drops a waiter that gave up. A token already delivered stays in the
// channel and is discarded with it; the caller re-checks its predicate anyway.
func (c *Condition) remove(w *waiter) {
	c.waitersMu.Lock()
	defer c.waitersMu.Unlock()

	for i, other := range c.waiters {
		if other == w {
			c.waiters = append(c.waiters[:i], c.waiters[i+1:]...)
			return
		}
	}
}
