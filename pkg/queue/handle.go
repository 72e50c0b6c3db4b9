package queue

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/jzx17/gothread/pkg/types"
)

// Void is the result type of items that produce no value
type Void = struct{}

// Handle is a write-once, read-many result slot. One consumer sets it, any
// number of producers block on or poll it.
type Handle[R any] struct {
	mu    sync.Mutex
	set   atomic.Bool
	done  chan struct{}
	value R
	clock types.Clock
}

// NewHandle creates an unset handle using the real clock
func NewHandle[R any]() *Handle[R] {
	return NewHandleWithClock[R](types.NewRealClock())
}

// NewHandleWithClock creates an unset handle whose timed waits use clock
func NewHandleWithClock[R any](clock types.Clock) *Handle[R] {
	return &Handle[R]{
		done:  make(chan struct{}),
		clock: types.ClockOrReal(clock),
	}
}

// Set stores v and releases every waiter. A second call returns
// types.ErrResultAlreadySet and leaves the first value in place.
func (h *Handle[R]) Set(v R) error {
	return h.setWith(v, nil)
}

// setWith runs before, then stores v, all under the handle mutex. before only
// runs when the handle was still unset, and its effects are visible to every
// waiter released by the store.
func (h *Handle[R]) setWith(v R, before func()) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.set.Load() {
		return types.ErrResultAlreadySet
	}
	if before != nil {
		before()
	}
	h.value = v
	h.set.Store(true)
	close(h.done)
	return nil
}

// IsSet reports whether the handle was fulfilled
func (h *Handle[R]) IsSet() bool {
	return h.set.Load()
}

// Done returns a channel closed once the handle is fulfilled
func (h *Handle[R]) Done() <-chan struct{} {
	return h.done
}

// Get blocks until the handle is fulfilled and returns its value
func (h *Handle[R]) Get() R {
	<-h.done
	return h.value
}

// Wait blocks until the handle is fulfilled or ctx is done
func (h *Handle[R]) Wait(ctx context.Context) (R, error) {
	select {
	case <-h.done:
		return h.value, nil
	case <-ctx.Done():
		var zero R
		return zero, ctx.Err()
	}
}

// WaitFor blocks for at most timeout and reports whether the handle is fulfilled
func (h *Handle[R]) WaitFor(timeout time.Duration) bool {
	select {
	case <-h.done:
		return true
	default:
	}
	if timeout <= 0 {
		return false
	}

	timer := h.clock.NewTimer(timeout, "handle", "WaitFor")
	defer timer.Stop()

	select {
	case <-h.done:
		return true
	case <-timer.C:
		return h.IsSet()
	}
}

// TryGet returns the value without blocking
func (h *Handle[R]) TryGet() (R, bool) {
	select {
	case <-h.done:
		return h.value, true
	default:
		var zero R
		return zero, false
	}
}
