// Package queue provides a thread-safe work queue whose items carry result handles.
package queue

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/jzx17/gothread/pkg/types"
)

// Item is a unit of work carrying a payload P and a result handle for R.
// The producer and the queue share it; it is garbage once both let go.
type Item[P, R any] struct {
	id       string
	payload  P
	handle   *Handle[R]
	valid    atomic.Bool
	enqueued atomic.Int64 // Unix nanosecond timestamp
}

// NewItem creates a valid item with a fresh ID
func NewItem[P, R any](payload P) *Item[P, R] {
	return NewItemWithClock[P, R](payload, types.NewRealClock())
}

// NewItemWithClock creates an item whose handle uses clock for timed waits
func NewItemWithClock[P, R any](payload P, clock types.Clock) *Item[P, R] {
	return NewItemWithID[P, R](uuid.NewString(), payload, clock)
}

// NewItemWithID creates an item with a caller-chosen ID
func NewItemWithID[P, R any](id string, payload P, clock types.Clock) *Item[P, R] {
	it := &Item[P, R]{
		id:      id,
		payload: payload,
		handle:  NewHandleWithClock[R](clock),
	}
	it.valid.Store(true)
	return it
}

// ID returns the item ID
func (i *Item[P, R]) ID() string {
	return i.id
}

// Payload returns the caller-supplied payload
func (i *Item[P, R]) Payload() P {
	return i.payload
}

// Handle returns the result handle
func (i *Item[P, R]) Handle() *Handle[R] {
	return i.handle
}

// Resolve fulfills the item's handle with v
func (i *Item[P, R]) Resolve(v R) error {
	if err := i.handle.Set(v); err != nil {
		return fmt.Errorf("item %s: %w", i.id, err)
	}
	return nil
}

// Resolved reports whether the handle was fulfilled
func (i *Item[P, R]) Resolved() bool {
	return i.handle.IsSet()
}

// Valid reports whether the item is still wanted. Drained items are invalid.
func (i *Item[P, R]) Valid() bool {
	return i.valid.Load()
}

// Invalidate marks the item as no longer needing processing
func (i *Item[P, R]) Invalidate() {
	i.valid.Store(false)
}

// EnqueuedAt returns when the item was last pushed, or the zero time
func (i *Item[P, R]) EnqueuedAt() time.Time {
	ns := i.enqueued.Load()
	if ns == 0 {
		return time.Time{}
	}
	return time.Unix(0, ns)
}

// Get blocks until the item is resolved
func (i *Item[P, R]) Get() R {
	return i.handle.Get()
}

// Wait blocks until the item is resolved or ctx is done. A drained item
// yields its zero value; check Valid to tell it from a processed one.
func (i *Item[P, R]) Wait(ctx context.Context) (R, error) {
	return i.handle.Wait(ctx)
}

// Release invalidates the item and fulfills it with the zero value so a
// blocked producer returns. It is a no-op on an already resolved item: the
// check and both writes happen in one step under the handle mutex.
func (i *Item[P, R]) Release() bool {
	var zero R
	return i.handle.setWith(zero, i.Invalidate) == nil
}
