// Package guarded provides containers whose every operation runs under a single mutex.
package guarded

import (
	"sync"

	"github.com/jzx17/gothread/pkg/types"
)

// Deque is a double-ended queue guarded by one mutex per operation
type Deque[T any] struct {
	mu    sync.Mutex
	items []T
}

// NewDeque creates an empty Deque
func NewDeque[T any]() *Deque[T] {
	return &Deque[T]{}
}

// PushBack appends v and returns the new length
func (d *Deque[T]) PushBack(v T) int {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.items = append(d.items, v)
	return len(d.items)
}

// PushFront prepends v and returns the new length
func (d *Deque[T]) PushFront(v T) int {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.items = append(d.items, v)
	copy(d.items[1:], d.items)
	d.items[0] = v
	return len(d.items)
}

// PopFront removes and returns the first element, or types.ErrEmptyQueue
func (d *Deque[T]) PopFront() (T, error) {
	v, ok := d.TryPopFront()
	if !ok {
		return v, types.ErrEmptyQueue
	}
	return v, nil
}

// TryPopFront removes and returns the first element if there is one
func (d *Deque[T]) TryPopFront() (T, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()

	var zero T
	if len(d.items) == 0 {
		return zero, false
	}
	v := d.items[0]
	d.items[0] = zero
	d.items = d.items[1:]
	return v, true
}

// PopBack removes and returns the last element, or types.ErrEmptyQueue
func (d *Deque[T]) PopBack() (T, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	var zero T
	if len(d.items) == 0 {
		return zero, types.ErrEmptyQueue
	}
	last := len(d.items) - 1
	v := d.items[last]
	d.items[last] = zero
	d.items = d.items[:last]
	return v, nil
}

// Front returns the first element without removing it
func (d *Deque[T]) Front() (T, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if len(d.items) == 0 {
		var zero T
		return zero, false
	}
	return d.items[0], true
}

// Back returns the last element without removing it
func (d *Deque[T]) Back() (T, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if len(d.items) == 0 {
		var zero T
		return zero, false
	}
	return d.items[len(d.items)-1], true
}

// Len returns the number of elements
func (d *Deque[T]) Len() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.items)
}

// Empty reports whether the deque has no elements
func (d *Deque[T]) Empty() bool {
	return d.Len() == 0
}

// Clear drops every element
func (d *Deque[T]) Clear() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.items = nil
}

// Drain removes and returns every element in order
func (d *Deque[T]) Drain() []T {
	d.mu.Lock()
	defer d.mu.Unlock()
	items := d.items
	d.items = nil
	return items
}

// RemoveIf removes every element matching pred and returns them in order
func (d *Deque[T]) RemoveIf(pred func(T) bool) []T {
	d.mu.Lock()
	defer d.mu.Unlock()

	var removed []T
	kept := d.items[:0]
	for _, v := range d.items {
		if pred(v) {
			removed = append(removed, v)
			continue
		}
		kept = append(kept, v)
	}
	var zero T
	for i := len(kept); i < len(d.items); i++ {
		d.items[i] = zero
	}
	d.items = kept
	return removed
}

// Snapshot returns a copy of the current elements
func (d *Deque[T]) Snapshot() []T {
	d.mu.Lock()
	defer d.mu.Unlock()
	out := make([]T, len(d.items))
	copy(out, d.items)
	return out
}
