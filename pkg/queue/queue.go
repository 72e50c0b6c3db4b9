package queue

import (
	"time"

	"github.com/creasty/defaults"
	"go.uber.org/zap"

	"github.com/jzx17/gothread/pkg/cond"
	"github.com/jzx17/gothread/pkg/guarded"
	"github.com/jzx17/gothread/pkg/metrics"
	"github.com/jzx17/gothread/pkg/types"
)

// Config defines configuration for a work queue
type Config struct {
	// Name labels logs and metrics
	Name string `default:"queue"`

	// Clock for item handles and condition timeouts (optional, defaults to real clock)
	Clock types.Clock

	// Logger (optional, defaults to the global zap logger)
	Logger *zap.Logger

	// Metrics (optional)
	Metrics *metrics.Metrics
}

// Queue is an ordered, mutually exclusive sequence of work items plus the
// condition consumers wait on. Every mutation happens under the condition's
// mutex so that a waiter evaluating "queue non-empty" cannot miss a push.
type Queue[P, R any] struct {
	name    string
	items   *guarded.Deque[*Item[P, R]]
	cond    *cond.Condition
	clock   types.Clock
	logger  *zap.SugaredLogger
	metrics *metrics.Metrics
}

// New creates a queue with default configuration
func New[P, R any]() *Queue[P, R] {
	return NewWithConfig[P, R](nil)
}

// NewWithConfig creates a queue
func NewWithConfig[P, R any](config *Config) *Queue[P, R] {
	if config == nil {
		config = &Config{}
	}
	defaults.MustSet(config)
	clock := types.ClockOrReal(config.Clock)
	logger := config.Logger
	if logger == nil {
		logger = zap.L()
	}

	return &Queue[P, R]{
		name:    config.Name,
		items:   guarded.NewDeque[*Item[P, R]](),
		cond:    cond.NewWithClock(clock),
		clock:   clock,
		logger:  logger.Sugar().Named(config.Name),
		metrics: config.Metrics,
	}
}

// Name returns the queue name
func (q *Queue[P, R]) Name() string {
	return q.name
}

// Clock returns the queue's clock
func (q *Queue[P, R]) Clock() types.Clock {
	return q.clock
}

// Condition returns the wake condition shared by the queue's consumers
func (q *Queue[P, R]) Condition() *cond.Condition {
	return q.cond
}

// Push appends item and wakes exactly one waiting consumer
func (q *Queue[P, R]) Push(item *Item[P, R]) {
	if item == nil {
		return
	}
	item.enqueued.Store(q.clock.Now().UnixNano())

	// the depth gauge is written under the mutex so it follows push order
	q.cond.Update(func() {
		q.metrics.Pushed(q.name, q.items.PushBack(item))
	})
	q.cond.NotifyOne()
}

// Emplace wraps payload in a new item, pushes it and returns it
func (q *Queue[P, R]) Emplace(payload P) *Item[P, R] {
	item := NewItemWithClock[P, R](payload, q.clock)
	q.Push(item)
	return item
}

// Pop removes the foremost item or returns types.ErrEmptyQueue
func (q *Queue[P, R]) Pop() (*Item[P, R], error) {
	item, ok := q.TryPop()
	if !ok {
		return nil, types.ErrEmptyQueue
	}
	return item, nil
}

// TryPop atomically checks for and removes the foremost item
func (q *Queue[P, R]) TryPop() (*Item[P, R], bool) {
	var (
		item *Item[P, R]
		ok   bool
	)
	q.cond.Update(func() {
		item, ok = q.items.TryPopFront()
		if ok {
			q.metrics.Depth(q.name, q.items.Len())
		}
	})
	return item, ok
}

// Front returns the foremost item without removing it
func (q *Queue[P, R]) Front() (*Item[P, R], bool) {
	return q.items.Front()
}

// Len returns a snapshot of the number of pending items
func (q *Queue[P, R]) Len() int {
	return q.items.Len()
}

// Empty returns a snapshot of whether the queue has no pending items
func (q *Queue[P, R]) Empty() bool {
	return q.items.Empty()
}

// Clear drains the queue: every pending item is invalidated and fulfilled
// with its zero value so blocked producers are released. Returns the count.
func (q *Queue[P, R]) Clear() int {
	var drained []*Item[P, R]
	q.cond.Update(func() {
		drained = q.items.Drain()
		q.metrics.Drained(q.name, len(drained))
	})

	n := 0
	for _, item := range drained {
		if item.Release() {
			n++
		}
	}
	if len(drained) > 0 {
		q.logger.Debugw("queue drained", "items", len(drained))
	}
	return n
}

// RemoveIf removes every pending item matching pred without resolving or
// invalidating it, and returns the removed items.
func (q *Queue[P, R]) RemoveIf(pred func(*Item[P, R]) bool) []*Item[P, R] {
	var removed []*Item[P, R]
	q.cond.Update(func() {
		removed = q.items.RemoveIf(pred)
		if len(removed) > 0 {
			q.metrics.Cancelled(q.name, len(removed), q.items.Len())
		}
	})
	return removed
}

// Cancel removes the pending item with the given ID
func (q *Queue[P, R]) Cancel(id string) (*Item[P, R], bool) {
	removed := q.RemoveIf(func(item *Item[P, R]) bool {
		return item.ID() == id
	})
	if len(removed) == 0 {
		return nil, false
	}
	return removed[0], true
}

// OldestAge returns how long the foremost item has been waiting
func (q *Queue[P, R]) OldestAge() time.Duration {
	item, ok := q.items.Front()
	if !ok {
		return 0
	}
	return q.clock.Since(item.EnqueuedAt())
}

// NotifyAll wakes every consumer blocked on the queue
func (q *Queue[P, R]) NotifyAll() {
	q.cond.Update(nil)
	q.cond.NotifyAll()
}
