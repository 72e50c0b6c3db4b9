// Package scheduler runs periodic tasks on a single worker goroutine.
package scheduler

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/jzx17/gothread/pkg/types"
)

// Task is a unit of work a Scheduler invokes when it is due
type Task interface {
	// ID uniquely identifies the task within a scheduler
	ID() string

	// Due reports whether the task should run at now
	Due(now time.Time) bool

	// Execute runs the task once
	Execute(ctx context.Context) error
}

// TaskFunc is the handler of a PeriodicTask
type TaskFunc func(ctx context.Context) error

// PeriodicTask runs its handler at most once per period. The first run is due
// one period after creation; each run schedules the next one period after it
// finished, so lateness accumulates.
type PeriodicTask struct {
	id      string
	fn      TaskFunc
	period  time.Duration
	clock   types.Clock
	next    atomic.Int64 // Unix nanosecond timestamp
	lastRun atomic.Int64 // Unix nanosecond timestamp
	runs    atomic.Int64
}

// NewTask creates a periodic task. A zero period makes it due on every wakeup.
func NewTask(fn TaskFunc, period time.Duration) (*PeriodicTask, error) {
	return NewTaskWithClock(fn, period, types.NewRealClock())
}

// NewTaskWithClock creates a periodic task reading time from clock
func NewTaskWithClock(fn TaskFunc, period time.Duration, clock types.Clock) (*PeriodicTask, error) {
	if fn == nil {
		return nil, fmt.Errorf("task handler cannot be nil: %w", types.ErrInvalidConfig)
	}
	if period < 0 {
		return nil, fmt.Errorf("task period cannot be negative, got %v: %w", period, types.ErrInvalidConfig)
	}

	clock = types.ClockOrReal(clock)
	t := &PeriodicTask{
		id:     uuid.NewString(),
		fn:     fn,
		period: period,
		clock:  clock,
	}
	t.next.Store(clock.Now().Add(period).UnixNano())
	return t, nil
}

// ID implements Task
func (t *PeriodicTask) ID() string {
	return t.id
}

// Period returns the repetition period
func (t *PeriodicTask) Period() time.Duration {
	return t.period
}

// NextRun returns when the task is next due
func (t *PeriodicTask) NextRun() time.Time {
	return time.Unix(0, t.next.Load())
}

// LastRun returns when the task last finished, or the zero time
func (t *PeriodicTask) LastRun() time.Time {
	ns := t.lastRun.Load()
	if ns == 0 {
		return time.Time{}
	}
	return time.Unix(0, ns)
}

// Runs returns how many times the task was executed
func (t *PeriodicTask) Runs() int64 {
	return t.runs.Load()
}

// Due implements Task
func (t *PeriodicTask) Due(now time.Time) bool {
	return !now.Before(t.NextRun())
}

// Execute implements Task. The next run is rescheduled even if the handler
// fails or panics.
func (t *PeriodicTask) Execute(ctx context.Context) error {
	defer func() {
		now := t.clock.Now()
		t.lastRun.Store(now.UnixNano())
		t.next.Store(now.Add(t.period).UnixNano())
	}()
	t.runs.Add(1)
	return t.fn(ctx)
}
