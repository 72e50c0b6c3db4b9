// Package types defines core states, interfaces and statistics shared by gothread packages
package types

import (
	"time"
)

// WorkerState defines the lifecycle state of a Worker
type WorkerState int32

const (
	// WorkerStateCreated is the state a worker is constructed with
	WorkerStateCreated WorkerState = iota
	// WorkerStateRunning indicates the worker goroutine was started
	WorkerStateRunning
	// WorkerStateStopped indicates a stop was requested
	WorkerStateStopped
	// WorkerStateFailed indicates the loop reported its own failure
	WorkerStateFailed
	// WorkerStateJoined indicates the goroutine finished and was joined
	WorkerStateJoined
)

// String returns the string representation of WorkerState
func (ws WorkerState) String() string {
	switch ws {
	case WorkerStateCreated:
		return "created"
	case WorkerStateRunning:
		return "running"
	case WorkerStateStopped:
		return "stopped"
	case WorkerStateFailed:
		return "failed"
	case WorkerStateJoined:
		return "joined"
	default:
		return "unknown"
	}
}

// StopReason tells why a worker session ended
type StopReason int32

const (
	// StopReasonNone means the session has not ended
	StopReasonNone StopReason = iota
	// StopReasonExternal means Stop was requested
	StopReasonExternal
	// StopReasonFailure means the loop called Fail
	StopReasonFailure
	// StopReasonPanic means the loop panicked
	StopReasonPanic
)

// String returns the string representation of StopReason
func (sr StopReason) String() string {
	switch sr {
	case StopReasonNone:
		return "none"
	case StopReasonExternal:
		return "external_stop"
	case StopReasonFailure:
		return "self_reported_failure"
	case StopReasonPanic:
		return "panic"
	default:
		return "unknown"
	}
}

// Lifecycle is implemented by everything that owns worker goroutines
type Lifecycle interface {
	// Start starts the goroutine(s); it is a no-op when already started
	Start()

	// Stop requests termination without blocking
	Stop()

	// Join blocks until the goroutine(s) finished
	Join() error

	// Close stops and joins
	Close() error
}

// ConsumerStats defines statistics of a queue consumer
type ConsumerStats struct {
	Name           string
	State          WorkerState
	TotalProcessed int64
	TotalFailed    int64
	TotalTimeouts  int64
	LastItemTime   time.Time
}

// IsActive checks if the consumer is running
func (cs ConsumerStats) IsActive() bool {
	return cs.State == WorkerStateRunning
}

// GetSuccessRate gets the success rate
func (cs ConsumerStats) GetSuccessRate() float64 {
	total := cs.TotalProcessed + cs.TotalFailed
	if total == 0 {
		return 0
	}
	return float64(cs.TotalProcessed) / float64(total)
}

// GetErrorRate gets the error rate
func (cs ConsumerStats) GetErrorRate() float64 {
	total := cs.TotalProcessed + cs.TotalFailed
	if total == 0 {
		return 0
	}
	return float64(cs.TotalFailed) / float64(total)
}

// PoolStats defines statistics for a consumer pool
type PoolStats struct {
	// PoolSize is the number of consumers
	PoolSize int

	// RunningConsumers is the number of consumers in the running state
	RunningConsumers int

	// QueueSize is the current number of pending items
	QueueSize int

	// TotalProcessed sums processed items across consumers
	TotalProcessed int64

	// TotalFailed sums failed items across consumers
	TotalFailed int64
}

// SchedulerStats defines statistics for the periodic task scheduler
type SchedulerStats struct {
	Name       string
	State      WorkerState
	Tasks      int
	Wakeups    int64
	TaskRuns   int64
	TaskErrors int64
	NextWakeup time.Time
}
