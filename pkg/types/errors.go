// Package types defines error types
package types

import (
	"errors"
	"fmt"
)

// Predefined errors
var (
	// ErrEmptyQueue indicates a pop was attempted on an empty queue.
	// Callers treat it as "no work yet", never as a fatal condition.
	ErrEmptyQueue = errors.New("queue is empty")

	// ErrWorkerFailed marks a failure reported by a worker loop about itself
	ErrWorkerFailed = errors.New("worker failed")

	// ErrWorkerPanic indicates the worker goroutine panicked
	ErrWorkerPanic = errors.New("worker panicked")

	// ErrResultAlreadySet indicates a result handle was fulfilled twice
	ErrResultAlreadySet = errors.New("result already set")

	// ErrItemInvalidated indicates an item was drained without being processed
	ErrItemInvalidated = errors.New("work item invalidated")

	// ErrInvalidConfig indicates a constructor received unusable configuration
	ErrInvalidConfig = errors.New("invalid configuration")

	// ErrDuplicateTask indicates a task ID is already registered with a scheduler
	ErrDuplicateTask = errors.New("task already registered")
)

// WorkerError represents an error raised on a worker goroutine
type WorkerError struct {
	// Operation is the name of the operation where the error occurred
	Operation string

	// Worker is the name of the worker that produced the error
	Worker string

	// Cause is the underlying error
	Cause error

	// Context contains error context information
	Context map[string]interface{}
}

// Error implements the error interface
func (e *WorkerError) Error() string {
	return fmt.Sprintf("worker %s: %s: %v", e.Worker, e.Operation, e.Cause)
}

// Unwrap returns the underlying error
func (e *WorkerError) Unwrap() error {
	return e.Cause
}

// Is checks if the error is a specific error
func (e *WorkerError) Is(target error) bool {
	return errors.Is(e.Cause, target)
}

// NewWorkerError creates a new worker error
func NewWorkerError(operation, worker string, cause error) *WorkerError {
	return &WorkerError{
		Operation: operation,
		Worker:    worker,
		Cause:     cause,
		Context:   make(map[string]interface{}),
	}
}

// WithContext adds error context
func (e *WorkerError) WithContext(key string, value interface{}) *WorkerError {
	e.Context[key] = value
	return e
}

// PanicError converts a recovered panic value into an error wrapping ErrWorkerPanic
func PanicError(r interface{}) error {
	switch v := r.(type) {
	case error:
		return fmt.Errorf("%w: %w", ErrWorkerPanic, v)
	case string:
		return fmt.Errorf("%w: %s", ErrWorkerPanic, v)
	default:
		return fmt.Errorf("%w: %v", ErrWorkerPanic, v)
	}
}

// IsWorkerFailure reports whether err asks the worker to fail itself
func IsWorkerFailure(err error) bool {
	return errors.Is(err, ErrWorkerFailed)
}
