// Package errors provides the error handling strategies consumers apply to
// handler and timeout errors
package errors

import (
	"context"
	stderrors "errors"
	"reflect"
	"time"

	"github.com/jzx17/gothread/pkg/types"
)

// ErrorHandler decides what a consumer does with a failed invocation
type ErrorHandler interface {
	// HandleError returns nil when the consumer should keep running, or the
	// error the consumer fails itself with
	HandleError(ctx context.Context, errCtx *ErrorContext) error

	// Name returns the name of the error handler
	Name() string
}

// ErrorContext defines context information when an error occurs
type ErrorContext struct {
	// Error that occurred
	Error error

	// Operation is "handle" for item handlers and "timeout" for timeout handlers
	Operation string

	// Worker is the name of the consumer
	Worker string

	// ItemID identifies the work item, empty for timeouts
	ItemID string

	// Payload is the item payload, nil for timeouts
	Payload interface{}

	// PayloadType is the type information of the payload
	PayloadType reflect.Type

	// Timestamp when the error occurred
	Timestamp time.Time

	// Duration of the failed invocation
	Duration time.Duration
}

// NewErrorContext creates a new error context stamped with clock's time
func NewErrorContext(err error, operation, worker string, clock types.Clock) *ErrorContext {
	return &ErrorContext{
		Error:     err,
		Operation: operation,
		Worker:    worker,
		Timestamp: types.ClockOrReal(clock).Now(),
	}
}

// WithItem records the work item the error belongs to
func (ec *ErrorContext) WithItem(id string, payload interface{}) *ErrorContext {
	ec.ItemID = id
	ec.Payload = payload
	if payload != nil {
		ec.PayloadType = reflect.TypeOf(payload)
	}
	return ec
}

// IsPanic reports whether the error came from a recovered panic
func (ec *ErrorContext) IsPanic() bool {
	return stderrors.Is(ec.Error, types.ErrWorkerPanic)
}

// ErrorHandlerStrategy defines error handling strategy types
type ErrorHandlerStrategy int

const (
	// ContinueOnErrorStrategy keeps the consumer running unless the error is fatal
	ContinueOnErrorStrategy ErrorHandlerStrategy = iota
	// FailFastStrategy fails the consumer on the first error
	FailFastStrategy
)

// String returns the string representation of the strategy
func (s ErrorHandlerStrategy) String() string {
	switch s {
	case FailFastStrategy:
		return "FailFast"
	case ContinueOnErrorStrategy:
		return "ContinueOnError"
	default:
		return "Unknown"
	}
}

// NewHandler returns the built-in handler for strategy. config only applies
// to ContinueOnErrorStrategy and may be nil.
func NewHandler(strategy ErrorHandlerStrategy, config *ContinueOnErrorConfig) ErrorHandler {
	if strategy == FailFastStrategy {
		return NewFailFastHandler()
	}
	return NewContinueOnErrorHandler(config)
}

// FailFastHandler implements fail-fast error handling
type FailFastHandler struct {
	name string
}

// NewFailFastHandler creates a new fail-fast handler
func NewFailFastHandler() *FailFastHandler {
	return &FailFastHandler{
		name: "FailFast",
	}
}

// HandleError implements the ErrorHandler interface
func (h *FailFastHandler) HandleError(ctx context.Context, errCtx *ErrorContext) error {
	return errCtx.Error
}

// Name returns the handler name
func (h *FailFastHandler) Name() string {
	return h.name
}

// ContinueOnErrorHandler ignores errors except the fatal ones
type ContinueOnErrorHandler struct {
	name  string
	fatal []error
}

// ContinueOnErrorConfig contains configuration for continue-on-error handler
type ContinueOnErrorConfig struct {
	// FatalErrors still fail the consumer. types.ErrWorkerFailed is always fatal.
	FatalErrors []error

	// FatalPanics makes recovered handler panics fail the consumer
	FatalPanics bool
}

// NewContinueOnErrorHandler creates a continue-on-error handler
func NewContinueOnErrorHandler(config *ContinueOnErrorConfig) *ContinueOnErrorHandler {
	handler := &ContinueOnErrorHandler{
		name:  "ContinueOnError",
		fatal: []error{types.ErrWorkerFailed},
	}

	if config != nil {
		for _, err := range config.FatalErrors {
			if err != nil {
				handler.fatal = append(handler.fatal, err)
			}
		}
		if config.FatalPanics {
			handler.fatal = append(handler.fatal, types.ErrWorkerPanic)
		}
	}

	return handler
}

// HandleError implements the ErrorHandler interface
func (h *ContinueOnErrorHandler) HandleError(ctx context.Context, errCtx *ErrorContext) error {
	if h.IsFatal(errCtx.Error) {
		return errCtx.Error
	}
	return nil
}

// IsFatal reports whether err matches one of the fatal errors
func (h *ContinueOnErrorHandler) IsFatal(err error) bool {
	if err == nil {
		return false
	}
	for _, target := range h.fatal {
		if stderrors.Is(err, target) {
			return true
		}
	}
	return false
}

// Name returns the handler name
func (h *ContinueOnErrorHandler) Name() string {
	return h.name
}
