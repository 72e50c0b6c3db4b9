package types

import (
	"errors"
	"strings"
	"testing"
)

func TestPredefinedErrors(t *testing.T) {
	tests := []struct {
		name string
		err  error
	}{
		{"ErrEmptyQueue", ErrEmptyQueue},
		{"ErrWorkerFailed", ErrWorkerFailed},
		{"ErrWorkerPanic", ErrWorkerPanic},
		{"ErrResultAlreadySet", ErrResultAlreadySet},
		{"ErrItemInvalidated", ErrItemInvalidated},
		{"ErrInvalidConfig", ErrInvalidConfig},
		{"ErrDuplicateTask", ErrDuplicateTask},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.err == nil {
				t.Errorf("expected error, got nil")
			}
			if tt.err.Error() == "" {
				t.Errorf("expected non-empty error message")
			}
		})
	}
}

func TestWorkerError(t *testing.T) {
	t.Run("Error Message", func(t *testing.T) {
		cause := errors.New("disk full")
		err := NewWorkerError("handle", "consumer-1", cause)

		if err.Operation != "handle" {
			t.Errorf("expected operation 'handle', got '%s'", err.Operation)
		}
		if err.Worker != "consumer-1" {
			t.Errorf("expected worker 'consumer-1', got '%s'", err.Worker)
		}
		expected := "worker consumer-1: handle: disk full"
		if err.Error() != expected {
			t.Errorf("expected '%s', got '%s'", expected, err.Error())
		}
	})

	t.Run("Unwrap And Is", func(t *testing.T) {
		err := NewWorkerError("loop", "w", ErrWorkerFailed)

		if !errors.Is(err, ErrWorkerFailed) {
			t.Errorf("expected errors.Is to match ErrWorkerFailed")
		}
		if errors.Unwrap(err) != ErrWorkerFailed {
			t.Errorf("expected Unwrap to return the cause")
		}

		var we *WorkerError
		if !errors.As(error(err), &we) {
			t.Errorf("expected errors.As to find *WorkerError")
		}
	})

	t.Run("With Context", func(t *testing.T) {
		err := NewWorkerError("task", "scheduler", errors.New("boom")).
			WithContext("task_id", "abc").
			WithContext("attempt", 2)

		if err.Context["task_id"] != "abc" {
			t.Errorf("expected task_id context 'abc', got %v", err.Context["task_id"])
		}
		if err.Context["attempt"] != 2 {
			t.Errorf("expected attempt context 2, got %v", err.Context["attempt"])
		}
	})
}

func TestPanicError(t *testing.T) {
	cause := errors.New("nil map write")

	tests := []struct {
		name     string
		value    interface{}
		contains string
		wraps    error
	}{
		{"String", "boom", "boom", nil},
		{"Error", cause, "nil map write", cause},
		{"Other", 42, "42", nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := PanicError(tt.value)
			if !errors.Is(err, ErrWorkerPanic) {
				t.Errorf("expected error to wrap ErrWorkerPanic")
			}
			if !strings.Contains(err.Error(), tt.contains) {
				t.Errorf("expected '%s' in '%s'", tt.contains, err.Error())
			}
			if tt.wraps != nil && !errors.Is(err, tt.wraps) {
				t.Errorf("expected error to wrap the panic value")
			}
		})
	}
}

func TestIsWorkerFailure(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		expected bool
	}{
		{"Nil", nil, false},
		{"Plain", errors.New("bad input"), false},
		{"Sentinel", ErrWorkerFailed, true},
		{"Wrapped", NewWorkerError("fail", "w", ErrWorkerFailed), true},
		{"Panic", PanicError("boom"), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsWorkerFailure(tt.err); got != tt.expected {
				t.Errorf("expected %v, got %v", tt.expected, got)
			}
		})
	}
}
