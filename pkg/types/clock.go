// Package types provides core clock abstractions for time mocking
package types

import (
	"context"

	"github.com/coder/quartz"
)

// Clock is the time source used by every component. quartz.NewReal() in
// production, quartz.NewMock(t) in tests.
type Clock = quartz.Clock

// NewRealClock creates a new real clock
func NewRealClock() Clock {
	return quartz.NewReal()
}

// ClockOrReal returns c, or a real clock when c is nil
func ClockOrReal(c Clock) Clock {
	if c == nil {
		return NewRealClock()
	}
	return c
}

type clockKey struct{}

// WithClock adds a clock to the context
func WithClock(ctx context.Context, clock Clock) context.Context {
	return context.WithValue(ctx, clockKey{}, clock)
}

// ClockFromContext retrieves clock from context, returns a real clock if not found
func ClockFromContext(ctx context.Context) Clock {
	if clock, ok := ctx.Value(clockKey{}).(Clock); ok {
		return clock
	}
	return NewRealClock()
}
