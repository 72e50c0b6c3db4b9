package testutils

import (
	"context"
	"testing"
	"time"

	"github.com/coder/quartz"
)

// NewMockClock creates a mock clock for testing
func NewMockClock(t testing.TB) *quartz.Mock {
	return quartz.NewMock(t)
}

// WaitForTimer blocks until the mock clock has at least one pending timer and
// returns the duration until it fires.
func WaitForTimer(t testing.TB, mock *quartz.Mock) time.Duration {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		if d, ok := mock.Peek(); ok {
			return d
		}
		time.Sleep(time.Millisecond)
	}
	t.Fatalf("no timer was registered on the mock clock")
	return 0
}

// FireNext waits for a pending timer, advances the mock clock to it and waits
// for every timer firing at that instant to be delivered.
func FireNext(ctx context.Context, t testing.TB, mock *quartz.Mock) time.Duration {
	t.Helper()
	WaitForTimer(t, mock)
	d, w := mock.AdvanceNext()
	w.MustWait(ctx)
	return d
}
