package cond

import (
	"context"
	"time"

	"github.com/jzx17/gothread/pkg/types"
)

// PredicateCondition is a Condition bound to a single predicate at construction
type PredicateCondition struct {
	*Condition
	pred func() bool
}

// NewPredicate creates a PredicateCondition using the real clock
func NewPredicate(pred func() bool) *PredicateCondition {
	return NewPredicateWithClock(pred, types.NewRealClock())
}

// NewPredicateWithClock creates a PredicateCondition with a custom clock
func NewPredicateWithClock(pred func() bool, clock types.Clock) *PredicateCondition {
	if pred == nil {
		pred = func() bool { return true }
	}
	return &PredicateCondition{
		Condition: NewWithClock(clock),
		pred:      pred,
	}
}

// Wait blocks until the predicate is true
func (p *PredicateCondition) Wait() {
	p.Condition.Wait(p.pred)
}

// WaitFor blocks until the predicate is true or timeout elapses
func (p *PredicateCondition) WaitFor(timeout time.Duration) bool {
	return p.Condition.WaitFor(timeout, p.pred)
}

// WaitContext blocks until the predicate is true or ctx is done
func (p *PredicateCondition) WaitContext(ctx context.Context) error {
	return p.Condition.WaitContext(ctx, p.pred)
}

// Signal runs fn under the mutex and then wakes one waiter
func (p *PredicateCondition) Signal(fn func()) {
	p.Update(fn)
	p.NotifyOne()
}

// Broadcast runs fn under the mutex and then wakes all waiters
func (p *PredicateCondition) Broadcast(fn func()) {
	p.Update(fn)
	p.NotifyAll()
}
