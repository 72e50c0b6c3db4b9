package worker

import (
	"context"
	"fmt"
	"runtime"
	"sync"
	"sync/atomic"

	"github.com/creasty/defaults"
	"go.uber.org/zap"

	"github.com/jzx17/gothread/pkg/metrics"
	"github.com/jzx17/gothread/pkg/types"
)

// Routine is the body a Worker runs on its goroutine. Loop must return once
// w.IsRunning() reports false.
type Routine interface {
	Loop(ctx context.Context, w *Worker)
}

// BeforeLooper is implemented by routines that need setup on the worker goroutine
type BeforeLooper interface {
	BeforeLoop(ctx context.Context, w *Worker)
}

// AfterLooper is implemented by routines that need teardown on the worker goroutine
type AfterLooper interface {
	AfterLoop(ctx context.Context, w *Worker)
}

// StopNotifier is implemented by routines that block and must be woken on Stop
type StopNotifier interface {
	OnStop(w *Worker)
}

// Finalizer is implemented by routines that must release resources however
// the goroutine ends, including through a panic. Finalize runs after the
// panic is recovered and before Done is closed.
type Finalizer interface {
	Finalize(w *Worker)
}

// IterationFunc is a Routine running the default loop: check the state,
// exit when stopped or failed, otherwise run one iteration.
type IterationFunc func(ctx context.Context, w *Worker)

// Loop implements Routine
func (f IterationFunc) Loop(ctx context.Context, w *Worker) {
	for w.IsRunning() {
		f(ctx, w)
	}
}

// Config defines configuration for a Worker
type Config struct {
	// Name identifies the worker in logs, errors and metrics
	Name string `default:"worker"`

	// Clock for time operations (optional, defaults to real clock)
	Clock types.Clock

	// Logger (optional, defaults to the global zap logger)
	Logger *zap.Logger

	// Metrics (optional)
	Metrics *metrics.Metrics
}

// DefaultConfig returns default configuration
func DefaultConfig() *Config {
	config := &Config{Clock: types.NewRealClock()}
	defaults.MustSet(config)
	return config
}

// session is one Start..Join cycle of a Worker
type session struct {
	done    chan struct{}
	cancel  context.CancelFunc
	release func() bool
	err     error
}

// Worker owns one goroutine and its lifecycle state:
//
//	Created -> Running -> {Stopped | Failed} -> Joined -> Running ...
//
// The state is atomic so the loop, Stop callers and Join callers can read it
// without taking the worker mutex.
type Worker struct {
	name    string
	state   atomic.Int32
	reason  atomic.Int32
	routine Routine

	clock   types.Clock
	logger  *zap.SugaredLogger
	metrics *metrics.Metrics

	// mu guards session and failure
	mu      sync.Mutex
	session *session
	failure error
}

// New creates a Worker running routine
func New(config *Config, routine Routine) (*Worker, error) {
	if config == nil {
		config = DefaultConfig()
	}
	if routine == nil {
		return nil, fmt.Errorf("worker routine cannot be nil: %w", types.ErrInvalidConfig)
	}
	if err := defaults.Set(config); err != nil {
		return nil, fmt.Errorf("worker config: %w", err)
	}

	config.Clock = types.ClockOrReal(config.Clock)
	logger := config.Logger
	if logger == nil {
		logger = zap.L()
	}

	w := &Worker{
		name:    config.Name,
		routine: routine,
		clock:   config.Clock,
		logger:  logger.Sugar().Named(config.Name),
		metrics: config.Metrics,
	}
	w.state.Store(int32(types.WorkerStateCreated))
	return w, nil
}

// NewIterationWorker creates a Worker running the default loop around fn
func NewIterationWorker(config *Config, fn IterationFunc) (*Worker, error) {
	if fn == nil {
		return nil, fmt.Errorf("iteration function cannot be nil: %w", types.ErrInvalidConfig)
	}
	return New(config, fn)
}

// Name returns the worker name
func (w *Worker) Name() string {
	return w.name
}

// Clock returns the worker clock
func (w *Worker) Clock() types.Clock {
	return w.clock
}

// State returns the current Worker state
func (w *Worker) State() types.WorkerState {
	return types.WorkerState(w.state.Load())
}

// StopReason returns why the current or last session ended
func (w *Worker) StopReason() types.StopReason {
	return types.StopReason(w.reason.Load())
}

// IsCreated reports whether the worker was never started
func (w *Worker) IsCreated() bool { return w.State() == types.WorkerStateCreated }

// IsRunning reports whether the loop should keep going
func (w *Worker) IsRunning() bool { return w.State() == types.WorkerStateRunning }

// IsStopped reports whether a stop was requested
func (w *Worker) IsStopped() bool { return w.State() == types.WorkerStateStopped }

// IsFailed reports whether the loop reported a failure
func (w *Worker) IsFailed() bool { return w.State() == types.WorkerStateFailed }

// IsJoined reports whether the goroutine was joined
func (w *Worker) IsJoined() bool { return w.State() == types.WorkerStateJoined }

// Start starts the worker goroutine. It is a no-op while a session is active,
// i.e. until Join has returned.
func (w *Worker) Start() {
	w.StartContext(context.Background())
}

// StartContext starts the worker goroutine; cancelling ctx requests a stop
func (w *Worker) StartContext(ctx context.Context) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.session != nil {
		return
	}

	loopCtx, cancel := context.WithCancel(types.WithClock(ctx, w.clock))
	s := &session{
		done:   make(chan struct{}),
		cancel: cancel,
	}
	s.release = context.AfterFunc(ctx, w.Stop)
	w.session = s
	w.failure = nil
	w.reason.Store(int32(types.StopReasonNone))
	w.state.Store(int32(types.WorkerStateRunning))
	w.metrics.WorkerStarted()
	w.logger.Debugw("worker started")

	go w.run(loopCtx, s)
}

// run executes the routine on the worker goroutine
func (w *Worker) run(ctx context.Context, s *session) {
	defer close(s.done)
	defer w.metrics.WorkerExited()
	defer s.cancel()
	if f, ok := w.routine.(Finalizer); ok {
		defer f.Finalize(w)
	}
	defer func() {
		if r := recover(); r != nil {
			var buf [4096]byte
			n := runtime.Stack(buf[:], false)

			s.err = types.NewWorkerError("loop", w.name, types.PanicError(r)).
				WithContext("stack_trace", string(buf[:n]))
			w.reason.Store(int32(types.StopReasonPanic))
			w.state.Store(int32(types.WorkerStateFailed))
			w.logger.Errorw("worker panicked", "panic", r)
		}
	}()

	if b, ok := w.routine.(BeforeLooper); ok {
		b.BeforeLoop(ctx, w)
	}
	w.routine.Loop(ctx, w)
	if a, ok := w.routine.(AfterLooper); ok {
		a.AfterLoop(ctx, w)
	}
	w.logger.Debugw("worker loop finished", "state", w.State(), "reason", w.StopReason())
}

// Stop requests the loop to end. It never blocks and may be called from any
// goroutine, including the loop itself.
func (w *Worker) Stop() {
	if w.markStopped() {
		w.notify()
	}
}

// markStopped moves the worker to Stopped and cancels the session context
// without waking routines blocked on a condition.
func (w *Worker) markStopped() bool {
	for {
		cur := types.WorkerState(w.state.Load())
		if cur == types.WorkerStateStopped || cur == types.WorkerStateFailed || cur == types.WorkerStateJoined {
			return false
		}
		if w.state.CompareAndSwap(int32(cur), int32(types.WorkerStateStopped)) {
			break
		}
	}
	w.reason.CompareAndSwap(int32(types.StopReasonNone), int32(types.StopReasonExternal))

	w.mu.Lock()
	s := w.session
	w.mu.Unlock()
	if s != nil {
		s.cancel()
	}
	w.logger.Debugw("worker stop requested")
	return true
}

// notify wakes the routine if it knows how to be woken
func (w *Worker) notify() {
	if n, ok := w.routine.(StopNotifier); ok {
		n.OnStop(w)
	}
}

// Fail moves a running worker to Failed. Only the loop should call it; the
// loop observes the new state on its next check and returns. The failure is
// reported by Err, not by Join.
func (w *Worker) Fail(cause error) bool {
	if !w.state.CompareAndSwap(int32(types.WorkerStateRunning), int32(types.WorkerStateFailed)) {
		return false
	}
	w.reason.Store(int32(types.StopReasonFailure))
	failure := cause
	if failure == nil {
		failure = types.ErrWorkerFailed
	} else if !types.IsWorkerFailure(failure) {
		failure = fmt.Errorf("%w: %w", types.ErrWorkerFailed, cause)
	}

	w.mu.Lock()
	w.failure = types.NewWorkerError("fail", w.name, failure)
	s := w.session
	w.mu.Unlock()
	if s != nil {
		s.cancel()
	}
	w.logger.Warnw("worker failed", "error", cause)
	return true
}

// Err returns the failure reported through Fail for the current or last session
func (w *Worker) Err() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.failure
}

// Join blocks until the goroutine has finished, then moves the worker to
// Joined so that it can be started again. Concurrent callers all return once
// the goroutine is gone. A panic that escaped the routine is returned as a
// *types.WorkerError. Join must not be called from the loop itself.
func (w *Worker) Join() error {
	w.mu.Lock()
	s := w.session
	if s == nil {
		w.state.Store(int32(types.WorkerStateJoined))
		w.mu.Unlock()
		return nil
	}
	w.mu.Unlock()

	<-s.done

	w.mu.Lock()
	defer w.mu.Unlock()
	if w.session == s {
		s.release()
		w.session = nil
		w.state.Store(int32(types.WorkerStateJoined))
		w.logger.Debugw("worker joined", "reason", w.StopReason())
	}
	return s.err
}

// Close stops and joins the worker
func (w *Worker) Close() error {
	w.Stop()
	return w.Join()
}

// Done returns a channel closed when the current session's goroutine exits.
// It returns nil when no session is active.
func (w *Worker) Done() <-chan struct{} {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.session == nil {
		return nil
	}
	return w.session.done
}
