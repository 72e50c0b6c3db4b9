package worker

import (
	"context"
	"fmt"
	"runtime"
	"sync/atomic"
	"time"

	"github.com/creasty/defaults"
	"go.uber.org/zap"

	werrors "github.com/jzx17/gothread/internal/errors"
	"github.com/jzx17/gothread/pkg/metrics"
	"github.com/jzx17/gothread/pkg/queue"
	"github.com/jzx17/gothread/pkg/types"
)

// DispatchMode selects how a Consumer waits for work
type DispatchMode int

const (
	// BlockingConsume waits until an item arrives or a stop is requested
	BlockingConsume DispatchMode = iota
	// TimeoutConsume waits at most Timeout and runs OnTimeout when nothing arrived
	TimeoutConsume
	// PoolConsume is BlockingConsume for a consumer sharing its queue with
	// others; losing a pop race to a sibling is expected and ignored. With an
	// OnTimeout handler it waits like TimeoutConsume.
	PoolConsume
)

// String returns the string representation of DispatchMode
func (m DispatchMode) String() string {
	switch m {
	case BlockingConsume:
		return "blocking"
	case TimeoutConsume:
		return "timeout"
	case PoolConsume:
		return "pool"
	default:
		return "unknown"
	}
}

// Handler processes one work item and should resolve it. Returning an error
// wrapping types.ErrWorkerFailed makes the consumer fail itself.
type Handler[P, R any] func(ctx context.Context, item *queue.Item[P, R]) error

// Fulfill adapts a plain function into a Handler that resolves the item with
// the returned value. On error the item is left for the consumer to release.
func Fulfill[P, R any](fn func(ctx context.Context, payload P) (R, error)) Handler[P, R] {
	return func(ctx context.Context, item *queue.Item[P, R]) error {
		v, err := fn(ctx, item.Payload())
		if err != nil {
			return err
		}
		return item.Resolve(v)
	}
}

// ErrorStrategy selects what a consumer does when a handler fails
type ErrorStrategy = werrors.ErrorHandlerStrategy

const (
	// ContinueOnError keeps consuming unless the error wraps types.ErrWorkerFailed
	ContinueOnError = werrors.ContinueOnErrorStrategy
	// FailFast fails the consumer on the first handler or timeout error
	FailFast = werrors.FailFastStrategy
)

// TimeoutHandler runs when a timed wait expires with no work
type TimeoutHandler func(ctx context.Context) error

// ConsumerConfig defines configuration for a queue consumer
type ConsumerConfig struct {
	// Name identifies the consumer
	Name string `default:"consumer"`

	// Mode selects the dispatch loop
	Mode DispatchMode

	// Timeout bounds each idle wait in TimeoutConsume mode
	Timeout time.Duration `default:"1s"`

	// OnTimeout runs after an idle wait expired
	OnTimeout TimeoutHandler

	// ErrorStrategy decides whether handler errors fail the consumer
	ErrorStrategy ErrorStrategy

	// FatalErrors fail a ContinueOnError consumer when a handler or timeout
	// error matches one of them. types.ErrWorkerFailed is always fatal.
	FatalErrors []error

	// FatalPanics makes a recovered handler panic fail a ContinueOnError consumer
	FatalPanics bool

	// BeforeLoop and AfterLoop run on the consumer goroutine around the loop
	BeforeLoop func(ctx context.Context)
	AfterLoop  func(ctx context.Context)

	// Clock for time operations (optional, defaults to real clock)
	Clock types.Clock

	// Logger (optional, defaults to the global zap logger)
	Logger *zap.Logger

	// Metrics (optional)
	Metrics *metrics.Metrics
}

// DefaultConsumerConfig returns default configuration
func DefaultConsumerConfig() *ConsumerConfig {
	config := &ConsumerConfig{Clock: types.NewRealClock()}
	defaults.MustSet(config)
	return config
}

// timed reports whether waits are bounded by Timeout
func (c *ConsumerConfig) timed() bool {
	return c.Mode == TimeoutConsume || (c.Mode == PoolConsume && c.OnTimeout != nil)
}

func (c *ConsumerConfig) validate() error {
	switch c.Mode {
	case BlockingConsume, TimeoutConsume, PoolConsume:
	default:
		return fmt.Errorf("unknown dispatch mode %d: %w", c.Mode, types.ErrInvalidConfig)
	}
	if c.timed() {
		if c.Timeout <= 0 {
			return fmt.Errorf("timeout must be positive, got %v: %w", c.Timeout, types.ErrInvalidConfig)
		}
		if c.OnTimeout == nil {
			return fmt.Errorf("%s consumer requires OnTimeout: %w", c.Mode, types.ErrInvalidConfig)
		}
	}
	return nil
}

// Consumer is a Worker that pops items from a Queue and hands them to a Handler
type Consumer[P, R any] struct {
	*Worker

	config  ConsumerConfig
	queue   *queue.Queue[P, R]
	handler Handler[P, R]
	onError werrors.ErrorHandler
	logger  *zap.SugaredLogger

	// statistics
	totalProcessed atomic.Int64
	totalFailed    atomic.Int64
	totalTimeouts  atomic.Int64
	lastItemTime   atomic.Int64 // Unix nanosecond timestamp
}

// NewConsumer creates a consumer with its own queue
func NewConsumer[P, R any](config *ConsumerConfig, handler Handler[P, R]) (*Consumer[P, R], error) {
	if config == nil {
		config = DefaultConsumerConfig()
	}
	if err := defaults.Set(config); err != nil {
		return nil, fmt.Errorf("consumer config: %w", err)
	}
	q := queue.NewWithConfig[P, R](&queue.Config{
		Name:    config.Name,
		Clock:   config.Clock,
		Logger:  config.Logger,
		Metrics: config.Metrics,
	})
	return NewConsumerWithQueue(q, config, handler)
}

// NewConsumerWithQueue creates a consumer reading from an existing queue
func NewConsumerWithQueue[P, R any](q *queue.Queue[P, R], config *ConsumerConfig, handler Handler[P, R]) (*Consumer[P, R], error) {
	if config == nil {
		config = DefaultConsumerConfig()
	}
	if err := defaults.Set(config); err != nil {
		return nil, fmt.Errorf("consumer config: %w", err)
	}
	if q == nil {
		return nil, fmt.Errorf("queue cannot be nil: %w", types.ErrInvalidConfig)
	}
	if handler == nil {
		return nil, fmt.Errorf("handler cannot be nil: %w", types.ErrInvalidConfig)
	}
	if err := config.validate(); err != nil {
		return nil, err
	}
	if config.Clock == nil {
		config.Clock = q.Clock()
	}

	c := &Consumer[P, R]{
		config:  *config,
		queue:   q,
		handler: handler,
		onError: werrors.NewHandler(config.ErrorStrategy, &werrors.ContinueOnErrorConfig{
			FatalErrors: config.FatalErrors,
			FatalPanics: config.FatalPanics,
		}),
	}

	w, err := New(&Config{
		Name:    config.Name,
		Clock:   config.Clock,
		Logger:  config.Logger,
		Metrics: config.Metrics,
	}, c)
	if err != nil {
		return nil, err
	}
	c.Worker = w
	c.logger = w.logger.With("mode", config.Mode.String())
	return c, nil
}

// NewTimeoutConsumer creates a TimeoutConsume consumer with its own queue
func NewTimeoutConsumer[P, R any](timeout time.Duration, handler Handler[P, R], onTimeout TimeoutHandler) (*Consumer[P, R], error) {
	config := DefaultConsumerConfig()
	config.Mode = TimeoutConsume
	config.Timeout = timeout
	config.OnTimeout = onTimeout
	return NewConsumer(config, handler)
}

// Mode returns the dispatch mode
func (c *Consumer[P, R]) Mode() DispatchMode {
	return c.config.Mode
}

// Queue returns the queue the consumer reads from
func (c *Consumer[P, R]) Queue() *queue.Queue[P, R] {
	return c.queue
}

// QueueLen returns a snapshot of the pending item count
func (c *Consumer[P, R]) QueueLen() int {
	return c.queue.Len()
}

// Push enqueues an item
func (c *Consumer[P, R]) Push(item *queue.Item[P, R]) {
	c.queue.Push(item)
}

// Submit wraps payload in an item, enqueues it and returns it
func (c *Consumer[P, R]) Submit(payload P) *queue.Item[P, R] {
	return c.queue.Emplace(payload)
}

// SubmitAndWait enqueues payload and blocks until it is resolved
func (c *Consumer[P, R]) SubmitAndWait(ctx context.Context, payload P) (R, error) {
	return waitItem(ctx, c.Submit(payload))
}

// BeforeLoop implements BeforeLooper
func (c *Consumer[P, R]) BeforeLoop(ctx context.Context, w *Worker) {
	if c.config.BeforeLoop != nil {
		c.config.BeforeLoop(ctx)
	}
}

// AfterLoop implements AfterLooper
func (c *Consumer[P, R]) AfterLoop(ctx context.Context, w *Worker) {
	if c.config.AfterLoop != nil {
		c.config.AfterLoop(ctx)
	}
}

// OnStop implements StopNotifier
func (c *Consumer[P, R]) OnStop(w *Worker) {
	c.queue.NotifyAll()
}

// Loop implements Routine
func (c *Consumer[P, R]) Loop(ctx context.Context, w *Worker) {
	cond := c.queue.Condition()
	wake := func() bool {
		return !c.queue.Empty() || !w.IsRunning()
	}

	for w.IsRunning() {
		woken := true
		if c.config.timed() {
			woken = cond.WaitFor(c.config.Timeout, wake)
		} else {
			cond.Wait(wake)
		}

		if !w.IsRunning() {
			break
		}

		if !woken {
			c.handleTimeout(ctx, w)
			continue
		}

		item, ok := c.queue.TryPop()
		if !ok {
			// a sibling consumer won the race
			continue
		}
		c.dispatch(ctx, w, item)
	}
}

// Finalize implements Finalizer. Pending items are released on every exit
// path, so no producer is left blocked after the goroutine is gone.
func (c *Consumer[P, R]) Finalize(w *Worker) {
	if n := c.queue.Clear(); n > 0 {
		c.logger.Debugw("released pending items on exit", "items", n)
	}
}

// handleTimeout runs the timeout handler
func (c *Consumer[P, R]) handleTimeout(ctx context.Context, w *Worker) {
	c.totalTimeouts.Add(1)
	c.config.Metrics.TimedOut(c.Name())

	start := c.Clock().Now()
	err := c.protect(func() error { return c.config.OnTimeout(ctx) })
	if err == nil {
		return
	}

	errCtx := werrors.NewErrorContext(err, "timeout", c.Name(), c.Clock())
	errCtx.Duration = c.Clock().Since(start)
	c.handleError(ctx, w, errCtx)
}

// handleError logs the failure, applies the error strategy and fails the
// worker if it says so
func (c *Consumer[P, R]) handleError(ctx context.Context, w *Worker, errCtx *werrors.ErrorContext) {
	c.logger.Errorw(errCtx.Operation+" failed",
		"item_id", errCtx.ItemID,
		"payload_type", errCtx.PayloadType,
		"duration", errCtx.Duration,
		"panic", errCtx.IsPanic(),
		"error", errCtx.Error,
	)

	fatal := c.onError.HandleError(ctx, errCtx)
	if fatal == nil {
		return
	}
	if w.Fail(fatal) {
		c.logger.Warnw("error strategy failed the consumer", "strategy", c.onError.Name(), "at", errCtx.Timestamp)
	}
}

// dispatch hands one item to the handler and makes sure its producer is
// released whatever the handler did
func (c *Consumer[P, R]) dispatch(ctx context.Context, w *Worker, item *queue.Item[P, R]) {
	if !item.Valid() {
		item.Release()
		return
	}

	startTime := c.Clock().Now()
	c.lastItemTime.Store(startTime.UnixNano())

	err := c.protect(func() error { return c.handler(ctx, item) })
	executionTime := c.Clock().Since(startTime)

	if !item.Resolved() && item.Release() {
		c.logger.Warnw("handler returned without resolving item", "item_id", item.ID())
	}

	failed := err != nil
	if failed {
		c.totalFailed.Add(1)

		errCtx := werrors.NewErrorContext(err, "handle", c.Name(), c.Clock()).WithItem(item.ID(), item.Payload())
		errCtx.Duration = executionTime
		c.handleError(ctx, w, errCtx)
	} else {
		c.totalProcessed.Add(1)
	}
	c.config.Metrics.Handled(c.Name(), executionTime, failed)
}

// protect runs fn with panic recovery support
func (c *Consumer[P, R]) protect(fn func() error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			var buf [4096]byte
			n := runtime.Stack(buf[:], false)
			err = types.NewWorkerError("handle", c.Name(), types.PanicError(r)).
				WithContext("stack_trace", string(buf[:n]))
		}
	}()
	return fn()
}

// Stats gets consumer statistics
func (c *Consumer[P, R]) Stats() types.ConsumerStats {
	var last time.Time
	if ns := c.lastItemTime.Load(); ns != 0 {
		last = time.Unix(0, ns)
	}
	return types.ConsumerStats{
		Name:           c.Name(),
		State:          c.State(),
		TotalProcessed: c.totalProcessed.Load(),
		TotalFailed:    c.totalFailed.Load(),
		TotalTimeouts:  c.totalTimeouts.Load(),
		LastItemTime:   last,
	}
}

// waitItem blocks on item and reports a drained item as types.ErrItemInvalidated
func waitItem[P, R any](ctx context.Context, item *queue.Item[P, R]) (R, error) {
	v, err := item.Wait(ctx)
	if err != nil {
		return v, err
	}
	if !item.Valid() {
		return v, fmt.Errorf("item %s: %w", item.ID(), types.ErrItemInvalidated)
	}
	return v, nil
}
