package scheduler

import (
	"context"
	"fmt"
	"runtime"
	"sync"
	"sync/atomic"
	"time"

	"github.com/creasty/defaults"
	"go.uber.org/zap"

	"github.com/jzx17/gothread/pkg/guarded"
	"github.com/jzx17/gothread/pkg/metrics"
	"github.com/jzx17/gothread/pkg/types"
	"github.com/jzx17/gothread/pkg/worker"
)

// Config defines configuration for a Scheduler
type Config struct {
	// Name identifies the scheduler in logs and metrics
	Name string `default:"scheduler"`

	// WakeupPeriod is the sleep between two passes over the task list
	WakeupPeriod time.Duration `default:"1s"`

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

// Scheduler is a Worker that wakes every WakeupPeriod and runs the tasks that
// are due. Tasks run sequentially on the scheduler goroutine while the task
// list is locked, so a task must not call AddTask or AddFunc.
type Scheduler struct {
	*worker.Worker

	wakeup  time.Duration
	clock   types.Clock
	logger  *zap.SugaredLogger
	metrics *metrics.Metrics

	mu    sync.Mutex
	tasks []Task
	index *guarded.Map[string, Task]

	nextWakeup atomic.Int64 // Unix nanosecond timestamp
	wakeups    atomic.Int64
	taskRuns   atomic.Int64
	taskErrors atomic.Int64
}

// New creates a scheduler
func New(config *Config) (*Scheduler, error) {
	if config == nil {
		config = DefaultConfig()
	}
	if err := defaults.Set(config); err != nil {
		return nil, fmt.Errorf("scheduler config: %w", err)
	}
	if config.WakeupPeriod <= 0 {
		return nil, fmt.Errorf("wakeup period must be positive, got %v: %w", config.WakeupPeriod, types.ErrInvalidConfig)
	}
	config.Clock = types.ClockOrReal(config.Clock)

	s := &Scheduler{
		wakeup:  config.WakeupPeriod,
		clock:   config.Clock,
		metrics: config.Metrics,
		index:   guarded.NewMap[string, Task](),
	}

	w, err := worker.New(&worker.Config{
		Name:    config.Name,
		Clock:   config.Clock,
		Logger:  config.Logger,
		Metrics: config.Metrics,
	}, s)
	if err != nil {
		return nil, err
	}
	s.Worker = w

	logger := config.Logger
	if logger == nil {
		logger = zap.L()
	}
	s.logger = logger.Sugar().Named(config.Name)
	return s, nil
}

// WakeupPeriod returns the sleep between two passes
func (s *Scheduler) WakeupPeriod() time.Duration {
	return s.wakeup
}

// AddTask registers t. Tasks cannot be removed.
func (s *Scheduler) AddTask(t Task) error {
	if t == nil {
		return fmt.Errorf("task cannot be nil: %w", types.ErrInvalidConfig)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.index.Get(t.ID()); ok {
		return fmt.Errorf("task %s: %w", t.ID(), types.ErrDuplicateTask)
	}
	s.tasks = append(s.tasks, t)
	s.index.Set(t.ID(), t)
	s.logger.Debugw("task added", "task_id", t.ID())
	return nil
}

// AddFunc wraps fn in a PeriodicTask on the scheduler clock and registers it
func (s *Scheduler) AddFunc(fn TaskFunc, period time.Duration) (*PeriodicTask, error) {
	t, err := NewTaskWithClock(fn, period, s.clock)
	if err != nil {
		return nil, err
	}
	if err := s.AddTask(t); err != nil {
		return nil, err
	}
	return t, nil
}

// Task looks up a registered task by ID
func (s *Scheduler) Task(id string) (Task, bool) {
	return s.index.Get(id)
}

// Len returns the number of registered tasks
func (s *Scheduler) Len() int {
	return s.index.Len()
}

// NextWakeup returns when the scheduler next wakes, or the zero time if it
// has not been started
func (s *Scheduler) NextWakeup() time.Time {
	ns := s.nextWakeup.Load()
	if ns == 0 {
		return time.Time{}
	}
	return time.Unix(0, ns)
}

// BeforeLoop implements worker.BeforeLooper
func (s *Scheduler) BeforeLoop(ctx context.Context, w *worker.Worker) {
	s.nextWakeup.Store(s.clock.Now().Add(s.wakeup).UnixNano())
}

// Loop implements worker.Routine. The sleep ends early when the worker is
// stopped or failed, since both cancel ctx.
func (s *Scheduler) Loop(ctx context.Context, w *worker.Worker) {
	for w.IsRunning() {
		timer := s.clock.NewTimer(s.wakeup, "scheduler", "wakeup")
		select {
		case <-timer.C:
		case <-ctx.Done():
			timer.Stop()
		}

		if !w.IsRunning() {
			break
		}

		s.runTasks(ctx)
		s.wakeups.Add(1)
		s.metrics.Wakeup(w.Name())
		s.nextWakeup.Store(s.clock.Now().Add(s.wakeup).UnixNano())
	}
}

// runTasks executes every due task
func (s *Scheduler) runTasks(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, t := range s.tasks {
		if !t.Due(s.clock.Now()) {
			continue
		}

		err := s.execute(ctx, t)
		s.taskRuns.Add(1)
		failed := err != nil
		if failed {
			s.taskErrors.Add(1)
			s.logger.Errorw("task failed", "task_id", t.ID(), "error", err)
		}
		s.metrics.TaskRan(s.Name(), failed)
	}
}

// execute runs t with panic recovery support
func (s *Scheduler) execute(ctx context.Context, t Task) (err error) {
	defer func() {
		if r := recover(); r != nil {
			var buf [4096]byte
			n := runtime.Stack(buf[:], false)
			err = types.NewWorkerError("task", s.Name(), types.PanicError(r)).
				WithContext("task_id", t.ID()).
				WithContext("stack_trace", string(buf[:n]))
		}
	}()
	return t.Execute(ctx)
}

// Stats gets scheduler statistics
func (s *Scheduler) Stats() types.SchedulerStats {
	return types.SchedulerStats{
		Name:       s.Name(),
		State:      s.State(),
		Tasks:      s.Len(),
		Wakeups:    s.wakeups.Load(),
		TaskRuns:   s.taskRuns.Load(),
		TaskErrors: s.taskErrors.Load(),
		NextWakeup: s.NextWakeup(),
	}
}
