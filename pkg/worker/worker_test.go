package worker

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jzx17/gothread/internal/testutils"
	"github.com/jzx17/gothread/pkg/types"
)

// spinWorker builds a worker whose iteration counts and yields
func spinWorker(t *testing.T, iterations *atomic.Int64) *Worker {
	t.Helper()
	w, err := NewIterationWorker(nil, func(ctx context.Context, w *Worker) {
		iterations.Add(1)
		time.Sleep(time.Millisecond)
	})
	require.NoError(t, err)
	return w
}

func TestNewWorker(t *testing.T) {
	w, err := New(nil, IterationFunc(func(context.Context, *Worker) {}))
	require.NoError(t, err)

	assert.Equal(t, "worker", w.Name())
	assert.Equal(t, types.WorkerStateCreated, w.State())
	assert.True(t, w.IsCreated())
	assert.Equal(t, types.StopReasonNone, w.StopReason())
	assert.Nil(t, w.Done())
	assert.NotNil(t, w.Clock())
}

func TestNewWorker_InvalidConfig(t *testing.T) {
	_, err := New(nil, nil)
	assert.ErrorIs(t, err, types.ErrInvalidConfig)

	_, err = NewIterationWorker(nil, nil)
	assert.ErrorIs(t, err, types.ErrInvalidConfig)
}

func TestWorker_StartStopJoin(t *testing.T) {
	var iterations atomic.Int64
	w := spinWorker(t, &iterations)

	w.Start()
	assert.True(t, w.IsRunning())
	require.Eventually(t, func() bool { return iterations.Load() > 0 }, time.Second, time.Millisecond)

	w.Stop()
	assert.True(t, w.IsStopped())
	assert.Equal(t, types.StopReasonExternal, w.StopReason())

	require.NoError(t, w.Join())
	assert.True(t, w.IsJoined())
	assert.Nil(t, w.Done())
}

func TestWorker_DoubleStartSpawnsOneGoroutine(t *testing.T) {
	var loops atomic.Int32
	release := make(chan struct{})
	w, err := New(nil, IterationFunc(func(ctx context.Context, w *Worker) {
		loops.Add(1)
		<-release
	}))
	require.NoError(t, err)

	w.Start()
	w.Start()
	w.Start()

	require.Eventually(t, func() bool { return loops.Load() == 1 }, time.Second, time.Millisecond)
	time.Sleep(20 * time.Millisecond)
	assert.Equal(t, int32(1), loops.Load())

	w.Stop()
	close(release)
	require.NoError(t, w.Join())
	assert.Equal(t, int32(1), loops.Load())
}

func TestWorker_ConcurrentJoin(t *testing.T) {
	var iterations atomic.Int64
	w := spinWorker(t, &iterations)
	w.Start()

	const joiners = 8
	var wg sync.WaitGroup
	errs := make(chan error, joiners)
	for i := 0; i < joiners; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			errs <- w.Join()
		}()
	}

	time.Sleep(10 * time.Millisecond)
	w.Stop()

	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()
	testutils.AssertClosed(t, done, 2*time.Second, "all joiners should return")

	close(errs)
	for err := range errs {
		assert.NoError(t, err)
	}
	assert.True(t, w.IsJoined())
}

func TestWorker_RestartAfterJoin(t *testing.T) {
	var iterations atomic.Int64
	w := spinWorker(t, &iterations)

	for round := 0; round < 3; round++ {
		w.Start()
		assert.True(t, w.IsRunning())

		seen := iterations.Load()
		require.Eventually(t, func() bool { return iterations.Load() > seen }, time.Second, time.Millisecond)

		require.NoError(t, w.Close())
		assert.True(t, w.IsJoined())
	}
}

func TestWorker_JoinWithoutStart(t *testing.T) {
	var iterations atomic.Int64
	w := spinWorker(t, &iterations)

	assert.NoError(t, w.Join())
	assert.True(t, w.IsJoined())

	w.Start()
	assert.True(t, w.IsRunning())
	require.NoError(t, w.Close())
}

func TestWorker_StopFromLoop(t *testing.T) {
	var iterations atomic.Int64
	w, err := NewIterationWorker(nil, func(ctx context.Context, w *Worker) {
		if iterations.Add(1) == 3 {
			w.Stop()
		}
	})
	require.NoError(t, err)

	w.Start()
	testutils.AssertClosed(t, w.Done(), time.Second)
	require.NoError(t, w.Join())
	assert.Equal(t, int64(3), iterations.Load())
	assert.Equal(t, types.StopReasonExternal, w.StopReason())
}

func TestWorker_Fail(t *testing.T) {
	cause := errors.New("lost connection")
	w, err := NewIterationWorker(nil, func(ctx context.Context, w *Worker) {
		w.Fail(cause)
	})
	require.NoError(t, err)

	w.Start()
	testutils.AssertClosed(t, w.Done(), time.Second)

	assert.True(t, w.IsFailed())
	assert.Equal(t, types.StopReasonFailure, w.StopReason())

	// failures are advisory: Join succeeds and Err reports them
	assert.NoError(t, w.Join())
	assert.ErrorIs(t, w.Err(), cause)
	assert.ErrorIs(t, w.Err(), types.ErrWorkerFailed)

	// Stop after a failure does not overwrite the reason
	w.Stop()
	assert.Equal(t, types.StopReasonFailure, w.StopReason())
}

func TestWorker_FailOnlyWhileRunning(t *testing.T) {
	var iterations atomic.Int64
	w := spinWorker(t, &iterations)

	assert.False(t, w.Fail(nil))
	w.Start()
	w.Stop()
	assert.False(t, w.Fail(nil))
	require.NoError(t, w.Join())
	assert.Nil(t, w.Err())
}

func TestWorker_PanicReturnedByJoin(t *testing.T) {
	w, err := NewIterationWorker(&Config{Name: "panicky"}, func(ctx context.Context, w *Worker) {
		panic("boom")
	})
	require.NoError(t, err)

	w.Start()
	err = w.Join()
	require.Error(t, err)
	assert.ErrorIs(t, err, types.ErrWorkerPanic)

	var we *types.WorkerError
	require.ErrorAs(t, err, &we)
	assert.Equal(t, "panicky", we.Worker)
	assert.Contains(t, we.Context, "stack_trace")
	assert.Equal(t, types.StopReasonPanic, w.StopReason())

	// the worker can be started again and reports the new panic
	w.Start()
	assert.ErrorIs(t, w.Join(), types.ErrWorkerPanic)
}

func TestWorker_StartContextCancel(t *testing.T) {
	var iterations atomic.Int64
	w := spinWorker(t, &iterations)

	ctx, cancel := context.WithCancel(context.Background())
	w.StartContext(ctx)
	require.True(t, w.IsRunning())

	cancel()
	testutils.AssertClosed(t, w.Done(), time.Second)
	assert.True(t, w.IsStopped())
	require.NoError(t, w.Join())
}

type hookedRoutine struct {
	order []string
	mu    sync.Mutex
	clock types.Clock
}

func (r *hookedRoutine) record(s string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.order = append(r.order, s)
}

func (r *hookedRoutine) BeforeLoop(ctx context.Context, w *Worker) {
	r.clock = types.ClockFromContext(ctx)
	r.record("before")
}

func (r *hookedRoutine) Loop(ctx context.Context, w *Worker) {
	r.record("loop")
	<-ctx.Done()
}

func (r *hookedRoutine) AfterLoop(ctx context.Context, w *Worker) {
	r.record("after")
}

func TestWorker_Hooks(t *testing.T) {
	mClock := testutils.NewMockClock(t)
	r := &hookedRoutine{}
	w, err := New(&Config{Clock: mClock}, r)
	require.NoError(t, err)

	w.Start()
	w.Stop()
	require.NoError(t, w.Join())

	assert.Equal(t, []string{"before", "loop", "after"}, r.order)
	assert.Same(t, mClock, r.clock)
}

func TestWorker_Metrics(t *testing.T) {
	tc := testutils.NewTestContext(t, nil)
	w, err := NewIterationWorker(&Config{Metrics: tc.Metrics(), Logger: tc.Logger()}, func(ctx context.Context, w *Worker) {
		<-ctx.Done()
	})
	require.NoError(t, err)

	w.Start()
	assert.Equal(t, float64(1), testutil.ToFloat64(tc.Metrics().WorkersRunning))

	require.NoError(t, w.Close())
	assert.Equal(t, float64(0), testutil.ToFloat64(tc.Metrics().WorkersRunning))
}
