package worker

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jzx17/gothread/internal/testutils"
	"github.com/jzx17/gothread/pkg/queue"
	"github.com/jzx17/gothread/pkg/types"
)

func TestNewPool(t *testing.T) {
	p, err := NewPool(nil, Fulfill(double))
	require.NoError(t, err)

	assert.Equal(t, "pool", p.Name())
	assert.Equal(t, 4, p.Size())
	for i, c := range p.Consumers() {
		assert.Equal(t, PoolConsume, c.Mode())
		assert.Same(t, p.Queue(), c.Queue())
		assert.Equal(t, fmt.Sprintf("pool-%d", i), c.Name())
	}

	config := DefaultPoolConfig()
	config.Size = -1
	_, err = NewPool(config, Fulfill(double))
	assert.ErrorIs(t, err, types.ErrInvalidConfig)

	_, err = NewPool[int, int](nil, nil)
	assert.ErrorIs(t, err, types.ErrInvalidConfig)
}

func TestPool_ExactlyOnceDelivery(t *testing.T) {
	const items = 2000

	var counts [items]atomic.Int32
	config := DefaultPoolConfig()
	config.Size = 8
	p, err := NewPool(config, Fulfill(func(ctx context.Context, n int) (int, error) {
		counts[n].Add(1)
		return n * 2, nil
	}))
	require.NoError(t, err)

	p.Start()

	var wg sync.WaitGroup
	submitted := make([]*queue.Item[int, int], items)
	for producer := 0; producer < 4; producer++ {
		wg.Add(1)
		go func(offset int) {
			defer wg.Done()
			for i := offset; i < items; i += 4 {
				submitted[i] = p.Submit(i)
			}
		}(producer)
	}
	wg.Wait()

	for i, item := range submitted {
		assert.Equal(t, i*2, item.Get())
	}
	require.NoError(t, p.Close())

	for i := range counts {
		assert.Equal(t, int32(1), counts[i].Load(), "item %d", i)
	}

	stats := p.Stats()
	assert.Equal(t, 8, stats.PoolSize)
	assert.Equal(t, 0, stats.RunningConsumers)
	assert.Equal(t, int64(items), stats.TotalProcessed)
	assert.Equal(t, 0, stats.QueueSize)
}

func TestPool_StopWhileWaiting(t *testing.T) {
	p, err := NewPool(nil, Fulfill(double))
	require.NoError(t, err)

	p.Start()
	require.Eventually(t, func() bool {
		return p.Queue().Condition().Waiters() == p.Size()
	}, time.Second, time.Millisecond)
	assert.Equal(t, p.Size(), p.Stats().RunningConsumers)

	done := make(chan struct{})
	go func() {
		assert.NoError(t, p.Close())
		close(done)
	}()
	testutils.AssertClosed(t, done, time.Second)

	for _, c := range p.Consumers() {
		assert.True(t, c.IsJoined())
		assert.Equal(t, types.StopReasonExternal, c.StopReason())
	}
}

func TestPool_SubmitAndWait(t *testing.T) {
	tc := testutils.NewTestContext(t, nil)
	p, err := NewPool(nil, Fulfill(double))
	require.NoError(t, err)
	p.StartContext(tc.Context())
	defer p.Close()

	v, err := p.SubmitAndWait(tc.Context(), 21)
	require.NoError(t, err)
	assert.Equal(t, 42, v)
	assert.Len(t, p.ConsumerStats(), p.Size())
}

func TestPool_Restart(t *testing.T) {
	tc := testutils.NewTestContext(t, nil)
	p, err := NewPool(nil, Fulfill(double))
	require.NoError(t, err)

	for round := 0; round < 2; round++ {
		p.Start()
		v, err := p.SubmitAndWait(tc.Context(), round)
		require.NoError(t, err)
		assert.Equal(t, round*2, v)
		require.NoError(t, p.Close())
	}
}

func TestPool_DrainOnStop(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	config := DefaultPoolConfig()
	config.Size = 2
	p, err := NewPool(config, Fulfill(double))
	require.NoError(t, err)

	// never started: pending items are drained by Clear on the queue
	items := []*queue.Item[int, int]{p.Submit(1), p.Submit(2), p.Submit(3)}
	assert.Equal(t, 3, p.Queue().Clear())

	for _, item := range items {
		_, err := waitItem(ctx, item)
		assert.ErrorIs(t, err, types.ErrItemInvalidated)
	}
}

func TestPool_JoinReturnsPanic(t *testing.T) {
	tc := testutils.NewTestContext(t, nil)
	var hooks atomic.Int32
	config := DefaultPoolConfig()
	config.Size = 3
	config.Consumer.AfterLoop = func(context.Context) {
		if hooks.Add(1) == 1 {
			panic("teardown failed")
		}
	}
	p, err := NewPool(config, Fulfill(double))
	require.NoError(t, err)

	p.Start()
	_, err = p.SubmitAndWait(tc.Context(), 1)
	require.NoError(t, err)

	err = p.Close()
	assert.ErrorIs(t, err, types.ErrWorkerPanic)
	assert.Equal(t, int32(3), hooks.Load())
}

func TestPool_TimeoutMode(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	mClock := testutils.NewMockClock(t)
	var timeouts atomic.Int32

	config := DefaultPoolConfig()
	config.Size = 1
	config.Consumer.Clock = mClock
	config.Consumer.Timeout = 50 * time.Millisecond
	config.Consumer.OnTimeout = func(context.Context) error {
		timeouts.Add(1)
		return nil
	}
	p, err := NewPool(config, Fulfill(double))
	require.NoError(t, err)
	assert.Equal(t, PoolConsume, p.Consumers()[0].Mode())

	p.Start()
	defer p.Close()

	testutils.FireNext(ctx, t, mClock)
	assert.Eventually(t, func() bool { return timeouts.Load() == 1 }, time.Second, time.Millisecond)
}
