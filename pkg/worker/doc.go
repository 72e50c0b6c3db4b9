/*
Package worker provides goroutine lifecycle management and queue consumers built on it.

# Overview

A Worker owns exactly one goroutine and tracks it through an explicit state machine:

	Created -> Running -> {Stopped | Failed} -> Joined -> Running ...

The package supports:
- Idempotent Start while a goroutine is active
- Non-blocking Stop callable from any goroutine, including the loop itself
- Self-reported failure through Fail, surfaced by Err
- Concurrent Join from several goroutines
- Restart after Join
- Panic recovery, returned by Join as *types.WorkerError
- Context cancellation through StartContext

# Core Components

## Worker

Runs a Routine. IterationFunc gives the default loop: check the state, exit when
stopped or failed, otherwise run one iteration. Routines that block on a condition
implement StopNotifier so that Stop can wake them.

## Consumer

A Worker that pops items from a queue.Queue and hands them to a Handler. Three
dispatch modes are available:
- BlockingConsume: wait until an item arrives or a stop is requested
- TimeoutConsume: wait at most Timeout, run OnTimeout when nothing arrived
- PoolConsume: blocking dispatch for consumers sharing one queue

Every popped item is resolved exactly once. Items the handler leaves unresolved,
and items still pending when the consumer exits, are released with their zero
value so that no producer blocks forever.

## Pool

Several PoolConsume consumers over one shared queue. Each item is delivered to
exactly one member. Stop marks every member stopped before a single broadcast.

# Usage Examples

Single consumer:

	c, err := worker.NewConsumer(nil, worker.Fulfill(func(ctx context.Context, n int) (int, error) {
		return n * 2, nil
	}))
	if err != nil {
		log.Fatal(err)
	}
	c.Start()
	defer c.Close()

	v, err := c.SubmitAndWait(ctx, 21)

Pool with timeout handling:

	config := worker.DefaultPoolConfig()
	config.Size = 8
	config.Consumer.Timeout = 200 * time.Millisecond
	config.Consumer.OnTimeout = func(ctx context.Context) error {
		log.Println("idle")
		return nil
	}

	pool, err := worker.NewPool(config, handler)
	if err != nil {
		log.Fatal(err)
	}
	pool.Start()
	defer pool.Close()

Retrieve statistics:

	stats := pool.Stats()
	fmt.Printf("Running: %d/%d\n", stats.RunningConsumers, stats.PoolSize)
	fmt.Printf("Processed: %d\n", stats.TotalProcessed)

# Error Handling

A handler error wrapping types.ErrWorkerFailed fails the consumer; any other error
is counted and logged. Panics in handlers are recovered into *types.WorkerError and
counted as failed items. Panics in a Routine end the goroutine and are returned
by Join.
*/
package worker
