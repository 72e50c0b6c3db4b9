package worker

import (
	"context"
	"fmt"
	"sync"

	"github.com/creasty/defaults"
	"golang.org/x/sync/errgroup"

	"github.com/jzx17/gothread/pkg/queue"
	"github.com/jzx17/gothread/pkg/types"
)

// PoolConfig defines configuration for a consumer pool
type PoolConfig struct {
	// Size is the number of consumers sharing the queue
	Size int `default:"4"`

	// Consumer is the template every pool member is built from. Its Name is
	// used as the queue name and as the prefix of member names.
	Consumer ConsumerConfig
}

// DefaultPoolConfig returns default configuration
func DefaultPoolConfig() *PoolConfig {
	config := &PoolConfig{Consumer: *DefaultConsumerConfig()}
	config.Consumer.Name = "pool"
	config.Consumer.Mode = PoolConsume
	defaults.MustSet(config)
	return config
}

// Pool runs several consumers over one shared queue. Each item is delivered
// to exactly one member.
type Pool[P, R any] struct {
	name      string
	queue     *queue.Queue[P, R]
	consumers []*Consumer[P, R]

	// mu serializes lifecycle calls
	mu sync.Mutex
}

// NewPool creates a pool and its shared queue
func NewPool[P, R any](config *PoolConfig, handler Handler[P, R]) (*Pool[P, R], error) {
	if config == nil {
		config = DefaultPoolConfig()
	}
	if err := defaults.Set(config); err != nil {
		return nil, fmt.Errorf("pool config: %w", err)
	}
	if config.Size <= 0 {
		return nil, fmt.Errorf("pool size must be positive, got %d: %w", config.Size, types.ErrInvalidConfig)
	}

	base := config.Consumer
	if base.Mode != TimeoutConsume {
		base.Mode = PoolConsume
	}
	base.Clock = types.ClockOrReal(base.Clock)

	q := queue.NewWithConfig[P, R](&queue.Config{
		Name:    base.Name,
		Clock:   base.Clock,
		Logger:  base.Logger,
		Metrics: base.Metrics,
	})

	p := &Pool[P, R]{
		name:      base.Name,
		queue:     q,
		consumers: make([]*Consumer[P, R], config.Size),
	}
	for i := range p.consumers {
		member := base
		member.Name = fmt.Sprintf("%s-%d", base.Name, i)
		c, err := NewConsumerWithQueue(q, &member, handler)
		if err != nil {
			return nil, fmt.Errorf("pool member %d: %w", i, err)
		}
		p.consumers[i] = c
	}
	return p, nil
}

// Name returns the pool name
func (p *Pool[P, R]) Name() string {
	return p.name
}

// Size returns the number of consumers
func (p *Pool[P, R]) Size() int {
	return len(p.consumers)
}

// Queue returns the shared queue
func (p *Pool[P, R]) Queue() *queue.Queue[P, R] {
	return p.queue
}

// Consumers returns the pool members
func (p *Pool[P, R]) Consumers() []*Consumer[P, R] {
	out := make([]*Consumer[P, R], len(p.consumers))
	copy(out, p.consumers)
	return out
}

// Start starts every consumer
func (p *Pool[P, R]) Start() {
	p.StartContext(context.Background())
}

// StartContext starts every consumer; cancelling ctx stops them
func (p *Pool[P, R]) StartContext(ctx context.Context) {
	p.mu.Lock()
	defer p.mu.Unlock()
	for _, c := range p.consumers {
		c.StartContext(ctx)
	}
}

// Stop requests every consumer to stop and wakes them all at once
func (p *Pool[P, R]) Stop() {
	stopped := false
	for _, c := range p.consumers {
		if c.markStopped() {
			stopped = true
		}
	}
	if stopped {
		p.queue.NotifyAll()
	}
}

// Join waits for every consumer and returns the first join error
func (p *Pool[P, R]) Join() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	var g errgroup.Group
	for _, c := range p.consumers {
		g.Go(c.Join)
	}
	return g.Wait()
}

// Close stops and joins the pool
func (p *Pool[P, R]) Close() error {
	p.Stop()
	return p.Join()
}

// Push enqueues an item for any member
func (p *Pool[P, R]) Push(item *queue.Item[P, R]) {
	p.queue.Push(item)
}

// Submit wraps payload in an item, enqueues it and returns it
func (p *Pool[P, R]) Submit(payload P) *queue.Item[P, R] {
	return p.queue.Emplace(payload)
}

// SubmitAndWait enqueues payload and blocks until it is resolved
func (p *Pool[P, R]) SubmitAndWait(ctx context.Context, payload P) (R, error) {
	return waitItem(ctx, p.Submit(payload))
}

// Stats gets pool statistics
func (p *Pool[P, R]) Stats() types.PoolStats {
	stats := types.PoolStats{
		PoolSize:  len(p.consumers),
		QueueSize: p.queue.Len(),
	}
	for _, c := range p.consumers {
		cs := c.Stats()
		if cs.IsActive() {
			stats.RunningConsumers++
		}
		stats.TotalProcessed += cs.TotalProcessed
		stats.TotalFailed += cs.TotalFailed
	}
	return stats
}

// ConsumerStats gets statistics of every member
func (p *Pool[P, R]) ConsumerStats() []types.ConsumerStats {
	out := make([]types.ConsumerStats, 0, len(p.consumers))
	for _, c := range p.consumers {
		out = append(out, c.Stats())
	}
	return out
}
