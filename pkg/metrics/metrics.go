// Package metrics exposes Prometheus collectors for workers, queues and the task scheduler.
//
// A nil *Metrics is valid everywhere and records nothing, so components can
// be built without a registry.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const subsystem = "gothread"

// Metrics holds Prometheus collectors.
type Metrics struct {
	ItemsPushed     *prometheus.CounterVec
	ItemsProcessed  *prometheus.CounterVec
	ItemsFailed     *prometheus.CounterVec
	ItemsDrained    *prometheus.CounterVec
	ItemsCancelled  *prometheus.CounterVec
	ConsumerTimeout *prometheus.CounterVec
	QueueDepth      *prometheus.GaugeVec
	HandlerLatency  *prometheus.HistogramVec
	WorkersRunning  prometheus.Gauge
	WakeupsTotal    *prometheus.CounterVec
	TaskRuns        *prometheus.CounterVec
	TaskFailures    *prometheus.CounterVec
}

// New creates the collectors and registers them with reg. A nil reg skips
// registration, which is what tests that read collectors directly want.
func New(namespace string, reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		ItemsPushed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "items_pushed_total",
			Help:      "Total number of work items pushed to a queue",
		}, []string{"queue"}),
		ItemsProcessed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "items_processed_total",
			Help:      "Total number of work items handled successfully",
		}, []string{"worker"}),
		ItemsFailed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "items_failed_total",
			Help:      "Total number of work items whose handler failed",
		}, []string{"worker"}),
		ItemsDrained: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "items_drained_total",
			Help:      "Total number of pending work items invalidated by a drain",
		}, []string{"queue"}),
		ItemsCancelled: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "items_cancelled_total",
			Help:      "Total number of pending work items removed before dispatch",
		}, []string{"queue"}),
		ConsumerTimeout: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "consumer_timeouts_total",
			Help:      "Total number of idle timeouts observed by timeout consumers",
		}, []string{"worker"}),
		QueueDepth: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "queue_depth",
			Help:      "Current number of pending work items",
		}, []string{"queue"}),
		HandlerLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "handler_latency_seconds",
			Help:      "Histogram of work item handler latency",
			Buckets:   prometheus.DefBuckets,
		}, []string{"worker"}),
		WorkersRunning: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "workers_running",
			Help:      "Current number of running worker goroutines",
		}),
		WakeupsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "scheduler_wakeups_total",
			Help:      "Total number of scheduler wakeups",
		}, []string{"scheduler"}),
		TaskRuns: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "task_runs_total",
			Help:      "Total number of periodic task executions",
		}, []string{"scheduler"}),
		TaskFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "task_failures_total",
			Help:      "Total number of periodic task executions that failed",
		}, []string{"scheduler"}),
	}

	if reg != nil {
		reg.MustRegister(m.collectors()...)
	}
	return m
}

func (m *Metrics) collectors() []prometheus.Collector {
	return []prometheus.Collector{
		m.ItemsPushed,
		m.ItemsProcessed,
		m.ItemsFailed,
		m.ItemsDrained,
		m.ItemsCancelled,
		m.ConsumerTimeout,
		m.QueueDepth,
		m.HandlerLatency,
		m.WorkersRunning,
		m.WakeupsTotal,
		m.TaskRuns,
		m.TaskFailures,
	}
}

// Pushed records a push and the resulting queue depth
func (m *Metrics) Pushed(queue string, depth int) {
	if m == nil {
		return
	}
	m.ItemsPushed.WithLabelValues(queue).Inc()
	m.QueueDepth.WithLabelValues(queue).Set(float64(depth))
}

// Depth records the queue depth after a pop or removal
func (m *Metrics) Depth(queue string, depth int) {
	if m == nil {
		return
	}
	m.QueueDepth.WithLabelValues(queue).Set(float64(depth))
}

// Drained records items invalidated by a drain
func (m *Metrics) Drained(queue string, n int) {
	if m == nil || n == 0 {
		return
	}
	m.ItemsDrained.WithLabelValues(queue).Add(float64(n))
	m.QueueDepth.WithLabelValues(queue).Set(0)
}

// Cancelled records items removed before dispatch
func (m *Metrics) Cancelled(queue string, n, depth int) {
	if m == nil {
		return
	}
	m.ItemsCancelled.WithLabelValues(queue).Add(float64(n))
	m.QueueDepth.WithLabelValues(queue).Set(float64(depth))
}

// Handled records a handler invocation outcome
func (m *Metrics) Handled(worker string, d time.Duration, failed bool) {
	if m == nil {
		return
	}
	m.HandlerLatency.WithLabelValues(worker).Observe(d.Seconds())
	if failed {
		m.ItemsFailed.WithLabelValues(worker).Inc()
		return
	}
	m.ItemsProcessed.WithLabelValues(worker).Inc()
}

// TimedOut records an idle timeout
func (m *Metrics) TimedOut(worker string) {
	if m == nil {
		return
	}
	m.ConsumerTimeout.WithLabelValues(worker).Inc()
}

// WorkerStarted increments the running workers gauge
func (m *Metrics) WorkerStarted() {
	if m == nil {
		return
	}
	m.WorkersRunning.Inc()
}

// WorkerExited decrements the running workers gauge
func (m *Metrics) WorkerExited() {
	if m == nil {
		return
	}
	m.WorkersRunning.Dec()
}

// Wakeup records a scheduler wakeup
func (m *Metrics) Wakeup(scheduler string) {
	if m == nil {
		return
	}
	m.WakeupsTotal.WithLabelValues(scheduler).Inc()
}

// TaskRan records a periodic task execution
func (m *Metrics) TaskRan(scheduler string, failed bool) {
	if m == nil {
		return
	}
	m.TaskRuns.WithLabelValues(scheduler).Inc()
	if failed {
		m.TaskFailures.WithLabelValues(scheduler).Inc()
	}
}
