package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestNilMetricsIsSafe(t *testing.T) {
	var m *Metrics

	assert.NotPanics(t, func() {
		m.Pushed("q", 1)
		m.Depth("q", 0)
		m.Drained("q", 3)
		m.Cancelled("q", 1, 0)
		m.Handled("w", time.Millisecond, true)
		m.TimedOut("w")
		m.WorkerStarted()
		m.WorkerExited()
		m.Wakeup("s")
		m.TaskRan("s", false)
	})
}

func TestMetrics_Register(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := New("test", reg)

	m.Pushed("jobs", 1)
	m.Pushed("jobs", 2)
	m.Handled("w-0", 10*time.Millisecond, false)
	m.Handled("w-0", 10*time.Millisecond, true)
	m.Drained("jobs", 2)
	m.TaskRan("sched", true)

	assert.Equal(t, float64(2), testutil.ToFloat64(m.ItemsPushed.WithLabelValues("jobs")))
	assert.Equal(t, float64(0), testutil.ToFloat64(m.QueueDepth.WithLabelValues("jobs")))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.ItemsProcessed.WithLabelValues("w-0")))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.ItemsFailed.WithLabelValues("w-0")))
	assert.Equal(t, float64(2), testutil.ToFloat64(m.ItemsDrained.WithLabelValues("jobs")))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.TaskFailures.WithLabelValues("sched")))

	count, err := testutil.GatherAndCount(reg, "test_gothread_handler_latency_seconds")
	assert.NoError(t, err)
	assert.Equal(t, 1, count)
}

func TestMetrics_WorkersRunning(t *testing.T) {
	m := New("test", nil)

	m.WorkerStarted()
	m.WorkerStarted()
	m.WorkerExited()

	assert.Equal(t, float64(1), testutil.ToFloat64(m.WorkersRunning))
}
