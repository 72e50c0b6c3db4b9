// Package testutils provides simplified testing utilities and helper functions
package testutils

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest"

	"github.com/jzx17/gothread/pkg/metrics"
)

// TestConfig test configuration
type TestConfig struct {
	Timeout       time.Duration
	EnableMetrics bool
	EnableLogging bool
}

// TestContext simplified test context
type TestContext struct {
	t        *testing.T
	config   *TestConfig
	cleanup  []func()
	mu       sync.RWMutex
	registry *prometheus.Registry
	metrics  *metrics.Metrics
}

// NewTestContext creates new test context
func NewTestContext(t *testing.T, config *TestConfig) *TestContext {
	if config == nil {
		config = &TestConfig{
			Timeout:       5 * time.Second,
			EnableMetrics: true,
			EnableLogging: false,
		}
	}

	tc := &TestContext{
		t:       t,
		config:  config,
		cleanup: make([]func(), 0),
	}
	if config.EnableMetrics {
		tc.registry = prometheus.NewRegistry()
		tc.metrics = metrics.New("test", tc.registry)
	}
	t.Cleanup(tc.Cleanup)
	return tc
}

// T returns testing.T instance
func (tc *TestContext) T() *testing.T {
	return tc.t
}

// Context returns context with timeout
func (tc *TestContext) Context() context.Context {
	ctx, cancel := context.WithTimeout(context.Background(), tc.config.Timeout)
	tc.AddCleanup(cancel)
	return ctx
}

// Logger returns a test logger, or a no-op one when logging is disabled
func (tc *TestContext) Logger() *zap.Logger {
	if !tc.config.EnableLogging {
		return zap.NewNop()
	}
	return zaptest.NewLogger(tc.t)
}

// Metrics returns collectors registered on a private registry, or nil
func (tc *TestContext) Metrics() *metrics.Metrics {
	return tc.metrics
}

// Registry returns the private metrics registry, or nil
func (tc *TestContext) Registry() *prometheus.Registry {
	return tc.registry
}

// AddCleanup adds cleanup function
func (tc *TestContext) AddCleanup(fn func()) {
	tc.mu.Lock()
	defer tc.mu.Unlock()
	tc.cleanup = append(tc.cleanup, fn)
}

// Cleanup executes cleanup
func (tc *TestContext) Cleanup() {
	tc.mu.Lock()
	defer tc.mu.Unlock()

	// Execute cleanup functions in reverse order
	for i := len(tc.cleanup) - 1; i >= 0; i-- {
		tc.cleanup[i]()
	}
	tc.cleanup = nil
}

// RequireNoError asserts no error
func (tc *TestContext) RequireNoError(err error, msgAndArgs ...interface{}) {
	if !assert.NoError(tc.t, err, msgAndArgs...) {
		tc.t.FailNow()
	}
}

// AssertEventually waits for condition to be true
func (tc *TestContext) AssertEventually(condition func() bool, timeout, tick time.Duration, msgAndArgs ...interface{}) {
	assert.Eventually(tc.t, condition, timeout, tick, msgAndArgs...)
}

// AssertClosed asserts that ch is closed within timeout
func AssertClosed(t testing.TB, ch <-chan struct{}, timeout time.Duration, msgAndArgs ...interface{}) bool {
	t.Helper()
	select {
	case <-ch:
		return true
	case <-time.After(timeout):
		return assert.Fail(t, "channel was not closed in time", msgAndArgs...)
	}
}
