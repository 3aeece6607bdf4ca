package worker

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/swap-10/rustic-server/internal/testutils"
)

func newMetricsPool(t *testing.T, registry *prometheus.Registry, size int, namespace string) (*Pool, error) {
	t.Helper()
	logger, _ := testutils.NewTestLogger()
	return NewPool(&PoolConfig{
		PoolSize:          size,
		Logger:            logger,
		MetricsRegisterer: registry,
		MetricsNamespace:  namespace,
	})
}

func TestPool_Metrics(t *testing.T) {
	registry := prometheus.NewRegistry()
	pool, err := newMetricsPool(t, registry, 2, "test")
	require.NoError(t, err)

	assert.Equal(t, float64(2), testutil.ToFloat64(pool.metrics.liveWorkers))

	gate := testutils.NewGate()
	started := make(chan struct{})
	pool.Execute(func() {
		close(started)
		gate.Wait()
		panic("metrics")
	})
	testutils.WaitClosed(t, started, 2*time.Second)

	for i := 0; i < 4; i++ {
		pool.Execute(func() {})
	}

	assert.Equal(t, float64(5), testutil.ToFloat64(pool.metrics.submitted))

	gate.Open()
	assert.Error(t, pool.Shutdown())

	assert.Equal(t, float64(4), testutil.ToFloat64(pool.metrics.executed))
	assert.Equal(t, float64(1), testutil.ToFloat64(pool.metrics.panicked))
	assert.Equal(t, float64(0), testutil.ToFloat64(pool.metrics.dropped))
	assert.Equal(t, float64(0), testutil.ToFloat64(pool.metrics.liveWorkers))
	assert.Equal(t, float64(0), testutil.ToFloat64(pool.metrics.queueLength))

	count, err := testutil.GatherAndCount(registry, "test_job_duration_seconds")
	require.NoError(t, err)
	assert.Equal(t, 1, count)

	families, err := registry.Gather()
	require.NoError(t, err)
	names := make([]string, 0, len(families))
	for _, mf := range families {
		names = append(names, mf.GetName())
	}
	assert.ElementsMatch(t, []string{
		"test_jobs_submitted_total",
		"test_jobs_executed_total",
		"test_jobs_panicked_total",
		"test_jobs_dropped_total",
		"test_live_workers",
		"test_queue_length",
		"test_job_duration_seconds",
	}, names)
}

func TestPool_MetricsDropped(t *testing.T) {
	registry := prometheus.NewRegistry()
	pool, err := newMetricsPool(t, registry, 1, "")
	require.NoError(t, err)

	gate := testutils.NewGate()
	started := make(chan struct{})
	pool.Execute(func() {
		close(started)
		gate.Wait()
	})
	testutils.WaitClosed(t, started, 2*time.Second)
	pool.Execute(func() {})
	pool.Execute(func() {})

	assert.Equal(t, float64(2), testutil.ToFloat64(pool.metrics.queueLength))

	done := testutils.RunAsync(func() { assert.NoError(t, pool.ShutdownNow()) })
	assert.Eventually(t, func() bool { return pool.QueueLength() == 0 }, time.Second, time.Millisecond)
	gate.Open()
	testutils.WaitClosed(t, done, 2*time.Second)

	assert.Equal(t, float64(2), testutil.ToFloat64(pool.metrics.dropped))

	count, err := testutil.GatherAndCount(registry, DefaultMetricsNamespace+"_jobs_dropped_total")
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}

func TestPool_MetricsNamespaceConflict(t *testing.T) {
	registry := prometheus.NewRegistry()

	first, err := newMetricsPool(t, registry, 1, "dup")
	require.NoError(t, err)
	defer first.Shutdown()

	second, err := newMetricsPool(t, registry, 1, "dup")
	assert.Error(t, err)
	assert.Contains(t, err.Error(), `metrics namespace "dup" already in use`)
	assert.Nil(t, second)

	// the failed pool left nothing behind; a fresh namespace still registers
	third, err := newMetricsPool(t, registry, 1, "other")
	require.NoError(t, err)
	assert.NoError(t, third.Shutdown())
}
