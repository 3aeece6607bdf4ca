package worker

import (
	"errors"
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
)

// DefaultMetricsNamespace prefixes metric names when PoolConfig.MetricsNamespace is empty
const DefaultMetricsNamespace = "rustic"

// Metrics holds Prometheus metrics for worker pool monitoring
type Metrics struct {
	submitted      prometheus.Counter
	executed       prometheus.Counter
	panicked       prometheus.Counter
	dropped        prometheus.Counter
	liveWorkers    prometheus.GaugeFunc
	queueLength    prometheus.GaugeFunc
	processingTime prometheus.Histogram
}

// newMetrics creates the pool metrics and registers them. Gauges read the
// pool directly so no updater goroutine is needed.
func newMetrics(registerer prometheus.Registerer, namespace string, p *Pool) (*Metrics, error) {
	if namespace == "" {
		namespace = DefaultMetricsNamespace
	}

	m := &Metrics{
		submitted: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "jobs_submitted_total",
			Help:      "Total jobs accepted by the worker pool",
		}),
		executed: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "jobs_executed_total",
			Help:      "Total jobs that ran to completion",
		}),
		panicked: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "jobs_panicked_total",
			Help:      "Total jobs that panicked and terminated their worker",
		}),
		dropped: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "jobs_dropped_total",
			Help:      "Total jobs discarded at shutdown without running",
		}),
		liveWorkers: prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "live_workers",
			Help:      "Worker goroutines that have not terminated",
		}, func() float64 { return float64(p.LiveWorkers()) }),
		queueLength: prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "queue_length",
			Help:      "Jobs waiting to be claimed by a worker",
		}, func() float64 { return float64(p.QueueLength()) }),
		processingTime: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "job_duration_seconds",
			Help:      "Time spent running jobs",
			Buckets:   []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0},
		}),
	}

	collectors := []prometheus.Collector{
		m.submitted, m.executed, m.panicked, m.dropped,
		m.liveWorkers, m.queueLength, m.processingTime,
	}

	for i, c := range collectors {
		if err := registerer.Register(c); err != nil {
			// undo the partial registration
			for _, registered := range collectors[:i] {
				registerer.Unregister(registered)
			}
			var are prometheus.AlreadyRegisteredError
			if errors.As(err, &are) {
				return nil, fmt.Errorf("metrics namespace %q already in use: %w", namespace, err)
			}
			return nil, fmt.Errorf("failed to register pool metrics: %w", err)
		}
	}

	return m, nil
}

func (m *Metrics) observeSubmitted() {
	if m == nil {
		return
	}
	m.submitted.Inc()
}

func (m *Metrics) observeCompletion(seconds float64, panicked bool) {
	if m == nil {
		return
	}
	if panicked {
		m.panicked.Inc()
	} else {
		m.executed.Inc()
	}
	m.processingTime.Observe(seconds)
}

func (m *Metrics) observeDropped(n int) {
	if m == nil || n == 0 {
		return
	}
	m.dropped.Add(float64(n))
}
