package worker

import (
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/sirupsen/logrus"

	"github.com/swap-10/rustic-server/pkg/queue"
	"github.com/swap-10/rustic-server/pkg/types"
)

// PoolConfig defines configuration for the worker pool
type PoolConfig struct {
	// PoolSize is the number of workers, fixed for the pool's lifetime
	PoolSize int

	// Clock for time operations (optional, defaults to real clock)
	Clock types.Clock

	// Logger receives pool and worker logs (optional, defaults to the logrus standard logger)
	Logger logrus.FieldLogger

	// ErrorHandler is called with the *types.JobError of a panicking job
	ErrorHandler types.ErrorHandler

	// JoinWarnInterval is how often Shutdown logs a worker that is still
	// running its job. Zero disables the warning.
	JoinWarnInterval time.Duration

	// MetricsRegisterer enables Prometheus metrics when set
	MetricsRegisterer prometheus.Registerer

	// MetricsNamespace prefixes metric names
	MetricsNamespace string
}

// DefaultPoolConfig returns default configuration
func DefaultPoolConfig() *PoolConfig {
	return &PoolConfig{
		PoolSize:         10,
		Clock:            types.NewRealClock(),
		Logger:           logrus.StandardLogger(),
		JoinWarnInterval: 10 * time.Second,
		MetricsNamespace: DefaultMetricsNamespace,
	}
}

const (
	poolStateOpen int32 = iota
	poolStateClosed
)

// Pool is a fixed-size worker pool. It owns the only sender of its job
// queue; callers submit through the pool.
type Pool struct {
	config  PoolConfig
	workers []*Worker
	sender  *queue.Sender
	metrics *Metrics
	logger  logrus.FieldLogger

	state int32

	// statistics
	submitted int64
	executed  int64
	panicked  int64
	dropped   int64

	closeOnce   sync.Once
	shutdownErr error
}

var _ types.Executor = (*Pool)(nil)

// NewPool creates a pool and starts its workers. It returns
// types.ErrInvalidPoolSize, without starting anything, if PoolSize is not
// positive.
func NewPool(config *PoolConfig) (*Pool, error) {
	if config == nil {
		config = DefaultPoolConfig()
	}

	if config.PoolSize <= 0 {
		return nil, fmt.Errorf("%w, got %d", types.ErrInvalidPoolSize, config.PoolSize)
	}

	cfg := *config
	if cfg.Clock == nil {
		cfg.Clock = types.NewRealClock()
	}
	if cfg.Logger == nil {
		cfg.Logger = logrus.StandardLogger()
	}

	sender, receiver := queue.New()

	pool := &Pool{
		config:  cfg,
		workers: make([]*Worker, cfg.PoolSize),
		sender:  sender,
		logger:  cfg.Logger.WithField("component", "worker_pool"),
	}

	for i := 0; i < cfg.PoolSize; i++ {
		worker := NewWorkerWithClock(i, receiver, cfg.Clock)
		worker.SetLogger(cfg.Logger)
		if cfg.ErrorHandler != nil {
			worker.SetErrorHandler(cfg.ErrorHandler)
		}
		worker.SetCompletionCallback(pool.onJobComplete)
		receiver.Retain()
		pool.workers[i] = worker
	}

	if cfg.MetricsRegisterer != nil {
		metrics, err := newMetrics(cfg.MetricsRegisterer, cfg.MetricsNamespace, pool)
		if err != nil {
			sender.Close()
			return nil, err
		}
		pool.metrics = metrics
	}

	// the workers hold the only references from here on
	receiver.Release()

	for _, worker := range pool.workers {
		go worker.Run()
	}

	pool.logger.WithField("workers", cfg.PoolSize).Info("worker pool started")

	return pool, nil
}

// MustNewPool creates a pool with size workers and default configuration.
// It panics if size is not positive: a pool that can never run a job is a
// programming error.
func MustNewPool(size int) *Pool {
	config := DefaultPoolConfig()
	config.PoolSize = size

	pool, err := NewPool(config)
	if err != nil {
		panic(fmt.Sprintf("worker: cannot create pool: %v", err))
	}
	return pool
}

// Submit enqueues a job and returns without waiting for it to run. It
// returns types.ErrPoolClosed after shutdown and types.ErrNoLiveWorkers once
// every worker has terminated.
func (p *Pool) Submit(job types.Job) error {
	if types.IsNilJob(job) {
		return types.ErrNilJob
	}

	// counted first so Stats never sees an execution before its submission
	atomic.AddInt64(&p.submitted, 1)
	if err := p.sender.Send(job); err != nil {
		atomic.AddInt64(&p.submitted, -1)
		switch {
		case errors.Is(err, types.ErrQueueClosed):
			return types.ErrPoolClosed
		case errors.Is(err, types.ErrNoReceivers):
			return types.ErrNoLiveWorkers
		default:
			return err
		}
	}

	p.metrics.observeSubmitted()
	return nil
}

// Execute enqueues fn. Submitting to a pool that can no longer run jobs is
// a lifecycle violation and panics with the Submit error.
func (p *Pool) Execute(fn func()) {
	if err := p.Submit(types.JobFunc(fn)); err != nil {
		panic(fmt.Sprintf("worker: cannot execute job: %v", err))
	}
}

// Shutdown closes the queue and joins every worker in turn. Live workers
// drain the jobs already queued. Jobs left queued because no worker
// survived are dropped. The returned error joins the fault of every worker
// that was terminated by a panicking job.
//
// A job that never returns blocks Shutdown forever. Later calls wait for
// the first and return its result.
func (p *Pool) Shutdown() error {
	return p.shutdown(false)
}

// ShutdownNow is like Shutdown but drops queued jobs first, so only the jobs
// already running finish.
func (p *Pool) ShutdownNow() error {
	return p.shutdown(true)
}

// Close is Shutdown
func (p *Pool) Close() error {
	return p.Shutdown()
}

func (p *Pool) shutdown(discard bool) error {
	p.closeOnce.Do(func() {
		atomic.StoreInt32(&p.state, poolStateClosed)

		if discard {
			p.addDropped(p.sender.CloseAndDiscard())
		} else {
			p.sender.Close()
		}

		var faults []error
		for _, worker := range p.workers {
			if err := p.join(worker); err != nil {
				faults = append(faults, err)
			}
		}

		p.addDropped(p.sender.Discard())
		p.shutdownErr = errors.Join(faults...)

		p.logger.WithFields(logrus.Fields{
			"executed": atomic.LoadInt64(&p.executed),
			"panicked": atomic.LoadInt64(&p.panicked),
			"dropped":  atomic.LoadInt64(&p.dropped),
		}).Info("worker pool stopped")
	})

	return p.shutdownErr
}

// join waits for one worker, warning every JoinWarnInterval while it is
// still busy
func (p *Pool) join(w *Worker) error {
	interval := p.config.JoinWarnInterval
	if interval <= 0 {
		return w.Join()
	}

	ticker := p.config.Clock.NewTicker(interval)
	defer ticker.Stop()

	start := p.config.Clock.Now()
	for {
		select {
		case <-w.Done():
			return w.Join()
		case <-ticker.C():
			p.logger.WithFields(logrus.Fields{
				"worker_id": w.ID(),
				"state":     w.State().String(),
				"waited":    p.config.Clock.Since(start).String(),
			}).Warn("still waiting for worker to exit")
		}
	}
}

func (p *Pool) onJobComplete(executionTime time.Duration, panicked bool) {
	if panicked {
		atomic.AddInt64(&p.panicked, 1)
	} else {
		atomic.AddInt64(&p.executed, 1)
	}
	p.metrics.observeCompletion(executionTime.Seconds(), panicked)
}

func (p *Pool) addDropped(n int) {
	if n == 0 {
		return
	}
	atomic.AddInt64(&p.dropped, int64(n))
	p.metrics.observeDropped(n)
}

// Size returns the worker pool size
func (p *Pool) Size() int {
	return p.config.PoolSize
}

// LiveWorkers returns the number of workers that have not terminated
func (p *Pool) LiveWorkers() int {
	live := 0
	for _, worker := range p.workers {
		if worker.State() != WorkerStateTerminated {
			live++
		}
	}
	return live
}

// QueueLength gets the current queue length
func (p *Pool) QueueLength() int {
	return p.sender.Len()
}

// IsClosed checks if shutdown has begun
func (p *Pool) IsClosed() bool {
	return atomic.LoadInt32(&p.state) == poolStateClosed
}

// Stats gets worker pool statistics
func (p *Pool) Stats() types.PoolStats {
	var live, active int
	for _, worker := range p.workers {
		switch worker.State() {
		case WorkerStateExecuting:
			live++
			active++
		case WorkerStateRunning:
			live++
		}
	}

	return types.PoolStats{
		PoolSize:      p.config.PoolSize,
		LiveWorkers:   live,
		ActiveWorkers: active,
		QueueLength:   p.sender.Len(),
		Submitted:     atomic.LoadInt64(&p.submitted),
		Executed:      atomic.LoadInt64(&p.executed),
		Panicked:      atomic.LoadInt64(&p.panicked),
		Dropped:       atomic.LoadInt64(&p.dropped),
	}
}

// GetWorkerStats gets statistics of all Workers
func (p *Pool) GetWorkerStats() []WorkerStats {
	stats := make([]WorkerStats, len(p.workers))
	for i, worker := range p.workers {
		stats[i] = worker.Stats()
	}
	return stats
}
