package worker

import (
	"fmt"
	"runtime"
	"sync"
	"sync/atomic"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/swap-10/rustic-server/pkg/queue"
	"github.com/swap-10/rustic-server/pkg/types"
)

// WorkerState defines the state of a Worker
type WorkerState int32

const (
	// WorkerStateRunning represents a worker waiting for its next job
	WorkerStateRunning WorkerState = iota
	// WorkerStateExecuting represents a worker running a job
	WorkerStateExecuting
	// WorkerStateTerminated represents a worker whose goroutine has exited
	WorkerStateTerminated
)

// String returns the string representation of WorkerState
func (ws WorkerState) String() string {
	switch ws {
	case WorkerStateRunning:
		return "running"
	case WorkerStateExecuting:
		return "executing"
	case WorkerStateTerminated:
		return "terminated"
	default:
		return "unknown"
	}
}

// Worker claims jobs from a shared receiver and runs them one at a time.
// A job that panics terminates the worker; it is not restarted.
type Worker struct {
	id       int
	state    int32 // atomic state
	receiver *queue.Receiver
	done     chan struct{}

	// set before done is closed, read after
	fault error

	// statistics
	totalExecuted int64
	totalPanicked int64
	lastJobTime   int64 // Unix nanosecond timestamp

	errorHandler types.ErrorHandler

	// pool callback for syncing statistics
	completionCallback func(time.Duration, bool)

	logger logrus.FieldLogger
	clock  types.Clock

	mu sync.RWMutex
}

// NewWorker creates a new Worker with default real clock
func NewWorker(id int, receiver *queue.Receiver) *Worker {
	return NewWorkerWithClock(id, receiver, types.NewRealClock())
}

// NewWorkerWithClock creates a new Worker with specified clock
func NewWorkerWithClock(id int, receiver *queue.Receiver, clock types.Clock) *Worker {
	if clock == nil {
		clock = types.NewRealClock()
	}

	return &Worker{
		id:       id,
		state:    int32(WorkerStateRunning),
		receiver: receiver,
		done:     make(chan struct{}),
		logger:   logrus.StandardLogger().WithField("worker_id", id),
		clock:    clock,
	}
}

// ID returns the Worker ID
func (w *Worker) ID() int {
	return w.id
}

// State returns the current Worker state
func (w *Worker) State() WorkerState {
	return WorkerState(atomic.LoadInt32(&w.state))
}

// SetErrorHandler sets the error handler
func (w *Worker) SetErrorHandler(handler types.ErrorHandler) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.errorHandler = handler
}

// SetCompletionCallback sets the job completion callback. It receives the
// execution time and whether the job panicked.
func (w *Worker) SetCompletionCallback(callback func(time.Duration, bool)) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.completionCallback = callback
}

// SetLogger sets the logger. The worker_id field is added.
func (w *Worker) SetLogger(logger logrus.FieldLogger) {
	if logger == nil {
		return
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	w.logger = logger.WithField("worker_id", w.id)
}

// Run receives and runs jobs until the queue is closed and empty or a job
// panics. It releases the worker's receiver reference on return.
func (w *Worker) Run() {
	defer w.finish()

	for {
		job, ok := w.receiver.Recv()
		if !ok {
			return
		}

		w.getLogger().Debug("got a job; executing")

		if err := w.processJob(job); err != nil {
			w.fault = err
			return
		}
	}
}

// processJob runs a single job and reports it. It returns the fault if the
// job panicked.
func (w *Worker) processJob(job types.Job) error {
	atomic.StoreInt32(&w.state, int32(WorkerStateExecuting))

	startTime := w.clock.Now()
	atomic.StoreInt64(&w.lastJobTime, startTime.UnixNano())

	err := w.executeJob(job)

	executionTime := w.clock.Since(startTime)

	panicked := err != nil
	if panicked {
		atomic.AddInt64(&w.totalPanicked, 1)
	} else {
		atomic.AddInt64(&w.totalExecuted, 1)
		atomic.StoreInt32(&w.state, int32(WorkerStateRunning))
	}

	w.mu.RLock()
	callback := w.completionCallback
	w.mu.RUnlock()

	if callback != nil {
		callback(executionTime, panicked)
	}

	if panicked {
		w.handleError(err)
	}
	return err
}

// executeJob runs a job and turns a panic into a *types.JobError
func (w *Worker) executeJob(job types.Job) (err error) {
	defer func() {
		if r := recover(); r != nil {
			var buf [4096]byte
			n := runtime.Stack(buf[:], false)

			err = types.NewJobError("worker", w.id, types.PanicError(r)).
				WithContext("stack_trace", string(buf[:n])).
				WithContext("worker_id", w.id)
		}
	}()

	job.Run()
	return nil
}

// handleError logs a job fault and hands it to the error handler
func (w *Worker) handleError(err error) {
	w.mu.RLock()
	handler := w.errorHandler
	logger := w.logger
	w.mu.RUnlock()

	entry := logger.WithError(err)
	if jobErr, ok := err.(*types.JobError); ok {
		entry = entry.WithField("stack_trace", jobErr.Context["stack_trace"])
	}
	entry.Error("job panicked; worker terminating")

	if handler != nil {
		if handledErr := callErrorHandler(handler, err); handledErr != nil {
			logger.WithError(handledErr).Warn("error handler failed")
		}
	}
}

// callErrorHandler runs handler, turning a panic in it into an error
func callErrorHandler(handler types.ErrorHandler, err error) (handledErr error) {
	defer func() {
		if r := recover(); r != nil {
			handledErr = fmt.Errorf("error handler panicked: %v", r)
		}
	}()
	return handler(err)
}

// finish releases the receiver before reporting Terminated, so a pool
// that sees no live workers also sees no receivers
func (w *Worker) finish() {
	w.receiver.Release()
	atomic.StoreInt32(&w.state, int32(WorkerStateTerminated))
	close(w.done)
}

func (w *Worker) getLogger() logrus.FieldLogger {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.logger
}

// Done returns a channel closed once the worker goroutine has exited
func (w *Worker) Done() <-chan struct{} {
	return w.done
}

// Join waits for the worker to exit and returns the fault that terminated
// it, if any
func (w *Worker) Join() error {
	<-w.done
	return w.fault
}

// Stats gets Worker statistics
func (w *Worker) Stats() WorkerStats {
	var lastJobTime time.Time
	if ns := atomic.LoadInt64(&w.lastJobTime); ns != 0 {
		lastJobTime = time.Unix(0, ns)
	}

	return WorkerStats{
		ID:            w.id,
		State:         w.State(),
		TotalExecuted: atomic.LoadInt64(&w.totalExecuted),
		TotalPanicked: atomic.LoadInt64(&w.totalPanicked),
		LastJobTime:   lastJobTime,
	}
}

// WorkerStats defines Worker statistics
type WorkerStats struct {
	ID            int
	State         WorkerState
	TotalExecuted int64
	TotalPanicked int64
	LastJobTime   time.Time
}

// IsActive checks if Worker is running a job
func (ws WorkerStats) IsActive() bool {
	return ws.State == WorkerStateExecuting
}

// IsLive checks if the Worker goroutine has not exited
func (ws WorkerStats) IsLive() bool {
	return ws.State != WorkerStateTerminated
}
