// Package types defines core interfaces and types shared by the pool, its
// queue and the server feeding it.
package types

// Job is a single-invocation unit of work. Anything it needs must be
// captured by the implementation; Run is called exactly once, by one worker.
type Job interface {
	Run()
}

// JobFunc adapts an ordinary function to the Job interface
type JobFunc func()

// Run calls f()
func (f JobFunc) Run() {
	f()
}

// IsNilJob reports whether job is nil or wraps a nil function
func IsNilJob(job Job) bool {
	if job == nil {
		return true
	}
	if fn, ok := job.(JobFunc); ok && fn == nil {
		return true
	}
	return false
}

// Executor accepts jobs for asynchronous execution
type Executor interface {
	// Submit enqueues a job without blocking
	Submit(job Job) error

	// Execute enqueues fn and panics if the executor can no longer accept work
	Execute(fn func())

	// Shutdown stops accepting jobs and waits for every worker to exit
	Shutdown() error

	// Size returns the number of workers the executor was created with
	Size() int

	// Stats returns executor statistics
	Stats() PoolStats
}

// PoolStats defines statistics for worker pools
type PoolStats struct {
	// PoolSize is the number of workers the pool was created with
	PoolSize int

	// LiveWorkers is the number of workers that have not terminated
	LiveWorkers int

	// ActiveWorkers is the number of workers currently running a job
	ActiveWorkers int

	// QueueLength is the number of jobs waiting to be claimed
	QueueLength int

	// Submitted is the total number of accepted jobs
	Submitted int64

	// Executed is the total number of jobs that ran to completion
	Executed int64

	// Panicked is the total number of jobs that panicked
	Panicked int64

	// Dropped is the total number of jobs discarded without running
	Dropped int64
}

// Pending returns the number of accepted jobs that have not finished or been dropped
func (s PoolStats) Pending() int64 {
	return s.Submitted - s.Executed - s.Panicked - s.Dropped
}

// ErrorHandler defines an error handling function. A non-nil return is logged.
type ErrorHandler func(error) error
