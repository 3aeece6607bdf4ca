// Package types defines error types
package types

import (
	"errors"
	"fmt"
)

// Predefined errors
var (
	// ErrInvalidPoolSize indicates a pool was requested with no workers
	ErrInvalidPoolSize = errors.New("pool size must be positive")

	// ErrNilJob indicates a nil job was submitted
	ErrNilJob = errors.New("job cannot be nil")

	// ErrPoolClosed indicates the worker pool has been shut down
	ErrPoolClosed = errors.New("worker pool is closed")

	// ErrNoLiveWorkers indicates every worker has terminated and nothing can receive jobs
	ErrNoLiveWorkers = errors.New("worker pool has no live workers")

	// ErrQueueClosed indicates the job queue sender has been closed
	ErrQueueClosed = errors.New("job queue is closed")

	// ErrNoReceivers indicates every receiver reference of the job queue was released
	ErrNoReceivers = errors.New("job queue has no receivers")

	// ErrJobPanicked indicates a job panicked while a worker was running it
	ErrJobPanicked = errors.New("job panicked")
)

// JobError represents a fault raised while a worker was running a job
type JobError struct {
	// Operation is the name of the operation where the error occurred
	Operation string

	// WorkerID is the id of the worker that ran the job
	WorkerID int

	// Cause is the underlying error
	Cause error

	// Context contains error context information
	Context map[string]interface{}
}

// Error implements the error interface
func (e *JobError) Error() string {
	return fmt.Sprintf("%s error on worker %d: %v", e.Operation, e.WorkerID, e.Cause)
}

// Unwrap returns the underlying error
func (e *JobError) Unwrap() error {
	return e.Cause
}

// Is checks if the error is a specific error
func (e *JobError) Is(target error) bool {
	return errors.Is(e.Cause, target)
}

// NewJobError creates a new job error
func NewJobError(operation string, workerID int, cause error) *JobError {
	return &JobError{
		Operation: operation,
		WorkerID:  workerID,
		Cause:     cause,
		Context:   make(map[string]interface{}),
	}
}

// WithContext adds error context
func (e *JobError) WithContext(key string, value interface{}) *JobError {
	e.Context[key] = value
	return e
}

// PanicError converts a recovered panic value into an error wrapping ErrJobPanicked
func PanicError(recovered interface{}) error {
	switch v := recovered.(type) {
	case error:
		return fmt.Errorf("%w: %w", ErrJobPanicked, v)
	case string:
		return fmt.Errorf("%w: %s", ErrJobPanicked, v)
	default:
		return fmt.Errorf("%w: %v", ErrJobPanicked, v)
	}
}

// IsJobPanic checks if an error was caused by a panicking job
func IsJobPanic(err error) bool {
	return errors.Is(err, ErrJobPanicked)
}
