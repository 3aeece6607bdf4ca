package types

import (
	"errors"
	"fmt"
	"testing"
)

func TestPredefinedErrors(t *testing.T) {
	tests := []struct {
		name string
		err  error
	}{
		{"ErrInvalidPoolSize", ErrInvalidPoolSize},
		{"ErrNilJob", ErrNilJob},
		{"ErrPoolClosed", ErrPoolClosed},
		{"ErrNoLiveWorkers", ErrNoLiveWorkers},
		{"ErrQueueClosed", ErrQueueClosed},
		{"ErrNoReceivers", ErrNoReceivers},
		{"ErrJobPanicked", ErrJobPanicked},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.err == nil {
				t.Errorf("expected error, got nil")
			}
			if tt.err.Error() == "" {
				t.Errorf("expected non-empty error message")
			}
		})
	}
}

func TestJobError(t *testing.T) {
	t.Run("Message And Unwrap", func(t *testing.T) {
		cause := errors.New("boom")
		jobErr := NewJobError("worker", 3, cause)

		expectedMsg := "worker error on worker 3: boom"
		if jobErr.Error() != expectedMsg {
			t.Errorf("expected message %q, got %q", expectedMsg, jobErr.Error())
		}
		if !errors.Is(jobErr, cause) {
			t.Errorf("expected errors.Is to match cause")
		}
		if errors.Unwrap(jobErr) != cause {
			t.Errorf("expected Unwrap to return cause")
		}
	})

	t.Run("Context", func(t *testing.T) {
		jobErr := NewJobError("worker", 1, errors.New("x")).
			WithContext("stack_trace", "trace").
			WithContext("worker_id", 1)

		if jobErr.Context["stack_trace"] != "trace" {
			t.Errorf("expected stack_trace context")
		}
		if jobErr.Context["worker_id"] != 1 {
			t.Errorf("expected worker_id context")
		}
	})

	t.Run("errors.As Through Wrapping", func(t *testing.T) {
		wrapped := fmt.Errorf("shutdown: %w", NewJobError("worker", 7, ErrJobPanicked))

		var jobErr *JobError
		if !errors.As(wrapped, &jobErr) {
			t.Fatalf("expected errors.As to find JobError")
		}
		if jobErr.WorkerID != 7 {
			t.Errorf("expected worker 7, got %d", jobErr.WorkerID)
		}
	})
}

func TestPanicError(t *testing.T) {
	sentinel := errors.New("sentinel")

	tests := []struct {
		name      string
		recovered interface{}
		message   string
	}{
		{"string", "bad state", "job panicked: bad state"},
		{"error", sentinel, "job panicked: sentinel"},
		{"other", 42, "job panicked: 42"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := PanicError(tt.recovered)
			if !IsJobPanic(err) {
				t.Errorf("expected IsJobPanic to be true")
			}
			if err.Error() != tt.message {
				t.Errorf("expected %q, got %q", tt.message, err.Error())
			}
		})
	}

	if !errors.Is(PanicError(sentinel), sentinel) {
		t.Errorf("expected panic error to wrap the recovered error")
	}
	if IsJobPanic(errors.New("plain")) {
		t.Errorf("expected plain error not to be a job panic")
	}
}
