// Package queue provides the unbounded job queue shared by a pool's workers.
//
// A queue has exactly one Sender and one logical Receiver. The Receiver is
// shared by every worker and reference counted: each worker Retains it on
// start and Releases it on exit. Once the last reference is released the
// Sender refuses new jobs with types.ErrNoReceivers.
//
// Closing the Sender is the shutdown signal. Receivers keep getting buffered
// jobs after Close and observe closure only once the buffer is empty.
package queue

import (
	"sync"

	"github.com/swap-10/rustic-server/pkg/types"
)

// core holds the state both ends of the queue share
type core struct {
	mu     sync.Mutex
	notify *sync.Cond

	jobs []types.Job
	head int

	closed    bool
	receivers int
}

// Sender is the producer end of the queue
type Sender struct {
	c *core
}

// Receiver is the consumer end of the queue
type Receiver struct {
	c *core
}

// New creates a queue and returns its two ends. The returned Receiver holds
// one reference.
func New() (*Sender, *Receiver) {
	c := &core{receivers: 1}
	c.notify = sync.NewCond(&c.mu)
	return &Sender{c: c}, &Receiver{c: c}
}

// Send enqueues a job and wakes one waiting receiver. It never blocks on
// capacity.
func (s *Sender) Send(job types.Job) error {
	if types.IsNilJob(job) {
		return types.ErrNilJob
	}

	s.c.mu.Lock()
	defer s.c.mu.Unlock()

	if s.c.closed {
		return types.ErrQueueClosed
	}
	if s.c.receivers == 0 {
		return types.ErrNoReceivers
	}

	s.c.jobs = append(s.c.jobs, job)
	s.c.notify.Signal()
	return nil
}

// Close closes the queue. It is safe to call more than once.
func (s *Sender) Close() {
	s.c.mu.Lock()
	defer s.c.mu.Unlock()

	if s.c.closed {
		return
	}
	s.c.closed = true
	s.c.notify.Broadcast()
}

// CloseAndDiscard closes the queue and drops every buffered job. It returns
// the number of jobs dropped.
func (s *Sender) CloseAndDiscard() int {
	s.c.mu.Lock()
	defer s.c.mu.Unlock()

	dropped := s.c.discardLocked()
	s.c.closed = true
	s.c.notify.Broadcast()
	return dropped
}

// Discard drops every buffered job without closing the queue
func (s *Sender) Discard() int {
	s.c.mu.Lock()
	defer s.c.mu.Unlock()
	return s.c.discardLocked()
}

// IsClosed reports whether Close has been called
func (s *Sender) IsClosed() bool {
	s.c.mu.Lock()
	defer s.c.mu.Unlock()
	return s.c.closed
}

// Len returns the number of buffered jobs
func (s *Sender) Len() int {
	return s.c.len()
}

// Recv blocks until a job is available or the queue is closed and empty.
// The second result is false only in the latter case. The lock is held to
// check and dequeue, and released while waiting.
func (r *Receiver) Recv() (types.Job, bool) {
	r.c.mu.Lock()
	defer r.c.mu.Unlock()

	for r.c.head == len(r.c.jobs) && !r.c.closed {
		r.c.notify.Wait()
	}

	if r.c.head == len(r.c.jobs) {
		return nil, false
	}

	job := r.c.jobs[r.c.head]
	r.c.jobs[r.c.head] = nil
	r.c.head++

	// reclaim the consumed prefix once it dominates the slice
	if r.c.head == len(r.c.jobs) {
		r.c.jobs = r.c.jobs[:0]
		r.c.head = 0
	} else if r.c.head >= 64 && r.c.head*2 >= len(r.c.jobs) {
		n := copy(r.c.jobs, r.c.jobs[r.c.head:])
		clear(r.c.jobs[n:])
		r.c.jobs = r.c.jobs[:n]
		r.c.head = 0
	}

	return job, true
}

// Retain adds a reference to the receiving side
func (r *Receiver) Retain() {
	r.c.mu.Lock()
	defer r.c.mu.Unlock()
	r.c.receivers++
}

// Release drops a reference to the receiving side and returns how many
// remain. Buffered jobs stay in place until the Sender discards them.
func (r *Receiver) Release() int {
	r.c.mu.Lock()
	defer r.c.mu.Unlock()

	if r.c.receivers > 0 {
		r.c.receivers--
	}
	return r.c.receivers
}

// Receivers returns the number of live references to the receiving side
func (r *Receiver) Receivers() int {
	r.c.mu.Lock()
	defer r.c.mu.Unlock()
	return r.c.receivers
}

// Len returns the number of buffered jobs
func (r *Receiver) Len() int {
	return r.c.len()
}

func (c *core) len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.jobs) - c.head
}

func (c *core) discardLocked() int {
	dropped := len(c.jobs) - c.head
	clear(c.jobs)
	c.jobs = nil
	c.head = 0
	return dropped
}
