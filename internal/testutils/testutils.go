// Package testutils provides shared helpers for pool and server tests
package testutils

import (
	"sync"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	logtest "github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
)

// NewTestLogger returns a logger that records entries instead of printing
// them. Debug entries are kept.
func NewTestLogger() (*logrus.Logger, *logtest.Hook) {
	logger, hook := logtest.NewNullLogger()
	logger.SetLevel(logrus.DebugLevel)
	return logger, hook
}

// EntriesWithMessage returns the recorded entries whose message equals msg
func EntriesWithMessage(hook *logtest.Hook, msg string) []logrus.Entry {
	var out []logrus.Entry
	for _, entry := range hook.AllEntries() {
		if entry.Message == msg {
			out = append(out, *entry)
		}
	}
	return out
}

// Collector is a goroutine-safe append-only list
type Collector[T any] struct {
	mu    sync.Mutex
	items []T
}

// Add appends v
func (c *Collector[T]) Add(v T) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.items = append(c.items, v)
}

// Items returns a copy of the collected values
func (c *Collector[T]) Items() []T {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]T, len(c.items))
	copy(out, c.items)
	return out
}

// Len returns the number of collected values
func (c *Collector[T]) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.items)
}

// Gate blocks jobs until it is opened
type Gate struct {
	ch   chan struct{}
	once sync.Once
}

// NewGate creates a closed gate
func NewGate() *Gate {
	return &Gate{ch: make(chan struct{})}
}

// Wait blocks until the gate is opened
func (g *Gate) Wait() {
	<-g.ch
}

// Open releases every current and future waiter
func (g *Gate) Open() {
	g.once.Do(func() { close(g.ch) })
}

// RunAsync runs fn in a goroutine and returns a channel closed when it returns
func RunAsync(fn func()) <-chan struct{} {
	done := make(chan struct{})
	go func() {
		defer close(done)
		fn()
	}()
	return done
}

// WaitClosed fails the test if ch is not closed within timeout
func WaitClosed(t testing.TB, ch <-chan struct{}, timeout time.Duration, msgAndArgs ...interface{}) bool {
	t.Helper()
	select {
	case <-ch:
		return true
	case <-time.After(timeout):
		return assert.Fail(t, "timed out waiting for channel to close", msgAndArgs...)
	}
}

// NeverClosed fails the test if ch is closed within d
func NeverClosed(t testing.TB, ch <-chan struct{}, d time.Duration, msgAndArgs ...interface{}) bool {
	t.Helper()
	select {
	case <-ch:
		return assert.Fail(t, "channel closed unexpectedly", msgAndArgs...)
	case <-time.After(d):
		return true
	}
}
