package testutils

import (
	"testing"
	"time"

	"github.com/coder/quartz"

	"github.com/swap-10/rustic-server/pkg/types"
)

// NewMockClock creates a quartz mock clock bound to t
func NewMockClock(t testing.TB) *quartz.Mock {
	return quartz.NewMock(t)
}

// ClockWrapper adapts a quartz mock to types.Clock. Tickers and timers it
// creates are visible to the mock's traps.
type ClockWrapper struct {
	*quartz.Mock
}

var _ types.Clock = (*ClockWrapper)(nil)

// NewClockWrapper wraps mock
func NewClockWrapper(mock *quartz.Mock) *ClockWrapper {
	return &ClockWrapper{Mock: mock}
}

func (c *ClockWrapper) Now() time.Time {
	return c.Mock.Now()
}

func (c *ClockWrapper) Since(t time.Time) time.Duration {
	return c.Mock.Since(t)
}

// After fires once the mock has been advanced by d
func (c *ClockWrapper) After(d time.Duration) <-chan time.Time {
	return c.Mock.NewTimer(d).C
}

func (c *ClockWrapper) NewTicker(d time.Duration) types.Ticker {
	return mockTicker{c.Mock.NewTicker(d)}
}

type mockTicker struct {
	t *quartz.Ticker
}

func (m mockTicker) C() <-chan time.Time { return m.t.C }
func (m mockTicker) Stop()               { m.t.Stop() }
