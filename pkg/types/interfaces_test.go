package types

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestJobFunc(t *testing.T) {
	called := 0
	var job Job = JobFunc(func() { called++ })

	job.Run()

	assert.Equal(t, 1, called)
}

func TestIsNilJob(t *testing.T) {
	var nilFunc JobFunc

	assert.True(t, IsNilJob(nil))
	assert.True(t, IsNilJob(nilFunc))
	assert.False(t, IsNilJob(JobFunc(func() {})))
}

func TestPoolStats_Pending(t *testing.T) {
	stats := PoolStats{
		Submitted: 10,
		Executed:  6,
		Panicked:  1,
		Dropped:   2,
	}

	assert.Equal(t, int64(1), stats.Pending())
	assert.Equal(t, int64(0), PoolStats{}.Pending())
}

func TestRealClock(t *testing.T) {
	clock := NewRealClock()

	start := clock.Now()
	assert.GreaterOrEqual(t, clock.Since(start).Nanoseconds(), int64(0))

	<-clock.After(time.Millisecond)

	ticker := clock.NewTicker(1)
	<-ticker.C()
	ticker.Stop()
}
