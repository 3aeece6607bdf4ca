// Package backoff provides the exponential delay used when accepting
// connections fails temporarily
package backoff

import (
	"math"
	"math/rand"
	"time"
)

// JitterFunc adjusts a computed delay
type JitterFunc func(time.Duration) time.Duration

// EqualJitter equal jitter function - delay/2 + random(0, delay/2)
func EqualJitter(delay time.Duration) time.Duration {
	if delay <= 1 {
		return delay
	}
	half := delay / 2
	return half + time.Duration(rand.Int63n(int64(half)+1))
}

// Exponential computes initial * multiplier^(attempt-1), capped at max
type Exponential struct {
	initialDelay time.Duration
	multiplier   float64
	maxDelay     time.Duration
	jitter       JitterFunc

	attempt int
}

// Option configures an Exponential backoff
type Option func(*Exponential)

// WithMultiplier sets the growth factor
func WithMultiplier(multiplier float64) Option {
	return func(b *Exponential) {
		if multiplier > 1 {
			b.multiplier = multiplier
		}
	}
}

// WithMaxDelay caps the delay
func WithMaxDelay(maxDelay time.Duration) Option {
	return func(b *Exponential) {
		if maxDelay > 0 {
			b.maxDelay = maxDelay
		}
	}
}

// WithJitter applies jitter to every delay
func WithJitter(jitter JitterFunc) Option {
	return func(b *Exponential) {
		b.jitter = jitter
	}
}

// NewExponential creates an exponential backoff. Defaults: multiplier 2,
// max delay 1s, no jitter.
func NewExponential(initialDelay time.Duration, opts ...Option) *Exponential {
	b := &Exponential{
		initialDelay: initialDelay,
		multiplier:   2.0,
		maxDelay:     time.Second,
	}

	for _, opt := range opts {
		opt(b)
	}

	return b
}

// Delay calculates the delay for an attempt, counted from 1
func (b *Exponential) Delay(attempt int) time.Duration {
	if attempt <= 0 {
		attempt = 1
	}

	delay := time.Duration(float64(b.initialDelay) * math.Pow(b.multiplier, float64(attempt-1)))

	// float overflow turns into a negative or huge duration
	if delay > b.maxDelay || delay <= 0 {
		delay = b.maxDelay
	}

	if b.jitter != nil {
		delay = b.jitter(delay)
	}

	return delay
}

// Next advances the attempt counter and returns its delay. Not safe for
// concurrent use.
func (b *Exponential) Next() time.Duration {
	b.attempt++
	return b.Delay(b.attempt)
}

// Attempt returns the number of Next calls since the last Reset
func (b *Exponential) Attempt() int {
	return b.attempt
}

// Reset starts the sequence over
func (b *Exponential) Reset() {
	b.attempt = 0
}
