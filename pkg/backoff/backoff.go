// Package backoff implements truncated exponential backoff with ±25% jitter,
// shared by every reconnecting loop in the module.
package backoff

import (
	"math/rand"
	"time"
)

// Defaults used by New.
const (
	DefaultInitial = 1 * time.Second
	DefaultMax     = 60 * time.Second
	multiplier     = 2.0
	jitter         = 0.25
)

// Backoff yields successive retry delays. It is not safe for concurrent use;
// each retry loop owns its own.
type Backoff struct {
	initial time.Duration
	max     time.Duration
	current time.Duration
}

// New returns a Backoff starting at 1s and capped at 60s.
func New() *Backoff {
	return NewWithBounds(DefaultInitial, DefaultMax)
}

// NewWithBounds returns a Backoff starting at initial and capped at max.
func NewWithBounds(initial, max time.Duration) *Backoff {
	return &Backoff{initial: initial, max: max, current: initial}
}

// Next returns the current delay with jitter applied and advances the state.
func (b *Backoff) Next() time.Duration {
	d := b.current
	d += time.Duration(float64(b.current) * jitter * (rand.Float64()*2 - 1)) //nolint:gosec // not crypto
	if d < 0 {
		d = 0
	}

	b.current = time.Duration(float64(b.current) * multiplier)
	if b.current > b.max {
		b.current = b.max
	}
	return d
}

// Reset returns the backoff to its initial delay.
func (b *Backoff) Reset() {
	b.current = b.initial
}
