// Package polling implements the client-side sync engine: an adaptive
// polling loop that keeps a local view of a shared session converged
// with the server without a persistent connection.
package polling

import (
	"math"
	"time"
)

// Config tunes the polling engine.
type Config struct {
	// BaseInterval is the poll period for a recently active session.
	BaseInterval time.Duration
	// MaxInterval caps the idle poll period.
	MaxInterval time.Duration
	// MinInterval is the poll period while changes are arriving.
	MinInterval time.Duration
	// ActivityTimeout is how long after the last observed change a
	// session still counts as recently active.
	ActivityTimeout time.Duration
	// RetryDelay seeds the exponential backoff after failures.
	RetryDelay time.Duration
	// BackoffMultiplier grows the retry delay per consecutive failure.
	BackoffMultiplier float64
	// MaxRetries is the number of consecutive failures tolerated
	// before the engine goes to the terminal error state.
	MaxRetries int
	// RateLimitCooldown is how long polling is suspended after the
	// server signals rate limiting. Does not consume the retry budget.
	RateLimitCooldown time.Duration
}

// DefaultConfig returns the standard polling configuration.
func DefaultConfig() Config {
	return Config{
		BaseInterval:      2 * time.Second,
		MaxInterval:       10 * time.Second,
		MinInterval:       1 * time.Second,
		ActivityTimeout:   30 * time.Second,
		RetryDelay:        1 * time.Second,
		BackoffMultiplier: 2,
		MaxRetries:        3,
		RateLimitCooldown: 60 * time.Second,
	}
}

// Interval computes the adaptive poll interval from the time since the
// last detected change. Fresh changes poll at the minimum, recently
// active sessions at the base, idle ones at a slowed rate capped by
// MaxInterval. Applied only on success, never during backoff.
func (c Config) Interval(sinceChange time.Duration, changed bool) time.Duration {
	if changed {
		return c.MinInterval
	}
	if sinceChange < c.ActivityTimeout {
		return c.BaseInterval
	}
	slow := 3 * c.BaseInterval
	if slow > c.MaxInterval {
		return c.MaxInterval
	}
	return slow
}

// BackoffDelay computes the exponential backoff delay for the given
// consecutive retry count: RetryDelay * BackoffMultiplier^retryCount.
func (c Config) BackoffDelay(retryCount int) time.Duration {
	return time.Duration(float64(c.RetryDelay) * math.Pow(c.BackoffMultiplier, float64(retryCount)))
}
