package scheduler

import (
	"math"
	"time"
)

// Backoff policies for failed runs.
const (
	// BackoffNone leaves a failed connector's due time untouched, so it is
	// retried on every subsequent sweep.
	BackoffNone = "none"
	// BackoffExponential pushes the due time out by a growing delay per
	// consecutive failure.
	BackoffExponential = "exponential"
)

// BackoffConfig controls rescheduling after a failed run.
type BackoffConfig struct {
	Policy     string
	Initial    time.Duration
	Max        time.Duration
	Multiplier float64
}

// DefaultBackoffConfig returns the exponential curve used when the policy is
// enabled without explicit tuning.
func DefaultBackoffConfig() BackoffConfig {
	return BackoffConfig{
		Policy:     BackoffNone,
		Initial:    5 * time.Minute,
		Max:        6 * time.Hour,
		Multiplier: 2.0,
	}
}

// Delay returns how long to defer the next attempt after the given number of
// consecutive failures. Zero means "do not defer" (retry on next sweep).
func (c BackoffConfig) Delay(failures int) time.Duration {
	if c.Policy != BackoffExponential || failures < 1 {
		return 0
	}
	initial := c.Initial
	if initial <= 0 {
		initial = 5 * time.Minute
	}
	maxDelay := c.Max
	if maxDelay <= 0 {
		maxDelay = 6 * time.Hour
	}
	mult := c.Multiplier
	if mult <= 0 {
		mult = 2.0
	}

	delay := float64(initial) * math.Pow(mult, float64(failures-1))
	if delay > float64(maxDelay) {
		delay = float64(maxDelay)
	}
	return time.Duration(delay)
}
