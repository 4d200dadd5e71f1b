package adsb

import (
	"math"
	"time"
)

// RetryConfig configures the Fetcher's attempt budget.
type RetryConfig struct {
	// MaxAttempts is the total number of tries per fetch (default: 3)
	MaxAttempts int

	// NetworkDelay is the wait after the first network failure (default: 1 second)
	NetworkDelay time.Duration

	// Multiplier grows the network wait per attempt (default: 2.0)
	Multiplier float64
}

// DefaultRetryConfig returns 3 attempts with 1s, 2s, 4s network waits.
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxAttempts:  3,
		NetworkDelay: time.Second,
		Multiplier:   2.0,
	}
}

func (c RetryConfig) withDefaults() RetryConfig {
	def := DefaultRetryConfig()
	if c.MaxAttempts <= 0 {
		c.MaxAttempts = def.MaxAttempts
	}
	if c.NetworkDelay <= 0 {
		c.NetworkDelay = def.NetworkDelay
	}
	if c.Multiplier < 1 {
		c.Multiplier = def.Multiplier
	}
	return c
}

// networkDelay returns the wait after a network failure on the given
// zero-based attempt: NetworkDelay * Multiplier^attempt.
func (c RetryConfig) networkDelay(attempt int) time.Duration {
	return time.Duration(float64(c.NetworkDelay) * math.Pow(c.Multiplier, float64(attempt)))
}
