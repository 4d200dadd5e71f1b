package poll

import "time"

// Config holds the polling cadence.
type Config struct {
	// BaseInterval is the starting point of every computation (default: 10s)
	BaseInterval time.Duration

	// MinInterval is the lower clamp (default: 5s)
	MinInterval time.Duration

	// MaxInterval is the upper clamp (default: 30s)
	MaxInterval time.Duration

	// DenseTraffic is the aircraft count above which polling speeds up (default: 10)
	DenseTraffic int

	// Radius is the search radius in nautical miles (default: 50)
	Radius int

	// IdleRecheck is how often a scheduler without a location looks again (default: 1s)
	IdleRecheck time.Duration
}

// DefaultConfig returns the standard cadence.
func DefaultConfig() Config {
	return Config{
		BaseInterval: 10 * time.Second,
		MinInterval:  5 * time.Second,
		MaxInterval:  30 * time.Second,
		DenseTraffic: 10,
		Radius:       50,
		IdleRecheck:  time.Second,
	}
}

func (c Config) withDefaults() Config {
	def := DefaultConfig()
	if c.BaseInterval <= 0 {
		c.BaseInterval = def.BaseInterval
	}
	if c.MinInterval <= 0 {
		c.MinInterval = def.MinInterval
	}
	if c.MaxInterval <= 0 {
		c.MaxInterval = def.MaxInterval
	}
	if c.DenseTraffic <= 0 {
		c.DenseTraffic = def.DenseTraffic
	}
	if c.Radius <= 0 {
		c.Radius = def.Radius
	}
	if c.IdleRecheck <= 0 {
		c.IdleRecheck = def.IdleRecheck
	}
	return c
}

// NextInterval computes the delay before the next poll. The adjustments
// apply in order and the result is clamped last:
//
//   - no aircraft: x2
//   - more than DenseTraffic aircraft: /2, not below MinInterval
//   - user inactive: x2
//   - rate limit warning: x3
func (c Config) NextInterval(numAircraft int, userActive, rateLimitWarning bool) time.Duration {
	interval := c.BaseInterval

	switch {
	case numAircraft == 0:
		interval *= 2
	case numAircraft > c.DenseTraffic:
		interval = max(interval/2, c.MinInterval)
	}
	if !userActive {
		interval *= 2
	}
	if rateLimitWarning {
		interval *= 3
	}

	return min(max(interval, c.MinInterval), c.MaxInterval)
}

// NextInterval computes the delay using DefaultConfig.
func NextInterval(numAircraft int, userActive, rateLimitWarning bool) time.Duration {
	return DefaultConfig().NextInterval(numAircraft, userActive, rateLimitWarning)
}
