// Package ratelimit tracks server-declared quota per endpoint and computes
// client-side backoff delays.
//
// Quota and backoff are tracked independently: quota reflects what the server
// last reported, backoff reflects penalty escalation from our own consecutive
// failures. Neither ever surfaces an error to callers other than context
// cancellation while waiting.
package ratelimit

import (
	"context"
	"math/rand/v2"
	"sync"
	"time"

	"github.com/benbjohnson/clock"

	"github.com/skywatch-alerts/skywatch/pkg/logger"
)

const (
	DefaultInitialBackoff = time.Second
	DefaultMaxBackoff     = 5 * time.Minute
	DefaultMaxJitter      = time.Second

	// DefaultThrottleRatio is the fraction of the limit below which remaining
	// quota triggers proactive throttling.
	DefaultThrottleRatio = 0.1
)

// Config holds backoff and throttle thresholds.
type Config struct {
	InitialBackoff time.Duration
	MaxBackoff     time.Duration
	MaxJitter      time.Duration
	ThrottleRatio  float64
}

// DefaultConfig returns the standard thresholds: 1s initial backoff doubling up
// to 5 minutes, up to 1s of jitter, throttling below 10% remaining.
func DefaultConfig() Config {
	return Config{
		InitialBackoff: DefaultInitialBackoff,
		MaxBackoff:     DefaultMaxBackoff,
		MaxJitter:      DefaultMaxJitter,
		ThrottleRatio:  DefaultThrottleRatio,
	}
}

// State is the last quota snapshot recorded for an endpoint.
type State struct {
	Remaining   int
	Limit       int
	Reset       time.Time
	LastUpdated time.Time
}

// SleepFunc suspends the caller for d or until ctx is done.
type SleepFunc func(ctx context.Context, d time.Duration) error

// Option customizes a Limiter.
type Option func(*Limiter)

// WithClock sets the time source.
func WithClock(clk clock.Clock) Option {
	return func(l *Limiter) { l.clock = clk }
}

// WithSleep replaces the wait used by BackoffAndWait.
func WithSleep(sleep SleepFunc) Option {
	return func(l *Limiter) { l.sleep = sleep }
}

// WithJitter replaces the jitter source. fn receives the configured maximum.
func WithJitter(fn func(max time.Duration) time.Duration) Option {
	return func(l *Limiter) { l.jitter = fn }
}

// WithLogger sets the logger.
func WithLogger(log *logger.Logger) Option {
	return func(l *Limiter) { l.logger = log.Named("ratelimit") }
}

// Limiter holds per-endpoint quota and backoff state. One Limiter is meant to
// be shared by every caller in the process; it is safe for concurrent use.
type Limiter struct {
	mu       sync.Mutex
	states   map[string]State
	backoffs map[string]time.Duration

	cfg    Config
	clock  clock.Clock
	sleep  SleepFunc
	jitter func(max time.Duration) time.Duration
	logger *logger.Logger
}

// NewLimiter creates a Limiter. Zero-valued config fields take their defaults.
func NewLimiter(cfg Config, opts ...Option) *Limiter {
	def := DefaultConfig()
	if cfg.InitialBackoff <= 0 {
		cfg.InitialBackoff = def.InitialBackoff
	}
	if cfg.MaxBackoff <= 0 {
		cfg.MaxBackoff = def.MaxBackoff
	}
	if cfg.MaxJitter < 0 {
		cfg.MaxJitter = 0
	}
	if cfg.ThrottleRatio <= 0 {
		cfg.ThrottleRatio = def.ThrottleRatio
	}

	l := &Limiter{
		states:   make(map[string]State),
		backoffs: make(map[string]time.Duration),
		cfg:      cfg,
		clock:    clock.New(),
		jitter:   randomJitter,
		logger:   logger.NewNop(),
	}
	for _, opt := range opts {
		opt(l)
	}
	if l.sleep == nil {
		l.sleep = ClockSleep(l.clock)
	}
	return l
}

// UpdateFromResponse records the latest quota snapshot for endpoint.
// resetEpochSeconds is the unix time at which the quota window resets.
func (l *Limiter) UpdateFromResponse(endpoint string, remaining int, resetEpochSeconds int64, limit int) {
	st := State{
		Remaining:   remaining,
		Limit:       limit,
		Reset:       time.Unix(resetEpochSeconds, 0),
		LastUpdated: l.clock.Now(),
	}

	l.mu.Lock()
	l.states[endpoint] = st
	l.mu.Unlock()

	l.logger.Debug("Quota snapshot",
		logger.String("endpoint", endpoint),
		logger.Int("remaining", remaining),
		logger.Int("limit", limit),
		logger.Time("reset", st.Reset))
}

// State returns the last snapshot recorded for endpoint.
func (l *Limiter) State(endpoint string) (State, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	st, ok := l.states[endpoint]
	return st, ok
}

// ShouldThrottle reports whether the known remaining quota is below
// ThrottleRatio of the known limit. Unknown endpoints never throttle.
func (l *Limiter) ShouldThrottle(endpoint string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	st, ok := l.states[endpoint]
	if !ok {
		return false
	}
	return float64(st.Remaining) < float64(st.Limit)*l.cfg.ThrottleRatio
}

// BackoffDelay returns how long to wait before the next call to endpoint.
// With the quota exhausted this is the time until reset, clamped at zero.
// Otherwise it is the current backoff plus jitter, capped at MaxBackoff.
func (l *Limiter) BackoffDelay(endpoint string) time.Duration {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.delayLocked(endpoint)
}

func (l *Limiter) delayLocked(endpoint string) time.Duration {
	if st, ok := l.states[endpoint]; ok && st.Remaining == 0 {
		return max(st.Reset.Sub(l.clock.Now()), 0)
	}
	return min(l.currentLocked(endpoint)+l.jitter(l.cfg.MaxJitter), l.cfg.MaxBackoff)
}

func (l *Limiter) currentLocked(endpoint string) time.Duration {
	if b, ok := l.backoffs[endpoint]; ok {
		return b
	}
	return l.cfg.InitialBackoff
}

// Backoff returns the stored backoff value for endpoint, or the initial
// backoff if none is stored.
func (l *Limiter) Backoff(endpoint string) time.Duration {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.currentLocked(endpoint)
}

// BackoffAndWait computes the delay for endpoint, doubles the stored backoff
// for the next call (capped at MaxBackoff) and then waits out the delay.
// The doubling happens before the wait, so an interrupted wait still escalates.
func (l *Limiter) BackoffAndWait(ctx context.Context, endpoint string) error {
	l.mu.Lock()
	delay := l.delayLocked(endpoint)
	next := min(l.currentLocked(endpoint)*2, l.cfg.MaxBackoff)
	l.backoffs[endpoint] = next
	l.mu.Unlock()

	l.logger.Debug("Backing off",
		logger.String("endpoint", endpoint),
		logger.Duration("delay", delay),
		logger.Duration("next_backoff", next))

	return l.sleep(ctx, delay)
}

// ResetBackoff forgets the escalated backoff for endpoint.
func (l *Limiter) ResetBackoff(endpoint string) {
	l.mu.Lock()
	delete(l.backoffs, endpoint)
	l.mu.Unlock()
}

// ClockSleep returns a SleepFunc that waits on clk.
func ClockSleep(clk clock.Clock) SleepFunc {
	return func(ctx context.Context, d time.Duration) error {
		if d <= 0 {
			return ctx.Err()
		}
		t := clk.Timer(d)
		defer t.Stop()
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-t.C:
			return nil
		}
	}
}

func randomJitter(max time.Duration) time.Duration {
	if max <= 0 {
		return 0
	}
	return rand.N(max)
}
