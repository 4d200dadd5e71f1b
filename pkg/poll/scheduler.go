// Package poll drives a NearbyFetcher on a cadence that adapts to traffic
// density, user activity and rate-limit pressure.
package poll

import (
	"context"
	"sync"
	"time"

	"github.com/benbjohnson/clock"

	"github.com/skywatch-alerts/skywatch/pkg/adsb"
	"github.com/skywatch-alerts/skywatch/pkg/logger"
)

// State is the scheduler's position in its Idle → Fetching → Scheduled loop.
type State int

const (
	// StateIdle means no location is known yet.
	StateIdle State = iota

	// StateFetching means a fetch is in flight.
	StateFetching

	// StateScheduled means the next fetch timer is armed.
	StateScheduled

	// StateStopped is terminal.
	StateStopped
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateFetching:
		return "fetching"
	case StateScheduled:
		return "scheduled"
	case StateStopped:
		return "stopped"
	default:
		return "unknown"
	}
}

// Update is the outcome of one poll.
type Update struct {
	// Aircraft is the latest list, or the last good one when Err is set
	Aircraft []adsb.Aircraft

	Err error

	// Latitude and Longitude are the observer position that was queried
	Latitude  float64
	Longitude float64

	// Interval is the delay until the next poll
	Interval time.Duration

	RateLimitWarning bool
	FetchedAt        time.Time
}

// Option customizes a Scheduler.
type Option func(*Scheduler)

// WithClock sets the time source for timers.
func WithClock(clk clock.Clock) Option {
	return func(s *Scheduler) { s.clock = clk }
}

// WithLogger sets the logger.
func WithLogger(log *logger.Logger) Option {
	return func(s *Scheduler) { s.logger = log.Named("scheduler") }
}

// WithOnUpdate registers the callback that receives every poll outcome.
// The callback runs on the scheduler goroutine and may stop its own handle.
func WithOnUpdate(fn func(Update)) Option {
	return func(s *Scheduler) { s.onUpdate = fn }
}

// Scheduler polls a NearbyFetcher. One Scheduler may run several loops, each
// owned by the Handle that Start returns.
type Scheduler struct {
	fetcher  adsb.NearbyFetcher
	cfg      Config
	clock    clock.Clock
	logger   *logger.Logger
	onUpdate func(Update)
}

// NewScheduler creates a Scheduler. Zero config fields take defaults.
func NewScheduler(f adsb.NearbyFetcher, cfg Config, opts ...Option) *Scheduler {
	s := &Scheduler{
		fetcher:  f,
		cfg:      cfg.withDefaults(),
		clock:    clock.New(),
		logger:   logger.NewNop(),
		onUpdate: func(Update) {},
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Handle controls one running poll loop.
type Handle struct {
	mu      sync.Mutex
	state   State
	stopped bool

	cancel context.CancelFunc
	done   chan struct{}
}

// State returns the loop's current state.
func (h *Handle) State() State {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.state
}

// Stop tears the loop down without blocking. The pending timer is canceled
// and no further fetch is issued; a fetch already in flight has its result
// discarded. A delivery racing with Stop may still reach the callback, so
// callers that need a quiet callback wait on Done. Safe to call more than
// once, from any goroutine including the callback itself.
func (h *Handle) Stop() {
	h.markStopped()
	h.cancel()
}

func (h *Handle) markStopped() {
	h.mu.Lock()
	h.stopped = true
	h.state = StateStopped
	h.mu.Unlock()
}

func (h *Handle) isStopped() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.stopped
}

// Done is closed once the loop goroutine has exited, after any running
// callback has returned.
func (h *Handle) Done() <-chan struct{} {
	return h.done
}

// transition moves to next unless the handle was stopped.
func (h *Handle) transition(next State) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.stopped {
		return false
	}
	h.state = next
	return true
}

// Start begins polling in a new goroutine. The first fetch bypasses the
// cache. Canceling ctx has the same effect as Stop.
func (s *Scheduler) Start(ctx context.Context, loc LocationProvider, act ActivityProvider) *Handle {
	ctx, cancel := context.WithCancel(ctx)
	h := &Handle{
		state:  StateIdle,
		cancel: cancel,
		done:   make(chan struct{}),
	}

	go func() {
		defer close(h.done)
		s.run(ctx, h, loc, act)
		h.markStopped()
	}()
	return h
}

// Stop tears down the loop owned by h.
func (s *Scheduler) Stop(h *Handle) {
	h.Stop()
}

func (s *Scheduler) run(ctx context.Context, h *Handle, loc LocationProvider, act ActivityProvider) {
	first := true
	var lastGood []adsb.Aircraft

	for {
		lat, lon, ok := loc.Location()
		if !ok {
			if !h.transition(StateIdle) || !s.wait(ctx, s.cfg.IdleRecheck) {
				return
			}
			continue
		}

		if !h.transition(StateFetching) {
			return
		}
		aircraft, err := s.fetcher.FetchNearby(ctx, lat, lon, s.cfg.Radius, first)
		if ctx.Err() != nil {
			// Late result after teardown.
			return
		}
		first = false

		if err != nil {
			s.logger.Error("Failed to fetch aircraft",
				logger.Float64("lat", lat),
				logger.Float64("lon", lon),
				logger.Error(err))
		} else {
			lastGood = aircraft
		}

		warning := s.fetcher.RateLimitWarning()
		interval := s.cfg.NextInterval(len(lastGood), act.UserActive(), warning)
		timer := s.clock.Timer(interval)

		if !h.transition(StateScheduled) {
			timer.Stop()
			return
		}
		s.logger.Debug("Next poll scheduled",
			logger.Int("aircraft", len(lastGood)),
			logger.Duration("interval", interval),
			logger.Bool("rate_limit_warning", warning))

		s.publish(h, Update{
			Aircraft:         lastGood,
			Err:              err,
			Latitude:         lat,
			Longitude:        lon,
			Interval:         interval,
			RateLimitWarning: warning,
			FetchedAt:        s.clock.Now(),
		})

		select {
		case <-ctx.Done():
			timer.Stop()
			return
		case <-timer.C:
		}
	}
}

// publish delivers u unless the handle has been stopped.
func (s *Scheduler) publish(h *Handle, u Update) {
	if h.isStopped() {
		return
	}
	s.onUpdate(u)
}

func (s *Scheduler) wait(ctx context.Context, d time.Duration) bool {
	timer := s.clock.Timer(d)
	select {
	case <-ctx.Done():
		timer.Stop()
		return false
	case <-timer.C:
		return true
	}
}
