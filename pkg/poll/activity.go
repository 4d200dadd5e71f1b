package poll

import (
	"sync"
	"time"

	"github.com/benbjohnson/clock"
)

// DefaultInactivityThreshold is how long after the last interaction a user
// still counts as active.
const DefaultInactivityThreshold = 5 * time.Minute

// LocationProvider supplies the observer position. ok is false until a
// position is known.
type LocationProvider interface {
	Location() (lat, lon float64, ok bool)
}

// ActivityProvider reports whether the user is currently engaged.
type ActivityProvider interface {
	UserActive() bool
}

// StaticLocation is a fixed observer position.
type StaticLocation struct {
	Latitude  float64
	Longitude float64
}

// Location implements LocationProvider.
func (s StaticLocation) Location() (float64, float64, bool) {
	return s.Latitude, s.Longitude, true
}

// LocationFunc adapts a function to LocationProvider.
type LocationFunc func() (lat, lon float64, ok bool)

// Location implements LocationProvider.
func (f LocationFunc) Location() (float64, float64, bool) { return f() }

// ActivityFunc adapts a function to ActivityProvider.
type ActivityFunc func() bool

// UserActive implements ActivityProvider.
func (f ActivityFunc) UserActive() bool { return f() }

// ActivityTracker records user interactions. A new tracker counts as active.
type ActivityTracker struct {
	mu        sync.Mutex
	last      time.Time
	threshold time.Duration
	clock     clock.Clock
}

// NewActivityTracker creates a tracker. A zero threshold uses
// DefaultInactivityThreshold; a nil clock uses the system clock.
func NewActivityTracker(threshold time.Duration, clk clock.Clock) *ActivityTracker {
	if threshold <= 0 {
		threshold = DefaultInactivityThreshold
	}
	if clk == nil {
		clk = clock.New()
	}
	return &ActivityTracker{
		last:      clk.Now(),
		threshold: threshold,
		clock:     clk,
	}
}

// Touch marks an interaction (key press, pointer, scroll, touch).
func (a *ActivityTracker) Touch() {
	a.mu.Lock()
	a.last = a.clock.Now()
	a.mu.Unlock()
}

// LastActivity returns the time of the most recent interaction.
func (a *ActivityTracker) LastActivity() time.Time {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.last
}

// UserActive implements ActivityProvider.
func (a *ActivityTracker) UserActive() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.clock.Since(a.last) < a.threshold
}
