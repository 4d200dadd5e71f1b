// Package cache provides a short-lived result cache keyed by quantized
// geographic queries.
//
// Entries are trusted without question while fresh (default 5s), served as a
// fallback while younger than the maximum age (default 30s), and discarded
// once older than that.
package cache

import (
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/benbjohnson/clock"
)

const (
	// DefaultFreshFor is how long an entry is trusted without a network call.
	DefaultFreshFor = 5 * time.Second

	// DefaultMaxAge is the hard cutoff after which an entry is dropped.
	DefaultMaxAge = 30 * time.Second

	// KeyPrecision is the number of decimal places latitude and longitude are
	// quantized to. Four places is roughly 11m at the equator.
	KeyPrecision = 4
)

// Query is a geographic lookup: a point and a search radius in nautical miles.
type Query struct {
	Latitude  float64
	Longitude float64
	Radius    int
}

// Key returns the quantized lookup key for q. Queries whose coordinates agree
// to KeyPrecision decimal places share a key.
func (q Query) Key() string {
	return fmt.Sprintf("%.*f_%.*f_%d", KeyPrecision, q.Latitude, KeyPrecision, q.Longitude, q.Radius)
}

// Config holds the cache age thresholds.
type Config struct {
	// FreshFor must be shorter than MaxAge
	FreshFor time.Duration
	MaxAge   time.Duration
}

// DefaultConfig returns the standard 5s / 30s windows.
func DefaultConfig() Config {
	return Config{
		FreshFor: DefaultFreshFor,
		MaxAge:   DefaultMaxAge,
	}
}

type entry[T any] struct {
	records  []T
	storedAt time.Time
}

// ResultCache memoizes record lists per Query. It is safe for concurrent use.
// Stored slices are copied on the way in and on the way out, so callers never
// share backing arrays with the cache.
type ResultCache[T any] struct {
	mu      sync.Mutex
	entries map[string]entry[T]
	cfg     Config
	clock   clock.Clock
}

// New creates an empty cache. A nil clk uses the wall clock.
func New[T any](cfg Config, clk clock.Clock) *ResultCache[T] {
	if cfg.FreshFor <= 0 {
		cfg.FreshFor = DefaultFreshFor
	}
	if cfg.MaxAge <= 0 {
		cfg.MaxAge = DefaultMaxAge
	}
	if clk == nil {
		clk = clock.New()
	}
	return &ResultCache[T]{
		entries: make(map[string]entry[T]),
		cfg:     cfg,
		clock:   clk,
	}
}

// Set stores records for q, replacing any previous entry.
func (c *ResultCache[T]) Set(q Query, records []T) {
	e := entry[T]{
		records:  slices.Clone(records),
		storedAt: c.clock.Now(),
	}
	if e.records == nil {
		e.records = []T{}
	}

	c.mu.Lock()
	c.entries[q.Key()] = e
	c.mu.Unlock()
}

// Get returns the records stored for q if the entry is younger than MaxAge.
// An expired entry is evicted and reported as absent.
func (c *ResultCache[T]) Get(q Query) ([]T, bool) {
	key := q.Key()

	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.entries[key]
	if !ok {
		return nil, false
	}
	if c.clock.Since(e.storedAt) >= c.cfg.MaxAge {
		delete(c.entries, key)
		return nil, false
	}
	return slices.Clone(e.records), true
}

// IsFresh reports whether an entry for q exists and is younger than FreshFor.
func (c *ResultCache[T]) IsFresh(q Query) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.entries[q.Key()]
	if !ok {
		return false
	}
	return c.clock.Since(e.storedAt) < c.cfg.FreshFor
}

// Len returns the number of stored entries, expired ones included.
func (c *ResultCache[T]) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

// Prune evicts every entry at or past MaxAge and returns how many were removed.
func (c *ResultCache[T]) Prune() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	removed := 0
	for key, e := range c.entries {
		if c.clock.Since(e.storedAt) >= c.cfg.MaxAge {
			delete(c.entries, key)
			removed++
		}
	}
	return removed
}

// Clear drops every entry.
func (c *ResultCache[T]) Clear() {
	c.mu.Lock()
	c.entries = make(map[string]entry[T])
	c.mu.Unlock()
}
