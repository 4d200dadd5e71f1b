// Package adsb fetches nearby aircraft through the flights proxy.
//
// The Fetcher prefers fresh cached results, respects server-declared quota,
// retries transient failures and reports every failure as one of three
// error kinds (see ErrorKind).
package adsb

import (
	"context"
	"time"
)

// UnknownCallsign is shown for aircraft that do not broadcast a callsign.
const UnknownCallsign = "N/A"

// Aircraft is one tracked aircraft at a point in time. Only ICAO is
// guaranteed; every other field may hold its zero value.
type Aircraft struct {
	// ICAO is the 24-bit transponder address in hex (e.g., "a1b2c3")
	ICAO string `json:"icao24"`

	// Callsign is trimmed; UnknownCallsign when not broadcast
	Callsign string `json:"callsign"`

	// Latitude in decimal degrees (-90 to +90)
	Latitude float64 `json:"latitude"`

	// Longitude in decimal degrees (-180 to +180)
	Longitude float64 `json:"longitude"`

	// Altitude is barometric altitude in feet; 0 on the ground
	Altitude int `json:"altitude"`

	// GroundSpeed in knots
	GroundSpeed float64 `json:"velocity"`

	// Heading is the ground track in degrees (0-360)
	Heading float64 `json:"heading"`

	// Category is the emitter category (e.g., "A3"), if reported
	Category string `json:"category,omitempty"`

	// Squawk is the transponder code, if reported
	Squawk string `json:"squawk,omitempty"`

	// Timestamp is when the position was captured; zero if unknown
	Timestamp time.Time `json:"timestamp,omitzero"`
}

// NearbyFetcher returns aircraft around a point.
type NearbyFetcher interface {
	// FetchNearby returns aircraft within radiusNM of (lat, lon). forceRefresh
	// bypasses the cache.
	FetchNearby(ctx context.Context, lat, lon float64, radiusNM int, forceRefresh bool) ([]Aircraft, error)

	// RateLimitWarning reports whether remaining quota is running low.
	RateLimitWarning() bool
}
