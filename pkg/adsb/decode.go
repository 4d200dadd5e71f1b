package adsb

import (
	"encoding/json"
	"fmt"
	"math"
	"strings"
	"time"
)

// pointResponse is the body the proxy passes through from the upstream
// /v2/point endpoint.
type pointResponse struct {
	// Aircraft is the array of aircraft data
	Aircraft []pointAircraft `json:"ac"`

	// Now is the upstream timestamp in milliseconds since the epoch
	Now *float64 `json:"now"`
}

// pointAircraft is a single aircraft entry. Everything but Hex is optional.
type pointAircraft struct {
	// Hex is the ICAO Mode S hex code (e.g., "a12345")
	Hex string `json:"hex"`

	// Flight is the callsign, usually space padded
	Flight *string `json:"flight"`

	Lat *float64 `json:"lat"`
	Lon *float64 `json:"lon"`

	// AltBaro is barometric altitude in feet, or the string "ground"
	AltBaro any `json:"alt_baro"`

	// Gs is ground speed in knots
	Gs *float64 `json:"gs"`

	// Track is ground track in degrees (0-360)
	Track *float64 `json:"track"`

	Category *string `json:"category"`
	Squawk   *string `json:"squawk"`

	// Seen is seconds since the last message
	Seen *float64 `json:"seen"`
}

// decodeAircraft parses a proxy success body. A missing aircraft list yields
// an empty result; entries without a hex identifier are dropped.
func decodeAircraft(body []byte) ([]Aircraft, error) {
	var resp pointResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("failed to parse API response: %w", err)
	}

	var capturedAt time.Time
	if resp.Now != nil && *resp.Now > 0 {
		capturedAt = time.UnixMilli(int64(*resp.Now)).UTC()
	}

	aircraft := make([]Aircraft, 0, len(resp.Aircraft))
	for _, ac := range resp.Aircraft {
		if strings.TrimSpace(ac.Hex) == "" {
			continue
		}
		aircraft = append(aircraft, convertAircraft(ac, capturedAt))
	}
	return aircraft, nil
}

func convertAircraft(ac pointAircraft, capturedAt time.Time) Aircraft {
	aircraft := Aircraft{
		ICAO:     strings.ToLower(strings.TrimSpace(ac.Hex)),
		Callsign: UnknownCallsign,
	}

	if ac.Flight != nil {
		if cs := strings.TrimSpace(*ac.Flight); cs != "" {
			aircraft.Callsign = cs
		}
	}
	if ac.Lat != nil {
		aircraft.Latitude = *ac.Lat
	}
	if ac.Lon != nil {
		aircraft.Longitude = *ac.Lon
	}
	if alt := parseAltitude(ac.AltBaro); alt != nil {
		aircraft.Altitude = *alt
	}
	if ac.Gs != nil {
		aircraft.GroundSpeed = *ac.Gs
	}
	if ac.Track != nil {
		aircraft.Heading = *ac.Track
	}
	if ac.Category != nil {
		aircraft.Category = *ac.Category
	}
	if ac.Squawk != nil {
		aircraft.Squawk = *ac.Squawk
	}
	if !capturedAt.IsZero() {
		aircraft.Timestamp = capturedAt
		if ac.Seen != nil {
			aircraft.Timestamp = capturedAt.Add(-time.Duration(*ac.Seen * float64(time.Second)))
		}
	}

	return aircraft
}

// parseAltitude extracts altitude from a number or the string "ground".
// Returns nil for anything else.
func parseAltitude(val any) *int {
	switch v := val.(type) {
	case float64:
		alt := int(math.Round(v))
		return &alt
	case string:
		if v == "ground" {
			zero := 0
			return &zero
		}
		return nil
	default:
		return nil
	}
}
