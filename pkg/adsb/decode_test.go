package adsb

import (
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
)

func TestDecodeAircraft(t *testing.T) {
	t.Run("Full record", func(t *testing.T) {
		body := []byte(`{
			"ac": [{"hex": "A1B2C3", "flight": "UAL123  ", "lat": 37.62, "lon": -122.38,
				"alt_baro": 12000.4, "gs": 280.5, "track": 145.2, "category": "A3",
				"squawk": "1200", "seen": 1.5}],
			"now": 1700000000000
		}`)

		got, err := decodeAircraft(body)
		if err != nil {
			t.Fatalf("Expected no error, got: %v", err)
		}

		want := []Aircraft{{
			ICAO:        "a1b2c3",
			Callsign:    "UAL123",
			Latitude:    37.62,
			Longitude:   -122.38,
			Altitude:    12000,
			GroundSpeed: 280.5,
			Heading:     145.2,
			Category:    "A3",
			Squawk:      "1200",
			Timestamp:   time.UnixMilli(1_700_000_000_000).UTC().Add(-1500 * time.Millisecond),
		}}
		if diff := cmp.Diff(want, got); diff != "" {
			t.Errorf("Unexpected aircraft (-want +got):\n%s", diff)
		}
	})

	t.Run("Sparse record", func(t *testing.T) {
		got, err := decodeAircraft([]byte(`{"ac": [{"hex": "abc999", "flight": "   ", "alt_baro": "ground"}]}`))
		if err != nil {
			t.Fatalf("Expected no error, got: %v", err)
		}
		if len(got) != 1 {
			t.Fatalf("Expected 1 aircraft, got %d", len(got))
		}
		ac := got[0]
		if ac.Callsign != UnknownCallsign {
			t.Errorf("Expected callsign %q, got %q", UnknownCallsign, ac.Callsign)
		}
		if ac.Altitude != 0 {
			t.Errorf("Expected ground altitude 0, got %d", ac.Altitude)
		}
		if !ac.Timestamp.IsZero() {
			t.Errorf("Expected zero timestamp without upstream clock, got %v", ac.Timestamp)
		}
	})

	t.Run("Entries without hex are dropped", func(t *testing.T) {
		got, err := decodeAircraft([]byte(`{"ac": [{"flight": "GHOST"}, {"hex": ""}, {"hex": "abc123"}]}`))
		if err != nil {
			t.Fatalf("Expected no error, got: %v", err)
		}
		if len(got) != 1 || got[0].ICAO != "abc123" {
			t.Errorf("Expected only abc123, got %+v", got)
		}
	})

	t.Run("Missing aircraft list", func(t *testing.T) {
		got, err := decodeAircraft([]byte(`{"msg": "No error"}`))
		if err != nil {
			t.Fatalf("Expected no error, got: %v", err)
		}
		if got == nil || len(got) != 0 {
			t.Errorf("Expected empty non-nil list, got %#v", got)
		}
	})

	t.Run("Invalid JSON", func(t *testing.T) {
		if _, err := decodeAircraft([]byte(`not json`)); err == nil {
			t.Error("Expected error, got nil")
		}
	})
}

func TestParseAltitude(t *testing.T) {
	tests := []struct {
		name string
		in   any
		want *int
	}{
		{"Number", 35000.0, intPtr(35000)},
		{"Rounded", 1234.6, intPtr(1235)},
		{"Ground", "ground", intPtr(0)},
		{"Unknown string", "n/a", nil},
		{"Missing", nil, nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := parseAltitude(tt.in)
			if diff := cmp.Diff(tt.want, got); diff != "" {
				t.Errorf("parseAltitude(%v) (-want +got):\n%s", tt.in, diff)
			}
		})
	}
}

func intPtr(v int) *int { return &v }
