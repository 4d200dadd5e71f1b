package adsb

import (
	"context"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"
	"time"

	"github.com/skywatch-alerts/skywatch/pkg/cache"
)

func TestProxyClientRequest(t *testing.T) {
	var got *url.URL
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = r.URL
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`[]`))
	}))
	defer server.Close()

	tests := []struct {
		name      string
		proxyURL  string
		wantQuery url.Values
	}{
		{
			name:     "Plain proxy URL",
			proxyURL: server.URL + "/api/flights",
			wantQuery: url.Values{
				"lat": {"37.6213"}, "lon": {"-122.379"}, "radius": {"25"},
			},
		},
		{
			name:     "Existing query is kept",
			proxyURL: server.URL + "/api/flights?key=abc&lat=0",
			wantQuery: url.Values{
				"key": {"abc"}, "lat": {"37.6213"}, "lon": {"-122.379"}, "radius": {"25"},
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, err := NewProxyClient(tt.proxyURL, time.Second)
			if err != nil {
				t.Fatalf("Failed to create client: %v", err)
			}
			if c.Endpoint() != "/api/flights" {
				t.Errorf("Expected endpoint /api/flights, got %s", c.Endpoint())
			}

			resp, err := c.Do(context.Background(), cache.Query{Latitude: 37.6213, Longitude: -122.379, Radius: 25})
			if err != nil {
				t.Fatalf("Unexpected error: %v", err)
			}
			if !resp.OK() {
				t.Errorf("Expected 2xx, got %d", resp.StatusCode)
			}
			if got.Path != "/api/flights" {
				t.Errorf("Expected path /api/flights, got %s", got.Path)
			}

			query := got.Query()
			if len(query) != len(tt.wantQuery) {
				t.Errorf("Expected %d query parameters, got %d (%s)", len(tt.wantQuery), len(query), got.RawQuery)
			}
			for key, want := range tt.wantQuery {
				if len(query[key]) != 1 || query[key][0] != want[0] {
					t.Errorf("Expected %s=%s, got %v", key, want[0], query[key])
				}
			}
		})
	}
}

func TestNewProxyClientInvalid(t *testing.T) {
	for _, raw := range []string{"localhost:8080", "/api/flights", "://bad"} {
		if _, err := NewProxyClient(raw, 0); err == nil {
			t.Errorf("Expected error for %q, got nil", raw)
		}
	}
}
