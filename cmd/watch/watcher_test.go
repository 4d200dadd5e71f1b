package main

import (
	"errors"
	"testing"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/skywatch-alerts/skywatch/pkg/adsb"
	"github.com/skywatch-alerts/skywatch/pkg/geo"
	"github.com/skywatch-alerts/skywatch/pkg/logger"
	"github.com/skywatch-alerts/skywatch/pkg/poll"
)

func newTestWatcher() (*watcher, *observer.ObservedLogs) {
	core, logs := observer.New(zapcore.InfoLevel)
	w := newWatcher(geo.Point{Latitude: 35.0, Longitude: -78.0}, 5, logger.FromZap(zap.New(core)))
	return w, logs
}

func TestWatcherProximityTransitions(t *testing.T) {
	w, logs := newTestWatcher()
	near := adsb.Aircraft{ICAO: "abc123", Callsign: "NEAR1", Latitude: 35.05, Longitude: -78.0}
	far := adsb.Aircraft{ICAO: "def456", Callsign: "FAR1", Latitude: 36.0, Longitude: -78.0}
	now := time.Unix(1_700_000_000, 0)

	w.handle(poll.Update{Aircraft: []adsb.Aircraft{near, far}, FetchedAt: now, Interval: 10 * time.Second})
	w.handle(poll.Update{Aircraft: []adsb.Aircraft{near, far}, FetchedAt: now.Add(10 * time.Second)})

	entered := logs.FilterMessage("Aircraft within proximity").All()
	if len(entered) != 1 {
		t.Fatalf("Expected 1 proximity entry while the aircraft stays inside, got %d", len(entered))
	}
	if entered[0].ContextMap()["icao"] != "abc123" {
		t.Errorf("Expected abc123, got %v", entered[0].ContextMap()["icao"])
	}

	w.handle(poll.Update{Aircraft: []adsb.Aircraft{far}, FetchedAt: now.Add(20 * time.Second)})
	if logs.FilterMessage("Aircraft left proximity").Len() != 1 {
		t.Error("Expected a log entry when the aircraft leaves")
	}

	s := w.Stats()
	if s.Polls != 3 || s.Failures != 0 {
		t.Errorf("Expected 3 polls and 0 failures, got %d and %d", s.Polls, s.Failures)
	}
	if s.Aircraft != 1 || s.Proximity != 0 {
		t.Errorf("Expected 1 aircraft and 0 in proximity, got %d and %d", s.Aircraft, s.Proximity)
	}
	if !s.LastUpdate.Equal(now.Add(20 * time.Second)) {
		t.Errorf("Expected last update %v, got %v", now.Add(20*time.Second), s.LastUpdate)
	}
}

func TestWatcherFailure(t *testing.T) {
	w, logs := newTestWatcher()
	now := time.Unix(1_700_000_000, 0)
	w.handle(poll.Update{FetchedAt: now})

	w.handle(poll.Update{
		Err:       &adsb.Error{Kind: adsb.KindNetwork, Message: "connection refused"},
		FetchedAt: now.Add(10 * time.Second),
		Interval:  20 * time.Second,
	})

	s := w.Stats()
	if s.Failures != 1 {
		t.Errorf("Expected 1 failure, got %d", s.Failures)
	}
	if !s.LastUpdate.Equal(now) {
		t.Errorf("Expected last success to stay at %v, got %v", now, s.LastUpdate)
	}
	if s.Interval != 20*time.Second {
		t.Errorf("Expected interval 20s, got %v", s.Interval)
	}

	failed := logs.FilterMessage("Poll failed").All()
	if len(failed) != 1 {
		t.Fatalf("Expected 1 failure entry, got %d", len(failed))
	}
	if failed[0].ContextMap()["kind"] != string(adsb.KindNetwork) {
		t.Errorf("Expected NETWORK_ERROR kind, got %v", failed[0].ContextMap()["kind"])
	}

	w.handle(poll.Update{Err: errors.New("boom")})
	if w.Stats().Failures != 2 {
		t.Error("Expected foreign errors to count as failures")
	}
}
