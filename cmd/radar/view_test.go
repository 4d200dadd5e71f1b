package main

import (
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/benbjohnson/clock"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/skywatch-alerts/skywatch/pkg/adsb"
	"github.com/skywatch-alerts/skywatch/pkg/geo"
	"github.com/skywatch-alerts/skywatch/pkg/poll"
)

var testNow = time.Unix(1_700_000_000, 0)

func testAircraft() []adsb.Aircraft {
	return []adsb.Aircraft{
		{ICAO: "a1b2c3", Callsign: "FAR100", Latitude: 36.0, Longitude: -78.0, Altitude: 35000, GroundSpeed: 360, Heading: 180},
		{ICAO: "d4e5f6", Callsign: "NEAR1", Latitude: 35.05, Longitude: -78.0, Altitude: 2500, GroundSpeed: 120, Heading: 90, Squawk: "1200"},
		{ICAO: "000000", Callsign: adsb.UnknownCallsign},
	}
}

func newTestModel(activity *poll.ActivityTracker) model {
	return newModel(modelConfig{
		name:        "Home",
		observer:    geo.Point{Latitude: 35.0, Longitude: -78.0},
		radiusNM:    50,
		proximityNM: 5,
		activity:    activity,
		now:         func() time.Time { return testNow },
	})
}

func send(m model, msg tea.Msg) (model, tea.Cmd) {
	next, cmd := m.Update(msg)
	return next.(model), cmd
}

func key(s string) tea.KeyMsg {
	switch s {
	case "down":
		return tea.KeyMsg{Type: tea.KeyDown}
	case "up":
		return tea.KeyMsg{Type: tea.KeyUp}
	}
	return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)}
}

func TestUpdateRanksContacts(t *testing.T) {
	m := newTestModel(nil)
	m, _ = send(m, updateMsg(poll.Update{
		Aircraft:  testAircraft(),
		Interval:  10 * time.Second,
		FetchedAt: testNow.Add(-3 * time.Second),
	}))

	if len(m.contacts) != 2 {
		t.Fatalf("Expected 2 positioned contacts, got %d", len(m.contacts))
	}
	if m.contacts[0].Aircraft.Callsign != "NEAR1" {
		t.Errorf("Expected nearest contact first, got %s", m.contacts[0].Aircraft.Callsign)
	}
	if !m.contacts[0].InProximity {
		t.Error("Expected NEAR1 to be in proximity")
	}
	if m.contacts[1].ETA <= 0 {
		t.Error("Expected inbound FAR100 to have an ETA")
	}

	view := m.View()
	for _, want := range []string{
		"SKYWATCH RADAR - Home",
		"Updated 3 seconds ago",
		"next poll every 10s",
		"1 aircraft within 5.0 NM",
		"NEAR1",
		"OVERHEAD",
		"35,000",
		"ICAO D4E5F6",
		"squawk 1200",
	} {
		if !strings.Contains(view, want) {
			t.Errorf("Expected view to contain %q\n%s", want, view)
		}
	}
}

func TestUpdateErrorKeepsContacts(t *testing.T) {
	m := newTestModel(nil)
	m, _ = send(m, updateMsg(poll.Update{Aircraft: testAircraft(), FetchedAt: testNow}))

	rateErr := &adsb.Error{Kind: adsb.KindRateLimit, Message: "Rate limit exceeded"}
	m, _ = send(m, updateMsg(poll.Update{
		Aircraft:         testAircraft(),
		Err:              rateErr,
		RateLimitWarning: true,
		Interval:         30 * time.Second,
		FetchedAt:        testNow.Add(20 * time.Second),
	}))

	if len(m.contacts) != 2 {
		t.Errorf("Expected last good contacts to stay, got %d", len(m.contacts))
	}
	if !m.fetchedAt.Equal(testNow) {
		t.Errorf("Expected fetch time of the last success, got %v", m.fetchedAt)
	}

	view := m.View()
	if !strings.Contains(view, adsb.UserMessage(rateErr)) {
		t.Errorf("Expected rate limit message in view\n%s", view)
	}
	if !strings.Contains(view, "polling slowed down") {
		t.Errorf("Expected rate limit warning in view\n%s", view)
	}
}

func TestWaitingForFirstPoll(t *testing.T) {
	m := newTestModel(nil)
	view := m.View()
	if !strings.Contains(view, "Waiting for observer location") {
		t.Errorf("Expected waiting notice\n%s", view)
	}
	if !strings.Contains(view, "No aircraft in range") {
		t.Errorf("Expected empty list notice\n%s", view)
	}
}

func TestKeysTouchActivity(t *testing.T) {
	mock := clock.NewMock()
	activity := poll.NewActivityTracker(time.Minute, mock)
	m := newTestModel(activity)

	mock.Add(2 * time.Minute)
	if activity.UserActive() {
		t.Fatal("Expected user to be inactive after 2 minutes")
	}

	m, _ = send(m, key("down"))
	if !activity.UserActive() {
		t.Error("Expected key press to mark the user active")
	}
}

func TestSelection(t *testing.T) {
	m := newTestModel(nil)
	m, _ = send(m, updateMsg(poll.Update{Aircraft: testAircraft(), FetchedAt: testNow}))

	m, _ = send(m, key("down"))
	m, _ = send(m, key("down"))
	if m.selected != 1 {
		t.Errorf("Expected selection to stop at the last contact, got %d", m.selected)
	}
	m, _ = send(m, key("up"))
	m, _ = send(m, key("up"))
	if m.selected != 0 {
		t.Errorf("Expected selection to stop at the first contact, got %d", m.selected)
	}

	m.selected = 1
	m, _ = send(m, updateMsg(poll.Update{Aircraft: testAircraft()[1:2], FetchedAt: testNow}))
	if m.selected != 0 {
		t.Errorf("Expected selection clamped to the shorter list, got %d", m.selected)
	}
}

func TestManualRefresh(t *testing.T) {
	calls := 0
	m := newTestModel(nil)
	m.refresh = func() tea.Msg {
		calls++
		return refreshMsg{aircraft: testAircraft(), at: testNow}
	}

	m, cmd := send(m, key("r"))
	if cmd == nil || !m.refreshing {
		t.Fatal("Expected refresh command to start")
	}
	if _, again := send(m, key("r")); again != nil {
		t.Error("Expected no second refresh while one is running")
	}

	m, _ = send(m, cmd())
	if calls != 1 {
		t.Errorf("Expected 1 refresh call, got %d", calls)
	}
	if m.refreshing {
		t.Error("Expected refresh to finish")
	}
	if len(m.contacts) != 2 {
		t.Errorf("Expected 2 contacts after refresh, got %d", len(m.contacts))
	}

	m, _ = send(m, refreshMsg{err: errors.New("boom")})
	if m.err == nil || len(m.contacts) != 2 {
		t.Error("Expected failed refresh to keep contacts and report the error")
	}

	m.err = nil
	m, _ = send(m, refreshMsg{skipped: true})
	if m.err != nil || m.refreshing {
		t.Error("Expected skipped refresh to change nothing")
	}
}

func TestQuit(t *testing.T) {
	m := newTestModel(nil)
	_, cmd := send(m, key("q"))
	if cmd == nil {
		t.Fatal("Expected quit command")
	}
	if _, ok := cmd().(tea.QuitMsg); !ok {
		t.Error("Expected tea.QuitMsg")
	}
}
