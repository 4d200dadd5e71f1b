package main

import (
	"fmt"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/dustin/go-humanize"

	"github.com/skywatch-alerts/skywatch/pkg/adsb"
	"github.com/skywatch-alerts/skywatch/pkg/geo"
	"github.com/skywatch-alerts/skywatch/pkg/poll"
)

// visibleRows is how many contacts the list shows at once.
const visibleRows = 12

var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("86")).
			Background(lipgloss.Color("235")).
			Padding(0, 1)
	headerStyle   = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("39"))
	helpStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
	errStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color("196"))
	warnStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("226"))
	alertStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("196")).Bold(true)
	selectedStyle = lipgloss.NewStyle().Background(lipgloss.Color("237"))
	detailStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("208"))
)

// updateMsg carries a scheduler poll into the program.
type updateMsg poll.Update

// refreshMsg is the result of a manual refresh. skipped is set when no
// observer location is known yet.
type refreshMsg struct {
	aircraft []adsb.Aircraft
	err      error
	at       time.Time
	skipped  bool
}

type tickMsg time.Time

func tick() tea.Cmd {
	return tea.Tick(time.Second, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

type modelConfig struct {
	name        string
	observer    geo.Point
	radiusNM    int
	proximityNM float64
	activity    *poll.ActivityTracker
	refresh     tea.Cmd
	now         func() time.Time
}

type model struct {
	modelConfig

	contacts   []geo.Contact
	selected   int
	polled     bool
	fetchedAt  time.Time
	interval   time.Duration
	warning    bool
	err        error
	refreshing bool
}

func newModel(cfg modelConfig) model {
	if cfg.now == nil {
		cfg.now = time.Now
	}
	return model{modelConfig: cfg}
}

func (m model) Init() tea.Cmd {
	return tick()
}

func (m model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		if m.activity != nil {
			m.activity.Touch()
		}
		switch msg.String() {
		case "ctrl+c", "q":
			return m, tea.Quit
		case "up", "k":
			if m.selected > 0 {
				m.selected--
			}
		case "down", "j":
			if m.selected < len(m.contacts)-1 {
				m.selected++
			}
		case "r":
			if m.refresh != nil && !m.refreshing {
				m.refreshing = true
				return m, m.refresh
			}
		}

	case updateMsg:
		m.polled = true
		m.interval = msg.Interval
		m.warning = msg.RateLimitWarning
		m.err = msg.Err
		m.setAircraft(msg.Aircraft)
		if msg.Err == nil {
			m.fetchedAt = msg.FetchedAt
		}

	case refreshMsg:
		m.refreshing = false
		if msg.skipped {
			break
		}
		m.err = msg.err
		if msg.err == nil {
			m.polled = true
			m.fetchedAt = msg.at
			m.setAircraft(msg.aircraft)
		}

	case tickMsg:
		return m, tick()
	}

	return m, nil
}

func (m *model) setAircraft(aircraft []adsb.Aircraft) {
	m.contacts = geo.Rank(m.observer, aircraft, m.proximityNM)
	if m.selected >= len(m.contacts) {
		m.selected = max(len(m.contacts)-1, 0)
	}
}

func (m model) View() string {
	var s strings.Builder

	title := "SKYWATCH RADAR"
	if m.name != "" {
		title += " - " + m.name
	}
	s.WriteString(titleStyle.Render(title))
	s.WriteString("\n")
	s.WriteString(helpStyle.Render(fmt.Sprintf("%.4f, %.4f  radius %d NM",
		m.observer.Latitude, m.observer.Longitude, m.radiusNM)))
	s.WriteString("\n\n")

	s.WriteString(m.renderStatus())
	s.WriteString("\n")
	s.WriteString(m.renderContacts())
	s.WriteString("\n")
	s.WriteString(helpStyle.Render("↑/↓: Select  R: Refresh  Q: Quit"))
	s.WriteString("\n")

	return s.String()
}

func (m model) renderStatus() string {
	var status strings.Builder

	switch {
	case !m.polled:
		status.WriteString(helpStyle.Render("Waiting for observer location and first poll..."))
	case m.fetchedAt.IsZero():
		status.WriteString(helpStyle.Render("No data yet"))
	default:
		line := "Updated " + humanize.RelTime(m.fetchedAt, m.now(), "ago", "from now")
		if m.interval > 0 {
			line += fmt.Sprintf("  next poll every %s", m.interval)
		}
		if m.refreshing {
			line += "  refreshing..."
		}
		status.WriteString(helpStyle.Render(line))
	}
	status.WriteString("\n")

	if m.err != nil {
		status.WriteString(errStyle.Render(adsb.UserMessage(m.err)))
		status.WriteString("\n")
	}
	if m.warning {
		status.WriteString(warnStyle.Render("Approaching the request limit; polling slowed down"))
		status.WriteString("\n")
	}

	if n := m.inProximity(); n > 0 {
		status.WriteString(alertStyle.Render(fmt.Sprintf("%d aircraft within %.1f NM", n, m.proximityNM)))
		status.WriteString("\n")
	}

	return status.String()
}

func (m model) inProximity() int {
	n := 0
	for _, c := range m.contacts {
		if c.InProximity {
			n++
		}
	}
	return n
}

func (m model) renderContacts() string {
	var list strings.Builder

	list.WriteString(headerStyle.Render("Aircraft:"))
	list.WriteString(fmt.Sprintf(" (%d)", len(m.contacts)))
	list.WriteString("\n\n")

	if len(m.contacts) == 0 {
		list.WriteString(helpStyle.Render("  No aircraft in range"))
		list.WriteString("\n")
		return list.String()
	}

	list.WriteString(headerStyle.Render(fmt.Sprintf("  %-8s  %9s  %8s  %7s  %6s  %s",
		"CALLSIGN", "ALT ft", "RNG nm", "BRG", "GS kt", "ETA")))
	list.WriteString("\n")

	start := 0
	if m.selected > visibleRows/2 && len(m.contacts) > visibleRows {
		start = min(m.selected-visibleRows/2, len(m.contacts)-visibleRows)
	}
	end := min(start+visibleRows, len(m.contacts))

	for i := start; i < end; i++ {
		c := m.contacts[i]

		prefix := "  "
		if i == m.selected {
			prefix = "→ "
		}

		eta := ""
		switch {
		case c.InProximity:
			eta = "OVERHEAD"
		case c.ETA > 0:
			eta = c.ETA.Round(time.Second).String()
		}

		line := fmt.Sprintf("%s%-8s  %9s  %8.1f  %3.0f° %-2s  %6.0f  %s",
			prefix,
			c.Aircraft.Callsign,
			humanize.Comma(int64(c.Aircraft.Altitude)),
			c.RangeNM,
			c.Bearing,
			c.Cardinal,
			c.Aircraft.GroundSpeed,
			eta,
		)

		switch {
		case i == m.selected && c.InProximity:
			line = alertStyle.Inherit(selectedStyle).Render(line)
		case i == m.selected:
			line = selectedStyle.Render(line)
		case c.InProximity:
			line = alertStyle.Render(line)
		}

		list.WriteString(line)
		list.WriteString("\n")

		if i == m.selected {
			list.WriteString(detailStyle.Render(m.renderDetail(c)))
			list.WriteString("\n")
		}
	}

	return list.String()
}

func (m model) renderDetail(c geo.Contact) string {
	ac := c.Aircraft
	parts := []string{"ICAO " + strings.ToUpper(ac.ICAO)}
	if ac.Squawk != "" {
		parts = append(parts, "squawk "+ac.Squawk)
	}
	if ac.Category != "" {
		parts = append(parts, "cat "+ac.Category)
	}
	parts = append(parts, fmt.Sprintf("hdg %03.0f°", ac.Heading))
	if !ac.Timestamp.IsZero() {
		parts = append(parts, "seen "+humanize.RelTime(ac.Timestamp, m.now(), "ago", "from now"))
	}
	return "    " + strings.Join(parts, "  ")
}
