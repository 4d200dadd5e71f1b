package main

import (
	"sync"
	"time"

	"github.com/skywatch-alerts/skywatch/pkg/adsb"
	"github.com/skywatch-alerts/skywatch/pkg/geo"
	"github.com/skywatch-alerts/skywatch/pkg/logger"
	"github.com/skywatch-alerts/skywatch/pkg/poll"
)

// Stats tracks what the watcher has seen since start.
type Stats struct {
	Polls      int
	Failures   int
	Aircraft   int
	Proximity  int
	LastUpdate time.Time
	Interval   time.Duration
}

// watcher logs each poll and announces aircraft entering the proximity radius.
type watcher struct {
	observer    geo.Point
	proximityNM float64
	logger      *logger.Logger

	mu     sync.Mutex
	stats  Stats
	inside map[string]bool
}

func newWatcher(observer geo.Point, proximityNM float64, log *logger.Logger) *watcher {
	return &watcher{
		observer:    observer,
		proximityNM: proximityNM,
		logger:      log.Named("watch"),
		inside:      make(map[string]bool),
	}
}

// handle is the scheduler's OnUpdate callback.
func (w *watcher) handle(u poll.Update) {
	w.mu.Lock()
	defer w.mu.Unlock()

	w.stats.Polls++
	w.stats.Interval = u.Interval

	if u.Err != nil {
		w.stats.Failures++
		w.logger.Warn("Poll failed",
			logger.String("kind", string(adsb.KindOf(u.Err))),
			logger.Duration("next", u.Interval),
			logger.Error(u.Err))
		return
	}
	w.stats.LastUpdate = u.FetchedAt

	contacts := geo.Rank(w.observer, u.Aircraft, w.proximityNM)
	w.stats.Aircraft = len(contacts)

	now := make(map[string]bool)
	for _, c := range contacts {
		if !c.InProximity {
			continue
		}
		now[c.Aircraft.ICAO] = true
		if w.inside[c.Aircraft.ICAO] {
			continue
		}
		w.logger.Info("Aircraft within proximity",
			logger.String("icao", c.Aircraft.ICAO),
			logger.String("callsign", c.Aircraft.Callsign),
			logger.Float64("range_nm", c.RangeNM),
			logger.String("direction", c.Cardinal),
			logger.Int("altitude", c.Aircraft.Altitude))
	}
	for icao := range w.inside {
		if !now[icao] {
			w.logger.Info("Aircraft left proximity", logger.String("icao", icao))
		}
	}
	w.inside = now
	w.stats.Proximity = len(now)

	w.logger.Debug("Poll complete",
		logger.Int("aircraft", len(contacts)),
		logger.Int("proximity", len(now)),
		logger.Bool("rate_limit_warning", u.RateLimitWarning),
		logger.Duration("next", u.Interval))
}

// Stats returns a copy of the counters.
func (w *watcher) Stats() Stats {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.stats
}
