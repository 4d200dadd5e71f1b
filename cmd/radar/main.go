// Skywatch radar
// Terminal view of nearby aircraft, polled through the flights proxy
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/joho/godotenv"

	"github.com/skywatch-alerts/skywatch/pkg/adsb"
	"github.com/skywatch-alerts/skywatch/pkg/cache"
	"github.com/skywatch-alerts/skywatch/pkg/config"
	"github.com/skywatch-alerts/skywatch/pkg/geo"
	"github.com/skywatch-alerts/skywatch/pkg/logger"
	"github.com/skywatch-alerts/skywatch/pkg/poll"
	"github.com/skywatch-alerts/skywatch/pkg/ratelimit"
)

var (
	configPath = flag.String("config", "configs/config.toml", "Path to configuration file")
	logFile    = flag.String("log-file", "", "Write logs to this file (the terminal is owned by the radar view)")
)

func main() {
	flag.Parse()

	// .env is optional
	_ = godotenv.Load()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}
	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "Invalid config: %v\n", err)
		os.Exit(1)
	}

	log := logger.NewNop()
	if *logFile != "" {
		settings := cfg.LoggerSettings()
		settings.Output = *logFile
		log, err = logger.New(settings)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Failed to create logger: %v\n", err)
			os.Exit(1)
		}
	}
	defer log.Sync()

	client, err := adsb.NewProxyClient(cfg.Client.ProxyURL, time.Duration(cfg.Client.TimeoutSeconds)*time.Second)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Invalid proxy URL: %v\n", err)
		os.Exit(1)
	}

	// One cache and one limiter for every fetch in the process
	results := cache.New[adsb.Aircraft](cfg.CacheSettings(), nil)
	limiter := ratelimit.NewLimiter(cfg.RateLimitSettings(), ratelimit.WithLogger(log))
	fetcher := adsb.NewFetcher(client, results, limiter,
		adsb.WithRetryConfig(cfg.RetrySettings()),
		adsb.WithLogger(log))

	observer := geo.Point{Latitude: cfg.Observer.Latitude, Longitude: cfg.Observer.Longitude}
	location := poll.LocationFunc(func() (float64, float64, bool) {
		// 0,0 means the observer was never configured
		if observer.Latitude == 0 && observer.Longitude == 0 {
			return 0, 0, false
		}
		return observer.Latitude, observer.Longitude, true
	})
	activity := poll.NewActivityTracker(cfg.InactivityThreshold(), nil)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	radius := cfg.Polling.RadiusNM
	refresh := func() tea.Msg {
		lat, lon, ok := location.Location()
		if !ok {
			return refreshMsg{skipped: true}
		}
		aircraft, err := fetcher.FetchNearby(ctx, lat, lon, radius, true)
		return refreshMsg{aircraft: aircraft, err: err, at: time.Now()}
	}

	m := newModel(modelConfig{
		name:        cfg.Observer.Name,
		observer:    observer,
		radiusNM:    radius,
		proximityNM: cfg.Alerts.ProximityNM,
		activity:    activity,
		refresh:     refresh,
		now:         time.Now,
	})

	p := tea.NewProgram(m, tea.WithAltScreen())

	scheduler := poll.NewScheduler(fetcher, cfg.PollSettings(),
		poll.WithLogger(log),
		poll.WithOnUpdate(func(u poll.Update) {
			p.Send(updateMsg(u))
		}))
	handle := scheduler.Start(ctx, location, activity)

	log.Info("Radar started",
		logger.String("proxy", cfg.Client.ProxyURL),
		logger.Float64("latitude", observer.Latitude),
		logger.Float64("longitude", observer.Longitude),
		logger.Int("radius_nm", radius))

	_, runErr := p.Run()
	handle.Stop()

	if runErr != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", runErr)
		os.Exit(1)
	}
}
