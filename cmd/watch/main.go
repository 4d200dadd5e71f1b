// watch runs the poll scheduler without a terminal UI and logs aircraft that
// come within the proximity radius of the observer.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/joho/godotenv"

	"github.com/skywatch-alerts/skywatch/pkg/adsb"
	"github.com/skywatch-alerts/skywatch/pkg/cache"
	"github.com/skywatch-alerts/skywatch/pkg/config"
	"github.com/skywatch-alerts/skywatch/pkg/geo"
	"github.com/skywatch-alerts/skywatch/pkg/logger"
	"github.com/skywatch-alerts/skywatch/pkg/poll"
	"github.com/skywatch-alerts/skywatch/pkg/ratelimit"
)

func main() {
	configPath := flag.String("config", "configs/config.toml", "Path to configuration file")
	away := flag.Bool("away", false, "Poll at the inactive cadence")
	statsEvery := flag.Duration("stats", 30*time.Second, "Interval between stats lines")
	flag.Parse()

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

	log, err := logger.New(cfg.LoggerSettings())
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to create logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()

	if cfg.Observer.Latitude == 0 && cfg.Observer.Longitude == 0 {
		log.Fatal("Observer location is not configured",
			logger.String("hint", "set [observer] latitude/longitude or SKYWATCH_OBSERVER_LAT/LON"))
	}

	client, err := adsb.NewProxyClient(cfg.Client.ProxyURL, time.Duration(cfg.Client.TimeoutSeconds)*time.Second)
	if err != nil {
		log.Fatal("Invalid proxy URL", logger.Error(err))
	}
	results := cache.New[adsb.Aircraft](cfg.CacheSettings(), nil)
	limiter := ratelimit.NewLimiter(cfg.RateLimitSettings(), ratelimit.WithLogger(log))
	fetcher := adsb.NewFetcher(client, results, limiter,
		adsb.WithRetryConfig(cfg.RetrySettings()),
		adsb.WithLogger(log))

	observer := geo.Point{Latitude: cfg.Observer.Latitude, Longitude: cfg.Observer.Longitude}
	w := newWatcher(observer, cfg.Alerts.ProximityNM, log)

	scheduler := poll.NewScheduler(fetcher, cfg.PollSettings(),
		poll.WithLogger(log),
		poll.WithOnUpdate(w.handle))

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	activity := poll.ActivityFunc(func() bool { return !*away })
	handle := scheduler.Start(ctx, poll.StaticLocation{Latitude: observer.Latitude, Longitude: observer.Longitude}, activity)

	log.Info("Watching",
		logger.String("observer", cfg.Observer.Name),
		logger.Float64("latitude", observer.Latitude),
		logger.Float64("longitude", observer.Longitude),
		logger.Int("radius_nm", cfg.Polling.RadiusNM),
		logger.Float64("proximity_nm", cfg.Alerts.ProximityNM))

	ticker := time.NewTicker(*statsEvery)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			handle.Stop()
			s := w.Stats()
			log.Info("Stopped", logger.Int("polls", s.Polls), logger.Int("failures", s.Failures))
			return
		case <-ticker.C:
			s := w.Stats()
			last := "never"
			if !s.LastUpdate.IsZero() {
				last = humanize.Time(s.LastUpdate)
			}
			log.Info("Stats",
				logger.Int("polls", s.Polls),
				logger.Int("failures", s.Failures),
				logger.Int("aircraft", s.Aircraft),
				logger.Int("proximity", s.Proximity),
				logger.String("last_update", last),
				logger.Duration("interval", s.Interval),
				logger.String("state", handle.State().String()))
		}
	}
}
