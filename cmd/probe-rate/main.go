// probe-rate finds the shortest polling delay the flights proxy tolerates by
// bracketing between a delay that gets rate limited and one that does not.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/joho/godotenv"

	"github.com/skywatch-alerts/skywatch/pkg/adsb"
	"github.com/skywatch-alerts/skywatch/pkg/cache"
	"github.com/skywatch-alerts/skywatch/pkg/config"
	"github.com/skywatch-alerts/skywatch/pkg/logger"
	"github.com/skywatch-alerts/skywatch/pkg/ratelimit"
)

func main() {
	configPath := flag.String("config", "configs/config.toml", "Path to configuration file")
	minDelay := flag.Duration("min", 500*time.Millisecond, "Fastest delay to try")
	maxDelay := flag.Duration("max", 10*time.Second, "Slowest delay to try")
	calls := flag.Int("calls", 5, "Calls per delay")
	pause := flag.Duration("pause", 3*time.Second, "Pause between iterations")
	flag.Parse()

	_ = godotenv.Load()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}

	log, err := logger.New(cfg.LoggerSettings())
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to create logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()

	client, err := adsb.NewProxyClient(cfg.Client.ProxyURL, time.Duration(cfg.Client.TimeoutSeconds)*time.Second)
	if err != nil {
		log.Fatal("Invalid proxy URL", logger.Error(err))
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	p := &prober{
		transport: client,
		query: cache.Query{
			Latitude:  cfg.Observer.Latitude,
			Longitude: cfg.Observer.Longitude,
			Radius:    cfg.Polling.RadiusNM,
		},
		sleep:  ratelimit.ClockSleep(clock.New()),
		logger: log.Named("probe"),
	}

	log.Info("Starting bracketing test",
		logger.String("proxy", cfg.Client.ProxyURL),
		logger.Duration("min", *minDelay),
		logger.Duration("max", *maxDelay),
		logger.Int("calls", *calls))

	b := newBracket(*minDelay, *maxDelay, *minDelay)
	for iteration := 1; iteration <= 10; iteration++ {
		ok, quota, err := p.probe(ctx, b.current, *calls)
		if ctx.Err() != nil {
			log.Info("Interrupted")
			return
		}
		if err != nil {
			log.Warn("Probe failed", logger.Duration("delay", b.current), logger.Error(err))
		} else {
			log.Info("Probe finished",
				logger.Int("iteration", iteration),
				logger.Duration("delay", b.current),
				logger.Bool("ok", ok),
				logger.Int("remaining", quota.Remaining))
		}

		if !b.record(ok && err == nil) {
			break
		}
		if err := p.sleep(ctx, *pause); err != nil {
			return
		}
	}

	if !b.confirmed {
		log.Warn("No safe delay found in range",
			logger.Duration("max", *maxDelay),
			logger.String("hint", "raise -max or wait for the proxy quota to reset"))
		return
	}

	log.Info("Recommended polling floor",
		logger.Duration("min_interval", b.safe),
		logger.Float64("calls_per_minute", time.Minute.Seconds()/b.safe.Seconds()))
	fmt.Printf("\nSet [polling] min_interval_ms = %d\n", b.safe.Milliseconds())
}
