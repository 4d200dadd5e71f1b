// Skywatch flights proxy
// Forwards point queries to the aircraft-position provider and rate-limits callers
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/skywatch-alerts/skywatch/internal/proxy"
	"github.com/skywatch-alerts/skywatch/pkg/config"
	"github.com/skywatch-alerts/skywatch/pkg/logger"
)

var (
	configPath = flag.String("config", "configs/config.toml", "Path to configuration file")
	accessLog  = flag.Bool("access-log", false, "Log every request")
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

	log, err := logger.New(cfg.LoggerSettings())
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to create logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()

	upstream := proxy.NewUpstream(proxy.UpstreamConfig{
		BaseURL:     cfg.Upstream.BaseURL,
		Timeout:     time.Duration(cfg.Upstream.TimeoutSeconds) * time.Second,
		MinInterval: time.Duration(cfg.Upstream.RateLimitSeconds * float64(time.Second)),
		UserAgent:   cfg.Upstream.UserAgent,
		CacheFor:    time.Duration(cfg.Upstream.CacheSeconds) * time.Second,
	}, nil, log)

	srv := proxy.New(upstream, proxy.Options{
		RequestsPerWindow: cfg.Proxy.RequestsPerWindow,
		Window:            time.Duration(cfg.Proxy.WindowSeconds) * time.Second,
		DefaultRadius:     cfg.Proxy.DefaultRadiusNM,
		MaxRadius:         cfg.Proxy.MaxRadiusNM,
		AllowedOrigins:    cfg.Server.AllowedOrigins,
		AccessLog:         *accessLog,
		Logger:            log,
	})

	httpServer := &http.Server{
		Addr:         cfg.Server.Addr(),
		Handler:      srv.Handler(),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	go func() {
		log.Info("Proxy listening",
			logger.String("addr", httpServer.Addr),
			logger.String("upstream", cfg.Upstream.BaseURL),
			logger.Int("requests_per_window", cfg.Proxy.RequestsPerWindow),
			logger.Int("window_seconds", cfg.Proxy.WindowSeconds))

		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal("Server failed", logger.Error(err))
		}
	}()

	<-ctx.Done()
	log.Info("Shutting down proxy")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		log.Error("Server forced to shutdown", logger.Error(err))
		return
	}

	log.Info("Proxy stopped")
}
