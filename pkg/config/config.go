package config

import (
	"encoding/json"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"

	"github.com/skywatch-alerts/skywatch/pkg/adsb"
	"github.com/skywatch-alerts/skywatch/pkg/cache"
	"github.com/skywatch-alerts/skywatch/pkg/logger"
	"github.com/skywatch-alerts/skywatch/pkg/poll"
	"github.com/skywatch-alerts/skywatch/pkg/ratelimit"
)

// Config represents the complete application configuration.
// Files ending in .toml are read as TOML, anything else as JSON.
type Config struct {
	Server    ServerConfig    `json:"server" toml:"server"`
	Upstream  UpstreamConfig  `json:"upstream" toml:"upstream"`
	Proxy     ProxyConfig     `json:"proxy" toml:"proxy"`
	Client    ClientConfig    `json:"client" toml:"client"`
	Cache     CacheConfig     `json:"cache" toml:"cache"`
	RateLimit RateLimitConfig `json:"rate_limit" toml:"rate_limit"`
	Polling   PollingConfig   `json:"polling" toml:"polling"`
	Observer  ObserverConfig  `json:"observer" toml:"observer"`
	Alerts    AlertsConfig    `json:"alerts" toml:"alerts"`
	Logging   LoggingConfig   `json:"logging" toml:"logging"`
}

// ServerConfig contains HTTP server configuration for the proxy.
type ServerConfig struct {
	// Port is the HTTP server port (default: 8080)
	Port string `json:"port" toml:"port"`

	// Host is the server bind address (default: "0.0.0.0")
	Host string `json:"host" toml:"host"`

	// AllowedOrigins lists CORS origins for browser dashboards (default: all)
	AllowedOrigins []string `json:"allowed_origins" toml:"allowed_origins"`
}

// UpstreamConfig describes the aircraft-position provider behind the proxy.
type UpstreamConfig struct {
	// BaseURL is the API base URL (default: "https://api.airplanes.live/v2")
	BaseURL string `json:"base_url" toml:"base_url"`

	// TimeoutSeconds bounds one upstream request (default: 10)
	TimeoutSeconds int `json:"timeout_seconds" toml:"timeout_seconds"`

	// RateLimitSeconds is the minimum time between upstream calls.
	// airplanes.live: 1 request per second is the published limit
	RateLimitSeconds float64 `json:"rate_limit_seconds" toml:"rate_limit_seconds"`

	// UserAgent is sent with every upstream request
	UserAgent string `json:"user_agent" toml:"user_agent"`

	// CacheSeconds reuses an upstream body for repeated queries; 0 disables (default: 10)
	CacheSeconds int `json:"cache_seconds" toml:"cache_seconds"`
}

// ProxyConfig controls inbound rate limiting on the proxy.
type ProxyConfig struct {
	// RequestsPerWindow is each client's quota (default: 60)
	RequestsPerWindow int `json:"requests_per_window" toml:"requests_per_window"`

	// WindowSeconds is the quota window (default: 60)
	WindowSeconds int `json:"window_seconds" toml:"window_seconds"`

	// DefaultRadiusNM is used when a request has no radius (default: 50)
	DefaultRadiusNM int `json:"default_radius_nm" toml:"default_radius_nm"`

	// MaxRadiusNM caps the requested radius (default: 250)
	MaxRadiusNM int `json:"max_radius_nm" toml:"max_radius_nm"`
}

// ClientConfig configures how the dashboard reaches the proxy.
type ClientConfig struct {
	// ProxyURL is the full flights endpoint (default: "http://localhost:8080/api/flights")
	ProxyURL string `json:"proxy_url" toml:"proxy_url"`

	// TimeoutSeconds bounds one proxy request (default: 10)
	TimeoutSeconds int `json:"timeout_seconds" toml:"timeout_seconds"`

	// MaxAttempts is the retry budget per fetch (default: 3)
	MaxAttempts int `json:"max_attempts" toml:"max_attempts"`

	// NetworkRetryMs is the first wait after a network failure; it doubles per attempt (default: 1000)
	NetworkRetryMs int `json:"network_retry_ms" toml:"network_retry_ms"`
}

// CacheConfig holds result cache windows.
type CacheConfig struct {
	// FreshForMs is how long a result skips the network (default: 5000)
	FreshForMs int `json:"fresh_for_ms" toml:"fresh_for_ms"`

	// MaxAgeMs is when a result is discarded (default: 30000)
	MaxAgeMs int `json:"max_age_ms" toml:"max_age_ms"`
}

// RateLimitConfig holds client-side backoff settings.
type RateLimitConfig struct {
	InitialBackoffMs int `json:"initial_backoff_ms" toml:"initial_backoff_ms"`
	MaxBackoffMs     int `json:"max_backoff_ms" toml:"max_backoff_ms"`
	MaxJitterMs      int `json:"max_jitter_ms" toml:"max_jitter_ms"`

	// ThrottleRatio is the remaining/limit fraction below which calls are delayed (default: 0.1)
	ThrottleRatio float64 `json:"throttle_ratio" toml:"throttle_ratio"`
}

// PollingConfig holds the adaptive polling cadence.
type PollingConfig struct {
	BaseIntervalMs int `json:"base_interval_ms" toml:"base_interval_ms"`
	MinIntervalMs  int `json:"min_interval_ms" toml:"min_interval_ms"`
	MaxIntervalMs  int `json:"max_interval_ms" toml:"max_interval_ms"`

	// DenseTraffic is the aircraft count above which polling speeds up (default: 10)
	DenseTraffic int `json:"dense_traffic" toml:"dense_traffic"`

	// RadiusNM is the search radius (default: 50)
	RadiusNM int `json:"radius_nm" toml:"radius_nm"`

	// InactivityMinutes is how long after the last key press the user counts as away (default: 5)
	InactivityMinutes int `json:"inactivity_minutes" toml:"inactivity_minutes"`
}

// ObserverConfig contains the observer's geographic location.
type ObserverConfig struct {
	// Name is a friendly identifier for this observer location
	Name string `json:"name" toml:"name"`

	// Latitude in decimal degrees (-90 to +90)
	Latitude float64 `json:"latitude" toml:"latitude"`

	// Longitude in decimal degrees (-180 to +180)
	Longitude float64 `json:"longitude" toml:"longitude"`
}

// AlertsConfig controls proximity highlighting.
type AlertsConfig struct {
	// ProximityNM highlights aircraft within this range; 0 disables (default: 5)
	ProximityNM float64 `json:"proximity_nm" toml:"proximity_nm"`
}

// LoggingConfig selects log verbosity and encoding.
type LoggingConfig struct {
	// Level is debug, info, warn or error (default: "info")
	Level string `json:"level" toml:"level"`

	// Format is "console" or "json" (default: "console")
	Format string `json:"format" toml:"format"`
}

// Load reads configuration from a JSON or TOML file.
// Values missing from the file keep their defaults. If the file doesn't
// exist, returns the default configuration. Environment overrides apply in
// both cases.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	if _, err := os.Stat(path); os.IsNotExist(err) {
		cfg.applyEnvironmentOverrides()
		return cfg, nil
	}

	if isTOML(path) {
		if _, err := toml.DecodeFile(path, cfg); err != nil {
			return nil, fmt.Errorf("failed to decode config file: %w", err)
		}
	} else {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		if err := json.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config file: %w", err)
		}
	}

	cfg.applyEnvironmentOverrides()

	return cfg, nil
}

// Save writes the configuration, choosing the format from the extension.
func (c *Config) Save(path string) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	if isTOML(path) {
		f, err := os.Create(path)
		if err != nil {
			return fmt.Errorf("failed to write config file: %w", err)
		}
		defer f.Close()
		if err := toml.NewEncoder(f).Encode(c); err != nil {
			return fmt.Errorf("failed to encode config: %w", err)
		}
		return nil
	}

	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

func isTOML(path string) bool {
	return strings.EqualFold(filepath.Ext(path), ".toml")
}

// DefaultConfig returns a configuration with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Port:           "8080",
			Host:           "0.0.0.0",
			AllowedOrigins: []string{"*"},
		},
		Upstream: UpstreamConfig{
			BaseURL:          "https://api.airplanes.live/v2",
			TimeoutSeconds:   10,
			RateLimitSeconds: 1.0,
			UserAgent:        "skywatch/1.0",
			CacheSeconds:     10,
		},
		Proxy: ProxyConfig{
			RequestsPerWindow: 60,
			WindowSeconds:     60,
			DefaultRadiusNM:   50,
			MaxRadiusNM:       250,
		},
		Client: ClientConfig{
			ProxyURL:       adsb.DefaultProxyURL,
			TimeoutSeconds: 10,
			MaxAttempts:    3,
			NetworkRetryMs: 1000,
		},
		Cache: CacheConfig{
			FreshForMs: 5000,
			MaxAgeMs:   30000,
		},
		RateLimit: RateLimitConfig{
			InitialBackoffMs: 1000,
			MaxBackoffMs:     300000,
			MaxJitterMs:      1000,
			ThrottleRatio:    0.1,
		},
		Polling: PollingConfig{
			BaseIntervalMs:    10000,
			MinIntervalMs:     5000,
			MaxIntervalMs:     30000,
			DenseTraffic:      10,
			RadiusNM:          50,
			InactivityMinutes: 5,
		},
		Observer: ObserverConfig{
			Name:      "Primary Observer",
			Latitude:  0.0,
			Longitude: 0.0,
		},
		Alerts: AlertsConfig{
			ProximityNM: 5,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "console",
		},
	}
}

// Validate checks ranges and cross-field constraints.
func (c *Config) Validate() error {
	port, err := strconv.Atoi(c.Server.Port)
	if err != nil || port <= 0 || port > 65535 {
		return fmt.Errorf("invalid server port: %q", c.Server.Port)
	}

	if err := validateURL("upstream base_url", c.Upstream.BaseURL); err != nil {
		return err
	}
	if err := validateURL("client proxy_url", c.Client.ProxyURL); err != nil {
		return err
	}
	if c.Upstream.TimeoutSeconds <= 0 || c.Client.TimeoutSeconds <= 0 {
		return fmt.Errorf("timeouts must be positive")
	}
	if c.Upstream.RateLimitSeconds < 0 {
		return fmt.Errorf("invalid upstream rate_limit_seconds: %v", c.Upstream.RateLimitSeconds)
	}
	if c.Upstream.CacheSeconds < 0 {
		return fmt.Errorf("invalid upstream cache_seconds: %d", c.Upstream.CacheSeconds)
	}

	if c.Proxy.RequestsPerWindow <= 0 || c.Proxy.WindowSeconds <= 0 {
		return fmt.Errorf("invalid proxy quota: %d per %ds", c.Proxy.RequestsPerWindow, c.Proxy.WindowSeconds)
	}
	if c.Proxy.DefaultRadiusNM <= 0 || c.Proxy.DefaultRadiusNM > c.Proxy.MaxRadiusNM {
		return fmt.Errorf("invalid proxy default_radius_nm: %d (max %d)", c.Proxy.DefaultRadiusNM, c.Proxy.MaxRadiusNM)
	}

	if c.Client.MaxAttempts <= 0 {
		return fmt.Errorf("invalid client max_attempts: %d", c.Client.MaxAttempts)
	}
	if c.Client.NetworkRetryMs <= 0 {
		return fmt.Errorf("invalid client network_retry_ms: %d", c.Client.NetworkRetryMs)
	}

	if c.Cache.FreshForMs <= 0 || c.Cache.FreshForMs >= c.Cache.MaxAgeMs {
		return fmt.Errorf("cache fresh_for_ms (%d) must be positive and below max_age_ms (%d)",
			c.Cache.FreshForMs, c.Cache.MaxAgeMs)
	}

	if c.RateLimit.InitialBackoffMs <= 0 || c.RateLimit.InitialBackoffMs > c.RateLimit.MaxBackoffMs {
		return fmt.Errorf("rate_limit initial_backoff_ms (%d) must be positive and at most max_backoff_ms (%d)",
			c.RateLimit.InitialBackoffMs, c.RateLimit.MaxBackoffMs)
	}
	if c.RateLimit.MaxJitterMs < 0 {
		return fmt.Errorf("invalid rate_limit max_jitter_ms: %d", c.RateLimit.MaxJitterMs)
	}
	if c.RateLimit.ThrottleRatio <= 0 || c.RateLimit.ThrottleRatio >= 1 {
		return fmt.Errorf("invalid rate_limit throttle_ratio: %v (must be between 0 and 1)", c.RateLimit.ThrottleRatio)
	}

	p := c.Polling
	if p.MinIntervalMs <= 0 || p.MinIntervalMs > p.BaseIntervalMs || p.BaseIntervalMs > p.MaxIntervalMs {
		return fmt.Errorf("polling intervals must satisfy 0 < min (%d) <= base (%d) <= max (%d)",
			p.MinIntervalMs, p.BaseIntervalMs, p.MaxIntervalMs)
	}
	if p.DenseTraffic <= 0 {
		return fmt.Errorf("invalid polling dense_traffic: %d", p.DenseTraffic)
	}
	if p.RadiusNM <= 0 || p.RadiusNM > c.Proxy.MaxRadiusNM {
		return fmt.Errorf("invalid polling radius_nm: %d (max %d)", p.RadiusNM, c.Proxy.MaxRadiusNM)
	}
	if p.InactivityMinutes <= 0 {
		return fmt.Errorf("invalid polling inactivity_minutes: %d", p.InactivityMinutes)
	}

	if c.Observer.Latitude < -90 || c.Observer.Latitude > 90 {
		return fmt.Errorf("invalid observer latitude: %v", c.Observer.Latitude)
	}
	if c.Observer.Longitude < -180 || c.Observer.Longitude > 180 {
		return fmt.Errorf("invalid observer longitude: %v", c.Observer.Longitude)
	}
	if c.Alerts.ProximityNM < 0 {
		return fmt.Errorf("invalid alerts proximity_nm: %v", c.Alerts.ProximityNM)
	}

	switch c.Logging.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("invalid logging level: %q", c.Logging.Level)
	}
	switch c.Logging.Format {
	case "console", "json":
	default:
		return fmt.Errorf("invalid logging format: %q", c.Logging.Format)
	}

	return nil
}

func validateURL(name, raw string) error {
	u, err := url.Parse(raw)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return fmt.Errorf("invalid %s: %q", name, raw)
	}
	return nil
}

func ms(v int) time.Duration {
	return time.Duration(v) * time.Millisecond
}

// CacheSettings converts the cache section for cache.New.
func (c *Config) CacheSettings() cache.Config {
	return cache.Config{
		FreshFor: ms(c.Cache.FreshForMs),
		MaxAge:   ms(c.Cache.MaxAgeMs),
	}
}

// RateLimitSettings converts the rate_limit section for ratelimit.NewLimiter.
func (c *Config) RateLimitSettings() ratelimit.Config {
	return ratelimit.Config{
		InitialBackoff: ms(c.RateLimit.InitialBackoffMs),
		MaxBackoff:     ms(c.RateLimit.MaxBackoffMs),
		MaxJitter:      ms(c.RateLimit.MaxJitterMs),
		ThrottleRatio:  c.RateLimit.ThrottleRatio,
	}
}

// RetrySettings converts the client section for adsb.WithRetryConfig.
func (c *Config) RetrySettings() adsb.RetryConfig {
	return adsb.RetryConfig{
		MaxAttempts:  c.Client.MaxAttempts,
		NetworkDelay: ms(c.Client.NetworkRetryMs),
		Multiplier:   2.0,
	}
}

// PollSettings converts the polling section for poll.NewScheduler.
func (c *Config) PollSettings() poll.Config {
	return poll.Config{
		BaseInterval: ms(c.Polling.BaseIntervalMs),
		MinInterval:  ms(c.Polling.MinIntervalMs),
		MaxInterval:  ms(c.Polling.MaxIntervalMs),
		DenseTraffic: c.Polling.DenseTraffic,
		Radius:       c.Polling.RadiusNM,
	}
}

// InactivityThreshold is the activity tracker's cutoff.
func (c *Config) InactivityThreshold() time.Duration {
	return time.Duration(c.Polling.InactivityMinutes) * time.Minute
}

// LoggerSettings converts the logging section for logger.New.
func (c *Config) LoggerSettings() logger.Config {
	return logger.Config{
		Level:  c.Logging.Level,
		Format: c.Logging.Format,
	}
}

// Addr returns the proxy listen address.
func (s ServerConfig) Addr() string {
	return s.Host + ":" + s.Port
}

// applyEnvironmentOverrides applies environment variable overrides to the config.
// Unparseable numeric values are ignored.
func (c *Config) applyEnvironmentOverrides() {
	if port := os.Getenv("SKYWATCH_PORT"); port != "" {
		c.Server.Port = port
	}
	if base := os.Getenv("SKYWATCH_UPSTREAM_URL"); base != "" {
		c.Upstream.BaseURL = base
	}
	if proxyURL := os.Getenv("SKYWATCH_PROXY_URL"); proxyURL != "" {
		c.Client.ProxyURL = proxyURL
	}
	if v, ok := envFloat("SKYWATCH_OBSERVER_LAT"); ok {
		c.Observer.Latitude = v
	}
	if v, ok := envFloat("SKYWATCH_OBSERVER_LON"); ok {
		c.Observer.Longitude = v
	}
	if v, ok := envFloat("SKYWATCH_RADIUS_NM"); ok {
		c.Polling.RadiusNM = int(v)
	}
	if level := os.Getenv("SKYWATCH_LOG_LEVEL"); level != "" {
		c.Logging.Level = strings.ToLower(level)
	}
	if format := os.Getenv("SKYWATCH_LOG_FORMAT"); format != "" {
		c.Logging.Format = strings.ToLower(format)
	}
}

func envFloat(key string) (float64, bool) {
	raw := os.Getenv(key)
	if raw == "" {
		return 0, false
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return 0, false
	}
	return v, true
}
