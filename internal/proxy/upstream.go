package proxy

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/dustin/go-humanize"
	"golang.org/x/time/rate"

	"github.com/skywatch-alerts/skywatch/pkg/cache"
	"github.com/skywatch-alerts/skywatch/pkg/logger"
)

// ErrMalformedResponse is returned when the upstream body is not JSON.
var ErrMalformedResponse = errors.New("malformed upstream response")

// StatusError is a non-2xx upstream response.
type StatusError struct {
	StatusCode int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("API Error: %d", e.StatusCode)
}

// UpstreamConfig configures the aircraft-position provider client.
type UpstreamConfig struct {
	// BaseURL is the API base (e.g., "https://api.airplanes.live/v2")
	BaseURL string

	// Timeout bounds one request (default: 10 seconds)
	Timeout time.Duration

	// MinInterval is the minimum spacing between calls; 0 disables pacing
	MinInterval time.Duration

	UserAgent string

	// CacheFor reuses a successful body for identical queries; 0 disables
	CacheFor time.Duration
}

// Upstream fetches raw point queries from the provider.
type Upstream struct {
	baseURL    string
	userAgent  string
	httpClient *http.Client
	pacer      *rate.Limiter
	bodies     *cache.ResultCache[byte]
	logger     *logger.Logger
}

// NewUpstream creates an upstream client. A nil clock uses the system clock.
func NewUpstream(cfg UpstreamConfig, clk clock.Clock, log *logger.Logger) *Upstream {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	if log == nil {
		log = logger.NewNop()
	}

	pacing := rate.Inf
	if cfg.MinInterval > 0 {
		pacing = rate.Every(cfg.MinInterval)
	}

	u := &Upstream{
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		userAgent:  cfg.UserAgent,
		httpClient: &http.Client{Timeout: cfg.Timeout},
		pacer:      rate.NewLimiter(pacing, 1),
		logger:     log.Named("upstream"),
	}
	if cfg.CacheFor > 0 {
		u.bodies = cache.New[byte](cache.Config{FreshFor: cfg.CacheFor, MaxAge: cfg.CacheFor}, clk)
	}
	return u
}

// Point returns the provider's JSON body for aircraft within q.Radius
// nautical miles of (q.Latitude, q.Longitude).
func (u *Upstream) Point(ctx context.Context, q cache.Query) ([]byte, error) {
	if u.bodies != nil {
		if body, ok := u.bodies.Get(q); ok {
			return body, nil
		}
	}

	if err := u.pacer.Wait(ctx); err != nil {
		return nil, fmt.Errorf("rate limiter wait: %w", err)
	}

	url := fmt.Sprintf("%s/point/%s/%s/%d", u.baseURL,
		strconv.FormatFloat(q.Latitude, 'f', -1, 64),
		strconv.FormatFloat(q.Longitude, 'f', -1, 64),
		q.Radius)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if u.userAgent != "" {
		req.Header.Set("User-Agent", u.userAgent)
	}

	resp, err := u.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("http request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, &StatusError{StatusCode: resp.StatusCode}
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}
	if !json.Valid(body) {
		return nil, ErrMalformedResponse
	}

	u.logger.Debug("Upstream response",
		logger.String("key", q.Key()),
		logger.String("size", humanize.Bytes(uint64(len(body)))))

	if u.bodies != nil {
		u.bodies.Prune()
		u.bodies.Set(q, body)
	}
	return body, nil
}
