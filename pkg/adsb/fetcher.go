package adsb

import (
	"context"

	"github.com/benbjohnson/clock"

	"github.com/skywatch-alerts/skywatch/pkg/cache"
	"github.com/skywatch-alerts/skywatch/pkg/logger"
	"github.com/skywatch-alerts/skywatch/pkg/ratelimit"
)

// FetcherOption customizes a Fetcher.
type FetcherOption func(*Fetcher)

// WithRetryConfig sets the attempt budget and network waits.
func WithRetryConfig(cfg RetryConfig) FetcherOption {
	return func(f *Fetcher) { f.retry = cfg.withDefaults() }
}

// WithSleep replaces the wait used between network retries.
func WithSleep(sleep ratelimit.SleepFunc) FetcherOption {
	return func(f *Fetcher) { f.sleep = sleep }
}

// WithClock sets the time source used for Retry-After dates.
func WithClock(clk clock.Clock) FetcherOption {
	return func(f *Fetcher) { f.clock = clk }
}

// WithLogger sets the logger.
func WithLogger(log *logger.Logger) FetcherOption {
	return func(f *Fetcher) { f.logger = log.Named("fetcher") }
}

// Fetcher turns (location, radius) queries into aircraft lists. The cache and
// limiter are meant to be shared with every other Fetcher in the process.
type Fetcher struct {
	transport Transport
	cache     *cache.ResultCache[Aircraft]
	limiter   *ratelimit.Limiter

	retry  RetryConfig
	sleep  ratelimit.SleepFunc
	clock  clock.Clock
	logger *logger.Logger
}

// NewFetcher wires a Fetcher to its transport and shared state.
func NewFetcher(t Transport, c *cache.ResultCache[Aircraft], l *ratelimit.Limiter, opts ...FetcherOption) *Fetcher {
	f := &Fetcher{
		transport: t,
		cache:     c,
		limiter:   l,
		retry:     DefaultRetryConfig(),
		clock:     clock.New(),
		logger:    logger.NewNop(),
	}
	for _, opt := range opts {
		opt(f)
	}
	if f.sleep == nil {
		f.sleep = ratelimit.ClockSleep(f.clock)
	}
	return f
}

// RateLimitWarning reports whether the proxy's remaining quota is low.
func (f *Fetcher) RateLimitWarning() bool {
	return f.limiter.ShouldThrottle(f.transport.Endpoint())
}

// FetchNearby returns aircraft within radiusNM of (lat, lon).
//
// Unless forceRefresh is set, a fresh cache entry is returned without any
// network call. Rate-limit and network failures are retried within the
// attempt budget; any other failure is returned at once. Errors are *Error
// values except for context cancellation, which is returned as is.
func (f *Fetcher) FetchNearby(ctx context.Context, lat, lon float64, radiusNM int, forceRefresh bool) ([]Aircraft, error) {
	q := cache.Query{Latitude: lat, Longitude: lon, Radius: radiusNM}
	endpoint := f.transport.Endpoint()

	if !forceRefresh {
		if records, ok := f.cache.Get(q); ok && f.cache.IsFresh(q) {
			f.logger.Debug("Serving fresh cache entry",
				logger.String("key", q.Key()),
				logger.Int("aircraft", len(records)))
			return records, nil
		}
	}

	if f.limiter.ShouldThrottle(endpoint) {
		f.logger.Warn("Quota running low, throttling before request",
			logger.String("endpoint", endpoint))
		if err := f.limiter.BackoffAndWait(ctx, endpoint); err != nil {
			return nil, err
		}
	}

	var lastErr *Error
	for attempt := 0; attempt < f.retry.MaxAttempts; attempt++ {
		records, fe := f.attempt(ctx, q, endpoint)
		if fe == nil {
			f.limiter.ResetBackoff(endpoint)
			f.cache.Set(q, records)
			return records, nil
		}
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		lastErr = fe
		remaining := f.retry.MaxAttempts - attempt - 1

		switch fe.Kind {
		case KindRateLimit:
			f.logger.Warn("Rate limited by proxy",
				logger.Int("attempt", attempt+1),
				logger.Duration("retry_after", fe.RetryAfter),
				logger.Int("attempts_left", remaining))
			if err := f.limiter.BackoffAndWait(ctx, endpoint); err != nil {
				return nil, err
			}
		case KindNetwork:
			f.logger.Warn("Network failure fetching aircraft",
				logger.Int("attempt", attempt+1),
				logger.String("reason", fe.Message),
				logger.Int("attempts_left", remaining))
			if remaining > 0 {
				if err := f.sleep(ctx, f.retry.networkDelay(attempt)); err != nil {
					return nil, err
				}
			}
		default:
			return nil, fe
		}
	}

	exhausted := *lastErr
	exhausted.Attempts = f.retry.MaxAttempts
	exhausted.cause = lastErr
	return nil, &exhausted
}

// attempt performs one request and interprets the response.
func (f *Fetcher) attempt(ctx context.Context, q cache.Query, endpoint string) ([]Aircraft, *Error) {
	resp, err := f.transport.Do(ctx, q)
	if err != nil {
		return nil, &Error{
			Kind:    KindNetwork,
			Message: err.Error(),
			cause:   err,
		}
	}

	f.limiter.UpdateFromHeaders(endpoint, resp.Header)

	if !resp.OK() {
		return nil, classifyResponse(resp.StatusCode, resp.Body, ratelimit.ParseRetryAfter(resp.Header, f.clock.Now()))
	}

	records, err := decodeAircraft(resp.Body)
	if err != nil {
		return nil, &Error{
			Kind:       KindAPI,
			Message:    err.Error(),
			StatusCode: resp.StatusCode,
			cause:      err,
		}
	}
	return records, nil
}

// Compile-time interface check
var _ NearbyFetcher = (*Fetcher)(nil)
