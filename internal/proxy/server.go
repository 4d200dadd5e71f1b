// Package proxy implements the flights endpoint that sits between dashboards
// and the upstream aircraft-position provider. It rate-limits each caller,
// advertises the caller's quota in X-RateLimit-* headers and forwards point
// queries upstream.
package proxy

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/skywatch-alerts/skywatch/pkg/adsb"
	"github.com/skywatch-alerts/skywatch/pkg/cache"
	"github.com/skywatch-alerts/skywatch/pkg/logger"
	"github.com/skywatch-alerts/skywatch/pkg/ratelimit"
)

// Options configures the proxy Server.
type Options struct {
	// RequestsPerWindow is each client's quota (default: 60)
	RequestsPerWindow int

	// Window is the quota window (default: 1 minute)
	Window time.Duration

	// DefaultRadius is used when a request omits radius (default: 50)
	DefaultRadius int

	// MaxRadius caps the requested radius (default: 250)
	MaxRadius int

	// AllowedOrigins for CORS (default: all)
	AllowedOrigins []string

	// AccessLog enables chi's request logger
	AccessLog bool

	Clock  clock.Clock
	Logger *logger.Logger
}

func (o Options) withDefaults() Options {
	if o.RequestsPerWindow <= 0 {
		o.RequestsPerWindow = 60
	}
	if o.Window <= 0 {
		o.Window = time.Minute
	}
	if o.DefaultRadius <= 0 {
		o.DefaultRadius = 50
	}
	if o.MaxRadius <= 0 {
		o.MaxRadius = 250
	}
	if len(o.AllowedOrigins) == 0 {
		o.AllowedOrigins = []string{"*"}
	}
	if o.Clock == nil {
		o.Clock = clock.New()
	}
	if o.Logger == nil {
		o.Logger = logger.NewNop()
	}
	return o
}

// Server is the flights proxy.
type Server struct {
	router   *chi.Mux
	upstream *Upstream
	limits   *clientLimits
	opts     Options
	logger   *logger.Logger
}

// New creates a Server that forwards to upstream.
func New(upstream *Upstream, opts Options) *Server {
	opts = opts.withDefaults()
	s := &Server{
		router:   chi.NewRouter(),
		upstream: upstream,
		limits:   newClientLimits(opts.RequestsPerWindow, opts.Window, opts.Clock),
		opts:     opts,
		logger:   opts.Logger.Named("proxy"),
	}
	s.setupRoutes()
	return s
}

// Handler returns the HTTP handler.
func (s *Server) Handler() http.Handler {
	return s.router
}

// setupRoutes configures all HTTP routes
func (s *Server) setupRoutes() {
	r := s.router

	// Middleware
	if s.opts.AccessLog {
		r.Use(middleware.Logger)
	}
	r.Use(middleware.Recoverer)
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Compress(5))

	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: s.opts.AllowedOrigins,
		AllowedMethods: []string{"GET", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Content-Type"},
		ExposedHeaders: []string{
			ratelimit.HeaderLimit,
			ratelimit.HeaderRemaining,
			ratelimit.HeaderReset,
			ratelimit.HeaderRetryAfter,
		},
		MaxAge: 300,
	}))

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})

	r.Route("/api", func(r chi.Router) {
		r.Get("/flights", s.handleFlights)
	})
}

// handleFlights serves GET /api/flights?lat=&lon=&radius=
func (s *Server) handleFlights(w http.ResponseWriter, r *http.Request) {
	q, err := s.parseQuery(r)
	if err != nil {
		respondError(w, http.StatusBadRequest, adsb.KindAPI, err.Error(), 0)
		return
	}

	key := clientKey(r)
	quota := s.limits.take(key)
	setQuotaHeaders(w, quota)

	if !quota.allowed {
		retryAfter := int(math.Ceil(quota.retryAfter.Seconds()))
		retryAfter = max(retryAfter, 1)
		s.logger.Warn("Client over quota",
			logger.String("client", key),
			logger.Int("retry_after", retryAfter))
		w.Header().Set(ratelimit.HeaderRetryAfter, strconv.Itoa(retryAfter))
		respondError(w, http.StatusTooManyRequests, adsb.KindRateLimit, "Rate limit exceeded", retryAfter)
		return
	}

	body, err := s.upstream.Point(r.Context(), q)
	if err != nil {
		var statusErr *StatusError
		switch {
		case errors.As(err, &statusErr), errors.Is(err, ErrMalformedResponse):
			s.logger.Error("Upstream API error",
				logger.String("key", q.Key()),
				logger.Error(err))
			respondError(w, http.StatusInternalServerError, adsb.KindAPI, err.Error(), 0)
		default:
			s.logger.Error("Upstream unreachable",
				logger.String("key", q.Key()),
				logger.Error(err))
			respondError(w, http.StatusBadGateway, adsb.KindNetwork, err.Error(), 0)
		}
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	w.Write(body)
}

func (s *Server) parseQuery(r *http.Request) (cache.Query, error) {
	params := r.URL.Query()
	latStr, lonStr := params.Get("lat"), params.Get("lon")
	if latStr == "" || lonStr == "" {
		return cache.Query{}, errors.New("Missing lat/lon parameters")
	}

	lat, err := strconv.ParseFloat(latStr, 64)
	if err != nil || lat < -90 || lat > 90 {
		return cache.Query{}, fmt.Errorf("Invalid latitude: %q", latStr)
	}
	lon, err := strconv.ParseFloat(lonStr, 64)
	if err != nil || lon < -180 || lon > 180 {
		return cache.Query{}, fmt.Errorf("Invalid longitude: %q", lonStr)
	}

	radius := s.opts.DefaultRadius
	if raw := params.Get("radius"); raw != "" {
		radius, err = strconv.Atoi(raw)
		if err != nil || radius <= 0 {
			return cache.Query{}, fmt.Errorf("Invalid radius: %q", raw)
		}
	}
	radius = min(radius, s.opts.MaxRadius)

	return cache.Query{Latitude: lat, Longitude: lon, Radius: radius}, nil
}

// clientKey identifies the caller. RealIP has already replaced RemoteAddr
// with the forwarded address when one was present.
func clientKey(r *http.Request) string {
	if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil {
		return host
	}
	if r.RemoteAddr == "" {
		return "unknown"
	}
	return r.RemoteAddr
}

func setQuotaHeaders(w http.ResponseWriter, q quota) {
	h := w.Header()
	h.Set(ratelimit.HeaderLimit, strconv.Itoa(q.limit))
	h.Set(ratelimit.HeaderRemaining, strconv.Itoa(q.remaining))
	h.Set(ratelimit.HeaderReset, strconv.FormatInt(int64(math.Ceil(float64(q.reset.UnixMilli())/1000)), 10))
}

type errorPayload struct {
	Code       adsb.ErrorKind `json:"code"`
	Message    string         `json:"message"`
	RetryAfter int            `json:"retryAfter,omitempty"`
}

// respondError writes {"error": {"code", "message", "retryAfter"}}.
func respondError(w http.ResponseWriter, status int, kind adsb.ErrorKind, message string, retryAfter int) {
	respondJSON(w, status, map[string]any{
		"error": errorPayload{Code: kind, Message: message, RetryAfter: retryAfter},
	})
}

// respondJSON writes a JSON response
func respondJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}
