package ratelimit

import (
	"net/http"
	"strconv"
	"strings"
	"time"
)

// Header names emitted by the flights proxy.
const (
	HeaderLimit      = "X-RateLimit-Limit"
	HeaderRemaining  = "X-RateLimit-Remaining"
	HeaderReset      = "X-RateLimit-Reset"
	HeaderRetryAfter = "Retry-After"
)

// Snapshot is the quota information carried by one response.
type Snapshot struct {
	Limit     int
	Remaining int
	// Reset is unix seconds
	Reset int64
}

// ParseHeaders extracts quota information from response headers. Both the
// X-RateLimit-* and X-Rate-Limit-* spellings are accepted. Values that fail to
// parse default to zero. ok is false when the response carries no Remaining
// header at all, in which case nothing should be recorded.
func ParseHeaders(h http.Header) (snap Snapshot, ok bool) {
	remaining, found := lookup(h, "Remaining")
	if !found {
		return Snapshot{}, false
	}
	snap.Remaining = atoi(remaining)
	if v, found := lookup(h, "Limit"); found {
		snap.Limit = atoi(v)
	}
	if v, found := lookup(h, "Reset"); found {
		if n, err := strconv.ParseInt(strings.TrimSpace(v), 10, 64); err == nil {
			snap.Reset = n
		}
	}
	return snap, true
}

// UpdateFromHeaders records the quota carried by h, if any.
func (l *Limiter) UpdateFromHeaders(endpoint string, h http.Header) {
	snap, ok := ParseHeaders(h)
	if !ok {
		return
	}
	l.UpdateFromResponse(endpoint, snap.Remaining, snap.Reset, snap.Limit)
}

// ParseRetryAfter reads the Retry-After header as delay-seconds or an
// HTTP-date. It returns 0 when the header is absent or already in the past.
func ParseRetryAfter(h http.Header, now time.Time) time.Duration {
	v := strings.TrimSpace(h.Get(HeaderRetryAfter))
	if v == "" {
		return 0
	}
	if seconds, err := strconv.Atoi(v); err == nil {
		if seconds > 0 {
			return time.Duration(seconds) * time.Second
		}
		return 0
	}
	if at, err := http.ParseTime(v); err == nil {
		if d := at.Sub(now); d > 0 {
			return d
		}
	}
	return 0
}

func lookup(h http.Header, suffix string) (string, bool) {
	for _, prefix := range []string{"X-RateLimit-", "X-Rate-Limit-"} {
		if vals := h.Values(prefix + suffix); len(vals) > 0 {
			return vals[0], true
		}
	}
	return "", false
}

func atoi(s string) int {
	n, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil {
		return 0
	}
	return n
}
