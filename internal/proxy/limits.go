package proxy

import (
	"math"
	"sync"
	"time"

	"github.com/benbjohnson/clock"
	"golang.org/x/time/rate"
)

// quota is the outcome of charging one request to a client.
type quota struct {
	allowed   bool
	limit     int
	remaining int

	// reset is when the bucket is full again, or when the next request is
	// allowed if it is empty
	reset time.Time

	// retryAfter is the wait until one request is allowed; zero when allowed
	retryAfter time.Duration
}

type client struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// clientLimits keeps one token bucket per client key. A bucket holds
// perWindow tokens and refills fully over one window; buckets idle for a
// whole window are dropped since they would be full anyway.
type clientLimits struct {
	mu      sync.Mutex
	clients map[string]*client

	perWindow int
	window    time.Duration
	rate      rate.Limit
	clock     clock.Clock

	lastSweep time.Time
}

func newClientLimits(perWindow int, window time.Duration, clk clock.Clock) *clientLimits {
	return &clientLimits{
		clients:   make(map[string]*client),
		perWindow: perWindow,
		window:    window,
		rate:      rate.Limit(float64(perWindow) / window.Seconds()),
		clock:     clk,
		lastSweep: clk.Now(),
	}
}

// take charges one request to key.
func (l *clientLimits) take(key string) quota {
	now := l.clock.Now()

	l.mu.Lock()
	defer l.mu.Unlock()

	l.sweepLocked(now)

	c, ok := l.clients[key]
	if !ok {
		c = &client{limiter: rate.NewLimiter(l.rate, l.perWindow)}
		l.clients[key] = c
	}
	c.lastSeen = now

	q := quota{limit: l.perWindow}
	q.allowed = c.limiter.AllowN(now, 1)

	tokens := c.limiter.TokensAt(now)
	q.remaining = max(int(math.Floor(tokens)), 0)
	if q.remaining == 0 {
		// Clients wait until reset on an empty quota, so point it at the next token.
		q.reset = now.Add(l.refill(1 - tokens))
	} else {
		q.reset = now.Add(l.refill(float64(l.perWindow) - tokens))
	}
	if !q.allowed {
		q.retryAfter = l.refill(1 - tokens)
	}
	return q
}

// refill is the time needed to regain n tokens.
func (l *clientLimits) refill(n float64) time.Duration {
	if n <= 0 {
		return 0
	}
	return time.Duration(n / float64(l.rate) * float64(time.Second))
}

func (l *clientLimits) sweepLocked(now time.Time) {
	if now.Sub(l.lastSweep) < l.window {
		return
	}
	for key, c := range l.clients {
		if now.Sub(c.lastSeen) >= l.window {
			delete(l.clients, key)
		}
	}
	l.lastSweep = now
}

func (l *clientLimits) len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.clients)
}
