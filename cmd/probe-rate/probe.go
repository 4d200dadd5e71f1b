package main

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/skywatch-alerts/skywatch/pkg/adsb"
	"github.com/skywatch-alerts/skywatch/pkg/cache"
	"github.com/skywatch-alerts/skywatch/pkg/logger"
	"github.com/skywatch-alerts/skywatch/pkg/ratelimit"
)

// bracket narrows the gap between the fastest delay that failed and the
// slowest delay known to be safe.
type bracket struct {
	min, max  time.Duration
	current   time.Duration
	safe      time.Duration
	failed    time.Duration
	tolerance time.Duration

	// confirmed is set once some delay has passed a probe
	confirmed bool
}

func newBracket(lo, hi, tolerance time.Duration) *bracket {
	return &bracket{
		min:       lo,
		max:       hi,
		current:   hi,
		safe:      hi,
		failed:    lo,
		tolerance: tolerance,
	}
}

// record moves the bracket after testing the current delay. It returns false
// once the bracket is narrow enough or can move no further.
func (b *bracket) record(ok bool) bool {
	if !ok && b.current >= b.safe {
		// Even the slowest delay failed; start over from the top.
		b.current = b.max
		b.safe = b.max
		b.failed = b.min
		b.confirmed = false
		return true
	}

	if ok {
		b.safe = b.current
		b.confirmed = true
		if b.current <= b.failed {
			return false
		}
		b.current = (b.current + b.failed) / 2
	} else {
		b.failed = b.current
		b.current = (b.current + b.safe) / 2
	}
	return b.safe-b.failed >= b.tolerance
}

type prober struct {
	transport adsb.Transport
	query     cache.Query
	sleep     ratelimit.SleepFunc
	logger    *logger.Logger
}

// probe issues calls requests spaced by delay and reports whether all of them
// stayed inside the quota. The last quota seen is returned for display.
func (p *prober) probe(ctx context.Context, delay time.Duration, calls int) (bool, ratelimit.Snapshot, error) {
	var last ratelimit.Snapshot
	for i := 0; i < calls; i++ {
		if i > 0 {
			if err := p.sleep(ctx, delay); err != nil {
				return false, last, err
			}
		}

		resp, err := p.transport.Do(ctx, p.query)
		if err != nil {
			return false, last, err
		}
		if snap, ok := ratelimit.ParseHeaders(resp.Header); ok {
			last = snap
		}

		switch {
		case resp.StatusCode == http.StatusTooManyRequests:
			p.logger.Info("Rate limited",
				logger.Int("call", i+1),
				logger.Duration("retry_after", ratelimit.ParseRetryAfter(resp.Header, time.Now())))
			return false, last, nil
		case !resp.OK():
			return false, last, fmt.Errorf("proxy returned HTTP %d", resp.StatusCode)
		}

		p.logger.Info("Call succeeded",
			logger.Int("call", i+1),
			logger.Int("remaining", last.Remaining),
			logger.Int("limit", last.Limit))
	}
	return true, last, nil
}
