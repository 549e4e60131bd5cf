// Package ratelimit enforces the UKHSA dashboard request rate shared by all
// client instances. The dashboard imposes a server-side cap of roughly three
// requests per second per consumer; a single gate guards the timestamp of the
// last request issued anywhere in the process and makes callers sleep off the
// remainder of the minimum inter-request interval before proceeding.
package ratelimit

import (
	"context"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog"
)

// Prometheus metrics for request gating.
var (
	rateLimitWaitsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "ukhsa_rate_limit_waits_total",
		Help: "Total number of requests that had to wait for a rate limit slot",
	})

	rateLimitWaitSeconds = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "ukhsa_rate_limit_wait_seconds",
		Help:    "Time spent waiting for a rate limit slot",
		Buckets: []float64{0.05, 0.1, 0.2, 0.35, 0.5, 1, 2},
	})
)

// DefaultMinInterval is the minimum spacing between requests to the dashboard
// API, matching its documented 3 requests/second cap.
const DefaultMinInterval = time.Second / 3

// Gate grants request slots. Implementations block the caller until enough
// time has passed since the last request issued through the same gate.
type Gate interface {
	// Wait blocks until a request may be issued or the context is done.
	Wait(ctx context.Context) error
}

// Clock abstracts time for deterministic tests.
type Clock interface {
	Now() time.Time
	Sleep(d time.Duration)
}

type systemClock struct{}

func (systemClock) Now() time.Time        { return time.Now() }
func (systemClock) Sleep(d time.Duration) { time.Sleep(d) }

// SystemClock returns a Clock backed by the real time package.
func SystemClock() Clock { return systemClock{} }

// MemoryGate is an in-process Gate. One instance must be shared by every
// client talking to the same API; the zero value is not usable.
type MemoryGate struct {
	clock    Clock
	interval time.Duration
	logger   zerolog.Logger

	mu   sync.Mutex
	last time.Time
}

// NewMemoryGate creates a gate with the given minimum inter-request interval.
// An interval <= 0 disables pacing, which is useful in tests.
func NewMemoryGate(interval time.Duration, logger zerolog.Logger) *MemoryGate {
	return NewMemoryGateWithClock(interval, SystemClock(), logger)
}

// NewMemoryGateWithClock creates a gate using a caller-supplied clock.
func NewMemoryGateWithClock(interval time.Duration, clock Clock, logger zerolog.Logger) *MemoryGate {
	return &MemoryGate{
		clock:    clock,
		interval: interval,
		logger:   logger,
	}
}

// Wait reserves the next request slot and sleeps until it opens. Concurrent
// callers are serialized: each reservation moves the shared last-request
// timestamp forward by one interval, so N callers arriving at once depart
// spaced one interval apart.
func (g *MemoryGate) Wait(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	var wait time.Duration

	g.mu.Lock()
	now := g.clock.Now()
	if g.interval > 0 && !g.last.IsZero() {
		next := g.last.Add(g.interval)
		if now.Before(next) {
			wait = next.Sub(now)
			g.last = next
		} else {
			g.last = now
		}
	} else {
		g.last = now
	}
	g.mu.Unlock()

	if wait > 0 {
		rateLimitWaitsTotal.Inc()
		rateLimitWaitSeconds.Observe(wait.Seconds())

		g.logger.Debug().
			Dur("wait", wait).
			Msg("Waiting for rate limit slot")

		g.clock.Sleep(wait)
	}

	return ctx.Err()
}

// Interval returns the configured minimum inter-request interval.
func (g *MemoryGate) Interval() time.Duration {
	return g.interval
}
