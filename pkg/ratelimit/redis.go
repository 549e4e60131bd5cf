package ratelimit

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

// RedisKeyLastRequest holds the unix-nano timestamp of the last request
// issued by any process sharing the gate.
const RedisKeyLastRequest = "ukhsa:rate_limit:last_request"

// RedisGate is a Gate whose last-request timestamp lives in Redis, so that a
// fleet of processes can share the dashboard's per-consumer request quota.
// Within one process a MemoryGate is sufficient; use RedisGate only when
// several processes hit the API under the same quota.
type RedisGate struct {
	redis    *redis.Client
	clock    Clock
	interval time.Duration
	logger   zerolog.Logger
}

// NewRedisGate creates a Redis-backed gate. An interval <= 0 falls back to
// DefaultMinInterval.
func NewRedisGate(redisClient *redis.Client, interval time.Duration, logger zerolog.Logger) *RedisGate {
	if interval <= 0 {
		interval = DefaultMinInterval
	}
	return &RedisGate{
		redis:    redisClient,
		clock:    SystemClock(),
		interval: interval,
		logger:   logger,
	}
}

// Wait reserves the next request slot in Redis and sleeps until it opens.
// The read-modify-write is not atomic across processes; under contention two
// processes may claim the same slot, which briefly exceeds the target rate
// but never runs away, matching the tolerance of the remote cap.
func (g *RedisGate) Wait(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	now := g.clock.Now()

	lastNano, err := g.redis.Get(ctx, RedisKeyLastRequest).Int64()
	if err != nil && err != redis.Nil {
		return fmt.Errorf("get last request timestamp: %w", err)
	}

	slot := now
	if err != redis.Nil {
		next := time.Unix(0, lastNano).Add(g.interval)
		if now.Before(next) {
			slot = next
		}
	}

	if err := g.redis.Set(ctx, RedisKeyLastRequest, slot.UnixNano(), 0).Err(); err != nil {
		return fmt.Errorf("store last request timestamp: %w", err)
	}

	if wait := slot.Sub(now); wait > 0 {
		rateLimitWaitsTotal.Inc()
		rateLimitWaitSeconds.Observe(wait.Seconds())

		g.logger.Debug().
			Dur("wait", wait).
			Msg("Waiting for shared rate limit slot")

		g.clock.Sleep(wait)
	}

	return ctx.Err()
}

// Interval returns the configured minimum inter-request interval.
func (g *RedisGate) Interval() time.Duration {
	return g.interval
}
