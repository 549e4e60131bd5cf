//go:build integration

package ratelimit

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
)

// setupRedis starts a Redis container and returns a client
func setupRedis(t *testing.T) (*redis.Client, func()) {
	ctx := context.Background()

	req := testcontainers.ContainerRequest{
		Image:        "redis:7-alpine",
		ExposedPorts: []string{"6379/tcp"},
		WaitingFor:   wait.ForLog("Ready to accept connections"),
	}

	redisContainer, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	if err != nil {
		t.Fatalf("Failed to start Redis container: %v", err)
	}

	endpoint, err := redisContainer.Endpoint(ctx, "")
	if err != nil {
		t.Fatalf("Failed to get Redis endpoint: %v", err)
	}

	client := redis.NewClient(&redis.Options{
		Addr: endpoint,
	})

	if err := client.Ping(ctx).Err(); err != nil {
		t.Fatalf("Failed to connect to Redis: %v", err)
	}

	cleanup := func() {
		client.Close()
		redisContainer.Terminate(ctx)
	}

	return client, cleanup
}

func TestRedisGate_Integration_FirstRequestDoesNotWait(t *testing.T) {
	redisClient, cleanup := setupRedis(t)
	defer cleanup()

	gate := NewRedisGate(redisClient, 200*time.Millisecond, zerolog.Nop())

	start := time.Now()
	if err := gate.Wait(context.Background()); err != nil {
		t.Fatalf("Wait() error = %v", err)
	}

	if elapsed := time.Since(start); elapsed > 100*time.Millisecond {
		t.Errorf("First Wait() took %v, want no pacing delay", elapsed)
	}
}

func TestRedisGate_Integration_PacesBackToBackRequests(t *testing.T) {
	redisClient, cleanup := setupRedis(t)
	defer cleanup()

	interval := 150 * time.Millisecond
	gate := NewRedisGate(redisClient, interval, zerolog.Nop())
	ctx := context.Background()

	start := time.Now()
	for i := 0; i < 3; i++ {
		if err := gate.Wait(ctx); err != nil {
			t.Fatalf("Wait() #%d error = %v", i, err)
		}
	}

	elapsed := time.Since(start)
	if min := 2 * interval; elapsed < min {
		t.Errorf("Three back-to-back requests took %v, want >= %v", elapsed, min)
	}
}

func TestRedisGate_Integration_SharedAcrossGateInstances(t *testing.T) {
	// Two gate instances over the same Redis stand in for two processes
	// sharing the remote quota.
	redisClient, cleanup := setupRedis(t)
	defer cleanup()

	interval := 150 * time.Millisecond
	gateA := NewRedisGate(redisClient, interval, zerolog.Nop())
	gateB := NewRedisGate(redisClient, interval, zerolog.Nop())
	ctx := context.Background()

	start := time.Now()
	if err := gateA.Wait(ctx); err != nil {
		t.Fatalf("gateA.Wait() error = %v", err)
	}
	if err := gateB.Wait(ctx); err != nil {
		t.Fatalf("gateB.Wait() error = %v", err)
	}

	elapsed := time.Since(start)
	if elapsed < interval {
		t.Errorf("Requests through two gates took %v, want >= %v", elapsed, interval)
	}
}

func TestRedisGate_Integration_ConcurrentWaiters(t *testing.T) {
	redisClient, cleanup := setupRedis(t)
	defer cleanup()

	interval := 50 * time.Millisecond
	gate := NewRedisGate(redisClient, interval, zerolog.Nop())
	ctx := context.Background()

	const callers = 4
	start := time.Now()

	var wg sync.WaitGroup
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := gate.Wait(ctx); err != nil {
				t.Errorf("Wait() error = %v", err)
			}
		}()
	}
	wg.Wait()

	// The read-modify-write is not atomic, so allow one lost slot.
	elapsed := time.Since(start)
	if min := time.Duration(callers-2) * interval; elapsed < min {
		t.Errorf("%d concurrent waiters finished in %v, want >= %v", callers, elapsed, min)
	}
}
