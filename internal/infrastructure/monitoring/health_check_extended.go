package monitoring

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// Pinger is any backend that can report its own health.
type Pinger interface {
	HealthCheck(ctx context.Context) error
}

func pingCheck(ping func(ctx context.Context) error) func(ctx context.Context) (bool, error) {
	return func(ctx context.Context) (bool, error) {
		if err := ping(ctx); err != nil {
			return false, err
		}
		return true, nil
	}
}

// AddRedisCheck marks the service unhealthy while the activity bus or the
// migration lock cannot reach Redis.
func (h *HealthChecker) AddRedisCheck(client redis.UniversalClient, interval, timeout time.Duration) {
	h.AddCheck("redis", pingCheck(func(ctx context.Context) error {
		return client.Ping(ctx).Err()
	}), interval, timeout)
}

// AddStorageCheck checks the entity and edge stores.
func (h *HealthChecker) AddStorageCheck(storage Pinger, interval, timeout time.Duration) {
	h.AddCheck("storage", pingCheck(storage.HealthCheck), interval, timeout)
}

// AddBreakerCheck reports an open circuit breaker as a degradation: reads and
// toggles keep working while uploads fail fast.
func (h *HealthChecker) AddBreakerCheck(name string, state func() string) {
	h.AddOptionalCheck(name, pingCheck(func(context.Context) error {
		if s := state(); s == "open" {
			return fmt.Errorf("circuit breaker %s", s)
		}
		return nil
	}), 0, 0)
}

// IsReady is false only when a required check fails.
func (h *HealthChecker) IsReady(ctx context.Context) bool {
	return h.CheckAll(ctx).Status != StatusUnhealthy
}
