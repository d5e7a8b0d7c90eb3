package cache

import (
	"context"
	"errors"
	"time"

	"librarian/pkg/circuitbreaker"
	"librarian/pkg/logger"
)

// GuardedCache skips reads and writes while the breaker is open so requests
// do not wait on an unreachable Redis. Deletes always go through: a skipped
// invalidation would leave stale stock figures behind.
type GuardedCache struct {
	next    Cache
	breaker *circuitbreaker.CircuitBreaker
}

func NewGuardedCache(next Cache, breaker *circuitbreaker.CircuitBreaker) Cache {
	return &GuardedCache{next: next, breaker: breaker}
}

// NewCacheBreaker builds the breaker used in front of Redis.
func NewCacheBreaker(log logger.Logger) *circuitbreaker.CircuitBreaker {
	return circuitbreaker.New(circuitbreaker.Settings{
		Name:             "redis",
		FailureThreshold: 5,
		Timeout:          30 * time.Second,
		OnStateChange: func(name string, from, to circuitbreaker.State) {
			log.Warn("Circuit breaker state changed", map[string]interface{}{
				"name": name,
				"from": from.String(),
				"to":   to.String(),
			})
		},
	})
}

func isCacheFailure(err error) bool {
	return !errors.Is(err, ErrCacheMiss)
}

func (g *GuardedCache) Set(ctx context.Context, key string, value interface{}, expiration time.Duration) error {
	return g.breaker.Execute(func() error {
		return g.next.Set(ctx, key, value, expiration)
	}, isCacheFailure)
}

func (g *GuardedCache) Get(ctx context.Context, key string, dest interface{}) error {
	return g.breaker.Execute(func() error {
		return g.next.Get(ctx, key, dest)
	}, isCacheFailure)
}

func (g *GuardedCache) Delete(ctx context.Context, key string) error {
	return g.next.Delete(ctx, key)
}

func (g *GuardedCache) DeletePattern(ctx context.Context, pattern string) error {
	return g.next.DeletePattern(ctx, pattern)
}

func (g *GuardedCache) Ping(ctx context.Context) error {
	return g.next.Ping(ctx)
}
