package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"librarian/pkg/logger"
	"librarian/pkg/metrics"
)

// Cache key constants
const (
	BookByIDKey       = "books:id:%d"
	BookListKey       = "books:list:%s"
	BookPrefixPattern = "books:*"
)

// Cache expiration times
const (
	ShortExpiration  = 5 * time.Minute
	MediumExpiration = 30 * time.Minute
)

func BookCacheKey(id int64) string {
	return fmt.Sprintf(BookByIDKey, id)
}

func BookListCacheKey(title string) string {
	return fmt.Sprintf(BookListKey, title)
}

// CacheStrategy is the caching pattern used by the cached services.
type CacheStrategy interface {
	// ReadThrough serves dest from the cache and falls back to fetchFunc on a
	// miss, storing its result.
	ReadThrough(ctx context.Context, key string, dest interface{}, fetchFunc func() (interface{}, error), expiration time.Duration) error
	Invalidate(ctx context.Context, pattern string)
}

type CacheManager struct {
	cache  Cache
	logger logger.Logger
}

func NewCacheManager(cache Cache, logger logger.Logger) CacheStrategy {
	return &CacheManager{
		cache:  cache,
		logger: logger,
	}
}

func (cm *CacheManager) ReadThrough(ctx context.Context, key string, dest interface{}, fetchFunc func() (interface{}, error), expiration time.Duration) error {
	err := cm.cache.Get(ctx, key, dest)
	if err == nil {
		metrics.RecordCacheHit()
		return nil
	}

	metrics.RecordCacheMiss()
	if !errors.Is(err, ErrCacheMiss) {
		// Serve from the source even when the cache is down.
		cm.logger.WarnContext(ctx, "Cache read failed", map[string]interface{}{"key": key, "error": err.Error()})
	}

	data, err := fetchFunc()
	if err != nil {
		return err
	}

	if err := cm.cache.Set(ctx, key, data, expiration); err != nil {
		cm.logger.WarnContext(ctx, "Cache write failed", map[string]interface{}{"key": key, "error": err.Error()})
	}

	return copyData(data, dest)
}

// Invalidate drops every key matching pattern. Failures are logged only: a
// stale entry expires on its own.
func (cm *CacheManager) Invalidate(ctx context.Context, pattern string) {
	if err := cm.cache.DeletePattern(ctx, pattern); err != nil {
		cm.logger.WarnContext(ctx, "Cache invalidation failed", map[string]interface{}{"pattern": pattern, "error": err.Error()})
	}
}

// copyData moves a fetched value into dest through its JSON form, the same
// form the cache stores.
func copyData(src, dest interface{}) error {
	data, err := json.Marshal(src)
	if err != nil {
		return err
	}
	return json.Unmarshal(data, dest)
}
