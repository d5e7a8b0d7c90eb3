package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"librarian/pkg/logger"
)

var ErrCacheMiss = errors.New("cache miss")

// Cache stores JSON encoded values under string keys.
type Cache interface {
	Set(ctx context.Context, key string, value interface{}, expiration time.Duration) error
	// Get decodes the value into dest or returns ErrCacheMiss.
	Get(ctx context.Context, key string, dest interface{}) error
	Delete(ctx context.Context, key string) error
	DeletePattern(ctx context.Context, pattern string) error
	Ping(ctx context.Context) error
}

// RedisCache implements Cache interface
type RedisCache struct {
	client *redis.Client
	logger logger.Logger
	prefix string
}

// NewRedisClient builds the client used by RedisCache.
func NewRedisClient(addr, password string, db int) *redis.Client {
	return redis.NewClient(&redis.Options{
		Addr:         addr,
		Password:     password,
		DB:           db,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
		PoolSize:     10,
	})
}

func NewRedisCache(client *redis.Client, logger logger.Logger, prefix string) Cache {
	return &RedisCache{
		client: client,
		logger: logger,
		prefix: prefix,
	}
}

func (r *RedisCache) makeKey(key string) string {
	if r.prefix == "" {
		return key
	}
	return fmt.Sprintf("%s:%s", r.prefix, key)
}

func (r *RedisCache) Set(ctx context.Context, key string, value interface{}, expiration time.Duration) error {
	data, err := json.Marshal(value)
	if err != nil {
		r.logger.Error("Cache value could not be encoded", map[string]interface{}{"key": key, "error": err.Error()})
		return err
	}

	fullKey := r.makeKey(key)
	if err := r.client.Set(ctx, fullKey, data, expiration).Err(); err != nil {
		r.logger.Error("Cache set failed", map[string]interface{}{"key": fullKey, "error": err.Error()})
		return err
	}

	r.logger.Debug("Cache set", map[string]interface{}{"key": fullKey, "expiration": expiration.String()})
	return nil
}

func (r *RedisCache) Get(ctx context.Context, key string, dest interface{}) error {
	fullKey := r.makeKey(key)
	data, err := r.client.Get(ctx, fullKey).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return ErrCacheMiss
		}
		r.logger.Error("Cache get failed", map[string]interface{}{"key": fullKey, "error": err.Error()})
		return err
	}

	if err := json.Unmarshal(data, dest); err != nil {
		r.logger.Error("Cache value could not be decoded", map[string]interface{}{"key": fullKey, "error": err.Error()})
		return err
	}

	return nil
}

func (r *RedisCache) Delete(ctx context.Context, key string) error {
	fullKey := r.makeKey(key)
	if err := r.client.Del(ctx, fullKey).Err(); err != nil {
		r.logger.Error("Cache delete failed", map[string]interface{}{"key": fullKey, "error": err.Error()})
		return err
	}
	return nil
}

// DeletePattern removes every key matching a glob pattern. It walks the
// keyspace with SCAN so large databases are not blocked.
func (r *RedisCache) DeletePattern(ctx context.Context, pattern string) error {
	fullPattern := r.makeKey(pattern)

	var keys []string
	iter := r.client.Scan(ctx, 0, fullPattern, 100).Iterator()
	for iter.Next(ctx) {
		keys = append(keys, iter.Val())
	}
	if err := iter.Err(); err != nil {
		r.logger.Error("Cache scan failed", map[string]interface{}{"pattern": fullPattern, "error": err.Error()})
		return err
	}

	if len(keys) == 0 {
		return nil
	}

	if err := r.client.Del(ctx, keys...).Err(); err != nil {
		r.logger.Error("Cache delete pattern failed", map[string]interface{}{"pattern": fullPattern, "keys": len(keys), "error": err.Error()})
		return err
	}

	r.logger.Debug("Cache keys invalidated", map[string]interface{}{"pattern": fullPattern, "deleted_keys": len(keys)})
	return nil
}

func (r *RedisCache) Ping(ctx context.Context) error {
	return r.client.Ping(ctx).Err()
}

// NoopCache never stores anything; every read is a miss.
type NoopCache struct{}

func NewNoopCache() Cache {
	return NoopCache{}
}

func (NoopCache) Set(context.Context, string, interface{}, time.Duration) error { return nil }
func (NoopCache) Get(context.Context, string, interface{}) error                { return ErrCacheMiss }
func (NoopCache) Delete(context.Context, string) error                           { return nil }
func (NoopCache) DeletePattern(context.Context, string) error                    { return nil }
func (NoopCache) Ping(context.Context) error                                     { return nil }
