package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math/rand"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	appErrors "github.com/noah-isme/journey-reconciler/pkg/errors"
)

const historyKeyPrefix = "journey:history:"

// HistoryKey is the cache key holding a student's derived program history.
func HistoryKey(studentID string) string {
	return historyKeyPrefix + studentID
}

// CacheRepository stores JSON payloads in Redis. A nil client behaves as an
// always-empty cache.
//
// A batch warms thousands of keys within minutes, so each TTL is stretched by
// up to a tenth to keep them from expiring together.
type CacheRepository struct {
	client *redis.Client
	logger *zap.Logger
	jitter func(time.Duration) time.Duration
}

// NewCacheRepository constructs a cache repository.
func NewCacheRepository(client *redis.Client, logger *zap.Logger) *CacheRepository {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CacheRepository{client: client, logger: logger, jitter: spread}
}

func spread(ttl time.Duration) time.Duration {
	window := int64(ttl / 10)
	if window <= 0 {
		return ttl
	}
	return ttl + time.Duration(rand.Int63n(window))
}

// Get decodes the cached value into dest. Absent and undecodable entries both
// report ErrCacheMiss; only transport failures surface as other errors.
func (r *CacheRepository) Get(ctx context.Context, key string, dest interface{}) error {
	if r.client == nil {
		return appErrors.ErrCacheMiss
	}

	raw, err := r.client.Get(ctx, key).Bytes()
	switch {
	case errors.Is(err, redis.Nil):
		return appErrors.ErrCacheMiss
	case err != nil:
		return fmt.Errorf("redis get %s: %w", key, err)
	}

	if err := json.Unmarshal(raw, dest); err != nil {
		r.logger.Warn("discarding undecodable cache entry", zap.String("key", key), zap.Error(err))
		return appErrors.ErrCacheMiss
	}
	return nil
}

// Set stores value as JSON. A non-positive ttl stores nothing.
func (r *CacheRepository) Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	if r.client == nil || ttl <= 0 {
		return nil
	}

	payload, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("encode cache value for %s: %w", key, err)
	}
	if err := r.client.Set(ctx, key, payload, r.jitter(ttl)).Err(); err != nil {
		return fmt.Errorf("redis set %s: %w", key, err)
	}
	return nil
}
