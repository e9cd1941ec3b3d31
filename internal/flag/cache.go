// File: internal/flag/cache.go
package flag

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"marketplace_backend/internal/config"
)

// AutoPublishKey is the redis key holding the auto-publish switch.
const AutoPublishKey = "feature:auto_publish_enabled"

// cachedFlag is an explicit cache value object instead of hidden
// process-wide state. Reads inside the TTL are served from memory.
type cachedFlag struct {
	value     bool
	expiresAt time.Time
}

// Store answers feature-flag questions for the publication engine.
type Store interface {
	IsAutoPublishEnabled(ctx context.Context) bool
	Refresh(ctx context.Context) error
	SetAutoPublish(ctx context.Context, enabled bool) error
}

// RedisStore is a redis-backed Store with a short in-process cache so the
// approve path does not hit redis on every request.
type RedisStore struct {
	client *redis.Client
	ttl    time.Duration
	logger *zap.Logger

	mu     sync.Mutex
	cached cachedFlag
}

// NewRedisStore creates a new redis-backed flag store.
func NewRedisStore(client *redis.Client, cfg *config.Config, logger *zap.Logger) *RedisStore {
	return &RedisStore{
		client: client,
		ttl:    cfg.AutoPublishFlagTTL,
		logger: logger.Named("feature_flags"),
	}
}

var _ Store = (*RedisStore)(nil)

// IsAutoPublishEnabled returns the cached value, refreshing it from redis
// when the TTL has lapsed. A redis failure keeps the last known value, so a
// flaky flag store degrades the approve path to its previous behavior rather
// than failing it.
func (s *RedisStore) IsAutoPublishEnabled(ctx context.Context) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if time.Now().Before(s.cached.expiresAt) {
		return s.cached.value
	}
	if err := s.refreshLocked(ctx); err != nil {
		s.logger.Warn("Feature flag refresh failed, keeping last known value",
			zap.String("key", AutoPublishKey),
			zap.Bool("value", s.cached.value),
			zap.Error(err))
	}
	return s.cached.value
}

// Refresh forces a re-read from redis regardless of TTL.
func (s *RedisStore) Refresh(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.refreshLocked(ctx)
}

func (s *RedisStore) refreshLocked(ctx context.Context) error {
	val, err := s.client.Get(ctx, AutoPublishKey).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			// Key absent means the feature is off.
			s.cached = cachedFlag{value: false, expiresAt: time.Now().Add(s.ttl)}
			return nil
		}
		return err
	}

	s.cached = cachedFlag{
		value:     val == "true" || val == "1",
		expiresAt: time.Now().Add(s.ttl),
	}
	return nil
}

// SetAutoPublish writes the switch to redis and updates the local cache.
func (s *RedisStore) SetAutoPublish(ctx context.Context, enabled bool) error {
	val := "false"
	if enabled {
		val = "true"
	}
	if err := s.client.Set(ctx, AutoPublishKey, val, 0).Err(); err != nil {
		return err
	}

	s.mu.Lock()
	s.cached = cachedFlag{value: enabled, expiresAt: time.Now().Add(s.ttl)}
	s.mu.Unlock()
	return nil
}
