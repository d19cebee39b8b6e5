package assessment

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"momcare/apps/backend/internal/observability"
)

var ErrCacheMiss = errors.New("cache miss")

// Cache is the byte-level key/value contract CachedStore needs.
type Cache interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
}

type RedisCache struct {
	client *redis.Client
}

func NewRedisCache(client *redis.Client) *RedisCache {
	return &RedisCache{client: client}
}

func (c *RedisCache) Get(ctx context.Context, key string) ([]byte, error) {
	value, err := c.client.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrCacheMiss
	}
	if err != nil {
		return nil, fmt.Errorf("redis get %s: %w", key, err)
	}
	return value, nil
}

func (c *RedisCache) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	if err := c.client.Set(ctx, key, value, ttl).Err(); err != nil {
		return fmt.Errorf("redis set %s: %w", key, err)
	}
	return nil
}

func (c *RedisCache) Delete(ctx context.Context, key string) error {
	if err := c.client.Del(ctx, key).Err(); err != nil {
		return fmt.Errorf("redis del %s: %w", key, err)
	}
	return nil
}

// CachedStore reads through a Cache in front of another Store. The wrapped
// store stays the source of truth: cache failures are logged and ignored.
type CachedStore struct {
	store  Store
	cache  Cache
	ttl    time.Duration
	log    zerolog.Logger
	hits   metric.Int64Counter
	misses metric.Int64Counter
}

func NewCachedStore(store Store, cache Cache, ttl time.Duration, log zerolog.Logger) *CachedStore {
	meter := observability.Meter("assessment")
	return &CachedStore{
		store:  store,
		cache:  cache,
		ttl:    ttl,
		log:    log.With().Str("component", "assessment_cache").Logger(),
		hits:   observability.Int64Counter(meter, "assessment.cache.hit", "Assessment reads served from cache"),
		misses: observability.Int64Counter(meter, "assessment.cache.miss", "Assessment reads that fell through to the store"),
	}
}

func cacheKey(healthProfileID string) string {
	return fmt.Sprintf("assessment:profile:%s", healthProfileID)
}

func (s *CachedStore) GetByProfile(ctx context.Context, healthProfileID string) (*RiskAssessment, error) {
	key := cacheKey(healthProfileID)
	attrs := metric.WithAttributes(attribute.String("cache.key_space", "assessment"))

	cached, err := s.cache.Get(ctx, key)
	switch {
	case err == nil:
		var a RiskAssessment
		decodeErr := json.Unmarshal(cached, &a)
		if decodeErr == nil {
			s.hits.Add(ctx, 1, attrs)
			return &a, nil
		}
		s.log.Warn().Err(decodeErr).Str("key", key).Msg("discarding undecodable cache entry")
	case !errors.Is(err, ErrCacheMiss):
		s.log.Warn().Err(err).Str("key", key).Msg("cache read failed")
	}
	s.misses.Add(ctx, 1, attrs)

	a, err := s.store.GetByProfile(ctx, healthProfileID)
	if err != nil {
		return nil, err
	}
	s.put(ctx, a)
	return a, nil
}

func (s *CachedStore) Insert(ctx context.Context, a *RiskAssessment) error {
	if err := s.store.Insert(ctx, a); err != nil {
		return err
	}
	s.put(ctx, a)
	return nil
}

func (s *CachedStore) Update(ctx context.Context, a *RiskAssessment) error {
	if err := s.store.Update(ctx, a); err != nil {
		s.evict(ctx, a.HealthProfileID)
		return err
	}
	s.put(ctx, a)
	return nil
}

func (s *CachedStore) put(ctx context.Context, a *RiskAssessment) {
	data, err := json.Marshal(a)
	if err != nil {
		s.log.Warn().Err(err).Str("assessment_id", a.ID).Msg("cache encode failed")
		return
	}
	if err := s.cache.Set(ctx, cacheKey(a.HealthProfileID), data, s.ttl); err != nil {
		s.log.Warn().Err(err).Str("assessment_id", a.ID).Msg("cache write failed")
	}
}

func (s *CachedStore) evict(ctx context.Context, healthProfileID string) {
	if err := s.cache.Delete(ctx, cacheKey(healthProfileID)); err != nil {
		s.log.Warn().Err(err).Str("health_profile_id", healthProfileID).Msg("cache evict failed")
	}
}
