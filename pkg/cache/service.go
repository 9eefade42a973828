package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"seatbook/pkg/logger"

	"github.com/redis/go-redis/v9"
)

// ErrCacheMiss is returned by Get when the key does not exist
var ErrCacheMiss = errors.New("cache miss")

// Service is a JSON cache on top of Redis
type Service interface {
	Get(ctx context.Context, key string, dest interface{}) error
	Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error
	Delete(ctx context.Context, keys ...string) error
	DeletePattern(ctx context.Context, pattern string) error

	// GetOrSet reads key into dest, filling it from fetch on a miss.
	// Cache failures fall through to fetch and are only logged.
	GetOrSet(ctx context.Context, key string, ttl time.Duration, dest interface{}, fetch func(ctx context.Context) (interface{}, error)) error

	Ping(ctx context.Context) error
}

type service struct {
	client redis.Cmdable
}

func NewService(client redis.Cmdable) Service {
	return &service{client: client}
}

func (s *service) Get(ctx context.Context, key string, dest interface{}) error {
	val, err := s.client.Get(ctx, key).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return ErrCacheMiss
		}
		return fmt.Errorf("cache get error: %w", err)
	}

	if err := json.Unmarshal(val, dest); err != nil {
		return fmt.Errorf("cache unmarshal error: %w", err)
	}
	return nil
}

func (s *service) Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	data, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("cache marshal error: %w", err)
	}

	if err := s.client.Set(ctx, key, data, ttl).Err(); err != nil {
		return fmt.Errorf("cache set error: %w", err)
	}
	return nil
}

func (s *service) Delete(ctx context.Context, keys ...string) error {
	if len(keys) == 0 {
		return nil
	}
	if err := s.client.Del(ctx, keys...).Err(); err != nil {
		return fmt.Errorf("cache delete error: %w", err)
	}
	return nil
}

// DeletePattern walks the keyspace with SCAN so large databases are not blocked
func (s *service) DeletePattern(ctx context.Context, pattern string) error {
	var cursor uint64
	for {
		keys, next, err := s.client.Scan(ctx, cursor, pattern, 100).Result()
		if err != nil {
			return fmt.Errorf("cache scan error: %w", err)
		}
		if err := s.Delete(ctx, keys...); err != nil {
			return err
		}
		if next == 0 {
			return nil
		}
		cursor = next
	}
}

func (s *service) GetOrSet(ctx context.Context, key string, ttl time.Duration, dest interface{}, fetch func(ctx context.Context) (interface{}, error)) error {
	err := s.Get(ctx, key, dest)
	if err == nil {
		return nil
	}
	if !errors.Is(err, ErrCacheMiss) {
		logger.GetDefault().WarnWithContext(ctx, "cache read failed, falling back to source", map[string]interface{}{
			"key":   key,
			"error": err.Error(),
		})
	}

	data, err := fetch(ctx)
	if err != nil {
		return err
	}

	if setErr := s.Set(ctx, key, data, ttl); setErr != nil {
		logger.GetDefault().WarnWithContext(ctx, "cache write failed", map[string]interface{}{
			"key":   key,
			"error": setErr.Error(),
		})
	}

	// round-trip through JSON so dest sees exactly what a cache hit would produce
	raw, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("cache marshal error: %w", err)
	}
	return json.Unmarshal(raw, dest)
}

func (s *service) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}
