package cache

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"merchant-backend/internal/infra"

	"github.com/redis/go-redis/v9"
)

var ErrCacheMiss = errors.New("cache miss")

const scanBatch = 100

// Store keeps JSON encoded values in redis.
type Store struct {
	client redis.UniversalClient
	logger *slog.Logger
}

func NewStore(client redis.UniversalClient, logger *slog.Logger) *Store {
	return &Store{client: client, logger: logger.With(slog.String("component", "cache"))}
}

// Get decodes the value under key into dest. A missing key is ErrCacheMiss.
func (s *Store) Get(ctx context.Context, key string, dest any) error {
	data, err := s.client.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return ErrCacheMiss
	}
	if err != nil {
		return infra.WrapRepoErr(s.logger, infra.KindCacheFailure, "failed to read cache", err)
	}
	if err := json.Unmarshal(data, dest); err != nil {
		// A value we cannot decode is as good as absent.
		s.logger.Warn("discarding undecodable cache entry", slog.String("key", key), slog.String("error", err.Error()))
		return ErrCacheMiss
	}
	return nil
}

func (s *Store) Set(ctx context.Context, key string, value any, ttl time.Duration) error {
	data, err := json.Marshal(value)
	if err != nil {
		return infra.WrapRepoErr(s.logger, infra.KindCacheFailure, "failed to encode cache value", err)
	}
	if err := s.client.Set(ctx, key, data, ttl).Err(); err != nil {
		return infra.WrapRepoErr(s.logger, infra.KindCacheFailure, "failed to write cache", err)
	}
	return nil
}

func (s *Store) Delete(ctx context.Context, keys ...string) error {
	if len(keys) == 0 {
		return nil
	}
	if err := s.client.Del(ctx, keys...).Err(); err != nil {
		return infra.WrapRepoErr(s.logger, infra.KindCacheFailure, "failed to delete cache keys", err)
	}
	return nil
}

// DeletePattern removes every key matching the glob pattern.
func (s *Store) DeletePattern(ctx context.Context, pattern string) error {
	var cursor uint64
	for {
		keys, next, err := s.client.Scan(ctx, cursor, pattern, scanBatch).Result()
		if err != nil {
			return infra.WrapRepoErr(s.logger, infra.KindCacheFailure, "failed to scan cache keys", err)
		}
		if err := s.Delete(ctx, keys...); err != nil {
			return err
		}
		cursor = next
		if cursor == 0 {
			return nil
		}
	}
}
