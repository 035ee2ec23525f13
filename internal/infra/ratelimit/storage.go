package ratelimit

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"merchant-backend/internal/pkg/clock"
	"merchant-backend/internal/pkg/metrics"

	"github.com/redis/go-redis/v9"
)

const DefaultPrefix = "throttler"

// KEYS[1] counter, KEYS[2] block record.
// ARGV: now ms, window ms, limit, block ms.
// Returns {hits, counter ttl ms, blocked (0|1), block expiry ms}.
//
// The block check runs first so a blocked caller never touches the counter.
// Writing a block deletes the counter, so counting restarts from 1 once the
// block lapses.
var incrementScript = redis.NewScript(`
local now = tonumber(ARGV[1])
local window = tonumber(ARGV[2])
local limit = tonumber(ARGV[3])
local block = tonumber(ARGV[4])

local blockedUntil = tonumber(redis.call("GET", KEYS[2]))
if blockedUntil and blockedUntil > now then
  return {limit + 1, window, 1, blockedUntil}
end

local hits = redis.call("INCR", KEYS[1])
if hits == 1 then
  redis.call("PEXPIRE", KEYS[1], window)
end
local ttl = redis.call("PTTL", KEYS[1])
if ttl < 0 then
  redis.call("PEXPIRE", KEYS[1], window)
  ttl = window
end

if hits > limit then
  local blockUntil = now + block
  redis.call("SET", KEYS[2], blockUntil, "PX", block)
  redis.call("DEL", KEYS[1])
  return {hits, ttl, 1, blockUntil}
end

return {hits, ttl, 0, 0}
`)

// Result times are unix epoch milliseconds.
type Result struct {
	TotalHits         int   `json:"totalHits"`
	TimeToExpire      int64 `json:"timeToExpire"`
	IsBlocked         bool  `json:"isBlocked"`
	TimeToBlockExpire int64 `json:"timeToBlockExpire"`
}

// Storage is a fixed-window counter with a separate "blocked until" record,
// shared by every instance through redis.
type Storage struct {
	client  redis.UniversalClient
	prefix  string
	clock   clock.Clock
	logger  *slog.Logger
	metrics *metrics.Metrics
}

func NewStorage(client redis.UniversalClient, prefix string, clk clock.Clock, logger *slog.Logger, m *metrics.Metrics) *Storage {
	prefix = strings.TrimSuffix(strings.TrimSpace(prefix), ":")
	if prefix == "" {
		prefix = DefaultPrefix
	}
	return &Storage{
		client:  client,
		prefix:  prefix,
		clock:   clk,
		logger:  logger.With(slog.String("component", "ratelimit")),
		metrics: m,
	}
}

func (s *Storage) counterKey(throttlerName, key string) string {
	return fmt.Sprintf("%s:%s:%s", s.prefix, throttlerName, key)
}

func blockKey(counterKey string) string {
	return counterKey + ":blocked"
}

// Increment records one hit for key under throttlerName. Storage failures
// fail open: the caller gets a zero, unblocked result.
func (s *Storage) Increment(ctx context.Context, key string, window time.Duration, limit int, block time.Duration, throttlerName string) Result {
	now := s.clock.Now().UnixMilli()
	windowMs := max(window.Milliseconds(), 1)
	blockMs := max(block.Milliseconds(), 1)
	fullKey := s.counterKey(throttlerName, key)

	raw, err := incrementScript.Run(ctx, s.client, []string{fullKey, blockKey(fullKey)}, now, windowMs, limit, blockMs).Result()
	if err != nil {
		return s.failOpen(fullKey, throttlerName, now, windowMs, err)
	}

	values, ok := raw.([]interface{})
	if !ok || len(values) != 4 {
		return s.failOpen(fullKey, throttlerName, now, windowMs, fmt.Errorf("unexpected limiter response shape: %T", raw))
	}
	ints := make([]int64, len(values))
	for i, v := range values {
		n, ok := v.(int64)
		if !ok {
			return s.failOpen(fullKey, throttlerName, now, windowMs, fmt.Errorf("unexpected limiter value type: %T", v))
		}
		ints[i] = n
	}

	res := Result{
		TotalHits:         int(ints[0]),
		TimeToExpire:      now + ints[1],
		IsBlocked:         ints[2] == 1,
		TimeToBlockExpire: ints[3],
	}

	if res.IsBlocked {
		s.metrics.RateLimitDecisions.WithLabelValues(throttlerName, "blocked").Inc()
		s.logger.Warn("request blocked",
			slog.String("key", fullKey),
			slog.Int("hits", res.TotalHits),
			slog.Int("limit", limit),
			slog.Time("blocked_until", time.UnixMilli(res.TimeToBlockExpire)))
	} else {
		s.metrics.RateLimitDecisions.WithLabelValues(throttlerName, "allowed").Inc()
		s.logger.Debug("rate limit check",
			slog.String("key", fullKey),
			slog.Int("hits", res.TotalHits),
			slog.Int("limit", limit))
	}
	return res
}

func (s *Storage) failOpen(fullKey, throttlerName string, now, windowMs int64, err error) Result {
	s.metrics.RateLimitDecisions.WithLabelValues(throttlerName, "fail_open").Inc()
	s.logger.Error("failed to check rate limit",
		slog.String("key", fullKey),
		slog.String("error", err.Error()))
	return Result{
		TotalHits:    0,
		TimeToExpire: now + windowMs,
	}
}

// Reset deletes every counter and block record for key across throttlers.
// Errors are logged and swallowed.
func (s *Storage) Reset(ctx context.Context, key string) {
	pattern := fmt.Sprintf("%s:*:%s*", s.prefix, escapeGlob(key))

	var cursor uint64
	deleted := 0
	for {
		keys, next, err := s.client.Scan(ctx, cursor, pattern, 100).Result()
		if err != nil {
			s.logger.Error("failed to reset rate limit", slog.String("key", key), slog.String("error", err.Error()))
			return
		}
		if len(keys) > 0 {
			if err := s.client.Del(ctx, keys...).Err(); err != nil {
				s.logger.Error("failed to reset rate limit", slog.String("key", key), slog.String("error", err.Error()))
				return
			}
			deleted += len(keys)
		}
		cursor = next
		if cursor == 0 {
			break
		}
	}
	s.logger.Debug("reset rate limit", slog.String("key", key), slog.Int("deleted", deleted))
}

func escapeGlob(s string) string {
	var b strings.Builder
	for _, r := range s {
		switch r {
		case '*', '?', '[', ']', '\\':
			b.WriteByte('\\')
		}
		b.WriteRune(r)
	}
	return b.String()
}
