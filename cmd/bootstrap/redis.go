package bootstrap

import (
	"context"
	"fmt"
	"log/slog"

	"merchant-backend/internal/pkg/config"

	"github.com/redis/go-redis/v9"
	"go.uber.org/fx"
)

var RedisModule = fx.Module("redis",
	fx.Provide(
		NewRedisClient,
	),
)

// NewRedisClient pings on start. The limiter fails open when redis goes away
// later, but starting without it is a configuration error.
func NewRedisClient(lc fx.Lifecycle, cfg config.Config, logger *slog.Logger) redis.UniversalClient {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			if err := client.Ping(ctx).Err(); err != nil {
				return fmt.Errorf("failed to ping redis at %s: %w", cfg.Redis.Addr, err)
			}
			logger.Info("connected to redis", slog.String("addr", cfg.Redis.Addr))
			return nil
		},
		OnStop: func(_ context.Context) error {
			return client.Close()
		},
	})

	return client
}
