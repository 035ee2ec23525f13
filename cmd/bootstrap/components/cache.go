package components

import (
	"log/slog"

	"merchant-backend/internal/handler/middleware"
	"merchant-backend/internal/infra/cache"
	"merchant-backend/internal/infra/ratelimit"
	"merchant-backend/internal/pkg/clock"
	"merchant-backend/internal/pkg/config"
	"merchant-backend/internal/pkg/metrics"
	"merchant-backend/internal/usecase/shared"

	"github.com/redis/go-redis/v9"
	"go.uber.org/fx"
)

// CacheModule holds everything backed by the shared redis: the page cache
// and the rate limiter counters.
var CacheModule = fx.Module("cache",
	fx.Provide(
		fx.Annotate(
			cache.NewStore,
			fx.As(new(shared.PageCache)),
		),
		fx.Annotate(
			NewRateLimitStorage,
			fx.As(new(middleware.Limiter)),
		),
	),
)

func NewRateLimitStorage(client redis.UniversalClient, cfg config.Config, clk clock.Clock, logger *slog.Logger, m *metrics.Metrics) *ratelimit.Storage {
	return ratelimit.NewStorage(client, cfg.Redis.Prefix, clk, logger, m)
}
