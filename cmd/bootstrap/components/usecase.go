package components

import (
	"context"
	"log/slog"

	"merchant-backend/internal/infra/broker"
	"merchant-backend/internal/pkg/clock"
	"merchant-backend/internal/pkg/config"
	"merchant-backend/internal/pkg/metrics"
	"merchant-backend/internal/usecase"
	"merchant-backend/internal/usecase/commands"
	"merchant-backend/internal/usecase/queries"
	"merchant-backend/internal/usecase/shared"

	"go.uber.org/fx"
)

var UseCaseModule = fx.Module("usecase",
	usecaseBaseOption,
	usecaseQueriesModule,
	usecaseValidatorsModule,
	usecaseCommandsModule,
)

var usecaseBaseOption = fx.Provide(
	clock.NewRealClock,
	func(c *broker.Client) shared.EventPublisher { return c },
)

var usecaseCommandsModule = fx.Module("usecase/commands",
	fx.Provide(
		NewTransactionCommands,
	),
	fx.Invoke(drainOnStop),
)

var usecaseQueriesModule = fx.Module("usecase/queries",
	fx.Provide(
		NewTransactionQueries,
	),
)

var usecaseValidatorsModule = fx.Module("usecase/validators",
	fx.Provide(
		usecase.NewTokenValidator,
	),
)

func NewTransactionCommands(
	uow shared.UnitOfWork,
	pageCache shared.PageCache,
	publisher shared.EventPublisher,
	clk clock.Clock,
	logger *slog.Logger,
	cfg config.Config,
) commands.TransactionCommands {
	return commands.NewTransactionCommands(uow, pageCache, publisher, clk, logger, cfg.RabbitMQ.PublishTimeout)
}

func NewTransactionQueries(
	uow shared.UnitOfWork,
	pageCache shared.PageCache,
	logger *slog.Logger,
	m *metrics.Metrics,
	cfg config.Config,
) queries.TransactionQueries {
	return queries.NewTransactionQueries(uow, pageCache, cfg.Redis.CacheTTL, logger, m)
}

// drainOnStop waits for detached event publishes before the broker client,
// whose stop hook was registered earlier, disconnects.
func drainOnStop(lc fx.Lifecycle, cmds commands.TransactionCommands, logger *slog.Logger) {
	lc.Append(fx.Hook{
		OnStop: func(ctx context.Context) error {
			if err := cmds.Drain(ctx); err != nil {
				logger.Warn("stopped before every event publish finished", slog.String("error", err.Error()))
			}
			return nil
		},
	})
}
