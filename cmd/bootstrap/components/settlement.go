package components

import (
	"context"
	"log/slog"

	"merchant-backend/internal/infra/broker"
	"merchant-backend/internal/pkg/config"
	"merchant-backend/internal/pkg/metrics"
	"merchant-backend/internal/usecase/commands"
	"merchant-backend/internal/usecase/settlement"

	"go.uber.org/fx"
)

var SettlementModule = fx.Module("settlement",
	fx.Provide(
		NewSettlementWorker,
	),
)

func NewSettlementWorker(client *broker.Client, cmds commands.TransactionCommands, cfg config.Config, logger *slog.Logger, m *metrics.Metrics) *settlement.Worker {
	decider := settlement.NewRandomDecider(cfg.Worker.SuccessRate, nil)
	return settlement.NewWorker(client, cmds, decider, cfg.Worker.ProcessingDelay, logger, m)
}

// StartEmbeddedWorker runs the worker inside the API process unless
// WORKER_ENABLED=false.
func StartEmbeddedWorker(lc fx.Lifecycle, w *settlement.Worker, cfg config.Config, logger *slog.Logger) {
	if !cfg.Worker.Enabled {
		logger.Info("settlement worker disabled in this process")
		return
	}
	StartWorker(lc, w)
}

// StartWorker registers the consumer once the broker is connected. The broker
// client keeps the registration across reconnects.
func StartWorker(lc fx.Lifecycle, w *settlement.Worker) {
	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			return w.Start(ctx)
		},
	})
}
