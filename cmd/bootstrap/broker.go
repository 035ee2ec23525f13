package bootstrap

import (
	"context"
	"log/slog"

	"merchant-backend/internal/infra/broker"
	"merchant-backend/internal/pkg/clock"
	"merchant-backend/internal/pkg/config"
	"merchant-backend/internal/pkg/metrics"

	"go.uber.org/fx"
)

var BrokerModule = fx.Module("broker",
	fx.Provide(
		NewBrokerClient,
	),
)

// NewBrokerClient connects on start; a broker that stays unreachable past
// RABBITMQ_CONNECT_TIMEOUT fails the boot. Disconnect runs after every hook
// registered later, so in-flight publishes and deliveries finish first.
func NewBrokerClient(lc fx.Lifecycle, cfg config.Config, clk clock.Clock, logger *slog.Logger, m *metrics.Metrics) *broker.Client {
	client := broker.NewClient(
		broker.OptionsFromConfig(cfg.RabbitMQ),
		broker.AMQPDialer(cfg.RabbitMQ.ConnectTimeout),
		clk,
		logger,
		m,
	)

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			return client.Connect(ctx)
		},
		OnStop: func(ctx context.Context) error {
			client.Disconnect(ctx)
			return nil
		},
	})

	return client
}
