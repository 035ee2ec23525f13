package bootstrap

import (
	"merchant-backend/cmd/bootstrap/components"

	"go.uber.org/fx"
)

// InfraModule is everything both processes need: config, logging, metrics,
// postgres, redis and the broker client.
var InfraModule = fx.Options(
	ConfigModule,
	LoggerModule,
	MetricsModule,
	DBModule,
	RedisModule,
	BrokerModule,
	components.PersistenceModule,
	components.CacheModule,
	components.UseCaseModule,
)

// ServeModule is the HTTP API with the settlement worker embedded.
var ServeModule = fx.Options(
	InfraModule,
	JWTModule,
	components.HandlerModule,
	components.SettlementModule,
	fx.Invoke(components.StartEmbeddedWorker),
	ServerModule,
)

// WorkerModule consumes settlement messages without serving HTTP.
var WorkerModule = fx.Options(
	InfraModule,
	components.SettlementModule,
	fx.Invoke(components.StartWorker),
)
