package components

import (
	"merchant-backend/internal/handler"
	"merchant-backend/internal/handler/api"
	"merchant-backend/internal/handler/middleware"
	"merchant-backend/internal/pkg/clock"
	"merchant-backend/internal/pkg/config"
	"merchant-backend/internal/pkg/metrics"

	"github.com/gin-gonic/gin"
	"go.uber.org/fx"
)

var HandlerModule = fx.Module("handler",
	fx.Provide(
		api.NewTransactionHandler,
		middleware.NewAuthMiddleware,
		NewRateLimiter,
	),
	fx.Invoke(NewRouter),
)

func NewRateLimiter(storage middleware.Limiter, cfg config.Config, clk clock.Clock) *middleware.RateLimiter {
	return middleware.NewRateLimiter(storage, cfg.Throttle, clk)
}

type routerDeps struct {
	fx.In

	Engine             *gin.Engine
	Config             config.Config
	Logger             *middleware.Logger
	TransactionHandler *api.TransactionHandler
	AuthMiddleware     *middleware.AuthMiddleware
	RateLimiter        *middleware.RateLimiter
	Metrics            *metrics.Metrics
}

func NewRouter(d routerDeps) {
	handler.NewRouter(d.Engine, handler.RouterParams{
		Config:             d.Config,
		Logger:             d.Logger,
		TransactionHandler: d.TransactionHandler,
		AuthMiddleware:     d.AuthMiddleware,
		RateLimiter:        d.RateLimiter,
		Metrics:            d.Metrics.Handler(),
	})
}
