package bootstrap

import (
	"time"

	"merchant-backend/internal/pkg/clock"
	"merchant-backend/internal/pkg/config"
	"merchant-backend/internal/pkg/jwt"

	"go.uber.org/fx"
)

// Only bounds tokens minted by this process: tests and the token command.
const AccessTokenDuration = 15 * time.Minute

var JWTModule = fx.Module("jwt",
	fx.Provide(
		NewJWTService,
	),
)

func NewJWTService(cfg config.Config, clk clock.Clock) *jwt.Service {
	return jwt.NewService(cfg.JWT.Secret, AccessTokenDuration, clk)
}
