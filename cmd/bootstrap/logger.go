package bootstrap

import (
	"log/slog"

	"merchant-backend/internal/handler/middleware"
	"merchant-backend/internal/pkg/config"

	"go.uber.org/fx"
	"go.uber.org/fx/fxevent"
)

var LoggerModule = fx.Module("logger",
	fx.Provide(
		NewLogger,
		func(l *middleware.Logger) *slog.Logger { return l.GetSlogLogger() },
	),
	fx.WithLogger(func(logger *slog.Logger) fxevent.Logger {
		fxLogger := &fxevent.SlogLogger{Logger: logger.With(slog.String("component", "fx"))}
		fxLogger.UseLogLevel(slog.LevelDebug)
		return fxLogger
	}),
)

// NewLogger also installs the logger as slog.Default so package-level slog
// calls share the handler.
func NewLogger(cfg config.Config) *middleware.Logger {
	logger := middleware.NewLogger(cfg.Log)
	slog.SetDefault(logger.GetSlogLogger())
	return logger
}
