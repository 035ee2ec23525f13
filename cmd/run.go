package main

import (
	"context"
	"log/slog"
	"time"

	"merchant-backend/cmd/bootstrap"

	"github.com/spf13/cobra"
	"go.uber.org/fx"
)

const (
	startTimeout = 30 * time.Second
	stopTimeout  = 30 * time.Second
)

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API (and the settlement worker unless WORKER_ENABLED=false)",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runApp(cmd.Context(), bootstrap.ServeModule)
		},
	}
}

func workerCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "worker",
		Short: "Run only the settlement worker",
		Long: `Run only the settlement worker.

Several workers may consume the same queue; each takes one message at a time.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runApp(cmd.Context(), bootstrap.WorkerModule)
		},
	}
}

// runApp starts the fx app and blocks until SIGINT/SIGTERM.
func runApp(ctx context.Context, module fx.Option) error {
	app := fx.New(
		module,
		fx.StartTimeout(startTimeout),
		fx.StopTimeout(stopTimeout),
	)
	if err := app.Err(); err != nil {
		return err
	}

	startCtx, cancel := context.WithTimeout(ctx, startTimeout)
	defer cancel()
	if err := app.Start(startCtx); err != nil {
		slog.Error("failed to start application", "error", err)
		return err
	}

	sig := <-app.Wait()
	slog.Info("shutting down", "signal", sig.Signal)

	stopCtx, stopCancel := context.WithTimeout(context.Background(), stopTimeout)
	defer stopCancel()
	if err := app.Stop(stopCtx); err != nil {
		// shutdown errors are reported but do not change the exit code
		slog.Error("failed to stop application cleanly", "error", err)
	}

	slog.Info("application stopped")
	return nil
}
