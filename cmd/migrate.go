package main

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"merchant-backend/internal/handler/middleware"
	"merchant-backend/internal/infra/db"
	"merchant-backend/internal/pkg/config"
	"merchant-backend/migrations"

	"github.com/spf13/cobra"
)

func migrateCmd() *cobra.Command {
	var timeout time.Duration

	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Apply the embedded SQL migrations to the configured database",
		Long: `Apply the embedded SQL migrations to the configured database.

Each file runs in its own transaction and is recorded in schema_migrations,
so running the command again only applies new files.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			dbCfg, logCfg, err := config.LoadDBConfig()
			if err != nil {
				return err
			}
			logger := middleware.NewLogger(logCfg).GetSlogLogger()
			slog.SetDefault(logger)

			ctx, cancel := context.WithTimeout(cmd.Context(), timeout)
			defer cancel()

			pool, cleanup, err := db.Connect(ctx, dbCfg)
			if err != nil {
				return err
			}
			defer cleanup()

			applied, err := db.Migrate(ctx, pool, migrations.FS, logger)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "applied %d migration(s)\n", applied)
			return nil
		},
	}

	cmd.Flags().DurationVar(&timeout, "timeout", 2*time.Minute, "overall timeout for connecting and migrating")
	return cmd
}
