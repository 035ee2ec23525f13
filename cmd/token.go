package main

import (
	"fmt"
	"time"

	"merchant-backend/cmd/bootstrap"
	"merchant-backend/internal/pkg/clock"
	"merchant-backend/internal/pkg/config"
	"merchant-backend/internal/pkg/jwt"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
)

func tokenCmd() *cobra.Command {
	var (
		email    string
		duration time.Duration
	)

	cmd := &cobra.Command{
		Use:   "token <merchant-id>",
		Short: "Mint an access token for a merchant, for local use",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			merchantID, err := uuid.Parse(args[0])
			if err != nil {
				return fmt.Errorf("invalid merchant id %q: %w", args[0], err)
			}
			jwtCfg, err := config.LoadJWTConfig()
			if err != nil {
				return err
			}

			token, err := jwt.NewService(jwtCfg.Secret, duration, clock.NewRealClock()).GenerateToken(merchantID, email)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), token)
			return nil
		},
	}

	cmd.Flags().StringVar(&email, "email", "", "email claim to embed")
	cmd.Flags().DurationVar(&duration, "ttl", bootstrap.AccessTokenDuration, "token lifetime")
	return cmd
}
