package main

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/spf13/cobra"

	"github.com/splax/taskhub/internal/repository/postgres"
	"github.com/splax/taskhub/pkg/config"
	"github.com/splax/taskhub/pkg/logger"
)

var (
	cfg     config.APIConfig
	log     *slog.Logger
	timeout time.Duration
)

var rootCmd = &cobra.Command{
	Use:           "taskhubctl",
	Short:         "Operator commands for taskhub",
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if err := config.LoadDotEnv(); err != nil {
			return fmt.Errorf("read .env: %w", err)
		}
		cfg = config.LoadAPIConfig()
		log = logger.New("taskhubctl", logger.ParseLevel(cfg.LogLevel))
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().DurationVar(&timeout, "timeout", 2*time.Minute, "command timeout")
	rootCmd.AddCommand(migrateCmd)
	rootCmd.AddCommand(notificationsCmd)
	rootCmd.AddCommand(seedCmd)
}

// commandContext bounds a command by --timeout.
func commandContext(cmd *cobra.Command) (context.Context, context.CancelFunc) {
	return context.WithTimeout(cmd.Context(), timeout)
}

// withRepository opens the postgres store for the duration of fn.
func withRepository(ctx context.Context, fn func(*postgres.Repository) error) error {
	pool, err := pgxpool.New(ctx, cfg.DatabaseURL)
	if err != nil {
		return fmt.Errorf("connect database: %w", err)
	}
	defer pool.Close()
	if err := pool.Ping(ctx); err != nil {
		return fmt.Errorf("ping database: %w", err)
	}
	return fn(postgres.New(pool, cfg.DBAcquireTimeout))
}
