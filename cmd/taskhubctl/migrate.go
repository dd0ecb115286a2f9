package main

import (
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/splax/taskhub/internal/app/migrate"
)

var migrateTarget int64

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Manage the database schema",
}

var migrateUpCmd = &cobra.Command{
	Use:   "up",
	Short: "Apply pending migrations",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withMigrator(cmd, func(r *migrate.Runner) error {
			ctx, cancel := commandContext(cmd)
			defer cancel()
			return r.Up(ctx)
		})
	},
}

var migrateDownCmd = &cobra.Command{
	Use:   "down",
	Short: "Roll back the latest migration, or down to --target",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withMigrator(cmd, func(r *migrate.Runner) error {
			ctx, cancel := commandContext(cmd)
			defer cancel()
			return r.Down(ctx, migrateTarget)
		})
	},
}

var migrateStatusCmd = &cobra.Command{
	Use:   "status",
	Short: "List applied and pending migrations",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withMigrator(cmd, func(r *migrate.Runner) error {
			ctx, cancel := commandContext(cmd)
			defer cancel()
			rows, err := r.Status(ctx)
			if err != nil {
				return err
			}
			w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "VERSION\tSTATE\tAPPLIED AT\tFILE")
			for _, m := range rows {
				state, applied := "pending", "-"
				if m.Applied {
					state, applied = "applied", m.AppliedAt.UTC().Format(time.RFC3339)
				}
				fmt.Fprintf(w, "%d\t%s\t%s\t%s\n", m.Version, state, applied, m.Path)
			}
			return w.Flush()
		})
	},
}

func init() {
	migrateDownCmd.Flags().Int64Var(&migrateTarget, "target", 0, "version to roll back to")
	migrateCmd.AddCommand(migrateUpCmd, migrateDownCmd, migrateStatusCmd)
}

func withMigrator(cmd *cobra.Command, fn func(*migrate.Runner) error) error {
	runner, err := migrate.New(cfg.DatabaseURL, cfg.MigrationsDir, log)
	if err != nil {
		return err
	}
	defer runner.Close()
	return fn(runner)
}
