package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/splax/taskhub/internal/app/jobs"
	"github.com/splax/taskhub/internal/repository/postgres"
	"github.com/splax/taskhub/internal/service/notification"
)

var notificationsCmd = &cobra.Command{
	Use:   "notifications",
	Short: "Run notification maintenance once",
}

var sweepCmd = &cobra.Command{
	Use:   "sweep",
	Short: "Delete read notifications past the retention window",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withJobs(cmd, func(r *jobs.Runner) error {
			ctx, cancel := commandContext(cmd)
			defer cancel()
			n, err := r.Sweep(ctx)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "deleted %d notifications\n", n)
			return nil
		})
	},
}

var remindCmd = &cobra.Command{
	Use:   "remind",
	Short: "Emit deadline reminders and overdue notices",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withJobs(cmd, func(r *jobs.Runner) error {
			ctx, cancel := commandContext(cmd)
			defer cancel()
			n, err := r.Remind(ctx)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "sent %d notices\n", n)
			return nil
		})
	},
}

func init() {
	notificationsCmd.AddCommand(sweepCmd, remindCmd)
}

func withJobs(cmd *cobra.Command, fn func(*jobs.Runner) error) error {
	ctx, cancel := commandContext(cmd)
	defer cancel()
	return withRepository(ctx, func(repo *postgres.Repository) error {
		svc := notification.New(repo, log, notification.Config{Retention: cfg.NotificationRetention})
		return fn(jobs.New(svc, log, jobs.Config{Timeout: timeout}))
	})
}
