package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/splax/taskhub/internal/domain"
	"github.com/splax/taskhub/internal/repository/postgres"
	"github.com/splax/taskhub/internal/service/auth"
)

var (
	seedEmail     string
	seedPassword  string
	seedFirstName string
	seedLastName  string
)

var seedCmd = &cobra.Command{
	Use:   "seed",
	Short: "Create a global admin account, or promote an existing one",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cancel := commandContext(cmd)
		defer cancel()
		return withRepository(ctx, func(repo *postgres.Repository) error {
			email := domain.NormalizeEmail(seedEmail)
			existing, err := repo.GetUserByEmail(ctx, email)
			switch {
			case err == nil:
			case errors.Is(err, domain.ErrNotFound):
				svc := auth.New(repo, log, auth.Config{Secret: cfg.JWTSecret})
				existing, _, err = svc.Register(ctx, auth.RegisterInput{
					Email:     email,
					Password:  seedPassword,
					FirstName: seedFirstName,
					LastName:  seedLastName,
				})
				if err != nil {
					return err
				}
			default:
				return err
			}
			existing.Role = domain.GlobalRoleAdmin
			existing.IsActive = true
			if err := repo.UpdateUser(ctx, existing); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "admin ready: %s (%s)\n", existing.Email, existing.ID)
			return nil
		})
	},
}

func init() {
	seedCmd.Flags().StringVar(&seedEmail, "email", "", "admin email")
	seedCmd.Flags().StringVar(&seedPassword, "password", "", "password for a new account")
	seedCmd.Flags().StringVar(&seedFirstName, "first-name", "Admin", "first name for a new account")
	seedCmd.Flags().StringVar(&seedLastName, "last-name", "User", "last name for a new account")
	_ = seedCmd.MarkFlagRequired("email")
}
