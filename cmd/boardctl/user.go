package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/LucasSckenal/nexo-sub000/internal/app"
)

func userCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "user",
		Short: "Manage user accounts",
	}
	cmd.AddCommand(userCreateCmd())
	return cmd
}

func userCreateCmd() *cobra.Command {
	var username, displayName, password string
	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create a user with a bcrypt-hashed password",
		Long: `Create a user account.

The password is read from --password or, if that is empty, from
BOARDCTL_PASSWORD so it stays out of shell history.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if password == "" {
				password = os.Getenv("BOARDCTL_PASSWORD")
			}
			if password == "" {
				return fmt.Errorf("password required: use --password or BOARDCTL_PASSWORD")
			}
			return withCore(cmd, func(ctx context.Context, core *app.Core) error {
				u, err := core.UserSvc.Register(ctx, username, displayName, password)
				if err != nil {
					return err
				}
				fmt.Printf("%s created %s %s\n", green("✓"), bold(u.Username), dim(u.ID))
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&username, "username", "", "login name")
	cmd.Flags().StringVar(&displayName, "display-name", "", "name shown on the board")
	cmd.Flags().StringVar(&password, "password", "", "plain-text password")
	_ = cmd.MarkFlagRequired("username")
	return cmd
}
