// Command boardctl runs board maintenance from the shell: migrations,
// reminder sweeps, sprint expiry and user provisioning.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/LucasSckenal/nexo-sub000/internal/app"
	"github.com/LucasSckenal/nexo-sub000/internal/config"
)

var Version = "dev"

var (
	bold   = color.New(color.Bold).SprintFunc()
	dim    = color.New(color.Faint).SprintFunc()
	green  = color.New(color.FgGreen).SprintFunc()
	yellow = color.New(color.FgYellow).SprintFunc()
	red    = color.New(color.FgRed).SprintFunc()
)

func main() {
	rootCmd := &cobra.Command{
		Use:           "boardctl",
		Short:         "boardctl - operate the Nexo board backend",
		Version:       Version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	rootCmd.PersistentFlags().Bool("verbose", false, "debug logging")

	rootCmd.AddCommand(migrateCmd())
	rootCmd.AddCommand(sweepCmd())
	rootCmd.AddCommand(expireCmd())
	rootCmd.AddCommand(sprintCmd())
	rootCmd.AddCommand(userCmd())

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, red("error:"), err)
		os.Exit(1)
	}
}

func logger(cmd *cobra.Command, cfg config.Config) *slog.Logger {
	level := cfg.App.Level()
	if v, _ := cmd.Flags().GetBool("verbose"); v {
		level = slog.LevelDebug
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
}

// withCore loads configuration, builds the backend and runs fn against it.
func withCore(cmd *cobra.Command, fn func(ctx context.Context, core *app.Core) error) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("config: %w", err)
	}
	ctx := cmd.Context()
	core, err := app.NewCore(ctx, cfg, logger(cmd, cfg))
	if err != nil {
		return err
	}
	defer core.Close()
	return fn(ctx, core)
}
