package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/LucasSckenal/nexo-sub000/internal/app"
)

func sweepCmd() *cobra.Command {
	var user string
	var watch bool
	cmd := &cobra.Command{
		Use:   "sweep",
		Short: "Send deadline reminders for tasks due tomorrow",
		Long: `Send one reminder per task due tomorrow that the user watches.

A task is reminded at most once per calendar day in BOARD_TIMEZONE, so
running sweep repeatedly is safe. With --watch the sweep repeats every
BOARD_REMINDER_INTERVAL until interrupted.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withCore(cmd, func(ctx context.Context, core *app.Core) error {
				if watch {
					fmt.Println(dim("sweeping every " + core.Config.Board.ReminderInterval.Duration().String()))
					core.Reminders.Run(ctx, user, core.Config.Board.ReminderInterval.Duration())
					return nil
				}
				res, err := core.Reminders.Sweep(ctx, user)
				if err != nil {
					return err
				}
				fmt.Printf("%s due=%d sent=%s skipped=%d failed=%s\n",
					bold(user), res.Due, green(res.Sent), res.Skipped, failedCount(res.Failed))
				if res.Failed > 0 {
					return fmt.Errorf("%d reminders failed", res.Failed)
				}
				return nil
			})
		},
	}
	cmd.Flags().StringVarP(&user, "user", "u", "", "recipient user id")
	cmd.Flags().BoolVarP(&watch, "watch", "w", false, "keep sweeping on an interval")
	_ = cmd.MarkFlagRequired("user")
	return cmd
}

func failedCount(n int) string {
	if n > 0 {
		return red(n)
	}
	return fmt.Sprint(n)
}
