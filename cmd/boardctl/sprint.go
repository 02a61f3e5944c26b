package main

import (
	"context"
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/LucasSckenal/nexo-sub000/internal/app"
	"github.com/LucasSckenal/nexo-sub000/internal/sprint"
)

func expireCmd() *cobra.Command {
	var project string
	var watch bool
	cmd := &cobra.Command{
		Use:   "expire",
		Short: "Complete the project's active sprint if its end date has passed",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withCore(cmd, func(ctx context.Context, core *app.Core) error {
				if watch {
					core.SprintMgr.RunExpiry(ctx, project, core.Config.Board.ExpiryInterval.Duration())
					return nil
				}
				completed, err := core.SprintMgr.CheckActive(ctx, project)
				if err != nil {
					return err
				}
				if completed {
					fmt.Printf("%s sprint expired and completed\n", yellow("!"))
				} else {
					fmt.Println(dim("no expired sprint"))
				}
				return nil
			})
		},
	}
	cmd.Flags().StringVarP(&project, "project", "p", "", "project id")
	cmd.Flags().BoolVarP(&watch, "watch", "w", false, "keep checking every BOARD_EXPIRY_INTERVAL")
	_ = cmd.MarkFlagRequired("project")
	return cmd
}

func sprintCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "sprint",
		Short: "Start sprints and show the active one",
	}
	cmd.AddCommand(sprintStartCmd())
	cmd.AddCommand(sprintStatusCmd())
	return cmd
}

func sprintStartCmd() *cobra.Command {
	var project, name string
	var days int
	cmd := &cobra.Command{
		Use:   "start",
		Short: "Start a sprint, completing the current one first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withCore(cmd, func(ctx context.Context, core *app.Core) error {
				s, err := core.SprintMgr.Start(ctx, project, name, days)
				if err != nil {
					return err
				}
				fmt.Printf("%s %s started, ends %s %s\n",
					green("✓"), bold(s.Name), s.EndDate.Format("2006-01-02 15:04 MST"), dim("("+s.ID+")"))
				return nil
			})
		},
	}
	cmd.Flags().StringVarP(&project, "project", "p", "", "project id")
	cmd.Flags().StringVarP(&name, "name", "n", "", "sprint name")
	cmd.Flags().IntVarP(&days, "days", "d", 14, "duration in days")
	_ = cmd.MarkFlagRequired("project")
	_ = cmd.MarkFlagRequired("name")
	return cmd
}

func sprintStatusCmd() *cobra.Command {
	var project string
	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show the active sprint and its countdown",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withCore(cmd, func(ctx context.Context, core *app.Core) error {
				st, err := core.SprintMgr.Status(ctx, project)
				if errors.Is(err, sprint.ErrNoActiveSprint) {
					fmt.Println(dim("no active sprint"))
					return nil
				}
				if err != nil {
					return err
				}
				remaining := green(st.Remaining)
				if st.Remaining == "ended" {
					remaining = red(st.Remaining)
				}
				fmt.Printf("%s  %s  %s\n", bold(st.Sprint.Name), remaining, dim(st.Sprint.ID))
				return nil
			})
		},
	}
	cmd.Flags().StringVarP(&project, "project", "p", "", "project id")
	_ = cmd.MarkFlagRequired("project")
	return cmd
}
