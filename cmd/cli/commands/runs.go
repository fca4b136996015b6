package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/jakechorley/soldier-roster/pkg/core/services"
)

// RunsCmd creates the runs command group
func RunsCmd(app *AppContext) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "runs",
		Short: "Inspect scheduling runs",
	}
	cmd.AddCommand(runsListCmd(app), runsShowCmd(app))
	return cmd
}

func runsListCmd(app *AppContext) *cobra.Command {
	return &cobra.Command{
		Use:   "list <event_id>",
		Short: "List the runs of an event, newest first",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			runs, err := services.ListRuns(app.Ctx, app.Database, args[0], app.Logger)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if len(runs) == 0 {
				fmt.Fprintf(out, "No runs found for event %s\n", args[0])
				return nil
			}

			fmt.Fprintln(out)
			for _, r := range runs {
				fmt.Fprintf(out, "  %s  %s  created %s", StatusBadge(r.Status), r.ID, r.CreatedAt)
				if r.CompletedAt != "" {
					fmt.Fprintf(out, "  objective %.0f  gap %.2f%%", r.Objective, r.Gap*100)
				}
				fmt.Fprintln(out)
			}
			fmt.Fprintln(out)
			return nil
		},
	}
}

func runsShowCmd(app *AppContext) *cobra.Command {
	var showGrid bool

	cmd := &cobra.Command{
		Use:   "show <run_id>",
		Short: "Show a run's report and schedule",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			detail, err := services.ShowRun(app.Ctx, app.Database, args[0], app.Logger)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			s := detail.Summary
			fmt.Fprintf(out, "\n%s  run %s\n\n", StatusBadge(s.Status), s.ID)
			fmt.Fprintf(out, "Event:     %s\n", s.EventID)
			fmt.Fprintf(out, "Created:   %s\n", s.CreatedAt)
			if s.StartedAt != "" {
				fmt.Fprintf(out, "Started:   %s\n", s.StartedAt)
			}
			if s.CompletedAt != "" {
				fmt.Fprintf(out, "Completed: %s\n", s.CompletedAt)
			}
			if s.EngineStatus != "" {
				fmt.Fprintf(out, "Engine:    %s, objective %.0f, gap %.2f%%\n", s.EngineStatus, s.Objective, s.Gap*100)
			}
			fmt.Fprintln(out)

			printReport(out, detail.Report)
			if detail.Schedule != nil && showGrid {
				printSchedule(out, *detail.Schedule)
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&showGrid, "grid", true, "Print the schedule grid")
	return cmd
}
