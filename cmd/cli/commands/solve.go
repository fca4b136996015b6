package commands

import (
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/jakechorley/soldier-roster/pkg/core/interpret"
	"github.com/jakechorley/soldier-roster/pkg/core/services"
)

// SolveCmd creates the solve command
func SolveCmd(app *AppContext) *cobra.Command {
	var dryRun, ignoreValidation, showGrid bool

	cmd := &cobra.Command{
		Use:   "solve <event_id>",
		Short: "Create a scheduling run for an event and wait for its result",
		Long: `Creates a run, freezes the current roster and searches for a minimum-penalty schedule.
Press Ctrl-C to cancel; the run is recorded as CANCELLED and nothing is committed.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(app.Ctx, os.Interrupt, syscall.SIGTERM)
			defer stop()

			app.Logger.Info("Solving", zap.String("event_id", args[0]), zap.Bool("dry_run", dryRun))
			result, err := services.RunSchedule(ctx, app.Database, app.Manager, args[0], ignoreValidation, app.Logger, dryRun)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "\n%s", StatusBadge(result.Status))
			if result.RunID != "" {
				fmt.Fprintf(out, "  run %s", result.RunID)
			}
			fmt.Fprintf(out, "\n\n")

			if result.Outcome != nil {
				printOutcome(out, result.Outcome)
			}
			if result.Schedule != nil && showGrid {
				printSchedule(out, *result.Schedule)
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "Solve without creating a run or committing assignments")
	cmd.Flags().BoolVar(&ignoreValidation, "ignore-validation", false, "Run the engine even if the feasibility check fails")
	cmd.Flags().BoolVar(&showGrid, "grid", false, "Print the schedule grid")
	return cmd
}

func printOutcome(w io.Writer, outcome *interpret.Outcome) {
	if outcome.EngineStatus != "" {
		fmt.Fprintf(w, "Engine:    %s\n", outcome.EngineStatus)
		fmt.Fprintf(w, "Objective: %.0f (lower bound %.0f, gap %.2f%%)\n\n",
			outcome.Objective, outcome.LowerBound, outcome.Gap*100)
	}
	printReport(w, outcome.Report)
}
