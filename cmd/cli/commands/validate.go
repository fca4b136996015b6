package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/jakechorley/soldier-roster/pkg/core/model"
	"github.com/jakechorley/soldier-roster/pkg/core/services"
)

// ValidateCmd creates the validate command
func ValidateCmd(app *AppContext) *cobra.Command {
	return &cobra.Command{
		Use:   "validate <event_id>",
		Short: "Check an event and its roster for feasibility without solving",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			result, err := services.ValidateEvent(app.Ctx, app.Database, args[0], app.Options.Policy.WeekendDays, app.Logger)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "\n%s  %s, %d soldiers\n\n",
				validityBadge(result.Combined.IsValid), result.Event.Name, result.Soldiers)

			fmt.Fprintf(out, "%s\n\n", headingStyle.Render("Event parameters"))
			printReport(out, result.Parameters)
			fmt.Fprintf(out, "%s\n\n", headingStyle.Render("Roster"))
			printReport(out, result.Roster)
			return nil
		},
	}
}

func validityBadge(valid bool) string {
	if valid {
		return StatusBadge(model.RunSuccess)
	}
	return StatusBadge(model.RunNoSolution)
}
