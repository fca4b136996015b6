package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/jakechorley/soldier-roster/pkg/clients/sheetsclient"
	"github.com/jakechorley/soldier-roster/pkg/core/services"
)

// PublishCmd creates the publish command
func PublishCmd(app *AppContext) *cobra.Command {
	var spreadsheet string
	var dryRun bool

	cmd := &cobra.Command{
		Use:   "publish <run_id>",
		Short: "Publish a run's schedule to a tab of the roster spreadsheet",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			spreadsheetID, err := app.spreadsheetID(spreadsheet)
			if err != nil {
				return err
			}

			var publisher services.RosterPublisher
			if !dryRun {
				client, err := app.SheetsClient()
				if err != nil {
					return err
				}
				publisher = client
			}

			schedule, err := services.PublishRun(app.Ctx, app.Database, publisher, spreadsheetID, args[0], app.Logger, dryRun)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if dryRun {
				fmt.Fprintf(out, "\n✓ Dry run: would publish %d soldiers to tab %q\n\n",
					len(schedule.Soldiers), sheetsclient.TabTitle(schedule.Event))
				printSchedule(out, *schedule)
				return nil
			}
			fmt.Fprintf(out, "\n✓ Schedule published successfully!\n\n")
			fmt.Fprintf(out, "Tab: %s\n\n", sheetsclient.TabTitle(schedule.Event))
			return nil
		},
	}

	cmd.Flags().StringVar(&spreadsheet, "spreadsheet", "", "Spreadsheet id (defaults to sheets.spreadsheetID)")
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "Show the schedule without writing to the spreadsheet")
	return cmd
}
