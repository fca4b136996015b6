package commands

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/jakechorley/soldier-roster/pkg/core/model"
	"github.com/jakechorley/soldier-roster/pkg/core/services"
	"github.com/jakechorley/soldier-roster/pkg/importer"
)

// RosterCmd creates the roster command group
func RosterCmd(app *AppContext) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "roster",
		Short: "Add soldiers and unavailability to an event",
	}
	cmd.AddCommand(rosterImportCmd(app), rosterUnavailableCmd(app))
	return cmd
}

func rosterImportCmd(app *AppContext) *cobra.Command {
	var fromSheet bool
	var spreadsheet, tab string
	var dryRun bool

	cmd := &cobra.Command{
		Use:   "import <event_id> [roster.yaml]",
		Short: "Import soldiers from a YAML roster file or the roster spreadsheet tab",
		Args:  cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			eventID := args[0]
			snapshot, err := services.LoadSnapshot(app.Ctx, app.Database, eventID)
			if err != nil {
				return err
			}

			var soldiers []model.Soldier
			switch {
			case fromSheet:
				soldiers, err = soldiersFromSheet(app, spreadsheet, tab, snapshot.Event)
			case len(args) == 2:
				soldiers, err = soldiersFromFile(args[1], snapshot.Event)
			default:
				return fmt.Errorf("pass a roster file or --sheet")
			}
			if err != nil {
				return err
			}

			result, err := services.ImportRoster(app.Ctx, app.Database, eventID, soldiers,
				app.Options.Policy.WeekendDays, app.Logger, dryRun)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if dryRun {
				fmt.Fprintf(out, "\n✓ Roster checked (dry run, nothing stored)\n\n")
			} else {
				fmt.Fprintf(out, "\n✓ Roster imported successfully!\n\n")
			}
			fmt.Fprintf(out, "Soldiers added:    %d\n", result.SoldiersAdded)
			fmt.Fprintf(out, "Unavailable dates: %d\n\n", result.ConstraintsAdded)
			printReport(out, result.Report)
			return nil
		},
	}

	cmd.Flags().BoolVar(&fromSheet, "sheet", false, "Read soldiers from the roster spreadsheet tab")
	cmd.Flags().StringVar(&spreadsheet, "spreadsheet", "", "Spreadsheet id (defaults to sheets.spreadsheetID)")
	cmd.Flags().StringVar(&tab, "tab", "", "Roster tab (defaults to sheets.rosterTab)")
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "Check the roster without storing it")
	return cmd
}

func soldiersFromFile(path string, event model.Event) ([]model.Soldier, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open roster file: %w", err)
	}
	defer f.Close()

	return importer.ParseRoster(f, event)
}

func soldiersFromSheet(app *AppContext, spreadsheet, tab string, event model.Event) ([]model.Soldier, error) {
	spreadsheetID, err := app.spreadsheetID(spreadsheet)
	if err != nil {
		return nil, err
	}
	if tab == "" {
		tab = app.Cfg.Sheets.RosterTab
	}
	if tab == "" {
		return nil, fmt.Errorf("no roster tab: pass --tab or set sheets.rosterTab in the config")
	}

	client, err := app.SheetsClient()
	if err != nil {
		return nil, err
	}
	return client.ListSoldiers(spreadsheetID, tab, event)
}

func rosterUnavailableCmd(app *AppContext) *cobra.Command {
	var dryRun bool

	cmd := &cobra.Command{
		Use:   "unavailable <event_id> <soldier_id> <calendar.ics|->",
		Short: "Record a soldier's unavailable days from an iCalendar file",
		Args:  cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			eventID, soldierID, path := args[0], args[1], args[2]

			snapshot, err := services.LoadSnapshot(app.Ctx, app.Database, eventID)
			if err != nil {
				return err
			}

			var r io.Reader = cmd.InOrStdin()
			if path != "-" {
				f, err := os.Open(path)
				if err != nil {
					return fmt.Errorf("failed to open calendar: %w", err)
				}
				defer f.Close()
				r = f
			}

			constraints, err := importer.ParseCalendar(r, snapshot.Event)
			if err != nil {
				return err
			}

			added, err := services.AddUnavailability(app.Ctx, app.Database, eventID, soldierID, constraints, app.Logger, dryRun)
			if err != nil {
				return err
			}

			fmt.Fprintf(cmd.OutOrStdout(), "\n✓ %d unavailable days recorded for %s\n\n", added, soldierID)
			return nil
		},
	}

	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "Parse the calendar without storing it")
	return cmd
}
