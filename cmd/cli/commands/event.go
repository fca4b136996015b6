package commands

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/jakechorley/soldier-roster/pkg/core/model"
	"github.com/jakechorley/soldier-roster/pkg/core/services"
)

// eventFlags are the event parameters accepted by event create
type eventFlags struct {
	id                  string
	name                string
	start               string
	end                 string
	minRequired         int
	baseDays            int
	homeDays            int
	maxBase             int
	maxHome             int
	minBlock            int
	exceptionalBaseDays int
}

func (f eventFlags) event() (model.Event, error) {
	start, err := time.Parse(model.DateLayout, f.start)
	if err != nil {
		return model.Event{}, fmt.Errorf("start must be a date (YYYY-MM-DD): %w", err)
	}
	end, err := time.Parse(model.DateLayout, f.end)
	if err != nil {
		return model.Event{}, fmt.Errorf("end must be a date (YYYY-MM-DD): %w", err)
	}

	return model.Event{
		ID:                     f.id,
		Name:                   f.name,
		Start:                  start,
		End:                    end,
		MinRequiredPerDay:      f.minRequired,
		BaseDaysPerSoldier:     f.baseDays,
		HomeDaysPerSoldier:     f.homeDays,
		MaxConsecutiveBaseDays: f.maxBase,
		MaxConsecutiveHomeDays: f.maxHome,
		MinBaseBlockDays:       f.minBlock,
		ExceptionalBaseDays:    f.exceptionalBaseDays,
	}, nil
}

// EventCmd creates the event command group
func EventCmd(app *AppContext) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "event",
		Short: "Create and list scheduling events",
	}
	cmd.AddCommand(eventCreateCmd(app), eventListCmd(app))
	return cmd
}

func eventCreateCmd(app *AppContext) *cobra.Command {
	var f eventFlags
	var dryRun bool

	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create an event and check its block arithmetic",
		RunE: func(cmd *cobra.Command, args []string) error {
			event, err := f.event()
			if err != nil {
				return err
			}

			result, err := services.CreateEvent(app.Ctx, app.Database, event, app.Logger, dryRun)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if dryRun {
				fmt.Fprintf(out, "\n✓ Event checked (dry run, nothing stored)\n\n")
			} else {
				fmt.Fprintf(out, "\n✓ Event created successfully!\n\n")
			}
			fmt.Fprintf(out, "Event ID: %s\n", result.Event.ID)
			fmt.Fprintf(out, "Name:     %s\n", result.Event.Name)
			fmt.Fprintf(out, "Window:   %s to %s (%d days)\n\n",
				result.Event.Start.Format(model.DateLayout),
				result.Event.End.Format(model.DateLayout),
				result.Event.TotalDays())

			if !result.Report.IsValid {
				fmt.Fprintf(out, "⚠️  The block arithmetic is infeasible; runs will be rejected until it is fixed.\n\n")
			}
			printReport(out, result.Report)
			return nil
		},
	}

	flags := cmd.Flags()
	flags.StringVar(&f.id, "id", "", "Event id (generated when empty)")
	flags.StringVar(&f.name, "name", "", "Event name")
	flags.StringVar(&f.start, "start", "", "First day (YYYY-MM-DD)")
	flags.StringVar(&f.end, "end", "", "Last day, inclusive (YYYY-MM-DD)")
	flags.IntVar(&f.minRequired, "min-required", 0, "Minimum soldiers on base per day")
	flags.IntVar(&f.baseDays, "base-days", 0, "Base days per soldier")
	flags.IntVar(&f.homeDays, "home-days", 0, "Home days per soldier")
	flags.IntVar(&f.maxBase, "max-base", 0, "Max consecutive base days")
	flags.IntVar(&f.maxHome, "max-home", 0, "Max consecutive home days")
	flags.IntVar(&f.minBlock, "min-block", 1, "Min base block length")
	flags.IntVar(&f.exceptionalBaseDays, "exceptional-base-days", 0, "Base day target for exceptional soldiers (0 keeps the regular target)")
	flags.BoolVar(&dryRun, "dry-run", false, "Validate without storing the event")
	for _, name := range []string{"name", "start", "end", "base-days", "home-days", "max-base", "max-home"} {
		_ = cmd.MarkFlagRequired(name)
	}

	return cmd
}

func eventListCmd(app *AppContext) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List events",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			events, err := services.ListEvents(app.Ctx, app.Database, app.Logger)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if len(events) == 0 {
				fmt.Fprintf(out, "No events found\n")
				return nil
			}

			fmt.Fprintf(out, "\n%s\n\n", headingStyle.Render(fmt.Sprintf("%d events", len(events))))
			for _, e := range events {
				fmt.Fprintf(out, "  %s  %s  %s to %s  base %d / home %d, %d per day\n",
					e.ID, e.Name,
					e.Start.Format(model.DateLayout), e.End.Format(model.DateLayout),
					e.BaseDaysPerSoldier, e.HomeDaysPerSoldier, e.MinRequiredPerDay)
			}
			fmt.Fprintln(out)
			return nil
		},
	}
}
