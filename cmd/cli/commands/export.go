package commands

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/jakechorley/soldier-roster/pkg/core/services"
)

// ExportCmd creates the export command
func ExportCmd(app *AppContext) *cobra.Command {
	var format, soldierID, outPath string

	cmd := &cobra.Command{
		Use:   "export <run_id>",
		Short: "Export a run's schedule as a workbook or a calendar",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if f := services.ExportFormat(format); f != services.FormatXLSX && f != services.FormatICS {
				return fmt.Errorf("%w: %s", services.ErrUnknownFormat, format)
			}

			var w io.Writer = cmd.OutOrStdout()
			if outPath != "-" {
				f, err := os.Create(outPath)
				if err != nil {
					return fmt.Errorf("failed to create output file: %w", err)
				}
				defer f.Close()
				w = f
			}

			err := services.ExportRun(app.Ctx, app.Database, args[0], services.ExportFormat(format), soldierID, w, app.Logger)
			if err != nil {
				return err
			}

			if outPath != "-" {
				fmt.Fprintf(cmd.ErrOrStderr(), "\n✓ Exported run %s to %s\n\n", args[0], outPath)
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&format, "format", "f", string(services.FormatXLSX), "Export format: xlsx or ics")
	cmd.Flags().StringVar(&soldierID, "soldier", "", "Only export this soldier (ics)")
	cmd.Flags().StringVarP(&outPath, "out", "o", "-", "Output file, - for stdout")
	return cmd
}
