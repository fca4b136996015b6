package services

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"go.uber.org/zap"

	"github.com/jakechorley/soldier-roster/pkg/export"
)

// ExportFormat selects the file format of an exported schedule
type ExportFormat string

const (
	FormatXLSX ExportFormat = "xlsx"
	FormatICS  ExportFormat = "ics"
)

// ErrUnknownFormat is returned for an export format other than xlsx or ics
var ErrUnknownFormat = errors.New("unknown export format")

// ExportRun writes the committed schedule of a run to w.
// For the ics format an empty soldierID exports every soldier's base blocks.
func ExportRun(
	ctx context.Context,
	database RunReadStore,
	runID string,
	format ExportFormat,
	soldierID string,
	w io.Writer,
	logger *zap.Logger,
) error {
	schedule, err := LoadSchedule(ctx, database, runID)
	if err != nil {
		return err
	}

	switch format {
	case FormatXLSX:
		if err := export.WriteXLSX(w, *schedule); err != nil {
			return fmt.Errorf("failed to export workbook: %w", err)
		}
	case FormatICS:
		if err := export.WriteICS(w, *schedule, soldierID, time.Now().UTC()); err != nil {
			return fmt.Errorf("failed to export calendar: %w", err)
		}
	default:
		return fmt.Errorf("%w: %s", ErrUnknownFormat, format)
	}

	logger.Debug("Run exported",
		zap.String("run_id", runID),
		zap.String("format", string(format)),
		zap.String("soldier_id", soldierID))
	return nil
}
