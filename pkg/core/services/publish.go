package services

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/jakechorley/soldier-roster/pkg/core/model"
)

// RosterPublisher writes a schedule to a shared spreadsheet
type RosterPublisher interface {
	PublishRoster(spreadsheetID string, schedule model.Schedule) error
}

// PublishRun publishes the committed schedule of a run to a spreadsheet
func PublishRun(
	ctx context.Context,
	database RunReadStore,
	publisher RosterPublisher,
	spreadsheetID string,
	runID string,
	logger *zap.Logger,
	dryRun bool,
) (*model.Schedule, error) {
	schedule, err := LoadSchedule(ctx, database, runID)
	if err != nil {
		return nil, err
	}

	if dryRun {
		logger.Debug("Dry run: skipping publish",
			zap.String("run_id", runID),
			zap.Int("soldiers", len(schedule.Soldiers)))
		return schedule, nil
	}

	if err := publisher.PublishRoster(spreadsheetID, *schedule); err != nil {
		return nil, fmt.Errorf("failed to publish roster: %w", err)
	}

	logger.Debug("Roster published",
		zap.String("run_id", runID),
		zap.String("spreadsheet_id", spreadsheetID))
	return schedule, nil
}
