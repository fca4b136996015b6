package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/jakechorley/soldier-roster/pkg/core/interpret"
	"github.com/jakechorley/soldier-roster/pkg/core/model"
	"github.com/jakechorley/soldier-roster/pkg/db"
)

// ScheduleStore is the store needed to create and execute a run
type ScheduleStore interface {
	ManagerStore
	InsertRun(ctx context.Context, run *db.SchedulingRun) error
	GetAssignments(ctx context.Context, runID string) ([]db.Assignment, error)
}

// ScheduleResult is the outcome of scheduling an event
type ScheduleResult struct {
	// RunID is empty for a dry run
	RunID  string
	Status model.RunStatus
	// Outcome is nil when the run was cancelled
	Outcome  *interpret.Outcome
	Schedule *model.Schedule
}

// RunSchedule creates a run for the event and waits for it to finish.
// If ctx ends first the run is cancelled and reported CANCELLED.
// A dry run executes the pipeline on the current roster without creating a run.
func RunSchedule(
	ctx context.Context,
	database ScheduleStore,
	manager *Manager,
	eventID string,
	ignoreValidation bool,
	logger *zap.Logger,
	dryRun bool,
) (*ScheduleResult, error) {
	if dryRun {
		return dryRunSchedule(ctx, database, manager, eventID, ignoreValidation, logger)
	}

	run := &db.SchedulingRun{
		ID:        uuid.New().String(),
		EventID:   eventID,
		Status:    string(model.RunPending),
		CreatedAt: time.Now().UTC().Format(time.RFC3339),
	}
	if err := database.InsertRun(ctx, run); err != nil {
		return nil, fmt.Errorf("failed to insert run: %w", err)
	}
	logger.Debug("Run created", zap.String("run_id", run.ID), zap.String("event_id", eventID))

	if err := manager.Start(ctx, run.ID, ignoreValidation); err != nil {
		return nil, fmt.Errorf("failed to start run: %w", err)
	}

	update, err := manager.Wait(ctx, run.ID)
	if err != nil {
		if !errors.Is(err, context.Canceled) && !errors.Is(err, context.DeadlineExceeded) {
			return nil, err
		}
		logger.Info("Cancelling run", zap.String("run_id", run.ID))
		if cancelErr := manager.Cancel(run.ID); cancelErr != nil && !errors.Is(cancelErr, ErrRunNotFound) {
			return nil, cancelErr
		}
		update, err = manager.Wait(context.Background(), run.ID)
		if err != nil {
			return nil, err
		}
	}

	result := &ScheduleResult{RunID: run.ID, Status: update.Status, Outcome: update.Outcome}
	if update.Err != nil && update.Outcome == nil {
		return result, fmt.Errorf("run %s failed: %w", run.ID, update.Err)
	}

	if update.Status.HasAssignments() {
		schedule, err := LoadSchedule(context.WithoutCancel(ctx), database, run.ID)
		if err != nil {
			return nil, err
		}
		result.Schedule = schedule
	}
	return result, nil
}

func dryRunSchedule(ctx context.Context, database SnapshotStore, manager *Manager, eventID string, ignoreValidation bool, logger *zap.Logger) (*ScheduleResult, error) {
	snapshot, err := LoadSnapshot(ctx, database, eventID)
	if err != nil {
		return nil, err
	}

	opts := manager.opts
	opts.IgnoreValidation = ignoreValidation

	logger.Debug("Dry run: executing without creating a run", zap.String("event_id", eventID))
	outcome, err := manager.execute(ctx, snapshot, opts, logger)
	if err != nil {
		return nil, err
	}

	result := &ScheduleResult{Status: outcome.Status, Outcome: outcome}
	if outcome.Status.HasAssignments() {
		result.Schedule = &model.Schedule{
			Event:       snapshot.Event,
			Soldiers:    snapshot.Soldiers,
			Assignments: outcome.Assignments,
		}
	}
	return result, nil
}
