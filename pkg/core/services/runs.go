package services

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/jakechorley/soldier-roster/pkg/core/model"
	"github.com/jakechorley/soldier-roster/pkg/db"
)

// ErrNoSchedule is returned when a run did not commit a schedule
var ErrNoSchedule = errors.New("run has no committed schedule")

// RunReadStore is the store needed to read runs and their assignments
type RunReadStore interface {
	GetRun(ctx context.Context, id string) (*db.SchedulingRun, error)
	GetAssignments(ctx context.Context, runID string) ([]db.Assignment, error)
}

// RunSummary is the listing view of a run
type RunSummary struct {
	ID           string
	EventID      string
	Status       model.RunStatus
	EngineStatus string
	Objective    float64
	Gap          float64
	CreatedAt    string
	StartedAt    string
	CompletedAt  string
}

// RunDetail is a run with its report and, for SUCCESS and FEASIBLE, its schedule
type RunDetail struct {
	Summary  RunSummary
	Report   model.Report
	Schedule *model.Schedule
}

// ListRuns returns the runs of an event, newest first
func ListRuns(ctx context.Context, database db.RunStore, eventID string, logger *zap.Logger) ([]RunSummary, error) {
	runs, err := database.ListRuns(ctx, eventID)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch runs: %w", err)
	}

	summaries := make([]RunSummary, len(runs))
	for i, r := range runs {
		summaries[i] = summarize(r)
	}

	logger.Debug("Runs fetched", zap.String("event_id", eventID), zap.Int("count", len(summaries)))
	return summaries, nil
}

// ShowRun returns one run with its decoded report and committed schedule
func ShowRun(ctx context.Context, database RunReadStore, runID string, logger *zap.Logger) (*RunDetail, error) {
	run, err := getRun(ctx, database, runID)
	if err != nil {
		return nil, err
	}

	report, err := decodeReport(run.Report)
	if err != nil {
		return nil, err
	}

	detail := &RunDetail{Summary: summarize(*run), Report: report}
	if model.RunStatus(run.Status).HasAssignments() {
		schedule, err := loadSchedule(ctx, database, run)
		if err != nil {
			return nil, err
		}
		detail.Schedule = schedule
	}

	logger.Debug("Run fetched",
		zap.String("run_id", runID),
		zap.String("status", run.Status),
		zap.Bool("has_schedule", detail.Schedule != nil))
	return detail, nil
}

// LoadSchedule returns the committed schedule of a run, or ErrNoSchedule
func LoadSchedule(ctx context.Context, database RunReadStore, runID string) (*model.Schedule, error) {
	run, err := getRun(ctx, database, runID)
	if err != nil {
		return nil, err
	}
	if !model.RunStatus(run.Status).HasAssignments() {
		return nil, fmt.Errorf("%w: run %s is %s", ErrNoSchedule, runID, run.Status)
	}
	return loadSchedule(ctx, database, run)
}

func getRun(ctx context.Context, database RunReadStore, runID string) (*db.SchedulingRun, error) {
	run, err := database.GetRun(ctx, runID)
	if errors.Is(err, db.ErrNotFound) {
		return nil, fmt.Errorf("%w: %s", ErrRunNotFound, runID)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to fetch run: %w", err)
	}
	return run, nil
}

func loadSchedule(ctx context.Context, database RunReadStore, run *db.SchedulingRun) (*model.Schedule, error) {
	snapshot, err := decodeSnapshot(run.Snapshot)
	if err != nil {
		return nil, err
	}

	records, err := database.GetAssignments(ctx, run.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch assignments: %w", err)
	}

	assignments, err := assignmentsFromDB(records)
	if err != nil {
		return nil, err
	}

	return &model.Schedule{
		Event:       snapshot.Event,
		Soldiers:    snapshot.Soldiers,
		Assignments: assignments,
	}, nil
}

func summarize(r db.SchedulingRun) RunSummary {
	return RunSummary{
		ID:           r.ID,
		EventID:      r.EventID,
		Status:       model.RunStatus(r.Status),
		EngineStatus: r.EngineStatus,
		Objective:    r.Objective,
		Gap:          r.Gap,
		CreatedAt:    r.CreatedAt,
		StartedAt:    r.StartedAt,
		CompletedAt:  r.CompletedAt,
	}
}
