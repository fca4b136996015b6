package services

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/jakechorley/soldier-roster/pkg/core/feasibility"
	"github.com/jakechorley/soldier-roster/pkg/core/model"
)

// ValidateEventResult holds the checks a scheduling run is gated on
type ValidateEventResult struct {
	Event    model.Event
	Soldiers int
	// Parameters is the block arithmetic of the event alone
	Parameters model.Report
	// Roster compares daily availability with the staffing floor
	Roster model.Report
	// Combined merges both; runs refuse to start when it is invalid
	Combined model.Report
}

// ValidateEvent runs the feasibility checks on the current event and roster
func ValidateEvent(ctx context.Context, database SnapshotStore, eventID string, weekendDays []time.Weekday, logger *zap.Logger) (*ValidateEventResult, error) {
	snapshot, err := LoadSnapshot(ctx, database, eventID)
	if err != nil {
		return nil, err
	}

	params, roster, combined := validateSnapshot(snapshot, weekendDays)
	logger.Debug("Event validated",
		zap.String("event_id", eventID),
		zap.Bool("parameters_valid", params.IsValid),
		zap.Bool("roster_valid", roster.IsValid),
		zap.Int("feasibility_score", params.Stats.FeasibilityScore))

	return &ValidateEventResult{
		Event:      snapshot.Event,
		Soldiers:   len(snapshot.Soldiers),
		Parameters: params,
		Roster:     roster,
		Combined:   combined,
	}, nil
}

func validateSnapshot(snapshot model.Snapshot, weekendDays []time.Weekday) (params, roster, combined model.Report) {
	params = feasibility.Validate(snapshot.Event)
	roster = feasibility.ValidateRoster(snapshot.Event, snapshot.Soldiers, weekendDays)

	combined = params
	combined.Errors = append([]string(nil), params.Errors...)
	combined.Warnings = append([]string(nil), params.Warnings...)
	combined.Suggestions = append([]string(nil), params.Suggestions...)
	combined.Merge(roster)
	return params, roster, combined
}
