package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/jakechorley/soldier-roster/pkg/core/feasibility"
	"github.com/jakechorley/soldier-roster/pkg/core/model"
	"github.com/jakechorley/soldier-roster/pkg/db"
)

// ErrUnknownSoldier is returned when constraints name a soldier that is not on the event roster
var ErrUnknownSoldier = errors.New("soldier is not on the event roster")

// RosterImportStore is the store needed to add soldiers and constraints to an event
type RosterImportStore interface {
	SnapshotStore
	InsertSoldiers(ctx context.Context, soldiers []db.Soldier) error
	InsertConstraints(ctx context.Context, constraints []db.Constraint) error
}

// ImportRosterResult summarises an import and the roster check that followed it
type ImportRosterResult struct {
	SoldiersAdded    int
	ConstraintsAdded int
	// Report checks the whole roster of the event after the import
	Report model.Report
}

// ImportRoster adds soldiers with their unavailability to an event
func ImportRoster(
	ctx context.Context,
	database RosterImportStore,
	eventID string,
	soldiers []model.Soldier,
	weekendDays []time.Weekday,
	logger *zap.Logger,
	dryRun bool,
) (*ImportRosterResult, error) {
	logger.Debug("Importing roster", zap.String("event_id", eventID), zap.Int("soldiers", len(soldiers)))

	snapshot, err := LoadSnapshot(ctx, database, eventID)
	if err != nil {
		return nil, err
	}

	existing := make(map[string]bool, len(snapshot.Soldiers))
	for _, s := range snapshot.Soldiers {
		existing[s.ID] = true
	}

	var dbSoldiers []db.Soldier
	var dbConstraints []db.Constraint
	for _, s := range soldiers {
		if existing[s.ID] {
			return nil, fmt.Errorf("soldier %s is already on the roster of event %s", s.ID, eventID)
		}
		existing[s.ID] = true

		dbSoldiers = append(dbSoldiers, db.Soldier{
			ID:            s.ID,
			EventID:       eventID,
			Name:          s.Name,
			IsExceptional: s.IsExceptional,
			IsWeekendOnly: s.IsWeekendOnly,
		})
		dbConstraints = append(dbConstraints, constraintsToDB(eventID, s.ID, s.Constraints)...)
	}

	combined := append(snapshot.Soldiers, soldiers...)
	report := feasibility.ValidateRoster(snapshot.Event, combined, weekendDays)

	result := &ImportRosterResult{
		SoldiersAdded:    len(dbSoldiers),
		ConstraintsAdded: len(dbConstraints),
		Report:           report,
	}

	if dryRun {
		logger.Debug("Dry run: skipping roster insert")
		return result, nil
	}

	if err := database.InsertSoldiers(ctx, dbSoldiers); err != nil {
		return nil, fmt.Errorf("failed to insert soldiers: %w", err)
	}
	if err := database.InsertConstraints(ctx, dbConstraints); err != nil {
		return nil, fmt.Errorf("failed to insert constraints: %w", err)
	}

	logger.Debug("Roster imported",
		zap.Int("soldiers_added", result.SoldiersAdded),
		zap.Int("constraints_added", result.ConstraintsAdded),
		zap.Bool("roster_valid", report.IsValid))
	return result, nil
}

// AddUnavailability records constraints for one soldier already on the event roster
func AddUnavailability(
	ctx context.Context,
	database RosterImportStore,
	eventID string,
	soldierID string,
	constraints []model.Constraint,
	logger *zap.Logger,
	dryRun bool,
) (int, error) {
	soldiers, err := database.GetSoldiers(ctx, eventID)
	if err != nil {
		return 0, fmt.Errorf("failed to fetch soldiers: %w", err)
	}

	found := false
	for _, s := range soldiers {
		if s.ID == soldierID {
			found = true
			break
		}
	}
	if !found {
		return 0, fmt.Errorf("%w: %s", ErrUnknownSoldier, soldierID)
	}

	records := constraintsToDB(eventID, soldierID, constraints)
	logger.Debug("Adding unavailability",
		zap.String("soldier_id", soldierID),
		zap.Int("dates", len(records)))

	if dryRun {
		return len(records), nil
	}

	if err := database.InsertConstraints(ctx, records); err != nil {
		return 0, fmt.Errorf("failed to insert constraints: %w", err)
	}
	return len(records), nil
}

func constraintsToDB(eventID, soldierID string, constraints []model.Constraint) []db.Constraint {
	out := make([]db.Constraint, len(constraints))
	for i, c := range constraints {
		out[i] = db.Constraint{
			ID:          uuid.New().String(),
			EventID:     eventID,
			SoldierID:   soldierID,
			Date:        c.Date.Format(model.DateLayout),
			Category:    c.Category,
			Description: c.Description,
		}
	}
	return out
}
