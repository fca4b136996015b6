package services

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jakechorley/soldier-roster/pkg/core/model"
	"github.com/jakechorley/soldier-roster/pkg/db"
)

// SnapshotStore is the read side needed to freeze a run's input
type SnapshotStore interface {
	GetEvent(ctx context.Context, id string) (*db.Event, error)
	GetSoldiers(ctx context.Context, eventID string) ([]db.Soldier, error)
	GetConstraints(ctx context.Context, eventID string) ([]db.Constraint, error)
}

// LoadSnapshot reads the event, roster and constraints as they are now
func LoadSnapshot(ctx context.Context, database SnapshotStore, eventID string) (model.Snapshot, error) {
	dbEvent, err := database.GetEvent(ctx, eventID)
	if err != nil {
		return model.Snapshot{}, fmt.Errorf("failed to fetch event: %w", err)
	}

	event, err := eventFromDB(*dbEvent)
	if err != nil {
		return model.Snapshot{}, err
	}

	dbSoldiers, err := database.GetSoldiers(ctx, eventID)
	if err != nil {
		return model.Snapshot{}, fmt.Errorf("failed to fetch soldiers: %w", err)
	}

	dbConstraints, err := database.GetConstraints(ctx, eventID)
	if err != nil {
		return model.Snapshot{}, fmt.Errorf("failed to fetch constraints: %w", err)
	}

	soldiers, err := soldiersFromDB(dbSoldiers, dbConstraints)
	if err != nil {
		return model.Snapshot{}, err
	}

	return model.Snapshot{Event: event, Soldiers: soldiers}, nil
}

func eventFromDB(e db.Event) (model.Event, error) {
	start, err := time.Parse(model.DateLayout, e.StartDate)
	if err != nil {
		return model.Event{}, fmt.Errorf("failed to parse start date of event %s: %w", e.ID, err)
	}
	end, err := time.Parse(model.DateLayout, e.EndDate)
	if err != nil {
		return model.Event{}, fmt.Errorf("failed to parse end date of event %s: %w", e.ID, err)
	}

	return model.Event{
		ID:                     e.ID,
		Name:                   e.Name,
		Start:                  start,
		End:                    end,
		MinRequiredPerDay:      e.MinRequiredPerDay,
		BaseDaysPerSoldier:     e.BaseDaysPerSoldier,
		HomeDaysPerSoldier:     e.HomeDaysPerSoldier,
		MaxConsecutiveBaseDays: e.MaxConsecutiveBaseDays,
		MaxConsecutiveHomeDays: e.MaxConsecutiveHomeDays,
		MinBaseBlockDays:       e.MinBaseBlockDays,
		ExceptionalBaseDays:    e.ExceptionalBaseDays,
	}, nil
}

func eventToDB(e model.Event) db.Event {
	return db.Event{
		ID:                     e.ID,
		Name:                   e.Name,
		StartDate:              e.Start.Format(model.DateLayout),
		EndDate:                e.End.Format(model.DateLayout),
		MinRequiredPerDay:      e.MinRequiredPerDay,
		BaseDaysPerSoldier:     e.BaseDaysPerSoldier,
		HomeDaysPerSoldier:     e.HomeDaysPerSoldier,
		MaxConsecutiveBaseDays: e.MaxConsecutiveBaseDays,
		MaxConsecutiveHomeDays: e.MaxConsecutiveHomeDays,
		MinBaseBlockDays:       e.MinBaseBlockDays,
		ExceptionalBaseDays:    e.ExceptionalBaseDays,
	}
}

func soldiersFromDB(dbSoldiers []db.Soldier, dbConstraints []db.Constraint) ([]model.Soldier, error) {
	bySoldier := make(map[string][]model.Constraint)
	for _, c := range dbConstraints {
		date, err := time.Parse(model.DateLayout, c.Date)
		if err != nil {
			return nil, fmt.Errorf("failed to parse constraint date for soldier %s: %w", c.SoldierID, err)
		}
		bySoldier[c.SoldierID] = append(bySoldier[c.SoldierID], model.Constraint{
			Date:        date,
			Category:    c.Category,
			Description: c.Description,
		})
	}

	soldiers := make([]model.Soldier, len(dbSoldiers))
	for i, s := range dbSoldiers {
		soldiers[i] = model.Soldier{
			ID:            s.ID,
			Name:          s.Name,
			IsExceptional: s.IsExceptional,
			IsWeekendOnly: s.IsWeekendOnly,
			Constraints:   bySoldier[s.ID],
		}
	}
	return soldiers, nil
}

func assignmentsToDB(runID string, assignments []model.Assignment) []db.Assignment {
	out := make([]db.Assignment, len(assignments))
	for i, a := range assignments {
		out[i] = db.Assignment{
			RunID:     runID,
			SoldierID: a.SoldierID,
			Date:      a.Date.Format(model.DateLayout),
			OnBase:    a.State == model.OnBase,
		}
	}
	return out
}

func assignmentsFromDB(assignments []db.Assignment) ([]model.Assignment, error) {
	out := make([]model.Assignment, len(assignments))
	for i, a := range assignments {
		date, err := time.Parse(model.DateLayout, a.Date)
		if err != nil {
			return nil, fmt.Errorf("failed to parse assignment date: %w", err)
		}
		state := model.AtHome
		if a.OnBase {
			state = model.OnBase
		}
		out[i] = model.Assignment{SoldierID: a.SoldierID, Date: date, State: state}
	}
	return out, nil
}

func decodeSnapshot(data []byte) (model.Snapshot, error) {
	var snapshot model.Snapshot
	if len(data) == 0 {
		return snapshot, fmt.Errorf("run has no snapshot")
	}
	if err := json.Unmarshal(data, &snapshot); err != nil {
		return snapshot, fmt.Errorf("failed to decode run snapshot: %w", err)
	}
	return snapshot, nil
}

func decodeReport(data []byte) (model.Report, error) {
	var report model.Report
	if len(data) == 0 {
		return report, nil
	}
	if err := json.Unmarshal(data, &report); err != nil {
		return report, fmt.Errorf("failed to decode run report: %w", err)
	}
	return report, nil
}
