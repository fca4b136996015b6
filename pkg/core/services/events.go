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

// ErrInvalidEvent is returned when an event cannot be stored at all
var ErrInvalidEvent = errors.New("invalid event")

// CreateEventResult holds the stored event and its feasibility report
type CreateEventResult struct {
	Event  model.Event
	Report model.Report
}

// CreateEvent validates an event and stores it.
// Block-arithmetic errors do not stop the event being stored; scheduling runs are gated on them instead.
func CreateEvent(ctx context.Context, database db.EventStore, event model.Event, logger *zap.Logger, dryRun bool) (*CreateEventResult, error) {
	if event.Name == "" {
		return nil, fmt.Errorf("%w: name is required", ErrInvalidEvent)
	}
	if event.End.Before(event.Start) {
		return nil, fmt.Errorf("%w: end date %s is before start date %s", ErrInvalidEvent,
			event.End.Format(model.DateLayout), event.Start.Format(model.DateLayout))
	}

	if event.ID == "" {
		event.ID = uuid.New().String()
	}

	report := feasibility.Validate(event)
	logger.Debug("Event validated",
		zap.String("event_id", event.ID),
		zap.Bool("is_valid", report.IsValid),
		zap.Int("feasibility_score", report.Stats.FeasibilityScore))

	if dryRun {
		logger.Debug("Dry run: skipping event insert")
		return &CreateEventResult{Event: event, Report: report}, nil
	}

	record := eventToDB(event)
	record.CreatedAt = time.Now().UTC().Format(time.RFC3339)
	if err := database.InsertEvent(ctx, &record); err != nil {
		return nil, fmt.Errorf("failed to insert event: %w", err)
	}

	logger.Debug("Event created", zap.String("event_id", event.ID), zap.String("name", event.Name))
	return &CreateEventResult{Event: event, Report: report}, nil
}

// ListEvents returns every stored event
func ListEvents(ctx context.Context, database db.EventStore, logger *zap.Logger) ([]model.Event, error) {
	records, err := database.ListEvents(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch events: %w", err)
	}

	events := make([]model.Event, 0, len(records))
	for _, r := range records {
		event, err := eventFromDB(r)
		if err != nil {
			return nil, err
		}
		events = append(events, event)
	}

	logger.Debug("Events fetched", zap.Int("count", len(events)))
	return events, nil
}
