package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/jakechorley/soldier-roster/pkg/core/model"
	"github.com/jakechorley/soldier-roster/pkg/db"
)

// exampleAEvent needs more consecutive home days than it allows
func exampleAEvent() model.Event {
	start := time.Date(2025, 3, 2, 0, 0, 0, 0, time.UTC)
	return model.Event{
		ID:                     "event-a",
		Name:                   "Example A",
		Start:                  start,
		End:                    start.AddDate(0, 0, 27),
		MinRequiredPerDay:      10,
		BaseDaysPerSoldier:     14,
		HomeDaysPerSoldier:     14,
		MaxConsecutiveBaseDays: 7,
		MaxConsecutiveHomeDays: 10,
		MinBaseBlockDays:       3,
	}
}

func TestCreateEvent_StoresEventAndReport(t *testing.T) {
	mock := newMockDB()
	event := smallEvent()
	event.ID = ""

	result, err := CreateEvent(context.Background(), mock, event, zap.NewNop(), false)
	require.NoError(t, err)

	assert.NotEmpty(t, result.Event.ID)
	assert.True(t, result.Report.IsValid)
	assert.Equal(t, 4, result.Report.Stats.TotalDays)

	stored, ok := mock.events[result.Event.ID]
	require.True(t, ok)
	assert.Equal(t, "2025-06-01", stored.StartDate)
	assert.Equal(t, "2025-06-04", stored.EndDate)
	assert.NotEmpty(t, stored.CreatedAt)
}

func TestCreateEvent_StoresInfeasibleEvent(t *testing.T) {
	mock := newMockDB()

	result, err := CreateEvent(context.Background(), mock, exampleAEvent(), zap.NewNop(), false)
	require.NoError(t, err)

	assert.False(t, result.Report.IsValid)
	require.NotEmpty(t, result.Report.Errors)
	assert.Contains(t, result.Report.Errors[0], "11 consecutive home days")
	assert.Contains(t, mock.events, "event-a")
}

func TestCreateEvent_DryRun(t *testing.T) {
	mock := newMockDB()

	result, err := CreateEvent(context.Background(), mock, smallEvent(), zap.NewNop(), true)
	require.NoError(t, err)
	assert.Equal(t, "event-1", result.Event.ID)
	assert.Empty(t, mock.events)
}

func TestCreateEvent_Invalid(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(e *model.Event)
	}{
		{"missing name", func(e *model.Event) { e.Name = "" }},
		{"end before start", func(e *model.Event) { e.End = e.Start.AddDate(0, 0, -1) }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			event := smallEvent()
			tt.mutate(&event)

			_, err := CreateEvent(context.Background(), newMockDB(), event, zap.NewNop(), false)
			assert.ErrorIs(t, err, ErrInvalidEvent)
		})
	}
}

func TestCreateEvent_InsertError(t *testing.T) {
	mock := newMockDB()
	mock.insertEventErr = errors.New("connection refused")

	_, err := CreateEvent(context.Background(), mock, smallEvent(), zap.NewNop(), false)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to insert event")
}

func TestListEvents(t *testing.T) {
	mock := newMockDB()
	mock.events["event-1"] = eventToDB(smallEvent())

	events, err := ListEvents(context.Background(), mock, zap.NewNop())
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, "Small", events[0].Name)
	assert.Equal(t, 4, events[0].TotalDays())
}

func TestListEvents_BadDate(t *testing.T) {
	mock := newMockDB()
	mock.events["broken"] = db.Event{ID: "broken", StartDate: "01/06/2025", EndDate: "2025-06-04"}

	_, err := ListEvents(context.Background(), mock, zap.NewNop())
	assert.Error(t, err)
}
