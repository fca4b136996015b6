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
)

var weekend = []time.Weekday{time.Friday, time.Saturday}

func TestImportRoster(t *testing.T) {
	mock := newMockDB()
	event := smallEvent()
	seed(mock, event, 1, "")

	soldiers := []model.Soldier{
		{
			ID:   "s2",
			Name: "Bea",
			Constraints: []model.Constraint{
				{Date: event.Start.AddDate(0, 0, 1), Category: "leave"},
			},
		},
		{ID: "s3", Name: "Cal", IsExceptional: true},
	}

	result, err := ImportRoster(context.Background(), mock, event.ID, soldiers, weekend, zap.NewNop(), false)
	require.NoError(t, err)

	assert.Equal(t, 2, result.SoldiersAdded)
	assert.Equal(t, 1, result.ConstraintsAdded)
	assert.True(t, result.Report.IsValid)

	require.Len(t, mock.soldiers, 3)
	assert.Equal(t, "event-1", mock.soldiers[2].EventID)
	assert.True(t, mock.soldiers[2].IsExceptional)
	require.Len(t, mock.constraints, 1)
	assert.Equal(t, "s2", mock.constraints[0].SoldierID)
	assert.Equal(t, "2025-06-02", mock.constraints[0].Date)
}

func TestImportRoster_DuplicateSoldier(t *testing.T) {
	mock := newMockDB()
	event := smallEvent()
	seed(mock, event, 1, "")

	_, err := ImportRoster(context.Background(), mock, event.ID, []model.Soldier{{ID: "s1"}}, weekend, zap.NewNop(), false)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "already on the roster")
	assert.Len(t, mock.soldiers, 1)
}

func TestImportRoster_ReportsShortDays(t *testing.T) {
	mock := newMockDB()
	event := smallEvent()
	event.MinRequiredPerDay = 4
	seed(mock, event, 0, "")

	soldiers := []model.Soldier{
		{ID: "s1", Constraints: []model.Constraint{{Date: event.Start}}},
		{ID: "s2"},
	}

	result, err := ImportRoster(context.Background(), mock, event.ID, soldiers, weekend, zap.NewNop(), true)
	require.NoError(t, err)

	assert.False(t, result.Report.IsValid)
	require.Len(t, result.Report.Errors, 1)
	assert.Contains(t, result.Report.Errors[0], "2025-06-01")
	assert.Empty(t, mock.soldiers, "dry run should not insert")
}

func TestImportRoster_InsertError(t *testing.T) {
	mock := newMockDB()
	seed(mock, smallEvent(), 0, "")
	mock.insertSoldiersErr = errors.New("disk full")

	_, err := ImportRoster(context.Background(), mock, "event-1", []model.Soldier{{ID: "s1"}}, weekend, zap.NewNop(), false)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to insert soldiers")
}

func TestImportRoster_UnknownEvent(t *testing.T) {
	_, err := ImportRoster(context.Background(), newMockDB(), "missing", nil, weekend, zap.NewNop(), false)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to fetch event")
}

func TestAddUnavailability(t *testing.T) {
	mock := newMockDB()
	event := smallEvent()
	seed(mock, event, 2, "")

	constraints := []model.Constraint{
		{Date: event.Start, Category: "calendar", Description: "Wedding"},
		{Date: event.Start.AddDate(0, 0, 1), Category: "calendar", Description: "Wedding"},
	}

	n, err := AddUnavailability(context.Background(), mock, event.ID, "s2", constraints, zap.NewNop(), false)
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	require.Len(t, mock.constraints, 2)
	assert.Equal(t, "Wedding", mock.constraints[1].Description)
}

func TestAddUnavailability_UnknownSoldier(t *testing.T) {
	mock := newMockDB()
	seed(mock, smallEvent(), 1, "")

	_, err := AddUnavailability(context.Background(), mock, "event-1", "s9", nil, zap.NewNop(), false)
	assert.ErrorIs(t, err, ErrUnknownSoldier)
}
