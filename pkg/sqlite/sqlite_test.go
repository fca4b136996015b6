package sqlite

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jakechorley/soldier-roster/pkg/db"
)

func openTestDB(t *testing.T) *DB {
	t.Helper()
	d, err := Open(context.Background(), ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { d.Close() })
	return d
}

func seedEvent(t *testing.T, d *DB) *db.Event {
	t.Helper()
	event := &db.Event{
		ID:                     "event-1",
		Name:                   "Summer exercise",
		StartDate:              "2025-06-01",
		EndDate:                "2025-06-10",
		MinRequiredPerDay:      2,
		BaseDaysPerSoldier:     5,
		HomeDaysPerSoldier:     5,
		MaxConsecutiveBaseDays: 5,
		MaxConsecutiveHomeDays: 5,
		MinBaseBlockDays:       2,
		CreatedAt:              "2025-05-01T10:00:00Z",
	}
	require.NoError(t, d.InsertEvent(context.Background(), event))
	return event
}

func seedRun(t *testing.T, d *DB, eventID string) *db.SchedulingRun {
	t.Helper()
	run := &db.SchedulingRun{ID: "run-1", EventID: eventID, Status: "PENDING"}
	require.NoError(t, d.InsertRun(context.Background(), run))
	return run
}

func TestRunMigrations_Idempotent(t *testing.T) {
	d := openTestDB(t)

	require.NoError(t, d.RunMigrations(context.Background()))
	require.NoError(t, d.RunMigrations(context.Background()))
}

func TestEvent_InsertAndGet(t *testing.T) {
	d := openTestDB(t)
	ctx := context.Background()
	event := seedEvent(t, d)

	got, err := d.GetEvent(ctx, event.ID)
	require.NoError(t, err)
	assert.Equal(t, *event, *got)

	events, err := d.ListEvents(ctx)
	require.NoError(t, err)
	assert.Len(t, events, 1)
}

func TestEvent_GetNotFound(t *testing.T) {
	d := openTestDB(t)

	_, err := d.GetEvent(context.Background(), "missing")
	assert.ErrorIs(t, err, db.ErrNotFound)
}

func TestSoldiersAndConstraints(t *testing.T) {
	d := openTestDB(t)
	ctx := context.Background()
	event := seedEvent(t, d)

	soldiers := []db.Soldier{
		{ID: "s2", EventID: event.ID, Name: "Bea", IsWeekendOnly: true},
		{ID: "s1", EventID: event.ID, Name: "Avi", IsExceptional: true},
	}
	require.NoError(t, d.InsertSoldiers(ctx, soldiers))

	got, err := d.GetSoldiers(ctx, event.ID)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "s1", got[0].ID)
	assert.True(t, got[0].IsExceptional)
	assert.True(t, got[1].IsWeekendOnly)

	constraints := []db.Constraint{
		{ID: "c1", EventID: event.ID, SoldierID: "s1", Date: "2025-06-03", Category: "medical"},
		{ID: "c2", EventID: event.ID, SoldierID: "s1", Date: "2025-06-03", Category: "family", Description: "wedding"},
		{ID: "c3", EventID: event.ID, SoldierID: "s2", Date: "2025-06-04"},
	}
	require.NoError(t, d.InsertConstraints(ctx, constraints))

	gotConstraints, err := d.GetConstraints(ctx, event.ID)
	require.NoError(t, err)
	require.Len(t, gotConstraints, 2)
	assert.Equal(t, "family", gotConstraints[0].Category)
	assert.Equal(t, "wedding", gotConstraints[0].Description)
	assert.Equal(t, "2025-06-04", gotConstraints[1].Date)
}

func TestSoldiers_SameIDAcrossEvents(t *testing.T) {
	d := openTestDB(t)
	ctx := context.Background()
	first := seedEvent(t, d)

	second := *first
	second.ID = "event-2"
	second.Name = "Winter exercise"
	require.NoError(t, d.InsertEvent(ctx, &second))

	require.NoError(t, d.InsertSoldiers(ctx, []db.Soldier{{ID: "s1", EventID: first.ID, Name: "Avi"}}))
	require.NoError(t, d.InsertSoldiers(ctx, []db.Soldier{{ID: "s1", EventID: second.ID, Name: "Avi"}}))

	require.NoError(t, d.InsertConstraints(ctx, []db.Constraint{
		{ID: "c1", EventID: first.ID, SoldierID: "s1", Date: "2025-06-03"},
		{ID: "c2", EventID: second.ID, SoldierID: "s1", Date: "2025-06-03", Category: "medical"},
	}))

	for _, eventID := range []string{first.ID, second.ID} {
		soldiers, err := d.GetSoldiers(ctx, eventID)
		require.NoError(t, err)
		require.Len(t, soldiers, 1)
		assert.Equal(t, eventID, soldiers[0].EventID)

		constraints, err := d.GetConstraints(ctx, eventID)
		require.NoError(t, err)
		require.Len(t, constraints, 1)
		assert.Equal(t, eventID, constraints[0].EventID)
	}

	second.ID = "event-3"
	require.NoError(t, d.InsertEvent(ctx, &second))
	err := d.InsertConstraints(ctx, []db.Constraint{{ID: "c3", EventID: "event-3", SoldierID: "s1", Date: "2025-06-03"}})
	assert.Error(t, err, "constraints must reference a soldier on the same event")
}

func TestInsertSoldiers_RollsBackOnDuplicate(t *testing.T) {
	d := openTestDB(t)
	ctx := context.Background()
	event := seedEvent(t, d)

	err := d.InsertSoldiers(ctx, []db.Soldier{
		{ID: "s1", EventID: event.ID, Name: "Avi"},
		{ID: "s1", EventID: event.ID, Name: "Avi again"},
	})
	require.Error(t, err)

	got, err := d.GetSoldiers(ctx, event.ID)
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestMarkRunStarted_OnlyOnce(t *testing.T) {
	d := openTestDB(t)
	ctx := context.Background()
	event := seedEvent(t, d)
	run := seedRun(t, d, event.ID)

	require.NoError(t, d.MarkRunStarted(ctx, run.ID, []byte(`{"soldiers":[]}`), "2025-05-02T09:00:00Z"))

	err := d.MarkRunStarted(ctx, run.ID, []byte(`{}`), "2025-05-02T09:01:00Z")
	assert.ErrorIs(t, err, db.ErrRunNotPending)

	got, err := d.GetRun(ctx, run.ID)
	require.NoError(t, err)
	assert.Equal(t, "IN_PROGRESS", got.Status)
	assert.Equal(t, `{"soldiers":[]}`, string(got.Snapshot))
	assert.Equal(t, "2025-05-02T09:00:00Z", got.StartedAt)
	assert.Empty(t, got.CompletedAt)
}

func TestCompleteRun_WritesAssignments(t *testing.T) {
	d := openTestDB(t)
	ctx := context.Background()
	event := seedEvent(t, d)
	run := seedRun(t, d, event.ID)
	require.NoError(t, d.MarkRunStarted(ctx, run.ID, []byte(`{}`), "2025-05-02T09:00:00Z"))

	err := d.CompleteRun(ctx, db.RunCompletion{
		RunID:        run.ID,
		Status:       "SUCCESS",
		EngineStatus: "OPTIMAL",
		Report:       []byte(`{"is_valid":true}`),
		Objective:    12.5,
		CompletedAt:  "2025-05-02T09:00:05Z",
		Assignments: []db.Assignment{
			{SoldierID: "s1", Date: "2025-06-01", OnBase: true},
			{SoldierID: "s1", Date: "2025-06-02", OnBase: false},
		},
	})
	require.NoError(t, err)

	got, err := d.GetRun(ctx, run.ID)
	require.NoError(t, err)
	assert.Equal(t, "SUCCESS", got.Status)
	assert.Equal(t, "OPTIMAL", got.EngineStatus)
	assert.InDelta(t, 12.5, got.Objective, 1e-9)

	assignments, err := d.GetAssignments(ctx, run.ID)
	require.NoError(t, err)
	require.Len(t, assignments, 2)
	assert.True(t, assignments[0].OnBase)
	assert.False(t, assignments[1].OnBase)
	assert.Equal(t, run.ID, assignments[0].RunID)
}

func TestCompleteRun_IsAllOrNothing(t *testing.T) {
	d := openTestDB(t)
	ctx := context.Background()
	event := seedEvent(t, d)
	run := seedRun(t, d, event.ID)
	require.NoError(t, d.MarkRunStarted(ctx, run.ID, []byte(`{}`), "2025-05-02T09:00:00Z"))

	err := d.CompleteRun(ctx, db.RunCompletion{
		RunID:       run.ID,
		Status:      "SUCCESS",
		CompletedAt: "2025-05-02T09:00:05Z",
		Assignments: []db.Assignment{
			{SoldierID: "s1", Date: "2025-06-01", OnBase: true},
			{SoldierID: "s1", Date: "2025-06-01", OnBase: false},
		},
	})
	require.Error(t, err)

	got, err := d.GetRun(ctx, run.ID)
	require.NoError(t, err)
	assert.Equal(t, "IN_PROGRESS", got.Status)

	assignments, err := d.GetAssignments(ctx, run.ID)
	require.NoError(t, err)
	assert.Empty(t, assignments)
}

func TestCompleteRun_RequiresInProgress(t *testing.T) {
	d := openTestDB(t)
	ctx := context.Background()
	event := seedEvent(t, d)
	run := seedRun(t, d, event.ID)

	err := d.CompleteRun(ctx, db.RunCompletion{RunID: run.ID, Status: "SUCCESS"})
	assert.ErrorIs(t, err, db.ErrNotFound)
}

func TestListRuns_NewestFirst(t *testing.T) {
	d := openTestDB(t)
	ctx := context.Background()
	event := seedEvent(t, d)

	require.NoError(t, d.InsertRun(ctx, &db.SchedulingRun{ID: "a", EventID: event.ID, Status: "PENDING", CreatedAt: "2025-05-01T10:00:00Z"}))
	require.NoError(t, d.InsertRun(ctx, &db.SchedulingRun{ID: "b", EventID: event.ID, Status: "PENDING", CreatedAt: "2025-05-03T10:00:00Z"}))

	runs, err := d.ListRuns(ctx, event.ID)
	require.NoError(t, err)
	require.Len(t, runs, 2)
	assert.Equal(t, "b", runs[0].ID)
	assert.Equal(t, "a", runs[1].ID)
}

func TestListRunsByStatus(t *testing.T) {
	d := openTestDB(t)
	ctx := context.Background()
	event := seedEvent(t, d)

	for i, id := range []string{"run-b", "run-a", "run-c"} {
		require.NoError(t, d.InsertRun(ctx, &db.SchedulingRun{
			ID:        id,
			EventID:   event.ID,
			Status:    "PENDING",
			CreatedAt: fmt.Sprintf("2025-05-01T10:0%d:00Z", i),
		}))
	}
	require.NoError(t, d.MarkRunStarted(ctx, "run-c", []byte(`{}`), "2025-05-02T09:00:00Z"))
	require.NoError(t, d.MarkRunStarted(ctx, "run-b", []byte(`{}`), "2025-05-02T09:05:00Z"))

	running, err := d.ListRunsByStatus(ctx, "IN_PROGRESS")
	require.NoError(t, err)
	require.Len(t, running, 2)
	assert.Equal(t, "run-b", running[0].ID)
	assert.Equal(t, "run-c", running[1].ID)
	assert.Equal(t, "2025-05-02T09:05:00Z", running[0].StartedAt)

	pending, err := d.ListRunsByStatus(ctx, "PENDING")
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Equal(t, "run-a", pending[0].ID)
}
