package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/jakechorley/soldier-roster/pkg/core/engine"
	"github.com/jakechorley/soldier-roster/pkg/core/interpret"
	"github.com/jakechorley/soldier-roster/pkg/core/model"
	"github.com/jakechorley/soldier-roster/pkg/db"
)

// gatedExecute blocks until gate is closed or the run is cancelled, then reports SUCCESS
// with every soldier on base on the first day
func gatedExecute(started chan<- model.Snapshot, gate <-chan struct{}) executeFunc {
	return func(ctx context.Context, snapshot model.Snapshot, opts RunOptions, logger *zap.Logger) (*interpret.Outcome, error) {
		started <- snapshot
		select {
		case <-gate:
		case <-ctx.Done():
			return nil, fmt.Errorf("failed to solve: %w", engine.ErrCancelled)
		}
		var assignments []model.Assignment
		for _, s := range snapshot.Soldiers {
			assignments = append(assignments, model.Assignment{
				SoldierID: s.ID,
				Date:      snapshot.Event.Start,
				State:     model.OnBase,
			})
		}
		return &interpret.Outcome{
			Status:       model.RunSuccess,
			EngineStatus: engine.StatusOptimal,
			Report:       model.Report{IsValid: true},
			Assignments:  assignments,
		}, nil
	}
}

func fixedExecute(outcome interpret.Outcome, err error) executeFunc {
	return func(ctx context.Context, snapshot model.Snapshot, opts RunOptions, logger *zap.Logger) (*interpret.Outcome, error) {
		if err != nil {
			return nil, err
		}
		o := outcome
		return &o, nil
	}
}

func newTestManager(mock *mockDB) *Manager {
	return NewManager(mock, testRunOptions(), zap.NewNop())
}

func waitFor(t *testing.T, m *Manager, runID string) RunUpdate {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	update, err := m.Wait(ctx, runID)
	require.NoError(t, err)
	return update
}

func TestManager_RealEngineCommitsSchedule(t *testing.T) {
	mock := newMockDB()
	seed(mock, smallEvent(), 2, "run-1")
	m := newTestManager(mock)

	require.NoError(t, m.Start(context.Background(), "run-1", false))
	update := waitFor(t, m, "run-1")

	assert.Equal(t, model.RunSuccess, update.Status)
	require.NotNil(t, update.Outcome)

	run := mock.run("run-1")
	assert.Equal(t, string(model.RunSuccess), run.Status)
	assert.Equal(t, string(engine.StatusOptimal), run.EngineStatus)
	assert.NotEmpty(t, run.StartedAt)
	assert.NotEmpty(t, run.CompletedAt)
	assert.Len(t, mock.assignments["run-1"], 8)
}

func TestManager_SecondStartIsRejected(t *testing.T) {
	mock := newMockDB()
	seed(mock, smallEvent(), 2, "run-1")
	m := newTestManager(mock)
	started := make(chan model.Snapshot, 1)
	gate := make(chan struct{})
	m.execute = gatedExecute(started, gate)

	require.NoError(t, m.Start(context.Background(), "run-1", false))
	<-started

	err := m.Start(context.Background(), "run-1", false)
	assert.ErrorIs(t, err, ErrRunInProgress)
	assert.Equal(t, string(model.RunInProgress), mock.run("run-1").Status)

	close(gate)
	update := waitFor(t, m, "run-1")
	assert.Equal(t, model.RunSuccess, update.Status)

	// A finished run cannot be started again either
	err = m.Start(context.Background(), "run-1", false)
	assert.ErrorIs(t, err, db.ErrRunNotPending)
}

func TestManager_StartWhileCommitting(t *testing.T) {
	mock := newMockDB()
	seed(mock, smallEvent(), 2, "run-1")
	mock.completeGate = make(chan struct{})
	m := newTestManager(mock)
	m.execute = fixedExecute(interpret.Outcome{Status: model.RunSuccess}, nil)

	require.NoError(t, m.Start(context.Background(), "run-1", false))

	err := m.Start(context.Background(), "run-1", false)
	assert.ErrorIs(t, err, ErrRunInProgress)

	close(mock.completeGate)
	assert.Equal(t, model.RunSuccess, waitFor(t, m, "run-1").Status)
}

func TestManager_UnknownRun(t *testing.T) {
	m := newTestManager(newMockDB())

	err := m.Start(context.Background(), "missing", false)
	assert.ErrorIs(t, err, ErrRunNotFound)

	_, err = m.Wait(context.Background(), "missing")
	assert.ErrorIs(t, err, ErrRunNotFound)

	assert.ErrorIs(t, m.Cancel("missing"), ErrRunNotFound)
}

func TestManager_Cancel(t *testing.T) {
	mock := newMockDB()
	seed(mock, smallEvent(), 2, "run-1")
	m := newTestManager(mock)
	started := make(chan model.Snapshot, 1)
	m.execute = gatedExecute(started, make(chan struct{}))

	require.NoError(t, m.Start(context.Background(), "run-1", false))
	<-started

	require.NoError(t, m.Cancel("run-1"))
	update := waitFor(t, m, "run-1")

	assert.Equal(t, model.RunCancelled, update.Status)
	assert.Nil(t, update.Outcome)
	assert.NoError(t, update.Err)

	run := mock.run("run-1")
	assert.Equal(t, string(model.RunCancelled), run.Status)
	assert.Empty(t, mock.assignments["run-1"])

	assert.ErrorIs(t, m.Cancel("run-1"), ErrRunNotFound, "a finished run cannot be cancelled")
}

func TestManager_CallerContextDoesNotCancelRun(t *testing.T) {
	mock := newMockDB()
	seed(mock, smallEvent(), 2, "run-1")
	m := newTestManager(mock)
	started := make(chan model.Snapshot, 1)
	gate := make(chan struct{})
	m.execute = gatedExecute(started, gate)

	ctx, cancel := context.WithCancel(context.Background())
	require.NoError(t, m.Start(ctx, "run-1", false))
	<-started
	cancel()

	close(gate)
	assert.Equal(t, model.RunSuccess, waitFor(t, m, "run-1").Status)
}

func TestManager_SnapshotIsFrozen(t *testing.T) {
	mock := newMockDB()
	event := smallEvent()
	seed(mock, event, 2, "run-1")
	m := newTestManager(mock)
	started := make(chan model.Snapshot, 1)
	gate := make(chan struct{})
	m.execute = gatedExecute(started, gate)

	require.NoError(t, m.Start(context.Background(), "run-1", false))
	snapshot := <-started

	// Roster edits after the start must not reach the run
	require.NoError(t, mock.InsertSoldiers(context.Background(), []db.Soldier{{ID: "s3", EventID: event.ID}}))
	require.NoError(t, mock.InsertConstraints(context.Background(), []db.Constraint{
		{ID: "c1", EventID: event.ID, SoldierID: "s1", Date: "2025-06-01"},
	}))

	close(gate)
	waitFor(t, m, "run-1")

	assert.Len(t, snapshot.Soldiers, 2)
	assert.Empty(t, snapshot.Soldiers[0].Constraints)
	assert.Len(t, mock.assignments["run-1"], 2)

	var stored model.Snapshot
	require.NoError(t, json.Unmarshal(mock.run("run-1").Snapshot, &stored))
	assert.Len(t, stored.Soldiers, 2)
	assert.Equal(t, event.ID, stored.Event.ID)
}

func TestManager_NoSolutionCommitsNoAssignments(t *testing.T) {
	mock := newMockDB()
	seed(mock, smallEvent(), 2, "run-1")
	m := newTestManager(mock)
	m.execute = fixedExecute(interpret.Outcome{
		Status:       model.RunNoSolution,
		EngineStatus: engine.StatusInfeasible,
		Report:       model.Report{Errors: []string{"on 2025-06-01 only 0 soldiers are available against a floor of 1"}},
		Assignments:  []model.Assignment{{SoldierID: "s1", State: model.OnBase}},
	}, nil)

	require.NoError(t, m.Start(context.Background(), "run-1", false))
	update := waitFor(t, m, "run-1")

	assert.Equal(t, model.RunNoSolution, update.Status)
	assert.Empty(t, mock.assignments["run-1"])

	var report model.Report
	require.NoError(t, json.Unmarshal(mock.run("run-1").Report, &report))
	require.Len(t, report.Errors, 1)
	assert.Contains(t, report.Errors[0], "2025-06-01")
}

func TestManager_ExecuteErrorFails(t *testing.T) {
	mock := newMockDB()
	seed(mock, smallEvent(), 2, "run-1")
	m := newTestManager(mock)
	m.execute = fixedExecute(interpret.Outcome{}, errors.New("search worker failed"))

	require.NoError(t, m.Start(context.Background(), "run-1", false))
	update := waitFor(t, m, "run-1")

	assert.Equal(t, model.RunFailure, update.Status)
	assert.Error(t, update.Err)
	assert.Equal(t, string(model.RunFailure), mock.run("run-1").Status)
}

func TestManager_CommitFailureRecordsFailure(t *testing.T) {
	mock := newMockDB()
	seed(mock, smallEvent(), 2, "run-1")
	mock.completeRunErr = errors.New("unique violation")
	m := newTestManager(mock)
	m.execute = fixedExecute(interpret.Outcome{
		Status:      model.RunSuccess,
		Assignments: []model.Assignment{{SoldierID: "s1", Date: smallEvent().Start, State: model.OnBase}},
	}, nil)

	require.NoError(t, m.Start(context.Background(), "run-1", false))
	update := waitFor(t, m, "run-1")

	assert.Equal(t, model.RunFailure, update.Status)
	require.Error(t, update.Err)
	assert.Contains(t, update.Err.Error(), "unique violation")

	run := mock.run("run-1")
	assert.Equal(t, string(model.RunFailure), run.Status)
	assert.Empty(t, mock.assignments["run-1"])
	assert.Len(t, mock.completions, 2)
}

func TestManager_Watch(t *testing.T) {
	mock := newMockDB()
	seed(mock, smallEvent(), 2, "run-1")
	m := newTestManager(mock)
	started := make(chan model.Snapshot, 1)
	gate := make(chan struct{})
	m.execute = gatedExecute(started, gate)

	require.NoError(t, m.Start(context.Background(), "run-1", false))
	<-started

	updates, err := m.Watch(context.Background(), "run-1")
	require.NoError(t, err)
	close(gate)

	var statuses []model.RunStatus
	for u := range updates {
		statuses = append(statuses, u.Status)
	}
	assert.Equal(t, []model.RunStatus{model.RunInProgress, model.RunSuccess}, statuses)

	// Watching a finished run yields its terminal status once
	updates, err = m.Watch(context.Background(), "run-1")
	require.NoError(t, err)
	last := <-updates
	assert.Equal(t, model.RunSuccess, last.Status)
	_, open := <-updates
	assert.False(t, open)
}

func TestManager_IndependentRunsExecuteConcurrently(t *testing.T) {
	mock := newMockDB()
	seed(mock, smallEvent(), 2, "run-1")
	mock.runs["run-2"] = db.SchedulingRun{ID: "run-2", EventID: "event-1", Status: string(model.RunPending)}
	m := newTestManager(mock)
	started := make(chan model.Snapshot, 2)
	gate := make(chan struct{})
	m.execute = gatedExecute(started, gate)

	require.NoError(t, m.Start(context.Background(), "run-1", false))
	require.NoError(t, m.Start(context.Background(), "run-2", false))
	<-started
	<-started

	close(gate)
	assert.Equal(t, model.RunSuccess, waitFor(t, m, "run-1").Status)
	assert.Equal(t, model.RunSuccess, waitFor(t, m, "run-2").Status)
}

func TestManager_EvictsFinishedRuns(t *testing.T) {
	mock := newMockDB()
	seed(mock, smallEvent(), 2, "run-1")
	m := newTestManager(mock)
	m.retention = 0
	started := make(chan model.Snapshot, 1)
	gate := make(chan struct{})
	m.execute = gatedExecute(started, gate)

	require.NoError(t, m.Start(context.Background(), "run-1", false))
	<-started

	updates, err := m.Watch(context.Background(), "run-1")
	require.NoError(t, err)
	close(gate)

	var last RunUpdate
	for u := range updates {
		last = u
	}
	assert.Equal(t, model.RunSuccess, last.Status)
	assert.NotNil(t, last.Outcome, "watchers are served before eviction")

	require.Eventually(t, func() bool {
		m.mu.Lock()
		defer m.mu.Unlock()
		_, tracked := m.runs["run-1"]
		return !tracked
	}, 5*time.Second, time.Millisecond)

	// An evicted run reports its stored terminal status
	update, err := m.Wait(context.Background(), "run-1")
	require.NoError(t, err)
	assert.Equal(t, model.RunSuccess, update.Status)
	assert.Nil(t, update.Outcome)

	updates, err = m.Watch(context.Background(), "run-1")
	require.NoError(t, err)
	assert.Equal(t, model.RunSuccess, (<-updates).Status)
	_, open := <-updates
	assert.False(t, open)

	assert.ErrorIs(t, m.Cancel("run-1"), ErrRunNotFound)
}

func TestManager_RetainsOutcomeWithinRetention(t *testing.T) {
	mock := newMockDB()
	seed(mock, smallEvent(), 2, "run-1")
	m := newTestManager(mock)
	m.execute = fixedExecute(interpret.Outcome{Status: model.RunSuccess, EngineStatus: engine.StatusOptimal}, nil)

	require.NoError(t, m.Start(context.Background(), "run-1", false))
	waitFor(t, m, "run-1")

	update := waitFor(t, m, "run-1")
	require.NotNil(t, update.Outcome)
	assert.Equal(t, engine.StatusOptimal, update.Outcome.EngineStatus)
}

func TestManager_WaitOnRunNotExecuting(t *testing.T) {
	mock := newMockDB()
	seed(mock, smallEvent(), 2, "run-1")
	m := newTestManager(mock)

	_, err := m.Wait(context.Background(), "run-1")
	assert.ErrorIs(t, err, ErrRunNotFound)

	_, err = m.Watch(context.Background(), "run-1")
	assert.ErrorIs(t, err, ErrRunNotFound)
}

func TestManager_RecoverStale(t *testing.T) {
	now := time.Date(2025, 5, 1, 12, 0, 0, 0, time.UTC)
	mock := newMockDB()
	seed(mock, smallEvent(), 2, "run-1")
	inProgress := string(model.RunInProgress)
	mock.runs["stale"] = db.SchedulingRun{ID: "stale", EventID: "event-1", Status: inProgress, StartedAt: "2025-05-01T09:00:00Z"}
	mock.runs["fresh"] = db.SchedulingRun{ID: "fresh", EventID: "event-1", Status: inProgress, StartedAt: "2025-05-01T11:50:00Z"}
	mock.runs["done"] = db.SchedulingRun{ID: "done", EventID: "event-1", Status: string(model.RunSuccess)}

	m := newTestManager(mock)
	m.now = func() time.Time { return now }
	started := make(chan model.Snapshot, 1)
	gate := make(chan struct{})
	m.execute = gatedExecute(started, gate)

	require.NoError(t, m.Start(context.Background(), "run-1", false))
	<-started

	recovered, err := m.RecoverStale(context.Background(), time.Hour)
	require.NoError(t, err)
	assert.Equal(t, 1, recovered)

	stale := mock.run("stale")
	assert.Equal(t, string(model.RunFailure), stale.Status)
	var report model.Report
	require.NoError(t, json.Unmarshal(stale.Report, &report))
	require.Len(t, report.Errors, 1)
	assert.Contains(t, report.Errors[0], "interrupted")
	assert.Equal(t, inProgress, mock.run("fresh").Status)

	// The run this manager executes is never touched, whatever its age
	recovered, err = m.RecoverStale(context.Background(), 0)
	require.NoError(t, err)
	assert.Equal(t, 1, recovered)
	assert.Equal(t, string(model.RunFailure), mock.run("fresh").Status)
	assert.Equal(t, inProgress, mock.run("run-1").Status)
	assert.Equal(t, string(model.RunSuccess), mock.run("done").Status)

	close(gate)
	assert.Equal(t, model.RunSuccess, waitFor(t, m, "run-1").Status)
}

func TestManager_RecoverStaleListError(t *testing.T) {
	m := newTestManager(&listFailingStore{mockDB: newMockDB()})

	_, err := m.RecoverStale(context.Background(), time.Minute)
	assert.ErrorContains(t, err, "failed to list runs in progress")
}

type listFailingStore struct {
	*mockDB
}

func (s *listFailingStore) ListRunsByStatus(ctx context.Context, status string) ([]db.SchedulingRun, error) {
	return nil, errors.New("connection reset")
}
