package services

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/jakechorley/soldier-roster/pkg/core/model"
	"github.com/jakechorley/soldier-roster/pkg/db"
)

// mockDB is an in-memory db.Database. The Err fields make the matching call fail.
type mockDB struct {
	mu          sync.Mutex
	events      map[string]db.Event
	soldiers    []db.Soldier
	constraints []db.Constraint
	runs        map[string]db.SchedulingRun
	assignments map[string][]db.Assignment
	completions []db.RunCompletion

	insertEventErr    error
	getEventErr       error
	insertSoldiersErr error
	completeRunErr    error
	// completeGate blocks CompleteRun until it is closed
	completeGate chan struct{}
}

var _ db.Database = (*mockDB)(nil)

func newMockDB() *mockDB {
	return &mockDB{
		events:      make(map[string]db.Event),
		runs:        make(map[string]db.SchedulingRun),
		assignments: make(map[string][]db.Assignment),
	}
}

func (m *mockDB) InsertEvent(ctx context.Context, event *db.Event) error {
	if m.insertEventErr != nil {
		return m.insertEventErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.events[event.ID] = *event
	return nil
}

func (m *mockDB) GetEvent(ctx context.Context, id string) (*db.Event, error) {
	if m.getEventErr != nil {
		return nil, m.getEventErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.events[id]
	if !ok {
		return nil, fmt.Errorf("event %s: %w", id, db.ErrNotFound)
	}
	return &e, nil
}

func (m *mockDB) ListEvents(ctx context.Context) ([]db.Event, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []db.Event
	for _, e := range m.events {
		out = append(out, e)
	}
	return out, nil
}

func (m *mockDB) InsertSoldiers(ctx context.Context, soldiers []db.Soldier) error {
	if m.insertSoldiersErr != nil {
		return m.insertSoldiersErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.soldiers = append(m.soldiers, soldiers...)
	return nil
}

func (m *mockDB) GetSoldiers(ctx context.Context, eventID string) ([]db.Soldier, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []db.Soldier
	for _, s := range m.soldiers {
		if s.EventID == eventID {
			out = append(out, s)
		}
	}
	return out, nil
}

func (m *mockDB) InsertConstraints(ctx context.Context, constraints []db.Constraint) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.constraints = append(m.constraints, constraints...)
	return nil
}

func (m *mockDB) GetConstraints(ctx context.Context, eventID string) ([]db.Constraint, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []db.Constraint
	for _, c := range m.constraints {
		if c.EventID == eventID {
			out = append(out, c)
		}
	}
	return out, nil
}

func (m *mockDB) InsertRun(ctx context.Context, run *db.SchedulingRun) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.runs[run.ID] = *run
	return nil
}

func (m *mockDB) GetRun(ctx context.Context, id string) (*db.SchedulingRun, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.runs[id]
	if !ok {
		return nil, fmt.Errorf("run %s: %w", id, db.ErrNotFound)
	}
	return &r, nil
}

func (m *mockDB) ListRuns(ctx context.Context, eventID string) ([]db.SchedulingRun, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []db.SchedulingRun
	for _, r := range m.runs {
		if r.EventID == eventID {
			out = append(out, r)
		}
	}
	return out, nil
}

func (m *mockDB) ListRunsByStatus(ctx context.Context, status string) ([]db.SchedulingRun, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []db.SchedulingRun
	for _, r := range m.runs {
		if r.Status == status {
			out = append(out, r)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (m *mockDB) MarkRunStarted(ctx context.Context, id string, snapshot []byte, startedAt string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.runs[id]
	if !ok || r.Status != string(model.RunPending) {
		return fmt.Errorf("run %s: %w", id, db.ErrRunNotPending)
	}
	r.Status = string(model.RunInProgress)
	r.Snapshot = snapshot
	r.StartedAt = startedAt
	m.runs[id] = r
	return nil
}

func (m *mockDB) CompleteRun(ctx context.Context, completion db.RunCompletion) error {
	if m.completeGate != nil {
		<-m.completeGate
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.completions = append(m.completions, completion)
	if m.completeRunErr != nil && len(completion.Assignments) > 0 {
		return m.completeRunErr
	}
	r, ok := m.runs[completion.RunID]
	if !ok || r.Status != string(model.RunInProgress) {
		return fmt.Errorf("run %s: %w", completion.RunID, db.ErrNotFound)
	}
	r.Status = completion.Status
	r.EngineStatus = completion.EngineStatus
	r.Report = completion.Report
	r.Objective = completion.Objective
	r.Gap = completion.Gap
	r.CompletedAt = completion.CompletedAt
	m.runs[completion.RunID] = r
	m.assignments[completion.RunID] = completion.Assignments
	return nil
}

func (m *mockDB) GetAssignments(ctx context.Context, runID string) ([]db.Assignment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.assignments[runID], nil
}

func (m *mockDB) run(id string) db.SchedulingRun {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.runs[id]
}

// smallEvent is a four day event two soldiers can cover with one block each
func smallEvent() model.Event {
	start := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)
	return model.Event{
		ID:                     "event-1",
		Name:                   "Small",
		Start:                  start,
		End:                    start.AddDate(0, 0, 3),
		MinRequiredPerDay:      1,
		BaseDaysPerSoldier:     2,
		HomeDaysPerSoldier:     2,
		MaxConsecutiveBaseDays: 2,
		MaxConsecutiveHomeDays: 2,
		MinBaseBlockDays:       2,
	}
}

// seed stores event with soldiers s1..sN and a PENDING run
func seed(m *mockDB, event model.Event, soldiers int, runID string) {
	m.events[event.ID] = eventToDB(event)
	for i := 1; i <= soldiers; i++ {
		m.soldiers = append(m.soldiers, db.Soldier{
			ID:      fmt.Sprintf("s%d", i),
			EventID: event.ID,
			Name:    fmt.Sprintf("Soldier %d", i),
		})
	}
	if runID != "" {
		m.runs[runID] = db.SchedulingRun{ID: runID, EventID: event.ID, Status: string(model.RunPending)}
	}
}
