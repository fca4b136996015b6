package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/jakechorley/soldier-roster/pkg/core/engine"
	"github.com/jakechorley/soldier-roster/pkg/core/interpret"
	"github.com/jakechorley/soldier-roster/pkg/core/model"
	"github.com/jakechorley/soldier-roster/pkg/db"
)

var (
	// ErrRunInProgress is returned when a run is already executing
	ErrRunInProgress = errors.New("run is already in progress")
	// ErrRunNotFound is returned for a run id the store or the manager does not know
	ErrRunNotFound = errors.New("run not found")
)

// ManagerStore is the store a Manager reads snapshots from and commits results to
type ManagerStore interface {
	SnapshotStore
	GetRun(ctx context.Context, id string) (*db.SchedulingRun, error)
	ListRunsByStatus(ctx context.Context, status string) ([]db.SchedulingRun, error)
	MarkRunStarted(ctx context.Context, id string, snapshot []byte, startedAt string) error
	CompleteRun(ctx context.Context, completion db.RunCompletion) error
}

// DefaultRetention is how long a finished execution keeps its outcome for Wait and Watch
const DefaultRetention = 5 * time.Minute

// RunUpdate is a status change pushed to watchers
type RunUpdate struct {
	RunID  string
	Status model.RunStatus
	// Outcome is set once the run reaches a terminal status, unless it was cancelled, failed
	// outside the engine or finished before the retention window of this manager
	Outcome *interpret.Outcome
	Err     error
}

type executeFunc func(ctx context.Context, snapshot model.Snapshot, opts RunOptions, logger *zap.Logger) (*interpret.Outcome, error)

// Manager executes scheduling runs in the background, one execution per run id.
// Independent runs execute concurrently. A finished execution is forgotten after the
// retention window; its status is then read from the store.
type Manager struct {
	store     ManagerStore
	opts      RunOptions
	logger    *zap.Logger
	execute   executeFunc
	now       func() time.Time
	retention time.Duration

	mu   sync.Mutex
	runs map[string]*execution
}

type execution struct {
	runID           string
	cancel          context.CancelFunc
	cancelRequested bool
	done            chan struct{}
	last            RunUpdate
	watchers        []chan RunUpdate
}

// NewManager creates a Manager that runs every execution with opts
func NewManager(store ManagerStore, opts RunOptions, logger *zap.Logger) *Manager {
	return &Manager{
		store:     store,
		opts:      opts,
		logger:    logger,
		execute:   ExecuteRun,
		now:       time.Now,
		retention: DefaultRetention,
		runs:      make(map[string]*execution),
	}
}

// Start moves a PENDING run to IN_PROGRESS, freezes its input and executes it in the background.
// The run keeps going after ctx ends; use Cancel to stop it.
func (m *Manager) Start(ctx context.Context, runID string, ignoreValidation bool) error {
	exec, err := m.reserve(runID)
	if err != nil {
		return err
	}

	snapshot, err := m.begin(ctx, runID)
	if err != nil {
		m.release(exec, err)
		return err
	}

	runCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))

	m.mu.Lock()
	exec.cancel = cancel
	if exec.cancelRequested {
		cancel()
	}
	m.publish(exec, RunUpdate{RunID: runID, Status: model.RunInProgress})
	m.mu.Unlock()

	m.logger.Debug("Run started",
		zap.String("run_id", runID),
		zap.String("event_id", snapshot.Event.ID),
		zap.Int("soldiers", len(snapshot.Soldiers)))

	opts := m.opts
	opts.IgnoreValidation = ignoreValidation
	go m.run(runCtx, exec, snapshot, opts)
	return nil
}

// reserve registers an execution so a concurrent Start of the same run is rejected
func (m *Manager) reserve(runID string) (*execution, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if exec, ok := m.runs[runID]; ok && !isClosed(exec.done) {
		return nil, fmt.Errorf("%w: %s", ErrRunInProgress, runID)
	}
	exec := &execution{
		runID: runID,
		done:  make(chan struct{}),
		last:  RunUpdate{RunID: runID, Status: model.RunPending},
	}
	m.runs[runID] = exec
	return exec, nil
}

// release drops a reservation that never started
func (m *Manager) release(exec *execution, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.runs[exec.runID] == exec {
		delete(m.runs, exec.runID)
	}
	exec.last.Err = err
	m.closeWatchers(exec)
	close(exec.done)
}

// begin checks the run in the store, freezes its input and marks it started
func (m *Manager) begin(ctx context.Context, runID string) (model.Snapshot, error) {
	run, err := m.store.GetRun(ctx, runID)
	if errors.Is(err, db.ErrNotFound) {
		return model.Snapshot{}, fmt.Errorf("%w: %s", ErrRunNotFound, runID)
	}
	if err != nil {
		return model.Snapshot{}, fmt.Errorf("failed to fetch run: %w", err)
	}

	switch model.RunStatus(run.Status) {
	case model.RunPending:
	case model.RunInProgress:
		return model.Snapshot{}, fmt.Errorf("%w: %s", ErrRunInProgress, runID)
	default:
		return model.Snapshot{}, fmt.Errorf("run %s is %s: %w", runID, run.Status, db.ErrRunNotPending)
	}

	snapshot, err := LoadSnapshot(ctx, m.store, run.EventID)
	if err != nil {
		return model.Snapshot{}, err
	}
	frozen := snapshot.Clone()

	data, err := json.Marshal(frozen)
	if err != nil {
		return model.Snapshot{}, fmt.Errorf("failed to encode snapshot: %w", err)
	}

	err = m.store.MarkRunStarted(ctx, runID, data, m.now().UTC().Format(time.RFC3339))
	if errors.Is(err, db.ErrRunNotPending) {
		return model.Snapshot{}, fmt.Errorf("%w: %s", ErrRunInProgress, runID)
	}
	if err != nil {
		return model.Snapshot{}, fmt.Errorf("failed to mark run started: %w", err)
	}
	return frozen, nil
}

func (m *Manager) run(ctx context.Context, exec *execution, snapshot model.Snapshot, opts RunOptions) {
	logger := m.logger.With(zap.String("run_id", exec.runID))
	defer func() {
		m.mu.Lock()
		exec.cancel()
		m.mu.Unlock()
	}()

	outcome, err := m.execute(ctx, snapshot, opts, logger)

	update := RunUpdate{RunID: exec.runID, Outcome: outcome}
	completion := db.RunCompletion{RunID: exec.runID}
	var report model.Report

	switch {
	case err != nil && (errors.Is(err, engine.ErrCancelled) || ctx.Err() != nil):
		update.Status = model.RunCancelled
		update.Outcome = nil
		report.Errors = []string{"run cancelled before a schedule was found"}
		logger.Info("Run cancelled")
	case err != nil:
		update.Status = model.RunFailure
		update.Err = err
		update.Outcome = nil
		report.Errors = []string{err.Error()}
		logger.Error("Run failed", zap.Error(err))
	default:
		update.Status = outcome.Status
		report = outcome.Report
		completion.EngineStatus = string(outcome.EngineStatus)
		completion.Objective = outcome.Objective
		completion.Gap = outcome.Gap
		if outcome.Status.HasAssignments() {
			completion.Assignments = assignmentsToDB(exec.runID, outcome.Assignments)
		}
	}

	completion.Status = string(update.Status)
	if err := m.commit(completion, report); err != nil {
		logger.Error("Failed to commit run result", zap.Error(err))
		update.Status = model.RunFailure
		update.Err = err
		m.commitFailure(exec.runID, err, logger)
	}

	m.mu.Lock()
	m.publish(exec, update)
	m.closeWatchers(exec)
	close(exec.done)
	m.mu.Unlock()

	logger.Debug("Run finished", zap.String("status", string(update.Status)))
	m.evict(exec)
}

// evict forgets a finished execution once the retention window ends.
// Waiters already holding exec still read its last update.
func (m *Manager) evict(exec *execution) {
	drop := func() {
		m.mu.Lock()
		defer m.mu.Unlock()
		if m.runs[exec.runID] == exec {
			delete(m.runs, exec.runID)
		}
	}
	if m.retention <= 0 {
		drop()
		return
	}
	time.AfterFunc(m.retention, drop)
}

// RecoverStale fails IN_PROGRESS runs that this manager is not executing and that started
// more than olderThan ago. Such runs belong to a process that stopped before committing.
// It returns the number of runs it failed.
func (m *Manager) RecoverStale(ctx context.Context, olderThan time.Duration) (int, error) {
	runs, err := m.store.ListRunsByStatus(ctx, string(model.RunInProgress))
	if err != nil {
		return 0, fmt.Errorf("failed to list runs in progress: %w", err)
	}

	cutoff := m.now().Add(-olderThan)
	recovered := 0
	for _, run := range runs {
		m.mu.Lock()
		_, tracked := m.runs[run.ID]
		m.mu.Unlock()
		if tracked {
			continue
		}
		if startedAt, err := time.Parse(time.RFC3339, run.StartedAt); err == nil && startedAt.After(cutoff) {
			continue
		}

		completion := db.RunCompletion{RunID: run.ID, Status: string(model.RunFailure)}
		report := model.Report{Errors: []string{"run interrupted: the process executing it stopped before committing a result"}}
		err := m.commit(completion, report)
		if errors.Is(err, db.ErrNotFound) {
			// committed by its own process since the listing
			continue
		}
		if err != nil {
			return recovered, err
		}
		m.logger.Warn("Failed stale run",
			zap.String("run_id", run.ID),
			zap.String("event_id", run.EventID),
			zap.String("started_at", run.StartedAt))
		recovered++
	}
	return recovered, nil
}

// commit writes the terminal status and assignments in one transaction.
// It is not tied to the run context so a cancelled run still records CANCELLED.
func (m *Manager) commit(completion db.RunCompletion, report model.Report) error {
	data, err := json.Marshal(report)
	if err != nil {
		return fmt.Errorf("failed to encode report: %w", err)
	}
	completion.Report = data
	completion.CompletedAt = m.now().UTC().Format(time.RFC3339)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := m.store.CompleteRun(ctx, completion); err != nil {
		return fmt.Errorf("failed to complete run: %w", err)
	}
	return nil
}

// commitFailure records FAILURE without assignments after a failed commit
func (m *Manager) commitFailure(runID string, cause error, logger *zap.Logger) {
	completion := db.RunCompletion{RunID: runID, Status: string(model.RunFailure)}
	report := model.Report{Errors: []string{cause.Error()}}
	if err := m.commit(completion, report); err != nil {
		logger.Error("Failed to record run failure", zap.Error(err))
	}
}

// Cancel stops an executing run. The run ends CANCELLED with no assignments committed.
func (m *Manager) Cancel(runID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	exec, ok := m.runs[runID]
	if !ok || isClosed(exec.done) {
		return fmt.Errorf("%w: %s is not executing", ErrRunNotFound, runID)
	}
	exec.cancelRequested = true
	if exec.cancel != nil {
		exec.cancel()
	}
	m.logger.Debug("Run cancellation requested", zap.String("run_id", runID))
	return nil
}

// Wait blocks until the run reaches a terminal status or ctx ends
func (m *Manager) Wait(ctx context.Context, runID string) (RunUpdate, error) {
	m.mu.Lock()
	exec, ok := m.runs[runID]
	m.mu.Unlock()
	if !ok {
		return m.stored(ctx, runID)
	}

	select {
	case <-exec.done:
		m.mu.Lock()
		defer m.mu.Unlock()
		return exec.last, nil
	case <-ctx.Done():
		return RunUpdate{}, ctx.Err()
	}
}

// Watch returns a channel that receives the current status, every later change and is
// closed once the run is terminal
func (m *Manager) Watch(ctx context.Context, runID string) (<-chan RunUpdate, error) {
	m.mu.Lock()
	exec, ok := m.runs[runID]
	if !ok {
		m.mu.Unlock()
		update, err := m.stored(ctx, runID)
		if err != nil {
			return nil, err
		}
		ch := make(chan RunUpdate, 1)
		ch <- update
		close(ch)
		return ch, nil
	}
	defer m.mu.Unlock()

	// PENDING, IN_PROGRESS and a terminal status are the only updates a run can publish
	ch := make(chan RunUpdate, 3)
	ch <- exec.last
	if isClosed(exec.done) {
		close(ch)
		return ch, nil
	}
	exec.watchers = append(exec.watchers, ch)
	return ch, nil
}

// stored reads a run this manager no longer tracks. Only a terminal run has a status to report.
func (m *Manager) stored(ctx context.Context, runID string) (RunUpdate, error) {
	run, err := m.store.GetRun(ctx, runID)
	if errors.Is(err, db.ErrNotFound) {
		return RunUpdate{}, fmt.Errorf("%w: %s", ErrRunNotFound, runID)
	}
	if err != nil {
		return RunUpdate{}, fmt.Errorf("failed to fetch run: %w", err)
	}

	status := model.RunStatus(run.Status)
	if !status.IsTerminal() {
		return RunUpdate{}, fmt.Errorf("%w: %s is %s and not executing", ErrRunNotFound, runID, run.Status)
	}
	return RunUpdate{RunID: runID, Status: status}, nil
}

// publish records update and pushes it to watchers. Callers hold m.mu.
func (m *Manager) publish(exec *execution, update RunUpdate) {
	exec.last = update
	for _, ch := range exec.watchers {
		select {
		case ch <- update:
		default:
			m.logger.Warn("Dropping run update for slow watcher", zap.String("run_id", exec.runID))
		}
	}
}

// closeWatchers ends every watch of exec. Callers hold m.mu.
func (m *Manager) closeWatchers(exec *execution) {
	for _, ch := range exec.watchers {
		close(ch)
	}
	exec.watchers = nil
}

func isClosed(ch chan struct{}) bool {
	select {
	case <-ch:
		return true
	default:
		return false
	}
}
