package db

import "context"

// EventStore defines the interface for event database operations
type EventStore interface {
	InsertEvent(ctx context.Context, event *Event) error
	GetEvent(ctx context.Context, id string) (*Event, error)
	ListEvents(ctx context.Context) ([]Event, error)
}

// RosterStore defines the interface for soldier and constraint database operations
type RosterStore interface {
	InsertSoldiers(ctx context.Context, soldiers []Soldier) error
	GetSoldiers(ctx context.Context, eventID string) ([]Soldier, error)
	InsertConstraints(ctx context.Context, constraints []Constraint) error
	GetConstraints(ctx context.Context, eventID string) ([]Constraint, error)
}

// RunStore defines the interface for scheduling run database operations
type RunStore interface {
	InsertRun(ctx context.Context, run *SchedulingRun) error
	GetRun(ctx context.Context, id string) (*SchedulingRun, error)
	ListRuns(ctx context.Context, eventID string) ([]SchedulingRun, error)
	// ListRunsByStatus returns the runs of every event in one status, oldest first
	ListRunsByStatus(ctx context.Context, status string) ([]SchedulingRun, error)
	// MarkRunStarted moves a PENDING run to IN_PROGRESS and stores its snapshot.
	// It returns ErrRunNotPending if the run already left PENDING.
	MarkRunStarted(ctx context.Context, id string, snapshot []byte, startedAt string) error
	// CompleteRun writes the terminal status and the assignments in one transaction
	CompleteRun(ctx context.Context, completion RunCompletion) error
	GetAssignments(ctx context.Context, runID string) ([]Assignment, error)
}

// Database defines the interface for all database operations.
// Both postgres.DB and sqlite.DB implement this interface.
type Database interface {
	EventStore
	RosterStore
	RunStore
}
