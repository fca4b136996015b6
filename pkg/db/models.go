package db

import "errors"

// ErrNotFound is returned when a record does not exist
var ErrNotFound = errors.New("record not found")

// ErrRunNotPending is returned when a run cannot be started because it already left PENDING
var ErrRunNotPending = errors.New("run is not pending")

// Event represents a database event record
type Event struct {
	ID                     string
	Name                   string
	StartDate              string // Format: "2006-01-02"
	EndDate                string // Format: "2006-01-02"
	MinRequiredPerDay      int
	BaseDaysPerSoldier     int
	HomeDaysPerSoldier     int
	MaxConsecutiveBaseDays int
	MaxConsecutiveHomeDays int
	MinBaseBlockDays       int
	ExceptionalBaseDays    int
	CreatedAt              string // RFC3339
}

// Soldier represents a database soldier record
type Soldier struct {
	ID            string
	EventID       string
	Name          string
	IsExceptional bool
	IsWeekendOnly bool
}

// Constraint represents a database unavailability record
type Constraint struct {
	ID          string
	EventID     string
	SoldierID   string
	Date        string // Format: "2006-01-02"
	Category    string
	Description string
}

// SchedulingRun represents a database scheduling run record
type SchedulingRun struct {
	ID           string
	EventID      string
	Status       string
	EngineStatus string
	Snapshot     []byte // JSON of the frozen input, set when the run starts
	Report       []byte // JSON diagnostic report, set when the run completes
	Objective    float64
	Gap          float64
	CreatedAt    string // RFC3339
	StartedAt    string // RFC3339, empty until started
	CompletedAt  string // RFC3339, empty until completed
}

// Assignment represents a database assignment record
type Assignment struct {
	RunID     string
	SoldierID string
	Date      string // Format: "2006-01-02"
	OnBase    bool
}

// RunCompletion is everything written when a run reaches a terminal status
type RunCompletion struct {
	RunID        string
	Status       string
	EngineStatus string
	Report       []byte
	Objective    float64
	Gap          float64
	CompletedAt  string
	// Assignments are written in the same transaction as the status
	Assignments []Assignment
}
