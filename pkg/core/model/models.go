package model

import (
	"time"
)

// DateLayout is the layout used for every calendar date in the system
const DateLayout = "2006-01-02"

// DayState is the daily status of a soldier
type DayState string

const (
	OnBase DayState = "ON_BASE"
	AtHome DayState = "AT_HOME"
)

// Event describes the scheduling window and the rules every schedule must follow
type Event struct {
	ID                     string
	Name                   string
	Start                  time.Time
	End                    time.Time
	MinRequiredPerDay      int
	BaseDaysPerSoldier     int
	HomeDaysPerSoldier     int
	MaxConsecutiveBaseDays int
	MaxConsecutiveHomeDays int
	MinBaseBlockDays       int
	// ExceptionalBaseDays is the base day target for exceptional soldiers. 0 means the regular target.
	ExceptionalBaseDays int
}

// TotalDays returns the inclusive number of days in the event window
func (e Event) TotalDays() int {
	if e.End.Before(e.Start) {
		return 0
	}
	return int(e.End.Sub(e.Start).Hours()/24) + 1
}

// Dates returns every date in the event window
func (e Event) Dates() []time.Time {
	n := e.TotalDays()
	dates := make([]time.Time, n)
	for i := 0; i < n; i++ {
		dates[i] = e.Start.AddDate(0, 0, i)
	}
	return dates
}

// DayIndex returns the offset of date within the window, or -1 when outside it
func (e Event) DayIndex(date time.Time) int {
	d := int(date.Sub(e.Start).Hours() / 24)
	if date.Before(e.Start) || d >= e.TotalDays() {
		return -1
	}
	return d
}

// Constraint is a hard unavailability: the soldier must be at home on Date
type Constraint struct {
	Date        time.Time
	Category    string
	Description string
}

// Soldier is a member of the roster
type Soldier struct {
	ID            string
	Name          string
	IsExceptional bool
	IsWeekendOnly bool
	Constraints   []Constraint
}

// UnavailableOn reports whether the soldier has a constraint on date
func (s Soldier) UnavailableOn(date time.Time) bool {
	for _, c := range s.Constraints {
		if sameDay(c.Date, date) {
			return true
		}
	}
	return false
}

func sameDay(a, b time.Time) bool {
	ay, am, ad := a.Date()
	by, bm, bd := b.Date()
	return ay == by && am == bm && ad == bd
}

// Assignment is the state of one soldier on one day
type Assignment struct {
	SoldierID string
	Date      time.Time
	State     DayState
}

// RunStatus is the lifecycle status of a scheduling run
type RunStatus string

const (
	RunPending    RunStatus = "PENDING"
	RunInProgress RunStatus = "IN_PROGRESS"
	RunSuccess    RunStatus = "SUCCESS"
	RunFeasible   RunStatus = "FEASIBLE"
	RunNoSolution RunStatus = "NO_SOLUTION"
	RunFailure    RunStatus = "FAILURE"
	RunCancelled  RunStatus = "CANCELLED"
)

// IsTerminal reports whether no further transition can happen from this status
func (s RunStatus) IsTerminal() bool {
	switch s {
	case RunSuccess, RunFeasible, RunNoSolution, RunFailure, RunCancelled:
		return true
	}
	return false
}

// HasAssignments reports whether runs finishing in this status carry a committed schedule
func (s RunStatus) HasAssignments() bool {
	return s == RunSuccess || s == RunFeasible
}

// Stats summarises the block arithmetic of an event
type Stats struct {
	TotalDays        int `json:"totalDays"`
	MinBaseBlocks    int `json:"minBaseBlocks"`
	MinHomeBlocks    int `json:"minHomeBlocks"`
	FeasibilityScore int `json:"feasibilityScore"`
}

// Report is the diagnostic shape shared by the validator and the result interpreter
type Report struct {
	IsValid     bool     `json:"isValid"`
	Errors      []string `json:"errors"`
	Warnings    []string `json:"warnings"`
	Suggestions []string `json:"suggestions"`
	Stats       Stats    `json:"stats"`
}

// Merge appends the messages of other to r. IsValid becomes false if other is invalid.
func (r *Report) Merge(other Report) {
	r.Errors = append(r.Errors, other.Errors...)
	r.Warnings = append(r.Warnings, other.Warnings...)
	r.Suggestions = append(r.Suggestions, other.Suggestions...)
	r.IsValid = r.IsValid && other.IsValid
}

// Snapshot is the frozen input of a scheduling run
type Snapshot struct {
	Event    Event
	Soldiers []Soldier
}

// Clone returns a deep copy so later roster edits cannot reach a running schedule
func (s Snapshot) Clone() Snapshot {
	soldiers := make([]Soldier, len(s.Soldiers))
	for i, sol := range s.Soldiers {
		soldiers[i] = sol
		soldiers[i].Constraints = append([]Constraint(nil), sol.Constraints...)
	}
	return Snapshot{Event: s.Event, Soldiers: soldiers}
}
