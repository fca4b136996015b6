package roster

import (
	"errors"
	"fmt"
	"time"

	"github.com/jakechorley/soldier-roster/pkg/core/feasibility"
	"github.com/jakechorley/soldier-roster/pkg/core/model"
	"github.com/jakechorley/soldier-roster/pkg/core/policy"
)

// ErrMalformedInput marks input that cannot be modelled at all
var ErrMalformedInput = errors.New("malformed input")

// Grid holds one row per soldier and one column per day. true means on base.
type Grid [][]bool

// Clone returns a deep copy of the grid
func (g Grid) Clone() Grid {
	out := make(Grid, len(g))
	for i, row := range g {
		out[i] = append([]bool(nil), row...)
	}
	return out
}

// Counts returns the on-base count of every day
func (g Grid) Counts(days int) []int {
	counts := make([]int, days)
	for _, row := range g {
		for d, onBase := range row {
			if onBase {
				counts[d]++
			}
		}
	}
	return counts
}

// SoldierPlan is the per-soldier part of the model
type SoldierPlan struct {
	Soldier model.Soldier
	// Fixed marks days the soldier must spend at home
	Fixed      []bool
	Available  int
	TargetBase int
	// BlockRules is false for weekend-only soldiers, whose travel pattern is set by their role
	BlockRules bool
}

// Model is the decision model: one variable per soldier-day plus the priced objective
type Model struct {
	Event     model.Event
	Policy    policy.Policy
	Dates     []time.Time
	Weekend   []bool
	Soldiers  []SoldierPlan
	Floor     int
	Available []int

	homeExcess policy.Descriptor
	baseExcess policy.Descriptor
	isolated   policy.Descriptor
	short      policy.Descriptor
	staffing   policy.Descriptor
	balance    policy.Descriptor
	idle       policy.Descriptor
}

// Build turns event parameters and a roster into a decision model
func Build(event model.Event, soldiers []model.Soldier, pol policy.Policy) (*Model, error) {
	if err := CheckInput(event, soldiers); err != nil {
		return nil, err
	}
	if err := pol.Validate(); err != nil {
		return nil, fmt.Errorf("%w: invalid penalty policy: %v", ErrMalformedInput, err)
	}

	m := &Model{
		Event:  event,
		Policy: pol,
		Dates:  event.Dates(),
		Floor:  feasibility.StaffingFloor(event.MinRequiredPerDay),

		homeExcess: pol.MustLookup(policy.HomeBlockExcess),
		baseExcess: pol.MustLookup(policy.BaseBlockExcess),
		isolated:   pol.MustLookup(policy.IsolatedDay),
		short:      pol.MustLookup(policy.ShortBaseBlock),
		staffing:   pol.MustLookup(policy.StaffingShortfall),
		balance:    pol.MustLookup(policy.BalanceDeviation),
		idle:       pol.MustLookup(policy.IdleSoldier),
	}

	m.Weekend = make([]bool, len(m.Dates))
	for d, date := range m.Dates {
		m.Weekend[d] = pol.IsWeekend(date)
	}

	m.Available = make([]int, len(m.Dates))
	m.Soldiers = make([]SoldierPlan, len(soldiers))
	for i, s := range soldiers {
		plan := SoldierPlan{
			Soldier:    s,
			Fixed:      make([]bool, len(m.Dates)),
			BlockRules: !s.IsWeekendOnly,
		}
		for d, date := range m.Dates {
			if !feasibility.IsAvailable(s, date, pol.WeekendDays) {
				plan.Fixed[d] = true
				continue
			}
			plan.Available++
			m.Available[d]++
		}
		plan.TargetBase = feasibility.BaseTarget(event, s, plan.Available)
		m.Soldiers[i] = plan
	}

	return m, nil
}

// CheckInput reports input that cannot be modelled at all, wrapping ErrMalformedInput.
// It is independent of the penalty policy.
func CheckInput(event model.Event, soldiers []model.Soldier) error {
	if event.End.Before(event.Start) {
		return fmt.Errorf("%w: event ends before it starts", ErrMalformedInput)
	}
	negatives := []struct {
		name  string
		value int
	}{
		{"min_required_soldiers_per_day", event.MinRequiredPerDay},
		{"base_days_per_soldier", event.BaseDaysPerSoldier},
		{"home_days_per_soldier", event.HomeDaysPerSoldier},
		{"min_base_block_days", event.MinBaseBlockDays},
		{"exceptional_base_days", event.ExceptionalBaseDays},
	}
	for _, f := range negatives {
		if f.value < 0 {
			return fmt.Errorf("%w: %s is negative (%d)", ErrMalformedInput, f.name, f.value)
		}
	}
	if event.MaxConsecutiveBaseDays < 1 || event.MaxConsecutiveHomeDays < 1 {
		return fmt.Errorf("%w: consecutive day limits must be at least 1", ErrMalformedInput)
	}
	if len(soldiers) == 0 && event.MinRequiredPerDay > 0 {
		return fmt.Errorf("%w: empty roster with %d soldiers required per day", ErrMalformedInput, event.MinRequiredPerDay)
	}
	seen := make(map[string]bool, len(soldiers))
	for _, s := range soldiers {
		if s.ID == "" {
			return fmt.Errorf("%w: soldier %q has no id", ErrMalformedInput, s.Name)
		}
		if seen[s.ID] {
			return fmt.Errorf("%w: duplicate soldier id %s", ErrMalformedInput, s.ID)
		}
		seen[s.ID] = true
	}
	return nil
}

// Days returns the number of days in the window
func (m *Model) Days() int {
	return len(m.Dates)
}

// UnreachableDays returns the days where even every available soldier cannot meet the floor
func (m *Model) UnreachableDays() []int {
	var days []int
	for d, available := range m.Available {
		if available < m.Floor {
			days = append(days, d)
		}
	}
	return days
}

// Scale returns the instance size for dominance checks
func (m *Model) Scale() policy.Scale {
	return policy.Scale{
		Soldiers:     len(m.Soldiers),
		Days:         m.Days(),
		MinBaseBlock: m.Event.MinBaseBlockDays,
	}
}

// Assignments flattens a grid into one assignment per soldier per day
func (m *Model) Assignments(grid Grid) []model.Assignment {
	out := make([]model.Assignment, 0, len(m.Soldiers)*m.Days())
	for i, plan := range m.Soldiers {
		for d, date := range m.Dates {
			state := model.AtHome
			if grid[i][d] {
				state = model.OnBase
			}
			out = append(out, model.Assignment{SoldierID: plan.Soldier.ID, Date: date, State: state})
		}
	}
	return out
}
