package roster

import (
	"time"

	"github.com/jakechorley/soldier-roster/pkg/core/policy"
)

// Block is a maximal run of same-state days for one soldier
type Block struct {
	OnBase bool
	Start  int
	End    int
}

// Len returns the number of days in the block
func (b Block) Len() int {
	return b.End - b.Start + 1
}

// Blocks splits a row into its consecutive blocks
func Blocks(row []bool) []Block {
	var blocks []Block
	for d := 0; d < len(row); {
		start := d
		for d < len(row) && row[d] == row[start] {
			d++
		}
		blocks = append(blocks, Block{OnBase: row[start], Start: start, End: d - 1})
	}
	return blocks
}

// Violation is one priced penalty instance
type Violation struct {
	Descriptor string
	Tier       int
	// SoldierID is empty for day-level violations
	SoldierID string
	Start     time.Time
	End       time.Time
	Magnitude int
	Cost      float64
}

// Evaluation is the priced outcome of a full grid
type Evaluation struct {
	Score       policy.Score
	Violations  []Violation
	DailyCounts []int
	BaseDays    []int
}

// Evaluate prices every penalty instance of the grid
func (m *Model) Evaluate(grid Grid) Evaluation {
	ev := Evaluation{
		DailyCounts: grid.Counts(m.Days()),
		BaseDays:    make([]int, len(m.Soldiers)),
	}
	for i := range m.Soldiers {
		emit := func(v Violation) {
			ev.Violations = append(ev.Violations, v)
		}
		ev.Score = ev.Score.Plus(m.scanRow(i, grid[i], emit))
		for _, onBase := range grid[i] {
			if onBase {
				ev.BaseDays[i]++
			}
		}
	}
	for d, count := range ev.DailyCounts {
		shortfall := m.Event.MinRequiredPerDay - count
		if shortfall <= 0 {
			continue
		}
		cost := m.StaffingCost(d, count)
		ev.Score.Charge(m.staffing.Tier, cost)
		ev.Violations = append(ev.Violations, Violation{
			Descriptor: m.staffing.Name,
			Tier:       m.staffing.Tier,
			Start:      m.Dates[d],
			End:        m.Dates[d],
			Magnitude:  shortfall,
			Cost:       cost,
		})
	}
	return ev
}

// RowScore prices a single soldier's row without the staffing term
func (m *Model) RowScore(i int, row []bool) policy.Score {
	return m.scanRow(i, row, nil)
}

// StaffingCost prices the shortfall of a day with count soldiers on base
func (m *Model) StaffingCost(day, count int) float64 {
	shortfall := m.Event.MinRequiredPerDay - count
	if shortfall <= 0 {
		return 0
	}
	return m.Policy.Cost(m.staffing, shortfall, 0, m.Weekend[day])
}

func (m *Model) scanRow(i int, row []bool, emit func(Violation)) policy.Score {
	var score policy.Score
	plan := m.Soldiers[i]
	id := plan.Soldier.ID

	if plan.BlockRules {
		for _, b := range Blocks(row) {
			desc, limit := m.excessRule(b.OnBase)
			if excess := b.Len() - limit; excess > 0 {
				cost := 0.0
				for k := 1; k <= excess; k++ {
					cost += m.excessPrice(b.OnBase, k, b.Start+limit+k-1)
				}
				score.Charge(desc.Tier, cost)
				if emit != nil {
					emit(Violation{
						Descriptor: desc.Name,
						Tier:       desc.Tier,
						SoldierID:  id,
						Start:      m.Dates[b.Start],
						End:        m.Dates[b.End],
						Magnitude:  excess,
						Cost:       cost,
					})
				}
			}
			if b.Start == 0 || b.End == len(row)-1 {
				continue
			}
			for _, c := range m.closeCharges(b.OnBase, b.Len(), b.Start) {
				score.Charge(c.desc.Tier, c.cost)
				if emit != nil {
					emit(Violation{
						Descriptor: c.desc.Name,
						Tier:       c.desc.Tier,
						SoldierID:  id,
						Start:      m.Dates[b.Start],
						End:        m.Dates[b.End],
						Magnitude:  c.magnitude,
						Cost:       c.cost,
					})
				}
			}
		}
	}

	baseDays := 0
	for _, onBase := range row {
		if onBase {
			baseDays++
		}
	}
	for _, c := range m.finalCharges(i, baseDays) {
		score.Charge(c.desc.Tier, c.cost)
		if emit != nil && len(m.Dates) > 0 {
			emit(Violation{
				Descriptor: c.desc.Name,
				Tier:       c.desc.Tier,
				SoldierID:  id,
				Start:      m.Dates[0],
				End:        m.Dates[len(m.Dates)-1],
				Magnitude:  c.magnitude,
				Cost:       c.cost,
			})
		}
	}
	return score
}

type charge struct {
	desc      policy.Descriptor
	magnitude int
	cost      float64
}

func (m *Model) excessRule(onBase bool) (policy.Descriptor, int) {
	if onBase {
		return m.baseExcess, m.Event.MaxConsecutiveBaseDays
	}
	return m.homeExcess, m.Event.MaxConsecutiveHomeDays
}

// excessPrice prices the k-th day beyond the consecutive limit, falling on day
func (m *Model) excessPrice(onBase bool, k, day int) float64 {
	desc, limit := m.excessRule(onBase)
	return m.Policy.Price(desc, k, limit, m.Weekend[day])
}

// closeCharges prices an interior block of the given length when it ends
func (m *Model) closeCharges(onBase bool, length, start int) []charge {
	var out []charge
	if length == 1 {
		out = append(out, charge{
			desc:      m.isolated,
			magnitude: 1,
			cost:      m.Policy.Price(m.isolated, 1, 0, m.Weekend[start]),
		})
	}
	if onBase && length < m.Event.MinBaseBlockDays {
		deficit := m.Event.MinBaseBlockDays - length
		out = append(out, charge{
			desc:      m.short,
			magnitude: deficit,
			cost:      m.Policy.Cost(m.short, deficit, m.Event.MinBaseBlockDays, m.Weekend[start]),
		})
	}
	return out
}

// finalCharges prices the fairness terms of a soldier serving baseDays on base
func (m *Model) finalCharges(i, baseDays int) []charge {
	plan := m.Soldiers[i]
	var out []charge
	deviation := baseDays - plan.TargetBase
	if deviation < 0 {
		deviation = -deviation
	}
	if deviation > 0 {
		out = append(out, charge{
			desc:      m.balance,
			magnitude: deviation,
			cost:      m.Policy.Cost(m.balance, deviation, plan.TargetBase, false),
		})
	}
	if baseDays == 0 && plan.Available > 0 && plan.TargetBase > 0 {
		out = append(out, charge{
			desc:      m.idle,
			magnitude: 1,
			cost:      m.Policy.Price(m.idle, 1, 0, false),
		})
	}
	return out
}
