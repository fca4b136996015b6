package roster

import (
	"github.com/jakechorley/soldier-roster/pkg/core/policy"
)

// runCap is the longest run length the dynamic program tracks exactly. Beyond it every
// extra day is priced at the critical rate, so longer runs are indistinguishable.
func (m *Model) runCap() int {
	capacity := max(m.Event.MinBaseBlockDays, 2)
	for _, onBase := range []bool{false, true} {
		desc, limit := m.excessRule(onBase)
		capacity = max(capacity, limit+max(desc.Boundary(limit), 0)+1)
	}
	return capacity
}

// closeScore prices an interior block ending after length days. Only short blocks are charged.
func (m *Model) closeScore(onBase bool, length, start int) policy.Score {
	var score policy.Score
	if length > m.Event.MinBaseBlockDays && length > 1 {
		return score
	}
	for _, c := range m.closeCharges(onBase, length, start) {
		score.Charge(c.desc.Tier, c.cost)
	}
	return score
}

// ResponseScore prices soldier i's row together with the staffing of the days it touches,
// given the on-base counts of all other soldiers
func (m *Model) ResponseScore(i int, row []bool, others []int) policy.Score {
	score := m.RowScore(i, row)
	for d, onBase := range row {
		count := others[d]
		if onBase {
			count++
		}
		score.Charge(m.staffing.Tier, m.StaffingCost(d, count))
	}
	return score
}

// BestResponse returns the cheapest row for soldier i while everyone else keeps their days.
// others holds the on-base count of the other soldiers per day. When others is nil the
// soldier is priced alone, without staffing and without the staffing floor.
// With others set, a day already below the floor forces the soldier on base if possible.
func (m *Model) BestResponse(i int, others []int) ([]bool, policy.Score) {
	plan := m.Soldiers[i]
	days := m.Days()
	if days == 0 {
		return []bool{}, m.RowScore(i, nil)
	}

	runCap := m.runCap()
	maxBase := plan.Available
	width := (runCap + 1) * (maxBase + 1)
	size := 2 * width
	index := func(onBase bool, run, base int) int {
		s := 0
		if onBase {
			s = 1
		}
		return s*width + run*(maxBase+1) + base
	}

	// Day costs: staffing given the others, and whether the state is allowed at all
	allowed := func(d int, onBase bool) bool {
		if onBase {
			return !plan.Fixed[d]
		}
		if others != nil && !plan.Fixed[d] && others[d] < m.Floor {
			return false
		}
		return true
	}
	dayScore := func(d int, onBase bool) policy.Score {
		var s policy.Score
		if others == nil {
			return s
		}
		count := others[d]
		if onBase {
			count++
		}
		s.Charge(m.staffing.Tier, m.StaffingCost(d, count))
		return s
	}

	finals := make([]policy.Score, maxBase+1)
	for b := range finals {
		for _, c := range m.finalCharges(i, b) {
			finals[b].Charge(c.desc.Tier, c.cost)
		}
	}

	cur := make([]policy.Score, size)
	curOK := make([]bool, size)
	next := make([]policy.Score, size)
	nextOK := make([]bool, size)
	parent := make([][]int32, days)
	for d := range parent {
		parent[d] = make([]int32, size)
	}

	for _, onBase := range []bool{false, true} {
		if !allowed(0, onBase) {
			continue
		}
		b := 0
		if onBase {
			b = 1
		}
		if b > maxBase {
			continue
		}
		at := index(onBase, 1, b)
		cur[at] = dayScore(0, onBase)
		curOK[at] = true
		parent[0][at] = -1
	}

	for d := 1; d < days; d++ {
		clear(nextOK)
		stay := [2]policy.Score{dayScore(d, false), dayScore(d, true)}
		for from := 0; from < size; from++ {
			if !curOK[from] {
				continue
			}
			onBase := from >= width
			run := (from % width) / (maxBase + 1)
			base := from % (maxBase + 1)

			for _, nextBase := range []bool{false, true} {
				if !allowed(d, nextBase) {
					continue
				}
				nb := base
				if nextBase {
					nb++
				}
				if nb > maxBase {
					continue
				}

				total := cur[from]
				var nr int
				if nextBase == onBase {
					nr = min(run+1, runCap)
					if desc, limit := m.excessRule(onBase); plan.BlockRules && run+1 > limit {
						total = total.Plus(single(desc.Tier, m.excessPrice(onBase, run+1-limit, d)))
					}
				} else {
					nr = 1
					if plan.BlockRules && d-run > 0 {
						total = total.Plus(m.closeScore(onBase, run, d-run))
					}
				}
				if nextBase {
					total = total.Plus(stay[1])
				} else {
					total = total.Plus(stay[0])
				}

				to := index(nextBase, nr, nb)
				if !nextOK[to] || total.Less(next[to]) {
					next[to] = total
					nextOK[to] = true
					parent[d][to] = int32(from)
				}
			}
		}
		cur, next = next, cur
		curOK, nextOK = nextOK, curOK
	}

	best := -1
	var bestScore policy.Score
	for at := 0; at < size; at++ {
		if !curOK[at] {
			continue
		}
		total := cur[at].Plus(finals[at%(maxBase+1)])
		if best < 0 || total.Less(bestScore) {
			best = at
			bestScore = total
		}
	}

	row := make([]bool, days)
	at := best
	for d := days - 1; d >= 0; d-- {
		row[d] = at >= width
		at = int(parent[d][at])
	}
	return row, bestScore
}

func single(tier int, amount float64) policy.Score {
	var s policy.Score
	s.Charge(tier, amount)
	return s
}
