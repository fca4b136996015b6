package interpret

import (
	"fmt"
	"time"

	"github.com/jakechorley/soldier-roster/pkg/core/model"
	"github.com/jakechorley/soldier-roster/pkg/core/policy"
	"github.com/jakechorley/soldier-roster/pkg/core/roster"
)

type describer struct {
	m    *roster.Model
	ev   roster.Evaluation
	grid roster.Grid
}

func (d describer) soldier(id string) (int, model.Soldier) {
	for i, plan := range d.m.Soldiers {
		if plan.Soldier.ID == id {
			return i, plan.Soldier
		}
	}
	return -1, model.Soldier{ID: id}
}

func (d describer) name(id string) string {
	_, s := d.soldier(id)
	if s.Name != "" {
		return s.Name
	}
	return id
}

func days(v roster.Violation) int {
	return int(v.End.Sub(v.Start).Hours()/24) + 1
}

func (d describer) describe(v roster.Violation) string {
	event := d.m.Event
	start := v.Start.Format(model.DateLayout)
	end := v.End.Format(model.DateLayout)

	switch v.Descriptor {
	case policy.HomeBlockExcess:
		return fmt.Sprintf("soldier %s is at home %d consecutive days (%s to %s), %d over the max of %d",
			d.name(v.SoldierID), days(v), start, end, v.Magnitude, event.MaxConsecutiveHomeDays)
	case policy.BaseBlockExcess:
		return fmt.Sprintf("soldier %s is on base %d consecutive days (%s to %s), %d over the max of %d",
			d.name(v.SoldierID), days(v), start, end, v.Magnitude, event.MaxConsecutiveBaseDays)
	case policy.IsolatedDay:
		i, _ := d.soldier(v.SoldierID)
		state := "home"
		if i >= 0 && d.onBase(i, v.Start) {
			state = "base"
		}
		return fmt.Sprintf("soldier %s has an isolated %s day on %s", d.name(v.SoldierID), state, start)
	case policy.ShortBaseBlock:
		return fmt.Sprintf("soldier %s has a %d day base block starting %s, shorter than the minimum of %d",
			d.name(v.SoldierID), days(v), start, event.MinBaseBlockDays)
	case policy.StaffingShortfall:
		count := event.MinRequiredPerDay - v.Magnitude
		return fmt.Sprintf("on %s only %d soldiers are on base against %d required",
			start, count, event.MinRequiredPerDay)
	case policy.BalanceDeviation:
		i, _ := d.soldier(v.SoldierID)
		if i < 0 {
			break
		}
		return fmt.Sprintf("soldier %s serves %d base days against a target of %d",
			d.name(v.SoldierID), d.ev.BaseDays[i], d.m.Soldiers[i].TargetBase)
	case policy.IdleSoldier:
		return fmt.Sprintf("soldier %s has no base days", d.name(v.SoldierID))
	}
	return fmt.Sprintf("%s: %s %s to %s (magnitude %d)", v.Descriptor, v.SoldierID, start, end, v.Magnitude)
}

func (d describer) onBase(i int, date time.Time) bool {
	day := d.m.Event.DayIndex(date)
	return i < len(d.grid) && day >= 0 && d.grid[i][day]
}

// suggest inverts the block arithmetic on the realized violations
func (d describer) suggest(hard []roster.Violation) []string {
	event := d.m.Event
	var out []string
	longestHome, longestBase, shortestBase := 0, 0, 0
	worstCount, worstShort := -1, 0
	var isolated []roster.Violation

	for _, v := range hard {
		switch v.Descriptor {
		case policy.HomeBlockExcess:
			longestHome = max(longestHome, days(v))
		case policy.BaseBlockExcess:
			longestBase = max(longestBase, days(v))
		case policy.ShortBaseBlock:
			if shortestBase == 0 || days(v) < shortestBase {
				shortestBase = days(v)
			}
		case policy.IsolatedDay:
			isolated = append(isolated, v)
		case policy.StaffingShortfall:
			count := event.MinRequiredPerDay - v.Magnitude
			if worstCount < 0 || count < worstCount {
				worstCount = count
			}
			worstShort = max(worstShort, v.Magnitude)
		}
	}

	if longestHome > 0 {
		out = append(out,
			fmt.Sprintf("raise max_consecutive_home_days to at least %d", longestHome),
			fmt.Sprintf("reduce home_days_per_soldier to %d",
				max(event.HomeDaysPerSoldier-(longestHome-event.MaxConsecutiveHomeDays), 0)),
		)
	}
	if longestBase > 0 {
		out = append(out,
			fmt.Sprintf("raise max_consecutive_base_days to at least %d", longestBase),
			"add soldiers so fewer consecutive base days are needed",
		)
	}
	if shortestBase > 0 {
		out = append(out, fmt.Sprintf("lower min_base_block_days to %d", shortestBase))
	}
	for _, v := range isolated {
		out = append(out, fmt.Sprintf("review the unavailable dates of %s around %s",
			d.name(v.SoldierID), v.Start.Format(model.DateLayout)))
	}
	if worstCount >= 0 {
		out = append(out,
			fmt.Sprintf("reduce min_required_soldiers_per_day to %d", worstCount),
			fmt.Sprintf("add %d soldiers", worstShort),
		)
	}
	return out
}
