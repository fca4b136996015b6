package feasibility

import (
	"fmt"

	"github.com/jakechorley/soldier-roster/pkg/core/model"
)

const (
	scoreMismatchPenalty    = 20
	scoreBlockCountPenalty  = 30
	scoreUtilizationPenalty = 25

	// highUtilization is the share of the window spent on base above which tight limits cost score
	highUtilization = 0.7
)

// Validate checks event parameters with closed-form block arithmetic.
// It needs no soldier data and never searches.
func Validate(event model.Event) model.Report {
	report := model.Report{IsValid: true}

	totalDays := event.TotalDays()
	report.Stats.TotalDays = totalDays

	if !checkRanges(event, &report) {
		report.IsValid = false
		return report
	}

	base := event.BaseDaysPerSoldier
	home := event.HomeDaysPerSoldier
	maxBase := event.MaxConsecutiveBaseDays
	maxHome := event.MaxConsecutiveHomeDays
	minBlock := event.MinBaseBlockDays

	score := 100

	// Step 2: targets should cover the window
	if base+home != totalDays {
		report.Warnings = append(report.Warnings, fmt.Sprintf(
			"base_days_per_soldier (%d) + home_days_per_soldier (%d) = %d, but the event has %d days",
			base, home, base+home, totalDays))
		half := totalDays / 2
		report.Suggestions = append(report.Suggestions, fmt.Sprintf(
			"use a 50/50 split: base_days_per_soldier=%d, home_days_per_soldier=%d",
			half, totalDays-half))
		score -= scoreMismatchPenalty
	}

	// Step 3: base blocks separated by minimum gaps
	minBaseBlocks := ceilDiv(base, maxBase)
	report.Stats.MinBaseBlocks = minBaseBlocks
	if base+gaps(minBaseBlocks)*minBlock > totalDays {
		report.Errors = append(report.Errors, fmt.Sprintf(
			"%d base days in %d blocks need %d gap days of %d each, which exceeds the %d day event",
			base, minBaseBlocks, gaps(minBaseBlocks), minBlock, totalDays))
		if limit, ok := minimalLimit(base, maxBase, minBlock, totalDays); ok {
			report.Suggestions = append(report.Suggestions, fmt.Sprintf(
				"raise max_consecutive_base_days to at least %d", limit))
		}
		report.Suggestions = append(report.Suggestions, fmt.Sprintf(
			"reduce base_days_per_soldier to %d", maximalTarget(base, maxBase, minBlock, totalDays)))
	}

	// Step 4: home blocks separated by minimum base blocks
	minHomeBlocks := ceilDiv(home, maxHome)
	report.Stats.MinHomeBlocks = minHomeBlocks
	transitions := gaps(minHomeBlocks)
	if home+transitions*minBlock > totalDays {
		report.Errors = append(report.Errors, fmt.Sprintf(
			"%d home days in %d blocks need %d transitions of %d base days, which exceeds the %d day event",
			home, minHomeBlocks, transitions, minBlock, totalDays))
		if limit, ok := minimalLimit(home, maxHome, minBlock, totalDays); ok {
			report.Suggestions = append(report.Suggestions, fmt.Sprintf(
				"raise max_consecutive_home_days to at least %d", limit))
		} else {
			report.Suggestions = append(report.Suggestions, fmt.Sprintf(
				"reduce home_days_per_soldier to %d", maximalTarget(home, maxHome, minBlock, totalDays)))
		}
	}

	// Home days not consumed by the minimum gaps between base blocks form one rest stretch
	stretch := home - gaps(minBaseBlocks)*minBlock
	if minBaseBlocks > 0 && stretch > maxHome {
		excess := stretch - maxHome
		report.Errors = append(report.Errors, fmt.Sprintf(
			"need %d consecutive home days against a max of %d (max_consecutive_home_days)",
			stretch, maxHome))
		report.Suggestions = append(report.Suggestions,
			fmt.Sprintf("raise max_consecutive_home_days to at least %d", stretch),
			fmt.Sprintf("reduce home_days_per_soldier to %d", maxHome+gaps(minBaseBlocks)*minBlock),
			fmt.Sprintf("raise max_consecutive_base_days to %d", maxBase+excess*minBlock),
		)
	}

	// Step 5
	if minBlock > maxBase {
		report.Errors = append(report.Errors, fmt.Sprintf(
			"min_base_block_days (%d) is greater than max_consecutive_base_days (%d)",
			minBlock, maxBase))
		report.Suggestions = append(report.Suggestions, fmt.Sprintf(
			"lower min_base_block_days to %d or raise max_consecutive_base_days to %d", maxBase, minBlock))
	}

	// Step 6
	if float64(minBaseBlocks+minHomeBlocks) > float64(totalDays)/3 {
		score -= scoreBlockCountPenalty
	}
	if float64(base)/float64(totalDays) > highUtilization && maxBase < base {
		score -= scoreUtilizationPenalty
	}
	if score < 0 {
		score = 0
	}
	report.Stats.FeasibilityScore = score

	report.IsValid = len(report.Errors) == 0
	return report
}

// checkRanges reports malformed parameters. Returns false when arithmetic on them is meaningless.
func checkRanges(event model.Event, report *model.Report) bool {
	ok := true
	if event.End.Before(event.Start) {
		report.Errors = append(report.Errors, fmt.Sprintf(
			"end date %s is before start date %s",
			event.End.Format(model.DateLayout), event.Start.Format(model.DateLayout)))
		ok = false
	}

	fields := []struct {
		name     string
		value    int
		positive bool
	}{
		{"min_required_soldiers_per_day", event.MinRequiredPerDay, false},
		{"base_days_per_soldier", event.BaseDaysPerSoldier, false},
		{"home_days_per_soldier", event.HomeDaysPerSoldier, false},
		{"max_consecutive_base_days", event.MaxConsecutiveBaseDays, true},
		{"max_consecutive_home_days", event.MaxConsecutiveHomeDays, true},
		{"min_base_block_days", event.MinBaseBlockDays, false},
		{"exceptional_base_days", event.ExceptionalBaseDays, false},
	}
	for _, f := range fields {
		if f.value < 0 {
			report.Errors = append(report.Errors, fmt.Sprintf("%s must not be negative (got %d)", f.name, f.value))
			ok = false
		} else if f.positive && f.value == 0 {
			report.Errors = append(report.Errors, fmt.Sprintf("%s must be at least 1", f.name))
			ok = false
		}
	}
	return ok
}

// minimalLimit finds the smallest consecutive limit above current that lets days fit the window
func minimalLimit(days, current, minBlock, totalDays int) (int, bool) {
	for limit := current + 1; limit <= days; limit++ {
		if days+gaps(ceilDiv(days, limit))*minBlock <= totalDays {
			return limit, true
		}
	}
	return 0, false
}

// maximalTarget finds the largest day target that fits the window with the current limit
func maximalTarget(days, limit, minBlock, totalDays int) int {
	for t := days; t > 0; t-- {
		if t+gaps(ceilDiv(t, limit))*minBlock <= totalDays {
			return t
		}
	}
	return 0
}

func ceilDiv(a, b int) int {
	if b <= 0 {
		return 0
	}
	return (a + b - 1) / b
}

func gaps(blocks int) int {
	if blocks <= 1 {
		return 0
	}
	return blocks - 1
}
