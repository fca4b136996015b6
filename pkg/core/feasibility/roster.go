package feasibility

import (
	"fmt"
	"slices"
	"time"

	"github.com/jakechorley/soldier-roster/pkg/core/model"
)

// StaffingTolerance is how far below min_required_soldiers_per_day a day may fall
const StaffingTolerance = 2

// StaffingFloor returns the lowest on-base count any accepted schedule may have on a day
func StaffingFloor(minRequired int) int {
	if minRequired-StaffingTolerance < 0 {
		return 0
	}
	return minRequired - StaffingTolerance
}

// Availability returns, per event day, how many soldiers could be on base
func Availability(event model.Event, soldiers []model.Soldier, weekendDays []time.Weekday) []int {
	dates := event.Dates()
	counts := make([]int, len(dates))
	for _, s := range soldiers {
		for d, date := range dates {
			if IsAvailable(s, date, weekendDays) {
				counts[d]++
			}
		}
	}
	return counts
}

// IsAvailable reports whether the soldier may be on base on date
func IsAvailable(s model.Soldier, date time.Time, weekendDays []time.Weekday) bool {
	if s.UnavailableOn(date) {
		return false
	}
	if s.IsWeekendOnly && !slices.Contains(weekendDays, date.Weekday()) {
		return false
	}
	return true
}

// ValidateRoster checks that the roster can meet the staffing floor on every day.
// Days failing here make the engine report INFEASIBLE.
func ValidateRoster(event model.Event, soldiers []model.Soldier, weekendDays []time.Weekday) model.Report {
	report := model.Report{IsValid: true}
	report.Stats.TotalDays = event.TotalDays()

	if len(soldiers) == 0 {
		if event.MinRequiredPerDay > 0 {
			report.Errors = append(report.Errors, fmt.Sprintf(
				"the roster is empty but %d soldiers are required per day", event.MinRequiredPerDay))
			report.Suggestions = append(report.Suggestions, fmt.Sprintf(
				"add at least %d soldiers", StaffingFloor(event.MinRequiredPerDay)))
			report.IsValid = false
		}
		return report
	}

	seen := make(map[string]bool, len(soldiers))
	for _, s := range soldiers {
		if s.ID == "" {
			report.Errors = append(report.Errors, fmt.Sprintf("soldier %q has no id", s.Name))
			continue
		}
		if seen[s.ID] {
			report.Errors = append(report.Errors, fmt.Sprintf("soldier id %s appears more than once", s.ID))
		}
		seen[s.ID] = true
	}

	dates := event.Dates()
	floor := StaffingFloor(event.MinRequiredPerDay)
	counts := Availability(event, soldiers, weekendDays)

	lowest := -1
	for d, available := range counts {
		if available < floor {
			report.Errors = append(report.Errors, fmt.Sprintf(
				"on %s only %d soldiers are available against a floor of %d",
				dates[d].Format(model.DateLayout), available, floor))
			if lowest < 0 || available < lowest {
				lowest = available
			}
		}
	}
	if lowest >= 0 {
		report.Suggestions = append(report.Suggestions,
			fmt.Sprintf("reduce min_required_soldiers_per_day to at most %d", lowest+StaffingTolerance),
			fmt.Sprintf("add %d soldiers without constraints on the short days", floor-lowest),
		)
	}

	capacity := 0
	for _, s := range soldiers {
		available := 0
		for _, date := range dates {
			if IsAvailable(s, date, weekendDays) {
				available++
			}
		}
		if available == 0 && len(dates) > 0 {
			report.Warnings = append(report.Warnings, fmt.Sprintf(
				"soldier %s is unavailable for the whole event", displayName(s)))
		}
		capacity += BaseTarget(event, s, available)
	}
	required := floor * len(dates)
	if capacity < required {
		report.Warnings = append(report.Warnings, fmt.Sprintf(
			"base day targets supply %d soldier-days against %d required; soldiers will exceed their targets",
			capacity, required))
	}

	report.IsValid = len(report.Errors) == 0
	return report
}

// BaseTarget returns the number of base days a soldier should serve given their available days.
// Weekend-only soldiers serve every weekend day they can.
func BaseTarget(event model.Event, s model.Soldier, available int) int {
	switch {
	case s.IsWeekendOnly:
		return available
	case s.IsExceptional && event.ExceptionalBaseDays > 0:
		return min(event.ExceptionalBaseDays, available)
	default:
		return min(event.BaseDaysPerSoldier, available)
	}
}

func displayName(s model.Soldier) string {
	if s.Name != "" {
		return fmt.Sprintf("%s (%s)", s.Name, s.ID)
	}
	return s.ID
}
