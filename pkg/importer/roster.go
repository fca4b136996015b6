package importer

import (
	"fmt"
	"io"
	"sort"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/teambition/rrule-go"
	"gopkg.in/yaml.v3"

	"github.com/jakechorley/soldier-roster/pkg/core/model"
)

// RosterFile is the YAML document accepted by the roster import
type RosterFile struct {
	Soldiers []SoldierEntry `yaml:"soldiers" validate:"required,min=1,dive"`
}

// SoldierEntry is one soldier of a roster file
type SoldierEntry struct {
	ID          string             `yaml:"id,omitempty"`
	Name        string             `yaml:"name" validate:"required"`
	Exceptional bool               `yaml:"exceptional,omitempty"`
	WeekendOnly bool               `yaml:"weekendOnly,omitempty"`
	Unavailable []UnavailableEntry `yaml:"unavailable,omitempty" validate:"dive"`
}

// UnavailableEntry is a single date, a date range (date to until) or a recurring rule.
// Recurring rules are expanded over the event window.
type UnavailableEntry struct {
	Date        string `yaml:"date,omitempty" validate:"required_without=RRule,omitempty,datetime=2006-01-02"`
	Until       string `yaml:"until,omitempty" validate:"omitempty,datetime=2006-01-02"`
	RRule       string `yaml:"rrule,omitempty"`
	Category    string `yaml:"category,omitempty"`
	Description string `yaml:"description,omitempty"`
}

var validate = validator.New()

// ParseRoster reads a roster file and returns soldiers whose constraints fall inside the event window.
// Soldiers without an id get a generated one.
func ParseRoster(r io.Reader, event model.Event) ([]model.Soldier, error) {
	var file RosterFile
	if err := yaml.NewDecoder(r).Decode(&file); err != nil {
		return nil, fmt.Errorf("failed to parse roster file: %w", err)
	}

	if err := validate.Struct(&file); err != nil {
		return nil, fmt.Errorf("roster file validation failed: %w", err)
	}

	seen := make(map[string]bool)
	soldiers := make([]model.Soldier, 0, len(file.Soldiers))
	for i, entry := range file.Soldiers {
		id := entry.ID
		if id == "" {
			id = uuid.New().String()
		}
		if seen[id] {
			return nil, fmt.Errorf("duplicate soldier id %q in soldiers[%d]", id, i)
		}
		seen[id] = true

		soldier := model.Soldier{
			ID:            id,
			Name:          entry.Name,
			IsExceptional: entry.Exceptional,
			IsWeekendOnly: entry.WeekendOnly,
		}

		for j, u := range entry.Unavailable {
			constraints, err := expand(u, event)
			if err != nil {
				return nil, fmt.Errorf("soldiers[%d].unavailable[%d]: %w", i, j, err)
			}
			soldier.Constraints = append(soldier.Constraints, constraints...)
		}
		soldier.Constraints = Dedupe(soldier.Constraints)
		soldiers = append(soldiers, soldier)
	}

	return soldiers, nil
}

func expand(u UnavailableEntry, event model.Event) ([]model.Constraint, error) {
	var dates []time.Time

	switch {
	case u.RRule != "":
		opt, err := rrule.StrToROption(u.RRule)
		if err != nil {
			return nil, fmt.Errorf("invalid rrule %q: %w", u.RRule, err)
		}
		opt.Dtstart = event.Start
		if u.Date != "" {
			start, err := time.Parse(model.DateLayout, u.Date)
			if err != nil {
				return nil, fmt.Errorf("invalid date %q: %w", u.Date, err)
			}
			opt.Dtstart = start
		}
		rule, err := rrule.NewRRule(*opt)
		if err != nil {
			return nil, fmt.Errorf("invalid rrule %q: %w", u.RRule, err)
		}
		dates = rule.Between(event.Start, event.End, true)

	default:
		start, err := time.Parse(model.DateLayout, u.Date)
		if err != nil {
			return nil, fmt.Errorf("invalid date %q: %w", u.Date, err)
		}
		end := start
		if u.Until != "" {
			end, err = time.Parse(model.DateLayout, u.Until)
			if err != nil {
				return nil, fmt.Errorf("invalid until %q: %w", u.Until, err)
			}
			if end.Before(start) {
				return nil, fmt.Errorf("until %s is before date %s", u.Until, u.Date)
			}
		}
		for d := start; !d.After(end); d = d.AddDate(0, 0, 1) {
			dates = append(dates, d)
		}
	}

	var constraints []model.Constraint
	for _, d := range dates {
		d = time.Date(d.Year(), d.Month(), d.Day(), 0, 0, 0, 0, time.UTC)
		if event.DayIndex(d) < 0 {
			continue
		}
		constraints = append(constraints, model.Constraint{
			Date:        d,
			Category:    u.Category,
			Description: u.Description,
		})
	}
	return constraints, nil
}

// Dedupe keeps the last constraint per date and sorts by date
func Dedupe(constraints []model.Constraint) []model.Constraint {
	byDate := make(map[string]model.Constraint, len(constraints))
	for _, c := range constraints {
		byDate[c.Date.Format(model.DateLayout)] = c
	}
	out := make([]model.Constraint, 0, len(byDate))
	for _, c := range byDate {
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Date.Before(out[j].Date) })
	return out
}
