package importer

import (
	"fmt"
	"io"
	"strings"
	"time"

	ics "github.com/arran4/golang-ical"
	"github.com/teambition/rrule-go"

	"github.com/jakechorley/soldier-roster/pkg/core/model"
)

// CalendarCategory is the category given to constraints read from a calendar
const CalendarCategory = "calendar"

// ParseCalendar reads an iCalendar stream and returns one constraint per event day inside the window.
// Timed events block every day they touch. All-day events end the day before DTEND.
func ParseCalendar(r io.Reader, event model.Event) ([]model.Constraint, error) {
	cal, err := ics.ParseCalendar(r)
	if err != nil {
		return nil, fmt.Errorf("failed to parse calendar: %w", err)
	}

	var constraints []model.Constraint
	for _, evt := range cal.Events() {
		spans, err := eventSpans(evt, event)
		if err != nil {
			return nil, err
		}
		summary := ""
		if prop := evt.GetProperty(ics.ComponentPropertySummary); prop != nil {
			summary = strings.TrimSpace(prop.Value)
		}
		for _, span := range spans {
			for d := span[0]; !d.After(span[1]); d = d.AddDate(0, 0, 1) {
				if event.DayIndex(d) < 0 {
					continue
				}
				constraints = append(constraints, model.Constraint{
					Date:        d,
					Category:    CalendarCategory,
					Description: summary,
				})
			}
		}
	}
	return Dedupe(constraints), nil
}

// eventSpans returns the inclusive [first, last] day of every occurrence of evt
func eventSpans(evt *ics.VEvent, event model.Event) ([][2]time.Time, error) {
	start, allDay, err := propertyTime(evt, ics.ComponentPropertyDtStart)
	if err != nil {
		return nil, fmt.Errorf("event %s: %w", evt.Id(), err)
	}

	length := time.Duration(0)
	if end, _, err := propertyTime(evt, ics.ComponentPropertyDtEnd); err == nil && end.After(start) {
		length = end.Sub(start)
		if allDay {
			length -= 24 * time.Hour
		}
	}

	occurrences := []time.Time{start}
	if prop := evt.GetProperty(ics.ComponentPropertyRrule); prop != nil {
		opt, err := rrule.StrToROption(prop.Value)
		if err != nil {
			return nil, fmt.Errorf("event %s: invalid rrule: %w", evt.Id(), err)
		}
		opt.Dtstart = start
		rule, err := rrule.NewRRule(*opt)
		if err != nil {
			return nil, fmt.Errorf("event %s: invalid rrule: %w", evt.Id(), err)
		}
		// Occurrences that start before the window can still reach into it
		occurrences = rule.Between(event.Start.Add(-length), event.End.AddDate(0, 0, 1), true)
	}

	spans := make([][2]time.Time, 0, len(occurrences))
	for _, o := range occurrences {
		first := day(o)
		last := day(o.Add(length))
		if !allDay && length > 0 && o.Add(length).Equal(last) {
			// a timed event ending at midnight does not touch the next day
			last = last.AddDate(0, 0, -1)
		}
		if last.Before(first) {
			last = first
		}
		spans = append(spans, [2]time.Time{first, last})
	}
	return spans, nil
}

func propertyTime(evt *ics.VEvent, name ics.ComponentProperty) (time.Time, bool, error) {
	prop := evt.GetProperty(name)
	if prop == nil {
		return time.Time{}, false, fmt.Errorf("missing property %s", name)
	}

	if t, err := time.Parse("20060102", prop.Value); err == nil {
		return t, true, nil
	}
	if t, err := time.Parse("20060102T150405Z", prop.Value); err == nil {
		return t, false, nil
	}

	loc := time.UTC
	if tzid, ok := prop.ICalParameters["TZID"]; ok && len(tzid) > 0 {
		if l, err := time.LoadLocation(tzid[0]); err == nil {
			loc = l
		}
	}
	if t, err := time.ParseInLocation("20060102T150405", prop.Value, loc); err == nil {
		return t, false, nil
	}
	return time.Time{}, false, fmt.Errorf("cannot parse %s value %q", name, prop.Value)
}

func day(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}
