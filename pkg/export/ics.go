package export

import (
	"fmt"
	"io"
	"time"

	ics "github.com/arran4/golang-ical"

	"github.com/jakechorley/soldier-roster/pkg/core/model"
)

// WriteICS writes one all-day calendar entry per base block of the soldier.
// An empty soldierID writes the blocks of every soldier.
func WriteICS(w io.Writer, schedule model.Schedule, soldierID string, stamp time.Time) error {
	cal := ics.NewCalendar()
	cal.SetMethod(ics.MethodPublish)
	cal.SetProductId("-//soldier-roster//EN")
	name := schedule.Event.Name
	if name == "" {
		name = schedule.Event.ID
	}
	cal.SetName(name)

	found := false
	matrix := schedule.Matrix()
	for i, soldier := range schedule.Soldiers {
		if soldierID != "" && soldier.ID != soldierID {
			continue
		}
		found = true
		for _, p := range schedule.Periods(matrix[i]) {
			if p.State != model.OnBase {
				continue
			}
			uid := fmt.Sprintf("%s-%s-%s@soldier-roster", schedule.Event.ID, soldier.ID, p.Start.Format("20060102"))
			evt := cal.AddEvent(uid)
			evt.SetDtStampTime(stamp)
			evt.SetAllDayStartAt(p.Start)
			// DTEND of an all-day event is exclusive
			evt.SetAllDayEndAt(p.End.AddDate(0, 0, 1))
			evt.SetSummary(fmt.Sprintf("On base: %s", displayName(soldier)))
			evt.SetDescription(fmt.Sprintf("%s, %s to %s", name,
				p.Start.Format(model.DateLayout), p.End.Format(model.DateLayout)))
		}
	}
	if !found {
		return fmt.Errorf("soldier %s is not in the schedule", soldierID)
	}

	if err := cal.SerializeTo(w); err != nil {
		return fmt.Errorf("failed to write calendar: %w", err)
	}
	return nil
}

func displayName(s model.Soldier) string {
	if s.Name != "" {
		return s.Name
	}
	return s.ID
}
