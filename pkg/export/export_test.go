package export

import (
	"bytes"
	"strings"
	"testing"
	"time"

	ics "github.com/arran4/golang-ical"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"github.com/jakechorley/soldier-roster/pkg/core/model"
)

func day(n int) time.Time {
	return time.Date(2025, 6, n, 0, 0, 0, 0, time.UTC)
}

// Avi: B B H H B, Bea: H B B B H
func testSchedule() model.Schedule {
	pattern := map[string]string{"s1": "BBHHB", "s2": "HBBBH"}
	schedule := model.Schedule{
		Event: model.Event{ID: "event-1", Name: "June", Start: day(1), End: day(5), MinRequiredPerDay: 2},
		Soldiers: []model.Soldier{
			{ID: "s1", Name: "Avi"},
			{ID: "s2", Name: "Bea"},
		},
	}
	for _, s := range schedule.Soldiers {
		for d, c := range pattern[s.ID] {
			state := model.AtHome
			if c == 'B' {
				state = model.OnBase
			}
			schedule.Assignments = append(schedule.Assignments, model.Assignment{SoldierID: s.ID, Date: day(d + 1), State: state})
		}
	}
	return schedule
}

func TestWriteXLSX(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteXLSX(&buf, testSchedule()))

	f, err := excelize.OpenReader(&buf)
	require.NoError(t, err)
	defer f.Close()

	rows, err := f.GetRows(rosterSheet)
	require.NoError(t, err)
	require.Len(t, rows, 3)
	assert.Equal(t, "Soldier", rows[0][0])
	assert.Equal(t, "Sun 01 Jun", rows[0][1])
	assert.Equal(t, []string{"Avi", "B", "B", "H", "H", "B"}, rows[1])
	assert.Equal(t, []string{"Bea", "H", "B", "B", "B", "H"}, rows[2])

	counts, err := f.GetRows(countsSheet)
	require.NoError(t, err)
	require.Len(t, counts, 6)
	assert.Equal(t, []string{"2025-06-01", "1", "2"}, counts[1])
	assert.Equal(t, []string{"2025-06-02", "2", "2"}, counts[2])
}

func TestWriteICS_SingleSoldier(t *testing.T) {
	var buf bytes.Buffer
	stamp := time.Date(2025, 5, 1, 12, 0, 0, 0, time.UTC)
	require.NoError(t, WriteICS(&buf, testSchedule(), "s1", stamp))

	cal, err := ics.ParseCalendar(strings.NewReader(buf.String()))
	require.NoError(t, err)

	events := cal.Events()
	require.Len(t, events, 2)

	start := events[0].GetProperty(ics.ComponentPropertyDtStart)
	end := events[0].GetProperty(ics.ComponentPropertyDtEnd)
	require.NotNil(t, start)
	require.NotNil(t, end)
	assert.Equal(t, "20250601", start.Value)
	assert.Equal(t, "20250603", end.Value)
	assert.Contains(t, events[0].GetProperty(ics.ComponentPropertySummary).Value, "Avi")

	assert.Equal(t, "20250605", events[1].GetProperty(ics.ComponentPropertyDtStart).Value)
}

func TestWriteICS_AllSoldiers(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteICS(&buf, testSchedule(), "", time.Now()))

	cal, err := ics.ParseCalendar(strings.NewReader(buf.String()))
	require.NoError(t, err)
	assert.Len(t, cal.Events(), 3)
}

func TestWriteICS_UnknownSoldier(t *testing.T) {
	var buf bytes.Buffer
	err := WriteICS(&buf, testSchedule(), "nobody", time.Now())
	assert.Error(t, err)
}
