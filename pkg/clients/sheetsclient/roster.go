package sheetsclient

import (
	"fmt"

	"github.com/jakechorley/soldier-roster/pkg/core/model"
)

const (
	soldierColumn = "Soldier"
	idColumn      = "ID"
	notesColumn   = "Notes"
	countsLabel   = "On base"
)

// PublishRoster writes a schedule to its own tab, one row per soldier and one column per day.
// If the tab already exists the day columns are rewritten and the Notes column of each
// soldier is kept.
func (c *Client) PublishRoster(spreadsheetID string, schedule model.Schedule) error {
	tabTitle := TabTitle(schedule.Event)

	exists, err := c.hasSheet(spreadsheetID, tabTitle)
	if err != nil {
		return err
	}

	notes := map[string]interface{}{}
	if exists {
		existing, err := c.GetValues(spreadsheetID, fmt.Sprintf("'%s'!A1:ZZZ", tabTitle))
		if err != nil {
			return fmt.Errorf("failed to read existing tab data: %w", err)
		}
		notes = existingNotes(existing)
		if err := c.ClearValues(spreadsheetID, fmt.Sprintf("'%s'!A1:ZZZ", tabTitle)); err != nil {
			return fmt.Errorf("failed to clear existing tab: %w", err)
		}
	} else {
		if _, err := c.CreateSheet(spreadsheetID, tabTitle); err != nil {
			return fmt.Errorf("failed to create tab: %w", err)
		}
	}

	rows := BuildRosterRows(schedule, notes)
	if err := c.UpdateValues(spreadsheetID, fmt.Sprintf("'%s'!A1", tabTitle), rows); err != nil {
		return fmt.Errorf("failed to write roster: %w", err)
	}
	return nil
}

// TabTitle names the tab of an event, for example "June exercise Sun Jun 01 2025 - Tue Jun 10 2025"
func TabTitle(event model.Event) string {
	return fmt.Sprintf("%s %s - %s",
		event.Name,
		event.Start.Format("Mon Jan 02 2006"),
		event.End.Format("Mon Jan 02 2006"),
	)
}

// BuildRosterRows lays out the header, one row per soldier and a final row of daily counts.
// notes maps soldier ids to the Notes cell to keep.
func BuildRosterRows(schedule model.Schedule, notes map[string]interface{}) [][]interface{} {
	dates := schedule.Event.Dates()

	header := []interface{}{soldierColumn, idColumn}
	for _, d := range dates {
		header = append(header, d.Format("Mon 02 Jan"))
	}
	header = append(header, notesColumn)

	rows := [][]interface{}{header}
	for i, row := range schedule.Matrix() {
		soldier := schedule.Soldiers[i]
		sheetRow := []interface{}{soldier.Name, soldier.ID}
		for _, onBase := range row {
			if onBase {
				sheetRow = append(sheetRow, "B")
			} else {
				sheetRow = append(sheetRow, "")
			}
		}
		note, ok := notes[soldier.ID]
		if !ok {
			note = ""
		}
		sheetRow = append(sheetRow, note)
		rows = append(rows, sheetRow)
	}

	counts := []interface{}{countsLabel, ""}
	for _, n := range schedule.DailyCounts() {
		counts = append(counts, n)
	}
	counts = append(counts, "")
	rows = append(rows, counts)

	return rows
}

// existingNotes reads the Notes column of a previously published tab, keyed by soldier id
func existingNotes(existing [][]interface{}) map[string]interface{} {
	notes := make(map[string]interface{})
	if len(existing) == 0 {
		return notes
	}

	idCol := findColumnIndex(existing[0], idColumn)
	notesCol := findColumnIndex(existing[0], notesColumn)
	if idCol == -1 || notesCol == -1 {
		return notes
	}

	for _, row := range existing[1:] {
		if idCol >= len(row) || notesCol >= len(row) {
			continue
		}
		id, ok := row[idCol].(string)
		if !ok || id == "" {
			continue
		}
		notes[id] = row[notesCol]
	}
	return notes
}

// findColumnIndex finds the index of a column by its header name
func findColumnIndex(header []interface{}, columnName string) int {
	for i, cell := range header {
		if str, ok := cell.(string); ok && str == columnName {
			return i
		}
	}
	return -1
}
