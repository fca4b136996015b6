package sheetsclient

import (
	"fmt"
	"strings"
	"time"

	"github.com/jakechorley/soldier-roster/pkg/core/model"
)

// Expected column names in the roster sheet
var soldierFields = []string{
	"ID",
	"Name",
	"Exceptional",
	"Weekend only",
	"Unavailable",
}

// ListSoldiers retrieves and parses the soldiers of a roster tab.
// Unavailable holds comma separated dates; dates outside the event are dropped.
func (c *Client) ListSoldiers(spreadsheetID, tab string, event model.Event) ([]model.Soldier, error) {
	values, err := c.GetValues(spreadsheetID, tab)
	if err != nil {
		return nil, fmt.Errorf("failed to get roster data: %w", err)
	}

	if len(values) == 0 {
		return nil, fmt.Errorf("spreadsheet is empty")
	}

	soldiers, err := parseSoldiers(values, event)
	if err != nil {
		return nil, fmt.Errorf("failed to parse soldiers: %w", err)
	}

	return soldiers, nil
}

// parseSoldiers converts raw spreadsheet data into soldiers
func parseSoldiers(raw [][]interface{}, event model.Event) ([]model.Soldier, error) {
	if len(raw) < 1 {
		return nil, fmt.Errorf("no header row found")
	}

	fieldIndexes := make(map[string]int)
	for _, field := range soldierFields {
		index := findColumnIndex(raw[0], field)
		if index == -1 {
			return nil, fmt.Errorf("missing required field in header: %s", field)
		}
		fieldIndexes[field] = index
	}

	getField := func(field string, row []interface{}) string {
		index := fieldIndexes[field]
		if index >= len(row) {
			return ""
		}
		if str, ok := row[index].(string); ok {
			return strings.TrimSpace(str)
		}
		return ""
	}

	soldiers := make([]model.Soldier, 0, len(raw)-1)
	for i := 1; i < len(raw); i++ {
		row := raw[i]

		id := getField("ID", row)
		// Skip empty rows
		if id == "" {
			continue
		}

		soldier := model.Soldier{
			ID:            id,
			Name:          getField("Name", row),
			IsExceptional: isYes(getField("Exceptional", row)),
			IsWeekendOnly: isYes(getField("Weekend only", row)),
		}

		for _, part := range strings.Split(getField("Unavailable", row), ",") {
			part = strings.TrimSpace(part)
			if part == "" {
				continue
			}
			date, err := time.Parse(model.DateLayout, part)
			if err != nil {
				return nil, fmt.Errorf("invalid unavailable date %q for soldier %s in row %d", part, id, i+1)
			}
			if event.DayIndex(date) < 0 {
				continue
			}
			soldier.Constraints = append(soldier.Constraints, model.Constraint{Date: date, Category: "sheet"})
		}

		soldiers = append(soldiers, soldier)
	}

	return soldiers, nil
}

func isYes(value string) bool {
	switch strings.ToLower(value) {
	case "yes", "y", "true", "x", "1":
		return true
	}
	return false
}
