package export

import (
	"fmt"
	"io"
	"time"

	"github.com/xuri/excelize/v2"

	"github.com/jakechorley/soldier-roster/pkg/core/model"
)

const (
	rosterSheet = "Roster"
	countsSheet = "Daily counts"
)

// WriteXLSX writes a workbook with the soldier-by-day matrix and the daily on-base counts
func WriteXLSX(w io.Writer, schedule model.Schedule) error {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", rosterSheet); err != nil {
		return fmt.Errorf("failed to name roster sheet: %w", err)
	}
	if _, err := f.NewSheet(countsSheet); err != nil {
		return fmt.Errorf("failed to create counts sheet: %w", err)
	}

	styles, err := newStyles(f)
	if err != nil {
		return err
	}

	if err := writeMatrix(f, schedule, styles); err != nil {
		return err
	}
	if err := writeCounts(f, schedule, styles); err != nil {
		return err
	}

	if err := f.Write(w); err != nil {
		return fmt.Errorf("failed to write workbook: %w", err)
	}
	return nil
}

type sheetStyles struct {
	header int
	onBase int
	atHome int
	short  int
}

func newStyles(f *excelize.File) (sheetStyles, error) {
	var s sheetStyles
	var err error

	s.header, err = f.NewStyle(&excelize.Style{
		Font:      &excelize.Font{Bold: true},
		Fill:      excelize.Fill{Type: "pattern", Color: []string{"#D9E1F2"}, Pattern: 1},
		Alignment: &excelize.Alignment{Horizontal: "center"},
	})
	if err != nil {
		return s, fmt.Errorf("failed to create header style: %w", err)
	}
	s.onBase, err = f.NewStyle(&excelize.Style{
		Fill:      excelize.Fill{Type: "pattern", Color: []string{"#C6EFCE"}, Pattern: 1},
		Alignment: &excelize.Alignment{Horizontal: "center"},
	})
	if err != nil {
		return s, fmt.Errorf("failed to create on-base style: %w", err)
	}
	s.atHome, err = f.NewStyle(&excelize.Style{
		Alignment: &excelize.Alignment{Horizontal: "center"},
	})
	if err != nil {
		return s, fmt.Errorf("failed to create at-home style: %w", err)
	}
	s.short, err = f.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true, Color: "#9C0006"},
		Fill: excelize.Fill{Type: "pattern", Color: []string{"#FFC7CE"}, Pattern: 1},
	})
	if err != nil {
		return s, fmt.Errorf("failed to create shortfall style: %w", err)
	}
	return s, nil
}

func writeMatrix(f *excelize.File, schedule model.Schedule, styles sheetStyles) error {
	dates := schedule.Event.Dates()

	if err := setRow(f, rosterSheet, 1, header("Soldier", dates), styles.header); err != nil {
		return err
	}

	for i, row := range schedule.Matrix() {
		soldier := schedule.Soldiers[i]
		name := soldier.Name
		if name == "" {
			name = soldier.ID
		}
		if err := setCell(f, rosterSheet, 1, i+2, name, 0); err != nil {
			return err
		}
		for d, onBase := range row {
			value, style := "H", styles.atHome
			if onBase {
				value, style = "B", styles.onBase
			}
			if err := setCell(f, rosterSheet, d+2, i+2, value, style); err != nil {
				return err
			}
		}
	}

	if err := f.SetColWidth(rosterSheet, "A", "A", 24); err != nil {
		return fmt.Errorf("failed to size roster sheet: %w", err)
	}
	return nil
}

func writeCounts(f *excelize.File, schedule model.Schedule, styles sheetStyles) error {
	if err := setRow(f, countsSheet, 1, []any{"Date", "On base", "Required"}, styles.header); err != nil {
		return err
	}

	required := schedule.Event.MinRequiredPerDay
	dates := schedule.Event.Dates()
	for d, count := range schedule.DailyCounts() {
		style := 0
		if count < required {
			style = styles.short
		}
		row := d + 2
		if err := setCell(f, countsSheet, 1, row, dates[d].Format(model.DateLayout), 0); err != nil {
			return err
		}
		if err := setCell(f, countsSheet, 2, row, count, style); err != nil {
			return err
		}
		if err := setCell(f, countsSheet, 3, row, required, 0); err != nil {
			return err
		}
	}

	if err := f.SetColWidth(countsSheet, "A", "C", 14); err != nil {
		return fmt.Errorf("failed to size counts sheet: %w", err)
	}
	return nil
}

func header(first string, dates []time.Time) []any {
	values := make([]any, 0, len(dates)+1)
	values = append(values, first)
	for _, d := range dates {
		values = append(values, d.Format("Mon 02 Jan"))
	}
	return values
}

func setRow(f *excelize.File, sheet string, row int, values []any, style int) error {
	for i, v := range values {
		if err := setCell(f, sheet, i+1, row, v, style); err != nil {
			return err
		}
	}
	return nil
}

func setCell(f *excelize.File, sheet string, col, row int, value any, style int) error {
	cell, err := excelize.CoordinatesToCellName(col, row)
	if err != nil {
		return fmt.Errorf("failed to address cell: %w", err)
	}
	if err := f.SetCellValue(sheet, cell, value); err != nil {
		return fmt.Errorf("failed to set %s!%s: %w", sheet, cell, err)
	}
	if style != 0 {
		if err := f.SetCellStyle(sheet, cell, cell, style); err != nil {
			return fmt.Errorf("failed to style %s!%s: %w", sheet, cell, err)
		}
	}
	return nil
}
