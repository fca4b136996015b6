package model

import "time"

// Schedule is a committed roster: the frozen input of a run and its assignments
type Schedule struct {
	Event       Event
	Soldiers    []Soldier
	Assignments []Assignment
}

// Matrix returns one row per soldier (in Soldiers order) and one column per event day
func (s Schedule) Matrix() [][]bool {
	index := make(map[string]int, len(s.Soldiers))
	for i, sol := range s.Soldiers {
		index[sol.ID] = i
	}

	days := s.Event.TotalDays()
	matrix := make([][]bool, len(s.Soldiers))
	for i := range matrix {
		matrix[i] = make([]bool, days)
	}
	for _, a := range s.Assignments {
		i, ok := index[a.SoldierID]
		d := s.Event.DayIndex(a.Date)
		if !ok || d < 0 {
			continue
		}
		matrix[i][d] = a.State == OnBase
	}
	return matrix
}

// DailyCounts returns the number of soldiers on base for each event day
func (s Schedule) DailyCounts() []int {
	counts := make([]int, s.Event.TotalDays())
	for _, row := range s.Matrix() {
		for d, onBase := range row {
			if onBase {
				counts[d]++
			}
		}
	}
	return counts
}

// Period is a run of consecutive days in one state
type Period struct {
	State DayState
	Start time.Time
	End   time.Time
}

// Periods returns the maximal same-state periods of one matrix row
func (s Schedule) Periods(row []bool) []Period {
	var periods []Period
	dates := s.Event.Dates()
	for d := 0; d < len(row); {
		end := d
		for end+1 < len(row) && row[end+1] == row[d] {
			end++
		}
		state := AtHome
		if row[d] {
			state = OnBase
		}
		periods = append(periods, Period{State: state, Start: dates[d], End: dates[end]})
		d = end + 1
	}
	return periods
}
