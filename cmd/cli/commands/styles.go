package commands

import (
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/jakechorley/soldier-roster/pkg/core/model"
)

var (
	colorOK      = lipgloss.Color("#10B981")
	colorWarn    = lipgloss.Color("#F59E0B")
	colorCrit    = lipgloss.Color("#EF4444")
	colorInfo    = lipgloss.Color("#3B82F6")
	colorNeutral = lipgloss.Color("#6B7280")

	headingStyle = lipgloss.NewStyle().Bold(true)
	mutedStyle   = lipgloss.NewStyle().Foreground(colorNeutral)
	onBaseStyle  = lipgloss.NewStyle().Foreground(colorOK).Bold(true)
)

func statusColor(status model.RunStatus) lipgloss.Color {
	switch status {
	case model.RunSuccess:
		return colorOK
	case model.RunFeasible:
		return colorWarn
	case model.RunNoSolution, model.RunFailure:
		return colorCrit
	case model.RunInProgress:
		return colorInfo
	}
	return colorNeutral
}

// StatusBadge renders a run status as a colored badge
func StatusBadge(status model.RunStatus) string {
	return lipgloss.NewStyle().
		Background(statusColor(status)).
		Foreground(lipgloss.Color("#FFFFFF")).
		Padding(0, 1).
		Bold(true).
		Render(string(status))
}

// printReport writes the non-empty sections of a diagnostic report
func printReport(w io.Writer, report model.Report) {
	section := func(title string, color lipgloss.Color, lines []string) {
		if len(lines) == 0 {
			return
		}
		fmt.Fprintf(w, "%s\n", headingStyle.Foreground(color).Render(title))
		for _, line := range lines {
			fmt.Fprintf(w, "  • %s\n", line)
		}
		fmt.Fprintln(w)
	}

	section("Errors", colorCrit, report.Errors)
	section("Warnings", colorWarn, report.Warnings)
	section("Suggestions", colorInfo, report.Suggestions)

	s := report.Stats
	if s.TotalDays > 0 {
		fmt.Fprintf(w, "%s %d days, %d base blocks, %d home blocks, feasibility score %d\n\n",
			mutedStyle.Render("Stats:"), s.TotalDays, s.MinBaseBlocks, s.MinHomeBlocks, s.FeasibilityScore)
	}
}

// printSchedule writes one line per soldier with B for base days, then the daily counts
func printSchedule(w io.Writer, schedule model.Schedule) {
	width := len("Soldier")
	for _, s := range schedule.Soldiers {
		width = max(width, len(s.Name))
	}

	matrix := schedule.Matrix()
	for i, s := range schedule.Soldiers {
		var b strings.Builder
		for _, onBase := range matrix[i] {
			if onBase {
				b.WriteString(onBaseStyle.Render("B"))
			} else {
				b.WriteString(mutedStyle.Render("."))
			}
		}
		fmt.Fprintf(w, "  %-*s %s\n", width, s.Name, b.String())
	}

	counts := schedule.DailyCounts()
	low := 0
	for _, c := range counts {
		if c < schedule.Event.MinRequiredPerDay {
			low++
		}
	}
	fmt.Fprintf(w, "\n  Daily on base: %v\n", counts)
	if low > 0 {
		fmt.Fprintf(w, "  %s\n", lipgloss.NewStyle().Foreground(colorWarn).Render(
			fmt.Sprintf("%d days below the required %d", low, schedule.Event.MinRequiredPerDay)))
	}
	fmt.Fprintln(w)
}
