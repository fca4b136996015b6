package interpret

import (
	"fmt"

	"github.com/jakechorley/soldier-roster/pkg/core/engine"
	"github.com/jakechorley/soldier-roster/pkg/core/feasibility"
	"github.com/jakechorley/soldier-roster/pkg/core/model"
	"github.com/jakechorley/soldier-roster/pkg/core/policy"
	"github.com/jakechorley/soldier-roster/pkg/core/roster"
)

// Outcome is the run-level reading of an engine result
type Outcome struct {
	Status       model.RunStatus
	EngineStatus engine.Status
	Report       model.Report
	// Assignments is only set for SUCCESS and FEASIBLE
	Assignments []model.Assignment
	Violations  []roster.Violation
	Objective   float64
	LowerBound  float64
	Gap         float64
}

// Interpret maps an engine result to a run status and a diagnostic report.
// validation is the validator report of the same event; its stats carry over.
func Interpret(res *engine.Result, validation model.Report) Outcome {
	out := Outcome{
		EngineStatus: res.Status,
		Report: model.Report{
			Stats:    validation.Stats,
			Warnings: append([]string(nil), validation.Warnings...),
		},
	}

	switch res.Status {
	case engine.StatusError:
		out.Status = model.RunFailure
		msg := "the engine could not model the input"
		if res.Err != nil {
			msg = res.Err.Error()
		}
		out.Report.Errors = append(out.Report.Errors, msg)
		return out

	case engine.StatusInfeasible:
		out.Status = model.RunNoSolution
		describeUnreachable(res.Model, res.UnreachableDays, &out.Report)
		return out
	}

	ev := res.Evaluation
	out.Violations = ev.Violations
	out.Objective = ev.Score.Total()
	out.LowerBound = res.LowerBound.Total()
	out.Gap = res.Gap

	d := describer{m: res.Model, ev: ev, grid: res.Grid}
	var hard []roster.Violation
	for _, v := range ev.Violations {
		if v.Tier <= policy.TierStaffing {
			hard = append(hard, v)
			continue
		}
		out.Report.Warnings = append(out.Report.Warnings, d.describe(v))
	}

	if res.TimedOut {
		out.Report.Warnings = append(out.Report.Warnings, fmt.Sprintf(
			"search stopped at the time budget; optimality gap %.2f%%", res.Gap*100))
	}

	if len(hard) == 0 {
		out.Status = model.RunSuccess
		out.Report.IsValid = true
		out.Assignments = res.Model.Assignments(res.Grid)
		return out
	}

	unavoidable := res.Status == engine.StatusOptimal ||
		res.LowerBound.HasViolationsThrough(policy.TierStaffing)
	if unavoidable {
		out.Status = model.RunNoSolution
		for _, v := range hard {
			out.Report.Errors = append(out.Report.Errors, d.describe(v))
		}
		out.Report.Suggestions = append(out.Report.Suggestions, d.suggest(hard)...)
		return out
	}

	out.Status = model.RunFeasible
	out.Report.IsValid = true
	for _, v := range hard {
		out.Report.Warnings = append(out.Report.Warnings, d.describe(v))
	}
	out.Report.Suggestions = append(out.Report.Suggestions, d.suggest(hard)...)
	out.Assignments = res.Model.Assignments(res.Grid)
	return out
}

// Rejected builds the outcome of a run stopped by the validator before any search
func Rejected(validation model.Report) Outcome {
	report := validation
	report.IsValid = false
	return Outcome{Status: model.RunNoSolution, Report: report}
}

// Malformed builds the FAILURE outcome of input that cannot be modelled.
// The validator messages are kept next to the modelling error.
func Malformed(validation model.Report, cause error) Outcome {
	report := validation
	report.IsValid = false
	report.Errors = append([]string{cause.Error()}, validation.Errors...)
	return Outcome{Status: model.RunFailure, EngineStatus: engine.StatusError, Report: report}
}

func describeUnreachable(m *roster.Model, days []int, report *model.Report) {
	if m == nil {
		return
	}
	lowest := -1
	for _, d := range days {
		report.Errors = append(report.Errors, fmt.Sprintf(
			"on %s only %d soldiers are available against a floor of %d",
			m.Dates[d].Format(model.DateLayout), m.Available[d], m.Floor))
		if lowest < 0 || m.Available[d] < lowest {
			lowest = m.Available[d]
		}
	}
	if lowest >= 0 {
		report.Suggestions = append(report.Suggestions,
			fmt.Sprintf("reduce min_required_soldiers_per_day to at most %d", lowest+feasibility.StaffingTolerance),
			fmt.Sprintf("add %d soldiers available on the short days", m.Floor-lowest),
		)
	}
}
