package engine

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jakechorley/soldier-roster/pkg/core/feasibility"
	"github.com/jakechorley/soldier-roster/pkg/core/model"
	"github.com/jakechorley/soldier-roster/pkg/core/policy"
	"github.com/jakechorley/soldier-roster/pkg/core/roster"
)

var june = time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)

func testOptions() Options {
	opts := DefaultOptions()
	opts.TimeBudget = 0
	opts.Workers = 3
	opts.MaxRounds = 20
	opts.StallRounds = 10
	return opts
}

func fourDayEvent(required int) model.Event {
	return model.Event{
		ID:                     "event-1",
		Start:                  june,
		End:                    june.AddDate(0, 0, 3),
		MinRequiredPerDay:      required,
		BaseDaysPerSoldier:     2,
		HomeDaysPerSoldier:     2,
		MaxConsecutiveBaseDays: 2,
		MaxConsecutiveHomeDays: 2,
		MinBaseBlockDays:       2,
	}
}

func soldiers(n int) []model.Soldier {
	out := make([]model.Soldier, n)
	for i := range out {
		out[i] = model.Soldier{ID: fmt.Sprintf("s%d", i+1)}
	}
	return out
}

func TestSolve_Optimal(t *testing.T) {
	res, err := Solve(context.Background(), Input{
		Event:    fourDayEvent(1),
		Soldiers: soldiers(2),
		Policy:   policy.Default(),
	}, testOptions())
	require.NoError(t, err)

	assert.Equal(t, StatusOptimal, res.Status)
	assert.True(t, res.Evaluation.Score.IsZero())
	assert.Zero(t, res.Gap)
	assert.False(t, res.TimedOut)
	assert.Equal(t, []int{1, 1, 1, 1}, res.Evaluation.DailyCounts)
}

func TestSolve_RespectsUnavailability(t *testing.T) {
	event := model.Event{
		ID:                     "event-1",
		Start:                  june,
		End:                    june.AddDate(0, 0, 9),
		MinRequiredPerDay:      3,
		BaseDaysPerSoldier:     5,
		HomeDaysPerSoldier:     5,
		MaxConsecutiveBaseDays: 5,
		MaxConsecutiveHomeDays: 5,
		MinBaseBlockDays:       2,
	}
	squad := soldiers(4)
	squad[0].Constraints = []model.Constraint{{Date: june.AddDate(0, 0, 2)}, {Date: june.AddDate(0, 0, 3)}}
	squad[1].Constraints = []model.Constraint{{Date: june.AddDate(0, 0, 3)}}

	res, err := Solve(context.Background(), Input{Event: event, Soldiers: squad, Policy: policy.Default()}, testOptions())
	require.NoError(t, err)
	require.Contains(t, []Status{StatusOptimal, StatusFeasible}, res.Status)

	assert.False(t, res.Grid[0][2])
	assert.False(t, res.Grid[0][3])
	assert.False(t, res.Grid[1][3])
	for d, count := range res.Evaluation.DailyCounts {
		assert.GreaterOrEqual(t, count, 1, "day %d", d)
	}
	assert.GreaterOrEqual(t, res.Evaluation.Score.Total(), res.LowerBound.Total())
}

func TestSolve_Infeasible(t *testing.T) {
	squad := soldiers(2)
	for i := range squad {
		squad[i].Constraints = []model.Constraint{{Date: june}}
	}

	res, err := Solve(context.Background(), Input{
		Event:    fourDayEvent(4),
		Soldiers: squad,
		Policy:   policy.Default(),
	}, testOptions())
	require.NoError(t, err)

	assert.Equal(t, StatusInfeasible, res.Status)
	assert.Equal(t, []int{0}, res.UnreachableDays)
	assert.Nil(t, res.Grid)
}

func TestSolve_MalformedInput(t *testing.T) {
	tests := []struct {
		name     string
		event    model.Event
		soldiers []model.Soldier
	}{
		{"empty roster", fourDayEvent(3), nil},
		{"duplicate soldier", fourDayEvent(1), []model.Soldier{{ID: "s1"}, {ID: "s1"}}},
		{"negative target", func() model.Event {
			e := fourDayEvent(1)
			e.HomeDaysPerSoldier = -2
			return e
		}(), soldiers(2)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res, err := Solve(context.Background(), Input{Event: tt.event, Soldiers: tt.soldiers, Policy: policy.Default()}, testOptions())
			require.NoError(t, err)
			assert.Equal(t, StatusError, res.Status)
			assert.True(t, errors.Is(res.Err, roster.ErrMalformedInput))
		})
	}
}

func TestSolve_InvalidPolicy(t *testing.T) {
	pol := policy.Default()
	pol.Descriptors = pol.Descriptors[:3]

	res, err := Solve(context.Background(), Input{Event: fourDayEvent(1), Soldiers: soldiers(2), Policy: pol}, testOptions())
	require.NoError(t, err)
	assert.Equal(t, StatusError, res.Status)
}

func TestSolve_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	res, err := Solve(ctx, Input{Event: fourDayEvent(1), Soldiers: soldiers(2), Policy: policy.Default()}, testOptions())
	assert.ErrorIs(t, err, ErrCancelled)
	assert.Nil(t, res)
}

func TestSolve_Deterministic(t *testing.T) {
	in := randomInput(rand.New(rand.NewSource(7)), 12, 14)

	first, err := Solve(context.Background(), in, testOptions())
	require.NoError(t, err)
	second, err := Solve(context.Background(), in, testOptions())
	require.NoError(t, err)

	assert.Equal(t, first.Status, second.Status)
	assert.Equal(t, first.Grid, second.Grid)
	assert.Equal(t, first.Evaluation.Score, second.Evaluation.Score)
}

func TestSolve_TimeBudget(t *testing.T) {
	opts := testOptions()
	opts.TimeBudget = time.Nanosecond
	in := randomInput(rand.New(rand.NewSource(3)), 30, 28)

	res, err := Solve(context.Background(), in, opts)
	require.NoError(t, err)
	if res.Status == StatusInfeasible {
		t.Skip("random instance has unreachable days")
	}
	assert.NotNil(t, res.Grid, "a timed out search still returns its best schedule")
	assertHardConstraints(t, in, res)
}

// One soldier over five days with single-day base blocks and at most three days at home.
// Covering every day needs an interior one-day block or a home overrun, so the only
// schedule clean through the travel tier is B H H H B with three short days.
func TestSolve_KeepsShortfallOverTravelAndRest(t *testing.T) {
	event := model.Event{
		ID:                     "event-1",
		Start:                  june,
		End:                    june.AddDate(0, 0, 4),
		MinRequiredPerDay:      1,
		BaseDaysPerSoldier:     2,
		HomeDaysPerSoldier:     3,
		MaxConsecutiveBaseDays: 1,
		MaxConsecutiveHomeDays: 3,
		MinBaseBlockDays:       1,
	}
	in := Input{Event: event, Soldiers: soldiers(1), Policy: policy.Default()}

	m, err := roster.Build(in.Event, in.Soldiers, in.Policy)
	require.NoError(t, err)
	for mask := 0; mask < 1<<5; mask++ {
		row := make([]bool, 5)
		for d := range row {
			row[d] = mask&(1<<d) != 0
		}
		score := m.RowScore(0, row)
		clean := !score.HasViolationsThrough(policy.TierTravel)
		assert.Equal(t, mask == 0b10001, clean, "row %05b", mask)
	}

	res, err := Solve(context.Background(), in, testOptions())
	require.NoError(t, err)
	require.Contains(t, []Status{StatusOptimal, StatusFeasible}, res.Status)

	assert.Equal(t, roster.Grid{{true, false, false, false, true}}, res.Grid)
	assert.Zero(t, res.Evaluation.Score.Tier(policy.TierRest))
	assert.Zero(t, res.Evaluation.Score.Tier(policy.TierTravel))
	assert.Positive(t, res.Evaluation.Score.Tier(policy.TierStaffing))

	shortDays := 0
	for _, v := range res.Evaluation.Violations {
		assert.NotEqual(t, policy.IsolatedDay, v.Descriptor)
		assert.NotEqual(t, policy.HomeBlockExcess, v.Descriptor)
		if v.Descriptor == policy.StaffingShortfall {
			shortDays++
		}
	}
	assert.Equal(t, 3, shortDays)
}

// Every schedule the engine returns keeps unavailable soldiers at home and meets the floor
func TestSolve_RandomInstancesKeepHardConstraints(t *testing.T) {
	rng := rand.New(rand.NewSource(42))
	opts := testOptions()
	opts.MaxRounds = 5

	for i := 0; i < 25; i++ {
		in := randomInput(rng, 3+rng.Intn(6), 5+rng.Intn(10))

		res, err := Solve(context.Background(), in, opts)
		require.NoError(t, err)

		floor := feasibility.StaffingFloor(in.Event.MinRequiredPerDay)
		available := feasibility.Availability(in.Event, in.Soldiers, in.Policy.WeekendDays)
		if res.Status == StatusInfeasible {
			for _, d := range res.UnreachableDays {
				assert.Less(t, available[d], floor, "instance %d day %d", i, d)
			}
			continue
		}
		require.Contains(t, []Status{StatusOptimal, StatusFeasible}, res.Status, "instance %d", i)
		assertHardConstraints(t, in, res)
		assert.False(t, res.Evaluation.Score.Less(res.LowerBound), "instance %d beats its lower bound", i)

		if res.Evaluation.Score.HasViolationsThrough(policy.TierStaffing) {
			continue
		}
		// A schedule clean through the staffing tier has no interior one-day blocks
		for s, row := range res.Grid {
			if in.Soldiers[s].IsWeekendOnly {
				continue
			}
			for _, b := range roster.Blocks(row) {
				interior := b.Start > 0 && b.End < len(row)-1
				assert.False(t, interior && b.Len() == 1, "instance %d soldier %s isolated on day %d", i, in.Soldiers[s].ID, b.Start)
			}
		}
		for _, v := range res.Evaluation.Violations {
			assert.NotEqual(t, policy.IsolatedDay, v.Descriptor, "instance %d", i)
		}
	}
}

func assertHardConstraints(t *testing.T, in Input, res *Result) {
	t.Helper()
	floor := feasibility.StaffingFloor(in.Event.MinRequiredPerDay)
	dates := in.Event.Dates()
	for i, s := range in.Soldiers {
		for d, date := range dates {
			if !feasibility.IsAvailable(s, date, in.Policy.WeekendDays) {
				assert.False(t, res.Grid[i][d], "soldier %s on base on %s", s.ID, date.Format(model.DateLayout))
			}
		}
	}
	for d, count := range res.Grid.Counts(len(dates)) {
		assert.GreaterOrEqual(t, count, floor, "day %d", d)
	}
}

func randomInput(rng *rand.Rand, n, days int) Input {
	base := days / 2
	event := model.Event{
		ID:                     "random",
		Start:                  june,
		End:                    june.AddDate(0, 0, days-1),
		MinRequiredPerDay:      rng.Intn(n + 1),
		BaseDaysPerSoldier:     base,
		HomeDaysPerSoldier:     days - base,
		MaxConsecutiveBaseDays: 2 + rng.Intn(4),
		MaxConsecutiveHomeDays: 2 + rng.Intn(4),
		MinBaseBlockDays:       1 + rng.Intn(2),
	}

	squad := make([]model.Soldier, n)
	for i := range squad {
		s := model.Soldier{
			ID:            fmt.Sprintf("s%d", i+1),
			IsExceptional: rng.Intn(5) == 0,
			IsWeekendOnly: rng.Intn(8) == 0,
		}
		for d := 0; d < days; d++ {
			if rng.Intn(6) == 0 {
				s.Constraints = append(s.Constraints, model.Constraint{Date: june.AddDate(0, 0, d)})
			}
		}
		squad[i] = s
	}
	return Input{Event: event, Soldiers: squad, Policy: policy.Default()}
}
