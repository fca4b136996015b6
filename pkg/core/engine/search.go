package engine

import (
	"context"
	"math/rand"

	"go.uber.org/zap"

	"github.com/jakechorley/soldier-roster/pkg/core/policy"
	"github.com/jakechorley/soldier-roster/pkg/core/roster"
)

type search struct {
	m      *roster.Model
	opts   Options
	logger *zap.Logger
}

type workerResult struct {
	grid   roster.Grid
	score  policy.Score
	rounds int
}

// relaxation solves every soldier alone, ignoring staffing. The rows seed the search and
// their summed cost, plus the staffing shortfall left with every available soldier on
// base, bounds any schedule from below.
func (s *search) relaxation(ctx context.Context) (roster.Grid, policy.Score, error) {
	var bound policy.Score
	grid := make(roster.Grid, len(s.m.Soldiers))
	for i := range s.m.Soldiers {
		if err := ctx.Err(); err != nil {
			return nil, bound, err
		}
		row, score := s.m.BestResponse(i, nil)
		grid[i] = row
		bound = bound.Plus(score)
	}
	for d, available := range s.m.Available {
		bound.Charge(policy.TierStaffing, s.m.StaffingCost(d, available))
	}
	return grid, bound, nil
}

// repairFloor raises every day to the staffing floor, picking the soldiers whose rows
// get the least expensive. Callers make sure enough soldiers are available.
func (s *search) repairFloor(grid roster.Grid, counts []int) {
	for d := range counts {
		for counts[d] < s.m.Floor {
			pick := -1
			var pickDelta policy.Score
			for i, plan := range s.m.Soldiers {
				if plan.Fixed[d] || grid[i][d] {
					continue
				}
				before := s.m.RowScore(i, grid[i])
				grid[i][d] = true
				after := s.m.RowScore(i, grid[i])
				grid[i][d] = false
				delta := after.Plus(negate(before))
				if pick < 0 || delta.Less(pickDelta) {
					pick = i
					pickDelta = delta
				}
			}
			if pick < 0 {
				break
			}
			grid[pick][d] = true
			counts[d]++
		}
	}
}

// descend replaces soldiers' rows with their best response until no soldier can improve.
// The staffing floor holds throughout. counts is kept in sync with grid.
func (s *search) descend(ctx context.Context, grid roster.Grid, counts []int) (policy.Score, error) {
	others := make([]int, len(counts))
	for {
		improved := false
		for i, plan := range s.m.Soldiers {
			if plan.Available == 0 {
				continue
			}
			if err := ctx.Err(); err != nil {
				return policy.Score{}, err
			}
			for d := range counts {
				others[d] = counts[d]
				if grid[i][d] {
					others[d]--
				}
			}
			current := s.m.ResponseScore(i, grid[i], others)
			row, score := s.m.BestResponse(i, others)
			if !score.Less(current) {
				continue
			}
			for d := range counts {
				counts[d] = others[d]
				if row[d] {
					counts[d]++
				}
			}
			grid[i] = row
			improved = true
		}
		if !improved {
			return s.m.Evaluate(grid).Score, nil
		}
	}
}

// worker runs iterated local search from start with its own seeded random source
func (s *search) worker(ctx context.Context, id int, start roster.Grid, startScore, lowerBound policy.Score) workerResult {
	rng := rand.New(rand.NewSource(s.opts.Seed + int64(id)))
	best := workerResult{grid: start.Clone(), score: startScore}
	stall := 0

	for round := 0; round < s.opts.MaxRounds; round++ {
		if ctx.Err() != nil || best.score.Equal(lowerBound) {
			break
		}
		if s.opts.StallRounds > 0 && stall >= s.opts.StallRounds {
			break
		}
		best.rounds++

		candidate := best.grid.Clone()
		s.perturb(rng, candidate)
		counts := candidate.Counts(s.m.Days())
		s.repairFloor(candidate, counts)

		score, err := s.descend(ctx, candidate, counts)
		if err != nil {
			break
		}
		if score.Less(best.score) {
			best.grid = candidate
			best.score = score
			stall = 0
			s.logger.Debug("Worker improved",
				zap.Int("worker", id),
				zap.Int("round", round),
				zap.Float64("objective", score.Total()))
			continue
		}
		stall++
	}
	return best
}

// perturb rotates the rows of a few random soldiers by a random offset
func (s *search) perturb(rng *rand.Rand, grid roster.Grid) {
	days := s.m.Days()
	if days < 2 || len(grid) == 0 {
		return
	}
	k := max(1, int(s.opts.PerturbFraction*float64(len(grid))))
	for j := 0; j < k; j++ {
		i := rng.Intn(len(grid))
		plan := s.m.Soldiers[i]
		if plan.Available == 0 {
			continue
		}
		shift := 1 + rng.Intn(days-1)
		old := grid[i]
		row := make([]bool, days)
		for d := range row {
			row[d] = old[(d+shift)%days] && !plan.Fixed[d]
		}
		grid[i] = row
	}
}

func negate(s policy.Score) policy.Score {
	for i := range s {
		s[i] = -s[i]
	}
	return s
}
