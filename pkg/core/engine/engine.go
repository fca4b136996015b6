package engine

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/jakechorley/soldier-roster/pkg/core/model"
	"github.com/jakechorley/soldier-roster/pkg/core/policy"
	"github.com/jakechorley/soldier-roster/pkg/core/roster"
)

// Status is the outcome of a solve
type Status string

const (
	StatusOptimal    Status = "OPTIMAL"
	StatusFeasible   Status = "FEASIBLE"
	StatusInfeasible Status = "INFEASIBLE"
	StatusError      Status = "ERROR"
)

// ErrCancelled is returned when the caller cancels a solve
var ErrCancelled = errors.New("solve cancelled")

// Options bound the search
type Options struct {
	TimeBudget time.Duration
	Workers    int
	Seed       int64
	// MaxRounds is the number of perturbation rounds each worker may run
	MaxRounds int
	// StallRounds stops a worker after this many rounds without improvement
	StallRounds     int
	PerturbFraction float64
	// ExpectedScale is the roster size the policy was checked against at startup
	ExpectedScale policy.Scale
	Logger        *zap.Logger
}

// DefaultOptions returns the search limits used when the config sets none
func DefaultOptions() Options {
	return Options{
		TimeBudget:      30 * time.Second,
		Workers:         4,
		Seed:            1,
		MaxRounds:       200,
		StallRounds:     40,
		PerturbFraction: 0.1,
		ExpectedScale:   policy.Scale{Soldiers: 200, Days: 60, MinBaseBlock: 3},
	}
}

// Input is everything a solve needs
type Input struct {
	Event    model.Event
	Soldiers []model.Soldier
	Policy   policy.Policy
}

// Result is the outcome of a solve
type Result struct {
	Status Status
	// Model is nil when the input could not be modelled
	Model      *roster.Model
	Grid       roster.Grid
	Evaluation roster.Evaluation
	LowerBound policy.Score
	// Gap is the relative distance between the objective and the lower bound
	Gap             float64
	TimedOut        bool
	UnreachableDays []int
	Rounds          int
	Elapsed         time.Duration
	Err             error
}

// Solve builds the model and searches it for a minimum-penalty assignment.
// Malformed input yields StatusError; an unreachable staffing floor yields StatusInfeasible.
// Cancelling ctx aborts the search and returns ErrCancelled with no result.
func Solve(ctx context.Context, in Input, opts Options) (*Result, error) {
	started := time.Now()
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	m, err := roster.Build(in.Event, in.Soldiers, in.Policy)
	if err != nil {
		logger.Debug("Model build failed", zap.Error(err))
		return &Result{Status: StatusError, Err: err, Elapsed: time.Since(started)}, nil
	}
	logger.Debug("Model built",
		zap.Int("soldiers", len(m.Soldiers)),
		zap.Int("days", m.Days()),
		zap.Int("floor", m.Floor))

	if scale := m.Scale(); scale.Exceeds(opts.ExpectedScale) {
		if err := m.Policy.VerifyDominance(scale); err != nil {
			logger.Warn("Instance is larger than the penalty table was checked for",
				zap.Int("soldiers", scale.Soldiers),
				zap.Int("days", scale.Days),
				zap.Error(err))
		}
	}

	if days := m.UnreachableDays(); len(days) > 0 {
		logger.Debug("Staffing floor unreachable", zap.Int("days", len(days)))
		return &Result{
			Status:          StatusInfeasible,
			Model:           m,
			UnreachableDays: days,
			Elapsed:         time.Since(started),
		}, nil
	}

	res, err := solveModel(ctx, m, opts, logger)
	if err != nil {
		return nil, err
	}
	res.Elapsed = time.Since(started)
	logger.Debug("Solve finished",
		zap.String("status", string(res.Status)),
		zap.Float64("objective", res.Evaluation.Score.Total()),
		zap.Float64("gap", res.Gap),
		zap.Bool("timed_out", res.TimedOut),
		zap.Int("rounds", res.Rounds),
		zap.Duration("elapsed", res.Elapsed))
	return res, nil
}

func solveModel(ctx context.Context, m *roster.Model, opts Options, logger *zap.Logger) (*Result, error) {
	searchCtx := ctx
	if opts.TimeBudget > 0 {
		var cancel context.CancelFunc
		searchCtx, cancel = context.WithTimeout(ctx, opts.TimeBudget)
		defer cancel()
	}

	s := &search{m: m, opts: opts, logger: logger}

	// The relaxation always completes unless the caller cancels; it seeds every later phase.
	grid, lowerBound, err := s.relaxation(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCancelled, err)
	}
	counts := grid.Counts(m.Days())
	s.repairFloor(grid, counts)

	score, err := s.descend(searchCtx, grid, counts)
	if err != nil {
		return s.interrupted(ctx, grid, lowerBound, 0)
	}
	logger.Debug("Initial descent done",
		zap.Float64("objective", score.Total()),
		zap.Float64("lower_bound", lowerBound.Total()))

	if score.Equal(lowerBound) {
		return s.finish(grid, lowerBound, 0, false), nil
	}

	workers := max(opts.Workers, 1)
	results := make([]workerResult, workers)
	g, gctx := errgroup.WithContext(searchCtx)
	for w := 0; w < workers; w++ {
		g.Go(func() error {
			results[w] = s.worker(gctx, w, grid, score, lowerBound)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("search worker failed: %w", err)
	}
	if ctx.Err() != nil {
		return nil, fmt.Errorf("%w: %v", ErrCancelled, ctx.Err())
	}

	best := grid
	bestScore := score
	rounds := 0
	for _, r := range results {
		rounds += r.rounds
		if r.score.Less(bestScore) {
			best = r.grid
			bestScore = r.score
		}
	}

	timedOut := errors.Is(searchCtx.Err(), context.DeadlineExceeded)
	return s.finish(best, lowerBound, rounds, timedOut), nil
}

// interrupted turns an aborted phase into either a cancellation or a timed-out result
func (s *search) interrupted(ctx context.Context, grid roster.Grid, lowerBound policy.Score, rounds int) (*Result, error) {
	if ctx.Err() != nil {
		return nil, fmt.Errorf("%w: %v", ErrCancelled, ctx.Err())
	}
	return s.finish(grid, lowerBound, rounds, true), nil
}

func (s *search) finish(grid roster.Grid, lowerBound policy.Score, rounds int, timedOut bool) *Result {
	ev := s.m.Evaluate(grid)
	res := &Result{
		Status:     StatusFeasible,
		Model:      s.m,
		Grid:       grid,
		Evaluation: ev,
		LowerBound: lowerBound,
		TimedOut:   timedOut,
		Rounds:     rounds,
	}
	if ev.Score.Equal(lowerBound) {
		res.Status = StatusOptimal
		return res
	}
	if total := ev.Score.Total(); total > 0 {
		res.Gap = (total - lowerBound.Total()) / total
	}
	return res
}
