package services

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/jakechorley/soldier-roster/pkg/core/engine"
	"github.com/jakechorley/soldier-roster/pkg/core/interpret"
	"github.com/jakechorley/soldier-roster/pkg/core/model"
	"github.com/jakechorley/soldier-roster/pkg/core/policy"
	"github.com/jakechorley/soldier-roster/pkg/core/roster"
)

// RunOptions configure one execution of the scheduling pipeline
type RunOptions struct {
	Policy policy.Policy
	Engine engine.Options
	// IgnoreValidation lets the engine run on input the validator rejected
	IgnoreValidation bool
}

// ExecuteRun validates a frozen snapshot, searches it and interprets the result.
// Malformed input fails without searching. The engine is not invoked on input the validator
// rejects unless IgnoreValidation is set.
// A cancelled ctx returns an error wrapping engine.ErrCancelled and no outcome.
func ExecuteRun(ctx context.Context, snapshot model.Snapshot, opts RunOptions, logger *zap.Logger) (*interpret.Outcome, error) {
	_, _, validation := validateSnapshot(snapshot, opts.Policy.WeekendDays)

	if err := roster.CheckInput(snapshot.Event, snapshot.Soldiers); err != nil {
		logger.Debug("Malformed input, engine not invoked", zap.Error(err))
		outcome := interpret.Malformed(validation, err)
		return &outcome, nil
	}

	if !validation.IsValid {
		if !opts.IgnoreValidation {
			logger.Debug("Validation failed, engine not invoked", zap.Int("errors", len(validation.Errors)))
			outcome := interpret.Rejected(validation)
			return &outcome, nil
		}
		logger.Warn("Running despite validation errors", zap.Strings("errors", validation.Errors))
		for _, msg := range validation.Errors {
			validation.Warnings = append(validation.Warnings, "validation overridden: "+msg)
		}
	}

	engineOpts := opts.Engine
	engineOpts.Logger = logger

	res, err := engine.Solve(ctx, engine.Input{
		Event:    snapshot.Event,
		Soldiers: snapshot.Soldiers,
		Policy:   opts.Policy,
	}, engineOpts)
	if err != nil {
		return nil, fmt.Errorf("failed to solve: %w", err)
	}

	outcome := interpret.Interpret(res, validation)
	logger.Debug("Run interpreted",
		zap.String("status", string(outcome.Status)),
		zap.String("engine_status", string(outcome.EngineStatus)),
		zap.Int("violations", len(outcome.Violations)),
		zap.Float64("objective", outcome.Objective))
	return &outcome, nil
}
