package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/jakechorley/soldier-roster/pkg/db"
)

const runColumns = `id, event_id, status, engine_status, snapshot, report, objective, gap,
	created_at, started_at, completed_at`

// InsertRun inserts a new scheduling run record
func (d *DB) InsertRun(ctx context.Context, run *db.SchedulingRun) error {
	createdAt, err := parseTimestamp(run.CreatedAt)
	if err != nil {
		return err
	}
	if createdAt == nil {
		now := time.Now().UTC()
		createdAt = &now
	}

	_, err = d.pool.Exec(ctx, `
		INSERT INTO scheduling_run (id, event_id, status, created_at)
		VALUES ($1, $2, $3, $4)
	`, run.ID, run.EventID, run.Status, *createdAt)
	if err != nil {
		return fmt.Errorf("failed to insert scheduling run: %w", err)
	}
	return nil
}

// GetRun retrieves a scheduling run by id
func (d *DB) GetRun(ctx context.Context, id string) (*db.SchedulingRun, error) {
	row := d.pool.QueryRow(ctx, `SELECT `+runColumns+` FROM scheduling_run WHERE id = $1`, id)
	run, err := scanRun(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("run %s: %w", id, db.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get scheduling run: %w", err)
	}
	return run, nil
}

// ListRuns retrieves the runs of an event, newest first
func (d *DB) ListRuns(ctx context.Context, eventID string) ([]db.SchedulingRun, error) {
	rows, err := d.pool.Query(ctx, `
		SELECT `+runColumns+`
		FROM scheduling_run
		WHERE event_id = $1
		ORDER BY created_at DESC
	`, eventID)
	if err != nil {
		return nil, fmt.Errorf("failed to query scheduling runs: %w", err)
	}
	defer rows.Close()

	var runs []db.SchedulingRun
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan scheduling run: %w", err)
		}
		runs = append(runs, *run)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating scheduling runs: %w", err)
	}

	return runs, nil
}

// ListRunsByStatus retrieves the runs in one status across events, oldest first
func (d *DB) ListRunsByStatus(ctx context.Context, status string) ([]db.SchedulingRun, error) {
	rows, err := d.pool.Query(ctx, `
		SELECT `+runColumns+`
		FROM scheduling_run
		WHERE status = $1
		ORDER BY created_at, id
	`, status)
	if err != nil {
		return nil, fmt.Errorf("failed to query scheduling runs: %w", err)
	}
	defer rows.Close()

	var runs []db.SchedulingRun
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan scheduling run: %w", err)
		}
		runs = append(runs, *run)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating scheduling runs: %w", err)
	}

	return runs, nil
}

// MarkRunStarted moves a PENDING run to IN_PROGRESS. The status check and the update
// are one statement, so two callers cannot both start the same run.
func (d *DB) MarkRunStarted(ctx context.Context, id string, snapshot []byte, startedAt string) error {
	started, err := parseTimestamp(startedAt)
	if err != nil {
		return err
	}

	tag, err := d.pool.Exec(ctx, `
		UPDATE scheduling_run
		SET status = 'IN_PROGRESS', snapshot = $2, started_at = $3
		WHERE id = $1 AND status = 'PENDING'
	`, id, snapshot, started)
	if err != nil {
		return fmt.Errorf("failed to mark run started: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("run %s: %w", id, db.ErrRunNotPending)
	}
	return nil
}

// CompleteRun writes the terminal status and the assignments in one transaction
func (d *DB) CompleteRun(ctx context.Context, completion db.RunCompletion) error {
	completedAt, err := parseTimestamp(completion.CompletedAt)
	if err != nil {
		return err
	}

	return d.withTx(ctx, func(tx pgx.Tx) error {
		tag, err := tx.Exec(ctx, `
			UPDATE scheduling_run
			SET status = $2, engine_status = $3, report = $4, objective = $5, gap = $6, completed_at = $7
			WHERE id = $1 AND status = 'IN_PROGRESS'
		`, completion.RunID, completion.Status, completion.EngineStatus, completion.Report,
			completion.Objective, completion.Gap, completedAt)
		if err != nil {
			return fmt.Errorf("failed to update scheduling run: %w", err)
		}
		if tag.RowsAffected() == 0 {
			return fmt.Errorf("run %s is not in progress: %w", completion.RunID, db.ErrNotFound)
		}

		if len(completion.Assignments) == 0 {
			return nil
		}

		rows := make([][]any, len(completion.Assignments))
		for i, a := range completion.Assignments {
			date, err := time.Parse("2006-01-02", a.Date)
			if err != nil {
				return fmt.Errorf("invalid assignment date %q: %w", a.Date, err)
			}
			rows[i] = []any{completion.RunID, a.SoldierID, date, a.OnBase}
		}

		_, err = tx.CopyFrom(ctx,
			pgx.Identifier{"assignment"},
			[]string{"run_id", "soldier_id", "date", "on_base"},
			pgx.CopyFromRows(rows),
		)
		if err != nil {
			return fmt.Errorf("failed to insert assignments: %w", err)
		}
		return nil
	})
}

// GetAssignments retrieves the assignments committed by a run
func (d *DB) GetAssignments(ctx context.Context, runID string) ([]db.Assignment, error) {
	rows, err := d.pool.Query(ctx, `
		SELECT run_id, soldier_id, date, on_base
		FROM assignment
		WHERE run_id = $1
		ORDER BY soldier_id, date
	`, runID)
	if err != nil {
		return nil, fmt.Errorf("failed to query assignments: %w", err)
	}
	defer rows.Close()

	var assignments []db.Assignment
	for rows.Next() {
		var a db.Assignment
		var date time.Time
		if err := rows.Scan(&a.RunID, &a.SoldierID, &date, &a.OnBase); err != nil {
			return nil, fmt.Errorf("failed to scan assignment: %w", err)
		}
		a.Date = date.Format("2006-01-02")
		assignments = append(assignments, a)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating assignments: %w", err)
	}

	return assignments, nil
}

func scanRun(row pgx.Row) (*db.SchedulingRun, error) {
	var r db.SchedulingRun
	var createdAt time.Time
	var startedAt, completedAt *time.Time
	err := row.Scan(&r.ID, &r.EventID, &r.Status, &r.EngineStatus, &r.Snapshot, &r.Report,
		&r.Objective, &r.Gap, &createdAt, &startedAt, &completedAt)
	if err != nil {
		return nil, err
	}
	r.CreatedAt = createdAt.UTC().Format(time.RFC3339)
	r.StartedAt = formatTimestamp(startedAt)
	r.CompletedAt = formatTimestamp(completedAt)
	return &r, nil
}
