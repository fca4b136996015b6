package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jakechorley/soldier-roster/pkg/db"
)

const runColumns = `id, event_id, status, engine_status, snapshot, report, objective, gap,
	created_at, started_at, completed_at`

// InsertRun inserts a new scheduling run record
func (d *DB) InsertRun(ctx context.Context, run *db.SchedulingRun) error {
	createdAt := run.CreatedAt
	if createdAt == "" {
		createdAt = time.Now().UTC().Format(time.RFC3339)
	}

	_, err := d.conn.ExecContext(ctx, `
		INSERT INTO scheduling_run (id, event_id, status, created_at)
		VALUES (?, ?, ?, ?)
	`, run.ID, run.EventID, run.Status, createdAt)
	if err != nil {
		return fmt.Errorf("failed to insert scheduling run: %w", err)
	}
	return nil
}

// GetRun retrieves a scheduling run by id
func (d *DB) GetRun(ctx context.Context, id string) (*db.SchedulingRun, error) {
	row := d.conn.QueryRowContext(ctx, `SELECT `+runColumns+` FROM scheduling_run WHERE id = ?`, id)
	run, err := scanRun(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("run %s: %w", id, db.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get scheduling run: %w", err)
	}
	return run, nil
}

// ListRuns retrieves the runs of an event, newest first
func (d *DB) ListRuns(ctx context.Context, eventID string) ([]db.SchedulingRun, error) {
	rows, err := d.conn.QueryContext(ctx, `
		SELECT `+runColumns+`
		FROM scheduling_run
		WHERE event_id = ?
		ORDER BY created_at DESC, id
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
	rows, err := d.conn.QueryContext(ctx, `
		SELECT `+runColumns+`
		FROM scheduling_run
		WHERE status = ?
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

// MarkRunStarted moves a PENDING run to IN_PROGRESS in a single conditional update
func (d *DB) MarkRunStarted(ctx context.Context, id string, snapshot []byte, startedAt string) error {
	res, err := d.conn.ExecContext(ctx, `
		UPDATE scheduling_run
		SET status = 'IN_PROGRESS', snapshot = ?, started_at = ?
		WHERE id = ? AND status = 'PENDING'
	`, snapshot, nullString(startedAt), id)
	if err != nil {
		return fmt.Errorf("failed to mark run started: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read affected rows: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("run %s: %w", id, db.ErrRunNotPending)
	}
	return nil
}

// CompleteRun writes the terminal status and the assignments in one transaction
func (d *DB) CompleteRun(ctx context.Context, completion db.RunCompletion) error {
	return d.withTx(ctx, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx, `
			UPDATE scheduling_run
			SET status = ?, engine_status = ?, report = ?, objective = ?, gap = ?, completed_at = ?
			WHERE id = ? AND status = 'IN_PROGRESS'
		`, completion.Status, completion.EngineStatus, completion.Report, completion.Objective,
			completion.Gap, nullString(completion.CompletedAt), completion.RunID)
		if err != nil {
			return fmt.Errorf("failed to update scheduling run: %w", err)
		}
		affected, err := res.RowsAffected()
		if err != nil {
			return fmt.Errorf("failed to read affected rows: %w", err)
		}
		if affected == 0 {
			return fmt.Errorf("run %s is not in progress: %w", completion.RunID, db.ErrNotFound)
		}

		if len(completion.Assignments) == 0 {
			return nil
		}

		stmt, err := tx.PrepareContext(ctx, `
			INSERT INTO assignment (run_id, soldier_id, date, on_base) VALUES (?, ?, ?, ?)
		`)
		if err != nil {
			return fmt.Errorf("failed to prepare assignment insert: %w", err)
		}
		defer stmt.Close()

		for _, a := range completion.Assignments {
			if _, err := stmt.ExecContext(ctx, completion.RunID, a.SoldierID, a.Date, a.OnBase); err != nil {
				return fmt.Errorf("failed to insert assignment for soldier %s on %s: %w", a.SoldierID, a.Date, err)
			}
		}
		return nil
	})
}

// GetAssignments retrieves the assignments committed by a run
func (d *DB) GetAssignments(ctx context.Context, runID string) ([]db.Assignment, error) {
	rows, err := d.conn.QueryContext(ctx, `
		SELECT run_id, soldier_id, date, on_base
		FROM assignment
		WHERE run_id = ?
		ORDER BY soldier_id, date
	`, runID)
	if err != nil {
		return nil, fmt.Errorf("failed to query assignments: %w", err)
	}
	defer rows.Close()

	var assignments []db.Assignment
	for rows.Next() {
		var a db.Assignment
		if err := rows.Scan(&a.RunID, &a.SoldierID, &a.Date, &a.OnBase); err != nil {
			return nil, fmt.Errorf("failed to scan assignment: %w", err)
		}
		assignments = append(assignments, a)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating assignments: %w", err)
	}

	return assignments, nil
}

func scanRun(row scanner) (*db.SchedulingRun, error) {
	var r db.SchedulingRun
	var startedAt, completedAt sql.NullString
	err := row.Scan(&r.ID, &r.EventID, &r.Status, &r.EngineStatus, &r.Snapshot, &r.Report,
		&r.Objective, &r.Gap, &r.CreatedAt, &startedAt, &completedAt)
	if err != nil {
		return nil, err
	}
	r.StartedAt = startedAt.String
	r.CompletedAt = completedAt.String
	return &r, nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
