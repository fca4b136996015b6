package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/jakechorley/soldier-roster/pkg/db"
)

const eventColumns = `id, name, start_date, end_date, min_required_per_day, base_days_per_soldier,
	home_days_per_soldier, max_consecutive_base_days, max_consecutive_home_days,
	min_base_block_days, exceptional_base_days, created_at`

// InsertEvent inserts a new event record
func (d *DB) InsertEvent(ctx context.Context, event *db.Event) error {
	createdAt, err := parseTimestamp(event.CreatedAt)
	if err != nil {
		return err
	}
	if createdAt == nil {
		now := time.Now().UTC()
		createdAt = &now
	}

	_, err = d.pool.Exec(ctx, `
		INSERT INTO event (`+eventColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
	`, event.ID, event.Name, event.StartDate, event.EndDate, event.MinRequiredPerDay,
		event.BaseDaysPerSoldier, event.HomeDaysPerSoldier, event.MaxConsecutiveBaseDays,
		event.MaxConsecutiveHomeDays, event.MinBaseBlockDays, event.ExceptionalBaseDays, *createdAt)
	if err != nil {
		return fmt.Errorf("failed to insert event: %w", err)
	}
	return nil
}

// GetEvent retrieves an event by id
func (d *DB) GetEvent(ctx context.Context, id string) (*db.Event, error) {
	row := d.pool.QueryRow(ctx, `SELECT `+eventColumns+` FROM event WHERE id = $1`, id)
	event, err := scanEvent(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("event %s: %w", id, db.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get event: %w", err)
	}
	return event, nil
}

// ListEvents retrieves all events, newest first
func (d *DB) ListEvents(ctx context.Context) ([]db.Event, error) {
	rows, err := d.pool.Query(ctx, `SELECT `+eventColumns+` FROM event ORDER BY created_at DESC`)
	if err != nil {
		return nil, fmt.Errorf("failed to query events: %w", err)
	}
	defer rows.Close()

	var events []db.Event
	for rows.Next() {
		event, err := scanEvent(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan event: %w", err)
		}
		events = append(events, *event)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating events: %w", err)
	}

	return events, nil
}

func scanEvent(row pgx.Row) (*db.Event, error) {
	var e db.Event
	var start, end, createdAt time.Time
	err := row.Scan(&e.ID, &e.Name, &start, &end, &e.MinRequiredPerDay, &e.BaseDaysPerSoldier,
		&e.HomeDaysPerSoldier, &e.MaxConsecutiveBaseDays, &e.MaxConsecutiveHomeDays,
		&e.MinBaseBlockDays, &e.ExceptionalBaseDays, &createdAt)
	if err != nil {
		return nil, err
	}
	e.StartDate = start.Format("2006-01-02")
	e.EndDate = end.Format("2006-01-02")
	e.CreatedAt = createdAt.UTC().Format(time.RFC3339)
	return &e, nil
}

// parseTimestamp reads an RFC3339 string; empty means NULL
func parseTimestamp(s string) (*time.Time, error) {
	if s == "" {
		return nil, nil
	}
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return nil, fmt.Errorf("invalid timestamp %q: %w", s, err)
	}
	t = t.UTC()
	return &t, nil
}

func formatTimestamp(t *time.Time) string {
	if t == nil {
		return ""
	}
	return t.UTC().Format(time.RFC3339)
}
