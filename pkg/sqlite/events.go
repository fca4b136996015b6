package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jakechorley/soldier-roster/pkg/db"
)

const eventColumns = `id, name, start_date, end_date, min_required_per_day, base_days_per_soldier,
	home_days_per_soldier, max_consecutive_base_days, max_consecutive_home_days,
	min_base_block_days, exceptional_base_days, created_at`

// InsertEvent inserts a new event record
func (d *DB) InsertEvent(ctx context.Context, event *db.Event) error {
	createdAt := event.CreatedAt
	if createdAt == "" {
		createdAt = time.Now().UTC().Format(time.RFC3339)
	}

	_, err := d.conn.ExecContext(ctx, `
		INSERT INTO event (`+eventColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, event.ID, event.Name, event.StartDate, event.EndDate, event.MinRequiredPerDay,
		event.BaseDaysPerSoldier, event.HomeDaysPerSoldier, event.MaxConsecutiveBaseDays,
		event.MaxConsecutiveHomeDays, event.MinBaseBlockDays, event.ExceptionalBaseDays, createdAt)
	if err != nil {
		return fmt.Errorf("failed to insert event: %w", err)
	}
	return nil
}

// GetEvent retrieves an event by id
func (d *DB) GetEvent(ctx context.Context, id string) (*db.Event, error) {
	row := d.conn.QueryRowContext(ctx, `SELECT `+eventColumns+` FROM event WHERE id = ?`, id)
	event, err := scanEvent(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("event %s: %w", id, db.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get event: %w", err)
	}
	return event, nil
}

// ListEvents retrieves all events, newest first
func (d *DB) ListEvents(ctx context.Context) ([]db.Event, error) {
	rows, err := d.conn.QueryContext(ctx, `SELECT `+eventColumns+` FROM event ORDER BY created_at DESC, id`)
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

func scanEvent(row scanner) (*db.Event, error) {
	var e db.Event
	err := row.Scan(&e.ID, &e.Name, &e.StartDate, &e.EndDate, &e.MinRequiredPerDay, &e.BaseDaysPerSoldier,
		&e.HomeDaysPerSoldier, &e.MaxConsecutiveBaseDays, &e.MaxConsecutiveHomeDays,
		&e.MinBaseBlockDays, &e.ExceptionalBaseDays, &e.CreatedAt)
	if err != nil {
		return nil, err
	}
	return &e, nil
}
