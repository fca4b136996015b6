package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/jakechorley/soldier-roster/pkg/db"
)

// InsertSoldiers inserts soldier records in a single transaction
func (d *DB) InsertSoldiers(ctx context.Context, soldiers []db.Soldier) error {
	if len(soldiers) == 0 {
		return nil
	}

	return d.withTx(ctx, func(tx pgx.Tx) error {
		batch := &pgx.Batch{}
		for _, s := range soldiers {
			batch.Queue(`
				INSERT INTO soldier (id, event_id, name, is_exceptional, is_weekend_only)
				VALUES ($1, $2, $3, $4, $5)
			`, s.ID, s.EventID, s.Name, s.IsExceptional, s.IsWeekendOnly)
		}

		results := tx.SendBatch(ctx, batch)
		for _, s := range soldiers {
			if _, err := results.Exec(); err != nil {
				results.Close()
				return fmt.Errorf("failed to insert soldier %s: %w", s.ID, err)
			}
		}
		return results.Close()
	})
}

// GetSoldiers retrieves the soldiers of an event ordered by id
func (d *DB) GetSoldiers(ctx context.Context, eventID string) ([]db.Soldier, error) {
	rows, err := d.pool.Query(ctx, `
		SELECT id, event_id, name, is_exceptional, is_weekend_only
		FROM soldier
		WHERE event_id = $1
		ORDER BY id
	`, eventID)
	if err != nil {
		return nil, fmt.Errorf("failed to query soldiers: %w", err)
	}
	defer rows.Close()

	var soldiers []db.Soldier
	for rows.Next() {
		var s db.Soldier
		if err := rows.Scan(&s.ID, &s.EventID, &s.Name, &s.IsExceptional, &s.IsWeekendOnly); err != nil {
			return nil, fmt.Errorf("failed to scan soldier: %w", err)
		}
		soldiers = append(soldiers, s)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating soldiers: %w", err)
	}

	return soldiers, nil
}

// InsertConstraints inserts unavailability records in a single transaction.
// A second record for the same soldier and date replaces the first.
func (d *DB) InsertConstraints(ctx context.Context, constraints []db.Constraint) error {
	if len(constraints) == 0 {
		return nil
	}

	return d.withTx(ctx, func(tx pgx.Tx) error {
		for _, c := range constraints {
			_, err := tx.Exec(ctx, `
				INSERT INTO soldier_constraint (id, event_id, soldier_id, date, category, description)
				VALUES ($1, $2, $3, $4, $5, $6)
				ON CONFLICT (event_id, soldier_id, date)
				DO UPDATE SET category = EXCLUDED.category, description = EXCLUDED.description
			`, c.ID, c.EventID, c.SoldierID, c.Date, c.Category, c.Description)
			if err != nil {
				return fmt.Errorf("failed to insert constraint for soldier %s on %s: %w", c.SoldierID, c.Date, err)
			}
		}
		return nil
	})
}

// GetConstraints retrieves the unavailability records of every soldier in an event
func (d *DB) GetConstraints(ctx context.Context, eventID string) ([]db.Constraint, error) {
	rows, err := d.pool.Query(ctx, `
		SELECT id, event_id, soldier_id, date, category, description
		FROM soldier_constraint
		WHERE event_id = $1
		ORDER BY soldier_id, date
	`, eventID)
	if err != nil {
		return nil, fmt.Errorf("failed to query constraints: %w", err)
	}
	defer rows.Close()

	var constraints []db.Constraint
	for rows.Next() {
		var c db.Constraint
		var date time.Time
		if err := rows.Scan(&c.ID, &c.EventID, &c.SoldierID, &date, &c.Category, &c.Description); err != nil {
			return nil, fmt.Errorf("failed to scan constraint: %w", err)
		}
		c.Date = date.Format("2006-01-02")
		constraints = append(constraints, c)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating constraints: %w", err)
	}

	return constraints, nil
}
