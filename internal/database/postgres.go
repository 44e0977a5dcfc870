// Package database implements the relational store behind the write path:
// events, rosters, and the control records whose uniqueness invariants the
// upserts enforce at row level.
package database

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

const connectTimeout = 10 * time.Second

// Connect opens a pgx pool and verifies connectivity.
func Connect(ctx context.Context, databaseURL string) (*pgxpool.Pool, error) {
	cfg, err := pgxpool.ParseConfig(databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse database url: %w", err)
	}
	cfg.MaxConns = 25
	cfg.MaxConnLifetime = 5 * time.Minute

	ctx, cancel := context.WithTimeout(ctx, connectTimeout)
	defer cancel()

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create connection pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return pool, nil
}

// RunMigrations applies the schema. Statements are idempotent so restarts
// are safe.
func RunMigrations(ctx context.Context, pool *pgxpool.Pool) error {
	migrations := []string{
		`CREATE TABLE IF NOT EXISTS events (
			id UUID PRIMARY KEY DEFAULT gen_random_uuid(),
			name TEXT NOT NULL,
			venue TEXT NOT NULL DEFAULT '',
			starts_at TIMESTAMPTZ NOT NULL,
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)`,
		`CREATE TABLE IF NOT EXISTS classes (
			id UUID PRIMARY KEY DEFAULT gen_random_uuid(),
			event_id UUID NOT NULL REFERENCES events(id) ON DELETE CASCADE,
			name TEXT NOT NULL,
			min_weight DOUBLE PRECISION,
			max_weight DOUBLE PRECISION
		)`,
		`CREATE TABLE IF NOT EXISTS registrations (
			id UUID PRIMARY KEY DEFAULT gen_random_uuid(),
			event_id UUID NOT NULL REFERENCES events(id) ON DELETE CASCADE,
			class_id UUID REFERENCES classes(id) ON DELETE SET NULL,
			start_number INT NOT NULL,
			driver_name TEXT NOT NULL,
			vehicle_name TEXT NOT NULL DEFAULT '',
			club_name TEXT NOT NULL DEFAULT '',
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			UNIQUE (event_id, start_number)
		)`,
		`CREATE INDEX IF NOT EXISTS idx_registrations_event ON registrations(event_id)`,
		`CREATE TABLE IF NOT EXISTS check_ins (
			registration_id UUID PRIMARY KEY REFERENCES registrations(id) ON DELETE CASCADE,
			event_id UUID NOT NULL REFERENCES events(id) ON DELETE CASCADE,
			status TEXT NOT NULL,
			actor_name TEXT NOT NULL,
			checked_at TIMESTAMPTZ NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_check_ins_event ON check_ins(event_id)`,
		`CREATE TABLE IF NOT EXISTS weight_controls (
			registration_id UUID NOT NULL REFERENCES registrations(id) ON DELETE CASCADE,
			heat TEXT NOT NULL,
			event_id UUID NOT NULL REFERENCES events(id) ON DELETE CASCADE,
			measured_weight DOUBLE PRECISION NOT NULL,
			result TEXT NOT NULL,
			actor_name TEXT NOT NULL,
			measured_at TIMESTAMPTZ NOT NULL,
			PRIMARY KEY (registration_id, heat)
		)`,
		`CREATE INDEX IF NOT EXISTS idx_weight_controls_event ON weight_controls(event_id)`,
		`CREATE TABLE IF NOT EXISTS inspections (
			registration_id UUID PRIMARY KEY REFERENCES registrations(id) ON DELETE CASCADE,
			event_id UUID NOT NULL REFERENCES events(id) ON DELETE CASCADE,
			status TEXT NOT NULL,
			remark TEXT NOT NULL DEFAULT '',
			actor_name TEXT NOT NULL,
			inspected_at TIMESTAMPTZ NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_inspections_event ON inspections(event_id)`,
	}

	for _, migration := range migrations {
		if _, err := pool.Exec(ctx, migration); err != nil {
			return fmt.Errorf("failed to run migration: %w", err)
		}
	}

	slog.Info("Database migrations completed")
	return nil
}
