package database

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/pscheid92/gridpulse/internal/domain"
)

// EventRepo implements domain.EventRepository backed by PostgreSQL.
type EventRepo struct {
	pool *pgxpool.Pool
}

func NewEventRepo(pool *pgxpool.Pool) *EventRepo {
	return &EventRepo{pool: pool}
}

func (r *EventRepo) GetEvent(ctx context.Context, eventID uuid.UUID) (*domain.Event, error) {
	var e domain.Event
	err := r.pool.QueryRow(ctx, `
		SELECT id, name, venue, starts_at, created_at
		FROM events WHERE id = $1`, eventID,
	).Scan(&e.ID, &e.Name, &e.Venue, &e.StartsAt, &e.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, domain.ErrEventNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get event: %w", err)
	}
	return &e, nil
}

func (r *EventRepo) GetClass(ctx context.Context, classID uuid.UUID) (*domain.Class, error) {
	var c domain.Class
	err := r.pool.QueryRow(ctx, `
		SELECT id, event_id, name, min_weight, max_weight
		FROM classes WHERE id = $1`, classID,
	).Scan(&c.ID, &c.EventID, &c.Name, &c.MinWeight, &c.MaxWeight)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, domain.ErrClassNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get class: %w", err)
	}
	return &c, nil
}

// CreateEvent inserts a new event. Used by seeding and admin tooling.
func (r *EventRepo) CreateEvent(ctx context.Context, e *domain.Event) (*domain.Event, error) {
	err := r.pool.QueryRow(ctx, `
		INSERT INTO events (name, venue, starts_at)
		VALUES ($1, $2, $3)
		RETURNING id, name, venue, starts_at, created_at`,
		e.Name, e.Venue, e.StartsAt,
	).Scan(&e.ID, &e.Name, &e.Venue, &e.StartsAt, &e.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("failed to create event: %w", err)
	}
	return e, nil
}

// CreateClass inserts a new class for an event.
func (r *EventRepo) CreateClass(ctx context.Context, c *domain.Class) (*domain.Class, error) {
	err := r.pool.QueryRow(ctx, `
		INSERT INTO classes (event_id, name, min_weight, max_weight)
		VALUES ($1, $2, $3, $4)
		RETURNING id, event_id, name, min_weight, max_weight`,
		c.EventID, c.Name, c.MinWeight, c.MaxWeight,
	).Scan(&c.ID, &c.EventID, &c.Name, &c.MinWeight, &c.MaxWeight)
	if err != nil {
		return nil, fmt.Errorf("failed to create class: %w", err)
	}
	return c, nil
}
