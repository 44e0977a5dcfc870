package database

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/pscheid92/gridpulse/internal/domain"
)

const uniqueViolation = "23505"

// RegistrationRepo implements domain.RegistrationRepository backed by PostgreSQL.
type RegistrationRepo struct {
	pool *pgxpool.Pool
}

func NewRegistrationRepo(pool *pgxpool.Pool) *RegistrationRepo {
	return &RegistrationRepo{pool: pool}
}

func (r *RegistrationRepo) Get(ctx context.Context, registrationID uuid.UUID) (*domain.Registration, error) {
	var reg domain.Registration
	err := r.pool.QueryRow(ctx, `
		SELECT id, event_id, class_id, start_number, driver_name, vehicle_name, club_name, created_at, updated_at
		FROM registrations WHERE id = $1`, registrationID,
	).Scan(&reg.ID, &reg.EventID, &reg.ClassID, &reg.StartNumber, &reg.DriverName, &reg.VehicleName, &reg.ClubName, &reg.CreatedAt, &reg.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, domain.ErrRegistrationNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get registration: %w", err)
	}
	return &reg, nil
}

func (r *RegistrationRepo) ListByEvent(ctx context.Context, eventID uuid.UUID) ([]domain.Registration, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, event_id, class_id, start_number, driver_name, vehicle_name, club_name, created_at, updated_at
		FROM registrations WHERE event_id = $1
		ORDER BY start_number`, eventID)
	if err != nil {
		return nil, fmt.Errorf("failed to list registrations: %w", err)
	}
	defer rows.Close()

	var regs []domain.Registration
	for rows.Next() {
		var reg domain.Registration
		if err := rows.Scan(&reg.ID, &reg.EventID, &reg.ClassID, &reg.StartNumber, &reg.DriverName, &reg.VehicleName, &reg.ClubName, &reg.CreatedAt, &reg.UpdatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan registration: %w", err)
		}
		regs = append(regs, reg)
	}
	return regs, rows.Err()
}

func (r *RegistrationRepo) Create(ctx context.Context, reg *domain.Registration) (*domain.Registration, error) {
	err := r.pool.QueryRow(ctx, `
		INSERT INTO registrations (event_id, class_id, start_number, driver_name, vehicle_name, club_name)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id, event_id, class_id, start_number, driver_name, vehicle_name, club_name, created_at, updated_at`,
		reg.EventID, reg.ClassID, reg.StartNumber, reg.DriverName, reg.VehicleName, reg.ClubName,
	).Scan(&reg.ID, &reg.EventID, &reg.ClassID, &reg.StartNumber, &reg.DriverName, &reg.VehicleName, &reg.ClubName, &reg.CreatedAt, &reg.UpdatedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return nil, domain.ErrStartNumberTaken
		}
		return nil, fmt.Errorf("failed to create registration: %w", err)
	}
	return reg, nil
}

func (r *RegistrationRepo) Update(ctx context.Context, reg *domain.Registration) (*domain.Registration, error) {
	err := r.pool.QueryRow(ctx, `
		UPDATE registrations
		SET class_id = $2, start_number = $3, driver_name = $4, vehicle_name = $5, club_name = $6, updated_at = NOW()
		WHERE id = $1
		RETURNING id, event_id, class_id, start_number, driver_name, vehicle_name, club_name, created_at, updated_at`,
		reg.ID, reg.ClassID, reg.StartNumber, reg.DriverName, reg.VehicleName, reg.ClubName,
	).Scan(&reg.ID, &reg.EventID, &reg.ClassID, &reg.StartNumber, &reg.DriverName, &reg.VehicleName, &reg.ClubName, &reg.CreatedAt, &reg.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, domain.ErrRegistrationNotFound
	}
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return nil, domain.ErrStartNumberTaken
		}
		return nil, fmt.Errorf("failed to update registration: %w", err)
	}
	return reg, nil
}
