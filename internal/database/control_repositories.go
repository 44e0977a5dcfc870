package database

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/pscheid92/gridpulse/internal/domain"
)

// CheckInRepo implements domain.CheckInRepository. The primary key on
// registration_id guarantees at most one live record per registration;
// re-submission overwrites in place.
type CheckInRepo struct {
	pool *pgxpool.Pool
}

func NewCheckInRepo(pool *pgxpool.Pool) *CheckInRepo {
	return &CheckInRepo{pool: pool}
}

func (r *CheckInRepo) Upsert(ctx context.Context, rec domain.CheckIn) (*domain.CheckIn, error) {
	err := r.pool.QueryRow(ctx, `
		INSERT INTO check_ins (registration_id, event_id, status, actor_name, checked_at)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (registration_id) DO UPDATE
		SET status = EXCLUDED.status, actor_name = EXCLUDED.actor_name, checked_at = EXCLUDED.checked_at
		RETURNING registration_id, event_id, status, actor_name, checked_at`,
		rec.RegistrationID, rec.EventID, rec.Status, rec.ActorName, rec.CheckedAt,
	).Scan(&rec.RegistrationID, &rec.EventID, &rec.Status, &rec.ActorName, &rec.CheckedAt)
	if err != nil {
		return nil, fmt.Errorf("failed to upsert check-in: %w", err)
	}
	return &rec, nil
}

func (r *CheckInRepo) ListByEvent(ctx context.Context, eventID uuid.UUID) ([]domain.CheckIn, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT registration_id, event_id, status, actor_name, checked_at
		FROM check_ins WHERE event_id = $1`, eventID)
	if err != nil {
		return nil, fmt.Errorf("failed to list check-ins: %w", err)
	}
	defer rows.Close()

	var recs []domain.CheckIn
	for rows.Next() {
		var rec domain.CheckIn
		if err := rows.Scan(&rec.RegistrationID, &rec.EventID, &rec.Status, &rec.ActorName, &rec.CheckedAt); err != nil {
			return nil, fmt.Errorf("failed to scan check-in: %w", err)
		}
		recs = append(recs, rec)
	}
	return recs, rows.Err()
}

// WeightControlRepo implements domain.WeightControlRepository. The composite
// primary key (registration_id, heat) keeps one live measurement per heat.
type WeightControlRepo struct {
	pool *pgxpool.Pool
}

func NewWeightControlRepo(pool *pgxpool.Pool) *WeightControlRepo {
	return &WeightControlRepo{pool: pool}
}

func (r *WeightControlRepo) Upsert(ctx context.Context, rec domain.WeightControl) (*domain.WeightControl, error) {
	err := r.pool.QueryRow(ctx, `
		INSERT INTO weight_controls (registration_id, heat, event_id, measured_weight, result, actor_name, measured_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (registration_id, heat) DO UPDATE
		SET measured_weight = EXCLUDED.measured_weight, result = EXCLUDED.result,
		    actor_name = EXCLUDED.actor_name, measured_at = EXCLUDED.measured_at
		RETURNING registration_id, heat, event_id, measured_weight, result, actor_name, measured_at`,
		rec.RegistrationID, rec.Heat, rec.EventID, rec.MeasuredWeight, rec.Result, rec.ActorName, rec.MeasuredAt,
	).Scan(&rec.RegistrationID, &rec.Heat, &rec.EventID, &rec.MeasuredWeight, &rec.Result, &rec.ActorName, &rec.MeasuredAt)
	if err != nil {
		return nil, fmt.Errorf("failed to upsert weight control: %w", err)
	}
	return &rec, nil
}

func (r *WeightControlRepo) ListByEvent(ctx context.Context, eventID uuid.UUID) ([]domain.WeightControl, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT registration_id, heat, event_id, measured_weight, result, actor_name, measured_at
		FROM weight_controls WHERE event_id = $1`, eventID)
	if err != nil {
		return nil, fmt.Errorf("failed to list weight controls: %w", err)
	}
	defer rows.Close()

	var recs []domain.WeightControl
	for rows.Next() {
		var rec domain.WeightControl
		if err := rows.Scan(&rec.RegistrationID, &rec.Heat, &rec.EventID, &rec.MeasuredWeight, &rec.Result, &rec.ActorName, &rec.MeasuredAt); err != nil {
			return nil, fmt.Errorf("failed to scan weight control: %w", err)
		}
		recs = append(recs, rec)
	}
	return recs, rows.Err()
}

// InspectionRepo implements domain.InspectionRepository.
type InspectionRepo struct {
	pool *pgxpool.Pool
}

func NewInspectionRepo(pool *pgxpool.Pool) *InspectionRepo {
	return &InspectionRepo{pool: pool}
}

func (r *InspectionRepo) Upsert(ctx context.Context, rec domain.Inspection) (*domain.Inspection, error) {
	err := r.pool.QueryRow(ctx, `
		INSERT INTO inspections (registration_id, event_id, status, remark, actor_name, inspected_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (registration_id) DO UPDATE
		SET status = EXCLUDED.status, remark = EXCLUDED.remark,
		    actor_name = EXCLUDED.actor_name, inspected_at = EXCLUDED.inspected_at
		RETURNING registration_id, event_id, status, remark, actor_name, inspected_at`,
		rec.RegistrationID, rec.EventID, rec.Status, rec.Remark, rec.ActorName, rec.InspectedAt,
	).Scan(&rec.RegistrationID, &rec.EventID, &rec.Status, &rec.Remark, &rec.ActorName, &rec.InspectedAt)
	if err != nil {
		return nil, fmt.Errorf("failed to upsert inspection: %w", err)
	}
	return &rec, nil
}

func (r *InspectionRepo) ListByEvent(ctx context.Context, eventID uuid.UUID) ([]domain.Inspection, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT registration_id, event_id, status, remark, actor_name, inspected_at
		FROM inspections WHERE event_id = $1`, eventID)
	if err != nil {
		return nil, fmt.Errorf("failed to list inspections: %w", err)
	}
	defer rows.Close()

	var recs []domain.Inspection
	for rows.Next() {
		var rec domain.Inspection
		if err := rows.Scan(&rec.RegistrationID, &rec.EventID, &rec.Status, &rec.Remark, &rec.ActorName, &rec.InspectedAt); err != nil {
			return nil, fmt.Errorf("failed to scan inspection: %w", err)
		}
		recs = append(recs, rec)
	}
	return recs, rows.Err()
}
