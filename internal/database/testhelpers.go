package database

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/require"

	"github.com/pscheid92/gridpulse/internal/domain"
)

// CreateTestEvent is a helper that creates an event with default values for testing.
func CreateTestEvent(t *testing.T, pool *pgxpool.Pool, name string) *domain.Event {
	t.Helper()

	repo := NewEventRepo(pool)
	ctx := context.Background()

	event, err := repo.CreateEvent(ctx, &domain.Event{
		Name:     name,
		Venue:    "Test Ring",
		StartsAt: time.Now().UTC().Add(24 * time.Hour),
	})
	require.NoError(t, err)
	require.NotEqual(t, uuid.Nil, event.ID)

	return event
}

// CreateTestClass creates a class for an event with the given weight limits.
func CreateTestClass(t *testing.T, pool *pgxpool.Pool, eventID uuid.UUID, min, max *float64) *domain.Class {
	t.Helper()

	repo := NewEventRepo(pool)
	ctx := context.Background()

	class, err := repo.CreateClass(ctx, &domain.Class{
		EventID:   eventID,
		Name:      "Test Class",
		MinWeight: min,
		MaxWeight: max,
	})
	require.NoError(t, err)
	require.NotEqual(t, uuid.Nil, class.ID)

	return class
}

// CreateTestRegistration creates a registration with default values for testing.
func CreateTestRegistration(t *testing.T, pool *pgxpool.Pool, eventID uuid.UUID, startNumber int) *domain.Registration {
	t.Helper()

	repo := NewRegistrationRepo(pool)
	ctx := context.Background()

	reg, err := repo.Create(ctx, &domain.Registration{
		EventID:     eventID,
		StartNumber: startNumber,
		DriverName:  "Test Driver",
		VehicleName: "Test Car",
	})
	require.NoError(t, err)
	require.NotEqual(t, uuid.Nil, reg.ID)

	return reg
}
