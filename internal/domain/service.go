package domain

import (
	"context"

	"github.com/google/uuid"
)

// AppService is the application surface the transport layer depends on.
// Every write commits to the store first and announces after; the snapshot
// side comes from the embedded StateSource.
type AppService interface {
	ProcessCheckIn(ctx context.Context, actor Identity, eventID, registrationID uuid.UUID, status CheckInStatus) (*CheckIn, error)
	RecordWeight(ctx context.Context, actor Identity, eventID, registrationID uuid.UUID, heat string, measured float64) (*WeightControl, error)
	RecordInspection(ctx context.Context, actor Identity, eventID, registrationID uuid.UUID, status InspectionStatus, remark string) (*Inspection, error)
	CreateRegistration(ctx context.Context, actor Identity, reg *Registration) (*Registration, error)
	UpdateRegistration(ctx context.Context, actor Identity, reg *Registration) (*Registration, error)
	GetEvent(ctx context.Context, eventID uuid.UUID) (*Event, error)
	ListRegistrations(ctx context.Context, eventID uuid.UUID) ([]Registration, error)
	StateSource
}
