package domain

import (
	"context"

	"github.com/google/uuid"
)

// EventRepository provides keyed lookups for events and classes.
type EventRepository interface {
	GetEvent(ctx context.Context, eventID uuid.UUID) (*Event, error)
	GetClass(ctx context.Context, classID uuid.UUID) (*Class, error)
}

// RegistrationRepository manages the participant roster of an event.
type RegistrationRepository interface {
	Get(ctx context.Context, registrationID uuid.UUID) (*Registration, error)
	ListByEvent(ctx context.Context, eventID uuid.UUID) ([]Registration, error)
	Create(ctx context.Context, reg *Registration) (*Registration, error)
	Update(ctx context.Context, reg *Registration) (*Registration, error)
}

// CheckInRepository upserts check-in records keyed by registration id.
// The store enforces at most one live record per registration.
type CheckInRepository interface {
	Upsert(ctx context.Context, rec CheckIn) (*CheckIn, error)
	ListByEvent(ctx context.Context, eventID uuid.UUID) ([]CheckIn, error)
}

// WeightControlRepository upserts weight records keyed by (registration, heat).
type WeightControlRepository interface {
	Upsert(ctx context.Context, rec WeightControl) (*WeightControl, error)
	ListByEvent(ctx context.Context, eventID uuid.UUID) ([]WeightControl, error)
}

// InspectionRepository upserts technical inspection records keyed by
// registration id.
type InspectionRepository interface {
	Upsert(ctx context.Context, rec Inspection) (*Inspection, error)
	ListByEvent(ctx context.Context, eventID uuid.UUID) ([]Inspection, error)
}
