package domain

import (
	"time"

	"github.com/google/uuid"
)

// CheckInStatus is the outcome recorded by check-in staff.
type CheckInStatus string

const (
	CheckInOK    CheckInStatus = "OK"
	CheckInNotOK CheckInStatus = "NOT_OK"
	CheckInDNS   CheckInStatus = "DNS"
)

// Valid reports whether s is a known check-in status.
func (s CheckInStatus) Valid() bool {
	switch s {
	case CheckInOK, CheckInNotOK, CheckInDNS:
		return true
	}
	return false
}

// InspectionStatus is the outcome recorded by technical inspectors.
type InspectionStatus string

const (
	InspectionApproved InspectionStatus = "APPROVED"
	InspectionRejected InspectionStatus = "REJECTED"
)

// Valid reports whether s is a known inspection status.
func (s InspectionStatus) Valid() bool {
	return s == InspectionApproved || s == InspectionRejected
}

// Registration is one participant (driver + vehicle) entered into an event.
type Registration struct {
	ID          uuid.UUID
	EventID     uuid.UUID
	ClassID     *uuid.UUID
	StartNumber int
	DriverName  string
	VehicleName string
	ClubName    string
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// CheckIn is the check-in record for a registration. At most one live record
// exists per registration; re-submission updates, never duplicates.
type CheckIn struct {
	RegistrationID uuid.UUID
	EventID        uuid.UUID
	Status         CheckInStatus
	ActorName      string
	CheckedAt      time.Time
}

// WeightControl is one weight measurement for a registration in a heat.
// At most one live record exists per (registration, heat).
type WeightControl struct {
	RegistrationID uuid.UUID
	EventID        uuid.UUID
	Heat           string
	MeasuredWeight float64
	Result         WeightResult
	ActorName      string
	MeasuredAt     time.Time
}

// Inspection is the technical inspection record for a registration.
type Inspection struct {
	RegistrationID uuid.UUID
	EventID        uuid.UUID
	Status         InspectionStatus
	Remark         string
	ActorName      string
	InspectedAt    time.Time
}
