// Package app implements the write path and the authoritative state snapshot.
//
// Every mutation follows the same discipline: upsert into the store first,
// then announce exactly one envelope built from the committed record.
// Announcing before the commit could broadcast a state that a concurrent
// writer immediately overwrites, which a later refetch would never confirm.
package app

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"

	"github.com/pscheid92/gridpulse/internal/domain"
	"github.com/pscheid92/gridpulse/internal/metrics"
)

// Announcer fans a committed state change out to live subscribers.
// Implemented by the broadcast hub, optionally wrapped by the relay.
type Announcer interface {
	Announce(eventID uuid.UUID, env domain.Envelope)
}

// Service is the application write path plus the pull-driven StateSource.
type Service struct {
	events        domain.EventRepository
	registrations domain.RegistrationRepository
	checkIns      domain.CheckInRepository
	weights       domain.WeightControlRepository
	inspections   domain.InspectionRepository
	announcer     Announcer
	clock         clockwork.Clock
}

// NewService wires the repositories and the announcer.
func NewService(
	events domain.EventRepository,
	registrations domain.RegistrationRepository,
	checkIns domain.CheckInRepository,
	weights domain.WeightControlRepository,
	inspections domain.InspectionRepository,
	announcer Announcer,
	clock clockwork.Clock,
) *Service {
	return &Service{
		events:        events,
		registrations: registrations,
		checkIns:      checkIns,
		weights:       weights,
		inspections:   inspections,
		announcer:     announcer,
		clock:         clock,
	}
}

// ProcessCheckIn records a check-in for a registration. The store upsert is
// keyed by registration id, so re-submission updates the single live record.
func (s *Service) ProcessCheckIn(ctx context.Context, actor domain.Identity, eventID, registrationID uuid.UUID, status domain.CheckInStatus) (*domain.CheckIn, error) {
	if !status.Valid() {
		return nil, fmt.Errorf("invalid check-in status %q", status)
	}

	reg, err := s.eventRegistration(ctx, eventID, registrationID)
	if err != nil {
		return nil, err
	}

	committed, err := s.checkIns.Upsert(ctx, domain.CheckIn{
		RegistrationID: reg.ID,
		EventID:        eventID,
		Status:         status,
		ActorName:      actor.Name,
		CheckedAt:      s.clock.Now().UTC(),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to upsert check-in: %w", err)
	}
	metrics.WritesCommitted.WithLabelValues("checkin").Inc()

	s.announcer.Announce(eventID, domain.NewEnvelope(eventID, reg.ID, domain.CheckInPayload{
		RegistrationID: reg.ID,
		StartNumber:    reg.StartNumber,
		Status:         committed.Status,
		ActorName:      committed.ActorName,
	}, committed.CheckedAt))

	return committed, nil
}

// RecordWeight records one measurement for a registration in a heat. The
// classification is derived from the class limits with the shared pure
// function, so every writer and every observer agree on the result.
func (s *Service) RecordWeight(ctx context.Context, actor domain.Identity, eventID, registrationID uuid.UUID, heat string, measured float64) (*domain.WeightControl, error) {
	if heat == "" {
		return nil, fmt.Errorf("heat must not be empty")
	}
	if measured <= 0 {
		return nil, fmt.Errorf("measured weight must be positive, got %v", measured)
	}

	reg, err := s.eventRegistration(ctx, eventID, registrationID)
	if err != nil {
		return nil, err
	}

	var min, max *float64
	if reg.ClassID != nil {
		class, err := s.events.GetClass(ctx, *reg.ClassID)
		if err != nil {
			return nil, fmt.Errorf("failed to load class limits: %w", err)
		}
		min, max = class.MinWeight, class.MaxWeight
	}

	committed, err := s.weights.Upsert(ctx, domain.WeightControl{
		RegistrationID: reg.ID,
		EventID:        eventID,
		Heat:           heat,
		MeasuredWeight: measured,
		Result:         domain.ClassifyWeight(measured, min, max),
		ActorName:      actor.Name,
		MeasuredAt:     s.clock.Now().UTC(),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to upsert weight control: %w", err)
	}
	metrics.WritesCommitted.WithLabelValues("weight").Inc()

	s.announcer.Announce(eventID, domain.NewEnvelope(eventID, reg.ID, domain.WeightPayload{
		RegistrationID: reg.ID,
		StartNumber:    reg.StartNumber,
		Heat:           committed.Heat,
		MeasuredWeight: committed.MeasuredWeight,
		Result:         committed.Result,
		ActorName:      committed.ActorName,
	}, committed.MeasuredAt))

	return committed, nil
}

// RecordInspection records the technical inspection outcome for a registration.
func (s *Service) RecordInspection(ctx context.Context, actor domain.Identity, eventID, registrationID uuid.UUID, status domain.InspectionStatus, remark string) (*domain.Inspection, error) {
	if !status.Valid() {
		return nil, fmt.Errorf("invalid inspection status %q", status)
	}

	reg, err := s.eventRegistration(ctx, eventID, registrationID)
	if err != nil {
		return nil, err
	}

	committed, err := s.inspections.Upsert(ctx, domain.Inspection{
		RegistrationID: reg.ID,
		EventID:        eventID,
		Status:         status,
		Remark:         remark,
		ActorName:      actor.Name,
		InspectedAt:    s.clock.Now().UTC(),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to upsert inspection: %w", err)
	}
	metrics.WritesCommitted.WithLabelValues("inspection").Inc()

	s.announcer.Announce(eventID, domain.NewEnvelope(eventID, reg.ID, domain.TechnicalPayload{
		RegistrationID: reg.ID,
		StartNumber:    reg.StartNumber,
		Status:         committed.Status,
		Remark:         committed.Remark,
		ActorName:      committed.ActorName,
	}, committed.InspectedAt))

	return committed, nil
}

// CreateRegistration adds a participant to the event roster.
func (s *Service) CreateRegistration(ctx context.Context, actor domain.Identity, reg *domain.Registration) (*domain.Registration, error) {
	if _, err := s.events.GetEvent(ctx, reg.EventID); err != nil {
		return nil, err
	}

	created, err := s.registrations.Create(ctx, reg)
	if err != nil {
		return nil, err
	}
	metrics.WritesCommitted.WithLabelValues("registration").Inc()

	s.announceRegistration(actor, created)
	return created, nil
}

// UpdateRegistration updates a participant's roster entry.
func (s *Service) UpdateRegistration(ctx context.Context, actor domain.Identity, reg *domain.Registration) (*domain.Registration, error) {
	updated, err := s.registrations.Update(ctx, reg)
	if err != nil {
		return nil, err
	}
	metrics.WritesCommitted.WithLabelValues("registration").Inc()

	s.announceRegistration(actor, updated)
	return updated, nil
}

func (s *Service) announceRegistration(actor domain.Identity, reg *domain.Registration) {
	s.announcer.Announce(reg.EventID, domain.NewEnvelope(reg.EventID, reg.ID, domain.RegistrationPayload{
		RegistrationID: reg.ID,
		StartNumber:    reg.StartNumber,
		DriverName:     reg.DriverName,
		VehicleName:    reg.VehicleName,
		ActorName:      actor.Name,
	}, s.clock.Now().UTC()))
}

// GetEvent returns one event.
func (s *Service) GetEvent(ctx context.Context, eventID uuid.UUID) (*domain.Event, error) {
	return s.events.GetEvent(ctx, eventID)
}

// ListRegistrations returns the roster of an event.
func (s *Service) ListRegistrations(ctx context.Context, eventID uuid.UUID) ([]domain.Registration, error) {
	if _, err := s.events.GetEvent(ctx, eventID); err != nil {
		return nil, err
	}
	return s.registrations.ListByEvent(ctx, eventID)
}

// Snapshot builds the authoritative state of an event: the full roster joined
// with check-in, inspection and weight records. This is the refetch target of
// the gap-recovery path, and it makes Service a domain.StateSource.
func (s *Service) Snapshot(ctx context.Context, eventID uuid.UUID) (*domain.EventState, error) {
	start := s.clock.Now()
	defer func() {
		metrics.SnapshotDuration.Observe(s.clock.Since(start).Seconds())
	}()

	if _, err := s.events.GetEvent(ctx, eventID); err != nil {
		return nil, err
	}

	regs, err := s.registrations.ListByEvent(ctx, eventID)
	if err != nil {
		return nil, fmt.Errorf("failed to list registrations: %w", err)
	}
	checkIns, err := s.checkIns.ListByEvent(ctx, eventID)
	if err != nil {
		return nil, fmt.Errorf("failed to list check-ins: %w", err)
	}
	inspections, err := s.inspections.ListByEvent(ctx, eventID)
	if err != nil {
		return nil, fmt.Errorf("failed to list inspections: %w", err)
	}
	weights, err := s.weights.ListByEvent(ctx, eventID)
	if err != nil {
		return nil, fmt.Errorf("failed to list weight controls: %w", err)
	}

	checkInByReg := make(map[uuid.UUID]*domain.CheckIn, len(checkIns))
	for i := range checkIns {
		checkInByReg[checkIns[i].RegistrationID] = &checkIns[i]
	}
	inspectionByReg := make(map[uuid.UUID]*domain.Inspection, len(inspections))
	for i := range inspections {
		inspectionByReg[inspections[i].RegistrationID] = &inspections[i]
	}
	weightsByReg := make(map[uuid.UUID][]domain.WeightControl, len(weights))
	for _, w := range weights {
		weightsByReg[w.RegistrationID] = append(weightsByReg[w.RegistrationID], w)
	}

	state := &domain.EventState{
		EventID:      eventID,
		Participants: make([]domain.ParticipantState, 0, len(regs)),
		FetchedAt:    s.clock.Now().UTC(),
	}
	for _, reg := range regs {
		state.Participants = append(state.Participants, domain.ParticipantState{
			Registration: reg,
			CheckIn:      checkInByReg[reg.ID],
			Inspection:   inspectionByReg[reg.ID],
			Weights:      weightsByReg[reg.ID],
		})
	}
	return state, nil
}

// eventRegistration loads a registration and verifies it belongs to the event.
func (s *Service) eventRegistration(ctx context.Context, eventID, registrationID uuid.UUID) (*domain.Registration, error) {
	reg, err := s.registrations.Get(ctx, registrationID)
	if err != nil {
		return nil, err
	}
	if reg.EventID != eventID {
		return nil, domain.ErrRegistrationNotFound
	}
	return reg, nil
}
