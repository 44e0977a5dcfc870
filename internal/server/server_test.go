package server

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"

	"github.com/pscheid92/gridpulse/internal/broadcast"
	"github.com/pscheid92/gridpulse/internal/config"
	"github.com/pscheid92/gridpulse/internal/domain"
)

// fakeAppService stubs the application layer with per-method overrides.
type fakeAppService struct {
	processCheckIn     func(ctx context.Context, actor domain.Identity, eventID, registrationID uuid.UUID, status domain.CheckInStatus) (*domain.CheckIn, error)
	recordWeight       func(ctx context.Context, actor domain.Identity, eventID, registrationID uuid.UUID, heat string, measured float64) (*domain.WeightControl, error)
	recordInspection   func(ctx context.Context, actor domain.Identity, eventID, registrationID uuid.UUID, status domain.InspectionStatus, remark string) (*domain.Inspection, error)
	createRegistration func(ctx context.Context, actor domain.Identity, reg *domain.Registration) (*domain.Registration, error)
	updateRegistration func(ctx context.Context, actor domain.Identity, reg *domain.Registration) (*domain.Registration, error)
	getEvent           func(ctx context.Context, eventID uuid.UUID) (*domain.Event, error)
	listRegistrations  func(ctx context.Context, eventID uuid.UUID) ([]domain.Registration, error)
	snapshot           func(ctx context.Context, eventID uuid.UUID) (*domain.EventState, error)
}

func (f *fakeAppService) ProcessCheckIn(ctx context.Context, actor domain.Identity, eventID, registrationID uuid.UUID, status domain.CheckInStatus) (*domain.CheckIn, error) {
	if f.processCheckIn == nil {
		return &domain.CheckIn{RegistrationID: registrationID, EventID: eventID, Status: status}, nil
	}
	return f.processCheckIn(ctx, actor, eventID, registrationID, status)
}

func (f *fakeAppService) RecordWeight(ctx context.Context, actor domain.Identity, eventID, registrationID uuid.UUID, heat string, measured float64) (*domain.WeightControl, error) {
	if f.recordWeight == nil {
		return &domain.WeightControl{RegistrationID: registrationID, EventID: eventID, Heat: heat, MeasuredWeight: measured, Result: domain.WeightNoLimit}, nil
	}
	return f.recordWeight(ctx, actor, eventID, registrationID, heat, measured)
}

func (f *fakeAppService) RecordInspection(ctx context.Context, actor domain.Identity, eventID, registrationID uuid.UUID, status domain.InspectionStatus, remark string) (*domain.Inspection, error) {
	if f.recordInspection == nil {
		return &domain.Inspection{RegistrationID: registrationID, EventID: eventID, Status: status, Remark: remark}, nil
	}
	return f.recordInspection(ctx, actor, eventID, registrationID, status, remark)
}

func (f *fakeAppService) CreateRegistration(ctx context.Context, actor domain.Identity, reg *domain.Registration) (*domain.Registration, error) {
	if f.createRegistration == nil {
		created := *reg
		created.ID = uuid.New()
		return &created, nil
	}
	return f.createRegistration(ctx, actor, reg)
}

func (f *fakeAppService) UpdateRegistration(ctx context.Context, actor domain.Identity, reg *domain.Registration) (*domain.Registration, error) {
	if f.updateRegistration == nil {
		return reg, nil
	}
	return f.updateRegistration(ctx, actor, reg)
}

func (f *fakeAppService) GetEvent(ctx context.Context, eventID uuid.UUID) (*domain.Event, error) {
	if f.getEvent == nil {
		return &domain.Event{ID: eventID, Name: "Test Event"}, nil
	}
	return f.getEvent(ctx, eventID)
}

func (f *fakeAppService) ListRegistrations(ctx context.Context, eventID uuid.UUID) ([]domain.Registration, error) {
	if f.listRegistrations == nil {
		return nil, nil
	}
	return f.listRegistrations(ctx, eventID)
}

func (f *fakeAppService) Snapshot(ctx context.Context, eventID uuid.UUID) (*domain.EventState, error) {
	if f.snapshot == nil {
		return &domain.EventState{EventID: eventID, Participants: []domain.ParticipantState{}, FetchedAt: time.Now().UTC()}, nil
	}
	return f.snapshot(ctx, eventID)
}

var _ domain.AppService = (*fakeAppService)(nil)

func testConfig() *config.Config {
	return &config.Config{
		AppEnv:                  "test",
		Port:                    "0",
		AuthUserHeader:          "X-Auth-User",
		AuthNameHeader:          "X-Auth-Name",
		AuthRoleHeader:          "X-Auth-Role",
		MaxWebSocketConnections: 100,
		MaxConnectionsPerIP:     10,
		MaxSubscribersPerEvent:  100,
	}
}

func newTestServer(t *testing.T, app domain.AppService) *Server {
	t.Helper()

	hub := broadcast.NewHub(nil, nil, clockwork.NewRealClock(), 100)
	t.Cleanup(hub.Stop)

	return NewServer(testConfig(), app, hub, nil, nil)
}
