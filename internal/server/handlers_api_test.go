package server

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pscheid92/gridpulse/internal/domain"
)

type apiRequest struct {
	method string
	path   string
	body   string
	role   string
}

func doRequest(t *testing.T, srv *Server, r apiRequest) *httptest.ResponseRecorder {
	t.Helper()

	var req *http.Request
	if r.body != "" {
		req = httptest.NewRequest(r.method, r.path, strings.NewReader(r.body))
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	} else {
		req = httptest.NewRequest(r.method, r.path, nil)
	}
	if r.role != "" {
		req.Header.Set("X-Auth-User", "user-1")
		req.Header.Set("X-Auth-Name", "Station One")
		req.Header.Set("X-Auth-Role", r.role)
	}

	rec := httptest.NewRecorder()
	srv.echo.ServeHTTP(rec, req)
	return rec
}

func TestHandleCheckIn_Success(t *testing.T) {
	eventID := uuid.New()
	regID := uuid.New()

	var gotActor domain.Identity
	app := &fakeAppService{
		processCheckIn: func(_ context.Context, actor domain.Identity, gotEvent, gotReg uuid.UUID, status domain.CheckInStatus) (*domain.CheckIn, error) {
			gotActor = actor
			assert.Equal(t, eventID, gotEvent)
			assert.Equal(t, regID, gotReg)
			assert.Equal(t, domain.CheckInOK, status)
			return &domain.CheckIn{RegistrationID: gotReg, EventID: gotEvent, Status: status, ActorName: actor.Name}, nil
		},
	}
	srv := newTestServer(t, app)

	rec := doRequest(t, srv, apiRequest{
		method: http.MethodPost,
		path:   fmt.Sprintf("/api/events/%s/checkin", eventID),
		body:   fmt.Sprintf(`{"registrationId":%q,"status":"OK"}`, regID),
		role:   "checkin",
	})

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "Station One", gotActor.Name)
	assert.Equal(t, domain.RoleCheckIn, gotActor.Role)

	var resp domain.CheckIn
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, domain.CheckInOK, resp.Status)
}

func TestHandleCheckIn_InvalidStatus(t *testing.T) {
	srv := newTestServer(t, &fakeAppService{})

	rec := doRequest(t, srv, apiRequest{
		method: http.MethodPost,
		path:   fmt.Sprintf("/api/events/%s/checkin", uuid.New()),
		body:   fmt.Sprintf(`{"registrationId":%q,"status":"MAYBE"}`, uuid.New()),
		role:   "checkin",
	})

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHandleCheckIn_MissingRegistrationID(t *testing.T) {
	srv := newTestServer(t, &fakeAppService{})

	rec := doRequest(t, srv, apiRequest{
		method: http.MethodPost,
		path:   fmt.Sprintf("/api/events/%s/checkin", uuid.New()),
		body:   `{"status":"OK"}`,
		role:   "checkin",
	})

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHandleCheckIn_UnknownRegistration(t *testing.T) {
	app := &fakeAppService{
		processCheckIn: func(context.Context, domain.Identity, uuid.UUID, uuid.UUID, domain.CheckInStatus) (*domain.CheckIn, error) {
			return nil, domain.ErrRegistrationNotFound
		},
	}
	srv := newTestServer(t, app)

	rec := doRequest(t, srv, apiRequest{
		method: http.MethodPost,
		path:   fmt.Sprintf("/api/events/%s/checkin", uuid.New()),
		body:   fmt.Sprintf(`{"registrationId":%q,"status":"OK"}`, uuid.New()),
		role:   "checkin",
	})

	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestHandleCheckIn_WrongRole(t *testing.T) {
	srv := newTestServer(t, &fakeAppService{})

	rec := doRequest(t, srv, apiRequest{
		method: http.MethodPost,
		path:   fmt.Sprintf("/api/events/%s/checkin", uuid.New()),
		body:   fmt.Sprintf(`{"registrationId":%q,"status":"OK"}`, uuid.New()),
		role:   "weight",
	})

	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestHandleCheckIn_OfficialPassesEveryGate(t *testing.T) {
	srv := newTestServer(t, &fakeAppService{})

	rec := doRequest(t, srv, apiRequest{
		method: http.MethodPost,
		path:   fmt.Sprintf("/api/events/%s/checkin", uuid.New()),
		body:   fmt.Sprintf(`{"registrationId":%q,"status":"DNS"}`, uuid.New()),
		role:   "official",
	})

	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestHandleCheckIn_NoIdentity(t *testing.T) {
	srv := newTestServer(t, &fakeAppService{})

	rec := doRequest(t, srv, apiRequest{
		method: http.MethodPost,
		path:   fmt.Sprintf("/api/events/%s/checkin", uuid.New()),
		body:   fmt.Sprintf(`{"registrationId":%q,"status":"OK"}`, uuid.New()),
	})

	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestHandleWeight_Success(t *testing.T) {
	eventID := uuid.New()
	regID := uuid.New()

	app := &fakeAppService{
		recordWeight: func(_ context.Context, _ domain.Identity, _, gotReg uuid.UUID, heat string, measured float64) (*domain.WeightControl, error) {
			assert.Equal(t, "heat-1", heat)
			assert.InDelta(t, 941.5, measured, 0.001)
			return &domain.WeightControl{RegistrationID: gotReg, Heat: heat, MeasuredWeight: measured, Result: domain.WeightPass}, nil
		},
	}
	srv := newTestServer(t, app)

	rec := doRequest(t, srv, apiRequest{
		method: http.MethodPost,
		path:   fmt.Sprintf("/api/events/%s/weight", eventID),
		body:   fmt.Sprintf(`{"registrationId":%q,"heat":"heat-1","measuredWeight":941.5}`, regID),
		role:   "weight",
	})

	require.Equal(t, http.StatusOK, rec.Code)

	var resp domain.WeightControl
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, domain.WeightPass, resp.Result)
}

func TestHandleWeight_Validation(t *testing.T) {
	srv := newTestServer(t, &fakeAppService{})

	tests := []struct {
		name string
		body string
	}{
		{"missing heat", fmt.Sprintf(`{"registrationId":%q,"measuredWeight":941.5}`, uuid.New())},
		{"zero weight", fmt.Sprintf(`{"registrationId":%q,"heat":"heat-1","measuredWeight":0}`, uuid.New())},
		{"negative weight", fmt.Sprintf(`{"registrationId":%q,"heat":"heat-1","measuredWeight":-10}`, uuid.New())},
		{"missing registration", `{"heat":"heat-1","measuredWeight":941.5}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := doRequest(t, srv, apiRequest{
				method: http.MethodPost,
				path:   fmt.Sprintf("/api/events/%s/weight", uuid.New()),
				body:   tt.body,
				role:   "weight",
			})
			assert.Equal(t, http.StatusBadRequest, rec.Code)
		})
	}
}

func TestHandleInspection_Success(t *testing.T) {
	srv := newTestServer(t, &fakeAppService{})

	rec := doRequest(t, srv, apiRequest{
		method: http.MethodPost,
		path:   fmt.Sprintf("/api/events/%s/inspection", uuid.New()),
		body:   fmt.Sprintf(`{"registrationId":%q,"status":"REJECTED","remark":"loose battery mount"}`, uuid.New()),
		role:   "technical",
	})

	require.Equal(t, http.StatusOK, rec.Code)

	var resp domain.Inspection
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, domain.InspectionRejected, resp.Status)
	assert.Equal(t, "loose battery mount", resp.Remark)
}

func TestHandleInspection_InvalidStatus(t *testing.T) {
	srv := newTestServer(t, &fakeAppService{})

	rec := doRequest(t, srv, apiRequest{
		method: http.MethodPost,
		path:   fmt.Sprintf("/api/events/%s/inspection", uuid.New()),
		body:   fmt.Sprintf(`{"registrationId":%q,"status":"PENDING"}`, uuid.New()),
		role:   "technical",
	})

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHandleCreateRegistration_Success(t *testing.T) {
	eventID := uuid.New()
	srv := newTestServer(t, &fakeAppService{})

	rec := doRequest(t, srv, apiRequest{
		method: http.MethodPost,
		path:   fmt.Sprintf("/api/events/%s/registrations", eventID),
		body:   `{"startNumber":7,"driverName":"Anna Larsen","vehicleName":"Volvo 240"}`,
		role:   "official",
	})

	require.Equal(t, http.StatusCreated, rec.Code)

	var resp domain.Registration
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.NotEqual(t, uuid.Nil, resp.ID)
	assert.Equal(t, 7, resp.StartNumber)
}

func TestHandleCreateRegistration_DuplicateStartNumber(t *testing.T) {
	app := &fakeAppService{
		createRegistration: func(context.Context, domain.Identity, *domain.Registration) (*domain.Registration, error) {
			return nil, domain.ErrStartNumberTaken
		},
	}
	srv := newTestServer(t, app)

	rec := doRequest(t, srv, apiRequest{
		method: http.MethodPost,
		path:   fmt.Sprintf("/api/events/%s/registrations", uuid.New()),
		body:   `{"startNumber":7,"driverName":"Anna Larsen"}`,
		role:   "official",
	})

	assert.Equal(t, http.StatusConflict, rec.Code)
}

func TestHandleCreateRegistration_StationRoleForbidden(t *testing.T) {
	srv := newTestServer(t, &fakeAppService{})

	rec := doRequest(t, srv, apiRequest{
		method: http.MethodPost,
		path:   fmt.Sprintf("/api/events/%s/registrations", uuid.New()),
		body:   `{"startNumber":7,"driverName":"Anna Larsen"}`,
		role:   "checkin",
	})

	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestHandleUpdateRegistration_Success(t *testing.T) {
	eventID := uuid.New()
	regID := uuid.New()
	srv := newTestServer(t, &fakeAppService{})

	rec := doRequest(t, srv, apiRequest{
		method: http.MethodPut,
		path:   fmt.Sprintf("/api/events/%s/registrations/%s", eventID, regID),
		body:   `{"startNumber":8,"driverName":"Anna Larsen"}`,
		role:   "admin",
	})

	require.Equal(t, http.StatusOK, rec.Code)

	var resp domain.Registration
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, regID, resp.ID)
	assert.Equal(t, 8, resp.StartNumber)
}

func TestHandleGetState_Success(t *testing.T) {
	eventID := uuid.New()
	regID := uuid.New()

	app := &fakeAppService{
		snapshot: func(_ context.Context, gotEvent uuid.UUID) (*domain.EventState, error) {
			return &domain.EventState{
				EventID: gotEvent,
				Participants: []domain.ParticipantState{
					{
						Registration: domain.Registration{ID: regID, EventID: gotEvent, StartNumber: 7},
						CheckIn:      &domain.CheckIn{RegistrationID: regID, Status: domain.CheckInOK},
					},
				},
			}, nil
		},
	}
	srv := newTestServer(t, app)

	rec := doRequest(t, srv, apiRequest{
		method: http.MethodGet,
		path:   fmt.Sprintf("/api/events/%s/state", eventID),
		role:   "checkin",
	})

	require.Equal(t, http.StatusOK, rec.Code)

	var resp domain.EventState
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, eventID, resp.EventID)
	require.Len(t, resp.Participants, 1)
	require.NotNil(t, resp.Participants[0].CheckIn)
	assert.Equal(t, domain.CheckInOK, resp.Participants[0].CheckIn.Status)
}

func TestHandleGetState_UnknownEvent(t *testing.T) {
	app := &fakeAppService{
		snapshot: func(context.Context, uuid.UUID) (*domain.EventState, error) {
			return nil, domain.ErrEventNotFound
		},
	}
	srv := newTestServer(t, app)

	rec := doRequest(t, srv, apiRequest{
		method: http.MethodGet,
		path:   fmt.Sprintf("/api/events/%s/state", uuid.New()),
		role:   "checkin",
	})

	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestHandleListRegistrations_EmptyIsJSONArray(t *testing.T) {
	srv := newTestServer(t, &fakeAppService{})

	rec := doRequest(t, srv, apiRequest{
		method: http.MethodGet,
		path:   fmt.Sprintf("/api/events/%s/registrations", uuid.New()),
		role:   "checkin",
	})

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "[]", strings.TrimSpace(rec.Body.String()))
}

func TestHandleGetEvent_InvalidID(t *testing.T) {
	srv := newTestServer(t, &fakeAppService{})

	rec := doRequest(t, srv, apiRequest{
		method: http.MethodGet,
		path:   "/api/events/not-a-uuid",
		role:   "checkin",
	})

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}
