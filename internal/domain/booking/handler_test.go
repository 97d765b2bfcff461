package booking

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/ehr/availability/internal/domain/availability"
	"github.com/ehr/availability/internal/platform/auth"
)

type testServer struct {
	e        *echo.Echo
	doctorID uuid.UUID
	// identity is read per request so tests can switch callers.
	userID string
	roles  []string
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	svc, _, doctorID := newTestService(1)
	ts := &testServer{e: echo.New(), doctorID: doctorID}
	api := ts.e.Group("/api/v1", func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			c.SetRequest(c.Request().WithContext(auth.WithIdentity(c.Request().Context(), ts.userID, ts.roles)))
			return next(c)
		}
	})
	NewHandler(svc).RegisterRoutes(api)
	return ts
}

func (ts *testServer) as(userID string, roles ...string) *testServer {
	ts.userID, ts.roles = userID, roles
	return ts
}

func (ts *testServer) do(method, path, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	if body != "" {
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	}
	rec := httptest.NewRecorder()
	ts.e.ServeHTTP(rec, req)
	return rec
}

func (ts *testServer) bookBody(patientID uuid.UUID, at string) string {
	body := `{"doctor_id":"` + ts.doctorID.String() + `","date":"2026-10-21","time":"` + at + `"`
	if patientID != uuid.Nil {
		body += `,"patient_id":"` + patientID.String() + `"`
	}
	return body + "}"
}

func TestHandler_PatientBooksForSelf(t *testing.T) {
	ts := newTestServer(t)
	patient := uuid.New()
	ts.as(patient.String(), auth.RolePatient)

	rec := ts.do(http.MethodPost, "/api/v1/appointments", ts.bookBody(uuid.Nil, "09:00"))
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", rec.Code, rec.Body.String())
	}
	var appt availability.Appointment
	if err := json.Unmarshal(rec.Body.Bytes(), &appt); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if appt.PatientID != patient || appt.Status != availability.StatusPending {
		t.Errorf("unexpected appointment: %+v", appt)
	}

	rec = ts.do(http.MethodGet, "/api/v1/appointments/"+appt.ID.String(), "")
	if rec.Code != http.StatusOK {
		t.Errorf("expected own appointment to be readable, got %d", rec.Code)
	}

	ts.as(uuid.New().String(), auth.RolePatient)
	rec = ts.do(http.MethodGet, "/api/v1/appointments/"+appt.ID.String(), "")
	if rec.Code != http.StatusNotFound {
		t.Errorf("expected other patient's appointment to be hidden, got %d", rec.Code)
	}
}

func TestHandler_PatientCannotBookForOthers(t *testing.T) {
	ts := newTestServer(t)
	ts.as(uuid.New().String(), auth.RolePatient)

	rec := ts.do(http.MethodPost, "/api/v1/appointments", ts.bookBody(uuid.New(), "09:00"))
	if rec.Code != http.StatusForbidden {
		t.Errorf("expected 403, got %d", rec.Code)
	}

	ts.as("not-a-uuid", auth.RolePatient)
	rec = ts.do(http.MethodPost, "/api/v1/appointments", ts.bookBody(uuid.Nil, "09:00"))
	if rec.Code != http.StatusForbidden {
		t.Errorf("expected 403 for unlinked caller, got %d", rec.Code)
	}
}

func TestHandler_SlotConflict(t *testing.T) {
	ts := newTestServer(t)
	ts.as("registrar-1", auth.RoleRegistrar)

	if rec := ts.do(http.MethodPost, "/api/v1/appointments", ts.bookBody(uuid.New(), "10:30")); rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", rec.Code, rec.Body.String())
	}
	rec := ts.do(http.MethodPost, "/api/v1/appointments", ts.bookBody(uuid.New(), "10:30"))
	if rec.Code != http.StatusConflict {
		t.Errorf("expected 409, got %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "fully booked") {
		t.Errorf("expected reason in body, got %s", rec.Body.String())
	}

	if rec := ts.do(http.MethodPost, "/api/v1/appointments", ts.bookBody(uuid.New(), "noon-ish")); rec.Code != http.StatusBadRequest {
		t.Errorf("expected 400 for bad time, got %d", rec.Code)
	}
}

func TestHandler_StatusChanges(t *testing.T) {
	ts := newTestServer(t)
	patient := uuid.New()
	ts.as(patient.String(), auth.RolePatient)

	rec := ts.do(http.MethodPost, "/api/v1/appointments", ts.bookBody(uuid.Nil, "11:00"))
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d", rec.Code)
	}
	var appt availability.Appointment
	_ = json.Unmarshal(rec.Body.Bytes(), &appt)
	statusPath := "/api/v1/appointments/" + appt.ID.String() + "/status"

	if rec := ts.do(http.MethodPost, statusPath, `{"status":"confirmed"}`); rec.Code != http.StatusForbidden {
		t.Errorf("patients may not confirm, got %d", rec.Code)
	}

	ts.as("physician-1", auth.RolePhysician)
	if rec := ts.do(http.MethodPost, statusPath, `{"status":"confirmed"}`); rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	if rec := ts.do(http.MethodPost, statusPath, `{"status":"pending"}`); rec.Code != http.StatusConflict {
		t.Errorf("expected 409 for invalid transition, got %d", rec.Code)
	}

	ts.as(patient.String(), auth.RolePatient)
	if rec := ts.do(http.MethodPost, statusPath, `{"status":"cancelled"}`); rec.Code != http.StatusOK {
		t.Errorf("expected patient cancellation to succeed, got %d", rec.Code)
	}
}

func TestHandler_ListByDoctorDate(t *testing.T) {
	ts := newTestServer(t)
	ts.as("registrar-1", auth.RoleRegistrar)
	ts.do(http.MethodPost, "/api/v1/appointments", ts.bookBody(uuid.New(), "09:30"))

	rec := ts.do(http.MethodGet, "/api/v1/doctors/"+ts.doctorID.String()+"/appointments?date=2026-10-21", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	var body struct {
		Appointments []availability.Appointment `json:"appointments"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(body.Appointments) != 1 {
		t.Errorf("expected 1 appointment, got %d", len(body.Appointments))
	}

	if rec := ts.do(http.MethodGet, "/api/v1/doctors/"+ts.doctorID.String()+"/appointments?date=tomorrow", ""); rec.Code != http.StatusBadRequest {
		t.Errorf("expected 400, got %d", rec.Code)
	}

	ts.as(uuid.New().String(), auth.RolePatient)
	if rec := ts.do(http.MethodGet, "/api/v1/doctors/"+ts.doctorID.String()+"/appointments?date=2026-10-21", ""); rec.Code != http.StatusForbidden {
		t.Errorf("expected 403 for patient, got %d", rec.Code)
	}
}
