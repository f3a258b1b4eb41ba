package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wardline/clinic-workflow/internal/appointment"
	"github.com/wardline/clinic-workflow/internal/audit"
	"github.com/wardline/clinic-workflow/internal/clock"
)

type stubApptRepo struct {
	patients     map[uuid.UUID]*appointment.Patient
	doctors      map[uuid.UUID]*appointment.Doctor
	appointments map[uuid.UUID]*appointment.Appointment
}

func newStubApptRepo() *stubApptRepo {
	return &stubApptRepo{
		patients:     make(map[uuid.UUID]*appointment.Patient),
		doctors:      make(map[uuid.UUID]*appointment.Doctor),
		appointments: make(map[uuid.UUID]*appointment.Appointment),
	}
}

func (s *stubApptRepo) GetPatientByID(_ context.Context, id uuid.UUID) (*appointment.Patient, error) {
	p, ok := s.patients[id]
	if !ok {
		return nil, appointment.ErrPatientNotFound
	}
	return p, nil
}

func (s *stubApptRepo) GetDoctorByID(_ context.Context, id uuid.UUID) (*appointment.Doctor, error) {
	d, ok := s.doctors[id]
	if !ok {
		return nil, appointment.ErrDoctorNotFound
	}
	return d, nil
}

func (s *stubApptRepo) GetAppointmentByID(_ context.Context, id uuid.UUID) (*appointment.Appointment, error) {
	a, ok := s.appointments[id]
	if !ok {
		return nil, appointment.ErrAppointmentNotFound
	}
	cp := *a
	return &cp, nil
}

func (s *stubApptRepo) ListByPatient(_ context.Context, patientID uuid.UUID, limit, offset int) ([]appointment.Appointment, error) {
	var result []appointment.Appointment
	for _, a := range s.appointments {
		if a.PatientID == patientID {
			result = append(result, *a)
		}
	}
	return result, nil
}

func (s *stubApptRepo) FindStalePending(_ context.Context, _ time.Time) ([]appointment.Appointment, error) {
	return nil, nil
}

func (s *stubApptRepo) CreateAppointment(_ context.Context, a appointment.Appointment) (*appointment.Appointment, error) {
	if a.ID == uuid.Nil {
		a.ID = uuid.New()
	}
	s.appointments[a.ID] = &a
	cp := a
	return &cp, nil
}

func (s *stubApptRepo) UpdateAppointment(_ context.Context, a appointment.Appointment, from appointment.Status) (*appointment.Appointment, error) {
	existing, ok := s.appointments[a.ID]
	if !ok {
		return nil, appointment.ErrAppointmentNotFound
	}
	if existing.Status != from {
		return nil, appointment.ErrConflict
	}
	s.appointments[a.ID] = &a
	cp := a
	return &cp, nil
}

type noopMailer struct{}

func (noopMailer) SendEmail(context.Context, string, string, string) error { return nil }

type noopAuditor struct{}

func (noopAuditor) Record(context.Context, audit.Event) error { return nil }

type apiFixture struct {
	router  chi.Router
	repo    *stubApptRepo
	patient uuid.UUID
	doctor  uuid.UUID
}

func newAPIFixture(t *testing.T) *apiFixture {
	t.Helper()

	repo := newStubApptRepo()
	patientID := uuid.New()
	doctorID := uuid.New()
	repo.patients[patientID] = &appointment.Patient{ID: patientID, Name: "Pat"}
	repo.doctors[doctorID] = &appointment.Doctor{ID: doctorID, Name: "Doc"}

	svc := appointment.NewService(repo, noopMailer{}, noopAuditor{},
		clock.NewFixed(time.Date(2025, 6, 2, 9, 0, 0, 0, time.UTC)), zerolog.Nop())

	r := chi.NewRouter()
	r.Post("/appointments", scheduleAppointmentHandler(svc))
	r.Get("/appointments/{id}", getAppointmentHandler(svc))
	r.Post("/appointments/{id}/confirm", confirmAppointmentHandler(svc))
	r.Post("/appointments/{id}/reject", rejectAppointmentHandler(svc))

	return &apiFixture{router: r, repo: repo, patient: patientID, doctor: doctorID}
}

func (fx *apiFixture) seedAppointment(status appointment.Status) *appointment.Appointment {
	a, _ := fx.repo.CreateAppointment(context.Background(), appointment.Appointment{
		PatientID: fx.patient,
		DoctorID:  fx.doctor,
		StartTime: time.Date(2025, 6, 4, 10, 0, 0, 0, time.UTC),
		Type:      "consultation",
		Status:    status,
	})
	return a
}

func (fx *apiFixture) do(t *testing.T, method, path, body string) (*httptest.ResponseRecorder, Envelope) {
	t.Helper()

	var reader *strings.Reader
	if body == "" {
		reader = strings.NewReader("{}")
	} else {
		reader = strings.NewReader(body)
	}

	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	fx.router.ServeHTTP(rec, req)

	var env Envelope
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&env))
	return rec, env
}

func TestScheduleEndpoint(t *testing.T) {
	fx := newAPIFixture(t)

	body := `{
		"actor_id": "` + fx.patient.String() + `",
		"patient_id": "` + fx.patient.String() + `",
		"doctor_id": "` + fx.doctor.String() + `",
		"start_time": "2025-06-04T10:00:00Z"
	}`
	rec, env := fx.do(t, http.MethodPost, "/appointments", body)

	assert.Equal(t, http.StatusCreated, rec.Code)
	assert.True(t, env.Success)
	require.NotNil(t, env.Data)
}

func TestScheduleEndpoint_BadUUID(t *testing.T) {
	fx := newAPIFixture(t)

	body := `{"actor_id": "nope", "patient_id": "also-nope", "doctor_id": "x", "start_time": "2025-06-04T10:00:00Z"}`
	rec, env := fx.do(t, http.MethodPost, "/appointments", body)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.False(t, env.Success)
	require.NotNil(t, env.Error)
	assert.Equal(t, "invalid_actor_id", env.Error.Code)
}

func TestScheduleEndpoint_UnknownDoctor(t *testing.T) {
	fx := newAPIFixture(t)

	body := `{
		"actor_id": "` + fx.patient.String() + `",
		"patient_id": "` + fx.patient.String() + `",
		"doctor_id": "` + uuid.NewString() + `",
		"start_time": "2025-06-04T10:00:00Z"
	}`
	rec, env := fx.do(t, http.MethodPost, "/appointments", body)

	assert.Equal(t, http.StatusNotFound, rec.Code)
	require.NotNil(t, env.Error)
	assert.Equal(t, "doctor_not_found", env.Error.Code)
}

func TestGetEndpoint_NotFound(t *testing.T) {
	fx := newAPIFixture(t)

	rec, env := fx.do(t, http.MethodGet, "/appointments/"+uuid.NewString(), "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
	require.NotNil(t, env.Error)
	assert.Equal(t, "appointment_not_found", env.Error.Code)
}

func TestConfirmEndpoint(t *testing.T) {
	fx := newAPIFixture(t)
	appt := fx.seedAppointment(appointment.StatusPendingDoctorConfirmation)

	body := `{"doctor_id": "` + fx.doctor.String() + `", "notes": "ok"}`
	rec, env := fx.do(t, http.MethodPost, "/appointments/"+appt.ID.String()+"/confirm", body)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, env.Success)

	data, err := json.Marshal(env.Data)
	require.NoError(t, err)
	var resp AppointmentResponse
	require.NoError(t, json.Unmarshal(data, &resp))
	assert.Equal(t, string(appointment.StatusScheduled), resp.Status)
}

func TestConfirmEndpoint_WrongState(t *testing.T) {
	fx := newAPIFixture(t)
	appt := fx.seedAppointment(appointment.StatusScheduled)

	body := `{"doctor_id": "` + fx.doctor.String() + `", "notes": "ok"}`
	rec, env := fx.do(t, http.MethodPost, "/appointments/"+appt.ID.String()+"/confirm", body)

	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	require.NotNil(t, env.Error)
	assert.Equal(t, "invalid_status_transition", env.Error.Code)
}

func TestRejectEndpoint_BlankReason(t *testing.T) {
	fx := newAPIFixture(t)
	appt := fx.seedAppointment(appointment.StatusPendingDoctorConfirmation)

	body := `{"doctor_id": "` + fx.doctor.String() + `", "reason": "  "}`
	rec, env := fx.do(t, http.MethodPost, "/appointments/"+appt.ID.String()+"/reject", body)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	require.NotNil(t, env.Error)
	assert.Equal(t, "validation_failed", env.Error.Code)
}
