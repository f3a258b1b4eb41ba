package consultation

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wardline/clinic-workflow/internal/appointment"
	"github.com/wardline/clinic-workflow/internal/audit"
	"github.com/wardline/clinic-workflow/internal/clock"
)

type fakeRepo struct {
	requests map[uuid.UUID]*Request
	updates  int
}

func newFakeRepo() *fakeRepo {
	return &fakeRepo{requests: make(map[uuid.UUID]*Request)}
}

func (f *fakeRepo) GetByID(_ context.Context, id uuid.UUID) (*Request, error) {
	r, ok := f.requests[id]
	if !ok {
		return nil, ErrRequestNotFound
	}
	cp := *r
	return &cp, nil
}

func (f *fakeRepo) ListByPatient(_ context.Context, patientID uuid.UUID, limit, offset int) ([]Request, error) {
	var result []Request
	for _, r := range f.requests {
		if r.PatientID == patientID {
			result = append(result, *r)
		}
	}
	return result, nil
}

func (f *fakeRepo) ListByStatus(_ context.Context, status Status, limit, offset int) ([]Request, error) {
	var result []Request
	for _, r := range f.requests {
		if r.Status == status {
			result = append(result, *r)
		}
	}
	return result, nil
}

func (f *fakeRepo) Create(_ context.Context, r Request) (*Request, error) {
	if r.ID == uuid.Nil {
		r.ID = uuid.New()
	}
	f.requests[r.ID] = &r
	cp := r
	return &cp, nil
}

func (f *fakeRepo) Update(_ context.Context, r Request, from Status) (*Request, error) {
	existing, ok := f.requests[r.ID]
	if !ok {
		return nil, ErrRequestNotFound
	}
	if existing.Status != from {
		return nil, ErrConflict
	}
	f.requests[r.ID] = &r
	f.updates++
	cp := r
	return &cp, nil
}

// fakeApptRepo backs the cross-domain lookups: patient existence, reviewer
// contact details, and the linked appointment created at scheduling time.
type fakeApptRepo struct {
	patients     map[uuid.UUID]*appointment.Patient
	doctors      map[uuid.UUID]*appointment.Doctor
	appointments map[uuid.UUID]*appointment.Appointment
}

func newFakeApptRepo() *fakeApptRepo {
	return &fakeApptRepo{
		patients:     make(map[uuid.UUID]*appointment.Patient),
		doctors:      make(map[uuid.UUID]*appointment.Doctor),
		appointments: make(map[uuid.UUID]*appointment.Appointment),
	}
}

func (f *fakeApptRepo) GetPatientByID(_ context.Context, id uuid.UUID) (*appointment.Patient, error) {
	p, ok := f.patients[id]
	if !ok {
		return nil, appointment.ErrPatientNotFound
	}
	return p, nil
}

func (f *fakeApptRepo) GetDoctorByID(_ context.Context, id uuid.UUID) (*appointment.Doctor, error) {
	d, ok := f.doctors[id]
	if !ok {
		return nil, appointment.ErrDoctorNotFound
	}
	return d, nil
}

func (f *fakeApptRepo) GetAppointmentByID(_ context.Context, id uuid.UUID) (*appointment.Appointment, error) {
	a, ok := f.appointments[id]
	if !ok {
		return nil, appointment.ErrAppointmentNotFound
	}
	cp := *a
	return &cp, nil
}

func (f *fakeApptRepo) ListByPatient(_ context.Context, patientID uuid.UUID, limit, offset int) ([]appointment.Appointment, error) {
	return nil, nil
}

func (f *fakeApptRepo) FindStalePending(_ context.Context, _ time.Time) ([]appointment.Appointment, error) {
	return nil, nil
}

func (f *fakeApptRepo) CreateAppointment(_ context.Context, a appointment.Appointment) (*appointment.Appointment, error) {
	if a.ID == uuid.Nil {
		a.ID = uuid.New()
	}
	f.appointments[a.ID] = &a
	cp := a
	return &cp, nil
}

func (f *fakeApptRepo) UpdateAppointment(_ context.Context, a appointment.Appointment, from appointment.Status) (*appointment.Appointment, error) {
	f.appointments[a.ID] = &a
	cp := a
	return &cp, nil
}

type sentMail struct {
	To, Subject string
}

type fakeMailer struct {
	sent []sentMail
}

func (f *fakeMailer) SendEmail(_ context.Context, to, subject, _ string) error {
	f.sent = append(f.sent, sentMail{To: to, Subject: subject})
	return nil
}

type fakeAuditor struct {
	events []audit.Event
}

func (f *fakeAuditor) Record(_ context.Context, ev audit.Event) error {
	f.events = append(f.events, ev)
	return nil
}

type fixture struct {
	svc      *Service
	repo     *fakeRepo
	apptRepo *fakeApptRepo
	mailer   *fakeMailer
	auditor  *fakeAuditor
	clk      *clock.Fixed
	patient  *appointment.Patient
	reviewer *appointment.Doctor
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	repo := newFakeRepo()
	apptRepo := newFakeApptRepo()
	mailer := &fakeMailer{}
	auditor := &fakeAuditor{}
	clk := clock.NewFixed(time.Date(2025, 6, 2, 9, 0, 0, 0, time.UTC))

	patientEmail := "pat@example.com"
	patient := &appointment.Patient{ID: uuid.New(), Name: "Pat", Email: &patientEmail}
	reviewerEmail := "frontdesk@example.com"
	reviewer := &appointment.Doctor{ID: uuid.New(), Name: "Front Desk", Email: &reviewerEmail}
	apptRepo.patients[patient.ID] = patient
	apptRepo.doctors[reviewer.ID] = reviewer

	return &fixture{
		svc:      NewService(repo, apptRepo, mailer, auditor, clk, zerolog.Nop()),
		repo:     repo,
		apptRepo: apptRepo,
		mailer:   mailer,
		auditor:  auditor,
		clk:      clk,
		patient:  patient,
		reviewer: reviewer,
	}
}

func (fx *fixture) seedRequest(t *testing.T, status Status) *Request {
	t.Helper()
	r, err := fx.repo.Create(context.Background(), Request{
		PatientID: fx.patient.ID,
		Reason:    "persistent headaches",
		Status:    status,
	})
	require.NoError(t, err)
	return r
}

func TestSubmit(t *testing.T) {
	fx := newFixture(t)

	created, err := fx.svc.Submit(context.Background(), fx.patient.ID, nil, "persistent headaches")
	require.NoError(t, err)

	assert.Equal(t, StatusSubmitted, created.Status)
	require.Len(t, fx.auditor.events, 1)
	assert.Equal(t, ActionSubmit, fx.auditor.events[0].Action)
	assert.Equal(t, audit.ModelConsultationRequest, fx.auditor.events[0].Model)
}

func TestSubmit_BlankReason(t *testing.T) {
	fx := newFixture(t)

	_, err := fx.svc.Submit(context.Background(), fx.patient.ID, nil, "  ")
	assert.ErrorIs(t, err, ErrValidation)
	assert.Empty(t, fx.repo.requests)
}

func TestSubmit_UnknownPatient(t *testing.T) {
	fx := newFixture(t)

	_, err := fx.svc.Submit(context.Background(), uuid.New(), nil, "headaches")
	assert.ErrorIs(t, err, appointment.ErrPatientNotFound)
}

func TestTriage_FullPath(t *testing.T) {
	fx := newFixture(t)
	req := fx.seedRequest(t, StatusSubmitted)
	ctx := context.Background()

	reviewed, err := fx.svc.StartReview(ctx, req.ID, fx.reviewer.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusPendingReview, reviewed.Status)
	require.NotNil(t, reviewed.ReviewedBy)
	assert.Equal(t, fx.reviewer.ID, *reviewed.ReviewedBy)

	approved, err := fx.svc.Approve(ctx, req.ID, fx.reviewer.ID, "looks genuine")
	require.NoError(t, err)
	assert.Equal(t, StatusApproved, approved.Status)

	slot := fx.clk.Now().Add(72 * time.Hour)
	doctorID := uuid.New()
	scheduled, err := fx.svc.Schedule(ctx, req.ID, fx.reviewer.ID, doctorID, slot)
	require.NoError(t, err)
	assert.Equal(t, StatusScheduled, scheduled.Status)
	require.NotNil(t, scheduled.AppointmentID)
	require.NotNil(t, scheduled.ScheduledFor)
	assert.Equal(t, slot, *scheduled.ScheduledFor)

	// The linked appointment was created in the scheduled state.
	linked := fx.apptRepo.appointments[*scheduled.AppointmentID]
	require.NotNil(t, linked)
	assert.Equal(t, appointment.StatusScheduled, linked.Status)
	assert.Equal(t, fx.patient.ID, linked.PatientID)
	assert.Equal(t, doctorID, linked.DoctorID)

	confirmed, err := fx.svc.PatientConfirm(ctx, req.ID, fx.patient.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusConfirmed, confirmed.Status)

	// start_review, approve, schedule, patient_confirm
	assert.Len(t, fx.auditor.events, 4)
}

func TestPatientConfirm_DirectFromSubmittedFails(t *testing.T) {
	fx := newFixture(t)
	req := fx.seedRequest(t, StatusSubmitted)

	_, err := fx.svc.PatientConfirm(context.Background(), req.ID, fx.patient.ID)
	assert.ErrorIs(t, err, ErrInvalidTransition)
	assert.Zero(t, fx.repo.updates)
	assert.Empty(t, fx.auditor.events)
}

func TestPatientConfirm_WrongPatient(t *testing.T) {
	fx := newFixture(t)
	req := fx.seedRequest(t, StatusScheduled)

	_, err := fx.svc.PatientConfirm(context.Background(), req.ID, uuid.New())
	assert.ErrorIs(t, err, ErrNotOwner)
	assert.Zero(t, fx.repo.updates)
}

func TestPatientConfirm_LinkedAppointmentClosed(t *testing.T) {
	fx := newFixture(t)
	req := fx.seedRequest(t, StatusScheduled)

	appt, err := fx.apptRepo.CreateAppointment(context.Background(), appointment.Appointment{
		PatientID: fx.patient.ID,
		DoctorID:  uuid.New(),
		Status:    appointment.StatusCancelled,
	})
	require.NoError(t, err)

	when := fx.clk.Now().Add(24 * time.Hour)
	stored := fx.repo.requests[req.ID]
	linked := stored.WithAppointment(appt.ID, when)
	fx.repo.requests[req.ID] = &linked

	_, err = fx.svc.PatientConfirm(context.Background(), req.ID, fx.patient.ID)
	assert.ErrorIs(t, err, ErrAppointmentClosed)
	assert.Equal(t, StatusScheduled, fx.repo.requests[req.ID].Status)
}

func TestRequestMoreInfo_RequiresNotes(t *testing.T) {
	fx := newFixture(t)
	req := fx.seedRequest(t, StatusPendingReview)

	_, err := fx.svc.RequestMoreInfo(context.Background(), req.ID, fx.reviewer.ID, "")
	assert.ErrorIs(t, err, ErrValidation)
}

func TestReject_RequiresNotes(t *testing.T) {
	fx := newFixture(t)
	req := fx.seedRequest(t, StatusPendingReview)

	_, err := fx.svc.Reject(context.Background(), req.ID, fx.reviewer.ID, "  ")
	assert.ErrorIs(t, err, ErrValidation)
}

func TestReject_IsTerminal(t *testing.T) {
	fx := newFixture(t)
	req := fx.seedRequest(t, StatusPendingReview)
	ctx := context.Background()

	rejected, err := fx.svc.Reject(ctx, req.ID, fx.reviewer.ID, "out of scope")
	require.NoError(t, err)
	assert.Equal(t, StatusRejected, rejected.Status)

	_, err = fx.svc.StartReview(ctx, req.ID, fx.reviewer.ID)
	assert.ErrorIs(t, err, ErrInvalidTransition)
}

func TestResubmit_AfterMoreInfo(t *testing.T) {
	fx := newFixture(t)
	req := fx.seedRequest(t, StatusNeedsMoreInfo)

	updated, err := fx.svc.Resubmit(context.Background(), req.ID, fx.patient.ID, "headaches, now with dizziness")
	require.NoError(t, err)

	assert.Equal(t, StatusSubmitted, updated.Status)
	assert.Equal(t, "headaches, now with dizziness", updated.Reason)

	// The rewritten reason must survive the round trip through the store,
	// not just the returned value.
	stored, err := fx.svc.Get(context.Background(), req.ID)
	require.NoError(t, err)
	assert.Equal(t, "headaches, now with dizziness", stored.Reason)
}

func TestResubmit_OwnershipEnforced(t *testing.T) {
	fx := newFixture(t)
	req := fx.seedRequest(t, StatusNeedsMoreInfo)

	_, err := fx.svc.Resubmit(context.Background(), req.ID, uuid.New(), "")
	assert.ErrorIs(t, err, ErrNotOwner)
}

func TestSchedule_OnlyFromApproved(t *testing.T) {
	fx := newFixture(t)
	req := fx.seedRequest(t, StatusSubmitted)

	_, err := fx.svc.Schedule(context.Background(), req.ID, fx.reviewer.ID, uuid.New(), fx.clk.Now().Add(time.Hour))
	assert.ErrorIs(t, err, ErrInvalidTransition)
	assert.Empty(t, fx.apptRepo.appointments)
}

func TestListByStatus_Queue(t *testing.T) {
	fx := newFixture(t)
	fx.seedRequest(t, StatusSubmitted)
	fx.seedRequest(t, StatusSubmitted)
	fx.seedRequest(t, StatusRejected)

	queue, err := fx.svc.ListByStatus(context.Background(), StatusSubmitted, 0, 0)
	require.NoError(t, err)
	assert.Len(t, queue, 2)
}
