package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/wardline/clinic-workflow/internal/appointment"
)

func scheduleAppointmentHandler(svc *appointment.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req ScheduleAppointmentRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid_request_body", "could not parse JSON")
			return
		}

		actorID, ok := parseUUIDField(w, req.ActorID, "actor_id")
		if !ok {
			return
		}
		patientID, ok := parseUUIDField(w, req.PatientID, "patient_id")
		if !ok {
			return
		}
		doctorID, ok := parseUUIDField(w, req.DoctorID, "doctor_id")
		if !ok {
			return
		}
		startTime, ok := parseTimeField(w, req.StartTime, "start_time")
		if !ok {
			return
		}

		appt, err := svc.Schedule(r.Context(), appointment.ScheduleInput{
			ActorID:   actorID,
			PatientID: patientID,
			DoctorID:  doctorID,
			StartTime: startTime,
			Type:      req.Type,
			Note:      req.Note,
			Reason:    req.Reason,
		})
		if err != nil {
			handleAppointmentError(w, err)
			return
		}

		writeJSON(w, http.StatusCreated, toAppointmentResponse(appt))
	}
}

func getAppointmentHandler(svc *appointment.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := parseUUIDField(w, chi.URLParam(r, "id"), "id")
		if !ok {
			return
		}

		appt, err := svc.Get(r.Context(), id)
		if err != nil {
			handleAppointmentError(w, err)
			return
		}

		writeJSON(w, http.StatusOK, toAppointmentResponse(appt))
	}
}

func listPatientAppointmentsHandler(svc *appointment.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		patientID, ok := parseUUIDField(w, chi.URLParam(r, "id"), "id")
		if !ok {
			return
		}

		limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
		offset, _ := strconv.Atoi(r.URL.Query().Get("offset"))

		appts, err := svc.ListByPatient(r.Context(), patientID, limit, offset)
		if err != nil {
			handleAppointmentError(w, err)
			return
		}

		resp := make([]AppointmentResponse, 0, len(appts))
		for i := range appts {
			resp = append(resp, toAppointmentResponse(&appts[i]))
		}

		writeJSON(w, http.StatusOK, resp)
	}
}

func confirmAppointmentHandler(svc *appointment.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, req, ok := decodeDoctorAction(w, r)
		if !ok {
			return
		}

		doctorID, ok := parseUUIDField(w, req.DoctorID, "doctor_id")
		if !ok {
			return
		}

		appt, err := svc.Confirm(r.Context(), id, doctorID, req.Notes)
		if err != nil {
			handleAppointmentError(w, err)
			return
		}

		writeJSON(w, http.StatusOK, toAppointmentResponse(appt))
	}
}

func rejectAppointmentHandler(svc *appointment.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, req, ok := decodeDoctorAction(w, r)
		if !ok {
			return
		}

		doctorID, ok := parseUUIDField(w, req.DoctorID, "doctor_id")
		if !ok {
			return
		}

		appt, err := svc.Reject(r.Context(), id, doctorID, req.Reason)
		if err != nil {
			handleAppointmentError(w, err)
			return
		}

		writeJSON(w, http.StatusOK, toAppointmentResponse(appt))
	}
}

// actorAction wraps the lifecycle endpoints that only need an acting user.
func actorAction(apply func(r *http.Request, id, actorID uuid.UUID, reason string) (*appointment.Appointment, error)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := parseUUIDField(w, chi.URLParam(r, "id"), "id")
		if !ok {
			return
		}

		var req ActorActionRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid_request_body", "could not parse JSON")
			return
		}

		actorID, ok := parseUUIDField(w, req.ActorID, "actor_id")
		if !ok {
			return
		}

		appt, err := apply(r, id, actorID, req.Reason)
		if err != nil {
			handleAppointmentError(w, err)
			return
		}

		writeJSON(w, http.StatusOK, toAppointmentResponse(appt))
	}
}

func checkInAppointmentHandler(svc *appointment.Service) http.HandlerFunc {
	return actorAction(func(r *http.Request, id, actorID uuid.UUID, _ string) (*appointment.Appointment, error) {
		return svc.CheckIn(r.Context(), id, actorID)
	})
}

func readyAppointmentHandler(svc *appointment.Service) http.HandlerFunc {
	return actorAction(func(r *http.Request, id, actorID uuid.UUID, _ string) (*appointment.Appointment, error) {
		return svc.MarkReady(r.Context(), id, actorID)
	})
}

func startConsultationHandler(svc *appointment.Service) http.HandlerFunc {
	return actorAction(func(r *http.Request, id, actorID uuid.UUID, _ string) (*appointment.Appointment, error) {
		return svc.StartConsultation(r.Context(), id, actorID)
	})
}

func completeAppointmentHandler(svc *appointment.Service) http.HandlerFunc {
	return actorAction(func(r *http.Request, id, actorID uuid.UUID, _ string) (*appointment.Appointment, error) {
		return svc.Complete(r.Context(), id, actorID)
	})
}

func noShowAppointmentHandler(svc *appointment.Service) http.HandlerFunc {
	return actorAction(func(r *http.Request, id, actorID uuid.UUID, reason string) (*appointment.Appointment, error) {
		return svc.MarkNoShow(r.Context(), id, actorID, reason)
	})
}

func cancelAppointmentHandler(svc *appointment.Service) http.HandlerFunc {
	return actorAction(func(r *http.Request, id, actorID uuid.UUID, reason string) (*appointment.Appointment, error) {
		return svc.Cancel(r.Context(), id, actorID, reason)
	})
}

func decodeDoctorAction(w http.ResponseWriter, r *http.Request) (uuid.UUID, DoctorActionRequest, bool) {
	id, ok := parseUUIDField(w, chi.URLParam(r, "id"), "id")
	if !ok {
		return uuid.Nil, DoctorActionRequest{}, false
	}

	var req DoctorActionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request_body", "could not parse JSON")
		return uuid.Nil, DoctorActionRequest{}, false
	}

	return id, req, true
}

func parseUUIDField(w http.ResponseWriter, value, field string) (uuid.UUID, bool) {
	id, err := uuid.Parse(value)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_"+field, field+" must be a valid UUID")
		return uuid.Nil, false
	}
	return id, true
}

func parseTimeField(w http.ResponseWriter, value, field string) (time.Time, bool) {
	t, err := time.Parse(time.RFC3339, value)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_"+field, field+" must be an RFC 3339 timestamp")
		return time.Time{}, false
	}
	return t, true
}

func handleAppointmentError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, appointment.ErrValidation):
		writeError(w, http.StatusBadRequest, "validation_failed", err.Error())
	case errors.Is(err, appointment.ErrPatientNotFound):
		writeError(w, http.StatusNotFound, "patient_not_found", err.Error())
	case errors.Is(err, appointment.ErrDoctorNotFound):
		writeError(w, http.StatusNotFound, "doctor_not_found", err.Error())
	case errors.Is(err, appointment.ErrAppointmentNotFound):
		writeError(w, http.StatusNotFound, "appointment_not_found", err.Error())
	case errors.Is(err, appointment.ErrInvalidTransition):
		writeError(w, http.StatusUnprocessableEntity, "invalid_status_transition", err.Error())
	case errors.Is(err, appointment.ErrConflict):
		writeError(w, http.StatusConflict, "concurrent_modification", err.Error())
	default:
		writeError(w, http.StatusInternalServerError, "internal_error", "an unexpected error occurred")
	}
}
