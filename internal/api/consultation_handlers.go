package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/wardline/clinic-workflow/internal/appointment"
	"github.com/wardline/clinic-workflow/internal/consultation"
)

func submitConsultationHandler(svc *consultation.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req SubmitConsultationRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid_request_body", "could not parse JSON")
			return
		}

		patientID, ok := parseUUIDField(w, req.PatientID, "patient_id")
		if !ok {
			return
		}

		var doctorID *uuid.UUID
		if req.DoctorID != nil {
			id, ok := parseUUIDField(w, *req.DoctorID, "doctor_id")
			if !ok {
				return
			}
			doctorID = &id
		}

		created, err := svc.Submit(r.Context(), patientID, doctorID, req.Reason)
		if err != nil {
			handleConsultationError(w, err)
			return
		}

		writeJSON(w, http.StatusCreated, toConsultationResponse(created))
	}
}

func getConsultationHandler(svc *consultation.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := parseUUIDField(w, chi.URLParam(r, "id"), "id")
		if !ok {
			return
		}

		req, err := svc.Get(r.Context(), id)
		if err != nil {
			handleConsultationError(w, err)
			return
		}

		writeJSON(w, http.StatusOK, toConsultationResponse(req))
	}
}

func listConsultationQueueHandler(svc *consultation.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		status := consultation.Status(r.URL.Query().Get("status"))
		if status == "" {
			status = consultation.StatusSubmitted
		}

		limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
		offset, _ := strconv.Atoi(r.URL.Query().Get("offset"))

		reqs, err := svc.ListByStatus(r.Context(), status, limit, offset)
		if err != nil {
			handleConsultationError(w, err)
			return
		}

		resp := make([]ConsultationResponse, 0, len(reqs))
		for i := range reqs {
			resp = append(resp, toConsultationResponse(&reqs[i]))
		}

		writeJSON(w, http.StatusOK, resp)
	}
}

func listPatientConsultationsHandler(svc *consultation.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		patientID, ok := parseUUIDField(w, chi.URLParam(r, "id"), "id")
		if !ok {
			return
		}

		limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
		offset, _ := strconv.Atoi(r.URL.Query().Get("offset"))

		reqs, err := svc.ListByPatient(r.Context(), patientID, limit, offset)
		if err != nil {
			handleConsultationError(w, err)
			return
		}

		resp := make([]ConsultationResponse, 0, len(reqs))
		for i := range reqs {
			resp = append(resp, toConsultationResponse(&reqs[i]))
		}

		writeJSON(w, http.StatusOK, resp)
	}
}

// reviewAction wraps the front-desk endpoints that share the reviewer+notes
// request shape.
func reviewAction(apply func(r *http.Request, id, reviewerID uuid.UUID, notes string) (*consultation.Request, error)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := parseUUIDField(w, chi.URLParam(r, "id"), "id")
		if !ok {
			return
		}

		var req ReviewActionRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid_request_body", "could not parse JSON")
			return
		}

		reviewerID, ok := parseUUIDField(w, req.ReviewerID, "reviewer_id")
		if !ok {
			return
		}

		updated, err := apply(r, id, reviewerID, req.Notes)
		if err != nil {
			handleConsultationError(w, err)
			return
		}

		writeJSON(w, http.StatusOK, toConsultationResponse(updated))
	}
}

func startReviewHandler(svc *consultation.Service) http.HandlerFunc {
	return reviewAction(func(r *http.Request, id, reviewerID uuid.UUID, _ string) (*consultation.Request, error) {
		return svc.StartReview(r.Context(), id, reviewerID)
	})
}

func approveConsultationHandler(svc *consultation.Service) http.HandlerFunc {
	return reviewAction(func(r *http.Request, id, reviewerID uuid.UUID, notes string) (*consultation.Request, error) {
		return svc.Approve(r.Context(), id, reviewerID, notes)
	})
}

func requestInfoConsultationHandler(svc *consultation.Service) http.HandlerFunc {
	return reviewAction(func(r *http.Request, id, reviewerID uuid.UUID, notes string) (*consultation.Request, error) {
		return svc.RequestMoreInfo(r.Context(), id, reviewerID, notes)
	})
}

func rejectConsultationHandler(svc *consultation.Service) http.HandlerFunc {
	return reviewAction(func(r *http.Request, id, reviewerID uuid.UUID, notes string) (*consultation.Request, error) {
		return svc.Reject(r.Context(), id, reviewerID, notes)
	})
}

func scheduleConsultationHandler(svc *consultation.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := parseUUIDField(w, chi.URLParam(r, "id"), "id")
		if !ok {
			return
		}

		var req ScheduleConsultationRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid_request_body", "could not parse JSON")
			return
		}

		reviewerID, ok := parseUUIDField(w, req.ReviewerID, "reviewer_id")
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

		updated, err := svc.Schedule(r.Context(), id, reviewerID, doctorID, startTime)
		if err != nil {
			handleConsultationError(w, err)
			return
		}

		writeJSON(w, http.StatusOK, toConsultationResponse(updated))
	}
}

func confirmConsultationHandler(svc *consultation.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, req, ok := decodePatientAction(w, r)
		if !ok {
			return
		}

		patientID, ok := parseUUIDField(w, req.PatientID, "patient_id")
		if !ok {
			return
		}

		updated, err := svc.PatientConfirm(r.Context(), id, patientID)
		if err != nil {
			handleConsultationError(w, err)
			return
		}

		writeJSON(w, http.StatusOK, toConsultationResponse(updated))
	}
}

func resubmitConsultationHandler(svc *consultation.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, req, ok := decodePatientAction(w, r)
		if !ok {
			return
		}

		patientID, ok := parseUUIDField(w, req.PatientID, "patient_id")
		if !ok {
			return
		}

		updated, err := svc.Resubmit(r.Context(), id, patientID, req.Reason)
		if err != nil {
			handleConsultationError(w, err)
			return
		}

		writeJSON(w, http.StatusOK, toConsultationResponse(updated))
	}
}

func decodePatientAction(w http.ResponseWriter, r *http.Request) (uuid.UUID, PatientActionRequest, bool) {
	id, ok := parseUUIDField(w, chi.URLParam(r, "id"), "id")
	if !ok {
		return uuid.Nil, PatientActionRequest{}, false
	}

	var req PatientActionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request_body", "could not parse JSON")
		return uuid.Nil, PatientActionRequest{}, false
	}

	return id, req, true
}

func handleConsultationError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, consultation.ErrValidation):
		writeError(w, http.StatusBadRequest, "validation_failed", err.Error())
	case errors.Is(err, consultation.ErrRequestNotFound):
		writeError(w, http.StatusNotFound, "consultation_request_not_found", err.Error())
	case errors.Is(err, appointment.ErrPatientNotFound):
		writeError(w, http.StatusNotFound, "patient_not_found", err.Error())
	case errors.Is(err, consultation.ErrNotOwner):
		writeError(w, http.StatusForbidden, "not_request_owner", err.Error())
	case errors.Is(err, consultation.ErrInvalidTransition):
		writeError(w, http.StatusUnprocessableEntity, "invalid_status_transition", err.Error())
	case errors.Is(err, consultation.ErrAppointmentClosed):
		writeError(w, http.StatusUnprocessableEntity, "appointment_closed", err.Error())
	case errors.Is(err, consultation.ErrConflict):
		writeError(w, http.StatusConflict, "concurrent_modification", err.Error())
	default:
		writeError(w, http.StatusInternalServerError, "internal_error", "an unexpected error occurred")
	}
}
