package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/wardline/clinic-workflow/internal/theater"
)

func holdBookingHandler(svc *theater.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req HoldBookingRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid_request_body", "could not parse JSON")
			return
		}

		actorID, ok := parseUUIDField(w, req.ActorID, "actor_id")
		if !ok {
			return
		}
		caseID, ok := parseUUIDField(w, req.CaseID, "case_id")
		if !ok {
			return
		}
		theaterID, ok := parseUUIDField(w, req.TheaterID, "theater_id")
		if !ok {
			return
		}
		start, ok := parseTimeField(w, req.StartTime, "start_time")
		if !ok {
			return
		}
		end, ok := parseTimeField(w, req.EndTime, "end_time")
		if !ok {
			return
		}

		booking, err := svc.Hold(r.Context(), actorID, caseID, theaterID, start, end)
		if err != nil {
			handleTheaterError(w, err)
			return
		}

		writeJSON(w, http.StatusCreated, toBookingResponse(booking))
	}
}

func confirmBookingHandler(svc *theater.Service) http.HandlerFunc {
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

		booking, err := svc.Confirm(r.Context(), actorID, id)
		if err != nil {
			handleTheaterError(w, err)
			return
		}

		writeJSON(w, http.StatusOK, toBookingResponse(booking))
	}
}

func releaseBookingHandler(svc *theater.Service) http.HandlerFunc {
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

		booking, err := svc.Release(r.Context(), actorID, id)
		if err != nil {
			handleTheaterError(w, err)
			return
		}

		writeJSON(w, http.StatusOK, toBookingResponse(booking))
	}
}

func getBookingHandler(svc *theater.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := parseUUIDField(w, chi.URLParam(r, "id"), "id")
		if !ok {
			return
		}

		booking, err := svc.Get(r.Context(), id)
		if err != nil {
			handleTheaterError(w, err)
			return
		}

		writeJSON(w, http.StatusOK, toBookingResponse(booking))
	}
}

func listTheaterBookingsHandler(svc *theater.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		theaterID, ok := parseUUIDField(w, chi.URLParam(r, "id"), "id")
		if !ok {
			return
		}

		var from, to time.Time
		if v := r.URL.Query().Get("from"); v != "" {
			t, ok := parseTimeField(w, v, "from")
			if !ok {
				return
			}
			from = t
		}
		if v := r.URL.Query().Get("to"); v != "" {
			t, ok := parseTimeField(w, v, "to")
			if !ok {
				return
			}
			to = t
		}

		bookings, err := svc.ListByTheater(r.Context(), theaterID, from, to)
		if err != nil {
			handleTheaterError(w, err)
			return
		}

		resp := make([]BookingResponse, 0, len(bookings))
		for i := range bookings {
			resp = append(resp, toBookingResponse(&bookings[i]))
		}

		writeJSON(w, http.StatusOK, resp)
	}
}

func handleTheaterError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, theater.ErrValidation):
		writeError(w, http.StatusBadRequest, "validation_failed", err.Error())
	case errors.Is(err, theater.ErrTheaterNotFound):
		writeError(w, http.StatusNotFound, "theater_not_found", err.Error())
	case errors.Is(err, theater.ErrBookingNotFound):
		writeError(w, http.StatusNotFound, "booking_not_found", err.Error())
	case errors.Is(err, theater.ErrSlotUnavailable):
		writeError(w, http.StatusConflict, "slot_unavailable", err.Error())
	case errors.Is(err, theater.ErrTheaterBusy):
		writeError(w, http.StatusConflict, "theater_being_booked", "theater is currently being booked, please retry shortly")
	case errors.Is(err, theater.ErrHoldExpired):
		writeError(w, http.StatusUnprocessableEntity, "hold_expired", err.Error())
	case errors.Is(err, theater.ErrInvalidTransition):
		writeError(w, http.StatusUnprocessableEntity, "invalid_status_transition", err.Error())
	default:
		writeError(w, http.StatusInternalServerError, "internal_error", "an unexpected error occurred")
	}
}
