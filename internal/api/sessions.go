package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/clinicstack/availability-engine/internal/session"
)

func upsertSessionHandler(reg *session.Registry) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req DoctorSessionRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid_request_body", "could not parse JSON")
			return
		}

		model, err := req.ToModel()
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_session", err.Error())
			return
		}

		saved, err := reg.Upsert(r.Context(), model)
		if err != nil {
			handleSessionError(w, err)
			return
		}
		writeJSON(w, http.StatusCreated, toSessionResponse(saved))
	}
}

func getSessionHandler(reg *session.Registry) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := uuid.Parse(chi.URLParam(r, "id"))
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_session_id", "id must be a valid UUID")
			return
		}

		s, err := reg.Get(r.Context(), id)
		if err != nil {
			handleSessionError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, toSessionResponse(s))
	}
}

func listSessionsHandler(reg *session.Registry) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		doctorID, err := uuid.Parse(r.URL.Query().Get("doctor_id"))
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_doctor_id", "doctor_id must be a valid UUID")
			return
		}

		sessions, err := reg.ListByDoctor(r.Context(), doctorID)
		if err != nil {
			handleSessionError(w, err)
			return
		}

		out := make([]DoctorSessionResponse, len(sessions))
		for i := range sessions {
			out[i] = toSessionResponse(&sessions[i])
		}
		writeJSON(w, http.StatusOK, map[string]any{"sessions": out})
	}
}

func deactivateSessionHandler(reg *session.Registry) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := uuid.Parse(chi.URLParam(r, "id"))
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_session_id", "id must be a valid UUID")
			return
		}

		if err := reg.Deactivate(r.Context(), id); err != nil {
			handleSessionError(w, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

func handleSessionError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, session.ErrInvalidSession):
		writeError(w, http.StatusBadRequest, "invalid_session", err.Error())
	case errors.Is(err, session.ErrWeekdayConflict):
		writeError(w, http.StatusConflict, "weekday_conflict", err.Error())
	case errors.Is(err, session.ErrSessionBusy):
		writeError(w, http.StatusConflict, "sessions_busy", err.Error())
	case errors.Is(err, session.ErrSessionNotFound):
		writeError(w, http.StatusNotFound, "session_not_found", err.Error())
	default:
		writeError(w, http.StatusInternalServerError, "internal_error", err.Error())
	}
}
