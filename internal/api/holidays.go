package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/clinicstack/availability-engine/internal/holiday"
)

func createHolidayHandler(svc *holiday.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req HolidayRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid_request_body", "could not parse JSON")
			return
		}

		model, err := req.ToModel()
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_holiday", err.Error())
			return
		}

		created, err := svc.Create(r.Context(), model)
		if err != nil {
			handleHolidayError(w, err)
			return
		}
		writeJSON(w, http.StatusCreated, toHolidayResponse(created))
	}
}

func deleteHolidayHandler(svc *holiday.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := uuid.Parse(chi.URLParam(r, "id"))
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_holiday_id", "id must be a valid UUID")
			return
		}

		if err := svc.Delete(r.Context(), id); err != nil {
			handleHolidayError(w, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

func listHolidaysHandler(svc *holiday.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		clinicID, err := uuid.Parse(r.URL.Query().Get("clinic_id"))
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_clinic_id", "clinic_id must be a valid UUID")
			return
		}

		entries, err := svc.ListByClinic(r.Context(), clinicID)
		if err != nil {
			handleHolidayError(w, err)
			return
		}

		out := make([]HolidayResponse, len(entries))
		for i := range entries {
			out[i] = toHolidayResponse(&entries[i])
		}
		writeJSON(w, http.StatusOK, map[string]any{"holidays": out})
	}
}

func handleHolidayError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, holiday.ErrInvalidHoliday):
		writeError(w, http.StatusBadRequest, "invalid_holiday", err.Error())
	case errors.Is(err, holiday.ErrHolidayNotFound):
		writeError(w, http.StatusNotFound, "holiday_not_found", err.Error())
	default:
		writeError(w, http.StatusInternalServerError, "internal_error", err.Error())
	}
}
