package api

import (
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/clinicstack/availability-engine/internal/booking"
	"github.com/clinicstack/availability-engine/internal/holiday"
	"github.com/clinicstack/availability-engine/internal/session"
	"github.com/clinicstack/availability-engine/internal/timegrid"
)

// DoctorSessionRequest is the client shape for creating or updating a
// recurring availability template. Day names and HH:MM strings are
// normalized here; nothing client-supplied reaches the domain unparsed.
type DoctorSessionRequest struct {
	ID                  string   `json:"id,omitempty"`
	DoctorID            string   `json:"doctor_id"`
	ClinicID            string   `json:"clinic_id"`
	Days                []string `json:"days"`
	SlotDurationMinutes int      `json:"slot_duration_minutes"`
	MorningStart        string   `json:"morning_start,omitempty"`
	MorningEnd          string   `json:"morning_end,omitempty"`
	EveningStart        string   `json:"evening_start,omitempty"`
	EveningEnd          string   `json:"evening_end,omitempty"`
}

func (r DoctorSessionRequest) ToModel() (*session.DoctorSession, error) {
	s := &session.DoctorSession{
		SlotDurationMinutes: r.SlotDurationMinutes,
	}

	if r.ID != "" {
		id, err := uuid.Parse(r.ID)
		if err != nil {
			return nil, fmt.Errorf("id must be a valid UUID")
		}
		s.ID = id
	}

	var err error
	if s.DoctorID, err = uuid.Parse(r.DoctorID); err != nil {
		return nil, fmt.Errorf("doctor_id must be a valid UUID")
	}
	if s.ClinicID, err = uuid.Parse(r.ClinicID); err != nil {
		return nil, fmt.Errorf("clinic_id must be a valid UUID")
	}
	if s.Weekdays, err = timegrid.ParseWeekdaySet(r.Days); err != nil {
		return nil, err
	}
	if s.MorningWindow, err = parseWindow(r.MorningStart, r.MorningEnd, "morning"); err != nil {
		return nil, err
	}
	if s.EveningWindow, err = parseWindow(r.EveningStart, r.EveningEnd, "evening"); err != nil {
		return nil, err
	}

	return s, nil
}

func parseWindow(start, end, name string) (*timegrid.Window, error) {
	if start == "" && end == "" {
		return nil, nil
	}
	if start == "" || end == "" {
		return nil, fmt.Errorf("%s window requires both start and end", name)
	}
	s, err := timegrid.ParseTimeOfDay(start)
	if err != nil {
		return nil, err
	}
	e, err := timegrid.ParseTimeOfDay(end)
	if err != nil {
		return nil, err
	}
	return &timegrid.Window{Start: s, End: e}, nil
}

type DoctorSessionResponse struct {
	ID                  uuid.UUID `json:"id"`
	DoctorID            uuid.UUID `json:"doctor_id"`
	ClinicID            uuid.UUID `json:"clinic_id"`
	Days                []string  `json:"days"`
	SlotDurationMinutes int       `json:"slot_duration_minutes"`
	MorningStart        string    `json:"morning_start,omitempty"`
	MorningEnd          string    `json:"morning_end,omitempty"`
	EveningStart        string    `json:"evening_start,omitempty"`
	EveningEnd          string    `json:"evening_end,omitempty"`
	Active              bool      `json:"active"`
	UpdatedAt           time.Time `json:"updated_at"`
}

func toSessionResponse(s *session.DoctorSession) DoctorSessionResponse {
	resp := DoctorSessionResponse{
		ID:                  s.ID,
		DoctorID:            s.DoctorID,
		ClinicID:            s.ClinicID,
		Days:                s.Weekdays.Names(),
		SlotDurationMinutes: s.SlotDurationMinutes,
		Active:              s.Active,
		UpdatedAt:           s.UpdatedAt,
	}
	if s.MorningWindow != nil {
		resp.MorningStart = s.MorningWindow.Start.String()
		resp.MorningEnd = s.MorningWindow.End.String()
	}
	if s.EveningWindow != nil {
		resp.EveningStart = s.EveningWindow.Start.String()
		resp.EveningEnd = s.EveningWindow.End.String()
	}
	return resp
}

type HolidayRequest struct {
	ClinicID  string `json:"clinic_id"`
	DoctorID  string `json:"doctor_id,omitempty"`
	StartDate string `json:"start_date"`
	EndDate   string `json:"end_date,omitempty"`
	Reason    string `json:"reason,omitempty"`
}

func (r HolidayRequest) ToModel() (*holiday.Holiday, error) {
	h := &holiday.Holiday{Reason: r.Reason}

	var err error
	if h.ClinicID, err = uuid.Parse(r.ClinicID); err != nil {
		return nil, fmt.Errorf("clinic_id must be a valid UUID")
	}
	if r.DoctorID != "" {
		id, err := uuid.Parse(r.DoctorID)
		if err != nil {
			return nil, fmt.Errorf("doctor_id must be a valid UUID")
		}
		h.DoctorID = &id
	}
	if h.StartDate, err = timegrid.ParseDate(r.StartDate); err != nil {
		return nil, err
	}
	if r.EndDate != "" {
		if h.EndDate, err = timegrid.ParseDate(r.EndDate); err != nil {
			return nil, err
		}
	}
	return h, nil
}

type HolidayResponse struct {
	ID        uuid.UUID  `json:"id"`
	ClinicID  uuid.UUID  `json:"clinic_id"`
	DoctorID  *uuid.UUID `json:"doctor_id,omitempty"`
	StartDate string     `json:"start_date"`
	EndDate   string     `json:"end_date"`
	Reason    string     `json:"reason,omitempty"`
}

func toHolidayResponse(h *holiday.Holiday) HolidayResponse {
	return HolidayResponse{
		ID:        h.ID,
		ClinicID:  h.ClinicID,
		DoctorID:  h.DoctorID,
		StartDate: h.StartDate.String(),
		EndDate:   h.EndDate.String(),
		Reason:    h.Reason,
	}
}

type CreateAppointmentRequest struct {
	DoctorID  string `json:"doctor_id"`
	PatientID string `json:"patient_id"`
	Date      string `json:"date"`
	StartTime string `json:"start_time"`
}

// PatchAppointmentRequest carries either a status transition or a
// reschedule target; exactly one of the two forms is accepted.
type PatchAppointmentRequest struct {
	Status    string `json:"status,omitempty"`
	Date      string `json:"date,omitempty"`
	StartTime string `json:"start_time,omitempty"`
}

type AppointmentResponse struct {
	ID          uuid.UUID `json:"id"`
	DoctorID    uuid.UUID `json:"doctor_id"`
	ClinicID    uuid.UUID `json:"clinic_id"`
	PatientID   uuid.UUID `json:"patient_id"`
	Date        string    `json:"date"`
	StartTime   string    `json:"start_time"`
	EndTime     string    `json:"end_time"`
	Status      string    `json:"status"`
	NeedsReview bool      `json:"needs_review,omitempty"`
}

func toAppointmentResponse(a *booking.Appointment) AppointmentResponse {
	return AppointmentResponse{
		ID:          a.ID,
		DoctorID:    a.DoctorID,
		ClinicID:    a.ClinicID,
		PatientID:   a.PatientID,
		Date:        a.Date.String(),
		StartTime:   a.StartTime.String(),
		EndTime:     a.EndTime.String(),
		Status:      string(a.Status),
		NeedsReview: a.NeedsReview,
	}
}

type ErrorResponse struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}
