package api

import (
	"time"

	"github.com/google/uuid"

	"github.com/careops/clinicbook/internal/booking"
)

type BookRequest struct {
	ClinicID  string     `json:"clinic_id"`
	PatientID string     `json:"patient_id"`
	DoctorID  *string    `json:"doctor_id,omitempty"`
	RoomID    *string    `json:"room_id,omitempty"`
	ServiceID *string    `json:"service_id,omitempty"`
	Start     time.Time  `json:"start"`
	End       *time.Time `json:"end,omitempty"`
	Backdated bool       `json:"backdated,omitempty"`
	CreatedBy string     `json:"created_by"`
	Notes     *string    `json:"notes,omitempty"`
}

type RescheduleRequest struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}

type StatusRequest struct {
	Status string `json:"status"`
}

type AppointmentResponse struct {
	ID        uuid.UUID  `json:"id"`
	ClinicID  uuid.UUID  `json:"clinic_id"`
	PatientID uuid.UUID  `json:"patient_id"`
	DoctorID  *uuid.UUID `json:"doctor_id,omitempty"`
	RoomID    *uuid.UUID `json:"room_id,omitempty"`
	ServiceID *uuid.UUID `json:"service_id,omitempty"`
	Start     time.Time  `json:"start"`
	End       time.Time  `json:"end"`
	Status    string     `json:"status"`
	Notes     *string    `json:"notes,omitempty"`
	CreatedAt time.Time  `json:"created_at"`
	UpdatedAt time.Time  `json:"updated_at"`
}

type ScheduleResponse struct {
	Date         string                `json:"date"`
	Appointments []AppointmentResponse `json:"appointments"`
}

type ErrorResponse struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}

func toAppointmentResponse(a *booking.Appointment) AppointmentResponse {
	return AppointmentResponse{
		ID:        a.ID,
		ClinicID:  a.ClinicID,
		PatientID: a.PatientID,
		DoctorID:  a.DoctorID,
		RoomID:    a.RoomID,
		ServiceID: a.ServiceID,
		Start:     a.Interval.Start,
		End:       a.Interval.End,
		Status:    string(a.Status),
		Notes:     a.Notes,
		CreatedAt: a.CreatedAt,
		UpdatedAt: a.UpdatedAt,
	}
}
