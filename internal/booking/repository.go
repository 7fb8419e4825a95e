package booking

import (
	"context"

	"github.com/google/uuid"

	"github.com/careops/clinicbook/internal/calendar"
)

// Repository is the transactional store collaborator. Each call is atomic on
// its own; sequences spanning the calendar and the store are coordinated by
// the Service, never assumed atomic across both layers.
type Repository interface {
	// LoadActiveAppointments returns every non-cancelled appointment for a
	// clinic, used to rebuild calendars on startup.
	LoadActiveAppointments(ctx context.Context, clinicID uuid.UUID) ([]Appointment, error)

	GetAppointmentByID(ctx context.Context, id uuid.UUID) (*Appointment, error)

	PersistAppointment(ctx context.Context, appt *Appointment) error

	// UpdateStatus is a compare-and-set: it only applies when the stored
	// status equals from, and returns ErrAppointmentNotFound otherwise.
	UpdateStatus(ctx context.Context, id uuid.UUID, from, to Status) (*Appointment, error)

	// UpdateInterval moves the appointment, guarded on the reschedulable
	// states (Scheduled, CheckedIn). A guard miss, like an unknown id,
	// returns ErrAppointmentNotFound.
	UpdateInterval(ctx context.Context, id uuid.UUID, iv calendar.Interval) (*Appointment, error)
}
