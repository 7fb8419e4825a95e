package booking

import (
	"time"

	"github.com/google/uuid"

	"github.com/careops/clinicbook/internal/calendar"
)

type Status string

const (
	StatusScheduled  Status = "scheduled"
	StatusCheckedIn  Status = "checked_in"
	StatusInProgress Status = "in_progress"
	StatusCompleted  Status = "completed"
	StatusCancelled  Status = "cancelled"
)

// Appointment is the persisted booking record. DoctorID, RoomID and ServiceID
// are optional: a phone consultation has neither a doctor's slot nor a room
// and occupies no resource calendar.
type Appointment struct {
	ID        uuid.UUID
	ClinicID  uuid.UUID
	PatientID uuid.UUID
	DoctorID  *uuid.UUID
	RoomID    *uuid.UUID
	ServiceID *uuid.UUID
	Interval  calendar.Interval
	Status    Status
	CreatedBy uuid.UUID
	Notes     *string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Active reports whether the appointment still occupies its calendars.
// Cancelled appointments are kept for history but release their intervals.
func (a *Appointment) Active() bool {
	return a.Status != StatusCancelled
}

// ResourceKeys lists the calendars this appointment occupies, in no
// particular order. Empty when neither doctor nor room is set.
func (a *Appointment) ResourceKeys() []calendar.Key {
	var keys []calendar.Key
	if a.DoctorID != nil {
		keys = append(keys, calendar.Key{ClinicID: a.ClinicID, ResourceID: *a.DoctorID, Kind: calendar.KindDoctor})
	}
	if a.RoomID != nil {
		keys = append(keys, calendar.Key{ClinicID: a.ClinicID, ResourceID: *a.RoomID, Kind: calendar.KindRoom})
	}
	return keys
}

// Request is a proposed booking. A zero Interval.End together with a service
// id means "use the catalog's default duration". Backdated allows a start in
// the past for records entered after the fact.
type Request struct {
	ClinicID  uuid.UUID
	PatientID uuid.UUID
	DoctorID  *uuid.UUID
	RoomID    *uuid.UUID
	ServiceID *uuid.UUID
	Interval  calendar.Interval
	Backdated bool
	CreatedBy uuid.UUID
	Notes     *string
}

func (r Request) resourceKeys() []calendar.Key {
	var keys []calendar.Key
	if r.DoctorID != nil {
		keys = append(keys, calendar.Key{ClinicID: r.ClinicID, ResourceID: *r.DoctorID, Kind: calendar.KindDoctor})
	}
	if r.RoomID != nil {
		keys = append(keys, calendar.Key{ClinicID: r.ClinicID, ResourceID: *r.RoomID, Kind: calendar.KindRoom})
	}
	return keys
}
