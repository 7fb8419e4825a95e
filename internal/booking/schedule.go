package booking

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/careops/clinicbook/internal/calendar"
)

// ClinicLocation resolves the clinic's IANA timezone for day-boundary math.
// An unset or unloadable timezone falls back to UTC.
func (s *Service) ClinicLocation(ctx context.Context, clinicID uuid.UUID) (*time.Location, error) {
	clinic, err := s.cat.GetClinic(ctx, clinicID)
	if err != nil {
		return nil, err
	}
	if clinic.Timezone == "" {
		return time.UTC, nil
	}
	loc, err := time.LoadLocation(clinic.Timezone)
	if err != nil {
		s.log.Warn("unknown clinic timezone, using UTC",
			zap.String("clinic_id", clinicID.String()),
			zap.String("timezone", clinic.Timezone),
		)
		return time.UTC, nil
	}
	return loc, nil
}

// DoctorDay returns the doctor's active appointments whose intervals touch
// the given calendar day, in start order. Day boundaries are taken in loc,
// the clinic's local timezone.
func (s *Service) DoctorDay(ctx context.Context, clinicID, doctorID uuid.UUID, day time.Time, loc *time.Location) ([]Appointment, error) {
	key := calendar.Key{ClinicID: clinicID, ResourceID: doctorID, Kind: calendar.KindDoctor}
	return s.resourceDay(ctx, key, day, loc)
}

// RoomDay is DoctorDay for a room.
func (s *Service) RoomDay(ctx context.Context, clinicID, roomID uuid.UUID, day time.Time, loc *time.Location) ([]Appointment, error) {
	key := calendar.Key{ClinicID: clinicID, ResourceID: roomID, Kind: calendar.KindRoom}
	return s.resourceDay(ctx, key, day, loc)
}

func (s *Service) resourceDay(ctx context.Context, key calendar.Key, day time.Time, loc *time.Location) ([]Appointment, error) {
	if loc == nil {
		loc = time.UTC
	}
	local := day.In(loc)
	start := time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, loc)
	window := calendar.Interval{Start: start, End: start.AddDate(0, 0, 1)}

	ids := s.cal.Overlapping(key, window)
	appts := make([]Appointment, 0, len(ids))
	for _, id := range ids {
		appt, err := s.repo.GetAppointmentByID(ctx, id)
		if err != nil {
			return nil, &InfrastructureError{Op: "load appointment for schedule", Err: err}
		}
		appts = append(appts, *appt)
	}
	return appts, nil
}
