package booking

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/careops/clinicbook/internal/calendar"
	"github.com/careops/clinicbook/internal/catalog"
	"github.com/careops/clinicbook/internal/events"
	"github.com/careops/clinicbook/internal/lock"
)

// ErrNotReschedulable is returned when an appointment is past the point in
// its lifecycle where moving it makes sense.
var ErrNotReschedulable = errors.New("appointment can no longer be rescheduled")

// Service is the booking transaction manager. It brackets the conflict check
// and the write in a per-resource exclusive section so two concurrent
// requests for the same resource and time cannot both succeed, and keeps the
// in-memory calendar and the persisted rows in agreement.
type Service struct {
	repo     Repository
	cat      catalog.Catalog
	checker  *Checker
	cal      *calendar.Calendar
	locker   lock.Locker
	sink     events.Sink
	log      *zap.Logger
	now      func() time.Time
	lockWait func(time.Duration)
}

func NewService(repo Repository, cat catalog.Catalog, cal *calendar.Calendar, locker lock.Locker, sink events.Sink, log *zap.Logger, horizon time.Duration) *Service {
	return &Service{
		repo:    repo,
		cat:     cat,
		checker: NewChecker(cat, cal, horizon, nil),
		cal:     cal,
		locker:  locker,
		sink:    sink,
		log:     log,
		now:     time.Now,
	}
}

// ObserveLockWait registers fn to receive the time spent entering resource
// exclusive sections, timed-out attempts included. Feeds the lock wait
// histogram.
func (s *Service) ObserveLockWait(fn func(time.Duration)) {
	s.lockWait = fn
}

// Book reserves the requested resources for the interval and persists a new
// Scheduled appointment. On contention exactly one of the competing requests
// commits; the rest receive a ConflictError.
func (s *Service) Book(ctx context.Context, req Request) (*Appointment, error) {
	if req.ClinicID == uuid.Nil {
		return nil, &ValidationError{Field: "clinic_id", Detail: "required"}
	}
	if req.PatientID == uuid.Nil {
		return nil, &ValidationError{Field: "patient_id", Detail: "required"}
	}

	iv, err := s.checker.DefaultInterval(ctx, req)
	if err != nil {
		return nil, err
	}
	req.Interval = iv

	var created *Appointment
	commit := func(ctx context.Context) error {
		if err := s.checker.Check(ctx, req, uuid.Nil); err != nil {
			return err
		}

		now := s.now()
		appt := &Appointment{
			ID:        uuid.New(),
			ClinicID:  req.ClinicID,
			PatientID: req.PatientID,
			DoctorID:  req.DoctorID,
			RoomID:    req.RoomID,
			ServiceID: req.ServiceID,
			Interval:  req.Interval,
			Status:    StatusScheduled,
			CreatedBy: req.CreatedBy,
			Notes:     req.Notes,
			CreatedAt: now,
			UpdatedAt: now,
		}

		keys := appt.ResourceKeys()
		for _, key := range keys {
			s.cal.Insert(key, appt.Interval, appt.ID)
		}

		if err := s.repo.PersistAppointment(ctx, appt); err != nil {
			// The store did not take the row; undo the calendar entries so
			// both layers still agree.
			for _, key := range keys {
				s.cal.Remove(key, appt.ID)
			}
			return &InfrastructureError{Op: "persist appointment", Err: err}
		}

		created = appt
		return nil
	}

	if err := s.withLocks(ctx, req.resourceKeys(), commit); err != nil {
		return nil, err
	}

	s.emit(ctx, events.TypeCreated, created.ID, created.ClinicID)
	return created, nil
}

// Reschedule moves an appointment to a new interval under the same locking
// protocol as Book. The appointment's own current interval is excluded from
// overlap consideration so it never conflicts with itself.
func (s *Service) Reschedule(ctx context.Context, id uuid.UUID, newInterval calendar.Interval) (*Appointment, error) {
	appt, err := s.repo.GetAppointmentByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if !Reschedulable(appt.Status) {
		return nil, ErrNotReschedulable
	}

	var updated *Appointment
	commit := func(ctx context.Context) error {
		// The row was read before the lock was held; a cancel may have won
		// the race for the section. Re-validate on a fresh read.
		current, err := s.repo.GetAppointmentByID(ctx, id)
		if err != nil {
			return err
		}
		if !Reschedulable(current.Status) {
			return ErrNotReschedulable
		}

		req := Request{
			ClinicID:  current.ClinicID,
			PatientID: current.PatientID,
			DoctorID:  current.DoctorID,
			RoomID:    current.RoomID,
			ServiceID: current.ServiceID,
			Interval:  newInterval,
		}
		if err := s.checker.Check(ctx, req, current.ID); err != nil {
			return err
		}

		keys := current.ResourceKeys()
		oldInterval := current.Interval
		for _, key := range keys {
			s.cal.Remove(key, current.ID)
			s.cal.Insert(key, newInterval, current.ID)
		}

		row, err := s.repo.UpdateInterval(ctx, current.ID, newInterval)
		if err != nil {
			for _, key := range keys {
				s.cal.Remove(key, current.ID)
				s.cal.Insert(key, oldInterval, current.ID)
			}
			if errors.Is(err, ErrAppointmentNotFound) {
				// The compare-and-set missed: the status left the
				// reschedulable states after our read.
				return ErrNotReschedulable
			}
			return &InfrastructureError{Op: "update interval", Err: err}
		}

		updated = row
		return nil
	}

	if err := s.withLocks(ctx, appt.ResourceKeys(), commit); err != nil {
		return nil, err
	}

	s.emit(ctx, events.TypeRescheduled, updated.ID, updated.ClinicID)
	return updated, nil
}

// Cancel soft-cancels an appointment and frees its calendar intervals.
// Cancelling an already-cancelled appointment is a no-op success.
func (s *Service) Cancel(ctx context.Context, id uuid.UUID) (*Appointment, error) {
	appt, err := s.repo.GetAppointmentByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if appt.Status == StatusCancelled {
		return appt, nil
	}
	if !CanTransition(appt.Status, StatusCancelled) {
		return nil, &InvalidTransitionError{From: appt.Status, To: StatusCancelled}
	}

	var cancelled *Appointment
	err = s.withLocks(ctx, appt.ResourceKeys(), func(ctx context.Context) error {
		row, err := s.cancelLocked(ctx, appt)
		if err != nil {
			return err
		}
		cancelled = row
		return nil
	})
	if err != nil {
		return nil, err
	}
	return cancelled, nil
}

// cancelLocked performs the compare-and-set to Cancelled, frees the calendar
// entries, and emits the event. Callers hold the exclusive section serializing
// the appointment's slot. The compare-and-set is retried against a re-read
// status so losing a race to a concurrent check-in does not spuriously fail
// the cancel.
func (s *Service) cancelLocked(ctx context.Context, appt *Appointment) (*Appointment, error) {
	from := appt.Status
	for attempt := 0; attempt < 3; attempt++ {
		row, err := s.repo.UpdateStatus(ctx, appt.ID, from, StatusCancelled)
		if err == nil {
			for _, key := range appt.ResourceKeys() {
				s.cal.Remove(key, appt.ID)
			}
			s.emit(ctx, events.TypeCancelled, row.ID, row.ClinicID)
			return row, nil
		}
		if !errors.Is(err, ErrAppointmentNotFound) {
			return nil, &InfrastructureError{Op: "update status", Err: err}
		}

		current, getErr := s.repo.GetAppointmentByID(ctx, appt.ID)
		if getErr != nil {
			return nil, getErr
		}
		if current.Status == StatusCancelled {
			return current, nil
		}
		if !CanTransition(current.Status, StatusCancelled) {
			return nil, &InvalidTransitionError{From: current.Status, To: StatusCancelled}
		}
		from = current.Status
	}
	return nil, &InfrastructureError{Op: "cancel appointment", Err: errors.New("status changed on every attempt")}
}

// UpdateStatus applies one explicit lifecycle transition. Transitions to
// Cancelled go through Cancel so the calendars are freed as well.
func (s *Service) UpdateStatus(ctx context.Context, id uuid.UUID, to Status) (*Appointment, error) {
	if !ValidStatus(to) {
		return nil, &ValidationError{Field: "status", Detail: fmt.Sprintf("unknown status %q", to)}
	}
	if to == StatusCancelled {
		return s.Cancel(ctx, id)
	}

	appt, err := s.repo.GetAppointmentByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if !CanTransition(appt.Status, to) {
		return nil, &InvalidTransitionError{From: appt.Status, To: to}
	}

	row, err := s.repo.UpdateStatus(ctx, appt.ID, appt.Status, to)
	if err != nil {
		if errors.Is(err, ErrAppointmentNotFound) {
			return nil, &InvalidTransitionError{From: appt.Status, To: to}
		}
		return nil, &InfrastructureError{Op: "update status", Err: err}
	}

	s.emit(ctx, events.TypeStatusChanged, row.ID, row.ClinicID)
	return row, nil
}

// GetAppointment loads one appointment by id.
func (s *Service) GetAppointment(ctx context.Context, id uuid.UUID) (*Appointment, error) {
	return s.repo.GetAppointmentByID(ctx, id)
}

// LoadClinic rebuilds the clinic's resource calendars from persisted state.
// Called once on startup and after a clinic is reassigned to this instance.
func (s *Service) LoadClinic(ctx context.Context, clinicID uuid.UUID) error {
	appts, err := s.repo.LoadActiveAppointments(ctx, clinicID)
	if err != nil {
		return &InfrastructureError{Op: "load active appointments", Err: err}
	}

	grouped := make(map[calendar.Key][]calendar.Entry)
	for _, appt := range appts {
		for _, key := range appt.ResourceKeys() {
			grouped[key] = append(grouped[key], calendar.Entry{
				AppointmentID: appt.ID,
				Interval:      appt.Interval,
			})
		}
	}
	for key, entries := range grouped {
		s.cal.ReplaceAll(key, entries)
	}

	s.log.Info("clinic calendars loaded",
		zap.String("clinic_id", clinicID.String()),
		zap.Int("appointments", len(appts)),
		zap.Int("resources", len(grouped)),
	)
	return nil
}

// DeactivateResource cancels every active appointment on a doctor or room in
// start order and drops its calendar index. This is the explicit replacement
// for schema-level cascades: the core orders the cleanup itself. The whole
// sweep runs inside the resource's exclusive section so no booking can slip
// in between the snapshot and the drop.
func (s *Service) DeactivateResource(ctx context.Context, key calendar.Key) error {
	err := s.withLocks(ctx, []calendar.Key{key}, func(ctx context.Context) error {
		for _, entry := range s.cal.Entries(key) {
			appt, err := s.repo.GetAppointmentByID(ctx, entry.AppointmentID)
			if err != nil {
				return fmt.Errorf("load appointment %s: %w", entry.AppointmentID, err)
			}
			if appt.Status == StatusCancelled {
				continue
			}
			if _, err := s.cancelLocked(ctx, appt); err != nil {
				return fmt.Errorf("cancel appointment %s: %w", appt.ID, err)
			}
		}
		s.cal.Drop(key)
		return nil
	})
	if err != nil {
		return err
	}

	s.log.Info("resource deactivated",
		zap.String("resource", key.String()),
	)
	return nil
}

// withLocks runs fn inside the exclusive sections for keys. Requests that
// touch no resource (pure phone consultations) skip locking entirely.
func (s *Service) withLocks(ctx context.Context, keys []calendar.Key, fn func(ctx context.Context) error) error {
	if len(keys) == 0 {
		return fn(ctx)
	}
	start := time.Now()
	err := s.locker.WithResourceLocks(ctx, keys, func(ctx context.Context) error {
		if s.lockWait != nil {
			s.lockWait(time.Since(start))
		}
		return fn(ctx)
	})
	if errors.Is(err, lock.ErrLockTimeout) {
		if s.lockWait != nil {
			s.lockWait(time.Since(start))
		}
		return &InfrastructureError{Op: "acquire resource locks", Err: err}
	}
	return err
}

func (s *Service) emit(ctx context.Context, t events.Type, appointmentID, clinicID uuid.UUID) {
	if err := s.sink.Publish(ctx, events.New(t, appointmentID, clinicID)); err != nil {
		s.log.Warn("event publish failed",
			zap.String("event_type", string(t)),
			zap.String("appointment_id", appointmentID.String()),
			zap.Error(err),
		)
	}
}
