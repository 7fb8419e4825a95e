package booking

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/careops/clinicbook/internal/calendar"
	"github.com/careops/clinicbook/internal/catalog"
)

// Checker evaluates whether a booking request can be granted. It is read-only
// over the calendar and the catalog; rules run in a fixed order and fail fast,
// so the first violated rule determines the reported reason.
type Checker struct {
	catalog catalog.Catalog
	cal     *calendar.Calendar
	horizon time.Duration
	now     func() time.Time
}

// NewChecker creates a checker. horizon bounds how far ahead a booking may
// start; now is injectable for tests.
func NewChecker(cat catalog.Catalog, cal *calendar.Calendar, horizon time.Duration, now func() time.Time) *Checker {
	if now == nil {
		now = time.Now
	}
	return &Checker{catalog: cat, cal: cal, horizon: horizon, now: now}
}

// Check validates req against the interval rules, catalog membership, and the
// resource calendars. exclude names an appointment whose own interval must not
// count as a conflict (reschedule); pass uuid.Nil otherwise.
func (c *Checker) Check(ctx context.Context, req Request, exclude uuid.UUID) error {
	if err := c.checkInterval(req); err != nil {
		return err
	}

	if req.DoctorID != nil {
		if err := c.checkDoctor(ctx, req); err != nil {
			return err
		}
	}

	if req.RoomID != nil {
		if err := c.checkRoom(ctx, req); err != nil {
			return err
		}
	}

	if req.DoctorID != nil {
		key := calendar.Key{ClinicID: req.ClinicID, ResourceID: *req.DoctorID, Kind: calendar.KindDoctor}
		if busy := c.cal.OverlappingExcluding(key, req.Interval, exclude); len(busy) > 0 {
			return &ConflictError{
				Reason:   ReasonDoctorUnavailable,
				Detail:   "doctor already booked in this interval",
				BusyWith: busy,
			}
		}
	}

	if req.RoomID != nil {
		key := calendar.Key{ClinicID: req.ClinicID, ResourceID: *req.RoomID, Kind: calendar.KindRoom}
		if busy := c.cal.OverlappingExcluding(key, req.Interval, exclude); len(busy) > 0 {
			return &ConflictError{
				Reason:   ReasonRoomUnavailable,
				Detail:   "room already booked in this interval",
				BusyWith: busy,
			}
		}
	}

	return nil
}

func (c *Checker) checkInterval(req Request) error {
	iv := req.Interval
	if !iv.Valid() {
		return &ConflictError{Reason: ReasonInvalidInterval, Detail: "start must be before end"}
	}
	now := c.now()
	if !req.Backdated && iv.Start.Before(now) {
		return &ConflictError{Reason: ReasonInvalidInterval, Detail: "start is in the past"}
	}
	if c.horizon > 0 && iv.Start.After(now.Add(c.horizon)) {
		return &ConflictError{Reason: ReasonInvalidInterval, Detail: "start is beyond the booking horizon"}
	}
	return nil
}

func (c *Checker) checkDoctor(ctx context.Context, req Request) error {
	doc, err := c.catalog.GetDoctor(ctx, *req.DoctorID)
	if err != nil {
		if errors.Is(err, catalog.ErrDoctorNotFound) {
			return &ValidationError{Field: "doctor_id", Detail: "unknown doctor"}
		}
		return &InfrastructureError{Op: "catalog doctor lookup", Err: err}
	}
	if doc.ClinicID != req.ClinicID {
		return &ConflictError{Reason: ReasonResourceNotInClinic, Detail: "doctor belongs to a different clinic"}
	}
	if !doc.Active {
		return &ConflictError{Reason: ReasonResourceNotInClinic, Detail: "doctor is deactivated"}
	}

	if req.ServiceID != nil {
		_, err := c.catalog.GetDoctorService(ctx, *req.DoctorID, *req.ServiceID)
		if err != nil {
			if errors.Is(err, catalog.ErrServiceNotOffered) {
				return &ConflictError{Reason: ReasonServiceNotOffered, Detail: "doctor does not offer the requested service"}
			}
			return &InfrastructureError{Op: "catalog doctor-service lookup", Err: err}
		}
	}

	return nil
}

func (c *Checker) checkRoom(ctx context.Context, req Request) error {
	room, err := c.catalog.GetRoom(ctx, *req.RoomID)
	if err != nil {
		if errors.Is(err, catalog.ErrRoomNotFound) {
			return &ValidationError{Field: "room_id", Detail: "unknown room"}
		}
		return &InfrastructureError{Op: "catalog room lookup", Err: err}
	}
	if room.ClinicID != req.ClinicID {
		return &ConflictError{Reason: ReasonResourceNotInClinic, Detail: "room belongs to a different clinic"}
	}
	if !room.Active {
		return &ConflictError{Reason: ReasonResourceNotInClinic, Detail: "room is deactivated"}
	}
	return nil
}

// DefaultInterval resolves a request whose end is unset: the end becomes
// start plus the doctor's duration override for the service, falling back to
// the service's default duration.
func (c *Checker) DefaultInterval(ctx context.Context, req Request) (calendar.Interval, error) {
	iv := req.Interval
	if !iv.End.IsZero() {
		return iv, nil
	}
	if req.ServiceID == nil {
		return iv, &ValidationError{Field: "interval", Detail: "end time required when no service is given"}
	}

	svc, err := c.catalog.GetService(ctx, *req.ServiceID)
	if err != nil {
		if errors.Is(err, catalog.ErrServiceNotFound) {
			return iv, &ValidationError{Field: "service_id", Detail: "unknown service"}
		}
		return iv, &InfrastructureError{Op: "catalog service lookup", Err: err}
	}

	duration := svc.DefaultDuration
	if req.DoctorID != nil {
		ds, err := c.catalog.GetDoctorService(ctx, *req.DoctorID, *req.ServiceID)
		if err == nil && ds.Duration != nil {
			duration = *ds.Duration
		} else if err != nil && !errors.Is(err, catalog.ErrServiceNotOffered) {
			return iv, &InfrastructureError{Op: "catalog doctor-service lookup", Err: err}
		}
	}

	if duration <= 0 {
		return iv, fmt.Errorf("service %s has no usable duration", svc.ID)
	}

	iv.End = iv.Start.Add(duration)
	return iv, nil
}
