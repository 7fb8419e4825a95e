package booking

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/careops/clinicbook/internal/calendar"
	"github.com/careops/clinicbook/internal/catalog"
)

func checkerFor(f *fixture) *Checker {
	return NewChecker(f.cat, f.cal, 365*24*time.Hour, nil)
}

func reasonOf(t *testing.T, err error) ConflictReason {
	t.Helper()
	var conflictErr *ConflictError
	require.ErrorAs(t, err, &conflictErr)
	return conflictErr.Reason
}

func TestCheckAcceptsCleanRequest(t *testing.T) {
	f := newFixture(t)
	c := checkerFor(f)

	req := f.doctorRequest(f.slot(0, 30))
	req.RoomID = &f.roomID
	assert.NoError(t, c.Check(context.Background(), req, uuid.Nil))
}

func TestCheckInvalidInterval(t *testing.T) {
	f := newFixture(t)
	c := checkerFor(f)

	req := f.doctorRequest(f.slot(30, 0))
	assert.Equal(t, ReasonInvalidInterval, reasonOf(t, c.Check(context.Background(), req, uuid.Nil)))
}

func TestCheckRejectsPastStart(t *testing.T) {
	f := newFixture(t)
	c := checkerFor(f)

	req := f.doctorRequest(calendar.Interval{
		Start: time.Now().Add(-2 * time.Hour),
		End:   time.Now().Add(-time.Hour),
	})
	assert.Equal(t, ReasonInvalidInterval, reasonOf(t, c.Check(context.Background(), req, uuid.Nil)))

	// The same interval flagged as a backdated record is fine.
	req.Backdated = true
	assert.NoError(t, c.Check(context.Background(), req, uuid.Nil))
}

func TestCheckRejectsBeyondHorizon(t *testing.T) {
	f := newFixture(t)
	c := NewChecker(f.cat, f.cal, 48*time.Hour, nil)

	req := f.doctorRequest(calendar.Interval{
		Start: time.Now().Add(72 * time.Hour),
		End:   time.Now().Add(73 * time.Hour),
	})
	assert.Equal(t, ReasonInvalidInterval, reasonOf(t, c.Check(context.Background(), req, uuid.Nil)))
}

func TestCheckDoctorFromOtherClinic(t *testing.T) {
	f := newFixture(t)
	c := checkerFor(f)

	otherDoctor := uuid.New()
	f.cat.doctors[otherDoctor] = &catalog.Doctor{ID: otherDoctor, ClinicID: uuid.New(), Name: "Dr. Elsewhere", Active: true}

	req := f.doctorRequest(f.slot(0, 30))
	req.DoctorID = &otherDoctor
	req.ServiceID = nil
	assert.Equal(t, ReasonResourceNotInClinic, reasonOf(t, c.Check(context.Background(), req, uuid.Nil)))
}

func TestCheckUnknownDoctorIsValidationError(t *testing.T) {
	f := newFixture(t)
	c := checkerFor(f)

	unknown := uuid.New()
	req := f.doctorRequest(f.slot(0, 30))
	req.DoctorID = &unknown

	var validationErr *ValidationError
	assert.ErrorAs(t, c.Check(context.Background(), req, uuid.Nil), &validationErr)
}

func TestCheckServiceNotOffered(t *testing.T) {
	f := newFixture(t)
	c := checkerFor(f)

	otherService := uuid.New()
	f.cat.services[otherService] = &catalog.Service{ID: otherService, Name: "Surgery", DefaultDuration: time.Hour}

	req := f.doctorRequest(f.slot(0, 30))
	req.ServiceID = &otherService
	assert.Equal(t, ReasonServiceNotOffered, reasonOf(t, c.Check(context.Background(), req, uuid.Nil)))
}

func TestCheckRoomFromOtherClinic(t *testing.T) {
	f := newFixture(t)
	c := checkerFor(f)

	otherRoom := uuid.New()
	f.cat.rooms[otherRoom] = &catalog.Room{ID: otherRoom, ClinicID: uuid.New(), Name: "Elsewhere", Active: true}

	req := Request{
		ClinicID:  f.clinicID,
		PatientID: f.patientID,
		RoomID:    &otherRoom,
		Interval:  f.slot(0, 30),
	}
	assert.Equal(t, ReasonResourceNotInClinic, reasonOf(t, c.Check(context.Background(), req, uuid.Nil)))
}

func TestCheckDoctorBusy(t *testing.T) {
	f := newFixture(t)
	c := checkerFor(f)

	busyWith := uuid.New()
	key := calendar.Key{ClinicID: f.clinicID, ResourceID: f.doctorID, Kind: calendar.KindDoctor}
	f.cal.Insert(key, f.slot(0, 30), busyWith)

	req := f.doctorRequest(f.slot(15, 45))
	err := c.Check(context.Background(), req, uuid.Nil)
	assert.Equal(t, ReasonDoctorUnavailable, reasonOf(t, err))

	var conflictErr *ConflictError
	require.ErrorAs(t, err, &conflictErr)
	assert.Equal(t, []uuid.UUID{busyWith}, conflictErr.BusyWith)
	assert.True(t, conflictErr.Retryable())
}

func TestCheckRoomBusy(t *testing.T) {
	f := newFixture(t)
	c := checkerFor(f)

	key := calendar.Key{ClinicID: f.clinicID, ResourceID: f.roomID, Kind: calendar.KindRoom}
	f.cal.Insert(key, f.slot(0, 30), uuid.New())

	req := Request{
		ClinicID:  f.clinicID,
		PatientID: f.patientID,
		RoomID:    &f.roomID,
		Interval:  f.slot(15, 45),
	}
	assert.Equal(t, ReasonRoomUnavailable, reasonOf(t, c.Check(context.Background(), req, uuid.Nil)))
}

func TestCheckNoResourcesSkipsResourceRules(t *testing.T) {
	f := newFixture(t)
	c := checkerFor(f)

	// Phone consultation: no doctor, no room, nothing to conflict with.
	req := Request{
		ClinicID:  f.clinicID,
		PatientID: f.patientID,
		Interval:  f.slot(0, 30),
	}
	assert.NoError(t, c.Check(context.Background(), req, uuid.Nil))
}

func TestDefaultIntervalFromService(t *testing.T) {
	f := newFixture(t)
	c := checkerFor(f)

	req := f.doctorRequest(calendar.Interval{Start: f.base})
	iv, err := c.DefaultInterval(context.Background(), req)
	require.NoError(t, err)
	assert.Equal(t, f.base.Add(30*time.Minute), iv.End)
}

func TestDefaultIntervalDoctorOverride(t *testing.T) {
	f := newFixture(t)
	c := checkerFor(f)

	override := 45 * time.Minute
	f.cat.offers[[2]uuid.UUID{f.doctorID, f.serviceID}].Duration = &override

	req := f.doctorRequest(calendar.Interval{Start: f.base})
	iv, err := c.DefaultInterval(context.Background(), req)
	require.NoError(t, err)
	assert.Equal(t, f.base.Add(45*time.Minute), iv.End)
}

func TestDefaultIntervalRequiresServiceWhenEndMissing(t *testing.T) {
	f := newFixture(t)
	c := checkerFor(f)

	req := f.doctorRequest(calendar.Interval{Start: f.base})
	req.ServiceID = nil

	var validationErr *ValidationError
	_, err := c.DefaultInterval(context.Background(), req)
	assert.ErrorAs(t, err, &validationErr)
}
