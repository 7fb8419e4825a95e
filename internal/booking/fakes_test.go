package booking

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/careops/clinicbook/internal/calendar"
	"github.com/careops/clinicbook/internal/catalog"
	"github.com/careops/clinicbook/internal/events"
	"github.com/careops/clinicbook/internal/lock"
)

type memCatalog struct {
	clinics  map[uuid.UUID]*catalog.Clinic
	doctors  map[uuid.UUID]*catalog.Doctor
	rooms    map[uuid.UUID]*catalog.Room
	services map[uuid.UUID]*catalog.Service
	offers   map[[2]uuid.UUID]*catalog.DoctorService
}

func newMemCatalog() *memCatalog {
	return &memCatalog{
		clinics:  make(map[uuid.UUID]*catalog.Clinic),
		doctors:  make(map[uuid.UUID]*catalog.Doctor),
		rooms:    make(map[uuid.UUID]*catalog.Room),
		services: make(map[uuid.UUID]*catalog.Service),
		offers:   make(map[[2]uuid.UUID]*catalog.DoctorService),
	}
}

func (m *memCatalog) GetClinic(_ context.Context, id uuid.UUID) (*catalog.Clinic, error) {
	if c, ok := m.clinics[id]; ok {
		return c, nil
	}
	return nil, catalog.ErrClinicNotFound
}

func (m *memCatalog) GetDoctor(_ context.Context, id uuid.UUID) (*catalog.Doctor, error) {
	if d, ok := m.doctors[id]; ok {
		return d, nil
	}
	return nil, catalog.ErrDoctorNotFound
}

func (m *memCatalog) GetRoom(_ context.Context, id uuid.UUID) (*catalog.Room, error) {
	if r, ok := m.rooms[id]; ok {
		return r, nil
	}
	return nil, catalog.ErrRoomNotFound
}

func (m *memCatalog) GetService(_ context.Context, id uuid.UUID) (*catalog.Service, error) {
	if s, ok := m.services[id]; ok {
		return s, nil
	}
	return nil, catalog.ErrServiceNotFound
}

func (m *memCatalog) GetDoctorService(_ context.Context, doctorID, serviceID uuid.UUID) (*catalog.DoctorService, error) {
	if ds, ok := m.offers[[2]uuid.UUID{doctorID, serviceID}]; ok {
		return ds, nil
	}
	return nil, catalog.ErrServiceNotOffered
}

type memRepo struct {
	mu         sync.Mutex
	appts      map[uuid.UUID]Appointment
	persistErr error

	// beforeUpdateStatus, when set, runs ahead of every compare-and-set so
	// tests can interleave a concurrent status change.
	beforeUpdateStatus func()
}

func newMemRepo() *memRepo {
	return &memRepo{appts: make(map[uuid.UUID]Appointment)}
}

func (m *memRepo) LoadActiveAppointments(_ context.Context, clinicID uuid.UUID) ([]Appointment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []Appointment
	for _, a := range m.appts {
		if a.ClinicID == clinicID && a.Active() {
			out = append(out, a)
		}
	}
	return out, nil
}

func (m *memRepo) GetAppointmentByID(_ context.Context, id uuid.UUID) (*Appointment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.appts[id]
	if !ok {
		return nil, ErrAppointmentNotFound
	}
	return &a, nil
}

func (m *memRepo) PersistAppointment(_ context.Context, appt *Appointment) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.persistErr != nil {
		return m.persistErr
	}
	m.appts[appt.ID] = *appt
	return nil
}

func (m *memRepo) UpdateStatus(_ context.Context, id uuid.UUID, from, to Status) (*Appointment, error) {
	if m.beforeUpdateStatus != nil {
		m.beforeUpdateStatus()
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.appts[id]
	if !ok || a.Status != from {
		return nil, ErrAppointmentNotFound
	}
	a.Status = to
	a.UpdatedAt = time.Now()
	m.appts[id] = a
	return &a, nil
}

func (m *memRepo) UpdateInterval(_ context.Context, id uuid.UUID, iv calendar.Interval) (*Appointment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.appts[id]
	if !ok || !Reschedulable(a.Status) {
		return nil, ErrAppointmentNotFound
	}
	a.Interval = iv
	a.UpdatedAt = time.Now()
	m.appts[id] = a
	return &a, nil
}

func (m *memRepo) setStatus(id uuid.UUID, st Status) {
	m.mu.Lock()
	defer m.mu.Unlock()
	a := m.appts[id]
	a.Status = st
	m.appts[id] = a
}

type recordSink struct {
	mu     sync.Mutex
	events []events.Event
}

func (s *recordSink) Publish(_ context.Context, ev events.Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, ev)
	return nil
}

func (s *recordSink) byType(t events.Type) []events.Event {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []events.Event
	for _, ev := range s.events {
		if ev.Type == t {
			out = append(out, ev)
		}
	}
	return out
}

type fixture struct {
	svc  *Service
	repo *memRepo
	cat  *memCatalog
	cal  *calendar.Calendar
	sink *recordSink

	clinicID  uuid.UUID
	patientID uuid.UUID
	doctorID  uuid.UUID
	roomID    uuid.UUID
	serviceID uuid.UUID
	userID    uuid.UUID

	base time.Time
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	f := &fixture{
		repo:      newMemRepo(),
		cat:       newMemCatalog(),
		cal:       calendar.New(),
		sink:      &recordSink{},
		clinicID:  uuid.New(),
		patientID: uuid.New(),
		doctorID:  uuid.New(),
		roomID:    uuid.New(),
		serviceID: uuid.New(),
		userID:    uuid.New(),
		base:      time.Now().Add(time.Hour).Truncate(time.Minute),
	}

	f.cat.clinics[f.clinicID] = &catalog.Clinic{ID: f.clinicID, Name: "Main Street Clinic", Timezone: "UTC"}
	f.cat.doctors[f.doctorID] = &catalog.Doctor{ID: f.doctorID, ClinicID: f.clinicID, Name: "Dr. Alvarez", Active: true}
	f.cat.rooms[f.roomID] = &catalog.Room{ID: f.roomID, ClinicID: f.clinicID, Name: "Exam 1", Active: true}
	f.cat.services[f.serviceID] = &catalog.Service{ID: f.serviceID, Name: "Consultation", DefaultDuration: 30 * time.Minute}
	f.cat.offers[[2]uuid.UUID{f.doctorID, f.serviceID}] = &catalog.DoctorService{DoctorID: f.doctorID, ServiceID: f.serviceID}

	f.svc = NewService(f.repo, f.cat, f.cal, lock.NewArena(2*time.Second), f.sink, zap.NewNop(), 365*24*time.Hour)
	return f
}

// slot returns a future interval offset in minutes from the fixture's base,
// an hour from now, so horizon and not-in-the-past rules always pass.
func (f *fixture) slot(startMin, endMin int) calendar.Interval {
	return calendar.Interval{
		Start: f.base.Add(time.Duration(startMin) * time.Minute),
		End:   f.base.Add(time.Duration(endMin) * time.Minute),
	}
}

func (f *fixture) doctorRequest(iv calendar.Interval) Request {
	return Request{
		ClinicID:  f.clinicID,
		PatientID: f.patientID,
		DoctorID:  &f.doctorID,
		ServiceID: &f.serviceID,
		Interval:  iv,
		CreatedBy: f.userID,
	}
}
