package catalog

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
)

var (
	ErrClinicNotFound    = errors.New("clinic not found")
	ErrDoctorNotFound    = errors.New("doctor not found")
	ErrRoomNotFound      = errors.New("room not found")
	ErrServiceNotFound   = errors.New("service not found")
	ErrServiceNotOffered = errors.New("doctor does not offer this service")
)

type Clinic struct {
	ID        uuid.UUID
	Name      string
	City      *string
	Timezone  string
	CreatedAt time.Time
	UpdatedAt time.Time
}

type Doctor struct {
	ID        uuid.UUID
	ClinicID  uuid.UUID
	Name      string
	Specialty *string
	Active    bool
	CreatedAt time.Time
	UpdatedAt time.Time
}

type Room struct {
	ID        uuid.UUID
	ClinicID  uuid.UUID
	Name      string
	Active    bool
	CreatedAt time.Time
	UpdatedAt time.Time
}

type Service struct {
	ID              uuid.UUID
	Name            string
	DefaultDuration time.Duration
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// DoctorService links a doctor to a service they offer, with an optional
// duration override for computing default appointment length.
type DoctorService struct {
	DoctorID  uuid.UUID
	ServiceID uuid.UUID
	Duration  *time.Duration
}

// Catalog is the read-only lookup collaborator. The booking core never
// mutates catalog entries.
type Catalog interface {
	GetClinic(ctx context.Context, id uuid.UUID) (*Clinic, error)
	GetDoctor(ctx context.Context, id uuid.UUID) (*Doctor, error)
	GetRoom(ctx context.Context, id uuid.UUID) (*Room, error)
	GetService(ctx context.Context, id uuid.UUID) (*Service, error)

	// GetDoctorService returns ErrServiceNotOffered when the doctor does not
	// offer the service.
	GetDoctorService(ctx context.Context, doctorID, serviceID uuid.UUID) (*DoctorService, error)
}
