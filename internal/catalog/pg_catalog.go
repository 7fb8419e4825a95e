package catalog

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type PgCatalog struct {
	pool *pgxpool.Pool
}

func NewPgCatalog(pool *pgxpool.Pool) *PgCatalog {
	return &PgCatalog{pool: pool}
}

func (c *PgCatalog) GetClinic(ctx context.Context, id uuid.UUID) (*Clinic, error) {
	row := c.pool.QueryRow(ctx, `
		SELECT id, name, city, timezone, created_at, updated_at
		FROM clinics
		WHERE id = $1
	`, id)

	var cl Clinic
	err := row.Scan(&cl.ID, &cl.Name, &cl.City, &cl.Timezone, &cl.CreatedAt, &cl.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrClinicNotFound
		}
		return nil, err
	}
	return &cl, nil
}

func (c *PgCatalog) GetDoctor(ctx context.Context, id uuid.UUID) (*Doctor, error) {
	row := c.pool.QueryRow(ctx, `
		SELECT id, clinic_id, name, specialty, active, created_at, updated_at
		FROM doctors
		WHERE id = $1
	`, id)

	var d Doctor
	err := row.Scan(&d.ID, &d.ClinicID, &d.Name, &d.Specialty, &d.Active, &d.CreatedAt, &d.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrDoctorNotFound
		}
		return nil, err
	}
	return &d, nil
}

func (c *PgCatalog) GetRoom(ctx context.Context, id uuid.UUID) (*Room, error) {
	row := c.pool.QueryRow(ctx, `
		SELECT id, clinic_id, name, active, created_at, updated_at
		FROM rooms
		WHERE id = $1
	`, id)

	var r Room
	err := row.Scan(&r.ID, &r.ClinicID, &r.Name, &r.Active, &r.CreatedAt, &r.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrRoomNotFound
		}
		return nil, err
	}
	return &r, nil
}

func (c *PgCatalog) GetService(ctx context.Context, id uuid.UUID) (*Service, error) {
	row := c.pool.QueryRow(ctx, `
		SELECT id, name, default_duration_minutes, created_at, updated_at
		FROM services
		WHERE id = $1
	`, id)

	var s Service
	var minutes int
	err := row.Scan(&s.ID, &s.Name, &minutes, &s.CreatedAt, &s.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrServiceNotFound
		}
		return nil, err
	}
	s.DefaultDuration = time.Duration(minutes) * time.Minute
	return &s, nil
}

func (c *PgCatalog) GetDoctorService(ctx context.Context, doctorID, serviceID uuid.UUID) (*DoctorService, error) {
	row := c.pool.QueryRow(ctx, `
		SELECT doctor_id, service_id, duration_minutes
		FROM doctor_services
		WHERE doctor_id = $1 AND service_id = $2
	`, doctorID, serviceID)

	var ds DoctorService
	var minutes *int
	err := row.Scan(&ds.DoctorID, &ds.ServiceID, &minutes)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrServiceNotOffered
		}
		return nil, err
	}
	if minutes != nil {
		d := time.Duration(*minutes) * time.Minute
		ds.Duration = &d
	}
	return &ds, nil
}
