package booking

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/careops/clinicbook/internal/calendar"
)

const appointmentColumns = `
	id, clinic_id, patient_id, doctor_id, room_id, service_id,
	scheduled_start, scheduled_end, status, created_by, notes,
	created_at, updated_at`

// querier is the slice of pgxpool.Pool the repository needs; it lets tests
// substitute a mock pool.
type querier interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

type PgRepository struct {
	pool querier
}

func NewPgRepository(pool *pgxpool.Pool) *PgRepository {
	return &PgRepository{pool: pool}
}

func newPgRepositoryWithQuerier(q querier) *PgRepository {
	return &PgRepository{pool: q}
}

func scanAppointment(row pgx.Row) (*Appointment, error) {
	var a Appointment

	err := row.Scan(
		&a.ID,
		&a.ClinicID,
		&a.PatientID,
		&a.DoctorID,
		&a.RoomID,
		&a.ServiceID,
		&a.Interval.Start,
		&a.Interval.End,
		&a.Status,
		&a.CreatedBy,
		&a.Notes,
		&a.CreatedAt,
		&a.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrAppointmentNotFound
		}
		return nil, err
	}

	return &a, nil
}

func (r *PgRepository) GetAppointmentByID(ctx context.Context, id uuid.UUID) (*Appointment, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT `+appointmentColumns+`
		FROM appointments
		WHERE id = $1
	`, id)
	return scanAppointment(row)
}

func (r *PgRepository) LoadActiveAppointments(ctx context.Context, clinicID uuid.UUID) ([]Appointment, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+appointmentColumns+`
		FROM appointments
		WHERE clinic_id = $1
		  AND status <> 'cancelled'
		ORDER BY scheduled_start
	`, clinicID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []Appointment
	for rows.Next() {
		a, err := scanAppointment(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *a)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return result, nil
}

func (r *PgRepository) PersistAppointment(ctx context.Context, appt *Appointment) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO appointments (
			id, clinic_id, patient_id, doctor_id, room_id, service_id,
			scheduled_start, scheduled_end, status, created_by, notes,
			created_at, updated_at
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
	`,
		appt.ID, appt.ClinicID, appt.PatientID, appt.DoctorID, appt.RoomID, appt.ServiceID,
		appt.Interval.Start, appt.Interval.End, appt.Status, appt.CreatedBy, appt.Notes,
		appt.CreatedAt, appt.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert appointment: %w", err)
	}
	return nil
}

func (r *PgRepository) UpdateStatus(ctx context.Context, id uuid.UUID, from, to Status) (*Appointment, error) {
	row := r.pool.QueryRow(ctx, `
		UPDATE appointments
		SET status = $2,
		    updated_at = now()
		WHERE id = $1
		  AND status = $3
		RETURNING `+appointmentColumns+`
	`, id, to, from)
	return scanAppointment(row)
}

// UpdateInterval moves the appointment, guarded on the reschedulable states so
// a concurrent cancel or completion cannot be silently overwritten. A miss
// surfaces as ErrAppointmentNotFound.
func (r *PgRepository) UpdateInterval(ctx context.Context, id uuid.UUID, iv calendar.Interval) (*Appointment, error) {
	row := r.pool.QueryRow(ctx, `
		UPDATE appointments
		SET scheduled_start = $2,
		    scheduled_end = $3,
		    updated_at = now()
		WHERE id = $1
		  AND status IN ('scheduled', 'checked_in')
		RETURNING `+appointmentColumns+`
	`, id, iv.Start, iv.End)
	return scanAppointment(row)
}
