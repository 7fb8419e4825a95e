package main

import (
	"context"
	"log"
	"os"
	"time"

	"github.com/brianvoe/gofakeit/v7"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/careops/clinicbook/internal/db"
)

func main() {
	log.SetFlags(log.LstdFlags | log.Lshortfile)
	log.Println("seed starting")

	dsn := os.Getenv("POSTGRES_DSN")
	if dsn == "" {
		log.Fatal("POSTGRES_DSN is required")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	pool, err := db.ConnectPostgres(ctx, dsn)
	if err != nil {
		log.Fatalf("connect postgres: %v", err)
	}
	defer pool.Close()

	gofakeit.Seed(time.Now().UnixNano())

	seedCtx := context.Background()
	clinicIDs, err := seedClinics(seedCtx, pool, 5)
	if err != nil {
		log.Fatalf("seed clinics: %v", err)
	}
	serviceIDs, err := seedServices(seedCtx, pool)
	if err != nil {
		log.Fatalf("seed services: %v", err)
	}
	if err := seedDoctors(seedCtx, pool, clinicIDs, serviceIDs, 20); err != nil {
		log.Fatalf("seed doctors: %v", err)
	}
	if err := seedRooms(seedCtx, pool, clinicIDs, 8); err != nil {
		log.Fatalf("seed rooms: %v", err)
	}
	if err := seedPatients(seedCtx, pool, clinicIDs, 2000); err != nil {
		log.Fatalf("seed patients: %v", err)
	}

	log.Println("seed complete")
}

func seedClinics(ctx context.Context, pool *pgxpool.Pool, count int) ([]uuid.UUID, error) {
	log.Printf("seeding %d clinics", count)

	ids := make([]uuid.UUID, 0, count)
	tx, err := pool.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback(ctx)

	for i := 0; i < count; i++ {
		id := uuid.New()
		_, err := tx.Exec(ctx, `
			INSERT INTO clinics (id, name, city, timezone, created_at, updated_at)
			VALUES ($1, $2, $3, 'UTC', now(), now())
		`, id, gofakeit.Company()+" Clinic", gofakeit.City())
		if err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}
	return ids, nil
}

func seedServices(ctx context.Context, pool *pgxpool.Pool) ([]uuid.UUID, error) {
	services := []struct {
		name    string
		minutes int
	}{
		{"General Consultation", 30},
		{"Follow-up Visit", 15},
		{"Annual Physical", 60},
		{"Vaccination", 15},
		{"Minor Procedure", 45},
		{"Specialist Referral", 30},
	}
	log.Printf("seeding %d services", len(services))

	ids := make([]uuid.UUID, 0, len(services))
	tx, err := pool.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback(ctx)

	for _, s := range services {
		id := uuid.New()
		_, err := tx.Exec(ctx, `
			INSERT INTO services (id, name, default_duration_minutes, created_at, updated_at)
			VALUES ($1, $2, $3, now(), now())
		`, id, s.name, s.minutes)
		if err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}
	return ids, nil
}

func seedDoctors(ctx context.Context, pool *pgxpool.Pool, clinics, services []uuid.UUID, perClinic int) error {
	log.Printf("seeding %d doctors per clinic", perClinic)

	specialties := []string{
		"Dermatology",
		"Cardiology",
		"General Practice",
		"Orthopedics",
		"Endocrinology",
		"Neurology",
		"Pediatrics",
		"Psychiatry",
	}

	tx, err := pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	for _, clinicID := range clinics {
		for i := 0; i < perClinic; i++ {
			id := uuid.New()
			spec := specialties[gofakeit.Number(0, len(specialties)-1)]

			_, err := tx.Exec(ctx, `
				INSERT INTO doctors (id, clinic_id, name, specialty, active, created_at, updated_at)
				VALUES ($1, $2, $3, $4, TRUE, now(), now())
			`, id, clinicID, "Dr. "+gofakeit.Name(), spec)
			if err != nil {
				return err
			}

			// Each doctor offers a random subset of the catalog.
			for _, serviceID := range services {
				if gofakeit.Bool() {
					continue
				}
				_, err := tx.Exec(ctx, `
					INSERT INTO doctor_services (doctor_id, service_id, duration_minutes)
					VALUES ($1, $2, NULL)
				`, id, serviceID)
				if err != nil {
					return err
				}
			}
		}
	}

	return tx.Commit(ctx)
}

func seedRooms(ctx context.Context, pool *pgxpool.Pool, clinics []uuid.UUID, perClinic int) error {
	log.Printf("seeding %d rooms per clinic", perClinic)

	tx, err := pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	for _, clinicID := range clinics {
		for i := 0; i < perClinic; i++ {
			_, err := tx.Exec(ctx, `
				INSERT INTO rooms (id, clinic_id, name, active, created_at, updated_at)
				VALUES ($1, $2, $3, TRUE, now(), now())
			`, uuid.New(), clinicID, gofakeit.Word())
			if err != nil {
				return err
			}
		}
	}

	return tx.Commit(ctx)
}

func seedPatients(ctx context.Context, pool *pgxpool.Pool, clinics []uuid.UUID, count int) error {
	log.Printf("seeding %d patients", count)

	const batchSize = 500

	for offset := 0; offset < count; offset += batchSize {
		end := offset + batchSize
		if end > count {
			end = count
		}

		tx, err := pool.Begin(ctx)
		if err != nil {
			return err
		}

		for i := offset; i < end; i++ {
			clinicID := clinics[gofakeit.Number(0, len(clinics)-1)]
			_, err := tx.Exec(ctx, `
				INSERT INTO patients (id, clinic_id, name, email, phone, created_at, updated_at)
				VALUES ($1, $2, $3, $4, $5, now(), now())
			`, uuid.New(), clinicID, gofakeit.Name(), gofakeit.Email(), gofakeit.Phone())
			if err != nil {
				_ = tx.Rollback(ctx)
				return err
			}
		}

		if err := tx.Commit(ctx); err != nil {
			return err
		}
	}

	log.Println("patients seeded")
	return nil
}
