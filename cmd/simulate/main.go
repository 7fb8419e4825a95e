package main

import (
	"bytes"
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"log"
	"math/rand"
	"net/http"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/careops/clinicbook/internal/db"
)

// simulate drives concurrent booking traffic against a running api-server and
// reports how contention resolved. Useful for checking that overlapping
// requests for the same doctor produce exactly one success under load.

type dataPool struct {
	clinicID uuid.UUID
	doctors  []uuid.UUID
	patients []uuid.UUID
}

type counters struct {
	success  int64
	conflict int64
	invalid  int64
	errored  int64
}

func main() {
	baseURL := flag.String("url", "http://localhost:8080", "api-server base URL")
	workers := flag.Int("workers", 16, "concurrent workers")
	duration := flag.Duration("duration", 30*time.Second, "how long to run")
	flag.Parse()

	log.SetFlags(log.LstdFlags | log.Lshortfile)

	dsn := os.Getenv("POSTGRES_DSN")
	if dsn == "" {
		log.Fatal("POSTGRES_DSN is required")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	pool, err := db.ConnectPostgres(ctx, dsn)
	cancel()
	if err != nil {
		log.Fatalf("connect postgres: %v", err)
	}
	defer pool.Close()

	dp, err := loadDataPool(context.Background(), pool)
	if err != nil {
		log.Fatalf("load data pool: %v", err)
	}
	log.Printf("loaded %d doctors and %d patients in clinic %s", len(dp.doctors), len(dp.patients), dp.clinicID)

	runCtx, stop := context.WithTimeout(context.Background(), *duration)
	defer stop()

	var c counters
	var wg sync.WaitGroup
	client := &http.Client{Timeout: 10 * time.Second}

	for i := 0; i < *workers; i++ {
		wg.Add(1)
		go func(seed int64) {
			defer wg.Done()
			rng := rand.New(rand.NewSource(seed))
			for runCtx.Err() == nil {
				bookOnce(runCtx, client, *baseURL, dp, rng, &c)
			}
		}(time.Now().UnixNano() + int64(i))
	}

	wg.Wait()

	total := c.success + c.conflict + c.invalid + c.errored
	fmt.Printf("\n--- simulation report ---\n")
	fmt.Printf("total requests: %d\n", total)
	fmt.Printf("booked:         %d\n", c.success)
	fmt.Printf("conflicts:      %d\n", c.conflict)
	fmt.Printf("invalid:        %d\n", c.invalid)
	fmt.Printf("errors:         %d\n", c.errored)
}

func loadDataPool(ctx context.Context, pool *pgxpool.Pool) (*dataPool, error) {
	dp := &dataPool{}

	row := pool.QueryRow(ctx, `SELECT id FROM clinics LIMIT 1`)
	if err := row.Scan(&dp.clinicID); err != nil {
		return nil, fmt.Errorf("load clinic: %w", err)
	}

	rows, err := pool.Query(ctx, `SELECT id FROM doctors WHERE clinic_id = $1 AND active LIMIT 50`, dp.clinicID)
	if err != nil {
		return nil, fmt.Errorf("load doctors: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var id uuid.UUID
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		dp.doctors = append(dp.doctors, id)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	prows, err := pool.Query(ctx, `SELECT id FROM patients WHERE clinic_id = $1 LIMIT 500`, dp.clinicID)
	if err != nil {
		return nil, fmt.Errorf("load patients: %w", err)
	}
	defer prows.Close()
	for prows.Next() {
		var id uuid.UUID
		if err := prows.Scan(&id); err != nil {
			return nil, err
		}
		dp.patients = append(dp.patients, id)
	}
	if err := prows.Err(); err != nil {
		return nil, err
	}

	if len(dp.doctors) == 0 || len(dp.patients) == 0 {
		return nil, fmt.Errorf("empty data pool, run the seed first")
	}
	return dp, nil
}

func bookOnce(ctx context.Context, client *http.Client, baseURL string, dp *dataPool, rng *rand.Rand, c *counters) {
	doctor := dp.doctors[rng.Intn(len(dp.doctors))]
	patient := dp.patients[rng.Intn(len(dp.patients))]

	// Slots on a 15-minute grid within the next 48 hours. A narrow window
	// keeps contention high so conflicts actually happen.
	slot := time.Now().Add(time.Hour).Truncate(15 * time.Minute).
		Add(time.Duration(rng.Intn(192)) * 15 * time.Minute)
	end := slot.Add(30 * time.Minute)

	body, _ := json.Marshal(map[string]any{
		"clinic_id":  dp.clinicID.String(),
		"patient_id": patient.String(),
		"doctor_id":  doctor.String(),
		"start":      slot.Format(time.RFC3339),
		"end":        end.Format(time.RFC3339),
		"created_by": patient.String(),
	})

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, baseURL+"/appointments", bytes.NewReader(body))
	if err != nil {
		atomic.AddInt64(&c.errored, 1)
		return
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := client.Do(req)
	if err != nil {
		if ctx.Err() == nil {
			atomic.AddInt64(&c.errored, 1)
		}
		return
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	_ = resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusCreated:
		atomic.AddInt64(&c.success, 1)
	case resp.StatusCode == http.StatusConflict:
		atomic.AddInt64(&c.conflict, 1)
	case resp.StatusCode == http.StatusBadRequest:
		atomic.AddInt64(&c.invalid, 1)
	default:
		atomic.AddInt64(&c.errored, 1)
	}
}
