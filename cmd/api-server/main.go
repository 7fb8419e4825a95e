package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/careops/clinicbook/internal/api"
	"github.com/careops/clinicbook/internal/booking"
	"github.com/careops/clinicbook/internal/calendar"
	"github.com/careops/clinicbook/internal/catalog"
	"github.com/careops/clinicbook/internal/config"
	"github.com/careops/clinicbook/internal/db"
	"github.com/careops/clinicbook/internal/events"
	"github.com/careops/clinicbook/internal/lock"
	"github.com/careops/clinicbook/internal/logger"
	"github.com/careops/clinicbook/internal/metrics"
	redisclient "github.com/careops/clinicbook/internal/redis"
)

const version = "0.3.0"

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config load error: %v", err)
	}

	zl, err := logger.New(cfg.LogLevel, cfg.LogFormat)
	if err != nil {
		log.Fatalf("logger init error: %v", err)
	}
	defer func() { _ = zl.Sync() }()

	zl.Info("api-server starting up",
		zap.String("env", cfg.Env),
		zap.String("http_port", cfg.HTTPPort),
		zap.String("lock_backend", cfg.LockBackend),
	)

	rootCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	pgCtx, cancelPg := context.WithTimeout(rootCtx, 10*time.Second)
	pgPool, err := db.ConnectPostgres(pgCtx, cfg.PostgresDSN)
	cancelPg()
	if err != nil {
		zl.Fatal("postgres connection error", zap.Error(err))
	}
	defer pgPool.Close()
	zl.Info("connected to Postgres")

	var rdb *redis.Client
	var locker lock.Locker
	if cfg.LockBackend == config.LockBackendRedis {
		rdb, err = redisclient.NewRedisClient(rootCtx, cfg.RedisAddr, cfg.RedisUsername, cfg.RedisPassword)
		if err != nil {
			zl.Fatal("redis connection error", zap.Error(err))
		}
		defer func() {
			if err := rdb.Close(); err != nil {
				zl.Warn("error closing redis", zap.Error(err))
			}
		}()
		zl.Info("connected to Redis")
		locker = redisclient.NewResourceLocker(rdb, cfg.LockTTL, cfg.LockWaitTimeout)
	} else {
		locker = lock.NewArena(cfg.LockWaitTimeout)
	}

	sinks := []events.Sink{events.NewPgSink(pgPool)}
	if rdb != nil {
		sinks = append(sinks, events.NewRedisSink(rdb))
	}
	sink := events.NewMultiSink(zl, sinks...)

	cal := calendar.New()
	repo := booking.NewPgRepository(pgPool)
	cat := catalog.NewPgCatalog(pgPool)
	col := metrics.NewCollector("clinicbook")

	svc := booking.NewService(repo, cat, cal, locker, sink, zl, cfg.BookingHorizon)
	svc.ObserveLockWait(func(d time.Duration) {
		col.LockWait.Observe(d.Seconds())
	})

	if err := loadAllClinics(rootCtx, pgPool, svc, zl); err != nil {
		zl.Fatal("calendar load error", zap.Error(err))
	}

	router := api.NewRouter(api.RouterConfig{
		Service:   svc,
		Collector: col,
		Logger:    zl,
		PgPool:    pgPool,
		Redis:     rdb,
		Env:       cfg.Env,
		Version:   version,
	})

	srv := &http.Server{
		Addr:              ":" + cfg.HTTPPort,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		zl.Info("http server listening", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			zl.Fatal("http server error", zap.Error(err))
		}
	}()

	<-rootCtx.Done()
	zl.Info("shutting down api-server")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		zl.Error("graceful shutdown failed", zap.Error(err))
	}
}

// loadAllClinics rebuilds every clinic's calendars from persisted state.
func loadAllClinics(ctx context.Context, pool *pgxpool.Pool, svc *booking.Service, zl *zap.Logger) error {
	rows, err := pool.Query(ctx, `SELECT id FROM clinics`)
	if err != nil {
		return err
	}
	defer rows.Close()

	var ids []uuid.UUID
	for rows.Next() {
		var id uuid.UUID
		if err := rows.Scan(&id); err != nil {
			return err
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return err
	}

	for _, id := range ids {
		if err := svc.LoadClinic(ctx, id); err != nil {
			return err
		}
	}

	zl.Info("clinics loaded", zap.Int("count", len(ids)))
	return nil
}
