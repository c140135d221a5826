// Package app wires configuration into the running services shared by the
// api-server and refund-worker binaries.
package app

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/hackgods/doctor-booking/internal/api"
	"github.com/hackgods/doctor-booking/internal/appointment"
	"github.com/hackgods/doctor-booking/internal/config"
	"github.com/hackgods/doctor-booking/internal/db"
	"github.com/hackgods/doctor-booking/internal/doctor"
	"github.com/hackgods/doctor-booking/internal/events"
	"github.com/hackgods/doctor-booking/internal/payment"
	redisclient "github.com/hackgods/doctor-booking/internal/redis"
)

type App struct {
	Config       config.Config
	Logger       zerolog.Logger
	PgPool       *pgxpool.Pool
	Redis        *redis.Client
	Doctors      *doctor.Service
	Appointments *appointment.Service

	closers []func() error
}

// New connects Postgres and Redis, optionally migrates, and builds the
// services. Call Close when done.
func New(ctx context.Context, cfg config.Config, logger zerolog.Logger) (*App, error) {
	a := &App{Config: cfg, Logger: logger}

	// Connect Postgres
	pgCtx, cancelPg := context.WithTimeout(ctx, 10*time.Second)
	pgPool, err := db.ConnectPostgres(pgCtx, cfg)
	cancelPg()
	if err != nil {
		return nil, fmt.Errorf("postgres connection: %w", err)
	}
	a.PgPool = pgPool
	a.closers = append(a.closers, func() error { pgPool.Close(); return nil })
	logger.Info().Msg("connected to Postgres")

	if cfg.MigrateOnStart {
		if err := db.Migrate(pgPool, logger); err != nil {
			_ = a.Close()
			return nil, err
		}
	}

	// Connect Redis
	rdb, err := redisclient.NewRedisClient(ctx, cfg.RedisAddr, cfg.RedisUsername, cfg.RedisPassword)
	if err != nil {
		_ = a.Close()
		return nil, fmt.Errorf("redis connection: %w", err)
	}
	a.Redis = rdb
	a.closers = append(a.closers, rdb.Close)
	logger.Info().Str("addr", cfg.RedisAddr).Msg("connected to Redis")

	kafkaSink, closeKafka := events.NewKafkaSink(cfg.KafkaBrokers, cfg.KafkaTopic, logger)
	a.closers = append(a.closers, closeKafka)

	doctorRepo := doctor.NewPgRepository(pgPool)
	cache := redisclient.NewRedisSlotCache(rdb, cfg.SlotCacheTTL)
	a.Doctors = doctor.NewService(doctorRepo, cache, logger.With().Str("component", "doctor").Logger())

	apptRepo := appointment.NewPgRepository(pgPool)
	a.Appointments = appointment.NewService(
		apptRepo,
		a.Doctors,
		redisclient.NewRedisSlotLocker(rdb, cfg.LockTTL),
		payment.NewPgLedger(pgPool),
		payment.NewGateway(cfg.StripeSecretKey, logger),
		events.Multi(apptRepo, kafkaSink),
		cfg,
		logger.With().Str("component", "appointment").Logger(),
	)

	return a, nil
}

// HealthChecks lists the readiness probes for every backing service.
func (a *App) HealthChecks() []api.DependencyCheck {
	checks := []api.DependencyCheck{
		{Name: "postgres", Critical: true, Ping: a.PgPool.Ping},
		{Name: "redis", Critical: true, Ping: func(ctx context.Context) error { return a.Redis.Ping(ctx).Err() }},
	}
	if a.Config.KafkaBrokers != "" {
		checks = append(checks, api.DependencyCheck{Name: "kafka", Ping: events.KafkaPing(a.Config.KafkaBrokers)})
	}
	return checks
}

// Close releases connections in reverse order of acquisition.
func (a *App) Close() error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
