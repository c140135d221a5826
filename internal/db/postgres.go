package db

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/hackgods/doctor-booking/internal/config"
)

// ConnectPostgres opens the booking database pool and checks it answers.
func ConnectPostgres(ctx context.Context, cfg config.Config) (*pgxpool.Pool, error) {
	poolCfg, err := poolConfig(cfg)
	if err != nil {
		return nil, err
	}

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("create pgx pool: %w", err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if err := pool.Ping(pingCtx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}

	return pool, nil
}

// poolConfig sizes the pool from cfg and pins every session to the booking
// locale, so CURRENT_DATE and now() agree with the service's "today".
func poolConfig(cfg config.Config) (*pgxpool.Config, error) {
	poolCfg, err := pgxpool.ParseConfig(cfg.PostgresDSN)
	if err != nil {
		return nil, fmt.Errorf("parse postgres dsn: %w", err)
	}

	if cfg.PgMaxConns > 0 {
		poolCfg.MaxConns = cfg.PgMaxConns
	}
	poolCfg.MinConns = min(cfg.PgMinConns, poolCfg.MaxConns)
	poolCfg.HealthCheckPeriod = 30 * time.Second
	poolCfg.MaxConnLifetime = time.Hour
	poolCfg.MaxConnIdleTime = 15 * time.Minute

	tz := "UTC"
	if cfg.Location != nil {
		tz = cfg.Location.String()
	}
	poolCfg.ConnConfig.RuntimeParams["timezone"] = tz
	poolCfg.ConnConfig.RuntimeParams["application_name"] = "doctor-booking"

	return poolCfg, nil
}
