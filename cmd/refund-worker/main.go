package main

import (
	"context"
	"os/signal"
	"syscall"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"

	"github.com/hackgods/doctor-booking/internal/app"
	"github.com/hackgods/doctor-booking/internal/appointment"
	"github.com/hackgods/doctor-booking/internal/config"
	"github.com/hackgods/doctor-booking/internal/logging"
)

const batchSize = 100

func main() {
	cfg, err := config.Load()
	if err != nil {
		bootLogger := logging.New("refund-worker", "dev", "info")
		bootLogger.Fatal().Err(err).Msg("config load error")
	}

	logger := logging.New("refund-worker", cfg.Env, cfg.LogLevel)
	logger.Info().Str("env", cfg.Env).Str("schedule", cfg.RefundSchedule).Msg("refund worker starting up")

	rootCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	a, err := app.New(rootCtx, cfg, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("startup failed")
	}
	defer func() {
		if err := a.Close(); err != nil {
			logger.Error().Err(err).Msg("error closing connections")
		}
	}()

	// Run once at startup
	runOnce(rootCtx, a.Appointments, logger)

	c := cron.New(
		cron.WithLocation(cfg.Location),
		cron.WithChain(cron.Recover(cron.DefaultLogger), cron.SkipIfStillRunning(cron.DefaultLogger)),
	)
	if _, err := c.AddFunc(cfg.RefundSchedule, func() { runOnce(rootCtx, a.Appointments, logger) }); err != nil {
		logger.Fatal().Err(err).Str("schedule", cfg.RefundSchedule).Msg("invalid REFUND_SCHEDULE")
	}
	c.Start()

	<-rootCtx.Done()
	logger.Info().Msg("shutdown signal received, stopping refund worker")

	// Wait for an in-flight sweep to finish.
	<-c.Stop().Done()
	logger.Info().Msg("refund worker stopped")
}

// runOnce drains every eligible appointment in batches.
func runOnce(ctx context.Context, svc *appointment.Service, logger zerolog.Logger) {
	runCtx, cancel := context.WithTimeout(ctx, 5*time.Minute)
	defer cancel()

	start := time.Now()
	var total appointment.RefundSweepResult

	var cursor appointment.SweepCursor
	for {
		res, err := svc.RefundEligible(runCtx, cursor, batchSize)
		total.Scanned += res.Scanned
		total.Refunded += res.Refunded
		total.Failed += res.Failed
		if err != nil {
			logger.Error().Err(err).Msg("refund run error")
			break
		}
		// Failed rows stay eligible and are picked up again on the next run.
		if res.Scanned < batchSize {
			break
		}
		cursor = res.Next
	}

	logger.Info().
		Int("scanned", total.Scanned).
		Int("refunded", total.Refunded).
		Int("failed", total.Failed).
		Dur("duration", time.Since(start)).
		Msg("refund run complete")
}
