package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/hackgods/doctor-booking/internal/config"
	"github.com/hackgods/doctor-booking/internal/db"
	"github.com/hackgods/doctor-booking/internal/logging"
)

func main() {
	var simCfg SimConfig

	rootCmd := &cobra.Command{
		Use:          "simulate",
		Short:        "Drive booking traffic against a running api-server",
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return run(cmd.Context(), simCfg)
		},
	}

	f := rootCmd.Flags()
	f.StringVar(&simCfg.APIBaseURL, "api", getEnv("SIM_API_BASE_URL", "http://localhost:8080"), "API base URL")
	f.DurationVar(&simCfg.Duration, "duration", getDuration("SIM_DURATION", 30*time.Second), "How long to run")
	f.IntVar(&simCfg.Workers, "workers", getInt("SIM_WORKERS", 10), "Concurrent workers")
	f.Float64Var(&simCfg.BookingRatio, "booking-ratio", getFloat("SIM_BOOKING_RATIO", 0.4), "Relative weight of bookings")
	f.Float64Var(&simCfg.PaymentRatio, "payment-ratio", getFloat("SIM_PAYMENT_RATIO", 0.2), "Relative weight of payments")
	f.Float64Var(&simCfg.DecisionRatio, "decision-ratio", getFloat("SIM_DECISION_RATIO", 0.1), "Relative weight of doctor decisions")
	f.Float64Var(&simCfg.ReadRatio, "read-ratio", getFloat("SIM_READ_RATIO", 0.3), "Relative weight of reads, deletes and refunds")
	f.Float64Var(&simCfg.FailureRate, "payment-failure-rate", getFloat("SIM_PAYMENT_FAILURE_RATE", 0.1), "Share of payments reported as failed")
	f.IntVar(&simCfg.DaysAhead, "days-ahead", getInt("SIM_DAYS_AHEAD", 14), "Book dates up to this many days out")
	f.IntVar(&simCfg.PatientLimit, "patient-limit", getInt("SIM_PATIENT_LIMIT", 4000), "Patients to load")
	f.IntVar(&simCfg.DoctorLimit, "doctor-limit", getInt("SIM_DOCTOR_LIMIT", 100), "Doctors to load")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		stop()
		os.Exit(1)
	}
}

func run(ctx context.Context, simCfg SimConfig) error {
	if err := simCfg.validate(); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	simCfg.normalize()

	baseCfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load base config: %w", err)
	}
	logger := logging.New("simulate", baseCfg.Env, baseCfg.LogLevel)

	logger.Info().
		Dur("duration", simCfg.Duration).
		Int("workers", simCfg.Workers).
		Float64("booking", simCfg.BookingRatio).
		Float64("payment", simCfg.PaymentRatio).
		Float64("decision", simCfg.DecisionRatio).
		Float64("read", simCfg.ReadRatio).
		Msg("simulator config")

	// Load data from Postgres
	loadCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	pgPool, err := db.ConnectPostgres(loadCtx, baseCfg)
	if err != nil {
		return fmt.Errorf("connect postgres: %w", err)
	}
	defer pgPool.Close()

	dataPool, err := loadDataPool(loadCtx, pgPool, simCfg)
	if err != nil {
		return fmt.Errorf("load data pool: %w", err)
	}
	logger.Info().Int("patients", len(dataPool.Patients)).Int("doctors", len(dataPool.Doctors)).Msg("data pool loaded")

	sim := &Simulator{
		config: simCfg,
		pool:   dataPool,
		client: &http.Client{Timeout: 10 * time.Second},
		logger: logger,
	}

	sim.Run(ctx)
	sim.metrics.PrintReport(simCfg.Duration, simCfg.Workers)
	return nil
}

// Helper functions

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getDuration(key string, def time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return def
}

func getInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return def
}

func getFloat(key string, def float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return def
}
