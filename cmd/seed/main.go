package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/brianvoe/gofakeit/v7"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/hackgods/doctor-booking/internal/availability"
	"github.com/hackgods/doctor-booking/internal/config"
	"github.com/hackgods/doctor-booking/internal/db"
	"github.com/hackgods/doctor-booking/internal/logging"
)

func main() {
	rootCmd := &cobra.Command{
		Use:          "seed",
		Short:        "Populate doctors and patients with fake data",
		SilenceUsage: true,
		RunE:         run,
	}
	rootCmd.Flags().Int("doctors", 100, "Number of doctors to create")
	rootCmd.Flags().Int("patients", 9000, "Number of patients to create")
	rootCmd.Flags().Float64("legacy-share", 0.25, "Fraction of doctors stored with legacy availability records")
	rootCmd.Flags().Bool("migrate", true, "Apply migrations before seeding")

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func run(cmd *cobra.Command, _ []string) error {
	doctors, _ := cmd.Flags().GetInt("doctors")
	patients, _ := cmd.Flags().GetInt("patients")
	legacyShare, _ := cmd.Flags().GetFloat64("legacy-share")
	migrate, _ := cmd.Flags().GetBool("migrate")

	cfg, err := config.Load()
	if err != nil {
		return err
	}
	logger := logging.New("seed", cfg.Env, cfg.LogLevel)

	ctx, cancel := context.WithTimeout(cmd.Context(), 10*time.Second)
	defer cancel()

	pool, err := db.ConnectPostgres(ctx, cfg)
	if err != nil {
		return fmt.Errorf("connect postgres: %w", err)
	}
	defer pool.Close()

	if migrate {
		if err := db.Migrate(pool, logger); err != nil {
			return err
		}
	}

	faker := gofakeit.New(uint64(time.Now().UnixNano()))

	if err := seedDoctors(context.Background(), pool, faker, doctors, legacyShare, logger); err != nil {
		return fmt.Errorf("seed doctors: %w", err)
	}
	if err := seedPatients(context.Background(), pool, faker, patients, logger); err != nil {
		return fmt.Errorf("seed patients: %w", err)
	}

	logger.Info().Msg("seed complete")
	return nil
}

var specialties = []string{
	"Dermatology",
	"Cardiology",
	"General Practice",
	"Orthopedics",
	"Endocrinology",
	"Neurology",
	"Pediatrics",
	"Psychiatry",
	"Ophthalmology",
	"ENT",
}

func seedDoctors(ctx context.Context, pool *pgxpool.Pool, faker *gofakeit.Faker, count int, legacyShare float64, logger zerolog.Logger) error {
	logger.Info().Int("count", count).Msg("seeding doctors")

	tx, err := pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	legacy := 0
	for i := 0; i < count; i++ {
		var days []availability.StoredDay
		if faker.Float64() < legacyShare {
			days = legacySchedule(faker)
			legacy++
		} else {
			days = currentSchedule(faker)
		}

		raw, err := json.Marshal(days)
		if err != nil {
			return err
		}

		_, err = tx.Exec(ctx, `
			INSERT INTO doctors (id, name, specialty, availability, created_at, updated_at)
			VALUES ($1, $2, $3, $4, now(), now())
		`, uuid.New(), "Dr. "+faker.Name(), specialties[faker.Number(0, len(specialties)-1)], raw)
		if err != nil {
			return err
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return err
	}

	logger.Info().Int("count", count).Int("legacy", legacy).Msg("doctors seeded")
	return nil
}

// currentSchedule is a full week as the editor saves it today.
func currentSchedule(faker *gofakeit.Faker) []availability.StoredDay {
	week := availability.DefaultWeek()

	// Some doctors take a weekend day off, some split their weekday.
	if faker.Bool() {
		sat := week[time.Saturday]
		sat.Available = false
		week[time.Saturday] = sat
	}
	sun := week[time.Sunday]
	sun.Available = faker.Number(0, 3) == 0
	week[time.Sunday] = sun

	if faker.Bool() {
		wd := time.Weekday(faker.Number(int(time.Monday), int(time.Friday)))
		week[wd] = availability.DayAvailability{
			Weekday:   wd,
			Available: true,
			Intervals: []availability.Interval{
				{Start: availability.NewClock(8, 0), End: availability.NewClock(12, 0)},
				{Start: availability.NewClock(14, 0), End: availability.NewClock(18, 30)},
			},
		}
	}

	return availability.Denormalize(week)
}

// legacySchedule reproduces records saved before the schedule editor
// changed: abbreviated names, absent day flags, 12-hour times, missing
// weekdays and the odd unparseable slot.
func legacySchedule(faker *gofakeit.Faker) []availability.StoredDay {
	no := false
	days := []availability.StoredDay{
		{Day: "Mon", Slots: []availability.StoredSlot{{StartTime: "9:00 AM", EndTime: "5:00 PM"}}},
		{Day: "tue", Slots: []availability.StoredSlot{{StartTime: "09:00", EndTime: "13:00"}, {StartTime: "soon", EndTime: "later"}}},
		{Day: "Wednesday", DayAvailable: &no, Slots: []availability.StoredSlot{{StartTime: "08:00", EndTime: "17:00"}}},
		{Day: "Thurs", Slots: []availability.StoredSlot{{StartTime: "10:00", EndTime: "16:00"}}},
	}
	// Friday through Sunday are left out for the loader to synthesize.
	faker.ShuffleAnySlice(days)
	return days
}

func seedPatients(ctx context.Context, pool *pgxpool.Pool, faker *gofakeit.Faker, count int, logger zerolog.Logger) error {
	logger.Info().Int("count", count).Msg("seeding patients")

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
			_, err := tx.Exec(ctx, `
				INSERT INTO patients (id, name, email, created_at, updated_at)
				VALUES ($1, $2, $3, now(), now())
			`, uuid.New(), faker.Name(), faker.Email())
			if err != nil {
				_ = tx.Rollback(ctx)
				return err
			}
		}

		if err := tx.Commit(ctx); err != nil {
			return err
		}

		logger.Info().Int("seeded", end).Int("total", count).Msg("patients progress")
	}

	logger.Info().Msg("patients seeded")
	return nil
}
