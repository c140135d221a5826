package doctor

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/hackgods/doctor-booking/internal/availability"
	redisclient "github.com/hackgods/doctor-booking/internal/redis"
)

var (
	// ErrDoctorUnavailable means the doctor marked the requested weekday as
	// closed. An open day with no intervals is not an error; it has no slots.
	ErrDoctorUnavailable   = errors.New("doctor is not available on this day")
	ErrInvalidAvailability = errors.New("invalid availability")
)

type Service struct {
	repo   Repository
	cache  redisclient.SlotCache
	logger zerolog.Logger
}

// NewService builds the doctor service. cache may be nil.
func NewService(repo Repository, cache redisclient.SlotCache, logger zerolog.Logger) *Service {
	return &Service{repo: repo, cache: cache, logger: logger}
}

// GetAvailability loads and normalizes a doctor's weekly schedule.
func (s *Service) GetAvailability(ctx context.Context, doctorID uuid.UUID) (availability.WeeklyAvailability, error) {
	d, err := s.repo.GetDoctorByID(ctx, doctorID)
	if err != nil {
		if errors.Is(err, ErrDoctorNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("load doctor: %w", err)
	}

	week, report := availability.Normalize(d.Availability)
	if report.DroppedSlots > 0 || len(report.UnknownDays) > 0 || len(report.DuplicateDays) > 0 {
		s.logger.Warn().
			Str("doctor_id", doctorID.String()).
			Int("dropped_slots", report.DroppedSlots).
			Strs("unknown_days", report.UnknownDays).
			Strs("duplicate_days", report.DuplicateDays).
			Msg("repaired stored availability")
	}
	if len(report.SynthesizedDays) > 0 {
		s.logger.Debug().
			Str("doctor_id", doctorID.String()).
			Int("synthesized_days", len(report.SynthesizedDays)).
			Msg("filled missing weekdays with defaults")
	}
	return week, nil
}

// SaveAvailability replaces the doctor's schedule wholesale.
func (s *Service) SaveAvailability(ctx context.Context, doctorID uuid.UUID, week availability.WeeklyAvailability) (availability.WeeklyAvailability, error) {
	if err := week.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidAvailability, err)
	}

	stored := availability.Denormalize(week)
	if err := s.repo.ReplaceAvailability(ctx, doctorID, stored); err != nil {
		if errors.Is(err, ErrDoctorNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("save availability: %w", err)
	}

	if s.cache != nil {
		if err := s.cache.Invalidate(ctx, doctorID); err != nil {
			s.logger.Error().Err(err).Str("doctor_id", doctorID.String()).Msg("failed to invalidate slot cache")
		}
	}

	normalized, _ := availability.Normalize(stored)
	return normalized, nil
}

// BookableSlots lists the "HH:MM" slot starts for a doctor on date. It
// returns ErrDoctorUnavailable when the day is closed.
func (s *Service) BookableSlots(ctx context.Context, doctorID uuid.UUID, date time.Time) ([]string, error) {
	dateKey := date.Format(time.DateOnly)

	if s.cache != nil {
		cached, ok, err := s.cache.Get(ctx, doctorID, dateKey)
		if err != nil {
			s.logger.Warn().Err(err).Str("doctor_id", doctorID.String()).Msg("slot cache read failed")
		} else if ok {
			if cached.Closed {
				return nil, ErrDoctorUnavailable
			}
			return cached.Slots, nil
		}
	}

	week, err := s.GetAvailability(ctx, doctorID)
	if err != nil {
		return nil, err
	}

	day := week.Day(date.Weekday())
	slots := availability.Format(availability.Generate(week, date))

	if s.cache != nil {
		entry := redisclient.DaySlots{Closed: !day.Available, Slots: slots}
		if err := s.cache.Set(ctx, doctorID, dateKey, entry); err != nil {
			s.logger.Warn().Err(err).Str("doctor_id", doctorID.String()).Msg("slot cache write failed")
		}
	}

	if !day.Available {
		return nil, ErrDoctorUnavailable
	}
	return slots, nil
}
