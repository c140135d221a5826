package doctor

import (
	"context"
	"errors"

	"github.com/google/uuid"

	"github.com/hackgods/doctor-booking/internal/availability"
)

var ErrDoctorNotFound = errors.New("doctor not found")

// Repository persists doctors and their stored weekly schedules.
type Repository interface {
	GetDoctorByID(ctx context.Context, id uuid.UUID) (*Doctor, error)

	// ReplaceAvailability overwrites the whole stored schedule.
	ReplaceAvailability(ctx context.Context, id uuid.UUID, days []availability.StoredDay) error
}
