package doctor

import (
	"time"

	"github.com/google/uuid"

	"github.com/hackgods/doctor-booking/internal/availability"
)

type Doctor struct {
	ID           uuid.UUID
	Name         string
	Specialty    *string
	Availability []availability.StoredDay
	CreatedAt    time.Time
	UpdatedAt    time.Time
}
