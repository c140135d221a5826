package payment

import (
	"time"

	"github.com/google/uuid"
)

type Status string

const (
	StatusCompleted Status = "completed"
	StatusFailed    Status = "failed"
	StatusRefunded  Status = "refunded"
)

// Payment is one gateway transaction recorded against an appointment.
// Refunds are tracked here; the appointment itself never carries a refunded
// state.
type Payment struct {
	ID            uuid.UUID
	AppointmentID uuid.UUID
	Reference     string
	AmountCents   int64
	Currency      string
	Status        Status
	CreatedAt     time.Time
	RefundedAt    *time.Time
}
