package appointment

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/hackgods/doctor-booking/internal/payment"
)

// Repository contains all DB interactions needed by the service.
type Repository interface {
	GetPatientByID(ctx context.Context, id uuid.UUID) (*Patient, error)

	GetAppointmentByID(ctx context.Context, id uuid.UUID) (*Appointment, error)
	ListAppointmentsByPatient(ctx context.Context, patientID uuid.UUID, limit, offset int) ([]Appointment, error)

	// For conflict checks: any appointment on the slot that is not cancelled.
	FindLiveAppointmentForSlot(ctx context.Context, doctorID uuid.UUID, date time.Time, slot string) (*Appointment, error)

	// CreateAppointment inserts a pending/pending row. A live appointment on
	// the same slot yields ErrSlotTaken.
	CreateAppointment(ctx context.Context, a *Appointment) (*Appointment, error)

	// Conditional updates return ErrAppointmentNotFound when no row is in the
	// expected state.
	UpdateAppointmentStatus(ctx context.Context, id uuid.UUID, from, to AppointmentStatus) (*Appointment, error)

	// SettlePayment moves paymentStatus from -> to and, when rec is not nil,
	// records rec in the payment ledger. Both happen or neither does.
	SettlePayment(ctx context.Context, id uuid.UUID, from, to PaymentStatus, rec *payment.Payment) (*Appointment, error)

	// DeleteAppointment removes the row only while its status is one of
	// statuses.
	DeleteAppointment(ctx context.Context, id uuid.UUID, statuses ...AppointmentStatus) error

	// Refund worker: eligible appointments ordered by (date, id), strictly
	// after the cursor.
	FindRefundEligible(ctx context.Context, today time.Time, after SweepCursor, limit int) ([]Appointment, error)
}

// SweepCursor marks the last appointment a refund sweep visited. The zero
// value starts from the oldest.
type SweepCursor struct {
	Date time.Time
	ID   uuid.UUID
}
