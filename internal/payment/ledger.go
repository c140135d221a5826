package payment

import (
	"context"
	"errors"

	"github.com/google/uuid"
)

var (
	ErrPaymentNotFound = errors.New("payment not found")
	ErrNotRefundable   = errors.New("payment is not in a refundable state")
)

// Ledger reads and settles payment records. New payments are written by the
// appointment repository together with the appointment's payment status.
type Ledger interface {
	// Find returns the latest payment carrying reference for the appointment.
	Find(ctx context.Context, reference string, appointmentID uuid.UUID) (*Payment, error)

	// MarkRefunded flags the completed payment identified by both reference
	// and appointment as refunded. A payment that is already refunded is not
	// an error.
	MarkRefunded(ctx context.Context, reference string, appointmentID uuid.UUID) (*Payment, error)

	// LatestSettled returns the appointment's most recent completed payment,
	// or its most recent refunded one when nothing is completed.
	LatestSettled(ctx context.Context, appointmentID uuid.UUID) (*Payment, error)
}
