package appointment

import (
	"errors"
	"strings"
)

var (
	ErrPatientNotFound     = errors.New("patient not found")
	ErrAppointmentNotFound = errors.New("appointment not found")

	ErrValidation              = errors.New("validation failed")
	ErrSlotTaken               = errors.New("slot already has a live appointment")
	ErrSlotBeingBooked         = errors.New("slot is currently being booked, please retry")
	ErrInvalidStatusTransition = errors.New("invalid status transition")
	ErrAppointmentConfirmed    = errors.New("confirmed appointments cannot be deleted")
	ErrPaymentFailed           = errors.New("payment failed")
	ErrRefundIneligible        = errors.New("appointment is not eligible for a refund")
	ErrPaymentMismatch         = errors.New("payment reference does not belong to this appointment")
	ErrRefundFailed            = errors.New("refund could not be issued")
)

// ValidationError lists every problem found in a request. It matches
// ErrValidation under errors.Is.
type ValidationError struct {
	Problems []string
}

func (e *ValidationError) Error() string {
	return "validation failed: " + strings.Join(e.Problems, "; ")
}

func (e *ValidationError) Is(target error) bool {
	return target == ErrValidation
}

func (e *ValidationError) add(problem string) {
	e.Problems = append(e.Problems, problem)
}

func (e *ValidationError) errOrNil() error {
	if len(e.Problems) == 0 {
		return nil
	}
	return e
}
