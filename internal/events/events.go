package events

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
)

const (
	AppointmentCreated       = "APPOINTMENT_CREATED"
	AppointmentPaid          = "APPOINTMENT_PAID"
	AppointmentPaymentFailed = "APPOINTMENT_PAYMENT_FAILED"
	AppointmentConfirmed     = "APPOINTMENT_CONFIRMED"
	AppointmentCancelled     = "APPOINTMENT_CANCELLED"
	AppointmentDeleted       = "APPOINTMENT_DELETED"
	AppointmentRefunded      = "APPOINTMENT_REFUNDED"
)

// Event is a lifecycle fact about an appointment. Payload is JSON.
type Event struct {
	Type          string
	AppointmentID uuid.UUID
	Payload       []byte
	CreatedAt     time.Time
}

// Sink receives lifecycle events. Delivery is best effort: callers log
// failures and carry on.
type Sink interface {
	Publish(ctx context.Context, ev Event) error
}

type SinkFunc func(ctx context.Context, ev Event) error

func (f SinkFunc) Publish(ctx context.Context, ev Event) error { return f(ctx, ev) }

// Multi fans an event out to every sink and joins their errors.
func Multi(sinks ...Sink) Sink {
	return multiSink(sinks)
}

type multiSink []Sink

func (m multiSink) Publish(ctx context.Context, ev Event) error {
	var errs []error
	for _, s := range m {
		if s == nil {
			continue
		}
		if err := s.Publish(ctx, ev); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Nop discards events.
var Nop Sink = SinkFunc(func(context.Context, Event) error { return nil })
