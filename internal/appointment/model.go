package appointment

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

type AppointmentStatus string

const (
	StatusPending   AppointmentStatus = "pending"
	StatusConfirmed AppointmentStatus = "confirmed"
	StatusCancelled AppointmentStatus = "cancelled"
)

type PaymentStatus string

const (
	PaymentPending   PaymentStatus = "pending"
	PaymentCompleted PaymentStatus = "completed"
	PaymentFailed    PaymentStatus = "failed"
)

// Decision is a doctor's answer to a pending appointment.
type Decision string

const (
	DecisionAccept Decision = "accept"
	DecisionDeny   Decision = "deny"
)

type Contact struct {
	Name  string
	Email string
	Phone string
}

type Appointment struct {
	ID            uuid.UUID
	Reference     string
	DoctorID      uuid.UUID
	PatientID     uuid.UUID
	Date          time.Time // calendar date, midnight UTC
	Time          string    // HH:MM slot start
	Reason        string
	Contact       Contact
	Status        AppointmentStatus
	PaymentStatus PaymentStatus
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// IsDraft reports whether the appointment is still pending/pending.
func (a *Appointment) IsDraft() bool {
	return a.Status == StatusPending && a.PaymentStatus == PaymentPending
}

// DraftRequest is everything a patient submits to reserve a slot. Date is
// YYYY-MM-DD and Time must be one of the doctor's generated slots.
type DraftRequest struct {
	DoctorID  uuid.UUID
	PatientID uuid.UUID
	Date      string
	Time      string
	Reason    string
	Contact   Contact
}

// PaymentOutcome is the result of a payment attempt reported for an
// existing appointment.
type PaymentOutcome struct {
	Success     bool
	Reference   string
	AmountCents int64
	Currency    string
}

type Patient struct {
	ID        uuid.UUID
	Name      string
	Email     *string
	CreatedAt time.Time
	UpdatedAt time.Time
}

func newReference() string {
	raw := strings.ReplaceAll(uuid.NewString(), "-", "")
	return "APT-" + strings.ToUpper(raw[:10])
}

// civilDate drops the clock and location of t, keeping its calendar date.
func civilDate(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
