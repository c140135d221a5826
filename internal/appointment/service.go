package appointment

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/mail"
	"slices"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/hackgods/doctor-booking/internal/availability"
	"github.com/hackgods/doctor-booking/internal/config"
	"github.com/hackgods/doctor-booking/internal/events"
	"github.com/hackgods/doctor-booking/internal/payment"
	redisclient "github.com/hackgods/doctor-booking/internal/redis"
)

const (
	maxReasonLength = 500
	maxPhoneLength  = 32
	defaultCurrency = "usd"
)

// SlotSource yields the bookable "HH:MM" slots for a doctor on a date.
type SlotSource interface {
	BookableSlots(ctx context.Context, doctorID uuid.UUID, date time.Time) ([]string, error)
}

type Service struct {
	repo    Repository
	slots   SlotSource
	locker  redisclient.Locker
	ledger  payment.Ledger
	gateway payment.Gateway
	events  events.Sink
	loc     *time.Location
	now     func() time.Time
	logger  zerolog.Logger
}

func NewService(
	repo Repository,
	slots SlotSource,
	locker redisclient.Locker,
	ledger payment.Ledger,
	gateway payment.Gateway,
	sink events.Sink,
	cfg config.Config,
	logger zerolog.Logger,
) *Service {
	loc := cfg.Location
	if loc == nil {
		loc = time.UTC
	}
	if sink == nil {
		sink = events.Nop
	}
	return &Service{
		repo:    repo,
		slots:   slots,
		locker:  locker,
		ledger:  ledger,
		gateway: gateway,
		events:  sink,
		loc:     loc,
		now:     time.Now,
		logger:  logger,
	}
}

// Today is the current calendar date in the service's locale.
func (s *Service) Today() time.Time {
	return civilDate(s.now().In(s.loc))
}

// CreateDraftAppointment is the first phase of booking: it persists a
// pending/pending appointment before any money moves. The requested time must
// be one of the doctor's generated slots for the date, and no other live
// appointment may hold the same slot.
func (s *Service) CreateDraftAppointment(ctx context.Context, req DraftRequest) (*Appointment, error) {
	date, slot, err := s.validateDraft(&req)
	if err != nil {
		return nil, err
	}

	slots, err := s.slots.BookableSlots(ctx, req.DoctorID, date)
	if err != nil {
		return nil, err
	}
	if !slices.Contains(slots, slot) {
		return nil, &ValidationError{Problems: []string{fmt.Sprintf("time %s is not a bookable slot on %s", slot, date.Format(time.DateOnly))}}
	}

	// Validate patient exists
	if _, err := s.repo.GetPatientByID(ctx, req.PatientID); err != nil {
		if errors.Is(err, ErrPatientNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("load patient: %w", err)
	}

	key := redisclient.SlotKey{DoctorID: req.DoctorID, Date: date.Format(time.DateOnly), Time: slot}
	var created *Appointment

	err = s.locker.WithSlotLock(ctx, key, func(lockCtx context.Context) error {
		// Inside the critical section re-check for a live appointment on this slot
		existing, err := s.repo.FindLiveAppointmentForSlot(lockCtx, req.DoctorID, date, slot)
		if err != nil && !errors.Is(err, ErrAppointmentNotFound) {
			return fmt.Errorf("check live appointment: %w", err)
		}
		if existing != nil {
			return ErrSlotTaken
		}

		appt, err := s.repo.CreateAppointment(lockCtx, &Appointment{
			Reference: newReference(),
			DoctorID:  req.DoctorID,
			PatientID: req.PatientID,
			Date:      date,
			Time:      slot,
			Reason:    req.Reason,
			Contact:   req.Contact,
		})
		if err != nil {
			if errors.Is(err, ErrSlotTaken) {
				return err
			}
			return fmt.Errorf("create appointment: %w", err)
		}

		created = appt
		s.logEvent(lockCtx, appt.ID, events.AppointmentCreated, map[string]any{
			"reference":  appt.Reference,
			"doctor_id":  appt.DoctorID.String(),
			"patient_id": appt.PatientID.String(),
			"date":       date.Format(time.DateOnly),
			"time":       slot,
		})
		return nil
	})
	if err != nil {
		if errors.Is(err, redisclient.ErrLockNotAcquired) {
			return nil, ErrSlotBeingBooked
		}
		return nil, err
	}

	s.logger.Info().
		Str("appointment_id", created.ID.String()).
		Str("reference", created.Reference).
		Str("doctor_id", created.DoctorID.String()).
		Str("date", date.Format(time.DateOnly)).
		Str("time", slot).
		Msg("draft appointment created")

	return created, nil
}

// validateDraft trims the request in place and returns the parsed date and
// canonical slot time.
func (s *Service) validateDraft(req *DraftRequest) (time.Time, string, error) {
	verr := &ValidationError{}

	if req.DoctorID == uuid.Nil {
		verr.add("doctor_id is required")
	}
	if req.PatientID == uuid.Nil {
		verr.add("patient_id is required")
	}

	var date time.Time
	if parsed, err := time.ParseInLocation(time.DateOnly, strings.TrimSpace(req.Date), s.loc); err != nil {
		verr.add("date must be YYYY-MM-DD")
	} else {
		date = civilDate(parsed)
	}

	var slot string
	start, err := availability.ParseClock(req.Time)
	if err != nil || start >= availability.Midnight {
		verr.add("time must be HH:MM")
	} else {
		slot = start.String()
	}

	if !date.IsZero() {
		today := s.Today()
		switch {
		case date.Before(today):
			verr.add("date must not be in the past")
		case date.Equal(today) && slot != "":
			now := s.now().In(s.loc)
			if start < availability.NewClock(now.Hour(), now.Minute()) {
				verr.add("time has already passed today")
			}
		}
	}

	req.Reason = strings.TrimSpace(req.Reason)
	if req.Reason == "" {
		verr.add("reason is required")
	} else if len(req.Reason) > maxReasonLength {
		verr.add(fmt.Sprintf("reason must be at most %d characters", maxReasonLength))
	}

	req.Contact.Name = strings.TrimSpace(req.Contact.Name)
	req.Contact.Email = strings.TrimSpace(req.Contact.Email)
	req.Contact.Phone = strings.TrimSpace(req.Contact.Phone)
	if req.Contact.Name == "" {
		verr.add("contact name is required")
	}
	if req.Contact.Email == "" {
		verr.add("contact email is required")
	} else if addr, err := mail.ParseAddress(req.Contact.Email); err != nil || addr.Address != req.Contact.Email {
		verr.add("contact email is malformed")
	}
	if len(req.Contact.Phone) > maxPhoneLength {
		verr.add(fmt.Sprintf("contact phone must be at most %d characters", maxPhoneLength))
	}

	if err := verr.errOrNil(); err != nil {
		return time.Time{}, "", err
	}
	return date, slot, nil
}

// RecordPaymentOutcome is the second phase of booking. A success moves
// paymentStatus to completed; a failure moves it to failed and returns the
// still-actionable appointment together with ErrPaymentFailed. A failed
// payment may be re-submitted. status is never touched.
func (s *Service) RecordPaymentOutcome(ctx context.Context, id uuid.UUID, outcome PaymentOutcome) (*Appointment, error) {
	outcome.Reference = strings.TrimSpace(outcome.Reference)
	if outcome.Success && outcome.Reference == "" {
		return nil, &ValidationError{Problems: []string{"payment reference is required for a successful payment"}}
	}
	if outcome.AmountCents < 0 {
		return nil, &ValidationError{Problems: []string{"amount must not be negative"}}
	}
	if outcome.Currency == "" {
		outcome.Currency = defaultCurrency
	}

	appt, err := s.repo.GetAppointmentByID(ctx, id)
	if err != nil {
		if errors.Is(err, ErrAppointmentNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("load appointment: %w", err)
	}

	if appt.Status == StatusCancelled || appt.PaymentStatus == PaymentCompleted {
		return nil, ErrInvalidStatusTransition
	}

	to := PaymentFailed
	ledgerStatus := payment.StatusFailed
	if outcome.Success {
		to = PaymentCompleted
		ledgerStatus = payment.StatusCompleted
	}

	var rec *payment.Payment
	if outcome.Reference != "" {
		rec = &payment.Payment{
			AppointmentID: appt.ID,
			Reference:     outcome.Reference,
			AmountCents:   outcome.AmountCents,
			Currency:      outcome.Currency,
			Status:        ledgerStatus,
		}
	}

	// The ledger row is only written if this call wins the status change.
	updated, err := s.repo.SettlePayment(ctx, appt.ID, appt.PaymentStatus, to, rec)
	if err != nil {
		if errors.Is(err, ErrAppointmentNotFound) {
			// Someone else moved or removed it between read and write.
			return nil, ErrInvalidStatusTransition
		}
		return nil, fmt.Errorf("settle payment: %w", err)
	}

	payload := map[string]any{
		"payment_reference": outcome.Reference,
		"amount_cents":      outcome.AmountCents,
		"currency":          outcome.Currency,
	}
	if !outcome.Success {
		s.logEvent(ctx, updated.ID, events.AppointmentPaymentFailed, payload)
		s.logger.Warn().Str("appointment_id", updated.ID.String()).Msg("payment failed; draft kept")
		return updated, ErrPaymentFailed
	}

	s.logEvent(ctx, updated.ID, events.AppointmentPaid, payload)
	return updated, nil
}

// SetDoctorDecision accepts or denies a pending appointment. It never touches
// paymentStatus.
func (s *Service) SetDoctorDecision(ctx context.Context, id uuid.UUID, decision Decision) (*Appointment, error) {
	var to AppointmentStatus
	var eventType string
	switch decision {
	case DecisionAccept:
		to, eventType = StatusConfirmed, events.AppointmentConfirmed
	case DecisionDeny:
		to, eventType = StatusCancelled, events.AppointmentCancelled
	default:
		return nil, &ValidationError{Problems: []string{`decision must be "accept" or "deny"`}}
	}

	appt, err := s.repo.GetAppointmentByID(ctx, id)
	if err != nil {
		if errors.Is(err, ErrAppointmentNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("load appointment: %w", err)
	}

	if appt.Status != StatusPending {
		return nil, ErrInvalidStatusTransition
	}

	updated, err := s.repo.UpdateAppointmentStatus(ctx, appt.ID, StatusPending, to)
	if err != nil {
		if errors.Is(err, ErrAppointmentNotFound) {
			return nil, ErrInvalidStatusTransition
		}
		return nil, fmt.Errorf("update appointment status: %w", err)
	}

	s.logEvent(ctx, updated.ID, eventType, map[string]any{"decision": string(decision)})
	return updated, nil
}

// DeleteAppointment is the patient's self-service removal. Confirmed
// appointments are never deleted, whatever their payment state.
func (s *Service) DeleteAppointment(ctx context.Context, id uuid.UUID) error {
	appt, err := s.repo.GetAppointmentByID(ctx, id)
	if err != nil {
		if errors.Is(err, ErrAppointmentNotFound) {
			return err
		}
		return fmt.Errorf("load appointment: %w", err)
	}
	if appt.Status == StatusConfirmed {
		return ErrAppointmentConfirmed
	}

	if err := s.repo.DeleteAppointment(ctx, id, StatusPending, StatusCancelled); err != nil {
		if !errors.Is(err, ErrAppointmentNotFound) {
			return err
		}
		// Raced with a confirm or another delete.
		current, getErr := s.repo.GetAppointmentByID(ctx, id)
		if getErr == nil && current.Status == StatusConfirmed {
			return ErrAppointmentConfirmed
		}
		return ErrAppointmentNotFound
	}

	s.logEvent(ctx, id, events.AppointmentDeleted, map[string]any{
		"reference":      appt.Reference,
		"status":         string(appt.Status),
		"payment_status": string(appt.PaymentStatus),
	})
	return nil
}

// GetAppointment retrieves an appointment by ID
func (s *Service) GetAppointment(ctx context.Context, id uuid.UUID) (*Appointment, error) {
	appt, err := s.repo.GetAppointmentByID(ctx, id)
	if err != nil {
		if errors.Is(err, ErrAppointmentNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("get appointment: %w", err)
	}
	return appt, nil
}

// ClampPage applies the default and maximum page size and drops a negative
// offset.
func ClampPage(limit, offset int) (int, int) {
	if limit <= 0 {
		limit = 20 // default
	}
	if limit > maxListLimit {
		limit = maxListLimit
	}
	if offset < 0 {
		offset = 0
	}
	return limit, offset
}

// ListAppointmentsByPatient retrieves appointments for a specific patient
func (s *Service) ListAppointmentsByPatient(ctx context.Context, patientID uuid.UUID, limit, offset int) ([]Appointment, error) {
	limit, offset = ClampPage(limit, offset)

	appointments, err := s.repo.ListAppointmentsByPatient(ctx, patientID, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("list appointments by patient: %w", err)
	}
	return appointments, nil
}

func (s *Service) logEvent(ctx context.Context, appointmentID uuid.UUID, eventType string, payload map[string]any) {
	data, err := json.Marshal(payload)
	if err != nil {
		s.logger.Error().Err(err).Str("event_type", eventType).Msg("failed to marshal event payload")
		data = nil
	}

	ev := events.Event{
		Type:          eventType,
		AppointmentID: appointmentID,
		Payload:       data,
		CreatedAt:     s.now(),
	}

	if err := s.events.Publish(ctx, ev); err != nil {
		s.logger.Error().
			Err(err).
			Str("event_type", eventType).
			Str("appointment_id", appointmentID.String()).
			Msg("failed to publish event")
	}
}
