package appointment

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/hackgods/doctor-booking/internal/events"
	"github.com/hackgods/doctor-booking/internal/payment"
)

// IsRefundEligible reports whether a paid appointment was left unanswered by
// the doctor until its date passed. today is a calendar date; an appointment
// dated today is never eligible.
func IsRefundEligible(a *Appointment, today time.Time) bool {
	if a == nil {
		return false
	}
	return civilDate(a.Date).Before(civilDate(today)) &&
		a.Status == StatusPending &&
		a.PaymentStatus == PaymentCompleted
}

// RequestRefund returns the patient's money for a stuck appointment and then
// removes the appointment. The steps run in a fixed order:
//
//  1. the payment must exist in the ledger for this appointment
//  2. the gateway refunds it (skipped if the ledger already shows a refund)
//  3. the ledger flags the payment refunded
//  4. the appointment row is deleted
//
// A failure in step 4 is logged and swallowed: the money has moved, and the
// next refund sweep retries the delete. A missing appointment is a no-op
// success.
func (s *Service) RequestRefund(ctx context.Context, id uuid.UUID, paymentReference string) error {
	_, err := s.refund(ctx, id, paymentReference)
	return err
}

// refund runs the RequestRefund steps and reports whether the appointment is
// gone afterwards.
func (s *Service) refund(ctx context.Context, id uuid.UUID, paymentReference string) (bool, error) {
	paymentReference = strings.TrimSpace(paymentReference)
	if paymentReference == "" {
		return false, &ValidationError{Problems: []string{"payment reference is required"}}
	}

	log := s.logger.With().
		Str("appointment_id", id.String()).
		Str("payment_reference", paymentReference).
		Logger()

	appt, err := s.repo.GetAppointmentByID(ctx, id)
	if err != nil {
		if errors.Is(err, ErrAppointmentNotFound) {
			log.Info().Msg("refund requested for missing appointment; nothing to do")
			return true, nil
		}
		return false, fmt.Errorf("load appointment: %w", err)
	}

	if !IsRefundEligible(appt, s.Today()) {
		return false, ErrRefundIneligible
	}

	rec, err := s.ledger.Find(ctx, paymentReference, id)
	if err != nil {
		if errors.Is(err, payment.ErrPaymentNotFound) {
			return false, ErrPaymentMismatch
		}
		return false, fmt.Errorf("load payment: %w", err)
	}
	if rec.Status == payment.StatusFailed {
		return false, ErrRefundIneligible
	}

	// Past this point money may move; finish even if the caller goes away.
	ctx = context.WithoutCancel(ctx)

	alreadyRefunded := rec.Status == payment.StatusRefunded
	if !alreadyRefunded {
		if err := s.gateway.Refund(ctx, paymentReference, id); err != nil {
			return false, fmt.Errorf("%w: %v", ErrRefundFailed, err)
		}
	}

	rec, err = s.ledger.MarkRefunded(ctx, paymentReference, id)
	if err != nil {
		if errors.Is(err, payment.ErrPaymentNotFound) || errors.Is(err, payment.ErrNotRefundable) {
			return false, fmt.Errorf("%w: %v", ErrRefundFailed, err)
		}
		return false, fmt.Errorf("mark payment refunded: %w", err)
	}

	deleted := true
	if err := s.repo.DeleteAppointment(ctx, id, StatusPending); err != nil && !errors.Is(err, ErrAppointmentNotFound) {
		deleted = false
		log.Error().Err(err).Msg("refund issued but appointment could not be deleted")
	}

	if alreadyRefunded {
		if deleted {
			log.Info().Msg("deleted appointment left over from an earlier refund")
		}
		return deleted, nil
	}

	s.logEvent(ctx, id, events.AppointmentRefunded, map[string]any{
		"reference":         appt.Reference,
		"payment_reference": paymentReference,
		"amount_cents":      rec.AmountCents,
		"currency":          rec.Currency,
	})
	log.Info().Int64("amount_cents", rec.AmountCents).Msg("appointment refunded")
	return deleted, nil
}

// RefundSweepResult summarizes one pass of RefundEligible. Next is the cursor
// for the following batch.
type RefundSweepResult struct {
	Scanned  int
	Refunded int
	Failed   int
	Next     SweepCursor
}

// RefundEligible refunds up to limit appointments that are eligible today and
// sort after the cursor, using each appointment's latest settled payment. An
// appointment whose payment is already refunded only has its delete retried.
func (s *Service) RefundEligible(ctx context.Context, after SweepCursor, limit int) (RefundSweepResult, error) {
	res := RefundSweepResult{Next: after}

	candidates, err := s.repo.FindRefundEligible(ctx, s.Today(), after, limit)
	if err != nil {
		return res, fmt.Errorf("find refund eligible appointments: %w", err)
	}
	res.Scanned = len(candidates)

	for _, appt := range candidates {
		if ctx.Err() != nil {
			return res, ctx.Err()
		}
		res.Next = SweepCursor{Date: appt.Date, ID: appt.ID}

		rec, err := s.ledger.LatestSettled(ctx, appt.ID)
		if err != nil {
			res.Failed++
			s.logger.Error().Err(err).Str("appointment_id", appt.ID.String()).Msg("no settled payment for refund-eligible appointment")
			continue
		}

		deleted, err := s.refund(ctx, appt.ID, rec.Reference)
		if err != nil {
			res.Failed++
			s.logger.Error().Err(err).Str("appointment_id", appt.ID.String()).Msg("automatic refund failed")
			continue
		}
		if !deleted {
			res.Failed++
			continue
		}
		res.Refunded++
	}

	return res, nil
}
