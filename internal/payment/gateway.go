package payment

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stripe/stripe-go/v79"
	striperefund "github.com/stripe/stripe-go/v79/refund"
)

// Gateway moves money back to the patient.
type Gateway interface {
	Refund(ctx context.Context, reference string, appointmentID uuid.UUID) error
}

// NewGateway returns a Stripe gateway when a secret key is configured and a
// ledger-only gateway otherwise.
func NewGateway(secretKey string, logger zerolog.Logger) Gateway {
	if secretKey == "" {
		logger.Warn().Msg("stripe disabled (no STRIPE_SECRET_KEY); refunds are recorded in the ledger only")
		return disabledGateway{logger: logger}
	}
	return NewStripeGateway(secretKey, logger)
}

type disabledGateway struct {
	logger zerolog.Logger
}

func (g disabledGateway) Refund(_ context.Context, reference string, appointmentID uuid.UUID) error {
	g.logger.Info().
		Str("payment_reference", reference).
		Str("appointment_id", appointmentID.String()).
		Msg("gateway refund skipped")
	return nil
}

// StripeGateway refunds Stripe PaymentIntents.
type StripeGateway struct {
	client striperefund.Client
	logger zerolog.Logger
}

func NewStripeGateway(secretKey string, logger zerolog.Logger) *StripeGateway {
	return &StripeGateway{
		client: striperefund.Client{B: stripe.GetBackend(stripe.APIBackend), Key: secretKey},
		logger: logger,
	}
}

func (g *StripeGateway) Refund(ctx context.Context, reference string, appointmentID uuid.UUID) error {
	params := &stripe.RefundParams{
		PaymentIntent: stripe.String(reference),
		Reason:        stripe.String(string(stripe.RefundReasonRequestedByCustomer)),
	}
	params.Context = ctx
	// Retries of the same appointment's refund must not move money twice.
	params.IdempotencyKey = stripe.String("refund:" + appointmentID.String())
	params.AddMetadata("appointment_id", appointmentID.String())

	r, err := g.client.New(params)
	if err != nil {
		if isAlreadyRefunded(err) {
			g.logger.Info().Str("payment_reference", reference).Msg("stripe reports charge already refunded")
			return nil
		}
		return fmt.Errorf("stripe refund %s: %w", reference, err)
	}

	g.logger.Info().
		Str("refund_id", r.ID).
		Str("payment_reference", reference).
		Str("appointment_id", appointmentID.String()).
		Int64("amount", r.Amount).
		Msg("stripe refund created")
	return nil
}

func isAlreadyRefunded(err error) bool {
	var stripeErr *stripe.Error
	if errors.As(err, &stripeErr) {
		return stripeErr.Code == stripe.ErrorCodeChargeAlreadyRefunded
	}
	return false
}
