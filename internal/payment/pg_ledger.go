package payment

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type PgLedger struct {
	pool *pgxpool.Pool
}

func NewPgLedger(pool *pgxpool.Pool) *PgLedger {
	return &PgLedger{pool: pool}
}

const paymentColumns = `id, appointment_id, reference, amount_cents, currency, status, created_at, refunded_at`

func scanPayment(row pgx.Row) (*Payment, error) {
	var p Payment
	var refundedAt *time.Time

	err := row.Scan(
		&p.ID,
		&p.AppointmentID,
		&p.Reference,
		&p.AmountCents,
		&p.Currency,
		&p.Status,
		&p.CreatedAt,
		&refundedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrPaymentNotFound
		}
		return nil, err
	}

	p.RefundedAt = refundedAt
	return &p, nil
}

// RecordTx inserts p inside tx, so the caller can commit it together with the
// appointment's payment status.
func RecordTx(ctx context.Context, tx pgx.Tx, p *Payment) error {
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}

	row := tx.QueryRow(ctx, `
		INSERT INTO payments (id, appointment_id, reference, amount_cents, currency, status, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, now())
		RETURNING `+paymentColumns,
		p.ID, p.AppointmentID, p.Reference, p.AmountCents, p.Currency, p.Status)

	saved, err := scanPayment(row)
	if err != nil {
		return fmt.Errorf("insert payment: %w", err)
	}
	*p = *saved
	return nil
}

func (l *PgLedger) MarkRefunded(ctx context.Context, reference string, appointmentID uuid.UUID) (*Payment, error) {
	row := l.pool.QueryRow(ctx, `
		UPDATE payments
		SET status = 'refunded',
		    refunded_at = now()
		WHERE reference = $1
		  AND appointment_id = $2
		  AND status = 'completed'
		RETURNING `+paymentColumns, reference, appointmentID)

	p, err := scanPayment(row)
	if err == nil {
		return p, nil
	}
	if !errors.Is(err, ErrPaymentNotFound) {
		return nil, fmt.Errorf("mark payment refunded: %w", err)
	}

	// Nothing updated: either already refunded or no such payment.
	existing, err := l.Find(ctx, reference, appointmentID)
	if err != nil {
		return nil, err
	}
	if existing.Status != StatusRefunded {
		return nil, ErrNotRefundable
	}
	return existing, nil
}

func (l *PgLedger) Find(ctx context.Context, reference string, appointmentID uuid.UUID) (*Payment, error) {
	row := l.pool.QueryRow(ctx, `
		SELECT `+paymentColumns+`
		FROM payments
		WHERE reference = $1
		  AND appointment_id = $2
		ORDER BY created_at DESC
		LIMIT 1
	`, reference, appointmentID)
	return scanPayment(row)
}

func (l *PgLedger) LatestSettled(ctx context.Context, appointmentID uuid.UUID) (*Payment, error) {
	row := l.pool.QueryRow(ctx, `
		SELECT `+paymentColumns+`
		FROM payments
		WHERE appointment_id = $1
		  AND status IN ('completed', 'refunded')
		ORDER BY status = 'completed' DESC, created_at DESC
		LIMIT 1
	`, appointmentID)
	return scanPayment(row)
}
