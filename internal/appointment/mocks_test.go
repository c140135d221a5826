package appointment

import (
	"bytes"
	"context"
	"errors"
	"slices"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/hackgods/doctor-booking/internal/events"
	"github.com/hackgods/doctor-booking/internal/payment"
	redisclient "github.com/hackgods/doctor-booking/internal/redis"
)

type mockRepo struct {
	mu           sync.Mutex
	patients     map[uuid.UUID]*Patient
	appointments map[uuid.UUID]*Appointment
	deleteErr    error

	// ledger receives rows written by SettlePayment.
	ledger *mockLedger
	// beforeSettle runs after the service has read the appointment and
	// before the conditional payment write.
	beforeSettle func(a *Appointment)
}

func newMockRepo() *mockRepo {
	return &mockRepo{
		patients:     map[uuid.UUID]*Patient{},
		appointments: map[uuid.UUID]*Appointment{},
	}
}

func (m *mockRepo) addPatient() uuid.UUID {
	m.mu.Lock()
	defer m.mu.Unlock()
	id := uuid.New()
	m.patients[id] = &Patient{ID: id, Name: "Ada Patient"}
	return id
}

func (m *mockRepo) put(a Appointment) *Appointment {
	m.mu.Lock()
	defer m.mu.Unlock()
	if a.ID == uuid.Nil {
		a.ID = uuid.New()
	}
	if a.Reference == "" {
		a.Reference = newReference()
	}
	m.appointments[a.ID] = &a
	cp := a
	return &cp
}

func (m *mockRepo) get(id uuid.UUID) (Appointment, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.appointments[id]
	if !ok {
		return Appointment{}, false
	}
	return *a, true
}

func (m *mockRepo) GetPatientByID(_ context.Context, id uuid.UUID) (*Patient, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.patients[id]
	if !ok {
		return nil, ErrPatientNotFound
	}
	cp := *p
	return &cp, nil
}

func (m *mockRepo) GetAppointmentByID(_ context.Context, id uuid.UUID) (*Appointment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.appointments[id]
	if !ok {
		return nil, ErrAppointmentNotFound
	}
	cp := *a
	return &cp, nil
}

func (m *mockRepo) ListAppointmentsByPatient(_ context.Context, patientID uuid.UUID, limit, offset int) ([]Appointment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []Appointment
	for _, a := range m.appointments {
		if a.PatientID == patientID {
			out = append(out, *a)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Date.After(out[j].Date) })
	if offset >= len(out) {
		return nil, nil
	}
	out = out[offset:]
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (m *mockRepo) FindLiveAppointmentForSlot(_ context.Context, doctorID uuid.UUID, date time.Time, slot string) (*Appointment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, a := range m.appointments {
		if a.DoctorID == doctorID && a.Date.Equal(civilDate(date)) && a.Time == slot && a.Status != StatusCancelled {
			cp := *a
			return &cp, nil
		}
	}
	return nil, ErrAppointmentNotFound
}

func (m *mockRepo) CreateAppointment(_ context.Context, a *Appointment) (*Appointment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *a
	cp.ID = uuid.New()
	cp.Date = civilDate(a.Date)
	cp.Status = StatusPending
	cp.PaymentStatus = PaymentPending
	cp.CreatedAt = time.Now()
	cp.UpdatedAt = cp.CreatedAt
	m.appointments[cp.ID] = &cp
	out := cp
	return &out, nil
}

func (m *mockRepo) UpdateAppointmentStatus(_ context.Context, id uuid.UUID, from, to AppointmentStatus) (*Appointment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.appointments[id]
	if !ok || a.Status != from {
		return nil, ErrAppointmentNotFound
	}
	a.Status = to
	cp := *a
	return &cp, nil
}

func (m *mockRepo) SettlePayment(ctx context.Context, id uuid.UUID, from, to PaymentStatus, rec *payment.Payment) (*Appointment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.appointments[id]
	if ok && m.beforeSettle != nil {
		m.beforeSettle(a)
	}
	if !ok || a.PaymentStatus != from || a.Status == StatusCancelled {
		return nil, ErrAppointmentNotFound
	}
	if rec != nil {
		rec.AppointmentID = id
		if err := m.ledger.Record(ctx, rec); err != nil {
			return nil, err
		}
	}
	a.PaymentStatus = to
	cp := *a
	return &cp, nil
}

func (m *mockRepo) DeleteAppointment(_ context.Context, id uuid.UUID, statuses ...AppointmentStatus) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.deleteErr != nil {
		return m.deleteErr
	}
	a, ok := m.appointments[id]
	if !ok || !slices.Contains(statuses, a.Status) {
		return ErrAppointmentNotFound
	}
	delete(m.appointments, id)
	return nil
}

func (m *mockRepo) FindRefundEligible(_ context.Context, today time.Time, after SweepCursor, limit int) ([]Appointment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []Appointment
	for _, a := range m.appointments {
		if IsRefundEligible(a, today) && cursorLess(after, SweepCursor{Date: a.Date, ID: a.ID}) {
			out = append(out, *a)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		return cursorLess(SweepCursor{Date: out[i].Date, ID: out[i].ID}, SweepCursor{Date: out[j].Date, ID: out[j].ID})
	})
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func cursorLess(a, b SweepCursor) bool {
	da, db := civilDate(a.Date), civilDate(b.Date)
	if !da.Equal(db) {
		return da.Before(db)
	}
	return bytes.Compare(a.ID[:], b.ID[:]) < 0
}

// fixedSlots serves the same slots for every date unless a per-date error is
// configured.
type fixedSlots struct {
	slots []string
	err   error
}

func (f fixedSlots) BookableSlots(context.Context, uuid.UUID, time.Time) ([]string, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.slots, nil
}

type mockLocker struct {
	busy  bool
	calls int
	keys  []redisclient.SlotKey
}

func (l *mockLocker) WithSlotLock(ctx context.Context, key redisclient.SlotKey, fn func(ctx context.Context) error) error {
	l.calls++
	l.keys = append(l.keys, key)
	if l.busy {
		return redisclient.ErrLockNotAcquired
	}
	return fn(ctx)
}

type mockLedger struct {
	mu       sync.Mutex
	payments []*payment.Payment
}

func (l *mockLedger) Record(_ context.Context, p *payment.Payment) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	cp := *p
	if cp.ID == uuid.Nil {
		cp.ID = uuid.New()
	}
	cp.CreatedAt = time.Now()
	l.payments = append(l.payments, &cp)
	*p = cp
	return nil
}

func (l *mockLedger) find(reference string, appointmentID uuid.UUID) *payment.Payment {
	for i := len(l.payments) - 1; i >= 0; i-- {
		p := l.payments[i]
		if p.Reference == reference && p.AppointmentID == appointmentID {
			return p
		}
	}
	return nil
}

func (l *mockLedger) Find(_ context.Context, reference string, appointmentID uuid.UUID) (*payment.Payment, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	p := l.find(reference, appointmentID)
	if p == nil {
		return nil, payment.ErrPaymentNotFound
	}
	cp := *p
	return &cp, nil
}

func (l *mockLedger) MarkRefunded(_ context.Context, reference string, appointmentID uuid.UUID) (*payment.Payment, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	p := l.find(reference, appointmentID)
	if p == nil {
		return nil, payment.ErrPaymentNotFound
	}
	switch p.Status {
	case payment.StatusCompleted:
		now := time.Now()
		p.Status = payment.StatusRefunded
		p.RefundedAt = &now
	case payment.StatusRefunded:
	default:
		return nil, payment.ErrNotRefundable
	}
	cp := *p
	return &cp, nil
}

func (l *mockLedger) LatestSettled(_ context.Context, appointmentID uuid.UUID) (*payment.Payment, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	var refunded *payment.Payment
	for i := len(l.payments) - 1; i >= 0; i-- {
		p := l.payments[i]
		if p.AppointmentID != appointmentID {
			continue
		}
		switch p.Status {
		case payment.StatusCompleted:
			cp := *p
			return &cp, nil
		case payment.StatusRefunded:
			if refunded == nil {
				refunded = p
			}
		}
	}
	if refunded == nil {
		return nil, payment.ErrPaymentNotFound
	}
	cp := *refunded
	return &cp, nil
}

type mockGateway struct {
	calls []string
	err   error
}

func (g *mockGateway) Refund(_ context.Context, reference string, _ uuid.UUID) error {
	g.calls = append(g.calls, reference)
	return g.err
}

type recordingSink struct {
	mu     sync.Mutex
	events []events.Event
}

func (r *recordingSink) Publish(_ context.Context, ev events.Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, ev)
	return nil
}

func (r *recordingSink) types() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, len(r.events))
	for i, ev := range r.events {
		out[i] = ev.Type
	}
	return out
}

var errBoom = errors.New("boom")
