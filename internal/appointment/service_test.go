package appointment

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/hackgods/doctor-booking/internal/config"
	"github.com/hackgods/doctor-booking/internal/events"
	"github.com/hackgods/doctor-booking/internal/payment"
)

// Monday 2026-10-19, 10:00 in the service locale.
var testNow = time.Date(2026, 10, 19, 10, 0, 0, 0, time.UTC)

var weekdaySlots = []string{
	"08:00", "08:30", "09:00", "09:30", "10:00", "10:30", "11:00", "11:30", "12:00",
	"12:30", "13:00", "13:30", "14:00", "14:30", "15:00", "15:30", "16:00", "16:30",
}

type harness struct {
	svc     *Service
	repo    *mockRepo
	locker  *mockLocker
	ledger  *mockLedger
	gateway *mockGateway
	sink    *recordingSink
}

func newHarness(t *testing.T, slots SlotSource) *harness {
	t.Helper()
	h := &harness{
		repo:    newMockRepo(),
		locker:  &mockLocker{},
		ledger:  &mockLedger{},
		gateway: &mockGateway{},
		sink:    &recordingSink{},
	}
	h.repo.ledger = h.ledger
	if slots == nil {
		slots = fixedSlots{slots: weekdaySlots}
	}
	h.svc = NewService(h.repo, slots, h.locker, h.ledger, h.gateway, h.sink,
		config.Config{Location: time.UTC}, zerolog.Nop())
	h.svc.now = func() time.Time { return testNow }
	return h
}

func (h *harness) draft(patientID uuid.UUID) DraftRequest {
	return DraftRequest{
		DoctorID:  uuid.New(),
		PatientID: patientID,
		Date:      "2026-10-26",
		Time:      "09:30",
		Reason:    "  annual check-up ",
		Contact:   Contact{Name: "Ada Patient", Email: "ada@example.com", Phone: "+1 555 0100"},
	}
}

func TestCreateDraftAppointment_PendingPending(t *testing.T) {
	h := newHarness(t, nil)
	req := h.draft(h.repo.addPatient())

	appt, err := h.svc.CreateDraftAppointment(context.Background(), req)
	if err != nil {
		t.Fatalf("CreateDraftAppointment: %v", err)
	}

	if appt.Status != StatusPending || appt.PaymentStatus != PaymentPending {
		t.Fatalf("state = %s/%s, want pending/pending", appt.Status, appt.PaymentStatus)
	}
	if !strings.HasPrefix(appt.Reference, "APT-") || len(appt.Reference) != 14 {
		t.Fatalf("reference = %q", appt.Reference)
	}
	if appt.Reason != "annual check-up" {
		t.Fatalf("reason not trimmed: %q", appt.Reason)
	}
	if want := time.Date(2026, 10, 26, 0, 0, 0, 0, time.UTC); !appt.Date.Equal(want) {
		t.Fatalf("date = %v, want %v", appt.Date, want)
	}
	if h.locker.calls != 1 || h.locker.keys[0].Time != "09:30" || h.locker.keys[0].Date != "2026-10-26" {
		t.Fatalf("unexpected lock usage: %+v", h.locker.keys)
	}
	if got := h.sink.types(); len(got) != 1 || got[0] != events.AppointmentCreated {
		t.Fatalf("events = %v", got)
	}
}

func TestCreateDraftAppointment_CanonicalizesTime(t *testing.T) {
	h := newHarness(t, nil)
	req := h.draft(h.repo.addPatient())
	req.Time = "2:30 pm"

	appt, err := h.svc.CreateDraftAppointment(context.Background(), req)
	if err != nil {
		t.Fatalf("CreateDraftAppointment: %v", err)
	}
	if appt.Time != "14:30" {
		t.Fatalf("time = %q, want 14:30", appt.Time)
	}
}

func TestCreateDraftAppointment_ValidationErrors(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*DraftRequest)
		want   string
	}{
		{"missing doctor", func(r *DraftRequest) { r.DoctorID = uuid.Nil }, "doctor_id"},
		{"missing patient", func(r *DraftRequest) { r.PatientID = uuid.Nil }, "patient_id"},
		{"bad date", func(r *DraftRequest) { r.Date = "26/10/2026" }, "date must be"},
		{"past date", func(r *DraftRequest) { r.Date = "2026-10-18" }, "past"},
		{"passed time today", func(r *DraftRequest) { r.Date = "2026-10-19"; r.Time = "09:00" }, "already passed"},
		{"bad time", func(r *DraftRequest) { r.Time = "25:99" }, "time must be"},
		{"empty reason", func(r *DraftRequest) { r.Reason = "   " }, "reason"},
		{"long reason", func(r *DraftRequest) { r.Reason = strings.Repeat("x", maxReasonLength+1) }, "reason"},
		{"missing name", func(r *DraftRequest) { r.Contact.Name = "" }, "contact name"},
		{"bad email", func(r *DraftRequest) { r.Contact.Email = "not-an-email" }, "email"},
		{"slot not generated", func(r *DraftRequest) { r.Time = "17:00" }, "not a bookable slot"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHarness(t, nil)
			req := h.draft(h.repo.addPatient())
			tt.mutate(&req)

			_, err := h.svc.CreateDraftAppointment(context.Background(), req)
			if !errors.Is(err, ErrValidation) {
				t.Fatalf("err = %v, want validation error", err)
			}
			if !strings.Contains(err.Error(), tt.want) {
				t.Fatalf("err = %q, want it to mention %q", err, tt.want)
			}
			if len(h.repo.appointments) != 0 || h.locker.calls != 0 {
				t.Fatal("nothing should be persisted on validation failure")
			}
		})
	}
}

func TestCreateDraftAppointment_ReportsEveryProblem(t *testing.T) {
	h := newHarness(t, nil)

	_, err := h.svc.CreateDraftAppointment(context.Background(), DraftRequest{})
	var verr *ValidationError
	if !errors.As(err, &verr) {
		t.Fatalf("err = %v, want *ValidationError", err)
	}
	if len(verr.Problems) < 5 {
		t.Fatalf("problems = %v, want every missing field listed", verr.Problems)
	}
}

func TestCreateDraftAppointment_DoctorUnavailable(t *testing.T) {
	errClosed := errors.New("doctor is not available on this day")
	h := newHarness(t, fixedSlots{err: errClosed})

	_, err := h.svc.CreateDraftAppointment(context.Background(), h.draft(h.repo.addPatient()))
	if !errors.Is(err, errClosed) {
		t.Fatalf("err = %v, want slot source error surfaced", err)
	}
}

func TestCreateDraftAppointment_UnknownPatient(t *testing.T) {
	h := newHarness(t, nil)

	_, err := h.svc.CreateDraftAppointment(context.Background(), h.draft(uuid.New()))
	if !errors.Is(err, ErrPatientNotFound) {
		t.Fatalf("err = %v, want ErrPatientNotFound", err)
	}
}

func TestCreateDraftAppointment_SlotTaken(t *testing.T) {
	h := newHarness(t, nil)
	req := h.draft(h.repo.addPatient())

	if _, err := h.svc.CreateDraftAppointment(context.Background(), req); err != nil {
		t.Fatalf("first booking: %v", err)
	}

	second := req
	second.PatientID = h.repo.addPatient()
	if _, err := h.svc.CreateDraftAppointment(context.Background(), second); !errors.Is(err, ErrSlotTaken) {
		t.Fatalf("err = %v, want ErrSlotTaken", err)
	}
}

func TestCreateDraftAppointment_CancelledSlotCanBeRebooked(t *testing.T) {
	h := newHarness(t, nil)
	req := h.draft(h.repo.addPatient())

	first, err := h.svc.CreateDraftAppointment(context.Background(), req)
	if err != nil {
		t.Fatalf("first booking: %v", err)
	}
	if _, err := h.svc.SetDoctorDecision(context.Background(), first.ID, DecisionDeny); err != nil {
		t.Fatalf("deny: %v", err)
	}

	if _, err := h.svc.CreateDraftAppointment(context.Background(), req); err != nil {
		t.Fatalf("rebooking a cancelled slot: %v", err)
	}
}

func TestCreateDraftAppointment_LockBusy(t *testing.T) {
	h := newHarness(t, nil)
	h.locker.busy = true

	_, err := h.svc.CreateDraftAppointment(context.Background(), h.draft(h.repo.addPatient()))
	if !errors.Is(err, ErrSlotBeingBooked) {
		t.Fatalf("err = %v, want ErrSlotBeingBooked", err)
	}
}

func (h *harness) mustDraft(t *testing.T) *Appointment {
	t.Helper()
	appt, err := h.svc.CreateDraftAppointment(context.Background(), h.draft(h.repo.addPatient()))
	if err != nil {
		t.Fatalf("CreateDraftAppointment: %v", err)
	}
	return appt
}

func TestRecordPaymentOutcome_Success(t *testing.T) {
	h := newHarness(t, nil)
	appt := h.mustDraft(t)

	updated, err := h.svc.RecordPaymentOutcome(context.Background(), appt.ID, PaymentOutcome{
		Success: true, Reference: "pi_123", AmountCents: 5000,
	})
	if err != nil {
		t.Fatalf("RecordPaymentOutcome: %v", err)
	}

	if updated.PaymentStatus != PaymentCompleted || updated.Status != StatusPending {
		t.Fatalf("state = %s/%s, want pending/completed", updated.Status, updated.PaymentStatus)
	}
	p, err := h.ledger.Find(context.Background(), "pi_123", appt.ID)
	if err != nil || p.Status != payment.StatusCompleted || p.Currency != defaultCurrency {
		t.Fatalf("ledger = %+v, %v", p, err)
	}
}

func TestRecordPaymentOutcome_FailureKeepsDraftAndAllowsRetry(t *testing.T) {
	h := newHarness(t, nil)
	appt := h.mustDraft(t)

	failed, err := h.svc.RecordPaymentOutcome(context.Background(), appt.ID, PaymentOutcome{Success: false})
	if !errors.Is(err, ErrPaymentFailed) {
		t.Fatalf("err = %v, want ErrPaymentFailed", err)
	}
	if failed == nil || failed.PaymentStatus != PaymentFailed || failed.Status != StatusPending {
		t.Fatalf("failed appointment = %+v", failed)
	}

	retried, err := h.svc.RecordPaymentOutcome(context.Background(), appt.ID, PaymentOutcome{Success: true, Reference: "pi_retry"})
	if err != nil {
		t.Fatalf("retry: %v", err)
	}
	if retried.PaymentStatus != PaymentCompleted {
		t.Fatalf("payment status = %s, want completed", retried.PaymentStatus)
	}

	want := []string{events.AppointmentCreated, events.AppointmentPaymentFailed, events.AppointmentPaid}
	if got := h.sink.types(); strings.Join(got, ",") != strings.Join(want, ",") {
		t.Fatalf("events = %v, want %v", got, want)
	}
}

func TestRecordPaymentOutcome_LosingConcurrentPaymentLeavesNoLedgerRow(t *testing.T) {
	h := newHarness(t, nil)
	appt := h.mustDraft(t)

	// Another payment settles the appointment between our read and our write.
	h.repo.beforeSettle = func(a *Appointment) {
		a.PaymentStatus = PaymentCompleted
	}

	_, err := h.svc.RecordPaymentOutcome(context.Background(), appt.ID, PaymentOutcome{
		Success: true, Reference: "pi_loser", AmountCents: 5000,
	})
	if !errors.Is(err, ErrInvalidStatusTransition) {
		t.Fatalf("err = %v, want ErrInvalidStatusTransition", err)
	}
	if p, err := h.ledger.Find(context.Background(), "pi_loser", appt.ID); !errors.Is(err, payment.ErrPaymentNotFound) {
		t.Fatalf("ledger row for losing payment = %+v, %v; want none", p, err)
	}
	for _, typ := range h.sink.types() {
		if typ == events.AppointmentPaid {
			t.Fatal("losing payment must not emit a paid event")
		}
	}
}

func TestRecordPaymentOutcome_RejectsInvalidTransitions(t *testing.T) {
	h := newHarness(t, nil)

	paid := h.mustDraft(t)
	if _, err := h.svc.RecordPaymentOutcome(context.Background(), paid.ID, PaymentOutcome{Success: true, Reference: "pi_1"}); err != nil {
		t.Fatalf("first payment: %v", err)
	}
	if _, err := h.svc.RecordPaymentOutcome(context.Background(), paid.ID, PaymentOutcome{Success: true, Reference: "pi_2"}); !errors.Is(err, ErrInvalidStatusTransition) {
		t.Fatalf("second payment err = %v, want ErrInvalidStatusTransition", err)
	}

	cancelled := h.mustDraft(t)
	h.repo.appointments[cancelled.ID].Status = StatusCancelled
	if _, err := h.svc.RecordPaymentOutcome(context.Background(), cancelled.ID, PaymentOutcome{Success: true, Reference: "pi_3"}); !errors.Is(err, ErrInvalidStatusTransition) {
		t.Fatalf("cancelled payment err = %v, want ErrInvalidStatusTransition", err)
	}

	if _, err := h.svc.RecordPaymentOutcome(context.Background(), uuid.New(), PaymentOutcome{Success: true, Reference: "pi_4"}); !errors.Is(err, ErrAppointmentNotFound) {
		t.Fatalf("missing appointment err = %v, want ErrAppointmentNotFound", err)
	}

	if _, err := h.svc.RecordPaymentOutcome(context.Background(), paid.ID, PaymentOutcome{Success: true}); !errors.Is(err, ErrValidation) {
		t.Fatalf("missing reference err = %v, want validation error", err)
	}
}

func TestSetDoctorDecision(t *testing.T) {
	tests := []struct {
		decision Decision
		want     AppointmentStatus
	}{
		{DecisionAccept, StatusConfirmed},
		{DecisionDeny, StatusCancelled},
	}

	for _, tt := range tests {
		t.Run(string(tt.decision), func(t *testing.T) {
			h := newHarness(t, nil)
			appt := h.mustDraft(t)
			if _, err := h.svc.RecordPaymentOutcome(context.Background(), appt.ID, PaymentOutcome{Success: true, Reference: "pi_1"}); err != nil {
				t.Fatalf("pay: %v", err)
			}

			updated, err := h.svc.SetDoctorDecision(context.Background(), appt.ID, tt.decision)
			if err != nil {
				t.Fatalf("SetDoctorDecision: %v", err)
			}
			if updated.Status != tt.want {
				t.Fatalf("status = %s, want %s", updated.Status, tt.want)
			}
			if updated.PaymentStatus != PaymentCompleted {
				t.Fatalf("payment status changed to %s", updated.PaymentStatus)
			}

			if _, err := h.svc.SetDoctorDecision(context.Background(), appt.ID, DecisionAccept); !errors.Is(err, ErrInvalidStatusTransition) {
				t.Fatalf("second decision err = %v, want ErrInvalidStatusTransition", err)
			}
		})
	}
}

func TestSetDoctorDecision_Errors(t *testing.T) {
	h := newHarness(t, nil)
	appt := h.mustDraft(t)

	if _, err := h.svc.SetDoctorDecision(context.Background(), appt.ID, Decision("maybe")); !errors.Is(err, ErrValidation) {
		t.Fatalf("err = %v, want validation error", err)
	}
	if _, err := h.svc.SetDoctorDecision(context.Background(), uuid.New(), DecisionAccept); !errors.Is(err, ErrAppointmentNotFound) {
		t.Fatalf("err = %v, want ErrAppointmentNotFound", err)
	}
}

func TestDeleteAppointment_ConfirmedIsRejected(t *testing.T) {
	for _, ps := range []PaymentStatus{PaymentPending, PaymentCompleted, PaymentFailed} {
		t.Run(string(ps), func(t *testing.T) {
			h := newHarness(t, nil)
			appt := h.repo.put(Appointment{Status: StatusConfirmed, PaymentStatus: ps, Date: civilDate(testNow)})

			if err := h.svc.DeleteAppointment(context.Background(), appt.ID); !errors.Is(err, ErrAppointmentConfirmed) {
				t.Fatalf("err = %v, want ErrAppointmentConfirmed", err)
			}
			if _, ok := h.repo.get(appt.ID); !ok {
				t.Fatal("confirmed appointment was deleted")
			}
		})
	}
}

func TestDeleteAppointment_Draft(t *testing.T) {
	h := newHarness(t, nil)
	appt := h.mustDraft(t)

	if err := h.svc.DeleteAppointment(context.Background(), appt.ID); err != nil {
		t.Fatalf("DeleteAppointment: %v", err)
	}
	if _, ok := h.repo.get(appt.ID); ok {
		t.Fatal("draft still present")
	}
	if err := h.svc.DeleteAppointment(context.Background(), appt.ID); !errors.Is(err, ErrAppointmentNotFound) {
		t.Fatalf("second delete err = %v, want ErrAppointmentNotFound", err)
	}
}

func TestListAppointmentsByPatient(t *testing.T) {
	h := newHarness(t, nil)
	patient := uuid.New()
	for i := 0; i < 3; i++ {
		h.repo.put(Appointment{PatientID: patient, Date: civilDate(testNow.AddDate(0, 0, i))})
	}
	h.repo.put(Appointment{PatientID: uuid.New(), Date: civilDate(testNow)})

	got, err := h.svc.ListAppointmentsByPatient(context.Background(), patient, 0, 0)
	if err != nil {
		t.Fatalf("ListAppointmentsByPatient: %v", err)
	}
	if len(got) != 3 {
		t.Fatalf("got %d appointments, want 3", len(got))
	}

	got, _ = h.svc.ListAppointmentsByPatient(context.Background(), patient, 2, 2)
	if len(got) != 1 {
		t.Fatalf("page 2 has %d appointments, want 1", len(got))
	}
}
