package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math/rand"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"
)

type SimConfig struct {
	APIBaseURL    string
	Duration      time.Duration
	Workers       int
	BookingRatio  float64
	PaymentRatio  float64
	DecisionRatio float64
	ReadRatio     float64
	FailureRate   float64 // share of payments reported as failed
	DaysAhead     int
	PatientLimit  int
	DoctorLimit   int
}

// normalize rescales the operation ratios so they sum to one.
func (c *SimConfig) normalize() {
	total := c.BookingRatio + c.PaymentRatio + c.DecisionRatio + c.ReadRatio
	if total > 0 {
		c.BookingRatio /= total
		c.PaymentRatio /= total
		c.DecisionRatio /= total
		c.ReadRatio /= total
	}
}

func (c SimConfig) validate() error {
	if c.Workers <= 0 {
		return fmt.Errorf("workers must be > 0")
	}
	if c.Duration <= 0 {
		return fmt.Errorf("duration must be > 0")
	}
	if c.DaysAhead <= 0 {
		return fmt.Errorf("days-ahead must be > 0")
	}
	return nil
}

type trackedAppointment struct {
	ID        uuid.UUID
	PatientID uuid.UUID
	Payment   string // reference once paid
}

type DataPool struct {
	Patients []uuid.UUID
	Doctors  []uuid.UUID

	mu           sync.RWMutex
	appointments []trackedAppointment
}

func (dp *DataPool) AddAppointment(a trackedAppointment) {
	dp.mu.Lock()
	defer dp.mu.Unlock()
	dp.appointments = append(dp.appointments, a)
}

func (dp *DataPool) RandomAppointment(rng *rand.Rand) (trackedAppointment, bool) {
	dp.mu.RLock()
	defer dp.mu.RUnlock()
	if len(dp.appointments) == 0 {
		return trackedAppointment{}, false
	}
	return dp.appointments[rng.Intn(len(dp.appointments))], true
}

func (dp *DataPool) SetPayment(id uuid.UUID, reference string) {
	dp.mu.Lock()
	defer dp.mu.Unlock()
	for i := range dp.appointments {
		if dp.appointments[i].ID == id {
			dp.appointments[i].Payment = reference
			return
		}
	}
}

func (dp *DataPool) RemoveAppointment(id uuid.UUID) {
	dp.mu.Lock()
	defer dp.mu.Unlock()
	for i := range dp.appointments {
		if dp.appointments[i].ID == id {
			dp.appointments = append(dp.appointments[:i], dp.appointments[i+1:]...)
			return
		}
	}
}

func loadDataPool(ctx context.Context, pool *pgxpool.Pool, cfg SimConfig) (*DataPool, error) {
	dataPool := &DataPool{}

	var err error
	dataPool.Patients, err = loadIDs(ctx, pool, `SELECT id FROM patients LIMIT $1`, cfg.PatientLimit)
	if err != nil {
		return nil, fmt.Errorf("load patients: %w", err)
	}
	dataPool.Doctors, err = loadIDs(ctx, pool, `SELECT id FROM doctors LIMIT $1`, cfg.DoctorLimit)
	if err != nil {
		return nil, fmt.Errorf("load doctors: %w", err)
	}

	if len(dataPool.Patients) == 0 {
		return nil, fmt.Errorf("no patients loaded")
	}
	if len(dataPool.Doctors) == 0 {
		return nil, fmt.Errorf("no doctors loaded")
	}

	return dataPool, nil
}

func loadIDs(ctx context.Context, pool *pgxpool.Pool, query string, limit int) ([]uuid.UUID, error) {
	rows, err := pool.Query(ctx, query, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ids []uuid.UUID
	for rows.Next() {
		var id uuid.UUID
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

type Simulator struct {
	config  SimConfig
	pool    *DataPool
	client  *http.Client
	metrics Metrics
	logger  zerolog.Logger
}

func (s *Simulator) Run(parent context.Context) {
	ctx, cancel := context.WithTimeout(parent, s.config.Duration)
	defer cancel()

	s.logger.Info().Dur("duration", s.config.Duration).Int("workers", s.config.Workers).Msg("starting simulation")

	var wg sync.WaitGroup
	for i := 0; i < s.config.Workers; i++ {
		wg.Add(1)
		go func(workerID int) {
			defer wg.Done()
			s.worker(ctx, workerID)
		}(i)
	}

	wg.Wait()
	s.logger.Info().Msg("simulation complete")
}

func (s *Simulator) worker(ctx context.Context, workerID int) {
	rng := rand.New(rand.NewSource(time.Now().UnixNano() + int64(workerID)))

	for ctx.Err() == nil {
		// Select operation based on ratios
		r := rng.Float64()
		switch {
		case r < s.config.BookingRatio:
			s.doBooking(ctx, rng)
		case r < s.config.BookingRatio+s.config.PaymentRatio:
			s.doPayment(ctx, rng)
		case r < s.config.BookingRatio+s.config.PaymentRatio+s.config.DecisionRatio:
			s.doDecision(ctx, rng)
		default:
			switch rng.Intn(4) {
			case 0:
				s.doReadByID(ctx, rng)
			case 1:
				s.doListByPatient(ctx, rng)
			case 2:
				s.doDelete(ctx, rng)
			case 3:
				s.doRefund(ctx, rng)
			}
		}
	}
}

// call issues one JSON request and decodes a successful body into out.
func (s *Simulator) call(ctx context.Context, method, path string, body, out any) (int, time.Duration, error) {
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			return 0, 0, err
		}
		reader = bytes.NewReader(raw)
	}

	req, err := http.NewRequestWithContext(ctx, method, s.config.APIBaseURL+path, reader)
	if err != nil {
		return 0, 0, err
	}
	req.Header.Set("Content-Type", "application/json")

	start := time.Now()
	resp, err := s.client.Do(req)
	latency := time.Since(start)
	if err != nil {
		return 0, latency, err
	}
	defer resp.Body.Close()

	if out != nil && resp.StatusCode < 300 {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return resp.StatusCode, latency, err
		}
	} else {
		_, _ = io.Copy(io.Discard, resp.Body)
	}
	return resp.StatusCode, latency, nil
}

func rejected(status int) bool {
	return status == http.StatusConflict || status == http.StatusPaymentRequired || status == http.StatusUnprocessableEntity
}

func (s *Simulator) doBooking(ctx context.Context, rng *rand.Rand) {
	doctorID := s.pool.Doctors[rng.Intn(len(s.pool.Doctors))]
	patientID := s.pool.Patients[rng.Intn(len(s.pool.Patients))]
	date := time.Now().AddDate(0, 0, 1+rng.Intn(s.config.DaysAhead)).Format(time.DateOnly)

	var slots struct {
		Available bool     `json:"available"`
		Slots     []string `json:"slots"`
	}
	status, latency, err := s.call(ctx, http.MethodGet, fmt.Sprintf("/doctors/%s/slots?date=%s", doctorID, date), nil, &slots)
	s.metrics.Slots.Record(latency, err == nil && status == http.StatusOK, false)
	if err != nil || status != http.StatusOK || !slots.Available || len(slots.Slots) == 0 {
		return
	}

	reqBody := map[string]any{
		"doctor_id":  doctorID.String(),
		"patient_id": patientID.String(),
		"date":       date,
		"time":       slots.Slots[rng.Intn(len(slots.Slots))],
		"reason":     "simulated visit",
		"contact": map[string]string{
			"name":  "Sim Patient",
			"email": "sim+" + patientID.String()[:8] + "@example.com",
		},
	}

	var created struct {
		ID uuid.UUID `json:"id"`
	}
	status, latency, err = s.call(ctx, http.MethodPost, "/appointments", reqBody, &created)
	success := err == nil && status == http.StatusCreated
	s.metrics.Booking.Record(latency, success, err == nil && rejected(status))
	if success && created.ID != uuid.Nil {
		s.pool.AddAppointment(trackedAppointment{ID: created.ID, PatientID: patientID})
	}
}

func (s *Simulator) doPayment(ctx context.Context, rng *rand.Rand) {
	appt, ok := s.pool.RandomAppointment(rng)
	if !ok {
		return
	}

	reference := "pi_sim_" + uuid.NewString()[:12]
	success := rng.Float64() >= s.config.FailureRate

	status, latency, err := s.call(ctx, http.MethodPost, "/appointments/"+appt.ID.String()+"/payment", map[string]any{
		"success":      success,
		"reference":    reference,
		"amount_cents": 2500 + rng.Intn(10000),
		"currency":     "usd",
	}, nil)
	ok = err == nil && status == http.StatusOK
	s.metrics.Payment.Record(latency, ok, err == nil && rejected(status))
	if ok {
		s.pool.SetPayment(appt.ID, reference)
	}
}

func (s *Simulator) doDecision(ctx context.Context, rng *rand.Rand) {
	appt, ok := s.pool.RandomAppointment(rng)
	if !ok {
		return
	}

	decision := "accept"
	if rng.Intn(4) == 0 {
		decision = "deny"
	}

	status, latency, err := s.call(ctx, http.MethodPost, "/appointments/"+appt.ID.String()+"/decision",
		map[string]string{"decision": decision}, nil)
	s.metrics.Decision.Record(latency, err == nil && status == http.StatusOK, err == nil && rejected(status))
}

func (s *Simulator) doRefund(ctx context.Context, rng *rand.Rand) {
	appt, ok := s.pool.RandomAppointment(rng)
	if !ok || appt.Payment == "" {
		return
	}

	// Future appointments are never eligible, so most of these are rejected.
	status, latency, err := s.call(ctx, http.MethodPost, "/appointments/"+appt.ID.String()+"/refund",
		map[string]string{"payment_reference": appt.Payment}, nil)
	s.metrics.Refund.Record(latency, err == nil && status == http.StatusOK, err == nil && rejected(status))
	if err == nil && status == http.StatusOK {
		s.pool.RemoveAppointment(appt.ID)
	}
}

func (s *Simulator) doDelete(ctx context.Context, rng *rand.Rand) {
	appt, ok := s.pool.RandomAppointment(rng)
	if !ok || appt.Payment != "" {
		return
	}

	status, latency, err := s.call(ctx, http.MethodDelete, "/appointments/"+appt.ID.String(), nil, nil)
	success := err == nil && status == http.StatusNoContent
	s.metrics.Delete.Record(latency, success, err == nil && (rejected(status) || status == http.StatusNotFound))
	if success {
		s.pool.RemoveAppointment(appt.ID)
	}
}

func (s *Simulator) doReadByID(ctx context.Context, rng *rand.Rand) {
	appt, ok := s.pool.RandomAppointment(rng)
	if !ok {
		return
	}

	status, latency, err := s.call(ctx, http.MethodGet, "/appointments/"+appt.ID.String(), nil, nil)
	s.metrics.ReadByID.Record(latency, err == nil && status == http.StatusOK, false)
}

func (s *Simulator) doListByPatient(ctx context.Context, rng *rand.Rand) {
	patientID := s.pool.Patients[rng.Intn(len(s.pool.Patients))]

	status, latency, err := s.call(ctx, http.MethodGet,
		fmt.Sprintf("/appointments?patient_id=%s&limit=20&offset=0", patientID), nil, nil)
	s.metrics.ListByPatient.Record(latency, err == nil && status == http.StatusOK, false)
}
