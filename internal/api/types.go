package api

import (
	"time"

	"github.com/google/uuid"

	"github.com/hackgods/doctor-booking/internal/appointment"
)

type ContactRequest struct {
	Name  string `json:"name"`
	Email string `json:"email"`
	Phone string `json:"phone"`
}

type CreateAppointmentRequest struct {
	DoctorID  string         `json:"doctor_id"`
	PatientID string         `json:"patient_id"`
	Date      string         `json:"date"`
	Time      string         `json:"time"`
	Reason    string         `json:"reason"`
	Contact   ContactRequest `json:"contact"`
}

type PaymentRequest struct {
	Success     bool   `json:"success"`
	Reference   string `json:"reference"`
	AmountCents int64  `json:"amount_cents"`
	Currency    string `json:"currency"`
}

type DecisionRequest struct {
	Decision string `json:"decision"`
}

type RefundRequest struct {
	PaymentReference string `json:"payment_reference"`
}

type ContactResponse struct {
	Name  string `json:"name"`
	Email string `json:"email"`
	Phone string `json:"phone,omitempty"`
}

type AppointmentResponse struct {
	ID             uuid.UUID       `json:"id"`
	Reference      string          `json:"reference"`
	DoctorID       uuid.UUID       `json:"doctor_id"`
	PatientID      uuid.UUID       `json:"patient_id"`
	Date           string          `json:"date"`
	Time           string          `json:"time"`
	Reason         string          `json:"reason"`
	Contact        ContactResponse `json:"contact"`
	Status         string          `json:"status"`
	PaymentStatus  string          `json:"payment_status"`
	RefundEligible bool            `json:"refund_eligible"`
	CreatedAt      time.Time       `json:"created_at"`
	UpdatedAt      time.Time       `json:"updated_at"`
}

func toAppointmentResponse(a *appointment.Appointment, today time.Time) AppointmentResponse {
	return AppointmentResponse{
		ID:        a.ID,
		Reference: a.Reference,
		DoctorID:  a.DoctorID,
		PatientID: a.PatientID,
		Date:      a.Date.Format(time.DateOnly),
		Time:      a.Time,
		Reason:    a.Reason,
		Contact: ContactResponse{
			Name:  a.Contact.Name,
			Email: a.Contact.Email,
			Phone: a.Contact.Phone,
		},
		Status:         string(a.Status),
		PaymentStatus:  string(a.PaymentStatus),
		RefundEligible: appointment.IsRefundEligible(a, today),
		CreatedAt:      a.CreatedAt,
		UpdatedAt:      a.UpdatedAt,
	}
}

type AppointmentListResponse struct {
	Appointments []AppointmentResponse `json:"appointments"`
	Limit        int                   `json:"limit"`
	Offset       int                   `json:"offset"`
}

type SlotsResponse struct {
	DoctorID  uuid.UUID `json:"doctor_id"`
	Date      string    `json:"date"`
	Weekday   string    `json:"weekday"`
	Available bool      `json:"available"`
	Slots     []string  `json:"slots"`
}

type RefundResponse struct {
	AppointmentID uuid.UUID `json:"appointment_id"`
	Status        string    `json:"status"`
}

type PaymentFailedResponse struct {
	Error       string              `json:"error"`
	Details     string              `json:"details,omitempty"`
	Appointment AppointmentResponse `json:"appointment"`
}

type ErrorResponse struct {
	Error    string   `json:"error"`
	Details  string   `json:"details,omitempty"`
	Problems []string `json:"problems,omitempty"`
}
