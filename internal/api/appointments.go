package api

import (
	"errors"
	"net/http"
	"strings"

	"github.com/google/uuid"

	"github.com/hackgods/doctor-booking/internal/appointment"
)

func createAppointmentHandler(svc AppointmentService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req CreateAppointmentRequest
		if !decodeJSON(w, r, &req) {
			return
		}

		doctorID, err := uuid.Parse(req.DoctorID)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_doctor_id", "doctor_id must be a valid UUID")
			return
		}

		patientID, err := uuid.Parse(req.PatientID)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_patient_id", "patient_id must be a valid UUID")
			return
		}

		appt, err := svc.CreateDraftAppointment(r.Context(), appointment.DraftRequest{
			DoctorID:  doctorID,
			PatientID: patientID,
			Date:      req.Date,
			Time:      req.Time,
			Reason:    req.Reason,
			Contact: appointment.Contact{
				Name:  req.Contact.Name,
				Email: req.Contact.Email,
				Phone: req.Contact.Phone,
			},
		})
		if err != nil {
			handleServiceError(w, r, err)
			return
		}

		w.Header().Set("Location", "/appointments/"+appt.ID.String())
		writeJSON(w, http.StatusCreated, toAppointmentResponse(appt, svc.Today()))
	}
}

func listAppointmentsHandler(svc AppointmentService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		patientID, err := uuid.Parse(r.URL.Query().Get("patient_id"))
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_patient_id", "patient_id query parameter must be a valid UUID")
			return
		}

		limit, err := queryInt(r, "limit", 20)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_limit", "limit must be an integer")
			return
		}
		offset, err := queryInt(r, "offset", 0)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_offset", "offset must be an integer")
			return
		}

		limit, offset = appointment.ClampPage(limit, offset)

		appts, err := svc.ListAppointmentsByPatient(r.Context(), patientID, limit, offset)
		if err != nil {
			handleServiceError(w, r, err)
			return
		}

		today := svc.Today()
		resp := AppointmentListResponse{
			Appointments: make([]AppointmentResponse, 0, len(appts)),
			Limit:        limit,
			Offset:       offset,
		}
		for i := range appts {
			resp.Appointments = append(resp.Appointments, toAppointmentResponse(&appts[i], today))
		}

		writeJSON(w, http.StatusOK, resp)
	}
}

func getAppointmentHandler(svc AppointmentService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := pathUUID(w, r, "invalid_appointment_id")
		if !ok {
			return
		}

		appt, err := svc.GetAppointment(r.Context(), id)
		if err != nil {
			handleServiceError(w, r, err)
			return
		}

		writeJSON(w, http.StatusOK, toAppointmentResponse(appt, svc.Today()))
	}
}

func deleteAppointmentHandler(svc AppointmentService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := pathUUID(w, r, "invalid_appointment_id")
		if !ok {
			return
		}

		if err := svc.DeleteAppointment(r.Context(), id); err != nil {
			handleServiceError(w, r, err)
			return
		}

		w.WriteHeader(http.StatusNoContent)
	}
}

func recordPaymentHandler(svc AppointmentService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := pathUUID(w, r, "invalid_appointment_id")
		if !ok {
			return
		}

		var req PaymentRequest
		if !decodeJSON(w, r, &req) {
			return
		}

		appt, err := svc.RecordPaymentOutcome(r.Context(), id, appointment.PaymentOutcome{
			Success:     req.Success,
			Reference:   req.Reference,
			AmountCents: req.AmountCents,
			Currency:    strings.ToLower(req.Currency),
		})
		if err != nil {
			// The draft survives a failed payment; hand it back so the client can retry or delete.
			if errors.Is(err, appointment.ErrPaymentFailed) && appt != nil {
				writeJSON(w, http.StatusPaymentRequired, PaymentFailedResponse{
					Error:       "payment_failed",
					Details:     err.Error(),
					Appointment: toAppointmentResponse(appt, svc.Today()),
				})
				return
			}
			handleServiceError(w, r, err)
			return
		}

		writeJSON(w, http.StatusOK, toAppointmentResponse(appt, svc.Today()))
	}
}

func decisionHandler(svc AppointmentService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := pathUUID(w, r, "invalid_appointment_id")
		if !ok {
			return
		}

		var req DecisionRequest
		if !decodeJSON(w, r, &req) {
			return
		}

		decision := appointment.Decision(strings.ToLower(strings.TrimSpace(req.Decision)))
		appt, err := svc.SetDoctorDecision(r.Context(), id, decision)
		if err != nil {
			handleServiceError(w, r, err)
			return
		}

		writeJSON(w, http.StatusOK, toAppointmentResponse(appt, svc.Today()))
	}
}

func refundHandler(svc AppointmentService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := pathUUID(w, r, "invalid_appointment_id")
		if !ok {
			return
		}

		var req RefundRequest
		if !decodeJSON(w, r, &req) {
			return
		}

		if err := svc.RequestRefund(r.Context(), id, req.PaymentReference); err != nil {
			handleServiceError(w, r, err)
			return
		}

		writeJSON(w, http.StatusOK, RefundResponse{AppointmentID: id, Status: "refunded"})
	}
}
