package api

import (
	"errors"
	"net/http"
	"time"

	"github.com/hackgods/doctor-booking/internal/availability"
	"github.com/hackgods/doctor-booking/internal/doctor"
)

func getAvailabilityHandler(svc DoctorService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := pathUUID(w, r, "invalid_doctor_id")
		if !ok {
			return
		}

		week, err := svc.GetAvailability(r.Context(), id)
		if err != nil {
			handleServiceError(w, r, err)
			return
		}

		writeJSON(w, http.StatusOK, week)
	}
}

func putAvailabilityHandler(svc DoctorService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := pathUUID(w, r, "invalid_doctor_id")
		if !ok {
			return
		}

		var week availability.WeeklyAvailability
		if !decodeJSON(w, r, &week) {
			return
		}

		saved, err := svc.SaveAvailability(r.Context(), id, week)
		if err != nil {
			handleServiceError(w, r, err)
			return
		}

		writeJSON(w, http.StatusOK, saved)
	}
}

// getSlotsHandler answers a closed day with 200 and available=false so
// clients can tell it apart from an open day that has no slots.
func getSlotsHandler(svc DoctorService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := pathUUID(w, r, "invalid_doctor_id")
		if !ok {
			return
		}

		date, err := time.Parse(time.DateOnly, r.URL.Query().Get("date"))
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_date", "date query parameter must be YYYY-MM-DD")
			return
		}

		resp := SlotsResponse{
			DoctorID:  id,
			Date:      date.Format(time.DateOnly),
			Weekday:   date.Weekday().String(),
			Available: true,
			Slots:     []string{},
		}

		slots, err := svc.BookableSlots(r.Context(), id, date)
		switch {
		case errors.Is(err, doctor.ErrDoctorUnavailable):
			resp.Available = false
		case err != nil:
			handleServiceError(w, r, err)
			return
		default:
			if slots != nil {
				resp.Slots = slots
			}
		}

		writeJSON(w, http.StatusOK, resp)
	}
}
