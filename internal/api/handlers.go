package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/careops/clinicbook/internal/booking"
	"github.com/careops/clinicbook/internal/calendar"
	"github.com/careops/clinicbook/internal/catalog"
	"github.com/careops/clinicbook/internal/metrics"
)

func bookHandler(svc *booking.Service, col *metrics.Collector) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req BookRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid_request_body", "could not parse JSON")
			return
		}

		domainReq, err := toDomainRequest(req)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_request", err.Error())
			return
		}

		appt, err := svc.Book(r.Context(), domainReq)
		if err != nil {
			var conflictErr *booking.ConflictError
			if errors.As(err, &conflictErr) {
				col.ConflictsTotal.WithLabelValues(string(conflictErr.Reason)).Inc()
			}
			col.BookingsTotal.WithLabelValues(bookingOutcome(err)).Inc()
			handleBookingError(w, err)
			return
		}

		col.BookingsTotal.WithLabelValues("success").Inc()
		writeJSON(w, http.StatusCreated, toAppointmentResponse(appt))
	}
}

func rescheduleHandler(svc *booking.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := parseIDParam(w, r)
		if !ok {
			return
		}

		var req RescheduleRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid_request_body", "could not parse JSON")
			return
		}

		appt, err := svc.Reschedule(r.Context(), id, calendar.Interval{Start: req.Start, End: req.End})
		if err != nil {
			handleBookingError(w, err)
			return
		}

		writeJSON(w, http.StatusOK, toAppointmentResponse(appt))
	}
}

func cancelHandler(svc *booking.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := parseIDParam(w, r)
		if !ok {
			return
		}

		appt, err := svc.Cancel(r.Context(), id)
		if err != nil {
			handleBookingError(w, err)
			return
		}

		writeJSON(w, http.StatusOK, toAppointmentResponse(appt))
	}
}

func updateStatusHandler(svc *booking.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := parseIDParam(w, r)
		if !ok {
			return
		}

		var req StatusRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid_request_body", "could not parse JSON")
			return
		}

		appt, err := svc.UpdateStatus(r.Context(), id, booking.Status(req.Status))
		if err != nil {
			handleBookingError(w, err)
			return
		}

		writeJSON(w, http.StatusOK, toAppointmentResponse(appt))
	}
}

func getAppointmentHandler(svc *booking.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := parseIDParam(w, r)
		if !ok {
			return
		}

		appt, err := svc.GetAppointment(r.Context(), id)
		if err != nil {
			handleBookingError(w, err)
			return
		}

		writeJSON(w, http.StatusOK, toAppointmentResponse(appt))
	}
}

func doctorScheduleHandler(svc *booking.Service) http.HandlerFunc {
	return scheduleHandler(svc, func(r *http.Request, clinicID, resourceID uuid.UUID, day time.Time, loc *time.Location) ([]booking.Appointment, error) {
		return svc.DoctorDay(r.Context(), clinicID, resourceID, day, loc)
	}, "doctorID")
}

func roomScheduleHandler(svc *booking.Service) http.HandlerFunc {
	return scheduleHandler(svc, func(r *http.Request, clinicID, resourceID uuid.UUID, day time.Time, loc *time.Location) ([]booking.Appointment, error) {
		return svc.RoomDay(r.Context(), clinicID, resourceID, day, loc)
	}, "roomID")
}

func scheduleHandler(svc *booking.Service, load func(r *http.Request, clinicID, resourceID uuid.UUID, day time.Time, loc *time.Location) ([]booking.Appointment, error), param string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		clinicID, err := uuid.Parse(chi.URLParam(r, "clinicID"))
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_clinic_id", "clinicID must be a valid UUID")
			return
		}
		resourceID, err := uuid.Parse(chi.URLParam(r, param))
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_resource_id", param+" must be a valid UUID")
			return
		}

		// Day boundaries are the clinic's local midnights, so the requested
		// date is interpreted in the clinic's timezone.
		loc, err := svc.ClinicLocation(r.Context(), clinicID)
		if err != nil {
			if errors.Is(err, catalog.ErrClinicNotFound) {
				writeError(w, http.StatusNotFound, "clinic_not_found", "unknown clinic")
				return
			}
			handleBookingError(w, err)
			return
		}

		dateStr := r.URL.Query().Get("date")
		day := time.Now().In(loc)
		if dateStr != "" {
			day, err = time.ParseInLocation("2006-01-02", dateStr, loc)
			if err != nil {
				writeError(w, http.StatusBadRequest, "invalid_date", "date must be YYYY-MM-DD")
				return
			}
		}

		appts, err := load(r, clinicID, resourceID, day, loc)
		if err != nil {
			handleBookingError(w, err)
			return
		}

		resp := ScheduleResponse{
			Date:         day.Format("2006-01-02"),
			Appointments: make([]AppointmentResponse, 0, len(appts)),
		}
		for i := range appts {
			resp.Appointments = append(resp.Appointments, toAppointmentResponse(&appts[i]))
		}
		writeJSON(w, http.StatusOK, resp)
	}
}

func parseIDParam(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_appointment_id", "id must be a valid UUID")
		return uuid.Nil, false
	}
	return id, true
}

func toDomainRequest(req BookRequest) (booking.Request, error) {
	clinicID, err := uuid.Parse(req.ClinicID)
	if err != nil {
		return booking.Request{}, errors.New("clinic_id must be a valid UUID")
	}
	patientID, err := uuid.Parse(req.PatientID)
	if err != nil {
		return booking.Request{}, errors.New("patient_id must be a valid UUID")
	}
	createdBy, err := uuid.Parse(req.CreatedBy)
	if err != nil {
		return booking.Request{}, errors.New("created_by must be a valid UUID")
	}

	out := booking.Request{
		ClinicID:  clinicID,
		PatientID: patientID,
		Backdated: req.Backdated,
		CreatedBy: createdBy,
		Notes:     req.Notes,
	}

	out.Interval.Start = req.Start
	if req.End != nil {
		out.Interval.End = *req.End
	}

	if out.DoctorID, err = parseOptionalUUID(req.DoctorID, "doctor_id"); err != nil {
		return booking.Request{}, err
	}
	if out.RoomID, err = parseOptionalUUID(req.RoomID, "room_id"); err != nil {
		return booking.Request{}, err
	}
	if out.ServiceID, err = parseOptionalUUID(req.ServiceID, "service_id"); err != nil {
		return booking.Request{}, err
	}

	return out, nil
}

func parseOptionalUUID(s *string, field string) (*uuid.UUID, error) {
	if s == nil {
		return nil, nil
	}
	id, err := uuid.Parse(*s)
	if err != nil {
		return nil, errors.New(field + " must be a valid UUID")
	}
	return &id, nil
}

func handleBookingError(w http.ResponseWriter, err error) {
	var (
		conflictErr   *booking.ConflictError
		validationErr *booking.ValidationError
		transitionErr *booking.InvalidTransitionError
		infraErr      *booking.InfrastructureError
	)

	switch {
	case errors.Is(err, booking.ErrAppointmentNotFound):
		writeError(w, http.StatusNotFound, "appointment_not_found", err.Error())
	case errors.Is(err, booking.ErrNotReschedulable):
		writeError(w, http.StatusConflict, "not_reschedulable", err.Error())
	case errors.As(err, &conflictErr):
		writeError(w, http.StatusConflict, string(conflictErr.Reason), conflictErr.Detail)
	case errors.As(err, &validationErr):
		writeError(w, http.StatusBadRequest, "validation_failed", err.Error())
	case errors.As(err, &transitionErr):
		writeError(w, http.StatusConflict, "invalid_status_transition", err.Error())
	case errors.As(err, &infraErr):
		writeError(w, http.StatusServiceUnavailable, "temporarily_unavailable", "please retry shortly")
	default:
		writeError(w, http.StatusInternalServerError, "internal_error", err.Error())
	}
}

func bookingOutcome(err error) string {
	var (
		conflictErr   *booking.ConflictError
		validationErr *booking.ValidationError
	)
	switch {
	case errors.As(err, &conflictErr):
		return "conflict"
	case errors.As(err, &validationErr):
		return "validation"
	default:
		return "error"
	}
}
