package api

import (
	"context"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/hackgods/clinic-scheduling/internal/appointment"
)

func createAppointmentHandler(svc ClinicService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req CreateAppointmentRequest
		if !decodeJSON(w, r, &req) {
			return
		}
		in, err := req.input()
		if err != nil {
			handleError(w, err)
			return
		}

		appt, err := svc.CreateAppointment(r.Context(), in)
		if err != nil {
			handleError(w, err)
			return
		}
		writeJSON(w, http.StatusCreated, toAppointmentResponse(appt))
	}
}

func getAppointmentHandler(svc ClinicService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		appt, err := svc.GetAppointment(r.Context(), chi.URLParam(r, "id"))
		if err != nil {
			handleError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, toAppointmentResponse(appt))
	}
}

func updateAppointmentHandler(svc ClinicService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req UpdateAppointmentRequest
		if !decodeJSON(w, r, &req) {
			return
		}
		patch, err := req.patch()
		if err != nil {
			handleError(w, err)
			return
		}

		appt, err := svc.UpdateAppointment(r.Context(), chi.URLParam(r, "id"), patch)
		if err != nil {
			handleError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, toAppointmentResponse(appt))
	}
}

func deleteAppointmentHandler(svc ClinicService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := svc.DeleteAppointment(r.Context(), chi.URLParam(r, "id")); err != nil {
			handleError(w, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

func updateStatusHandler(svc ClinicService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req StatusRequest
		if !decodeJSON(w, r, &req) {
			return
		}
		appt, err := svc.UpdateStatus(r.Context(), chi.URLParam(r, "id"), appointment.AppointmentStatus(req.Status))
		if err != nil {
			handleError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, toAppointmentResponse(appt))
	}
}

type transitionFunc func(ctx context.Context, id string) (*appointment.AppointmentDetail, error)

func transitionHandler(fn transitionFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		appt, err := fn(r.Context(), chi.URLParam(r, "id"))
		if err != nil {
			handleError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, toAppointmentResponse(appt))
	}
}

// listAppointmentsHandler serves one view per request. Filters are not combined;
// the first one present wins, in the order view, date, doctor_id, patient_id, status.
func listAppointmentsHandler(svc ClinicService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		ctx := r.Context()

		var (
			list []appointment.AppointmentDetail
			err  error
		)
		switch {
		case q.Get("view") == "today":
			list, err = svc.TodayAppointments(ctx)
		case q.Get("view") == "upcoming":
			list, err = svc.UpcomingAppointments(ctx)
		case q.Get("view") != "":
			writeError(w, http.StatusBadRequest, "invalid_view", "view must be today or upcoming")
			return
		case q.Get("date") != "":
			date, perr := appointment.ParseDate(q.Get("date"))
			if perr != nil {
				handleError(w, perr)
				return
			}
			list, err = svc.AppointmentsByDate(ctx, date)
		case q.Get("doctor_id") != "":
			list, err = svc.AppointmentsByDoctor(ctx, q.Get("doctor_id"))
		case q.Get("patient_id") != "":
			list, err = svc.AppointmentsByPatient(ctx, q.Get("patient_id"))
		case q.Get("status") != "":
			list, err = svc.AppointmentsByStatus(ctx, appointment.AppointmentStatus(q.Get("status")))
		default:
			list, err = svc.ListAppointments(ctx)
		}
		if err != nil {
			handleError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, toAppointmentResponses(list))
	}
}

func appointmentStatsHandler(svc ClinicService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		st, err := svc.AppointmentStats(r.Context())
		if err != nil {
			handleError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, toStatsResponse(st))
	}
}

func conflictHandler(svc ClinicService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		date, err := appointment.ParseDate(q.Get("date"))
		if err != nil {
			handleError(w, err)
			return
		}
		start, err := appointment.ParseTimeOfDay(q.Get("time"))
		if err != nil {
			handleError(w, err)
			return
		}
		duration := appointment.DefaultDuration
		if raw := q.Get("duration"); raw != "" {
			if duration, err = strconv.Atoi(raw); err != nil {
				writeError(w, http.StatusBadRequest, "invalid_duration", "duration must be an integer number of minutes")
				return
			}
		}

		conflict, err := svc.HasConflict(r.Context(), q.Get("doctor_id"), date, start, duration, q.Get("exclude_id"))
		if err != nil {
			handleError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, ConflictResponse{Conflict: conflict})
	}
}

func slotsHandler(svc ClinicService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		date, err := appointment.ParseDate(r.URL.Query().Get("date"))
		if err != nil {
			handleError(w, err)
			return
		}
		slots, err := svc.ComputeSlots(r.Context(), chi.URLParam(r, "id"), date)
		if err != nil {
			handleError(w, err)
			return
		}

		resp := make([]SlotResponse, 0, len(slots))
		for _, s := range slots {
			resp = append(resp, SlotResponse{Time: s.Time.String(), Available: s.Available})
		}
		writeJSON(w, http.StatusOK, resp)
	}
}

func doctorAppointmentsHandler(svc ClinicService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		list, err := svc.AppointmentsByDoctor(r.Context(), chi.URLParam(r, "id"))
		if err != nil {
			handleError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, toAppointmentResponses(list))
	}
}

func patientAppointmentsHandler(svc ClinicService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		list, err := svc.AppointmentsByPatient(r.Context(), chi.URLParam(r, "id"))
		if err != nil {
			handleError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, toAppointmentResponses(list))
	}
}

func dashboardHandler(svc ClinicService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		d, err := svc.Dashboard(r.Context())
		if err != nil {
			handleError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, DashboardResponse{
			Appointments:      toStatsResponse(d.Appointments),
			Doctors:           toDoctorStatsResponse(d.Doctors),
			Patients:          toPatientStatsResponse(d.Patients),
			RecentPatients:    toPatientResponses(d.RecentPatients),
			TodayAppointments: toAppointmentResponses(d.TodayAppointments),
		})
	}
}

func trendsHandler(svc ClinicService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		trends, err := svc.AppointmentTrends(r.Context())
		if err != nil {
			handleError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, toTrendResponses(trends))
	}
}

func performanceHandler(svc ClinicService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		p, err := svc.PerformanceMetrics(r.Context())
		if err != nil {
			handleError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, PerformanceResponse{
			TotalAppointments:     p.TotalAppointments,
			CompletedAppointments: p.CompletedAppointments,
			CompletionRate:        p.CompletionRate,
			AverageRating:         p.AverageRating,
		})
	}
}

func alertsHandler(svc ClinicService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		alerts, err := svc.SystemAlerts(r.Context())
		if err != nil {
			handleError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, toAlertResponses(alerts))
	}
}

func resyncHandler(rs Resyncer) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if rs == nil {
			writeError(w, http.StatusServiceUnavailable, "realtime_disabled", "no change feed is configured")
			return
		}
		writeJSON(w, http.StatusOK, ResyncResponse{Invalidated: rs.Resync()})
	}
}
