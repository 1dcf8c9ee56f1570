package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/hackgods/clinic-scheduling/internal/appointment"
)

func listPatientsHandler(svc ClinicService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		ctx := r.Context()

		var (
			list []appointment.Patient
			err  error
		)
		switch {
		case q.Get("view") == "recent":
			list, err = svc.RecentPatients(ctx)
		case q.Get("q") != "":
			list, err = svc.SearchPatients(ctx, q.Get("q"))
		case q.Get("status") != "":
			list, err = svc.PatientsByStatus(ctx, appointment.PatientStatus(q.Get("status")))
		default:
			list, err = svc.ListPatients(ctx)
		}
		if err != nil {
			handleError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, toPatientResponses(list))
	}
}

func getPatientHandler(svc ClinicService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		p, err := svc.GetPatient(r.Context(), chi.URLParam(r, "id"))
		if err != nil {
			handleError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, toPatientResponse(p))
	}
}

func createPatientHandler(svc ClinicService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req PatientRequest
		if !decodeJSON(w, r, &req) {
			return
		}
		in, err := req.patient()
		if err != nil {
			handleError(w, err)
			return
		}
		p, err := svc.CreatePatient(r.Context(), in)
		if err != nil {
			handleError(w, err)
			return
		}
		writeJSON(w, http.StatusCreated, toPatientResponse(p))
	}
}

func updatePatientHandler(svc ClinicService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req PatientRequest
		if !decodeJSON(w, r, &req) {
			return
		}
		patch, err := req.patch()
		if err != nil {
			handleError(w, err)
			return
		}
		p, err := svc.UpdatePatient(r.Context(), chi.URLParam(r, "id"), patch)
		if err != nil {
			handleError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, toPatientResponse(p))
	}
}

func deletePatientHandler(svc ClinicService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := svc.DeletePatient(r.Context(), chi.URLParam(r, "id")); err != nil {
			handleError(w, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

func patientStatsHandler(svc ClinicService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		st, err := svc.PatientStats(r.Context())
		if err != nil {
			handleError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, toPatientStatsResponse(st))
	}
}

// listDoctorsHandler applies the first filter present: available_on, q,
// specialization, status.
func listDoctorsHandler(svc ClinicService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		ctx := r.Context()

		var (
			list []appointment.Doctor
			err  error
		)
		switch {
		case q.Get("available_on") != "":
			day, perr := appointment.ParseWeekday(q.Get("available_on"))
			if perr != nil {
				handleError(w, perr)
				return
			}
			list, err = svc.AvailableDoctors(ctx, day)
		case q.Get("q") != "":
			list, err = svc.SearchDoctors(ctx, q.Get("q"))
		case q.Get("specialization") != "":
			list, err = svc.DoctorsBySpecialization(ctx, q.Get("specialization"))
		case q.Get("status") != "":
			list, err = svc.DoctorsByStatus(ctx, appointment.DoctorStatus(q.Get("status")))
		default:
			list, err = svc.ListDoctors(ctx)
		}
		if err != nil {
			handleError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, toDoctorResponses(list))
	}
}

func getDoctorHandler(svc ClinicService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		d, err := svc.GetDoctor(r.Context(), chi.URLParam(r, "id"))
		if err != nil {
			handleError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, toDoctorResponse(d))
	}
}

func createDoctorHandler(svc ClinicService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req DoctorRequest
		if !decodeJSON(w, r, &req) {
			return
		}
		in, err := req.doctor()
		if err != nil {
			handleError(w, err)
			return
		}
		d, err := svc.CreateDoctor(r.Context(), in)
		if err != nil {
			handleError(w, err)
			return
		}
		writeJSON(w, http.StatusCreated, toDoctorResponse(d))
	}
}

func updateDoctorHandler(svc ClinicService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req DoctorRequest
		if !decodeJSON(w, r, &req) {
			return
		}
		patch, err := req.patch()
		if err != nil {
			handleError(w, err)
			return
		}
		d, err := svc.UpdateDoctor(r.Context(), chi.URLParam(r, "id"), patch)
		if err != nil {
			handleError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, toDoctorResponse(d))
	}
}

func deleteDoctorHandler(svc ClinicService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := svc.DeleteDoctor(r.Context(), chi.URLParam(r, "id")); err != nil {
			handleError(w, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

func doctorStatsHandler(svc ClinicService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		st, err := svc.DoctorStats(r.Context())
		if err != nil {
			handleError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, toDoctorStatsResponse(st))
	}
}
