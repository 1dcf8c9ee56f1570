package api

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"github.com/hackgods/clinic-scheduling/internal/appointment"
)

// ClinicService is the part of *appointment.Service the HTTP layer calls.
type ClinicService interface {
	CreateAppointment(ctx context.Context, in appointment.CreateInput) (*appointment.AppointmentDetail, error)
	UpdateAppointment(ctx context.Context, id string, patch appointment.AppointmentPatch) (*appointment.AppointmentDetail, error)
	DeleteAppointment(ctx context.Context, id string) error
	UpdateStatus(ctx context.Context, id string, to appointment.AppointmentStatus) (*appointment.AppointmentDetail, error)
	Confirm(ctx context.Context, id string) (*appointment.AppointmentDetail, error)
	Complete(ctx context.Context, id string) (*appointment.AppointmentDetail, error)
	Cancel(ctx context.Context, id string) (*appointment.AppointmentDetail, error)
	HasConflict(ctx context.Context, doctorID string, date time.Time, start appointment.TimeOfDay, duration int, excludeID string) (bool, error)

	ListAppointments(ctx context.Context) ([]appointment.AppointmentDetail, error)
	AppointmentsByDate(ctx context.Context, date time.Time) ([]appointment.AppointmentDetail, error)
	AppointmentsByDoctor(ctx context.Context, doctorID string) ([]appointment.AppointmentDetail, error)
	AppointmentsByPatient(ctx context.Context, patientID string) ([]appointment.AppointmentDetail, error)
	AppointmentsByStatus(ctx context.Context, status appointment.AppointmentStatus) ([]appointment.AppointmentDetail, error)
	TodayAppointments(ctx context.Context) ([]appointment.AppointmentDetail, error)
	UpcomingAppointments(ctx context.Context) ([]appointment.AppointmentDetail, error)
	GetAppointment(ctx context.Context, id string) (*appointment.AppointmentDetail, error)
	ComputeSlots(ctx context.Context, doctorID string, date time.Time) ([]appointment.TimeSlot, error)
	AppointmentStats(ctx context.Context) (appointment.Stats, error)
	Dashboard(ctx context.Context) (appointment.Dashboard, error)
	AppointmentTrends(ctx context.Context) ([]appointment.DayCounts, error)
	PerformanceMetrics(ctx context.Context) (appointment.Performance, error)
	SystemAlerts(ctx context.Context) ([]appointment.Alert, error)

	ListPatients(ctx context.Context) ([]appointment.Patient, error)
	SearchPatients(ctx context.Context, q string) ([]appointment.Patient, error)
	PatientsByStatus(ctx context.Context, status appointment.PatientStatus) ([]appointment.Patient, error)
	RecentPatients(ctx context.Context) ([]appointment.Patient, error)
	GetPatient(ctx context.Context, id string) (*appointment.Patient, error)
	CreatePatient(ctx context.Context, p appointment.Patient) (*appointment.Patient, error)
	UpdatePatient(ctx context.Context, id string, patch appointment.PatientPatch) (*appointment.Patient, error)
	DeletePatient(ctx context.Context, id string) error
	PatientStats(ctx context.Context) (appointment.PatientStats, error)

	ListDoctors(ctx context.Context) ([]appointment.Doctor, error)
	SearchDoctors(ctx context.Context, q string) ([]appointment.Doctor, error)
	DoctorsBySpecialization(ctx context.Context, specialization string) ([]appointment.Doctor, error)
	DoctorsByStatus(ctx context.Context, status appointment.DoctorStatus) ([]appointment.Doctor, error)
	AvailableDoctors(ctx context.Context, day time.Weekday) ([]appointment.Doctor, error)
	GetDoctor(ctx context.Context, id string) (*appointment.Doctor, error)
	CreateDoctor(ctx context.Context, d appointment.Doctor) (*appointment.Doctor, error)
	UpdateDoctor(ctx context.Context, id string, patch appointment.DoctorPatch) (*appointment.Doctor, error)
	DeleteDoctor(ctx context.Context, id string) error
	DoctorStats(ctx context.Context) (appointment.DoctorStats, error)
}

var _ ClinicService = (*appointment.Service)(nil)

// Resyncer drops every cached view, normally *realtime.Bridge.
type Resyncer interface {
	Resync() int
}

type RouterConfig struct {
	Service ClinicService
	Health  *HealthHandler
	// Resync is optional; without it the admin route answers 503.
	Resync  Resyncer
	Metrics http.Handler
	Logger  zerolog.Logger
}

func NewRouter(cfg RouterConfig) http.Handler {
	r := chi.NewRouter()

	r.Use(RequestIDMiddleware)
	r.Use(LoggingMiddleware(cfg.Logger))
	r.Use(RecoverMiddleware(cfg.Logger))

	if cfg.Health != nil {
		r.Get("/health/live", cfg.Health.Liveness)
		r.Get("/health/ready", cfg.Health.Readiness)
	}
	if cfg.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", cfg.Metrics)
	}

	svc := cfg.Service

	r.Route("/appointments", func(r chi.Router) {
		r.Get("/", listAppointmentsHandler(svc))
		r.Post("/", createAppointmentHandler(svc))
		r.Get("/stats", appointmentStatsHandler(svc))
		r.Get("/conflicts", conflictHandler(svc))

		r.Route("/{id}", func(r chi.Router) {
			r.Get("/", getAppointmentHandler(svc))
			r.Patch("/", updateAppointmentHandler(svc))
			r.Delete("/", deleteAppointmentHandler(svc))
			r.Put("/status", updateStatusHandler(svc))
			r.Post("/confirm", transitionHandler(svc.Confirm))
			r.Post("/complete", transitionHandler(svc.Complete))
			r.Post("/cancel", transitionHandler(svc.Cancel))
		})
	})

	r.Route("/patients", func(r chi.Router) {
		r.Get("/", listPatientsHandler(svc))
		r.Post("/", createPatientHandler(svc))
		r.Get("/stats", patientStatsHandler(svc))
		r.Get("/{id}", getPatientHandler(svc))
		r.Patch("/{id}", updatePatientHandler(svc))
		r.Delete("/{id}", deletePatientHandler(svc))
		r.Get("/{id}/appointments", patientAppointmentsHandler(svc))
	})

	r.Route("/doctors", func(r chi.Router) {
		r.Get("/", listDoctorsHandler(svc))
		r.Post("/", createDoctorHandler(svc))
		r.Get("/stats", doctorStatsHandler(svc))
		r.Get("/{id}", getDoctorHandler(svc))
		r.Patch("/{id}", updateDoctorHandler(svc))
		r.Delete("/{id}", deleteDoctorHandler(svc))
		r.Get("/{id}/slots", slotsHandler(svc))
		r.Get("/{id}/appointments", doctorAppointmentsHandler(svc))
	})

	r.Route("/dashboard", func(r chi.Router) {
		r.Get("/", dashboardHandler(svc))
		r.Get("/trends", trendsHandler(svc))
		r.Get("/performance", performanceHandler(svc))
		r.Get("/alerts", alertsHandler(svc))
	})
	r.Post("/admin/resync", resyncHandler(cfg.Resync))

	return r
}
