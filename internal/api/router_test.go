package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hackgods/clinic-scheduling/internal/appointment"
)

// stubService satisfies ClinicService; calling a method that a test did not
// override panics on the nil embedded interface.
type stubService struct {
	ClinicService

	create      func(appointment.CreateInput) (*appointment.AppointmentDetail, error)
	update      func(string, appointment.AppointmentPatch) (*appointment.AppointmentDetail, error)
	confirm     func(string) (*appointment.AppointmentDetail, error)
	slots       func(string, time.Time) ([]appointment.TimeSlot, error)
	hasConflict func(string, time.Time, appointment.TimeOfDay, int, string) (bool, error)
	byDate      func(time.Time) ([]appointment.AppointmentDetail, error)
	today       func() ([]appointment.AppointmentDetail, error)
	doctorsOn   func(time.Weekday) ([]appointment.Doctor, error)
	getPatient  func(string) (*appointment.Patient, error)
	createDoc   func(appointment.Doctor) (*appointment.Doctor, error)
	deleteDoc   func(string) error
	dashboard   func() (appointment.Dashboard, error)
	trends      func() ([]appointment.DayCounts, error)
	alerts      func() ([]appointment.Alert, error)
}

func (s *stubService) CreateAppointment(_ context.Context, in appointment.CreateInput) (*appointment.AppointmentDetail, error) {
	return s.create(in)
}

func (s *stubService) UpdateAppointment(_ context.Context, id string, p appointment.AppointmentPatch) (*appointment.AppointmentDetail, error) {
	return s.update(id, p)
}

func (s *stubService) Confirm(_ context.Context, id string) (*appointment.AppointmentDetail, error) {
	return s.confirm(id)
}

func (s *stubService) ComputeSlots(_ context.Context, doctorID string, date time.Time) ([]appointment.TimeSlot, error) {
	return s.slots(doctorID, date)
}

func (s *stubService) HasConflict(_ context.Context, doctorID string, date time.Time, start appointment.TimeOfDay, duration int, excludeID string) (bool, error) {
	return s.hasConflict(doctorID, date, start, duration, excludeID)
}

func (s *stubService) AppointmentsByDate(_ context.Context, date time.Time) ([]appointment.AppointmentDetail, error) {
	return s.byDate(date)
}

func (s *stubService) TodayAppointments(context.Context) ([]appointment.AppointmentDetail, error) {
	return s.today()
}

func (s *stubService) AvailableDoctors(_ context.Context, day time.Weekday) ([]appointment.Doctor, error) {
	return s.doctorsOn(day)
}

func (s *stubService) GetPatient(_ context.Context, id string) (*appointment.Patient, error) {
	return s.getPatient(id)
}

func (s *stubService) CreateDoctor(_ context.Context, d appointment.Doctor) (*appointment.Doctor, error) {
	return s.createDoc(d)
}

func (s *stubService) DeleteDoctor(_ context.Context, id string) error {
	return s.deleteDoc(id)
}

func (s *stubService) Dashboard(context.Context) (appointment.Dashboard, error) {
	return s.dashboard()
}

func (s *stubService) AppointmentTrends(context.Context) ([]appointment.DayCounts, error) {
	return s.trends()
}

func (s *stubService) SystemAlerts(context.Context) ([]appointment.Alert, error) {
	return s.alerts()
}

type countingResync struct{ calls int }

func (c *countingResync) Resync() int {
	c.calls++
	return 7
}

func sampleDetail() *appointment.AppointmentDetail {
	return &appointment.AppointmentDetail{
		Appointment: appointment.Appointment{
			ID:        "appt-1",
			PatientID: "pat-1",
			DoctorID:  "doc-1",
			Date:      time.Date(2024, 2, 15, 0, 0, 0, 0, time.UTC),
			Time:      9*60 + 30,
			Duration:  30,
			Reason:    "checkup",
			Type:      appointment.TypeCheckup,
			Priority:  appointment.PriorityMedium,
			Status:    appointment.StatusPending,
		},
		Patient: &appointment.PatientSummary{ID: "pat-1", Name: "Ada Lovelace", Email: "ada@example.com"},
		Doctor:  &appointment.DoctorSummary{ID: "doc-1", Name: "Dr. Grey", Specialization: "Cardiology"},
	}
}

func newTestRouter(svc ClinicService, opts ...func(*RouterConfig)) http.Handler {
	cfg := RouterConfig{Service: svc, Logger: zerolog.Nop()}
	for _, opt := range opts {
		opt(&cfg)
	}
	return NewRouter(cfg)
}

func do(t *testing.T, h http.Handler, method, target, body string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, target, nil)
	} else {
		req = httptest.NewRequest(method, target, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v), rec.Body.String())
	return v
}

func TestCreateAppointment(t *testing.T) {
	var got appointment.CreateInput
	svc := &stubService{create: func(in appointment.CreateInput) (*appointment.AppointmentDetail, error) {
		got = in
		return sampleDetail(), nil
	}}

	rec := do(t, newTestRouter(svc), http.MethodPost, "/appointments",
		`{"patient_id":"pat-1","doctor_id":"doc-1","date":"2024-02-15","time":"09:30","reason":"checkup","type":"Checkup"}`)

	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	assert.Equal(t, "pat-1", got.PatientID)
	assert.Equal(t, appointment.TimeOfDay(570), got.Time)
	assert.Equal(t, "2024-02-15", appointment.FormatDate(got.Date))
	assert.Equal(t, appointment.TypeCheckup, got.Type)
	assert.Nil(t, got.AutoConfirm)

	resp := decode[AppointmentResponse](t, rec)
	assert.Equal(t, "appt-1", resp.ID)
	assert.Equal(t, "2024-02-15", resp.Date)
	assert.Equal(t, "09:30", resp.Time)
	assert.Equal(t, "Pending", resp.Status)
	require.NotNil(t, resp.Doctor)
	assert.Equal(t, "Cardiology", resp.Doctor.Specialization)
	assert.NotEmpty(t, rec.Header().Get("X-Request-ID"))
}

func TestCreateAppointmentRejectsBadInput(t *testing.T) {
	svc := &stubService{}
	router := newTestRouter(svc)

	rec := do(t, router, http.MethodPost, "/appointments", `{"patient_id":`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "invalid_request_body", decode[ErrorResponse](t, rec).Error)

	rec = do(t, router, http.MethodPost, "/appointments", `{"patient_id":"p","doctor_id":"d","date":"15/02/2024","time":"09:00"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "validation_failed", decode[ErrorResponse](t, rec).Error)

	rec = do(t, router, http.MethodPost, "/appointments", `{"patient_id":"p","doctor_id":"d","date":"2024-02-15","time":"25:00"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestErrorMapping(t *testing.T) {
	cases := []struct {
		err    error
		status int
		code   string
	}{
		{fmt.Errorf("create: %w", appointment.ErrConflict), http.StatusConflict, "conflict"},
		{appointment.ErrScheduleBusy, http.StatusConflict, "schedule_busy"},
		{fmt.Errorf("%w: Completed is terminal", appointment.ErrInvalidTransition), http.StatusConflict, "invalid_status_transition"},
		{appointment.ErrDoctorNotFound, http.StatusNotFound, "doctor_not_found"},
		{appointment.ErrPatientNotFound, http.StatusNotFound, "patient_not_found"},
		{&appointment.ValidationError{Field: "duration", Reason: "must be positive"}, http.StatusBadRequest, "validation_failed"},
		{fmt.Errorf("list: %w", appointment.ErrRemoteUnavailable), http.StatusServiceUnavailable, "remote_unavailable"},
		{errors.New("boom"), http.StatusInternalServerError, "internal_error"},
	}

	for _, tc := range cases {
		t.Run(tc.code, func(t *testing.T) {
			svc := &stubService{create: func(appointment.CreateInput) (*appointment.AppointmentDetail, error) {
				return nil, tc.err
			}}
			rec := do(t, newTestRouter(svc), http.MethodPost, "/appointments",
				`{"patient_id":"pat-1","doctor_id":"doc-1","date":"2024-02-15","time":"09:00"}`)
			assert.Equal(t, tc.status, rec.Code)
			assert.Equal(t, tc.code, decode[ErrorResponse](t, rec).Error)
		})
	}
}

func TestRemoteFailureDetailsAreHidden(t *testing.T) {
	svc := &stubService{slots: func(string, time.Time) ([]appointment.TimeSlot, error) {
		return nil, fmt.Errorf("%w: dial tcp 10.0.0.7:5432", appointment.ErrRemoteUnavailable)
	}}
	rec := do(t, newTestRouter(svc), http.MethodGet, "/doctors/doc-1/slots?date=2024-02-15", "")

	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.NotContains(t, rec.Body.String(), "10.0.0.7")
}

func TestSlots(t *testing.T) {
	svc := &stubService{slots: func(doctorID string, date time.Time) ([]appointment.TimeSlot, error) {
		assert.Equal(t, "doc-1", doctorID)
		assert.Equal(t, time.Thursday, date.Weekday())
		return []appointment.TimeSlot{{Time: 8 * 60, Available: true}, {Time: 8*60 + 30, Available: false}}, nil
	}}

	rec := do(t, newTestRouter(svc), http.MethodGet, "/doctors/doc-1/slots?date=2024-02-15", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, []SlotResponse{{Time: "08:00", Available: true}, {Time: "08:30", Available: false}}, decode[[]SlotResponse](t, rec))

	rec = do(t, newTestRouter(svc), http.MethodGet, "/doctors/doc-1/slots", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestEmptySlotListIsAnArray(t *testing.T) {
	svc := &stubService{slots: func(string, time.Time) ([]appointment.TimeSlot, error) { return nil, nil }}

	rec := do(t, newTestRouter(svc), http.MethodGet, "/doctors/doc-1/slots?date=2024-02-17", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `[]`, rec.Body.String())
}

func TestConflictCheck(t *testing.T) {
	svc := &stubService{hasConflict: func(doctorID string, _ time.Time, start appointment.TimeOfDay, duration int, excludeID string) (bool, error) {
		assert.Equal(t, "doc-1", doctorID)
		assert.Equal(t, appointment.TimeOfDay(9*60+15), start)
		assert.Equal(t, appointment.DefaultDuration, duration)
		assert.Equal(t, "appt-9", excludeID)
		return true, nil
	}}

	rec := do(t, newTestRouter(svc), http.MethodGet, "/appointments/conflicts?doctor_id=doc-1&date=2024-02-15&time=09:15&exclude_id=appt-9", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, decode[ConflictResponse](t, rec).Conflict)

	rec = do(t, newTestRouter(svc), http.MethodGet, "/appointments/conflicts?doctor_id=doc-1&date=2024-02-15&time=09:15&duration=half", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestListAppointmentViews(t *testing.T) {
	var dates []string
	svc := &stubService{
		byDate: func(d time.Time) ([]appointment.AppointmentDetail, error) {
			dates = append(dates, appointment.FormatDate(d))
			return []appointment.AppointmentDetail{*sampleDetail()}, nil
		},
		today: func() ([]appointment.AppointmentDetail, error) { return nil, nil },
	}
	router := newTestRouter(svc)

	rec := do(t, router, http.MethodGet, "/appointments?date=2024-02-15", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decode[[]AppointmentResponse](t, rec), 1)
	assert.Equal(t, []string{"2024-02-15"}, dates)

	rec = do(t, router, http.MethodGet, "/appointments?view=today", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `[]`, rec.Body.String())

	rec = do(t, router, http.MethodGet, "/appointments?view=yesterday", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestRescheduleRequestBuildsPatch(t *testing.T) {
	svc := &stubService{update: func(id string, p appointment.AppointmentPatch) (*appointment.AppointmentDetail, error) {
		assert.Equal(t, "appt-1", id)
		require.NotNil(t, p.Time)
		assert.Equal(t, appointment.TimeOfDay(14*60), *p.Time)
		assert.Nil(t, p.Date)
		assert.True(t, p.Reschedules())
		return sampleDetail(), nil
	}}

	rec := do(t, newTestRouter(svc), http.MethodPatch, "/appointments/appt-1", `{"time":"14:00"}`)
	assert.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
}

func TestConfirmTransition(t *testing.T) {
	svc := &stubService{confirm: func(id string) (*appointment.AppointmentDetail, error) {
		d := sampleDetail()
		d.ID = id
		d.Status = appointment.StatusConfirmed
		return d, nil
	}}

	rec := do(t, newTestRouter(svc), http.MethodPost, "/appointments/appt-3/confirm", "")
	require.Equal(t, http.StatusOK, rec.Code)
	resp := decode[AppointmentResponse](t, rec)
	assert.Equal(t, "appt-3", resp.ID)
	assert.Equal(t, "Confirmed", resp.Status)
}

func TestDoctorsAvailableOn(t *testing.T) {
	svc := &stubService{doctorsOn: func(day time.Weekday) ([]appointment.Doctor, error) {
		assert.Equal(t, time.Monday, day)
		return []appointment.Doctor{{ID: "doc-1", Availability: []time.Weekday{time.Monday, time.Tuesday}, Status: appointment.DoctorAvailable}}, nil
	}}

	rec := do(t, newTestRouter(svc), http.MethodGet, "/doctors?available_on=monday", "")
	require.Equal(t, http.StatusOK, rec.Code)
	docs := decode[[]DoctorResponse](t, rec)
	require.Len(t, docs, 1)
	assert.Equal(t, []string{"Monday", "Tuesday"}, docs[0].Availability)

	rec = do(t, newTestRouter(svc), http.MethodGet, "/doctors?available_on=funday", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestCreateDoctorParsesAvailability(t *testing.T) {
	svc := &stubService{createDoc: func(d appointment.Doctor) (*appointment.Doctor, error) {
		assert.Equal(t, []time.Weekday{time.Monday, time.Wednesday}, d.Availability)
		assert.Equal(t, "Dermatology", d.Specialization)
		d.ID = "doc-9"
		return &d, nil
	}}

	rec := do(t, newTestRouter(svc), http.MethodPost, "/doctors",
		`{"name":"Dr. Reed","email":"reed@example.com","specialization":"Dermatology","availability":["Monday","Wednesday"]}`)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	assert.Equal(t, "doc-9", decode[DoctorResponse](t, rec).ID)
}

func TestDeleteDoctorStillReferenced(t *testing.T) {
	svc := &stubService{deleteDoc: func(string) error {
		return fmt.Errorf("%w: doctor is still referenced", appointment.ErrConflict)
	}}

	rec := do(t, newTestRouter(svc), http.MethodDelete, "/doctors/doc-1", "")
	assert.Equal(t, http.StatusConflict, rec.Code)

	svc.deleteDoc = func(string) error { return nil }
	rec = do(t, newTestRouter(svc), http.MethodDelete, "/doctors/doc-1", "")
	assert.Equal(t, http.StatusNoContent, rec.Code)
}

func TestGetPatientOmitsEmptyBirthDate(t *testing.T) {
	svc := &stubService{getPatient: func(id string) (*appointment.Patient, error) {
		return &appointment.Patient{ID: id, Name: "Ada", Status: appointment.PatientActive}, nil
	}}

	rec := do(t, newTestRouter(svc), http.MethodGet, "/patients/pat-1", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.NotContains(t, rec.Body.String(), "date_of_birth")
}

func TestDashboard(t *testing.T) {
	svc := &stubService{dashboard: func() (appointment.Dashboard, error) {
		return appointment.Dashboard{
			Appointments: appointment.Stats{
				Total:          5,
				Completed:      1,
				ByType:         map[appointment.AppointmentType]int{appointment.TypeCheckup: 5},
				CompletionRate: 20,
			},
			Doctors:  appointment.DoctorStats{Total: 2, AverageRating: 4.7},
			Patients: appointment.PatientStats{Total: 3, Active: 3},
		}, nil
	}}

	rec := do(t, newTestRouter(svc), http.MethodGet, "/dashboard", "")
	require.Equal(t, http.StatusOK, rec.Code)
	resp := decode[DashboardResponse](t, rec)
	assert.Equal(t, 5, resp.Appointments.Total)
	assert.Equal(t, 20.0, resp.Appointments.CompletionRate)
	assert.Equal(t, 5, resp.Appointments.ByType["Checkup"])
	assert.Equal(t, 4.7, resp.Doctors.AverageRating)
	assert.NotNil(t, resp.RecentPatients)
}

func TestDashboardTrendsAndAlerts(t *testing.T) {
	svc := &stubService{
		trends: func() ([]appointment.DayCounts, error) {
			return []appointment.DayCounts{
				{Date: time.Date(2024, 2, 15, 0, 0, 0, 0, time.UTC), Total: 3, Pending: 2, Completed: 1},
			}, nil
		},
		alerts: func() ([]appointment.Alert, error) { return []appointment.Alert{}, nil },
	}
	router := newTestRouter(svc)

	rec := do(t, router, http.MethodGet, "/dashboard/trends", "")
	require.Equal(t, http.StatusOK, rec.Code)
	trends := decode[[]TrendResponse](t, rec)
	require.Len(t, trends, 1)
	assert.Equal(t, TrendResponse{Date: "2024-02-15", Total: 3, Pending: 2, Completed: 1}, trends[0])

	rec = do(t, router, http.MethodGet, "/dashboard/alerts", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `[]`, rec.Body.String())

	svc.alerts = func() ([]appointment.Alert, error) {
		return []appointment.Alert{{
			ID:      appointment.AlertUnavailableDoctors,
			Level:   appointment.AlertWarning,
			Title:   "Unavailable Doctors",
			Message: "1 doctor(s) are currently off duty",
			Count:   1,
		}}, nil
	}
	rec = do(t, router, http.MethodGet, "/dashboard/alerts", "")
	require.Equal(t, http.StatusOK, rec.Code)
	alerts := decode[[]AlertResponse](t, rec)
	require.Len(t, alerts, 1)
	assert.Equal(t, "unavailable-doctors", alerts[0].ID)
	assert.Equal(t, "warning", alerts[0].Type)

	svc.trends = func() ([]appointment.DayCounts, error) {
		return nil, fmt.Errorf("%w: timeout", appointment.ErrRemoteUnavailable)
	}
	rec = do(t, router, http.MethodGet, "/dashboard/trends", "")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestResync(t *testing.T) {
	rec := do(t, newTestRouter(&stubService{}), http.MethodPost, "/admin/resync", "")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)

	rs := &countingResync{}
	rec = do(t, newTestRouter(&stubService{}, func(c *RouterConfig) { c.Resync = rs }), http.MethodPost, "/admin/resync", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 7, decode[ResyncResponse](t, rec).Invalidated)
	assert.Equal(t, 1, rs.calls)
}

func TestPanicsBecome500(t *testing.T) {
	// the stub has no dashboard func, so the call panics
	rec := do(t, newTestRouter(&stubService{}), http.MethodGet, "/dashboard", "")
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}

func TestMetricsEndpoint(t *testing.T) {
	reg := prometheus.NewRegistry()
	counter := prometheus.NewCounter(prometheus.CounterOpts{Name: "clinic_test_total", Help: "test"})
	reg.MustRegister(counter)
	counter.Inc()

	router := newTestRouter(&stubService{}, func(c *RouterConfig) {
		c.Metrics = promhttp.HandlerFor(reg, promhttp.HandlerOpts{})
	})
	rec := do(t, router, http.MethodGet, "/metrics", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "clinic_test_total 1")
}

func TestRequestIDIsPropagated(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "/admin/resync", nil)
	req.Header.Set("X-Request-ID", "req-42")
	rec := httptest.NewRecorder()
	newTestRouter(&stubService{}).ServeHTTP(rec, req)

	assert.Equal(t, "req-42", rec.Header().Get("X-Request-ID"))
}
