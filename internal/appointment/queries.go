package appointment

import (
	"context"
	"fmt"
	"time"

	"github.com/hackgods/clinic-scheduling/internal/cache"
)

// Read paths. On a failed refetch the list getters return the last good value
// together with the error.

func (s *Service) appointmentList(ctx context.Context, key cache.Key, stale time.Duration, f AppointmentFilter) ([]AppointmentDetail, error) {
	return cache.Get(ctx, s.cache, cache.Query[[]AppointmentDetail]{
		Key:   key,
		Stale: stale,
		Clone: cloneDetails,
		Fetch: func(ctx context.Context) ([]AppointmentDetail, error) {
			return s.repo.ListAppointments(ctx, f)
		},
	})
}

func (s *Service) ListAppointments(ctx context.Context) ([]AppointmentDetail, error) {
	return s.appointmentList(ctx, cache.List(cache.KindAppointments), s.cfg.StaleDefault, AppointmentFilter{})
}

func (s *Service) AppointmentsByDate(ctx context.Context, date time.Time) ([]AppointmentDetail, error) {
	date = DateOf(date)
	key := cache.ListBy(cache.KindAppointments, cache.FilterDate, FormatDate(date))
	return s.appointmentList(ctx, key, s.cfg.StaleDefault, AppointmentFilter{Date: &date})
}

func (s *Service) AppointmentsByDoctor(ctx context.Context, doctorID string) ([]AppointmentDetail, error) {
	key := cache.ListBy(cache.KindAppointments, cache.FilterDoctor, doctorID)
	return s.appointmentList(ctx, key, s.cfg.StaleDefault, AppointmentFilter{DoctorID: doctorID})
}

func (s *Service) AppointmentsByPatient(ctx context.Context, patientID string) ([]AppointmentDetail, error) {
	key := cache.ListBy(cache.KindAppointments, cache.FilterPatient, patientID)
	return s.appointmentList(ctx, key, s.cfg.StaleDefault, AppointmentFilter{PatientID: patientID})
}

func (s *Service) AppointmentsByStatus(ctx context.Context, status AppointmentStatus) ([]AppointmentDetail, error) {
	if !status.Valid() {
		return nil, invalid("status", "unknown status %q", status)
	}
	key := cache.ListBy(cache.KindAppointments, cache.FilterStatus, string(status))
	return s.appointmentList(ctx, key, s.cfg.StaleDefault, AppointmentFilter{Status: status})
}

func (s *Service) TodayAppointments(ctx context.Context) ([]AppointmentDetail, error) {
	today := s.today()
	key := cache.ListBy(cache.KindAppointments, cache.FilterToday, FormatDate(today))
	return s.appointmentList(ctx, key, s.cfg.StaleVolatile, AppointmentFilter{Date: &today})
}

// UpcomingAppointments lists non-cancelled appointments from today through the next
// seven days.
func (s *Service) UpcomingAppointments(ctx context.Context) ([]AppointmentDetail, error) {
	from := s.today()
	to := from.AddDate(0, 0, 7)
	key := cache.ListBy(cache.KindAppointments, cache.FilterUpcoming, FormatDate(from))
	return s.appointmentList(ctx, key, s.cfg.StaleDefault, AppointmentFilter{
		From:          &from,
		To:            &to,
		ExcludeStatus: StatusCancelled,
	})
}

func (s *Service) GetAppointment(ctx context.Context, id string) (*AppointmentDetail, error) {
	a, err := cache.Get(ctx, s.cache, cache.Query[AppointmentDetail]{
		Key:   cache.Detail(cache.KindAppointments, id),
		Stale: s.cfg.StaleDefault,
		Clone: cloneDetail,
		Fetch: func(ctx context.Context) (AppointmentDetail, error) {
			a, err := s.repo.GetAppointment(ctx, id)
			if err != nil {
				return AppointmentDetail{}, err
			}
			return *a, nil
		},
	})
	if err != nil {
		return nil, err
	}
	return &a, nil
}

// ComputeSlots returns the bookable grid of doctorID on date. A day the doctor does
// not work yields an empty slice. If the doctor or the booked appointments cannot be
// read the error is returned; availability is never assumed.
func (s *Service) ComputeSlots(ctx context.Context, doctorID string, date time.Time) ([]TimeSlot, error) {
	date = DateOf(date)
	slots, err := cache.Get(ctx, s.cache, cache.Query[[]TimeSlot]{
		Key:   cache.Slots(doctorID, FormatDate(date)),
		Stale: s.cfg.StaleVolatile,
		Clone: cloneSlots,
		Fetch: func(ctx context.Context) ([]TimeSlot, error) {
			doctor, err := s.GetDoctor(ctx, doctorID)
			if err != nil {
				return nil, err
			}
			if !doctor.WorksOn(date.Weekday()) {
				return []TimeSlot{}, nil
			}
			booked, err := s.bookedOn(ctx, doctorID, date)
			if err != nil {
				return nil, err
			}
			return ComputeSlots(doctor, date, booked, s.grid, s.now().In(s.cfg.Location)), nil
		},
	})
	if err != nil {
		return nil, err
	}
	return slots, nil
}

func (s *Service) AppointmentStats(ctx context.Context) (Stats, error) {
	st, err := cache.Get(ctx, s.cache, cache.Query[Stats]{
		Key:   cache.Stats(cache.KindAppointments),
		Stale: s.cfg.StaleStable,
		Clone: cloneStats,
		Fetch: func(ctx context.Context) (Stats, error) {
			list, err := s.ListAppointments(ctx)
			if err != nil {
				return Stats{}, err
			}
			return ComputeStats(appointmentsOf(list), s.now().In(s.cfg.Location), s.cfg.WeekStart), nil
		},
	})
	if err != nil {
		return Stats{}, err
	}
	return st, nil
}

const dashboardRecentPatients = 5

type Dashboard struct {
	Appointments      Stats
	Doctors           DoctorStats
	Patients          PatientStats
	RecentPatients    []Patient
	TodayAppointments []AppointmentDetail
}

func cloneDashboard(d Dashboard) Dashboard {
	d.Appointments = cloneStats(d.Appointments)
	d.Doctors.Specializations = copyMap(d.Doctors.Specializations)
	d.RecentPatients = clonePatients(d.RecentPatients)
	d.TodayAppointments = cloneDetails(d.TodayAppointments)
	return d
}

// Dashboard composes the overview. Its key is invalidated by every mutation, so it
// is rebuilt from the cached component views on the next read.
func (s *Service) Dashboard(ctx context.Context) (Dashboard, error) {
	d, err := cache.Get(ctx, s.cache, cache.Query[Dashboard]{
		Key:   cache.Stats(cache.KindDashboard),
		Stale: s.cfg.StaleSlow,
		Clone: cloneDashboard,
		Fetch: func(ctx context.Context) (Dashboard, error) {
			var (
				d   Dashboard
				err error
			)
			if d.Appointments, err = s.AppointmentStats(ctx); err != nil {
				return Dashboard{}, fmt.Errorf("appointment stats: %w", err)
			}
			if d.Doctors, err = s.DoctorStats(ctx); err != nil {
				return Dashboard{}, fmt.Errorf("doctor stats: %w", err)
			}
			if d.Patients, err = s.PatientStats(ctx); err != nil {
				return Dashboard{}, fmt.Errorf("patient stats: %w", err)
			}
			recent, err := s.RecentPatients(ctx)
			if err != nil {
				return Dashboard{}, fmt.Errorf("recent patients: %w", err)
			}
			if len(recent) > dashboardRecentPatients {
				recent = recent[:dashboardRecentPatients]
			}
			d.RecentPatients = recent
			if d.TodayAppointments, err = s.TodayAppointments(ctx); err != nil {
				return Dashboard{}, fmt.Errorf("today's appointments: %w", err)
			}
			return d, nil
		},
	})
	if err != nil {
		return Dashboard{}, err
	}
	return d, nil
}

func dashboardKey(scope cache.Scope) cache.Key {
	return cache.Key{Kind: cache.KindDashboard, Scope: scope}
}

// AppointmentTrends returns per-date status counts for the last DashboardWindow days.
func (s *Service) AppointmentTrends(ctx context.Context) ([]DayCounts, error) {
	return cache.Get(ctx, s.cache, cache.Query[[]DayCounts]{
		Key:   dashboardKey(cache.ScopeTrends),
		Stale: s.cfg.StaleSlow,
		Clone: cloneTrends,
		Fetch: func(ctx context.Context) ([]DayCounts, error) {
			list, err := s.ListAppointments(ctx)
			if err != nil {
				return nil, err
			}
			return ComputeTrends(appointmentsOf(list), s.now().In(s.cfg.Location), DashboardWindow), nil
		},
	})
}

func (s *Service) PerformanceMetrics(ctx context.Context) (Performance, error) {
	return cache.Get(ctx, s.cache, cache.Query[Performance]{
		Key:   dashboardKey(cache.ScopePerformance),
		Stale: s.cfg.StaleSlow,
		Fetch: func(ctx context.Context) (Performance, error) {
			list, err := s.ListAppointments(ctx)
			if err != nil {
				return Performance{}, err
			}
			doctors, err := s.ListDoctors(ctx)
			if err != nil {
				return Performance{}, err
			}
			return ComputePerformance(appointmentsOf(list), doctors, s.now().In(s.cfg.Location), DashboardWindow), nil
		},
	})
}

func (s *Service) SystemAlerts(ctx context.Context) ([]Alert, error) {
	return cache.Get(ctx, s.cache, cache.Query[[]Alert]{
		Key:   dashboardKey(cache.ScopeAlerts),
		Stale: s.cfg.StaleDefault,
		Clone: cloneAlerts,
		Fetch: func(ctx context.Context) ([]Alert, error) {
			list, err := s.ListAppointments(ctx)
			if err != nil {
				return nil, err
			}
			doctors, err := s.ListDoctors(ctx)
			if err != nil {
				return nil, err
			}
			return ComputeAlerts(appointmentsOf(list), doctors, s.now().In(s.cfg.Location)), nil
		},
	})
}
