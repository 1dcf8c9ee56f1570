package appointment

import (
	"context"
	"fmt"
	"net/mail"
	"sort"
	"strings"
	"time"

	"github.com/hackgods/clinic-scheduling/internal/cache"
)

const defaultDoctorRating = 4.5

// Patients

func (s *Service) patientList(ctx context.Context, key cache.Key, stale time.Duration, f PatientFilter) ([]Patient, error) {
	return cache.Get(ctx, s.cache, cache.Query[[]Patient]{
		Key:   key,
		Stale: stale,
		Clone: clonePatients,
		Fetch: func(ctx context.Context) ([]Patient, error) {
			return s.repo.ListPatients(ctx, f)
		},
	})
}

func (s *Service) ListPatients(ctx context.Context) ([]Patient, error) {
	return s.patientList(ctx, cache.List(cache.KindPatients), s.cfg.StaleStable, PatientFilter{})
}

// SearchPatients matches name, email or phone, ignoring case. An empty query lists
// everyone.
func (s *Service) SearchPatients(ctx context.Context, q string) ([]Patient, error) {
	q = strings.TrimSpace(q)
	if q == "" {
		return s.ListPatients(ctx)
	}
	key := cache.ListBy(cache.KindPatients, cache.FilterSearch, strings.ToLower(q))
	return s.patientList(ctx, key, s.cfg.StaleVolatile, PatientFilter{Search: q})
}

func (s *Service) PatientsByStatus(ctx context.Context, status PatientStatus) ([]Patient, error) {
	if !status.Valid() {
		return nil, invalid("status", "unknown patient status %q", status)
	}
	key := cache.ListBy(cache.KindPatients, cache.FilterStatus, string(status))
	return s.patientList(ctx, key, s.cfg.StaleStable, PatientFilter{Status: status})
}

// RecentPatients lists patients registered in the last seven days, newest first.
func (s *Service) RecentPatients(ctx context.Context) ([]Patient, error) {
	since := s.today().AddDate(0, 0, -7)
	key := cache.ListBy(cache.KindPatients, cache.FilterRecent, FormatDate(since))
	return cache.Get(ctx, s.cache, cache.Query[[]Patient]{
		Key:   key,
		Stale: s.cfg.StaleDefault,
		Clone: clonePatients,
		Fetch: func(ctx context.Context) ([]Patient, error) {
			ps, err := s.repo.ListPatients(ctx, PatientFilter{CreatedSince: &since})
			if err != nil {
				return nil, err
			}
			sort.SliceStable(ps, func(i, j int) bool { return ps[i].CreatedAt.After(ps[j].CreatedAt) })
			return ps, nil
		},
	})
}

func (s *Service) GetPatient(ctx context.Context, id string) (*Patient, error) {
	p, err := cache.Get(ctx, s.cache, cache.Query[Patient]{
		Key:   cache.Detail(cache.KindPatients, id),
		Stale: s.cfg.StaleDefault,
		Fetch: func(ctx context.Context) (Patient, error) {
			p, err := s.repo.GetPatient(ctx, id)
			if err != nil {
				return Patient{}, err
			}
			return *p, nil
		},
	})
	if err != nil {
		return nil, err
	}
	return &p, nil
}

func (s *Service) CreatePatient(ctx context.Context, p Patient) (*Patient, error) {
	ctx = context.WithoutCancel(ctx)

	if p.Status == "" {
		p.Status = PatientActive
	}
	if err := validatePatient(&p); err != nil {
		return nil, err
	}

	created, err := s.repo.InsertPatient(ctx, p)
	if err != nil {
		return nil, fmt.Errorf("create patient: %w", err)
	}
	s.applyPatient(created.ID, *created, false)
	return created, nil
}

func (s *Service) UpdatePatient(ctx context.Context, id string, patch PatientPatch) (*Patient, error) {
	ctx = context.WithoutCancel(ctx)

	if patch.Name != nil && strings.TrimSpace(*patch.Name) == "" {
		return nil, invalid("name", "is required")
	}
	if patch.Email != nil {
		if err := validateEmail(*patch.Email); err != nil {
			return nil, err
		}
	}
	if patch.Status != nil && !patch.Status.Valid() {
		return nil, invalid("status", "unknown patient status %q", *patch.Status)
	}

	updated, err := s.repo.UpdatePatient(ctx, id, patch)
	if err != nil {
		return nil, fmt.Errorf("update patient: %w", err)
	}
	s.applyPatient(id, *updated, false)
	return updated, nil
}

func (s *Service) DeletePatient(ctx context.Context, id string) error {
	ctx = context.WithoutCancel(ctx)

	if err := s.repo.DeletePatient(ctx, id); err != nil {
		return fmt.Errorf("delete patient: %w", err)
	}
	s.applyPatient(id, Patient{}, true)
	return nil
}

func (s *Service) PatientStats(ctx context.Context) (PatientStats, error) {
	return cache.Get(ctx, s.cache, cache.Query[PatientStats]{
		Key:   cache.Stats(cache.KindPatients),
		Stale: s.cfg.StaleStable,
		Fetch: func(ctx context.Context) (PatientStats, error) {
			ps, err := s.ListPatients(ctx)
			if err != nil {
				return PatientStats{}, err
			}
			return ComputePatientStats(ps, s.now()), nil
		},
	})
}

// Patient names and contact details are embedded in appointment views.
func (s *Service) applyPatient(id string, v Patient, deleted bool) {
	cache.ApplyMutation(s.cache, cache.Mutation[Patient]{
		Kind:    cache.KindPatients,
		ID:      id,
		Value:   v,
		Deleted: deleted,
		IDOf:    func(p Patient) string { return p.ID },
		Also: []cache.Key{
			cache.Root(cache.KindDashboard),
			cache.List(cache.KindAppointments),
			{Kind: cache.KindAppointments, Scope: cache.ScopeDetail},
		},
	})
}

func validatePatient(p *Patient) error {
	if strings.TrimSpace(p.Name) == "" {
		return invalid("name", "is required")
	}
	if err := validateEmail(p.Email); err != nil {
		return err
	}
	if !p.Status.Valid() {
		return invalid("status", "unknown patient status %q", p.Status)
	}
	return nil
}

func validateEmail(email string) error {
	if _, err := mail.ParseAddress(email); err != nil {
		return invalid("email", "%q is not an email address", email)
	}
	return nil
}

// Doctors

func (s *Service) doctorList(ctx context.Context, key cache.Key, stale time.Duration, f DoctorFilter) ([]Doctor, error) {
	return cache.Get(ctx, s.cache, cache.Query[[]Doctor]{
		Key:   key,
		Stale: stale,
		Clone: cloneDoctors,
		Fetch: func(ctx context.Context) ([]Doctor, error) {
			return s.repo.ListDoctors(ctx, f)
		},
	})
}

func (s *Service) ListDoctors(ctx context.Context) ([]Doctor, error) {
	return s.doctorList(ctx, cache.List(cache.KindDoctors), s.cfg.StaleStable, DoctorFilter{})
}

// SearchDoctors matches name, specialization or email, ignoring case.
func (s *Service) SearchDoctors(ctx context.Context, q string) ([]Doctor, error) {
	q = strings.TrimSpace(q)
	if q == "" {
		return s.ListDoctors(ctx)
	}
	key := cache.ListBy(cache.KindDoctors, cache.FilterSearch, strings.ToLower(q))
	return s.doctorList(ctx, key, s.cfg.StaleVolatile, DoctorFilter{Search: q})
}

func (s *Service) DoctorsBySpecialization(ctx context.Context, specialization string) ([]Doctor, error) {
	key := cache.ListBy(cache.KindDoctors, cache.FilterSpecialization, specialization)
	return s.doctorList(ctx, key, s.cfg.StaleSlow, DoctorFilter{Specialization: specialization})
}

func (s *Service) DoctorsByStatus(ctx context.Context, status DoctorStatus) ([]Doctor, error) {
	if !status.Valid() {
		return nil, invalid("status", "unknown doctor status %q", status)
	}
	key := cache.ListBy(cache.KindDoctors, cache.FilterStatus, string(status))
	return s.doctorList(ctx, key, s.cfg.StaleVolatile, DoctorFilter{Status: status})
}

// AvailableDoctors lists doctors who work on day and are currently Available.
func (s *Service) AvailableDoctors(ctx context.Context, day time.Weekday) ([]Doctor, error) {
	key := cache.ListBy(cache.KindDoctors, cache.FilterDay, day.String())
	return s.doctorList(ctx, key, s.cfg.StaleDefault, DoctorFilter{Day: &day, Status: DoctorAvailable})
}

func (s *Service) GetDoctor(ctx context.Context, id string) (*Doctor, error) {
	d, err := cache.Get(ctx, s.cache, cache.Query[Doctor]{
		Key:   cache.Detail(cache.KindDoctors, id),
		Stale: s.cfg.StaleDefault,
		Clone: cloneDoctor,
		Fetch: func(ctx context.Context) (Doctor, error) {
			d, err := s.repo.GetDoctor(ctx, id)
			if err != nil {
				return Doctor{}, err
			}
			return *d, nil
		},
	})
	if err != nil {
		return nil, err
	}
	return &d, nil
}

func (s *Service) CreateDoctor(ctx context.Context, d Doctor) (*Doctor, error) {
	ctx = context.WithoutCancel(ctx)

	if d.Status == "" {
		d.Status = DoctorAvailable
	}
	if d.Rating == 0 {
		d.Rating = defaultDoctorRating
	}
	if err := validateDoctor(&d); err != nil {
		return nil, err
	}

	created, err := s.repo.InsertDoctor(ctx, d)
	if err != nil {
		return nil, fmt.Errorf("create doctor: %w", err)
	}
	s.applyDoctor(created.ID, *created, false)
	return created, nil
}

func (s *Service) UpdateDoctor(ctx context.Context, id string, patch DoctorPatch) (*Doctor, error) {
	ctx = context.WithoutCancel(ctx)

	if patch.Name != nil && strings.TrimSpace(*patch.Name) == "" {
		return nil, invalid("name", "is required")
	}
	if patch.Email != nil {
		if err := validateEmail(*patch.Email); err != nil {
			return nil, err
		}
	}
	if patch.Experience != nil && *patch.Experience < 0 {
		return nil, invalid("experience", "must not be negative")
	}
	if patch.Rating != nil && (*patch.Rating < 0 || *patch.Rating > 5) {
		return nil, invalid("rating", "must be between 0 and 5")
	}
	if patch.Status != nil && !patch.Status.Valid() {
		return nil, invalid("status", "unknown doctor status %q", *patch.Status)
	}

	updated, err := s.repo.UpdateDoctor(ctx, id, patch)
	if err != nil {
		return nil, fmt.Errorf("update doctor: %w", err)
	}
	s.applyDoctor(id, *updated, false)
	return updated, nil
}

func (s *Service) DeleteDoctor(ctx context.Context, id string) error {
	ctx = context.WithoutCancel(ctx)

	if err := s.repo.DeleteDoctor(ctx, id); err != nil {
		return fmt.Errorf("delete doctor: %w", err)
	}
	s.applyDoctor(id, Doctor{}, true)
	return nil
}

func (s *Service) DoctorStats(ctx context.Context) (DoctorStats, error) {
	st, err := cache.Get(ctx, s.cache, cache.Query[DoctorStats]{
		Key:   cache.Stats(cache.KindDoctors),
		Stale: s.cfg.StaleStable,
		Clone: func(st DoctorStats) DoctorStats {
			st.Specializations = copyMap(st.Specializations)
			return st
		},
		Fetch: func(ctx context.Context) (DoctorStats, error) {
			ds, err := s.ListDoctors(ctx)
			if err != nil {
				return DoctorStats{}, err
			}
			return ComputeDoctorStats(ds), nil
		},
	})
	if err != nil {
		return DoctorStats{}, err
	}
	return st, nil
}

// A doctor's status and working days feed every slot view, and the doctor summary is
// embedded in appointment views.
func (s *Service) applyDoctor(id string, v Doctor, deleted bool) {
	cache.ApplyMutation(s.cache, cache.Mutation[Doctor]{
		Kind:    cache.KindDoctors,
		ID:      id,
		Value:   cloneDoctor(v),
		Deleted: deleted,
		IDOf:    func(d Doctor) string { return d.ID },
		Also: []cache.Key{
			cache.Root(cache.KindDashboard),
			cache.List(cache.KindAppointments),
			{Kind: cache.KindAppointments, Scope: cache.ScopeDetail},
			{Kind: cache.KindAppointments, Scope: cache.ScopeSlots},
		},
	})
}

func validateDoctor(d *Doctor) error {
	if strings.TrimSpace(d.Name) == "" {
		return invalid("name", "is required")
	}
	if strings.TrimSpace(d.Specialization) == "" {
		return invalid("specialization", "is required")
	}
	if err := validateEmail(d.Email); err != nil {
		return err
	}
	if d.Experience < 0 {
		return invalid("experience", "must not be negative")
	}
	if d.Rating < 0 || d.Rating > 5 {
		return invalid("rating", "must be between 0 and 5")
	}
	if !d.Status.Valid() {
		return invalid("status", "unknown doctor status %q", d.Status)
	}
	return nil
}
