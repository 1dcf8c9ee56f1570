package appointment

import (
	"context"
	"fmt"
	"slices"
	"sort"
	"strings"
	"sync"
	"time"
)

// memRepo is an in-memory Repository for service tests.
type memRepo struct {
	mu           sync.Mutex
	patients     map[string]Patient
	doctors      map[string]Doctor
	appointments map[string]Appointment
	events       []EventLog
	seq          int
	now          time.Time

	listCalls map[string]int
	// failWith makes every call fail until cleared.
	failWith error
	// beforeStatusUpdate runs just before a guarded status write.
	beforeStatusUpdate func()
}

func newMemRepo(now time.Time) *memRepo {
	return &memRepo{
		patients:     make(map[string]Patient),
		doctors:      make(map[string]Doctor),
		appointments: make(map[string]Appointment),
		listCalls:    make(map[string]int),
		now:          now,
	}
}

func (r *memRepo) nextID(prefix string) string {
	r.seq++
	return fmt.Sprintf("%s-%d", prefix, r.seq)
}

func (r *memRepo) fail(err error) {
	r.mu.Lock()
	r.failWith = err
	r.mu.Unlock()
}

func (r *memRepo) calls(name string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.listCalls[name]
}

func (r *memRepo) ListPatients(_ context.Context, f PatientFilter) ([]Patient, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.listCalls["patients"]++
	if r.failWith != nil {
		return nil, r.failWith
	}
	out := []Patient{}
	for _, p := range r.patients {
		if f.Status != "" && p.Status != f.Status {
			continue
		}
		if f.Search != "" && !containsFold(f.Search, p.Name, p.Email, p.Phone) {
			continue
		}
		if f.CreatedSince != nil && p.CreatedAt.Before(*f.CreatedSince) {
			continue
		}
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (r *memRepo) GetPatient(_ context.Context, id string) (*Patient, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.failWith != nil {
		return nil, r.failWith
	}
	p, ok := r.patients[id]
	if !ok {
		return nil, ErrPatientNotFound
	}
	return &p, nil
}

func (r *memRepo) InsertPatient(_ context.Context, p Patient) (*Patient, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.failWith != nil {
		return nil, r.failWith
	}
	p.ID = r.nextID("pat")
	p.CreatedAt, p.UpdatedAt = r.now, r.now
	r.patients[p.ID] = p
	return &p, nil
}

func (r *memRepo) UpdatePatient(_ context.Context, id string, patch PatientPatch) (*Patient, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.failWith != nil {
		return nil, r.failWith
	}
	p, ok := r.patients[id]
	if !ok {
		return nil, ErrPatientNotFound
	}
	if patch.Name != nil {
		p.Name = *patch.Name
	}
	if patch.Email != nil {
		p.Email = *patch.Email
	}
	if patch.Phone != nil {
		p.Phone = *patch.Phone
	}
	if patch.Status != nil {
		p.Status = *patch.Status
	}
	p.UpdatedAt = r.now
	r.patients[id] = p
	return &p, nil
}

func (r *memRepo) DeletePatient(_ context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.failWith != nil {
		return r.failWith
	}
	if _, ok := r.patients[id]; !ok {
		return ErrPatientNotFound
	}
	delete(r.patients, id)
	return nil
}

func (r *memRepo) ListDoctors(_ context.Context, f DoctorFilter) ([]Doctor, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.listCalls["doctors"]++
	if r.failWith != nil {
		return nil, r.failWith
	}
	out := []Doctor{}
	for _, d := range r.doctors {
		if f.Status != "" && d.Status != f.Status {
			continue
		}
		if f.Specialization != "" && d.Specialization != f.Specialization {
			continue
		}
		if f.Search != "" && !containsFold(f.Search, d.Name, d.Specialization, d.Email) {
			continue
		}
		if f.Day != nil && !d.WorksOn(*f.Day) {
			continue
		}
		d.Availability = slices.Clone(d.Availability)
		out = append(out, d)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (r *memRepo) GetDoctor(_ context.Context, id string) (*Doctor, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.listCalls["doctor"]++
	if r.failWith != nil {
		return nil, r.failWith
	}
	d, ok := r.doctors[id]
	if !ok {
		return nil, ErrDoctorNotFound
	}
	d.Availability = slices.Clone(d.Availability)
	return &d, nil
}

func (r *memRepo) InsertDoctor(_ context.Context, d Doctor) (*Doctor, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.failWith != nil {
		return nil, r.failWith
	}
	d.ID = r.nextID("doc")
	d.CreatedAt, d.UpdatedAt = r.now, r.now
	r.doctors[d.ID] = d
	return &d, nil
}

func (r *memRepo) UpdateDoctor(_ context.Context, id string, patch DoctorPatch) (*Doctor, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.failWith != nil {
		return nil, r.failWith
	}
	d, ok := r.doctors[id]
	if !ok {
		return nil, ErrDoctorNotFound
	}
	if patch.Name != nil {
		d.Name = *patch.Name
	}
	if patch.Status != nil {
		d.Status = *patch.Status
	}
	if patch.Availability != nil {
		d.Availability = slices.Clone(patch.Availability)
	}
	if patch.Rating != nil {
		d.Rating = *patch.Rating
	}
	d.UpdatedAt = r.now
	r.doctors[id] = d
	return &d, nil
}

func (r *memRepo) DeleteDoctor(_ context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.failWith != nil {
		return r.failWith
	}
	if _, ok := r.doctors[id]; !ok {
		return ErrDoctorNotFound
	}
	delete(r.doctors, id)
	return nil
}

func (r *memRepo) detail(a Appointment) AppointmentDetail {
	d := AppointmentDetail{Appointment: a}
	if p, ok := r.patients[a.PatientID]; ok {
		d.Patient = &PatientSummary{ID: p.ID, Name: p.Name, Email: p.Email, Phone: p.Phone}
	}
	if doc, ok := r.doctors[a.DoctorID]; ok {
		d.Doctor = &DoctorSummary{ID: doc.ID, Name: doc.Name, Specialization: doc.Specialization, Email: doc.Email}
	}
	return d
}

func (r *memRepo) ListAppointments(_ context.Context, f AppointmentFilter) ([]AppointmentDetail, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.listCalls["appointments"]++
	if r.failWith != nil {
		return nil, r.failWith
	}
	out := []AppointmentDetail{}
	for _, a := range r.appointments {
		switch {
		case f.DoctorID != "" && a.DoctorID != f.DoctorID,
			f.PatientID != "" && a.PatientID != f.PatientID,
			f.Status != "" && a.Status != f.Status,
			f.ExcludeStatus != "" && a.Status == f.ExcludeStatus,
			f.ExcludeID != "" && a.ID == f.ExcludeID,
			f.Date != nil && !a.Date.Equal(*f.Date),
			f.From != nil && a.Date.Before(*f.From),
			f.To != nil && a.Date.After(*f.To):
			continue
		}
		out = append(out, r.detail(a))
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].Date.Equal(out[j].Date) {
			return out[i].Date.Before(out[j].Date)
		}
		return out[i].Time < out[j].Time
	})
	return out, nil
}

func (r *memRepo) GetAppointment(_ context.Context, id string) (*AppointmentDetail, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.failWith != nil {
		return nil, r.failWith
	}
	a, ok := r.appointments[id]
	if !ok {
		return nil, ErrAppointmentNotFound
	}
	d := r.detail(a)
	return &d, nil
}

func (r *memRepo) InsertAppointment(_ context.Context, a Appointment) (*AppointmentDetail, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.failWith != nil {
		return nil, r.failWith
	}
	a.ID = r.nextID("appt")
	a.CreatedAt, a.UpdatedAt = r.now, r.now
	r.appointments[a.ID] = a
	d := r.detail(a)
	return &d, nil
}

func (r *memRepo) UpdateAppointment(_ context.Context, id string, patch AppointmentPatch) (*AppointmentDetail, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.failWith != nil {
		return nil, r.failWith
	}
	a, ok := r.appointments[id]
	if !ok {
		return nil, ErrAppointmentNotFound
	}
	if patch.DoctorID != nil {
		a.DoctorID = *patch.DoctorID
	}
	if patch.Date != nil {
		a.Date = *patch.Date
	}
	if patch.Time != nil {
		a.Time = *patch.Time
	}
	if patch.Duration != nil {
		a.Duration = *patch.Duration
	}
	if patch.Reason != nil {
		a.Reason = *patch.Reason
	}
	if patch.Priority != nil {
		a.Priority = *patch.Priority
	}
	a.UpdatedAt = r.now
	r.appointments[id] = a
	d := r.detail(a)
	return &d, nil
}

func (r *memRepo) UpdateAppointmentStatus(_ context.Context, id string, from, to AppointmentStatus) (*AppointmentDetail, error) {
	if r.beforeStatusUpdate != nil {
		r.beforeStatusUpdate()
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.failWith != nil {
		return nil, r.failWith
	}
	a, ok := r.appointments[id]
	if !ok || a.Status != from {
		return nil, ErrAppointmentNotFound
	}
	a.Status = to
	a.UpdatedAt = r.now
	r.appointments[id] = a
	d := r.detail(a)
	return &d, nil
}

func (r *memRepo) DeleteAppointment(_ context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.failWith != nil {
		return r.failWith
	}
	if _, ok := r.appointments[id]; !ok {
		return ErrAppointmentNotFound
	}
	delete(r.appointments, id)
	return nil
}

func (r *memRepo) InsertEvent(_ context.Context, ev EventLog) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, ev)
	return nil
}

func (r *memRepo) eventTypes() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, len(r.events))
	for i, ev := range r.events {
		out[i] = ev.EventType
	}
	return out
}

func containsFold(q string, fields ...string) bool {
	q = strings.ToLower(q)
	for _, f := range fields {
		if strings.Contains(strings.ToLower(f), q) {
			return true
		}
	}
	return false
}
