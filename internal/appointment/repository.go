package appointment

import (
	"context"
	"time"
)

type AppointmentFilter struct {
	DoctorID  string
	PatientID string
	Status    AppointmentStatus
	// Date selects one calendar day; From/To select an inclusive range of days.
	Date *time.Time
	From *time.Time
	To   *time.Time
	// ExcludeStatus and ExcludeID narrow conflict checks.
	ExcludeStatus AppointmentStatus
	ExcludeID     string
}

type PatientFilter struct {
	Status       PatientStatus
	Search       string
	CreatedSince *time.Time
}

type DoctorFilter struct {
	Status         DoctorStatus
	Specialization string
	Search         string
	Day            *time.Weekday
}

// Patches carry only the fields to change; nil means unchanged.

type AppointmentPatch struct {
	PatientID *string
	DoctorID  *string
	Date      *time.Time
	Time      *TimeOfDay
	Duration  *int
	Reason    *string
	Type      *AppointmentType
	Priority  *Priority
}

func (p AppointmentPatch) Empty() bool {
	return p.PatientID == nil && p.DoctorID == nil && p.Date == nil && p.Time == nil &&
		p.Duration == nil && p.Reason == nil && p.Type == nil && p.Priority == nil
}

// Reschedules reports whether the patch moves the appointment in time or to another doctor.
func (p AppointmentPatch) Reschedules() bool {
	return p.DoctorID != nil || p.Date != nil || p.Time != nil || p.Duration != nil
}

type PatientPatch struct {
	Name        *string
	Email       *string
	Phone       *string
	DateOfBirth *time.Time
	Gender      *string
	Address     *string
	Status      *PatientStatus
}

type DoctorPatch struct {
	Name           *string
	Email          *string
	Phone          *string
	Specialization *string
	Experience     *int
	Availability   []time.Weekday
	Rating         *float64
	Status         *DoctorStatus
}

// Repository is the remote data boundary. Implementations return errors matching
// ErrNotFound, ErrConflict, ErrValidation or ErrRemoteUnavailable.
type Repository interface {
	ListPatients(ctx context.Context, f PatientFilter) ([]Patient, error)
	GetPatient(ctx context.Context, id string) (*Patient, error)
	InsertPatient(ctx context.Context, p Patient) (*Patient, error)
	UpdatePatient(ctx context.Context, id string, patch PatientPatch) (*Patient, error)
	DeletePatient(ctx context.Context, id string) error

	ListDoctors(ctx context.Context, f DoctorFilter) ([]Doctor, error)
	GetDoctor(ctx context.Context, id string) (*Doctor, error)
	InsertDoctor(ctx context.Context, d Doctor) (*Doctor, error)
	UpdateDoctor(ctx context.Context, id string, patch DoctorPatch) (*Doctor, error)
	DeleteDoctor(ctx context.Context, id string) error

	ListAppointments(ctx context.Context, f AppointmentFilter) ([]AppointmentDetail, error)
	GetAppointment(ctx context.Context, id string) (*AppointmentDetail, error)
	InsertAppointment(ctx context.Context, a Appointment) (*AppointmentDetail, error)
	UpdateAppointment(ctx context.Context, id string, patch AppointmentPatch) (*AppointmentDetail, error)
	// UpdateAppointmentStatus only applies when the stored status is still from.
	UpdateAppointmentStatus(ctx context.Context, id string, from, to AppointmentStatus) (*AppointmentDetail, error)
	DeleteAppointment(ctx context.Context, id string) error

	// Event logging
	InsertEvent(ctx context.Context, ev EventLog) error
}
