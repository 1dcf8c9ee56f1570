package appointment

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/hackgods/clinic-scheduling/internal/cache"
	"github.com/hackgods/clinic-scheduling/internal/config"
	redisclient "github.com/hackgods/clinic-scheduling/internal/redis"
)

const (
	EventAppointmentCreated       = "APPOINTMENT_CREATED"
	EventAppointmentUpdated       = "APPOINTMENT_UPDATED"
	EventAppointmentStatusChanged = "APPOINTMENT_STATUS_CHANGED"
	EventAppointmentDeleted       = "APPOINTMENT_DELETED"
)

var ErrScheduleBusy = fmt.Errorf("%w: schedule is currently being booked, please retry", ErrConflict)

// Service is the scheduling core. Writes go to the repository first and are then
// reflected in the cache; reads go through the cache.
type Service struct {
	repo   Repository
	cache  *cache.Cache
	locker redisclient.Locker
	cfg    config.Config
	grid   Grid
	logger zerolog.Logger
	now    func() time.Time
}

func NewService(repo Repository, c *cache.Cache, locker redisclient.Locker, cfg config.Config, logger zerolog.Logger) (*Service, error) {
	grid := Grid{
		Open:  TimeOfDay(cfg.ClinicOpen / time.Minute),
		Close: TimeOfDay(cfg.ClinicClose / time.Minute),
		Step:  cfg.SlotMinutes,
	}
	if err := grid.Validate(); err != nil {
		return nil, fmt.Errorf("clinic hours: %w", err)
	}
	if cfg.Location == nil {
		cfg.Location = time.UTC
	}
	if cfg.DefaultDuration <= 0 {
		cfg.DefaultDuration = DefaultDuration
	}
	if locker == nil {
		locker = redisclient.NopLocker{}
	}

	return &Service{
		repo:   repo,
		cache:  c,
		locker: locker,
		cfg:    cfg,
		grid:   grid,
		logger: logger.With().Str("component", "appointments").Logger(),
		now:    time.Now,
	}, nil
}

func (s *Service) Grid() Grid { return s.grid }

func (s *Service) today() time.Time {
	return DateOf(s.now().In(s.cfg.Location))
}

type CreateInput struct {
	PatientID string
	DoctorID  string
	Date      time.Time
	Time      TimeOfDay
	Duration  int // 0 means the configured default
	Reason    string
	Type      AppointmentType
	Priority  Priority
	// AutoConfirm overrides the configured default when set.
	AutoConfirm *bool
}

func (in *CreateInput) normalize(defaultDuration int) error {
	if in.PatientID == "" {
		return invalid("patient_id", "is required")
	}
	if in.DoctorID == "" {
		return invalid("doctor_id", "is required")
	}
	if in.Date.IsZero() {
		return invalid("date", "is required")
	}
	in.Date = DateOf(in.Date)
	if in.Duration == 0 {
		in.Duration = defaultDuration
	}
	if in.Type == "" {
		in.Type = TypeConsultation
	} else if !in.Type.Valid() {
		return invalid("type", "unknown appointment type %q", in.Type)
	}
	if in.Priority == "" {
		in.Priority = PriorityMedium
	} else if !in.Priority.Valid() {
		return invalid("priority", "unknown priority %q", in.Priority)
	}
	return nil
}

// CreateAppointment books a new appointment. The conflict check and the insert run
// under the doctor's schedule lock for that day, so two concurrent requests for the
// same slot cannot both succeed.
func (s *Service) CreateAppointment(ctx context.Context, in CreateInput) (*AppointmentDetail, error) {
	ctx = context.WithoutCancel(ctx)

	if err := in.normalize(s.cfg.DefaultDuration); err != nil {
		return nil, err
	}

	if _, err := s.repo.GetPatient(ctx, in.PatientID); err != nil {
		return nil, fmt.Errorf("load patient: %w", err)
	}
	doctor, err := s.repo.GetDoctor(ctx, in.DoctorID)
	if err != nil {
		return nil, fmt.Errorf("load doctor: %w", err)
	}
	span, err := s.checkSchedule(doctor, in.Date, in.Time, in.Duration)
	if err != nil {
		return nil, err
	}

	status := StatusPending
	autoConfirm := s.cfg.AutoConfirm
	if in.AutoConfirm != nil {
		autoConfirm = *in.AutoConfirm
	}
	if autoConfirm {
		status = StatusConfirmed
	}

	var created *AppointmentDetail
	err = s.locker.WithScheduleLock(ctx, in.DoctorID, in.Date, func(lockCtx context.Context) error {
		if err := s.ensureFree(lockCtx, in.DoctorID, in.Date, span, ""); err != nil {
			return err
		}

		appt, err := s.repo.InsertAppointment(lockCtx, Appointment{
			PatientID: in.PatientID,
			DoctorID:  in.DoctorID,
			Date:      in.Date,
			Time:      in.Time,
			Duration:  in.Duration,
			Reason:    in.Reason,
			Type:      in.Type,
			Priority:  in.Priority,
			Status:    status,
		})
		if err != nil {
			return fmt.Errorf("create appointment: %w", err)
		}
		created = appt
		return nil
	})
	if err != nil {
		return nil, lockError(err)
	}

	s.logEvent(ctx, created.ID, EventAppointmentCreated, map[string]any{
		"doctor_id":  created.DoctorID,
		"patient_id": created.PatientID,
		"date":       FormatDate(created.Date),
		"time":       created.Time.String(),
		"status":     created.Status,
	})
	s.applyAppointment(created.ID, *created, false, slotsKey(&created.Appointment))

	return created, nil
}

// UpdateAppointment edits an appointment. Changes to doctor, date, time or duration
// are conflict-checked against the rest of the doctor's day.
func (s *Service) UpdateAppointment(ctx context.Context, id string, patch AppointmentPatch) (*AppointmentDetail, error) {
	ctx = context.WithoutCancel(ctx)

	if patch.Empty() {
		return nil, invalid("patch", "nothing to update")
	}
	if patch.Type != nil && !patch.Type.Valid() {
		return nil, invalid("type", "unknown appointment type %q", *patch.Type)
	}
	if patch.Priority != nil && !patch.Priority.Valid() {
		return nil, invalid("priority", "unknown priority %q", *patch.Priority)
	}
	if patch.Date != nil {
		d := DateOf(*patch.Date)
		patch.Date = &d
	}

	current, err := s.repo.GetAppointment(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("load appointment: %w", err)
	}

	var updated *AppointmentDetail
	if !patch.Reschedules() {
		updated, err = s.repo.UpdateAppointment(ctx, id, patch)
		if err != nil {
			return nil, fmt.Errorf("update appointment: %w", err)
		}
	} else {
		if current.Status.Terminal() {
			return nil, fmt.Errorf("%w: cannot reschedule a %s appointment", ErrInvalidTransition, current.Status)
		}

		target := current.Appointment
		if patch.DoctorID != nil {
			target.DoctorID = *patch.DoctorID
		}
		if patch.Date != nil {
			target.Date = *patch.Date
		}
		if patch.Time != nil {
			target.Time = *patch.Time
		}
		if patch.Duration != nil {
			target.Duration = *patch.Duration
		}

		doctor, err := s.repo.GetDoctor(ctx, target.DoctorID)
		if err != nil {
			return nil, fmt.Errorf("load doctor: %w", err)
		}
		span, err := s.checkSchedule(doctor, target.Date, target.Time, target.Duration)
		if err != nil {
			return nil, err
		}

		err = s.locker.WithScheduleLock(ctx, target.DoctorID, target.Date, func(lockCtx context.Context) error {
			if err := s.ensureFree(lockCtx, target.DoctorID, target.Date, span, id); err != nil {
				return err
			}
			updated, err = s.repo.UpdateAppointment(lockCtx, id, patch)
			if err != nil {
				return fmt.Errorf("update appointment: %w", err)
			}
			return nil
		})
		if err != nil {
			return nil, lockError(err)
		}
	}

	s.logEvent(ctx, id, EventAppointmentUpdated, map[string]any{
		"rescheduled": patch.Reschedules(),
		"from_date":   FormatDate(current.Date),
		"from_time":   current.Time.String(),
		"to_date":     FormatDate(updated.Date),
		"to_time":     updated.Time.String(),
	})
	s.applyAppointment(id, *updated, false, slotsKey(&current.Appointment), slotsKey(&updated.Appointment))

	return updated, nil
}

func (s *Service) DeleteAppointment(ctx context.Context, id string) error {
	ctx = context.WithoutCancel(ctx)

	current, err := s.repo.GetAppointment(ctx, id)
	if err != nil {
		return fmt.Errorf("load appointment: %w", err)
	}
	if err := s.repo.DeleteAppointment(ctx, id); err != nil {
		return fmt.Errorf("delete appointment: %w", err)
	}

	s.logEvent(ctx, id, EventAppointmentDeleted, map[string]any{
		"doctor_id": current.DoctorID,
		"date":      FormatDate(current.Date),
		"status":    current.Status,
	})
	s.applyAppointment(id, AppointmentDetail{}, true, slotsKey(&current.Appointment))
	return nil
}

// UpdateStatus moves an appointment through its lifecycle. The write only applies if
// the stored status is still the one the transition was checked against; losing that
// race reports ErrInvalidTransition.
func (s *Service) UpdateStatus(ctx context.Context, id string, to AppointmentStatus) (*AppointmentDetail, error) {
	ctx = context.WithoutCancel(ctx)

	current, err := s.repo.GetAppointment(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("load appointment: %w", err)
	}
	if err := CanTransition(current.Status, to); err != nil {
		return nil, err
	}

	updated, err := s.repo.UpdateAppointmentStatus(ctx, id, current.Status, to)
	if errors.Is(err, ErrNotFound) {
		latest, rerr := s.repo.GetAppointment(ctx, id)
		if rerr != nil {
			return nil, fmt.Errorf("reload appointment: %w", rerr)
		}
		return nil, fmt.Errorf("%w: status changed to %s concurrently", ErrInvalidTransition, latest.Status)
	}
	if err != nil {
		return nil, fmt.Errorf("update appointment status: %w", err)
	}

	s.logEvent(ctx, id, EventAppointmentStatusChanged, map[string]any{
		"from": current.Status,
		"to":   to,
	})
	s.applyAppointment(id, *updated, false, slotsKey(&updated.Appointment))

	return updated, nil
}

func (s *Service) Confirm(ctx context.Context, id string) (*AppointmentDetail, error) {
	return s.UpdateStatus(ctx, id, StatusConfirmed)
}

func (s *Service) Complete(ctx context.Context, id string) (*AppointmentDetail, error) {
	return s.UpdateStatus(ctx, id, StatusCompleted)
}

func (s *Service) Cancel(ctx context.Context, id string) (*AppointmentDetail, error) {
	return s.UpdateStatus(ctx, id, StatusCancelled)
}

// HasConflict reports whether the interval overlaps a non-cancelled appointment of
// the doctor on date. It reads the store directly and returns any read error.
func (s *Service) HasConflict(ctx context.Context, doctorID string, date time.Time, start TimeOfDay, duration int, excludeID string) (bool, error) {
	span, err := NewInterval(start, duration)
	if err != nil {
		return false, err
	}
	booked, err := s.bookedOn(ctx, doctorID, DateOf(date))
	if err != nil {
		return false, err
	}
	return HasConflict(booked, span, excludeID), nil
}

func (s *Service) checkSchedule(doctor *Doctor, date time.Time, start TimeOfDay, duration int) (Interval, error) {
	span, err := NewInterval(start, duration)
	if err != nil {
		return Interval{}, err
	}
	if !s.grid.Aligned(start) {
		return Interval{}, invalid("time", "%s is not a slot start between %s and %s", start, s.grid.Open, s.grid.Close)
	}
	if span.End > s.grid.Close {
		return Interval{}, invalid("duration", "%s-%s runs past closing time %s", span.Start, span.End, s.grid.Close)
	}
	if !doctor.WorksOn(date.Weekday()) {
		return Interval{}, invalid("date", "doctor %s does not work on %s", doctor.Name, date.Weekday())
	}
	// same rule ComputeSlots applies when it greys out the whole day
	if doctor.Status != DoctorAvailable && DateOf(date).Equal(s.today()) {
		return Interval{}, fmt.Errorf("%w: doctor %s is %s today", ErrConflict, doctor.Name, doctor.Status)
	}
	return span, nil
}

func (s *Service) bookedOn(ctx context.Context, doctorID string, date time.Time) ([]Appointment, error) {
	booked, err := s.repo.ListAppointments(ctx, AppointmentFilter{
		DoctorID:      doctorID,
		Date:          &date,
		ExcludeStatus: StatusCancelled,
	})
	if err != nil {
		return nil, fmt.Errorf("load booked appointments: %w", err)
	}
	return appointmentsOf(booked), nil
}

func (s *Service) ensureFree(ctx context.Context, doctorID string, date time.Time, span Interval, excludeID string) error {
	booked, err := s.bookedOn(ctx, doctorID, date)
	if err != nil {
		return err
	}
	if clash := FirstConflict(booked, span, excludeID); clash != nil {
		return fmt.Errorf("%w: %s-%s clashes with appointment %s at %s", ErrConflict, span.Start, span.End, clash.ID, clash.Time)
	}
	return nil
}

func lockError(err error) error {
	if errors.Is(err, redisclient.ErrLockNotAcquired) {
		return ErrScheduleBusy
	}
	return err
}

func slotsKey(a *Appointment) cache.Key {
	return cache.Slots(a.DoctorID, FormatDate(a.Date))
}

func (s *Service) applyAppointment(id string, v AppointmentDetail, deleted bool, also ...cache.Key) {
	cache.ApplyMutation(s.cache, cache.Mutation[AppointmentDetail]{
		Kind:    cache.KindAppointments,
		ID:      id,
		Value:   cloneDetail(v),
		Deleted: deleted,
		IDOf:    func(a AppointmentDetail) string { return a.ID },
		Also:    append([]cache.Key{cache.Root(cache.KindDashboard)}, also...),
	})
}

func (s *Service) logEvent(ctx context.Context, appointmentID, eventType string, payload map[string]any) {
	data, err := json.Marshal(payload)
	if err != nil {
		s.logger.Warn().Err(err).Str("event", eventType).Msg("marshal event payload")
		data = nil
	}

	apptID := appointmentID
	ev := EventLog{
		EventType:     eventType,
		AppointmentID: &apptID,
		Payload:       data,
		CreatedAt:     s.now(),
	}

	if err := s.repo.InsertEvent(ctx, ev); err != nil {
		s.logger.Error().Err(err).
			Str("event", eventType).
			Str("appointment_id", appointmentID).
			Msg("failed to insert event log")
	}
}
