package appointment

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

type AppointmentStatus string

const (
	StatusPending   AppointmentStatus = "Pending"
	StatusConfirmed AppointmentStatus = "Confirmed"
	StatusCompleted AppointmentStatus = "Completed"
	StatusCancelled AppointmentStatus = "Cancelled"
)

type AppointmentType string

const (
	TypeConsultation AppointmentType = "Consultation"
	TypeFollowUp     AppointmentType = "Follow-up"
	TypeEmergency    AppointmentType = "Emergency"
	TypeSurgery      AppointmentType = "Surgery"
	TypeCheckup      AppointmentType = "Checkup"
)

type Priority string

const (
	PriorityLow    Priority = "Low"
	PriorityMedium Priority = "Medium"
	PriorityHigh   Priority = "High"
)

type PatientStatus string

const (
	PatientActive   PatientStatus = "Active"
	PatientInactive PatientStatus = "Inactive"
)

type DoctorStatus string

const (
	DoctorAvailable DoctorStatus = "Available"
	DoctorBusy      DoctorStatus = "Busy"
	DoctorOffDuty   DoctorStatus = "Off Duty"
)

const DefaultDuration = 30

type Patient struct {
	ID          string
	Name        string
	Email       string
	Phone       string
	DateOfBirth time.Time
	Gender      string
	Address     string
	Status      PatientStatus
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

type Doctor struct {
	ID             string
	Name           string
	Email          string
	Phone          string
	Specialization string
	Experience     int
	Availability   []time.Weekday
	Rating         float64
	Status         DoctorStatus
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// WorksOn reports whether the doctor accepts bookings on the given weekday.
func (d *Doctor) WorksOn(day time.Weekday) bool {
	for _, w := range d.Availability {
		if w == day {
			return true
		}
	}
	return false
}

type Appointment struct {
	ID        string
	PatientID string
	DoctorID  string
	Date      time.Time
	Time      TimeOfDay
	Duration  int
	Reason    string
	Type      AppointmentType
	Priority  Priority
	Status    AppointmentStatus
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Interval returns the half-open span the appointment occupies on its date.
func (a *Appointment) Interval() Interval {
	return Interval{Start: a.Time, End: a.Time + TimeOfDay(a.Duration)}
}

type PatientSummary struct {
	ID    string
	Name  string
	Email string
	Phone string
}

type DoctorSummary struct {
	ID             string
	Name           string
	Specialization string
	Email          string
}

// AppointmentDetail is an appointment joined with the people it refers to.
type AppointmentDetail struct {
	Appointment
	Patient *PatientSummary
	Doctor  *DoctorSummary
}

type TimeSlot struct {
	Time      TimeOfDay
	Available bool
}

type EventLog struct {
	ID            int64
	EventType     string
	AppointmentID *string
	Payload       []byte
	CreatedAt     time.Time
}

// TimeOfDay is a wall-clock time expressed in minutes since midnight.
type TimeOfDay int

// ParseTimeOfDay accepts "HH:MM" or "HH:MM:SS".
func ParseTimeOfDay(s string) (TimeOfDay, error) {
	parts := strings.Split(strings.TrimSpace(s), ":")
	if len(parts) < 2 || len(parts) > 3 {
		return 0, &ValidationError{Field: "time", Reason: fmt.Sprintf("%q is not HH:MM", s)}
	}
	h, errH := strconv.Atoi(parts[0])
	m, errM := strconv.Atoi(parts[1])
	if errH != nil || errM != nil || h < 0 || h > 23 || m < 0 || m > 59 {
		return 0, &ValidationError{Field: "time", Reason: fmt.Sprintf("%q is not HH:MM", s)}
	}
	return TimeOfDay(h*60 + m), nil
}

func (t TimeOfDay) String() string {
	return fmt.Sprintf("%02d:%02d", int(t)/60, int(t)%60)
}

const dateLayout = "2006-01-02"

// ParseDate parses a calendar date into midnight UTC.
func ParseDate(s string) (time.Time, error) {
	d, err := time.Parse(dateLayout, strings.TrimSpace(s))
	if err != nil {
		return time.Time{}, &ValidationError{Field: "date", Reason: fmt.Sprintf("%q is not YYYY-MM-DD", s)}
	}
	return d, nil
}

// DateOf drops the clock part of t, keeping the calendar date it has in its own location.
func DateOf(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func FormatDate(t time.Time) string {
	return t.Format(dateLayout)
}

var weekdays = map[string]time.Weekday{
	"sunday":    time.Sunday,
	"monday":    time.Monday,
	"tuesday":   time.Tuesday,
	"wednesday": time.Wednesday,
	"thursday":  time.Thursday,
	"friday":    time.Friday,
	"saturday":  time.Saturday,
}

func ParseWeekday(s string) (time.Weekday, error) {
	w, ok := weekdays[strings.ToLower(strings.TrimSpace(s))]
	if !ok {
		return 0, &ValidationError{Field: "availability", Reason: fmt.Sprintf("unknown weekday %q", s)}
	}
	return w, nil
}

func ParseWeekdays(names []string) ([]time.Weekday, error) {
	out := make([]time.Weekday, 0, len(names))
	for _, n := range names {
		w, err := ParseWeekday(n)
		if err != nil {
			return nil, err
		}
		out = append(out, w)
	}
	return out, nil
}

func WeekdayNames(days []time.Weekday) []string {
	out := make([]string, 0, len(days))
	for _, d := range days {
		out = append(out, d.String())
	}
	return out
}

func (s AppointmentStatus) Valid() bool {
	switch s {
	case StatusPending, StatusConfirmed, StatusCompleted, StatusCancelled:
		return true
	}
	return false
}

func (t AppointmentType) Valid() bool {
	switch t {
	case TypeConsultation, TypeFollowUp, TypeEmergency, TypeSurgery, TypeCheckup:
		return true
	}
	return false
}

func (p Priority) Valid() bool {
	switch p {
	case PriorityLow, PriorityMedium, PriorityHigh:
		return true
	}
	return false
}

func (s PatientStatus) Valid() bool {
	return s == PatientActive || s == PatientInactive
}

func (s DoctorStatus) Valid() bool {
	switch s {
	case DoctorAvailable, DoctorBusy, DoctorOffDuty:
		return true
	}
	return false
}
