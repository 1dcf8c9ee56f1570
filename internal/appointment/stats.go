package appointment

import (
	"fmt"
	"math"
	"slices"
	"time"
)

type Stats struct {
	Total          int
	Pending        int
	Confirmed      int
	Completed      int
	Cancelled      int
	Today          int
	ThisWeek       int
	ByType         map[AppointmentType]int
	ByPriority     map[Priority]int
	CompletionRate float64
}

// ComputeStats aggregates appts relative to now. The week containing now begins on
// weekStart.
func ComputeStats(appts []Appointment, now time.Time, weekStart time.Weekday) Stats {
	st := Stats{
		ByType:     make(map[AppointmentType]int),
		ByPriority: make(map[Priority]int),
	}

	today := DateOf(now)
	offset := (int(today.Weekday()) - int(weekStart) + 7) % 7
	weekFrom := today.AddDate(0, 0, -offset)
	weekTo := weekFrom.AddDate(0, 0, 7)

	for i := range appts {
		a := &appts[i]
		st.Total++
		switch a.Status {
		case StatusPending:
			st.Pending++
		case StatusConfirmed:
			st.Confirmed++
		case StatusCompleted:
			st.Completed++
		case StatusCancelled:
			st.Cancelled++
		}
		if a.Type != "" {
			st.ByType[a.Type]++
		}
		if a.Priority != "" {
			st.ByPriority[a.Priority]++
		}

		d := DateOf(a.Date)
		if d.Equal(today) {
			st.Today++
		}
		if !d.Before(weekFrom) && d.Before(weekTo) {
			st.ThisWeek++
		}
	}

	if st.Total > 0 {
		st.CompletionRate = round2(float64(st.Completed) / float64(st.Total) * 100)
	}
	return st
}

type DoctorStats struct {
	Total           int
	Available       int
	Busy            int
	OffDuty         int
	Specializations map[string]int
	AverageRating   float64
}

func ComputeDoctorStats(doctors []Doctor) DoctorStats {
	st := DoctorStats{Specializations: make(map[string]int)}
	var ratings float64
	for i := range doctors {
		d := &doctors[i]
		st.Total++
		switch d.Status {
		case DoctorAvailable:
			st.Available++
		case DoctorBusy:
			st.Busy++
		case DoctorOffDuty:
			st.OffDuty++
		}
		if d.Specialization != "" {
			st.Specializations[d.Specialization]++
		}
		ratings += d.Rating
	}
	if st.Total > 0 {
		st.AverageRating = math.Round(ratings/float64(st.Total)*10) / 10
	}
	return st
}

type PatientStats struct {
	Total         int
	Active        int
	Inactive      int
	RecentlyAdded int
}

// ComputePatientStats counts patients; RecentlyAdded covers the seven days before now.
func ComputePatientStats(patients []Patient, now time.Time) PatientStats {
	var st PatientStats
	since := now.AddDate(0, 0, -7)
	for i := range patients {
		p := &patients[i]
		st.Total++
		switch p.Status {
		case PatientActive:
			st.Active++
		case PatientInactive:
			st.Inactive++
		}
		if !p.CreatedAt.Before(since) {
			st.RecentlyAdded++
		}
	}
	return st
}

// DashboardWindow is how many days back the trend and performance views look.
const DashboardWindow = 30

// DayCounts is one date of the appointment trend.
type DayCounts struct {
	Date      time.Time
	Total     int
	Pending   int
	Confirmed int
	Completed int
	Cancelled int
}

// ComputeTrends counts appointments per date and status, from window days before now
// onwards (future bookings included), ascending by date. Dates without appointments
// are omitted.
func ComputeTrends(appts []Appointment, now time.Time, window int) []DayCounts {
	since := DateOf(now).AddDate(0, 0, -window)
	byDate := make(map[time.Time]*DayCounts)
	for i := range appts {
		a := &appts[i]
		d := DateOf(a.Date)
		if d.Before(since) {
			continue
		}
		day, ok := byDate[d]
		if !ok {
			day = &DayCounts{Date: d}
			byDate[d] = day
		}
		day.Total++
		switch a.Status {
		case StatusPending:
			day.Pending++
		case StatusConfirmed:
			day.Confirmed++
		case StatusCompleted:
			day.Completed++
		case StatusCancelled:
			day.Cancelled++
		}
	}

	out := make([]DayCounts, 0, len(byDate))
	for _, day := range byDate {
		out = append(out, *day)
	}
	slices.SortFunc(out, func(a, b DayCounts) int { return a.Date.Compare(b.Date) })
	return out
}

type Performance struct {
	TotalAppointments     int
	CompletedAppointments int
	CompletionRate        float64
	AverageRating         float64
}

// ComputePerformance reports the completion rate of appointments dated within window
// days before now (or later), and the average rating over all doctors.
func ComputePerformance(appts []Appointment, doctors []Doctor, now time.Time, window int) Performance {
	var p Performance
	since := DateOf(now).AddDate(0, 0, -window)
	for i := range appts {
		if DateOf(appts[i].Date).Before(since) {
			continue
		}
		p.TotalAppointments++
		if appts[i].Status == StatusCompleted {
			p.CompletedAppointments++
		}
	}
	if p.TotalAppointments > 0 {
		p.CompletionRate = round2(float64(p.CompletedAppointments) / float64(p.TotalAppointments) * 100)
	}
	p.AverageRating = ComputeDoctorStats(doctors).AverageRating
	return p
}

type AlertLevel string

const (
	AlertInfo    AlertLevel = "info"
	AlertWarning AlertLevel = "warning"
)

const (
	AlertPendingAppointments = "pending-appointments"
	AlertTodayAppointments   = "today-appointments"
	AlertUnavailableDoctors  = "unavailable-doctors"
)

// PendingAlertAge is how long an appointment may wait for confirmation before it is
// flagged.
const PendingAlertAge = 24 * time.Hour

type Alert struct {
	ID      string
	Level   AlertLevel
	Title   string
	Message string
	Count   int
}

// ComputeAlerts flags appointments left Pending for longer than PendingAlertAge,
// today's schedule, and off-duty doctors. Checks with nothing to report produce no
// alert.
func ComputeAlerts(appts []Appointment, doctors []Doctor, now time.Time) []Alert {
	today := DateOf(now)
	cutoff := now.Add(-PendingAlertAge)

	var pending, scheduled, offDuty int
	for i := range appts {
		a := &appts[i]
		if a.Status == StatusPending && a.CreatedAt.Before(cutoff) {
			pending++
		}
		if DateOf(a.Date).Equal(today) {
			scheduled++
		}
	}
	for i := range doctors {
		if doctors[i].Status == DoctorOffDuty {
			offDuty++
		}
	}

	alerts := []Alert{}
	if pending > 0 {
		alerts = append(alerts, Alert{
			ID:      AlertPendingAppointments,
			Level:   AlertWarning,
			Title:   "Pending Appointments",
			Message: fmt.Sprintf("%d appointment(s) have been pending for more than 24 hours", pending),
			Count:   pending,
		})
	}
	if scheduled > 0 {
		alerts = append(alerts, Alert{
			ID:      AlertTodayAppointments,
			Level:   AlertInfo,
			Title:   "Today's Schedule",
			Message: fmt.Sprintf("You have %d appointment(s) scheduled for today", scheduled),
			Count:   scheduled,
		})
	}
	if offDuty > 0 {
		alerts = append(alerts, Alert{
			ID:      AlertUnavailableDoctors,
			Level:   AlertWarning,
			Title:   "Unavailable Doctors",
			Message: fmt.Sprintf("%d doctor(s) are currently off duty", offDuty),
			Count:   offDuty,
		})
	}
	return alerts
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
