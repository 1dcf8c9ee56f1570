package api

import (
	"time"

	"github.com/hackgods/clinic-scheduling/internal/appointment"
)

type CreateAppointmentRequest struct {
	PatientID   string `json:"patient_id"`
	DoctorID    string `json:"doctor_id"`
	Date        string `json:"date"`
	Time        string `json:"time"`
	Duration    int    `json:"duration,omitempty"`
	Reason      string `json:"reason"`
	Type        string `json:"type,omitempty"`
	Priority    string `json:"priority,omitempty"`
	AutoConfirm *bool  `json:"auto_confirm,omitempty"`
}

func (req CreateAppointmentRequest) input() (appointment.CreateInput, error) {
	in := appointment.CreateInput{
		PatientID:   req.PatientID,
		DoctorID:    req.DoctorID,
		Duration:    req.Duration,
		Reason:      req.Reason,
		Type:        appointment.AppointmentType(req.Type),
		Priority:    appointment.Priority(req.Priority),
		AutoConfirm: req.AutoConfirm,
	}
	var err error
	if in.Date, err = appointment.ParseDate(req.Date); err != nil {
		return in, err
	}
	if in.Time, err = appointment.ParseTimeOfDay(req.Time); err != nil {
		return in, err
	}
	return in, nil
}

type UpdateAppointmentRequest struct {
	PatientID *string `json:"patient_id"`
	DoctorID  *string `json:"doctor_id"`
	Date      *string `json:"date"`
	Time      *string `json:"time"`
	Duration  *int    `json:"duration"`
	Reason    *string `json:"reason"`
	Type      *string `json:"type"`
	Priority  *string `json:"priority"`
}

func (req UpdateAppointmentRequest) patch() (appointment.AppointmentPatch, error) {
	p := appointment.AppointmentPatch{
		PatientID: req.PatientID,
		DoctorID:  req.DoctorID,
		Duration:  req.Duration,
		Reason:    req.Reason,
	}
	if req.Date != nil {
		d, err := appointment.ParseDate(*req.Date)
		if err != nil {
			return p, err
		}
		p.Date = &d
	}
	if req.Time != nil {
		t, err := appointment.ParseTimeOfDay(*req.Time)
		if err != nil {
			return p, err
		}
		p.Time = &t
	}
	if req.Type != nil {
		t := appointment.AppointmentType(*req.Type)
		p.Type = &t
	}
	if req.Priority != nil {
		pr := appointment.Priority(*req.Priority)
		p.Priority = &pr
	}
	return p, nil
}

type StatusRequest struct {
	Status string `json:"status"`
}

type PersonSummary struct {
	ID             string `json:"id"`
	Name           string `json:"name"`
	Email          string `json:"email"`
	Phone          string `json:"phone,omitempty"`
	Specialization string `json:"specialization,omitempty"`
}

type AppointmentResponse struct {
	ID        string         `json:"id"`
	PatientID string         `json:"patient_id"`
	DoctorID  string         `json:"doctor_id"`
	Date      string         `json:"date"`
	Time      string         `json:"time"`
	Duration  int            `json:"duration"`
	Reason    string         `json:"reason"`
	Type      string         `json:"type"`
	Priority  string         `json:"priority"`
	Status    string         `json:"status"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	Patient   *PersonSummary `json:"patient,omitempty"`
	Doctor    *PersonSummary `json:"doctor,omitempty"`
}

func toAppointmentResponse(a *appointment.AppointmentDetail) AppointmentResponse {
	resp := AppointmentResponse{
		ID:        a.ID,
		PatientID: a.PatientID,
		DoctorID:  a.DoctorID,
		Date:      appointment.FormatDate(a.Date),
		Time:      a.Time.String(),
		Duration:  a.Duration,
		Reason:    a.Reason,
		Type:      string(a.Type),
		Priority:  string(a.Priority),
		Status:    string(a.Status),
		CreatedAt: a.CreatedAt,
		UpdatedAt: a.UpdatedAt,
	}
	if a.Patient != nil {
		resp.Patient = &PersonSummary{ID: a.Patient.ID, Name: a.Patient.Name, Email: a.Patient.Email, Phone: a.Patient.Phone}
	}
	if a.Doctor != nil {
		resp.Doctor = &PersonSummary{ID: a.Doctor.ID, Name: a.Doctor.Name, Email: a.Doctor.Email, Specialization: a.Doctor.Specialization}
	}
	return resp
}

func toAppointmentResponses(list []appointment.AppointmentDetail) []AppointmentResponse {
	out := make([]AppointmentResponse, 0, len(list))
	for i := range list {
		out = append(out, toAppointmentResponse(&list[i]))
	}
	return out
}

type SlotResponse struct {
	Time      string `json:"time"`
	Available bool   `json:"available"`
}

type ConflictResponse struct {
	Conflict bool `json:"conflict"`
}

type PatientRequest struct {
	Name        *string `json:"name"`
	Email       *string `json:"email"`
	Phone       *string `json:"phone"`
	DateOfBirth *string `json:"date_of_birth"`
	Gender      *string `json:"gender"`
	Address     *string `json:"address"`
	Status      *string `json:"status"`
}

func (req PatientRequest) patch() (appointment.PatientPatch, error) {
	p := appointment.PatientPatch{
		Name:    req.Name,
		Email:   req.Email,
		Phone:   req.Phone,
		Gender:  req.Gender,
		Address: req.Address,
	}
	if req.DateOfBirth != nil && *req.DateOfBirth != "" {
		d, err := appointment.ParseDate(*req.DateOfBirth)
		if err != nil {
			return p, err
		}
		p.DateOfBirth = &d
	}
	if req.Status != nil {
		s := appointment.PatientStatus(*req.Status)
		p.Status = &s
	}
	return p, nil
}

func (req PatientRequest) patient() (appointment.Patient, error) {
	p, err := req.patch()
	if err != nil {
		return appointment.Patient{}, err
	}
	out := appointment.Patient{
		Name:    deref(p.Name),
		Email:   deref(p.Email),
		Phone:   deref(p.Phone),
		Gender:  deref(p.Gender),
		Address: deref(p.Address),
		Status:  deref(p.Status),
	}
	if p.DateOfBirth != nil {
		out.DateOfBirth = *p.DateOfBirth
	}
	return out, nil
}

type PatientResponse struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	Email       string    `json:"email"`
	Phone       string    `json:"phone"`
	DateOfBirth string    `json:"date_of_birth,omitempty"`
	Gender      string    `json:"gender,omitempty"`
	Address     string    `json:"address,omitempty"`
	Status      string    `json:"status"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

func toPatientResponse(p *appointment.Patient) PatientResponse {
	resp := PatientResponse{
		ID:        p.ID,
		Name:      p.Name,
		Email:     p.Email,
		Phone:     p.Phone,
		Gender:    p.Gender,
		Address:   p.Address,
		Status:    string(p.Status),
		CreatedAt: p.CreatedAt,
		UpdatedAt: p.UpdatedAt,
	}
	if !p.DateOfBirth.IsZero() {
		resp.DateOfBirth = appointment.FormatDate(p.DateOfBirth)
	}
	return resp
}

func toPatientResponses(list []appointment.Patient) []PatientResponse {
	out := make([]PatientResponse, 0, len(list))
	for i := range list {
		out = append(out, toPatientResponse(&list[i]))
	}
	return out
}

type DoctorRequest struct {
	Name           *string  `json:"name"`
	Email          *string  `json:"email"`
	Phone          *string  `json:"phone"`
	Specialization *string  `json:"specialization"`
	Experience     *int     `json:"experience"`
	Availability   []string `json:"availability"`
	Rating         *float64 `json:"rating"`
	Status         *string  `json:"status"`
}

func (req DoctorRequest) patch() (appointment.DoctorPatch, error) {
	p := appointment.DoctorPatch{
		Name:           req.Name,
		Email:          req.Email,
		Phone:          req.Phone,
		Specialization: req.Specialization,
		Experience:     req.Experience,
		Rating:         req.Rating,
	}
	if req.Availability != nil {
		days, err := appointment.ParseWeekdays(req.Availability)
		if err != nil {
			return p, err
		}
		p.Availability = days
	}
	if req.Status != nil {
		s := appointment.DoctorStatus(*req.Status)
		p.Status = &s
	}
	return p, nil
}

func (req DoctorRequest) doctor() (appointment.Doctor, error) {
	p, err := req.patch()
	if err != nil {
		return appointment.Doctor{}, err
	}
	return appointment.Doctor{
		Name:           deref(p.Name),
		Email:          deref(p.Email),
		Phone:          deref(p.Phone),
		Specialization: deref(p.Specialization),
		Experience:     deref(p.Experience),
		Availability:   p.Availability,
		Rating:         deref(p.Rating),
		Status:         deref(p.Status),
	}, nil
}

type DoctorResponse struct {
	ID             string    `json:"id"`
	Name           string    `json:"name"`
	Email          string    `json:"email"`
	Phone          string    `json:"phone"`
	Specialization string    `json:"specialization"`
	Experience     int       `json:"experience"`
	Availability   []string  `json:"availability"`
	Rating         float64   `json:"rating"`
	Status         string    `json:"status"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}

func toDoctorResponse(d *appointment.Doctor) DoctorResponse {
	return DoctorResponse{
		ID:             d.ID,
		Name:           d.Name,
		Email:          d.Email,
		Phone:          d.Phone,
		Specialization: d.Specialization,
		Experience:     d.Experience,
		Availability:   appointment.WeekdayNames(d.Availability),
		Rating:         d.Rating,
		Status:         string(d.Status),
		CreatedAt:      d.CreatedAt,
		UpdatedAt:      d.UpdatedAt,
	}
}

func toDoctorResponses(list []appointment.Doctor) []DoctorResponse {
	out := make([]DoctorResponse, 0, len(list))
	for i := range list {
		out = append(out, toDoctorResponse(&list[i]))
	}
	return out
}

type StatsResponse struct {
	Total          int            `json:"total"`
	Pending        int            `json:"pending"`
	Confirmed      int            `json:"confirmed"`
	Completed      int            `json:"completed"`
	Cancelled      int            `json:"cancelled"`
	Today          int            `json:"today"`
	ThisWeek       int            `json:"this_week"`
	ByType         map[string]int `json:"by_type"`
	ByPriority     map[string]int `json:"by_priority"`
	CompletionRate float64        `json:"completion_rate"`
}

func toStatsResponse(st appointment.Stats) StatsResponse {
	resp := StatsResponse{
		Total:          st.Total,
		Pending:        st.Pending,
		Confirmed:      st.Confirmed,
		Completed:      st.Completed,
		Cancelled:      st.Cancelled,
		Today:          st.Today,
		ThisWeek:       st.ThisWeek,
		ByType:         make(map[string]int, len(st.ByType)),
		ByPriority:     make(map[string]int, len(st.ByPriority)),
		CompletionRate: st.CompletionRate,
	}
	for k, v := range st.ByType {
		resp.ByType[string(k)] = v
	}
	for k, v := range st.ByPriority {
		resp.ByPriority[string(k)] = v
	}
	return resp
}

type DoctorStatsResponse struct {
	Total           int            `json:"total"`
	Available       int            `json:"available"`
	Busy            int            `json:"busy"`
	OffDuty         int            `json:"off_duty"`
	Specializations map[string]int `json:"specializations"`
	AverageRating   float64        `json:"average_rating"`
}

func toDoctorStatsResponse(st appointment.DoctorStats) DoctorStatsResponse {
	return DoctorStatsResponse{
		Total:           st.Total,
		Available:       st.Available,
		Busy:            st.Busy,
		OffDuty:         st.OffDuty,
		Specializations: st.Specializations,
		AverageRating:   st.AverageRating,
	}
}

type PatientStatsResponse struct {
	Total         int `json:"total"`
	Active        int `json:"active"`
	Inactive      int `json:"inactive"`
	RecentlyAdded int `json:"recently_added"`
}

func toPatientStatsResponse(st appointment.PatientStats) PatientStatsResponse {
	return PatientStatsResponse{
		Total:         st.Total,
		Active:        st.Active,
		Inactive:      st.Inactive,
		RecentlyAdded: st.RecentlyAdded,
	}
}

type DashboardResponse struct {
	Appointments      StatsResponse         `json:"appointments"`
	Doctors           DoctorStatsResponse   `json:"doctors"`
	Patients          PatientStatsResponse  `json:"patients"`
	RecentPatients    []PatientResponse     `json:"recent_patients"`
	TodayAppointments []AppointmentResponse `json:"today_appointments"`
}

type TrendResponse struct {
	Date      string `json:"date"`
	Total     int    `json:"total"`
	Pending   int    `json:"pending"`
	Confirmed int    `json:"confirmed"`
	Completed int    `json:"completed"`
	Cancelled int    `json:"cancelled"`
}

func toTrendResponses(days []appointment.DayCounts) []TrendResponse {
	out := make([]TrendResponse, 0, len(days))
	for _, d := range days {
		out = append(out, TrendResponse{
			Date:      appointment.FormatDate(d.Date),
			Total:     d.Total,
			Pending:   d.Pending,
			Confirmed: d.Confirmed,
			Completed: d.Completed,
			Cancelled: d.Cancelled,
		})
	}
	return out
}

type PerformanceResponse struct {
	TotalAppointments     int     `json:"total_appointments"`
	CompletedAppointments int     `json:"completed_appointments"`
	CompletionRate        float64 `json:"completion_rate"`
	AverageRating         float64 `json:"average_rating"`
}

type AlertResponse struct {
	ID      string `json:"id"`
	Type    string `json:"type"`
	Title   string `json:"title"`
	Message string `json:"message"`
	Count   int    `json:"count"`
}

func toAlertResponses(alerts []appointment.Alert) []AlertResponse {
	out := make([]AlertResponse, 0, len(alerts))
	for _, a := range alerts {
		out = append(out, AlertResponse{
			ID:      a.ID,
			Type:    string(a.Level),
			Title:   a.Title,
			Message: a.Message,
			Count:   a.Count,
		})
	}
	return out
}

type ResyncResponse struct {
	Invalidated int `json:"invalidated"`
}

type ErrorResponse struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}

func deref[T any](p *T) T {
	var zero T
	if p == nil {
		return zero
	}
	return *p
}
