package appointment

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/doug-martin/goqu/v9"
	_ "github.com/doug-martin/goqu/v9/dialect/postgres"
	"github.com/doug-martin/goqu/v9/exp"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"
)

// querier is the subset of pgxpool.Pool the repository needs.
type querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

type PgRepository struct {
	pool querier
	sql  goqu.DialectWrapper
}

func NewPgRepository(pool *pgxpool.Pool) *PgRepository {
	return newPgRepository(pool)
}

func newPgRepository(q querier) *PgRepository {
	return &PgRepository{pool: q, sql: goqu.Dialect("postgres")}
}

const (
	patientColumns = `id, name, email, phone, date_of_birth, gender, address, status, created_at, updated_at`
	doctorColumns  = `id, name, email, phone, specialization, experience, availability, rating, status, created_at, updated_at`

	appointmentColumns = `a.id, a.patient_id, a.doctor_id, a.appointment_date, a.appointment_time, a.duration,
		a.reason, a.type, a.priority, a.status, a.created_at, a.updated_at,
		p.id, p.name, p.email, p.phone,
		d.id, d.name, d.specialization, d.email`
	appointmentJoins = `LEFT JOIN patients p ON p.id = a.patient_id
		LEFT JOIN doctors d ON d.id = a.doctor_id`
)

// Helpers

func scanPatient(row pgx.Row) (*Patient, error) {
	var p Patient
	var dob *time.Time

	err := row.Scan(
		&p.ID,
		&p.Name,
		&p.Email,
		&p.Phone,
		&dob,
		&p.Gender,
		&p.Address,
		&p.Status,
		&p.CreatedAt,
		&p.UpdatedAt,
	)
	if err != nil {
		return nil, classify(err, ErrPatientNotFound)
	}

	if dob != nil {
		p.DateOfBirth = *dob
	}
	return &p, nil
}

func scanDoctor(row pgx.Row) (*Doctor, error) {
	var d Doctor
	var days []string

	err := row.Scan(
		&d.ID,
		&d.Name,
		&d.Email,
		&d.Phone,
		&d.Specialization,
		&d.Experience,
		&days,
		&d.Rating,
		&d.Status,
		&d.CreatedAt,
		&d.UpdatedAt,
	)
	if err != nil {
		return nil, classify(err, ErrDoctorNotFound)
	}

	d.Availability, err = ParseWeekdays(days)
	if err != nil {
		return nil, fmt.Errorf("doctor %s: %w", d.ID, err)
	}
	return &d, nil
}

func scanAppointment(row pgx.Row) (*AppointmentDetail, error) {
	var a AppointmentDetail
	var at pgtype.Time
	var pID, pName, pEmail, pPhone *string
	var dID, dName, dSpec, dEmail *string

	err := row.Scan(
		&a.ID,
		&a.PatientID,
		&a.DoctorID,
		&a.Date,
		&at,
		&a.Duration,
		&a.Reason,
		&a.Type,
		&a.Priority,
		&a.Status,
		&a.CreatedAt,
		&a.UpdatedAt,
		&pID, &pName, &pEmail, &pPhone,
		&dID, &dName, &dSpec, &dEmail,
	)
	if err != nil {
		return nil, classify(err, ErrAppointmentNotFound)
	}

	a.Time = TimeOfDay(at.Microseconds / int64(time.Minute/time.Microsecond))
	if pID != nil {
		a.Patient = &PatientSummary{ID: *pID, Name: deref(pName), Email: deref(pEmail), Phone: deref(pPhone)}
	}
	if dID != nil {
		a.Doctor = &DoctorSummary{ID: *dID, Name: deref(dName), Specialization: deref(dSpec), Email: deref(dEmail)}
	}
	return &a, nil
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

// classify maps driver errors onto the repository's error kinds.
func classify(err error, notFound error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, pgx.ErrNoRows) {
		return notFound
	}
	if errors.Is(err, context.Canceled) {
		return err
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch {
		case pgErr.Code == "23P01":
			return fmt.Errorf("%w: %s", ErrConflict, pgErr.Message)
		case pgErr.Code == "23503":
			return fmt.Errorf("%w: %s", ErrNotFound, pgErr.Detail)
		case pgErr.Code == "23502", pgErr.Code == "23514", strings.HasPrefix(pgErr.Code, "22"):
			return &ValidationError{Field: pgErr.ColumnName, Reason: pgErr.Message}
		}
		return fmt.Errorf("postgres %s: %w", pgErr.Code, err)
	}

	return fmt.Errorf("%w: %w", ErrRemoteUnavailable, err)
}

func collect[T any](rows pgx.Rows, scan func(pgx.Row) (*T, error)) ([]T, error) {
	defer rows.Close()

	result := []T{}
	for rows.Next() {
		v, err := scan(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *v)
	}
	if err := rows.Err(); err != nil {
		return nil, classify(err, ErrNotFound)
	}
	return result, nil
}

func (r *PgRepository) query(ctx context.Context, ds *goqu.SelectDataset) (pgx.Rows, error) {
	query, args, err := ds.Prepared(true).ToSQL()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}
	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, classify(err, ErrNotFound)
	}
	return rows, nil
}

// Patients

func (r *PgRepository) ListPatients(ctx context.Context, f PatientFilter) ([]Patient, error) {
	ds := r.sql.From("patients").Select(goqu.L(patientColumns)).Order(goqu.C("name").Asc())

	var where []exp.Expression
	if f.Status != "" {
		where = append(where, goqu.C("status").Eq(string(f.Status)))
	}
	if f.Search != "" {
		like := "%" + f.Search + "%"
		where = append(where, goqu.Or(
			goqu.C("name").ILike(like),
			goqu.C("email").ILike(like),
			goqu.C("phone").ILike(like),
		))
	}
	if f.CreatedSince != nil {
		where = append(where, goqu.C("created_at").Gte(*f.CreatedSince))
	}

	rows, err := r.query(ctx, ds.Where(where...))
	if err != nil {
		return nil, fmt.Errorf("list patients: %w", err)
	}
	return collect(rows, scanPatient)
}

func (r *PgRepository) GetPatient(ctx context.Context, id string) (*Patient, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT `+patientColumns+`
		FROM patients
		WHERE id = $1
	`, id)
	return scanPatient(row)
}

func (r *PgRepository) InsertPatient(ctx context.Context, p Patient) (*Patient, error) {
	row := r.pool.QueryRow(ctx, `
		INSERT INTO patients (name, email, phone, date_of_birth, gender, address, status, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, now(), now())
		RETURNING `+patientColumns,
		p.Name, p.Email, p.Phone, nullableTime(p.DateOfBirth), p.Gender, p.Address, string(p.Status))
	return scanPatient(row)
}

func (r *PgRepository) UpdatePatient(ctx context.Context, id string, patch PatientPatch) (*Patient, error) {
	rec := goqu.Record{"updated_at": goqu.L("now()")}
	setIf(rec, "name", patch.Name)
	setIf(rec, "email", patch.Email)
	setIf(rec, "phone", patch.Phone)
	setIf(rec, "date_of_birth", patch.DateOfBirth)
	setIf(rec, "gender", patch.Gender)
	setIf(rec, "address", patch.Address)
	if patch.Status != nil {
		rec["status"] = string(*patch.Status)
	}

	query, args, err := r.sql.Update("patients").Prepared(true).
		Set(rec).
		Where(goqu.C("id").Eq(id)).
		Returning(goqu.L(patientColumns)).
		ToSQL()
	if err != nil {
		return nil, fmt.Errorf("build patient update: %w", err)
	}
	return scanPatient(r.pool.QueryRow(ctx, query, args...))
}

func (r *PgRepository) DeletePatient(ctx context.Context, id string) error {
	return r.deleteByID(ctx, "patients", id, ErrPatientNotFound)
}

// Doctors

func (r *PgRepository) ListDoctors(ctx context.Context, f DoctorFilter) ([]Doctor, error) {
	ds := r.sql.From("doctors").Select(goqu.L(doctorColumns)).Order(goqu.C("name").Asc())

	var where []exp.Expression
	if f.Status != "" {
		where = append(where, goqu.C("status").Eq(string(f.Status)))
	}
	if f.Specialization != "" {
		where = append(where, goqu.C("specialization").Eq(f.Specialization))
	}
	if f.Search != "" {
		like := "%" + f.Search + "%"
		where = append(where, goqu.Or(
			goqu.C("name").ILike(like),
			goqu.C("specialization").ILike(like),
			goqu.C("email").ILike(like),
		))
	}
	if f.Day != nil {
		where = append(where, goqu.L("? = ANY(availability)", f.Day.String()))
	}

	rows, err := r.query(ctx, ds.Where(where...))
	if err != nil {
		return nil, fmt.Errorf("list doctors: %w", err)
	}
	return collect(rows, scanDoctor)
}

func (r *PgRepository) GetDoctor(ctx context.Context, id string) (*Doctor, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT `+doctorColumns+`
		FROM doctors
		WHERE id = $1
	`, id)
	return scanDoctor(row)
}

func (r *PgRepository) InsertDoctor(ctx context.Context, d Doctor) (*Doctor, error) {
	row := r.pool.QueryRow(ctx, `
		INSERT INTO doctors (name, email, phone, specialization, experience, availability, rating, status, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, now(), now())
		RETURNING `+doctorColumns,
		d.Name, d.Email, d.Phone, d.Specialization, d.Experience, WeekdayNames(d.Availability), d.Rating, string(d.Status))
	return scanDoctor(row)
}

func (r *PgRepository) UpdateDoctor(ctx context.Context, id string, patch DoctorPatch) (*Doctor, error) {
	rec := goqu.Record{"updated_at": goqu.L("now()")}
	setIf(rec, "name", patch.Name)
	setIf(rec, "email", patch.Email)
	setIf(rec, "phone", patch.Phone)
	setIf(rec, "specialization", patch.Specialization)
	setIf(rec, "experience", patch.Experience)
	setIf(rec, "rating", patch.Rating)
	if patch.Availability != nil {
		rec["availability"] = goqu.L("?::text[]", pgArray(WeekdayNames(patch.Availability)))
	}
	if patch.Status != nil {
		rec["status"] = string(*patch.Status)
	}

	query, args, err := r.sql.Update("doctors").Prepared(true).
		Set(rec).
		Where(goqu.C("id").Eq(id)).
		Returning(goqu.L(doctorColumns)).
		ToSQL()
	if err != nil {
		return nil, fmt.Errorf("build doctor update: %w", err)
	}
	return scanDoctor(r.pool.QueryRow(ctx, query, args...))
}

func (r *PgRepository) DeleteDoctor(ctx context.Context, id string) error {
	return r.deleteByID(ctx, "doctors", id, ErrDoctorNotFound)
}

// Appointments

func (r *PgRepository) ListAppointments(ctx context.Context, f AppointmentFilter) ([]AppointmentDetail, error) {
	ds := r.sql.From(goqu.T("appointments").As("a")).
		LeftJoin(goqu.T("patients").As("p"), goqu.On(goqu.I("p.id").Eq(goqu.I("a.patient_id")))).
		LeftJoin(goqu.T("doctors").As("d"), goqu.On(goqu.I("d.id").Eq(goqu.I("a.doctor_id")))).
		Select(goqu.L(appointmentColumns)).
		Order(goqu.I("a.appointment_date").Asc(), goqu.I("a.appointment_time").Asc())

	var where []exp.Expression
	if f.DoctorID != "" {
		where = append(where, goqu.I("a.doctor_id").Eq(f.DoctorID))
	}
	if f.PatientID != "" {
		where = append(where, goqu.I("a.patient_id").Eq(f.PatientID))
	}
	if f.Status != "" {
		where = append(where, goqu.I("a.status").Eq(string(f.Status)))
	}
	if f.ExcludeStatus != "" {
		where = append(where, goqu.I("a.status").Neq(string(f.ExcludeStatus)))
	}
	if f.ExcludeID != "" {
		where = append(where, goqu.I("a.id").Neq(f.ExcludeID))
	}
	if f.Date != nil {
		where = append(where, goqu.I("a.appointment_date").Eq(FormatDate(*f.Date)))
	}
	if f.From != nil {
		where = append(where, goqu.I("a.appointment_date").Gte(FormatDate(*f.From)))
	}
	if f.To != nil {
		where = append(where, goqu.I("a.appointment_date").Lte(FormatDate(*f.To)))
	}

	rows, err := r.query(ctx, ds.Where(where...))
	if err != nil {
		return nil, fmt.Errorf("list appointments: %w", err)
	}
	return collect(rows, scanAppointment)
}

func (r *PgRepository) GetAppointment(ctx context.Context, id string) (*AppointmentDetail, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT `+appointmentColumns+`
		FROM appointments a
		`+appointmentJoins+`
		WHERE a.id = $1
	`, id)
	return scanAppointment(row)
}

func (r *PgRepository) InsertAppointment(ctx context.Context, a Appointment) (*AppointmentDetail, error) {
	row := r.pool.QueryRow(ctx, `
		WITH a AS (
			INSERT INTO appointments (patient_id, doctor_id, appointment_date, appointment_time, duration,
				reason, type, priority, status, created_at, updated_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, now(), now())
			RETURNING *
		)
		SELECT `+appointmentColumns+`
		FROM a
		`+appointmentJoins,
		a.PatientID, a.DoctorID, FormatDate(a.Date), a.Time.String(), a.Duration,
		a.Reason, string(a.Type), string(a.Priority), string(a.Status))
	return scanAppointment(row)
}

func (r *PgRepository) UpdateAppointment(ctx context.Context, id string, patch AppointmentPatch) (*AppointmentDetail, error) {
	rec := goqu.Record{"updated_at": goqu.L("now()")}
	setIf(rec, "patient_id", patch.PatientID)
	setIf(rec, "doctor_id", patch.DoctorID)
	setIf(rec, "duration", patch.Duration)
	setIf(rec, "reason", patch.Reason)
	if patch.Date != nil {
		rec["appointment_date"] = FormatDate(*patch.Date)
	}
	if patch.Time != nil {
		rec["appointment_time"] = patch.Time.String()
	}
	if patch.Type != nil {
		rec["type"] = string(*patch.Type)
	}
	if patch.Priority != nil {
		rec["priority"] = string(*patch.Priority)
	}

	update, args, err := r.sql.Update("appointments").Prepared(true).
		Set(rec).
		Where(goqu.C("id").Eq(id)).
		Returning(goqu.Star()).
		ToSQL()
	if err != nil {
		return nil, fmt.Errorf("build appointment update: %w", err)
	}

	row := r.pool.QueryRow(ctx, `WITH a AS (`+update+`) SELECT `+appointmentColumns+` FROM a `+appointmentJoins, args...)
	return scanAppointment(row)
}

func (r *PgRepository) UpdateAppointmentStatus(ctx context.Context, id string, from, to AppointmentStatus) (*AppointmentDetail, error) {
	row := r.pool.QueryRow(ctx, `
		WITH a AS (
			UPDATE appointments
			SET status = $2,
			    updated_at = now()
			WHERE id = $1
			  AND status = $3
			RETURNING *
		)
		SELECT `+appointmentColumns+`
		FROM a
		`+appointmentJoins, id, string(to), string(from))
	return scanAppointment(row)
}

func (r *PgRepository) DeleteAppointment(ctx context.Context, id string) error {
	return r.deleteByID(ctx, "appointments", id, ErrAppointmentNotFound)
}

func (r *PgRepository) deleteByID(ctx context.Context, table, id string, notFound error) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM `+table+` WHERE id = $1`, id)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23503" {
			return fmt.Errorf("%w: %s is still referenced", ErrConflict, strings.TrimSuffix(table, "s"))
		}
		return classify(err, notFound)
	}
	if tag.RowsAffected() == 0 {
		return notFound
	}
	return nil
}

func (r *PgRepository) InsertEvent(ctx context.Context, ev EventLog) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO appointment_events (event_type, appointment_id, payload, created_at)
		VALUES ($1, $2, $3, COALESCE($4, now()))
	`, ev.EventType, ev.AppointmentID, ev.Payload, nullableTime(ev.CreatedAt))
	if err != nil {
		return fmt.Errorf("insert event log: %w", classify(err, ErrNotFound))
	}

	return nil
}

func setIf[T any](rec goqu.Record, col string, v *T) {
	if v != nil {
		rec[col] = *v
	}
}

// pgArray renders a text[] literal for use behind an explicit cast.
func pgArray(items []string) string {
	quoted := make([]string, len(items))
	for i, s := range items {
		quoted[i] = `"` + strings.ReplaceAll(s, `"`, `\"`) + `"`
	}
	return "{" + strings.Join(quoted, ",") + "}"
}

func nullableTime(t time.Time) *time.Time {
	if t.IsZero() {
		return nil
	}
	return &t
}
