package main

import (
	"context"
	"errors"
	"flag"
	"time"

	"github.com/brianvoe/gofakeit/v7"
	"github.com/rs/zerolog"

	"github.com/hackgods/clinic-scheduling/internal/appointment"
	"github.com/hackgods/clinic-scheduling/internal/cache"
	"github.com/hackgods/clinic-scheduling/internal/config"
	"github.com/hackgods/clinic-scheduling/internal/db"
	"github.com/hackgods/clinic-scheduling/internal/logging"
	redisclient "github.com/hackgods/clinic-scheduling/internal/redis"
)

var specializations = []string{
	"Dermatology",
	"Cardiology",
	"General Practice",
	"Orthopedics",
	"Endocrinology",
	"Neurology",
	"Pediatrics",
	"Psychiatry",
	"Ophthalmology",
	"ENT",
}

var reasons = []string{
	"Annual physical",
	"Follow-up on lab results",
	"Persistent headache",
	"Medication review",
	"Chest pain evaluation",
	"Skin rash",
	"Post-operative check",
	"Vaccination",
}

var (
	types      = []appointment.AppointmentType{appointment.TypeConsultation, appointment.TypeFollowUp, appointment.TypeEmergency, appointment.TypeSurgery, appointment.TypeCheckup}
	priorities = []appointment.Priority{appointment.PriorityLow, appointment.PriorityMedium, appointment.PriorityHigh}
)

// seed fills an empty database through the service, so every row passes the same
// validation and conflict checks as API traffic.
func main() {
	doctors := flag.Int("doctors", 20, "number of doctors")
	patients := flag.Int("patients", 200, "number of patients")
	appts := flag.Int("appointments", 400, "appointments to attempt over the next two weeks")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		bootLogger := logging.New("seed", "dev", "info")
		bootLogger.Fatal().Err(err).Msg("config load error")
	}
	logger := logging.New("seed", cfg.Env, cfg.LogLevel)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Minute)
	defer cancel()

	pool, err := db.ConnectPostgres(ctx, cfg.PostgresDSN, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("connect postgres")
	}
	defer pool.Close()

	svc, err := appointment.NewService(
		appointment.NewPgRepository(pool),
		cache.New(zerolog.Nop()),
		redisclient.NopLocker{},
		cfg,
		logger.Level(zerolog.WarnLevel),
	)
	if err != nil {
		logger.Fatal().Err(err).Msg("service setup error")
	}

	faker := gofakeit.New(uint64(time.Now().UnixNano()))

	doctorIDs, err := seedDoctors(ctx, svc, faker, *doctors, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("seed doctors")
	}
	patientIDs, err := seedPatients(ctx, svc, faker, *patients, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("seed patients")
	}
	if err := seedAppointments(ctx, svc, faker, doctorIDs, patientIDs, *appts, cfg, logger); err != nil {
		logger.Fatal().Err(err).Msg("seed appointments")
	}

	logger.Info().Msg("seed complete")
}

func seedDoctors(ctx context.Context, svc *appointment.Service, faker *gofakeit.Faker, count int, logger zerolog.Logger) ([]string, error) {
	logger.Info().Int("count", count).Msg("seeding doctors")

	weekdays := []time.Weekday{time.Monday, time.Tuesday, time.Wednesday, time.Thursday, time.Friday, time.Saturday}
	statuses := []appointment.DoctorStatus{appointment.DoctorAvailable, appointment.DoctorAvailable, appointment.DoctorAvailable, appointment.DoctorBusy, appointment.DoctorOffDuty}

	ids := make([]string, 0, count)
	for i := 0; i < count; i++ {
		var days []time.Weekday
		for _, d := range weekdays {
			if faker.Float64Range(0, 1) < 0.7 {
				days = append(days, d)
			}
		}
		if len(days) == 0 {
			days = []time.Weekday{time.Monday}
		}

		d, err := svc.CreateDoctor(ctx, appointment.Doctor{
			Name:           "Dr. " + faker.Name(),
			Email:          faker.Email(),
			Phone:          faker.Phone(),
			Specialization: specializations[faker.Number(0, len(specializations)-1)],
			Experience:     faker.Number(1, 35),
			Availability:   days,
			Rating:         float64(faker.Number(30, 50)) / 10,
			Status:         statuses[faker.Number(0, len(statuses)-1)],
		})
		if err != nil {
			return nil, err
		}
		ids = append(ids, d.ID)
	}
	return ids, nil
}

func seedPatients(ctx context.Context, svc *appointment.Service, faker *gofakeit.Faker, count int, logger zerolog.Logger) ([]string, error) {
	logger.Info().Int("count", count).Msg("seeding patients")

	ids := make([]string, 0, count)
	for i := 0; i < count; i++ {
		status := appointment.PatientActive
		if faker.Float64Range(0, 1) < 0.1 {
			status = appointment.PatientInactive
		}

		p, err := svc.CreatePatient(ctx, appointment.Patient{
			Name:        faker.Name(),
			Email:       faker.Email(),
			Phone:       faker.Phone(),
			DateOfBirth: faker.DateRange(time.Now().AddDate(-90, 0, 0), time.Now().AddDate(-1, 0, 0)),
			Gender:      faker.Gender(),
			Address:     faker.Address().Address,
			Status:      status,
		})
		if err != nil {
			return nil, err
		}
		ids = append(ids, p.ID)

		if (i+1)%100 == 0 {
			logger.Info().Int("seeded", i+1).Int("total", count).Msg("patients progress")
		}
	}
	return ids, nil
}

// seedAppointments books random slots; attempts that collide or land on a day the
// doctor does not work are skipped.
func seedAppointments(ctx context.Context, svc *appointment.Service, faker *gofakeit.Faker, doctorIDs, patientIDs []string, attempts int, cfg config.Config, logger zerolog.Logger) error {
	if len(doctorIDs) == 0 || len(patientIDs) == 0 {
		return nil
	}
	logger.Info().Int("attempts", attempts).Msg("seeding appointments")

	starts := svc.Grid().Starts()
	today := appointment.DateOf(time.Now().In(cfg.Location))

	booked, skipped := 0, 0
	for i := 0; i < attempts; i++ {
		_, err := svc.CreateAppointment(ctx, appointment.CreateInput{
			PatientID: patientIDs[faker.Number(0, len(patientIDs)-1)],
			DoctorID:  doctorIDs[faker.Number(0, len(doctorIDs)-1)],
			Date:      today.AddDate(0, 0, faker.Number(0, 13)),
			Time:      starts[faker.Number(0, len(starts)-1)],
			Duration:  cfg.SlotMinutes * faker.Number(1, 2),
			Reason:    reasons[faker.Number(0, len(reasons)-1)],
			Type:      types[faker.Number(0, len(types)-1)],
			Priority:  priorities[faker.Number(0, len(priorities)-1)],
		})
		switch {
		case err == nil:
			booked++
		case errors.Is(err, appointment.ErrConflict), errors.Is(err, appointment.ErrValidation):
			skipped++
		default:
			return err
		}
	}

	logger.Info().Int("booked", booked).Int("skipped", skipped).Msg("appointments seeded")
	return nil
}
