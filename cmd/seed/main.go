// Command seed fills a development database with clinics, staff, open
// slots, patients, a few booked appointments, and waitlist entries.
package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/brianvoe/gofakeit/v6"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"

	"github.com/caredesk/clinic-scheduling/internal/appointment"
	"github.com/caredesk/clinic-scheduling/internal/auth"
	"github.com/caredesk/clinic-scheduling/internal/clinic"
	"github.com/caredesk/clinic-scheduling/internal/config"
	"github.com/caredesk/clinic-scheduling/internal/messaging"
	"github.com/caredesk/clinic-scheduling/internal/patient"
	"github.com/caredesk/clinic-scheduling/internal/slot"
	"github.com/caredesk/clinic-scheduling/internal/timeofday"
	"github.com/caredesk/clinic-scheduling/internal/waitlist"
	"github.com/caredesk/clinic-scheduling/pkg/logging"
)

const (
	patientsPerClinic     = 20
	appointmentsPerClinic = 8
	waitlistPerClinic     = 5
	provisionDays         = 14
)

var visitTypes = []string{"checkup", "cleaning", "consultation", "followup"}

func main() {
	_ = godotenv.Load()

	cfg := config.Load()
	logger := logging.New(cfg.LogLevel)

	if cfg.DatabaseURL == "" {
		logger.Error("seed requires DATABASE_URL")
		os.Exit(1)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	pool, err := pgxpool.New(ctx, cfg.DatabaseURL)
	if err != nil {
		logger.Error("failed to connect postgres", "error", err)
		os.Exit(1)
	}
	defer pool.Close()

	gofakeit.Seed(time.Now().UnixNano())

	if err := run(ctx, pool, logger); err != nil {
		logger.Error("seed failed", "error", err)
		os.Exit(1)
	}
	logger.Info("seed complete")
}

func run(ctx context.Context, pool *pgxpool.Pool, logger *logging.Logger) error {
	clinics := clinic.NewStore(pool)
	patients := patient.NewStore(pool)
	slots := slot.NewStore(pool)
	entries := waitlist.NewStore(pool)
	appts := appointment.NewStore(pool)
	svc := appointment.NewService(pool, appts, slots, clinics, logger)

	weekday := &clinic.DayHours{Open: "09:00", Close: "17:00"}
	saturday := &clinic.DayHours{Open: "10:00", Close: "14:00"}
	hours := clinic.WeeklyHours{
		Monday:    weekday,
		Tuesday:   weekday,
		Wednesday: weekday,
		Thursday:  weekday,
		Friday:    weekday,
		Saturday:  saturday,
	}

	specs := []clinic.Clinic{
		{Name: "Riverside Family Clinic", Region: "us-east", UTCOffsetMinutes: -300, DefaultLanguage: "en"},
		{Name: "Lakeview Dental", Region: "us-central", UTCOffsetMinutes: -360, DefaultLanguage: "en"},
		{Name: "Clinica del Sol", Region: "us-west", UTCOffsetMinutes: -480, DefaultLanguage: "es"},
	}

	from := time.Now().UTC()
	to := from.AddDate(0, 0, provisionDays)

	for i := range specs {
		c := &specs[i]
		c.Active = true
		c.Phone = "+1" + gofakeit.Phone()
		c.Email = gofakeit.Email()
		c.Hours = hours
		if err := clinics.Create(ctx, c); err != nil {
			return fmt.Errorf("create clinic %q: %w", c.Name, err)
		}

		staff, err := seedStaff(ctx, clinics, c.ID)
		if err != nil {
			return fmt.Errorf("seed staff for %q: %w", c.Name, err)
		}

		built, err := clinic.BuildSlots(c, staff, from, to)
		if err != nil {
			return fmt.Errorf("build slots for %q: %w", c.Name, err)
		}
		created, err := slots.BulkCreate(ctx, nil, built)
		if err != nil {
			return fmt.Errorf("insert slots for %q: %w", c.Name, err)
		}
		logger.Info("clinic seeded", "clinic", c.Name, "staff", len(staff), "slots", created)

		pts, err := seedPatients(ctx, patients, patientsPerClinic)
		if err != nil {
			return fmt.Errorf("seed patients for %q: %w", c.Name, err)
		}
		if err := seedAppointments(ctx, svc, slots, c.ID, pts); err != nil {
			return fmt.Errorf("seed appointments for %q: %w", c.Name, err)
		}
		if err := seedWaitlist(ctx, entries, c.ID, pts); err != nil {
			return fmt.Errorf("seed waitlist for %q: %w", c.Name, err)
		}
	}
	return nil
}

func seedStaff(ctx context.Context, clinics *clinic.Store, clinicID uuid.UUID) ([]clinic.Staff, error) {
	roster := []clinic.Staff{
		{Role: clinic.StaffRoleDoctor, Specialization: "general practice"},
		{Role: clinic.StaffRoleDoctor, Specialization: "dermatology"},
		{Role: clinic.StaffRoleNurse},
	}
	for i := range roster {
		roster[i].ClinicID = clinicID
		roster[i].Name = gofakeit.Name()
		roster[i].Active = true
		if err := clinics.CreateStaff(ctx, &roster[i]); err != nil {
			return nil, err
		}
	}
	return roster, nil
}

func seedPatients(ctx context.Context, patients *patient.Store, count int) ([]*patient.Patient, error) {
	out := make([]*patient.Patient, 0, count)
	for i := 0; i < count; i++ {
		p, err := patients.FindOrCreateByPhone(ctx, "+1"+gofakeit.Phone(), gofakeit.Name())
		if err != nil {
			return nil, err
		}
		// A slice of patients prefer WhatsApp in Spanish.
		if i%4 == 3 {
			if err := patients.UpdatePreferences(ctx, p.ID, "es", messaging.ChannelWhatsApp); err != nil {
				return nil, err
			}
		}
		out = append(out, p)
	}
	return out, nil
}

func seedAppointments(ctx context.Context, svc *appointment.Service, slots *slot.Store, clinicID uuid.UUID, pts []*patient.Patient) error {
	open, err := slots.FindAvailableNear(ctx, nil, clinicID, time.Now().UTC(), 7)
	if err != nil {
		return err
	}
	n := appointmentsPerClinic
	if len(open) < n {
		n = len(open)
	}
	if len(pts) < n {
		n = len(pts)
	}
	for i := 0; i < n; i++ {
		_, err := svc.Create(ctx, auth.System(), appointment.CreateParams{
			SlotID:    open[i].ID,
			PatientID: pts[i].ID,
			ClinicID:  clinicID,
			Type:      visitTypes[gofakeit.Number(0, len(visitTypes)-1)],
		})
		if err != nil {
			return err
		}
	}
	return nil
}

func seedWaitlist(ctx context.Context, entries *waitlist.Store, clinicID uuid.UUID, pts []*patient.Patient) error {
	dayParts := []timeofday.DayPart{timeofday.Morning, timeofday.Afternoon, timeofday.Evening}
	for i := 0; i < waitlistPerClinic && i < len(pts); i++ {
		e := &waitlist.Entry{
			PatientID:        pts[len(pts)-1-i].ID,
			ClinicID:         clinicID,
			PreferredDate:    time.Now().UTC().AddDate(0, 0, gofakeit.Number(1, provisionDays-1)),
			PreferredDayPart: dayParts[i%len(dayParts)],
			Type:             visitTypes[gofakeit.Number(0, len(visitTypes)-1)],
			Priority:         gofakeit.Number(0, 3),
		}
		if err := entries.Create(ctx, e); err != nil {
			return err
		}
	}
	return nil
}
