package clinic

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/google/uuid"
	pgxmock "github.com/pashagolub/pgxmock/v3"
)

func TestStoreGet(t *testing.T) {
	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatalf("failed to create pgx mock: %v", err)
	}
	defer mock.Close()

	store := NewStore(mock)
	id := uuid.New()
	hours, _ := json.Marshal(WeeklyHours{Monday: &DayHours{Open: "09:00", Close: "17:00"}})
	now := time.Now().UTC()

	rows := pgxmock.NewRows([]string{"id", "name", "phone", "email", "region", "active", "utc_offset_minutes", "default_language", "hours", "created_at", "updated_at"}).
		AddRow(id, "Lakeside Dental", "+15550100", "front@lakeside.example", "north", true, -300, "en", hours, now, now)
	mock.ExpectQuery("SELECT id, name").WithArgs(id).WillReturnRows(rows)

	c, err := store.Get(context.Background(), id)
	if err != nil {
		t.Fatalf("get failed: %v", err)
	}
	if c.Name != "Lakeside Dental" || c.UTCOffsetMinutes != -300 {
		t.Fatalf("unexpected clinic: %+v", c)
	}
	if c.Hours.Monday == nil || c.Hours.Monday.Open != "09:00" {
		t.Fatalf("hours not decoded: %+v", c.Hours)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestStoreGetNotFound(t *testing.T) {
	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatalf("failed to create pgx mock: %v", err)
	}
	defer mock.Close()

	store := NewStore(mock)
	id := uuid.New()
	mock.ExpectQuery("SELECT id, name").WithArgs(id).WillReturnRows(pgxmock.NewRows([]string{"id"}))

	if _, err := store.Get(context.Background(), id); err != ErrNotFound {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestStoreCreateAssignsID(t *testing.T) {
	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatalf("failed to create pgx mock: %v", err)
	}
	defer mock.Close()

	store := NewStore(mock)
	mock.ExpectExec("INSERT INTO clinics").
		WithArgs(pgxmock.AnyArg(), "Lakeside Dental", "", "", "", true, 0, "en", pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	c := &Clinic{Name: "Lakeside Dental", Active: true}
	if err := store.Create(context.Background(), c); err != nil {
		t.Fatalf("create failed: %v", err)
	}
	if c.ID == uuid.Nil {
		t.Fatalf("expected assigned id")
	}
	if c.DefaultLanguage != "en" {
		t.Fatalf("expected default language, got %q", c.DefaultLanguage)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestStoreListStaff(t *testing.T) {
	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatalf("failed to create pgx mock: %v", err)
	}
	defer mock.Close()

	store := NewStore(mock)
	clinicID := uuid.New()
	now := time.Now().UTC()
	rows := pgxmock.NewRows([]string{"id", "clinic_id", "name", "role", "specialization", "active", "created_at"}).
		AddRow(uuid.New(), clinicID, "Dr. Osei", StaffRoleDoctor, "orthodontics", true, now).
		AddRow(uuid.New(), clinicID, "Nurse Tran", StaffRoleNurse, "", true, now)
	mock.ExpectQuery("SELECT id, clinic_id").WithArgs(clinicID).WillReturnRows(rows)

	staff, err := store.ListStaff(context.Background(), clinicID)
	if err != nil {
		t.Fatalf("list staff failed: %v", err)
	}
	if len(staff) != 2 || staff[0].Role != StaffRoleDoctor {
		t.Fatalf("unexpected staff: %+v", staff)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}
