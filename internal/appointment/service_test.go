package appointment

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	pgxmock "github.com/pashagolub/pgxmock/v3"

	"github.com/caredesk/clinic-scheduling/internal/auth"
	"github.com/caredesk/clinic-scheduling/internal/clinic"
	"github.com/caredesk/clinic-scheduling/internal/slot"
	"github.com/caredesk/clinic-scheduling/pkg/logging"
)

var slotTestColumns = []string{
	"id", "clinic_id", "staff_id", "slot_date", "start_time", "end_time", "available", "created_at", "updated_at",
}

func testSlotRows(sl *slot.Slot) *pgxmock.Rows {
	return pgxmock.NewRows(slotTestColumns).AddRow(
		sl.ID, sl.ClinicID, sl.StaffID, sl.Date, sl.StartTime, sl.EndTime, sl.Available, sl.CreatedAt, sl.UpdatedAt,
	)
}

func testClinicRows(id uuid.UUID, offsetMinutes int) *pgxmock.Rows {
	now := time.Date(2026, 1, 5, 8, 0, 0, 0, time.UTC)
	return pgxmock.NewRows([]string{
		"id", "name", "phone", "email", "region", "active", "utc_offset_minutes", "default_language", "hours", "created_at", "updated_at",
	}).AddRow(id, "Riverside Clinic", "+15550001111", "desk@riverside.example", "us-east", true, offsetMinutes, "en", []byte(`{}`), now, now)
}

type fillerStub struct {
	calls  int
	slotID uuid.UUID
	filled bool
	err    error
}

func (f *fillerStub) FillFreedSlot(_ context.Context, slotID, _ uuid.UUID) (bool, error) {
	f.calls++
	f.slotID = slotID
	return f.filled, f.err
}

func newTestService(t *testing.T) (pgxmock.PgxPoolIface, *Service) {
	t.Helper()
	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatalf("pgxmock: %v", err)
	}
	t.Cleanup(mock.Close)
	svc := NewService(mock, NewStore(mock), slot.NewStore(mock), clinic.NewStore(mock), logging.Default())
	return mock, svc
}

func TestServiceCreateBooksSlot(t *testing.T) {
	mock, svc := newTestService(t)

	patientID := uuid.New()
	sl := &slot.Slot{
		ID:        uuid.New(),
		ClinicID:  uuid.New(),
		StaffID:   uuid.New(),
		Date:      time.Date(2026, 3, 11, 0, 0, 0, 0, time.UTC),
		StartTime: "10:00",
		EndTime:   "10:30",
		Available: true,
	}

	mock.ExpectBegin()
	mock.ExpectQuery(`SELECT (.+) FROM slots WHERE id = \$1`).
		WithArgs(sl.ID).
		WillReturnRows(testSlotRows(sl))
	mock.ExpectExec(`UPDATE slots SET available = FALSE`).
		WithArgs(sl.ID).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))
	mock.ExpectExec("INSERT INTO appointments").
		WithArgs(pgxmock.AnyArg(), sl.ID, patientID, sl.ClinicID, StatusBooked, "consultation", "", pgxmock.AnyArg(), pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectCommit()

	scope := auth.Scope{Role: auth.RolePatient, PatientID: patientID}
	a, err := svc.Create(context.Background(), scope, CreateParams{
		SlotID:    sl.ID,
		PatientID: patientID,
		Type:      "consultation",
	})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if a.Status != StatusBooked {
		t.Fatalf("expected BOOKED, got %s", a.Status)
	}
	if a.ClinicID != sl.ClinicID {
		t.Fatal("expected clinic taken from slot")
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestServiceCreateSlotHeld(t *testing.T) {
	mock, svc := newTestService(t)

	patientID := uuid.New()
	sl := &slot.Slot{
		ID:        uuid.New(),
		ClinicID:  uuid.New(),
		StaffID:   uuid.New(),
		Date:      time.Date(2026, 3, 11, 0, 0, 0, 0, time.UTC),
		StartTime: "10:00",
		EndTime:   "10:30",
		Available: false,
	}

	mock.ExpectBegin()
	mock.ExpectQuery(`SELECT (.+) FROM slots WHERE id = \$1`).
		WithArgs(sl.ID).
		WillReturnRows(testSlotRows(sl))
	mock.ExpectRollback()

	scope := auth.Scope{Role: auth.RolePatient, PatientID: patientID}
	_, err := svc.Create(context.Background(), scope, CreateParams{SlotID: sl.ID, PatientID: patientID})
	if !errors.Is(err, ErrSlotUnavailable) {
		t.Fatalf("expected ErrSlotUnavailable, got %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestServiceCreateLosesRace(t *testing.T) {
	mock, svc := newTestService(t)

	patientID := uuid.New()
	sl := &slot.Slot{
		ID:        uuid.New(),
		ClinicID:  uuid.New(),
		StaffID:   uuid.New(),
		Date:      time.Date(2026, 3, 11, 0, 0, 0, 0, time.UTC),
		StartTime: "10:00",
		EndTime:   "10:30",
		Available: true,
	}

	mock.ExpectBegin()
	mock.ExpectQuery(`SELECT (.+) FROM slots WHERE id = \$1`).
		WithArgs(sl.ID).
		WillReturnRows(testSlotRows(sl))
	// Another booking flipped the flag between our read and the update.
	mock.ExpectExec(`UPDATE slots SET available = FALSE`).
		WithArgs(sl.ID).
		WillReturnResult(pgxmock.NewResult("UPDATE", 0))
	mock.ExpectQuery(`SELECT 1 FROM slots WHERE id = \$1`).
		WithArgs(sl.ID).
		WillReturnRows(pgxmock.NewRows([]string{"?column?"}).AddRow(1))
	mock.ExpectRollback()

	scope := auth.Scope{Role: auth.RolePatient, PatientID: patientID}
	_, err := svc.Create(context.Background(), scope, CreateParams{SlotID: sl.ID, PatientID: patientID})
	if !errors.Is(err, ErrConflict) {
		t.Fatalf("expected ErrConflict, got %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestServiceCreateForeignPatientForbidden(t *testing.T) {
	_, svc := newTestService(t)

	scope := auth.Scope{Role: auth.RolePatient, PatientID: uuid.New()}
	_, err := svc.Create(context.Background(), scope, CreateParams{SlotID: uuid.New(), PatientID: uuid.New()})
	if !errors.Is(err, auth.ErrForbidden) {
		t.Fatalf("expected ErrForbidden, got %v", err)
	}
}

func TestServiceTransitionConfirms(t *testing.T) {
	mock, svc := newTestService(t)

	a := testAppointment()
	mock.ExpectBegin()
	mock.ExpectQuery(`SELECT (.+) FROM appointments WHERE id = \$1`).
		WithArgs(a.ID).
		WillReturnRows(addApptRow(pgxmock.NewRows(apptTestColumns), a))
	mock.ExpectExec(`UPDATE appointments SET status = \$3`).
		WithArgs(a.ID, StatusBooked, StatusConfirmed).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))
	mock.ExpectCommit()

	scope := auth.Scope{Role: auth.RoleStaff, ClinicID: a.ClinicID}
	got, err := svc.Transition(context.Background(), scope, a.ID, TransitionParams{Target: StatusConfirmed})
	if err != nil {
		t.Fatalf("Transition: %v", err)
	}
	if got.Status != StatusConfirmed {
		t.Fatalf("expected CONFIRMED, got %s", got.Status)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestServiceTransitionRejectsInvalidMove(t *testing.T) {
	mock, svc := newTestService(t)

	a := testAppointment()
	a.Status = StatusCheckedIn
	mock.ExpectBegin()
	mock.ExpectQuery(`SELECT (.+) FROM appointments WHERE id = \$1`).
		WithArgs(a.ID).
		WillReturnRows(addApptRow(pgxmock.NewRows(apptTestColumns), a))
	mock.ExpectRollback()

	scope := auth.Scope{Role: auth.RoleStaff, ClinicID: a.ClinicID}
	_, err := svc.Transition(context.Background(), scope, a.ID, TransitionParams{Target: StatusConfirmed})
	var invalid *InvalidTransitionError
	if !errors.As(err, &invalid) {
		t.Fatalf("expected InvalidTransitionError, got %v", err)
	}
	if invalid.From != StatusCheckedIn || invalid.To != StatusConfirmed {
		t.Fatalf("error carries %s -> %s", invalid.From, invalid.To)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestServiceTransitionRequiresStaff(t *testing.T) {
	_, svc := newTestService(t)

	scope := auth.Scope{Role: auth.RolePatient, PatientID: uuid.New()}
	_, err := svc.Transition(context.Background(), scope, uuid.New(), TransitionParams{Target: StatusConfirmed})
	if !errors.Is(err, auth.ErrForbidden) {
		t.Fatalf("expected ErrForbidden, got %v", err)
	}
}

func TestServiceTransitionCancelReleasesSlotAndOffersWaitlist(t *testing.T) {
	mock, svc := newTestService(t)

	now := time.Date(2026, 3, 10, 8, 0, 0, 0, time.UTC)
	svc.WithClock(func() time.Time { return now })
	filler := &fillerStub{filled: true}
	svc.WithFiller(filler)

	a := testAppointment()
	a.Status = StatusConfirmed
	mock.ExpectBegin()
	mock.ExpectQuery(`SELECT (.+) FROM appointments WHERE id = \$1`).
		WithArgs(a.ID).
		WillReturnRows(addApptRow(pgxmock.NewRows(apptTestColumns), a))
	mock.ExpectExec(`UPDATE appointments`).
		WithArgs(a.ID, StatusConfirmed, StatusCancelled, now, "staff cancelled").
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))
	mock.ExpectExec(`UPDATE slots SET available = TRUE`).
		WithArgs(a.SlotID).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))
	mock.ExpectCommit()

	scope := auth.Scope{Role: auth.RoleStaff, ClinicID: a.ClinicID}
	got, err := svc.Transition(context.Background(), scope, a.ID, TransitionParams{
		Target: StatusCancelled,
		Reason: "staff cancelled",
	})
	if err != nil {
		t.Fatalf("Transition: %v", err)
	}
	if got.Status != StatusCancelled || got.CancelledAt == nil {
		t.Fatalf("unexpected result: %+v", got)
	}
	if filler.calls != 1 || filler.slotID != a.SlotID {
		t.Fatalf("expected waitlist offer for slot %s, got %+v", a.SlotID, filler)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestServiceCancelSurvivesFillerFailure(t *testing.T) {
	mock, svc := newTestService(t)

	now := time.Date(2026, 3, 10, 8, 0, 0, 0, time.UTC)
	svc.WithClock(func() time.Time { return now })
	filler := &fillerStub{err: errors.New("matcher offline")}
	svc.WithFiller(filler)

	a := testAppointment()
	mock.ExpectBegin()
	mock.ExpectQuery(`SELECT (.+) FROM appointments WHERE id = \$1`).
		WithArgs(a.ID).
		WillReturnRows(addApptRow(pgxmock.NewRows(apptTestColumns), a))
	mock.ExpectExec(`UPDATE appointments`).
		WithArgs(a.ID, StatusBooked, StatusCancelled, now, "").
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))
	mock.ExpectExec(`UPDATE slots SET available = TRUE`).
		WithArgs(a.SlotID).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))
	mock.ExpectCommit()

	scope := auth.Scope{Role: auth.RoleStaff, ClinicID: a.ClinicID}
	got, err := svc.Transition(context.Background(), scope, a.ID, TransitionParams{Target: StatusCancelled})
	if err != nil {
		t.Fatalf("cancellation must not surface fill errors: %v", err)
	}
	if got.Status != StatusCancelled {
		t.Fatalf("expected CANCELLED, got %s", got.Status)
	}
	if filler.calls != 1 {
		t.Fatal("expected the filler to be offered the slot")
	}
}

func TestServiceCancelByPatient(t *testing.T) {
	mock, svc := newTestService(t)

	now := time.Date(2026, 3, 10, 8, 0, 0, 0, time.UTC)
	svc.WithClock(func() time.Time { return now })

	a := testAppointment()
	sl := &slot.Slot{
		ID:        a.SlotID,
		ClinicID:  a.ClinicID,
		StaffID:   uuid.New(),
		Date:      time.Date(2026, 3, 11, 0, 0, 0, 0, time.UTC),
		StartTime: "10:00",
		EndTime:   "10:30",
		Available: false,
	}

	mock.ExpectBegin()
	mock.ExpectQuery(`SELECT (.+) FROM appointments WHERE id = \$1 AND patient_id = \$2`).
		WithArgs(a.ID, a.PatientID).
		WillReturnRows(addApptRow(pgxmock.NewRows(apptTestColumns), a))
	mock.ExpectQuery(`SELECT (.+) FROM slots WHERE id = \$1`).
		WithArgs(sl.ID).
		WillReturnRows(testSlotRows(sl))
	mock.ExpectQuery(`SELECT (.+) FROM clinics WHERE id = \$1`).
		WithArgs(a.ClinicID).
		WillReturnRows(testClinicRows(a.ClinicID, 120))
	mock.ExpectExec(`UPDATE appointments`).
		WithArgs(a.ID, StatusBooked, StatusCancelled, now, "can't make it").
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))
	mock.ExpectExec(`UPDATE slots SET available = TRUE`).
		WithArgs(sl.ID).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))
	mock.ExpectCommit()

	scope := auth.Scope{Role: auth.RolePatient, PatientID: a.PatientID}
	got, err := svc.CancelByPatient(context.Background(), scope, a.ID, a.PatientID, "can't make it")
	if err != nil {
		t.Fatalf("CancelByPatient: %v", err)
	}
	if got.Status != StatusCancelled || got.CancelReason != "can't make it" {
		t.Fatalf("unexpected result: %+v", got)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestServiceCancelByPatientAlreadyPast(t *testing.T) {
	mock, svc := newTestService(t)

	// Slot starts 2026-03-11 10:00 at UTC+2, i.e. 08:00 UTC; the clock is
	// an hour past that.
	now := time.Date(2026, 3, 11, 9, 0, 0, 0, time.UTC)
	svc.WithClock(func() time.Time { return now })

	a := testAppointment()
	sl := &slot.Slot{
		ID:        a.SlotID,
		ClinicID:  a.ClinicID,
		StaffID:   uuid.New(),
		Date:      time.Date(2026, 3, 11, 0, 0, 0, 0, time.UTC),
		StartTime: "10:00",
		EndTime:   "10:30",
		Available: false,
	}

	mock.ExpectBegin()
	mock.ExpectQuery(`SELECT (.+) FROM appointments WHERE id = \$1 AND patient_id = \$2`).
		WithArgs(a.ID, a.PatientID).
		WillReturnRows(addApptRow(pgxmock.NewRows(apptTestColumns), a))
	mock.ExpectQuery(`SELECT (.+) FROM slots WHERE id = \$1`).
		WithArgs(sl.ID).
		WillReturnRows(testSlotRows(sl))
	mock.ExpectQuery(`SELECT (.+) FROM clinics WHERE id = \$1`).
		WithArgs(a.ClinicID).
		WillReturnRows(testClinicRows(a.ClinicID, 120))
	mock.ExpectRollback()

	scope := auth.Scope{Role: auth.RolePatient, PatientID: a.PatientID}
	_, err := svc.CancelByPatient(context.Background(), scope, a.ID, a.PatientID, "")
	if !errors.Is(err, ErrAlreadyPast) {
		t.Fatalf("expected ErrAlreadyPast, got %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestServiceCancelByPatientNotCancellable(t *testing.T) {
	mock, svc := newTestService(t)

	now := time.Date(2026, 3, 10, 8, 0, 0, 0, time.UTC)
	svc.WithClock(func() time.Time { return now })

	a := testAppointment()
	a.Status = StatusCheckedIn
	sl := &slot.Slot{
		ID:        a.SlotID,
		ClinicID:  a.ClinicID,
		StaffID:   uuid.New(),
		Date:      time.Date(2026, 3, 11, 0, 0, 0, 0, time.UTC),
		StartTime: "10:00",
		EndTime:   "10:30",
		Available: false,
	}

	mock.ExpectBegin()
	mock.ExpectQuery(`SELECT (.+) FROM appointments WHERE id = \$1 AND patient_id = \$2`).
		WithArgs(a.ID, a.PatientID).
		WillReturnRows(addApptRow(pgxmock.NewRows(apptTestColumns), a))
	mock.ExpectQuery(`SELECT (.+) FROM slots WHERE id = \$1`).
		WithArgs(sl.ID).
		WillReturnRows(testSlotRows(sl))
	mock.ExpectQuery(`SELECT (.+) FROM clinics WHERE id = \$1`).
		WithArgs(a.ClinicID).
		WillReturnRows(testClinicRows(a.ClinicID, 120))
	mock.ExpectRollback()

	scope := auth.Scope{Role: auth.RolePatient, PatientID: a.PatientID}
	_, err := svc.CancelByPatient(context.Background(), scope, a.ID, a.PatientID, "")
	if !errors.Is(err, ErrNotCancellable) {
		t.Fatalf("expected ErrNotCancellable, got %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}
