package waitlist

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	pgxmock "github.com/pashagolub/pgxmock/v3"

	"github.com/caredesk/clinic-scheduling/internal/appointment"
	"github.com/caredesk/clinic-scheduling/internal/auth"
	"github.com/caredesk/clinic-scheduling/internal/slot"
	"github.com/caredesk/clinic-scheduling/internal/timeofday"
	"github.com/caredesk/clinic-scheduling/pkg/logging"
)

var matcherNow = time.Date(2026, 3, 10, 15, 0, 0, 0, time.UTC)

var matcherSlotColumns = []string{
	"id", "clinic_id", "staff_id", "slot_date", "start_time", "end_time", "available", "created_at", "updated_at",
}

func matcherSlotRows(sl *slot.Slot) *pgxmock.Rows {
	return pgxmock.NewRows(matcherSlotColumns).AddRow(
		sl.ID, sl.ClinicID, sl.StaffID, sl.Date, sl.StartTime, sl.EndTime, sl.Available, sl.CreatedAt, sl.UpdatedAt,
	)
}

type bookerStub struct {
	params []appointment.CreateParams
	scopes []auth.Scope
	err    error
}

func (b *bookerStub) Create(_ context.Context, scope auth.Scope, p appointment.CreateParams) (*appointment.Appointment, error) {
	b.params = append(b.params, p)
	b.scopes = append(b.scopes, scope)
	if b.err != nil {
		return nil, b.err
	}
	return &appointment.Appointment{
		ID:        uuid.New(),
		SlotID:    p.SlotID,
		PatientID: p.PatientID,
		ClinicID:  p.ClinicID,
		Status:    appointment.StatusBooked,
	}, nil
}

type notifierStub struct {
	calls int
	err   error
}

func (n *notifierStub) WaitlistFilled(context.Context, uuid.UUID, uuid.UUID, time.Time, string) error {
	n.calls++
	return n.err
}

func newTestMatcher(t *testing.T) (pgxmock.PgxPoolIface, *Matcher, *bookerStub, *notifierStub) {
	t.Helper()
	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatalf("pgxmock: %v", err)
	}
	t.Cleanup(mock.Close)
	booker := &bookerStub{}
	notifier := &notifierStub{}
	m := NewMatcher(NewStore(mock), slot.NewStore(mock), appointment.NewStore(mock), booker, logging.Default()).
		WithNotifier(notifier).
		WithClock(func() time.Time { return matcherNow })
	return mock, m, booker, notifier
}

func TestScoreWeights(t *testing.T) {
	staffID := uuid.New()
	sl := &slot.Slot{
		ID:        uuid.New(),
		ClinicID:  uuid.New(),
		StaffID:   staffID,
		Date:      time.Date(2026, 3, 11, 0, 0, 0, 0, time.UTC),
		StartTime: "10:00",
		EndTime:   "10:30",
		Available: true,
	}
	exact := sl.Date
	adjacent := sl.Date.AddDate(0, 0, 1)

	cases := []struct {
		name  string
		entry Entry
		want  int
	}{
		{"exact date", Entry{PreferredDate: exact}, 10},
		{"adjacent date", Entry{PreferredDate: adjacent}, 0},
		{"date and staff", Entry{PreferredDate: exact, PreferredStaffID: staffID}, 15},
		{"date and exact time", Entry{PreferredDate: exact, PreferredTime: "10:00"}, 15},
		{"date and day part", Entry{PreferredDate: exact, PreferredDayPart: timeofday.Morning}, 13},
		{"day part derived from time", Entry{PreferredDate: exact, PreferredTime: "09:30"}, 13},
		{"wrong day part", Entry{PreferredDate: exact, PreferredDayPart: timeofday.Afternoon}, 10},
		{"priority added raw", Entry{PreferredDate: adjacent, Priority: 7}, 7},
		{"everything", Entry{PreferredDate: exact, PreferredStaffID: staffID, PreferredTime: "10:00", Priority: 2}, 22},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := score(&tc.entry, sl); got != tc.want {
				t.Fatalf("score = %d, want %d", got, tc.want)
			}
		})
	}
}

func TestTryFillPicksHighestScore(t *testing.T) {
	mock, m, booker, notifier := newTestMatcher(t)

	clinicID := uuid.New()
	sl := &slot.Slot{
		ID:        uuid.New(),
		ClinicID:  clinicID,
		StaffID:   uuid.New(),
		Date:      time.Date(2026, 3, 11, 0, 0, 0, 0, time.UTC),
		StartTime: "10:00",
		EndTime:   "10:30",
		Available: true,
	}

	// Higher priority but a weaker fit: adjacent date, no time wish.
	loser := testEntry()
	loser.ClinicID = clinicID
	loser.PreferredDate = sl.Date.AddDate(0, 0, 1)
	loser.PreferredTime = ""
	loser.Priority = 5

	// Exact date and exact time beat raw priority here: 15 vs 5.
	winner := testEntry()
	winner.ClinicID = clinicID
	winner.PreferredDate = sl.Date
	winner.PreferredTime = "10:00"
	winner.Priority = 0

	mock.ExpectQuery(`SELECT (.+) FROM slots WHERE id = \$1`).
		WithArgs(sl.ID).
		WillReturnRows(matcherSlotRows(sl))
	rows := pgxmock.NewRows(entryTestColumns)
	addEntryRow(rows, loser)
	addEntryRow(rows, winner)
	mock.ExpectQuery(`SELECT (.+) FROM waitlist_entries`).
		WithArgs(clinicID, sl.Date, 10).
		WillReturnRows(rows)
	mock.ExpectQuery(`SELECT 1`).
		WithArgs(winner.PatientID, clinicID, sl.Date).
		WillReturnError(pgx.ErrNoRows)
	mock.ExpectExec("UPDATE waitlist_entries").
		WithArgs(winner.ID, StatusNotified, matcherNow, sl.ID).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))

	res, err := m.TryFill(context.Background(), sl.ID, clinicID)
	if err != nil {
		t.Fatalf("TryFill: %v", err)
	}
	if !res.Filled {
		t.Fatal("expected fill")
	}
	if res.EntryID != winner.ID || res.PatientID != winner.PatientID {
		t.Fatalf("expected winner %s, got entry %s", winner.ID, res.EntryID)
	}
	if len(booker.params) != 1 || booker.params[0].PatientID != winner.PatientID {
		t.Fatalf("unexpected booking calls: %+v", booker.params)
	}
	if !booker.scopes[0].Staff() {
		t.Fatal("expected fill to book with a system scope")
	}
	if notifier.calls != 1 {
		t.Fatalf("expected one notification, got %d", notifier.calls)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestTryFillTieKeepsStoreOrder(t *testing.T) {
	mock, m, booker, _ := newTestMatcher(t)

	clinicID := uuid.New()
	sl := &slot.Slot{
		ID:        uuid.New(),
		ClinicID:  clinicID,
		StaffID:   uuid.New(),
		Date:      time.Date(2026, 3, 11, 0, 0, 0, 0, time.UTC),
		StartTime: "10:00",
		EndTime:   "10:30",
		Available: true,
	}

	// Identical scores; the store lists older entries first, and a tie must
	// not reorder them.
	older := testEntry()
	older.ClinicID = clinicID
	older.PreferredDate = sl.Date
	older.PreferredTime = ""
	newer := testEntry()
	newer.ClinicID = clinicID
	newer.PreferredDate = sl.Date
	newer.PreferredTime = ""

	mock.ExpectQuery(`SELECT (.+) FROM slots WHERE id = \$1`).
		WithArgs(sl.ID).
		WillReturnRows(matcherSlotRows(sl))
	rows := pgxmock.NewRows(entryTestColumns)
	addEntryRow(rows, older)
	addEntryRow(rows, newer)
	mock.ExpectQuery(`SELECT (.+) FROM waitlist_entries`).
		WithArgs(clinicID, sl.Date, 10).
		WillReturnRows(rows)
	mock.ExpectQuery(`SELECT 1`).
		WithArgs(older.PatientID, clinicID, sl.Date).
		WillReturnError(pgx.ErrNoRows)
	mock.ExpectExec("UPDATE waitlist_entries").
		WithArgs(older.ID, StatusNotified, matcherNow, sl.ID).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))

	res, err := m.TryFill(context.Background(), sl.ID, clinicID)
	if err != nil {
		t.Fatalf("TryFill: %v", err)
	}
	if res.EntryID != older.ID {
		t.Fatal("expected the older entry to win the tie")
	}
	if len(booker.params) != 1 || booker.params[0].PatientID != older.PatientID {
		t.Fatalf("unexpected booking calls: %+v", booker.params)
	}
}

func TestTryFillExpiresStaleEntryAndKeepsScanning(t *testing.T) {
	mock, m, _, _ := newTestMatcher(t)

	clinicID := uuid.New()
	sl := &slot.Slot{
		ID:        uuid.New(),
		ClinicID:  clinicID,
		StaffID:   uuid.New(),
		Date:      time.Date(2026, 3, 11, 0, 0, 0, 0, time.UTC),
		StartTime: "10:00",
		EndTime:   "10:30",
		Available: true,
	}

	stale := testEntry()
	stale.ClinicID = clinicID
	stale.PreferredDate = sl.Date
	stale.Priority = 9
	fresh := testEntry()
	fresh.ClinicID = clinicID
	fresh.PreferredDate = sl.Date
	fresh.PreferredTime = ""
	fresh.Priority = 0

	mock.ExpectQuery(`SELECT (.+) FROM slots WHERE id = \$1`).
		WithArgs(sl.ID).
		WillReturnRows(matcherSlotRows(sl))
	rows := pgxmock.NewRows(entryTestColumns)
	addEntryRow(rows, stale)
	addEntryRow(rows, fresh)
	mock.ExpectQuery(`SELECT (.+) FROM waitlist_entries`).
		WithArgs(clinicID, sl.Date, 10).
		WillReturnRows(rows)
	// Stale candidate already holds an appointment that day.
	mock.ExpectQuery(`SELECT 1`).
		WithArgs(stale.PatientID, clinicID, sl.Date).
		WillReturnRows(pgxmock.NewRows([]string{"?column?"}).AddRow(1))
	mock.ExpectExec("UPDATE waitlist_entries").
		WithArgs(stale.ID, StatusExpired).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))
	mock.ExpectQuery(`SELECT 1`).
		WithArgs(fresh.PatientID, clinicID, sl.Date).
		WillReturnError(pgx.ErrNoRows)
	mock.ExpectExec("UPDATE waitlist_entries").
		WithArgs(fresh.ID, StatusNotified, matcherNow, sl.ID).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))

	res, err := m.TryFill(context.Background(), sl.ID, clinicID)
	if err != nil {
		t.Fatalf("TryFill: %v", err)
	}
	if !res.Filled || res.EntryID != fresh.ID {
		t.Fatalf("expected fresh entry to fill, got %+v", res)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestTryFillSlotAlreadyTaken(t *testing.T) {
	mock, m, booker, _ := newTestMatcher(t)

	clinicID := uuid.New()
	sl := &slot.Slot{
		ID:        uuid.New(),
		ClinicID:  clinicID,
		StaffID:   uuid.New(),
		Date:      time.Date(2026, 3, 11, 0, 0, 0, 0, time.UTC),
		StartTime: "10:00",
		EndTime:   "10:30",
		Available: false,
	}

	mock.ExpectQuery(`SELECT (.+) FROM slots WHERE id = \$1`).
		WithArgs(sl.ID).
		WillReturnRows(matcherSlotRows(sl))

	res, err := m.TryFill(context.Background(), sl.ID, clinicID)
	if err != nil {
		t.Fatalf("TryFill: %v", err)
	}
	if res.Filled {
		t.Fatal("expected no fill for a taken slot")
	}
	if len(booker.params) != 0 {
		t.Fatal("expected no booking attempt")
	}
}

func TestTryFillLosesBookingRace(t *testing.T) {
	mock, m, booker, notifier := newTestMatcher(t)
	booker.err = appointment.ErrSlotUnavailable

	clinicID := uuid.New()
	sl := &slot.Slot{
		ID:        uuid.New(),
		ClinicID:  clinicID,
		StaffID:   uuid.New(),
		Date:      time.Date(2026, 3, 11, 0, 0, 0, 0, time.UTC),
		StartTime: "10:00",
		EndTime:   "10:30",
		Available: true,
	}
	e := testEntry()
	e.ClinicID = clinicID
	e.PreferredDate = sl.Date

	mock.ExpectQuery(`SELECT (.+) FROM slots WHERE id = \$1`).
		WithArgs(sl.ID).
		WillReturnRows(matcherSlotRows(sl))
	mock.ExpectQuery(`SELECT (.+) FROM waitlist_entries`).
		WithArgs(clinicID, sl.Date, 10).
		WillReturnRows(addEntryRow(pgxmock.NewRows(entryTestColumns), e))
	mock.ExpectQuery(`SELECT 1`).
		WithArgs(e.PatientID, clinicID, sl.Date).
		WillReturnError(pgx.ErrNoRows)

	res, err := m.TryFill(context.Background(), sl.ID, clinicID)
	if err != nil {
		t.Fatalf("TryFill: %v", err)
	}
	if res.Filled {
		t.Fatal("expected no fill after losing the slot race")
	}
	if notifier.calls != 0 {
		t.Fatal("expected no notification")
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestTryFillSurvivesNotifierFailure(t *testing.T) {
	mock, m, _, notifier := newTestMatcher(t)
	notifier.err = context.DeadlineExceeded

	clinicID := uuid.New()
	sl := &slot.Slot{
		ID:        uuid.New(),
		ClinicID:  clinicID,
		StaffID:   uuid.New(),
		Date:      time.Date(2026, 3, 11, 0, 0, 0, 0, time.UTC),
		StartTime: "10:00",
		EndTime:   "10:30",
		Available: true,
	}
	e := testEntry()
	e.ClinicID = clinicID
	e.PreferredDate = sl.Date

	mock.ExpectQuery(`SELECT (.+) FROM slots WHERE id = \$1`).
		WithArgs(sl.ID).
		WillReturnRows(matcherSlotRows(sl))
	mock.ExpectQuery(`SELECT (.+) FROM waitlist_entries`).
		WithArgs(clinicID, sl.Date, 10).
		WillReturnRows(addEntryRow(pgxmock.NewRows(entryTestColumns), e))
	mock.ExpectQuery(`SELECT 1`).
		WithArgs(e.PatientID, clinicID, sl.Date).
		WillReturnError(pgx.ErrNoRows)
	mock.ExpectExec("UPDATE waitlist_entries").
		WithArgs(e.ID, StatusNotified, matcherNow, sl.ID).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))

	res, err := m.TryFill(context.Background(), sl.ID, clinicID)
	if err != nil {
		t.Fatalf("TryFill: %v", err)
	}
	if !res.Filled {
		t.Fatal("expected fill despite notifier failure")
	}
	if notifier.calls != 1 {
		t.Fatalf("expected one notification attempt, got %d", notifier.calls)
	}
}

func TestProcessAllFillsPendingEntry(t *testing.T) {
	mock, m, booker, _ := newTestMatcher(t)

	clinicID := uuid.New()
	sl := &slot.Slot{
		ID:        uuid.New(),
		ClinicID:  clinicID,
		StaffID:   uuid.New(),
		Date:      time.Date(2026, 3, 11, 0, 0, 0, 0, time.UTC),
		StartTime: "10:00",
		EndTime:   "10:30",
		Available: true,
	}
	e := testEntry()
	e.ClinicID = clinicID
	e.PreferredDate = sl.Date

	today := matcherNow.Truncate(24 * time.Hour)
	mock.ExpectQuery(`SELECT (.+) FROM waitlist_entries WHERE clinic_id = \$1 AND status = 'WAITING' AND preferred_date >= \$2`).
		WithArgs(clinicID, today).
		WillReturnRows(addEntryRow(pgxmock.NewRows(entryTestColumns), e))
	mock.ExpectQuery(`SELECT (.+) FROM slots\s+WHERE clinic_id = \$1`).
		WithArgs(clinicID, e.PreferredDate, 1).
		WillReturnRows(matcherSlotRows(sl))
	mock.ExpectQuery(`SELECT (.+) FROM slots WHERE id = \$1`).
		WithArgs(sl.ID).
		WillReturnRows(matcherSlotRows(sl))
	mock.ExpectQuery(`SELECT (.+) FROM waitlist_entries`).
		WithArgs(clinicID, sl.Date, 10).
		WillReturnRows(addEntryRow(pgxmock.NewRows(entryTestColumns), e))
	mock.ExpectQuery(`SELECT 1`).
		WithArgs(e.PatientID, clinicID, sl.Date).
		WillReturnError(pgx.ErrNoRows)
	mock.ExpectExec("UPDATE waitlist_entries").
		WithArgs(e.ID, StatusNotified, matcherNow, sl.ID).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))

	sum, err := m.ProcessAll(context.Background(), clinicID)
	if err != nil {
		t.Fatalf("ProcessAll: %v", err)
	}
	if sum.Processed != 1 || sum.Filled != 1 || sum.Errors != 0 {
		t.Fatalf("unexpected summary: %+v", sum)
	}
	if len(booker.params) != 1 {
		t.Fatalf("expected one booking, got %d", len(booker.params))
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}
