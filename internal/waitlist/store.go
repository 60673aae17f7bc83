package waitlist

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// Querier is the subset of pgxpool.Pool the store needs.
type Querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Store persists waitlist entries in Postgres.
type Store struct {
	db Querier
}

// NewStore creates a waitlist store.
func NewStore(db Querier) *Store {
	return &Store{db: db}
}

const entryColumns = `id, patient_id, clinic_id, preferred_date, preferred_time, preferred_day_part,
	preferred_staff_id, appointment_type, priority, status, filled_at, filled_slot_id, created_at`

func scanEntry(row pgx.Row) (*Entry, error) {
	var e Entry
	var staffID *uuid.UUID
	err := row.Scan(&e.ID, &e.PatientID, &e.ClinicID, &e.PreferredDate, &e.PreferredTime, &e.PreferredDayPart,
		&staffID, &e.Type, &e.Priority, &e.Status, &e.FilledAt, &e.FilledSlotID, &e.CreatedAt)
	if err != nil {
		return nil, err
	}
	if staffID != nil {
		e.PreferredStaffID = *staffID
	}
	return &e, nil
}

func collectEntries(rows pgx.Rows) ([]Entry, error) {
	var out []Entry
	for rows.Next() {
		e, err := scanEntry(rows)
		if err != nil {
			return nil, fmt.Errorf("waitlist: scan: %w", err)
		}
		out = append(out, *e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("waitlist: rows: %w", err)
	}
	return out, nil
}

// Create inserts a WAITING entry. A zero ID is assigned.
func (s *Store) Create(ctx context.Context, e *Entry) error {
	if err := e.Validate(); err != nil {
		return err
	}
	if e.ID == uuid.Nil {
		e.ID = uuid.New()
	}
	e.Status = StatusWaiting
	e.CreatedAt = time.Now().UTC()
	var staffID *uuid.UUID
	if e.PreferredStaffID != uuid.Nil {
		staffID = &e.PreferredStaffID
	}
	_, err := s.db.Exec(ctx, `
		INSERT INTO waitlist_entries (id, patient_id, clinic_id, preferred_date, preferred_time,
			preferred_day_part, preferred_staff_id, appointment_type, priority, status, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`,
		e.ID, e.PatientID, e.ClinicID, e.PreferredDate, e.PreferredTime, e.PreferredDayPart,
		staffID, e.Type, e.Priority, e.Status, e.CreatedAt)
	if err != nil {
		return fmt.Errorf("waitlist: create: %w", err)
	}
	return nil
}

// Get loads one entry by id.
func (s *Store) Get(ctx context.Context, id uuid.UUID) (*Entry, error) {
	e, err := scanEntry(s.db.QueryRow(ctx,
		`SELECT `+entryColumns+` FROM waitlist_entries WHERE id = $1`, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("waitlist: get: %w", err)
	}
	return e, nil
}

// ListCandidates returns up to limit WAITING entries for a clinic whose
// preferred date falls within one day of date, ordered by priority then age.
// This ordering is the matcher's tiebreak, so it must stay stable.
func (s *Store) ListCandidates(ctx context.Context, clinicID uuid.UUID, date time.Time, limit int) ([]Entry, error) {
	if limit <= 0 {
		limit = 10
	}
	rows, err := s.db.Query(ctx, `
		SELECT `+entryColumns+`
		FROM waitlist_entries
		WHERE clinic_id = $1
			AND status = 'WAITING'
			AND preferred_date BETWEEN ($2::date - 1) AND ($2::date + 1)
		ORDER BY priority DESC, created_at ASC
		LIMIT $3`, clinicID, date, limit)
	if err != nil {
		return nil, fmt.Errorf("waitlist: list candidates: %w", err)
	}
	defer rows.Close()
	return collectEntries(rows)
}

// ListPending returns WAITING entries with a preferred date on or after
// cutoff, ordered by date, then priority, then age. The sweep walks these.
func (s *Store) ListPending(ctx context.Context, clinicID uuid.UUID, cutoff time.Time) ([]Entry, error) {
	rows, err := s.db.Query(ctx, `
		SELECT `+entryColumns+`
		FROM waitlist_entries
		WHERE clinic_id = $1 AND status = 'WAITING' AND preferred_date >= $2
		ORDER BY preferred_date ASC, priority DESC, created_at ASC`, clinicID, cutoff)
	if err != nil {
		return nil, fmt.Errorf("waitlist: list pending: %w", err)
	}
	defer rows.Close()
	return collectEntries(rows)
}

// ListForClinic returns a clinic's entries, live ones first, newest wish
// dates last.
func (s *Store) ListForClinic(ctx context.Context, clinicID uuid.UUID) ([]Entry, error) {
	rows, err := s.db.Query(ctx, `
		SELECT `+entryColumns+`
		FROM waitlist_entries
		WHERE clinic_id = $1
		ORDER BY (status = 'WAITING') DESC, preferred_date ASC, priority DESC, created_at ASC`, clinicID)
	if err != nil {
		return nil, fmt.Errorf("waitlist: list for clinic: %w", err)
	}
	defer rows.Close()
	return collectEntries(rows)
}

// MarkNotified settles a WAITING entry as matched, recording the slot it
// consumed. False means the entry was no longer WAITING.
func (s *Store) MarkNotified(ctx context.Context, id, slotID uuid.UUID, at time.Time) (bool, error) {
	tag, err := s.db.Exec(ctx, `
		UPDATE waitlist_entries
		SET status = $2, filled_at = $3, filled_slot_id = $4
		WHERE id = $1 AND status = 'WAITING'`,
		id, StatusNotified, at, slotID)
	if err != nil {
		return false, fmt.Errorf("waitlist: mark notified: %w", err)
	}
	return tag.RowsAffected() == 1, nil
}

// MarkExpired retires a stale WAITING entry. False means the entry was no
// longer WAITING.
func (s *Store) MarkExpired(ctx context.Context, id uuid.UUID) (bool, error) {
	tag, err := s.db.Exec(ctx, `
		UPDATE waitlist_entries
		SET status = $2
		WHERE id = $1 AND status = 'WAITING'`,
		id, StatusExpired)
	if err != nil {
		return false, fmt.Errorf("waitlist: mark expired: %w", err)
	}
	return tag.RowsAffected() == 1, nil
}
