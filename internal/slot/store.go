package slot

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// Querier is the subset of pgxpool.Pool (and pgx.Tx) the store needs. Flip
// operations are passed the booking transaction so the flag and the
// appointment row commit together.
type Querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Store persists slots in Postgres.
type Store struct {
	db Querier
}

// NewStore creates a slot store.
func NewStore(db Querier) *Store {
	return &Store{db: db}
}

func (s *Store) querier(q Querier) Querier {
	if q == nil {
		return s.db
	}
	return q
}

const slotColumns = `id, clinic_id, staff_id, slot_date, start_time, end_time, available, created_at, updated_at`

// Get loads one slot by id. Pass a transaction as q to read inside it.
func (s *Store) Get(ctx context.Context, q Querier, id uuid.UUID) (*Slot, error) {
	var sl Slot
	err := s.querier(q).QueryRow(ctx, `SELECT `+slotColumns+` FROM slots WHERE id = $1`, id).
		Scan(&sl.ID, &sl.ClinicID, &sl.StaffID, &sl.Date, &sl.StartTime, &sl.EndTime, &sl.Available, &sl.CreatedAt, &sl.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("slot: get: %w", err)
	}
	return &sl, nil
}

// FindOptions narrows an availability query.
type FindOptions struct {
	// Specialization filters to slots owned by staff with this specialization.
	Specialization string
	// StaffID filters to one staff member.
	StaffID uuid.UUID
	// MinStartTime excludes slots starting before this "HH:MM" mark. See
	// MinStartForDate for the same-day booking buffer.
	MinStartTime string
}

// FindAvailable returns a clinic's open slots for a date ordered by start
// time.
func (s *Store) FindAvailable(ctx context.Context, q Querier, clinicID uuid.UUID, date time.Time, opts FindOptions) ([]Slot, error) {
	var sb strings.Builder
	sb.WriteString(`
		SELECT s.id, s.clinic_id, s.staff_id, s.slot_date, s.start_time, s.end_time, s.available, s.created_at, s.updated_at
		FROM slots s`)
	args := []any{clinicID, date}
	if opts.Specialization != "" {
		sb.WriteString(`
		JOIN staff st ON st.id = s.staff_id`)
	}
	sb.WriteString(`
		WHERE s.clinic_id = $1 AND s.slot_date = $2 AND s.available`)
	if opts.Specialization != "" {
		args = append(args, opts.Specialization)
		fmt.Fprintf(&sb, " AND st.specialization = $%d", len(args))
	}
	if opts.StaffID != uuid.Nil {
		args = append(args, opts.StaffID)
		fmt.Fprintf(&sb, " AND s.staff_id = $%d", len(args))
	}
	if opts.MinStartTime != "" {
		args = append(args, opts.MinStartTime)
		fmt.Fprintf(&sb, " AND s.start_time >= $%d", len(args))
	}
	sb.WriteString(`
		ORDER BY s.start_time`)

	rows, err := s.querier(q).Query(ctx, sb.String(), args...)
	if err != nil {
		return nil, fmt.Errorf("slot: find available: %w", err)
	}
	defer rows.Close()
	return scanSlots(rows)
}

// FindAvailableNear returns a clinic's open slots with dates within ±days of
// date, ordered by date then start time. Used by the waitlist sweep.
func (s *Store) FindAvailableNear(ctx context.Context, q Querier, clinicID uuid.UUID, date time.Time, days int) ([]Slot, error) {
	rows, err := s.querier(q).Query(ctx, `
		SELECT `+slotColumns+`
		FROM slots
		WHERE clinic_id = $1
			AND available
			AND slot_date BETWEEN ($2::date - $3::int) AND ($2::date + $3::int)
		ORDER BY slot_date, start_time`, clinicID, date, days)
	if err != nil {
		return nil, fmt.Errorf("slot: find available near: %w", err)
	}
	defer rows.Close()
	return scanSlots(rows)
}

func scanSlots(rows pgx.Rows) ([]Slot, error) {
	var out []Slot
	for rows.Next() {
		var sl Slot
		if err := rows.Scan(&sl.ID, &sl.ClinicID, &sl.StaffID, &sl.Date, &sl.StartTime, &sl.EndTime, &sl.Available, &sl.CreatedAt, &sl.UpdatedAt); err != nil {
			return nil, fmt.Errorf("slot: scan: %w", err)
		}
		out = append(out, sl)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("slot: rows: %w", err)
	}
	return out, nil
}

// MarkUnavailable flips a slot to unavailable. The update is conditioned on
// the flag so two concurrent bookings cannot both win: the loser sees
// ErrConflict. Run it inside the booking transaction.
func (s *Store) MarkUnavailable(ctx context.Context, q Querier, id uuid.UUID) error {
	qr := s.querier(q)
	tag, err := qr.Exec(ctx, `
		UPDATE slots SET available = FALSE, updated_at = now()
		WHERE id = $1 AND available`, id)
	if err != nil {
		return fmt.Errorf("slot: mark unavailable: %w", err)
	}
	if tag.RowsAffected() == 1 {
		return nil
	}
	// Zero rows: the slot is either missing or already held.
	var one int
	err = qr.QueryRow(ctx, `SELECT 1 FROM slots WHERE id = $1`, id).Scan(&one)
	if errors.Is(err, pgx.ErrNoRows) {
		return ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("slot: mark unavailable check: %w", err)
	}
	return ErrConflict
}

// MarkAvailable flips a slot back to available. Idempotent: releasing an
// already-free slot succeeds.
func (s *Store) MarkAvailable(ctx context.Context, q Querier, id uuid.UUID) error {
	tag, err := s.querier(q).Exec(ctx, `
		UPDATE slots SET available = TRUE, updated_at = now()
		WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("slot: mark available: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// BulkCreate inserts slots, skipping any that collide with an existing
// (staff, date, start) opening. Returns the number actually inserted.
func (s *Store) BulkCreate(ctx context.Context, q Querier, slots []Slot) (int, error) {
	qr := s.querier(q)
	inserted := 0
	for i := range slots {
		sl := &slots[i]
		if sl.ID == uuid.Nil {
			sl.ID = uuid.New()
		}
		tag, err := qr.Exec(ctx, `
			INSERT INTO slots (id, clinic_id, staff_id, slot_date, start_time, end_time, available)
			VALUES ($1, $2, $3, $4, $5, $6, TRUE)
			ON CONFLICT (staff_id, slot_date, start_time) DO NOTHING`,
			sl.ID, sl.ClinicID, sl.StaffID, sl.Date, sl.StartTime, sl.EndTime)
		if err != nil {
			return inserted, fmt.Errorf("slot: bulk create: %w", err)
		}
		inserted += int(tag.RowsAffected())
	}
	return inserted, nil
}
