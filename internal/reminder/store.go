package reminder

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/caredesk/clinic-scheduling/internal/appointment"
	"github.com/caredesk/clinic-scheduling/internal/messaging"
)

// Querier is the subset of pgxpool.Pool the store needs.
type Querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Store reads reminder candidates and writes per-kind delivery flags onto
// appointments.
type Store struct {
	db         Querier
	batchLimit int
}

// NewStore creates a reminder store.
func NewStore(db Querier) *Store {
	return &Store{db: db, batchLimit: 100}
}

// WithBatchLimit caps how many candidates one query returns.
func (s *Store) WithBatchLimit(n int) *Store {
	if n > 0 {
		s.batchLimit = n
	}
	return s
}

// Candidate is one appointment due for a reminder, joined with everything
// the send needs so the hot loop issues no further reads.
type Candidate struct {
	AppointmentID uuid.UUID
	Status        appointment.Status
	SlotDate      time.Time
	StartTime     string
	// StartsAt is the slot's absolute start instant, resolved through the
	// clinic's fixed UTC offset.
	StartsAt time.Time

	PatientID   uuid.UUID
	PatientName string
	Phone       string
	Language    string
	Channel     messaging.Channel

	ClinicID         uuid.UUID
	ClinicName       string
	UTCOffsetMinutes int
	DefaultLanguage  string
}

// ListOptions narrows a candidate query.
type ListOptions struct {
	// IncludeFlagged admits appointments whose reminder was already sent or
	// permanently failed. Forced manual runs use this to resend.
	IncludeFlagged bool
	// AppointmentID restricts the scan to a single appointment.
	AppointmentID uuid.UUID
}

// kindFlagPrefix maps a reminder kind to its appointment column family.
// Kinds form a closed set, so interpolating the prefix is safe.
var kindFlagPrefix = map[Kind]string{
	Kind24Hour:  "reminder_24h",
	KindSameDay: "reminder_same_day",
}

// startsAtExpr resolves a slot's UTC start instant in SQL: naive local
// timestamp read as UTC, then shifted back by the clinic offset.
const startsAtExpr = `((s.slot_date + s.start_time::time) AT TIME ZONE 'UTC' - make_interval(mins => c.utc_offset_minutes))`

// ListDue returns appointments whose slot starts inside the window and whose
// reminder of this kind is still owed, earliest slot first, capped at the
// batch limit so one run's work stays bounded. Same-day candidates must start
// on today's local calendar date; now anchors that check.
func (s *Store) ListDue(ctx context.Context, kind Kind, w Window, now time.Time, opts ListOptions) ([]Candidate, error) {
	prefix, ok := kindFlagPrefix[kind]
	if !ok {
		return nil, fmt.Errorf("reminder: unknown kind %q", kind)
	}

	var sb strings.Builder
	sb.WriteString(`
		SELECT a.id, a.status, s.slot_date, s.start_time, ` + startsAtExpr + ` AS starts_at,
			p.id, p.name, p.phone, p.language, p.preferred_channel,
			c.id, c.name, c.utc_offset_minutes, c.default_language
		FROM appointments a
		JOIN slots s ON s.id = a.slot_id
		JOIN clinics c ON c.id = a.clinic_id
		JOIN patients p ON p.id = a.patient_id
		WHERE a.status IN ('BOOKED', 'CONFIRMED', 'REMINDER_SENT')
			AND ` + startsAtExpr + ` BETWEEN $1 AND $2`)
	args := []any{w.From, w.To}

	if kind == KindSameDay {
		args = append(args, now)
		fmt.Fprintf(&sb, `
			AND ($%d::timestamptz + make_interval(mins => c.utc_offset_minutes))::date = s.slot_date`, len(args))
	}
	if !opts.IncludeFlagged {
		fmt.Fprintf(&sb, `
			AND NOT a.%s_sent AND NOT a.%s_failed`, prefix, prefix)
	}
	if opts.AppointmentID != uuid.Nil {
		args = append(args, opts.AppointmentID)
		fmt.Fprintf(&sb, `
			AND a.id = $%d`, len(args))
	}
	fmt.Fprintf(&sb, `
		ORDER BY starts_at
		LIMIT %d`, s.batchLimit)

	rows, err := s.db.Query(ctx, sb.String(), args...)
	if err != nil {
		return nil, fmt.Errorf("reminder: list due %s: %w", kind, err)
	}
	defer rows.Close()

	var out []Candidate
	for rows.Next() {
		var c Candidate
		err := rows.Scan(&c.AppointmentID, &c.Status, &c.SlotDate, &c.StartTime, &c.StartsAt,
			&c.PatientID, &c.PatientName, &c.Phone, &c.Language, &c.Channel,
			&c.ClinicID, &c.ClinicName, &c.UTCOffsetMinutes, &c.DefaultLanguage)
		if err != nil {
			return nil, fmt.Errorf("reminder: scan candidate: %w", err)
		}
		out = append(out, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("reminder: rows: %w", err)
	}
	return out, nil
}

// MarkSent records a delivered reminder: sets the kind's sent flag and
// timestamp, clears any earlier failure, and moves a BOOKED/CONFIRMED
// appointment onto the REMINDER_SENT branch. Terminal statuses keep their
// status; only the flags change.
func (s *Store) MarkSent(ctx context.Context, id uuid.UUID, kind Kind, at time.Time) error {
	prefix, ok := kindFlagPrefix[kind]
	if !ok {
		return fmt.Errorf("reminder: unknown kind %q", kind)
	}
	query := fmt.Sprintf(`
		UPDATE appointments
		SET %[1]s_sent = TRUE,
			%[1]s_sent_at = $2,
			%[1]s_failed = FALSE,
			%[1]s_error = '',
			status = CASE WHEN status IN ('BOOKED', 'CONFIRMED') THEN 'REMINDER_SENT' ELSE status END,
			updated_at = $2
		WHERE id = $1`, prefix)
	tag, err := s.db.Exec(ctx, query, id, at)
	if err != nil {
		return fmt.Errorf("reminder: mark sent: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("reminder: mark sent: appointment %s not found", id)
	}
	return nil
}

// MarkFailed records a permanently failed reminder with its error text.
// The failure flag excludes the appointment from future runs of this kind
// unless an operator forces a resend.
func (s *Store) MarkFailed(ctx context.Context, id uuid.UUID, kind Kind, sendErr string, at time.Time) error {
	prefix, ok := kindFlagPrefix[kind]
	if !ok {
		return fmt.Errorf("reminder: unknown kind %q", kind)
	}
	query := fmt.Sprintf(`
		UPDATE appointments
		SET %[1]s_failed = TRUE,
			%[1]s_error = $2,
			updated_at = $3
		WHERE id = $1`, prefix)
	tag, err := s.db.Exec(ctx, query, id, sendErr, at)
	if err != nil {
		return fmt.Errorf("reminder: mark failed: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("reminder: mark failed: appointment %s not found", id)
	}
	return nil
}
