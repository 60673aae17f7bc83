package appointment

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// Querier is the subset of pgxpool.Pool (and pgx.Tx) the store needs.
type Querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Store persists appointments in Postgres.
type Store struct {
	db Querier
}

// NewStore creates an appointment store.
func NewStore(db Querier) *Store {
	return &Store{db: db}
}

func (s *Store) querier(q Querier) Querier {
	if q == nil {
		return s.db
	}
	return q
}

const apptColumns = `id, slot_id, patient_id, clinic_id, status, appointment_type, notes,
	reminder_24h_sent, reminder_24h_sent_at, reminder_24h_failed, reminder_24h_error,
	reminder_same_day_sent, reminder_same_day_sent_at, reminder_same_day_failed, reminder_same_day_error,
	cancelled_at, cancel_reason, completed_at, created_at, updated_at`

func scanAppointment(row pgx.Row) (*Appointment, error) {
	var a Appointment
	err := row.Scan(&a.ID, &a.SlotID, &a.PatientID, &a.ClinicID, &a.Status, &a.Type, &a.Notes,
		&a.Reminder24h.Sent, &a.Reminder24h.SentAt, &a.Reminder24h.Failed, &a.Reminder24h.Error,
		&a.ReminderSameDay.Sent, &a.ReminderSameDay.SentAt, &a.ReminderSameDay.Failed, &a.ReminderSameDay.Error,
		&a.CancelledAt, &a.CancelReason, &a.CompletedAt, &a.CreatedAt, &a.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &a, nil
}

// Insert writes a new appointment row. Run it inside the booking transaction
// so it commits together with the slot flip.
func (s *Store) Insert(ctx context.Context, q Querier, a *Appointment) error {
	if a.ID == uuid.Nil {
		a.ID = uuid.New()
	}
	now := time.Now().UTC()
	a.CreatedAt = now
	a.UpdatedAt = now
	_, err := s.querier(q).Exec(ctx, `
		INSERT INTO appointments (id, slot_id, patient_id, clinic_id, status, appointment_type, notes, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		a.ID, a.SlotID, a.PatientID, a.ClinicID, a.Status, a.Type, a.Notes, a.CreatedAt, a.UpdatedAt)
	if err != nil {
		return fmt.Errorf("appointment: insert: %w", err)
	}
	return nil
}

// Get loads one appointment by id.
func (s *Store) Get(ctx context.Context, q Querier, id uuid.UUID) (*Appointment, error) {
	a, err := scanAppointment(s.querier(q).QueryRow(ctx,
		`SELECT `+apptColumns+` FROM appointments WHERE id = $1`, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("appointment: get: %w", err)
	}
	return a, nil
}

// GetOwned loads an appointment only when it belongs to the given patient.
// A non-owner sees ErrNotFound, not a permission error, so appointment ids
// cannot be probed.
func (s *Store) GetOwned(ctx context.Context, q Querier, id, patientID uuid.UUID) (*Appointment, error) {
	a, err := scanAppointment(s.querier(q).QueryRow(ctx,
		`SELECT `+apptColumns+` FROM appointments WHERE id = $1 AND patient_id = $2`, id, patientID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("appointment: get owned: %w", err)
	}
	return a, nil
}

// ListForPatient returns a patient's appointments, newest slot first.
func (s *Store) ListForPatient(ctx context.Context, q Querier, patientID uuid.UUID) ([]Appointment, error) {
	rows, err := s.querier(q).Query(ctx, `
		SELECT a.id, a.slot_id, a.patient_id, a.clinic_id, a.status, a.appointment_type, a.notes,
			a.reminder_24h_sent, a.reminder_24h_sent_at, a.reminder_24h_failed, a.reminder_24h_error,
			a.reminder_same_day_sent, a.reminder_same_day_sent_at, a.reminder_same_day_failed, a.reminder_same_day_error,
			a.cancelled_at, a.cancel_reason, a.completed_at, a.created_at, a.updated_at
		FROM appointments a
		JOIN slots s ON s.id = a.slot_id
		WHERE a.patient_id = $1
		ORDER BY s.slot_date DESC, s.start_time DESC`, patientID)
	if err != nil {
		return nil, fmt.Errorf("appointment: list for patient: %w", err)
	}
	defer rows.Close()
	return collectAppointments(rows)
}

// ListForClinicDay returns a clinic's appointments on one calendar date in
// slot order. Staff check-in views read from this.
func (s *Store) ListForClinicDay(ctx context.Context, q Querier, clinicID uuid.UUID, date time.Time) ([]Appointment, error) {
	rows, err := s.querier(q).Query(ctx, `
		SELECT a.id, a.slot_id, a.patient_id, a.clinic_id, a.status, a.appointment_type, a.notes,
			a.reminder_24h_sent, a.reminder_24h_sent_at, a.reminder_24h_failed, a.reminder_24h_error,
			a.reminder_same_day_sent, a.reminder_same_day_sent_at, a.reminder_same_day_failed, a.reminder_same_day_error,
			a.cancelled_at, a.cancel_reason, a.completed_at, a.created_at, a.updated_at
		FROM appointments a
		JOIN slots s ON s.id = a.slot_id
		WHERE a.clinic_id = $1 AND s.slot_date = $2
		ORDER BY s.start_time`, clinicID, date)
	if err != nil {
		return nil, fmt.Errorf("appointment: list for clinic day: %w", err)
	}
	defer rows.Close()
	return collectAppointments(rows)
}

func collectAppointments(rows pgx.Rows) ([]Appointment, error) {
	var out []Appointment
	for rows.Next() {
		a, err := scanAppointment(rows)
		if err != nil {
			return nil, fmt.Errorf("appointment: scan: %w", err)
		}
		out = append(out, *a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("appointment: rows: %w", err)
	}
	return out, nil
}

// HasActiveOnDate reports whether the patient already holds a BOOKED or
// CONFIRMED appointment at the clinic on the given date. The waitlist
// matcher uses this to expire stale entries.
func (s *Store) HasActiveOnDate(ctx context.Context, q Querier, patientID, clinicID uuid.UUID, date time.Time) (bool, error) {
	var one int
	err := s.querier(q).QueryRow(ctx, `
		SELECT 1
		FROM appointments a
		JOIN slots s ON s.id = a.slot_id
		WHERE a.patient_id = $1 AND a.clinic_id = $2 AND s.slot_date = $3
			AND a.status IN ('BOOKED', 'CONFIRMED')
		LIMIT 1`, patientID, clinicID, date).Scan(&one)
	if errors.Is(err, pgx.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("appointment: has active on date: %w", err)
	}
	return true, nil
}

// UpdateStatus moves an appointment between statuses. The write is
// conditioned on the expected current status; false means a concurrent
// writer got there first.
func (s *Store) UpdateStatus(ctx context.Context, q Querier, id uuid.UUID, from, to Status) (bool, error) {
	tag, err := s.querier(q).Exec(ctx, `
		UPDATE appointments SET status = $3, updated_at = now()
		WHERE id = $1 AND status = $2`, id, from, to)
	if err != nil {
		return false, fmt.Errorf("appointment: update status: %w", err)
	}
	return tag.RowsAffected() == 1, nil
}

// MarkCancelled finalizes a cancellation with its metadata, conditioned on
// the expected current status.
func (s *Store) MarkCancelled(ctx context.Context, q Querier, id uuid.UUID, from Status, reason string, at time.Time) (bool, error) {
	tag, err := s.querier(q).Exec(ctx, `
		UPDATE appointments
		SET status = $3, cancelled_at = $4, cancel_reason = $5, updated_at = now()
		WHERE id = $1 AND status = $2`, id, from, StatusCancelled, at, reason)
	if err != nil {
		return false, fmt.Errorf("appointment: mark cancelled: %w", err)
	}
	return tag.RowsAffected() == 1, nil
}

// MarkCompleted finalizes a completion, conditioned on the expected current
// status.
func (s *Store) MarkCompleted(ctx context.Context, q Querier, id uuid.UUID, from Status, at time.Time) (bool, error) {
	tag, err := s.querier(q).Exec(ctx, `
		UPDATE appointments
		SET status = $3, completed_at = $4, updated_at = now()
		WHERE id = $1 AND status = $2`, id, from, StatusCompleted, at)
	if err != nil {
		return false, fmt.Errorf("appointment: mark completed: %w", err)
	}
	return tag.RowsAffected() == 1, nil
}
