// Package patient owns patient identity records. A patient is identified by
// a canonical E.164 phone number and is created on first lookup; there is no
// separate registration step.
package patient

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/caredesk/clinic-scheduling/internal/messaging"
)

var (
	// ErrNotFound is returned when a patient does not exist.
	ErrNotFound = errors.New("patient: not found")
	// ErrInvalidPhone is returned when a phone number cannot be canonicalized.
	ErrInvalidPhone = errors.New("patient: invalid phone number")
)

// Patient is one patient identity.
type Patient struct {
	ID               uuid.UUID         `json:"id"`
	Phone            string            `json:"phone"`
	Name             string            `json:"name"`
	Language         string            `json:"language"`
	PreferredChannel messaging.Channel `json:"preferred_channel"`
	CreatedAt        time.Time         `json:"created_at"`
	UpdatedAt        time.Time         `json:"updated_at"`
}

// Querier is the subset of pgxpool.Pool the store needs.
type Querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Store persists patients in Postgres.
type Store struct {
	db Querier
}

// NewStore creates a patient store.
func NewStore(db Querier) *Store {
	return &Store{db: db}
}

// CanonicalPhone normalizes a raw phone number to E.164 or fails with
// ErrInvalidPhone.
func CanonicalPhone(raw string) (string, error) {
	normalized := messaging.NormalizeE164(raw)
	// "+" plus 8..15 digits per E.164.
	if len(normalized) < 9 || len(normalized) > 16 {
		return "", ErrInvalidPhone
	}
	return normalized, nil
}

const patientColumns = `id, phone, name, language, preferred_channel, created_at, updated_at`

// FindOrCreateByPhone returns the patient for a phone number, creating the
// record on first contact. An existing patient's name and preferences are
// never overwritten by this path.
func (s *Store) FindOrCreateByPhone(ctx context.Context, phone, name string) (*Patient, error) {
	canonical, err := CanonicalPhone(phone)
	if err != nil {
		return nil, err
	}
	// The no-op conflict update makes RETURNING yield the existing row.
	query := `
		INSERT INTO patients (id, phone, name, language, preferred_channel)
		VALUES ($1, $2, $3, 'en', 'sms')
		ON CONFLICT (phone) DO UPDATE SET phone = EXCLUDED.phone
		RETURNING ` + patientColumns
	var p Patient
	if err := s.db.QueryRow(ctx, query, uuid.New(), canonical, name).
		Scan(&p.ID, &p.Phone, &p.Name, &p.Language, &p.PreferredChannel, &p.CreatedAt, &p.UpdatedAt); err != nil {
		return nil, fmt.Errorf("patient: find or create: %w", err)
	}
	return &p, nil
}

// Get loads one patient by id.
func (s *Store) Get(ctx context.Context, id uuid.UUID) (*Patient, error) {
	var p Patient
	err := s.db.QueryRow(ctx, `SELECT `+patientColumns+` FROM patients WHERE id = $1`, id).
		Scan(&p.ID, &p.Phone, &p.Name, &p.Language, &p.PreferredChannel, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("patient: get: %w", err)
	}
	return &p, nil
}

// GetByPhone loads one patient by canonical phone number.
func (s *Store) GetByPhone(ctx context.Context, phone string) (*Patient, error) {
	canonical, err := CanonicalPhone(phone)
	if err != nil {
		return nil, err
	}
	var p Patient
	err = s.db.QueryRow(ctx, `SELECT `+patientColumns+` FROM patients WHERE phone = $1`, canonical).
		Scan(&p.ID, &p.Phone, &p.Name, &p.Language, &p.PreferredChannel, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("patient: get by phone: %w", err)
	}
	return &p, nil
}

// UpdatePreferences sets a patient's language and notification channel.
func (s *Store) UpdatePreferences(ctx context.Context, id uuid.UUID, language string, channel messaging.Channel) error {
	tag, err := s.db.Exec(ctx, `
		UPDATE patients
		SET language = $2, preferred_channel = $3, updated_at = now()
		WHERE id = $1`, id, language, channel)
	if err != nil {
		return fmt.Errorf("patient: update preferences: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}
