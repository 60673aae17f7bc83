package clinic

import (
	"context"
	"encoding/json"
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

// ErrNotFound is returned when a clinic or staff member does not exist.
var ErrNotFound = errors.New("clinic: not found")

// Store persists clinics and staff in Postgres.
type Store struct {
	db Querier
}

// NewStore creates a clinic store.
func NewStore(db Querier) *Store {
	return &Store{db: db}
}

// Create inserts a clinic. A zero ID is assigned.
func (s *Store) Create(ctx context.Context, c *Clinic) error {
	if c.ID == uuid.Nil {
		c.ID = uuid.New()
	}
	if c.DefaultLanguage == "" {
		c.DefaultLanguage = "en"
	}
	hours, err := json.Marshal(c.Hours)
	if err != nil {
		return fmt.Errorf("clinic: marshal hours: %w", err)
	}
	now := time.Now().UTC()
	c.CreatedAt = now
	c.UpdatedAt = now
	_, err = s.db.Exec(ctx, `
		INSERT INTO clinics (id, name, phone, email, region, active, utc_offset_minutes, default_language, hours, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`,
		c.ID, c.Name, c.Phone, c.Email, c.Region, c.Active, c.UTCOffsetMinutes, c.DefaultLanguage, hours, c.CreatedAt, c.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("clinic: create: %w", err)
	}
	return nil
}

// Get loads one clinic by id.
func (s *Store) Get(ctx context.Context, id uuid.UUID) (*Clinic, error) {
	row := s.db.QueryRow(ctx, `
		SELECT id, name, phone, email, region, active, utc_offset_minutes, default_language, hours, created_at, updated_at
		FROM clinics WHERE id = $1`, id)
	c, err := scanClinic(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("clinic: get: %w", err)
	}
	return c, nil
}

// List returns active clinics ordered by name.
func (s *Store) List(ctx context.Context) ([]Clinic, error) {
	rows, err := s.db.Query(ctx, `
		SELECT id, name, phone, email, region, active, utc_offset_minutes, default_language, hours, created_at, updated_at
		FROM clinics WHERE active ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("clinic: list: %w", err)
	}
	defer rows.Close()

	var out []Clinic
	for rows.Next() {
		c, err := scanClinic(rows)
		if err != nil {
			return nil, fmt.Errorf("clinic: list scan: %w", err)
		}
		out = append(out, *c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("clinic: list rows: %w", err)
	}
	return out, nil
}

func scanClinic(row pgx.Row) (*Clinic, error) {
	var c Clinic
	var hours []byte
	if err := row.Scan(&c.ID, &c.Name, &c.Phone, &c.Email, &c.Region, &c.Active,
		&c.UTCOffsetMinutes, &c.DefaultLanguage, &hours, &c.CreatedAt, &c.UpdatedAt); err != nil {
		return nil, err
	}
	if len(hours) > 0 {
		if err := json.Unmarshal(hours, &c.Hours); err != nil {
			return nil, fmt.Errorf("unmarshal hours: %w", err)
		}
	}
	return &c, nil
}

// CreateStaff inserts a staff member. A zero ID is assigned.
func (s *Store) CreateStaff(ctx context.Context, st *Staff) error {
	if st.ID == uuid.Nil {
		st.ID = uuid.New()
	}
	st.CreatedAt = time.Now().UTC()
	_, err := s.db.Exec(ctx, `
		INSERT INTO staff (id, clinic_id, name, role, specialization, active, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		st.ID, st.ClinicID, st.Name, st.Role, st.Specialization, st.Active, st.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("clinic: create staff: %w", err)
	}
	return nil
}

// GetStaff loads one staff member by id.
func (s *Store) GetStaff(ctx context.Context, id uuid.UUID) (*Staff, error) {
	var st Staff
	err := s.db.QueryRow(ctx, `
		SELECT id, clinic_id, name, role, specialization, active, created_at
		FROM staff WHERE id = $1`, id).
		Scan(&st.ID, &st.ClinicID, &st.Name, &st.Role, &st.Specialization, &st.Active, &st.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("clinic: get staff: %w", err)
	}
	return &st, nil
}

// ListStaff returns a clinic's active staff ordered by name.
func (s *Store) ListStaff(ctx context.Context, clinicID uuid.UUID) ([]Staff, error) {
	rows, err := s.db.Query(ctx, `
		SELECT id, clinic_id, name, role, specialization, active, created_at
		FROM staff WHERE clinic_id = $1 AND active ORDER BY name`, clinicID)
	if err != nil {
		return nil, fmt.Errorf("clinic: list staff: %w", err)
	}
	defer rows.Close()

	var out []Staff
	for rows.Next() {
		var st Staff
		if err := rows.Scan(&st.ID, &st.ClinicID, &st.Name, &st.Role, &st.Specialization, &st.Active, &st.CreatedAt); err != nil {
			return nil, fmt.Errorf("clinic: list staff scan: %w", err)
		}
		out = append(out, st)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("clinic: list staff rows: %w", err)
	}
	return out, nil
}
