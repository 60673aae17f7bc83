package messaging

import (
	"context"
	"fmt"
	"strings"
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

// Store persists the outbound delivery log in Postgres.
type Store struct {
	db Querier
}

// NewStore creates a messaging store. Returns nil when db is nil so callers
// can wire persistence optionally.
func NewStore(db Querier) *Store {
	if db == nil {
		return nil
	}
	return &Store{db: db}
}

// OutboundMessage is one row in the delivery log.
type OutboundMessage struct {
	ID                uuid.UUID  `json:"id"`
	ClinicID          *uuid.UUID `json:"clinic_id,omitempty"`
	AppointmentID     *uuid.UUID `json:"appointment_id,omitempty"`
	To                string     `json:"to"`
	Channel           Channel    `json:"channel"`
	Kind              string     `json:"kind"`
	Body              string     `json:"body"`
	ProviderMessageID string     `json:"provider_message_id,omitempty"`
	ProviderStatus    string     `json:"provider_status"`
	ErrorDetail       string     `json:"error_detail,omitempty"`
	SentAt            *time.Time `json:"sent_at,omitempty"`
	FailedAt          *time.Time `json:"failed_at,omitempty"`
	CreatedAt         time.Time  `json:"created_at"`
}

// Insert records an outbound message and returns its id.
func (s *Store) Insert(ctx context.Context, rec OutboundMessage) (uuid.UUID, error) {
	query := `
		INSERT INTO outbound_messages (
			clinic_id, appointment_id, to_e164, channel, kind, body,
			provider_message_id, provider_status, error_detail, sent_at, failed_at
		)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11)
		RETURNING id
	`
	var id uuid.UUID
	if err := s.db.QueryRow(ctx, query,
		rec.ClinicID, rec.AppointmentID, rec.To, rec.Channel, rec.Kind, rec.Body,
		rec.ProviderMessageID, rec.ProviderStatus, rec.ErrorDetail, rec.SentAt, rec.FailedAt,
	).Scan(&id); err != nil {
		return uuid.Nil, fmt.Errorf("messaging: insert message: %w", err)
	}
	return id, nil
}

// UpdateStatusByID updates a delivery log row by its own id. Nil timestamps
// leave the existing values in place.
func (s *Store) UpdateStatusByID(ctx context.Context, msgID uuid.UUID, status, errorDetail string, sentAt, failedAt *time.Time) error {
	query := `
		UPDATE outbound_messages
		SET provider_status = $2,
			error_detail = $3,
			sent_at = COALESCE($4, sent_at),
			failed_at = COALESCE($5, failed_at)
		WHERE id = $1
	`
	_, err := s.db.Exec(ctx, query, msgID, status, errorDetail, sentAt, failedAt)
	if err != nil {
		return fmt.Errorf("messaging: update message status: %w", err)
	}
	return nil
}

// UpdateProviderID stores the provider message id once the provider accepts
// the message.
func (s *Store) UpdateProviderID(ctx context.Context, msgID uuid.UUID, providerMessageID string) error {
	providerMessageID = strings.TrimSpace(providerMessageID)
	if providerMessageID == "" {
		return nil
	}
	_, err := s.db.Exec(ctx, `UPDATE outbound_messages SET provider_message_id = $2 WHERE id = $1`, msgID, providerMessageID)
	if err != nil {
		return fmt.Errorf("messaging: update provider message id: %w", err)
	}
	return nil
}

// UpdateStatusByProviderID applies a provider delivery callback. It touches
// only the delivery log, never appointment state. Returns the number of rows
// matched so callers can log unknown provider ids.
func (s *Store) UpdateStatusByProviderID(ctx context.Context, providerMessageID, status, errorDetail string, deliveredAt, failedAt *time.Time) (int64, error) {
	providerMessageID = strings.TrimSpace(providerMessageID)
	if providerMessageID == "" {
		return 0, nil
	}
	query := `
		UPDATE outbound_messages
		SET provider_status = $2,
			error_detail = CASE WHEN $3 <> '' THEN $3 ELSE error_detail END,
			sent_at = COALESCE($4, sent_at),
			failed_at = COALESCE($5, failed_at)
		WHERE provider_message_id = $1
	`
	tag, err := s.db.Exec(ctx, query, providerMessageID, status, errorDetail, deliveredAt, failedAt)
	if err != nil {
		return 0, fmt.Errorf("messaging: update status by provider id: %w", err)
	}
	return tag.RowsAffected(), nil
}

// ListForAppointment returns the delivery log for one appointment, newest
// first.
func (s *Store) ListForAppointment(ctx context.Context, appointmentID uuid.UUID) ([]OutboundMessage, error) {
	query := `
		SELECT id, clinic_id, appointment_id, to_e164, channel, kind, body,
			provider_message_id, provider_status, error_detail, sent_at, failed_at, created_at
		FROM outbound_messages
		WHERE appointment_id = $1
		ORDER BY created_at DESC
	`
	rows, err := s.db.Query(ctx, query, appointmentID)
	if err != nil {
		return nil, fmt.Errorf("messaging: list for appointment: %w", err)
	}
	defer rows.Close()

	var out []OutboundMessage
	for rows.Next() {
		var m OutboundMessage
		if err := rows.Scan(&m.ID, &m.ClinicID, &m.AppointmentID, &m.To, &m.Channel, &m.Kind, &m.Body,
			&m.ProviderMessageID, &m.ProviderStatus, &m.ErrorDetail, &m.SentAt, &m.FailedAt, &m.CreatedAt); err != nil {
			return nil, fmt.Errorf("messaging: scan message: %w", err)
		}
		out = append(out, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("messaging: list rows: %w", err)
	}
	return out, nil
}
