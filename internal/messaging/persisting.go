package messaging

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/caredesk/clinic-scheduling/pkg/logging"
)

// PersistingSender wraps a Sender to record every outbound message in the
// delivery log. Log failures never block delivery.
type PersistingSender struct {
	inner  Sender
	store  *Store
	logger *logging.Logger
}

// WrapWithPersistence wraps a sender to persist outbound messages.
// If store is nil, returns the original sender unchanged.
func WrapWithPersistence(sender Sender, store *Store, logger *logging.Logger) Sender {
	if store == nil {
		return sender
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &PersistingSender{
		inner:  sender,
		store:  store,
		logger: logger.Named("messaging.persistence"),
	}
}

var _ Sender = (*PersistingSender)(nil)

// Send records the message as pending, delegates to the inner sender, then
// settles the log row as sent or failed.
func (p *PersistingSender) Send(ctx context.Context, req SendRequest) (*SendResult, error) {
	rec := OutboundMessage{
		ClinicID:       nilIfZero(req.ClinicID),
		AppointmentID:  nilIfZero(req.AppointmentID),
		To:             req.To,
		Channel:        req.Channel,
		Kind:           req.Kind,
		Body:           req.Body,
		ProviderStatus: "pending",
	}
	msgID, err := p.store.Insert(ctx, rec)
	if err != nil {
		p.logger.Warn("failed to persist outbound message", "error", err, "to", req.To, "kind", req.Kind)
	}

	result, sendErr := p.inner.Send(ctx, req)

	if msgID != uuid.Nil {
		now := time.Now().UTC()
		if sendErr != nil {
			if err := p.store.UpdateStatusByID(ctx, msgID, "failed", sendErr.Error(), nil, &now); err != nil {
				p.logger.Warn("failed to mark message failed", "error", err, "msg_id", msgID)
			}
		} else {
			status := "sent"
			if result != nil && result.ProviderStatus != "" {
				status = result.ProviderStatus
			}
			if err := p.store.UpdateStatusByID(ctx, msgID, status, "", &now, nil); err != nil {
				p.logger.Warn("failed to mark message sent", "error", err, "msg_id", msgID)
			}
			if result != nil {
				if err := p.store.UpdateProviderID(ctx, msgID, result.ProviderMessageID); err != nil {
					p.logger.Warn("failed to store provider message id", "error", err, "msg_id", msgID)
				}
			}
		}
	}

	return result, sendErr
}

func nilIfZero(id uuid.UUID) *uuid.UUID {
	if id == uuid.Nil {
		return nil
	}
	return &id
}
