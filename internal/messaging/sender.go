package messaging

import (
	"context"
	"errors"
	"strings"

	"github.com/google/uuid"

	"github.com/caredesk/clinic-scheduling/pkg/logging"
)

// SendRequest describes one outbound notification.
type SendRequest struct {
	To      string
	Body    string
	Channel Channel
	// Kind tags the message purpose ("reminder_24h", "waitlist_fill", ...)
	// for the delivery log.
	Kind string
	// ClinicID and AppointmentID link the delivery log row back to the
	// scheduling records; either may be nil for ad-hoc sends.
	ClinicID      uuid.UUID
	AppointmentID uuid.UUID
}

// SendResult reports a successful provider handoff.
type SendResult struct {
	ProviderMessageID string
	ProviderStatus    string
}

// Sender dispatches a single message in one attempt. Retry policy belongs to
// the caller, which decides how many attempts a delivery is worth.
type Sender interface {
	Send(ctx context.Context, req SendRequest) (*SendResult, error)
}

func validateRequest(req SendRequest) error {
	if strings.TrimSpace(req.To) == "" {
		return errors.New("messaging: to required")
	}
	if strings.TrimSpace(req.Body) == "" {
		return errors.New("messaging: body required")
	}
	return nil
}

// LogSender logs messages instead of delivering them. Used in development and
// tests when no provider credentials are configured.
type LogSender struct {
	logger *logging.Logger
}

// NewLogSender builds a sender that only logs.
func NewLogSender(logger *logging.Logger) *LogSender {
	if logger == nil {
		logger = logging.Default()
	}
	return &LogSender{logger: logger.Named("messaging.log_sender")}
}

var _ Sender = (*LogSender)(nil)

// Send logs the message and reports success with a synthetic provider id.
func (s *LogSender) Send(ctx context.Context, req SendRequest) (*SendResult, error) {
	if err := validateRequest(req); err != nil {
		return nil, err
	}
	id := "log-" + uuid.NewString()
	s.logger.Info("message logged instead of sent",
		"to", req.To, "channel", req.Channel, "kind", req.Kind, "provider_message_id", id)
	return &SendResult{ProviderMessageID: id, ProviderStatus: "logged"}, nil
}
