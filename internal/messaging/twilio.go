package messaging

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/caredesk/clinic-scheduling/pkg/logging"
)

var twilioTracer = otel.Tracer("caredesk.internal.messaging.twilio")

// TwilioSender posts messages through Twilio's REST API. WhatsApp traffic
// uses the same endpoint with "whatsapp:"-prefixed addresses.
type TwilioSender struct {
	accountSID   string
	authToken    string
	smsFrom      string
	whatsAppFrom string
	httpClient   *http.Client
	baseURL      string
	logger       *logging.Logger
}

// NewTwilioSender builds a sender with sane defaults.
func NewTwilioSender(accountSID, authToken, smsFrom, whatsAppFrom string, logger *logging.Logger) *TwilioSender {
	if logger == nil {
		logger = logging.Default()
	}
	return &TwilioSender{
		accountSID:   accountSID,
		authToken:    authToken,
		smsFrom:      smsFrom,
		whatsAppFrom: whatsAppFrom,
		httpClient: &http.Client{
			Timeout: 10 * time.Second,
		},
		baseURL: "https://api.twilio.com",
		logger:  logger,
	}
}

// WithBaseURL overrides the API host. Used by tests.
func (s *TwilioSender) WithBaseURL(base string) *TwilioSender {
	s.baseURL = strings.TrimSuffix(base, "/")
	return s
}

var _ Sender = (*TwilioSender)(nil)

// Send dispatches one message in a single attempt.
func (s *TwilioSender) Send(ctx context.Context, req SendRequest) (*SendResult, error) {
	if s.accountSID == "" || s.authToken == "" {
		return nil, errors.New("messaging: twilio credentials missing")
	}
	if err := validateRequest(req); err != nil {
		return nil, err
	}

	to := req.To
	from := s.smsFrom
	if req.Channel == ChannelWhatsApp {
		to = "whatsapp:" + strings.TrimPrefix(to, "whatsapp:")
		from = s.whatsAppFrom
		if !strings.HasPrefix(from, "whatsapp:") {
			from = "whatsapp:" + from
		}
	}
	if strings.TrimPrefix(from, "whatsapp:") == "" {
		return nil, errors.New("messaging: from number not configured")
	}

	ctx, span := twilioTracer.Start(ctx, "messaging.twilio.send")
	defer span.End()
	span.SetAttributes(
		attribute.String("caredesk.channel", string(req.Channel)),
		attribute.String("caredesk.kind", req.Kind),
	)

	payload := url.Values{}
	payload.Set("To", to)
	payload.Set("From", from)
	payload.Set("Body", req.Body)

	endpoint := fmt.Sprintf("%s/2010-04-01/Accounts/%s/Messages.json", s.baseURL, s.accountSID)
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(payload.Encode()))
	if err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("messaging: build twilio request: %w", err)
	}
	httpReq.SetBasicAuth(s.accountSID, s.authToken)
	httpReq.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := s.httpClient.Do(httpReq)
	if err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("messaging: twilio send: %w", err)
	}
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
	resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		err := fmt.Errorf("messaging: twilio send failed: %s", formatTwilioError(resp.StatusCode, body))
		span.RecordError(err)
		return nil, err
	}

	result := &SendResult{}
	if len(body) > 0 {
		var parsed struct {
			SID    string `json:"sid"`
			Status string `json:"status"`
		}
		if err := json.Unmarshal(body, &parsed); err == nil {
			result.ProviderMessageID = parsed.SID
			result.ProviderStatus = parsed.Status
		}
	}
	s.logger.Info("twilio message sent", "channel", req.Channel, "kind", req.Kind, "provider_message_id", result.ProviderMessageID)
	return result, nil
}

type twilioAPIError struct {
	Code     int    `json:"code"`
	Message  string `json:"message"`
	MoreInfo string `json:"more_info"`
	Status   int    `json:"status"`
}

func formatTwilioError(status int, body []byte) string {
	body = []byte(strings.TrimSpace(string(body)))
	if len(body) == 0 {
		return fmt.Sprintf("status %d", status)
	}
	var parsed twilioAPIError
	if err := json.Unmarshal(body, &parsed); err == nil && parsed.Message != "" {
		if parsed.Code != 0 {
			return fmt.Sprintf("status %d code %d: %s", status, parsed.Code, parsed.Message)
		}
		return fmt.Sprintf("status %d: %s", status, parsed.Message)
	}
	// Fallback: return raw body (truncated by the read limit).
	return fmt.Sprintf("status %d: %s", status, string(body))
}
