package messaging

import (
	"crypto/hmac"
	"crypto/sha1"
	"encoding/base64"
	"net/http"
	"net/url"
	"sort"
	"strings"
	"time"

	"github.com/caredesk/clinic-scheduling/pkg/logging"
)

// ValidateTwilioSignature validates that a request came from Twilio.
func ValidateTwilioSignature(r *http.Request, authToken, webhookURL string) bool {
	signature := r.Header.Get("X-Twilio-Signature")
	if signature == "" {
		return false
	}
	if err := r.ParseForm(); err != nil {
		return false
	}
	payload := buildSignaturePayload(webhookURL, r.PostForm)
	expected := computeSignature(payload, authToken)
	return hmac.Equal([]byte(signature), []byte(expected))
}

// buildSignaturePayload concatenates the URL with the sorted form parameters,
// per Twilio's signing scheme.
func buildSignaturePayload(url string, params url.Values) string {
	keys := make([]string, 0, len(params))
	for k := range params {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var payload strings.Builder
	payload.WriteString(url)
	for _, key := range keys {
		for _, value := range params[key] {
			payload.WriteString(key)
			payload.WriteString(value)
		}
	}
	return payload.String()
}

func computeSignature(data, key string) string {
	h := hmac.New(sha1.New, []byte(key))
	h.Write([]byte(data))
	return base64.StdEncoding.EncodeToString(h.Sum(nil))
}

// StatusWebhookHandler applies Twilio delivery-status callbacks to the
// delivery log. Appointment state is never touched from here.
type StatusWebhookHandler struct {
	store      *Store
	authToken  string
	webhookURL string
	logger     *logging.Logger
}

// NewStatusWebhookHandler builds the handler. Signature validation is skipped
// when authToken or webhookURL is empty.
func NewStatusWebhookHandler(store *Store, authToken, webhookURL string, logger *logging.Logger) *StatusWebhookHandler {
	if logger == nil {
		logger = logging.Default()
	}
	return &StatusWebhookHandler{
		store:      store,
		authToken:  authToken,
		webhookURL: webhookURL,
		logger:     logger.Named("messaging.status_webhook"),
	}
}

// ServeHTTP handles POST callbacks with MessageSid/MessageStatus form fields.
func (h *StatusWebhookHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if h.authToken != "" && h.webhookURL != "" && !ValidateTwilioSignature(r, h.authToken, h.webhookURL) {
		h.logger.Warn("rejected status callback with bad signature")
		http.Error(w, "invalid signature", http.StatusForbidden)
		return
	}
	if err := r.ParseForm(); err != nil {
		http.Error(w, "bad form", http.StatusBadRequest)
		return
	}

	sid := strings.TrimSpace(r.FormValue("MessageSid"))
	status := strings.ToLower(strings.TrimSpace(r.FormValue("MessageStatus")))
	errorDetail := strings.TrimSpace(r.FormValue("ErrorMessage"))
	if sid == "" || status == "" {
		http.Error(w, "MessageSid and MessageStatus required", http.StatusBadRequest)
		return
	}

	now := time.Now().UTC()
	var deliveredAt, failedAt *time.Time
	switch status {
	case "delivered", "read":
		deliveredAt = &now
	case "failed", "undelivered":
		failedAt = &now
	}

	if h.store == nil {
		w.WriteHeader(http.StatusNoContent)
		return
	}
	matched, err := h.store.UpdateStatusByProviderID(r.Context(), sid, status, errorDetail, deliveredAt, failedAt)
	if err != nil {
		h.logger.Error("failed to apply status callback", "error", err, "provider_message_id", sid)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	if matched == 0 {
		h.logger.Warn("status callback for unknown message", "provider_message_id", sid, "status", status)
	} else {
		h.logger.Info("delivery status updated", "provider_message_id", sid, "status", status)
	}
	w.WriteHeader(http.StatusNoContent)
}
