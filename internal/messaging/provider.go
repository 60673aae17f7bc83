package messaging

import (
	"strings"

	"github.com/caredesk/clinic-scheduling/pkg/logging"
)

const (
	// ProviderAuto uses Twilio when credentials exist, else the log sender.
	ProviderAuto = "auto"
	// ProviderTwilio requires Twilio credentials.
	ProviderTwilio = "twilio"
	// ProviderLog forces the log-only sender.
	ProviderLog = "log"
)

// ProviderSelectionConfig captures the credentials required to build senders.
type ProviderSelectionConfig struct {
	Preference         string
	TwilioAccountSID   string
	TwilioAuthToken    string
	TwilioSMSFrom      string
	TwilioWhatsAppFrom string
}

// BuildSender instantiates a Sender based on the preferred provider. It
// returns the sender, the provider that was selected, and a reason when the
// preference could not be honored.
func BuildSender(cfg ProviderSelectionConfig, logger *logging.Logger) (Sender, string, string) {
	if logger == nil {
		logger = logging.Default()
	}
	preference := strings.ToLower(strings.TrimSpace(cfg.Preference))
	if preference == "" {
		preference = ProviderAuto
	}

	var missing []string
	if cfg.TwilioAccountSID == "" {
		missing = append(missing, "TWILIO_ACCOUNT_SID missing")
	}
	if cfg.TwilioAuthToken == "" {
		missing = append(missing, "TWILIO_AUTH_TOKEN missing")
	}
	twilioReady := len(missing) == 0

	switch preference {
	case ProviderLog:
		return NewLogSender(logger), ProviderLog, ""
	case ProviderTwilio:
		if twilioReady {
			return NewTwilioSender(cfg.TwilioAccountSID, cfg.TwilioAuthToken, cfg.TwilioSMSFrom, cfg.TwilioWhatsAppFrom, logger), ProviderTwilio, ""
		}
		return nil, "", strings.Join(missing, ", ")
	default:
		if twilioReady {
			return NewTwilioSender(cfg.TwilioAccountSID, cfg.TwilioAuthToken, cfg.TwilioSMSFrom, cfg.TwilioWhatsAppFrom, logger), ProviderTwilio, ""
		}
		return NewLogSender(logger), ProviderLog, strings.Join(missing, ", ")
	}
}
