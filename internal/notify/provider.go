package notify

import (
	"context"
	"strings"

	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/sesv2"

	"github.com/caredesk/clinic-scheduling/pkg/logging"
)

// Email provider names accepted by EMAIL_PROVIDER.
const (
	EmailProviderAuto     = "auto"
	EmailProviderSendGrid = "sendgrid"
	EmailProviderSES      = "ses"
	EmailProviderStub     = "stub"
)

// EmailSelectionConfig carries the knobs for choosing an email provider.
type EmailSelectionConfig struct {
	Preference string
	FromName   string

	SendGridAPIKey    string
	SendGridFromEmail string

	SESFromEmail string
	AWSRegion    string
}

// BuildEmailSender instantiates an EmailSender based on the preferred
// provider. It returns the sender, the provider that was selected, and a
// reason when the preference could not be honored. Auto prefers SendGrid,
// falls back to SES, and lands on the stub when neither is configured.
func BuildEmailSender(ctx context.Context, cfg EmailSelectionConfig, logger *logging.Logger) (EmailSender, string, string) {
	if logger == nil {
		logger = logging.Default()
	}
	preference := strings.ToLower(strings.TrimSpace(cfg.Preference))
	if preference == "" {
		preference = EmailProviderAuto
	}

	switch preference {
	case EmailProviderStub:
		return NewStubEmailSender(logger), EmailProviderStub, ""
	case EmailProviderSendGrid:
		if cfg.SendGridAPIKey == "" {
			return nil, "", "SENDGRID_API_KEY missing"
		}
		return buildSendGrid(cfg, logger), EmailProviderSendGrid, ""
	case EmailProviderSES:
		sender, reason := buildSES(ctx, cfg, logger)
		if sender == nil {
			return nil, "", reason
		}
		return sender, EmailProviderSES, ""
	default:
		if cfg.SendGridAPIKey != "" {
			return buildSendGrid(cfg, logger), EmailProviderSendGrid, ""
		}
		if sender, _ := buildSES(ctx, cfg, logger); sender != nil {
			return sender, EmailProviderSES, ""
		}
		return NewStubEmailSender(logger), EmailProviderStub, "no email provider configured"
	}
}

func buildSendGrid(cfg EmailSelectionConfig, logger *logging.Logger) *SendGridSender {
	return NewSendGridSender(SendGridConfig{
		APIKey:    cfg.SendGridAPIKey,
		FromEmail: cfg.SendGridFromEmail,
		FromName:  cfg.FromName,
	}, logger)
}

func buildSES(ctx context.Context, cfg EmailSelectionConfig, logger *logging.Logger) (*SESSender, string) {
	if cfg.SESFromEmail == "" {
		return nil, "SES_FROM_EMAIL missing"
	}
	var opts []func(*awsconfig.LoadOptions) error
	if cfg.AWSRegion != "" {
		opts = append(opts, awsconfig.WithRegion(cfg.AWSRegion))
	}
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, "aws config load failed: " + err.Error()
	}
	client := sesv2.NewFromConfig(awsCfg)
	return NewSESSender(client, SESConfig{FromEmail: cfg.SESFromEmail, FromName: cfg.FromName}, logger), ""
}
