// Package messaging sends patient-facing notifications over SMS and WhatsApp
// and keeps a delivery log of every outbound message. Appointment state never
// depends on delivery status; the log exists for operator visibility and for
// provider status callbacks.
package messaging

import "fmt"

// Channel selects the transport for an outbound message.
type Channel string

const (
	ChannelSMS      Channel = "sms"
	ChannelWhatsApp Channel = "whatsapp"
)

// ParseChannel validates a channel string, defaulting empty to SMS.
func ParseChannel(s string) (Channel, error) {
	switch Channel(s) {
	case ChannelSMS, "":
		return ChannelSMS, nil
	case ChannelWhatsApp:
		return ChannelWhatsApp, nil
	default:
		return "", fmt.Errorf("messaging: unknown channel %q", s)
	}
}
