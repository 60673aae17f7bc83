package messaging

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalizeE164(t *testing.T) {
	cases := []struct {
		in, want string
	}{
		{" +1 (555) 123-4567 ", "+15551234567"},
		{"5551234567", "+15551234567"},
		{"+447911123456", "+447911123456"},
		{"15551234567", "+15551234567"},
		{"abc", ""},
		{"", ""},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, NormalizeE164(tc.in), "NormalizeE164(%q)", tc.in)
	}
}

func TestParseChannel(t *testing.T) {
	ch, err := ParseChannel("")
	require.NoError(t, err)
	assert.Equal(t, ChannelSMS, ch, "empty channel defaults to sms")

	ch, err = ParseChannel("whatsapp")
	require.NoError(t, err)
	assert.Equal(t, ChannelWhatsApp, ch)

	_, err = ParseChannel("carrier-pigeon")
	assert.Error(t, err)
}
