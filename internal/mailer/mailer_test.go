package mailer

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestValidateRecipient(t *testing.T) {
	cases := []struct {
		addr string
		want bool
	}{
		{"alex@example.com", true},
		{"Alex <alex@example.com>", true},
		{"", false},
		{"   ", false},
		{"not-an-address", false},
		{"a@", false},
		{"alex@example.com, sam@example.com", false},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, ValidateRecipient(tc.addr), "addr %q", tc.addr)
	}
}

func TestNewSMTPSenderConfigErrors(t *testing.T) {
	_, err := NewSMTPSender(SMTPConfig{From: "bot@example.com"}, nil)
	assert.ErrorContains(t, err, "host")

	_, err = NewSMTPSender(SMTPConfig{Host: "smtp.example.com"}, nil)
	assert.ErrorContains(t, err, "from")
}
