package logentry

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFormatParseRoundTrip(t *testing.T) {
	ts := time.Date(2026, 3, 14, 9, 26, 53, 0, time.UTC)
	in := Entry{
		Timestamp:  ts,
		MessageID:  "msg_abc123",
		TemplateID: "email_2",
		Status:     StatusSent,
		Subject:    "Quick question about your channel",
		HTML:       "<p>Hi Alex,</p><p>Loved the latest video.</p>",
	}

	out, err := Parse(in.Format())
	require.NoError(t, err)
	assert.Equal(t, in, out)
}

func TestParseMinimalEntry(t *testing.T) {
	out, err := Parse("2026-03-14T09:26:53Z | msg_1 | email_1 | FAILED")
	require.NoError(t, err)
	assert.Equal(t, StatusFailed, out.Status)
	assert.Equal(t, "msg_1", out.MessageID)
	assert.Empty(t, out.Subject)
	assert.Empty(t, out.HTML)
}

func TestParseHTMLAbsorbsSeparators(t *testing.T) {
	// An HTML body containing the separator must not be split into bogus
	// trailing fields.
	in := Entry{
		Timestamp:  time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC),
		MessageID:  "msg_2",
		TemplateID: "email_1",
		Status:     StatusSent,
		HTML:       "<p>a | b</p> | <p>c</p>",
	}
	out, err := Parse(in.Format())
	require.NoError(t, err)
	assert.Equal(t, in.HTML, out.HTML)
}

func TestParseRejectsShortAndBadTimestamp(t *testing.T) {
	_, err := Parse("just some note a human typed")
	assert.Error(t, err)

	_, err = Parse("not-a-time | msg | email_1 | SENT")
	assert.Error(t, err)
}

func TestFormatNormalizesToUTC(t *testing.T) {
	loc := time.FixedZone("PST", -8*3600)
	e := Entry{
		Timestamp:  time.Date(2026, 3, 14, 1, 0, 0, 0, loc),
		MessageID:  "msg_3",
		TemplateID: "email_1",
		Status:     StatusSent,
	}
	out, err := Parse(e.Format())
	assert.NoError(t, err)
	assert.Equal(t, "2026-03-14T09:00:00Z", out.Timestamp.Format(time.RFC3339))
}
