package worker

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"creator-outreach/internal/logentry"
	"creator-outreach/internal/mailer"
	"creator-outreach/internal/models"
)

func sendJob(payload map[string]any) models.Job {
	return models.Job{ID: "job-s", Type: models.TypeSend, Payload: payload}
}

func TestSendHappyPath(t *testing.T) {
	rows := newFakeRowStore(models.ContactRow{ID: 3, Fields: map[string]string{"email_2": ""}})
	sender := &fakeSender{result: sentResult()}
	h := NewSendHandler(rows, sender, "outreach-bot", nil)

	require.NoError(t, h.Handle(context.Background(), sendJob(map[string]any{
		"row_id":      3,
		"to":          "sam@example.com",
		"subject":     "Checking in",
		"body_html":   "<p>Hi Sam</p>",
		"template_id": "email_2",
		"slot":        "email_2",
	})))

	assert.Equal(t, "sam@example.com", sender.to)
	got := rows.rows[3]
	entry, err := logentry.Parse(got.Field("email_2"))
	require.NoError(t, err)
	assert.Equal(t, "Checking in", entry.Subject)
	assert.Equal(t, "email_2", entry.TemplateID)
	assert.Equal(t, "true", got.Field(models.ColSent))
	assert.Equal(t, "outreach-bot", got.Field(models.ColSentBy))
}

func TestSendInvalidRecipient(t *testing.T) {
	sender := &fakeSender{}
	h := NewSendHandler(newFakeRowStore(), sender, "bot", nil)

	err := h.Handle(context.Background(), sendJob(map[string]any{
		"row_id": 1,
		"to":     "bogus",
		"slot":   "email_1",
	}))
	assert.True(t, errors.Is(err, mailer.ErrInvalidRecipient))
	assert.Equal(t, 0, sender.calls)
}

func TestSendMissingSlot(t *testing.T) {
	h := NewSendHandler(newFakeRowStore(), &fakeSender{}, "bot", nil)
	err := h.Handle(context.Background(), sendJob(map[string]any{
		"row_id": 1,
		"to":     "sam@example.com",
	}))
	assert.ErrorContains(t, err, "slot is required")
}
