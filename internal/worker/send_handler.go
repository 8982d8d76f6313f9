package worker

import (
	"context"
	"encoding/json"
	"fmt"

	"go.uber.org/zap"

	"creator-outreach/internal/logentry"
	"creator-outreach/internal/mailer"
	"creator-outreach/internal/models"
	"creator-outreach/internal/rowstore"
	"creator-outreach/internal/telemetry"
)

// SendPayload is the contact:send job payload: an already-personalized email
// plus the slot it should be recorded into.
type SendPayload struct {
	RowID      int    `json:"row_id"`
	To         string `json:"to"`
	Subject    string `json:"subject"`
	BodyHTML   string `json:"body_html"`
	TemplateID string `json:"template_id"`
	Slot       string `json:"slot"`
}

// SendHandler delivers a pre-personalized email and writes the same outcome
// record as the outreach pipeline.
type SendHandler struct {
	rows    rowstore.RowStore
	sender  mailer.Sender
	botName string
	logger  *zap.Logger
}

func NewSendHandler(rows rowstore.RowStore, sender mailer.Sender, botName string, logger *zap.Logger) *SendHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SendHandler{rows: rows, sender: sender, botName: botName, logger: logger}
}

func (h *SendHandler) Handle(ctx context.Context, job models.Job) error {
	payload, err := decodeSendPayload(job)
	if err != nil {
		return err
	}

	if !mailer.ValidateRecipient(payload.To) {
		return fmt.Errorf("%w: %q", mailer.ErrInvalidRecipient, payload.To)
	}

	result, err := h.sender.Send(ctx, payload.To, payload.Subject, payload.BodyHTML)
	if err != nil {
		return err
	}

	entry := logentry.Entry{
		Timestamp:  result.Timestamp,
		MessageID:  result.MessageID,
		TemplateID: payload.TemplateID,
		Status:     result.Status,
		Subject:    payload.Subject,
		HTML:       payload.BodyHTML,
	}
	fields := map[string]string{
		payload.Slot:     entry.Format(),
		models.ColSentBy: h.botName,
	}
	if result.Status == logentry.StatusSent {
		fields[models.ColSent] = "true"
		telemetry.MailSent.Inc()
	} else {
		telemetry.MailFailed.Inc()
	}
	if err := h.rows.Update(ctx, payload.RowID, fields); err != nil {
		return fmt.Errorf("write outcome for row %d: %w", payload.RowID, err)
	}

	h.logger.Info("send processed",
		zap.Int("row_id", payload.RowID),
		zap.String("slot", payload.Slot),
		zap.String("status", result.Status))
	return nil
}

func decodeSendPayload(job models.Job) (SendPayload, error) {
	var payload SendPayload
	raw, err := json.Marshal(job.Payload)
	if err != nil {
		return payload, fmt.Errorf("marshal payload: %w", err)
	}
	if err := json.Unmarshal(raw, &payload); err != nil {
		return payload, fmt.Errorf("decode payload: %w", err)
	}
	if payload.RowID < 1 {
		return payload, fmt.Errorf("row_id is required")
	}
	if payload.Slot == "" {
		return payload, fmt.Errorf("slot is required")
	}
	return payload, nil
}
