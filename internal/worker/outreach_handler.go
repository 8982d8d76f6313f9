package worker

import (
	"context"
	"encoding/json"
	"fmt"

	"go.uber.org/zap"

	"creator-outreach/internal/archive"
	"creator-outreach/internal/compose"
	"creator-outreach/internal/logentry"
	"creator-outreach/internal/mailer"
	"creator-outreach/internal/models"
	"creator-outreach/internal/policy"
	"creator-outreach/internal/research"
	"creator-outreach/internal/rowstore"
	"creator-outreach/internal/telemetry"
)

// OutreachPayload is the contact:outreach job payload: the target row id and
// a snapshot of the row taken at enqueue time. Slot selection runs against
// the snapshot, not a fresh read; a stale snapshot is an accepted tradeoff.
type OutreachPayload struct {
	RowID int               `json:"row_id"`
	Row   models.ContactRow `json:"row"`
}

// ResearchProvider is the enrichment boundary consumed by the handler.
type ResearchProvider interface {
	ForRow(ctx context.Context, row models.ContactRow) research.Result
}

// Renderer is the content-generation boundary consumed by the handler.
type Renderer interface {
	Render(ctx context.Context, templateID string, row models.ContactRow, res research.Result) (compose.Email, error)
}

// OutreachHandler runs the full pipeline for one contact: pick the next empty
// slot, research, compose, send, and write the outcome back to the row store.
type OutreachHandler struct {
	rows     rowstore.RowStore
	provider ResearchProvider
	renderer Renderer
	sender   mailer.Sender
	archive  *archive.Archive
	botName  string
	logger   *zap.Logger
}

func NewOutreachHandler(rows rowstore.RowStore, provider ResearchProvider, renderer Renderer, sender mailer.Sender, arc *archive.Archive, botName string, logger *zap.Logger) *OutreachHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &OutreachHandler{
		rows:     rows,
		provider: provider,
		renderer: renderer,
		sender:   sender,
		archive:  arc,
		botName:  botName,
		logger:   logger,
	}
}

// Handle processes one contact:outreach job. Errors it returns are retried by
// the processor's policy. Delivery failure is not an error: the result is
// recorded and the slot is consumed either way, so a failed send is never
// silently re-sent.
func (h *OutreachHandler) Handle(ctx context.Context, job models.Job) error {
	payload, err := decodeOutreachPayload(job)
	if err != nil {
		return err
	}
	row := payload.Row

	slot := policy.NextSlot(row)
	if slot == "" {
		// Every slot is filled (or none exist): nothing to do, the job still
		// completes.
		h.logger.Info("no empty slot, skipping", zap.Int("row_id", payload.RowID))
		return nil
	}

	to := row.Field(models.ColEmail)
	if !mailer.ValidateRecipient(to) {
		return fmt.Errorf("%w: %q", mailer.ErrInvalidRecipient, to)
	}

	res := h.provider.ForRow(ctx, row)

	templateID := policy.TemplateFor(slot)
	email, err := h.renderer.Render(ctx, templateID, row, res)
	if err != nil {
		return fmt.Errorf("compose %s for row %d: %w", templateID, payload.RowID, err)
	}

	result, err := h.sender.Send(ctx, to, email.Subject, email.BodyHTML)
	if err != nil {
		return err
	}

	if err := h.writeOutcome(ctx, payload.RowID, slot, templateID, email, result); err != nil {
		return err
	}

	if result.Status == logentry.StatusSent {
		telemetry.MailSent.Inc()
		if h.archive != nil {
			if _, err := h.archive.Store(ctx, result.MessageID, to, email.Subject, email.BodyHTML); err != nil {
				h.logger.Warn("archive failed", zap.String("message_id", result.MessageID), zap.Error(err))
			}
		}
	} else {
		telemetry.MailFailed.Inc()
	}

	h.logger.Info("outreach processed",
		zap.Int("row_id", payload.RowID),
		zap.String("slot", slot),
		zap.String("status", result.Status),
		zap.String("message_id", result.MessageID))
	return nil
}

// writeOutcome commits the slot log entry plus the sent flags in one update.
func (h *OutreachHandler) writeOutcome(ctx context.Context, rowID int, slot, templateID string, email compose.Email, result mailer.Result) error {
	entry := logentry.Entry{
		Timestamp:  result.Timestamp,
		MessageID:  result.MessageID,
		TemplateID: templateID,
		Status:     result.Status,
		Subject:    email.Subject,
		HTML:       email.BodyHTML,
	}
	fields := map[string]string{
		slot:             entry.Format(),
		models.ColSentBy: h.botName,
	}
	if result.Status == logentry.StatusSent {
		fields[models.ColSent] = "true"
	}
	if err := h.rows.Update(ctx, rowID, fields); err != nil {
		return fmt.Errorf("write outcome for row %d: %w", rowID, err)
	}
	return nil
}

func decodeOutreachPayload(job models.Job) (OutreachPayload, error) {
	var payload OutreachPayload
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
	return payload, nil
}
