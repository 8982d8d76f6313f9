package worker

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"creator-outreach/internal/compose"
	"creator-outreach/internal/logentry"
	"creator-outreach/internal/mailer"
	"creator-outreach/internal/models"
	"creator-outreach/internal/research"
	"creator-outreach/internal/rowstore"
)

type fakeRowStore struct {
	rows    map[int]models.ContactRow
	updates []map[string]string
	closed  bool
}

func newFakeRowStore(rows ...models.ContactRow) *fakeRowStore {
	s := &fakeRowStore{rows: map[int]models.ContactRow{}}
	for _, r := range rows {
		s.rows[r.ID] = r
	}
	return s
}

func (s *fakeRowStore) List(ctx context.Context) ([]models.ContactRow, error) {
	out := make([]models.ContactRow, 0, len(s.rows))
	for i := 1; i <= len(s.rows); i++ {
		out = append(out, s.rows[i])
	}
	return out, nil
}

func (s *fakeRowStore) Get(ctx context.Context, id int) (models.ContactRow, error) {
	r, ok := s.rows[id]
	if !ok {
		return models.ContactRow{}, rowstore.ErrRowNotFound
	}
	return r, nil
}

func (s *fakeRowStore) Update(ctx context.Context, id int, fields map[string]string) error {
	r, ok := s.rows[id]
	if !ok {
		return rowstore.ErrRowNotFound
	}
	for k, v := range fields {
		r.Fields[k] = v
	}
	s.rows[id] = r
	s.updates = append(s.updates, fields)
	return nil
}

func (s *fakeRowStore) AddColumn(ctx context.Context, name string) error { return nil }
func (s *fakeRowStore) Close() error                                     { s.closed = true; return nil }

type fakeProvider struct {
	calls  int
	result research.Result
}

func (p *fakeProvider) ForRow(ctx context.Context, row models.ContactRow) research.Result {
	p.calls++
	return p.result
}

type fakeRenderer struct {
	templateID string
	email      compose.Email
	err        error
}

func (r *fakeRenderer) Render(ctx context.Context, templateID string, row models.ContactRow, res research.Result) (compose.Email, error) {
	r.templateID = templateID
	return r.email, r.err
}

type fakeSender struct {
	calls  int
	to     string
	result mailer.Result
	err    error
}

func (s *fakeSender) Send(ctx context.Context, to, subject, bodyHTML string) (mailer.Result, error) {
	s.calls++
	s.to = to
	return s.result, s.err
}

func outreachJob(row models.ContactRow) models.Job {
	return models.Job{
		ID:   "job-1",
		Type: models.TypeOutreach,
		Payload: map[string]any{
			"row_id": row.ID,
			"row":    row,
		},
	}
}

func eligibleRow() models.ContactRow {
	return models.ContactRow{ID: 1, Fields: map[string]string{
		models.ColName:        "Alex",
		models.ColNiche:       "tech",
		models.ColEmail:       "alex@example.com",
		models.ColChannelLink: "https://youtube.com/@alex",
		"email_1":             "",
		"email_2":             "",
	}}
}

func sentResult() mailer.Result {
	return mailer.Result{
		MessageID: "msg_abc",
		Status:    logentry.StatusSent,
		Timestamp: time.Date(2026, 3, 14, 9, 0, 0, 0, time.UTC),
	}
}

func TestOutreachHappyPath(t *testing.T) {
	row := eligibleRow()
	rows := newFakeRowStore(row)
	provider := &fakeProvider{result: research.Result{Summary: "tech videos"}}
	renderer := &fakeRenderer{email: compose.Email{Subject: "Hi Alex", BodyHTML: "<p>Hello</p>"}}
	sender := &fakeSender{result: sentResult()}
	h := NewOutreachHandler(rows, provider, renderer, sender, nil, "outreach-bot", nil)

	require.NoError(t, h.Handle(context.Background(), outreachJob(row)))

	assert.Equal(t, 1, provider.calls)
	assert.Equal(t, "email_1", renderer.templateID, "first empty slot picks the first template")
	assert.Equal(t, "alex@example.com", sender.to)

	got := rows.rows[1]
	entry, err := logentry.Parse(got.Field("email_1"))
	require.NoError(t, err)
	assert.Equal(t, logentry.StatusSent, entry.Status)
	assert.Equal(t, "msg_abc", entry.MessageID)
	assert.Equal(t, "email_1", entry.TemplateID)
	assert.Equal(t, "Hi Alex", entry.Subject)
	assert.Equal(t, "<p>Hello</p>", entry.HTML)
	assert.Equal(t, "true", got.Field(models.ColSent))
	assert.Equal(t, "outreach-bot", got.Field(models.ColSentBy))
	assert.Empty(t, got.Field("email_2"), "only the chosen slot is written")
}

func TestOutreachSecondSlot(t *testing.T) {
	row := eligibleRow()
	row.Fields["email_1"] = "2026-01-01T00:00:00Z | msg_0 | email_1 | SENT"
	rows := newFakeRowStore(row)
	renderer := &fakeRenderer{email: compose.Email{Subject: "s", BodyHTML: "b"}}
	sender := &fakeSender{result: sentResult()}
	h := NewOutreachHandler(rows, &fakeProvider{}, renderer, sender, nil, "bot", nil)

	require.NoError(t, h.Handle(context.Background(), outreachJob(row)))
	assert.Equal(t, "email_2", renderer.templateID)
}

func TestOutreachAllSlotsFilledIsNoOp(t *testing.T) {
	row := eligibleRow()
	row.Fields["email_1"] = "filled"
	row.Fields["email_2"] = "filled"
	rows := newFakeRowStore(row)
	provider := &fakeProvider{}
	sender := &fakeSender{result: sentResult()}
	h := NewOutreachHandler(rows, provider, &fakeRenderer{}, sender, nil, "bot", nil)

	require.NoError(t, h.Handle(context.Background(), outreachJob(row)))
	assert.Equal(t, 0, provider.calls)
	assert.Equal(t, 0, sender.calls)
	assert.Empty(t, rows.updates)
}

func TestOutreachInvalidRecipient(t *testing.T) {
	row := eligibleRow()
	row.Fields[models.ColEmail] = "not-an-address"
	sender := &fakeSender{result: sentResult()}
	h := NewOutreachHandler(newFakeRowStore(row), &fakeProvider{}, &fakeRenderer{}, sender, nil, "bot", nil)

	err := h.Handle(context.Background(), outreachJob(row))
	assert.True(t, errors.Is(err, mailer.ErrInvalidRecipient))
	assert.Equal(t, 0, sender.calls, "nothing is sent to a malformed address")
}

func TestOutreachDeliveryFailureConsumesSlot(t *testing.T) {
	row := eligibleRow()
	rows := newFakeRowStore(row)
	sender := &fakeSender{result: mailer.Result{
		MessageID: "msg_f",
		Status:    logentry.StatusFailed,
		Timestamp: time.Now(),
	}}
	renderer := &fakeRenderer{email: compose.Email{Subject: "s", BodyHTML: "b"}}
	h := NewOutreachHandler(rows, &fakeProvider{}, renderer, sender, nil, "bot", nil)

	// A refused delivery is an outcome, not a job error: the slot records
	// FAILED so the next run moves on instead of re-sending.
	require.NoError(t, h.Handle(context.Background(), outreachJob(row)))

	got := rows.rows[1]
	entry, err := logentry.Parse(got.Field("email_1"))
	require.NoError(t, err)
	assert.Equal(t, logentry.StatusFailed, entry.Status)
	assert.Empty(t, got.Field(models.ColSent), "sent flag stays unset on failure")
	assert.Equal(t, "bot", got.Field(models.ColSentBy))
}

func TestOutreachComposeErrorPropagates(t *testing.T) {
	row := eligibleRow()
	rows := newFakeRowStore(row)
	renderer := &fakeRenderer{err: errors.New("model quota exceeded")}
	h := NewOutreachHandler(rows, &fakeProvider{}, renderer, &fakeSender{}, nil, "bot", nil)

	err := h.Handle(context.Background(), outreachJob(row))
	assert.ErrorContains(t, err, "model quota exceeded")
	assert.Empty(t, rows.updates, "no outcome is written for a retryable failure")
}

func TestOutreachTransportErrorPropagates(t *testing.T) {
	row := eligibleRow()
	rows := newFakeRowStore(row)
	renderer := &fakeRenderer{email: compose.Email{Subject: "s", BodyHTML: "b"}}
	sender := &fakeSender{err: errors.New("dial tcp: connection refused")}
	h := NewOutreachHandler(rows, &fakeProvider{}, renderer, sender, nil, "bot", nil)

	err := h.Handle(context.Background(), outreachJob(row))
	assert.ErrorContains(t, err, "connection refused")
	assert.Empty(t, rows.updates)
}

func TestOutreachBadPayload(t *testing.T) {
	h := NewOutreachHandler(newFakeRowStore(), &fakeProvider{}, &fakeRenderer{}, &fakeSender{}, nil, "bot", nil)
	err := h.Handle(context.Background(), models.Job{
		ID:      "job-x",
		Type:    models.TypeOutreach,
		Payload: map[string]any{"row_id": 0},
	})
	assert.ErrorContains(t, err, "row_id is required")
}
