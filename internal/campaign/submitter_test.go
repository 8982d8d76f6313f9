package campaign

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"creator-outreach/internal/config"
	"creator-outreach/internal/models"
	"creator-outreach/internal/store"
)

type fakeJobStore struct {
	created    []store.CreateJobParams
	reuseJob   *models.Job
	createErr  error
	statusSets []string
	audits     []string
}

func (f *fakeJobStore) CreateJob(ctx context.Context, p store.CreateJobParams) (models.Job, bool, error) {
	if f.createErr != nil {
		return models.Job{}, false, f.createErr
	}
	if p.IdempotencyKey != "" && f.reuseJob != nil {
		return *f.reuseJob, true, nil
	}
	f.created = append(f.created, p)
	return models.Job{ID: "job-new", Type: p.Type, NextRunAt: p.RunAt, MaxAttempts: p.MaxAttempts}, false, nil
}

func (f *fakeJobStore) UpdateJobStatus(ctx context.Context, id string, status string, attempts int, nextRun time.Time, lastError *string) error {
	f.statusSets = append(f.statusSets, id+":"+status)
	return nil
}

func (f *fakeJobStore) AppendAudit(ctx context.Context, jobID, event, detail string) error {
	f.audits = append(f.audits, event)
	return nil
}

type fakeEnqueuer struct {
	enqueued []string
	err      error
}

func (f *fakeEnqueuer) Enqueue(ctx context.Context, jobID string, runAt time.Time) error {
	if f.err != nil {
		return f.err
	}
	f.enqueued = append(f.enqueued, jobID)
	return nil
}

func submitterConfig() config.Config {
	return config.Config{MaxAttempts: 3, IdempotencyTTL: 24 * time.Hour}
}

func TestSubmitPairsInsertWithEnqueue(t *testing.T) {
	st := &fakeJobStore{}
	q := &fakeEnqueuer{}
	s := NewJobSubmitter(submitterConfig(), st, q)

	job, reused, err := s.Submit(context.Background(), models.TypeOutreach, map[string]any{"row_id": 1}, "")
	require.NoError(t, err)
	assert.False(t, reused)
	assert.Equal(t, []string{"job-new"}, q.enqueued)
	assert.Equal(t, 3, job.MaxAttempts)
	assert.Contains(t, st.audits, "enqueued")

	require.Len(t, st.created, 1)
	assert.Empty(t, st.created[0].IdempotencyKey)
	assert.Equal(t, 24*time.Hour, st.created[0].IdempotencyTTL)
}

func TestSubmitReusedJobIsNotReEnqueued(t *testing.T) {
	existing := models.Job{ID: "job-old", Status: models.StatusQueued}
	st := &fakeJobStore{reuseJob: &existing}
	q := &fakeEnqueuer{}
	s := NewJobSubmitter(submitterConfig(), st, q)

	job, reused, err := s.Submit(context.Background(), models.TypeSend, map[string]any{"row_id": 2}, "send-row2-v1")
	require.NoError(t, err)
	assert.True(t, reused)
	assert.Equal(t, "job-old", job.ID)
	assert.Empty(t, q.enqueued, "a deduplicated job must not run twice")
	assert.Empty(t, st.audits)
}

func TestSubmitEnqueueFailureMarksJobFailed(t *testing.T) {
	st := &fakeJobStore{}
	q := &fakeEnqueuer{err: errors.New("redis unavailable")}
	s := NewJobSubmitter(submitterConfig(), st, q)

	_, _, err := s.Submit(context.Background(), models.TypeOutreach, map[string]any{"row_id": 1}, "")
	assert.ErrorContains(t, err, "redis unavailable")
	assert.Equal(t, []string{"job-new:" + models.StatusFailed}, st.statusSets)
}

func TestSubmitCreateFailure(t *testing.T) {
	st := &fakeJobStore{createErr: errors.New("postgres down")}
	s := NewJobSubmitter(submitterConfig(), st, &fakeEnqueuer{})

	_, _, err := s.Submit(context.Background(), models.TypeOutreach, nil, "")
	assert.ErrorContains(t, err, "postgres down")
}
