package campaign

import (
	"context"
	"fmt"
	"time"

	"creator-outreach/internal/config"
	"creator-outreach/internal/models"
	"creator-outreach/internal/store"
	"creator-outreach/internal/telemetry"
)

// Submitter pushes one job into the durable queue. Submission is
// fire-and-forget: the returned job is in the submitted state, not completed,
// and callers never wait on execution. An empty idempotency key means every
// submission is a distinct job; a non-empty key dedupes an identical
// re-submission for the key's TTL and reports whether an existing job was
// reused.
type Submitter interface {
	Submit(ctx context.Context, jobType string, payload map[string]any, idempotencyKey string) (models.Job, bool, error)
}

// jobStore is the slice of the Postgres store the submitter needs.
type jobStore interface {
	CreateJob(ctx context.Context, p store.CreateJobParams) (models.Job, bool, error)
	UpdateJobStatus(ctx context.Context, id string, status string, attempts int, nextRun time.Time, lastError *string) error
	AppendAudit(ctx context.Context, jobID, event, detail string) error
}

// jobQueue is the slice of the Redis queue the submitter needs.
type jobQueue interface {
	Enqueue(ctx context.Context, jobID string, runAt time.Time) error
}

// JobSubmitter persists the job record and enqueues it, pairing the Postgres
// insert with the Redis push.
type JobSubmitter struct {
	cfg   config.Config
	store jobStore
	queue jobQueue
}

func NewJobSubmitter(cfg config.Config, st jobStore, q jobQueue) *JobSubmitter {
	return &JobSubmitter{cfg: cfg, store: st, queue: q}
}

func (s *JobSubmitter) Submit(ctx context.Context, jobType string, payload map[string]any, idempotencyKey string) (models.Job, bool, error) {
	job, reused, err := s.store.CreateJob(ctx, store.CreateJobParams{
		Type:           jobType,
		Payload:        payload,
		IdempotencyKey: idempotencyKey,
		RunAt:          time.Now(),
		MaxAttempts:    s.cfg.MaxAttempts,
		IdempotencyTTL: s.cfg.IdempotencyTTL,
	})
	if err != nil {
		return models.Job{}, false, fmt.Errorf("create job: %w", err)
	}
	if reused {
		// The key matched an existing job that is already queued or done;
		// enqueueing again would run it twice.
		return job, true, nil
	}

	if err := s.queue.Enqueue(ctx, job.ID, job.NextRunAt); err != nil {
		msg := err.Error()
		_ = s.store.UpdateJobStatus(ctx, job.ID, models.StatusFailed, job.Attempts, job.NextRunAt, &msg)
		return models.Job{}, false, fmt.Errorf("enqueue job: %w", err)
	}
	_ = s.store.AppendAudit(ctx, job.ID, "enqueued", "type="+jobType)
	telemetry.EnqueueCounter.Inc()
	return job, false, nil
}
