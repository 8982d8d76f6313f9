package worker

import (
	"context"
	"errors"
	"fmt"
	"math"
	"math/rand"
	"sync"
	"time"

	"go.uber.org/zap"

	"creator-outreach/internal/config"
	"creator-outreach/internal/mailer"
	"creator-outreach/internal/models"
	"creator-outreach/internal/queue"
	"creator-outreach/internal/ratelimit"
	"creator-outreach/internal/rowstore"
	"creator-outreach/internal/telemetry"
)

// Handler executes a job for a given type.
type Handler func(ctx context.Context, job models.Job) error

// JobStore is the slice of the metadata store the processor drives: status
// transitions, attempt accounting, and the audit trail.
type JobStore interface {
	GetJob(ctx context.Context, id string) (models.Job, error)
	UpdateJobStatus(ctx context.Context, id string, status string, attempts int, nextRun time.Time, lastError *string) error
	UpdateAttempts(ctx context.Context, id string, attempts int, nextRun time.Time, lastErr string) error
	MarkSuccess(ctx context.Context, id string) error
	MarkDeadLetter(ctx context.Context, id string, lastError string) error
	AppendAudit(ctx context.Context, jobID, event, detail string) error
}

// Processor drives the worker pool: N workers pull leased jobs from the
// shared queue while a maintenance loop promotes scheduled jobs and reclaims
// expired leases. The queue itself provides cross-process synchronization; no
// row-level locks are held across the pipeline's I/O calls, so two jobs for
// the same row can race (last write wins); the orchestrator enqueues at most
// one job per row per run to keep that window narrow.
type Processor struct {
	cfg      config.Config
	queue    *queue.RedisQueue
	store    JobStore
	limiter  *ratelimit.SlidingWindow
	handlers map[string]Handler
	logger   *zap.Logger
	workerID string
}

func NewProcessor(cfg config.Config, q *queue.RedisQueue, st JobStore, limiter *ratelimit.SlidingWindow, logger *zap.Logger, workerID string) *Processor {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Processor{
		cfg:      cfg,
		queue:    q,
		store:    st,
		limiter:  limiter,
		handlers: make(map[string]Handler),
		logger:   logger,
		workerID: workerID,
	}
}

// RegisterHandler binds a handler to a job type.
func (p *Processor) RegisterHandler(jobType string, handler Handler) {
	if jobType == "" || handler == nil {
		return
	}
	p.handlers[jobType] = handler
}

// Run starts the maintenance loop and the worker pool, blocking until
// context cancellation.
func (p *Processor) Run(ctx context.Context) error {
	workers := p.cfg.WorkerCount
	if workers <= 0 {
		workers = 5
	}

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		p.maintenanceLoop(ctx)
	}()

	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			p.workerLoop(ctx, n)
		}(i)
	}

	wg.Wait()
	return ctx.Err()
}

// maintenanceLoop promotes due scheduled jobs and reclaims expired leases.
func (p *Processor) maintenanceLoop(ctx context.Context) {
	ticker := time.NewTicker(p.cfg.WorkerPollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}

		_, _ = p.queue.PromoteScheduled(ctx, time.Now(), int64(p.cfg.ScheduledBatchSize))

		requeued, deadLettered, _ := p.queue.RequeueExpired(ctx, time.Now(), 100)
		for _, id := range requeued {
			if job, err := p.store.GetJob(ctx, id); err == nil {
				_ = p.store.UpdateJobStatus(ctx, id, models.StatusQueued, job.Attempts, time.Now(), job.LastError)
				_ = p.store.AppendAudit(ctx, id, "lease_reclaimed", "visibility timeout expired")
			}
		}
		for _, id := range deadLettered {
			_ = p.store.MarkDeadLetter(ctx, id, "reclaim budget exhausted")
			_ = p.store.AppendAudit(ctx, id, "dead_letter", "reclaimed too many times")
			telemetry.WorkerDeadLetter.Inc()
		}

		if depth, err := p.queue.ReadyDepth(ctx); err == nil {
			telemetry.QueueDepthGauge.Set(float64(depth))
		}
	}
}

// workerLoop pulls one job at a time and runs it through the pipeline.
func (p *Processor) workerLoop(ctx context.Context, n int) {
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		jobID, err := p.queue.DequeueWithLease(ctx)
		if err != nil || jobID == "" {
			sleepCtx(ctx, p.cfg.WorkerPollInterval)
			continue
		}

		job, err := p.store.GetJob(ctx, jobID)
		if err != nil {
			_ = p.queue.Ack(ctx, jobID)
			continue
		}
		if job.Status == models.StatusCancelled {
			_ = p.queue.Ack(ctx, jobID)
			continue
		}

		// Rate shaping: job starts across the whole pool are capped per
		// rolling window. A deferred start is rescheduled, never counted as
		// an attempt.
		if p.limiter != nil {
			allowed, err := p.limiter.Allow(ctx, job.ID)
			if err == nil && !allowed {
				telemetry.RateDeferred.Inc()
				_ = p.queue.Ack(ctx, job.ID)
				_ = p.queue.Schedule(ctx, job.ID, time.Now().Add(5*time.Second))
				continue
			}
		}

		p.execute(ctx, job)
	}
}

func (p *Processor) execute(ctx context.Context, job models.Job) {
	_ = p.store.UpdateJobStatus(ctx, job.ID, models.StatusInProgress, job.Attempts, job.NextRunAt, nil)
	telemetry.InFlightGauge.Inc()
	defer telemetry.InFlightGauge.Dec()

	err := p.runJob(ctx, job)
	if err == nil {
		_ = p.queue.Ack(ctx, job.ID)
		_ = p.store.MarkSuccess(ctx, job.ID)
		_ = p.store.AppendAudit(ctx, job.ID, "succeeded", "worker "+p.workerID+" completed job")
		telemetry.WorkerSuccess.Inc()
		return
	}

	attempts := job.Attempts + 1

	// Some failures cannot be fixed by retrying: a malformed recipient stays
	// malformed and a stale row identifier stays stale.
	if errors.Is(err, mailer.ErrInvalidRecipient) || errors.Is(err, rowstore.ErrRowNotFound) {
		_ = p.store.MarkDeadLetter(ctx, job.ID, err.Error())
		_ = p.queue.Ack(ctx, job.ID)
		_ = p.queue.DLQPush(ctx, job.ID)
		_ = p.store.AppendAudit(ctx, job.ID, "dead_letter", err.Error())
		telemetry.WorkerDeadLetter.Inc()
		return
	}

	if attempts >= job.MaxAttempts || attempts >= p.cfg.MaxAttempts {
		_ = p.store.MarkDeadLetter(ctx, job.ID, err.Error())
		_ = p.queue.Ack(ctx, job.ID)
		_ = p.queue.DLQPush(ctx, job.ID)
		_ = p.store.AppendAudit(ctx, job.ID, "dead_letter", err.Error())
		telemetry.WorkerDeadLetter.Inc()
		return
	}

	backoff := retryBackoff(p.cfg.BackoffInitial, p.cfg.BackoffMax, attempts)
	nextRun := time.Now().Add(backoff)
	_ = p.store.UpdateAttempts(ctx, job.ID, attempts, nextRun, err.Error())
	_ = p.queue.Ack(ctx, job.ID)
	_ = p.queue.Schedule(ctx, job.ID, nextRun)
	_ = p.store.AppendAudit(ctx, job.ID, "retry_scheduled", fmt.Sprintf("next_run=%s attempts=%d", nextRun.UTC().Format(time.RFC3339), attempts))
	telemetry.WorkerFailures.Inc()
	p.logger.Warn("job failed, retry scheduled",
		zap.String("job_id", job.ID),
		zap.Int("attempts", attempts),
		zap.Duration("backoff", backoff),
		zap.Error(err))
}

func (p *Processor) runJob(ctx context.Context, job models.Job) error {
	handler, ok := p.handlers[job.Type]
	if !ok {
		return fmt.Errorf("no handler registered for type %q", job.Type)
	}
	return handler(ctx, job)
}

// retryBackoff doubles from base per attempt with up to 25% additive jitter.
// The nominal value is a floor: attempt 1 waits at least base, attempt 2 at
// least 2*base.
func retryBackoff(base, max time.Duration, attempt int) time.Duration {
	if attempt <= 0 {
		return base
	}
	exp := float64(base) * math.Pow(2, float64(attempt-1))
	wait := time.Duration(exp)
	if wait > max {
		wait = max
	}
	jitter := time.Duration(rand.Int63n(int64(wait/4) + 1))
	return wait + jitter
}

func sleepCtx(ctx context.Context, d time.Duration) {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
	case <-t.C:
	}
}
