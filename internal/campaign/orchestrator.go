// Package campaign enumerates eligible contacts and submits one outreach job
// per row, bounded by a per-run ceiling.
package campaign

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"creator-outreach/internal/models"
	"creator-outreach/internal/policy"
	"creator-outreach/internal/rowstore"
)

// Stats summarizes the enqueue phase of one run. Jobs run asynchronously;
// these counts say nothing about delivery outcomes.
type Stats struct {
	TotalRows int      `json:"total_rows"`
	Enqueued  int      `json:"enqueued"`
	Skipped   int      `json:"skipped"`
	Errors    []string `json:"errors,omitempty"`
}

// RowStoreFactory opens a row store for the duration of one run. The
// orchestrator closes it on every path.
type RowStoreFactory func(ctx context.Context) (rowstore.RowStore, error)

// Orchestrator drives campaign runs.
type Orchestrator struct {
	openRows RowStoreFactory
	submit   Submitter
	ceiling  int
	pacing   time.Duration
	logger   *zap.Logger
}

func NewOrchestrator(openRows RowStoreFactory, submit Submitter, ceiling int, pacing time.Duration, logger *zap.Logger) *Orchestrator {
	if ceiling <= 0 {
		ceiling = 50
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Orchestrator{
		openRows: openRows,
		submit:   submit,
		ceiling:  ceiling,
		pacing:   pacing,
		logger:   logger,
	}
}

// RunAll loads the full row set once, applies eligibility, and submits one
// job per eligible row until the list or the run ceiling is exhausted. A
// caller limit smaller than the ceiling governs instead; the ceiling counts
// only jobs enqueued during this run, not historical sends.
func (o *Orchestrator) RunAll(ctx context.Context, limit int) (Stats, error) {
	var stats Stats

	rows, err := o.openRows(ctx)
	if err != nil {
		return stats, fmt.Errorf("open row store: %w", err)
	}
	defer rows.Close()

	list, err := rows.List(ctx)
	if err != nil {
		return stats, fmt.Errorf("list rows: %w", err)
	}
	stats.TotalRows = len(list)

	max := o.ceiling
	if limit > 0 && limit < max {
		max = limit
	}

	for _, row := range list {
		if stats.Enqueued >= max {
			break
		}
		if !policy.Eligible(row) {
			stats.Skipped++
			continue
		}
		if err := o.submitRow(ctx, row, ""); err != nil {
			stats.Errors = append(stats.Errors, fmt.Sprintf("row %d: %v", row.ID, err))
			continue
		}
		stats.Enqueued++
		// Small pacing delay so a large list does not saturate the queue
		// backend in one burst.
		if o.pacing > 0 {
			select {
			case <-ctx.Done():
				return stats, ctx.Err()
			case <-time.After(o.pacing):
			}
		}
	}

	o.logger.Info("campaign run submitted",
		zap.Int("total_rows", stats.TotalRows),
		zap.Int("enqueued", stats.Enqueued),
		zap.Int("skipped", stats.Skipped),
		zap.Int("errors", len(stats.Errors)))
	return stats, nil
}

// RunOne loads a single row and submits zero or one job for it. A non-empty
// idempotency key dedupes a repeated submission of the same request; campaign
// runs pass none so a legitimate re-run is never suppressed.
func (o *Orchestrator) RunOne(ctx context.Context, rowID int, idempotencyKey string) (Stats, error) {
	var stats Stats

	rows, err := o.openRows(ctx)
	if err != nil {
		return stats, fmt.Errorf("open row store: %w", err)
	}
	defer rows.Close()

	row, err := rows.Get(ctx, rowID)
	if err != nil {
		return stats, fmt.Errorf("get row %d: %w", rowID, err)
	}
	stats.TotalRows = 1

	if !policy.Eligible(row) {
		stats.Skipped++
		return stats, nil
	}
	if err := o.submitRow(ctx, row, idempotencyKey); err != nil {
		stats.Errors = append(stats.Errors, fmt.Sprintf("row %d: %v", row.ID, err))
		return stats, nil
	}
	stats.Enqueued++
	return stats, nil
}

func (o *Orchestrator) submitRow(ctx context.Context, row models.ContactRow, idempotencyKey string) error {
	_, reused, err := o.submit.Submit(ctx, models.TypeOutreach, map[string]any{
		"row_id": row.ID,
		"row":    row.Clone(),
	}, idempotencyKey)
	if err == nil && reused {
		o.logger.Info("submission deduplicated", zap.Int("row_id", row.ID))
	}
	return err
}
