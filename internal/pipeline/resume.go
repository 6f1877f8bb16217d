package pipeline

import (
	"context"
	"fmt"

	"github.com/filewise/filewise/internal/models"
	"github.com/filewise/filewise/internal/store"
)

// InterruptedBatch describes a batch that never finished, with enough detail
// for the caller to present a resume-or-dismiss choice. Processing AI
// requests has a real cost, so neither resuming nor discarding happens
// automatically.
type InterruptedBatch struct {
	Batch     *models.Batch
	Total     int
	Completed int
	Failed    int
	Remaining int
}

// Resumer inspects the store for interrupted batches and continues them.
type Resumer struct {
	store   store.Store
	batcher *Batcher
}

// NewResumer creates a resume controller over the given store and batcher.
func NewResumer(s store.Store, b *Batcher) *Resumer {
	return &Resumer{store: s, batcher: b}
}

// CheckInterrupted returns the most recent unfinished batch, or nil when
// there is nothing to resume.
func (r *Resumer) CheckInterrupted(ctx context.Context) (*InterruptedBatch, error) {
	batch, err := r.store.GetInterruptedBatch(ctx)
	if err != nil {
		return nil, err
	}
	if batch == nil {
		return nil, nil
	}

	p, err := r.store.Progress(ctx, batch.ID)
	if err != nil {
		return nil, err
	}
	if p.Pending == 0 {
		// Every item already reached a terminal status; the batch just never
		// got its final bookkeeping. Close it out instead of offering it.
		if err := r.store.SetBatchStatus(ctx, batch.ID, models.BatchStatusCompleted); err != nil {
			return nil, err
		}
		return nil, nil
	}

	return &InterruptedBatch{
		Batch:     batch,
		Total:     p.Total,
		Completed: p.Completed,
		Failed:    p.Failed,
		Remaining: p.Pending,
	}, nil
}

// Resume re-dispatches exactly the batch's remaining pending items under the
// original batch ID and directory context.
func (r *Resumer) Resume(ctx context.Context, ib *InterruptedBatch, concurrency int) (*Handle, error) {
	return r.batcher.ResumeBatch(ctx, ib.Batch, concurrency)
}

// Dismiss clears an interrupted batch so it does not reappear on the next
// startup.
func (r *Resumer) Dismiss(ctx context.Context, ib *InterruptedBatch) error {
	if err := r.store.DeleteBatch(ctx, ib.Batch.ID); err != nil {
		return fmt.Errorf("dismiss batch: %w", err)
	}
	return nil
}
