package pipeline

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/filewise/filewise/internal/models"
	"github.com/filewise/filewise/internal/store"
)

// DefaultConcurrency is the group size used when the caller passes none.
const DefaultConcurrency = 3

// ErrBatchActive is returned when a batch is started while another one is
// still running. At most one batch is active per Batcher.
var ErrBatchActive = errors.New("a batch is already active")

// ItemProcessor abstracts the per-file pipeline for the dispatcher.
type ItemProcessor interface {
	Process(ctx context.Context, path string) (*models.ProcessResult, error)
}

// ProgressFunc receives (processedCount, totalCount) after each group
// resolves. Counts are derived from stored item statuses and never decrease.
type ProgressFunc func(processed, total int)

// Summary reports how a batch run ended. A batch never has a single
// pass/fail verdict; failed items are isolated and counted.
type Summary struct {
	BatchID   string
	Total     int
	Succeeded int
	Failed    int
	Cancelled bool
}

// Batcher dispatches batch items to the item processor in fixed-size groups,
// awaiting each group fully before starting the next. This caps peak provider
// load while still overlapping latency within a group.
type Batcher struct {
	store      store.Store
	proc       ItemProcessor
	onProgress ProgressFunc

	mu     sync.Mutex
	active bool
}

// NewBatcher creates a batch dispatcher. onProgress may be nil.
func NewBatcher(s store.Store, proc ItemProcessor, onProgress ProgressFunc) *Batcher {
	return &Batcher{store: s, proc: proc, onProgress: onProgress}
}

// Handle controls a running batch.
type Handle struct {
	BatchID string

	cancel  chan struct{}
	once    sync.Once
	done    chan struct{}
	summary Summary
	err     error
}

// Cancel stops dispatching new groups. Items already in flight finish
// naturally; no cancellation is sent to the provider mid-call. Remaining
// pending items are preserved in the store for resume.
func (h *Handle) Cancel() {
	h.once.Do(func() { close(h.cancel) })
}

// Wait blocks until the run finishes and returns its summary.
func (h *Handle) Wait() (Summary, error) {
	<-h.done
	return h.summary, h.err
}

// Start creates a batch over the given paths and begins processing it.
func (b *Batcher) Start(ctx context.Context, paths []string, directory string, concurrency int) (*Handle, error) {
	if len(paths) == 0 {
		return nil, errors.New("no files to process")
	}

	batch := &models.Batch{
		Directory: directory,
		Queue:     paths,
	}
	if err := b.acquire(); err != nil {
		return nil, err
	}
	if err := b.store.CreateBatch(ctx, batch); err != nil {
		b.release()
		return nil, fmt.Errorf("create batch: %w", err)
	}

	return b.launch(ctx, batch, paths, concurrency), nil
}

// ResumeBatch continues an interrupted batch, dispatching exactly its
// remaining pending items under the original batch ID so progress reads
// against the original total.
func (b *Batcher) ResumeBatch(ctx context.Context, batch *models.Batch, concurrency int) (*Handle, error) {
	if err := b.acquire(); err != nil {
		return nil, err
	}

	pending, err := b.store.GetPendingItems(ctx, batch.ID)
	if err != nil {
		b.release()
		return nil, fmt.Errorf("get pending items: %w", err)
	}
	if err := b.store.SetBatchStatus(ctx, batch.ID, models.BatchStatusActive); err != nil {
		b.release()
		return nil, err
	}

	return b.launch(ctx, batch, pending, concurrency), nil
}

func (b *Batcher) acquire() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.active {
		return ErrBatchActive
	}
	b.active = true
	return nil
}

func (b *Batcher) release() {
	b.mu.Lock()
	b.active = false
	b.mu.Unlock()
}

func (b *Batcher) launch(ctx context.Context, batch *models.Batch, items []string, concurrency int) *Handle {
	if concurrency < 1 {
		concurrency = DefaultConcurrency
	}
	h := &Handle{
		BatchID: batch.ID,
		cancel:  make(chan struct{}),
		done:    make(chan struct{}),
	}
	go b.run(ctx, h, batch, items, concurrency)
	return h
}

func (b *Batcher) run(ctx context.Context, h *Handle, batch *models.Batch, items []string, concurrency int) {
	defer close(h.done)
	defer b.release()

	cancelled := false

	for start := 0; start < len(items); start += concurrency {
		if ctx.Err() != nil {
			cancelled = true
			break
		}
		select {
		case <-h.cancel:
			cancelled = true
		default:
		}
		if cancelled {
			break
		}

		end := start + concurrency
		if end > len(items) {
			end = len(items)
		}
		group := items[start:end]

		// Group members race; each writes its own row on completion so
		// progress is never lost relative to the processed set.
		var wg sync.WaitGroup
		var storeErrMu sync.Mutex
		var storeErr error
		for _, path := range group {
			wg.Add(1)
			go func(path string) {
				defer wg.Done()
				if err := b.processItem(ctx, batch.ID, path); err != nil {
					storeErrMu.Lock()
					if storeErr == nil {
						storeErr = err
					}
					storeErrMu.Unlock()
				}
			}(path)
		}
		wg.Wait()

		if storeErr != nil {
			// A completion/failure write that did not land threatens resume
			// correctness; report it as a batch-level failure.
			h.err = fmt.Errorf("queue store write: %w", storeErr)
			final := context.WithoutCancel(ctx)
			_ = b.store.SetBatchStatus(final, batch.ID, models.BatchStatusInterrupted)
			b.fillSummary(final, h, batch.ID, false)
			return
		}

		if b.onProgress != nil {
			if p, err := b.store.Progress(ctx, batch.ID); err == nil {
				b.onProgress(p.Completed+p.Failed, p.Total)
			}
		}
	}

	status := models.BatchStatusCompleted
	if cancelled {
		status = models.BatchStatusInterrupted
	}
	// The final status write must land even when the run context was
	// cancelled, otherwise the batch could never be resumed or closed out.
	final := context.WithoutCancel(ctx)
	if err := b.store.SetBatchStatus(final, batch.ID, status); err != nil && h.err == nil {
		h.err = err
	}
	b.fillSummary(final, h, batch.ID, cancelled)
}

// processItem runs one file and writes its outcome through to the store.
// A processing failure is recorded and isolated; only a store write failure
// is returned.
func (b *Batcher) processItem(ctx context.Context, batchID, path string) error {
	result, err := b.proc.Process(ctx, path)

	// Outcome writes must land even when the run context died mid-group.
	write := context.WithoutCancel(ctx)
	if err != nil {
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			// Aborted mid-call, not a verdict on the file; leave it pending
			// so resume retries it.
			return nil
		}
		return b.store.MarkItemFailed(write, batchID, path, err.Error())
	}
	return b.store.MarkItemComplete(write, batchID, path, result)
}

// fillSummary derives final counts from stored item statuses.
func (b *Batcher) fillSummary(ctx context.Context, h *Handle, batchID string, cancelled bool) {
	h.summary = Summary{BatchID: batchID, Cancelled: cancelled}
	if p, err := b.store.Progress(ctx, batchID); err == nil {
		h.summary.Total = p.Total
		h.summary.Succeeded = p.Completed
		h.summary.Failed = p.Failed
	}
}
