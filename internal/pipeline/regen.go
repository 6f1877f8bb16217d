package pipeline

import (
	"context"
	"fmt"

	"github.com/filewise/filewise/internal/feedback"
	"github.com/filewise/filewise/internal/models"
	"github.com/filewise/filewise/internal/store"
)

// RegenerateForFile re-runs naming for a file that already has a stored
// result, folding user feedback into the prompt. The previous suggestion is
// recorded as rejected first so the effectiveness ledger reflects the
// repudiation even though the user never explicitly rejected it. The new
// result replaces the stored one under the item's original batch.
func RegenerateForFile(ctx context.Context, s store.Store, tracker *feedback.Tracker, proc *Processor, path, userFeedback string) (*models.ProcessResult, error) {
	item, err := s.GetLatestResult(ctx, path)
	if err != nil {
		return nil, err
	}
	if item == nil || item.Result == nil {
		return nil, fmt.Errorf("no processed result for %s; run process first", path)
	}

	if _, err := tracker.Record(ctx, path, models.FeedbackRejected, ""); err != nil {
		return nil, fmt.Errorf("record implicit rejection: %w", err)
	}

	result, err := proc.Regenerate(ctx, path, item.Result, userFeedback)
	if err != nil {
		return nil, err
	}

	if err := s.MarkItemComplete(ctx, item.BatchID, path, result); err != nil {
		return nil, fmt.Errorf("store regenerated result: %w", err)
	}
	return result, nil
}
