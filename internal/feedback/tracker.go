// Package feedback records suggestion dispositions and aggregates
// per-category effectiveness statistics.
package feedback

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/filewise/filewise/internal/editdist"
	"github.com/filewise/filewise/internal/models"
	"github.com/filewise/filewise/internal/store"
)

// DefaultLowPerformingThreshold is the acceptance-rate percentage below which
// a category is flagged.
const DefaultLowPerformingThreshold = 50.0

// uncategorized groups backfilled records that carry no category data.
const uncategorized = "uncategorized"

// Tracker is the feedback and effectiveness ledger.
type Tracker struct {
	store store.Store
}

// NewTracker creates a tracker over the given store.
func NewTracker(s store.Store) *Tracker {
	return &Tracker{store: s}
}

// Record captures the user's disposition of a suggestion for filePath.
// finalName is required for edited, defaults to the AI suggestion for
// accepted, and is ignored otherwise.
//
// When no processed result exists for the path (e.g. a file handled before
// this ledger existed), a synthetic record is backfilled from whatever data
// is available rather than dropping the feedback.
func (t *Tracker) Record(ctx context.Context, filePath string, action models.FeedbackAction, finalName string) (*models.FeedbackRecord, error) {
	if !action.Valid() {
		return nil, fmt.Errorf("unknown feedback action: %s", action)
	}

	rec := &models.FeedbackRecord{
		FilePath: filePath,
		Action:   action,
	}

	item, err := t.store.GetLatestResult(ctx, filePath)
	if err != nil {
		return nil, fmt.Errorf("look up processed result: %w", err)
	}
	if item != nil && item.Result != nil {
		rec.Category = item.Result.Category
		rec.AISuggestedName = item.Result.AISuggestedName
	} else {
		rec.Synthetic = true
		rec.Category = uncategorized
	}

	switch action {
	case models.FeedbackAccepted:
		// Accepted means no divergence by definition.
		zero := 0
		rec.EditDistance = &zero
		rec.FinalName = finalName
		if rec.FinalName == "" {
			rec.FinalName = rec.AISuggestedName
		}
	case models.FeedbackEdited:
		if finalName == "" {
			return nil, fmt.Errorf("edited feedback requires a final name")
		}
		rec.FinalName = finalName
		// Distance is always measured against the original AI suggestion so
		// repeated edits do not understate total divergence.
		d := editdist.Distance(rec.AISuggestedName, finalName)
		rec.EditDistance = &d
	}

	if err := t.store.CreateFeedback(ctx, rec); err != nil {
		return nil, err
	}
	return rec, nil
}

// Effectiveness returns per-category acceptance statistics for records at or
// after since.
func (t *Tracker) Effectiveness(ctx context.Context, since time.Time) ([]*models.CategoryEffectiveness, error) {
	return t.store.GetEffectiveness(ctx, since)
}

// LowPerforming returns categories whose acceptance rate falls below
// threshold percent. A threshold of zero or less applies the default.
// Categories with no records are never flagged.
func (t *Tracker) LowPerforming(ctx context.Context, threshold float64, since time.Time) ([]*models.CategoryEffectiveness, error) {
	if threshold <= 0 {
		threshold = DefaultLowPerformingThreshold
	}

	stats, err := t.store.GetEffectiveness(ctx, since)
	if err != nil {
		return nil, err
	}

	var low []*models.CategoryEffectiveness
	for _, e := range stats {
		if e.AcceptanceRate != nil && *e.AcceptanceRate < threshold {
			low = append(low, e)
		}
	}
	return low, nil
}

// RecentRejections returns the most recent rejected suggestions.
func (t *Tracker) RecentRejections(ctx context.Context, limit int, since time.Time) ([]*models.FeedbackRecord, error) {
	return t.store.GetRecentRejections(ctx, limit, since)
}

// Prune deletes feedback older than the retention period.
func (t *Tracker) Prune(ctx context.Context, retention time.Duration) (int64, error) {
	return t.store.PruneFeedback(ctx, time.Now().Add(-retention))
}

// ParseWindow converts a user-supplied time range ("all", "24h", "7d", "30d")
// into the start of the window. "all" and "" return the zero time.
func ParseWindow(s string) (time.Time, error) {
	s = strings.TrimSpace(strings.ToLower(s))
	if s == "" || s == "all" {
		return time.Time{}, nil
	}

	if strings.HasSuffix(s, "d") {
		days, err := strconv.Atoi(strings.TrimSuffix(s, "d"))
		if err != nil || days < 0 {
			return time.Time{}, fmt.Errorf("invalid time range: %s", s)
		}
		return time.Now().AddDate(0, 0, -days), nil
	}

	d, err := time.ParseDuration(s)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid time range: %s", s)
	}
	return time.Now().Add(-d), nil
}
