package feedback

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/filewise/filewise/internal/models"
	"github.com/filewise/filewise/internal/store"
)

func newTestTracker(t *testing.T) (*Tracker, store.Store) {
	t.Helper()
	s, err := store.NewSQLiteStore(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	require.NoError(t, s.Migrate(context.Background()))
	t.Cleanup(func() { s.Close() })
	return NewTracker(s), s
}

// seedResult stores a completed processing result for a file so feedback can
// link back to the original suggestion.
func seedResult(t *testing.T, s store.Store, filePath, category, aiName string) {
	t.Helper()
	ctx := context.Background()
	b := &models.Batch{Directory: filepath.Dir(filePath), Queue: []string{filePath}}
	require.NoError(t, s.CreateBatch(ctx, b))
	require.NoError(t, s.MarkItemComplete(ctx, b.ID, filePath, &models.ProcessResult{
		Category:        category,
		AISuggestedName: aiName,
		SuggestedName:   aiName,
	}))
	require.NoError(t, s.SetBatchStatus(ctx, b.ID, models.BatchStatusCompleted))
}

func TestRecord_Accepted(t *testing.T) {
	tracker, s := newTestTracker(t)
	ctx := context.Background()
	seedResult(t, s, "/inbox/a.pdf", "invoice", "acme-invoice.pdf")

	rec, err := tracker.Record(ctx, "/inbox/a.pdf", models.FeedbackAccepted, "")
	require.NoError(t, err)

	assert.Equal(t, "invoice", rec.Category)
	assert.Equal(t, "acme-invoice.pdf", rec.AISuggestedName)
	assert.Equal(t, "acme-invoice.pdf", rec.FinalName, "final name defaults to the suggestion")
	require.NotNil(t, rec.EditDistance)
	assert.Zero(t, *rec.EditDistance)
	assert.False(t, rec.Synthetic)
}

func TestRecord_EditedMeasuresAgainstOriginalSuggestion(t *testing.T) {
	tracker, s := newTestTracker(t)
	ctx := context.Background()
	seedResult(t, s, "/inbox/a.pdf", "invoice", "invoice.pdf")

	rec, err := tracker.Record(ctx, "/inbox/a.pdf", models.FeedbackEdited, "invoices.pdf")
	require.NoError(t, err)

	require.NotNil(t, rec.EditDistance)
	assert.Equal(t, 1, *rec.EditDistance)
	assert.Equal(t, "invoices.pdf", rec.FinalName)
}

func TestRecord_EditedIdenticalNameIsZero(t *testing.T) {
	tracker, s := newTestTracker(t)
	ctx := context.Background()
	seedResult(t, s, "/inbox/a.pdf", "invoice", "invoice.pdf")

	rec, err := tracker.Record(ctx, "/inbox/a.pdf", models.FeedbackEdited, "invoice.pdf")
	require.NoError(t, err)
	require.NotNil(t, rec.EditDistance)
	assert.Zero(t, *rec.EditDistance)
}

func TestRecord_EditedRequiresFinalName(t *testing.T) {
	tracker, s := newTestTracker(t)
	seedResult(t, s, "/inbox/a.pdf", "invoice", "invoice.pdf")

	_, err := tracker.Record(context.Background(), "/inbox/a.pdf", models.FeedbackEdited, "")
	assert.Error(t, err)
}

func TestRecord_RejectedHasNoDistance(t *testing.T) {
	tracker, s := newTestTracker(t)
	seedResult(t, s, "/inbox/a.pdf", "invoice", "invoice.pdf")

	rec, err := tracker.Record(context.Background(), "/inbox/a.pdf", models.FeedbackRejected, "")
	require.NoError(t, err)
	assert.Nil(t, rec.EditDistance)
	assert.Empty(t, rec.FinalName)
}

func TestRecord_SyntheticBackfill(t *testing.T) {
	tracker, _ := newTestTracker(t)

	// No processed result exists for this file.
	rec, err := tracker.Record(context.Background(), "/inbox/unknown.txt", models.FeedbackSkipped, "")
	require.NoError(t, err)

	assert.True(t, rec.Synthetic)
	assert.Equal(t, "uncategorized", rec.Category)
	assert.Empty(t, rec.AISuggestedName)
}

func TestRecord_InvalidAction(t *testing.T) {
	tracker, _ := newTestTracker(t)

	_, err := tracker.Record(context.Background(), "/inbox/a.pdf", models.FeedbackAction("maybe"), "")
	assert.Error(t, err)
}

func TestLowPerforming(t *testing.T) {
	tracker, s := newTestTracker(t)
	ctx := context.Background()

	// invoice: 4 accepted, 1 rejected = 80%. note: 1 accepted, 1 edited,
	// 1 rejected ~= 33%.
	for i := 0; i < 4; i++ {
		require.NoError(t, s.CreateFeedback(ctx, &models.FeedbackRecord{
			FilePath: "/inbox/inv.pdf", Category: "invoice", AISuggestedName: "x.pdf",
			Action: models.FeedbackAccepted, FinalName: "x.pdf",
		}))
	}
	require.NoError(t, s.CreateFeedback(ctx, &models.FeedbackRecord{
		FilePath: "/inbox/inv.pdf", Category: "invoice", AISuggestedName: "x.pdf",
		Action: models.FeedbackRejected,
	}))
	dist := 4
	require.NoError(t, s.CreateFeedback(ctx, &models.FeedbackRecord{
		FilePath: "/inbox/n.txt", Category: "note", AISuggestedName: "n.txt",
		Action: models.FeedbackAccepted, FinalName: "n.txt",
	}))
	require.NoError(t, s.CreateFeedback(ctx, &models.FeedbackRecord{
		FilePath: "/inbox/n.txt", Category: "note", AISuggestedName: "n.txt",
		Action: models.FeedbackEdited, FinalName: "daily-note.txt", EditDistance: &dist,
	}))
	require.NoError(t, s.CreateFeedback(ctx, &models.FeedbackRecord{
		FilePath: "/inbox/n.txt", Category: "note", AISuggestedName: "n.txt",
		Action: models.FeedbackRejected,
	}))

	low, err := tracker.LowPerforming(ctx, 50.0, time.Time{})
	require.NoError(t, err)
	require.Len(t, low, 1)
	assert.Equal(t, "note", low[0].Category)

	// Zero threshold falls back to the default.
	low, err = tracker.LowPerforming(ctx, 0, time.Time{})
	require.NoError(t, err)
	require.Len(t, low, 1)
	assert.Equal(t, "note", low[0].Category)
}

func TestParseWindow(t *testing.T) {
	tests := []struct {
		in      string
		wantAgo time.Duration
		zero    bool
		wantErr bool
	}{
		{in: "all", zero: true},
		{in: "", zero: true},
		{in: "7d", wantAgo: 7 * 24 * time.Hour},
		{in: "30D", wantAgo: 30 * 24 * time.Hour},
		{in: "24h", wantAgo: 24 * time.Hour},
		{in: "bogus", wantErr: true},
		{in: "-3d", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseWindow(tt.in)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			if tt.zero {
				assert.True(t, got.IsZero())
				return
			}
			want := time.Now().Add(-tt.wantAgo)
			assert.WithinDuration(t, want, got, time.Minute)
		})
	}
}
