package store

import (
	"context"
	"time"

	"github.com/filewise/filewise/internal/models"
)

// Store defines the persistence interface for filewise.
//
// Batch and item writes are write-through: every completion or failure is
// persisted immediately so that resume after a crash reflects exactly which
// items actually finished.
type Store interface {
	// Batches
	CreateBatch(ctx context.Context, b *models.Batch) error
	GetBatch(ctx context.Context, id string) (*models.Batch, error)
	SetBatchStatus(ctx context.Context, id string, status models.BatchStatus) error
	// GetInterruptedBatch returns the most recent batch that never reached a
	// terminal status, or nil if none exists.
	GetInterruptedBatch(ctx context.Context) (*models.Batch, error)
	DeleteBatch(ctx context.Context, id string) error

	// Items
	MarkItemComplete(ctx context.Context, batchID, filePath string, result *models.ProcessResult) error
	MarkItemFailed(ctx context.Context, batchID, filePath, errMsg string) error
	// GetPendingItems returns the batch queue minus completed and failed
	// items, in original queue order.
	GetPendingItems(ctx context.Context, batchID string) ([]string, error)
	GetItems(ctx context.Context, batchID string) ([]*models.QueueItem, error)
	// GetLatestResult returns the most recently completed item for a file
	// path across all batches, or nil if the file was never processed.
	GetLatestResult(ctx context.Context, filePath string) (*models.QueueItem, error)
	// Progress derives completion counts from item statuses.
	Progress(ctx context.Context, batchID string) (models.BatchProgress, error)

	// Feedback
	CreateFeedback(ctx context.Context, rec *models.FeedbackRecord) error
	GetFeedback(ctx context.Context, filePath string) ([]*models.FeedbackRecord, error)
	GetEffectiveness(ctx context.Context, since time.Time) ([]*models.CategoryEffectiveness, error)
	GetRecentRejections(ctx context.Context, limit int, since time.Time) ([]*models.FeedbackRecord, error)
	PruneFeedback(ctx context.Context, olderThan time.Time) (int64, error)

	// Lifecycle
	Migrate(ctx context.Context) error
	Close() error
}
