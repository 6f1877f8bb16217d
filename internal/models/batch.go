package models

import "time"

// BatchStatus represents the lifecycle state of a processing batch.
type BatchStatus string

const (
	BatchStatusActive      BatchStatus = "active"
	BatchStatusInterrupted BatchStatus = "interrupted"
	BatchStatusCompleted   BatchStatus = "completed"
	BatchStatusCancelled   BatchStatus = "cancelled"
)

// Terminal reports whether the batch can no longer accept work.
func (s BatchStatus) Terminal() bool {
	return s == BatchStatusCompleted || s == BatchStatusCancelled
}

// ItemStatus represents the state of a single file within a batch.
type ItemStatus string

const (
	ItemStatusPending  ItemStatus = "pending"
	ItemStatusInFlight ItemStatus = "in_flight"
	ItemStatusComplete ItemStatus = "complete"
	ItemStatusFailed   ItemStatus = "failed"
)

// Batch represents one run of the processing pipeline over a fixed file list.
// The queue is immutable after creation; items are marked complete or failed,
// never removed.
type Batch struct {
	ID            string
	Directory     string // scope hint, may be empty
	Queue         []string
	Status        BatchStatus
	StartedAt     time.Time
	LastUpdatedAt time.Time
}

// QueueItem tracks one file's progress within a batch.
type QueueItem struct {
	BatchID     string
	FilePath    string
	Status      ItemStatus
	Error       string         // set iff Status == failed
	Result      *ProcessResult // set iff Status == complete
	CompletedAt *time.Time
}

// BatchProgress summarizes item completion within a batch. Counts are derived
// from item statuses, never incremented in place.
type BatchProgress struct {
	Total     int
	Completed int
	Failed    int
	Pending   int
}

// Done reports whether every item has reached a terminal status.
func (p BatchProgress) Done() bool {
	return p.Pending == 0
}
