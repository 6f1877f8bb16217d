package models

import "time"

// FeedbackAction represents the user's final disposition of a suggestion.
type FeedbackAction string

const (
	FeedbackAccepted FeedbackAction = "accepted"
	FeedbackEdited   FeedbackAction = "edited"
	FeedbackRejected FeedbackAction = "rejected"
	FeedbackSkipped  FeedbackAction = "skipped"
)

// Valid reports whether a is a known feedback action.
func (a FeedbackAction) Valid() bool {
	switch a {
	case FeedbackAccepted, FeedbackEdited, FeedbackRejected, FeedbackSkipped:
		return true
	}
	return false
}

// FeedbackRecord captures the disposition of one suggestion.
//
// EditDistance is measured against the original AI suggestion, not an
// intermediate edit. Accepted records carry a distance of 0 by definition;
// rejected and skipped records leave it nil.
type FeedbackRecord struct {
	ID              string
	FilePath        string
	Category        string
	AISuggestedName string
	Action          FeedbackAction
	FinalName       string // set for accepted/edited
	EditDistance    *int
	Synthetic       bool // backfilled from queue item data, no prior AI log
	RecordedAt      time.Time
}

// CategoryEffectiveness aggregates feedback per category over a time window.
// It is recomputed on query, not stored.
type CategoryEffectiveness struct {
	Category        string
	Accepted        int
	Edited          int
	Rejected        int
	Skipped         int
	AvgEditDistance float64
	// AcceptanceRate is accepted/total*100, nil when total is zero.
	AcceptanceRate *float64
}

// Total returns the number of feedback records behind this aggregate.
func (e CategoryEffectiveness) Total() int {
	return e.Accepted + e.Edited + e.Rejected + e.Skipped
}
