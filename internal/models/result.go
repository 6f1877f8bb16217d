package models

import "time"

// Stage identifies one step of the per-file pipeline. Each stage may use a
// different configured model.
type Stage string

const (
	StageCategorize Stage = "categorize"
	StageName       Stage = "name"
	StageValidate   Stage = "validate"
)

// StageTiming records how long one pipeline stage took and which model served it.
type StageTiming struct {
	Stage      Stage  `json:"stage"`
	Model      string `json:"model"`
	DurationMS int64  `json:"duration_ms"`
}

// ValidationAttempt records one pass through the naming/validation loop.
type ValidationAttempt struct {
	Attempt      int    `json:"attempt"`
	Name         string `json:"name"`
	Passed       bool   `json:"passed"`
	SuggestedFix string `json:"suggested_fix,omitempty"`
	DurationMS   int64  `json:"duration_ms"`
}

// ProcessResult is the outcome of processing one file.
//
// AISuggestedName is the provider's original output and never changes after
// first assignment. SuggestedName starts equal to it and diverges only through
// explicit user edit or regeneration.
type ProcessResult struct {
	Category         string              `json:"category"`
	AISuggestedName  string              `json:"ai_suggested_name"`
	SuggestedName    string              `json:"suggested_name"`
	ValidationPassed *bool               `json:"validation_passed,omitempty"`
	Attempts         []ValidationAttempt `json:"attempts,omitempty"`
	Timings          []StageTiming       `json:"timings"`
}

// Duration returns the total time spent across all stages.
func (r *ProcessResult) Duration() time.Duration {
	var total int64
	for _, t := range r.Timings {
		total += t.DurationMS
	}
	return time.Duration(total) * time.Millisecond
}

// ModelFor returns the model used for a stage, or "" if the stage never ran.
func (r *ProcessResult) ModelFor(stage Stage) string {
	for _, t := range r.Timings {
		if t.Stage == stage {
			return t.Model
		}
	}
	return ""
}
