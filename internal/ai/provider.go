// Package ai wraps the external inference provider that categorizes files and
// proposes names.
package ai

import (
	"context"
	"errors"

	"github.com/filewise/filewise/internal/models"
)

// ErrUnavailable marks provider errors caused by the service being
// unreachable (connection refused, timeout, overload) as opposed to the model
// returning unusable content. Callers distinguish the two with errors.Is.
var ErrUnavailable = errors.New("ai provider unavailable")

// FileRef identifies a file to the provider along with a content excerpt.
type FileRef struct {
	Path    string
	Content string
}

// CategorizeResult is the provider's classification of a file.
type CategorizeResult struct {
	Category  string
	Reasoning string
	Raw       string
}

// NameRequest carries everything the naming stage folds into its prompt.
// RejectedName and UserFeedback are set on regeneration; ValidatorFix is set
// when retrying after a failed validation.
type NameRequest struct {
	File         FileRef
	Category     string
	RejectedName string
	UserFeedback string
	ValidatorFix string
}

// NameResult is the provider's proposed filename.
type NameResult struct {
	Name      string
	Reasoning string
	Raw       string
}

// ValidateResult is the provider's judgment of a proposed filename.
type ValidateResult struct {
	Passed       bool
	SuggestedFix string
	Reasoning    string
	Raw          string
}

// Provider is the inference collaborator consumed by the pipeline. Prompt
// construction and model selection live behind this interface; the pipeline
// treats calls as opaque and fallible.
type Provider interface {
	Categorize(ctx context.Context, file FileRef) (*CategorizeResult, error)
	GenerateName(ctx context.Context, req NameRequest) (*NameResult, error)
	ValidateName(ctx context.Context, file FileRef, name, category string) (*ValidateResult, error)
	// ModelFor reports which configured model serves a stage, for result
	// bookkeeping.
	ModelFor(stage models.Stage) string
}

// ModelConfig maps pipeline stages to models, with a default fallback.
type ModelConfig struct {
	Default    string
	Categorize string
	Name       string
	Validate   string
}

// For returns the model configured for a stage, falling back to Default.
func (m ModelConfig) For(stage models.Stage) string {
	switch stage {
	case models.StageCategorize:
		if m.Categorize != "" {
			return m.Categorize
		}
	case models.StageName:
		if m.Name != "" {
			return m.Name
		}
	case models.StageValidate:
		if m.Validate != "" {
			return m.Validate
		}
	}
	return m.Default
}
