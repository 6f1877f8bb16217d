package pipeline

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/filewise/filewise/internal/ai"
	"github.com/filewise/filewise/internal/models"
)

// mockProvider scripts the three stages and records every request.
type mockProvider struct {
	mu sync.Mutex

	categorizeFn func(file ai.FileRef) (*ai.CategorizeResult, error)
	nameFn       func(call int, req ai.NameRequest) (*ai.NameResult, error)
	validateFn   func(call int, name string) (*ai.ValidateResult, error)

	nameReqs      []ai.NameRequest
	validateCalls int
}

func (m *mockProvider) Categorize(ctx context.Context, file ai.FileRef) (*ai.CategorizeResult, error) {
	if m.categorizeFn != nil {
		return m.categorizeFn(file)
	}
	return &ai.CategorizeResult{Category: "document"}, nil
}

func (m *mockProvider) GenerateName(ctx context.Context, req ai.NameRequest) (*ai.NameResult, error) {
	m.mu.Lock()
	m.nameReqs = append(m.nameReqs, req)
	call := len(m.nameReqs)
	m.mu.Unlock()
	if m.nameFn != nil {
		return m.nameFn(call, req)
	}
	return &ai.NameResult{Name: "suggested-name"}, nil
}

func (m *mockProvider) ValidateName(ctx context.Context, file ai.FileRef, name, category string) (*ai.ValidateResult, error) {
	m.mu.Lock()
	m.validateCalls++
	call := m.validateCalls
	m.mu.Unlock()
	if m.validateFn != nil {
		return m.validateFn(call, name)
	}
	return &ai.ValidateResult{Passed: true}, nil
}

func (m *mockProvider) ModelFor(stage models.Stage) string { return "test-model" }

func writeTestFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func TestProcess_CategorizeAndName(t *testing.T) {
	path := writeTestFile(t, "scan0042.PDF", "ACME Corp Invoice #1234")
	provider := &mockProvider{
		categorizeFn: func(file ai.FileRef) (*ai.CategorizeResult, error) {
			assert.Contains(t, file.Content, "ACME")
			return &ai.CategorizeResult{Category: "invoice"}, nil
		},
		nameFn: func(call int, req ai.NameRequest) (*ai.NameResult, error) {
			assert.Equal(t, "invoice", req.Category)
			return &ai.NameResult{Name: "acme-invoice-1234"}, nil
		},
	}
	proc := NewProcessor(provider, DefaultConfig())

	result, err := proc.Process(context.Background(), path)
	require.NoError(t, err)

	assert.Equal(t, "invoice", result.Category)
	assert.Equal(t, "acme-invoice-1234.pdf", result.SuggestedName, "original extension preserved, lowercased")
	assert.Equal(t, result.SuggestedName, result.AISuggestedName)
	assert.Nil(t, result.ValidationPassed, "validation disabled by default")
	assert.Zero(t, provider.validateCalls)

	stages := []models.Stage{}
	for _, tm := range result.Timings {
		stages = append(stages, tm.Stage)
	}
	assert.Equal(t, []models.Stage{models.StageCategorize, models.StageName}, stages)
}

func TestProcess_CategorizeErrorAborts(t *testing.T) {
	path := writeTestFile(t, "a.txt", "hello")
	provider := &mockProvider{
		categorizeFn: func(file ai.FileRef) (*ai.CategorizeResult, error) {
			return nil, ai.ErrUnavailable
		},
	}
	proc := NewProcessor(provider, DefaultConfig())

	_, err := proc.Process(context.Background(), path)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ai.ErrUnavailable))
	assert.Empty(t, provider.nameReqs, "naming never runs after a categorize failure")
}

func TestProcess_MissingFile(t *testing.T) {
	proc := NewProcessor(&mockProvider{}, DefaultConfig())
	_, err := proc.Process(context.Background(), filepath.Join(t.TempDir(), "missing.txt"))
	assert.Error(t, err)
}

func TestProcess_EmptyFile(t *testing.T) {
	path := writeTestFile(t, "empty.txt", "")
	proc := NewProcessor(&mockProvider{}, DefaultConfig())

	result, err := proc.Process(context.Background(), path)
	require.NoError(t, err)
	assert.Equal(t, "suggested-name.txt", result.SuggestedName)
}

func TestProcess_ValidationPassesFirstAttempt(t *testing.T) {
	path := writeTestFile(t, "a.txt", "x")
	provider := &mockProvider{}
	cfg := DefaultConfig()
	cfg.EnableValidation = true
	proc := NewProcessor(provider, cfg)

	result, err := proc.Process(context.Background(), path)
	require.NoError(t, err)

	assert.Len(t, provider.nameReqs, 1)
	require.NotNil(t, result.ValidationPassed)
	assert.True(t, *result.ValidationPassed)
	require.Len(t, result.Attempts, 1)
	assert.True(t, result.Attempts[0].Passed)
}

func TestProcess_ValidationRetryFoldsFix(t *testing.T) {
	path := writeTestFile(t, "a.txt", "x")
	provider := &mockProvider{
		nameFn: func(call int, req ai.NameRequest) (*ai.NameResult, error) {
			if call > 1 {
				// Retries must carry the validator's advice.
				if req.ValidatorFix == "" {
					return nil, errors.New("missing validator fix on retry")
				}
			}
			return &ai.NameResult{Name: "attempt"}, nil
		},
		validateFn: func(call int, name string) (*ai.ValidateResult, error) {
			if call < 3 {
				return &ai.ValidateResult{Passed: false, SuggestedFix: "be more specific"}, nil
			}
			return &ai.ValidateResult{Passed: true}, nil
		},
	}
	cfg := DefaultConfig()
	cfg.EnableValidation = true
	cfg.ValidationRetryCount = 3
	proc := NewProcessor(provider, cfg)

	result, err := proc.Process(context.Background(), path)
	require.NoError(t, err)

	assert.Len(t, provider.nameReqs, 3)
	assert.Equal(t, 3, provider.validateCalls)
	require.NotNil(t, result.ValidationPassed)
	assert.True(t, *result.ValidationPassed)
	assert.Len(t, result.Attempts, 3)
}

func TestProcess_ValidationExhaustionKeepsName(t *testing.T) {
	path := writeTestFile(t, "a.txt", "x")
	provider := &mockProvider{
		validateFn: func(call int, name string) (*ai.ValidateResult, error) {
			return &ai.ValidateResult{Passed: false, SuggestedFix: "still wrong"}, nil
		},
	}
	cfg := DefaultConfig()
	cfg.EnableValidation = true
	cfg.ValidationRetryCount = 3
	proc := NewProcessor(provider, cfg)

	result, err := proc.Process(context.Background(), path)
	require.NoError(t, err, "exhaustion is not a processing failure")

	assert.Len(t, provider.nameReqs, 3, "attempts are bounded")
	assert.Equal(t, "suggested-name.txt", result.SuggestedName, "best name survives")
	require.NotNil(t, result.ValidationPassed)
	assert.False(t, *result.ValidationPassed)
}

func TestProcess_ValidationProviderErrorIsAdvisory(t *testing.T) {
	path := writeTestFile(t, "a.txt", "x")
	provider := &mockProvider{
		validateFn: func(call int, name string) (*ai.ValidateResult, error) {
			return nil, ai.ErrUnavailable
		},
	}
	cfg := DefaultConfig()
	cfg.EnableValidation = true
	proc := NewProcessor(provider, cfg)

	result, err := proc.Process(context.Background(), path)
	require.NoError(t, err)
	assert.Equal(t, "suggested-name.txt", result.SuggestedName)
	assert.Nil(t, result.ValidationPassed, "no verdict when the validator never answered")
}

func TestProcess_NamingRetryErrorKeepsPreviousName(t *testing.T) {
	path := writeTestFile(t, "a.txt", "x")
	provider := &mockProvider{
		nameFn: func(call int, req ai.NameRequest) (*ai.NameResult, error) {
			if call > 1 {
				return nil, ai.ErrUnavailable
			}
			return &ai.NameResult{Name: "first-try"}, nil
		},
		validateFn: func(call int, name string) (*ai.ValidateResult, error) {
			return &ai.ValidateResult{Passed: false, SuggestedFix: "fix"}, nil
		},
	}
	cfg := DefaultConfig()
	cfg.EnableValidation = true
	proc := NewProcessor(provider, cfg)

	result, err := proc.Process(context.Background(), path)
	require.NoError(t, err)
	assert.Equal(t, "first-try.txt", result.SuggestedName)
}

func TestProcess_NamingErrorFirstAttemptFails(t *testing.T) {
	path := writeTestFile(t, "a.txt", "x")
	provider := &mockProvider{
		nameFn: func(call int, req ai.NameRequest) (*ai.NameResult, error) {
			return nil, ai.ErrUnavailable
		},
	}
	proc := NewProcessor(provider, DefaultConfig())

	_, err := proc.Process(context.Background(), path)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ai.ErrUnavailable))
}

func TestRegenerate_CarriesRejectionAndFeedback(t *testing.T) {
	path := writeTestFile(t, "report.DOCX", "quarterly numbers")
	provider := &mockProvider{
		nameFn: func(call int, req ai.NameRequest) (*ai.NameResult, error) {
			assert.Equal(t, "report", req.Category)
			assert.Equal(t, "old-name.docx", req.RejectedName)
			assert.Equal(t, "mention the quarter", req.UserFeedback)
			return &ai.NameResult{Name: "q3-2026-report"}, nil
		},
	}
	proc := NewProcessor(provider, DefaultConfig())

	prev := &models.ProcessResult{
		Category:        "report",
		AISuggestedName: "old-name.docx",
		SuggestedName:   "old-name.docx",
	}
	result, err := proc.Regenerate(context.Background(), path, prev, "mention the quarter")
	require.NoError(t, err)

	assert.Equal(t, "report", result.Category, "category is not re-derived")
	assert.Equal(t, "q3-2026-report.docx", result.SuggestedName)
}

func TestPreserveExtension(t *testing.T) {
	tests := []struct {
		name         string
		originalPath string
		suggested    string
		want         string
	}{
		{"adds missing extension", "photo.PNG", "beach-sunset", "beach-sunset.png"},
		{"replaces wrong extension", "scan.docx", "report.pdf", "report.docx"},
		{"lowercases original", "NOTES.TXT", "meeting-notes", "meeting-notes.txt"},
		{"keeps version suffix", "build.tar", "archive-v2.1", "archive-v2.1.tar"},
		{"no original extension", "README", "project-overview", "project-overview"},
		{"strips suggested when original has none", "Makefile", "build-rules.txt", "build-rules"},
		{"idempotent when already right", "a.pdf", "invoice.pdf", "invoice.pdf"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, PreserveExtension(tt.originalPath, tt.suggested))
		})
	}
}
