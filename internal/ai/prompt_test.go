package ai

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/filewise/filewise/internal/models"
)

func TestBuildCategorizePrompt(t *testing.T) {
	system, user := buildCategorizePrompt(FileRef{
		Path:    "/docs/scan-001.pdf",
		Content: "INVOICE #4411 Acme Corp",
	})

	assert.Contains(t, system, "JSON")
	assert.Contains(t, system, `"category"`)
	assert.Contains(t, system, `"reasoning"`)

	assert.Contains(t, user, "scan-001.pdf")
	assert.NotContains(t, user, "/docs/", "prompt should carry the basename, not the full path")
	assert.Contains(t, user, "INVOICE #4411")
}

func TestBuildNamePrompt(t *testing.T) {
	base := NameRequest{
		File:     FileRef{Path: "/docs/scan-001.pdf", Content: "INVOICE #4411 Acme Corp"},
		Category: "invoice",
	}

	t.Run("initial naming", func(t *testing.T) {
		system, user := buildNamePrompt(base)

		assert.Contains(t, system, `"name"`)
		assert.Contains(t, system, "Do not include a file extension")
		assert.Contains(t, user, "Category: invoice")
		assert.NotContains(t, user, "rejected")
		assert.NotContains(t, user, "quality check")
	})

	t.Run("regeneration folds in rejected name and feedback", func(t *testing.T) {
		req := base
		req.RejectedName = "acme-document"
		req.UserFeedback = "include the invoice number"
		_, user := buildNamePrompt(req)

		assert.Contains(t, user, "acme-document")
		assert.Contains(t, user, "include the invoice number")
	})

	t.Run("validation retry folds in fix", func(t *testing.T) {
		req := base
		req.ValidatorFix = "add the billing period"
		_, user := buildNamePrompt(req)

		assert.Contains(t, user, "add the billing period")
	})
}

func TestBuildValidatePrompt(t *testing.T) {
	system, user := buildValidatePrompt(
		FileRef{Path: "/docs/scan-001.pdf", Content: "INVOICE #4411"},
		"acme-invoice-4411", "invoice")

	assert.Contains(t, system, `"passed"`)
	assert.Contains(t, system, `"suggested_fix"`)
	assert.Contains(t, user, "acme-invoice-4411")
	assert.Contains(t, user, "Category: invoice")
}

func TestStripFencing(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"no fencing", `{"a":1}`, `{"a":1}`},
		{"plain fence", "```\n{\"a\":1}\n```", `{"a":1}`},
		{"json fence", "```json\n{\"a\":1}\n```", `{"a":1}`},
		{"surrounding whitespace", "  {\"a\":1}\n", `{"a":1}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, stripFencing(tt.in))
		})
	}
}

func TestModelConfigFor(t *testing.T) {
	cfg := ModelConfig{
		Default:  "claude-haiku-4-5-20251001",
		Validate: "claude-sonnet-4-5-20250929",
	}

	assert.Equal(t, "claude-haiku-4-5-20251001", cfg.For(models.StageCategorize))
	assert.Equal(t, "claude-haiku-4-5-20251001", cfg.For(models.StageName))
	assert.Equal(t, "claude-sonnet-4-5-20250929", cfg.For(models.StageValidate))
}
