package ai

import (
	"path/filepath"
	"strings"
)

// buildCategorizePrompt constructs the system and user prompts for file
// categorization.
func buildCategorizePrompt(file FileRef) (system string, user string) {
	system = `You categorize files for a document organizer. Return ONLY a JSON object with these fields:
- "category": a short lowercase category for the file (e.g. "invoice", "receipt", "photo", "contract", "note", "report")
- "reasoning": one sentence explaining the choice

Rules:
- Prefer an established, general category over an overly specific one
- Base the category on the file content; use the filename only as a hint
- Return valid JSON only, no markdown fencing or explanation`

	var sb strings.Builder
	sb.WriteString("Filename: ")
	sb.WriteString(filepath.Base(file.Path))
	sb.WriteString("\n\nFile content:\n\n")
	sb.WriteString(file.Content)
	user = sb.String()
	return
}

// buildNamePrompt constructs the system and user prompts for name generation.
// Regeneration context (rejected name, user feedback) and validator fixes are
// folded into the user prompt when present.
func buildNamePrompt(req NameRequest) (system string, user string) {
	system = `You propose descriptive filenames for a document organizer. Return ONLY a JSON object with these fields:
- "name": the proposed filename, lowercase words separated by hyphens, no extension
- "reasoning": one sentence explaining the choice

Rules:
- The name must describe the file's content, not its origin
- Keep it under 60 characters
- Do not include a file extension; the original extension is kept by the caller
- Return valid JSON only, no markdown fencing or explanation`

	var sb strings.Builder
	sb.WriteString("Category: ")
	sb.WriteString(req.Category)
	sb.WriteString("\nFilename: ")
	sb.WriteString(filepath.Base(req.File.Path))
	sb.WriteString("\n")
	if req.RejectedName != "" {
		sb.WriteString("\nA previous suggestion was rejected by the user: ")
		sb.WriteString(req.RejectedName)
		sb.WriteString("\nPropose a different name.\n")
	}
	if req.UserFeedback != "" {
		sb.WriteString("\nUser feedback on the previous suggestion:\n")
		sb.WriteString(req.UserFeedback)
		sb.WriteString("\n")
	}
	if req.ValidatorFix != "" {
		sb.WriteString("\nA quality check flagged the previous attempt. Apply this fix:\n")
		sb.WriteString(req.ValidatorFix)
		sb.WriteString("\n")
	}
	sb.WriteString("\nFile content:\n\n")
	sb.WriteString(req.File.Content)
	user = sb.String()
	return
}

// buildValidatePrompt constructs the system and user prompts for the name
// quality check.
func buildValidatePrompt(file FileRef, name, category string) (system string, user string) {
	system = `You judge whether a proposed filename meets quality criteria for a document organizer. Return ONLY a JSON object with these fields:
- "passed": true if the name is acceptable, false otherwise
- "suggested_fix": when passed is false, a short instruction describing how to fix the name (empty string when passed)
- "reasoning": one sentence explaining the judgment

Quality criteria:
- The name is descriptive of the file's content
- Lowercase words separated by hyphens, no extension
- Consistent with the category (e.g. an invoice name mentions the vendor or period)
- Return valid JSON only, no markdown fencing or explanation`

	var sb strings.Builder
	sb.WriteString("Category: ")
	sb.WriteString(category)
	sb.WriteString("\nProposed name: ")
	sb.WriteString(name)
	sb.WriteString("\nOriginal filename: ")
	sb.WriteString(filepath.Base(file.Path))
	sb.WriteString("\n\nFile content:\n\n")
	sb.WriteString(file.Content)
	user = sb.String()
	return
}

// stripFencing removes markdown code fencing from a model response.
func stripFencing(text string) string {
	text = strings.TrimSpace(text)
	if strings.HasPrefix(text, "```") {
		lines := strings.SplitN(text, "\n", 2)
		if len(lines) > 1 {
			text = lines[1]
		}
		if idx := strings.LastIndex(text, "```"); idx >= 0 {
			text = text[:idx]
		}
		text = strings.TrimSpace(text)
	}
	return text
}
