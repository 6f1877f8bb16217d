// Package pipeline drives files through the categorize/name/validate stages
// and dispatches batches of them under a concurrency cap.
package pipeline

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"
	"unicode"

	"github.com/filewise/filewise/internal/ai"
	"github.com/filewise/filewise/internal/models"
)

// defaultMaxContentBytes caps how much file content is sent to the provider.
const defaultMaxContentBytes = 16 * 1024

// Config controls the per-file pipeline.
type Config struct {
	// EnableValidation gates the AI quality check on generated names.
	EnableValidation bool
	// ValidationRetryCount caps naming attempts in the validation loop.
	ValidationRetryCount int
	// MaxContentBytes limits how much of each file is sent to the provider.
	MaxContentBytes int
}

// DefaultConfig returns the pipeline defaults.
func DefaultConfig() Config {
	return Config{
		EnableValidation:     false,
		ValidationRetryCount: 3,
		MaxContentBytes:      defaultMaxContentBytes,
	}
}

// Processor runs one file through the pipeline by calling the AI provider.
type Processor struct {
	provider ai.Provider
	cfg      Config
}

// NewProcessor creates a processor backed by the given provider.
func NewProcessor(provider ai.Provider, cfg Config) *Processor {
	if cfg.ValidationRetryCount <= 0 {
		cfg.ValidationRetryCount = 3
	}
	if cfg.MaxContentBytes <= 0 {
		cfg.MaxContentBytes = defaultMaxContentBytes
	}
	return &Processor{provider: provider, cfg: cfg}
}

// Process categorizes and names one file. Provider failures surface as
// errors; validation exhaustion does not — the best available name is
// returned tagged as unvalidated, since a usable suggestion beats none.
func (p *Processor) Process(ctx context.Context, path string) (*models.ProcessResult, error) {
	ref, err := p.readFileRef(path)
	if err != nil {
		return nil, err
	}

	result := &models.ProcessResult{}

	start := time.Now()
	cat, err := p.provider.Categorize(ctx, ref)
	if err != nil {
		return nil, fmt.Errorf("categorize %s: %w", path, err)
	}
	result.Category = cat.Category
	result.Timings = append(result.Timings, models.StageTiming{
		Stage:      models.StageCategorize,
		Model:      p.provider.ModelFor(models.StageCategorize),
		DurationMS: time.Since(start).Milliseconds(),
	})

	if err := p.nameAndValidate(ctx, ref, result, ai.NameRequest{File: ref, Category: cat.Category}); err != nil {
		return nil, err
	}
	return result, nil
}

// Regenerate re-runs the naming stage for a file that already has a result,
// folding the rejected name and optional user feedback into the prompt. The
// caller records the implicit rejection in the feedback tracker beforehand.
func (p *Processor) Regenerate(ctx context.Context, path string, prev *models.ProcessResult, userFeedback string) (*models.ProcessResult, error) {
	ref, err := p.readFileRef(path)
	if err != nil {
		return nil, err
	}

	result := &models.ProcessResult{Category: prev.Category}
	req := ai.NameRequest{
		File:         ref,
		Category:     prev.Category,
		RejectedName: prev.SuggestedName,
		UserFeedback: userFeedback,
	}
	if err := p.nameAndValidate(ctx, ref, result, req); err != nil {
		return nil, err
	}
	return result, nil
}

// nameAndValidate runs the naming stage and, when enabled, the bounded
// validation retry loop. The final attempt's name becomes the suggestion;
// both AISuggestedName and SuggestedName start equal to it.
func (p *Processor) nameAndValidate(ctx context.Context, ref ai.FileRef, result *models.ProcessResult, req ai.NameRequest) error {
	maxAttempts := 1
	if p.cfg.EnableValidation {
		maxAttempts = p.cfg.ValidationRetryCount
	}

	var nameMS, validateMS int64
	var name string

	for attempt := 1; attempt <= maxAttempts; attempt++ {
		start := time.Now()
		nameRes, err := p.provider.GenerateName(ctx, req)
		nameMS += time.Since(start).Milliseconds()
		if err != nil {
			if attempt == 1 {
				return fmt.Errorf("generate name for %s: %w", ref.Path, err)
			}
			// A retry failed after we already have a usable name; keep it.
			break
		}
		name = PreserveExtension(ref.Path, nameRes.Name)

		if !p.cfg.EnableValidation {
			break
		}

		start = time.Now()
		valRes, err := p.provider.ValidateName(ctx, ref, name, req.Category)
		elapsed := time.Since(start).Milliseconds()
		validateMS += elapsed
		if err != nil {
			// Validation is advisory; a provider failure here never loses
			// the generated name.
			break
		}

		result.Attempts = append(result.Attempts, models.ValidationAttempt{
			Attempt:      attempt,
			Name:         name,
			Passed:       valRes.Passed,
			SuggestedFix: valRes.SuggestedFix,
			DurationMS:   elapsed,
		})

		passed := valRes.Passed
		result.ValidationPassed = &passed
		if passed {
			break
		}
		req.ValidatorFix = valRes.SuggestedFix
	}

	result.AISuggestedName = name
	result.SuggestedName = name
	result.Timings = append(result.Timings, models.StageTiming{
		Stage:      models.StageName,
		Model:      p.provider.ModelFor(models.StageName),
		DurationMS: nameMS,
	})
	if validateMS > 0 {
		result.Timings = append(result.Timings, models.StageTiming{
			Stage:      models.StageValidate,
			Model:      p.provider.ModelFor(models.StageValidate),
			DurationMS: validateMS,
		})
	}
	return nil
}

// readFileRef loads up to MaxContentBytes of the file for prompting.
func (p *Processor) readFileRef(path string) (ai.FileRef, error) {
	f, err := os.Open(path)
	if err != nil {
		return ai.FileRef{}, fmt.Errorf("open file: %w", err)
	}
	defer func() { _ = f.Close() }()

	buf := make([]byte, p.cfg.MaxContentBytes)
	n, err := f.Read(buf)
	if err != nil && err != io.EOF {
		return ai.FileRef{}, fmt.Errorf("read file: %w", err)
	}
	return ai.FileRef{Path: path, Content: string(buf[:n])}, nil
}

// PreserveExtension discards whatever extension the provider generated and
// appends the original file's extension, lowercased. This holds for every
// suggestion the pipeline emits, not just as a default.
func PreserveExtension(originalPath, suggested string) string {
	origExt := strings.ToLower(filepath.Ext(originalPath))

	if ext := filepath.Ext(suggested); looksLikeExtension(ext) {
		suggested = strings.TrimSuffix(suggested, ext)
	}
	return suggested + origExt
}

// looksLikeExtension reports whether ext (including the dot) is a plausible
// file extension rather than part of the name, e.g. the ".1" in "report-v2.1".
func looksLikeExtension(ext string) bool {
	if len(ext) < 2 || len(ext) > 8 {
		return false
	}
	rest := ext[1:]
	if !unicode.IsLetter(rune(rest[0])) {
		return false
	}
	for _, r := range rest {
		if !unicode.IsLetter(r) && !unicode.IsDigit(r) {
			return false
		}
	}
	return true
}
