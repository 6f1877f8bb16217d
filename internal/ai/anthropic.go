package ai

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	"github.com/filewise/filewise/internal/models"
)

// Client implements Provider on top of the Anthropic API.
type Client struct {
	api    *anthropic.Client
	models ModelConfig
}

// NewClient creates an Anthropic-backed provider with the given API key and
// per-stage model configuration.
func NewClient(apiKey string, cfg ModelConfig) *Client {
	opts := []option.RequestOption{}
	if apiKey != "" {
		opts = append(opts, option.WithAPIKey(apiKey))
	}
	client := anthropic.NewClient(opts...)
	return &Client{
		api:    &client,
		models: cfg,
	}
}

// ModelFor reports the model configured for a stage.
func (c *Client) ModelFor(stage models.Stage) string {
	return c.models.For(stage)
}

// Categorize asks the model to classify the file.
func (c *Client) Categorize(ctx context.Context, file FileRef) (*CategorizeResult, error) {
	system, user := buildCategorizePrompt(file)

	text, err := c.complete(ctx, models.StageCategorize, system, user)
	if err != nil {
		return nil, err
	}

	var parsed struct {
		Category  string `json:"category"`
		Reasoning string `json:"reasoning"`
	}
	if err := json.Unmarshal([]byte(text), &parsed); err != nil {
		return nil, fmt.Errorf("parse categorize response as JSON: %w\nraw response: %s", err, text)
	}
	if parsed.Category == "" {
		return nil, fmt.Errorf("empty category in response: %s", text)
	}

	return &CategorizeResult{
		Category:  strings.ToLower(strings.TrimSpace(parsed.Category)),
		Reasoning: parsed.Reasoning,
		Raw:       text,
	}, nil
}

// GenerateName asks the model to propose a filename.
func (c *Client) GenerateName(ctx context.Context, req NameRequest) (*NameResult, error) {
	system, user := buildNamePrompt(req)

	text, err := c.complete(ctx, models.StageName, system, user)
	if err != nil {
		return nil, err
	}

	var parsed struct {
		Name      string `json:"name"`
		Reasoning string `json:"reasoning"`
	}
	if err := json.Unmarshal([]byte(text), &parsed); err != nil {
		return nil, fmt.Errorf("parse name response as JSON: %w\nraw response: %s", err, text)
	}
	if strings.TrimSpace(parsed.Name) == "" {
		return nil, fmt.Errorf("empty name in response: %s", text)
	}

	return &NameResult{
		Name:      strings.TrimSpace(parsed.Name),
		Reasoning: parsed.Reasoning,
		Raw:       text,
	}, nil
}

// ValidateName asks the model to judge a proposed filename.
func (c *Client) ValidateName(ctx context.Context, file FileRef, name, category string) (*ValidateResult, error) {
	system, user := buildValidatePrompt(file, name, category)

	text, err := c.complete(ctx, models.StageValidate, system, user)
	if err != nil {
		return nil, err
	}

	var parsed struct {
		Passed       bool   `json:"passed"`
		SuggestedFix string `json:"suggested_fix"`
		Reasoning    string `json:"reasoning"`
	}
	if err := json.Unmarshal([]byte(text), &parsed); err != nil {
		return nil, fmt.Errorf("parse validate response as JSON: %w\nraw response: %s", err, text)
	}

	return &ValidateResult{
		Passed:       parsed.Passed,
		SuggestedFix: parsed.SuggestedFix,
		Reasoning:    parsed.Reasoning,
		Raw:          text,
	}, nil
}

// complete sends one message to the API and returns the fenced-stripped text
// of the response.
func (c *Client) complete(ctx context.Context, stage models.Stage, system, user string) (string, error) {
	msg, err := c.api.Messages.New(ctx, anthropic.MessageNewParams{
		Model:     anthropic.Model(c.models.For(stage)),
		MaxTokens: 1024,
		System: []anthropic.TextBlockParam{
			{Text: system},
		},
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(user)),
		},
	})
	if err != nil {
		return "", classifyErr(err)
	}

	var text string
	for _, block := range msg.Content {
		if block.Type == "text" {
			text = block.Text
			break
		}
	}
	if text == "" {
		return "", fmt.Errorf("no text content in API response")
	}

	return stripFencing(text), nil
}

// classifyErr tags transport-level failures with ErrUnavailable so the
// pipeline can distinguish "provider down" from "model returned garbage".
func classifyErr(err error) error {
	if errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	var apiErr *anthropic.Error
	if errors.As(err, &apiErr) && (apiErr.StatusCode == 529 || apiErr.StatusCode == 503 || apiErr.StatusCode == 429) {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return fmt.Errorf("anthropic API call: %w", err)
}
