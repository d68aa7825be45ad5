// Package genai wraps the Gemini generateContent endpoint behind a single prompt-in, text-out call.
package genai

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"google.golang.org/api/generativelanguage/v1beta"
	"google.golang.org/api/option"

	"github.com/loggas/loggas-backend/pkg/config"
)

// ErrEmptyResponse is returned when the model answers without any text part.
var ErrEmptyResponse = errors.New("genai: empty response")

// ErrDisabled is returned by a client built without an API key.
var ErrDisabled = errors.New("genai: api key not configured")

// TextGenerator is the surface domain code depends on.
type TextGenerator interface {
	Generate(ctx context.Context, prompt string) (string, error)
}

type Client struct {
	svc     *generativelanguage.Service
	model   string
	timeout time.Duration
}

// NewClient returns a client for cfg. A blank API key yields a client whose
// Generate always fails with ErrDisabled so callers fall back cleanly.
func NewClient(ctx context.Context, cfg config.GeminiConfig) (*Client, error) {
	client := &Client{
		model:   modelName(cfg.Model),
		timeout: cfg.Timeout,
	}
	if strings.TrimSpace(cfg.APIKey) == "" {
		return client, nil
	}
	svc, err := generativelanguage.NewService(ctx, option.WithAPIKey(cfg.APIKey))
	if err != nil {
		return nil, fmt.Errorf("create gemini service: %w", err)
	}
	client.svc = svc
	return client, nil
}

func (c *Client) Generate(ctx context.Context, prompt string) (string, error) {
	if c == nil || c.svc == nil {
		return "", ErrDisabled
	}
	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}
	req := &generativelanguage.GenerateContentRequest{
		Contents: []*generativelanguage.Content{{
			Role:  "user",
			Parts: []*generativelanguage.Part{{Text: prompt}},
		}},
	}
	resp, err := c.svc.Models.GenerateContent(c.model, req).Context(ctx).Do()
	if err != nil {
		return "", fmt.Errorf("gemini generate: %w", err)
	}
	text := ExtractText(resp)
	if text == "" {
		return "", ErrEmptyResponse
	}
	return text, nil
}

// ExtractText joins the text parts of the first candidate that has any.
func ExtractText(resp *generativelanguage.GenerateContentResponse) string {
	if resp == nil {
		return ""
	}
	for _, candidate := range resp.Candidates {
		if candidate == nil || candidate.Content == nil {
			continue
		}
		var parts []string
		for _, part := range candidate.Content.Parts {
			if part != nil && strings.TrimSpace(part.Text) != "" {
				parts = append(parts, strings.TrimSpace(part.Text))
			}
		}
		if len(parts) > 0 {
			return strings.Join(parts, "\n")
		}
	}
	return ""
}

func modelName(model string) string {
	model = strings.TrimSpace(model)
	if model == "" {
		model = "gemini-2.0-flash"
	}
	if strings.HasPrefix(model, "models/") {
		return model
	}
	return "models/" + model
}
