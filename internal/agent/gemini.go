package agent

import (
	"context"
	"errors"
	"fmt"
	"strings"

	genai "google.golang.org/genai"
)

// GeminiClient is a thin wrapper around the official genai client bound to
// one model. Rate limiting, retries and logging are layered on by Client.
type GeminiClient struct {
	cli   *genai.Client
	model string
}

// NewGeminiClient creates a genai client for the Gemini API. The returned
// value is bound to model; use WithModel to address other models over the
// same connection.
func NewGeminiClient(ctx context.Context, apiKey, model string) (*GeminiClient, error) {
	if strings.TrimSpace(apiKey) == "" {
		return nil, errors.New("gemini API key is required")
	}
	cli, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("creating genai client: %w", err)
	}
	return &GeminiClient{cli: cli, model: model}, nil
}

// WithModel returns a client for another model sharing the connection.
func (g *GeminiClient) WithModel(model string) *GeminiClient {
	return &GeminiClient{cli: g.cli, model: model}
}

func (g *GeminiClient) Model() string { return g.model }

// Complete sends the prompt as a single user turn.
func (g *GeminiClient) Complete(ctx context.Context, prompt string) (string, error) {
	resp, err := g.cli.Models.GenerateContent(ctx, g.model,
		[]*genai.Content{genai.NewContentFromText(prompt, genai.RoleUser)},
		nil,
	)
	if err != nil {
		return "", fmt.Errorf("gemini %s: %w", g.model, err)
	}
	if resp == nil || len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return "", fmt.Errorf("gemini %s: empty response", g.model)
	}

	var b strings.Builder
	for _, part := range resp.Candidates[0].Content.Parts {
		if part != nil {
			b.WriteString(part.Text)
		}
	}
	return b.String(), nil
}

// GeminiFactory builds per-model clients for the endpoint selector.
func GeminiFactory(base *GeminiClient) ClientFactory {
	return func(ctx context.Context, model string) (AIClient, error) {
		return base.WithModel(model), nil
	}
}
