// Package narrative generates the promotional story text attached to a
// product at creation time.
package narrative

import (
	"context"
	"fmt"
	"time"

	appconfig "artisan-market/internal/config"

	"google.golang.org/genai"
)

const promptTemplate = "Share some historical background about %s such that the reader feels like they should buy one. in about 120 words"

// Generator produces marketing prose for a product name. The product
// service treats generation failure as non-fatal.
type Generator interface {
	Generate(ctx context.Context, productName string) (string, error)
}

// GeminiClient calls the Gemini API with a fixed prompt template. The
// output is non-deterministic; identical names produce different text.
type GeminiClient struct {
	client  *genai.Client
	model   string
	timeout time.Duration
}

// NewGeminiClient creates a Gemini-backed Generator.
func NewGeminiClient(ctx context.Context, cfg appconfig.GeminiConfig) (*GeminiClient, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("gemini API key is required")
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey: cfg.APIKey,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create gemini client: %w", err)
	}

	model := cfg.Model
	if model == "" {
		model = "gemini-2.5-flash-lite"
	}
	timeout := time.Duration(cfg.Timeout) * time.Second
	if timeout <= 0 {
		timeout = 15 * time.Second
	}

	return &GeminiClient{client: client, model: model, timeout: timeout}, nil
}

// Generate requests roughly 120 words of promotional historical context
// for the product. The call is bounded by the configured timeout.
func (c *GeminiClient) Generate(ctx context.Context, productName string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	result, err := c.client.Models.GenerateContent(ctx,
		c.model,
		genai.Text(fmt.Sprintf(promptTemplate, productName)),
		nil,
	)
	if err != nil {
		return "", fmt.Errorf("failed to generate story: %w", err)
	}

	text := result.Text()
	if text == "" {
		return "", fmt.Errorf("empty story response")
	}

	return text, nil
}
