// Package anthropic implements the Anthropic Messages API provider.
package anthropic

import (
	"context"

	"github.com/switchyard-ai/switchyard/core"
	"github.com/switchyard-ai/switchyard/llm/providers"
)

const (
	defaultBaseURL   = "https://api.anthropic.com"
	defaultModel     = "claude-sonnet-4-20250514"
	defaultMaxTokens = 1000
	apiVersion       = "2023-06-01"
)

// Client implements core.LLMClient for Anthropic
type Client struct {
	base        *providers.BaseClient
	model       string
	temperature float32
	maxTokens   int
}

// NewClient creates a new Anthropic client
func NewClient(config *providers.Config) *Client {
	if config.BaseURL == "" {
		config.BaseURL = defaultBaseURL
	}
	model := config.Model
	if model == "" {
		model = defaultModel
	}
	maxTokens := config.MaxTokens
	if maxTokens <= 0 {
		maxTokens = defaultMaxTokens
	}

	return &Client{
		base:        providers.NewBaseClient("anthropic", config),
		model:       resolveModel(model),
		temperature: config.Temperature,
		maxTokens:   maxTokens,
	}
}

// GenerateResponse generates a completion for the given prompt
func (c *Client) GenerateResponse(ctx context.Context, prompt string, options *core.LLMOptions) (*core.LLMResponse, error) {
	if err := c.base.RequireAPIKey(); err != nil {
		return nil, err
	}

	opts := providers.ApplyDefaults(options, c.model, c.temperature, c.maxTokens)

	req := messagesRequest{
		Model:       resolveModel(opts.Model),
		MaxTokens:   opts.MaxTokens,
		Temperature: opts.Temperature,
		System:      opts.SystemPrompt,
		Messages: []message{
			{Role: "user", Content: prompt},
		},
	}

	headers := map[string]string{
		"x-api-key":         c.base.APIKey,
		"anthropic-version": apiVersion,
	}

	var resp messagesResponse
	if err := c.base.DoJSONRequest(ctx, c.base.BaseURL+"/v1/messages", req, headers, &resp); err != nil {
		return nil, err
	}

	var content string
	for _, block := range resp.Content {
		if block.Type == "text" {
			content += block.Text
		}
	}

	return &core.LLMResponse{
		Content: content,
		Model:   resp.Model,
		Usage: core.TokenUsage{
			PromptTokens:     resp.Usage.InputTokens,
			CompletionTokens: resp.Usage.OutputTokens,
			TotalTokens:      resp.Usage.InputTokens + resp.Usage.OutputTokens,
		},
	}, nil
}
