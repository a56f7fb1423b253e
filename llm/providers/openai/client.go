// Package openai implements the OpenAI chat completions provider.
// It also works against any OpenAI-compatible endpoint when a custom
// base URL is supplied.
package openai

import (
	"context"
	"fmt"

	"github.com/switchyard-ai/switchyard/core"
	"github.com/switchyard-ai/switchyard/llm/providers"
)

const (
	defaultBaseURL   = "https://api.openai.com/v1"
	defaultModel     = "gpt-4o-mini"
	defaultMaxTokens = 1000
)

// Client implements core.LLMClient for OpenAI
type Client struct {
	base        *providers.BaseClient
	model       string
	temperature float32
	maxTokens   int
}

// NewClient creates a new OpenAI client
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
		base:        providers.NewBaseClient("openai", config),
		model:       model,
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

	messages := []chatMessage{}
	if opts.SystemPrompt != "" {
		messages = append(messages, chatMessage{Role: "system", Content: opts.SystemPrompt})
	}
	messages = append(messages, chatMessage{Role: "user", Content: prompt})

	req := chatRequest{
		Model:       opts.Model,
		Messages:    messages,
		Temperature: opts.Temperature,
		MaxTokens:   opts.MaxTokens,
	}

	headers := map[string]string{
		"Authorization": "Bearer " + c.base.APIKey,
	}

	var resp chatResponse
	if err := c.base.DoJSONRequest(ctx, c.base.BaseURL+"/chat/completions", req, headers, &resp); err != nil {
		return nil, err
	}

	if len(resp.Choices) == 0 {
		return nil, &core.CoreError{
			Op:   "openai.generate",
			Kind: "provider",
			Err:  fmt.Errorf("%w: response contained no choices", core.ErrProvider),
		}
	}

	return &core.LLMResponse{
		Content: resp.Choices[0].Message.Content,
		Model:   resp.Model,
		Usage: core.TokenUsage{
			PromptTokens:     resp.Usage.PromptTokens,
			CompletionTokens: resp.Usage.CompletionTokens,
			TotalTokens:      resp.Usage.TotalTokens,
		},
	}, nil
}
