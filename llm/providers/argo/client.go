// Package argo implements a provider for the Argo inference gateway,
// an institutional proxy that fronts multiple hosted models. Requests
// authenticate with a gateway username rather than an API key.
package argo

import (
	"context"

	"github.com/switchyard-ai/switchyard/core"
	"github.com/switchyard-ai/switchyard/llm/providers"
)

const (
	defaultModel     = "gpt4o"
	defaultMaxTokens = 1000
)

type gatewayRequest struct {
	User        string   `json:"user"`
	Model       string   `json:"model"`
	System      string   `json:"system,omitempty"`
	Prompt      []string `json:"prompt"`
	Temperature float32  `json:"temperature,omitempty"`
	MaxTokens   int      `json:"max_tokens,omitempty"`
}

type gatewayResponse struct {
	Response string `json:"response"`
}

// Client implements core.LLMClient for the Argo gateway
type Client struct {
	base        *providers.BaseClient
	user        string
	model       string
	temperature float32
	maxTokens   int
}

// NewClient creates a new Argo gateway client. The gateway user is read
// from config.Extra["user"] when present.
func NewClient(config *providers.Config) *Client {
	model := config.Model
	if model == "" {
		model = defaultModel
	}
	maxTokens := config.MaxTokens
	if maxTokens <= 0 {
		maxTokens = defaultMaxTokens
	}
	user := ""
	if config.Extra != nil {
		if v, ok := config.Extra["user"].(string); ok {
			user = v
		}
	}

	return &Client{
		base:        providers.NewBaseClient("argo", config),
		user:        user,
		model:       model,
		temperature: config.Temperature,
		maxTokens:   maxTokens,
	}
}

// GenerateResponse generates a completion for the given prompt
func (c *Client) GenerateResponse(ctx context.Context, prompt string, options *core.LLMOptions) (*core.LLMResponse, error) {
	if err := c.base.RequireBaseURL(); err != nil {
		return nil, err
	}
	if c.user == "" {
		return nil, &core.CoreError{
			Op:      "argo.generate",
			Kind:    "config",
			Message: "gateway user not configured",
			Err:     core.ErrMissingConfiguration,
		}
	}

	opts := providers.ApplyDefaults(options, c.model, c.temperature, c.maxTokens)

	req := gatewayRequest{
		User:        c.user,
		Model:       opts.Model,
		System:      opts.SystemPrompt,
		Prompt:      []string{prompt},
		Temperature: opts.Temperature,
		MaxTokens:   opts.MaxTokens,
	}

	var resp gatewayResponse
	if err := c.base.DoJSONRequest(ctx, c.base.BaseURL, req, nil, &resp); err != nil {
		return nil, err
	}

	return &core.LLMResponse{
		Content: resp.Response,
		Model:   opts.Model,
	}, nil
}
