// Package ollama implements a provider for locally hosted models
// served by Ollama. A base URL is required; there is no hosted default.
package ollama

import (
	"context"

	"github.com/switchyard-ai/switchyard/core"
	"github.com/switchyard-ai/switchyard/llm/providers"
)

const (
	defaultModel     = "llama3.1"
	defaultMaxTokens = 1000
)

type generateRequest struct {
	Model   string          `json:"model"`
	Prompt  string          `json:"prompt"`
	System  string          `json:"system,omitempty"`
	Stream  bool            `json:"stream"`
	Options generateOptions `json:"options,omitempty"`
}

type generateOptions struct {
	Temperature float32 `json:"temperature,omitempty"`
	NumPredict  int     `json:"num_predict,omitempty"`
}

type generateResponse struct {
	Model           string `json:"model"`
	Response        string `json:"response"`
	Done            bool   `json:"done"`
	PromptEvalCount int    `json:"prompt_eval_count"`
	EvalCount       int    `json:"eval_count"`
}

// Client implements core.LLMClient for Ollama
type Client struct {
	base        *providers.BaseClient
	model       string
	temperature float32
	maxTokens   int
}

// NewClient creates a new Ollama client
func NewClient(config *providers.Config) *Client {
	model := config.Model
	if model == "" {
		model = defaultModel
	}
	maxTokens := config.MaxTokens
	if maxTokens <= 0 {
		maxTokens = defaultMaxTokens
	}

	return &Client{
		base:        providers.NewBaseClient("ollama", config),
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

	opts := providers.ApplyDefaults(options, c.model, c.temperature, c.maxTokens)

	req := generateRequest{
		Model:  opts.Model,
		Prompt: prompt,
		System: opts.SystemPrompt,
		Stream: false,
		Options: generateOptions{
			Temperature: opts.Temperature,
			NumPredict:  opts.MaxTokens,
		},
	}

	var resp generateResponse
	if err := c.base.DoJSONRequest(ctx, c.base.BaseURL+"/api/generate", req, nil, &resp); err != nil {
		return nil, err
	}

	return &core.LLMResponse{
		Content: resp.Response,
		Model:   resp.Model,
		Usage: core.TokenUsage{
			PromptTokens:     resp.PromptEvalCount,
			CompletionTokens: resp.EvalCount,
			TotalTokens:      resp.PromptEvalCount + resp.EvalCount,
		},
	}, nil
}
