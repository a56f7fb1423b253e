package openai

import (
	"os"

	"github.com/switchyard-ai/switchyard/core"
	"github.com/switchyard-ai/switchyard/llm"
	"github.com/switchyard-ai/switchyard/llm/providers"
)

func init() {
	llm.MustRegister(&Factory{})
}

// Factory creates OpenAI clients
type Factory struct{}

// Create creates a new OpenAI client from the given configuration
func (f *Factory) Create(config *llm.ClientConfig) core.LLMClient {
	apiKey := config.APIKey
	if apiKey == "" {
		apiKey = os.Getenv("OPENAI_API_KEY")
	}
	baseURL := config.BaseURL
	if baseURL == "" {
		baseURL = os.Getenv("OPENAI_BASE_URL")
	}

	return NewClient(&providers.Config{
		APIKey:      apiKey,
		BaseURL:     baseURL,
		Timeout:     config.Timeout,
		MaxRetries:  config.MaxRetries,
		Model:       config.Model,
		Temperature: config.Temperature,
		MaxTokens:   config.MaxTokens,
		Logger:      config.Logger,
		Telemetry:   config.Telemetry,
		Headers:     config.Headers,
		Extra:       config.Extra,
	})
}

// DetectEnvironment checks for OpenAI credentials
func (f *Factory) DetectEnvironment() (int, bool) {
	if os.Getenv("OPENAI_API_KEY") != "" {
		return 80, true
	}
	return 0, false
}

// Name returns the provider name
func (f *Factory) Name() string {
	return "openai"
}

// Description returns a human-readable description
func (f *Factory) Description() string {
	return "OpenAI models and OpenAI-compatible endpoints"
}
