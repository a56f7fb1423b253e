package anthropic

import (
	"os"

	"github.com/switchyard-ai/switchyard/core"
	"github.com/switchyard-ai/switchyard/llm"
	"github.com/switchyard-ai/switchyard/llm/providers"
)

func init() {
	llm.MustRegister(&Factory{})
}

// Factory creates Anthropic clients
type Factory struct{}

// Create creates a new Anthropic client from the given configuration
func (f *Factory) Create(config *llm.ClientConfig) core.LLMClient {
	apiKey := config.APIKey
	if apiKey == "" {
		apiKey = os.Getenv("ANTHROPIC_API_KEY")
	}
	baseURL := config.BaseURL
	if baseURL == "" {
		baseURL = os.Getenv("ANTHROPIC_BASE_URL")
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

// DetectEnvironment checks for Anthropic credentials
func (f *Factory) DetectEnvironment() (int, bool) {
	if os.Getenv("ANTHROPIC_API_KEY") != "" {
		return 90, true
	}
	return 0, false
}

// Name returns the provider name
func (f *Factory) Name() string {
	return "anthropic"
}

// Description returns a human-readable description
func (f *Factory) Description() string {
	return "Anthropic Claude models via the Messages API"
}
