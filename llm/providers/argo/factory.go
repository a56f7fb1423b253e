package argo

import (
	"os"

	"github.com/switchyard-ai/switchyard/core"
	"github.com/switchyard-ai/switchyard/llm"
	"github.com/switchyard-ai/switchyard/llm/providers"
)

func init() {
	llm.MustRegister(&Factory{})
}

// Factory creates Argo gateway clients
type Factory struct{}

// Create creates a new Argo client from the given configuration
func (f *Factory) Create(config *llm.ClientConfig) core.LLMClient {
	baseURL := config.BaseURL
	if baseURL == "" {
		baseURL = os.Getenv("ARGO_BASE_URL")
	}

	extra := config.Extra
	if extra == nil {
		extra = make(map[string]interface{})
	}
	if _, ok := extra["user"]; !ok {
		if user := os.Getenv("ARGO_USER"); user != "" {
			extra["user"] = user
		}
	}

	return NewClient(&providers.Config{
		BaseURL:     baseURL,
		Timeout:     config.Timeout,
		MaxRetries:  config.MaxRetries,
		Model:       config.Model,
		Temperature: config.Temperature,
		MaxTokens:   config.MaxTokens,
		Logger:      config.Logger,
		Telemetry:   config.Telemetry,
		Headers:     config.Headers,
		Extra:       extra,
	})
}

// DetectEnvironment checks for Argo gateway settings
func (f *Factory) DetectEnvironment() (int, bool) {
	if os.Getenv("ARGO_BASE_URL") != "" && os.Getenv("ARGO_USER") != "" {
		return 60, true
	}
	return 0, false
}

// Name returns the provider name
func (f *Factory) Name() string {
	return "argo"
}

// Description returns a human-readable description
func (f *Factory) Description() string {
	return "Argo inference gateway for institutionally hosted models"
}
