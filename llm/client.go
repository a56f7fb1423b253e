// Package llm provides LLM client creation with pluggable providers.
//
// Providers register themselves through init() side effects, so callers
// import the ones they want:
//
//	import (
//	    "github.com/switchyard-ai/switchyard/llm"
//	    _ "github.com/switchyard-ai/switchyard/llm/providers/anthropic"
//	)
//
//	client, err := llm.NewClient(llm.WithProvider("anthropic"))
//
// With no explicit provider, NewClient probes the environment and picks
// the best available one.
package llm

import (
	"time"

	"github.com/switchyard-ai/switchyard/core"
)

// NewClient creates a new LLM client with the given options.
// If no provider is specified, it auto-detects from the environment.
func NewClient(options ...Option) (core.LLMClient, error) {
	config := &ClientConfig{
		Provider:    string(ProviderAuto),
		Timeout:     30 * time.Second,
		MaxRetries:  3,
		Temperature: 0.7,
		MaxTokens:   1000,
	}

	for _, opt := range options {
		opt(config)
	}

	if config.Logger == nil {
		config.Logger = &core.NoOpLogger{}
	}

	providerName := config.Provider
	if providerName == "" || providerName == string(ProviderAuto) {
		detected, err := detectBestProvider(config.Logger)
		if err != nil {
			return nil, &core.CoreError{
				Op:      "llm.NewClient",
				Kind:    "config",
				Message: "no LLM provider available, set credentials or specify one explicitly",
				Err:     core.ErrMissingConfiguration,
			}
		}
		providerName = detected
	}

	factory, exists := GetProvider(providerName)
	if !exists {
		return nil, &core.CoreError{
			Op:      "llm.NewClient",
			Kind:    "config",
			ID:      providerName,
			Message: "unknown provider, did you import its package?",
			Err:     core.ErrInvalidConfiguration,
		}
	}

	config.Provider = providerName

	config.Logger.Debug("Creating LLM client", map[string]interface{}{
		"operation":   "llm_client_create",
		"provider":    providerName,
		"model":       config.Model,
		"max_retries": config.MaxRetries,
		"timeout":     config.Timeout.String(),
	})

	return factory.Create(config), nil
}
