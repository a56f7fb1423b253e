package ollama

import (
	"net"
	"net/url"
	"os"
	"time"

	"github.com/switchyard-ai/switchyard/core"
	"github.com/switchyard-ai/switchyard/llm"
	"github.com/switchyard-ai/switchyard/llm/providers"
)

func init() {
	llm.MustRegister(&Factory{})
}

// Factory creates Ollama clients
type Factory struct{}

// Create creates a new Ollama client from the given configuration
func (f *Factory) Create(config *llm.ClientConfig) core.LLMClient {
	baseURL := config.BaseURL
	if baseURL == "" {
		baseURL = os.Getenv("OLLAMA_BASE_URL")
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
		Extra:       config.Extra,
	})
}

// DetectEnvironment checks whether an Ollama server is reachable
func (f *Factory) DetectEnvironment() (int, bool) {
	baseURL := os.Getenv("OLLAMA_BASE_URL")
	if baseURL == "" {
		return 0, false
	}

	u, err := url.Parse(baseURL)
	if err != nil || u.Host == "" {
		return 0, false
	}
	conn, err := net.DialTimeout("tcp", u.Host, 500*time.Millisecond)
	if err != nil {
		// URL configured but server not up, still usable later
		return 20, true
	}
	conn.Close()
	return 40, true
}

// Name returns the provider name
func (f *Factory) Name() string {
	return "ollama"
}

// Description returns a human-readable description
func (f *Factory) Description() string {
	return "Locally hosted models served by Ollama"
}
