// Package providers contains shared plumbing for LLM provider
// implementations: HTTP execution with retries, error classification,
// and request/response logging.
package providers

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"math/rand"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/switchyard-ai/switchyard/core"
)

// BaseClient provides common functionality for all LLM providers
type BaseClient struct {
	HTTPClient *http.Client
	BaseURL    string
	APIKey     string
	MaxRetries int
	Logger     core.Logger
	Telemetry  core.Telemetry
	Provider   string
	Headers    map[string]string
}

// NewBaseClient creates the shared client out of a provider config
func NewBaseClient(provider string, config *Config) *BaseClient {
	logger := config.Logger
	if logger == nil {
		logger = &core.NoOpLogger{}
	}
	telemetry := config.Telemetry
	if telemetry == nil {
		telemetry = &core.NoOpTelemetry{}
	}
	timeout := config.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	retries := config.MaxRetries
	if retries < 0 {
		retries = 0
	}

	return &BaseClient{
		HTTPClient: &http.Client{Timeout: timeout},
		BaseURL:    config.BaseURL,
		APIKey:     config.APIKey,
		MaxRetries: retries,
		Logger:     logger,
		Telemetry:  telemetry,
		Provider:   provider,
		Headers:    config.Headers,
	}
}

// Config carries the subset of client configuration providers need.
// It mirrors llm.ClientConfig without importing the parent package.
type Config struct {
	APIKey      string
	BaseURL     string
	Timeout     time.Duration
	MaxRetries  int
	Model       string
	Temperature float32
	MaxTokens   int
	Logger      core.Logger
	Telemetry   core.Telemetry
	Headers     map[string]string
	Extra       map[string]interface{}
}

// DoJSONRequest marshals body, POSTs it to url, retries on retryable
// failures with exponential backoff, and decodes the response into out.
func (b *BaseClient) DoJSONRequest(ctx context.Context, url string, body interface{}, headers map[string]string, out interface{}) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return &core.CoreError{
			Op:   b.Provider + ".request",
			Kind: "provider",
			Err:  fmt.Errorf("marshal request: %w", err),
		}
	}

	requestID := uuid.New().String()
	var lastErr error

	for attempt := 0; attempt <= b.MaxRetries; attempt++ {
		if attempt > 0 {
			delay := backoffDelay(attempt)
			b.Logger.Warn("Retrying LLM request", map[string]interface{}{
				"operation":  "llm_request_retry",
				"provider":   b.Provider,
				"request_id": requestID,
				"attempt":    attempt,
				"delay_ms":   delay.Milliseconds(),
				"error":      lastErr.Error(),
			})
			select {
			case <-time.After(delay):
			case <-ctx.Done():
				return &core.CoreError{
					Op:   b.Provider + ".request",
					Kind: "transport",
					ID:   requestID,
					Err:  fmt.Errorf("%w: %v", core.ErrContextCanceled, ctx.Err()),
				}
			}
		}

		lastErr = b.doOnce(ctx, url, payload, headers, requestID, out)
		if lastErr == nil {
			return nil
		}
		if !core.IsRetryable(lastErr) {
			return lastErr
		}
	}

	return lastErr
}

func (b *BaseClient) doOnce(ctx context.Context, url string, payload []byte, headers map[string]string, requestID string, out interface{}) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return &core.CoreError{
			Op:   b.Provider + ".request",
			Kind: "provider",
			ID:   requestID,
			Err:  err,
		}
	}

	req.Header.Set("Content-Type", "application/json")
	for k, v := range b.Headers {
		req.Header.Set(k, v)
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	start := time.Now()
	resp, err := b.HTTPClient.Do(req)
	if err != nil {
		return &core.CoreError{
			Op:   b.Provider + ".request",
			Kind: "transport",
			ID:   requestID,
			Err:  fmt.Errorf("%w: %v", core.ErrTransport, err),
		}
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return &core.CoreError{
			Op:   b.Provider + ".request",
			Kind: "transport",
			ID:   requestID,
			Err:  fmt.Errorf("%w: read response: %v", core.ErrTransport, err),
		}
	}

	b.Logger.Debug("LLM request completed", map[string]interface{}{
		"operation":   "llm_request",
		"provider":    b.Provider,
		"request_id":  requestID,
		"status_code": resp.StatusCode,
		"duration_ms": time.Since(start).Milliseconds(),
	})

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return b.classifyHTTPError(resp.StatusCode, data, requestID)
	}

	if err := json.Unmarshal(data, out); err != nil {
		return &core.CoreError{
			Op:   b.Provider + ".request",
			Kind: "provider",
			ID:   requestID,
			Err:  fmt.Errorf("%w: decode response: %v", core.ErrProvider, err),
		}
	}

	return nil
}

// classifyHTTPError maps HTTP status codes to framework errors.
// 429 and 5xx are transport-class so the retry loop picks them up.
func (b *BaseClient) classifyHTTPError(status int, body []byte, requestID string) error {
	snippet := string(body)
	if len(snippet) > 200 {
		snippet = snippet[:200]
	}

	sentinel := core.ErrProvider
	if status == http.StatusTooManyRequests || status >= 500 {
		sentinel = core.ErrTransport
	}

	return &core.CoreError{
		Op:      b.Provider + ".request",
		Kind:    "provider",
		ID:      requestID,
		Message: fmt.Sprintf("API returned status %d", status),
		Err:     fmt.Errorf("%w: status %d: %s", sentinel, status, snippet),
	}
}

// RequireAPIKey returns a configuration error when the key is missing
func (b *BaseClient) RequireAPIKey() error {
	if b.APIKey == "" {
		return &core.CoreError{
			Op:      b.Provider + ".generate",
			Kind:    "config",
			Message: "API key not configured",
			Err:     core.ErrMissingConfiguration,
		}
	}
	return nil
}

// RequireBaseURL returns a configuration error when the base URL is missing
func (b *BaseClient) RequireBaseURL() error {
	if b.BaseURL == "" {
		return &core.CoreError{
			Op:      b.Provider + ".generate",
			Kind:    "config",
			Message: "base URL not configured",
			Err:     core.ErrMissingConfiguration,
		}
	}
	return nil
}

// ApplyDefaults fills zero-valued request options from client defaults
func ApplyDefaults(options *core.LLMOptions, defaultModel string, defaultTemp float32, defaultMaxTokens int) *core.LLMOptions {
	merged := core.LLMOptions{}
	if options != nil {
		merged = *options
	}
	if merged.Model == "" {
		merged.Model = defaultModel
	}
	if merged.Temperature == 0 {
		merged.Temperature = defaultTemp
	}
	if merged.MaxTokens == 0 {
		merged.MaxTokens = defaultMaxTokens
	}
	return &merged
}

func backoffDelay(attempt int) time.Duration {
	base := time.Duration(math.Pow(2, float64(attempt-1))) * time.Second
	if base > 30*time.Second {
		base = 30 * time.Second
	}
	jitter := time.Duration(rand.Int63n(int64(base) / 4))
	return base + jitter
}
