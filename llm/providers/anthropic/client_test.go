package anthropic

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/switchyard-ai/switchyard/core"
	"github.com/switchyard-ai/switchyard/llm/providers"
)

func TestGenerateResponse(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/messages", r.URL.Path)
		assert.Equal(t, "test-key", r.Header.Get("x-api-key"))
		assert.Equal(t, apiVersion, r.Header.Get("anthropic-version"))

		var req messagesRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "claude-sonnet-4-20250514", req.Model)
		require.Len(t, req.Messages, 1)
		assert.Equal(t, "user", req.Messages[0].Role)

		json.NewEncoder(w).Encode(messagesResponse{
			Model: req.Model,
			Content: []contentBlock{
				{Type: "text", Text: "routed to "},
				{Type: "text", Text: "weather"},
			},
			Usage: usage{InputTokens: 12, OutputTokens: 4},
		})
	}))
	defer server.Close()

	client := NewClient(&providers.Config{
		APIKey:  "test-key",
		BaseURL: server.URL,
	})

	resp, err := client.GenerateResponse(context.Background(), "where should this go?", nil)
	require.NoError(t, err)
	assert.Equal(t, "routed to weather", resp.Content)
	assert.Equal(t, 16, resp.Usage.TotalTokens)
}

func TestGenerateResponse_MissingAPIKey(t *testing.T) {
	client := NewClient(&providers.Config{})

	_, err := client.GenerateResponse(context.Background(), "hello", nil)
	require.Error(t, err)
	assert.ErrorIs(t, err, core.ErrMissingConfiguration)
}

func TestResolveModel(t *testing.T) {
	assert.Equal(t, "claude-sonnet-4-20250514", resolveModel("sonnet"))
	assert.Equal(t, "claude-3-5-haiku-20241022", resolveModel("haiku"))
	assert.Equal(t, "claude-custom-build", resolveModel("claude-custom-build"))
}
