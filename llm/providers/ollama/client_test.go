package ollama

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
		assert.Equal(t, "/api/generate", r.URL.Path)

		var req generateRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.False(t, req.Stream)

		json.NewEncoder(w).Encode(generateResponse{
			Model:           req.Model,
			Response:        "local answer",
			Done:            true,
			PromptEvalCount: 7,
			EvalCount:       3,
		})
	}))
	defer server.Close()

	client := NewClient(&providers.Config{BaseURL: server.URL})

	resp, err := client.GenerateResponse(context.Background(), "hello", nil)
	require.NoError(t, err)
	assert.Equal(t, "local answer", resp.Content)
	assert.Equal(t, 10, resp.Usage.TotalTokens)
}

func TestGenerateResponse_MissingBaseURL(t *testing.T) {
	client := NewClient(&providers.Config{})

	_, err := client.GenerateResponse(context.Background(), "hello", nil)
	require.Error(t, err)
	assert.ErrorIs(t, err, core.ErrMissingConfiguration)
}
