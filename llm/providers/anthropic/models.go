package anthropic

// Request/response models for the Anthropic Messages API

type messagesRequest struct {
	Model       string    `json:"model"`
	MaxTokens   int       `json:"max_tokens"`
	Messages    []message `json:"messages"`
	System      string    `json:"system,omitempty"`
	Temperature float32   `json:"temperature,omitempty"`
}

type message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type messagesResponse struct {
	ID      string         `json:"id"`
	Model   string         `json:"model"`
	Content []contentBlock `json:"content"`
	Usage   usage          `json:"usage"`
}

type contentBlock struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

type usage struct {
	InputTokens  int `json:"input_tokens"`
	OutputTokens int `json:"output_tokens"`
}

// modelAliases maps friendly names to current model identifiers
var modelAliases = map[string]string{
	"claude":        "claude-sonnet-4-20250514",
	"claude-sonnet": "claude-sonnet-4-20250514",
	"claude-opus":   "claude-opus-4-20250514",
	"claude-haiku":  "claude-3-5-haiku-20241022",
	"sonnet":        "claude-sonnet-4-20250514",
	"opus":          "claude-opus-4-20250514",
	"haiku":         "claude-3-5-haiku-20241022",
}

// resolveModel expands aliases, passing full identifiers through unchanged
func resolveModel(model string) string {
	if resolved, ok := modelAliases[model]; ok {
		return resolved
	}
	return model
}
