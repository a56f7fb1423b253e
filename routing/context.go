package routing

import (
	"fmt"
	"strings"
	"sync"
	"time"
)

// Intent classifies a conversation query
type Intent string

const (
	IntentQuestion      Intent = "question"
	IntentCommand       Intent = "command"
	IntentClarification Intent = "clarification"
	IntentNewTopic      Intent = "new_topic"
)

// ConversationQuery is one past routing decision kept for context
type ConversationQuery struct {
	Text       string    `json:"text"`
	Project    string    `json:"project"`
	Confidence float64   `json:"confidence"`
	Timestamp  time.Time `json:"timestamp"`
	Embedding  []float64 `json:"-"`
	Intent     Intent    `json:"intent,omitempty"`
}

// ContextAnalyzer tracks recent routing decisions and produces
// confidence boosts for topic continuity. Two implementations exist:
// keyword-based (KeywordContext) and embedding-based (SemanticContext).
type ContextAnalyzer interface {
	Add(query, project string, confidence float64)
	Boost(query, candidateProject string) (float64, string)
	Summary() string
	Clear()
}

// Default keyword-mode tuning
const (
	defaultMaxHistory      = 10
	activeTopicWindow      = 3
	contextConfidenceBoost = 0.2
)

// KeywordContext is the simple context tracker. An active topic exists
// when the last few decisions are dominated by one project; candidates
// matching the active topic get a fixed confidence boost.
type KeywordContext struct {
	mu         sync.Mutex
	history    []ConversationQuery
	maxHistory int
	boost      float64
}

// NewKeywordContext creates a keyword-mode context tracker
func NewKeywordContext(maxHistory int) *KeywordContext {
	if maxHistory <= 0 {
		maxHistory = defaultMaxHistory
	}
	return &KeywordContext{
		maxHistory: maxHistory,
		boost:      contextConfidenceBoost,
	}
}

// Add records a routing decision
func (k *KeywordContext) Add(query, project string, confidence float64) {
	k.mu.Lock()
	defer k.mu.Unlock()

	k.history = append(k.history, ConversationQuery{
		Text:       query,
		Project:    project,
		Confidence: confidence,
		Timestamp:  time.Now(),
		Intent:     classifyIntent(query),
	})
	if len(k.history) > k.maxHistory {
		k.history = k.history[len(k.history)-k.maxHistory:]
	}
}

// Boost returns the context boost for a candidate project
func (k *KeywordContext) Boost(query, candidateProject string) (float64, string) {
	k.mu.Lock()
	defer k.mu.Unlock()

	topic := k.activeTopicLocked()
	if topic != "" && topic == candidateProject {
		return k.boost, fmt.Sprintf("continuing active topic %q", topic)
	}
	return 0, ""
}

// activeTopicLocked returns the dominant project of the last few
// decisions, or empty when no project dominates.
func (k *KeywordContext) activeTopicLocked() string {
	if len(k.history) == 0 {
		return ""
	}

	window := k.history
	if len(window) > activeTopicWindow {
		window = window[len(window)-activeTopicWindow:]
	}

	counts := make(map[string]int)
	for _, q := range window {
		counts[q.Project]++
	}

	for project, count := range counts {
		if count*2 > len(window) {
			return project
		}
	}
	return ""
}

// Summary produces a compact description for inclusion in prompts
func (k *KeywordContext) Summary() string {
	k.mu.Lock()
	defer k.mu.Unlock()

	if len(k.history) == 0 {
		return ""
	}

	var sb strings.Builder
	sb.WriteString("Recent decisions:\n")

	start := len(k.history) - activeTopicWindow
	if start < 0 {
		start = 0
	}
	for _, q := range k.history[start:] {
		fmt.Fprintf(&sb, "- %q -> %s (%.2f)\n", q.Text, q.Project, q.Confidence)
	}
	if topic := k.activeTopicLocked(); topic != "" {
		fmt.Fprintf(&sb, "Active topic: %s\n", topic)
	}
	return sb.String()
}

// Clear drops all history
func (k *KeywordContext) Clear() {
	k.mu.Lock()
	defer k.mu.Unlock()
	k.history = nil
}

// classifyIntent assigns a coarse intent label to a query
func classifyIntent(query string) Intent {
	normalized := NormalizeQuery(query)
	words := strings.Fields(normalized)
	if len(words) == 0 {
		return IntentNewTopic
	}

	switch words[0] {
	case "what", "when", "where", "who", "why", "how", "is", "are", "can", "does", "do":
		return IntentQuestion
	case "show", "get", "set", "run", "list", "plot", "fetch", "enable", "disable":
		return IntentCommand
	}
	if strings.HasSuffix(strings.TrimSpace(query), "?") {
		return IntentQuestion
	}
	if len(words) <= 3 {
		return IntentClarification
	}
	return IntentNewTopic
}
