package routing

import (
	"context"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// memStore is an in-memory SnapshotStore for tests
type memStore struct {
	mu   sync.Mutex
	data map[string][]byte
}

func newMemStore() *memStore {
	return &memStore{data: make(map[string][]byte)}
}

func (m *memStore) Save(ctx context.Context, name string, data []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data[name] = append([]byte(nil), data...)
	return nil
}

func (m *memStore) Load(ctx context.Context, name string) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.data[name], nil
}

func TestFeedback_LearnedCorrection(t *testing.T) {
	store := NewFeedbackStore(2, 100, nil, nil)

	// Two incorrect verdicts with the same correction reach the
	// learning threshold.
	store.Record("weather now", "weather", 0.8, FeedbackIncorrect, "mps", "")
	store.Record("weather now", "weather", 0.8, FeedbackIncorrect, "mps", "")

	project, confidence, reason := store.Adjust("weather now", "weather", 0.8)
	assert.Equal(t, "mps", project)
	assert.GreaterOrEqual(t, confidence, 0.9)
	assert.Contains(t, reason, "learned correction")
}

func TestFeedback_BelowThresholdNoOverride(t *testing.T) {
	store := NewFeedbackStore(2, 100, nil, nil)

	store.Record("weather now", "weather", 0.8, FeedbackIncorrect, "mps", "")

	project, confidence, reason := store.Adjust("weather now", "weather", 0.8)
	assert.Equal(t, "weather", project)
	assert.Equal(t, 0.8, confidence)
	assert.Empty(t, reason)
}

func TestFeedback_PatternOverride(t *testing.T) {
	store := NewFeedbackStore(2, 100, nil, nil)

	// Distinct queries sharing the "what_is" pattern
	store.Record("what is the mps state", "weather", 0.8, FeedbackIncorrect, "mps", "")
	store.Record("what is the fault count", "weather", 0.8, FeedbackIncorrect, "mps", "")

	// A new query with the same pattern but no exact correction
	project, confidence, reason := store.Adjust("what is the interlock threshold", "weather", 0.8)
	assert.Equal(t, "mps", project)
	assert.Greater(t, confidence, 0.7)
	assert.Contains(t, reason, "pattern")
}

func TestFeedback_PatternResistsEstablishedEvidence(t *testing.T) {
	store := NewFeedbackStore(2, 100, nil, nil)

	// Build up evidence for mps beyond the replacement window
	for i := 0; i < 3; i++ {
		store.Record("what is the mps state", "weather", 0.8, FeedbackIncorrect, "mps", "")
	}

	key := ExtractPattern("what is the mps state")
	store.mu.Lock()
	before := *store.patterns[key]
	store.mu.Unlock()
	require.Equal(t, 3, before.FeedbackCount)

	// One contrary vote must not flip an established pattern
	store.Record("what is the mps state", "weather", 0.8, FeedbackIncorrect, "archive", "")

	store.mu.Lock()
	after := *store.patterns[key]
	store.mu.Unlock()
	assert.Equal(t, "mps", after.CorrectProject)
}

func TestFeedback_EarlyPatternReplaced(t *testing.T) {
	store := NewFeedbackStore(2, 100, nil, nil)

	store.Record("what is the mps state", "weather", 0.8, FeedbackIncorrect, "mps", "")
	store.Record("what is the mps state", "weather", 0.8, FeedbackIncorrect, "archive", "")

	key := ExtractPattern("what is the mps state")
	store.mu.Lock()
	pattern := *store.patterns[key]
	store.mu.Unlock()

	assert.Equal(t, "archive", pattern.CorrectProject)
	assert.Equal(t, 1, pattern.FeedbackCount)
	assert.Equal(t, 0.7, pattern.Confidence)
}

func TestFeedback_ConfidenceCapped(t *testing.T) {
	store := NewFeedbackStore(2, 100, nil, nil)

	for i := 0; i < 20; i++ {
		store.Record("what is the mps state", "weather", 0.8, FeedbackIncorrect, "mps", "")
	}

	key := ExtractPattern("what is the mps state")
	store.mu.Lock()
	pattern := *store.patterns[key]
	store.mu.Unlock()
	assert.LessOrEqual(t, pattern.Confidence, 0.99)
}

func TestFeedback_SimilarQueryHeuristic(t *testing.T) {
	store := NewFeedbackStore(3, 100, nil, nil)

	// Below the exact and pattern thresholds (threshold 3, count 2),
	// but corrections exist for a similar query.
	store.Record("show fault history for the injector", "weather", 0.8, FeedbackIncorrect, "mps", "")
	store.Record("show fault history for the injector", "weather", 0.8, FeedbackIncorrect, "mps", "")

	project, confidence, reason := store.Adjust("show fault history for the linac injector", "weather", 0.8)
	assert.Equal(t, "mps", project)
	assert.Greater(t, confidence, 0.4)
	assert.Contains(t, reason, "similar")
}

func TestFeedback_PersistenceRoundTrip(t *testing.T) {
	mem := newMemStore()

	store := NewFeedbackStore(2, 100, mem, nil)
	store.Record("weather now", "weather", 0.8, FeedbackIncorrect, "mps", "session-1")
	store.Record("weather now", "weather", 0.8, FeedbackIncorrect, "mps", "session-1")
	store.Record("forecast", "weather", 0.9, FeedbackCorrect, "", "session-1")

	// A fresh store over the same snapshot learns the same override
	reloaded := NewFeedbackStore(2, 100, mem, nil)
	project, confidence, _ := reloaded.Adjust("weather now", "weather", 0.8)
	assert.Equal(t, "mps", project)
	assert.GreaterOrEqual(t, confidence, 0.9)

	counts := reloaded.ProjectCounts()
	assert.Equal(t, 2, counts["weather"].Incorrect)
	assert.Equal(t, 1, counts["weather"].Correct)
}

func TestFeedback_CorruptSnapshotIgnored(t *testing.T) {
	mem := newMemStore()
	mem.data[feedbackSnapshotName] = []byte("{broken json")

	store := NewFeedbackStore(2, 100, mem, nil)
	project, _, _ := store.Adjust("anything", "weather", 0.8)
	assert.Equal(t, "weather", project)
}

func TestExtractPattern(t *testing.T) {
	tests := []struct {
		query string
		want  string
	}{
		{"what is the beam current", "what_is"},
		{"show me faults", "show_me"},
		{"", "empty"},
		{"beam current history", "topic_beam_current"},
		{"status", "topic_status"},
	}

	for _, tt := range tests {
		if got := ExtractPattern(tt.query); got != tt.want {
			t.Errorf("ExtractPattern(%q) = %q, want %q", tt.query, got, tt.want)
		}
	}
}

func TestMostCommon(t *testing.T) {
	if got := mostCommon([]string{"a", "b", "b", "a", "b"}); got != "b" {
		t.Errorf("mostCommon = %q", got)
	}
	if got := mostCommon([]string{"a"}); got != "a" {
		t.Errorf("mostCommon = %q", got)
	}
	if !strings.EqualFold(mostCommon([]string{"a", "b"}), "a") {
		t.Error("Ties should prefer the earliest seen")
	}
}
