package routing

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/switchyard-ai/switchyard/core"
)

// Feedback verdicts
const (
	FeedbackCorrect   = "correct"
	FeedbackIncorrect = "incorrect"
)

const feedbackSnapshotName = "feedback.json"

// FeedbackRecord is one user verdict on a routing decision
type FeedbackRecord struct {
	Query           string    `json:"query"`
	SelectedProject string    `json:"selected_project"`
	Confidence      float64   `json:"confidence"`
	UserFeedback    string    `json:"user_feedback"`
	CorrectProject  string    `json:"correct_project,omitempty"`
	Timestamp       time.Time `json:"timestamp"`
	SessionID       string    `json:"session_id,omitempty"`
}

// LearnedPattern maps a coarse query pattern to a corrected project,
// strengthened by repeated reinforcement.
type LearnedPattern struct {
	PatternKey     string    `json:"pattern_key"`
	CorrectProject string    `json:"correct_project"`
	Confidence     float64   `json:"confidence"`
	FeedbackCount  int       `json:"feedback_count"`
	LastUpdated    time.Time `json:"last_updated"`
}

// ProjectFeedbackCounts tracks per-project verdict totals
type ProjectFeedbackCounts struct {
	Correct   int `json:"correct"`
	Incorrect int `json:"incorrect"`
}

type feedbackSnapshot struct {
	FeedbackRecords []FeedbackRecord           `json:"feedback_records"`
	LearnedPatterns map[string]*LearnedPattern `json:"learned_patterns"`
	SavedAt         time.Time                  `json:"saved_at"`
}

// FeedbackStore records user corrections and learns routing overrides
// from them. Persistence is best-effort JSON through a SnapshotStore.
type FeedbackStore struct {
	mu            sync.Mutex
	records       []FeedbackRecord
	patterns      map[string]*LearnedPattern
	corrections   map[string][]string
	projectCounts map[string]*ProjectFeedbackCounts

	learningThreshold int
	maxHistory        int

	store  core.SnapshotStore
	logger core.Logger
}

// NewFeedbackStore creates a feedback store. A nil snapshot store
// disables persistence.
func NewFeedbackStore(learningThreshold, maxHistory int, store core.SnapshotStore, logger core.Logger) *FeedbackStore {
	if learningThreshold <= 0 {
		learningThreshold = 2
	}
	if maxHistory <= 0 {
		maxHistory = 1000
	}
	if logger == nil {
		logger = &core.NoOpLogger{}
	}

	f := &FeedbackStore{
		patterns:          make(map[string]*LearnedPattern),
		corrections:       make(map[string][]string),
		projectCounts:     make(map[string]*ProjectFeedbackCounts),
		learningThreshold: learningThreshold,
		maxHistory:        maxHistory,
		store:             store,
		logger:            logger,
	}
	f.load()
	return f
}

// Record appends a feedback verdict and updates learned state
func (f *FeedbackStore) Record(query, selectedProject string, confidence float64, feedback, correctProject, sessionID string) {
	f.mu.Lock()

	f.records = append(f.records, FeedbackRecord{
		Query:           query,
		SelectedProject: selectedProject,
		Confidence:      confidence,
		UserFeedback:    feedback,
		CorrectProject:  correctProject,
		Timestamp:       time.Now(),
		SessionID:       sessionID,
	})
	if len(f.records) > f.maxHistory {
		f.records = f.records[len(f.records)-f.maxHistory:]
	}

	counts, exists := f.projectCounts[selectedProject]
	if !exists {
		counts = &ProjectFeedbackCounts{}
		f.projectCounts[selectedProject] = counts
	}
	if feedback == FeedbackCorrect {
		counts.Correct++
	} else {
		counts.Incorrect++
	}

	if feedback == FeedbackIncorrect && correctProject != "" {
		normalized := NormalizeQuery(query)
		f.corrections[normalized] = append(f.corrections[normalized], correctProject)
		f.updatePatternLocked(ExtractPattern(query), correctProject)
	}

	f.mu.Unlock()

	f.save()
}

// updatePatternLocked applies the pattern reinforcement rules.
// Agreement strengthens; early disagreement replaces; an established
// pattern resists a single contrary vote.
func (f *FeedbackStore) updatePatternLocked(patternKey, correctProject string) {
	pattern, exists := f.patterns[patternKey]
	if !exists {
		f.patterns[patternKey] = &LearnedPattern{
			PatternKey:     patternKey,
			CorrectProject: correctProject,
			Confidence:     0.7,
			FeedbackCount:  1,
			LastUpdated:    time.Now(),
		}
		return
	}

	if pattern.CorrectProject == correctProject {
		pattern.FeedbackCount++
		pattern.Confidence += 0.05
		if pattern.Confidence > 0.99 {
			pattern.Confidence = 0.99
		}
		pattern.LastUpdated = time.Now()
		return
	}

	if pattern.FeedbackCount <= 2 {
		pattern.CorrectProject = correctProject
		pattern.FeedbackCount = 1
		pattern.Confidence = 0.7
		pattern.LastUpdated = time.Now()
	}
}

// Adjust applies learned corrections to a routing decision. Rules fire
// in order: exact-query corrections, learned pattern, similar-query
// heuristic, then pass-through.
func (f *FeedbackStore) Adjust(query, baseProject string, baseConfidence float64) (string, float64, string) {
	f.mu.Lock()
	defer f.mu.Unlock()

	normalized := NormalizeQuery(query)

	if corrections := f.corrections[normalized]; len(corrections) >= f.learningThreshold {
		project := mostCommon(corrections)
		return project, 0.95, fmt.Sprintf("learned correction: users corrected this query to %s", project)
	}

	if pattern, exists := f.patterns[ExtractPattern(query)]; exists && pattern.FeedbackCount >= f.learningThreshold {
		return pattern.CorrectProject, pattern.Confidence,
			fmt.Sprintf("learned pattern %q maps to %s", pattern.PatternKey, pattern.CorrectProject)
	}

	queryWords := wordSet(query)
	for corrected, corrections := range f.corrections {
		if len(corrections) == 0 {
			continue
		}
		overlap := jaccard(queryWords, wordSet(corrected))
		if overlap > 0.5 {
			project := mostCommon(corrections)
			return project, ClampConfidence(0.9 * overlap),
				fmt.Sprintf("similar corrected query %q maps to %s", corrected, project)
		}
	}

	return baseProject, baseConfidence, ""
}

// ProjectCounts returns a copy of per-project verdict totals
func (f *FeedbackStore) ProjectCounts() map[string]ProjectFeedbackCounts {
	f.mu.Lock()
	defer f.mu.Unlock()

	out := make(map[string]ProjectFeedbackCounts, len(f.projectCounts))
	for name, counts := range f.projectCounts {
		out[name] = *counts
	}
	return out
}

// save writes the JSON snapshot, best-effort
func (f *FeedbackStore) save() {
	if f.store == nil {
		return
	}

	f.mu.Lock()
	snapshot := feedbackSnapshot{
		FeedbackRecords: append([]FeedbackRecord(nil), f.records...),
		LearnedPatterns: make(map[string]*LearnedPattern, len(f.patterns)),
		SavedAt:         time.Now().UTC(),
	}
	for key, pattern := range f.patterns {
		copied := *pattern
		snapshot.LearnedPatterns[key] = &copied
	}
	f.mu.Unlock()

	data, err := json.Marshal(snapshot)
	if err == nil {
		err = f.store.Save(context.Background(), feedbackSnapshotName, data)
	}
	if err != nil {
		f.logger.Warn("Feedback snapshot write failed", map[string]interface{}{
			"operation": "feedback_persist",
			"error":     err.Error(),
		})
	}
}

// load restores state from the snapshot, tolerating corruption
func (f *FeedbackStore) load() {
	if f.store == nil {
		return
	}

	data, err := f.store.Load(context.Background(), feedbackSnapshotName)
	if err != nil || len(data) == 0 {
		return
	}

	var snapshot feedbackSnapshot
	if err := json.Unmarshal(data, &snapshot); err != nil {
		f.logger.Warn("Feedback snapshot unreadable, starting fresh", map[string]interface{}{
			"operation": "feedback_restore",
			"error":     err.Error(),
		})
		return
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	f.records = snapshot.FeedbackRecords
	if len(f.records) > f.maxHistory {
		f.records = f.records[len(f.records)-f.maxHistory:]
	}
	if snapshot.LearnedPatterns != nil {
		f.patterns = snapshot.LearnedPatterns
	}

	// Rebuild derived state from the restored records
	for _, r := range f.records {
		counts, exists := f.projectCounts[r.SelectedProject]
		if !exists {
			counts = &ProjectFeedbackCounts{}
			f.projectCounts[r.SelectedProject] = counts
		}
		if r.UserFeedback == FeedbackCorrect {
			counts.Correct++
		} else {
			counts.Incorrect++
		}
		if r.UserFeedback == FeedbackIncorrect && r.CorrectProject != "" {
			normalized := NormalizeQuery(r.Query)
			f.corrections[normalized] = append(f.corrections[normalized], r.CorrectProject)
		}
	}
}

// ExtractPattern maps a query to a coarse pattern key. Patterns are
// lookup keys for learned corrections, not predictions.
func ExtractPattern(query string) string {
	words := strings.Fields(NormalizeQuery(query))
	if len(words) == 0 {
		return "empty"
	}

	starters := map[string]bool{
		"what": true, "when": true, "where": true, "who": true,
		"why": true, "how": true, "is": true, "are": true,
		"can": true, "does": true, "do": true, "show": true,
		"get": true, "plot": true, "list": true,
	}

	if starters[words[0]] {
		if len(words) >= 2 {
			return words[0] + "_" + words[1]
		}
		return words[0]
	}
	if len(words) >= 2 {
		return "topic_" + words[0] + "_" + words[1]
	}
	return "topic_" + words[0]
}

// mostCommon returns the most frequent string, preferring the earliest
// seen on ties.
func mostCommon(items []string) string {
	counts := make(map[string]int)
	best, bestCount := "", 0
	for _, item := range items {
		counts[item]++
		if counts[item] > bestCount {
			best, bestCount = item, counts[item]
		}
	}
	return best
}
