// Package routing implements query-to-project routing: the LLM-backed
// router itself, a similarity-keyed decision cache, conversation
// context tracking, and feedback-driven learning.
package routing

import (
	"regexp"
	"sort"
	"strings"
	"time"
)

// RoutingDecision is the router's output for one query
type RoutingDecision struct {
	ProjectName         string    `json:"project_name"`
	Confidence          float64   `json:"confidence"`
	Reasoning           string    `json:"reasoning"`
	AlternativeProjects []string  `json:"alternative_projects,omitempty"`
	Timestamp           time.Time `json:"timestamp"`
	FromCache           bool      `json:"from_cache"`
	RoutingTimeMs       float64   `json:"routing_time_ms"`
}

// Mode selects how the router picks projects
type Mode string

const (
	ModeAutomatic Mode = "automatic"
	ModeManual    Mode = "manual"
)

var whitespaceRe = regexp.MustCompile(`\s+`)

// NormalizeQuery lowercases, collapses whitespace, and strips trailing
// punctuation so trivially different phrasings share cache keys.
func NormalizeQuery(query string) string {
	normalized := strings.ToLower(strings.TrimSpace(query))
	normalized = whitespaceRe.ReplaceAllString(normalized, " ")
	return strings.TrimRight(normalized, ".!?,;: ")
}

// CacheKey derives the cache key from the normalized query and the
// sorted enabled-project set. Decisions are only comparable when made
// against the same set of candidates.
func CacheKey(query string, enabledProjects []string) string {
	sorted := make([]string, len(enabledProjects))
	copy(sorted, enabledProjects)
	sort.Strings(sorted)
	return NormalizeQuery(query) + "|" + strings.Join(sorted, ",")
}

// ClampConfidence forces a confidence value into [0, 1]
func ClampConfidence(c float64) float64 {
	if c < 0 {
		return 0
	}
	if c > 1 {
		return 1
	}
	return c
}

// wordSet tokenizes a normalized query into a set of words
func wordSet(text string) map[string]struct{} {
	set := make(map[string]struct{})
	for _, w := range strings.Fields(NormalizeQuery(text)) {
		set[w] = struct{}{}
	}
	return set
}

// jaccard computes |A∩B| / |A∪B| over two word sets
func jaccard(a, b map[string]struct{}) float64 {
	if len(a) == 0 && len(b) == 0 {
		return 0
	}
	intersection := 0
	for w := range a {
		if _, ok := b[w]; ok {
			intersection++
		}
	}
	union := len(a) + len(b) - intersection
	if union == 0 {
		return 0
	}
	return float64(intersection) / float64(union)
}
