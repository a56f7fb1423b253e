package routing

import (
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"
)

// Semantic-mode tuning
const (
	maxTopicClusters    = 5
	centroidAlpha       = 0.3
	currentTopicWindow  = 5 * time.Minute
	neighborBoostAmount = 0.15
	topicBoostScale     = 0.2
	topNeighbors        = 3
)

// TopicCluster groups semantically similar recent queries around a
// centroid dominated by one project.
type TopicCluster struct {
	Centroid        []float64
	Members         []ConversationQuery
	DominantProject string
	Confidence      float64
	LastUpdated     time.Time
}

// SemanticContext is the embedding-based context tracker. Queries join
// the nearest topic cluster or start a new one; candidates matching the
// current topic's dominant project get a similarity-scaled boost.
type SemanticContext struct {
	mu         sync.Mutex
	embedder   Embedder
	clusters   []*TopicCluster
	history    []ConversationQuery
	maxHistory int

	similarityThreshold      float64
	topicSimilarityThreshold float64

	now func() time.Time
}

// NewSemanticContext creates a semantic context tracker. A nil embedder
// selects the deterministic hashed fallback.
func NewSemanticContext(embedder Embedder, maxHistory int, similarityThreshold, topicSimilarityThreshold float64) *SemanticContext {
	if embedder == nil {
		embedder = NewHashedEmbedder(256)
	}
	if maxHistory <= 0 {
		maxHistory = defaultMaxHistory
	}
	if similarityThreshold <= 0 {
		similarityThreshold = 0.7
	}
	if topicSimilarityThreshold <= 0 {
		topicSimilarityThreshold = 0.6
	}

	return &SemanticContext{
		embedder:                 embedder,
		maxHistory:               maxHistory,
		similarityThreshold:      similarityThreshold,
		topicSimilarityThreshold: topicSimilarityThreshold,
		now:                      time.Now,
	}
}

// Add records a routing decision and updates topic clusters
func (s *SemanticContext) Add(query, project string, confidence float64) {
	embedding := s.embedder.Encode(query)
	now := s.now()

	record := ConversationQuery{
		Text:       query,
		Project:    project,
		Confidence: confidence,
		Timestamp:  now,
		Embedding:  embedding,
		Intent:     classifyIntent(query),
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.history = append(s.history, record)
	if len(s.history) > s.maxHistory {
		s.history = s.history[len(s.history)-s.maxHistory:]
	}

	cluster, similarity := s.closestClusterLocked(embedding)
	if cluster != nil && similarity >= s.topicSimilarityThreshold {
		s.absorbLocked(cluster, record, now)
		return
	}

	s.clusters = append(s.clusters, &TopicCluster{
		Centroid:        append([]float64(nil), embedding...),
		Members:         []ConversationQuery{record},
		DominantProject: project,
		Confidence:      confidence,
		LastUpdated:     now,
	})
	s.evictClustersLocked()
}

// absorbLocked merges a record into an existing cluster, shifting the
// centroid toward the new embedding.
func (s *SemanticContext) absorbLocked(cluster *TopicCluster, record ConversationQuery, now time.Time) {
	for i := range cluster.Centroid {
		cluster.Centroid[i] = (1-centroidAlpha)*cluster.Centroid[i] + centroidAlpha*record.Embedding[i]
	}
	cluster.Members = append(cluster.Members, record)
	cluster.LastUpdated = now

	counts := make(map[string]int)
	for _, m := range cluster.Members {
		counts[m.Project]++
	}
	best, bestCount := cluster.DominantProject, 0
	for project, count := range counts {
		if count > bestCount {
			best, bestCount = project, count
		}
	}
	cluster.DominantProject = best
	cluster.Confidence = record.Confidence
}

func (s *SemanticContext) closestClusterLocked(embedding []float64) (*TopicCluster, float64) {
	var best *TopicCluster
	bestSim := -1.0
	for _, cluster := range s.clusters {
		if sim := CosineSimilarity(embedding, cluster.Centroid); sim > bestSim {
			best, bestSim = cluster, sim
		}
	}
	return best, bestSim
}

// evictClustersLocked drops the stalest clusters beyond the cap
func (s *SemanticContext) evictClustersLocked() {
	if len(s.clusters) <= maxTopicClusters {
		return
	}
	sort.Slice(s.clusters, func(i, j int) bool {
		return s.clusters[i].LastUpdated.After(s.clusters[j].LastUpdated)
	})
	s.clusters = s.clusters[:maxTopicClusters]
}

// currentTopicLocked returns the most recently updated cluster when it
// is fresh enough to count as the active topic.
func (s *SemanticContext) currentTopicLocked(now time.Time) *TopicCluster {
	var newest *TopicCluster
	for _, cluster := range s.clusters {
		if newest == nil || cluster.LastUpdated.After(newest.LastUpdated) {
			newest = cluster
		}
	}
	if newest == nil || now.Sub(newest.LastUpdated) > currentTopicWindow {
		return nil
	}
	return newest
}

// Boost returns the semantic context boost for a candidate project.
// Topic-continuity match scales with centroid similarity; otherwise a
// nearest-neighbor vote over past queries applies a smaller boost.
func (s *SemanticContext) Boost(query, candidateProject string) (float64, string) {
	embedding := s.embedder.Encode(query)
	now := s.now()

	s.mu.Lock()
	defer s.mu.Unlock()

	if topic := s.currentTopicLocked(now); topic != nil && topic.DominantProject == candidateProject {
		if sim := CosineSimilarity(embedding, topic.Centroid); sim >= s.topicSimilarityThreshold {
			return topicBoostScale * sim, fmt.Sprintf("semantic topic continuity (similarity %.2f)", sim)
		}
	}

	type neighbor struct {
		project    string
		similarity float64
	}
	neighbors := make([]neighbor, 0, len(s.history))
	for _, q := range s.history {
		neighbors = append(neighbors, neighbor{q.Project, CosineSimilarity(embedding, q.Embedding)})
	}
	sort.Slice(neighbors, func(i, j int) bool {
		return neighbors[i].similarity > neighbors[j].similarity
	})
	if len(neighbors) > topNeighbors {
		neighbors = neighbors[:topNeighbors]
	}

	votes := 0
	for _, n := range neighbors {
		if n.project == candidateProject {
			votes++
		}
	}
	if votes >= 2 {
		return neighborBoostAmount, fmt.Sprintf("%d of top %d similar past queries used %s", votes, topNeighbors, candidateProject)
	}

	return 0, ""
}

// Summary produces a compact description for inclusion in prompts
func (s *SemanticContext) Summary() string {
	now := s.now()

	s.mu.Lock()
	defer s.mu.Unlock()

	if len(s.history) == 0 {
		return ""
	}

	var sb strings.Builder
	sb.WriteString("Recent decisions:\n")
	start := len(s.history) - activeTopicWindow
	if start < 0 {
		start = 0
	}
	for _, q := range s.history[start:] {
		fmt.Fprintf(&sb, "- %q -> %s (%.2f)\n", q.Text, q.Project, q.Confidence)
	}
	if topic := s.currentTopicLocked(now); topic != nil {
		fmt.Fprintf(&sb, "Active topic: %s (%d related queries)\n", topic.DominantProject, len(topic.Members))
	}
	return sb.String()
}

// Clear drops all history and clusters
func (s *SemanticContext) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.history = nil
	s.clusters = nil
}
