package orchestration

import (
	"strings"

	"github.com/switchyard-ai/switchyard/core"
)

// stopWords are excluded from overlap detection between sub-queries
var stopWords = map[string]bool{
	"a": true, "an": true, "the": true, "is": true, "are": true,
	"was": true, "were": true, "be": true, "of": true, "in": true,
	"on": true, "at": true, "to": true, "for": true, "and": true,
	"or": true, "what": true, "how": true, "when": true, "where": true,
	"it": true, "its": true, "this": true, "that": true, "with": true,
	"about": true, "me": true, "my": true, "show": true, "get": true,
}

// minWordOverlap is the shared-word count that implies a dependency
const minWordOverlap = 2

// contentWords tokenizes a sub-query into its non-stop-word set
func contentWords(text string) map[string]struct{} {
	words := make(map[string]struct{})
	for _, w := range strings.Fields(strings.ToLower(text)) {
		w = strings.Trim(w, ".,!?;:\"'")
		if w == "" || stopWords[w] {
			continue
		}
		words[w] = struct{}{}
	}
	return words
}

// detectDependencies marks sub-query i dependent on earlier sub-query j
// when their content-word overlap reaches the threshold. Only backward
// edges are added, so the graph is acyclic by construction.
func detectDependencies(subQueries []*SubQuery) {
	wordSets := make([]map[string]struct{}, len(subQueries))
	for i, sq := range subQueries {
		wordSets[i] = contentWords(sq.QueryText)
	}

	for i := 1; i < len(subQueries); i++ {
		for j := 0; j < i; j++ {
			overlap := 0
			for w := range wordSets[i] {
				if _, ok := wordSets[j][w]; ok {
					overlap++
				}
			}
			if overlap >= minWordOverlap {
				subQueries[i].Dependencies = append(subQueries[i].Dependencies, j)
			}
		}
	}
}

// buildStages layers sub-queries Kahn-style: each stage holds every
// sub-query whose dependencies are already resolved. If no sub-query is
// ever ready, the remainder is forced into one final stage.
func buildStages(subQueries []*SubQuery, logger core.Logger) [][]int {
	resolved := make(map[int]bool, len(subQueries))
	remaining := make(map[int]bool, len(subQueries))
	for _, sq := range subQueries {
		remaining[sq.Index] = true
	}

	var stages [][]int
	for len(remaining) > 0 {
		var stage []int
		for _, sq := range subQueries {
			if !remaining[sq.Index] {
				continue
			}
			ready := true
			for _, dep := range sq.Dependencies {
				if !resolved[dep] {
					ready = false
					break
				}
			}
			if ready {
				stage = append(stage, sq.Index)
			}
		}

		if len(stage) == 0 {
			// Cannot happen with backward-only edges, but guard anyway
			if logger != nil {
				logger.Warn("Dependency layering stalled, forcing final stage", map[string]interface{}{
					"operation": "orchestration_planning",
					"remaining": len(remaining),
				})
			}
			for index := range remaining {
				stage = append(stage, index)
			}
		}

		for _, index := range stage {
			resolved[index] = true
			delete(remaining, index)
		}
		stages = append(stages, stage)
	}

	return stages
}
