package orchestration

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/switchyard-ai/switchyard/core"
)

// Synthesizer combines sub-query results into one answer
type Synthesizer struct {
	llm    core.LLMClient
	logger core.Logger
}

// NewSynthesizer creates a synthesizer over the given LLM client
func NewSynthesizer(llm core.LLMClient, logger core.Logger) *Synthesizer {
	if logger == nil {
		logger = &core.NoOpLogger{}
	}
	return &Synthesizer{llm: llm, logger: logger}
}

// Synthesize asks the LLM for one coherent answer over all sub-query
// results. When the call fails, it falls back to concatenating the
// per-project results.
func (s *Synthesizer) Synthesize(ctx context.Context, originalQuery string, plan *OrchestrationPlan, results map[int]string) string {
	response, err := s.llm.GenerateResponse(ctx, s.buildPrompt(originalQuery, plan, results), &core.LLMOptions{
		Temperature: 0.4,
		MaxTokens:   1500,
	})
	if err != nil {
		s.logger.Warn("Synthesis failed, concatenating results", map[string]interface{}{
			"operation": "orchestration_synthesis",
			"error":     err.Error(),
		})
		return s.concatenate(plan, results)
	}
	return response.Content
}

func (s *Synthesizer) buildPrompt(originalQuery string, plan *OrchestrationPlan, results map[int]string) string {
	var sb strings.Builder
	sb.WriteString("Combine the results below into one coherent answer.\n")
	sb.WriteString("Address the original question, integrate all successful results, and acknowledge any failures.\n\n")
	fmt.Fprintf(&sb, "Original question: %s\n\nResults:\n", originalQuery)

	for _, sq := range plan.SubQueries {
		result, exists := results[sq.Index]
		if !exists {
			result = "(not executed)"
		}
		fmt.Fprintf(&sb, "[%s] %s\n%s\n\n", sq.ProjectName, sq.QueryText, result)
	}
	return sb.String()
}

// concatenate is the degraded synthesis path
func (s *Synthesizer) concatenate(plan *OrchestrationPlan, results map[int]string) string {
	indices := make([]int, 0, len(results))
	for index := range results {
		indices = append(indices, index)
	}
	sort.Ints(indices)

	byIndex := make(map[int]*SubQuery, len(plan.SubQueries))
	for _, sq := range plan.SubQueries {
		byIndex[sq.Index] = sq
	}

	parts := make([]string, 0, len(indices))
	for _, index := range indices {
		projectName := "unknown"
		if sq, exists := byIndex[index]; exists {
			projectName = sq.ProjectName
		}
		parts = append(parts, fmt.Sprintf("**%s**: %s", projectName, results[index]))
	}
	return strings.Join(parts, "\n\n")
}
