package orchestration

import (
	"context"
	"fmt"
	"strings"

	"github.com/switchyard-ai/switchyard/core"
	"github.com/switchyard-ai/switchyard/project"
)

// Analyzer decides whether a query spans multiple projects and, if so,
// decomposes it into per-project sub-queries.
type Analyzer struct {
	llm    core.LLMClient
	logger core.Logger
}

// NewAnalyzer creates an analyzer over the given LLM client
func NewAnalyzer(llm core.LLMClient, logger core.Logger) *Analyzer {
	if logger == nil {
		logger = &core.NoOpLogger{}
	}
	return &Analyzer{llm: llm, logger: logger}
}

// Analyze produces an orchestration plan. A transport or parse failure
// returns a single-project plan and the underlying error; callers that
// did not explicitly request orchestration treat that as "not
// multi-project" rather than a failure.
func (a *Analyzer) Analyze(ctx context.Context, query string, enabled []*project.Project) (*OrchestrationPlan, error) {
	plan := &OrchestrationPlan{OriginalQuery: query}

	response, err := a.llm.GenerateResponse(ctx, a.buildPrompt(query, enabled), &core.LLMOptions{
		Temperature: 0.2,
		MaxTokens:   800,
	})
	if err != nil {
		a.logger.Warn("Orchestration analysis failed, treating as single-project", map[string]interface{}{
			"operation": "orchestration_analysis",
			"error":     err.Error(),
		})
		return plan, &core.CoreError{
			Op:   "analyzer.Analyze",
			Kind: "orchestration",
			Err:  fmt.Errorf("%w: %v", core.ErrAnalysisFailed, err),
		}
	}

	multi, reasoning, subQueries := a.parse(response.Content, enabled)
	plan.Reasoning = reasoning
	plan.SubQueries = subQueries
	plan.IsMultiProject = multi && len(subQueries) > 1

	if !plan.IsMultiProject {
		return plan, nil
	}

	detectDependencies(plan.SubQueries)
	plan.ExecutionOrder = buildStages(plan.SubQueries, a.logger)
	return plan, nil
}

// parse extracts the analysis protocol lines. Sub-query lines naming
// unknown projects are discarded.
func (a *Analyzer) parse(content string, enabled []*project.Project) (bool, string, []*SubQuery) {
	names := make(map[string]bool, len(enabled))
	for _, p := range enabled {
		names[p.Name] = true
	}

	multi := false
	reasoning := ""
	var subQueries []*SubQuery
	inSubQueries := false

	for _, line := range strings.Split(content, "\n") {
		line = strings.TrimSpace(line)
		switch {
		case strings.HasPrefix(line, "MULTI_PROJECT:"):
			value := strings.TrimSpace(strings.TrimPrefix(line, "MULTI_PROJECT:"))
			multi = strings.EqualFold(value, "yes")
		case strings.HasPrefix(line, "REASONING:"):
			reasoning = strings.TrimSpace(strings.TrimPrefix(line, "REASONING:"))
		case strings.HasPrefix(line, "SUB_QUERIES:"):
			inSubQueries = true
		case inSubQueries && line != "":
			sep := strings.Index(line, ":")
			if sep <= 0 {
				continue
			}
			projectName := strings.TrimSpace(line[:sep])
			queryText := strings.TrimSpace(line[sep+1:])
			if queryText == "" {
				continue
			}
			if !names[projectName] {
				a.logger.Debug("Discarding sub-query for unknown project", map[string]interface{}{
					"operation": "orchestration_analysis",
					"project":   projectName,
				})
				continue
			}
			subQueries = append(subQueries, &SubQuery{
				Index:       len(subQueries),
				QueryText:   queryText,
				ProjectName: projectName,
				Status:      StatusPending,
			})
		}
	}

	return multi, reasoning, subQueries
}

func (a *Analyzer) buildPrompt(query string, enabled []*project.Project) string {
	var sb strings.Builder
	sb.WriteString("Decide whether the user query needs multiple projects to answer.\n\nAvailable projects:\n")
	for _, p := range enabled {
		fmt.Fprintf(&sb, "- %s: %s\n", p.Name, p.Description)
	}
	fmt.Fprintf(&sb, "\nUser query: %s\n\n", query)
	sb.WriteString("Respond in this format:\n")
	sb.WriteString("MULTI_PROJECT: yes|no\n")
	sb.WriteString("REASONING: <one sentence>\n")
	sb.WriteString("SUB_QUERIES:\n")
	sb.WriteString("<project_name>: <sub-query text>   (one line per sub-question, only if multi-project)\n")
	return sb.String()
}
