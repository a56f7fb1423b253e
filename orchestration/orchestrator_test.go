package orchestration

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/switchyard-ai/switchyard/analytics"
	"github.com/switchyard-ai/switchyard/core"
	"github.com/switchyard-ai/switchyard/project"
	"github.com/switchyard-ai/switchyard/routing"
)

// protocolLLM answers analysis, routing, and synthesis prompts by
// inspecting their instructions.
type protocolLLM struct {
	analysis  string
	routing   string
	synthesis string
	synthErr  error
}

func (p *protocolLLM) GenerateResponse(ctx context.Context, prompt string, options *core.LLMOptions) (*core.LLMResponse, error) {
	switch {
	case strings.Contains(prompt, "MULTI_PROJECT"):
		return &core.LLMResponse{Content: p.analysis}, nil
	case strings.Contains(prompt, "Combine the results"):
		if p.synthErr != nil {
			return nil, p.synthErr
		}
		return &core.LLMResponse{Content: p.synthesis}, nil
	default:
		return &core.LLMResponse{Content: p.routing}, nil
	}
}

func orchestratorFixture(t *testing.T, llm core.LLMClient, executors map[string]project.Executor, collector *analytics.Collector) *Orchestrator {
	t.Helper()
	registry := registryWith(t, executors)
	router := routing.NewRouter(registry, llm, routing.WithAnalytics(collector))
	return NewOrchestrator(router, WithAnalytics(collector), WithMaxParallel(3))
}

func TestProcess_MultiProject(t *testing.T) {
	llm := &protocolLLM{
		analysis: `MULTI_PROJECT: yes
REASONING: Two systems involved.
SUB_QUERIES:
weather: What's the weather in NY?
mps: Is the MPS operational?`,
		synthesis: "The weather in NY is sunny and the MPS is operational.",
	}

	collector := analytics.NewCollector(100, nil, nil, nil)
	orchestrator := orchestratorFixture(t, llm, map[string]project.Executor{
		"weather": echoExecutor("sunny in NY"),
		"mps":     echoExecutor("MPS operational"),
	}, collector)

	result, err := orchestrator.Process(context.Background(), "What's the weather in NY and is the MPS operational?")
	require.NoError(t, err)

	assert.True(t, result.Success)
	assert.True(t, result.Plan.IsMultiProject)
	require.Len(t, result.IndividualResults, 2)
	assert.Contains(t, result.IndividualResults[0], "sunny in NY")
	assert.Contains(t, result.IndividualResults[1], "MPS operational")
	assert.Equal(t, "The weather in NY is sunny and the MPS is operational.", result.Answer)

	// One record per sub-query plus one for the original query
	summary := collector.Summary(0)
	assert.Equal(t, 3, summary.TotalQueries)
}

func TestProcess_SingleProject(t *testing.T) {
	llm := &protocolLLM{
		analysis: "MULTI_PROJECT: no\nREASONING: One system answers this.",
		routing:  "PROJECT: weather\nCONFIDENCE: 0.9\nREASONING: weather query\nALTERNATIVES: none",
	}

	orchestrator := orchestratorFixture(t, llm, map[string]project.Executor{
		"weather": echoExecutor("72F and clear"),
		"mps":     echoExecutor("unused"),
	}, nil)

	result, err := orchestrator.Process(context.Background(), "What's the weather in SF?")
	require.NoError(t, err)

	assert.True(t, result.Success)
	assert.False(t, result.Plan.IsMultiProject)
	assert.Contains(t, result.Answer, "72F and clear")
}

func TestProcess_SubQueryFailureStillSynthesizes(t *testing.T) {
	llm := &protocolLLM{
		analysis: `MULTI_PROJECT: yes
REASONING: Three sub-questions.
SUB_QUERIES:
weather: forecast tomorrow
mps: interlock state
archive: beam history last week`,
		synthesis: "Forecast is clear, beam history retrieved; the interlock check failed.",
	}

	collector := analytics.NewCollector(100, nil, nil, nil)
	orchestrator := orchestratorFixture(t, llm, map[string]project.Executor{
		"weather": echoExecutor("clear"),
		"mps": &stubExecutor{fn: func(ctx context.Context, query string) (string, error) {
			return "", errors.New("PV unreachable")
		}},
		"archive": echoExecutor("history"),
	}, collector)

	result, err := orchestrator.Process(context.Background(), "weather, interlocks, and beam history")
	require.NoError(t, err)

	assert.True(t, result.Success, "synthesis ran, so the run succeeds")
	assert.Contains(t, result.IndividualResults[1], "Error: PV unreachable")
	assert.Equal(t, StatusFailed, result.Plan.SubQueries[1].Status)

	summary := collector.Summary(0)
	assert.Equal(t, 4, summary.TotalQueries, "three sub-queries plus the top-level record")
	assert.Equal(t, 1, summary.Failures)
}

func TestProcess_SynthesisFallbackConcatenates(t *testing.T) {
	llm := &protocolLLM{
		analysis: `MULTI_PROJECT: yes
REASONING: Two systems.
SUB_QUERIES:
weather: forecast
mps: status`,
		synthErr: errors.New("model overloaded"),
	}

	orchestrator := orchestratorFixture(t, llm, map[string]project.Executor{
		"weather": echoExecutor("sunny"),
		"mps":     echoExecutor("all green"),
	}, nil)

	result, err := orchestrator.Process(context.Background(), "forecast and status")
	require.NoError(t, err)

	assert.Contains(t, result.Answer, "**weather**:")
	assert.Contains(t, result.Answer, "**mps**:")
	assert.Contains(t, result.Answer, "sunny")
	assert.Contains(t, result.Answer, "all green")
}

func TestProcess_AnalysisFailureDegradesToSingle(t *testing.T) {
	failCount := 0
	llm := &fnLLM{fn: func(prompt string) (*core.LLMResponse, error) {
		if strings.Contains(prompt, "MULTI_PROJECT") {
			failCount++
			return nil, errors.New("timeout")
		}
		return &core.LLMResponse{Content: "PROJECT: weather\nCONFIDENCE: 0.9\nREASONING: x\nALTERNATIVES: none"}, nil
	}}

	orchestrator := orchestratorFixture(t, llm, map[string]project.Executor{
		"weather": echoExecutor("fallback path works"),
		"mps":     echoExecutor("unused"),
	}, nil)

	result, err := orchestrator.Process(context.Background(), "anything")
	require.NoError(t, err)
	assert.Equal(t, 1, failCount)
	assert.Contains(t, result.Answer, "fallback path works")
}

func TestProcess_NoProjects(t *testing.T) {
	registry := project.NewRegistry(nil)
	router := routing.NewRouter(registry, &protocolLLM{})
	orchestrator := NewOrchestrator(router)

	_, err := orchestrator.Process(context.Background(), "anything")
	require.Error(t, err)
	assert.True(t, errors.Is(err, core.ErrNoProjectsEnabled))
}

func TestSubQueryStateMachine(t *testing.T) {
	sq := &SubQuery{Status: StatusPending}
	sq.transition(StatusInProgress)
	assert.Equal(t, StatusInProgress, sq.Status)

	sq.transition(StatusCompleted)
	assert.Equal(t, StatusCompleted, sq.Status)

	// Terminal states never transition further
	sq.transition(StatusFailed)
	assert.Equal(t, StatusCompleted, sq.Status)
}
