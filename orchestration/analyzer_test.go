package orchestration

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/switchyard-ai/switchyard/core"
	"github.com/switchyard-ai/switchyard/project"
)

// fnLLM routes GenerateResponse through a test-supplied function
type fnLLM struct {
	fn func(prompt string) (*core.LLMResponse, error)
}

func (f *fnLLM) GenerateResponse(ctx context.Context, prompt string, options *core.LLMOptions) (*core.LLMResponse, error) {
	return f.fn(prompt)
}

func staticLLM(content string) *fnLLM {
	return &fnLLM{fn: func(string) (*core.LLMResponse, error) {
		return &core.LLMResponse{Content: content}, nil
	}}
}

func failingLLM(err error) *fnLLM {
	return &fnLLM{fn: func(string) (*core.LLMResponse, error) {
		return nil, err
	}}
}

func testProjects() []*project.Project {
	return []*project.Project{
		{Name: "weather", Description: "weather data"},
		{Name: "mps", Description: "machine protection"},
	}
}

func TestAnalyze_MultiProject(t *testing.T) {
	llm := staticLLM(`MULTI_PROJECT: yes
REASONING: The query asks about two independent systems.
SUB_QUERIES:
weather: What's the weather in NY?
mps: Is the MPS operational?`)

	analyzer := NewAnalyzer(llm, nil)
	plan, err := analyzer.Analyze(context.Background(), "What's the weather in NY and is the MPS operational?", testProjects())
	require.NoError(t, err)

	assert.True(t, plan.IsMultiProject)
	require.Len(t, plan.SubQueries, 2)
	assert.Equal(t, "weather", plan.SubQueries[0].ProjectName)
	assert.Equal(t, "mps", plan.SubQueries[1].ProjectName)
	assert.Equal(t, "What's the weather in NY?", plan.SubQueries[0].QueryText)
	assert.NotEmpty(t, plan.ExecutionOrder)
}

func TestAnalyze_SingleProject(t *testing.T) {
	llm := staticLLM(`MULTI_PROJECT: no
REASONING: One system answers this.`)

	analyzer := NewAnalyzer(llm, nil)
	plan, err := analyzer.Analyze(context.Background(), "What's the weather?", testProjects())
	require.NoError(t, err)
	assert.False(t, plan.IsMultiProject)
	assert.Empty(t, plan.SubQueries)
}

func TestAnalyze_DiscardsUnknownProjects(t *testing.T) {
	llm := staticLLM(`MULTI_PROJECT: yes
REASONING: Spans systems.
SUB_QUERIES:
weather: What's the weather?
rf_systems: Check klystron status
mps: Any faults?`)

	analyzer := NewAnalyzer(llm, nil)
	plan, err := analyzer.Analyze(context.Background(), "query", testProjects())
	require.NoError(t, err)

	require.Len(t, plan.SubQueries, 2)
	for _, sq := range plan.SubQueries {
		assert.Contains(t, []string{"weather", "mps"}, sq.ProjectName)
	}
	// Indices stay dense after discarding
	assert.Equal(t, 0, plan.SubQueries[0].Index)
	assert.Equal(t, 1, plan.SubQueries[1].Index)
}

func TestAnalyze_SingleValidSubQueryIsNotMulti(t *testing.T) {
	llm := staticLLM(`MULTI_PROJECT: yes
REASONING: Spans systems.
SUB_QUERIES:
weather: What's the weather?
unknown_project: something else`)

	analyzer := NewAnalyzer(llm, nil)
	plan, err := analyzer.Analyze(context.Background(), "query", testProjects())
	require.NoError(t, err)
	assert.False(t, plan.IsMultiProject, "one valid sub-query is not a multi-project plan")
}

func TestAnalyze_TransportFailure(t *testing.T) {
	llm := failingLLM(errors.New("connection reset"))

	analyzer := NewAnalyzer(llm, nil)
	plan, err := analyzer.Analyze(context.Background(), "query", testProjects())
	require.Error(t, err)
	assert.True(t, errors.Is(err, core.ErrAnalysisFailed))
	assert.False(t, plan.IsMultiProject)
}
