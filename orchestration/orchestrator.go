package orchestration

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/switchyard-ai/switchyard/analytics"
	"github.com/switchyard-ai/switchyard/core"
	"github.com/switchyard-ai/switchyard/routing"
)

// Orchestrator handles queries that span multiple projects. It reuses
// the router's LLM client and registry and never mutates router state.
type Orchestrator struct {
	router      *routing.Router
	analyzer    *Analyzer
	executor    *StageExecutor
	synthesizer *Synthesizer
	analytics   *analytics.Collector
	logger      core.Logger

	queryTimeout time.Duration
	maxParallel  int
}

// OrchestratorOption configures an Orchestrator
type OrchestratorOption func(*Orchestrator)

// WithAnalytics attaches an analytics collector
func WithAnalytics(collector *analytics.Collector) OrchestratorOption {
	return func(o *Orchestrator) { o.analytics = collector }
}

// WithLogger sets the orchestrator's logger
func WithLogger(logger core.Logger) OrchestratorOption {
	return func(o *Orchestrator) { o.logger = logger }
}

// WithQueryTimeout bounds a full orchestrated run
func WithQueryTimeout(timeout time.Duration) OrchestratorOption {
	return func(o *Orchestrator) { o.queryTimeout = timeout }
}

// WithMaxParallel caps per-stage concurrency
func WithMaxParallel(n int) OrchestratorOption {
	return func(o *Orchestrator) { o.maxParallel = n }
}

// NewOrchestrator creates an orchestrator bound to a router
func NewOrchestrator(router *routing.Router, options ...OrchestratorOption) *Orchestrator {
	o := &Orchestrator{
		router:       router,
		logger:       &core.NoOpLogger{},
		queryTimeout: 300 * time.Second,
	}
	for _, opt := range options {
		opt(o)
	}
	o.analyzer = NewAnalyzer(router.LLM(), o.logger)
	o.synthesizer = NewSynthesizer(router.LLM(), o.logger)
	o.executor = NewStageExecutor(router.Registry(), o.maxParallel, o.logger)
	return o
}

// Process analyzes the query and either orchestrates a multi-project
// run or routes and executes it as a single-project query. A failed
// analysis degrades to the single-project path.
func (o *Orchestrator) Process(ctx context.Context, query string) (*OrchestrationResult, error) {
	start := time.Now()

	if o.queryTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, o.queryTimeout)
		defer cancel()
	}

	enabled := o.router.Registry().ListEnabled()
	if len(enabled) == 0 {
		return nil, &core.CoreError{
			Op:   "orchestrator.Process",
			Kind: "routing",
			Err:  core.ErrNoProjectsEnabled,
		}
	}

	requestID := uuid.New().String()
	o.logger.Debug("Processing query", map[string]interface{}{
		"operation":  "orchestration",
		"request_id": requestID,
	})

	plan, err := o.analyzer.Analyze(ctx, query, enabled)
	if err != nil {
		o.logger.Warn("Analysis unavailable, routing as single query", map[string]interface{}{
			"operation":  "orchestration",
			"request_id": requestID,
			"error":      err.Error(),
		})
	}

	if !plan.IsMultiProject {
		return o.processSingle(ctx, query, plan, start)
	}
	return o.processMulti(ctx, query, plan, start)
}

// Analyze exposes plan construction without execution. Unlike Process,
// it surfaces analysis failures to the caller.
func (o *Orchestrator) Analyze(ctx context.Context, query string) (*OrchestrationPlan, error) {
	enabled := o.router.Registry().ListEnabled()
	if len(enabled) == 0 {
		return nil, &core.CoreError{
			Op:   "orchestrator.Analyze",
			Kind: "routing",
			Err:  core.ErrNoProjectsEnabled,
		}
	}
	return o.analyzer.Analyze(ctx, query, enabled)
}

// processSingle routes the whole query to one project and executes it
func (o *Orchestrator) processSingle(ctx context.Context, query string, plan *OrchestrationPlan, start time.Time) (*OrchestrationResult, error) {
	decision, err := o.router.Route(ctx, query)
	if err != nil {
		return nil, err
	}

	sq := &SubQuery{
		Index:       0,
		QueryText:   query,
		ProjectName: decision.ProjectName,
		Status:      StatusPending,
	}
	plan.SubQueries = []*SubQuery{sq}
	plan.ExecutionOrder = [][]int{{0}}

	results := o.executor.Execute(ctx, plan)
	o.recordSubQuery(sq, start)

	result := &OrchestrationResult{
		Answer:            results[0],
		IndividualResults: results,
		Plan:              plan,
		Success:           sq.Status == StatusCompleted,
		TotalTimeMs:       msSince(start),
	}
	if sq.Status == StatusFailed {
		result.Error = sq.Error
	}
	return result, nil
}

// processMulti runs the staged plan and synthesizes a combined answer
func (o *Orchestrator) processMulti(ctx context.Context, query string, plan *OrchestrationPlan, start time.Time) (*OrchestrationResult, error) {
	o.logger.Info("Orchestrating multi-project query", map[string]interface{}{
		"operation":   "orchestration",
		"sub_queries": len(plan.SubQueries),
		"stages":      len(plan.ExecutionOrder),
	})

	results := o.executor.Execute(ctx, plan)

	for _, sq := range plan.SubQueries {
		o.recordSubQuery(sq, start)
	}

	answer := o.synthesizer.Synthesize(ctx, query, plan, results)

	result := &OrchestrationResult{
		Answer:            answer,
		IndividualResults: results,
		Plan:              plan,
		Success:           true,
		TotalTimeMs:       msSince(start),
	}

	o.recordTopLevel(query, plan, result)
	return result, nil
}

// recordSubQuery emits one analytics record for a sub-query
func (o *Orchestrator) recordSubQuery(sq *SubQuery, start time.Time) {
	if o.analytics == nil {
		return
	}
	o.analytics.Record(analytics.RoutingMetric{
		Timestamp:       time.Now(),
		Query:           sq.QueryText,
		ProjectSelected: sq.ProjectName,
		Confidence:      1.0,
		RoutingTimeMs:   msSince(start),
		Mode:            "automatic",
		Reasoning:       "orchestrated sub-query",
		Success:         sq.Status == StatusCompleted,
		Error:           sq.Error,
	})
}

// recordTopLevel emits the one record covering the original query
func (o *Orchestrator) recordTopLevel(query string, plan *OrchestrationPlan, result *OrchestrationResult) {
	if o.analytics == nil {
		return
	}

	projects := make([]string, 0, len(plan.SubQueries))
	for _, sq := range plan.SubQueries {
		projects = append(projects, sq.ProjectName)
	}

	o.analytics.Record(analytics.RoutingMetric{
		Timestamp:       time.Now(),
		Query:           query,
		ProjectSelected: "multi",
		Confidence:      1.0,
		RoutingTimeMs:   result.TotalTimeMs,
		Mode:            "automatic",
		Reasoning:       plan.Reasoning,
		Alternatives:    projects,
		Success:         result.Success,
	})
}

func msSince(start time.Time) float64 {
	return float64(time.Since(start).Microseconds()) / 1000.0
}
