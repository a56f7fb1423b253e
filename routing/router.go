package routing

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/switchyard-ai/switchyard/analytics"
	"github.com/switchyard-ai/switchyard/core"
	"github.com/switchyard-ai/switchyard/project"
)

// Router maps a query to one enabled project. It owns its collaborators
// by reference and carries no module-level state.
type Router struct {
	registry  *project.Registry
	llm       core.LLMClient
	cache     *RoutingCache
	context   ContextAnalyzer
	feedback  *FeedbackStore
	analytics *analytics.Collector
	logger    core.Logger
	telemetry core.Telemetry

	queryTimeout time.Duration

	mu            sync.Mutex
	mode          Mode
	manualProject string
}

// RouterOption configures a Router
type RouterOption func(*Router)

// WithCache attaches a routing cache
func WithCache(cache *RoutingCache) RouterOption {
	return func(r *Router) { r.cache = cache }
}

// WithContext attaches a conversation context analyzer
func WithContext(analyzer ContextAnalyzer) RouterOption {
	return func(r *Router) { r.context = analyzer }
}

// WithFeedback attaches a feedback store
func WithFeedback(feedback *FeedbackStore) RouterOption {
	return func(r *Router) { r.feedback = feedback }
}

// WithAnalytics attaches an analytics collector
func WithAnalytics(collector *analytics.Collector) RouterOption {
	return func(r *Router) { r.analytics = collector }
}

// WithLogger sets the router's logger
func WithLogger(logger core.Logger) RouterOption {
	return func(r *Router) { r.logger = logger }
}

// WithTelemetry sets the router's telemetry provider
func WithTelemetry(telemetry core.Telemetry) RouterOption {
	return func(r *Router) { r.telemetry = telemetry }
}

// WithQueryTimeout bounds each routing pipeline run
func WithQueryTimeout(timeout time.Duration) RouterOption {
	return func(r *Router) { r.queryTimeout = timeout }
}

// NewRouter creates a router over the given registry and LLM client
func NewRouter(registry *project.Registry, llm core.LLMClient, options ...RouterOption) *Router {
	r := &Router{
		registry:     registry,
		llm:          llm,
		mode:         ModeAutomatic,
		queryTimeout: 300 * time.Second,
	}
	for _, opt := range options {
		opt(r)
	}
	if r.logger == nil {
		r.logger = &core.NoOpLogger{}
	}
	if r.telemetry == nil {
		r.telemetry = &core.NoOpTelemetry{}
	}
	return r
}

// SetManualMode pins all routing to one project
func (r *Router) SetManualMode(projectName string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.mode = ModeManual
	r.manualProject = projectName
}

// SetAutomaticMode restores LLM-backed routing
func (r *Router) SetAutomaticMode() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.mode = ModeAutomatic
	r.manualProject = ""
}

// Mode returns the current routing mode
func (r *Router) Mode() Mode {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.mode
}

// LLM exposes the router's LLM client for reuse by the orchestrator
func (r *Router) LLM() core.LLMClient {
	return r.llm
}

// Registry exposes the router's project registry
func (r *Router) Registry() *project.Registry {
	return r.registry
}

// Route maps a query to an enabled project. It returns an error only
// when no project is enabled; every other failure degrades to a
// fallback decision.
func (r *Router) Route(ctx context.Context, query string) (*RoutingDecision, error) {
	start := time.Now()
	requestID := uuid.New().String()

	ctx, span := r.telemetry.StartSpan(ctx, "router.route")
	defer span.End()
	span.SetAttribute("request_id", requestID)
	span.SetAttribute("query_length", len(query))

	r.logger.Debug("Routing query", map[string]interface{}{
		"operation":  "routing",
		"request_id": requestID,
	})

	enabled := r.registry.ListEnabled()
	if len(enabled) == 0 {
		err := &core.CoreError{
			Op:   "router.Route",
			Kind: "routing",
			Err:  core.ErrNoProjectsEnabled,
		}
		span.RecordError(err)
		return nil, err
	}

	r.mu.Lock()
	mode, manualProject := r.mode, r.manualProject
	r.mu.Unlock()

	if mode == ModeManual {
		if decision := r.manualDecision(manualProject, start); decision != nil {
			r.recordMetric(query, decision, string(ModeManual), true, "")
			return decision, nil
		}
		r.logger.Warn("Manual project not enabled, falling back to automatic", map[string]interface{}{
			"operation":      "routing",
			"manual_project": manualProject,
		})
	}

	if len(enabled) == 1 {
		decision := &RoutingDecision{
			ProjectName:   enabled[0].Name,
			Confidence:    1.0,
			Reasoning:     "only one available",
			Timestamp:     time.Now(),
			RoutingTimeMs: msSince(start),
		}
		r.recordMetric(query, decision, string(ModeAutomatic), true, "")
		return decision, nil
	}

	names := make([]string, len(enabled))
	for i, p := range enabled {
		names[i] = p.Name
	}

	if r.cache != nil {
		if cached, hit := r.cache.Get(query, names); hit {
			decision := *cached
			decision.FromCache = true
			decision.Reasoning = cached.Reasoning + " (from cache)"
			decision.Timestamp = time.Now()
			decision.RoutingTimeMs = msSince(start)
			r.recordMetric(query, &decision, string(ModeAutomatic), true, "")
			return &decision, nil
		}
	}

	if r.queryTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.queryTimeout)
		defer cancel()
	}

	decision, llmErr := r.decide(ctx, query, enabled, names, start)
	success := llmErr == nil
	errText := ""
	if llmErr != nil {
		errText = llmErr.Error()
		span.RecordError(llmErr)
	}
	r.recordMetric(query, decision, string(ModeAutomatic), success, errText)
	return decision, nil
}

// manualDecision returns the pinned decision when the manual project is
// enabled, nil otherwise.
func (r *Router) manualDecision(projectName string, start time.Time) *RoutingDecision {
	if !r.registry.IsEnabled(projectName) {
		return nil
	}
	return &RoutingDecision{
		ProjectName:   projectName,
		Confidence:    1.0,
		Reasoning:     "manual selection",
		Timestamp:     time.Now(),
		RoutingTimeMs: msSince(start),
	}
}

// decide runs the LLM-backed pipeline: prompt, parse, feedback
// adjustment, context boost, cache insert, context append. The
// returned error reports an LLM failure that produced a fallback; the
// decision is always usable.
func (r *Router) decide(ctx context.Context, query string, enabled []*project.Project, names []string, start time.Time) (*RoutingDecision, error) {
	prompt := r.buildPrompt(query, enabled)

	response, err := r.llm.GenerateResponse(ctx, prompt, &core.LLMOptions{
		Temperature: 0.2,
		MaxTokens:   500,
	})
	if err != nil {
		r.logger.Warn("Routing LLM call failed, using fallback", map[string]interface{}{
			"operation": "routing",
			"error":     err.Error(),
		})
		return r.finalize(&RoutingDecision{
			ProjectName: names[0],
			Confidence:  0.5,
			Reasoning:   fmt.Sprintf("fallback after LLM failure: %v", err),
			Timestamp:   time.Now(),
		}, query, enabled, names, start, false), err
	}

	parsed := parseRoutingResponse(response.Content)

	var decision *RoutingDecision
	switch {
	case parsed.Fallback:
		decision = &RoutingDecision{
			ProjectName: names[0],
			Confidence:  0.3,
			Reasoning:   "fallback: " + parsed.FallbackReason,
			Timestamp:   time.Now(),
		}
	case !containsString(names, parsed.Project):
		decision = &RoutingDecision{
			ProjectName: names[0],
			Confidence:  0.3,
			Reasoning:   fmt.Sprintf("fallback: model selected unavailable project %q", parsed.Project),
			Timestamp:   time.Now(),
		}
	default:
		decision = &RoutingDecision{
			ProjectName:         parsed.Project,
			Confidence:          parsed.Confidence,
			Reasoning:           parsed.Reasoning,
			AlternativeProjects: parsed.Alternatives,
			Timestamp:           time.Now(),
		}
	}

	return r.finalize(decision, query, enabled, names, start, true), nil
}

// finalize applies feedback adjustment then context boost, and, when
// persist is set, inserts the decision into the cache and appends it to
// the conversation context. Fallbacks minted for a failed LLM call are
// never persisted; the next identical query re-consults the model.
func (r *Router) finalize(decision *RoutingDecision, query string, enabled []*project.Project, names []string, start time.Time, persist bool) *RoutingDecision {
	if r.feedback != nil {
		adjusted, confidence, reason := r.feedback.Adjust(query, decision.ProjectName, decision.Confidence)
		if adjusted != decision.ProjectName {
			decision.Reasoning = reason + "; Original: " + decision.Reasoning
			decision.ProjectName = adjusted
			decision.Confidence = confidence
		}
	}

	if r.context != nil {
		if boost, reason := r.context.Boost(query, decision.ProjectName); boost > 0 {
			decision.Confidence = ClampConfidence(decision.Confidence + boost)
			decision.Reasoning += " (" + reason + ")"
		}
	}

	decision.RoutingTimeMs = msSince(start)

	if !persist {
		return decision
	}

	if r.cache != nil {
		dependencies := []string{decision.ProjectName}
		for _, p := range enabled {
			dependencies = append(dependencies, p.CapabilityNames()...)
		}
		r.cache.Put(query, names, decision, dependencies)
	}

	if r.context != nil {
		r.context.Add(query, decision.ProjectName, decision.Confidence)
	}

	return decision
}

// buildPrompt composes the routing prompt from project metadata and an
// optional context summary.
func (r *Router) buildPrompt(query string, enabled []*project.Project) string {
	var sb strings.Builder
	sb.WriteString("You are a routing classifier for a multi-agent assistant.\n")
	sb.WriteString("Select the single best project to handle the user query.\n\nAvailable projects:\n")

	for _, p := range enabled {
		fmt.Fprintf(&sb, "- %s: %s\n", p.Name, p.Description)
		for _, c := range p.Capabilities {
			fmt.Fprintf(&sb, "    * %s: %s\n", c.Name, c.Description)
		}
	}

	if r.context != nil {
		if summary := r.context.Summary(); summary != "" {
			sb.WriteString("\nConversation context:\n")
			sb.WriteString(summary)
		}
	}

	fmt.Fprintf(&sb, "\nUser query: %s\n\n", query)
	sb.WriteString("Respond with exactly these four lines:\n")
	sb.WriteString("PROJECT: <name>\n")
	sb.WriteString("CONFIDENCE: <float between 0 and 1>\n")
	sb.WriteString("REASONING: <one sentence>\n")
	sb.WriteString("ALTERNATIVES: <comma-separated names, or none>\n")
	return sb.String()
}

// RecordFeedback forwards a user verdict to the feedback store
func (r *Router) RecordFeedback(query, selectedProject string, confidence float64, feedback, correctProject, sessionID string) {
	if r.feedback == nil {
		return
	}
	r.feedback.Record(query, selectedProject, confidence, feedback, correctProject, sessionID)
}

func (r *Router) recordMetric(query string, decision *RoutingDecision, mode string, success bool, errText string) {
	if r.analytics == nil {
		return
	}
	r.analytics.Record(analytics.RoutingMetric{
		Timestamp:       decision.Timestamp,
		Query:           query,
		ProjectSelected: decision.ProjectName,
		Confidence:      decision.Confidence,
		RoutingTimeMs:   decision.RoutingTimeMs,
		CacheHit:        decision.FromCache,
		Mode:            mode,
		Reasoning:       decision.Reasoning,
		Alternatives:    decision.AlternativeProjects,
		Success:         success,
		Error:           errText,
	})
}

func msSince(start time.Time) float64 {
	return float64(time.Since(start).Microseconds()) / 1000.0
}

func containsString(items []string, target string) bool {
	for _, item := range items {
		if item == target {
			return true
		}
	}
	return false
}
