// Package switchyard assembles the routing and orchestration core from
// a single configuration tree. Hosts that want finer control can build
// the components from the subpackages directly; this package is the
// config-driven entry point.
package switchyard

import (
	"time"

	"github.com/switchyard-ai/switchyard/analytics"
	"github.com/switchyard-ai/switchyard/core"
	"github.com/switchyard-ai/switchyard/llm"
	"github.com/switchyard-ai/switchyard/orchestration"
	"github.com/switchyard-ai/switchyard/project"
	"github.com/switchyard-ai/switchyard/routing"
)

// System holds every assembled component. All of them share the same
// logger, telemetry, and analytics pipeline. Components disabled by
// configuration are nil.
type System struct {
	Config       *core.Config
	Registry     *project.Registry
	Router       *routing.Router
	Orchestrator *orchestration.Orchestrator
	Analytics    *analytics.Collector
	Cache        *routing.RoutingCache
	Feedback     *routing.FeedbackStore
	Context      routing.ContextAnalyzer
}

type systemOptions struct {
	logger    core.Logger
	telemetry core.Telemetry
	llmClient core.LLMClient
	registry  *project.Registry
}

// SystemOption overrides one of the collaborators New would build
type SystemOption func(*systemOptions)

// WithLogger sets the logger shared by every component
func WithLogger(logger core.Logger) SystemOption {
	return func(o *systemOptions) { o.logger = logger }
}

// WithTelemetry sets the telemetry provider shared by every component
func WithTelemetry(telemetry core.Telemetry) SystemOption {
	return func(o *systemOptions) { o.telemetry = telemetry }
}

// WithLLMClient injects an LLM client instead of building one from the
// models and api sections.
func WithLLMClient(client core.LLMClient) SystemOption {
	return func(o *systemOptions) { o.llmClient = client }
}

// WithRegistry injects a pre-populated project registry
func WithRegistry(registry *project.Registry) SystemOption {
	return func(o *systemOptions) { o.registry = registry }
}

// New assembles a System from the configuration. Every key in the
// routing, models, and api sections maps onto the component it
// configures here. A nil config gets the defaults.
func New(cfg *core.Config, options ...SystemOption) (*System, error) {
	if cfg == nil {
		cfg = core.DefaultConfig()
	}
	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	opts := &systemOptions{}
	for _, opt := range options {
		opt(opts)
	}
	logger := opts.logger
	if logger == nil {
		logger = &core.NoOpLogger{}
	}

	registry := opts.registry
	if registry == nil {
		registry = project.NewRegistry(logger)
	}

	client, err := buildLLMClient(cfg, opts, logger)
	if err != nil {
		return nil, err
	}

	queryTimeout := time.Duration(cfg.Routing.QueryTimeoutSeconds) * time.Second

	sys := &System{Config: cfg, Registry: registry}
	routerOpts := []routing.RouterOption{
		routing.WithLogger(logger),
		routing.WithQueryTimeout(queryTimeout),
	}
	if opts.telemetry != nil {
		routerOpts = append(routerOpts, routing.WithTelemetry(opts.telemetry))
	}

	if *cfg.Routing.Cache.Enabled {
		inv := cfg.Routing.AdvancedInvalidation
		advanced := *inv.Enabled
		sys.Cache = routing.NewRoutingCache(routing.CacheOptions{
			MaxSize:                 cfg.Routing.Cache.MaxSize,
			BaseTTL:                 time.Duration(cfg.Routing.Cache.TTLSeconds) * time.Second,
			SimilarityThreshold:     cfg.Routing.Cache.SimilarityThreshold,
			AdaptiveTTL:             advanced && *inv.AdaptiveTTL,
			ProbabilisticExpiration: advanced && *inv.ProbabilisticExpiration,
			EventDriven:             advanced && *inv.EventDriven,
			Logger:                  logger,
		})
		routerOpts = append(routerOpts, routing.WithCache(sys.Cache))
	}

	sem := cfg.Routing.SemanticAnalysis
	if sem.Enabled {
		sys.Context = routing.NewSemanticContext(
			routing.NewHashedEmbedder(0),
			sem.MaxContextHistory,
			sem.SimilarityThreshold,
			sem.TopicSimilarityThreshold,
		)
	} else {
		sys.Context = routing.NewKeywordContext(sem.MaxContextHistory)
	}
	routerOpts = append(routerOpts, routing.WithContext(sys.Context))

	if *cfg.Routing.Feedback.Enabled {
		store, err := snapshotStoreFor(cfg.Routing.Feedback.StoragePath)
		if err != nil {
			return nil, err
		}
		sys.Feedback = routing.NewFeedbackStore(cfg.Routing.Feedback.LearningThreshold, 0, store, logger)
		routerOpts = append(routerOpts, routing.WithFeedback(sys.Feedback))
	}

	analyticsStore, err := snapshotStoreFor(cfg.Routing.Analytics.StoragePath)
	if err != nil {
		return nil, err
	}
	sys.Analytics = analytics.NewCollector(*cfg.Routing.Analytics.MaxHistory, routing.ExtractPattern, analyticsStore, logger)
	routerOpts = append(routerOpts, routing.WithAnalytics(sys.Analytics))

	sys.Router = routing.NewRouter(registry, client, routerOpts...)

	sys.Orchestrator = orchestration.NewOrchestrator(sys.Router,
		orchestration.WithLogger(logger),
		orchestration.WithAnalytics(sys.Analytics),
		orchestration.WithQueryTimeout(queryTimeout),
		orchestration.WithMaxParallel(cfg.Routing.Orchestration.MaxParallel),
	)

	return sys, nil
}

// NewFromFile loads the YAML configuration and assembles the system
func NewFromFile(path string, options ...SystemOption) (*System, error) {
	cfg, err := core.LoadConfig(path)
	if err != nil {
		return nil, err
	}
	return New(cfg, options...)
}

// buildLLMClient constructs the classifier client from the models and
// api sections unless the caller injected one.
func buildLLMClient(cfg *core.Config, opts *systemOptions, logger core.Logger) (core.LLMClient, error) {
	if opts.llmClient != nil {
		return opts.llmClient, nil
	}

	clientOpts := []llm.Option{llm.WithLogger(logger)}
	if opts.telemetry != nil {
		clientOpts = append(clientOpts, llm.WithTelemetry(opts.telemetry))
	}

	classifier := cfg.Models.Classifier
	if classifier.Provider != "" {
		clientOpts = append(clientOpts, llm.WithProvider(classifier.Provider))
	}
	if classifier.ModelID != "" {
		clientOpts = append(clientOpts, llm.WithModel(classifier.ModelID))
	}
	if p, ok := cfg.Provider(classifier.Provider); ok {
		if p.APIKey != "" {
			clientOpts = append(clientOpts, llm.WithAPIKey(p.APIKey))
		}
		if p.BaseURL != "" {
			clientOpts = append(clientOpts, llm.WithBaseURL(p.BaseURL))
		}
	}

	return llm.NewClient(clientOpts...)
}

// snapshotStoreFor returns a file-backed store for the path, or nil
// when persistence is not configured.
func snapshotStoreFor(path string) (core.SnapshotStore, error) {
	if path == "" {
		return nil, nil
	}
	return analytics.NewFileSnapshotStore(path)
}
