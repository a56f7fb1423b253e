package core

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Config holds all configuration for the routing and orchestration core.
// It is loaded from YAML with three-layer priority:
//  1. Default values (lowest priority)
//  2. YAML file contents, with ${ENV_VAR} values expanded at load time
//  3. Programmatic overrides by the caller (highest priority)
type Config struct {
	Routing RoutingConfig `yaml:"routing"`
	Models  ModelsConfig  `yaml:"models"`
	API     APIConfig     `yaml:"api"`
}

// RoutingConfig configures the router and its collaborators.
type RoutingConfig struct {
	Cache                CacheConfig        `yaml:"cache"`
	AdvancedInvalidation InvalidationConfig `yaml:"advanced_invalidation"`
	SemanticAnalysis     SemanticConfig     `yaml:"semantic_analysis"`
	Orchestration        OrchestrationCfg   `yaml:"orchestration"`
	Analytics            AnalyticsConfig    `yaml:"analytics"`
	Feedback             FeedbackConfig     `yaml:"feedback"`

	// QueryTimeoutSeconds bounds the whole pipeline for one query.
	QueryTimeoutSeconds int `yaml:"query_timeout_seconds"`
}

// CacheConfig configures the routing cache.
type CacheConfig struct {
	Enabled             *bool   `yaml:"enabled"`
	MaxSize             int     `yaml:"max_size"`
	TTLSeconds          int     `yaml:"ttl_seconds"`
	SimilarityThreshold float64 `yaml:"similarity_threshold"`
}

// InvalidationConfig toggles the advanced cache invalidation strategies.
type InvalidationConfig struct {
	Enabled                 *bool `yaml:"enabled"`
	AdaptiveTTL             *bool `yaml:"adaptive_ttl"`
	ProbabilisticExpiration *bool `yaml:"probabilistic_expiration"`
	EventDriven             *bool `yaml:"event_driven"`
}

// SemanticConfig selects semantic vs. keyword conversation context.
type SemanticConfig struct {
	Enabled                  bool    `yaml:"enabled"`
	SimilarityThreshold      float64 `yaml:"similarity_threshold"`
	TopicSimilarityThreshold float64 `yaml:"topic_similarity_threshold"`
	MaxContextHistory        int     `yaml:"max_context_history"`
}

// OrchestrationCfg configures multi-project orchestration.
type OrchestrationCfg struct {
	MaxParallel int `yaml:"max_parallel"`
}

// AnalyticsConfig configures the analytics ring buffer.
type AnalyticsConfig struct {
	MaxHistory  *int   `yaml:"max_history"`
	StoragePath string `yaml:"storage_path"`
}

// FeedbackConfig configures learning from user feedback.
type FeedbackConfig struct {
	Enabled           *bool  `yaml:"enabled"`
	LearningThreshold int    `yaml:"learning_threshold"`
	StoragePath       string `yaml:"storage_path"`
}

// ModelsConfig names the models used by the core.
type ModelsConfig struct {
	Classifier ModelConfig `yaml:"classifier"`
}

// ModelConfig identifies one provider/model pair.
type ModelConfig struct {
	Provider string `yaml:"provider"`
	ModelID  string `yaml:"model_id"`
}

// APIConfig carries provider credentials.
type APIConfig struct {
	Providers map[string]ProviderConfig `yaml:"providers"`
}

// ProviderConfig carries one provider's credentials and endpoint.
type ProviderConfig struct {
	APIKey  string `yaml:"api_key"`
	BaseURL string `yaml:"base_url"`
}

// DefaultConfig returns the configuration defaults.
func DefaultConfig() *Config {
	cfg := &Config{}
	cfg.applyDefaults()
	return cfg
}

// LoadConfig reads a YAML configuration file, expands ${ENV_VAR} references,
// unmarshals it, and applies defaults for unset values.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, &CoreError{
			Op:   "config.Load",
			Kind: "config",
			ID:   path,
			Err:  fmt.Errorf("%w: %v", ErrMissingConfiguration, err),
		}
	}

	expanded := ExpandEnvVars(string(data))

	cfg := &Config{}
	if err := yaml.Unmarshal([]byte(expanded), cfg); err != nil {
		return nil, &CoreError{
			Op:   "config.Load",
			Kind: "config",
			ID:   path,
			Err:  fmt.Errorf("%w: %v", ErrInvalidConfiguration, err),
		}
	}

	cfg.applyDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate checks configuration consistency. Raised only at construction.
func (c *Config) Validate() error {
	if c.Routing.Cache.SimilarityThreshold < 0 || c.Routing.Cache.SimilarityThreshold > 1 {
		return &CoreError{
			Op:      "config.Validate",
			Kind:    "config",
			Message: "routing.cache.similarity_threshold must be in [0,1]",
			Err:     ErrInvalidConfiguration,
		}
	}
	if c.Routing.SemanticAnalysis.TopicSimilarityThreshold < 0 || c.Routing.SemanticAnalysis.TopicSimilarityThreshold > 1 {
		return &CoreError{
			Op:      "config.Validate",
			Kind:    "config",
			Message: "routing.semantic_analysis.topic_similarity_threshold must be in [0,1]",
			Err:     ErrInvalidConfiguration,
		}
	}
	if c.Routing.Orchestration.MaxParallel < 1 {
		return &CoreError{
			Op:      "config.Validate",
			Kind:    "config",
			Message: "routing.orchestration.max_parallel must be at least 1",
			Err:     ErrInvalidConfiguration,
		}
	}
	return nil
}

// ApplyDefaults fills unset fields with their defaults. LoadConfig
// calls it automatically; callers building a Config programmatically
// should call it before handing the tree to a constructor.
func (c *Config) ApplyDefaults() {
	c.applyDefaults()
}

func (c *Config) applyDefaults() {
	if c.Routing.Cache.Enabled == nil {
		c.Routing.Cache.Enabled = boolPtr(true)
	}
	if c.Routing.Cache.MaxSize == 0 {
		c.Routing.Cache.MaxSize = 100
	}
	if c.Routing.Cache.TTLSeconds == 0 {
		c.Routing.Cache.TTLSeconds = 3600
	}
	if c.Routing.Cache.SimilarityThreshold == 0 {
		c.Routing.Cache.SimilarityThreshold = 0.85
	}

	if c.Routing.AdvancedInvalidation.Enabled == nil {
		c.Routing.AdvancedInvalidation.Enabled = boolPtr(true)
	}
	if c.Routing.AdvancedInvalidation.AdaptiveTTL == nil {
		c.Routing.AdvancedInvalidation.AdaptiveTTL = boolPtr(true)
	}
	if c.Routing.AdvancedInvalidation.ProbabilisticExpiration == nil {
		c.Routing.AdvancedInvalidation.ProbabilisticExpiration = boolPtr(true)
	}
	if c.Routing.AdvancedInvalidation.EventDriven == nil {
		c.Routing.AdvancedInvalidation.EventDriven = boolPtr(true)
	}

	if c.Routing.SemanticAnalysis.SimilarityThreshold == 0 {
		c.Routing.SemanticAnalysis.SimilarityThreshold = 0.7
	}
	if c.Routing.SemanticAnalysis.TopicSimilarityThreshold == 0 {
		c.Routing.SemanticAnalysis.TopicSimilarityThreshold = 0.6
	}
	if c.Routing.SemanticAnalysis.MaxContextHistory == 0 {
		c.Routing.SemanticAnalysis.MaxContextHistory = 10
	}

	if c.Routing.Orchestration.MaxParallel == 0 {
		c.Routing.Orchestration.MaxParallel = 3
	}

	if c.Routing.Analytics.MaxHistory == nil {
		c.Routing.Analytics.MaxHistory = intPtr(1000)
	}

	if c.Routing.Feedback.Enabled == nil {
		c.Routing.Feedback.Enabled = boolPtr(true)
	}
	if c.Routing.Feedback.LearningThreshold == 0 {
		c.Routing.Feedback.LearningThreshold = 2
	}

	if c.Routing.QueryTimeoutSeconds == 0 {
		c.Routing.QueryTimeoutSeconds = 300
	}
}

// Provider returns the named provider's credentials, if configured.
func (c *Config) Provider(name string) (ProviderConfig, bool) {
	if c.API.Providers == nil {
		return ProviderConfig{}, false
	}
	p, ok := c.API.Providers[name]
	return p, ok
}

func boolPtr(b bool) *bool { return &b }
func intPtr(i int) *int    { return &i }
