package core

import (
	"os"
	"path/filepath"
	"testing"
)

func writeConfigFile(t *testing.T, content string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("failed to write config file: %v", err)
	}
	return path
}

func TestLoadConfig_Defaults(t *testing.T) {
	path := writeConfigFile(t, "routing: {}\n")

	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig failed: %v", err)
	}

	if !*cfg.Routing.Cache.Enabled {
		t.Error("Expected cache enabled by default")
	}
	if cfg.Routing.Cache.MaxSize != 100 {
		t.Errorf("Expected default max_size 100, got %d", cfg.Routing.Cache.MaxSize)
	}
	if cfg.Routing.Cache.TTLSeconds != 3600 {
		t.Errorf("Expected default ttl_seconds 3600, got %d", cfg.Routing.Cache.TTLSeconds)
	}
	if cfg.Routing.Cache.SimilarityThreshold != 0.85 {
		t.Errorf("Expected default similarity_threshold 0.85, got %f", cfg.Routing.Cache.SimilarityThreshold)
	}
	if cfg.Routing.Orchestration.MaxParallel != 3 {
		t.Errorf("Expected default max_parallel 3, got %d", cfg.Routing.Orchestration.MaxParallel)
	}
	if *cfg.Routing.Analytics.MaxHistory != 1000 {
		t.Errorf("Expected default max_history 1000, got %d", *cfg.Routing.Analytics.MaxHistory)
	}
	if cfg.Routing.Feedback.LearningThreshold != 2 {
		t.Errorf("Expected default learning_threshold 2, got %d", cfg.Routing.Feedback.LearningThreshold)
	}
	if cfg.Routing.QueryTimeoutSeconds != 300 {
		t.Errorf("Expected default query timeout 300, got %d", cfg.Routing.QueryTimeoutSeconds)
	}
}

func TestLoadConfig_ExplicitValues(t *testing.T) {
	path := writeConfigFile(t, `
routing:
  cache:
    enabled: false
    max_size: 50
    ttl_seconds: 600
    similarity_threshold: 0.9
  semantic_analysis:
    enabled: true
    topic_similarity_threshold: 0.5
  orchestration:
    max_parallel: 5
  analytics:
    max_history: 0
  feedback:
    enabled: false
`)

	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig failed: %v", err)
	}

	if *cfg.Routing.Cache.Enabled {
		t.Error("Expected cache disabled")
	}
	if cfg.Routing.Cache.MaxSize != 50 {
		t.Errorf("Expected max_size 50, got %d", cfg.Routing.Cache.MaxSize)
	}
	if !cfg.Routing.SemanticAnalysis.Enabled {
		t.Error("Expected semantic analysis enabled")
	}
	if cfg.Routing.SemanticAnalysis.TopicSimilarityThreshold != 0.5 {
		t.Errorf("Expected topic threshold 0.5, got %f", cfg.Routing.SemanticAnalysis.TopicSimilarityThreshold)
	}
	if cfg.Routing.Orchestration.MaxParallel != 5 {
		t.Errorf("Expected max_parallel 5, got %d", cfg.Routing.Orchestration.MaxParallel)
	}
	// max_history: 0 is an explicit value, not an unset field
	if *cfg.Routing.Analytics.MaxHistory != 0 {
		t.Errorf("Expected explicit max_history 0, got %d", *cfg.Routing.Analytics.MaxHistory)
	}
	if *cfg.Routing.Feedback.Enabled {
		t.Error("Expected feedback disabled")
	}
}

func TestLoadConfig_EnvExpansion(t *testing.T) {
	t.Setenv("SWITCHYARD_TEST_API_KEY", "sk-test-123")

	path := writeConfigFile(t, `
models:
  classifier:
    provider: anthropic
    model_id: claude-3-5-haiku
api:
  providers:
    anthropic:
      api_key: ${SWITCHYARD_TEST_API_KEY}
      base_url: ${SWITCHYARD_TEST_MISSING_URL:-https://api.anthropic.com/v1}
`)

	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig failed: %v", err)
	}

	p, ok := cfg.Provider("anthropic")
	if !ok {
		t.Fatal("Expected anthropic provider config")
	}
	if p.APIKey != "sk-test-123" {
		t.Errorf("Expected expanded API key, got %q", p.APIKey)
	}
	if p.BaseURL != "https://api.anthropic.com/v1" {
		t.Errorf("Expected default base URL, got %q", p.BaseURL)
	}
}

func TestLoadConfig_MissingFile(t *testing.T) {
	_, err := LoadConfig("/nonexistent/config.yaml")
	if err == nil {
		t.Fatal("Expected error for missing file")
	}
	if !IsConfigurationError(err) {
		t.Errorf("Expected configuration error, got %v", err)
	}
}

func TestLoadConfig_InvalidYAML(t *testing.T) {
	path := writeConfigFile(t, "routing: [not a map\n")

	_, err := LoadConfig(path)
	if err == nil {
		t.Fatal("Expected error for invalid YAML")
	}
	if !IsConfigurationError(err) {
		t.Errorf("Expected configuration error, got %v", err)
	}
}

func TestConfigValidate_BadThreshold(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Routing.Cache.SimilarityThreshold = 1.5

	if err := cfg.Validate(); err == nil {
		t.Fatal("Expected validation error for threshold > 1")
	}
}
