package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

// clearKeyEnv isolates tests from keys set in the developer's shell.
func clearKeyEnv(t *testing.T) {
	t.Helper()
	for _, env := range []string{EnvGeminiAPIKey, EnvAnthropicAPIKey, "WAVER_DATABASE_URL", "DATABASE_URL"} {
		t.Setenv(env, "")
	}
}

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("failed to write config file: %v", err)
	}
	return path
}

func TestDefault(t *testing.T) {
	cfg := Default()

	if cfg.Database.Driver != "memory" {
		t.Errorf("expected database driver 'memory', got %q", cfg.Database.Driver)
	}
	if cfg.LLM.Provider != "gemini" {
		t.Errorf("expected provider 'gemini', got %q", cfg.LLM.Provider)
	}
	if cfg.Gemini.Model != "gemini-2.0-flash-exp" {
		t.Errorf("expected gemini model 'gemini-2.0-flash-exp', got %q", cfg.Gemini.Model)
	}
	if cfg.Orchestrator.MaxConcurrentTasks != 3 {
		t.Errorf("expected max_concurrent_tasks 3, got %d", cfg.Orchestrator.MaxConcurrentTasks)
	}
	if cfg.Orchestrator.MaxRetries != 3 {
		t.Errorf("expected max_retries 3, got %d", cfg.Orchestrator.MaxRetries)
	}
	if cfg.Orchestrator.FailurePolicy != "continue" {
		t.Errorf("expected failure_policy 'continue', got %q", cfg.Orchestrator.FailurePolicy)
	}
	if cfg.History.Size != 100 {
		t.Errorf("expected history size 100, got %d", cfg.History.Size)
	}
	if cfg.Assistant.Mode != "adaptive" {
		t.Errorf("expected assistant mode 'adaptive', got %q", cfg.Assistant.Mode)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("default config is invalid: %v", err)
	}
}

func TestLoadFromPath(t *testing.T) {
	clearKeyEnv(t)
	path := writeConfig(t, `
gemini:
  api_key: test-key
orchestrator:
  max_concurrent_tasks: 5
  retry_backoff: 250ms
  failure_policy: skip_dependents
analyzer:
  extra_keywords:
    comparative: [contrasta]
  whole_words: true
history:
  driver: sqlite
  size: 10
  path: /tmp/h.db
log:
  level: debug
  format: json
`)

	cfg, err := LoadFromPath(path)
	if err != nil {
		t.Fatalf("LoadFromPath failed: %v", err)
	}

	if cfg.Gemini.APIKey != "test-key" {
		t.Errorf("expected api_key 'test-key', got %q", cfg.Gemini.APIKey)
	}
	if cfg.Orchestrator.MaxConcurrentTasks != 5 {
		t.Errorf("expected max_concurrent_tasks 5, got %d", cfg.Orchestrator.MaxConcurrentTasks)
	}
	if cfg.Orchestrator.RetryBackoff != 250*time.Millisecond {
		t.Errorf("expected retry_backoff 250ms, got %v", cfg.Orchestrator.RetryBackoff)
	}
	if cfg.Orchestrator.FailurePolicy != "skip_dependents" {
		t.Errorf("expected failure_policy 'skip_dependents', got %q", cfg.Orchestrator.FailurePolicy)
	}
	if got := cfg.Analyzer.ExtraKeywords["comparative"]; len(got) != 1 || got[0] != "contrasta" {
		t.Errorf("expected extra comparative keyword, got %v", got)
	}
	if !cfg.Analyzer.WholeWords {
		t.Error("expected whole_words to be true")
	}
	if cfg.History.Driver != "sqlite" || cfg.History.Size != 10 || cfg.History.Path != "/tmp/h.db" {
		t.Errorf("unexpected history config %+v", cfg.History)
	}
	// Unset keys keep their defaults.
	if cfg.Orchestrator.MaxRetries != 3 {
		t.Errorf("expected default max_retries 3, got %d", cfg.Orchestrator.MaxRetries)
	}
	if cfg.Orchestrator.TaskTimeout != 30*time.Second {
		t.Errorf("expected default task_timeout 30s, got %v", cfg.Orchestrator.TaskTimeout)
	}
}

func TestLoadFromPath_EnvOverrides(t *testing.T) {
	clearKeyEnv(t)
	t.Setenv(EnvGeminiAPIKey, "env-gemini")
	t.Setenv("WAVER_DATABASE_URL", "postgres://localhost/shop")
	t.Setenv("WAVER_ORCHESTRATOR_MAX_RETRIES", "7")

	path := writeConfig(t, `
gemini:
  api_key: file-key
database:
  driver: postgres
`)
	cfg, err := LoadFromPath(path)
	if err != nil {
		t.Fatalf("LoadFromPath failed: %v", err)
	}
	if cfg.Gemini.APIKey != "env-gemini" {
		t.Errorf("expected env key to win, got %q", cfg.Gemini.APIKey)
	}
	if cfg.Database.URL != "postgres://localhost/shop" {
		t.Errorf("expected database url from env, got %q", cfg.Database.URL)
	}
	if cfg.Orchestrator.MaxRetries != 7 {
		t.Errorf("expected max_retries 7 from env, got %d", cfg.Orchestrator.MaxRetries)
	}
}

func TestLoadFromPath_Invalid(t *testing.T) {
	clearKeyEnv(t)
	tests := []struct {
		name    string
		content string
		wantErr string
	}{
		{"failure policy", "orchestrator:\n  failure_policy: explode\n", "orchestrator.failure_policy"},
		{"provider", "llm:\n  provider: openai\n", "llm.provider"},
		{"history driver", "history:\n  driver: redis\n", "history.driver"},
		{"mode", "assistant:\n  mode: turbo\n", "assistant.mode"},
		{"postgres without url", "database:\n  driver: postgres\n", "database.url"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := LoadFromPath(writeConfig(t, tt.content))
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("LoadFromPath() error = %v, want mention of %q", err, tt.wantErr)
			}
		})
	}
}

func TestLoadFromPath_Missing(t *testing.T) {
	if _, err := LoadFromPath(filepath.Join(t.TempDir(), "nope.yaml")); err == nil {
		t.Error("expected error for missing file")
	}
}

func TestSaveToRoundTrip(t *testing.T) {
	clearKeyEnv(t)
	cfg := Default()
	cfg.Orchestrator.MaxConcurrentTasks = 6
	cfg.Orchestrator.TaskTimeout = 2 * time.Minute
	cfg.Assistant.Mode = "agentic"
	cfg.Metrics.Addr = ":9090"

	path := filepath.Join(t.TempDir(), "saved.yaml")
	if err := SaveTo(cfg, path); err != nil {
		t.Fatalf("SaveTo failed: %v", err)
	}
	loaded, err := LoadFromPath(path)
	if err != nil {
		t.Fatalf("LoadFromPath failed: %v", err)
	}
	if loaded.Orchestrator.MaxConcurrentTasks != 6 || loaded.Orchestrator.TaskTimeout != 2*time.Minute {
		t.Errorf("orchestrator not round-tripped: %+v", loaded.Orchestrator)
	}
	if loaded.Assistant.Mode != "agentic" || loaded.Metrics.Addr != ":9090" {
		t.Errorf("assistant/metrics not round-tripped: %+v %+v", loaded.Assistant, loaded.Metrics)
	}
}

func TestWatch(t *testing.T) {
	clearKeyEnv(t)
	path := writeConfig(t, "log:\n  level: info\n")

	changes := make(chan *Config, 4)
	cfg, err := Watch(path, func(c *Config, err error) {
		if err == nil {
			changes <- c
		}
	})
	if err != nil {
		t.Fatalf("Watch failed: %v", err)
	}
	if cfg.Log.Level != "info" {
		t.Fatalf("expected initial level info, got %q", cfg.Log.Level)
	}

	if err := os.WriteFile(path, []byte("log:\n  level: debug\n"), 0644); err != nil {
		t.Fatalf("rewrite config: %v", err)
	}

	deadline := time.After(5 * time.Second)
	for {
		select {
		case c := <-changes:
			if c.Log.Level == "debug" {
				return
			}
		case <-deadline:
			t.Fatal("no config change observed")
		}
	}
}

func TestExpandEnv(t *testing.T) {
	t.Setenv("TEST_VAR", "expanded-value")

	result := expandEnv("${TEST_VAR}")
	if result != "expanded-value" {
		t.Errorf("expected 'expanded-value', got %q", result)
	}

	result = expandEnv("prefix-${TEST_VAR}-suffix")
	if result != "prefix-expanded-value-suffix" {
		t.Errorf("expected 'prefix-expanded-value-suffix', got %q", result)
	}
}

func TestGetUserConfigDir(t *testing.T) {
	t.Setenv("XDG_CONFIG_HOME", "/custom/config")

	dir := getUserConfigDir()
	expected := "/custom/config/waver"
	if dir != expected {
		t.Errorf("expected %q, got %q", expected, dir)
	}
}
