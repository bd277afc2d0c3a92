// Package config handles configuration loading and management for waver.
// It supports XDG config paths, project-level overrides, and environment variables.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"
)

// Config holds all configuration for waver.
type Config struct {
	Database     DatabaseConfig     `mapstructure:"database"`
	LLM          LLMConfig          `mapstructure:"llm"`
	Gemini       GeminiConfig       `mapstructure:"gemini"`
	Anthropic    AnthropicConfig    `mapstructure:"anthropic"`
	Orchestrator OrchestratorConfig `mapstructure:"orchestrator"`
	Decomposer   DecomposerConfig   `mapstructure:"decomposer"`
	Analyzer     AnalyzerConfig     `mapstructure:"analyzer"`
	History      HistoryConfig      `mapstructure:"history"`
	Assistant    AssistantConfig    `mapstructure:"assistant"`
	Log          LogConfig          `mapstructure:"log"`
	Metrics      MetricsConfig      `mapstructure:"metrics"`
}

// DatabaseConfig selects the shop data store.
type DatabaseConfig struct {
	// Driver is memory (sample data) or postgres.
	Driver             string        `mapstructure:"driver"`
	URL                string        `mapstructure:"url"`
	PingTimeout        time.Duration `mapstructure:"ping_timeout"`
	MaxOpenConns       int           `mapstructure:"max_open_conns"`
	MaxIdleConns       int           `mapstructure:"max_idle_conns"`
	ConnMaxLifetime    time.Duration `mapstructure:"conn_max_lifetime"`
	ProductNameColumns []string      `mapstructure:"product_name_columns"`
}

// LLMConfig selects the language model provider and its call limits.
type LLMConfig struct {
	// Provider is gemini, anthropic or none.
	Provider          string        `mapstructure:"provider"`
	Timeout           time.Duration `mapstructure:"timeout"`
	RequestsPerSecond float64       `mapstructure:"requests_per_second"`
	Burst             int           `mapstructure:"burst"`
}

// GeminiConfig holds Google Gemini settings.
type GeminiConfig struct {
	APIKey   string `mapstructure:"api_key"`
	Model    string `mapstructure:"model"`
	ProModel string `mapstructure:"pro_model"`
}

// AnthropicConfig holds Anthropic API settings.
type AnthropicConfig struct {
	APIKey     string `mapstructure:"api_key"`
	Model      string `mapstructure:"model"`
	UseBedrock bool   `mapstructure:"use_bedrock"`
	AWSRegion  string `mapstructure:"aws_region"`
	AWSProfile string `mapstructure:"aws_profile"`
}

// OrchestratorConfig holds plan execution limits.
type OrchestratorConfig struct {
	MaxConcurrentTasks int           `mapstructure:"max_concurrent_tasks"`
	MaxRetries         int           `mapstructure:"max_retries"`
	RetryBackoff       time.Duration `mapstructure:"retry_backoff"`
	TaskTimeout        time.Duration `mapstructure:"task_timeout"`
	// FailurePolicy is continue or skip_dependents.
	FailurePolicy string `mapstructure:"failure_policy"`
}

// DecomposerConfig controls model-proposed plans for complex queries.
type DecomposerConfig struct {
	LLMEnabled bool          `mapstructure:"llm_enabled"`
	LLMTimeout time.Duration `mapstructure:"llm_timeout"`
}

// AnalyzerConfig extends the keyword tables.
type AnalyzerConfig struct {
	// ExtraKeywords maps a category name to additional phrases.
	ExtraKeywords map[string][]string `mapstructure:"extra_keywords"`
	WholeWords    bool                `mapstructure:"whole_words"`
}

// HistoryConfig selects where finished plans are kept.
type HistoryConfig struct {
	// Driver is memory or sqlite.
	Driver string `mapstructure:"driver"`
	Size   int    `mapstructure:"size"`
	// Path is the SQLite file; empty uses the XDG data directory.
	Path string `mapstructure:"path"`
}

// AssistantConfig controls message routing.
type AssistantConfig struct {
	// Mode is simple, agentic or adaptive.
	Mode             string `mapstructure:"mode"`
	EnhanceResponses bool   `mapstructure:"enhance_responses"`
}

// LogConfig controls logging.
type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
	// File receives logs instead of stderr when set.
	File string `mapstructure:"file"`
}

// MetricsConfig controls the Prometheus endpoint.
type MetricsConfig struct {
	// Addr is the listen address for /metrics; empty disables it.
	Addr string `mapstructure:"addr"`
}

// Load loads configuration from XDG paths, project overrides, and environment variables.
// Precedence (highest to lowest):
// 1. Environment variables (GEMINI_API_KEY, ANTHROPIC_API_KEY, WAVER_*)
// 2. Project config (.waver.yaml in current directory or parent)
// 3. User config (~/.config/waver/config.yaml)
// 4. Built-in defaults
func Load() (*Config, error) {
	v := newViper()

	userConfigDir := getUserConfigDir()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(userConfigDir)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("reading user config: %w", err)
		}
	}

	if projectConfig := findProjectConfig(); projectConfig != "" {
		projectViper := viper.New()
		projectViper.SetConfigFile(projectConfig)
		if err := projectViper.ReadInConfig(); err == nil {
			if err := v.MergeConfigMap(projectViper.AllSettings()); err != nil {
				return nil, fmt.Errorf("merging project config: %w", err)
			}
		}
	}

	return unmarshal(v)
}

// LoadFromPath loads configuration from a specific path (for testing).
func LoadFromPath(path string) (*Config, error) {
	v := newViper()
	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("reading config from %s: %w", path, err)
	}
	return unmarshal(v)
}

// Watch loads path and calls onChange with the reloaded configuration each
// time the file is written. Reload errors are passed to onChange with a nil
// config.
func Watch(path string, onChange func(*Config, error)) (*Config, error) {
	v := newViper()
	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("reading config from %s: %w", path, err)
	}
	cfg, err := unmarshal(v)
	if err != nil {
		return nil, err
	}

	v.OnConfigChange(func(e fsnotify.Event) {
		if !e.Has(fsnotify.Write) && !e.Has(fsnotify.Create) {
			return
		}
		onChange(unmarshal(v))
	})
	v.WatchConfig()
	return cfg, nil
}

// newViper returns a viper instance with defaults and environment bindings.
func newViper() *viper.Viper {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix("WAVER")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	_ = v.BindEnv("gemini.api_key", "GEMINI_API_KEY", "WAVER_GEMINI_API_KEY")
	_ = v.BindEnv("anthropic.api_key", "ANTHROPIC_API_KEY", "WAVER_ANTHROPIC_API_KEY")
	_ = v.BindEnv("database.url", "WAVER_DATABASE_URL", "DATABASE_URL")
	return v
}

func unmarshal(v *viper.Viper) (*Config, error) {
	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}

	cfg.Gemini.APIKey = expandEnv(cfg.Gemini.APIKey)
	cfg.Anthropic.APIKey = expandEnv(cfg.Anthropic.APIKey)
	cfg.Database.URL = expandEnv(cfg.Database.URL)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate rejects unknown enumerated values.
func (c *Config) Validate() error {
	checks := []struct {
		key, value string
		allowed    []string
	}{
		{"database.driver", c.Database.Driver, []string{"memory", "postgres"}},
		{"llm.provider", c.LLM.Provider, []string{"gemini", "anthropic", "none"}},
		{"orchestrator.failure_policy", c.Orchestrator.FailurePolicy, []string{"continue", "skip_dependents"}},
		{"history.driver", c.History.Driver, []string{"memory", "sqlite"}},
		{"assistant.mode", c.Assistant.Mode, []string{"simple", "agentic", "adaptive"}},
		{"log.format", c.Log.Format, []string{"text", "json"}},
	}
	for _, check := range checks {
		if !contains(check.allowed, check.value) {
			return fmt.Errorf("invalid %s %q: want one of %s", check.key, check.value, strings.Join(check.allowed, ", "))
		}
	}
	if c.Database.Driver == "postgres" && c.Database.URL == "" {
		return errors.New("database.url is required for the postgres driver")
	}
	return nil
}

func contains(values []string, v string) bool {
	for _, allowed := range values {
		if v == allowed {
			return true
		}
	}
	return false
}

// Save writes the configuration to the user config file.
func Save(cfg *Config) error {
	userConfigDir := getUserConfigDir()
	if err := os.MkdirAll(userConfigDir, 0700); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}
	return SaveTo(cfg, filepath.Join(userConfigDir, "config.yaml"))
}

// SaveTo writes the configuration to path.
func SaveTo(cfg *Config, path string) error {
	v := viper.New()
	v.SetConfigFile(path)

	v.Set("database.driver", cfg.Database.Driver)
	v.Set("database.url", cfg.Database.URL)
	v.Set("database.ping_timeout", cfg.Database.PingTimeout.String())
	v.Set("database.max_open_conns", cfg.Database.MaxOpenConns)
	v.Set("database.max_idle_conns", cfg.Database.MaxIdleConns)
	v.Set("database.conn_max_lifetime", cfg.Database.ConnMaxLifetime.String())
	v.Set("database.product_name_columns", cfg.Database.ProductNameColumns)
	v.Set("llm.provider", cfg.LLM.Provider)
	v.Set("llm.timeout", cfg.LLM.Timeout.String())
	v.Set("llm.requests_per_second", cfg.LLM.RequestsPerSecond)
	v.Set("llm.burst", cfg.LLM.Burst)
	v.Set("gemini.api_key", cfg.Gemini.APIKey)
	v.Set("gemini.model", cfg.Gemini.Model)
	v.Set("gemini.pro_model", cfg.Gemini.ProModel)
	v.Set("anthropic.api_key", cfg.Anthropic.APIKey)
	v.Set("anthropic.model", cfg.Anthropic.Model)
	v.Set("anthropic.use_bedrock", cfg.Anthropic.UseBedrock)
	v.Set("anthropic.aws_region", cfg.Anthropic.AWSRegion)
	v.Set("anthropic.aws_profile", cfg.Anthropic.AWSProfile)
	v.Set("orchestrator.max_concurrent_tasks", cfg.Orchestrator.MaxConcurrentTasks)
	v.Set("orchestrator.max_retries", cfg.Orchestrator.MaxRetries)
	v.Set("orchestrator.retry_backoff", cfg.Orchestrator.RetryBackoff.String())
	v.Set("orchestrator.task_timeout", cfg.Orchestrator.TaskTimeout.String())
	v.Set("orchestrator.failure_policy", cfg.Orchestrator.FailurePolicy)
	v.Set("decomposer.llm_enabled", cfg.Decomposer.LLMEnabled)
	v.Set("decomposer.llm_timeout", cfg.Decomposer.LLMTimeout.String())
	v.Set("analyzer.extra_keywords", cfg.Analyzer.ExtraKeywords)
	v.Set("analyzer.whole_words", cfg.Analyzer.WholeWords)
	v.Set("history.driver", cfg.History.Driver)
	v.Set("history.size", cfg.History.Size)
	v.Set("history.path", cfg.History.Path)
	v.Set("assistant.mode", cfg.Assistant.Mode)
	v.Set("assistant.enhance_responses", cfg.Assistant.EnhanceResponses)
	v.Set("log.level", cfg.Log.Level)
	v.Set("log.format", cfg.Log.Format)
	v.Set("log.file", cfg.Log.File)
	v.Set("metrics.addr", cfg.Metrics.Addr)

	return v.WriteConfig()
}

// GetUserConfigPath returns the path to the user config file.
func GetUserConfigPath() string {
	return filepath.Join(getUserConfigDir(), "config.yaml")
}

// GetProjectConfigPath returns the path to the project config file if it exists.
func GetProjectConfigPath() string {
	return findProjectConfig()
}

// setDefaults configures default values.
func setDefaults(v *viper.Viper) {
	d := Default()

	v.SetDefault("database.driver", d.Database.Driver)
	v.SetDefault("database.url", "")
	v.SetDefault("database.ping_timeout", d.Database.PingTimeout.String())
	v.SetDefault("database.max_open_conns", d.Database.MaxOpenConns)
	v.SetDefault("database.max_idle_conns", d.Database.MaxIdleConns)
	v.SetDefault("database.conn_max_lifetime", d.Database.ConnMaxLifetime.String())
	v.SetDefault("database.product_name_columns", d.Database.ProductNameColumns)

	v.SetDefault("llm.provider", d.LLM.Provider)
	v.SetDefault("llm.timeout", d.LLM.Timeout.String())
	v.SetDefault("llm.requests_per_second", d.LLM.RequestsPerSecond)
	v.SetDefault("llm.burst", d.LLM.Burst)

	v.SetDefault("gemini.api_key", "")
	v.SetDefault("gemini.model", d.Gemini.Model)
	v.SetDefault("gemini.pro_model", d.Gemini.ProModel)

	v.SetDefault("anthropic.api_key", "")
	v.SetDefault("anthropic.model", "")
	v.SetDefault("anthropic.use_bedrock", false)
	v.SetDefault("anthropic.aws_region", "")
	v.SetDefault("anthropic.aws_profile", "")

	v.SetDefault("orchestrator.max_concurrent_tasks", d.Orchestrator.MaxConcurrentTasks)
	v.SetDefault("orchestrator.max_retries", d.Orchestrator.MaxRetries)
	v.SetDefault("orchestrator.retry_backoff", d.Orchestrator.RetryBackoff.String())
	v.SetDefault("orchestrator.task_timeout", d.Orchestrator.TaskTimeout.String())
	v.SetDefault("orchestrator.failure_policy", d.Orchestrator.FailurePolicy)

	v.SetDefault("decomposer.llm_enabled", d.Decomposer.LLMEnabled)
	v.SetDefault("decomposer.llm_timeout", d.Decomposer.LLMTimeout.String())

	v.SetDefault("analyzer.extra_keywords", map[string][]string{})
	v.SetDefault("analyzer.whole_words", false)

	v.SetDefault("history.driver", d.History.Driver)
	v.SetDefault("history.size", d.History.Size)
	v.SetDefault("history.path", "")

	v.SetDefault("assistant.mode", d.Assistant.Mode)
	v.SetDefault("assistant.enhance_responses", d.Assistant.EnhanceResponses)

	v.SetDefault("log.level", d.Log.Level)
	v.SetDefault("log.format", d.Log.Format)
	v.SetDefault("log.file", "")

	v.SetDefault("metrics.addr", "")
}

// getUserConfigDir returns the XDG config directory for waver.
func getUserConfigDir() string {
	if xdgConfig := os.Getenv("XDG_CONFIG_HOME"); xdgConfig != "" {
		return filepath.Join(xdgConfig, "waver")
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(".", ".config", "waver")
	}
	return filepath.Join(home, ".config", "waver")
}

// findProjectConfig searches for .waver.yaml in the current directory and parents.
func findProjectConfig() string {
	cwd, err := os.Getwd()
	if err != nil {
		return ""
	}

	for {
		configPath := filepath.Join(cwd, ".waver.yaml")
		if _, err := os.Stat(configPath); err == nil {
			return configPath
		}

		parent := filepath.Dir(cwd)
		if parent == cwd {
			break
		}
		cwd = parent
	}

	return ""
}

// expandEnv expands ${VAR} references in a string.
func expandEnv(s string) string {
	return os.ExpandEnv(s)
}

// Default returns a Config with default values.
func Default() *Config {
	return &Config{
		Database: DatabaseConfig{
			Driver:             "memory",
			PingTimeout:        5 * time.Second,
			MaxOpenConns:       10,
			MaxIdleConns:       5,
			ConnMaxLifetime:    30 * time.Minute,
			ProductNameColumns: []string{"product_name", "nombre_producto", "nombre"},
		},
		LLM: LLMConfig{
			Provider:          "gemini",
			Timeout:           60 * time.Second,
			RequestsPerSecond: 2,
			Burst:             4,
		},
		Gemini: GeminiConfig{
			Model:    "gemini-2.0-flash-exp",
			ProModel: "gemini-2.5-pro",
		},
		Orchestrator: OrchestratorConfig{
			MaxConcurrentTasks: 3,
			MaxRetries:         3,
			RetryBackoff:       100 * time.Millisecond,
			TaskTimeout:        30 * time.Second,
			FailurePolicy:      "continue",
		},
		Decomposer: DecomposerConfig{
			LLMEnabled: false,
			LLMTimeout: 30 * time.Second,
		},
		History: HistoryConfig{
			Driver: "memory",
			Size:   100,
		},
		Assistant: AssistantConfig{
			Mode:             "adaptive",
			EnhanceResponses: true,
		},
		Log: LogConfig{
			Level:  "info",
			Format: "text",
		},
	}
}
