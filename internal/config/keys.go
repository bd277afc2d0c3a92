package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
)

// ErrNoAPIKey is returned when no API key is configured for a provider.
var ErrNoAPIKey = errors.New("no API key configured")

// Environment variables holding provider API keys.
const (
	EnvGeminiAPIKey    = "GEMINI_API_KEY"
	EnvAnthropicAPIKey = "ANTHROPIC_API_KEY"
)

// GetGeminiAPIKey returns the Gemini API key.
// It checks in order: environment variable, config file.
func GetGeminiAPIKey(cfg *Config) (string, error) {
	var configured string
	if cfg != nil {
		configured = cfg.Gemini.APIKey
	}
	key, _ := resolveKey(EnvGeminiAPIKey, configured)
	if key == "" {
		return "", fmt.Errorf("gemini: %w", ErrNoAPIKey)
	}
	return key, nil
}

// GetAnthropicAPIKey returns the Anthropic API key.
// It checks in order: environment variable, config file.
func GetAnthropicAPIKey(cfg *Config) (string, error) {
	var configured string
	if cfg != nil {
		configured = cfg.Anthropic.APIKey
	}
	key, _ := resolveKey(EnvAnthropicAPIKey, configured)
	if key == "" {
		return "", fmt.Errorf("anthropic: %w", ErrNoAPIKey)
	}
	return key, nil
}

func resolveKey(env, configured string) (string, KeySource) {
	if key := os.Getenv(env); key != "" {
		return key, KeySourceEnv
	}
	if configured != "" {
		// Expand any remaining env var references
		key := os.ExpandEnv(configured)
		if key != "" && !strings.HasPrefix(key, "${") {
			return key, KeySourceConfig
		}
	}
	return "", KeySourceNone
}

// ValidateAnthropicAPIKey performs basic validation on an Anthropic API key.
// It checks format but does not verify the key with Anthropic's API.
func ValidateAnthropicAPIKey(key string) error {
	if key == "" {
		return ErrNoAPIKey
	}

	// Anthropic API keys start with "sk-ant-"
	if !strings.HasPrefix(key, "sk-ant-") {
		return errors.New("invalid API key format: expected 'sk-ant-' prefix")
	}

	if len(key) < 20 {
		return errors.New("invalid API key format: key too short")
	}

	return nil
}

// MaskAPIKey returns a masked version of the API key for display.
// Shows the first 7 characters and last 4 characters.
func MaskAPIKey(key string) string {
	if key == "" {
		return "(not set)"
	}

	if len(key) <= 15 {
		return "***"
	}

	return key[:7] + "..." + key[len(key)-4:]
}

// KeySource represents where an API key was loaded from.
type KeySource string

const (
	KeySourceEnv    KeySource = "environment"
	KeySourceConfig KeySource = "config_file"
	KeySourceNone   KeySource = "none"
)

// GetAPIKeySource returns where the key for provider (gemini or anthropic)
// was sourced from.
func GetAPIKeySource(cfg *Config, provider string) KeySource {
	if cfg == nil {
		cfg = &Config{}
	}
	var source KeySource
	switch provider {
	case "gemini":
		_, source = resolveKey(EnvGeminiAPIKey, cfg.Gemini.APIKey)
	case "anthropic":
		_, source = resolveKey(EnvAnthropicAPIKey, cfg.Anthropic.APIKey)
	default:
		source = KeySourceNone
	}
	return source
}
