package config

import (
	"os"
	"strings"

	"github.com/cockroachdb/errors"
)

// ErrNoAPIKey is returned when no API key is configured.
var ErrNoAPIKey = errors.New("no LLM API key configured")

// KeySource represents where an API key was loaded from.
type KeySource string

const (
	KeySourceEnv    KeySource = "environment"
	KeySourceConfig KeySource = "config_file"
	KeySourceNone   KeySource = "none"
)

// providerEnv lists, per provider, the variables consulted for a key.
var providerEnv = map[string][]string{
	"openai":    {"LLM_API_KEY", "OPENAI_API_KEY"},
	"anthropic": {"LLM_API_KEY", "ANTHROPIC_API_KEY"},
}

// GetAPIKey returns the API key for the configured provider and where it
// came from. It checks the environment first, then the config file.
func GetAPIKey(cfg *Config) (string, KeySource) {
	provider := "openai"
	if cfg != nil && cfg.LLM.Provider != "" {
		provider = cfg.LLM.Provider
	}
	for _, env := range providerEnv[provider] {
		if key := os.Getenv(env); key != "" {
			return key, KeySourceEnv
		}
	}

	if cfg != nil && cfg.LLM.APIKey != "" {
		key := os.ExpandEnv(cfg.LLM.APIKey)
		if key != "" && !strings.HasPrefix(key, "${") {
			return key, KeySourceConfig
		}
	}
	return "", KeySourceNone
}

// ValidateAPIKey performs basic format checks on a key for provider. It
// does not contact the provider.
func ValidateAPIKey(provider, key string) error {
	if provider == "bedrock" {
		// AWS credentials come from the shared config chain.
		return nil
	}
	if key == "" {
		return ErrNoAPIKey
	}
	if strings.ContainsAny(key, " \t\n") {
		return errors.New("invalid API key format: contains whitespace")
	}
	if provider == "anthropic" {
		if !strings.HasPrefix(key, "sk-ant-") {
			return errors.New("invalid API key format: expected 'sk-ant-' prefix")
		}
		if len(key) < 20 {
			return errors.New("invalid API key format: key too short")
		}
	}
	return nil
}

// MaskAPIKey returns a masked version of the API key for display.
func MaskAPIKey(key string) string {
	if key == "" {
		return "(not set)"
	}
	if len(key) <= 15 {
		return "***"
	}
	return key[:7] + "..." + key[len(key)-4:]
}
