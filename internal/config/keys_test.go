package config

import (
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
)

func clearKeyEnv(t *testing.T) {
	t.Helper()
	for _, env := range []string{"LLM_API_KEY", "OPENAI_API_KEY", "ANTHROPIC_API_KEY"} {
		t.Setenv(env, "")
		os.Unsetenv(env)
	}
}

func TestGetAPIKey(t *testing.T) {
	t.Run("from environment variable", func(t *testing.T) {
		clearKeyEnv(t)
		t.Setenv("ANTHROPIC_API_KEY", "sk-ant-test-key")

		key, src := GetAPIKey(&Config{LLM: LLMConfig{Provider: "anthropic"}})
		assert.Equal(t, "sk-ant-test-key", key)
		assert.Equal(t, KeySourceEnv, src)
	})

	t.Run("provider decides the variable", func(t *testing.T) {
		clearKeyEnv(t)
		t.Setenv("ANTHROPIC_API_KEY", "sk-ant-test-key")

		_, src := GetAPIKey(&Config{LLM: LLMConfig{Provider: "openai"}})
		assert.Equal(t, KeySourceNone, src)
	})

	t.Run("from config", func(t *testing.T) {
		clearKeyEnv(t)
		key, src := GetAPIKey(&Config{LLM: LLMConfig{APIKey: "config-key"}})
		assert.Equal(t, "config-key", key)
		assert.Equal(t, KeySourceConfig, src)
	})

	t.Run("unexpanded reference", func(t *testing.T) {
		clearKeyEnv(t)
		_, src := GetAPIKey(&Config{LLM: LLMConfig{APIKey: "${"}})
		assert.Equal(t, KeySourceNone, src)
	})

	t.Run("no key configured", func(t *testing.T) {
		clearKeyEnv(t)
		key, src := GetAPIKey(nil)
		assert.Empty(t, key)
		assert.Equal(t, KeySourceNone, src)
	})
}

func TestValidateAPIKey(t *testing.T) {
	tests := []struct {
		name     string
		provider string
		key      string
		wantErr  bool
	}{
		{"anthropic valid", "anthropic", "sk-ant-REDACTED", false},
		{"anthropic wrong prefix", "anthropic", "sk-abcdefghijklmnopqrstuv", true},
		{"anthropic too short", "anthropic", "sk-ant-abc", true},
		{"openai any token", "openai", "local-token", false},
		{"openai empty", "openai", "", true},
		{"whitespace", "openai", "abc def", true},
		{"bedrock needs none", "bedrock", "", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateAPIKey(tt.provider, tt.key)
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
	assert.ErrorIs(t, ValidateAPIKey("openai", ""), ErrNoAPIKey)
}

func TestMaskAPIKey(t *testing.T) {
	assert.Equal(t, "(not set)", MaskAPIKey(""))
	assert.Equal(t, "***", MaskAPIKey("short"))
	assert.Equal(t, "sk-ant-...wxyz", MaskAPIKey("sk-ant-api03-abcdefwxyz"))
}
