package main

import (
	"strings"

	"github.com/LyzardKing/llm-owl/internal/api"
	"github.com/LyzardKing/llm-owl/internal/config"
)

// newCompleter builds the configured model client. model overrides the
// configured model when set.
func newCompleter(cfg *config.Config, model string) (api.Completer, error) {
	if model == "" {
		model = cfg.LLM.Model
	}
	key, _ := config.GetAPIKey(cfg)
	if key != "" {
		if err := config.ValidateAPIKey(cfg.LLM.Provider, key); err != nil {
			return nil, err
		}
	}
	return api.New(api.Options{
		Provider:   cfg.LLM.Provider,
		Model:      model,
		BaseURL:    cfg.LLM.BaseURL,
		APIKey:     key,
		MaxTokens:  cfg.LLM.MaxTokens,
		AWSRegion:  cfg.LLM.AWSRegion,
		AWSProfile: cfg.LLM.AWSProfile,
	})
}

// modelName is the model part of a completer name such as
// "openai/gpt-4o-mini".
func modelName(c api.Completer) string {
	_, model, ok := strings.Cut(c.Name(), "/")
	if !ok {
		return c.Name()
	}
	return model
}
