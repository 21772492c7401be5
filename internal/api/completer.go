package api

import (
	"context"
	"sync"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/cockroachdb/errors"
)

// Provider names accepted by New.
const (
	ProviderOpenAI    = "openai"
	ProviderAnthropic = "anthropic"
	ProviderBedrock   = "bedrock"
)

// Completer is a single-turn chat model.
type Completer interface {
	Complete(ctx context.Context, system, prompt string) (string, error)
	Name() string
	Tracker() *TokenTracker
}

// Options selects and configures a provider.
type Options struct {
	Provider   string
	Model      string
	BaseURL    string
	APIKey     string
	MaxTokens  int
	AWSRegion  string
	AWSProfile string
}

// New builds the Completer for opts.Provider. An empty provider means the
// OpenAI-compatible endpoint.
func New(opts Options) (Completer, error) {
	switch opts.Provider {
	case "", ProviderOpenAI:
		return NewOpenAIClient(OpenAIConfig{
			BaseURL:   opts.BaseURL,
			APIKey:    opts.APIKey,
			Model:     opts.Model,
			MaxTokens: opts.MaxTokens,
		})
	case ProviderAnthropic, ProviderBedrock:
		return NewClient(ClientConfig{
			Model:         anthropic.Model(opts.Model),
			APIKey:        opts.APIKey,
			BaseURL:       opts.BaseURL,
			MaxTokens:     int64(opts.MaxTokens),
			UseAWSBedrock: opts.Provider == ProviderBedrock,
			AWSRegion:     opts.AWSRegion,
			AWSProfile:    opts.AWSProfile,
		})
	default:
		return nil, errors.WithHint(
			errors.Newf("unknown LLM provider %q", opts.Provider),
			"use one of: openai, anthropic, bedrock")
	}
}

// TokenTracker tracks token usage across API calls.
type TokenTracker struct {
	mu        sync.Mutex
	inputTok  int64
	outputTok int64
	calls     int
}

// NewTokenTracker creates a new token tracker.
func NewTokenTracker() *TokenTracker {
	return &TokenTracker{}
}

// Add records token usage from an API call.
func (t *TokenTracker) Add(input, output int64) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.inputTok += input
	t.outputTok += output
	t.calls++
}

// Total returns the total input and output tokens tracked.
func (t *TokenTracker) Total() (input, output int64) {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.inputTok, t.outputTok
}

// Calls returns the number of API calls made.
func (t *TokenTracker) Calls() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.calls
}

// Reset clears all tracked token usage.
func (t *TokenTracker) Reset() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.inputTok = 0
	t.outputTok = 0
	t.calls = 0
}
