package api

import (
	"context"
	"os"
	"strings"

	"github.com/cockroachdb/errors"
	"github.com/sashabaranov/go-openai"
)

// DefaultOpenAIModel is used when neither the config nor LLM_MODEL names one.
const DefaultOpenAIModel = "gpt-4o-mini"

// OpenAIConfig configures an OpenAI-compatible chat endpoint. Local
// servers (llama.cpp, vLLM, Ollama) work through BaseURL.
type OpenAIConfig struct {
	BaseURL   string
	APIKey    string
	Model     string
	MaxTokens int
}

// OpenAIClient talks to an OpenAI-compatible chat completions API.
type OpenAIClient struct {
	client    *openai.Client
	model     string
	maxTokens int
	tracker   *TokenTracker
}

// NewOpenAIClient creates a client. Empty fields fall back to LLM_BASE_URL,
// LLM_API_KEY (then OPENAI_API_KEY) and LLM_MODEL.
func NewOpenAIClient(cfg OpenAIConfig) (*OpenAIClient, error) {
	baseURL := firstNonEmpty(cfg.BaseURL, os.Getenv("LLM_BASE_URL"))
	apiKey := firstNonEmpty(cfg.APIKey, os.Getenv("LLM_API_KEY"), os.Getenv("OPENAI_API_KEY"))
	model := firstNonEmpty(cfg.Model, os.Getenv("LLM_MODEL"), DefaultOpenAIModel)

	if apiKey == "" && baseURL == "" {
		return nil, errors.WithHint(
			errors.New("no API key for the OpenAI-compatible provider"),
			"set LLM_API_KEY (or OPENAI_API_KEY), or point LLM_BASE_URL at a local server")
	}

	oc := openai.DefaultConfig(apiKey)
	if baseURL != "" {
		oc.BaseURL = strings.TrimRight(baseURL, "/")
	}

	return &OpenAIClient{
		client:    openai.NewClientWithConfig(oc),
		model:     model,
		maxTokens: cfg.MaxTokens,
		tracker:   NewTokenTracker(),
	}, nil
}

// Complete sends one system + user exchange and returns the first choice.
func (o *OpenAIClient) Complete(ctx context.Context, system, prompt string) (string, error) {
	var messages []openai.ChatCompletionMessage
	if strings.TrimSpace(system) != "" {
		messages = append(messages, openai.ChatCompletionMessage{Role: openai.ChatMessageRoleSystem, Content: system})
	}
	messages = append(messages, openai.ChatCompletionMessage{Role: openai.ChatMessageRoleUser, Content: prompt})

	req := openai.ChatCompletionRequest{
		Model:    o.model,
		Messages: messages,
	}
	if o.maxTokens > 0 {
		req.MaxCompletionTokens = o.maxTokens
	}

	resp, err := o.client.CreateChatCompletion(ctx, req)
	if err != nil {
		return "", errors.Wrapf(err, "openai completion (%s)", o.model)
	}
	o.tracker.Add(int64(resp.Usage.PromptTokens), int64(resp.Usage.CompletionTokens))

	if len(resp.Choices) == 0 {
		return "", errors.Newf("openai completion (%s) returned no choices", o.model)
	}
	return resp.Choices[0].Message.Content, nil
}

// Name identifies the backend and model.
func (o *OpenAIClient) Name() string {
	return "openai/" + o.model
}

// Model returns the configured model name.
func (o *OpenAIClient) Model() string {
	return o.model
}

// Tracker returns the token tracker for this client.
func (o *OpenAIClient) Tracker() *TokenTracker {
	return o.tracker
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}
