package api

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewClient_WithAPIKey(t *testing.T) {
	client, err := NewClient(ClientConfig{APIKey: "test-key-123", Model: anthropic.ModelClaudeSonnet4_20250514})
	require.NoError(t, err)
	assert.Equal(t, anthropic.ModelClaudeSonnet4_20250514, client.Model())
	assert.NotNil(t, client.Tracker())
	assert.Equal(t, "anthropic/claude-sonnet-4-20250514", client.Name())
}

func TestNewClient_WithEnvVar(t *testing.T) {
	t.Setenv("ANTHROPIC_API_KEY", "env-test-key")
	_, err := NewClient(ClientConfig{})
	require.NoError(t, err)
}

func TestNewClient_NoAPIKey(t *testing.T) {
	t.Setenv("ANTHROPIC_API_KEY", "")
	_, err := NewClient(ClientConfig{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "ANTHROPIC_API_KEY environment variable is not set")
}

func TestNewClient_DefaultModel(t *testing.T) {
	client, err := NewClient(ClientConfig{APIKey: "test-key"})
	require.NoError(t, err)
	assert.Equal(t, anthropic.ModelClaudeSonnet4_20250514, client.Model())
}

func TestTranslateModelForBedrock(t *testing.T) {
	assert.Equal(t, anthropic.Model("us.anthropic.claude-sonnet-4-20250514-v1:0"),
		translateModelForBedrock(anthropic.ModelClaudeSonnet4_20250514))
	assert.Equal(t, anthropic.Model("custom-model"), translateModelForBedrock("custom-model"))
}

func TestNewClient_Bedrock(t *testing.T) {
	if os.Getenv("AWS_REGION") == "" && os.Getenv("AWS_DEFAULT_REGION") == "" {
		t.Skip("AWS_REGION not set, skipping Bedrock test")
	}

	client, err := NewClient(ClientConfig{
		UseAWSBedrock: true,
		AWSRegion:     "us-west-2",
		Model:         anthropic.ModelClaudeSonnet4_20250514,
	})
	require.NoError(t, err)
	assert.Equal(t, anthropic.Model("us.anthropic.claude-sonnet-4-20250514-v1:0"), client.Model())
}

func TestClient_Complete(t *testing.T) {
	var got map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/messages", r.URL.Path)
		assert.Equal(t, "test-key", r.Header.Get("X-Api-Key"))
		body, _ := io.ReadAll(r.Body)
		assert.NoError(t, json.Unmarshal(body, &got))

		w.Header().Set("Content-Type", "application/json")
		io.WriteString(w, `{
			"id": "msg_1", "type": "message", "role": "assistant",
			"model": "claude-sonnet-4-20250514",
			"content": [{"type": "text", "text": "## OWL\n"}, {"type": "text", "text": "done"}],
			"stop_reason": "end_turn", "stop_sequence": null,
			"usage": {"input_tokens": 12, "output_tokens": 7}
		}`)
	}))
	defer srv.Close()

	client, err := NewClient(ClientConfig{APIKey: "test-key", BaseURL: srv.URL + "/", MaxTokens: 100})
	require.NoError(t, err)

	text, err := client.Complete(context.Background(), "be precise", "make an ontology")
	require.NoError(t, err)
	assert.Equal(t, "## OWL\ndone", text)

	assert.EqualValues(t, 100, got["max_tokens"])
	system := got["system"].([]any)
	assert.Equal(t, "be precise", system[0].(map[string]any)["text"])

	in, out := client.Tracker().Total()
	assert.EqualValues(t, 12, in)
	assert.EqualValues(t, 7, out)
	assert.Equal(t, 1, client.Tracker().Calls())
}

func TestClient_CompleteAPIError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusBadRequest)
		io.WriteString(w, `{"type":"error","error":{"type":"invalid_request_error","message":"bad prompt"}}`)
	}))
	defer srv.Close()

	client, err := NewClient(ClientConfig{APIKey: "k", BaseURL: srv.URL})
	require.NoError(t, err)

	_, err = client.Complete(context.Background(), "", "x")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "anthropic completion")
	assert.Zero(t, client.Tracker().Calls())
}

func TestTokenTracker(t *testing.T) {
	tracker := NewTokenTracker()
	tracker.Add(100, 50)
	tracker.Add(200, 100)
	tracker.Add(50, 25)

	input, output := tracker.Total()
	assert.EqualValues(t, 350, input)
	assert.EqualValues(t, 175, output)
	assert.Equal(t, 3, tracker.Calls())

	tracker.Reset()
	input, output = tracker.Total()
	assert.Zero(t, input)
	assert.Zero(t, output)
	assert.Zero(t, tracker.Calls())
}
