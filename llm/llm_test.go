package llm

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/use-agent/firescrape/config"
	"github.com/use-agent/firescrape/models"
)

func TestNew(t *testing.T) {
	ex, err := New(config.LLMConfig{})
	require.NoError(t, err)
	assert.Nil(t, ex)

	ex, err = New(config.LLMConfig{Provider: "none"})
	require.NoError(t, err)
	assert.Nil(t, ex)

	ex, err = New(config.LLMConfig{Provider: "openai", APIKey: "k"})
	require.NoError(t, err)
	assert.IsType(t, &OpenAI{}, ex)

	ex, err = New(config.LLMConfig{Provider: "anthropic", APIKey: "k"})
	require.NoError(t, err)
	assert.IsType(t, &Anthropic{}, ex)

	_, err = New(config.LLMConfig{Provider: "openai"})
	assert.Error(t, err)

	_, err = New(config.LLMConfig{Provider: "llama"})
	assert.Error(t, err)
}

func TestBuildPrompt_Truncates(t *testing.T) {
	in := Input{Prompt: "  Extract prices ", Title: "Shop", Content: strings.Repeat("é", 20)}
	got := buildPrompt(in, 10)

	assert.True(t, strings.HasPrefix(got, "Extract prices\n\nRespond ONLY with valid JSON"))
	assert.Contains(t, got, "Page title: Shop")
	assert.True(t, strings.HasSuffix(got, "Page content:\n"+strings.Repeat("é", 10)))
}

func TestParseStructured(t *testing.T) {
	got, err := parseStructured("```json\n{\"price\": 42}\n```")
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"price": float64(42)}, got)

	got, err = parseStructured(`[{"a":1},{"a":2}]`)
	require.NoError(t, err)
	assert.Len(t, got["items"], 2)

	for _, bad := range []string{"not json", `"just a string"`, "42", ""} {
		_, err := parseStructured(bad)
		require.Error(t, err, bad)
		assert.Equal(t, models.ErrCodeAIExtraction, models.CodeOf(err))
	}
}

func TestOpenAI_Extract(t *testing.T) {
	var gotReq chatRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/chat/completions", r.URL.Path)
		assert.Equal(t, "Bearer sk-test", r.Header.Get("Authorization"))
		body, _ := io.ReadAll(r.Body)
		assert.NoError(t, json.Unmarshal(body, &gotReq))

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"choices":[{"message":{"content":"{\"title\":\"Example Domain\"}"}}]}`))
	}))
	defer srv.Close()

	c := NewOpenAI(config.LLMConfig{APIKey: "sk-test", BaseURL: srv.URL + "/v1", Model: "m1", MaxTokens: 100}, srv.Client())
	got, err := c.Extract(context.Background(), Input{Prompt: "Get the title", Content: "Example Domain"})
	require.NoError(t, err)

	assert.Equal(t, "Example Domain", got["title"])
	assert.Equal(t, "m1", gotReq.Model)
	require.Len(t, gotReq.Messages, 2)
	assert.Equal(t, "system", gotReq.Messages[0].Role)
	assert.Contains(t, gotReq.Messages[1].Content, "Get the title")
	assert.Equal(t, "json_object", gotReq.ResponseFormat.Type)
}

func TestOpenAI_ErrorStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
		_, _ = w.Write([]byte(`{"error":{"message":"slow down"}}`))
	}))
	defer srv.Close()

	c := NewOpenAI(config.LLMConfig{APIKey: "k", BaseURL: srv.URL}, srv.Client())
	_, err := c.Extract(context.Background(), Input{Prompt: "p", Content: "c"})
	require.Error(t, err)
	assert.Equal(t, models.ErrCodeAIExtraction, models.CodeOf(err))
	assert.Contains(t, err.Error(), "slow down")
}

func TestOpenAI_NoChoices(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"choices":[]}`))
	}))
	defer srv.Close()

	c := NewOpenAI(config.LLMConfig{APIKey: "k", BaseURL: srv.URL}, srv.Client())
	_, err := c.Extract(context.Background(), Input{Prompt: "p"})
	assert.Equal(t, models.ErrCodeAIExtraction, models.CodeOf(err))
}

func TestAnthropic_Extract(t *testing.T) {
	var body map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/messages", r.URL.Path)
		assert.Equal(t, "ak-test", r.Header.Get("X-Api-Key"))
		raw, _ := io.ReadAll(r.Body)
		assert.NoError(t, json.Unmarshal(raw, &body))

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{
			"id": "msg_1", "type": "message", "role": "assistant", "model": "claude-test",
			"content": [{"type": "text", "text": "{\"price\": \"42 EUR\"}"}],
			"stop_reason": "end_turn",
			"usage": {"input_tokens": 10, "output_tokens": 5}
		}`))
	}))
	defer srv.Close()

	a := NewAnthropic(config.LLMConfig{APIKey: "ak-test", BaseURL: srv.URL, Model: "claude-test", Timeout: 5 * time.Second})
	got, err := a.Extract(context.Background(), Input{Prompt: "Get the price", Content: "42 EUR"})
	require.NoError(t, err)

	assert.Equal(t, "42 EUR", got["price"])
	assert.Equal(t, "claude-test", body["model"])
}

func TestAnthropic_ErrorStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(`{"type":"error","error":{"type":"authentication_error","message":"bad key"}}`))
	}))
	defer srv.Close()

	a := NewAnthropic(config.LLMConfig{APIKey: "bad", BaseURL: srv.URL})
	_, err := a.Extract(context.Background(), Input{Prompt: "p", Content: "c"})
	require.Error(t, err)
	assert.Equal(t, models.ErrCodeAIExtraction, models.CodeOf(err))
}
