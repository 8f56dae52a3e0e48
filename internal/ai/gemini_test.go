package ai

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestGemini(t *testing.T, handler http.HandlerFunc) *GeminiClient {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	c, err := NewGeminiClient(GeminiOptions{BaseURL: srv.URL, Model: "test-model", Timeout: 2 * time.Second})
	require.NoError(t, err)
	return c
}

func writeCandidate(w http.ResponseWriter, text string) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]any{
		"candidates": []any{
			map[string]any{
				"content":      map[string]any{"role": "model", "parts": []any{map[string]any{"text": text}}},
				"finishReason": "STOP",
			},
		},
	})
}

func TestNewGeminiClientDefaults(t *testing.T) {
	c, err := NewGeminiClient(GeminiOptions{})
	require.NoError(t, err)

	def := DefaultGeminiOptions()
	assert.Equal(t, def.BaseURL, c.baseURL)
	assert.Equal(t, def.Model, c.model)
	assert.Equal(t, def.Timeout, c.timeout)
}

func TestGeminiCompleteSendsRequest(t *testing.T) {
	received := make(chan geminiRequest, 1)
	c := newTestGemini(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/v1beta/models/test-model:generateContent", r.URL.Path)
		assert.Equal(t, "secret", r.Header.Get("x-goog-api-key"))

		var req geminiRequest
		body, err := io.ReadAll(r.Body)
		assert.NoError(t, err)
		assert.NoError(t, json.Unmarshal(body, &req))
		received <- req

		writeCandidate(w, `{"title":"T","content":"C"}`)
	})

	text, err := c.Complete(context.Background(), Completion{
		SystemPrompt: "system",
		UserPrompt:   "user",
		Credential:   "secret",
		Schema:       noteSchema,
	})
	require.NoError(t, err)
	assert.Equal(t, `{"title":"T","content":"C"}`, text)

	got := <-received
	require.NotNil(t, got.SystemInstruction)
	assert.Equal(t, "system", got.SystemInstruction.Parts[0].Text)
	require.Len(t, got.Contents, 1)
	assert.Equal(t, "user", got.Contents[0].Parts[0].Text)
	assert.Equal(t, "application/json", got.GenerationConfig.ResponseMimeType)
	assert.Contains(t, got.GenerationConfig.ResponseSchema, "properties")
}

func TestGeminiCompleteAPIError(t *testing.T) {
	c := newTestGemini(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusBadRequest)
		_, _ = io.WriteString(w, `{"error":{"code":400,"message":"API key not valid. Please pass a valid API key.","status":"INVALID_ARGUMENT"}}`)
	})

	_, err := c.Complete(context.Background(), Completion{UserPrompt: "x", Credential: "bad"})
	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusBadRequest, apiErr.StatusCode)
	assert.Equal(t, "INVALID_ARGUMENT", apiErr.Status)
	assert.Contains(t, apiErr.Message, "API key not valid")
}

func TestGeminiCompleteEmptyCandidates(t *testing.T) {
	c := newTestGemini(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, `{"candidates":[]}`)
	})

	_, err := c.Complete(context.Background(), Completion{UserPrompt: "x", Credential: "k"})
	assert.ErrorIs(t, err, ErrEmptyResponse)
}

func TestGeminiCompleteBlockedPrompt(t *testing.T) {
	c := newTestGemini(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, `{"promptFeedback":{"blockReason":"SAFETY"}}`)
	})

	_, err := c.Complete(context.Background(), Completion{UserPrompt: "x", Credential: "k"})
	assert.ErrorIs(t, err, ErrEmptyResponse)
}

func TestGeminiCompleteUnreachable(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	c, err := NewGeminiClient(GeminiOptions{BaseURL: url, Timeout: time.Second})
	require.NoError(t, err)

	_, err = c.Complete(context.Background(), Completion{UserPrompt: "x", Credential: "k"})
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrTransport))
}

func TestGeminiCompleteCanceledContext(t *testing.T) {
	c, err := NewGeminiClient(GeminiOptions{BaseURL: "http://127.0.0.1:1"})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = c.Complete(ctx, Completion{UserPrompt: "x", Credential: "k"})
	assert.ErrorIs(t, err, context.Canceled)
}
