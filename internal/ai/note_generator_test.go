package ai

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"

	"github.com/kittclouds/devdiary/internal/store"
)

// recordingClient returns a canned reply and remembers the last request.
type recordingClient struct {
	mu    sync.Mutex
	reply string
	err   error
	last  Completion
	calls int
}

func (c *recordingClient) Complete(_ context.Context, req Completion) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.last = req
	c.calls++
	return c.reply, c.err
}

func TestGenerateSuccess(t *testing.T) {
	llm := &recordingClient{reply: `{"title":"Standup","content":"Fixed the login bug."}`}
	g := NewNoteGenerator(llm)

	note := g.Generate(context.Background(), NoteRequest{
		Prompt:       "summarize",
		ContextNotes: []string{FormatContextNote("Bug", "Login fails")},
		Credential:   "key",
	})

	assert.False(t, note.Failed())
	assert.Equal(t, GeneratedNote{Title: "Standup", Content: "Fixed the login bug."}, note)

	assert.Equal(t, "key", llm.last.Credential)
	assert.Equal(t, noteSchema, llm.last.Schema)
	assert.Contains(t, llm.last.SystemPrompt, "note-taking assistant for a software developer")
	assert.Contains(t, llm.last.UserPrompt, "- Title: Bug\nContent: Login fails")
	assert.Contains(t, llm.last.UserPrompt, `User Prompt: "summarize"`)
}

func TestGenerateWithoutContextSaysSo(t *testing.T) {
	llm := &recordingClient{reply: `{"title":"a","content":"b"}`}
	g := NewNoteGenerator(llm)

	g.Generate(context.Background(), NoteRequest{Prompt: "p", Credential: "k"})

	assert.Contains(t, llm.last.UserPrompt, "There are no existing notes for context.")
}

func TestGeneratePassesPromptVerbatim(t *testing.T) {
	llm := &recordingClient{reply: `{"title":"a","content":"b"}`}
	prompt := "match \\d+ in\n\"access logs\"\tand ünïcode"

	NewNoteGenerator(llm).Generate(context.Background(), NoteRequest{Prompt: prompt, Credential: "k"})

	assert.Contains(t, llm.last.UserPrompt, prompt)
	assert.NotContains(t, llm.last.UserPrompt, `\\d`)
	assert.NotContains(t, llm.last.UserPrompt, `\n`)
}

func TestGenerateAcceptsFencedJSON(t *testing.T) {
	llm := &recordingClient{reply: "```json\n{\"title\":\"a\",\"content\":\"b\"}\n```"}
	note := NewNoteGenerator(llm).Generate(context.Background(), NoteRequest{Prompt: "p", Credential: "k"})

	assert.Equal(t, GeneratedNote{Title: "a", Content: "b"}, note)
}

func TestGenerateMissingCredentialDoesNotCallModel(t *testing.T) {
	llm := &recordingClient{reply: `{"title":"a","content":"b"}`}
	note := NewNoteGenerator(llm).Generate(context.Background(), NoteRequest{Prompt: "p"})

	assert.True(t, note.Failed())
	assert.NotEmpty(t, note.Content)
	assert.Equal(t, 0, llm.calls)
}

func TestGenerateTrimsContextToBudget(t *testing.T) {
	llm := &recordingClient{reply: `{"title":"a","content":"b"}`}
	g := NewNoteGenerator(llm, WithContextBudget(10))

	first := strings.Repeat("a", 20)  // 5 tokens
	second := strings.Repeat("b", 20) // 5 tokens
	third := strings.Repeat("c", 20)  // over budget
	g.Generate(context.Background(), NoteRequest{Prompt: "p", Credential: "k", ContextNotes: []string{first, second, third}})

	assert.Contains(t, llm.last.UserPrompt, first)
	assert.Contains(t, llm.last.UserPrompt, second)
	assert.NotContains(t, llm.last.UserPrompt, third)
}

func TestGenerateFailureKinds(t *testing.T) {
	tests := []struct {
		name    string
		reply   string
		err     error
		wantMsg string
	}{
		{"unauthorized", "", &APIError{StatusCode: http.StatusUnauthorized}, failureMessages[failureAuth]},
		{"bad key", "", &APIError{StatusCode: http.StatusBadRequest, Message: "API key not valid"}, failureMessages[failureAuth]},
		{"quota", "", &APIError{StatusCode: http.StatusTooManyRequests}, failureMessages[failureQuota]},
		{"server", "", &APIError{StatusCode: http.StatusBadGateway}, failureMessages[failureService]},
		{"timeout", "", fmt.Errorf("wrapped: %w", context.DeadlineExceeded), failureMessages[failureTimeout]},
		{"network", "", fmt.Errorf("%w: %w", ErrTransport, &net.OpError{Op: "dial", Err: errors.New("connection refused")}), failureMessages[failureNetwork]},
		{"empty", "", ErrEmptyResponse, failureMessages[failureMalformed]},
		{"not json", "here is your note", nil, failureMessages[failureMalformed]},
		{"missing content", `{"title":"only title"}`, nil, failureMessages[failureMalformed]},
		{"wrong types", `{"title":1,"content":true}`, nil, failureMessages[failureMalformed]},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			g := NewNoteGenerator(&recordingClient{reply: tt.reply, err: tt.err})
			note := g.Generate(context.Background(), NoteRequest{Prompt: "p", Credential: "k"})

			assert.Equal(t, ErrorTitle, note.Title)
			assert.Equal(t, tt.wantMsg, note.Content)
		})
	}
}

func TestGenerateRecoversPanics(t *testing.T) {
	llm := LLMClientFunc(func(context.Context, Completion) (string, error) {
		panic("boom")
	})

	var note GeneratedNote
	require.NotPanics(t, func() {
		note = NewNoteGenerator(llm).Generate(context.Background(), NoteRequest{Prompt: "p", Credential: "k"})
	})
	assert.True(t, note.Failed())
	assert.NotEmpty(t, note.Content)
}

func TestGenerateEndToEndAgainstServer(t *testing.T) {
	c := newTestGemini(t, func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("x-goog-api-key") != "good" {
			w.WriteHeader(http.StatusForbidden)
			_, _ = w.Write([]byte(`{"error":{"code":403,"message":"denied","status":"PERMISSION_DENIED"}}`))
			return
		}
		writeCandidate(w, `{"title":"Plan","content":"Ship it"}`)
	})
	g := NewNoteGenerator(c)

	ok := g.Generate(context.Background(), NoteRequest{Prompt: "p", Credential: "good"})
	assert.Equal(t, GeneratedNote{Title: "Plan", Content: "Ship it"}, ok)

	denied := g.Generate(context.Background(), NoteRequest{Prompt: "p", Credential: "bad"})
	assert.True(t, denied.Failed())
	assert.Equal(t, failureMessages[failureAuth], denied.Content)
}

func TestGenerateSlowServerTimesOut(t *testing.T) {
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-release
	}))
	defer srv.Close()
	defer close(release)

	c, err := NewGeminiClient(GeminiOptions{BaseURL: srv.URL, Timeout: 100 * time.Millisecond})
	require.NoError(t, err)

	note := NewNoteGenerator(c).Generate(context.Background(), NoteRequest{Prompt: "p", Credential: "k"})
	assert.True(t, note.Failed())
	assert.Equal(t, failureMessages[failureTimeout], note.Content)
}

// Generation resolves to a non-empty explanation for any client failure.
func testFailureContainment_Properties(t *rapid.T) {
	mode := rapid.IntRange(0, 3).Draw(t, "mode")
	var llm LLMClient
	switch mode {
	case 0:
		code := rapid.IntRange(400, 599).Draw(t, "status")
		llm = &recordingClient{err: &APIError{StatusCode: code, Message: rapid.String().Draw(t, "message")}}
	case 1:
		llm = &recordingClient{err: errors.New(rapid.String().Draw(t, "error"))}
	case 2:
		llm = &recordingClient{reply: rapid.String().Draw(t, "garbage")}
	default:
		msg := rapid.String().Draw(t, "panic")
		llm = LLMClientFunc(func(context.Context, Completion) (string, error) {
			panic(msg)
		})
	}

	note := NewNoteGenerator(llm).Generate(context.Background(), NoteRequest{
		Prompt:     rapid.String().Draw(t, "prompt"),
		Credential: "k",
	})

	if !note.Failed() {
		// Random text can, rarely, be a well-formed note.
		if mode == 2 && note.Title != "" && note.Content != "" {
			return
		}
		t.Fatalf("mode %d: expected failure, got %+v", mode, note)
	}
	if note.Content == "" {
		t.Fatalf("failure without explanation")
	}
}

func TestFailureContainment_Properties(t *testing.T) {
	rapid.Check(t, testFailureContainment_Properties)
}

func TestContextNotesExcludesCurrent(t *testing.T) {
	notes := []store.Note{
		{ID: "1", Title: "One", Content: "first"},
		{ID: "2", Title: "Two", Content: "second"},
	}

	got := ContextNotes(notes, "2")
	assert.Equal(t, []string{"Title: One\nContent: first"}, got)
}

func TestEstimateTokens(t *testing.T) {
	assert.Equal(t, 0, EstimateTokens(""))
	assert.Equal(t, 1, EstimateTokens("abc"))
	assert.Equal(t, 1, EstimateTokens("abcd"))
	assert.Equal(t, 2, EstimateTokens("abcde"))
}

func TestFitToBudget(t *testing.T) {
	notes := []string{"aaaa", "bbbb", "cccc"}
	assert.Equal(t, notes, FitToBudget(notes, 0))
	assert.Equal(t, notes[:2], FitToBudget(notes, 2))
	assert.Empty(t, FitToBudget([]string{"too long for budget"}, 1))
}
