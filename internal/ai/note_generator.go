package ai

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strings"

	"github.com/kittclouds/devdiary/internal/logger"
)

// ErrorTitle marks a GeneratedNote that carries a failure explanation.
const ErrorTitle = "Error"

// NoteRequest is the input of a generation.
type NoteRequest struct {
	Prompt       string   `json:"prompt"`
	ContextNotes []string `json:"contextNotes"`
	Credential   string   `json:"credential,omitempty"`
}

// GeneratedNote is the output of a generation. Failures have Title "Error"
// and a human-readable Content.
type GeneratedNote struct {
	Title   string `json:"title"`
	Content string `json:"content"`
}

// Failed reports whether the note is a failure sentinel.
func (n GeneratedNote) Failed() bool {
	return n.Title == ErrorTitle
}

// Failure kinds, logged alongside the underlying error.
const (
	failureCredential = "credential"
	failureAuth       = "auth"
	failureQuota      = "quota"
	failureTimeout    = "timeout"
	failureNetwork    = "network"
	failureService    = "service"
	failureMalformed  = "malformed"
	failurePanic      = "panic"
)

var failureMessages = map[string]string{
	failureCredential: "An API key is required to generate notes. Add one in settings and try again.",
	failureAuth:       "The AI service rejected the API key. Check the key in settings and try again.",
	failureQuota:      "The AI service quota has been exceeded. Wait a moment and try again.",
	failureTimeout:    "The AI service did not respond in time. Please try again.",
	failureNetwork:    "Could not reach the AI service. Check your connection and try again.",
	failureService:    "The AI service is unavailable right now. Please try again later.",
	failureMalformed:  "The AI service returned a response that could not be read. Please try again.",
	failurePanic:      "Sorry, I was unable to generate a note at this time.",
}

// GeneratorOption configures a NoteGenerator.
type GeneratorOption func(*NoteGenerator)

// WithContextBudget caps the context notes sent, in estimated tokens.
func WithContextBudget(tokens int) GeneratorOption {
	return func(g *NoteGenerator) { g.budget = tokens }
}

// WithGeneratorLogger sets the logger.
func WithGeneratorLogger(l *logger.Logger) GeneratorOption {
	return func(g *NoteGenerator) { g.log = l }
}

// NoteGenerator produces notes with an LLM.
type NoteGenerator struct {
	llm    LLMClient
	budget int
	log    *logger.Logger
}

// NewNoteGenerator creates a NoteGenerator with the given LLM client.
func NewNoteGenerator(llm LLMClient, opts ...GeneratorOption) *NoteGenerator {
	g := &NoteGenerator{llm: llm, log: logger.NewNop()}
	for _, opt := range opts {
		opt(g)
	}
	g.log = g.log.WithComponent("ai")
	return g
}

// Generate never returns an error and never panics; failures come back as
// a GeneratedNote with Title "Error".
func (g *NoteGenerator) Generate(ctx context.Context, req NoteRequest) (note GeneratedNote) {
	defer func() {
		if r := recover(); r != nil {
			note = g.fail(failurePanic, fmt.Errorf("panic: %v", r))
		}
	}()

	if strings.TrimSpace(req.Credential) == "" {
		return g.fail(failureCredential, ErrMissingCredential)
	}

	contextNotes := FitToBudget(req.ContextNotes, g.budget)
	if len(contextNotes) < len(req.ContextNotes) {
		g.log.Debugw("Trimmed context notes to budget",
			"kept", len(contextNotes), "total", len(req.ContextNotes), "budget", g.budget)
	}

	response, err := g.llm.Complete(ctx, Completion{
		SystemPrompt: noteSystemPrompt,
		UserPrompt:   buildNotePrompt(req.Prompt, contextNotes),
		Credential:   req.Credential,
		Schema:       noteSchema,
	})
	if err != nil {
		return g.fail(classify(ctx, err), err)
	}

	result, err := parseNote(response)
	if err != nil {
		return g.fail(failureMalformed, err)
	}
	return result
}

func (g *NoteGenerator) fail(kind string, err error) GeneratedNote {
	g.log.Warnw("Note generation failed", "kind", kind, "error", err)
	return GeneratedNote{Title: ErrorTitle, Content: failureMessages[kind]}
}

// parseNote decodes the model output. Models sometimes wrap JSON in a
// markdown fence even when asked not to.
func parseNote(response string) (GeneratedNote, error) {
	text := strings.TrimSpace(response)
	if strings.HasPrefix(text, "```") {
		text = strings.TrimPrefix(text, "```json")
		text = strings.TrimPrefix(text, "```")
		text = strings.TrimSuffix(strings.TrimSpace(text), "```")
	}

	var result GeneratedNote
	if err := json.Unmarshal([]byte(text), &result); err != nil {
		return GeneratedNote{}, fmt.Errorf("failed to parse result: %w", err)
	}
	result.Title = strings.TrimSpace(result.Title)
	if result.Title == "" || strings.TrimSpace(result.Content) == "" {
		return GeneratedNote{}, fmt.Errorf("%w: missing title or content", ErrEmptyResponse)
	}
	return result, nil
}

type timeoutError interface {
	Timeout() bool
}

func classify(ctx context.Context, err error) string {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		switch {
		case apiErr.StatusCode == http.StatusUnauthorized, apiErr.StatusCode == http.StatusForbidden:
			return failureAuth
		case apiErr.StatusCode == http.StatusBadRequest && strings.Contains(strings.ToLower(apiErr.Message), "api key"):
			return failureAuth
		case apiErr.StatusCode == http.StatusTooManyRequests:
			return failureQuota
		case apiErr.StatusCode >= 500:
			return failureService
		default:
			return failureMalformed
		}
	}

	if errors.Is(err, ErrEmptyResponse) {
		return failureMalformed
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return failureTimeout
	}
	var te timeoutError
	if errors.As(err, &te) && te.Timeout() {
		return failureTimeout
	}
	var netErr net.Error
	if errors.As(err, &netErr) || errors.Is(err, context.Canceled) {
		return failureNetwork
	}
	if errors.Is(err, ErrTransport) {
		return failureNetwork
	}
	return failureMalformed
}
