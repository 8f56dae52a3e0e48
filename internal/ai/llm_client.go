// Package ai turns a prompt plus context notes into a generated note.
// The boundary never fails: every problem becomes a note titled "Error".
package ai

import "context"

// Completion is a single request to a text-generation model.
type Completion struct {
	SystemPrompt string
	UserPrompt   string
	// Credential authorizes the call. It is passed per request, never stored.
	Credential string
	// Schema, when set, asks the model for JSON matching this schema.
	Schema map[string]any
}

// LLMClient is the interface for LLM completion calls.
type LLMClient interface {
	// Complete sends the request and returns the raw model text.
	Complete(ctx context.Context, req Completion) (string, error)
}

// LLMClientFunc adapts a function to LLMClient.
type LLMClientFunc func(ctx context.Context, req Completion) (string, error)

func (f LLMClientFunc) Complete(ctx context.Context, req Completion) (string, error) {
	return f(ctx, req)
}
