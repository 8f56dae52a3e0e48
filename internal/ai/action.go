package ai

import (
	"context"
	"errors"
	"strings"
	"sync/atomic"

	"github.com/go-playground/validator/v10"
)

var (
	// ErrEmptyPrompt is returned when the prompt is blank.
	ErrEmptyPrompt = errors.New("ai: please enter a prompt to generate content")
	// ErrMissingCredential is returned when no API key is available.
	ErrMissingCredential = errors.New("ai: an API key is required to generate notes")
	// ErrGenerationPending is returned while a previous generation is running.
	ErrGenerationPending = errors.New("ai: a generation is already in progress")
)

// Generator is the note generation capability.
type Generator interface {
	Generate(ctx context.Context, req NoteRequest) GeneratedNote
}

// actionInput carries the rules checked before the generator is invoked.
type actionInput struct {
	Prompt     string `validate:"required"`
	Credential string `validate:"required"`
}

// Action is the caller side of generation: it rejects bad input up front
// and refuses a second submission while one is pending.
type Action struct {
	gen      Generator
	validate *validator.Validate
	pending  atomic.Bool
}

// NewAction wraps gen.
func NewAction(gen Generator) *Action {
	return &Action{gen: gen, validate: validator.New()}
}

// Pending reports whether a generation is in flight.
func (a *Action) Pending() bool {
	return a.pending.Load()
}

// Run validates req and generates a note. Validation problems and a
// pending generation are returned as errors; generation failures come back
// as a note with Failed() true.
func (a *Action) Run(ctx context.Context, req NoteRequest) (GeneratedNote, error) {
	in := actionInput{
		Prompt:     strings.TrimSpace(req.Prompt),
		Credential: strings.TrimSpace(req.Credential),
	}
	if err := a.validate.Struct(in); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 && verrs[0].Field() == "Credential" {
			return GeneratedNote{}, ErrMissingCredential
		}
		return GeneratedNote{}, ErrEmptyPrompt
	}

	if !a.pending.CompareAndSwap(false, true) {
		return GeneratedNote{}, ErrGenerationPending
	}
	defer a.pending.Store(false)

	return a.gen.Generate(ctx, req), nil
}
