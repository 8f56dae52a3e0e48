package ai

import (
	"fmt"
	"strings"

	"github.com/kittclouds/devdiary/internal/store"
)

// noteSystemPrompt frames the model as a note-writing aid.
const noteSystemPrompt = `You are an intelligent note-taking assistant for a software developer.
Based on the provided context and the user's prompt, generate a new, concise, and helpful note.
If the context is irrelevant to the prompt, ignore it and focus on the user's request.

You must return a JSON object with this exact structure:
{
  "title": "A concise title relevant to the note, at most a few words",
  "content": "The note content"
}`

const noContextText = "There are no existing notes for context."

// noteSchema restricts the structured output to exactly title and content.
var noteSchema = map[string]any{
	"type": "OBJECT",
	"properties": map[string]any{
		"title":   map[string]any{"type": "STRING"},
		"content": map[string]any{"type": "STRING"},
	},
	"required":         []string{"title", "content"},
	"propertyOrdering": []string{"title", "content"},
}

// buildNotePrompt creates the user prompt for note generation.
func buildNotePrompt(prompt string, contextNotes []string) string {
	var b strings.Builder

	if len(contextNotes) > 0 {
		b.WriteString("Here are some existing notes for context:\n")
		for _, n := range contextNotes {
			b.WriteString("- ")
			b.WriteString(n)
			b.WriteString("\n")
		}
	} else {
		b.WriteString(noContextText)
		b.WriteString("\n")
	}

	b.WriteString("\nUser Prompt: \"")
	b.WriteString(prompt)
	b.WriteString("\"\n\n")
	b.WriteString("Write a concise, relevant title and the note content.")
	return b.String()
}

// FormatContextNote renders one note the way it is sent as context.
func FormatContextNote(title, content string) string {
	return fmt.Sprintf("Title: %s\nContent: %s", title, content)
}

// ContextNotes formats every note except excludeID, in the given order.
func ContextNotes(notes []store.Note, excludeID string) []string {
	out := make([]string, 0, len(notes))
	for _, n := range notes {
		if n.ID == excludeID {
			continue
		}
		out = append(out, FormatContextNote(n.Title, n.Content))
	}
	return out
}
