package commands

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/kittclouds/devdiary/internal/ai"
	"github.com/kittclouds/devdiary/internal/store"
	"github.com/kittclouds/devdiary/pkg/recall"
)

// noteSummary is the list view of a note.
type noteSummary struct {
	ID      string `json:"id"`
	Title   string `json:"title"`
	Created string `json:"created"`
}

// generatedOutput is the result of note generate.
type generatedOutput struct {
	ai.GeneratedNote
	Saved   *store.Note `json:"saved,omitempty"`
	Context int         `json:"contextNotes"`
}

// maxNoteTitle is the longest note title the store accepts, in runes.
const maxNoteTitle = 100

// clipTitle shortens a model-written title to fit the store.
func clipTitle(title string) string {
	r := []rune(title)
	if len(r) <= maxNoteTitle {
		return title
	}
	return strings.TrimSpace(string(r[:maxNoteTitle]))
}

func (a *app) notesCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "note",
		Aliases: []string{"notes"},
		Short:   "Manage notes",
	}

	add := &cobra.Command{
		Use:   "add",
		Short: "Create a note",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			projectID, _ := cmd.Flags().GetString(flagProject)
			title, _ := cmd.Flags().GetString(flagTitle)
			content, _ := cmd.Flags().GetString(flagContent)

			if _, ok := a.store.GetProjectByID(projectID); !ok {
				return fmt.Errorf("project %s not found", projectID)
			}
			n, err := a.store.AddNote(store.NewNote{ProjectID: projectID, Title: title, Content: content})
			if err != nil {
				return fmt.Errorf("error creating note: %w", err)
			}
			return printJSON(cmd, n)
		},
	}
	add.Flags().StringP(flagProject, "p", "", "Project id")
	add.Flags().StringP(flagTitle, "t", "", "Note title")
	add.Flags().String(flagContent, "", "Note content")
	mustMarkRequired(add, flagProject, flagContent)

	list := &cobra.Command{
		Use:   "list",
		Short: "List the notes of a project, newest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			projectID, _ := cmd.Flags().GetString(flagProject)
			notes := a.store.GetNotesByProjectID(projectID)
			out := make([]noteSummary, 0, len(notes))
			for _, n := range notes {
				created := n.CreatedAt
				out = append(out, noteSummary{
					ID:      n.ID,
					Title:   n.DisplayTitle(),
					Created: store.FormatDate(&created, a.store.Location()),
				})
			}
			return printJSON(cmd, out)
		},
	}
	list.Flags().StringP(flagProject, "p", "", "Project id")
	mustMarkRequired(list, flagProject)

	show := &cobra.Command{
		Use:   "show <id>",
		Short: "Show a note",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			n, ok := a.store.GetNoteByID(args[0])
			if !ok {
				return fmt.Errorf("note %s not found", args[0])
			}
			return printJSON(cmd, n)
		},
	}

	del := &cobra.Command{
		Use:   "delete <id>",
		Short: "Delete a note",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if !a.store.DeleteNote(args[0]) {
				return fmt.Errorf("note %s not found", args[0])
			}
			return printJSON(cmd, map[string]string{"deleted": args[0]})
		},
	}

	cmd.AddCommand(add, list, show, del, a.generateCmd())
	return cmd
}

func (a *app) generateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "generate",
		Short: "Draft a note with the AI model",
		Long: `Draft a note from a prompt. The other notes of the project are sent as
context. The API key is taken from "devdiary apikey set".`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			projectID, _ := cmd.Flags().GetString(flagProject)
			prompt, _ := cmd.Flags().GetString(flagPrompt)
			exclude, _ := cmd.Flags().GetString(flagExclude)
			save, _ := cmd.Flags().GetBool(flagSave)

			if _, ok := a.store.GetProjectByID(projectID); !ok {
				return fmt.Errorf("project %s not found", projectID)
			}

			contextNotes := ai.ContextNotes(a.store.GetNotesByProjectID(projectID), exclude)
			contextNotes = recall.Select(prompt, contextNotes, a.cfg.AI.ContextLimit)

			gen, err := a.newGenerator(a.cfg.AI, a.log)
			if err != nil {
				return fmt.Errorf("error creating generator: %w", err)
			}

			note, err := ai.NewAction(gen).Run(cmd.Context(), ai.NoteRequest{
				Prompt:       prompt,
				ContextNotes: contextNotes,
				Credential:   a.store.APIKey(),
			})
			if err != nil {
				return err
			}

			out := generatedOutput{GeneratedNote: note, Context: len(contextNotes)}
			if note.Failed() {
				if err := printJSON(cmd, out); err != nil {
					return err
				}
				return errors.New(note.Content)
			}

			if save {
				saved, err := a.store.AddNote(store.NewNote{
					ProjectID: projectID,
					Title:     clipTitle(note.Title),
					Content:   note.Content,
				})
				if err != nil {
					if perr := printJSON(cmd, out); perr != nil {
						return perr
					}
					return fmt.Errorf("error saving note: %w", err)
				}
				out.Saved = &saved
			}
			return printJSON(cmd, out)
		},
	}
	cmd.Flags().StringP(flagProject, "p", "", "Project id")
	cmd.Flags().String(flagPrompt, "", "What the note should be about")
	cmd.Flags().String(flagExclude, "", "Note id to leave out of the context")
	cmd.Flags().Bool(flagSave, false, "Save the generated note to the project")
	mustMarkRequired(cmd, flagProject)
	return cmd
}
