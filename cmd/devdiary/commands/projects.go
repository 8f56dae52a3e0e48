package commands

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/kittclouds/devdiary/internal/store"
)

// projectOutput is a project with its task and note counts.
type projectOutput struct {
	store.Project
	Tasks int `json:"tasks"`
	Notes int `json:"notes"`
}

func (a *app) projectsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "project",
		Aliases: []string{"projects"},
		Short:   "Manage projects",
	}

	add := &cobra.Command{
		Use:   "add <title>",
		Short: "Create a project",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			p, err := a.store.AddProject(strings.Join(args, " "))
			if err != nil {
				return fmt.Errorf("error creating project: %w", err)
			}
			return printJSON(cmd, p)
		},
	}

	list := &cobra.Command{
		Use:   "list",
		Short: "List projects",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			d := a.store.Data()
			out := make([]projectOutput, 0, len(d.Projects))
			for _, p := range d.Projects {
				out = append(out, projectOutput{
					Project: p,
					Tasks:   len(a.store.GetTasksByProjectID(p.ID)),
					Notes:   len(a.store.GetNotesByProjectID(p.ID)),
				})
			}
			return printJSON(cmd, out)
		},
	}

	rename := &cobra.Command{
		Use:   "rename <id> <title>",
		Short: "Rename a project",
		Args:  cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			p, ok := a.store.GetProjectByID(args[0])
			if !ok {
				return fmt.Errorf("project %s not found", args[0])
			}
			p.Title = strings.Join(args[1:], " ")
			if err := a.store.UpdateProject(p); err != nil {
				return fmt.Errorf("error renaming project: %w", err)
			}
			p, _ = a.store.GetProjectByID(p.ID)
			return printJSON(cmd, p)
		},
	}

	del := &cobra.Command{
		Use:   "delete <id>",
		Short: "Delete a project with its tasks and notes",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if !a.store.DeleteProject(args[0]) {
				return fmt.Errorf("project %s not found", args[0])
			}
			return printJSON(cmd, map[string]string{"deleted": args[0]})
		},
	}

	cmd.AddCommand(add, list, rename, del)
	return cmd
}
