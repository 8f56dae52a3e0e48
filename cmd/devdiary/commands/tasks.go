package commands

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/kittclouds/devdiary/internal/store"
)

// todayOutput is a task due today with its project title.
type todayOutput struct {
	ID      string `json:"id"`
	Title   string `json:"title"`
	Project string `json:"project"`
	Due     string `json:"due"`
}

func (a *app) tasksCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "task",
		Aliases: []string{"tasks"},
		Short:   "Manage tasks",
	}

	add := &cobra.Command{
		Use:   "add",
		Short: "Create a task",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			projectID, _ := cmd.Flags().GetString(flagProject)
			title, _ := cmd.Flags().GetString(flagTitle)
			description, _ := cmd.Flags().GetString(flagDescription)

			if _, ok := a.store.GetProjectByID(projectID); !ok {
				return fmt.Errorf("project %s not found", projectID)
			}
			start, err := a.dateFlag(cmd, flagStart)
			if err != nil {
				return err
			}
			end, err := a.dateFlag(cmd, flagEnd)
			if err != nil {
				return err
			}

			t, err := a.store.AddTask(store.NewTask{
				ProjectID:   projectID,
				Title:       title,
				Description: description,
				StartDate:   start,
				EndDate:     end,
			})
			if err != nil {
				return fmt.Errorf("error creating task: %w", err)
			}
			return printJSON(cmd, t)
		},
	}
	add.Flags().StringP(flagProject, "p", "", "Project id")
	add.Flags().StringP(flagTitle, "t", "", "Task title")
	add.Flags().StringP(flagDescription, "d", "", "Task description")
	add.Flags().String(flagStart, "", "Start date (YYYY-MM-DD)")
	add.Flags().String(flagEnd, "", "End date (YYYY-MM-DD)")
	mustMarkRequired(add, flagProject, flagTitle)

	list := &cobra.Command{
		Use:   "list",
		Short: "List the tasks of a project, newest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			projectID, _ := cmd.Flags().GetString(flagProject)
			return printJSON(cmd, a.store.GetTasksByProjectID(projectID))
		},
	}
	list.Flags().StringP(flagProject, "p", "", "Project id")
	mustMarkRequired(list, flagProject)

	today := &cobra.Command{
		Use:   "today",
		Short: "List open tasks due today",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			tasks := a.store.GetTodaysTasks()
			out := make([]todayOutput, 0, len(tasks))
			for _, t := range tasks {
				out = append(out, todayOutput{
					ID:      t.ID,
					Title:   t.Title,
					Project: a.store.ProjectTitleOr(t.ProjectID),
					Due:     store.FormatDate(t.DueDate(), a.store.Location()),
				})
			}
			return printJSON(cmd, out)
		},
	}

	done := a.setDoneCmd("done <id>", "Mark a task as done", true)
	undone := a.setDoneCmd("undone <id>", "Mark a task as not done", false)

	del := &cobra.Command{
		Use:   "delete <id>",
		Short: "Delete a task",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if !a.store.DeleteTask(args[0]) {
				return fmt.Errorf("task %s not found", args[0])
			}
			return printJSON(cmd, map[string]string{"deleted": args[0]})
		},
	}

	cmd.AddCommand(add, list, today, done, undone, del)
	return cmd
}

func (a *app) setDoneCmd(use, short string, done bool) *cobra.Command {
	return &cobra.Command{
		Use:   use,
		Short: short,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if !a.store.SetTaskDone(args[0], done) {
				return fmt.Errorf("task %s not found", args[0])
			}
			t, _ := a.store.GetTaskByID(args[0])
			return printJSON(cmd, t)
		},
	}
}

// dateFlag parses a calendar date flag in the store's zone. Unset is nil.
func (a *app) dateFlag(cmd *cobra.Command, name string) (*time.Time, error) {
	raw, _ := cmd.Flags().GetString(name)
	if raw == "" {
		return nil, nil
	}
	t, err := time.ParseInLocation(dateLayout, raw, a.store.Location())
	if err != nil {
		return nil, fmt.Errorf("invalid --%s date %q: expected YYYY-MM-DD", name, raw)
	}
	return &t, nil
}
