// Package commands implements the devdiary command line.
package commands

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/kittclouds/devdiary/internal/ai"
	"github.com/kittclouds/devdiary/internal/config"
	"github.com/kittclouds/devdiary/internal/logger"
	"github.com/kittclouds/devdiary/internal/store"
)

// flag names
const (
	flagConfig      = "config"
	flagProject     = "project"
	flagTitle       = "title"
	flagDescription = "description"
	flagContent     = "content"
	flagStart       = "start"
	flagEnd         = "end"
	flagPrompt      = "prompt"
	flagExclude     = "exclude"
	flagSave        = "save"
	flagOutput      = "output"
	flagReveal      = "reveal"
)

// dateLayout is how task dates are entered on the command line.
const dateLayout = "2006-01-02"

// storeOpener opens the store described by the configuration.
type storeOpener func(ctx context.Context, cfg *config.Config, log *logger.Logger) (*store.Store, error)

// generatorFactory builds the note generator from the AI settings.
type generatorFactory func(cfg config.AIConfig, log *logger.Logger) (ai.Generator, error)

// app is the state shared by every command of one invocation.
type app struct {
	cfgFile string
	cfg     *config.Config
	log     *logger.Logger
	store   *store.Store

	openStore    storeOpener
	newGenerator generatorFactory

	// preset is set when the store was supplied by the caller; the
	// commands then neither open nor close it.
	preset bool
}

// Execute runs the devdiary command line with the process arguments.
func Execute() error {
	a := &app{openStore: store.Open, newGenerator: geminiGenerator}
	return a.execute(newRootCmd(a))
}

// execute runs root and closes the store afterwards, whether or not the
// command failed. Cobra skips post-run hooks when RunE returns an error.
func (a *app) execute(root *cobra.Command) error {
	err := root.Execute()
	if cerr := a.close(); err == nil {
		err = cerr
	}
	return err
}

func newRootCmd(a *app) *cobra.Command {
	root := &cobra.Command{
		Use:   "devdiary",
		Short: "DevDiary - projects, tasks and notes for developers",
		Long: `DevDiary keeps projects, tasks and notes in a single local document and
can draft notes with an AI model using the project's existing notes as context.`,
		SilenceUsage:      true,
		PersistentPreRunE: a.open,
	}

	root.PersistentFlags().StringVarP(&a.cfgFile, flagConfig, "c", "", "Path to a config file (env: DEVDIARY_*)")

	root.AddCommand(a.projectsCmd())
	root.AddCommand(a.tasksCmd())
	root.AddCommand(a.notesCmd())
	root.AddCommand(a.apiKeyCmd())
	root.AddCommand(a.exportCmd())
	root.AddCommand(a.importCmd())
	root.AddCommand(a.watchCmd())
	return root
}

// open loads configuration and the store once per invocation.
func (a *app) open(cmd *cobra.Command, _ []string) error {
	if a.preset {
		return nil
	}

	cfg, err := config.Load(a.cfgFile)
	if err != nil {
		return err
	}
	log, err := logger.New(cfg.Logger)
	if err != nil {
		return err
	}

	s, err := a.openStore(cmd.Context(), cfg, log)
	if err != nil {
		return fmt.Errorf("failed to open store: %w", err)
	}

	a.cfg, a.log, a.store = cfg, log, s
	a.log.Debugw("Store opened", "backend", cfg.Storage.Backend, "sync", cfg.Sync.Mode)
	return nil
}

// close releases the store opened by open. It is safe to call twice.
func (a *app) close() error {
	if a.preset || a.store == nil {
		return nil
	}
	err := a.store.Close()
	_ = a.log.Close()
	a.store = nil
	return err
}

func geminiGenerator(cfg config.AIConfig, log *logger.Logger) (ai.Generator, error) {
	client, err := ai.NewGeminiClient(ai.GeminiOptions{
		BaseURL: cfg.BaseURL,
		Model:   cfg.Model,
		Timeout: cfg.Timeout,
	})
	if err != nil {
		return nil, err
	}
	return ai.NewNoteGenerator(client,
		ai.WithContextBudget(cfg.ContextBudgetTokens),
		ai.WithGeneratorLogger(log),
	), nil
}

// printJSON pretty prints v to the command's output.
func printJSON(cmd *cobra.Command, v any) error {
	out, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("error formatting output: %w", err)
	}
	_, err = fmt.Fprintln(cmd.OutOrStdout(), string(out))
	return err
}

func mustMarkRequired(cmd *cobra.Command, names ...string) {
	for _, name := range names {
		if err := cmd.MarkFlagRequired(name); err != nil {
			panic(fmt.Errorf("failed to mark %s flag as required for %s command: %w", name, cmd.Name(), err))
		}
	}
}
