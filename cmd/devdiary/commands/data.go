package commands

import (
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/kittclouds/devdiary/internal/store"
)

func (a *app) apiKeyCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "apikey",
		Short: "Manage the AI API key",
	}

	set := &cobra.Command{
		Use:   "set <key>",
		Short: "Store the API key",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a.store.SetAPIKey(strings.TrimSpace(args[0]))
			return printJSON(cmd, map[string]string{"apiKey": mask(a.store.APIKey())})
		},
	}

	show := &cobra.Command{
		Use:   "show",
		Short: "Show the stored API key",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			key := a.store.APIKey()
			if reveal, _ := cmd.Flags().GetBool(flagReveal); !reveal {
				key = mask(key)
			}
			return printJSON(cmd, map[string]string{"apiKey": key})
		},
	}
	show.Flags().Bool(flagReveal, false, "Print the key unmasked")

	cmd.AddCommand(set, show)
	return cmd
}

// mask keeps the last four characters of key.
func mask(key string) string {
	if len(key) <= 4 {
		return strings.Repeat("*", len(key))
	}
	return strings.Repeat("*", len(key)-4) + key[len(key)-4:]
}

func (a *app) exportCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Write a JSON backup of all data",
		Long: `Write a JSON backup of all data. By default the backup is written to
devdiary_backup_<date>.json in the current directory; use --output - for stdout.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			data, err := a.store.Export()
			if err != nil {
				return fmt.Errorf("error exporting data: %w", err)
			}

			output, _ := cmd.Flags().GetString(flagOutput)
			if output == "-" {
				_, err = cmd.OutOrStdout().Write(append(data, '\n'))
				return err
			}
			if output == "" {
				output = store.BackupFileName(time.Now().In(a.store.Location()))
			}
			if err := os.WriteFile(output, data, 0o644); err != nil {
				return fmt.Errorf("error writing backup: %w", err)
			}
			return printJSON(cmd, map[string]string{"exported": output})
		},
	}
	cmd.Flags().StringP(flagOutput, "o", "", "Output file, or - for stdout")
	return cmd
}

func (a *app) importCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "import <file|->",
		Short: "Replace all data with a JSON backup",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var payload []byte
			var err error
			if args[0] == "-" {
				payload, err = io.ReadAll(cmd.InOrStdin())
			} else {
				payload, err = os.ReadFile(args[0])
			}
			if err != nil {
				return fmt.Errorf("error reading backup: %w", err)
			}

			if err := a.store.ImportData(payload); err != nil {
				return err
			}
			d := a.store.Data()
			return printJSON(cmd, map[string]int{
				"projects": len(d.Projects),
				"tasks":    len(d.Tasks),
				"notes":    len(d.Notes),
			})
		},
	}
}

func (a *app) watchCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "watch",
		Short: "Print a line whenever the data changes, here or in another instance",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			out := cmd.OutOrStdout()
			cancel := a.store.OnChange(func(d store.AppData) {
				fmt.Fprintf(out, "%s projects=%d tasks=%d notes=%d\n",
					time.Now().Format(time.TimeOnly), len(d.Projects), len(d.Tasks), len(d.Notes))
			})
			defer cancel()

			a.log.Infow("Watching for changes", "key", a.cfg.Storage.Key, "sync", a.cfg.Sync.Mode)
			<-ctx.Done()
			return nil
		},
	}
}
