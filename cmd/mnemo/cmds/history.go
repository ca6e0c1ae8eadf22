package cmds

import (
	"fmt"
	"os"
	"sort"

	"github.com/go-go-golems/mnemo/pkg/transcript"
	"github.com/spf13/cobra"
)

func NewHistoryCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "history",
		Short: "Inspect saved sessions",
	}

	cmd.AddCommand(newHistoryListCommand())
	cmd.AddCommand(newHistoryShowCommand())
	cmd.AddCommand(newHistorySchemaCommand())

	return cmd
}

func newHistoryListCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List saved sessions with their message counts",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := loadSettings()
			if err != nil {
				return err
			}
			store, err := openStore(s)
			if err != nil {
				return err
			}
			defer func() {
				_ = store.Close()
			}()

			all, err := store.LoadAll(cmd.Context())
			if err != nil {
				return err
			}
			ids := make([]string, 0, len(all))
			for id := range all {
				ids = append(ids, id)
			}
			sort.Strings(ids)

			w := cmd.OutOrStdout()
			for _, id := range ids {
				_, _ = fmt.Fprintf(w, "%s\t%d messages\n", id, len(all[id]))
			}
			return nil
		},
	}
}

func newHistoryShowCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "show <session>",
		Short: "Print or export one session",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			format, _ := cmd.Flags().GetString("format")
			output, _ := cmd.Flags().GetString("output")

			s, err := loadSettings()
			if err != nil {
				return err
			}
			store, err := openStore(s)
			if err != nil {
				return err
			}
			defer func() {
				_ = store.Close()
			}()

			msgs, err := store.Load(cmd.Context(), args[0])
			if err != nil {
				return err
			}

			w := cmd.OutOrStdout()
			if output != "" {
				f, err := os.Create(output)
				if err != nil {
					return err
				}
				defer func(f *os.File) {
					_ = f.Close()
				}(f)
				w = f
			}
			return transcript.Export(w, args[0], msgs, transcript.ExportFormat(format))
		},
	}

	cmd.Flags().String("format", string(transcript.ExportText), "Output format (text, json, yaml)")
	cmd.Flags().String("output", "", "Write to this file instead of stdout")

	return cmd
}

func newHistorySchemaCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "schema",
		Short: "Print the JSON schema of a saved session",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			b, err := transcript.Schema()
			if err != nil {
				return err
			}
			_, err = fmt.Fprintln(cmd.OutOrStdout(), string(b))
			return err
		},
	}
}
