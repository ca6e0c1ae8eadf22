package cmds

import (
	"fmt"
	"os"

	"github.com/go-go-golems/mnemo/pkg/transcript"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"
	"github.com/tiktoken-go/tokenizer"
)

func NewTokensCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "tokens",
		Short: "Token helpers for sizing the knowledge base context",
	}
	cmd.AddCommand(newTokensCountCommand())
	return cmd
}

func getCodec(model, encoding string) (tokenizer.Codec, error) {
	if model != "" {
		return tokenizer.ForModel(tokenizer.Model(model))
	}
	return tokenizer.Get(tokenizer.Encoding(encoding))
}

func newTokensCountCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "count [files...]",
		Short: "Count tokens in files, or in a saved session with --session",
		RunE: func(cmd *cobra.Command, args []string) error {
			model, _ := cmd.Flags().GetString("model")
			codecName, _ := cmd.Flags().GetString("codec")
			session, _ := cmd.Flags().GetString("session")

			if session == "" && len(args) == 0 {
				return errors.New("give files to count or --session")
			}

			codec, err := getCodec(model, codecName)
			if err != nil {
				return errors.Wrap(err, "create tokenizer")
			}
			count := func(s string) (int, error) {
				ids, _, err := codec.Encode(s)
				return len(ids), err
			}

			w := cmd.OutOrStdout()
			total := 0

			for _, f := range args {
				b, err := os.ReadFile(f)
				if err != nil {
					return err
				}
				n, err := count(string(b))
				if err != nil {
					return errors.Wrapf(err, "encode %s", f)
				}
				total += n
				_, _ = fmt.Fprintf(w, "%s\t%d\n", f, n)
			}

			if session != "" {
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
				msgs, err := store.Load(cmd.Context(), session)
				if err != nil {
					return err
				}
				for _, m := range msgs {
					if m.Type != transcript.MessageTypeText {
						continue
					}
					n, err := count(m.Content)
					if err != nil {
						return err
					}
					total += n
				}
				_, _ = fmt.Fprintf(w, "%s\t%d messages\n", session, len(msgs))
			}

			if model != "" {
				_, _ = fmt.Fprintf(w, "Model: %s\n", model)
			} else {
				_, _ = fmt.Fprintf(w, "Codec: %s\n", codecName)
			}
			_, _ = fmt.Fprintf(w, "Total tokens: %d\n", total)
			return nil
		},
	}

	cmd.Flags().String("model", "", "Model whose tokenizer to use")
	cmd.Flags().String("codec", string(tokenizer.Cl100kBase), "Codec to use when no model is given")
	cmd.Flags().String("session", "", "Count the text messages of a saved session")

	return cmd
}
