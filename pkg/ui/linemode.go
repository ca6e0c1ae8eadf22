package ui

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/go-go-golems/mnemo/pkg/transcript"
	"github.com/pkg/errors"
)

// RunLineMode reads one message or command per line from in and writes
// replies to out. It is used when stdin is not a terminal. Errors from a
// single line are printed and the loop goes on; only reading errors and a
// cancelled context stop it.
func RunLineMode(ctx context.Context, b Backend, in io.Reader, out io.Writer) error {
	scanner := bufio.NewScanner(in)
	scanner.Buffer(make([]byte, 64*1024), 1024*1024)

	for scanner.Scan() {
		if err := ctx.Err(); err != nil {
			return err
		}
		line := scanner.Text()
		if strings.TrimSpace(line) == "" {
			continue
		}

		cmd, err := ParseCommand(line)
		if err != nil {
			_, _ = fmt.Fprintf(out, "! %v\n", err)
			continue
		}

		outcome, err := Execute(ctx, b, cmd)
		if outcome != nil {
			if outcome.Result != nil {
				for _, m := range outcome.Result.Appended {
					if m.Role == transcript.RoleAssistant {
						_, _ = fmt.Fprintln(out, m.Content)
					}
				}
			}
			if outcome.Reset {
				for _, m := range b.Messages() {
					_, _ = fmt.Fprintln(out, m.String())
				}
			}
			for _, n := range outcome.Notices {
				_, _ = fmt.Fprintln(out, n)
			}
			for _, w := range outcome.Warnings {
				_, _ = fmt.Fprintf(out, "! %s\n", w)
			}
		}
		if err != nil {
			_, _ = fmt.Fprintf(out, "! %v\n", err)
		}
		if outcome != nil && outcome.Quit {
			return nil
		}
	}

	if err := scanner.Err(); err != nil {
		return errors.Wrap(err, "read input")
	}
	return nil
}
