package ui

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/go-go-golems/mnemo/pkg/conversation"
	"github.com/go-go-golems/mnemo/pkg/media"
	"github.com/go-go-golems/mnemo/pkg/transcript"
	"github.com/pkg/errors"
)

// Backend is the part of conversation.Controller the chat surfaces use.
type Backend interface {
	Submit(ctx context.Context, input string) (*conversation.SubmitResult, error)
	Attach(ctx context.Context, name string, r io.Reader) (*media.Attachment, error)
	NewConversation()
	LoadConversation(ctx context.Context, id string) ([]transcript.Message, error)
	Sessions(ctx context.Context) ([]string, error)
	Pending() []string
	Messages() []transcript.Message
	SessionID() string
}

var _ Backend = (*conversation.Controller)(nil)

type CommandName string

const (
	CommandSubmit   CommandName = ""
	CommandAttach   CommandName = "attach"
	CommandSessions CommandName = "sessions"
	CommandLoad     CommandName = "load"
	CommandNew      CommandName = "new"
	CommandQueue    CommandName = "queue"
	CommandHelp     CommandName = "help"
	CommandQuit     CommandName = "quit"
)

const HelpText = `/attach <path>  copy a file into the media directory and add it to the chat
/sessions       list saved sessions
/load <id>      switch to a saved session
/new            start a new conversation
/queue          show messages waiting for the network
/help           show this help
/quit           leave`

type Command struct {
	Name CommandName
	Arg  string
}

// ParseCommand reads one line of input. Lines starting with a single '/' are
// commands, everything else is a message. A leading "//" sends a literal '/'.
func ParseCommand(line string) (Command, error) {
	trimmed := strings.TrimSpace(line)
	if !strings.HasPrefix(trimmed, "/") {
		return Command{Name: CommandSubmit, Arg: line}, nil
	}
	if strings.HasPrefix(trimmed, "//") {
		return Command{Name: CommandSubmit, Arg: trimmed[1:]}, nil
	}

	name, arg, _ := strings.Cut(trimmed[1:], " ")
	arg = strings.TrimSpace(arg)
	cmd := Command{Name: CommandName(strings.ToLower(name)), Arg: arg}

	switch cmd.Name {
	case CommandAttach, CommandLoad:
		if arg == "" {
			return Command{}, errors.Errorf("/%s needs an argument", cmd.Name)
		}
	case CommandSessions, CommandNew, CommandQueue, CommandHelp, CommandQuit:
	case "exit":
		cmd.Name = CommandQuit
	default:
		return Command{}, errors.Errorf("unknown command /%s, try /help", name)
	}
	return cmd, nil
}

// Outcome is what running a command produced, for the surface to display.
type Outcome struct {
	Notices  []string
	Warnings []string
	Result   *conversation.SubmitResult
	// Reset is set when the displayed log must be reloaded from the backend.
	Reset bool
	Quit  bool
}

func Execute(ctx context.Context, b Backend, cmd Command) (*Outcome, error) {
	out := &Outcome{}

	switch cmd.Name {
	case CommandSubmit:
		res, err := b.Submit(ctx, cmd.Arg)
		out.Result = res
		if res != nil && res.Queued {
			out.Warnings = append(out.Warnings, QueuedNotice(res.QueueLength))
		}
		if err != nil {
			return out, err
		}

	case CommandAttach:
		path := expandHome(cmd.Arg)
		f, err := os.Open(path)
		if err != nil {
			return out, errors.Wrapf(err, "open %s", cmd.Arg)
		}
		defer func(f *os.File) {
			_ = f.Close()
		}(f)
		att, err := b.Attach(ctx, filepath.Base(path), f)
		if err != nil {
			return out, err
		}
		out.Notices = append(out.Notices, fmt.Sprintf("Attached %s (%s, %d bytes)", att.Path, att.MediaType, att.Size))

	case CommandSessions:
		ids, err := b.Sessions(ctx)
		if err != nil {
			return out, err
		}
		if len(ids) == 0 {
			out.Notices = append(out.Notices, "No saved sessions")
			break
		}
		current := b.SessionID()
		for _, id := range ids {
			marker := "  "
			if id == current {
				marker = "* "
			}
			out.Notices = append(out.Notices, marker+id)
		}

	case CommandLoad:
		msgs, err := b.LoadConversation(ctx, cmd.Arg)
		if err != nil {
			return out, err
		}
		out.Reset = true
		out.Notices = append(out.Notices, fmt.Sprintf("Loaded %s (%d messages)", cmd.Arg, len(msgs)))

	case CommandNew:
		b.NewConversation()
		out.Reset = true
		out.Notices = append(out.Notices, "Started a new conversation")

	case CommandQueue:
		pending := b.Pending()
		if len(pending) == 0 {
			out.Notices = append(out.Notices, "No queued messages")
			break
		}
		for i, p := range pending {
			out.Notices = append(out.Notices, fmt.Sprintf("%d. %s", i+1, p))
		}

	case CommandHelp:
		out.Notices = append(out.Notices, strings.Split(HelpText, "\n")...)

	case CommandQuit:
		out.Quit = true
		if n := len(b.Pending()); n > 0 {
			out.Warnings = append(out.Warnings, fmt.Sprintf("%d queued messages were not sent and are dropped", n))
		}
	}

	return out, nil
}

func QueuedNotice(n int) string {
	return fmt.Sprintf("You appear to be offline. Message queued (%d pending), it will be sent with your next message.", n)
}

func expandHome(path string) string {
	if path == "~" || strings.HasPrefix(path, "~/") {
		if home, err := os.UserHomeDir(); err == nil {
			return filepath.Join(home, path[1:])
		}
	}
	return path
}
