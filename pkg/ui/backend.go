package ui

import (
	"context"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/go-go-golems/mnemo/pkg/conversation"
	"github.com/go-go-golems/mnemo/pkg/events"
	"github.com/go-go-golems/mnemo/pkg/transcript"
)

// EventMsg carries a controller event into the bubbletea program.
type EventMsg struct {
	Event events.Event
}

// commandDoneMsg is returned by the tea.Cmd running a command.
type commandDoneMsg struct {
	input   string
	outcome *Outcome
	err     error
	// messages is the reloaded log when outcome.Reset is set.
	messages []transcript.Message
}

// ForwardEvents returns an event router handler that hands every event to p.
func ForwardEvents(p *tea.Program) func(ctx context.Context, e events.Event) error {
	return func(ctx context.Context, e events.Event) error {
		p.Send(EventMsg{Event: e})
		return nil
	}
}

// runCommand runs cmd off the UI goroutine. The controller serialises
// concurrent calls itself.
func runCommand(ctx context.Context, b Backend, input string, cmd Command) tea.Cmd {
	return func() tea.Msg {
		outcome, err := Execute(ctx, b, cmd)
		ret := commandDoneMsg{input: input, outcome: outcome, err: err}
		if outcome != nil && outcome.Reset {
			ret.messages = b.Messages()
		}
		return ret
	}
}

func isBusyState(s string) bool {
	switch conversation.State(s) {
	case conversation.StateCheckingConnectivity, conversation.StateDraining, conversation.StateProcessingNew:
		return true
	default:
		return false
	}
}
