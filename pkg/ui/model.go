package ui

import (
	"context"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textarea"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/glamour"
	"github.com/go-go-golems/mnemo/pkg/conversation"
	"github.com/go-go-golems/mnemo/pkg/events"
	"github.com/go-go-golems/mnemo/pkg/transcript"
	"github.com/muesli/reflow/wordwrap"
	"github.com/rs/zerolog/log"
)

type entryKind int

const (
	entryMessage entryKind = iota
	entryNotice
	entryWarning
	entryError
)

type entry struct {
	kind entryKind
	msg  transcript.Message
	text string
}

type Model struct {
	ctx     context.Context
	backend Backend

	keyMap KeyMap
	style  *Style
	help   help.Model

	textArea textarea.Model
	viewport viewport.Model
	spinner  spinner.Model
	renderer *glamour.TermRenderer

	entries   []entry
	state     string
	sessionID string
	queued    int
	busy      bool
	quitting  bool

	width  int
	height int
	ready  bool
}

func NewModel(ctx context.Context, backend Backend) Model {
	ret := Model{
		ctx:     ctx,
		backend: backend,
		keyMap:  DefaultKeyMap,
		style:   DefaultStyles(),
		help:    help.New(),
		spinner: spinner.New(spinner.WithSpinner(spinner.Dot)),
		state:   string(conversation.StateIdle),
	}

	ret.textArea = textarea.New()
	ret.textArea.Placeholder = "Ask the knowledge base, or /help"
	ret.textArea.ShowLineNumbers = false
	ret.textArea.SetHeight(3)
	ret.textArea.KeyMap.InsertNewline.SetKeys("alt+enter", "ctrl+j")
	ret.textArea.Focus()

	ret.sessionID = backend.SessionID()
	ret.queued = len(backend.Pending())
	ret.setMessages(backend.Messages())
	ret.keyMap.updateKeyBindings(false)

	return ret
}

func (m *Model) setMessages(msgs []transcript.Message) {
	m.entries = m.entries[:0]
	for _, msg := range msgs {
		m.entries = append(m.entries, entry{kind: entryMessage, msg: msg})
	}
}

func (m *Model) add(kind entryKind, lines ...string) {
	for _, l := range lines {
		m.entries = append(m.entries, entry{kind: kind, text: l})
	}
}

func (m Model) Init() tea.Cmd {
	return textarea.Blink
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmds []tea.Cmd
	var cmd tea.Cmd

	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch {
		case key.Matches(msg, m.keyMap.Quit):
			m.quitting = true
			return m, tea.Quit

		case key.Matches(msg, m.keyMap.Help):
			m.add(entryNotice, strings.Split(HelpText, "\n")...)

		case key.Matches(msg, m.keyMap.ScrollUp):
			m.viewport.HalfViewUp()

		case key.Matches(msg, m.keyMap.ScrollDown):
			m.viewport.HalfViewDown()

		case key.Matches(msg, m.keyMap.SubmitMessage):
			cmd = m.submit()
			if cmd != nil {
				cmds = append(cmds, cmd)
			}

		default:
			m.textArea, cmd = m.textArea.Update(msg)
			cmds = append(cmds, cmd)
		}

	case tea.WindowSizeMsg:
		m.resize(msg.Width, msg.Height)

	case EventMsg:
		m.handleEvent(msg.Event)

	case commandDoneMsg:
		m.busy = false
		m.keyMap.updateKeyBindings(false)
		if msg.outcome != nil {
			if msg.outcome.Reset {
				m.setMessages(msg.messages)
			}
			if msg.outcome.Result != nil {
				m.queued = msg.outcome.Result.QueueLength
			}
			m.add(entryNotice, msg.outcome.Notices...)
			m.add(entryWarning, msg.outcome.Warnings...)
			if msg.outcome.Quit {
				m.quitting = true
				return m, tea.Quit
			}
		}
		if msg.err != nil {
			m.add(entryError, fmt.Sprintf("Error: %v", msg.err))
		}

	case spinner.TickMsg:
		if m.busy {
			m.spinner, cmd = m.spinner.Update(msg)
			cmds = append(cmds, cmd)
		}

	default:
		m.textArea, cmd = m.textArea.Update(msg)
		cmds = append(cmds, cmd)
	}

	m.refresh()
	return m, tea.Batch(cmds...)
}

func (m *Model) submit() tea.Cmd {
	value := strings.TrimSpace(m.textArea.Value())
	if value == "" || m.busy {
		return nil
	}
	m.textArea.Reset()

	cmd, err := ParseCommand(value)
	if err != nil {
		m.add(entryError, err.Error())
		return nil
	}

	m.busy = true
	m.keyMap.updateKeyBindings(true)
	return tea.Batch(runCommand(m.ctx, m.backend, value, cmd), m.spinner.Tick)
}

func (m *Model) handleEvent(e events.Event) {
	switch e.Type {
	case events.EventTypeMessage:
		if e.Message != nil {
			m.entries = append(m.entries, entry{kind: entryMessage, msg: *e.Message})
		}
	case events.EventTypeState:
		m.state = e.State
		if e.Session != "" || conversation.State(e.State) == conversation.StateIdle {
			m.sessionID = e.Session
		}
		if isBusyState(e.State) {
			m.queued = 0
		}
	case events.EventTypeQueued:
		m.queued = e.QueueLength
	case events.EventTypePersisted:
		m.sessionID = e.Session
	case events.EventTypeError:
		// shown when the command returns
	}
}

func (m *Model) resize(width, height int) {
	m.width = width
	m.height = height

	inputFrameW, inputFrameH := m.style.Input.GetFrameSize()
	m.textArea.SetWidth(width - inputFrameW)

	vpHeight := height - m.textArea.Height() - inputFrameH - 2
	if vpHeight < 1 {
		vpHeight = 1
	}
	if !m.ready {
		m.viewport = viewport.New(width, vpHeight)
		m.ready = true
	} else {
		m.viewport.Width = width
		m.viewport.Height = vpHeight
	}

	frameW, _ := m.style.AssistantMessage.GetFrameSize()
	r, err := glamour.NewTermRenderer(
		glamour.WithAutoStyle(),
		glamour.WithWordWrap(width-frameW),
	)
	if err != nil {
		log.Warn().Err(err).Msg("Could not create markdown renderer")
		r = nil
	}
	m.renderer = r
}

func (m *Model) refresh() {
	if !m.ready {
		return
	}
	atBottom := m.viewport.AtBottom()
	m.viewport.SetContent(m.renderEntries())
	if atBottom || m.busy {
		m.viewport.GotoBottom()
	}
}

func (m Model) renderEntries() string {
	var sb strings.Builder
	frameW, _ := m.style.UserMessage.GetFrameSize()
	width := m.width - frameW
	if width < 10 {
		width = 10
	}

	for _, e := range m.entries {
		switch e.kind {
		case entryMessage:
			sb.WriteString(m.renderMessage(e.msg, width))
		case entryNotice:
			sb.WriteString(m.style.Notice.Render(wordwrap.String(e.text, width)))
		case entryWarning:
			sb.WriteString(m.style.Warning.Render(wordwrap.String(e.text, width)))
		case entryError:
			sb.WriteString(m.style.Error.Render(wordwrap.String(e.text, width)))
		}
		sb.WriteString("\n")
	}
	return sb.String()
}

func (m Model) renderMessage(msg transcript.Message, width int) string {
	switch {
	case msg.Type.IsMedia():
		return m.style.MediaMessage.Render(fmt.Sprintf("%s: %s", msg.Type, msg.Content))
	case msg.Role == transcript.RoleAssistant:
		text := msg.Content
		if m.renderer != nil {
			rendered, err := m.renderer.Render(text)
			if err == nil {
				return m.style.AssistantMessage.Render(strings.Trim(rendered, "\n"))
			}
			log.Debug().Err(err).Msg("Could not render reply as markdown")
		}
		return m.style.AssistantMessage.Render(wordwrap.String(text, width))
	default:
		return m.style.UserMessage.Render(wordwrap.String(msg.Content, width))
	}
}

func (m Model) statusLine() string {
	session := m.sessionID
	if session == "" {
		session = "new session"
	}
	parts := []string{session, m.state}
	if m.queued > 0 {
		parts = append(parts, fmt.Sprintf("%d queued", m.queued))
	}
	status := strings.Join(parts, " · ")
	if m.busy {
		status = m.spinner.View() + " " + status
	}
	return m.style.Status.Render(status)
}

func (m Model) View() string {
	if m.quitting {
		return ""
	}
	if !m.ready {
		return "Initializing..."
	}

	return strings.Join([]string{
		m.viewport.View(),
		m.statusLine(),
		m.style.Input.Render(m.textArea.View()),
		m.help.ShortHelpView(m.keyMap.ShortHelp()),
	}, "\n")
}
