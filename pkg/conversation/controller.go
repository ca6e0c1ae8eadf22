// Package conversation holds the chat controller: it owns the session log and
// the queue of inputs submitted while offline, and drives retrieval,
// generation and persistence for every submission.
package conversation

import (
	"context"
	"io"
	"strings"
	"sync"

	"github.com/go-go-golems/mnemo/pkg/connectivity"
	"github.com/go-go-golems/mnemo/pkg/events"
	"github.com/go-go-golems/mnemo/pkg/generator"
	"github.com/go-go-golems/mnemo/pkg/media"
	"github.com/go-go-golems/mnemo/pkg/retriever"
	"github.com/go-go-golems/mnemo/pkg/transcript"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
)

// SubmitResult describes what a Submit call did.
type SubmitResult struct {
	// Queued is set when the input was kept for later because the network
	// was unreachable.
	Queued      bool
	QueueLength int
	SessionID   string
	// Appended holds the messages added to the log by this call, drained
	// pairs first.
	Appended []transcript.Message
	// Drained is the number of queued inputs processed before the new one.
	Drained int
}

type Controller struct {
	mu sync.Mutex

	store     transcript.Store
	retriever retriever.Retriever
	generator generator.Generator
	prober    connectivity.Prober

	media        *media.Store
	prompts      *generator.PromptBuilder
	sink         events.Sink
	k            int
	systemPrompt string

	stateMu sync.RWMutex
	state   State

	session *Session
}

type Option func(*Controller)

func WithSink(sink events.Sink) Option {
	return func(c *Controller) {
		if sink != nil {
			c.sink = sink
		}
	}
}

func WithMediaStore(m *media.Store) Option {
	return func(c *Controller) {
		c.media = m
	}
}

func WithPromptBuilder(b *generator.PromptBuilder) Option {
	return func(c *Controller) {
		if b != nil {
			c.prompts = b
		}
	}
}

// WithK sets how many knowledge base snippets are retrieved per input.
func WithK(k int) Option {
	return func(c *Controller) {
		if k > 0 {
			c.k = k
		}
	}
}

func WithSystemPrompt(prompt string) Option {
	return func(c *Controller) {
		if strings.TrimSpace(prompt) != "" {
			c.systemPrompt = prompt
		}
	}
}

// WithSession starts the controller on an existing session, e.g. one
// restored from the transcript store.
func WithSession(s Session) Option {
	return func(c *Controller) {
		cloned := s.clone()
		c.session = &cloned
	}
}

func NewController(
	store transcript.Store,
	r retriever.Retriever,
	g generator.Generator,
	p connectivity.Prober,
	opts ...Option,
) (*Controller, error) {
	if store == nil || r == nil || g == nil || p == nil {
		return nil, errors.New("controller requires a store, a retriever, a generator and a prober")
	}

	c := &Controller{
		store:        store,
		retriever:    r,
		generator:    g,
		prober:       p,
		sink:         events.NullSink{},
		k:            retriever.DefaultK,
		systemPrompt: generator.DefaultSystemPrompt,
		state:        StateIdle,
		session:      &Session{},
	}
	for _, opt := range opts {
		opt(c)
	}

	if c.prompts == nil {
		b, err := generator.NewPromptBuilder()
		if err != nil {
			return nil, err
		}
		c.prompts = b
	}

	return c, nil
}

func (c *Controller) State() State {
	c.stateMu.RLock()
	defer c.stateMu.RUnlock()
	return c.state
}

func (c *Controller) setState(s State) {
	c.stateMu.Lock()
	c.state = s
	c.stateMu.Unlock()
	c.publish(events.NewStateEvent(c.session.ID, s.String()))
}

func (c *Controller) publish(e events.Event) {
	if err := c.sink.PublishEvent(e); err != nil {
		log.Warn().Err(err).Str("event_type", string(e.Type)).Msg("Could not publish conversation event")
	}
}

// Submit handles one user input. When the network is unreachable the input
// is queued and nothing else happens. Otherwise every queued input is
// processed oldest first, then the new one, and the log is saved once.
//
// If retrieval or generation fails part way, the pairs completed so far are
// kept and saved, and the failing input is put back at the head of the queue
// together with everything after it.
func (c *Controller) Submit(ctx context.Context, input string) (*SubmitResult, error) {
	if strings.TrimSpace(input) == "" {
		return nil, ErrEmptyInput
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	c.setState(StateCheckingConnectivity)
	if !c.prober.Probe(ctx) {
		c.session.Queue = append(c.session.Queue, input)
		n := len(c.session.Queue)
		log.Warn().Str("session", c.session.ID).Int("queued", n).Msg("Offline, message queued for later")
		c.publish(events.NewQueuedEvent(c.session.ID, input, n))
		c.setState(StateIdle)
		return &SubmitResult{
			Queued:      true,
			QueueLength: n,
			SessionID:   c.session.ID,
		}, nil
	}

	pending := append(c.session.takeQueue(), input)
	assigned := false
	if c.session.ID == "" {
		c.session.ID = SessionIDFromInput(input)
		assigned = true
		log.Debug().Str("session", c.session.ID).Msg("Named new session")
	}

	start := len(c.session.Messages)
	res := &SubmitResult{SessionID: c.session.ID}

	for i, in := range pending {
		replayed := i < len(pending)-1
		if replayed {
			c.setState(StateDraining)
		} else {
			c.setState(StateProcessingNew)
		}

		if err := c.process(ctx, in, replayed); err != nil {
			c.session.Queue = append(append([]string{}, pending[i:]...), c.session.Queue...)
			res.Appended = transcript.CloneMessages(c.session.Messages[start:])
			res.QueueLength = len(c.session.Queue)
			res.Drained = i

			log.Error().Err(err).
				Str("session", c.session.ID).
				Int("completed", i).
				Int("requeued", len(pending)-i).
				Msg("Could not answer message, remaining inputs put back in the queue")

			if len(c.session.Messages) == 0 {
				if assigned {
					c.session.ID = ""
					res.SessionID = ""
				}
			} else if len(res.Appended) > 0 {
				if perr := c.persist(ctx); perr != nil {
					log.Error().Err(perr).Str("session", c.session.ID).Msg("Could not save partial progress")
				}
			}

			c.publish(events.NewErrorEvent(c.session.ID, err))
			c.setState(StateIdle)
			return res, err
		}
	}

	res.Appended = transcript.CloneMessages(c.session.Messages[start:])
	res.Drained = len(pending) - 1

	if err := c.persist(ctx); err != nil {
		c.publish(events.NewErrorEvent(c.session.ID, err))
		c.setState(StateIdle)
		return res, err
	}
	c.setState(StateIdle)

	return res, nil
}

// process appends the user message for input, then the generated reply. On
// failure the user message is removed again.
func (c *Controller) process(ctx context.Context, input string, replayed bool) error {
	user := transcript.NewTextMessage(transcript.RoleUser, input)
	c.session.append(user)
	c.publish(events.NewMessageEvent(c.session.ID, user, replayed))

	snippets, err := c.retriever.Search(ctx, input, c.k)
	if err != nil {
		c.session.dropLast()
		return classify(err, retriever.ErrRetrieval)
	}

	prompt, err := c.prompts.Build(input, snippets)
	if err != nil {
		c.session.dropLast()
		return classify(err, generator.ErrGeneration)
	}

	reply, err := c.generator.Complete(ctx, c.systemPrompt, prompt)
	if err != nil {
		c.session.dropLast()
		return classify(err, generator.ErrGeneration)
	}

	assistant := transcript.NewTextMessage(transcript.RoleAssistant, reply)
	c.session.append(assistant)
	c.publish(events.NewMessageEvent(c.session.ID, assistant, replayed))

	log.Debug().
		Str("session", c.session.ID).
		Int("snippets", len(snippets)).
		Bool("replayed", replayed).
		Msg("Answered message")
	return nil
}

func (c *Controller) persist(ctx context.Context) error {
	c.setState(StatePersisted)
	if err := c.store.Save(ctx, c.session.ID, c.session.Messages); err != nil {
		return classify(err, transcript.ErrPersistence)
	}
	c.publish(events.NewPersistedEvent(c.session.ID, len(c.session.Messages)))
	log.Info().Str("session", c.session.ID).Int("messages", len(c.session.Messages)).Msg("Saved session")
	return nil
}

// Attach copies r into the media directory and appends a media message for it.
// A named session is saved right away; otherwise the message is saved with the
// next answered input.
func (c *Controller) Attach(ctx context.Context, name string, r io.Reader) (*media.Attachment, error) {
	if c.media == nil {
		return nil, ErrNoMediaStore
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	att, err := c.media.Save(name, r)
	if err != nil {
		return nil, err
	}

	msg := transcript.NewMediaMessage(att.Type, att.Path)
	c.session.append(msg)
	c.publish(events.NewMessageEvent(c.session.ID, msg, false))

	if c.session.ID != "" {
		err = c.persist(ctx)
		c.setState(StateIdle)
		if err != nil {
			c.publish(events.NewErrorEvent(c.session.ID, err))
			return att, err
		}
	}
	return att, nil
}

// NewConversation forgets the current log and session name. Persisted
// history and the pending queue are left alone.
func (c *Controller) NewConversation() {
	c.mu.Lock()
	defer c.mu.Unlock()

	queue := c.session.Queue
	c.session = &Session{Queue: queue}
	log.Debug().Int("queued", len(queue)).Msg("Started new conversation")
	c.setState(StateIdle)
}

// LoadConversation replaces the in-memory log with a persisted session.
func (c *Controller) LoadConversation(ctx context.Context, id string) ([]transcript.Message, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	msgs, err := c.store.Load(ctx, id)
	if err != nil {
		return nil, err
	}

	c.session = &Session{
		ID:       id,
		Messages: msgs,
		Queue:    c.session.Queue,
	}
	log.Debug().Str("session", id).Int("messages", len(msgs)).Msg("Loaded session")
	c.setState(StateIdle)
	return transcript.CloneMessages(msgs), nil
}

// Sessions lists the persisted session names, sorted.
func (c *Controller) Sessions(ctx context.Context) ([]string, error) {
	return c.store.List(ctx)
}

func (c *Controller) Pending() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]string{}, c.session.Queue...)
}

func (c *Controller) Messages() []transcript.Message {
	c.mu.Lock()
	defer c.mu.Unlock()
	return transcript.CloneMessages(c.session.Messages)
}

func (c *Controller) SessionID() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.session.ID
}

// Snapshot returns a copy of the whole session state.
func (c *Controller) Snapshot() Session {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.session.clone()
}
