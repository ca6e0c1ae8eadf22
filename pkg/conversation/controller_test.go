package conversation

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"testing"

	"github.com/go-go-golems/mnemo/pkg/connectivity"
	"github.com/go-go-golems/mnemo/pkg/events"
	"github.com/go-go-golems/mnemo/pkg/generator"
	"github.com/go-go-golems/mnemo/pkg/media"
	"github.com/go-go-golems/mnemo/pkg/retriever"
	"github.com/go-go-golems/mnemo/pkg/transcript"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type saveCall struct {
	id   string
	msgs []transcript.Message
}

type fakeStore struct {
	mu       sync.Mutex
	saves    []saveCall
	sessions map[string][]transcript.Message
	failSave error
}

func newFakeStore() *fakeStore {
	return &fakeStore{sessions: map[string][]transcript.Message{}}
}

func (f *fakeStore) Save(_ context.Context, id string, msgs []transcript.Message) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failSave != nil {
		return f.failSave
	}
	f.saves = append(f.saves, saveCall{id: id, msgs: transcript.CloneMessages(msgs)})
	f.sessions[id] = transcript.CloneMessages(msgs)
	return nil
}

func (f *fakeStore) Load(_ context.Context, id string) ([]transcript.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	msgs, ok := f.sessions[id]
	if !ok {
		return nil, transcript.ErrNotFound
	}
	return transcript.CloneMessages(msgs), nil
}

func (f *fakeStore) LoadAll(_ context.Context) (map[string][]transcript.Message, error) {
	return f.sessions, nil
}

func (f *fakeStore) List(_ context.Context) ([]string, error) {
	ids := []string{}
	for id := range f.sessions {
		ids = append(ids, id)
	}
	return ids, nil
}

func (f *fakeStore) Close() error { return nil }

// switchProber answers with the current value of online.
type switchProber struct {
	online bool
	calls  int
}

func (s *switchProber) Probe(context.Context) bool {
	s.calls++
	return s.online
}

// echoGenerator answers "r<n>:<query>" and can fail on a given query.
type echoGenerator struct {
	n       int
	failOn  string
	prompts []string
	systems []string
}

func (g *echoGenerator) Complete(_ context.Context, system string, prompt string) (string, error) {
	g.prompts = append(g.prompts, prompt)
	g.systems = append(g.systems, system)
	query := prompt[strings.LastIndex(prompt, "User Query: ")+len("User Query: "):]
	if g.failOn != "" && query == g.failOn {
		return "", errors.Wrap(generator.ErrGeneration, "quota exceeded")
	}
	g.n++
	return fmt.Sprintf("r%d:%s", g.n, query), nil
}

type fixture struct {
	store  *fakeStore
	prober *switchProber
	gen    *echoGenerator
	sink   *events.RecordingSink
	c      *Controller
}

func newFixture(t *testing.T, opts ...Option) *fixture {
	f := &fixture{
		store:  newFakeStore(),
		prober: &switchProber{online: true},
		gen:    &echoGenerator{},
		sink:   &events.RecordingSink{},
	}
	opts = append([]Option{WithSink(f.sink)}, opts...)
	c, err := NewController(f.store, retriever.Static{"kb snippet"}, f.gen, f.prober, opts...)
	require.NoError(t, err)
	f.c = c
	return f
}

func user(s string) transcript.Message {
	return transcript.NewTextMessage(transcript.RoleUser, s)
}

func assistant(s string) transcript.Message {
	return transcript.NewTextMessage(transcript.RoleAssistant, s)
}

func TestSubmit_FirstMessageOnline(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	res, err := f.c.Submit(ctx, "Hello there, how are you")
	require.NoError(t, err)

	assert.False(t, res.Queued)
	assert.Equal(t, "Hello_there,_how_are_you", res.SessionID)
	assert.Equal(t, []transcript.Message{
		user("Hello there, how are you"),
		assistant("r1:Hello there, how are you"),
	}, res.Appended)
	require.Len(t, f.store.saves, 1)
	assert.Equal(t, "Hello_there,_how_are_you", f.store.saves[0].id)
	assert.Len(t, f.store.saves[0].msgs, 2)
	assert.Equal(t, StateIdle, f.c.State())

	assert.Equal(t, generator.DefaultSystemPrompt, f.gen.systems[0])
	assert.Contains(t, f.gen.prompts[0], "Context:\nkb snippet")
}

func TestSubmit_OfflineQueuesWithoutSideEffects(t *testing.T) {
	f := newFixture(t)
	f.prober.online = false
	ctx := context.Background()

	for i, in := range []string{"m1", "m2", "m3"} {
		res, err := f.c.Submit(ctx, in)
		require.NoError(t, err)
		assert.True(t, res.Queued)
		assert.Equal(t, i+1, res.QueueLength)
		assert.Empty(t, res.Appended)
	}

	assert.Equal(t, []string{"m1", "m2", "m3"}, f.c.Pending())
	assert.Empty(t, f.c.Messages())
	assert.Empty(t, f.store.saves)
	assert.Empty(t, f.gen.prompts)
	assert.Empty(t, f.c.SessionID())
	assert.Len(t, f.sink.OfType(events.EventTypeQueued), 3)
}

func TestSubmit_DrainsQueueInOrderBeforeNewInput(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	f.prober.online = false
	for _, in := range []string{"m1", "m2", "m3"} {
		_, err := f.c.Submit(ctx, in)
		require.NoError(t, err)
	}

	f.prober.online = true
	res, err := f.c.Submit(ctx, "m4")
	require.NoError(t, err)

	expected := []transcript.Message{
		user("m1"), assistant("r1:m1"),
		user("m2"), assistant("r2:m2"),
		user("m3"), assistant("r3:m3"),
		user("m4"), assistant("r4:m4"),
	}
	assert.Equal(t, expected, res.Appended)
	assert.Equal(t, expected, f.c.Messages())
	assert.Equal(t, 3, res.Drained)
	assert.Empty(t, f.c.Pending())

	require.Len(t, f.store.saves, 1, "one write per submission, not per message")
	assert.Equal(t, expected, f.store.saves[0].msgs)
	assert.Equal(t, "m4", f.store.saves[0].id, "named after the input that triggered the drain")
}

func TestSubmit_PingPong(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	f.prober.online = false
	_, err := f.c.Submit(ctx, "ping")
	require.NoError(t, err)
	assert.Empty(t, f.store.saves)

	f.prober.online = true
	res, err := f.c.Submit(ctx, "pong")
	require.NoError(t, err)

	assert.Equal(t, []transcript.Message{
		user("ping"), assistant("r1:ping"),
		user("pong"), assistant("r2:pong"),
	}, f.c.Messages())
	assert.Equal(t, "pong", res.SessionID)
	require.Len(t, f.store.saves, 1)
	assert.Equal(t, "pong", f.store.saves[0].id)
}

func TestSubmit_DotInputsStillPersist(t *testing.T) {
	store, err := transcript.NewJSONFileStore(t.TempDir())
	require.NoError(t, err)
	c, err := NewController(store, retriever.Static{}, &echoGenerator{}, connectivity.Always(true))
	require.NoError(t, err)
	ctx := context.Background()

	res, err := c.Submit(ctx, ".")
	require.NoError(t, err)
	assert.Equal(t, "_", res.SessionID)

	_, err = c.Submit(ctx, "real question")
	require.NoError(t, err)

	loaded, err := store.Load(ctx, "_")
	require.NoError(t, err)
	assert.Len(t, loaded, 4)
}

func TestSubmit_DotPrefixedSessionIsListed(t *testing.T) {
	store, err := transcript.NewJSONFileStore(t.TempDir())
	require.NoError(t, err)
	c, err := NewController(store, retriever.Static{}, &echoGenerator{}, connectivity.Always(true))
	require.NoError(t, err)
	ctx := context.Background()

	_, err = c.Submit(ctx, ".NET question")
	require.NoError(t, err)

	ids, err := c.Sessions(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{".NET_question"}, ids)
}

func TestSubmit_StatesAndReplayedEvents(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	f.prober.online = false
	_, err := f.c.Submit(ctx, "a")
	require.NoError(t, err)
	f.prober.online = true
	_, err = f.c.Submit(ctx, "b")
	require.NoError(t, err)

	var states []string
	for _, e := range f.sink.OfType(events.EventTypeState) {
		states = append(states, e.State)
	}
	assert.Equal(t, []string{
		"CheckingConnectivity", "Idle",
		"CheckingConnectivity", "Draining", "ProcessingNew", "Persisted", "Idle",
	}, states)

	msgs := f.sink.OfType(events.EventTypeMessage)
	require.Len(t, msgs, 4)
	assert.True(t, msgs[0].Replayed)
	assert.True(t, msgs[1].Replayed)
	assert.False(t, msgs[2].Replayed)
	assert.False(t, msgs[3].Replayed)

	assert.Len(t, f.sink.OfType(events.EventTypePersisted), 1)
}

func TestSubmit_SessionNamedOnce(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.c.Submit(ctx, "first question")
	require.NoError(t, err)
	res, err := f.c.Submit(ctx, "second question")
	require.NoError(t, err)

	assert.Equal(t, "first_question", res.SessionID)
	require.Len(t, f.store.saves, 2)
	assert.Equal(t, "first_question", f.store.saves[1].id)
	assert.Len(t, f.store.saves[1].msgs, 4)
}

func TestSubmit_EmptyInput(t *testing.T) {
	f := newFixture(t)
	_, err := f.c.Submit(context.Background(), "  \n\t")
	assert.ErrorIs(t, err, ErrEmptyInput)
	assert.Zero(t, f.prober.calls)
}

func TestSubmit_MidDrainFailureKeepsProgressAndRequeues(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	f.prober.online = false
	for _, in := range []string{"m1", "m2", "m3"} {
		_, err := f.c.Submit(ctx, in)
		require.NoError(t, err)
	}

	f.prober.online = true
	f.gen.failOn = "m2"
	res, err := f.c.Submit(ctx, "m4")
	require.Error(t, err)
	assert.ErrorIs(t, err, generator.ErrGeneration)

	assert.Equal(t, []transcript.Message{user("m1"), assistant("r1:m1")}, f.c.Messages())
	assert.Equal(t, []string{"m2", "m3", "m4"}, f.c.Pending())
	assert.Equal(t, 1, res.Drained)
	assert.Equal(t, 3, res.QueueLength)
	require.Len(t, f.store.saves, 1)
	assert.Equal(t, "m4", f.store.saves[0].id)
	assert.Len(t, f.store.saves[0].msgs, 2)
	assert.Equal(t, StateIdle, f.c.State())
	assert.Len(t, f.sink.OfType(events.EventTypeError), 1)

	f.gen.failOn = ""
	_, err = f.c.Submit(ctx, "m5")
	require.NoError(t, err)
	var users []string
	for _, m := range f.c.Messages() {
		if m.Role == transcript.RoleUser {
			users = append(users, m.Content)
		}
	}
	assert.Equal(t, []string{"m1", "m2", "m3", "m4", "m5"}, users)
	assert.Empty(t, f.c.Pending())
}

func TestSubmit_FirstItemFailureLeavesSessionUnnamed(t *testing.T) {
	f := newFixture(t)
	f.gen.failOn = "hello"

	res, err := f.c.Submit(context.Background(), "hello")
	require.Error(t, err)
	assert.Empty(t, res.SessionID)
	assert.Empty(t, f.c.SessionID())
	assert.Empty(t, f.c.Messages())
	assert.Equal(t, []string{"hello"}, f.c.Pending())
	assert.Empty(t, f.store.saves)
}

func TestSubmit_RetrievalFailure(t *testing.T) {
	store := newFakeStore()
	failing := retrieverFunc(func(ctx context.Context, q string, k int) ([]string, error) {
		return nil, errors.New("connection refused")
	})
	c, err := NewController(store, failing, &echoGenerator{}, connectivity.Always(true))
	require.NoError(t, err)

	_, err = c.Submit(context.Background(), "q")
	assert.ErrorIs(t, err, retriever.ErrRetrieval)
	assert.Equal(t, []string{"q"}, c.Pending())
}

func TestSubmit_CancelledContextKeepsCause(t *testing.T) {
	store := newFakeStore()
	r := retrieverFunc(func(ctx context.Context, q string, k int) ([]string, error) {
		return nil, ctx.Err()
	})
	c, err := NewController(store, r, &echoGenerator{}, connectivity.Always(true))
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = c.Submit(ctx, "q")
	assert.ErrorIs(t, err, retriever.ErrRetrieval)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, []string{"q"}, c.Pending())
}

func TestSubmit_PersistenceFailureKeepsCause(t *testing.T) {
	f := newFixture(t)
	f.store.failSave = errors.Wrap(transcript.ErrInvalidID, `"."`)

	_, err := f.c.Submit(context.Background(), "hi")
	assert.ErrorIs(t, err, transcript.ErrPersistence)
	assert.ErrorIs(t, err, transcript.ErrInvalidID)
}

func TestSubmit_PersistenceFailure(t *testing.T) {
	f := newFixture(t)
	f.store.failSave = errors.New("disk full")

	_, err := f.c.Submit(context.Background(), "hi")
	assert.ErrorIs(t, err, transcript.ErrPersistence)
	assert.Len(t, f.c.Messages(), 2, "answered messages stay in memory for the next save")

	f.store.failSave = nil
	_, err = f.c.Submit(context.Background(), "again")
	require.NoError(t, err)
	require.Len(t, f.store.saves, 1)
	assert.Len(t, f.store.saves[0].msgs, 4)
}

func TestSubmit_UsesK(t *testing.T) {
	var gotK int
	r := retrieverFunc(func(ctx context.Context, q string, k int) ([]string, error) {
		gotK = k
		return nil, nil
	})
	c, err := NewController(newFakeStore(), r, &echoGenerator{}, connectivity.Always(true),
		WithK(5), WithSystemPrompt("be brief"))
	require.NoError(t, err)
	_, err = c.Submit(context.Background(), "q")
	require.NoError(t, err)
	assert.Equal(t, 5, gotK)
}

func TestAttach(t *testing.T) {
	ms, err := media.NewStore(t.TempDir())
	require.NoError(t, err)
	f := newFixture(t, WithMediaStore(ms))
	ctx := context.Background()

	att, err := f.c.Attach(ctx, "photo.png", strings.NewReader("png"))
	require.NoError(t, err)
	assert.Equal(t, transcript.MessageTypeImage, att.Type)
	assert.Empty(t, f.store.saves, "unnamed session waits for the next turn")

	_, err = f.c.Submit(ctx, "what is in the picture")
	require.NoError(t, err)
	require.Len(t, f.store.saves, 1)
	assert.Equal(t, "what_is_in_the_picture", f.store.saves[0].id)
	assert.Equal(t, transcript.NewMediaMessage(transcript.MessageTypeImage, att.Path), f.store.saves[0].msgs[0])

	_, err = f.c.Attach(ctx, "notes.pdf", strings.NewReader("%PDF"))
	require.NoError(t, err)
	require.Len(t, f.store.saves, 2)
	last := f.store.saves[1].msgs
	assert.Equal(t, transcript.MessageTypeFile, last[len(last)-1].Type)

	_, err = f.c.Attach(ctx, "script.exe", strings.NewReader("MZ"))
	assert.ErrorIs(t, err, media.ErrUnsupportedType)
}

func TestAttach_NoMediaStore(t *testing.T) {
	f := newFixture(t)
	_, err := f.c.Attach(context.Background(), "a.png", strings.NewReader(""))
	assert.ErrorIs(t, err, ErrNoMediaStore)
}

func TestNewAndLoadConversation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.c.Submit(ctx, "first")
	require.NoError(t, err)
	f.prober.online = false
	_, err = f.c.Submit(ctx, "later")
	require.NoError(t, err)

	f.c.NewConversation()
	assert.Empty(t, f.c.SessionID())
	assert.Empty(t, f.c.Messages())
	assert.Equal(t, []string{"later"}, f.c.Pending(), "queue survives a new conversation")
	assert.Len(t, f.store.sessions, 1, "persisted history is untouched")

	msgs, err := f.c.LoadConversation(ctx, "first")
	require.NoError(t, err)
	assert.Len(t, msgs, 2)
	assert.Equal(t, "first", f.c.SessionID())

	_, err = f.c.LoadConversation(ctx, "missing")
	assert.ErrorIs(t, err, transcript.ErrNotFound)
	assert.Equal(t, "first", f.c.SessionID())

	ids, err := f.c.Sessions(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"first"}, ids)
}

func TestWithSession(t *testing.T) {
	f := newFixture(t, WithSession(Session{
		ID:       "restored",
		Messages: []transcript.Message{user("old"), assistant("answer")},
	}))

	_, err := f.c.Submit(context.Background(), "new")
	require.NoError(t, err)
	require.Len(t, f.store.saves, 1)
	assert.Equal(t, "restored", f.store.saves[0].id)
	assert.Len(t, f.store.saves[0].msgs, 4)

	snap := f.c.Snapshot()
	snap.Messages[0].Content = "mutated"
	assert.Equal(t, "old", f.c.Messages()[0].Content)
}

func TestNewControllerRequiresCollaborators(t *testing.T) {
	_, err := NewController(nil, retriever.Static{}, &echoGenerator{}, connectivity.Always(true))
	assert.Error(t, err)
}

type retrieverFunc func(ctx context.Context, q string, k int) ([]string, error)

func (f retrieverFunc) Search(ctx context.Context, q string, k int) ([]string, error) {
	return f(ctx, q, k)
}
