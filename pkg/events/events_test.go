package events

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
	"github.com/go-go-golems/mnemo/pkg/transcript"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEventJSONRoundTrip(t *testing.T) {
	e := NewMessageEvent("s1", transcript.NewTextMessage(transcript.RoleUser, "hi"), true)
	b, err := json.Marshal(e)
	require.NoError(t, err)

	got, err := NewEventFromJSON(b)
	require.NoError(t, err)
	assert.Equal(t, EventTypeMessage, got.Type)
	assert.Equal(t, "s1", got.Session)
	assert.True(t, got.Replayed)
	require.NotNil(t, got.Message)
	assert.Equal(t, "hi", got.Message.Content)
	assert.NotEmpty(t, got.ID)
}

func TestNewEventFromJSONRejectsUnknownType(t *testing.T) {
	_, err := NewEventFromJSON([]byte(`{"type":"bogus"}`))
	assert.Error(t, err)

	_, err = NewEventFromJSON([]byte(`not json`))
	assert.Error(t, err)
}

func TestErrorEvent(t *testing.T) {
	e := NewErrorEvent("", errors.New("boom"))
	assert.Equal(t, "boom", e.Error)
	assert.Empty(t, NewErrorEvent("", nil).Error)
}

func TestRecordingSink(t *testing.T) {
	s := &RecordingSink{}
	require.NoError(t, s.PublishEvent(NewQueuedEvent("", "ping", 1)))
	require.NoError(t, s.PublishEvent(NewStateEvent("", "Idle")))
	require.NoError(t, s.PublishEvent(NewQueuedEvent("", "pong", 2)))

	assert.Len(t, s.Events(), 3)
	queued := s.OfType(EventTypeQueued)
	require.Len(t, queued, 2)
	assert.Equal(t, "pong", queued[1].Input)
	assert.Equal(t, 2, queued[1].QueueLength)
}

func TestWatermillSinkPublishes(t *testing.T) {
	pubsub := gochannel.NewGoChannel(gochannel.Config{}, NewWatermillLogger(zerolog.Nop()))
	defer func() { _ = pubsub.Close() }()

	msgs, err := pubsub.Subscribe(context.Background(), "topic")
	require.NoError(t, err)

	sink := NewWatermillSink(pubsub, "topic")
	require.NoError(t, sink.PublishEvent(NewPersistedEvent("s1", 4)))

	select {
	case msg := <-msgs:
		msg.Ack()
		e, err := NewEventFromJSON(msg.Payload)
		require.NoError(t, err)
		assert.Equal(t, EventTypePersisted, e.Type)
		assert.Equal(t, 4, e.Count)
	case <-time.After(2 * time.Second):
		t.Fatal("no message received")
	}
}

func TestEventRouterDeliversInOrder(t *testing.T) {
	router, err := NewEventRouter()
	require.NoError(t, err)

	received := make(chan Event, 8)
	router.AddEventHandler("test", DefaultTopic, func(ctx context.Context, e Event) error {
		received <- e
		return nil
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	done := make(chan error, 1)
	go func() { done <- router.Run(ctx) }()
	<-router.Running()

	sink := router.Sink("")
	require.NoError(t, sink.PublishEvent(NewStateEvent("", "CheckingConnectivity")))
	require.NoError(t, sink.PublishEvent(NewStateEvent("", "ProcessingNew")))
	require.NoError(t, sink.PublishEvent(NewStateEvent("", "Persisted")))

	var states []string
	for i := 0; i < 3; i++ {
		select {
		case e := <-received:
			states = append(states, e.State)
		case <-time.After(2 * time.Second):
			t.Fatal("timed out waiting for events")
		}
	}
	assert.Equal(t, []string{"CheckingConnectivity", "ProcessingNew", "Persisted"}, states)

	require.NoError(t, router.Close())
	cancel()
	<-done
}
