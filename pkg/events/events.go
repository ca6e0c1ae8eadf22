// Package events carries conversation controller notifications to whoever
// renders them. Events are JSON encoded so they can travel over a watermill
// topic unchanged.
package events

import (
	"encoding/json"
	"time"

	"github.com/go-go-golems/mnemo/pkg/transcript"
	"github.com/google/uuid"
	"github.com/pkg/errors"
)

type EventType string

const (
	// EventTypeState reports a controller state transition.
	EventTypeState EventType = "state"
	// EventTypeQueued is the offline warning: the input was kept for later.
	EventTypeQueued EventType = "queued"
	// EventTypeMessage reports a message appended to the session log.
	EventTypeMessage   EventType = "message"
	EventTypePersisted EventType = "persisted"
	EventTypeError     EventType = "error"
)

const DefaultTopic = "conversation"

type Event struct {
	ID      string              `json:"id"`
	Type    EventType           `json:"type"`
	Time    time.Time           `json:"time"`
	Session string              `json:"session,omitempty"`
	State   string              `json:"state,omitempty"`
	Input   string              `json:"input,omitempty"`
	Message *transcript.Message `json:"message,omitempty"`
	// Replayed marks messages produced while draining the pending queue.
	Replayed    bool   `json:"replayed,omitempty"`
	QueueLength int    `json:"queue_length,omitempty"`
	Count       int    `json:"count,omitempty"`
	Error       string `json:"error,omitempty"`
}

func newEvent(t EventType, session string) Event {
	return Event{
		ID:      uuid.New().String(),
		Type:    t,
		Time:    time.Now(),
		Session: session,
	}
}

func NewStateEvent(session string, state string) Event {
	e := newEvent(EventTypeState, session)
	e.State = state
	return e
}

func NewQueuedEvent(session string, input string, queueLength int) Event {
	e := newEvent(EventTypeQueued, session)
	e.Input = input
	e.QueueLength = queueLength
	return e
}

func NewMessageEvent(session string, msg transcript.Message, replayed bool) Event {
	e := newEvent(EventTypeMessage, session)
	e.Message = &msg
	e.Replayed = replayed
	return e
}

func NewPersistedEvent(session string, count int) Event {
	e := newEvent(EventTypePersisted, session)
	e.Count = count
	return e
}

func NewErrorEvent(session string, err error) Event {
	e := newEvent(EventTypeError, session)
	if err != nil {
		e.Error = err.Error()
	}
	return e
}

func NewEventFromJSON(b []byte) (Event, error) {
	var e Event
	if err := json.Unmarshal(b, &e); err != nil {
		return Event{}, errors.Wrap(err, "decode event")
	}
	switch e.Type {
	case EventTypeState, EventTypeQueued, EventTypeMessage, EventTypePersisted, EventTypeError:
	default:
		return Event{}, errors.Errorf("unknown event type %q", e.Type)
	}
	return e, nil
}
