package events

import (
	"encoding/json"
	"sync"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/rs/zerolog/log"
)

type Sink interface {
	PublishEvent(e Event) error
}

type NullSink struct{}

func (NullSink) PublishEvent(Event) error {
	return nil
}

var _ Sink = NullSink{}

// WatermillSink publishes events as JSON messages on a topic.
type WatermillSink struct {
	publisher message.Publisher
	topic     string
}

var _ Sink = (*WatermillSink)(nil)

func NewWatermillSink(publisher message.Publisher, topic string) *WatermillSink {
	if topic == "" {
		topic = DefaultTopic
	}
	return &WatermillSink{
		publisher: publisher,
		topic:     topic,
	}
}

func (w *WatermillSink) PublishEvent(e Event) error {
	payload, err := json.Marshal(e)
	if err != nil {
		log.Error().Err(err).Msg("Failed to marshal event to JSON")
		return err
	}

	msg := message.NewMessage(watermill.NewUUID(), payload)
	if err := w.publisher.Publish(w.topic, msg); err != nil {
		log.Error().Err(err).Str("topic", w.topic).Msg("Failed to publish event to watermill")
		return err
	}

	log.Trace().Str("topic", w.topic).Str("event_type", string(e.Type)).Msg("Published event to watermill")
	return nil
}

// RecordingSink keeps every event in memory.
type RecordingSink struct {
	mu     sync.Mutex
	events []Event
}

var _ Sink = (*RecordingSink)(nil)

func (r *RecordingSink) PublishEvent(e Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, e)
	return nil
}

func (r *RecordingSink) Events() []Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	ret := make([]Event, len(r.events))
	copy(ret, r.events)
	return ret
}

// OfType filters the recorded events.
func (r *RecordingSink) OfType(t EventType) []Event {
	ret := []Event{}
	for _, e := range r.Events() {
		if e.Type == t {
			ret = append(ret, e)
		}
	}
	return ret
}
