package mastodon

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"strings"

	"Tootline/internal/core/feed"
)

// StreamingEvent is one message of the streaming API. Payload is itself a
// JSON document for entry events and a bare ID for delete events.
type StreamingEvent struct {
	Event   string   `json:"event"`
	Payload string   `json:"payload"`
	Stream  []string `json:"stream,omitempty"`
}

// Sink receives decoded live events. *feed.Timeline implements it.
type Sink[E feed.Keyed] interface {
	HandleStreamEvent(ev feed.StreamEvent[E]) error
	StreamConnected() error
	StreamDisconnected() error
}

type decoder[E feed.Keyed] func(payload string) (feed.StreamEvent[E], error)

// EventConsumer decodes streaming events for one feed and forwards them
type EventConsumer[E feed.Keyed] struct {
	sink     Sink[E]
	decoders map[string]decoder[E]
}

// NewStatusConsumer consumes status timelines: home, public, hashtag and list streams
func NewStatusConsumer(sink Sink[*Status]) *EventConsumer[*Status] {
	return &EventConsumer[*Status]{
		sink: sink,
		decoders: map[string]decoder[*Status]{
			"update":          decodeStatus(feed.EventCreated),
			"status.update":   decodeStatus(feed.EventUpdated),
			"delete":          decodeDelete[*Status],
			"filters_changed": decodeFiltersChanged[*Status],
		},
	}
}

// NewNotificationConsumer consumes the notification stream
func NewNotificationConsumer(sink Sink[*Notification]) *EventConsumer[*Notification] {
	return &EventConsumer[*Notification]{
		sink: sink,
		decoders: map[string]decoder[*Notification]{
			"notification":    decodeNotification,
			"filters_changed": decodeFiltersChanged[*Notification],
		},
	}
}

// HandleEvent decodes one streaming message and forwards it.
// Events this feed does not care about are ignored.
func (c *EventConsumer[E]) HandleEvent(ctx context.Context, event *StreamingEvent) error {
	decode, ok := c.decoders[event.Event]
	if !ok {
		return nil
	}

	ev, err := decode(event.Payload)
	if err != nil {
		return fmt.Errorf("failed to decode %s event: %w", event.Event, err)
	}
	if err := c.sink.HandleStreamEvent(ev); err != nil {
		return fmt.Errorf("failed to forward %s event: %w", event.Event, err)
	}
	return nil
}

// Connected reports a live connection
func (c *EventConsumer[E]) Connected() {
	if err := c.sink.StreamConnected(); err != nil {
		log.Printf("Failed to report stream connection: %v", err)
	}
}

// Disconnected reports a lost connection
func (c *EventConsumer[E]) Disconnected() {
	if err := c.sink.StreamDisconnected(); err != nil {
		log.Printf("Failed to report stream disconnection: %v", err)
	}
}

func decodeStatus(kind feed.StreamEventKind) decoder[*Status] {
	return func(payload string) (feed.StreamEvent[*Status], error) {
		var status Status
		if err := json.Unmarshal([]byte(payload), &status); err != nil {
			return feed.StreamEvent[*Status]{}, err
		}
		if status.ID == "" {
			return feed.StreamEvent[*Status]{}, fmt.Errorf("status without id")
		}
		return feed.StreamEvent[*Status]{Kind: kind, Entry: &status}, nil
	}
}

func decodeNotification(payload string) (feed.StreamEvent[*Notification], error) {
	var n Notification
	if err := json.Unmarshal([]byte(payload), &n); err != nil {
		return feed.StreamEvent[*Notification]{}, err
	}
	if n.ID == "" {
		return feed.StreamEvent[*Notification]{}, fmt.Errorf("notification without id")
	}
	return feed.Created(&n), nil
}

func decodeDelete[E feed.Keyed](payload string) (feed.StreamEvent[E], error) {
	id := strings.Trim(strings.TrimSpace(payload), `"`)
	if id == "" {
		return feed.StreamEvent[E]{}, fmt.Errorf("delete without id")
	}
	return feed.Deleted[E](id), nil
}

func decodeFiltersChanged[E feed.Keyed](string) (feed.StreamEvent[E], error) {
	return feed.StreamEvent[E]{Kind: feed.EventFiltersChanged}, nil
}
