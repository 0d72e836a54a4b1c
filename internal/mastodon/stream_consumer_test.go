package mastodon

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"Tootline/internal/core/feed"
)

// fakeSink records everything forwarded to it
type fakeSink[E feed.Keyed] struct {
	err          error
	events       []feed.StreamEvent[E]
	connected    int
	disconnected int
	mu           sync.Mutex
}

func (s *fakeSink[E]) HandleStreamEvent(ev feed.StreamEvent[E]) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return s.err
	}
	s.events = append(s.events, ev)
	return nil
}

func (s *fakeSink[E]) StreamConnected() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.connected++
	return nil
}

func (s *fakeSink[E]) StreamDisconnected() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.disconnected++
	return nil
}

func (s *fakeSink[E]) snapshot() ([]feed.StreamEvent[E], int, int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]feed.StreamEvent[E](nil), s.events...), s.connected, s.disconnected
}

func TestStatusConsumer_HandleEvent(t *testing.T) {
	sink := &fakeSink[*Status]{}
	c := NewStatusConsumer(sink)
	ctx := context.Background()

	require.NoError(t, c.HandleEvent(ctx, &StreamingEvent{Event: "update", Payload: `{"id":"1","content":"<p>new</p>"}`}))
	require.NoError(t, c.HandleEvent(ctx, &StreamingEvent{Event: "status.update", Payload: `{"id":"1","content":"<p>edited</p>"}`}))
	require.NoError(t, c.HandleEvent(ctx, &StreamingEvent{Event: "delete", Payload: "1"}))
	require.NoError(t, c.HandleEvent(ctx, &StreamingEvent{Event: "filters_changed"}))
	// Not relevant to a status feed
	require.NoError(t, c.HandleEvent(ctx, &StreamingEvent{Event: "notification", Payload: `{"id":"n1"}`}))
	require.NoError(t, c.HandleEvent(ctx, &StreamingEvent{Event: "announcement", Payload: `{}`}))

	events, _, _ := sink.snapshot()
	require.Len(t, events, 4)

	assert.Equal(t, feed.EventCreated, events[0].Kind)
	assert.Equal(t, "1", events[0].Entry.Key())
	assert.Equal(t, feed.EventUpdated, events[1].Kind)
	assert.Equal(t, "<p>edited</p>", events[1].Entry.Content)
	assert.Equal(t, feed.EventDeleted, events[2].Kind)
	assert.Equal(t, "1", events[2].Key)
	assert.Equal(t, feed.EventFiltersChanged, events[3].Kind)
}

func TestStatusConsumer_BadPayloads(t *testing.T) {
	sink := &fakeSink[*Status]{}
	c := NewStatusConsumer(sink)
	ctx := context.Background()

	assert.Error(t, c.HandleEvent(ctx, &StreamingEvent{Event: "update", Payload: `not json`}))
	assert.Error(t, c.HandleEvent(ctx, &StreamingEvent{Event: "update", Payload: `{"content":"no id"}`}))
	assert.Error(t, c.HandleEvent(ctx, &StreamingEvent{Event: "delete", Payload: ""}))

	events, _, _ := sink.snapshot()
	assert.Empty(t, events)
}

func TestStatusConsumer_SinkError(t *testing.T) {
	sinkErr := errors.New("loop stopped")
	c := NewStatusConsumer(&fakeSink[*Status]{err: sinkErr})

	err := c.HandleEvent(context.Background(), &StreamingEvent{Event: "delete", Payload: "7"})
	assert.ErrorIs(t, err, sinkErr)
}

func TestNotificationConsumer(t *testing.T) {
	sink := &fakeSink[*Notification]{}
	c := NewNotificationConsumer(sink)
	ctx := context.Background()

	require.NoError(t, c.HandleEvent(ctx, &StreamingEvent{Event: "notification", Payload: `{"id":"n1","type":"favourite","account":{"id":"a"}}`}))
	require.NoError(t, c.HandleEvent(ctx, &StreamingEvent{Event: "update", Payload: `{"id":"s1"}`}))

	c.Connected()
	c.Disconnected()

	events, connected, disconnected := sink.snapshot()
	require.Len(t, events, 1)
	assert.Equal(t, "n1", events[0].Entry.Key())
	assert.Equal(t, NotificationFavourite, events[0].Entry.Type)
	assert.Equal(t, 1, connected)
	assert.Equal(t, 1, disconnected)
}
