package mastodon

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"Tootline/internal/core/feed"
)

// StreamingConnector keeps a WebSocket open to the streaming API and feeds
// its events to a consumer
type StreamingConnector[E feed.Keyed] struct {
	consumer    *EventConsumer[E]
	moderator   *feed.ReconnectModerator
	wsURL       string
	token       string
	readTimeout time.Duration
}

// NewStreamingConnector creates a connector for the stream backing timeline.
// streamingBase is the instance's streaming endpoint, usually from
// Client.StreamingBaseURL.
func NewStreamingConnector[E feed.Keyed](consumer *EventConsumer[E], streamingBase, token string, timeline Timeline) (*StreamingConnector[E], error) {
	wsURL, err := streamingURL(streamingBase, timeline)
	if err != nil {
		return nil, err
	}
	return &StreamingConnector[E]{
		consumer:    consumer,
		moderator:   feed.NewReconnectModerator(time.Second, 30*time.Second),
		wsURL:       wsURL,
		token:       token,
		readTimeout: 60 * time.Second,
	}, nil
}

// Start begins consuming events from the streaming API
// Runs until ctx is canceled, reconnecting on errors
func (c *StreamingConnector[E]) Start(ctx context.Context) error {
	log.Printf("Starting Mastodon streaming consumer: %s", c.wsURL)

	for {
		select {
		case <-ctx.Done():
			log.Println("Mastodon streaming consumer shutting down")
			return ctx.Err()
		default:
		}

		connected, err := c.connect(ctx)
		if connected {
			c.moderator.OnConnected()
		}
		if err == nil || ctx.Err() != nil {
			continue
		}

		delay := c.moderator.OnDisconnected()
		log.Printf("Mastodon streaming connection error: %v. Retrying in %s...", err, delay)
		select {
		case <-ctx.Done():
		case <-time.After(delay):
		}
	}
}

// connect establishes the WebSocket connection and processes events.
// It reports whether the connection was established.
func (c *StreamingConnector[E]) connect(ctx context.Context) (bool, error) {
	header := http.Header{}
	if c.token != "" {
		header.Set("Authorization", "Bearer "+c.token)
	}

	conn, _, err := websocket.DefaultDialer.DialContext(ctx, c.wsURL, header)
	if err != nil {
		return false, fmt.Errorf("failed to connect to streaming API: %w", err)
	}
	defer func() {
		if closeErr := conn.Close(); closeErr != nil && ctx.Err() == nil {
			log.Printf("Failed to close WebSocket connection: %v", closeErr)
		}
	}()

	log.Println("Connected to Mastodon streaming API")
	c.consumer.Connected()
	defer c.consumer.Disconnected()

	// Set read deadline to detect connection issues
	if err := conn.SetReadDeadline(time.Now().Add(c.readTimeout)); err != nil {
		log.Printf("Failed to set read deadline: %v", err)
	}

	// Set pong handler to keep connection alive
	conn.SetPongHandler(func(string) error {
		if err := conn.SetReadDeadline(time.Now().Add(c.readTimeout)); err != nil {
			log.Printf("Failed to set read deadline in pong handler: %v", err)
		}
		return nil
	})

	ticker := time.NewTicker(30 * time.Second)
	defer ticker.Stop()

	done := make(chan struct{})
	var closeOnce sync.Once
	defer closeOnce.Do(func() { close(done) })

	// Ping goroutine, also unblocks the reader on shutdown
	go func() {
		for {
			select {
			case <-ticker.C:
				if err := conn.WriteControl(websocket.PingMessage, []byte{}, time.Now().Add(10*time.Second)); err != nil {
					log.Printf("Failed to send ping: %v", err)
					closeOnce.Do(func() { close(done) })
					return
				}
			case <-ctx.Done():
				_ = conn.WriteControl(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), time.Now().Add(time.Second))
				_ = conn.Close()
				return
			case <-done:
				return
			}
		}
	}()

	for {
		select {
		case <-done:
			return true, fmt.Errorf("connection closed by ping failure")
		default:
		}

		_, message, err := conn.ReadMessage()
		if err != nil {
			if ctx.Err() != nil {
				return true, nil
			}
			return true, fmt.Errorf("read error: %w", err)
		}

		// Reset read deadline on successful read
		if err := conn.SetReadDeadline(time.Now().Add(c.readTimeout)); err != nil {
			log.Printf("Failed to reset read deadline: %v", err)
		}

		var event StreamingEvent
		if err := json.Unmarshal(message, &event); err != nil {
			log.Printf("Failed to parse streaming event: %v", err)
			continue
		}

		// Continue processing other events even if one fails
		if err := c.consumer.HandleEvent(ctx, &event); err != nil {
			log.Printf("Failed to handle streaming event: %v", err)
		}
	}
}

// streamingURL builds the WebSocket URL for timeline from an http(s) or
// ws(s) base URL. The access token travels in the Authorization header.
func streamingURL(base string, timeline Timeline) (string, error) {
	u, err := url.Parse(strings.TrimRight(base, "/"))
	if err != nil {
		return "", fmt.Errorf("invalid streaming URL %q: %w", base, err)
	}
	switch u.Scheme {
	case "https", "wss":
		u.Scheme = "wss"
	case "http", "ws":
		u.Scheme = "ws"
	default:
		return "", fmt.Errorf("invalid streaming URL %q: unsupported scheme", base)
	}

	stream, query := timeline.stream()
	query.Set("stream", stream)
	u.Path = strings.TrimSuffix(u.Path, "/api/v1/streaming") + "/api/v1/streaming"
	u.RawQuery = query.Encode()
	return u.String(), nil
}
