package remote

import (
	"context"
	"encoding/json"
	"log/slog"
	"strings"
	"time"

	"github.com/gorilla/websocket"
)

// PushEvent is one inbound event from the backend push feed.
type PushEvent struct {
	Type         string          `json:"type"`
	Notification *Notification   `json:"notification,omitempty"`
	Message      *Message        `json:"message,omitempty"`
	Vehicle      *Vehicle        `json:"vehicle,omitempty"`
	Raw          json.RawMessage `json:"-"`
}

const (
	pushReconnectMin = time.Second
	pushReconnectMax = time.Minute
)

// PushFeed maintains a websocket to the backend and hands inbound
// events to a callback. An empty URL disables the feed entirely; the
// runtime then relies on the periodic refresh alone.
type PushFeed struct {
	url     string
	token   string
	handler func(PushEvent)
	logger  *slog.Logger
}

func NewPushFeed(url, token string, handler func(PushEvent), logger *slog.Logger) *PushFeed {
	return &PushFeed{
		url:     strings.TrimSpace(url),
		token:   strings.TrimSpace(token),
		handler: handler,
		logger:  logger.With("component", "push-feed"),
	}
}

func (f *PushFeed) Enabled() bool {
	return f.url != ""
}

// Start connects and reads until ctx is done, reconnecting with
// exponential backoff after any failure.
func (f *PushFeed) Start(ctx context.Context) error {
	if !f.Enabled() {
		f.logger.Info("push feed disabled, no url configured")
		<-ctx.Done()
		return ctx.Err()
	}

	backoff := pushReconnectMin
	for {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if err := f.readLoop(ctx); err != nil && ctx.Err() == nil {
			f.logger.Warn("push feed disconnected", "error", err, "retry_in", backoff)
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(backoff):
		}
		backoff *= 2
		if backoff > pushReconnectMax {
			backoff = pushReconnectMax
		}
	}
}

func (f *PushFeed) readLoop(ctx context.Context) error {
	dialer := websocket.Dialer{HandshakeTimeout: 10 * time.Second}
	header := map[string][]string{}
	if f.token != "" {
		header["Authorization"] = []string{"Bearer " + f.token}
	}
	conn, _, err := dialer.DialContext(ctx, f.url, header)
	if err != nil {
		return err
	}
	defer conn.Close()
	f.logger.Info("push feed connected")

	// Close the socket when ctx ends so ReadMessage unblocks.
	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-ctx.Done():
			conn.Close()
		case <-done:
		}
	}()

	for {
		_, payload, err := conn.ReadMessage()
		if err != nil {
			return err
		}
		var event PushEvent
		if err := json.Unmarshal(payload, &event); err != nil {
			f.logger.Warn("unparseable push event", "error", err)
			continue
		}
		event.Raw = payload
		if f.handler != nil {
			f.handler(event)
		}
	}
}
