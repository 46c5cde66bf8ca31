// Package signals carries in-process change events between the
// runtime services and the terminal client.
package signals

import (
	"log/slog"
	"sync"
)

type Kind string

const (
	KindNavigateRequested   Kind = "navigate-requested"
	KindVehiclesUpdated     Kind = "vehicles-updated"
	KindConversationUpdated Kind = "conversation-updated"
	KindNotificationArrived Kind = "notification-arrived"
	KindSyncReport          Kind = "sync-report"
	KindToastRaised         Kind = "toast-raised"
)

// Event is a kind plus an optional payload. Payload types are owned
// by the publisher; subscribers type-assert what they expect.
type Event struct {
	Kind    Kind
	Payload any
}

type subscriber struct {
	id      int64
	kind    Kind
	handler func(Event)
}

// Bus fans events out to subscribers. Publish never blocks on a
// subscriber; handlers run synchronously on the publisher's
// goroutine and must be quick.
type Bus struct {
	logger *slog.Logger

	mu          sync.RWMutex
	nextID      int64
	subscribers []subscriber
}

func NewBus(logger *slog.Logger) *Bus {
	return &Bus{logger: logger.With("component", "signals")}
}

// Subscribe registers a handler for one kind and returns an
// unsubscribe func.
func (b *Bus) Subscribe(kind Kind, handler func(Event)) func() {
	b.mu.Lock()
	b.nextID++
	id := b.nextID
	b.subscribers = append(b.subscribers, subscriber{id: id, kind: kind, handler: handler})
	b.mu.Unlock()

	return func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		for index, sub := range b.subscribers {
			if sub.id == id {
				b.subscribers = append(b.subscribers[:index], b.subscribers[index+1:]...)
				return
			}
		}
	}
}

// Publish delivers the event to every subscriber of its kind.
func (b *Bus) Publish(event Event) {
	b.mu.RLock()
	matched := make([]func(Event), 0, len(b.subscribers))
	for _, sub := range b.subscribers {
		if sub.kind == event.Kind {
			matched = append(matched, sub.handler)
		}
	}
	b.mu.RUnlock()

	for _, handler := range matched {
		handler(event)
	}
}
