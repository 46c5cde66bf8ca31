// Package dedup keeps repeated user-facing signals from stacking up.
// It covers transient toasts and the shown-notification ledger.
package dedup

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"
)

type ToastKind string

const (
	ToastSuccess ToastKind = "success"
	ToastError   ToastKind = "error"
	ToastInfo    ToastKind = "info"
	ToastWarning ToastKind = "warning"
)

// Identical toasts raised inside this window collapse into one.
const toastDedupeWindow = 3 * time.Second

var (
	ErrEmptyMessage = errors.New("empty toast message")
	ErrUnknownKind  = errors.New("unknown toast kind")
)

type Toast struct {
	ID      int64
	Kind    ToastKind
	Message string
	Raised  time.Time
}

type toastKey struct {
	kind    ToastKind
	message string
}

// ToastCenter assigns ids and suppresses duplicates. IDs come from a
// process-local counter, so they are unique for the life of the
// process and never collide across rapid successive raises.
type ToastCenter struct {
	logger *slog.Logger

	mu       sync.Mutex
	nextID   int64
	active   []Toast
	lastSeen map[toastKey]time.Time

	now func() time.Time
}

func NewToastCenter(logger *slog.Logger) *ToastCenter {
	return &ToastCenter{
		logger:   logger.With("component", "toasts"),
		lastSeen: make(map[toastKey]time.Time),
		now:      time.Now,
	}
}

// Raise validates and registers a toast. A duplicate inside the dedupe
// window returns (0, nil) without registering anything.
func (c *ToastCenter) Raise(kind ToastKind, message string) (int64, error) {
	message = strings.TrimSpace(message)
	if message == "" {
		return 0, ErrEmptyMessage
	}
	switch kind {
	case ToastSuccess, ToastError, ToastInfo, ToastWarning:
	default:
		return 0, fmt.Errorf("%w: %q", ErrUnknownKind, kind)
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	key := toastKey{kind: kind, message: message}
	raised := c.now()
	if seen, ok := c.lastSeen[key]; ok && raised.Sub(seen) < toastDedupeWindow {
		c.logger.Debug("duplicate toast suppressed", "kind", kind, "message", message)
		return 0, nil
	}
	c.lastSeen[key] = raised

	c.nextID++
	toast := Toast{ID: c.nextID, Kind: kind, Message: message, Raised: raised}
	c.active = append(c.active, toast)
	return toast.ID, nil
}

// Dismiss removes a toast by id. Unknown ids are ignored. The dedupe
// entry goes with it, so an explicitly dismissed toast can be raised
// again right away.
func (c *ToastCenter) Dismiss(id int64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for index, toast := range c.active {
		if toast.ID == id {
			delete(c.lastSeen, toastKey{kind: toast.Kind, message: toast.Message})
			c.active = append(c.active[:index], c.active[index+1:]...)
			return
		}
	}
}

// Expire drops toasts older than ttl and prunes the dedupe side table.
func (c *ToastCenter) Expire(ttl time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()

	cutoff := c.now().Add(-ttl)
	kept := c.active[:0]
	for _, toast := range c.active {
		if toast.Raised.After(cutoff) {
			kept = append(kept, toast)
		}
	}
	c.active = kept

	dedupeCutoff := c.now().Add(-toastDedupeWindow)
	for key, seen := range c.lastSeen {
		if seen.Before(dedupeCutoff) {
			delete(c.lastSeen, key)
		}
	}
}

// Active returns the visible toasts, oldest first.
func (c *ToastCenter) Active() []Toast {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]Toast, len(c.active))
	copy(out, c.active)
	return out
}
