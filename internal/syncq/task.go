// Package syncq queues writes that could not reach the backend and
// retries them until they land or are rejected outright.
package syncq

import (
	"encoding/json"
	"time"
)

type Kind string

const (
	KindConversationSave Kind = "conversation-save"
	KindMessageAppend    Kind = "message-append"
	KindNotificationSave Kind = "notification-save"
	KindVehicleUpdate    Kind = "vehicle-update"
)

func (k Kind) Known() bool {
	switch k {
	case KindConversationSave, KindMessageAppend, KindNotificationSave, KindVehicleUpdate:
		return true
	}
	return false
}

// Task is one pending write. ID doubles as the idempotency key sent
// to the backend, so retrying the same task can never double-apply.
type Task struct {
	ID        string          `json:"id"`
	Kind      Kind            `json:"kind"`
	Payload   json.RawMessage `json:"payload"`
	Attempts  int             `json:"attempts"`
	LastError string          `json:"lastError,omitempty"`
	CreatedAt time.Time       `json:"createdAt"`
}

// TaskID derives the deterministic id for a kind and entity. One
// entity has at most one queued task per kind, so a newer write for
// the same entity replaces the older payload in place.
func TaskID(kind Kind, entityID string) string {
	return string(kind) + ":" + entityID
}
