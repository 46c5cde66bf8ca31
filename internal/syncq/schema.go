package syncq

import (
	"bytes"
	"fmt"
	"strings"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v6"
)

const conversationSaveSchema = `{
  "type": "object",
  "required": ["id", "vehicleId", "buyerId", "sellerId"],
  "properties": {
    "id": {"type": "string", "minLength": 1},
    "vehicleId": {"type": "string", "minLength": 1},
    "buyerId": {"type": "string", "minLength": 1},
    "sellerId": {"type": "string", "minLength": 1},
    "lastMessage": {"type": "string"}
  }
}`

const messageAppendSchema = `{
  "type": "object",
  "required": ["id", "conversationId", "senderId", "body"],
  "properties": {
    "id": {"type": "string", "minLength": 1},
    "conversationId": {"type": "string", "minLength": 1},
    "senderId": {"type": "string", "minLength": 1},
    "body": {"type": "string", "minLength": 1}
  }
}`

const notificationSaveSchema = `{
  "type": "object",
  "required": ["id", "userId", "title"],
  "properties": {
    "id": {"type": "string", "minLength": 1},
    "userId": {"type": "string", "minLength": 1},
    "title": {"type": "string", "minLength": 1},
    "body": {"type": "string"},
    "read": {"type": "boolean"}
  }
}`

const vehicleUpdateSchema = `{
  "type": "object",
  "required": ["id", "fields"],
  "properties": {
    "id": {"type": "string", "minLength": 1},
    "fields": {"type": "object", "minProperties": 1}
  }
}`

var (
	schemaOnce sync.Once
	schemaErr  error
	schemas    map[Kind]*jsonschema.Schema
)

func compileSchemas() {
	sources := map[Kind]string{
		KindConversationSave: conversationSaveSchema,
		KindMessageAppend:    messageAppendSchema,
		KindNotificationSave: notificationSaveSchema,
		KindVehicleUpdate:    vehicleUpdateSchema,
	}

	compiler := jsonschema.NewCompiler()
	compiled := make(map[Kind]*jsonschema.Schema, len(sources))
	for kind, source := range sources {
		name := string(kind) + ".json"
		document, err := jsonschema.UnmarshalJSON(strings.NewReader(source))
		if err != nil {
			schemaErr = fmt.Errorf("parse schema %s: %w", name, err)
			return
		}
		if err := compiler.AddResource(name, document); err != nil {
			schemaErr = fmt.Errorf("add schema %s: %w", name, err)
			return
		}
		schema, err := compiler.Compile(name)
		if err != nil {
			schemaErr = fmt.Errorf("compile schema %s: %w", name, err)
			return
		}
		compiled[kind] = schema
	}
	schemas = compiled
}

// ValidatePayload checks a task payload against the schema for its
// kind before it ever enters the ledger. Rejecting malformed payloads
// up front keeps poison tasks out of the retry loop.
func ValidatePayload(kind Kind, payload []byte) error {
	if !kind.Known() {
		return fmt.Errorf("unknown task kind %q", kind)
	}
	schemaOnce.Do(compileSchemas)
	if schemaErr != nil {
		return schemaErr
	}

	instance, err := jsonschema.UnmarshalJSON(bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("parse payload: %w", err)
	}
	if err := schemas[kind].Validate(instance); err != nil {
		return fmt.Errorf("payload for %s: %w", kind, err)
	}
	return nil
}
