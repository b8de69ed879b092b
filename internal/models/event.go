package models

import (
	"encoding/json"
	"strings"
	"time"
)

// EventType categorizes events in the system.
type EventType string

const (
	// Sequence events
	EventTypeSequenceStarted  EventType = "sequence.started"
	EventTypeSequenceStopped  EventType = "sequence.stopped"
	EventTypeSequenceFinished EventType = "sequence.finished"
	EventTypeSequenceClosed   EventType = "sequence.closed"

	// Command events
	EventTypeCommandActivated  EventType = "command.activated"
	EventTypeCommandCompleted  EventType = "command.completed"
	EventTypeCommandCancelled  EventType = "command.cancelled"
	EventTypeCommandDiscarded  EventType = "command.discarded"
	EventTypeCommandUnresolved EventType = "command.unresolved"

	// Message events
	EventTypeMessageSent     EventType = "message.sent"
	EventTypeMessageReceived EventType = "message.received"

	// System events
	EventTypeError   EventType = "error"
	EventTypeWarning EventType = "warning"
)

// EntityType identifies the type of entity an event relates to.
type EntityType string

const (
	EntityTypeSequence EntityType = "sequence"
	EntityTypeBridge   EntityType = "bridge"
	EntityTypeSystem   EntityType = "system"
)

// Event represents an append-only log entry.
type Event struct {
	// ID is the unique identifier for the event.
	ID string `json:"id"`

	// Timestamp is when the event occurred.
	Timestamp time.Time `json:"timestamp"`

	// Type categorizes the event.
	Type EventType `json:"type"`

	// EntityType identifies what kind of entity this event relates to.
	EntityType EntityType `json:"entity_type"`

	// EntityID is the ID of the related entity.
	EntityID string `json:"entity_id"`

	// Payload contains event-specific data.
	Payload json.RawMessage `json:"payload,omitempty"`

	// Metadata contains additional context.
	Metadata map[string]string `json:"metadata,omitempty"`
}

// Validate checks if the event is valid.
func (e *Event) Validate() error {
	validation := &ValidationErrors{}
	if strings.TrimSpace(string(e.Type)) == "" {
		validation.AddMessage("type", "event type is required")
	}
	if strings.TrimSpace(string(e.EntityType)) == "" {
		validation.AddMessage("entity_type", "entity_type is required")
	}
	if strings.TrimSpace(e.EntityID) == "" {
		validation.AddMessage("entity_id", "entity_id is required")
	}
	return validation.Err()
}

// SequenceStartedPayload is the payload for sequence.started events.
type SequenceStartedPayload struct {
	Sequence   string `json:"sequence"`
	Cutscene   string `json:"cutscene,omitempty"`
	Speaker    string `json:"speaker,omitempty"`
	Listener   string `json:"listener,omitempty"`
	Statements int    `json:"statements"`
}

// SequenceFinishedPayload is the payload for sequence.finished events.
type SequenceFinishedPayload struct {
	Activations int64  `json:"activations"`
	Elapsed     string `json:"elapsed"`
}

// CommandPayload is the payload for command.* events.
type CommandPayload struct {
	Statement string `json:"statement"`
	Forced    bool   `json:"forced,omitempty"`
	At        string `json:"at"`
}

// MessagePayload is the payload for message.* events.
type MessagePayload struct {
	Name   string `json:"name"`
	Source string `json:"source,omitempty"`
}

// ErrorPayload is the payload for error events.
type ErrorPayload struct {
	Error   string `json:"error"`
	Context string `json:"context,omitempty"`
}
