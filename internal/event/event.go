package event

import (
	"time"

	"github.com/google/uuid"
)

// Kind identifies the type of session event. Subscribers must tolerate
// kinds they do not recognize.
type Kind string

const (
	KindTurnStarted          Kind = "turn_started"
	KindAssistantText        Kind = "assistant_text"
	KindToolRequested        Kind = "tool_requested"
	KindConfirmationRequired Kind = "confirmation_required"
	KindConfirmationResolved Kind = "confirmation_resolved"
	KindToolResult           Kind = "tool_result"
	KindCheckpointCreated    Kind = "checkpoint_created"
	KindContextCompressed    Kind = "context_compressed"
	KindError                Kind = "error"
	KindSessionEnd           Kind = "session_end"
)

// Event is a typed lifecycle event emitted by the loop, the gate, and the
// conversation manager.
type Event struct {
	ID        string         `json:"id"`
	Kind      Kind           `json:"kind"`
	Timestamp time.Time      `json:"timestamp"`
	SessionID string         `json:"session_id"`

	// InvocationID links tool lifecycle events to their invocation.
	InvocationID string `json:"invocation_id,omitempty"`

	Payload map[string]any `json:"payload,omitempty"`
}

// New builds an event with a fresh id and timestamp.
func New(sessionID string, kind Kind, invocationID string, payload map[string]any) Event {
	return Event{
		ID:           uuid.NewString(),
		Kind:         kind,
		Timestamp:    time.Now(),
		SessionID:    sessionID,
		InvocationID: invocationID,
		Payload:      payload,
	}
}
