package model

// EventType identifies a frame on the chat stream.
type EventType string

const (
	// EventConversationID is emitted exactly once, first, carrying the
	// conversation identifier.
	EventConversationID EventType = "conversationId"
	// EventToolUsed carries a tool name, emitted before the tool runs.
	EventToolUsed EventType = "toolUsed"
	// EventText carries one text fragment; concatenation order matters.
	EventText EventType = "text"
	// EventError carries a user-facing error string. Terminal.
	EventError EventType = "error"
	// EventDone has no value. Terminal, always last on success.
	EventDone EventType = "done"
)

// StreamEvent is the JSON payload of one SSE frame.
type StreamEvent struct {
	Type  EventType `json:"type"`
	Value string    `json:"value,omitempty"`
}
