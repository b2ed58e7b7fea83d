// Package agui defines the AG-UI streaming protocol surface: the outbound
// event vocabulary, the run input accepted from clients, the emitter contract
// bound per session, and SSE encoding.
package agui

import "time"

// EventType identifies the kind of a streamed event
type EventType string

const (
	// EventTypeRunStarted opens a run's event stream
	EventTypeRunStarted EventType = "RUN_STARTED"
	// EventTypeRunFinished terminates a run's event stream on the success path
	EventTypeRunFinished EventType = "RUN_FINISHED"
	// EventTypeRunError terminates a run's event stream on the failure path
	EventTypeRunError EventType = "RUN_ERROR"
	// EventTypeTextMessageStart opens the run's assistant text message
	EventTypeTextMessageStart EventType = "TEXT_MESSAGE_START"
	// EventTypeTextMessageContent carries one assistant text chunk
	EventTypeTextMessageContent EventType = "TEXT_MESSAGE_CONTENT"
	// EventTypeTextMessageEnd closes the run's assistant text message
	EventTypeTextMessageEnd EventType = "TEXT_MESSAGE_END"
	// EventTypeToolCallStart announces a tool invocation
	EventTypeToolCallStart EventType = "TOOL_CALL_START"
	// EventTypeToolCallArgs carries a tool invocation's serialized arguments
	EventTypeToolCallArgs EventType = "TOOL_CALL_ARGS"
	// EventTypeToolCallResult reports completion of a host-executed tool
	EventTypeToolCallResult EventType = "TOOL_CALL_RESULT"
	// EventTypeToolCallEnd closes a tool invocation
	EventTypeToolCallEnd EventType = "TOOL_CALL_END"
)

// RoleAssistant is the message role attached to text message start events
const RoleAssistant = "assistant"

// Event is one logical record on a run's event stream. Field presence depends
// on Type; unset fields are omitted on the wire.
type Event struct {
	Type         EventType `json:"type"`
	ThreadID     string    `json:"threadId,omitempty"`
	RunID        string    `json:"runId,omitempty"`
	MessageID    string    `json:"messageId,omitempty"`
	Role         string    `json:"role,omitempty"`
	Delta        string    `json:"delta,omitempty"`
	ToolCallID   string    `json:"toolCallId,omitempty"`
	ToolCallName string    `json:"toolCallName,omitempty"`
	Content      *string   `json:"content,omitempty"`
	Message      string    `json:"message,omitempty"`
	Timestamp    int64     `json:"timestamp,omitempty"`
}

func now() int64 {
	return time.Now().UnixMilli()
}

// NewRunStarted creates the event opening a run
func NewRunStarted(threadID, runID string) Event {
	return Event{Type: EventTypeRunStarted, ThreadID: threadID, RunID: runID, Timestamp: now()}
}

// NewRunFinished creates the terminal success event for a run
func NewRunFinished(threadID, runID string) Event {
	return Event{Type: EventTypeRunFinished, ThreadID: threadID, RunID: runID, Timestamp: now()}
}

// NewRunError creates the terminal failure event for a run
func NewRunError(message string) Event {
	return Event{Type: EventTypeRunError, Message: message, Timestamp: now()}
}

// NewTextMessageStart opens the run's assistant message
func NewTextMessageStart(messageID string) Event {
	return Event{Type: EventTypeTextMessageStart, MessageID: messageID, Role: RoleAssistant, Timestamp: now()}
}

// NewTextMessageContent carries one non-empty text chunk
func NewTextMessageContent(messageID, delta string) Event {
	return Event{Type: EventTypeTextMessageContent, MessageID: messageID, Delta: delta, Timestamp: now()}
}

// NewTextMessageEnd closes the run's assistant message
func NewTextMessageEnd(messageID string) Event {
	return Event{Type: EventTypeTextMessageEnd, MessageID: messageID, Timestamp: now()}
}

// NewToolCallStart announces a tool invocation
func NewToolCallStart(toolCallID, toolName string) Event {
	return Event{Type: EventTypeToolCallStart, ToolCallID: toolCallID, ToolCallName: toolName, Timestamp: now()}
}

// NewToolCallArgs carries the invocation's serialized parameter snapshot
func NewToolCallArgs(toolCallID, delta string) Event {
	return Event{Type: EventTypeToolCallArgs, ToolCallID: toolCallID, Delta: delta, Timestamp: now()}
}

// NewToolCallResult reports a host-executed tool completion. The content is an
// empty placeholder carried explicitly on the wire; actual results travel back
// through the host pipeline, not this stream.
func NewToolCallResult(toolCallID, messageID, content string) Event {
	return Event{Type: EventTypeToolCallResult, ToolCallID: toolCallID, MessageID: messageID, Content: &content, Timestamp: now()}
}

// NewToolCallEnd closes a tool invocation
func NewToolCallEnd(toolCallID string) Event {
	return Event{Type: EventTypeToolCallEnd, ToolCallID: toolCallID, Timestamp: now()}
}

// IsTerminal reports whether the event ends a run's stream
func (e Event) IsTerminal() bool {
	return e.Type == EventTypeRunFinished || e.Type == EventTypeRunError
}
