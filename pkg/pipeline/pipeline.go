// Package pipeline defines the contract between the gateway and the host
// message-routing pipeline that executes agent runs. The gateway hands the
// pipeline a Dispatcher for one run and the pipeline calls back into it;
// tool lifecycle hooks and tool sources are registered once and invoked by
// the pipeline at times the gateway does not control.
package pipeline

import (
	"context"
	"time"
)

// contextKey is private to keep session keys out of collision range
type contextKey struct{}

var sessionKeyCtx contextKey

// WithSessionKey returns a context carrying the session identifier. Every
// pipeline callback (hooks, tool sources, dispatcher methods) receives a
// context derived from this one.
func WithSessionKey(ctx context.Context, key string) context.Context {
	return context.WithValue(ctx, sessionKeyCtx, key)
}

// SessionKeyFromContext extracts the session identifier, or "" when absent
func SessionKeyFromContext(ctx context.Context) string {
	if key, ok := ctx.Value(sessionKeyCtx).(string); ok {
		return key
	}
	return ""
}

// Message is one conversation entry handed to the pipeline
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content,omitempty"`
	Name    string `json:"name,omitempty"` // tool name for tool-result entries
}

// Request is the conversation context for one dispatch
type Request struct {
	ThreadID string
	Messages []Message
	// Since is the prior-activity timestamp read from the thread registry;
	// zero for a thread's first run. The pipeline may use it to scope how much
	// history it replays.
	Since time.Time
}

// RunOptions carries per-run knobs and notification callbacks
type RunOptions struct {
	RunID string
	// OnRunStart is invoked once when the pipeline actually begins the run
	OnRunStart func(runID string)
	// OnToolResult is invoked after each tool execution completes
	OnToolResult func(result ToolResult)
}

// Dispatcher is the callback surface a pipeline drives during one run. All
// methods are invoked synchronously from the pipeline's dispatch flow.
type Dispatcher interface {
	// SendBlockReply streams one partial text chunk
	SendBlockReply(ctx context.Context, text string) error
	// SendFinalReply delivers the terminal text and ends the run's stream
	SendFinalReply(ctx context.Context, text string) error
	// NotifyToolResult acknowledges a completed tool execution; the return
	// reports whether the run's stream is still open
	NotifyToolResult(ctx context.Context, result ToolResult) bool
	// WaitIdle blocks until queued work drains; dispatchers that do not
	// queue return immediately
	WaitIdle(ctx context.Context) error
	// QueuedCount reports pending queued replies
	QueuedCount() int
}

// Pipeline is the host dispatch entry point
type Pipeline interface {
	// Dispatch runs one request to completion, driving d as it goes. The
	// context carries the session key and the cancellation signal.
	Dispatch(ctx context.Context, req Request, d Dispatcher, opts RunOptions) error
	// RegisterHooks installs the tool-call lifecycle hooks
	RegisterHooks(h Hooks)
	// RegisterToolSource installs a per-run tool provider
	RegisterToolSource(src ToolSource)
}
