package bridge

import (
	"context"
	"encoding/json"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/kandev/agui-gateway/internal/common/logger"
	"github.com/kandev/agui-gateway/pkg/agui"
	"github.com/kandev/agui-gateway/pkg/pipeline"
)

// ToolHooks turns the pipeline's tool lifecycle callbacks into correlated
// AG-UI tool events. The pipeline invokes them at times this package does not
// control, for sessions that may never have bound an emitter, so every path
// degrades to a silent no-op when state is missing.
type ToolHooks struct {
	store  *Store
	logger *logger.Logger
}

// NewToolHooks creates hooks backed by the shared session state store
func NewToolHooks(store *Store, log *logger.Logger) *ToolHooks {
	return &ToolHooks{
		store:  store,
		logger: log.WithFields(zap.String("component", "tool-hooks")),
	}
}

// Pipeline returns the hook set in the shape the pipeline registers
func (h *ToolHooks) Pipeline() pipeline.Hooks {
	return pipeline.Hooks{
		BeforeToolCall:  h.BeforeToolCall,
		AfterToolResult: h.AfterToolResult,
	}
}

// BeforeToolCall announces a tool invocation on the session's stream. It
// generates the tool call id, emits the start event, emits the serialized
// arguments when non-empty, and then branches on classification: client
// tools are closed immediately and suppress assistant text for the rest of
// the run, host tools are pushed onto the pending stack to be closed by
// AfterToolResult.
func (h *ToolHooks) BeforeToolCall(ctx context.Context, ev pipeline.ToolHookEvent) {
	key := pipeline.SessionKeyFromContext(ctx)
	if key == "" {
		return
	}
	emitter := h.store.Emitter(key)
	if emitter == nil {
		return
	}

	toolCallID := uuid.New().String()
	h.emit(emitter, agui.NewToolCallStart(toolCallID, ev.ToolName))
	h.store.SetToolFired(key)

	if len(ev.Params) > 0 {
		if payload, err := json.Marshal(ev.Params); err == nil {
			h.emit(emitter, agui.NewToolCallArgs(toolCallID, string(payload)))
		} else {
			h.logger.Debug("skipping unserializable tool arguments",
				zap.String("tool", ev.ToolName),
				zap.Error(err))
		}
	}

	if h.store.IsClientTool(key, ev.ToolName) {
		h.emit(emitter, agui.NewToolCallEnd(toolCallID))
		h.store.SetClientToolCalled(key)
		h.logger.Debug("client tool call closed",
			zap.String("session_key", key),
			zap.String("tool", ev.ToolName),
			zap.String("tool_call_id", toolCallID))
		return
	}

	h.store.PushPendingCall(key, toolCallID)
}

// AfterToolResult closes the most recently opened host-executed tool call for
// the session. The pending id is correlated last-in-first-out; the result
// event carries an empty content placeholder since actual results travel back
// through the pipeline, not this stream. When the emitter, pending id, or
// message id is missing the hook does nothing, which covers completions that
// were never started through BeforeToolCall.
func (h *ToolHooks) AfterToolResult(ctx context.Context, ev pipeline.ToolHookEvent) {
	key := pipeline.SessionKeyFromContext(ctx)
	if key == "" {
		return
	}

	toolCallID := h.store.PopPendingCall(key)
	emitter := h.store.Emitter(key)
	messageID := h.store.MessageID(key)
	if emitter == nil || toolCallID == "" || messageID == "" {
		return
	}

	h.emit(emitter, agui.NewToolCallResult(toolCallID, messageID, ""))
	h.emit(emitter, agui.NewToolCallEnd(toolCallID))
}

// emit writes one event, absorbing stream failures. A failed emitter turns
// itself into a no-op for the rest of the run, so there is nothing to do here
// beyond noting it.
func (h *ToolHooks) emit(emitter agui.Emitter, event agui.Event) {
	if err := emitter.Emit(event); err != nil {
		h.logger.Debug("event emission failed",
			zap.String("event_type", string(event.Type)),
			zap.Error(err))
	}
}
