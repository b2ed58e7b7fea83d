package bridge

import (
	"context"
	"errors"
	"testing"

	"github.com/kandev/agui-gateway/pkg/agui"
	"github.com/kandev/agui-gateway/pkg/pipeline"
)

func newBoundHooks(t *testing.T) (*ToolHooks, *Store, *recordingEmitter, context.Context) {
	t.Helper()
	store := NewStore()
	emitter := &recordingEmitter{}
	store.BindEmitter("sess-1", emitter, "msg-1")
	hooks := NewToolHooks(store, newTestLogger(t))
	ctx := pipeline.WithSessionKey(context.Background(), "sess-1")
	return hooks, store, emitter, ctx
}

func TestBeforeToolCall_NoSessionKey(t *testing.T) {
	hooks, store, emitter, _ := newBoundHooks(t)

	hooks.BeforeToolCall(context.Background(), pipeline.ToolHookEvent{ToolName: "get_weather"})

	if got := emitter.Events(); len(got) != 0 {
		t.Errorf("emitted %d events without a session key, want 0", len(got))
	}
	if store.ToolFired("sess-1") {
		t.Error("tool-fired flag set without a session key")
	}
}

func TestBeforeToolCall_NoEmitterBound(t *testing.T) {
	store := NewStore()
	hooks := NewToolHooks(store, newTestLogger(t))
	ctx := pipeline.WithSessionKey(context.Background(), "sess-unbound")

	hooks.BeforeToolCall(ctx, pipeline.ToolHookEvent{ToolName: "get_weather"})

	if store.ToolFired("sess-unbound") {
		t.Error("tool-fired flag set without a bound emitter")
	}
	if got := store.PopPendingCall("sess-unbound"); got != "" {
		t.Errorf("pending call %q recorded without a bound emitter", got)
	}
}

func TestBeforeToolCall_HostTool(t *testing.T) {
	hooks, store, emitter, ctx := newBoundHooks(t)

	hooks.BeforeToolCall(ctx, pipeline.ToolHookEvent{
		ToolName: "run_query",
		Params:   map[string]interface{}{"sql": "select 1"},
	})

	events := emitter.Events()
	if len(events) != 2 {
		t.Fatalf("emitted %d events, want 2 (start, args)", len(events))
	}
	if events[0].Type != agui.EventTypeToolCallStart {
		t.Errorf("first event = %s, want %s", events[0].Type, agui.EventTypeToolCallStart)
	}
	if events[0].ToolCallName != "run_query" {
		t.Errorf("toolCallName = %q, want run_query", events[0].ToolCallName)
	}
	if events[1].Type != agui.EventTypeToolCallArgs {
		t.Errorf("second event = %s, want %s", events[1].Type, agui.EventTypeToolCallArgs)
	}
	if events[1].Delta != `{"sql":"select 1"}` {
		t.Errorf("args delta = %q, want serialized params", events[1].Delta)
	}
	if events[0].ToolCallID == "" || events[0].ToolCallID != events[1].ToolCallID {
		t.Error("start and args events must share one generated id")
	}

	if !store.ToolFired("sess-1") {
		t.Error("tool-fired flag not set")
	}
	if store.ClientToolCalled("sess-1") {
		t.Error("client-tool-called flag set for a host tool")
	}
	if got := store.PopPendingCall("sess-1"); got != events[0].ToolCallID {
		t.Errorf("pending call = %q, want the emitted id %q", got, events[0].ToolCallID)
	}
}

func TestBeforeToolCall_EmptyParamsOmitArgsEvent(t *testing.T) {
	hooks, _, emitter, ctx := newBoundHooks(t)

	hooks.BeforeToolCall(ctx, pipeline.ToolHookEvent{ToolName: "run_query"})
	hooks.BeforeToolCall(ctx, pipeline.ToolHookEvent{ToolName: "run_query", Params: map[string]interface{}{}})

	for _, ev := range emitter.Events() {
		if ev.Type == agui.EventTypeToolCallArgs {
			t.Fatal("args event emitted for empty parameters")
		}
	}
}

func TestBeforeToolCall_ClientTool(t *testing.T) {
	hooks, store, emitter, ctx := newBoundHooks(t)
	store.MarkClientTools("sess-1", "get_weather")

	hooks.BeforeToolCall(ctx, pipeline.ToolHookEvent{
		ToolName: "get_weather",
		Params:   map[string]interface{}{"city": "Tokyo"},
	})

	events := emitter.Events()
	if len(events) != 3 {
		t.Fatalf("emitted %d events, want 3 (start, args, end)", len(events))
	}
	wantTypes := []agui.EventType{
		agui.EventTypeToolCallStart,
		agui.EventTypeToolCallArgs,
		agui.EventTypeToolCallEnd,
	}
	for i, want := range wantTypes {
		if events[i].Type != want {
			t.Errorf("event[%d] = %s, want %s", i, events[i].Type, want)
		}
	}
	if events[0].ToolCallName != "get_weather" {
		t.Errorf("toolCallName = %q, want get_weather", events[0].ToolCallName)
	}
	if events[1].Delta != `{"city":"Tokyo"}` {
		t.Errorf("args delta = %q, want {\"city\":\"Tokyo\"}", events[1].Delta)
	}
	id := events[0].ToolCallID
	if id == "" || events[1].ToolCallID != id || events[2].ToolCallID != id {
		t.Error("all three events must share one generated id")
	}

	if !store.ClientToolCalled("sess-1") {
		t.Error("client-tool-called flag not set")
	}
	if got := store.PopPendingCall("sess-1"); got != "" {
		t.Errorf("client tool entered the pending stack: %q", got)
	}
}

func TestBeforeToolCall_GeneratedIDsDistinct(t *testing.T) {
	hooks, store, emitter, ctx := newBoundHooks(t)

	hooks.BeforeToolCall(ctx, pipeline.ToolHookEvent{ToolName: "first"})
	hooks.BeforeToolCall(ctx, pipeline.ToolHookEvent{ToolName: "second"})

	events := emitter.Events()
	if len(events) != 2 {
		t.Fatalf("emitted %d events, want 2", len(events))
	}
	if events[0].ToolCallID == events[1].ToolCallID {
		t.Errorf("tool call ids must be pairwise distinct, both %q", events[0].ToolCallID)
	}

	// Drain the pending stack so the ids do not leak into other assertions
	store.PopPendingCall("sess-1")
	store.PopPendingCall("sess-1")
}

func TestAfterToolResult_ClosesMostRecentCall(t *testing.T) {
	hooks, _, emitter, ctx := newBoundHooks(t)

	hooks.BeforeToolCall(ctx, pipeline.ToolHookEvent{ToolName: "run_query"})
	startID := emitter.Events()[0].ToolCallID

	hooks.AfterToolResult(ctx, pipeline.ToolHookEvent{ToolName: "run_query", Result: "ignored"})

	events := emitter.Events()
	if len(events) != 3 {
		t.Fatalf("emitted %d events, want 3 (start, result, end)", len(events))
	}
	result, end := events[1], events[2]
	if result.Type != agui.EventTypeToolCallResult {
		t.Errorf("event[1] = %s, want %s", result.Type, agui.EventTypeToolCallResult)
	}
	if end.Type != agui.EventTypeToolCallEnd {
		t.Errorf("event[2] = %s, want %s", end.Type, agui.EventTypeToolCallEnd)
	}
	if result.ToolCallID != startID || end.ToolCallID != startID {
		t.Error("result and end events must carry the start event's id")
	}
	if result.MessageID != "msg-1" {
		t.Errorf("result messageId = %q, want msg-1", result.MessageID)
	}
	if result.Content == nil || *result.Content != "" {
		t.Errorf("result content = %v, want explicit empty placeholder", result.Content)
	}
}

func TestAfterToolResult_SequentialPairsCorrelate(t *testing.T) {
	hooks, _, emitter, ctx := newBoundHooks(t)

	hooks.BeforeToolCall(ctx, pipeline.ToolHookEvent{ToolName: "first"})
	hooks.AfterToolResult(ctx, pipeline.ToolHookEvent{ToolName: "first"})
	hooks.BeforeToolCall(ctx, pipeline.ToolHookEvent{ToolName: "second"})
	hooks.AfterToolResult(ctx, pipeline.ToolHookEvent{ToolName: "second"})

	events := emitter.Events()
	if len(events) != 6 {
		t.Fatalf("emitted %d events, want 6", len(events))
	}

	firstID, secondID := events[0].ToolCallID, events[3].ToolCallID
	if firstID == secondID {
		t.Fatal("expected distinct ids per invocation")
	}
	if events[1].ToolCallID != firstID || events[2].ToolCallID != firstID {
		t.Error("first completion paired with the wrong start")
	}
	if events[4].ToolCallID != secondID || events[5].ToolCallID != secondID {
		t.Error("second completion paired with the wrong start")
	}
}

func TestAfterToolResult_NestedPairsCorrelateLIFO(t *testing.T) {
	hooks, _, emitter, ctx := newBoundHooks(t)

	hooks.BeforeToolCall(ctx, pipeline.ToolHookEvent{ToolName: "outer"})
	hooks.BeforeToolCall(ctx, pipeline.ToolHookEvent{ToolName: "inner"})
	outerID := emitter.Events()[0].ToolCallID
	innerID := emitter.Events()[1].ToolCallID

	hooks.AfterToolResult(ctx, pipeline.ToolHookEvent{})
	hooks.AfterToolResult(ctx, pipeline.ToolHookEvent{})

	events := emitter.Events()
	if len(events) != 6 {
		t.Fatalf("emitted %d events, want 6", len(events))
	}
	// First completion resolves the most recently started call
	if events[2].ToolCallID != innerID || events[3].ToolCallID != innerID {
		t.Error("first completion did not resolve the inner call")
	}
	if events[4].ToolCallID != outerID || events[5].ToolCallID != outerID {
		t.Error("second completion did not resolve the outer call")
	}
}

func TestAfterToolResult_MissingStateNoOps(t *testing.T) {
	hooks, store, emitter, ctx := newBoundHooks(t)

	// No session key
	hooks.AfterToolResult(context.Background(), pipeline.ToolHookEvent{})
	// No pending call for the session
	hooks.AfterToolResult(ctx, pipeline.ToolHookEvent{})

	if got := emitter.Events(); len(got) != 0 {
		t.Errorf("emitted %d events with no pending call, want 0", len(got))
	}

	// Pending call present but the emitter was already cleared
	hooks.BeforeToolCall(ctx, pipeline.ToolHookEvent{ToolName: "run_query"})
	store.ClearEmitter("sess-1")
	hooks.AfterToolResult(ctx, pipeline.ToolHookEvent{})

	events := emitter.Events()
	if len(events) != 1 {
		t.Errorf("emitted %d events, want only the start event", len(events))
	}
}

func TestHooks_EmitFailureAbsorbed(t *testing.T) {
	store := NewStore()
	emitter := &recordingEmitter{err: errors.New("peer gone")}
	store.BindEmitter("sess-1", emitter, "msg-1")
	hooks := NewToolHooks(store, newTestLogger(t))
	ctx := pipeline.WithSessionKey(context.Background(), "sess-1")

	// Must not panic and must keep correlation state consistent
	hooks.BeforeToolCall(ctx, pipeline.ToolHookEvent{ToolName: "run_query"})
	hooks.AfterToolResult(ctx, pipeline.ToolHookEvent{})

	if got := emitter.Events(); len(got) != 0 {
		t.Errorf("recorded %d events through a failed emitter, want 0", len(got))
	}
	if got := store.PopPendingCall("sess-1"); got != "" {
		t.Errorf("pending call %q left behind, want drained", got)
	}
}
