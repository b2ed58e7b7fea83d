package bridge

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/kandev/agui-gateway/pkg/agui"
	"github.com/kandev/agui-gateway/pkg/pipeline"
)

// failAfterEmitter succeeds for the first n emissions, then fails every
// subsequent one.
type failAfterEmitter struct {
	mu        sync.Mutex
	remaining int
	events    []agui.Event
}

func (f *failAfterEmitter) Emit(event agui.Event) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.remaining <= 0 {
		return errors.New("write: broken pipe")
	}
	f.remaining--
	f.events = append(f.events, event)
	return nil
}

func newTestDispatcher(t *testing.T) (*RunDispatcher, *Store, *recordingEmitter) {
	t.Helper()
	store := NewStore()
	emitter := &recordingEmitter{}
	info := RunInfo{SessionKey: "sess-1", ThreadID: "thread-1", RunID: "run-1", MessageID: "msg-1"}
	d := NewRunDispatcher(store, emitter, info, newTestLogger(t))
	return d, store, emitter
}

func assertTypes(t *testing.T, got []agui.Event, want []agui.EventType) {
	t.Helper()
	if len(got) != len(want) {
		types := make([]agui.EventType, len(got))
		for i, ev := range got {
			types[i] = ev.Type
		}
		t.Fatalf("event sequence = %v, want %v", types, want)
	}
	for i := range want {
		if got[i].Type != want[i] {
			t.Errorf("event[%d] = %s, want %s", i, got[i].Type, want[i])
		}
	}
}

func TestDispatcher_StreamedTextRun(t *testing.T) {
	d, _, emitter := newTestDispatcher(t)
	ctx := context.Background()

	if err := d.SendBlockReply(ctx, "hello"); err != nil {
		t.Fatalf("SendBlockReply() error = %v", err)
	}
	if err := d.SendBlockReply(ctx, " world"); err != nil {
		t.Fatalf("SendBlockReply() error = %v", err)
	}
	if err := d.SendFinalReply(ctx, ""); err != nil {
		t.Fatalf("SendFinalReply() error = %v", err)
	}

	events := emitter.Events()
	assertTypes(t, events, []agui.EventType{
		agui.EventTypeTextMessageStart,
		agui.EventTypeTextMessageContent,
		agui.EventTypeTextMessageContent,
		agui.EventTypeTextMessageEnd,
		agui.EventTypeRunFinished,
	})

	if events[1].Delta != "hello" || events[2].Delta != " world" {
		t.Errorf("deltas = %q, %q, want streamed chunks in order", events[1].Delta, events[2].Delta)
	}
	for _, ev := range events[:4] {
		if ev.MessageID != "msg-1" {
			t.Errorf("%s messageId = %q, want msg-1", ev.Type, ev.MessageID)
		}
	}
	if events[0].Role != agui.RoleAssistant {
		t.Errorf("start role = %q, want assistant", events[0].Role)
	}
	final := events[len(events)-1]
	if final.ThreadID != "thread-1" || final.RunID != "run-1" {
		t.Errorf("run-finished ids = %q/%q, want thread-1/run-1", final.ThreadID, final.RunID)
	}
}

func TestDispatcher_EmptyRunFinishesWithoutText(t *testing.T) {
	d, _, emitter := newTestDispatcher(t)

	if err := d.SendFinalReply(context.Background(), ""); err != nil {
		t.Fatalf("SendFinalReply() error = %v", err)
	}

	assertTypes(t, emitter.Events(), []agui.EventType{agui.EventTypeRunFinished})
}

func TestDispatcher_FinalReplyOpensMessageForResidualText(t *testing.T) {
	d, _, emitter := newTestDispatcher(t)

	if err := d.SendFinalReply(context.Background(), "done"); err != nil {
		t.Fatalf("SendFinalReply() error = %v", err)
	}

	events := emitter.Events()
	assertTypes(t, events, []agui.EventType{
		agui.EventTypeTextMessageStart,
		agui.EventTypeTextMessageContent,
		agui.EventTypeTextMessageEnd,
		agui.EventTypeRunFinished,
	})
	if events[1].Delta != "done" {
		t.Errorf("delta = %q, want done", events[1].Delta)
	}
}

func TestDispatcher_EmptyBlockReplyEmitsNothing(t *testing.T) {
	d, _, emitter := newTestDispatcher(t)

	if err := d.SendBlockReply(context.Background(), ""); err != nil {
		t.Fatalf("SendBlockReply() error = %v", err)
	}

	if got := emitter.Events(); len(got) != 0 {
		t.Errorf("emitted %d events for empty text, want 0", len(got))
	}
}

func TestDispatcher_ClientToolSuppressesText(t *testing.T) {
	d, store, emitter := newTestDispatcher(t)
	ctx := context.Background()
	store.SetClientToolCalled("sess-1")

	if err := d.SendBlockReply(ctx, "should not appear"); err != nil {
		t.Fatalf("SendBlockReply() error = %v", err)
	}
	if err := d.SendFinalReply(ctx, "neither should this"); err != nil {
		t.Fatalf("SendFinalReply() error = %v", err)
	}

	// No text message was ever started, so the run closes bare
	assertTypes(t, emitter.Events(), []agui.EventType{agui.EventTypeRunFinished})
}

func TestDispatcher_ClientToolAfterStartedMessage(t *testing.T) {
	d, store, emitter := newTestDispatcher(t)
	ctx := context.Background()

	if err := d.SendBlockReply(ctx, "partial"); err != nil {
		t.Fatalf("SendBlockReply() error = %v", err)
	}
	store.SetClientToolCalled("sess-1")
	if err := d.SendBlockReply(ctx, "suppressed"); err != nil {
		t.Fatalf("SendBlockReply() error = %v", err)
	}
	if err := d.SendFinalReply(ctx, "suppressed too"); err != nil {
		t.Fatalf("SendFinalReply() error = %v", err)
	}

	// The already-started message still closes cleanly
	assertTypes(t, emitter.Events(), []agui.EventType{
		agui.EventTypeTextMessageStart,
		agui.EventTypeTextMessageContent,
		agui.EventTypeTextMessageEnd,
		agui.EventTypeRunFinished,
	})
}

func TestDispatcher_NotifyToolResult(t *testing.T) {
	d, _, emitter := newTestDispatcher(t)
	ctx := context.Background()

	if open := d.NotifyToolResult(ctx, pipeline.ToolResult{ToolName: "run_query"}); !open {
		t.Error("NotifyToolResult() = false while stream open, want true")
	}
	if got := emitter.Events(); len(got) != 0 {
		t.Errorf("NotifyToolResult() emitted %d events, want 0", len(got))
	}

	if err := d.SendFinalReply(ctx, ""); err != nil {
		t.Fatalf("SendFinalReply() error = %v", err)
	}
	if open := d.NotifyToolResult(ctx, pipeline.ToolResult{ToolName: "run_query"}); open {
		t.Error("NotifyToolResult() = true after termination, want false")
	}
}

func TestDispatcher_IdleSurface(t *testing.T) {
	d, _, _ := newTestDispatcher(t)

	if err := d.WaitIdle(context.Background()); err != nil {
		t.Errorf("WaitIdle() error = %v, want nil", err)
	}
	if got := d.QueuedCount(); got != 0 {
		t.Errorf("QueuedCount() = %d, want 0", got)
	}
}

func TestDispatcher_FinishClosesAbandonedRun(t *testing.T) {
	d, _, emitter := newTestDispatcher(t)

	d.Finish()

	assertTypes(t, emitter.Events(), []agui.EventType{agui.EventTypeRunFinished})
	if !d.Closed() {
		t.Error("Closed() = false after Finish()")
	}
}

func TestDispatcher_FinishEndsStartedMessage(t *testing.T) {
	d, _, emitter := newTestDispatcher(t)

	if err := d.SendBlockReply(context.Background(), "partial"); err != nil {
		t.Fatalf("SendBlockReply() error = %v", err)
	}
	d.Finish()

	assertTypes(t, emitter.Events(), []agui.EventType{
		agui.EventTypeTextMessageStart,
		agui.EventTypeTextMessageContent,
		agui.EventTypeTextMessageEnd,
		agui.EventTypeRunFinished,
	})
}

func TestDispatcher_ExactlyOneTerminalEvent(t *testing.T) {
	d, _, emitter := newTestDispatcher(t)
	ctx := context.Background()

	if err := d.SendFinalReply(ctx, ""); err != nil {
		t.Fatalf("SendFinalReply() error = %v", err)
	}
	if err := d.SendFinalReply(ctx, "late"); err != nil {
		t.Fatalf("second SendFinalReply() error = %v", err)
	}
	d.Finish()
	d.Abort(errors.New("late failure"))

	terminal := 0
	for _, ev := range emitter.Events() {
		if ev.IsTerminal() {
			terminal++
		}
	}
	if terminal != 1 {
		t.Errorf("terminal events = %d, want exactly 1", terminal)
	}
}

func TestDispatcher_AbortEmitsRunError(t *testing.T) {
	d, _, emitter := newTestDispatcher(t)

	d.Abort(errors.New("dispatch exploded"))

	events := emitter.Events()
	assertTypes(t, events, []agui.EventType{agui.EventTypeRunError})
	if events[0].Message != "dispatch exploded" {
		t.Errorf("error message = %q, want dispatch exploded", events[0].Message)
	}
	if !d.Closed() {
		t.Error("Closed() = false after Abort()")
	}

	// Nothing more may be emitted after the terminal event
	if err := d.SendFinalReply(context.Background(), "late"); err != nil {
		t.Fatalf("SendFinalReply() error = %v", err)
	}
	if got := emitter.Events(); len(got) != 1 {
		t.Errorf("emitted %d events after abort, want 1", len(got))
	}
}

func TestDispatcher_MarkClosedSilencesWrites(t *testing.T) {
	d, _, emitter := newTestDispatcher(t)
	ctx := context.Background()

	d.MarkClosed()

	if err := d.SendBlockReply(ctx, "text"); err != nil {
		t.Fatalf("SendBlockReply() error = %v", err)
	}
	if err := d.SendFinalReply(ctx, "text"); err != nil {
		t.Fatalf("SendFinalReply() error = %v", err)
	}
	d.Finish()

	if got := emitter.Events(); len(got) != 0 {
		t.Errorf("emitted %d events after MarkClosed(), want 0", len(got))
	}
}

func TestDispatcher_WriteFailureClosesRun(t *testing.T) {
	store := NewStore()
	emitter := &failAfterEmitter{remaining: 2}
	info := RunInfo{SessionKey: "sess-1", ThreadID: "thread-1", RunID: "run-1", MessageID: "msg-1"}
	d := NewRunDispatcher(store, emitter, info, newTestLogger(t))
	ctx := context.Background()

	// First call lands start and content, second call hits the dead stream
	if err := d.SendBlockReply(ctx, "first"); err != nil {
		t.Fatalf("SendBlockReply() error = %v", err)
	}
	if err := d.SendBlockReply(ctx, "second"); err != nil {
		t.Fatalf("SendBlockReply() after failure error = %v, want absorbed nil", err)
	}
	if err := d.SendFinalReply(ctx, "third"); err != nil {
		t.Fatalf("SendFinalReply() after failure error = %v, want absorbed nil", err)
	}

	assertTypes(t, emitter.events, []agui.EventType{
		agui.EventTypeTextMessageStart,
		agui.EventTypeTextMessageContent,
	})
	if !d.Closed() {
		t.Error("Closed() = false after write failure")
	}
}
