package streaming

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/kandev/agui-gateway/internal/common/logger"
	"github.com/kandev/agui-gateway/internal/events"
	"github.com/kandev/agui-gateway/internal/events/bus"
	"github.com/kandev/agui-gateway/pkg/agui"
)

func newTestLogger(t *testing.T) *logger.Logger {
	t.Helper()
	log, err := logger.NewLogger(logger.LoggingConfig{
		Level:      "error",
		Format:     "console",
		OutputPath: "stdout",
	})
	if err != nil {
		t.Fatalf("Failed to create logger: %v", err)
	}
	return log
}

// receive waits for one frame on the client's send channel
func receive(t *testing.T, client *Client) []byte {
	t.Helper()
	select {
	case data := <-client.send:
		return data
	case <-time.After(time.Second):
		t.Fatal("Timeout waiting for event")
		return nil
	}
}

func TestHub_BroadcastToSubscribers(t *testing.T) {
	log := newTestLogger(t)
	hub := NewHub(log)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go hub.Run(ctx)

	client := NewClient("client-1", nil, hub, log)
	hub.Register(client)
	client.Subscribe("thread-1")

	if !client.IsSubscribed("thread-1") {
		t.Error("expected client to be subscribed to thread-1")
	}
	if count := hub.GetThreadSubscriberCount("thread-1"); count != 1 {
		t.Errorf("expected 1 subscriber, got %d", count)
	}

	hub.Broadcast("thread-1", agui.NewRunStarted("thread-1", "run-1"))

	data := receive(t, client)
	var ev agui.Event
	if err := json.Unmarshal(data, &ev); err != nil {
		t.Fatalf("failed to decode broadcast frame: %v", err)
	}
	if ev.Type != agui.EventTypeRunStarted {
		t.Errorf("expected RUN_STARTED, got %s", ev.Type)
	}
	if ev.ThreadID != "thread-1" {
		t.Errorf("expected threadId thread-1, got %s", ev.ThreadID)
	}
}

func TestHub_BroadcastSkipsOtherThreads(t *testing.T) {
	log := newTestLogger(t)
	hub := NewHub(log)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go hub.Run(ctx)

	subscribed := NewClient("client-1", nil, hub, log)
	hub.Register(subscribed)
	subscribed.Subscribe("thread-1")

	other := NewClient("client-2", nil, hub, log)
	hub.Register(other)
	other.Subscribe("thread-2")

	hub.Broadcast("thread-1", agui.NewRunStarted("thread-1", "run-1"))

	// The subscriber of thread-1 receives the event
	receive(t, subscribed)

	// The thread-2 subscriber must not
	select {
	case data := <-other.send:
		t.Errorf("expected no event for thread-2 subscriber, got %s", data)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestHub_Unsubscribe(t *testing.T) {
	log := newTestLogger(t)
	hub := NewHub(log)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go hub.Run(ctx)

	client := NewClient("client-1", nil, hub, log)
	hub.Register(client)
	client.Subscribe("thread-1")
	client.Unsubscribe("thread-1")

	if client.IsSubscribed("thread-1") {
		t.Error("expected client to be unsubscribed")
	}
	if count := hub.GetThreadSubscriberCount("thread-1"); count != 0 {
		t.Errorf("expected 0 subscribers, got %d", count)
	}

	hub.Broadcast("thread-1", agui.NewRunStarted("thread-1", "run-1"))

	select {
	case data := <-client.send:
		t.Errorf("expected no event after unsubscribe, got %s", data)
	case <-time.After(50 * time.Millisecond):
	}
}

// TestHub_AttachBus verifies the full mirror path: an event published on the
// bus reaches a WebSocket client subscribed to its thread.
func TestHub_AttachBus(t *testing.T) {
	log := newTestLogger(t)
	hub := NewHub(log)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go hub.Run(ctx)

	eventBus := bus.NewMemoryEventBus(log)
	defer eventBus.Close()

	sub, err := hub.AttachBus(eventBus)
	if err != nil {
		t.Fatalf("AttachBus failed: %v", err)
	}
	defer func() {
		_ = sub.Unsubscribe()
	}()

	client := NewClient("client-1", nil, hub, log)
	hub.Register(client)
	client.Subscribe("thread-9")

	runEvent := agui.NewTextMessageContent("msg-1", "hello")
	busEvent := bus.NewEvent(events.RunStream, "agui-gateway", map[string]interface{}{
		"threadId": "thread-9",
		"event":    runEvent,
	})
	if err := eventBus.Publish(context.Background(), events.BuildRunStreamSubject("thread-9"), busEvent); err != nil {
		t.Fatalf("Publish failed: %v", err)
	}

	data := receive(t, client)
	var ev agui.Event
	if err := json.Unmarshal(data, &ev); err != nil {
		t.Fatalf("failed to decode mirrored frame: %v", err)
	}
	if ev.Type != agui.EventTypeTextMessageContent {
		t.Errorf("expected TEXT_MESSAGE_CONTENT, got %s", ev.Type)
	}
	if ev.Delta != "hello" {
		t.Errorf("expected delta 'hello', got %q", ev.Delta)
	}
}
