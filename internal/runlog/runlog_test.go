package runlog

import (
	"fmt"
	"testing"
	"time"

	"github.com/kandev/agui-gateway/pkg/agui"
)

func eventAt(runID string, ts int64) agui.Event {
	ev := agui.NewRunStarted("thread-1", runID)
	ev.Timestamp = ts
	return ev
}

func TestNewLogDefaultMax(t *testing.T) {
	log := NewLog(0)
	if log.maxPerThread != 1000 {
		t.Errorf("expected default maxPerThread = 1000, got %d", log.maxPerThread)
	}

	log = NewLog(-5)
	if log.maxPerThread != 1000 {
		t.Errorf("expected default maxPerThread = 1000, got %d", log.maxPerThread)
	}
}

func TestAppendAndEvents(t *testing.T) {
	log := NewLog(100)

	log.Append("thread-1", eventAt("run-1", 10))
	log.Append("thread-1", eventAt("run-2", 20))
	log.Append("thread-2", eventAt("run-3", 30))

	events := log.Events("thread-1", 0, time.Time{})
	if len(events) != 2 {
		t.Fatalf("got %d events, want 2", len(events))
	}
	if events[0].RunID != "run-1" || events[1].RunID != "run-2" {
		t.Errorf("events out of order: %v, %v", events[0].RunID, events[1].RunID)
	}

	other := log.Events("thread-2", 0, time.Time{})
	if len(other) != 1 || other[0].RunID != "run-3" {
		t.Errorf("thread-2 events = %v, want only run-3", other)
	}
}

func TestEventsUnknownThread(t *testing.T) {
	log := NewLog(100)

	events := log.Events("missing", 0, time.Time{})
	if events == nil {
		t.Fatal("Events() returned nil, want empty slice")
	}
	if len(events) != 0 {
		t.Errorf("got %d events for unknown thread, want 0", len(events))
	}
}

func TestEventsSinceFilter(t *testing.T) {
	log := NewLog(100)

	base := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	log.Append("thread-1", eventAt("run-1", base.UnixMilli()))
	log.Append("thread-1", eventAt("run-2", base.Add(time.Minute).UnixMilli()))
	log.Append("thread-1", eventAt("run-3", base.Add(2*time.Minute).UnixMilli()))

	events := log.Events("thread-1", 0, base)
	if len(events) != 2 {
		t.Fatalf("got %d events after cutoff, want 2", len(events))
	}
	if events[0].RunID != "run-2" {
		t.Errorf("first event = %s, want run-2", events[0].RunID)
	}
}

func TestEventsLimitKeepsNewest(t *testing.T) {
	log := NewLog(100)

	for i := 1; i <= 5; i++ {
		log.Append("thread-1", eventAt(fmt.Sprintf("run-%d", i), int64(i*10)))
	}

	events := log.Events("thread-1", 2, time.Time{})
	if len(events) != 2 {
		t.Fatalf("got %d events, want 2", len(events))
	}
	if events[0].RunID != "run-4" || events[1].RunID != "run-5" {
		t.Errorf("limited events = %v, %v, want the two newest", events[0].RunID, events[1].RunID)
	}
}

func TestAppendTrimsOldest(t *testing.T) {
	log := NewLog(3)

	for i := 1; i <= 5; i++ {
		log.Append("thread-1", eventAt(fmt.Sprintf("run-%d", i), int64(i*10)))
	}

	events := log.Events("thread-1", 0, time.Time{})
	if len(events) != 3 {
		t.Fatalf("got %d events, want 3 after trim", len(events))
	}
	if events[0].RunID != "run-3" {
		t.Errorf("oldest kept = %s, want run-3", events[0].RunID)
	}
}

func TestAppendIgnoresEmptyThreadID(t *testing.T) {
	log := NewLog(100)

	log.Append("", eventAt("run-1", 10))

	if events := log.Events("", 0, time.Time{}); len(events) != 0 {
		t.Errorf("got %d events under empty thread id, want 0", len(events))
	}
}

func TestDelete(t *testing.T) {
	log := NewLog(100)

	log.Append("thread-1", eventAt("run-1", 10))
	log.Delete("thread-1")

	if events := log.Events("thread-1", 0, time.Time{}); len(events) != 0 {
		t.Errorf("got %d events after delete, want 0", len(events))
	}
}

func TestEventsReturnsCopy(t *testing.T) {
	log := NewLog(100)

	log.Append("thread-1", eventAt("run-1", 10))

	events := log.Events("thread-1", 0, time.Time{})
	events[0].RunID = "mutated"

	fresh := log.Events("thread-1", 0, time.Time{})
	if fresh[0].RunID != "run-1" {
		t.Error("mutating the returned slice changed the stored events")
	}
}
