// Package runlog keeps a bounded in-memory log of the events emitted per
// thread, so clients that reconnect can replay what they missed.
package runlog

import (
	"sync"
	"time"

	"github.com/kandev/agui-gateway/pkg/agui"
)

// Log is an in-memory per-thread event log. Each thread keeps at most
// maxPerThread events; older ones are trimmed as new ones arrive.
type Log struct {
	mu           sync.RWMutex
	events       map[string][]agui.Event
	maxPerThread int
}

// NewLog creates a log keeping up to maxPerThread events per thread
func NewLog(maxPerThread int) *Log {
	if maxPerThread <= 0 {
		maxPerThread = 1000
	}
	return &Log{
		events:       make(map[string][]agui.Event),
		maxPerThread: maxPerThread,
	}
}

// Append records one emitted event for a thread
func (l *Log) Append(threadID string, event agui.Event) {
	if threadID == "" {
		return
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	events := append(l.events[threadID], event)

	// Trim if exceeding max
	if len(events) > l.maxPerThread {
		events = events[len(events)-l.maxPerThread:]
	}

	l.events[threadID] = events
}

// Events returns a thread's logged events emitted after since, newest limit
// entries only when limit is positive. The returned slice is a copy.
func (l *Log) Events(threadID string, limit int, since time.Time) []agui.Event {
	l.mu.RLock()
	defer l.mu.RUnlock()

	events := l.events[threadID]
	if events == nil {
		return []agui.Event{}
	}

	cutoff := since.UnixMilli()
	var filtered []agui.Event
	for _, ev := range events {
		if ev.Timestamp > cutoff {
			filtered = append(filtered, ev)
		}
	}

	if limit > 0 && len(filtered) > limit {
		filtered = filtered[len(filtered)-limit:]
	}

	result := make([]agui.Event, len(filtered))
	copy(result, filtered)
	return result
}

// Delete removes all logged events for a thread
func (l *Log) Delete(threadID string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	delete(l.events, threadID)
}
