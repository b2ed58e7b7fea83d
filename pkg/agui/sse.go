package agui

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sync"
)

// StreamEmitter writes events to a single long-lived response as server-sent
// event frames (`data: <json>` records separated by blank lines).
//
// The first write failure marks the emitter dead: the error is reported once
// so the run can flip its closed flag, and every later Emit is a silent no-op.
// Close makes the emitter inert once the run has terminated the stream.
type StreamEmitter struct {
	w       io.Writer
	flusher http.Flusher

	mu     sync.Mutex
	dead   bool
	closed bool
}

// NewStreamEmitter wraps a response writer. Flushing happens after every
// frame when the writer supports it.
func NewStreamEmitter(w io.Writer) *StreamEmitter {
	s := &StreamEmitter{w: w}
	if f, ok := w.(http.Flusher); ok {
		s.flusher = f
	}
	return s
}

// Emit encodes and writes one event frame
func (s *StreamEmitter) Emit(event Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.dead || s.closed {
		return nil
	}

	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to encode event: %w", err)
	}

	if _, err := fmt.Fprintf(s.w, "data: %s\n\n", data); err != nil {
		s.dead = true
		return fmt.Errorf("stream write failed: %w", err)
	}
	if s.flusher != nil {
		s.flusher.Flush()
	}
	return nil
}

// Close marks the stream terminated; later emissions are dropped
func (s *StreamEmitter) Close() {
	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()
}

// Failed reports whether a write failure has killed the stream
func (s *StreamEmitter) Failed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.dead
}
