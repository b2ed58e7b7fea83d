// Package bridge translates the host pipeline's reply-dispatch callbacks into
// ordered AG-UI event streams, one run at a time.
//
// The pipeline invokes the tool lifecycle hooks with no call-graph link back
// to the request handler, so all per-run state is held in a shared Store keyed
// by session key. Binding an emitter under that key before dispatch is what
// connects the two sides; clearing it afterwards is mandatory.
package bridge

import (
	"sync"

	"github.com/kandev/agui-gateway/pkg/agui"
)

// Store holds the mutable per-session state of in-flight runs: the bound
// emitter and run message id, stashed client tool definitions, the pending
// tool-call stack, the client-tool-name set, and two run flags. Every read
// returns a safe default for an unknown key and every clear is a no-op when
// nothing is bound, so callers never check for prior initialization.
//
// Two concurrent runs sharing one session key are not isolated: the second
// bind overwrites the first and the stack and flags are shared. Runs on
// distinct keys never interfere.
type Store struct {
	mu               sync.RWMutex
	emitters         map[string]agui.Emitter
	messageIDs       map[string]string
	stashedTools     map[string][]agui.ToolDef
	pendingCalls     map[string][]string
	clientToolNames  map[string]map[string]struct{}
	toolFired        map[string]bool
	clientToolCalled map[string]bool
}

// NewStore creates an empty session state store
func NewStore() *Store {
	return &Store{
		emitters:         make(map[string]agui.Emitter),
		messageIDs:       make(map[string]string),
		stashedTools:     make(map[string][]agui.ToolDef),
		pendingCalls:     make(map[string][]string),
		clientToolNames:  make(map[string]map[string]struct{}),
		toolFired:        make(map[string]bool),
		clientToolCalled: make(map[string]bool),
	}
}

// BindEmitter associates an emitter and the run's message id with a session
// key, overwriting any previous binding.
func (s *Store) BindEmitter(key string, emitter agui.Emitter, messageID string) {
	if key == "" {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.emitters[key] = emitter
	s.messageIDs[key] = messageID
}

// Emitter returns the emitter bound to the session key, or nil
func (s *Store) Emitter(key string) agui.Emitter {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.emitters[key]
}

// MessageID returns the run message id bound to the session key, or ""
func (s *Store) MessageID(key string) string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.messageIDs[key]
}

// ClearEmitter removes the emitter binding and message id for a session key
func (s *Store) ClearEmitter(key string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.emitters, key)
	delete(s.messageIDs, key)
}

// StashClientTools stores client-supplied tool definitions until the next
// drain. Restashing replaces any previous stash.
func (s *Store) StashClientTools(key string, defs []agui.ToolDef) {
	if key == "" || len(defs) == 0 {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stashedTools[key] = defs
}

// DrainClientTools removes and returns the stashed tool definitions for a
// session key. A second drain returns nil.
func (s *Store) DrainClientTools(key string) []agui.ToolDef {
	s.mu.Lock()
	defer s.mu.Unlock()
	defs := s.stashedTools[key]
	delete(s.stashedTools, key)
	return defs
}

// PushPendingCall records a host-executed tool call id awaiting completion
func (s *Store) PushPendingCall(key, toolCallID string) {
	if key == "" || toolCallID == "" {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pendingCalls[key] = append(s.pendingCalls[key], toolCallID)
}

// PopPendingCall removes and returns the most recently pushed call id for a
// session key, or "" when none is pending. Completions correlate
// last-in-first-out, which assumes host-executed tool calls within one run do
// not overlap in time.
func (s *Store) PopPendingCall(key string) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	stack := s.pendingCalls[key]
	if len(stack) == 0 {
		return ""
	}
	id := stack[len(stack)-1]
	if len(stack) == 1 {
		delete(s.pendingCalls, key)
	} else {
		s.pendingCalls[key] = stack[:len(stack)-1]
	}
	return id
}

// MarkClientTools adds tool names to the set understood to execute on the
// remote client for this session.
func (s *Store) MarkClientTools(key string, names ...string) {
	if key == "" {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	set := s.clientToolNames[key]
	if set == nil {
		set = make(map[string]struct{}, len(names))
		s.clientToolNames[key] = set
	}
	for _, name := range names {
		if name != "" {
			set[name] = struct{}{}
		}
	}
}

// IsClientTool reports whether the named tool is marked client-executed for
// the session key.
func (s *Store) IsClientTool(key, name string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.clientToolNames[key][name]
	return ok
}

// ClearClientTools removes the client-tool-name set for a session key
func (s *Store) ClearClientTools(key string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.clientToolNames, key)
}

// SetToolFired records that a tool fired during the current run
func (s *Store) SetToolFired(key string) {
	if key == "" {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.toolFired[key] = true
}

// ToolFired reports whether any tool fired during the current run
func (s *Store) ToolFired(key string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.toolFired[key]
}

// ClearToolFired resets the tool-fired flag for a session key
func (s *Store) ClearToolFired(key string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.toolFired, key)
}

// SetClientToolCalled records that a client-executed tool was called during
// the current run. Once set, no further assistant text is emitted for the run.
func (s *Store) SetClientToolCalled(key string) {
	if key == "" {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.clientToolCalled[key] = true
}

// ClientToolCalled reports whether a client-executed tool was called during
// the current run.
func (s *Store) ClientToolCalled(key string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.clientToolCalled[key]
}

// ClearClientToolCalled resets the client-tool-called flag for a session key
func (s *Store) ClearClientToolCalled(key string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.clientToolCalled, key)
}

// Clear removes every piece of state bound to the session key: the emitter
// binding, stashed tools, the pending call stack, the client-tool-name set,
// and both run flags. Runs call this on every exit path so a finished run
// leaves nothing behind for its session.
func (s *Store) Clear(key string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.emitters, key)
	delete(s.messageIDs, key)
	delete(s.stashedTools, key)
	delete(s.pendingCalls, key)
	delete(s.clientToolNames, key)
	delete(s.toolFired, key)
	delete(s.clientToolCalled, key)
}
