package agui

// Emitter receives the events produced during one run. Implementations are
// bound per session key before a run starts and looked up by key at emission
// time; the hook caller and the binder are separate subsystems that never hold
// direct references to each other.
//
// Emit reports a write failure so the caller can stop producing, but callers
// are free to ignore it: a failed emitter absorbs all subsequent events.
type Emitter interface {
	Emit(event Event) error
}

// EmitterFunc adapts a function to the Emitter interface
type EmitterFunc func(event Event) error

// Emit calls f(event)
func (f EmitterFunc) Emit(event Event) error {
	return f(event)
}
