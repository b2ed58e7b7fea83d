// Package events provides event types and subject helpers for the gateway
// event system.
package events

// Event types for mirrored runs
const (
	RunStream = "agui.run" // Base subject for mirrored AG-UI run events
)

// BuildRunStreamSubject creates a run stream subject for a specific thread
func BuildRunStreamSubject(threadID string) string {
	return RunStream + "." + threadID
}

// BuildRunStreamWildcardSubject creates a wildcard subscription for all run
// stream events. The multi-token wildcard keeps thread ids containing dots
// routable.
func BuildRunStreamWildcardSubject() string {
	return RunStream + ".>"
}
