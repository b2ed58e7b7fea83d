// Package threads persists the conversation threads exposed to AG-UI
// clients. A thread owns a stable session key correlating bridge state across
// its runs, and remembers when its last run started so the next run can ask
// the pipeline only for what happened since.
package threads

import (
	"context"
	"time"
)

// Thread is one conversation context
type Thread struct {
	ID         string    `json:"id"`
	SessionKey string    `json:"sessionKey"`
	CreatedAt  time.Time `json:"createdAt"`
	UpdatedAt  time.Time `json:"updatedAt"`
	LastRunAt  time.Time `json:"lastRunAt"`
}

// Store defines thread persistence operations
type Store interface {
	// Resolve returns the thread with the given id, creating it with a
	// fresh session key when it does not exist yet.
	Resolve(ctx context.Context, threadID string) (*Thread, error)

	// Get returns the thread with the given id
	Get(ctx context.Context, threadID string) (*Thread, error)

	// List returns all threads, newest first
	List(ctx context.Context) ([]*Thread, error)

	// Touch records that a run started on the thread at the given time
	Touch(ctx context.Context, threadID string, lastRunAt time.Time) error

	// Delete removes a thread
	Delete(ctx context.Context, threadID string) error

	// Close releases any underlying resources
	Close() error
}
