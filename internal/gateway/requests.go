// Package gateway provides the HTTP surface of the AG-UI gateway: the run
// endpoint streaming server-sent events, thread registry endpoints, event
// replay, and the middleware stack in front of them.
package gateway

import (
	"time"

	"github.com/kandev/agui-gateway/pkg/agui"
)

// Response types

// ThreadResponse represents a thread in API responses. The session key stays
// internal; clients address threads by id only.
type ThreadResponse struct {
	ID        string     `json:"id"`
	CreatedAt time.Time  `json:"createdAt"`
	UpdatedAt time.Time  `json:"updatedAt"`
	LastRunAt *time.Time `json:"lastRunAt,omitempty"`
}

// ThreadsListResponse for listing threads
type ThreadsListResponse struct {
	Threads []*ThreadResponse `json:"threads"`
	Total   int               `json:"total"`
}

// ThreadEventsResponse carries replayed events for a thread
type ThreadEventsResponse struct {
	ThreadID string       `json:"threadId"`
	Events   []agui.Event `json:"events"`
	Total    int          `json:"total"`
}

// HealthResponse for health check
type HealthResponse struct {
	Status    string    `json:"status"`
	Service   string    `json:"service"`
	Timestamp time.Time `json:"timestamp"`
}
