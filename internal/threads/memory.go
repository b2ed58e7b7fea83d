package threads

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	apperrors "github.com/kandev/agui-gateway/internal/common/errors"
)

// MemoryStore keeps threads in process memory. Suitable for development and
// tests; threads do not survive a restart.
type MemoryStore struct {
	mu      sync.RWMutex
	threads map[string]*Thread
}

var _ Store = (*MemoryStore)(nil)

// NewMemoryStore creates an empty in-memory thread store
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		threads: make(map[string]*Thread),
	}
}

// Resolve returns the thread with the given id, creating it if needed
func (s *MemoryStore) Resolve(ctx context.Context, threadID string) (*Thread, error) {
	if threadID == "" {
		return nil, apperrors.BadRequest("thread id is required")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if thread, ok := s.threads[threadID]; ok {
		out := *thread
		return &out, nil
	}

	now := time.Now().UTC()
	thread := &Thread{
		ID:         threadID,
		SessionKey: uuid.New().String(),
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	s.threads[threadID] = thread

	out := *thread
	return &out, nil
}

// Get returns the thread with the given id
func (s *MemoryStore) Get(ctx context.Context, threadID string) (*Thread, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	thread, ok := s.threads[threadID]
	if !ok {
		return nil, apperrors.NotFound("thread", threadID)
	}
	out := *thread
	return &out, nil
}

// List returns all threads, newest first
func (s *MemoryStore) List(ctx context.Context) ([]*Thread, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]*Thread, 0, len(s.threads))
	for _, thread := range s.threads {
		out := *thread
		result = append(result, &out)
	}
	sort.Slice(result, func(i, j int) bool {
		return result[i].CreatedAt.After(result[j].CreatedAt)
	})
	return result, nil
}

// Touch records that a run started on the thread at the given time
func (s *MemoryStore) Touch(ctx context.Context, threadID string, lastRunAt time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	thread, ok := s.threads[threadID]
	if !ok {
		return apperrors.NotFound("thread", threadID)
	}
	thread.LastRunAt = lastRunAt
	thread.UpdatedAt = time.Now().UTC()
	return nil
}

// Delete removes a thread
func (s *MemoryStore) Delete(ctx context.Context, threadID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.threads[threadID]; !ok {
		return apperrors.NotFound("thread", threadID)
	}
	delete(s.threads, threadID)
	return nil
}

// Close is a no-op for the in-memory store
func (s *MemoryStore) Close() error {
	return nil
}
