// internal/session/memory.go
package session

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/Corphon/OverwatchVoice/internal/models"
)

// MemoryStore implements Store using an in-memory map.
type MemoryStore struct {
	mu       sync.RWMutex
	sessions map[string]models.SessionInfo
}

// NewMemoryStore creates a new in-memory session store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{sessions: make(map[string]models.SessionInfo)}
}

// Put implements Store.
func (s *MemoryStore) Put(ctx context.Context, info models.SessionInfo) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sessions[info.ID] = info
	return nil
}

// Touch implements Store.
func (s *MemoryStore) Touch(ctx context.Context, id, state string, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	info, ok := s.sessions[id]
	if !ok {
		return ErrNotFound
	}
	info.State = state
	info.LastActivity = at
	s.sessions[id] = info
	return nil
}

// Delete implements Store.
func (s *MemoryStore) Delete(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.sessions, id)
	return nil
}

// List implements Store. Entries are ordered by connection time.
func (s *MemoryStore) List(ctx context.Context) ([]models.SessionInfo, error) {
	s.mu.RLock()
	out := make([]models.SessionInfo, 0, len(s.sessions))
	for _, info := range s.sessions {
		out = append(out, info)
	}
	s.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool { return out[i].ConnectedAt.Before(out[j].ConnectedAt) })
	return out, nil
}

// Close implements Store.
func (s *MemoryStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sessions = make(map[string]models.SessionInfo)
	return nil
}
