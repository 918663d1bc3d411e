package session

import (
	"context"
	"sync"
	"time"

	"github.com/wavely/converse/internal/dialogue"
)

type memoryEntry struct {
	state     *dialogue.SessionState
	expiresAt time.Time
}

// MemoryStore is a mutex-guarded map for local development and tests.
// Entries are cloned on the way in and out so callers never share a
// live state pointer.
type MemoryStore struct {
	mu      sync.Mutex
	entries map[string]memoryEntry
	now     func() time.Time
}

var _ Store = (*MemoryStore)(nil)

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		entries: make(map[string]memoryEntry),
		now:     time.Now,
	}
}

func (s *MemoryStore) Get(_ context.Context, sessionID string) (*dialogue.SessionState, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	entry, ok := s.entries[sessionID]
	if !ok {
		return nil, ErrNotFound
	}
	if !entry.expiresAt.IsZero() && !s.now().Before(entry.expiresAt) {
		delete(s.entries, sessionID)
		return nil, ErrNotFound
	}
	return entry.state.Clone(), nil
}

func (s *MemoryStore) Put(_ context.Context, state *dialogue.SessionState, ttl time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	var deadline time.Time
	if ttl > 0 {
		deadline = s.now().Add(ttl)
	}
	s.entries[state.SessionID] = memoryEntry{state: state.Clone(), expiresAt: deadline}
	return nil
}

func (s *MemoryStore) Delete(_ context.Context, sessionID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.entries, sessionID)
	return nil
}
