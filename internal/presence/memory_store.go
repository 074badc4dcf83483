package presence

import (
	"context"
	"sync"
	"time"
)

type memberEntry struct {
	sessionID string
	expiresAt time.Time
}

// memoryStore is an in-memory PresenceStore for tests and single-node runs.
type memoryStore struct {
	mu       sync.Mutex
	viewers  map[string]*memberEntry        // viewerID -> attachment
	sessions map[string]map[string]struct{} // sessionID -> viewer set
	now      func() time.Time
}

// NewMemoryStore creates an in-memory presence store.
func NewMemoryStore() PresenceStore {
	return &memoryStore{
		viewers:  make(map[string]*memberEntry),
		sessions: make(map[string]map[string]struct{}),
		now:      time.Now,
	}
}

func (s *memoryStore) Add(_ context.Context, sessionID, viewerID string, ttl time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if prev, ok := s.viewers[viewerID]; ok && prev.sessionID != sessionID {
		s.detachLocked(viewerID, prev.sessionID)
	}
	s.viewers[viewerID] = &memberEntry{sessionID: sessionID, expiresAt: s.now().Add(ttl)}
	if s.sessions[sessionID] == nil {
		s.sessions[sessionID] = make(map[string]struct{})
	}
	s.sessions[sessionID][viewerID] = struct{}{}
	return nil
}

func (s *memoryStore) Refresh(_ context.Context, viewerID string, ttl time.Duration) (string, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	entry, ok := s.viewers[viewerID]
	if !ok || s.now().After(entry.expiresAt) {
		return "", false, nil
	}
	entry.expiresAt = s.now().Add(ttl)
	return entry.sessionID, true, nil
}

func (s *memoryStore) Remove(_ context.Context, viewerID string) (string, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	entry, ok := s.viewers[viewerID]
	if !ok {
		return "", false, nil
	}
	s.detachLocked(viewerID, entry.sessionID)
	return entry.sessionID, true, nil
}

func (s *memoryStore) detachLocked(viewerID, sessionID string) {
	delete(s.viewers, viewerID)
	if set, ok := s.sessions[sessionID]; ok {
		delete(set, viewerID)
		if len(set) == 0 {
			delete(s.sessions, sessionID)
		}
	}
}

func (s *memoryStore) Count(_ context.Context, sessionID string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.sessions[sessionID]), nil
}

func (s *memoryStore) Members(_ context.Context, sessionID string) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	members := make([]string, 0, len(s.sessions[sessionID]))
	for viewerID := range s.sessions[sessionID] {
		members = append(members, viewerID)
	}
	return members, nil
}

func (s *memoryStore) Sessions(_ context.Context) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sessions := make([]string, 0, len(s.sessions))
	for sessionID := range s.sessions {
		sessions = append(sessions, sessionID)
	}
	return sessions, nil
}

func (s *memoryStore) Sweep(_ context.Context) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	changedSet := make(map[string]struct{})
	for viewerID, entry := range s.viewers {
		if now.After(entry.expiresAt) {
			changedSet[entry.sessionID] = struct{}{}
			s.detachLocked(viewerID, entry.sessionID)
		}
	}

	changed := make([]string, 0, len(changedSet))
	for sessionID := range changedSet {
		changed = append(changed, sessionID)
	}
	return changed, nil
}

func (s *memoryStore) RemoveSession(_ context.Context, sessionID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for viewerID := range s.sessions[sessionID] {
		delete(s.viewers, viewerID)
	}
	delete(s.sessions, sessionID)
	return nil
}

func (s *memoryStore) Close() error {
	return nil
}
