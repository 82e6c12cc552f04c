package authinfra

import (
	"context"
	"sync"
	"time"

	"github.com/Abraxas-365/sentinel/pkg/iam/auth"
	"github.com/Abraxas-365/sentinel/pkg/kernel"
)

var _ auth.WebSessionStore = (*MemoryWebSessionStore)(nil)

type webSessionEntry struct {
	token     string
	expiresAt time.Time
}

// MemoryWebSessionStore is the single process vault used when Redis is
// not configured and in tests.
type MemoryWebSessionStore struct {
	mu      sync.RWMutex
	entries map[kernel.SessionID]webSessionEntry
	now     func() time.Time
}

func NewMemoryWebSessionStore() *MemoryWebSessionStore {
	return &MemoryWebSessionStore{
		entries: make(map[kernel.SessionID]webSessionEntry),
		now:     time.Now,
	}
}

func (s *MemoryWebSessionStore) Put(_ context.Context, id kernel.SessionID, accessToken string, ttl time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries[id] = webSessionEntry{token: accessToken, expiresAt: s.now().Add(ttl)}
	return nil
}

func (s *MemoryWebSessionStore) Get(_ context.Context, id kernel.SessionID) (string, error) {
	s.mu.RLock()
	e, ok := s.entries[id]
	s.mu.RUnlock()
	if !ok {
		return "", nil
	}
	if !s.now().Before(e.expiresAt) {
		s.mu.Lock()
		delete(s.entries, id)
		s.mu.Unlock()
		return "", nil
	}
	return e.token, nil
}

func (s *MemoryWebSessionStore) Delete(_ context.Context, id kernel.SessionID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.entries, id)
	return nil
}
