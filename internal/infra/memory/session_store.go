package memory

import (
	"context"
	"sync"
	"time"

	"levelup-sidequest/internal/domain"
)

// SessionStore is an in-memory implementation of app.SessionStore.
type SessionStore struct {
	clock    func() time.Time
	mu       sync.RWMutex
	sessions map[string]domain.GameSession
}

func NewSessionStore() *SessionStore {
	return &SessionStore{
		clock:    time.Now,
		sessions: make(map[string]domain.GameSession),
	}
}

func (s *SessionStore) Save(_ context.Context, session domain.GameSession) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sessions[session.ID] = session
	return nil
}

func (s *SessionStore) Get(_ context.Context, sessionID string) (domain.GameSession, error) {
	s.mu.RLock()
	session, ok := s.sessions[sessionID]
	s.mu.RUnlock()
	if !ok {
		return domain.GameSession{}, domain.ErrSessionNotFound
	}
	if !session.ExpiresAt.After(s.clock()) {
		s.mu.Lock()
		delete(s.sessions, sessionID)
		s.mu.Unlock()
		return domain.GameSession{}, domain.ErrSessionNotFound
	}
	return session, nil
}

func (s *SessionStore) Delete(_ context.Context, sessionID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.sessions[sessionID]; !ok {
		return domain.ErrSessionNotFound
	}
	delete(s.sessions, sessionID)
	return nil
}
