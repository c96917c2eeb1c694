package memory

import (
	"context"
	"sync"
	"time"

	"live-test-service/internal/domain"
)

// SessionStore is the in-process implementation of app.SessionStore. The
// map mutex is held across a whole TryUpdate round-trip, which gives the
// same all-or-nothing semantics a remote conditional write would: mutations
// run against a copy and the committed document only changes when both
// callbacks succeed.
type SessionStore struct {
	mu       sync.RWMutex
	sessions map[string]*domain.Session
}

func NewSessionStore() *SessionStore {
	return &SessionStore{sessions: make(map[string]*domain.Session)}
}

func (s *SessionStore) Create(_ context.Context, session *domain.Session) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.sessions[session.Code]; ok {
		return domain.ErrCodeTaken
	}
	s.sessions[session.Code] = session.Clone()
	return nil
}

func (s *SessionStore) Get(_ context.Context, code string) (domain.Session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	session, ok := s.sessions[code]
	if !ok {
		return domain.Session{}, domain.ErrSessionNotFound
	}
	return *session.Clone(), nil
}

func (s *SessionStore) TryUpdate(_ context.Context, code string, filter func(*domain.Session) error, mutate func(*domain.Session) error) (domain.Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	current, ok := s.sessions[code]
	if !ok {
		return domain.Session{}, domain.ErrSessionNotFound
	}
	if err := filter(current); err != nil {
		return domain.Session{}, err
	}
	next := current.Clone()
	if err := mutate(next); err != nil {
		return domain.Session{}, err
	}
	next.Version = current.Version + 1
	next.UpdatedAt = time.Now()
	s.sessions[code] = next
	return *next.Clone(), nil
}

func (s *SessionStore) Delete(_ context.Context, code string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.sessions[code]; !ok {
		return domain.ErrSessionNotFound
	}
	delete(s.sessions, code)
	return nil
}

func (s *SessionStore) Codes(_ context.Context) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	codes := make([]string, 0, len(s.sessions))
	for code := range s.sessions {
		codes = append(codes, code)
	}
	return codes, nil
}
