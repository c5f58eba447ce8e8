package server

import (
	"errors"
	"sync"

	"github.com/google/uuid"
	"github.com/kokukuma/mdoc-wallet/holder"
)

type Sessions struct {
	mu       sync.RWMutex
	sessions map[string]*holder.Session
}

func NewSessions() *Sessions {
	return &Sessions{
		sessions: make(map[string]*holder.Session),
	}
}

func (s *Sessions) Save(session *holder.Session) string {
	s.mu.Lock()
	defer s.mu.Unlock()

	id := uuid.New().String()
	s.sessions[id] = session
	return id
}

func (s *Sessions) Get(id string) (*holder.Session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	session, ok := s.sessions[id]
	if !ok {
		return nil, errors.New("session not found")
	}
	return session, nil
}
