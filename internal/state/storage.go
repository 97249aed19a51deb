// Package state keeps booking conversations between turns.
package state

import (
	"context"
	"sync"
	"time"
)

// Storage defines the persistence contract for booking sessions.
type Storage interface {
	// GetSession returns the session of the specified user or ErrSessionNotFound.
	GetSession(ctx context.Context, userID int64) (*Session, error)
	// SetSession saves the session under its UserID.
	SetSession(ctx context.Context, session *Session) error
	// ClearSession removes the session of the specified user.
	ClearSession(ctx context.Context, userID int64) error
	// GetAllSessions returns every stored session.
	GetAllSessions(ctx context.Context) ([]*Session, error)
}

// MemoryStorage keeps sessions in process memory.
type MemoryStorage struct {
	mu       sync.RWMutex
	sessions map[int64]*Session
	now      func() time.Time
}

// NewMemoryStorage creates an empty in-process Storage.
func NewMemoryStorage() *MemoryStorage {
	return &MemoryStorage{
		sessions: make(map[int64]*Session),
		now:      time.Now,
	}
}

func (s *MemoryStorage) GetSession(_ context.Context, userID int64) (*Session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	session, ok := s.sessions[userID]
	if !ok {
		return nil, ErrSessionNotFound
	}
	return session.Clone(), nil
}

func (s *MemoryStorage) SetSession(_ context.Context, session *Session) error {
	session.UpdatedAt = s.now().UTC()

	s.mu.Lock()
	s.sessions[session.UserID] = session.Clone()
	s.mu.Unlock()
	return nil
}

func (s *MemoryStorage) ClearSession(_ context.Context, userID int64) error {
	s.mu.Lock()
	delete(s.sessions, userID)
	s.mu.Unlock()
	return nil
}

func (s *MemoryStorage) GetAllSessions(_ context.Context) ([]*Session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]*Session, 0, len(s.sessions))
	for _, session := range s.sessions {
		out = append(out, session.Clone())
	}
	return out, nil
}
