package verification

import (
	"context"
	"sync"
)

// Store persists verified users and pending challenge answers.
type Store interface {
	IsVerified(ctx context.Context, userID int64) (bool, error)
	MarkVerified(ctx context.Context, userID int64) error
	SetPending(ctx context.Context, userID int64, answer int) error
	// Pending returns the expected answer and whether one exists.
	Pending(ctx context.Context, userID int64) (int, bool, error)
	ClearPending(ctx context.Context, userID int64) error
}

// MemoryStore keeps verification state for the life of the process.
type MemoryStore struct {
	mu       sync.RWMutex
	verified map[int64]struct{}
	pending  map[int64]int
}

// NewMemoryStore constructs an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		verified: make(map[int64]struct{}),
		pending:  make(map[int64]int),
	}
}

func (s *MemoryStore) IsVerified(_ context.Context, userID int64) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	_, ok := s.verified[userID]
	return ok, nil
}

func (s *MemoryStore) MarkVerified(_ context.Context, userID int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.verified[userID] = struct{}{}
	return nil
}

func (s *MemoryStore) SetPending(_ context.Context, userID int64, answer int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.pending[userID] = answer
	return nil
}

func (s *MemoryStore) Pending(_ context.Context, userID int64) (int, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	answer, ok := s.pending[userID]
	return answer, ok, nil
}

func (s *MemoryStore) ClearPending(_ context.Context, userID int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.pending, userID)
	return nil
}
