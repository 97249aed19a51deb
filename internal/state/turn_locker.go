package state

import "sync"

// TurnLocker serializes turns of the same user inside one process while letting
// different users proceed concurrently.
type TurnLocker struct {
	mu    sync.Mutex
	turns map[int64]*turn
}

type turn struct {
	mu   sync.Mutex
	refs int
}

// NewTurnLocker creates an empty TurnLocker.
func NewTurnLocker() *TurnLocker {
	return &TurnLocker{turns: make(map[int64]*turn)}
}

// Lock blocks until the user's previous turn has finished and returns the release func.
func (l *TurnLocker) Lock(userID int64) func() {
	l.mu.Lock()
	t, ok := l.turns[userID]
	if !ok {
		t = &turn{}
		l.turns[userID] = t
	}
	t.refs++
	l.mu.Unlock()

	t.mu.Lock()

	return func() {
		t.mu.Unlock()

		l.mu.Lock()
		t.refs--
		if t.refs == 0 {
			delete(l.turns, userID)
		}
		l.mu.Unlock()
	}
}

// Len returns how many users currently hold or wait for a turn.
func (l *TurnLocker) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.turns)
}
