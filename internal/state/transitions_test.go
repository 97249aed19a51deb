package state

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Proton-105/studio-booking-bot/internal/domain"
)

func TestIsTransitionAllowed(t *testing.T) {
	testCases := []struct {
		name     string
		from     State
		to       State
		expected bool
	}{
		{name: "idle to service", from: StateIdle, to: StateAwaitingService, expected: true},
		{name: "service to date", from: StateAwaitingService, to: StateAwaitingDate, expected: true},
		{name: "date to time", from: StateAwaitingDate, to: StateAwaitingTime, expected: true},
		{name: "time to master", from: StateAwaitingTime, to: StateAwaitingMaster, expected: true},
		{name: "master to name", from: StateAwaitingMaster, to: StateAwaitingName, expected: true},
		{name: "name to phone", from: StateAwaitingName, to: StateAwaitingPhone, expected: true},
		{name: "time back to date", from: StateAwaitingTime, to: StateAwaitingDate, expected: true},
		{name: "phone rollback to time", from: StateAwaitingPhone, to: StateAwaitingTime, expected: true},
		{name: "re-prompt keeps state", from: StateAwaitingName, to: StateAwaitingName, expected: true},
		{name: "any state home", from: StateAwaitingMaster, to: StateIdle, expected: true},
		{name: "idle to date invalid", from: StateIdle, to: StateAwaitingDate, expected: false},
		{name: "service to time invalid", from: StateAwaitingService, to: StateAwaitingTime, expected: false},
		{name: "name to time invalid", from: StateAwaitingName, to: StateAwaitingTime, expected: false},
		{name: "unknown state invalid", from: State("unknown"), to: StateAwaitingDate, expected: false},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.expected, IsTransitionAllowed(tc.from, tc.to))
		})
	}
}

func TestPrevious(t *testing.T) {
	assert.Equal(t, StateIdle, Previous(StateAwaitingService))
	assert.Equal(t, StateAwaitingDate, Previous(StateAwaitingTime))
	assert.Equal(t, StateAwaitingName, Previous(StateAwaitingPhone))
	assert.Equal(t, StateIdle, Previous(StateIdle))

	for _, st := range BookingStates[1:] {
		assert.True(t, IsTransitionAllowed(st, Previous(st)), "back from %s must be allowed", st)
	}
}

func TestSession_ClearFrom(t *testing.T) {
	s := sampleSession(1)
	s.MasterID = "7"
	s.Name = "Иван"
	s.Phone = "+79991234567"
	require.True(t, s.Complete())

	s.ClearFrom(StateAwaitingName)
	assert.Empty(t, s.Name)
	assert.Empty(t, s.Phone)
	assert.Equal(t, domain.ID("7"), s.MasterID)
	assert.False(t, s.Complete())

	s.ClearFrom(StateAwaitingTime)
	assert.Empty(t, s.Time)
	assert.Empty(t, s.MasterID)
	assert.Nil(t, s.Masters)
	assert.Equal(t, "2026-10-20", s.Date)
	assert.NotEmpty(t, s.Slots)

	s.ClearFrom(StateAwaitingService)
	assert.Empty(t, s.ServiceID)
	assert.Empty(t, s.Date)
	assert.NotEmpty(t, s.Services, "the catalog stays for re-prompting")
}

func TestCleaner_RemovesIdleSessions(t *testing.T) {
	storage := NewMemoryStorage()
	ctx := context.Background()

	now := time.Now()
	storage.now = func() time.Time { return now.Add(-time.Hour) }
	require.NoError(t, storage.SetSession(ctx, sampleSession(1)))
	storage.now = func() time.Time { return now }
	require.NoError(t, storage.SetSession(ctx, sampleSession(2)))

	cleaner := NewCleaner(storage, testLogger(), 30*time.Minute, time.Minute)
	cleaner.now = func() time.Time { return now }

	assert.Equal(t, 1, cleaner.cleanup(ctx))

	_, err := storage.GetSession(ctx, 1)
	assert.ErrorIs(t, err, ErrSessionNotFound)
	_, err = storage.GetSession(ctx, 2)
	assert.NoError(t, err)
}

func TestTurnLocker_SerializesSameUser(t *testing.T) {
	locker := NewTurnLocker()

	var active, maxActive atomic.Int32
	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			unlock := locker.Lock(1)
			defer unlock()

			n := active.Add(1)
			for {
				cur := maxActive.Load()
				if n <= cur || maxActive.CompareAndSwap(cur, n) {
					break
				}
			}
			time.Sleep(time.Millisecond)
			active.Add(-1)
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(1), maxActive.Load())
	assert.Zero(t, locker.Len())
}

func TestTurnLocker_DifferentUsersRunConcurrently(t *testing.T) {
	locker := NewTurnLocker()

	unlockA := locker.Lock(1)
	done := make(chan struct{})
	go func() {
		unlockB := locker.Lock(2)
		unlockB()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("second user blocked by first user's turn")
	}
	unlockA()
}
