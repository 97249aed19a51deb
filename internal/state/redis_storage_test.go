package state

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Proton-105/studio-booking-bot/internal/domain"
)

func sampleSession(userID int64) *Session {
	return &Session{
		UserID:    userID,
		ChatID:    userID,
		Username:  "ivan",
		State:     StateAwaitingMaster,
		Services:  []domain.Service{{ID: "1", Name: "Тату", DurationMinutes: 90, Price: 5000}},
		ServiceID: "1",
		Date:      "2026-10-20",
		Slots:     []string{"10:00", "11:30"},
		Time:      "11:30",
		Masters:   []domain.Master{{ID: "7", Name: "Аня", Active: true}},
	}
}

func TestRedisStorage_SetAndGet(t *testing.T) {
	client, cleanup := setupTestRedis(t)
	t.Cleanup(cleanup)

	storage := NewRedisStorage(client, time.Minute, testLogger())
	ctx := context.Background()
	session := sampleSession(123)

	require.NoError(t, storage.SetSession(ctx, session))
	assert.False(t, session.UpdatedAt.IsZero())

	result, err := storage.GetSession(ctx, 123)
	require.NoError(t, err)
	assert.Equal(t, StateAwaitingMaster, result.State)
	assert.Equal(t, session.Slots, result.Slots)

	svc, ok := result.SelectedService()
	require.True(t, ok)
	assert.Equal(t, 90, svc.DurationMinutes)

	master, ok := result.Master("7")
	require.True(t, ok)
	assert.True(t, master.Active)

	ttl, err := client.TTL(ctx, sessionKey(123)).Result()
	require.NoError(t, err)
	assert.Greater(t, ttl, time.Duration(0))
}

func TestRedisStorage_GetNotFound(t *testing.T) {
	client, cleanup := setupTestRedis(t)
	t.Cleanup(cleanup)

	storage := NewRedisStorage(client, time.Minute, testLogger())

	session, err := storage.GetSession(context.Background(), 999)
	assert.Nil(t, session)
	assert.ErrorIs(t, err, ErrSessionNotFound)
}

func TestRedisStorage_ClearAndList(t *testing.T) {
	client, cleanup := setupTestRedis(t)
	t.Cleanup(cleanup)

	storage := NewRedisStorage(client, time.Minute, testLogger())
	ctx := context.Background()

	require.NoError(t, storage.SetSession(ctx, sampleSession(1)))
	require.NoError(t, storage.SetSession(ctx, sampleSession(2)))

	all, err := storage.GetAllSessions(ctx)
	require.NoError(t, err)
	assert.Len(t, all, 2)

	require.NoError(t, storage.ClearSession(ctx, 1))

	_, err = storage.GetSession(ctx, 1)
	assert.ErrorIs(t, err, ErrSessionNotFound)

	all, err = storage.GetAllSessions(ctx)
	require.NoError(t, err)
	require.Len(t, all, 1)
	assert.Equal(t, int64(2), all[0].UserID)
}

func TestMemoryStorage_ReturnsCopies(t *testing.T) {
	storage := NewMemoryStorage()
	ctx := context.Background()

	require.NoError(t, storage.SetSession(ctx, sampleSession(5)))

	first, err := storage.GetSession(ctx, 5)
	require.NoError(t, err)
	first.Slots[0] = "mutated"
	first.Time = ""

	second, err := storage.GetSession(ctx, 5)
	require.NoError(t, err)
	assert.Equal(t, "10:00", second.Slots[0])
	assert.Equal(t, "11:30", second.Time)
}
