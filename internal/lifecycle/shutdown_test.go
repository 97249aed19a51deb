package lifecycle

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestShutdown_ExecuteRunsHooksInReverseOrder(t *testing.T) {
	s := NewShutdown(testLogger())

	var order []string
	for _, name := range []string{"redis", "bot", "server"} {
		s.Register(name, func(context.Context) error {
			order = append(order, name)
			return nil
		})
	}

	require.NoError(t, s.Execute(context.Background()))
	assert.Equal(t, []string{"server", "bot", "redis"}, order)
}

func TestShutdown_ExecuteJoinsErrors(t *testing.T) {
	s := NewShutdown(testLogger())
	errRedis := errors.New("redis close failed")
	errDB := errors.New("db close failed")

	var ran []string
	s.Register("db", func(context.Context) error {
		ran = append(ran, "db")
		return errDB
	})
	s.Register("cache", func(context.Context) error {
		ran = append(ran, "cache")
		return nil
	})
	s.Register("redis", func(context.Context) error {
		ran = append(ran, "redis")
		return errRedis
	})

	err := s.Execute(context.Background())

	require.Error(t, err)
	assert.ErrorIs(t, err, errRedis)
	assert.ErrorIs(t, err, errDB)
	assert.Contains(t, err.Error(), "redis: redis close failed")
	assert.Equal(t, []string{"redis", "cache", "db"}, ran)
}

func TestShutdown_ExecuteRunsOnce(t *testing.T) {
	s := NewShutdown(nil)
	calls := 0
	s.Register("bot", func(context.Context) error {
		calls++
		return nil
	})
	s.Register("ignored", nil)

	require.NoError(t, s.Execute(context.Background()))
	require.NoError(t, s.Execute(context.Background()))
	assert.Equal(t, 1, calls)
}
