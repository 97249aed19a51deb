package ratelimit

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Proton-105/studio-booking-bot/pkg/config"
)

func setupTestRedis(t *testing.T) (*redis.Client, func()) {
	t.Helper()

	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{
		Addr: mr.Addr(),
	})

	cleanup := func() {
		_ = client.Close()
		mr.Close()
	}

	return client, cleanup
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type clock struct {
	at time.Time
}

func (c *clock) now() time.Time { return c.at }

func limiters(t *testing.T, clk *clock) map[string]Limiter {
	t.Helper()

	client, cleanup := setupTestRedis(t)
	t.Cleanup(cleanup)

	redisLimiter := NewRedisLimiter(client, testLogger())
	redisLimiter.now = clk.now
	memoryLimiter := NewMemoryLimiter()
	memoryLimiter.now = clk.now

	return map[string]Limiter{
		"redis":  redisLimiter,
		"memory": memoryLimiter,
	}
}

func TestLimiter_BlocksWhenExceeded(t *testing.T) {
	clk := &clock{at: time.Date(2025, 3, 10, 12, 0, 0, 0, time.UTC)}

	for name, limiter := range limiters(t, clk) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()

			for i := 0; i < 4; i++ {
				clk.at = clk.at.Add(time.Millisecond)
				result, err := limiter.Check(ctx, "user:1", 3, time.Minute)
				require.NoError(t, err)
				assert.Equal(t, i < 3, result.Allowed, "hit %d", i)
			}

			result, err := limiter.Check(ctx, "user:2", 3, time.Minute)
			require.NoError(t, err)
			assert.True(t, result.Allowed)
			assert.Equal(t, 2, result.Remaining)
		})
	}
}

func TestLimiter_SlidingWindow(t *testing.T) {
	clk := &clock{at: time.Date(2025, 3, 10, 12, 0, 0, 0, time.UTC)}

	for name, limiter := range limiters(t, clk) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			start := clk.at

			for i := 0; i < 2; i++ {
				clk.at = clk.at.Add(time.Millisecond)
				result, err := limiter.Check(ctx, "window", 2, time.Second)
				require.NoError(t, err)
				assert.True(t, result.Allowed)
			}

			clk.at = clk.at.Add(time.Millisecond)
			result, err := limiter.Check(ctx, "window", 2, time.Second)
			require.NoError(t, err)
			assert.False(t, result.Allowed)
			assert.Zero(t, result.Remaining)

			clk.at = start.Add(1100 * time.Millisecond)
			result, err = limiter.Check(ctx, "window", 2, time.Second)
			require.NoError(t, err)
			assert.True(t, result.Allowed)
		})
	}
}

func TestRedisLimiter_DeniedHitsDoNotExtendBlock(t *testing.T) {
	client, cleanup := setupTestRedis(t)
	t.Cleanup(cleanup)

	clk := &clock{at: time.Date(2025, 3, 10, 12, 0, 0, 0, time.UTC)}
	limiter := NewRedisLimiter(client, testLogger())
	limiter.now = clk.now
	ctx := context.Background()

	_, err := limiter.Check(ctx, "spam", 1, time.Second)
	require.NoError(t, err)

	for i := 0; i < 5; i++ {
		clk.at = clk.at.Add(100 * time.Millisecond)
		result, err := limiter.Check(ctx, "spam", 1, time.Second)
		require.NoError(t, err)
		assert.False(t, result.Allowed)
	}

	card, err := client.ZCard(ctx, keyPrefix+"spam").Result()
	require.NoError(t, err)
	assert.Equal(t, int64(1), card)
}

type brokenLimiter struct{}

func (brokenLimiter) Check(context.Context, string, int, time.Duration) (*Result, error) {
	return nil, errors.New("connection refused")
}

func TestAdaptiveLimiter_FallsBackWithHalfLimit(t *testing.T) {
	limiter := NewAdaptiveLimiter(brokenLimiter{}, NewMemoryLimiter(), testLogger())
	ctx := context.Background()

	allowed := 0
	for i := 0; i < 10; i++ {
		result, err := limiter.Check(ctx, "user:1", 6, time.Minute)
		require.NoError(t, err)
		if result.Allowed {
			allowed++
		}
	}
	assert.Equal(t, 3, allowed)
}

func TestMemoryLimiter_Cleanup(t *testing.T) {
	clk := &clock{at: time.Date(2025, 3, 10, 12, 0, 0, 0, time.UTC)}
	limiter := NewMemoryLimiter()
	limiter.now = clk.now
	ctx := context.Background()

	_, _ = limiter.Check(ctx, "old", 5, time.Minute)
	clk.at = clk.at.Add(10 * time.Minute)
	_, _ = limiter.Check(ctx, "fresh", 5, time.Minute)

	assert.Equal(t, 1, limiter.Cleanup(5*time.Minute))
	assert.Equal(t, 1, limiter.Len())
}

func TestNewRules(t *testing.T) {
	rules, err := NewRules(config.RateLimitConfig{
		PerUser:   config.RateLimitRule{Limit: 30, Window: "1m"},
		Booking:   config.RateLimitRule{Limit: 5, Window: "10m"},
		Whitelist: []int64{42},
	})
	require.NoError(t, err)

	assert.Equal(t, Rule{Name: RulePerUser, Limit: 30, Window: time.Minute}, rules.PerUser)
	assert.Equal(t, Rule{Name: RuleBooking, Limit: 5, Window: 10 * time.Minute}, rules.Booking)
	assert.Equal(t, "booking:7", rules.Booking.Key(7))
	assert.True(t, rules.IsWhitelisted(42))
	assert.False(t, rules.IsWhitelisted(7))

	testCases := []config.RateLimitRule{
		{Limit: 5},
		{Limit: 5, Window: "soon"},
		{Limit: 0, Window: "1m"},
	}
	for _, rule := range testCases {
		_, err := NewRules(config.RateLimitConfig{PerUser: rule, Booking: config.RateLimitRule{Limit: 1, Window: "1m"}})
		assert.Error(t, err, "rule %+v", rule)
	}
}
