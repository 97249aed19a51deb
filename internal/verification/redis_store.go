package verification

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	verifiedKeyPattern = "verify:user:%d"
	pendingKeyPattern  = "verify:pending:%d"

	// PendingTTL bounds how long an unanswered challenge is kept.
	PendingTTL = 24 * time.Hour
)

// RedisStore shares verification state between bot instances.
type RedisStore struct {
	client *redis.Client
}

// NewRedisStore constructs a RedisStore.
func NewRedisStore(client *redis.Client) *RedisStore {
	return &RedisStore{client: client}
}

func (s *RedisStore) IsVerified(ctx context.Context, userID int64) (bool, error) {
	n, err := s.client.Exists(ctx, fmt.Sprintf(verifiedKeyPattern, userID)).Result()
	if err != nil {
		return false, fmt.Errorf("check verified user: %w", err)
	}
	return n > 0, nil
}

func (s *RedisStore) MarkVerified(ctx context.Context, userID int64) error {
	if err := s.client.Set(ctx, fmt.Sprintf(verifiedKeyPattern, userID), time.Now().UTC().Unix(), 0).Err(); err != nil {
		return fmt.Errorf("mark user verified: %w", err)
	}
	return nil
}

func (s *RedisStore) SetPending(ctx context.Context, userID int64, answer int) error {
	if err := s.client.Set(ctx, fmt.Sprintf(pendingKeyPattern, userID), answer, PendingTTL).Err(); err != nil {
		return fmt.Errorf("store pending challenge: %w", err)
	}
	return nil
}

func (s *RedisStore) Pending(ctx context.Context, userID int64) (int, bool, error) {
	answer, err := s.client.Get(ctx, fmt.Sprintf(pendingKeyPattern, userID)).Int()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return 0, false, nil
		}
		return 0, false, fmt.Errorf("load pending challenge: %w", err)
	}
	return answer, true, nil
}

func (s *RedisStore) ClearPending(ctx context.Context, userID int64) error {
	if err := s.client.Del(ctx, fmt.Sprintf(pendingKeyPattern, userID)).Err(); err != nil {
		return fmt.Errorf("clear pending challenge: %w", err)
	}
	return nil
}
