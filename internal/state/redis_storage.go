package state

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	sessionKeyPattern  = "booking:session:%d"
	sessionScanPattern = "booking:session:*"
	scanBatchSize      = 100
)

// RedisStorage persists booking sessions in Redis. Keys expire after ttl so
// abandoned conversations disappear even when no cleaner runs.
type RedisStorage struct {
	client *redis.Client
	ttl    time.Duration
	log    *slog.Logger
}

// NewRedisStorage initializes a Redis-backed Storage implementation.
func NewRedisStorage(client *redis.Client, ttl time.Duration, log *slog.Logger) *RedisStorage {
	if log == nil {
		log = slog.Default()
	}
	if ttl <= 0 {
		ttl = DefaultIdleTimeout
	}

	return &RedisStorage{
		client: client,
		ttl:    ttl,
		log:    log,
	}
}

// GetSession returns the stored session or ErrSessionNotFound when absent.
func (s *RedisStorage) GetSession(ctx context.Context, userID int64) (*Session, error) {
	data, err := s.client.Get(ctx, sessionKey(userID)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrSessionNotFound
		}

		s.log.Error("failed to get session from redis", slog.Int64("user_id", userID), slog.Any("error", err))
		return nil, err
	}

	var session Session
	if err := json.Unmarshal(data, &session); err != nil {
		s.log.Error("failed to decode session", slog.Int64("user_id", userID), slog.Any("error", err))
		return nil, err
	}

	return &session, nil
}

// SetSession saves the session and refreshes its expiry.
func (s *RedisStorage) SetSession(ctx context.Context, session *Session) error {
	session.UpdatedAt = time.Now().UTC()

	data, err := json.Marshal(session)
	if err != nil {
		s.log.Error("failed to encode session", slog.Int64("user_id", session.UserID), slog.Any("error", err))
		return err
	}

	if err := s.client.Set(ctx, sessionKey(session.UserID), data, s.ttl).Err(); err != nil {
		s.log.Error("failed to save session in redis", slog.Int64("user_id", session.UserID), slog.Any("error", err))
		return err
	}

	return nil
}

// ClearSession removes the stored session for the given user.
func (s *RedisStorage) ClearSession(ctx context.Context, userID int64) error {
	if err := s.client.Del(ctx, sessionKey(userID)).Err(); err != nil {
		s.log.Error("failed to clear session", slog.Int64("user_id", userID), slog.Any("error", err))
		return err
	}

	return nil
}

// GetAllSessions retrieves every stored session by scanning Redis keys.
func (s *RedisStorage) GetAllSessions(ctx context.Context) ([]*Session, error) {
	var (
		cursor uint64
		result []*Session
	)

	for {
		keys, nextCursor, err := s.client.Scan(ctx, cursor, sessionScanPattern, scanBatchSize).Result()
		if err != nil {
			s.log.Error("failed to scan sessions", slog.Any("error", err))
			return nil, err
		}

		for _, key := range keys {
			data, err := s.client.Get(ctx, key).Bytes()
			if err != nil {
				if errors.Is(err, redis.Nil) {
					continue
				}

				s.log.Error("failed to fetch session", slog.String("key", key), slog.Any("error", err))
				return nil, err
			}

			var session Session
			if err := json.Unmarshal(data, &session); err != nil {
				s.log.Error("failed to decode session", slog.String("key", key), slog.Any("error", err))
				continue
			}

			result = append(result, &session)
		}

		cursor = nextCursor
		if cursor == 0 {
			break
		}
	}

	return result, nil
}

func sessionKey(userID int64) string {
	return fmt.Sprintf(sessionKeyPattern, userID)
}
