package state

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

const (
	sessionLockKeyPattern = "booking:lock:%d"
	lockTTL               = 5 * time.Second

	// DefaultIdleTimeout is how long an untouched conversation survives.
	DefaultIdleTimeout = 30 * time.Minute
)

var (
	// ErrInvalidTransition indicates that a requested FSM transition is not allowed.
	ErrInvalidTransition = errors.New("invalid state transition")
	// ErrSessionNotFound indicates that the user has no conversation in progress.
	ErrSessionNotFound = errors.New("booking session not found")
	// ErrSessionExpired indicates that the conversation was idle for too long.
	ErrSessionExpired = errors.New("booking session expired")
	// ErrStateLocked indicates that a concurrent operation already holds the lock.
	ErrStateLocked = errors.New("state is locked, try again later")
)

var unlockScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

var transitionRecorder = func(from, to string) {}

// RegisterTransitionRecorder allows external packages to observe FSM transitions.
func RegisterTransitionRecorder(recorder func(from, to string)) {
	if recorder == nil {
		transitionRecorder = func(string, string) {}
		return
	}

	transitionRecorder = recorder
}

// StateMachine describes the operations supported by the FSM controller.
type StateMachine interface {
	GetSession(ctx context.Context, userID int64) (*Session, error)
	TransitionTo(ctx context.Context, session *Session, next State) error
	ClearSession(ctx context.Context, userID int64) error
	GetAllSessions(ctx context.Context) ([]*Session, error)
}

// machine is a concrete implementation of StateMachine backed by Storage and Redis locking.
type machine struct {
	storage     Storage
	log         *slog.Logger
	redisClient *redis.Client
	idleTimeout time.Duration
	now         func() time.Time
}

// NewStateMachine creates a FSM controller using the provided storage backend and
// redis client for locking. A nil client disables cross-instance locking.
func NewStateMachine(storage Storage, log *slog.Logger, redisClient *redis.Client, idleTimeout time.Duration) StateMachine {
	if log == nil {
		log = slog.Default()
	}
	if idleTimeout <= 0 {
		idleTimeout = DefaultIdleTimeout
	}
	if redisClient == nil {
		log.Warn("redis client not configured for session locks; relying on in-process serialization")
	}

	return &machine{
		storage:     storage,
		log:         log,
		redisClient: redisClient,
		idleTimeout: idleTimeout,
		now:         time.Now,
	}
}

// GetSession returns the live session of the user. Sessions idle for longer than the
// idle timeout are discarded and reported as ErrSessionExpired.
func (m *machine) GetSession(ctx context.Context, userID int64) (*Session, error) {
	session, err := m.storage.GetSession(ctx, userID)
	if err != nil {
		return nil, err
	}

	if !session.UpdatedAt.IsZero() && m.now().Sub(session.UpdatedAt) > m.idleTimeout {
		if err := m.storage.ClearSession(ctx, userID); err != nil {
			m.log.Warn("failed to drop expired session", slog.Int64("user_id", userID), slog.Any("error", err))
		}
		return nil, ErrSessionExpired
	}

	return session, nil
}

// GetAllSessions returns every persisted session.
func (m *machine) GetAllSessions(ctx context.Context) ([]*Session, error) {
	return m.storage.GetAllSessions(ctx)
}

// TransitionTo moves the session to next and persists it, guarded by a lock. The
// move is validated against the stored state, not the caller's copy.
func (m *machine) TransitionTo(ctx context.Context, session *Session, next State) error {
	if session == nil {
		return ErrSessionNotFound
	}

	token, err := m.lock(ctx, session.UserID)
	if err != nil {
		return err
	}
	defer m.unlock(ctx, session.UserID, token)

	current := StateIdle

	stored, err := m.storage.GetSession(ctx, session.UserID)
	if err != nil {
		if !errors.Is(err, ErrSessionNotFound) {
			return err
		}
	} else if stored != nil {
		current = stored.State
	}

	if !IsTransitionAllowed(current, next) {
		m.log.Warn("invalid state transition",
			slog.Int64("user_id", session.UserID),
			slog.String("from", string(current)),
			slog.String("to", string(next)),
		)
		return ErrInvalidTransition
	}

	session.State = next
	if err := m.storage.SetSession(ctx, session); err != nil {
		return err
	}

	if current != next {
		transitionRecorder(string(current), string(next))
	}
	return nil
}

// ClearSession removes the stored session via the backing storage while holding the lock.
func (m *machine) ClearSession(ctx context.Context, userID int64) error {
	token, err := m.lock(ctx, userID)
	if err != nil {
		return err
	}
	defer m.unlock(ctx, userID, token)

	return m.storage.ClearSession(ctx, userID)
}

func (m *machine) lock(ctx context.Context, userID int64) (string, error) {
	if m.redisClient == nil {
		return "", nil
	}

	token := uuid.NewString()
	acquired, err := m.redisClient.SetNX(ctx, lockKey(userID), token, lockTTL).Result()
	if err != nil {
		m.log.Error("failed to acquire session lock", slog.Int64("user_id", userID), slog.Any("error", err))
		return "", err
	}

	if !acquired {
		m.log.Warn("session lock already held", slog.Int64("user_id", userID))
		return "", ErrStateLocked
	}

	return token, nil
}

func (m *machine) unlock(ctx context.Context, userID int64, token string) {
	if m.redisClient == nil || token == "" {
		return
	}

	if err := unlockScript.Run(ctx, m.redisClient, []string{lockKey(userID)}, token).Err(); err != nil {
		m.log.Error("failed to release session lock", slog.Int64("user_id", userID), slog.Any("error", err))
	}
}

func lockKey(userID int64) string {
	return fmt.Sprintf(sessionLockKeyPattern, userID)
}
