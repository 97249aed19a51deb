package verification

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
)

// PostgresStore keeps verification state in the verified_users and
// pending_challenges tables.
type PostgresStore struct {
	db  *sql.DB
	log *slog.Logger
}

// NewPostgresStore constructs a PostgresStore.
func NewPostgresStore(db *sql.DB, log *slog.Logger) *PostgresStore {
	if log == nil {
		log = slog.Default()
	}
	return &PostgresStore{db: db, log: log}
}

func (s *PostgresStore) IsVerified(ctx context.Context, userID int64) (bool, error) {
	const query = `SELECT EXISTS (SELECT 1 FROM verified_users WHERE user_id = $1)`

	var ok bool
	if err := s.db.QueryRowContext(ctx, query, userID).Scan(&ok); err != nil {
		s.log.Error("failed to check verified user", slog.Int64("user_id", userID), slog.Any("error", err))
		return false, fmt.Errorf("select verified user: %w", err)
	}
	return ok, nil
}

func (s *PostgresStore) MarkVerified(ctx context.Context, userID int64) error {
	const query = `
		INSERT INTO verified_users (user_id, verified_at)
		VALUES ($1, NOW())
		ON CONFLICT (user_id) DO NOTHING
	`

	if _, err := s.db.ExecContext(ctx, query, userID); err != nil {
		s.log.Error("failed to mark user verified", slog.Int64("user_id", userID), slog.Any("error", err))
		return fmt.Errorf("insert verified user: %w", err)
	}
	return nil
}

func (s *PostgresStore) SetPending(ctx context.Context, userID int64, answer int) error {
	const query = `
		INSERT INTO pending_challenges (user_id, answer, created_at)
		VALUES ($1, $2, NOW())
		ON CONFLICT (user_id) DO UPDATE SET answer = EXCLUDED.answer, created_at = EXCLUDED.created_at
	`

	if _, err := s.db.ExecContext(ctx, query, userID, answer); err != nil {
		return fmt.Errorf("upsert pending challenge: %w", err)
	}
	return nil
}

func (s *PostgresStore) Pending(ctx context.Context, userID int64) (int, bool, error) {
	const query = `SELECT answer FROM pending_challenges WHERE user_id = $1`

	var answer int
	if err := s.db.QueryRowContext(ctx, query, userID).Scan(&answer); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return 0, false, nil
		}
		return 0, false, fmt.Errorf("select pending challenge: %w", err)
	}
	return answer, true, nil
}

func (s *PostgresStore) ClearPending(ctx context.Context, userID int64) error {
	const query = `DELETE FROM pending_challenges WHERE user_id = $1`

	if _, err := s.db.ExecContext(ctx, query, userID); err != nil {
		return fmt.Errorf("delete pending challenge: %w", err)
	}
	return nil
}
