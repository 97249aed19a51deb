// Package verification gates first contact behind a small arithmetic challenge.
package verification

import (
	"context"
	"log/slog"
	"math/rand/v2"
	"strconv"
	"strings"
)

// Outcome is the result of checking an answer.
type Outcome int

const (
	// OutcomeNoChallenge means the user has nothing pending.
	OutcomeNoChallenge Outcome = iota
	// OutcomeWrong means the answer did not match. The challenge stays pending.
	OutcomeWrong
	// OutcomeVerified means the user passed and is now verified.
	OutcomeVerified
)

// Challenge is an addition of two numbers from 1 to 9.
type Challenge struct {
	A int
	B int
}

// Answer returns the expected reply.
func (c Challenge) Answer() int {
	return c.A + c.B
}

// Service issues and checks challenges against a Store.
type Service struct {
	store    Store
	required bool
	log      *slog.Logger
	intn     func(n int) int
}

// NewService constructs a Service. When required is false every user counts as
// verified and no challenge is ever issued.
func NewService(store Store, required bool, log *slog.Logger) *Service {
	if log == nil {
		log = slog.Default()
	}
	if store == nil {
		store = NewMemoryStore()
	}

	return &Service{
		store:    store,
		required: required,
		log:      log,
		intn:     rand.IntN,
	}
}

// IsVerified reports whether the user may use the bot. Store failures let the user
// through.
func (s *Service) IsVerified(ctx context.Context, userID int64) bool {
	if !s.required {
		return true
	}

	ok, err := s.store.IsVerified(ctx, userID)
	if err != nil {
		s.log.WarnContext(ctx, "verification lookup failed, letting user through",
			slog.Int64("user_id", userID),
			slog.Any("error", err),
		)
		return true
	}
	return ok
}

// Issue creates a new challenge for the user, replacing any pending one.
func (s *Service) Issue(ctx context.Context, userID int64) (Challenge, error) {
	c := Challenge{A: s.intn(9) + 1, B: s.intn(9) + 1}
	if err := s.store.SetPending(ctx, userID, c.Answer()); err != nil {
		return Challenge{}, err
	}

	s.log.DebugContext(ctx, "challenge issued", slog.Int64("user_id", userID))
	return c, nil
}

// Check compares text with the pending answer.
func (s *Service) Check(ctx context.Context, userID int64, text string) (Outcome, error) {
	expected, ok, err := s.store.Pending(ctx, userID)
	if err != nil {
		return OutcomeNoChallenge, err
	}
	if !ok {
		return OutcomeNoChallenge, nil
	}

	got, err := strconv.Atoi(strings.TrimSpace(text))
	if err != nil || got != expected {
		return OutcomeWrong, nil
	}

	if err := s.store.MarkVerified(ctx, userID); err != nil {
		return OutcomeNoChallenge, err
	}
	if err := s.store.ClearPending(ctx, userID); err != nil {
		s.log.WarnContext(ctx, "failed to clear answered challenge", slog.Int64("user_id", userID), slog.Any("error", err))
	}

	s.log.InfoContext(ctx, "user verified", slog.Int64("user_id", userID))
	return OutcomeVerified, nil
}
