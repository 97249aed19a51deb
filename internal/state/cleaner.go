package state

import (
	"context"
	"log/slog"
	"time"
)

// Cleaner removes idle booking sessions on a schedule.
type Cleaner struct {
	storage  Storage
	log      *slog.Logger
	ttl      time.Duration
	interval time.Duration
	now      func() time.Time
}

// NewCleaner constructs a Cleaner instance.
func NewCleaner(storage Storage, log *slog.Logger, ttl, interval time.Duration) *Cleaner {
	if log == nil {
		log = slog.Default()
	}
	if ttl <= 0 {
		ttl = DefaultIdleTimeout
	}
	if interval <= 0 {
		interval = time.Minute
	}

	return &Cleaner{
		storage:  storage,
		log:      log,
		ttl:      ttl,
		interval: interval,
		now:      time.Now,
	}
}

// Run starts the cleanup loop until the context is cancelled.
func (c *Cleaner) Run(ctx context.Context) {
	if c == nil || c.storage == nil {
		return
	}

	ticker := time.NewTicker(c.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			c.log.Info("session cleaner stopped", slog.Any("reason", ctx.Err()))
			return
		case <-ticker.C:
			c.cleanup(ctx)
		}
	}
}

// cleanup returns the number of sessions it removed.
func (c *Cleaner) cleanup(ctx context.Context) int {
	if ctx.Err() != nil {
		return 0
	}

	sessions, err := c.storage.GetAllSessions(ctx)
	if err != nil {
		c.log.Error("session cleaner scan failed", slog.Any("error", err))
		return 0
	}

	removed := 0
	for _, session := range sessions {
		if session == nil || c.now().Sub(session.UpdatedAt) <= c.ttl {
			continue
		}

		if err := c.storage.ClearSession(ctx, session.UserID); err != nil {
			c.log.Error("session cleaner failed to clear session", slog.Int64("user_id", session.UserID), slog.Any("error", err))
			continue
		}
		removed++
		c.log.Info("idle session cleared", slog.Int64("user_id", session.UserID), slog.String("state", string(session.State)))
	}

	return removed
}
