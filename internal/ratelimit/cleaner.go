package ratelimit

import (
	"context"
	"log/slog"
	"time"
)

// Cleaner periodically drops idle in-memory windows. Redis windows expire on their own.
type Cleaner struct {
	limiter  *MemoryLimiter
	maxAge   time.Duration
	interval time.Duration
	log      *slog.Logger
}

// NewCleaner constructs a Cleaner instance.
func NewCleaner(limiter *MemoryLimiter, maxAge, interval time.Duration, log *slog.Logger) *Cleaner {
	if log == nil {
		log = slog.Default()
	}

	return &Cleaner{
		limiter:  limiter,
		maxAge:   maxAge,
		interval: interval,
		log:      log,
	}
}

// Run starts the cleaner loop until the context is cancelled.
func (c *Cleaner) Run(ctx context.Context) {
	if c.limiter == nil || c.interval <= 0 {
		return
	}

	ticker := time.NewTicker(c.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			c.log.Info("rate limit cleaner stopped", slog.String("reason", ctx.Err().Error()))
			return
		case <-ticker.C:
			if removed := c.limiter.Cleanup(c.maxAge); removed > 0 {
				c.log.Debug("rate limit windows cleaned", slog.Int("keys_removed", removed))
			}
		}
	}
}
