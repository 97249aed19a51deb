package middleware

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	telebot "gopkg.in/telebot.v3"

	"github.com/Proton-105/studio-booking-bot/internal/bot/handlers"
	"github.com/Proton-105/studio-booking-bot/internal/idempotency"
)

const updateDedupWindow = 10 * time.Minute

// Idempotency drops Telegram updates that were already handled, which happens when a
// webhook delivery is retried. Updates without an id pass through.
func Idempotency(manager idempotency.Manager, log *slog.Logger) handlers.Middleware {
	if manager == nil {
		return func(next handlers.Handler) handlers.Handler {
			return next
		}
	}
	if log == nil {
		log = slog.Default()
	}

	return func(next handlers.Handler) handlers.Handler {
		if next == nil {
			return nil
		}

		return func(c telebot.Context) error {
			updateID := c.Update().ID
			if updateID == 0 {
				return next(c)
			}

			ctx := handlers.Context(c)
			key := fmt.Sprintf("update:%d", updateID)

			result, err := manager.Execute(ctx, key, updateDedupWindow, func(context.Context) (any, error) {
				return true, next(c)
			})
			if err != nil {
				return err
			}

			if result.FromCache {
				log.InfoContext(ctx, "duplicate update skipped", slog.Int("update_id", updateID))
			}
			return nil
		}
	}
}
