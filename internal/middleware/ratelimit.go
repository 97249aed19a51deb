package middleware

import (
	"log/slog"

	telebot "gopkg.in/telebot.v3"

	"github.com/Proton-105/studio-booking-bot/internal/booking"
	"github.com/Proton-105/studio-booking-bot/internal/bot/handlers"
	"github.com/Proton-105/studio-booking-bot/internal/ratelimit"
	"github.com/Proton-105/studio-booking-bot/pkg/metrics"
)

// RateLimit enforces the per-user limit on every update and the booking limit on
// conversation starts. Limiter failures let the update through.
func RateLimit(limiter ratelimit.Limiter, rules *ratelimit.Rules, texts handlers.Texts, log *slog.Logger) handlers.Middleware {
	if log == nil {
		log = slog.Default()
	}

	return func(next handlers.Handler) handlers.Handler {
		if next == nil {
			return nil
		}

		return func(c telebot.Context) error {
			userID := handlers.SenderID(c)
			if limiter == nil || rules == nil || userID == 0 || rules.IsWhitelisted(userID) {
				return next(c)
			}

			ctx := handlers.Context(c)
			checks := []ratelimit.Rule{rules.PerUser}
			if startsBooking(c) {
				checks = append(checks, rules.Booking)
			}

			for _, rule := range checks {
				result, err := limiter.Check(ctx, rule.Key(userID), rule.Limit, rule.Window)
				if err != nil {
					log.WarnContext(ctx, "rate limiter error", slog.Int64("user_id", userID), slog.Any("error", err))
					continue
				}

				metrics.RecordRateLimit(rule.Name, result.Allowed)
				if !result.Allowed {
					log.WarnContext(ctx, "rate limit exceeded",
						slog.Int64("user_id", userID),
						slog.String("rule", rule.Name),
						slog.Time("reset_at", result.ResetAt),
					)
					return handlers.Reply(c, texts.Text(ctx, "common.rate_limited"))
				}
			}

			return next(c)
		}
	}
}

func startsBooking(c telebot.Context) bool {
	if cb := c.Callback(); cb != nil {
		return cb.Data == booking.ActionBook
	}
	return c.Text() == "/book"
}
