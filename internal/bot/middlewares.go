package bot

import (
	"context"
	"fmt"
	"log/slog"
	"runtime/debug"
	"time"

	telebot "gopkg.in/telebot.v3"

	"github.com/Proton-105/studio-booking-bot/internal/bot/handlers"
	errors "github.com/Proton-105/studio-booking-bot/internal/errors"
	"github.com/Proton-105/studio-booking-bot/internal/middleware"
	"github.com/Proton-105/studio-booking-bot/internal/state"
	"github.com/Proton-105/studio-booking-bot/pkg/logger"
)

// ContextMiddleware gives every update its own context with a correlation id.
func ContextMiddleware() handlers.Middleware {
	return func(next handlers.Handler) handlers.Handler {
		if next == nil {
			return nil
		}

		return func(c telebot.Context) error {
			ctx, _ := logger.WithCorrelationID(context.Background())
			handlers.WithContext(c, ctx)
			return next(c)
		}
	}
}

// RecoveryMiddleware catches panics, reports them via the centralized handler, and notifies the user.
func RecoveryMiddleware(log *slog.Logger, errHandler *errors.Handler, texts handlers.Texts) handlers.Middleware {
	if log == nil {
		log = slog.Default()
	}

	return func(next handlers.Handler) handlers.Handler {
		if next == nil {
			return nil
		}

		return func(c telebot.Context) (err error) {
			defer func() {
				if r := recover(); r != nil {
					ctx := handlers.Context(c)
					log.ErrorContext(ctx, "panic recovered in handler",
						slog.Any("panic", r),
						slog.String("correlation_id", logger.CorrelationIDFromContext(ctx)),
						slog.String("stack", string(debug.Stack())),
					)

					if errHandler != nil {
						errHandler.Handle(ctx, errors.NewInternalError(fmt.Errorf("panic recovered: %v", r)))
					}

					if sendErr := c.Send(texts.Text(ctx, "common.error")); sendErr != nil {
						log.ErrorContext(ctx, "failed to notify user about panic", slog.Any("error", sendErr))
					}

					err = nil
				}
			}()

			return next(c)
		}
	}
}

// ErrorHandlingMiddleware centralizes error reporting and user messaging for handler failures.
func ErrorHandlingMiddleware(errHandler *errors.Handler, texts handlers.Texts) handlers.Middleware {
	return func(next handlers.Handler) handlers.Handler {
		if next == nil {
			return nil
		}

		return func(c telebot.Context) error {
			err := next(c)
			if err == nil {
				return nil
			}

			ctx := handlers.Context(c)
			userMsg := texts.Text(ctx, "common.error")
			if errHandler != nil {
				if msg, _ := errHandler.Handle(ctx, err); msg != "" && msg != errors.DefaultUserMessage {
					userMsg = msg
				}
			}

			if c.Callback() != nil {
				_ = c.Respond()
			}
			_ = c.Send(userMsg)

			return nil
		}
	}
}

// LoggingMiddleware logs basic telemetry about incoming updates.
func LoggingMiddleware(log *slog.Logger) handlers.Middleware {
	if log == nil {
		log = slog.Default()
	}

	return func(next handlers.Handler) handlers.Handler {
		if next == nil {
			return nil
		}

		return func(c telebot.Context) error {
			start := time.Now()
			ctx := handlers.Context(c)
			attrs := []any{
				slog.Int64("user_id", handlers.SenderID(c)),
				slog.String("action", middleware.CommandLabel(c)),
				slog.String("correlation_id", logger.CorrelationIDFromContext(ctx)),
			}

			log.DebugContext(ctx, "handling update", attrs...)
			err := next(c)
			log.InfoContext(ctx, "handled update", append(attrs,
				slog.Duration("duration", time.Since(start)),
				slog.Any("error", err),
			)...)

			return err
		}
	}
}

// SerializeTurnsMiddleware makes each user's updates run one after another.
func SerializeTurnsMiddleware(turns *state.TurnLocker) handlers.Middleware {
	return func(next handlers.Handler) handlers.Handler {
		if next == nil || turns == nil {
			return next
		}

		return func(c telebot.Context) error {
			userID := handlers.SenderID(c)
			if userID == 0 {
				return next(c)
			}

			release := turns.Lock(userID)
			defer release()
			return next(c)
		}
	}
}
