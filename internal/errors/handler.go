package errors

import (
	"context"
	"errors"
	"log/slog"

	"github.com/getsentry/sentry-go"

	"github.com/Proton-105/studio-booking-bot/pkg/logger"
	"github.com/Proton-105/studio-booking-bot/pkg/metrics"
)

// Handler logs errors, reports severe ones to Sentry and picks the message shown to the user.
type Handler struct {
	log           *slog.Logger
	sentryEnabled bool
}

func NewHandler(log *slog.Logger, sentryEnabled bool) *Handler {
	if log == nil {
		log = slog.Default()
	}

	return &Handler{
		log:           log,
		sentryEnabled: sentryEnabled,
	}
}

// Handle returns the user-facing message for err and whether the operation may be retried.
func (h *Handler) Handle(ctx context.Context, err error) (string, bool) {
	if err == nil {
		return "", false
	}

	if ctx == nil {
		ctx = context.Background()
	}

	appErr := classify(err)

	attrs := []any{
		slog.String("code", appErr.Code),
		slog.String("severity", string(appErr.Severity)),
		slog.Bool("retryable", appErr.Retryable),
		slog.Any("error", err),
	}
	if correlationID := logger.CorrelationIDFromContext(ctx); correlationID != "" {
		attrs = append(attrs, slog.String("correlation_id", correlationID))
	}

	switch appErr.Severity {
	case SeverityLow:
		h.log.WarnContext(ctx, "application error", attrs...)
	default:
		h.log.ErrorContext(ctx, "application error", attrs...)
	}

	metrics.RecordError(appErr.Code, string(appErr.Severity))

	if h.sentryEnabled && (appErr.Severity == SeverityCritical || appErr.Severity == SeverityHigh) {
		h.sendToSentry(ctx, appErr, err)
	}

	userMessage := appErr.UserMessage
	if userMessage == "" {
		userMessage = DefaultUserMessage
	}

	return userMessage, appErr.Retryable
}

func classify(err error) *AppError {
	var appErr *AppError
	if errors.As(err, &appErr) && appErr != nil {
		return appErr
	}
	return NewInternalError(err)
}

func (h *Handler) sendToSentry(ctx context.Context, appErr *AppError, err error) {
	sentry.WithScope(func(scope *sentry.Scope) {
		scope.SetTag("code", appErr.Code)
		scope.SetTag("severity", string(appErr.Severity))
		if correlationID := logger.CorrelationIDFromContext(ctx); correlationID != "" {
			scope.SetTag("correlation_id", correlationID)
		}

		sentry.CaptureException(err)
	})
}
