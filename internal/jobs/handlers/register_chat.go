package handlers

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/hibiken/asynq"

	"github.com/Proton-105/studio-booking-bot/internal/jobs"
)

// RegisterChatHandler processes notify:register_chat tasks.
type RegisterChatHandler struct {
	registrar jobs.ChatRegistrar
	log       *slog.Logger
}

func NewRegisterChatHandler(registrar jobs.ChatRegistrar, log *slog.Logger) *RegisterChatHandler {
	if log == nil {
		log = slog.Default()
	}
	return &RegisterChatHandler{registrar: registrar, log: log}
}

func (h *RegisterChatHandler) ProcessTask(ctx context.Context, t *asynq.Task) error {
	var payload jobs.RegisterChatPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		h.log.ErrorContext(ctx, "register chat: failed to decode payload", slog.String("task_type", t.Type()), slog.Any("error", err))
		return fmt.Errorf("decode payload: %v: %w", err, asynq.SkipRetry)
	}
	if payload.BookingID == "" || payload.ChatID == 0 {
		return fmt.Errorf("incomplete payload: %w", asynq.SkipRetry)
	}

	if err := h.registrar.RegisterNotificationChat(ctx, payload.BookingID, payload.ChatID); err != nil {
		return fmt.Errorf("register chat for booking %s: %w", payload.BookingID, err)
	}

	h.log.InfoContext(ctx, "booking chat registered",
		slog.String("booking_id", payload.BookingID.String()),
		slog.Int64("chat_id", payload.ChatID),
	)
	return nil
}
