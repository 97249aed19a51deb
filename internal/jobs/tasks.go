package jobs

import (
	"encoding/json"
	"time"

	"github.com/hibiken/asynq"

	"github.com/Proton-105/studio-booking-bot/internal/domain"
)

const (
	TaskTypeRegisterChat = "notify:register_chat"
)

const (
	QueueCritical = "critical"
	QueueDefault  = "default"
)

// Queues is the weighted queue set served by the worker.
var Queues = map[string]int{
	QueueCritical: 6,
	QueueDefault:  3,
}

const registerChatTimeout = 30 * time.Second

// RegisterChatPayload links a created booking to the chat that made it.
type RegisterChatPayload struct {
	BookingID domain.ID `json:"booking_id"`
	ChatID    int64     `json:"chat_id"`
}

func NewRegisterChatTask(bookingID domain.ID, chatID int64, maxRetry int) (*asynq.Task, error) {
	payload, err := json.Marshal(RegisterChatPayload{BookingID: bookingID, ChatID: chatID})
	if err != nil {
		return nil, err
	}

	return asynq.NewTask(
		TaskTypeRegisterChat,
		payload,
		asynq.Queue(QueueDefault),
		asynq.MaxRetry(maxRetry),
		asynq.Timeout(registerChatTimeout),
	), nil
}
