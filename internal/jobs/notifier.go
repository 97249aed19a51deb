package jobs

import (
	"context"
	"log/slog"
	"sync"

	"github.com/Proton-105/studio-booking-bot/internal/domain"
	apperrors "github.com/Proton-105/studio-booking-bot/internal/errors"
)

// ChatRegistrar performs the registration against the backend.
type ChatRegistrar interface {
	RegisterNotificationChat(ctx context.Context, bookingID domain.ID, chatID int64) error
}

// Notifier registers booking chats without blocking the conversation. With a queue
// the work goes to the asynq worker; otherwise, or when enqueueing fails, it runs in
// a goroutine with backoff.
type Notifier struct {
	queue     Manager
	registrar ChatRegistrar
	maxRetry  int
	log       *slog.Logger
	wg        sync.WaitGroup
}

// NewNotifier constructs a Notifier. queue may be nil.
func NewNotifier(queue Manager, registrar ChatRegistrar, maxRetry int, log *slog.Logger) *Notifier {
	if log == nil {
		log = slog.Default()
	}

	return &Notifier{
		queue:     queue,
		registrar: registrar,
		maxRetry:  maxRetry,
		log:       log,
	}
}

// RegisterChat schedules the registration. Failures are logged only.
func (n *Notifier) RegisterChat(ctx context.Context, bookingID domain.ID, chatID int64) {
	if n.queue != nil {
		err := n.enqueue(ctx, bookingID, chatID)
		if err == nil {
			return
		}
		n.log.WarnContext(ctx, "enqueue chat registration failed, running inline",
			slog.String("booking_id", bookingID.String()),
			slog.Any("error", err),
		)
	}

	detached := context.WithoutCancel(ctx)
	n.wg.Add(1)
	go func() {
		defer n.wg.Done()

		err := apperrors.WithRetry(detached, func() error {
			return n.registrar.RegisterNotificationChat(detached, bookingID, chatID)
		})
		if err != nil {
			n.log.WarnContext(detached, "chat registration failed",
				slog.String("booking_id", bookingID.String()),
				slog.Int64("chat_id", chatID),
				slog.Any("error", err),
			)
			return
		}
		n.log.DebugContext(detached, "chat registered", slog.String("booking_id", bookingID.String()))
	}()
}

// Wait blocks until inline registrations finish.
func (n *Notifier) Wait() {
	n.wg.Wait()
}

func (n *Notifier) enqueue(ctx context.Context, bookingID domain.ID, chatID int64) error {
	task, err := NewRegisterChatTask(bookingID, chatID, n.maxRetry)
	if err != nil {
		return err
	}

	_, err = n.queue.Enqueue(ctx, task)
	return err
}
