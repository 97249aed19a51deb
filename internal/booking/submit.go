package booking

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/Proton-105/studio-booking-bot/internal/domain"
	"github.com/Proton-105/studio-booking-bot/internal/idempotency"
	"github.com/Proton-105/studio-booking-bot/internal/state"
	"github.com/Proton-105/studio-booking-bot/pkg/metrics"
)

// submissionWindow is how long a repeated identical submission is answered from the
// first result instead of reaching the backend again.
const submissionWindow = 10 * time.Minute

var (
	// ErrIncomplete is returned when a session lacks a field required for submission.
	ErrIncomplete = errors.New("booking session is incomplete")
	// ErrRejected collapses every submission failure into one outcome.
	ErrRejected = errors.New("booking was not confirmed")
)

// BookingCreator submits booking requests to the backend.
type BookingCreator interface {
	CreateBooking(ctx context.Context, req domain.BookingRequest) (*domain.CreatedBooking, error)
}

// Notifier links a created booking to the chat that requested it. Failures are the
// notifier's concern and never reach the user.
type Notifier interface {
	RegisterChat(ctx context.Context, bookingID domain.ID, chatID int64)
}

// BuildRequest assembles the submission payload from a complete session.
func BuildRequest(s *state.Session) (domain.BookingRequest, error) {
	if s == nil || !s.Complete() {
		return domain.BookingRequest{}, ErrIncomplete
	}

	return domain.BookingRequest{
		ClientName:  s.Name,
		ClientPhone: s.Phone,
		ServiceID:   s.ServiceID,
		MasterID:    s.MasterID,
		Date:        s.Date,
		Time:        s.Time,
		DateTime:    domain.ComposeDateTime(s.Date, s.Time),
		Username:    s.Username,
		UserID:      s.UserID,
	}, nil
}

// Submitter sends a booking exactly once and reports accepted or rejected.
type Submitter struct {
	creator  BookingCreator
	notifier Notifier
	idem     idempotency.Manager
	log      *slog.Logger
}

// NewSubmitter wires a Submitter. notifier and idem may be nil.
func NewSubmitter(creator BookingCreator, notifier Notifier, idem idempotency.Manager, log *slog.Logger) *Submitter {
	if log == nil {
		log = slog.Default()
	}

	return &Submitter{
		creator:  creator,
		notifier: notifier,
		idem:     idem,
		log:      log,
	}
}

// Submit creates the booking described by the session. Any failure is reported as
// ErrRejected. On acceptance with an id the requesting chat is registered for
// notifications without waiting for the result.
func (s *Submitter) Submit(ctx context.Context, sess *state.Session) (*domain.CreatedBooking, error) {
	req, err := BuildRequest(sess)
	if err != nil {
		return nil, err
	}

	created, replayed, err := s.create(ctx, sess.ID, req)
	if err != nil {
		metrics.RecordBookingSubmission("rejected")
		s.log.WarnContext(ctx, "booking rejected",
			slog.Int64("user_id", req.UserID),
			slog.String("date_time", req.DateTime),
			slog.Any("error", err),
		)
		return nil, fmt.Errorf("%w: %w", ErrRejected, err)
	}

	if replayed {
		metrics.RecordBookingSubmission("duplicate")
		return created, nil
	}

	metrics.RecordBookingSubmission("accepted")
	s.log.InfoContext(ctx, "booking created",
		slog.Int64("user_id", req.UserID),
		slog.String("booking_id", created.ID.String()),
		slog.String("date_time", req.DateTime),
	)

	if created.ID != "" && s.notifier != nil {
		s.notifier.RegisterChat(ctx, created.ID, sess.ChatID)
	}
	return created, nil
}

// create replays the result of an identical submission from the same conversation.
// A new conversation always reaches the backend, even for the same slot.
func (s *Submitter) create(ctx context.Context, sessionID string, req domain.BookingRequest) (*domain.CreatedBooking, bool, error) {
	if s.idem == nil {
		created, err := s.creator.CreateBooking(ctx, req)
		return created, false, err
	}

	key := idempotency.GenerateKey("booking", sessionID, req.UserID, req.ServiceID, req.MasterID, req.DateTime, req.ClientPhone)
	res, err := s.idem.Execute(ctx, key, submissionWindow, func(ctx context.Context) (any, error) {
		return s.creator.CreateBooking(ctx, req)
	})
	if err != nil {
		return nil, false, err
	}

	var created domain.CreatedBooking
	if err := res.Decode(&created); err != nil {
		return nil, false, err
	}
	return &created, res.FromCache, nil
}
