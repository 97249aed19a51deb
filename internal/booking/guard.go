package booking

import (
	"context"
	"log/slog"
	"strconv"
	"time"

	"github.com/Proton-105/studio-booking-bot/internal/domain"
	"github.com/Proton-105/studio-booking-bot/pkg/metrics"
)

// BookingLister fetches the existing bookings.
type BookingLister interface {
	ListBookings(ctx context.Context) ([]domain.Booking, error)
}

// HasActiveFutureBooking reports whether userID owns a booking that still occupies a
// slot and starts at or after now. Timestamps without an offset are read in loc.
func HasActiveFutureBooking(bookings []domain.Booking, userID int64, now time.Time, loc *time.Location) bool {
	owner := domain.ID(strconv.FormatInt(userID, 10))

	for _, b := range bookings {
		if b.Owner() != owner || !b.Active() {
			continue
		}

		ts, err := b.Timestamp(loc)
		if err != nil {
			continue
		}
		if !ts.Before(now) {
			return true
		}
	}
	return false
}

// Guard refuses to start a new booking while the user has an upcoming one.
type Guard struct {
	bookings BookingLister
	location *time.Location
	log      *slog.Logger
	now      func() time.Time
}

// NewGuard constructs a Guard.
func NewGuard(bookings BookingLister, loc *time.Location, log *slog.Logger) *Guard {
	if log == nil {
		log = slog.Default()
	}
	if loc == nil {
		loc = time.UTC
	}

	return &Guard{
		bookings: bookings,
		location: loc,
		log:      log,
		now:      time.Now,
	}
}

// Blocked reports whether the user already has an active future booking. It fails
// open: when bookings cannot be fetched the user is let through.
func (g *Guard) Blocked(ctx context.Context, userID int64) bool {
	bookings, err := g.bookings.ListBookings(ctx)
	if err != nil {
		g.log.WarnContext(ctx, "duplicate guard skipped: bookings unavailable",
			slog.Int64("user_id", userID),
			slog.Any("error", err),
		)
		return false
	}

	if HasActiveFutureBooking(bookings, userID, g.now(), g.location) {
		metrics.RecordGuardBlock()
		g.log.InfoContext(ctx, "booking refused: active booking exists", slog.Int64("user_id", userID))
		return true
	}
	return false
}
