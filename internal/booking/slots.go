// Package booking holds the appointment conversation: availability, the duplicate
// booking guard, input validation, the step engine and submission.
package booking

import (
	"fmt"
	"time"

	"github.com/Proton-105/studio-booking-bot/internal/domain"
)

const (
	DefaultOpen  = "10:00"
	DefaultClose = "20:00"
)

// SlotCalculator derives free start times for a day from the existing bookings.
type SlotCalculator struct {
	location *time.Location
	open     time.Duration
	close    time.Duration
}

// NewSlotCalculator builds a calculator for the venue. open and close are HH:MM in
// venue local time.
func NewSlotCalculator(loc *time.Location, open, close string) (*SlotCalculator, error) {
	if loc == nil {
		loc = time.UTC
	}
	if open == "" {
		open = DefaultOpen
	}
	if close == "" {
		close = DefaultClose
	}

	openAt, err := parseClock(open)
	if err != nil {
		return nil, fmt.Errorf("opening time: %w", err)
	}
	closeAt, err := parseClock(close)
	if err != nil {
		return nil, fmt.Errorf("closing time: %w", err)
	}
	if closeAt <= openAt {
		return nil, fmt.Errorf("closing time %s must be after opening time %s", close, open)
	}

	return &SlotCalculator{location: loc, open: openAt, close: closeAt}, nil
}

// Location returns the venue time zone.
func (c *SlotCalculator) Location() *time.Location {
	return c.location
}

// Available returns the chronological HH:MM labels still free on date (YYYY-MM-DD).
// Slots start at opening time every durationMinutes and must end by closing time. A
// slot is taken when an active booking starts on the same day at the same label.
func (c *SlotCalculator) Available(date string, durationMinutes int, bookings []domain.Booking) ([]string, error) {
	if _, err := time.ParseInLocation(domain.DateLayout, date, c.location); err != nil {
		return nil, fmt.Errorf("parse date %q: %w", date, err)
	}
	if durationMinutes <= 0 {
		durationMinutes = domain.DefaultDurationMinutes
	}

	taken := c.occupied(date, bookings)
	step := time.Duration(durationMinutes) * time.Minute

	slots := make([]string, 0, int((c.close-c.open)/step))
	for offset := c.open; offset+step <= c.close; offset += step {
		label := clockLabel(offset)
		if _, busy := taken[label]; busy {
			continue
		}
		slots = append(slots, label)
	}
	return slots, nil
}

func (c *SlotCalculator) occupied(date string, bookings []domain.Booking) map[string]struct{} {
	taken := make(map[string]struct{})
	for _, b := range bookings {
		if !b.Active() {
			continue
		}

		ts, err := b.Timestamp(c.location)
		if err != nil {
			continue
		}

		local := ts.In(c.location)
		if local.Format(domain.DateLayout) != date {
			continue
		}
		taken[local.Format(domain.TimeLayout)] = struct{}{}
	}
	return taken
}

func clockLabel(offset time.Duration) string {
	return fmt.Sprintf("%02d:%02d", int(offset.Hours()), int(offset.Minutes())%60)
}

func parseClock(value string) (time.Duration, error) {
	t, err := time.Parse(domain.TimeLayout, value)
	if err != nil {
		return 0, err
	}
	return time.Duration(t.Hour())*time.Hour + time.Duration(t.Minute())*time.Minute, nil
}
