package domain

import (
	"errors"
	"strings"
	"time"
)

const (
	DateLayout = "2006-01-02"
	TimeLayout = "15:04"
)

// ErrNoTimestamp is returned when a booking carries no parseable start time.
var ErrNoTimestamp = errors.New("booking has no parseable timestamp")

var inactiveStatuses = map[string]struct{}{
	"canceled":  {},
	"cancelled": {},
	"done":      {},
	"completed": {},
}

// IsInactiveStatus reports whether a booking status no longer occupies a slot.
func IsInactiveStatus(status string) bool {
	_, ok := inactiveStatuses[strings.ToLower(strings.TrimSpace(status))]
	return ok
}

// Booking is an existing appointment as reported by the backend. It is read-only to the bot.
type Booking struct {
	ID         ID     `json:"id"`
	UserID     ID     `json:"userId"`
	TelegramID ID     `json:"telegramId"`
	Status     string `json:"status"`
	DateTime   string `json:"dateTime"`
	Start      string `json:"start"`
	Date       string `json:"date"`
	Time       string `json:"time"`
}

// Owner returns the requester identity recorded on the booking.
func (b Booking) Owner() ID {
	if b.UserID != "" {
		return b.UserID
	}
	return b.TelegramID
}

// Active reports whether the booking still occupies its slot.
func (b Booking) Active() bool {
	return !IsInactiveStatus(b.Status)
}

var zonedLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999Z0700",
	"2006-01-02 15:04:05Z07:00",
}

var naiveLayouts = []string{
	"2006-01-02T15:04:05.999999999",
	"2006-01-02T15:04:05",
	"2006-01-02T15:04",
	"2006-01-02 15:04:05",
	"2006-01-02 15:04",
}

// Timestamp resolves the booking start. Values without an offset are interpreted in loc.
func (b Booking) Timestamp(loc *time.Location) (time.Time, error) {
	if loc == nil {
		loc = time.UTC
	}

	for _, candidate := range []string{b.DateTime, b.Start} {
		if ts, ok := parseTimestamp(candidate, loc); ok {
			return ts, nil
		}
	}

	if date := strings.TrimSpace(b.Date); date != "" {
		clock := strings.TrimSpace(b.Time)
		if clock == "" {
			// date may itself be a full timestamp
			if ts, ok := parseTimestamp(date, loc); ok {
				return ts, nil
			}
		} else if len(clock) >= 5 {
			if ts, ok := parseTimestamp(date+"T"+clock, loc); ok {
				return ts, nil
			}
		}
	}

	return time.Time{}, ErrNoTimestamp
}

func parseTimestamp(value string, loc *time.Location) (time.Time, bool) {
	value = strings.TrimSpace(value)
	if value == "" {
		return time.Time{}, false
	}

	for _, layout := range zonedLayouts {
		if ts, err := time.Parse(layout, value); err == nil {
			return ts.In(loc), true
		}
	}
	for _, layout := range naiveLayouts {
		if ts, err := time.ParseInLocation(layout, value, loc); err == nil {
			return ts, true
		}
	}
	return time.Time{}, false
}

// BookingRequest is the payload submitted to create a booking. It is immutable once sent.
type BookingRequest struct {
	ClientName  string `json:"clientName"`
	ClientPhone string `json:"clientPhone"`
	ServiceID   ID     `json:"serviceId"`
	MasterID    ID     `json:"masterId"`
	Date        string `json:"date"`
	Time        string `json:"time"`
	DateTime    string `json:"dateTime"`
	Username    string `json:"username"`
	UserID      int64  `json:"userId"`
}

// ComposeDateTime builds the naive venue-local start timestamp sent to the backend.
func ComposeDateTime(date, clock string) string {
	return date + "T" + clock + ":00"
}

// CreatedBooking is the backend acknowledgement of a successful submission.
type CreatedBooking struct {
	ID ID `json:"id"`
}
