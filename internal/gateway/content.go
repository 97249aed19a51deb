package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/Proton-105/studio-booking-bot/internal/domain"
	apperrors "github.com/Proton-105/studio-booking-bot/internal/errors"
)

const (
	pathServices      = "/api/services"
	pathMasters       = "/api/masters"
	pathBookings      = "/api/bookings"
	pathSettings      = "/api/settings"
	pathMessages      = "/api/messages"
	pathPortfolio     = "/api/portfolio"
	pathRegisterChat  = "/api/notifications/register-chat"
	maxLoggedBodySize = 200
)

// ErrBookingRejected is returned when the backend does not accept a booking.
var ErrBookingRejected = errors.New("booking rejected by backend")

// ListServices returns the service catalog.
func (c *Client) ListServices(ctx context.Context) ([]domain.Service, error) {
	var envelope struct {
		Services []domain.Service `json:"services"`
	}
	if err := c.getJSON(ctx, pathServices, &envelope); err != nil {
		return nil, err
	}
	return envelope.Services, nil
}

// ListMasters returns all masters, active or not.
func (c *Client) ListMasters(ctx context.Context) ([]domain.Master, error) {
	var envelope struct {
		Masters []domain.Master `json:"masters"`
	}
	if err := c.getJSON(ctx, pathMasters, &envelope); err != nil {
		return nil, err
	}

	for i := range envelope.Masters {
		envelope.Masters[i].Avatar = c.AbsoluteURL(envelope.Masters[i].Avatar)
		envelope.Masters[i].TeletypeURL = c.AbsoluteURL(envelope.Masters[i].TeletypeURL)
	}
	return envelope.Masters, nil
}

// ListBookings returns every booking the backend knows about. Entries that cannot be
// decoded are skipped so one bad record does not hide the others.
func (c *Client) ListBookings(ctx context.Context) ([]domain.Booking, error) {
	var envelope struct {
		Bookings []json.RawMessage `json:"bookings"`
	}
	if err := c.getJSON(ctx, pathBookings, &envelope); err != nil {
		return nil, err
	}

	bookings := make([]domain.Booking, 0, len(envelope.Bookings))
	for i, raw := range envelope.Bookings {
		var b domain.Booking
		if err := json.Unmarshal(raw, &b); err != nil {
			c.log.WarnContext(ctx, "skipping malformed booking",
				slog.Int("index", i),
				slog.String("body", truncate(raw)),
				slog.Any("error", err),
			)
			continue
		}
		bookings = append(bookings, b)
	}
	return bookings, nil
}

// ListPortfolio returns portfolio works with absolute media URLs.
func (c *Client) ListPortfolio(ctx context.Context) ([]domain.PortfolioItem, error) {
	var envelope struct {
		Portfolio []domain.PortfolioItem `json:"portfolio"`
	}
	if err := c.getJSON(ctx, pathPortfolio, &envelope); err != nil {
		return nil, err
	}

	for i := range envelope.Portfolio {
		envelope.Portfolio[i].URL = c.AbsoluteURL(envelope.Portfolio[i].URL)
		envelope.Portfolio[i].Thumbnail = c.AbsoluteURL(envelope.Portfolio[i].Thumbnail)
	}
	return envelope.Portfolio, nil
}

// GetSettings returns studio settings. Certificate paths are made absolute.
func (c *Client) GetSettings(ctx context.Context) (domain.Settings, error) {
	var envelope struct {
		Settings *domain.Settings `json:"settings"`
	}
	if err := c.getJSON(ctx, pathSettings, &envelope); err != nil {
		return domain.Settings{}, err
	}
	if envelope.Settings == nil {
		return domain.Settings{}, nil
	}

	settings := *envelope.Settings
	for i, cert := range settings.Certificates {
		settings.Certificates[i] = c.AbsoluteURL(cert)
	}
	return settings, nil
}

// ListTemplates returns admin-edited messages keyed by their template key.
func (c *Client) ListTemplates(ctx context.Context) (map[string]domain.Template, error) {
	var envelope struct {
		Messages []struct {
			Key      string `json:"key"`
			Value    string `json:"value"`
			ImageURL string `json:"imageUrl"`
			Image    string `json:"image_url"`
			Type     string `json:"type"`
		} `json:"messages"`
	}
	if err := c.getJSON(ctx, pathMessages, &envelope); err != nil {
		return nil, err
	}

	out := make(map[string]domain.Template, len(envelope.Messages))
	for _, m := range envelope.Messages {
		key := strings.TrimSpace(m.Key)
		if key == "" {
			continue
		}
		image := m.ImageURL
		if image == "" {
			image = m.Image
		}
		out[key] = domain.Template{
			Key:      key,
			Text:     m.Value,
			ImageURL: c.AbsoluteURL(image),
			Type:     m.Type,
		}
	}
	return out, nil
}

// CreateBooking submits req once. A non-2xx status, an empty body or an explicit
// failure flag is reported as ErrBookingRejected. A successful response without an
// identifier yields a CreatedBooking with an empty ID.
func (c *Client) CreateBooking(ctx context.Context, req domain.BookingRequest) (*domain.CreatedBooking, error) {
	payload, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("encode booking: %w", err)
	}

	data, err := c.post(ctx, pathBookings, payload)
	if err != nil {
		var statusErr *StatusError
		if errors.As(err, &statusErr) {
			return nil, fmt.Errorf("%w: status %d", ErrBookingRejected, statusErr.Code)
		}
		return nil, err
	}

	data = bytes.TrimSpace(data)
	if len(data) == 0 {
		return nil, fmt.Errorf("%w: empty response", ErrBookingRejected)
	}

	var resp struct {
		ID      domain.ID `json:"id"`
		Success *bool     `json:"success"`
		Booking *struct {
			ID domain.ID `json:"id"`
		} `json:"booking"`
	}
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("%w: malformed response %q", ErrBookingRejected, truncate(data))
	}
	if len(raw) == 0 {
		return nil, fmt.Errorf("%w: empty response", ErrBookingRejected)
	}
	if err := json.Unmarshal(data, &resp); err != nil {
		return nil, fmt.Errorf("%w: malformed response %q", ErrBookingRejected, truncate(data))
	}
	if resp.Success != nil && !*resp.Success {
		return nil, fmt.Errorf("%w: %s", ErrBookingRejected, truncate(data))
	}

	created := &domain.CreatedBooking{ID: resp.ID}
	if resp.Booking != nil && resp.Booking.ID != "" {
		created.ID = resp.Booking.ID
	}
	if created.ID == "" {
		c.log.WarnContext(ctx, "booking accepted without id", slog.String("body", truncate(data)))
	}
	return created, nil
}

// RegisterNotificationChat links a created booking to the requester's chat so the
// backend can deliver reminders.
func (c *Client) RegisterNotificationChat(ctx context.Context, bookingID domain.ID, chatID int64) error {
	payload, err := json.Marshal(struct {
		BookingID domain.ID `json:"bookingId"`
		ChatID    int64     `json:"chatId"`
	}{BookingID: bookingID, ChatID: chatID})
	if err != nil {
		return fmt.Errorf("encode chat registration: %w", err)
	}

	_, err = c.post(ctx, pathRegisterChat, payload)
	return err
}

// HealthCheck reports whether any backend endpoint answers.
func (c *Client) HealthCheck(ctx context.Context) error {
	_, err := c.get(ctx, pathSettings)
	return err
}

func (c *Client) getJSON(ctx context.Context, path string, dst any) error {
	data, err := c.get(ctx, path)
	if err != nil {
		return err
	}

	data = bytes.TrimSpace(data)
	if len(data) == 0 {
		return nil
	}
	if err := json.Unmarshal(data, dst); err != nil {
		return apperrors.NewBackendError(path, fmt.Errorf("decode response: %w", err))
	}
	return nil
}

func truncate(data []byte) string {
	if len(data) > maxLoggedBodySize {
		return string(data[:maxLoggedBodySize])
	}
	return string(data)
}
