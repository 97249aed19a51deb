package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Proton-105/studio-booking-bot/internal/booking"
	"github.com/Proton-105/studio-booking-bot/internal/cache"
	apperrors "github.com/Proton-105/studio-booking-bot/internal/errors"
	"github.com/Proton-105/studio-booking-bot/internal/domain"
	"github.com/Proton-105/studio-booking-bot/internal/i18n"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func deadURL(t *testing.T) string {
	t.Helper()
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()
	return url
}

func newTestClient(t *testing.T, urls ...string) *Client {
	t.Helper()
	c, err := New(Config{
		BaseURLs:    urls,
		Username:    "admin",
		Password:    "secret",
		GetTimeout:  2 * time.Second,
		PostTimeout: 2 * time.Second,
		Logger:      testLogger(),
	})
	require.NoError(t, err)
	return c
}

func TestNew_RequiresURL(t *testing.T) {
	_, err := New(Config{BaseURLs: []string{" ", ""}})
	assert.Error(t, err)
}

func TestClient_ListServices_FallsBackToNextEndpoint(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		user, pass, ok := r.BasicAuth()
		if !ok || user != "admin" || pass != "secret" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		assert.Equal(t, pathServices, r.URL.Path)
		_, _ = io.WriteString(w, `{"services":[{"id":1,"name":"Тату","duration":"90","price":5000},{"id":"b","title":"Пирсинг"}]}`)
	}))
	defer srv.Close()

	c := newTestClient(t, deadURL(t), srv.URL)

	services, err := c.ListServices(context.Background())
	require.NoError(t, err)
	require.Len(t, services, 2)
	assert.Equal(t, domain.ID("1"), services[0].ID)
	assert.Equal(t, 90, services[0].DurationMinutes)
	assert.Equal(t, int64(5000), services[0].Price)
	assert.Equal(t, "Пирсинг", services[1].Name)
	assert.Equal(t, domain.DefaultDurationMinutes, services[1].DurationMinutes)
}

func TestClient_GetFallsBackOnServerError(t *testing.T) {
	broken := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer broken.Close()

	healthy := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, `{"masters":[{"id":7,"name":"Аня","avatar":"/uploads/a.jpg"},{"id":8,"isActive":false}]}`)
	}))
	defer healthy.Close()

	c := newTestClient(t, broken.URL, healthy.URL)

	masters, err := c.ListMasters(context.Background())
	require.NoError(t, err)
	require.Len(t, masters, 2)
	assert.Equal(t, broken.URL+"/uploads/a.jpg", masters[0].Avatar)
	assert.False(t, masters[1].Active)
}

func TestClient_AllEndpointsFail(t *testing.T) {
	c := newTestClient(t, deadURL(t), deadURL(t))

	_, err := c.ListBookings(context.Background())
	require.Error(t, err)
}

func TestClient_ListBookings_SkipsMalformedEntries(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"bookings":[
			{"id":1,"userId":42,"status":"confirmed","dateTime":"2030-05-10T10:00:00"},
			{"id":2,"userId":42,"status":"confirmed","dateTime":1893456000},
			{"id":3,"userId":7,"status":"new","date":"2030-05-10","time":"12:00"}
		]}`))
	}))
	t.Cleanup(srv.Close)

	c := newTestClient(t, srv.URL)
	bookings, err := c.ListBookings(context.Background())
	require.NoError(t, err)
	require.Len(t, bookings, 2)
	assert.Equal(t, domain.ID("1"), bookings[0].ID)
	assert.Equal(t, domain.ID("3"), bookings[1].ID)

	loc := time.UTC
	now := time.Date(2030, 5, 1, 0, 0, 0, 0, loc)
	assert.True(t, booking.HasActiveFutureBooking(bookings, 42, now, loc))
}

func TestClient_CreateBooking(t *testing.T) {
	tests := []struct {
		name     string
		status   int
		body     string
		wantID   domain.ID
		rejected bool
	}{
		{name: "nested id", status: http.StatusCreated, body: `{"booking":{"id":"bk-1"}}`, wantID: "bk-1"},
		{name: "top level id", status: http.StatusOK, body: `{"id":42}`, wantID: "42"},
		{name: "accepted without id", status: http.StatusOK, body: `{"ok":true}`, wantID: ""},
		{name: "empty body", status: http.StatusOK, body: ``, rejected: true},
		{name: "empty object", status: http.StatusOK, body: `{}`, rejected: true},
		{name: "explicit failure", status: http.StatusOK, body: `{"success":false}`, rejected: true},
		{name: "conflict", status: http.StatusConflict, body: `{"error":"slot taken"}`, rejected: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var received domain.BookingRequest
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				assert.Equal(t, http.MethodPost, r.Method)
				assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
				require.NoError(t, json.NewDecoder(r.Body).Decode(&received))
				w.WriteHeader(tt.status)
				_, _ = io.WriteString(w, tt.body)
			}))
			defer srv.Close()

			c := newTestClient(t, srv.URL)
			req := domain.BookingRequest{
				ClientName:  "Иван",
				ClientPhone: "+79991234567",
				ServiceID:   "1",
				MasterID:    "7",
				Date:        "2026-10-20",
				Time:        "12:00",
				DateTime:    domain.ComposeDateTime("2026-10-20", "12:00"),
				UserID:      100,
			}

			created, err := c.CreateBooking(context.Background(), req)
			assert.Equal(t, "2026-10-20T12:00:00", received.DateTime)
			assert.Equal(t, int64(100), received.UserID)

			if tt.rejected {
				require.Error(t, err)
				assert.ErrorIs(t, err, ErrBookingRejected)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantID, created.ID)
		})
	}
}

func TestClient_CreateBookingIsSentOnce(t *testing.T) {
	var calls atomic.Int32
	rejecting := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer rejecting.Close()

	second := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		_, _ = io.WriteString(w, `{"id":"x"}`)
	}))
	defer second.Close()

	c := newTestClient(t, rejecting.URL, second.URL)

	_, err := c.CreateBooking(context.Background(), domain.BookingRequest{ClientName: "Иван"})
	require.ErrorIs(t, err, ErrBookingRejected)
	assert.Equal(t, int32(1), calls.Load())
}

func TestClient_RejectionsKeepEndpointAvailable(t *testing.T) {
	var conflicts atomic.Bool
	conflicts.Store(true)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if conflicts.Load() {
			w.WriteHeader(http.StatusConflict)
			return
		}
		_, _ = io.WriteString(w, `{"id":"fresh"}`)
	}))
	defer srv.Close()

	c := newTestClient(t, srv.URL)

	for i := 0; i < apperrors.MinRequests*2; i++ {
		_, err := c.CreateBooking(context.Background(), domain.BookingRequest{ClientName: "Иван"})
		require.ErrorIs(t, err, ErrBookingRejected)
	}
	assert.Equal(t, apperrors.StateClosed, c.endpoints[0].breaker.State())

	conflicts.Store(false)
	created, err := c.CreateBooking(context.Background(), domain.BookingRequest{ClientName: "Иван"})
	require.NoError(t, err)
	assert.Equal(t, domain.ID("fresh"), created.ID)
}

func TestUnhealthy(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{name: "conflict", err: &StatusError{Code: http.StatusConflict}, want: false},
		{name: "not found", err: fmt.Errorf("get: %w", &StatusError{Code: http.StatusNotFound}), want: false},
		{name: "server error", err: &StatusError{Code: http.StatusBadGateway}, want: true},
		{name: "transport", err: errors.New("connection reset"), want: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, unhealthy(tt.err))
		})
	}
}

func TestClient_CreateBookingSkipsUnreachableEndpoint(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, `{"booking":{"id":"ok"}}`)
	}))
	defer srv.Close()

	c := newTestClient(t, deadURL(t), srv.URL)

	created, err := c.CreateBooking(context.Background(), domain.BookingRequest{ClientName: "Иван"})
	require.NoError(t, err)
	assert.Equal(t, domain.ID("ok"), created.ID)
}

func TestClient_RegisterNotificationChat(t *testing.T) {
	var body map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, pathRegisterChat, r.URL.Path)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	c := newTestClient(t, srv.URL)
	require.NoError(t, c.RegisterNotificationChat(context.Background(), "bk-1", 555))
	assert.Equal(t, "bk-1", body["bookingId"])
	assert.EqualValues(t, 555, body["chatId"])
}

func TestClient_GetSettings(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, `{"settings":{"address":"Тверская 1","lat":55.75,"lon":"37.61","certificates":"/c/1.jpg, https://cdn.example.com/2.jpg"}}`)
	}))
	defer srv.Close()

	c, err := New(Config{BaseURLs: []string{srv.URL}, MediaBaseURL: "https://media.example.com/", Logger: testLogger()})
	require.NoError(t, err)

	settings, err := c.GetSettings(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "Тверская 1", settings.Address)
	assert.True(t, settings.HasCoordinates())
	assert.Equal(t, []string{"https://media.example.com/c/1.jpg", "https://cdn.example.com/2.jpg"}, settings.Certificates)
}

func TestClient_AbsoluteURL(t *testing.T) {
	c := newTestClient(t, "http://backend:6050/")

	assert.Equal(t, "", c.AbsoluteURL("  "))
	assert.Equal(t, "https://x.io/a.png", c.AbsoluteURL("https://x.io/a.png"))
	assert.Equal(t, "http://backend:6050/uploads/a.png", c.AbsoluteURL("/uploads/a.png"))
	assert.Equal(t, "http://backend:6050/uploads/a.png", c.AbsoluteURL("uploads/a.png"))
}

type stubTemplates struct {
	calls int
	data  map[string]domain.Template
	err   error
}

func (s *stubTemplates) ListTemplates(context.Context) (map[string]domain.Template, error) {
	s.calls++
	return s.data, s.err
}

func TestTemplateStore(t *testing.T) {
	manager, err := i18n.Load("ru")
	require.NoError(t, err)

	src := &stubTemplates{data: map[string]domain.Template{
		"welcome":          {Key: "welcome", Text: "Добро пожаловать!", ImageURL: "http://b/w.png"},
		"booking.no_slots": {Key: "booking.no_slots", Text: "   "},
	}}
	store := NewTemplateStore(src, cache.NewMemoryCache(), time.Minute, manager.Translator("ru"), testLogger())
	ctx := context.Background()

	assert.Equal(t, "Добро пожаловать!", store.Text(ctx, "welcome"))
	assert.Equal(t, "http://b/w.png", store.Image(ctx, "welcome"))
	assert.Equal(t, "Свободных слотов нет. Выбери другую дату.", store.Text(ctx, "booking.no_slots"))
	assert.Equal(t, "", store.Remote(ctx, "booking.no_slots"))
	assert.Equal(t, "Выбери стиль для портфолио Аня:", store.Render(ctx, "info.choose_style", map[string]string{"master": "Аня"}))
	assert.Equal(t, 1, src.calls, "templates must be served from cache within the TTL")
}

func TestTemplateStore_FetchFailureFallsBack(t *testing.T) {
	manager, err := i18n.Load("ru")
	require.NoError(t, err)

	src := &stubTemplates{err: errors.New("backend down")}
	store := NewTemplateStore(src, nil, 0, manager.Translator("ru"), testLogger())
	ctx := context.Background()

	assert.Equal(t, "pong", store.Text(ctx, "common.pong"))
	assert.Equal(t, "pong", store.Text(ctx, "common.pong"))
	assert.Equal(t, 2, src.calls, "failed fetches must not be cached")
}
