package domain

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestService_UnmarshalDefaults(t *testing.T) {
	var services []Service
	require.NoError(t, json.Unmarshal([]byte(`[
		{"id": 1, "name": "Тату", "duration": 120, "price": 5000},
		{"id": "s2", "title": "Пирсинг", "price": "1500"},
		{"id": 3, "duration": 0}
	]`), &services))

	require.Len(t, services, 3)
	assert.Equal(t, Service{ID: "1", Name: "Тату", DurationMinutes: 120, Price: 5000}, services[0])
	assert.Equal(t, Service{ID: "s2", Name: "Пирсинг", DurationMinutes: DefaultDurationMinutes, Price: 1500}, services[1])
	assert.Equal(t, DefaultServiceName, services[2].Name)
	assert.Equal(t, DefaultDurationMinutes, services[2].DurationMinutes)
}

func TestMaster_UnmarshalDefaults(t *testing.T) {
	var masters []Master
	require.NoError(t, json.Unmarshal([]byte(`[
		{"id": 7, "name": "Аня", "nickname": "@anya_ink", "specialization": "графика"},
		{"id": 8, "isActive": false}
	]`), &masters))

	require.Len(t, masters, 2)
	assert.True(t, masters[0].Active)
	assert.Equal(t, "anya_ink", masters[0].Nickname)
	assert.False(t, masters[1].Active)
	assert.Equal(t, DefaultMasterName, masters[1].Name)
	assert.Len(t, ActiveMasters(masters), 1)
}

func TestBooking_Timestamp(t *testing.T) {
	loc, err := time.LoadLocation("Europe/Moscow")
	require.NoError(t, err)

	tests := []struct {
		name    string
		booking Booking
		want    time.Time
		wantErr bool
	}{
		{
			name:    "naive date time in venue zone",
			booking: Booking{DateTime: "2025-03-10T12:00:00"},
			want:    time.Date(2025, 3, 10, 12, 0, 0, 0, loc),
		},
		{
			name:    "utc timestamp converted",
			booking: Booking{DateTime: "2025-03-10T09:00:00Z"},
			want:    time.Date(2025, 3, 10, 12, 0, 0, 0, loc),
		},
		{
			name:    "start fallback",
			booking: Booking{Start: "2025-03-10T14:30"},
			want:    time.Date(2025, 3, 10, 14, 30, 0, 0, loc),
		},
		{
			name:    "date and time fields",
			booking: Booking{Date: "2025-03-10", Time: "16:00"},
			want:    time.Date(2025, 3, 10, 16, 0, 0, 0, loc),
		},
		{
			name:    "malformed",
			booking: Booking{DateTime: "tomorrow"},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := tt.booking.Timestamp(loc)
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrNoTimestamp)
				return
			}
			require.NoError(t, err)
			assert.True(t, tt.want.Equal(got), "got %s want %s", got, tt.want)
		})
	}
}

func TestIsInactiveStatus(t *testing.T) {
	for _, status := range []string{"canceled", "Cancelled", "DONE", " completed "} {
		assert.True(t, IsInactiveStatus(status), status)
	}
	for _, status := range []string{"", "new", "confirmed", "pending"} {
		assert.False(t, IsInactiveStatus(status), status)
	}
}

func TestSettings_Unmarshal(t *testing.T) {
	var s Settings
	require.NoError(t, json.Unmarshal([]byte(`{
		"address": "Невский 1",
		"latitude": 59.93,
		"lon": "30.31",
		"certificates": "/uploads/a.png, ,/uploads/b.png"
	}`), &s))

	assert.Equal(t, "Невский 1", s.Address)
	assert.Equal(t, []string{"/uploads/a.png", "/uploads/b.png"}, s.Certificates)

	lat, lng, ok := s.Coordinates()
	require.True(t, ok)
	assert.InDelta(t, 59.93, lat, 1e-9)
	assert.InDelta(t, 30.31, lng, 1e-9)
}

func TestComposeDateTime(t *testing.T) {
	assert.Equal(t, "2025-03-10T12:00:00", ComposeDateTime("2025-03-10", "12:00"))
}
