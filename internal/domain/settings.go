package domain

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// Settings are the studio-wide values managed in the admin panel.
type Settings struct {
	Address      string
	PaymentInfo  string
	WelcomeText  string
	Certificates []string
	Latitude     string
	Longitude    string
}

// HasCoordinates reports whether both coordinates are set and numeric.
func (s Settings) HasCoordinates() bool {
	_, latErr := strconv.ParseFloat(s.Latitude, 64)
	_, lngErr := strconv.ParseFloat(s.Longitude, 64)
	return s.Latitude != "" && s.Longitude != "" && latErr == nil && lngErr == nil
}

// Coordinates returns the parsed latitude and longitude.
func (s Settings) Coordinates() (lat, lng float64, ok bool) {
	if !s.HasCoordinates() {
		return 0, 0, false
	}
	lat, _ = strconv.ParseFloat(s.Latitude, 64)
	lng, _ = strconv.ParseFloat(s.Longitude, 64)
	return lat, lng, true
}

// UnmarshalJSON accepts the loosely typed settings object served by the backend.
func (s *Settings) UnmarshalJSON(data []byte) error {
	var raw map[string]any
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	*s = Settings{
		Address:      stringField(raw, "address"),
		PaymentInfo:  stringField(raw, "paymentInfo"),
		WelcomeText:  stringField(raw, "welcomeText"),
		Certificates: splitList(stringField(raw, "certificates")),
		Latitude:     stringField(raw, "lat", "latitude"),
		Longitude:    stringField(raw, "lng", "lon", "longitude"),
	}
	return nil
}

func stringField(raw map[string]any, keys ...string) string {
	for _, key := range keys {
		value, ok := raw[key]
		if !ok || value == nil {
			continue
		}

		var s string
		switch v := value.(type) {
		case string:
			s = v
		case float64:
			s = strconv.FormatFloat(v, 'f', -1, 64)
		default:
			s = fmt.Sprint(v)
		}

		if s = strings.TrimSpace(s); s != "" {
			return s
		}
	}
	return ""
}

func splitList(value string) []string {
	if value == "" {
		return nil
	}

	parts := strings.Split(value, ",")
	out := make([]string, 0, len(parts))
	for _, part := range parts {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}

// Template is an admin-editable bot message.
type Template struct {
	Key      string `json:"key"`
	Text     string `json:"text"`
	ImageURL string `json:"imageUrl,omitempty"`
	Type     string `json:"type,omitempty"`
}
