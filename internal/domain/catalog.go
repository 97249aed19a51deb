// Package domain holds the studio entities exchanged with the backend.
package domain

import (
	"bytes"
	"encoding/json"
	"strconv"
	"strings"
)

const (
	DefaultServiceName     = "Услуга"
	DefaultMasterName      = "Мастер"
	DefaultDurationMinutes = 60
)

// ID is an identifier the backend may encode either as a JSON string or a number.
type ID string

// UnmarshalJSON accepts strings, numbers and null.
func (id *ID) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		*id = ""
		return nil
	}

	if data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*id = ID(strings.TrimSpace(s))
		return nil
	}

	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return err
	}
	*id = ID(n.String())
	return nil
}

func (id ID) String() string { return string(id) }

// Service is a bookable studio service.
type Service struct {
	ID              ID     `json:"id"`
	Name            string `json:"name"`
	DurationMinutes int    `json:"duration"`
	Price           int64  `json:"price"`
}

// UnmarshalJSON applies the catalog defaults for missing fields.
func (s *Service) UnmarshalJSON(data []byte) error {
	var raw struct {
		ID       ID              `json:"id"`
		Name     string          `json:"name"`
		Title    string          `json:"title"`
		Duration json.RawMessage `json:"duration"`
		Price    json.RawMessage `json:"price"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	s.ID = raw.ID
	s.Name = firstNonEmpty(raw.Name, raw.Title, DefaultServiceName)
	s.DurationMinutes = int(flexInt(raw.Duration, DefaultDurationMinutes))
	if s.DurationMinutes <= 0 {
		s.DurationMinutes = DefaultDurationMinutes
	}
	s.Price = flexInt(raw.Price, 0)
	return nil
}

// Master is a studio artist.
type Master struct {
	ID             ID     `json:"id"`
	Name           string `json:"name"`
	Nickname       string `json:"nickname,omitempty"`
	Telegram       string `json:"telegram,omitempty"`
	Specialization string `json:"specialization,omitempty"`
	Avatar         string `json:"avatar,omitempty"`
	TeletypeURL    string `json:"teletypeUrl,omitempty"`
	Active         bool   `json:"isActive"`
}

// UnmarshalJSON applies defaults: unnamed masters get a placeholder name and
// masters without an explicit flag are active.
func (m *Master) UnmarshalJSON(data []byte) error {
	var raw struct {
		ID             ID     `json:"id"`
		Name           string `json:"name"`
		Title          string `json:"title"`
		Nickname       string `json:"nickname"`
		Telegram       string `json:"telegram"`
		Specialization string `json:"specialization"`
		Avatar         string `json:"avatar"`
		TeletypeURL    string `json:"teletypeUrl"`
		IsActive       *bool  `json:"isActive"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	*m = Master{
		ID:             raw.ID,
		Name:           firstNonEmpty(raw.Name, raw.Title, DefaultMasterName),
		Nickname:       strings.TrimPrefix(strings.TrimSpace(raw.Nickname), "@"),
		Telegram:       raw.Telegram,
		Specialization: strings.TrimSpace(raw.Specialization),
		Avatar:         raw.Avatar,
		TeletypeURL:    raw.TeletypeURL,
		Active:         raw.IsActive == nil || *raw.IsActive,
	}
	return nil
}

// PortfolioItem is a single work in a master's portfolio.
type PortfolioItem struct {
	ID        ID     `json:"id"`
	URL       string `json:"url"`
	Title     string `json:"title"`
	MediaType string `json:"mediaType"`
	MasterID  ID     `json:"masterId"`
	Style     string `json:"style"`
	Thumbnail string `json:"thumbnail"`
}

// IsVideo reports whether the item should be sent as a video.
func (p PortfolioItem) IsVideo() bool {
	return strings.EqualFold(p.MediaType, "video")
}

// ActiveMasters filters out inactive masters, preserving order.
func ActiveMasters(masters []Master) []Master {
	out := make([]Master, 0, len(masters))
	for _, m := range masters {
		if m.Active {
			out = append(out, m)
		}
	}
	return out
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if trimmed := strings.TrimSpace(v); trimmed != "" {
			return trimmed
		}
	}
	return ""
}

// flexInt decodes a JSON number or numeric string, returning def when absent or malformed.
func flexInt(raw json.RawMessage, def int64) int64 {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return def
	}

	var n json.Number
	if raw[0] == '"' {
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			return def
		}
		n = json.Number(strings.TrimSpace(s))
	} else if err := json.Unmarshal(raw, &n); err != nil {
		return def
	}

	if v, err := n.Int64(); err == nil {
		return v
	}
	if f, err := strconv.ParseFloat(n.String(), 64); err == nil {
		return int64(f)
	}
	return def
}
