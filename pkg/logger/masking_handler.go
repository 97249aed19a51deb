package logger

import (
	"context"
	"log/slog"
	"strings"
)

var secretKeys = []string{
	"password",
	"token",
	"secret",
	"api_key",
	"authorization",
	"dsn",
}

// Contact details are partially masked so support can still correlate records.
var contactKeys = []string{
	"phone",
	"client_phone",
	"customer_phone",
}

// MaskingHandler wraps a slog.Handler and masks secrets and customer contact
// details before delegating.
type MaskingHandler struct {
	next slog.Handler
}

// NewMaskingHandler creates a handler that masks sensitive fields before passing records downstream.
func NewMaskingHandler(next slog.Handler) *MaskingHandler {
	return &MaskingHandler{next: next}
}

// Enabled reports whether the handler handles records at the given level.
func (h *MaskingHandler) Enabled(ctx context.Context, level slog.Level) bool {
	return h.next.Enabled(ctx, level)
}

// WithAttrs returns a new handler with additional attributes.
func (h *MaskingHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	masked := make([]slog.Attr, len(attrs))
	for i, attr := range attrs {
		masked[i] = maskAttr(attr)
	}
	return &MaskingHandler{next: h.next.WithAttrs(masked)}
}

// WithGroup returns a new handler with an appended group name.
func (h *MaskingHandler) WithGroup(name string) slog.Handler {
	return &MaskingHandler{next: h.next.WithGroup(name)}
}

// Handle applies masking to sensitive attributes and delegates to the wrapped handler.
func (h *MaskingHandler) Handle(ctx context.Context, record slog.Record) error {
	masked := slog.NewRecord(record.Time, record.Level, record.Message, record.PC)

	record.Attrs(func(attr slog.Attr) bool {
		masked.AddAttrs(maskAttr(attr))
		return true
	})

	return h.next.Handle(ctx, masked)
}

func maskAttr(attr slog.Attr) slog.Attr {
	value := attr.Value.Resolve()

	if value.Kind() == slog.KindGroup {
		group := value.Group()
		masked := make([]slog.Attr, len(group))
		for i, child := range group {
			masked[i] = maskAttr(child)
		}
		return slog.Attr{Key: attr.Key, Value: slog.GroupValue(masked...)}
	}

	switch {
	case matchesKey(attr.Key, secretKeys):
		return slog.String(attr.Key, "***")
	case matchesKey(attr.Key, contactKeys):
		return slog.String(attr.Key, MaskPhone(value.String()))
	default:
		return attr
	}
}

// MaskPhone keeps only the last two digits of a phone number.
func MaskPhone(phone string) string {
	digits := make([]rune, 0, len(phone))
	for _, r := range phone {
		if r >= '0' && r <= '9' {
			digits = append(digits, r)
		}
	}
	if len(digits) <= 2 {
		return "***"
	}
	return "***" + string(digits[len(digits)-2:])
}

func matchesKey(key string, keys []string) bool {
	for _, candidate := range keys {
		if strings.EqualFold(key, candidate) {
			return true
		}
	}
	return false
}
