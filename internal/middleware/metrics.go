package middleware

import (
	"strings"
	"time"

	telebot "gopkg.in/telebot.v3"

	"github.com/Proton-105/studio-booking-bot/internal/bot/handlers"
	"github.com/Proton-105/studio-booking-bot/pkg/metrics"
)

// Metrics measures execution time and status for bot handlers, reporting them to Prometheus.
func Metrics(next handlers.Handler) handlers.Handler {
	if next == nil {
		return nil
	}

	return func(c telebot.Context) error {
		start := time.Now()
		err := next(c)

		status := "ok"
		if err != nil {
			status = "error"
		}

		metrics.RecordCommand(CommandLabel(c), status, time.Since(start))

		return err
	}
}

// CommandLabel reduces an update to a low-cardinality label: the command, the
// callback action without its argument, or "text".
func CommandLabel(c telebot.Context) string {
	if c == nil {
		return "unknown"
	}

	if cb := c.Callback(); cb != nil {
		data := strings.TrimSpace(cb.Data)
		if data == "" {
			return "callback"
		}
		if i := strings.IndexByte(data, ':'); i > 0 {
			return data[:i]
		}
		return data
	}

	text := strings.TrimSpace(c.Text())
	switch {
	case text == "":
		return "unknown"
	case strings.HasPrefix(text, "/"):
		command, _, _ := strings.Cut(text, " ")
		command, _, _ = strings.Cut(command, "@")
		return command
	default:
		return "text"
	}
}
