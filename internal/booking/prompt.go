package booking

import "strings"

// Callback actions understood by the engine.
const (
	ActionBook = "book"
	ActionBack = "back"
	ActionHome = "home"

	PrefixService = "svc:"
	PrefixDate    = "d:"
	PrefixTime    = "t:"
	PrefixMaster  = "m:"
)

// Choice is one button of a prompt.
type Choice struct {
	Text   string
	Action string
	URL    string
}

// Prompt is what the user sees after a turn: text plus rows of choices. Home asks
// the renderer to append the main menu.
type Prompt struct {
	Key      string
	Text     string
	Markdown bool
	Choices  [][]Choice
	Home     bool
}

// IsBookingAction reports whether a callback belongs to the booking conversation.
func IsBookingAction(data string) bool {
	if data == ActionBack {
		return true
	}
	for _, prefix := range []string{PrefixService, PrefixDate, PrefixTime, PrefixMaster} {
		if strings.HasPrefix(data, prefix) {
			return true
		}
	}
	return false
}

// grid lays choices out in rows of perRow.
func grid(choices []Choice, perRow int) [][]Choice {
	if perRow <= 0 {
		perRow = 1
	}

	rows := make([][]Choice, 0, (len(choices)+perRow-1)/perRow)
	for start := 0; start < len(choices); start += perRow {
		end := start + perRow
		if end > len(choices) {
			end = len(choices)
		}
		rows = append(rows, choices[start:end])
	}
	return rows
}

var markdownEscaper = strings.NewReplacer(
	"_", "\\_",
	"*", "\\*",
	"`", "\\`",
	"[", "\\[",
)

// EscapeMarkdown makes user or admin supplied text safe inside a Markdown message.
func EscapeMarkdown(s string) string {
	return markdownEscaper.Replace(s)
}
