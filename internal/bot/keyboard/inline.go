package keyboard

import (
	"errors"

	telebot "gopkg.in/telebot.v3"
)

// InlineButton is a button definition before encoding. A button with URL opens a link
// instead of sending callback data.
type InlineButton struct {
	Text   string
	Unique string
	Data   string
	URL    string
}

// InlineKeyboardBuilder accumulates rows of buttons before rendering telebot markup.
type InlineKeyboardBuilder struct {
	rows [][]InlineButton
}

// NewInlineKeyboard creates an empty builder.
func NewInlineKeyboard() *InlineKeyboardBuilder {
	return &InlineKeyboardBuilder{rows: make([][]InlineButton, 0)}
}

// AddRow appends a row. Empty rows are ignored.
func (b *InlineKeyboardBuilder) AddRow(buttons ...InlineButton) *InlineKeyboardBuilder {
	if len(buttons) == 0 {
		return b
	}

	row := make([]InlineButton, len(buttons))
	copy(row, buttons)
	b.rows = append(b.rows, row)
	return b
}

// Rows returns how many rows were added.
func (b *InlineKeyboardBuilder) Rows() int {
	return len(b.rows)
}

// Build encodes every callback button and returns the markup. It fails when any
// callback payload exceeds the Bot API limit.
func (b *InlineKeyboardBuilder) Build() (*telebot.ReplyMarkup, error) {
	keyboard := make([][]telebot.InlineButton, 0, len(b.rows))
	var errs []error

	for _, row := range b.rows {
		out := make([]telebot.InlineButton, 0, len(row))
		for _, btn := range row {
			if btn.URL != "" {
				out = append(out, telebot.InlineButton{Text: btn.Text, URL: btn.URL})
				continue
			}

			data, err := EncodeCallback(btn.Unique, btn.Data)
			if err != nil {
				errs = append(errs, err)
				continue
			}
			out = append(out, telebot.InlineButton{Text: btn.Text, Data: data})
		}
		keyboard = append(keyboard, out)
	}

	if err := errors.Join(errs...); err != nil {
		return nil, err
	}
	return &telebot.ReplyMarkup{InlineKeyboard: keyboard}, nil
}
