// Package keyboard builds the inline keyboards of the bot.
package keyboard

import (
	"context"
	"log/slog"
	"strconv"

	telebot "gopkg.in/telebot.v3"

	"github.com/Proton-105/studio-booking-bot/internal/booking"
)

// StyleIndexPrefix marks a style callback that carries the style position instead of
// its name, used when the name does not fit into callback data.
const StyleIndexPrefix = "#"

// Texts resolves button captions.
type Texts interface {
	Text(ctx context.Context, key string) string
}

// Builder creates the inline keyboards shown by the bot.
type Builder struct {
	texts Texts
	log   *slog.Logger
}

// NewBuilder returns a new Builder instance.
func NewBuilder(texts Texts, log *slog.Logger) *Builder {
	if log == nil {
		log = slog.Default()
	}
	return &Builder{texts: texts, log: log}
}

// MainMenu builds the top-level menu.
func (b *Builder) MainMenu(ctx context.Context) *telebot.ReplyMarkup {
	kb := NewInlineKeyboard()
	b.addMenu(ctx, kb)
	return b.build(ctx, kb)
}

// BackHome builds the single back button leading to the main menu.
func (b *Builder) BackHome(ctx context.Context) *telebot.ReplyMarkup {
	return b.backTo(ctx, booking.ActionHome)
}

// FromPrompt renders the choices of a booking prompt, followed by the main menu when
// the prompt ends the conversation.
func (b *Builder) FromPrompt(ctx context.Context, p booking.Prompt) *telebot.ReplyMarkup {
	kb := NewInlineKeyboard()
	for _, row := range p.Choices {
		buttons := make([]InlineButton, 0, len(row))
		for _, choice := range row {
			buttons = append(buttons, InlineButton{Text: choice.Text, Unique: choice.Action, URL: choice.URL})
		}
		kb.AddRow(buttons...)
	}
	if p.Home {
		b.addMenu(ctx, kb)
	}
	if kb.Rows() == 0 {
		return nil
	}
	return b.build(ctx, kb)
}

// MasterCard builds the buttons under a master's card. The detail button opens the
// master's page when one is published.
func (b *Builder) MasterCard(ctx context.Context, masterID, detailURL string) *telebot.ReplyMarkup {
	detail := InlineButton{Text: b.texts.Text(ctx, "info.master_detail"), Unique: CallbackDetail, Data: masterID}
	if detailURL != "" {
		detail = InlineButton{Text: detail.Text, URL: detailURL}
	}

	kb := NewInlineKeyboard().
		AddRow(detail, InlineButton{Text: b.texts.Text(ctx, "info.master_portfolio"), Unique: CallbackPortfolio, Data: masterID}).
		AddRow(InlineButton{Text: b.texts.Text(ctx, "menu.back"), Unique: booking.ActionHome})
	return b.build(ctx, kb)
}

// MasterDetail builds the buttons under a master's description.
func (b *Builder) MasterDetail(ctx context.Context, masterID string) *telebot.ReplyMarkup {
	kb := NewInlineKeyboard().
		AddRow(InlineButton{Text: b.texts.Text(ctx, "info.master_portfolio"), Unique: CallbackPortfolio, Data: masterID}).
		AddRow(InlineButton{Text: b.texts.Text(ctx, "menu.back"), Unique: CallbackAbout})
	return b.build(ctx, kb)
}

// Styles lists a master's portfolio styles, one per row, with a way back to the masters.
func (b *Builder) Styles(ctx context.Context, masterID string, styles []string) *telebot.ReplyMarkup {
	kb := NewInlineKeyboard()
	for i, style := range styles {
		kb.AddRow(InlineButton{Text: style, Unique: CallbackStyle, Data: StyleData(masterID, style, i)})
	}
	kb.AddRow(InlineButton{Text: b.texts.Text(ctx, "menu.back"), Unique: CallbackAbout})
	return b.build(ctx, kb)
}

// StyleData is the payload of a style button: the style name when it fits, its index otherwise.
func StyleData(masterID, style string, index int) string {
	data := masterID + CallbackDataSeparator + style
	if _, err := EncodeCallback(CallbackStyle, data); err == nil {
		return data
	}
	return masterID + CallbackDataSeparator + StyleIndexPrefix + strconv.Itoa(index)
}

func (b *Builder) backTo(ctx context.Context, action string) *telebot.ReplyMarkup {
	kb := NewInlineKeyboard().AddRow(InlineButton{Text: b.texts.Text(ctx, "menu.back"), Unique: action})
	return b.build(ctx, kb)
}

func (b *Builder) addMenu(ctx context.Context, kb *InlineKeyboardBuilder) {
	kb.AddRow(InlineButton{Text: b.texts.Text(ctx, "menu.book"), Unique: booking.ActionBook}).
		AddRow(
			InlineButton{Text: b.texts.Text(ctx, "menu.route"), Unique: CallbackRoute},
			InlineButton{Text: b.texts.Text(ctx, "menu.about"), Unique: CallbackAbout},
		).
		AddRow(InlineButton{Text: b.texts.Text(ctx, "menu.certs"), Unique: CallbackCerts}).
		AddRow(InlineButton{Text: b.texts.Text(ctx, "menu.pay"), Unique: CallbackPay})
}

func (b *Builder) build(ctx context.Context, kb *InlineKeyboardBuilder) *telebot.ReplyMarkup {
	markup, err := kb.Build()
	if err != nil {
		b.log.ErrorContext(ctx, "keyboard dropped", slog.Any("error", err))
		return nil
	}
	return markup
}
