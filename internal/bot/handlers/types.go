package handlers

import (
	"context"

	telebot "gopkg.in/telebot.v3"

	"github.com/Proton-105/studio-booking-bot/internal/booking"
	"github.com/Proton-105/studio-booking-bot/internal/domain"
	"github.com/Proton-105/studio-booking-bot/internal/gateway"
	"github.com/Proton-105/studio-booking-bot/internal/state"
	"github.com/Proton-105/studio-booking-bot/internal/verification"
)

// Handler processes a bot update.
type Handler func(c telebot.Context) error

// Middleware wraps handlers with additional behavior.
type Middleware func(Handler) Handler

// Texts resolves user-facing copy by key.
type Texts interface {
	Text(ctx context.Context, key string) string
	Render(ctx context.Context, key string, vars map[string]string) string
}

// Templates are Texts that may also carry admin-edited content and images.
type Templates interface {
	Texts
	Image(ctx context.Context, key string) string
	Remote(ctx context.Context, key string) string
}

// Engine runs the booking conversation.
type Engine interface {
	Current(ctx context.Context, userID int64) (state.State, error)
	Start(ctx context.Context, in booking.Input) (booking.Prompt, error)
	Home(ctx context.Context, userID int64) (booking.Prompt, error)
	Handle(ctx context.Context, in booking.Input) (booking.Prompt, error)
}

// Verifier gates first contact behind a challenge.
type Verifier interface {
	IsVerified(ctx context.Context, userID int64) bool
	Issue(ctx context.Context, userID int64) (verification.Challenge, error)
	Check(ctx context.Context, userID int64, text string) (verification.Outcome, error)
}

// Content is the studio information shown outside the booking flow.
type Content interface {
	GetSettings(ctx context.Context) (domain.Settings, error)
	ListMasters(ctx context.Context) ([]domain.Master, error)
	ListPortfolio(ctx context.Context) ([]domain.PortfolioItem, error)
}

// MediaFetcher downloads uploaded photos and videos.
type MediaFetcher interface {
	FetchMedia(ctx context.Context, url string) (*gateway.Media, error)
}

const contextKey = "request_ctx"

// Context returns the request context attached to the update.
func Context(c telebot.Context) context.Context {
	if c != nil {
		if ctx, ok := c.Get(contextKey).(context.Context); ok && ctx != nil {
			return ctx
		}
	}
	return context.Background()
}

// WithContext attaches ctx to the update.
func WithContext(c telebot.Context, ctx context.Context) {
	c.Set(contextKey, ctx)
}

// SenderID returns the id of the user behind the update, or 0.
func SenderID(c telebot.Context) int64 {
	if c == nil || c.Sender() == nil {
		return 0
	}
	return c.Sender().ID
}

// Reply answers a callback with a toast or sends a message for any other update.
func Reply(c telebot.Context, text string) error {
	if c.Callback() != nil {
		c.Set(answeredKey, true)
		return c.Respond(&telebot.CallbackResponse{Text: text})
	}
	return c.Send(text)
}

// input describes the update as a booking turn.
func input(c telebot.Context) booking.Input {
	in := booking.Input{UserID: SenderID(c)}
	if sender := c.Sender(); sender != nil {
		in.Username = sender.Username
	}
	if chat := c.Chat(); chat != nil {
		in.ChatID = chat.ID
	} else {
		in.ChatID = in.UserID
	}

	if cb := c.Callback(); cb != nil {
		in.Action = cb.Data
	} else {
		in.Text = c.Text()
	}
	return in
}
