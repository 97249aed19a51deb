package handlers

import (
	"log/slog"

	telebot "gopkg.in/telebot.v3"
)

// Booking connects updates to the booking conversation.
type Booking struct {
	engine Engine
	gate   *Gate
	screen *Screen
	log    *slog.Logger
}

// NewBooking constructs the booking handlers. gate may be nil when nobody is challenged.
func NewBooking(engine Engine, gate *Gate, screen *Screen, log *slog.Logger) *Booking {
	if log == nil {
		log = slog.Default()
	}

	return &Booking{
		engine: engine,
		gate:   gate,
		screen: screen,
		log:    log,
	}
}

// Start opens the conversation from the menu button or /book. Unverified users get a
// challenge instead.
func (b *Booking) Start(c telebot.Context) error {
	if b.gate != nil {
		passed, err := b.gate.Passed(c)
		if err != nil || !passed {
			return err
		}
	}

	prompt, err := b.engine.Start(Context(c), input(c))
	if err != nil {
		return err
	}
	return b.screen.Prompt(c, prompt)
}

// Step applies a button press or a text reply to the running conversation.
func (b *Booking) Step(c telebot.Context) error {
	prompt, err := b.engine.Handle(Context(c), input(c))
	if err != nil {
		return err
	}
	return b.screen.Prompt(c, prompt)
}

// Home drops the conversation and shows the main screen. It serves the home button
// and /cancel.
func (b *Booking) Home(c telebot.Context) error {
	ctx := Context(c)

	prompt, err := b.engine.Home(ctx, SenderID(c))
	if err != nil {
		return err
	}

	b.log.DebugContext(ctx, "conversation closed", slog.Int64("user_id", SenderID(c)))
	return b.screen.Prompt(c, prompt)
}
