package handlers

import (
	"log/slog"
	"strconv"

	telebot "gopkg.in/telebot.v3"

	"github.com/Proton-105/studio-booking-bot/internal/verification"
)

// Gate asks unverified users to solve a challenge before they reach the bot.
type Gate struct {
	verifier Verifier
	screen   *Screen
	texts    Texts
	log      *slog.Logger
}

// NewGate constructs a Gate.
func NewGate(verifier Verifier, screen *Screen, texts Texts, log *slog.Logger) *Gate {
	if log == nil {
		log = slog.Default()
	}

	return &Gate{
		verifier: verifier,
		screen:   screen,
		texts:    texts,
		log:      log,
	}
}

// Passed reports whether the sender is verified. When not, a fresh challenge has
// been sent to them.
func (g *Gate) Passed(c telebot.Context) (bool, error) {
	ctx := Context(c)
	userID := SenderID(c)

	if g.verifier.IsVerified(ctx, userID) {
		return true, nil
	}

	challenge, err := g.verifier.Issue(ctx, userID)
	if err != nil {
		return false, err
	}

	text := g.texts.Render(ctx, "captcha.prompt", map[string]string{
		"a": strconv.Itoa(challenge.A),
		"b": strconv.Itoa(challenge.B),
	})
	return false, g.screen.Show(c, text, nil, true)
}

// Start handles /start: the main screen for verified users, a challenge otherwise.
func (g *Gate) Start(c telebot.Context) error {
	passed, err := g.Passed(c)
	if err != nil || !passed {
		return err
	}
	return g.screen.Home(c)
}

// Answer handles free text outside the booking conversation. It is either the answer
// to a pending challenge or something the bot does not understand.
func (g *Gate) Answer(c telebot.Context) error {
	ctx := Context(c)
	userID := SenderID(c)

	outcome, err := g.verifier.Check(ctx, userID, c.Text())
	if err != nil {
		return err
	}

	switch outcome {
	case verification.OutcomeVerified:
		return g.screen.Home(c)
	case verification.OutcomeWrong:
		return c.Send(g.texts.Text(ctx, "captcha.wrong"))
	default:
		return c.Send(g.texts.Text(ctx, "common.unknown"))
	}
}
