// Package bot wires the Telegram transport to the booking conversation and the
// informational menus.
package bot

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"sync/atomic"

	telebot "gopkg.in/telebot.v3"

	"github.com/Proton-105/studio-booking-bot/internal/bot/handlers"
	"github.com/Proton-105/studio-booking-bot/internal/bot/keyboard"
	errors "github.com/Proton-105/studio-booking-bot/internal/errors"
	"github.com/Proton-105/studio-booking-bot/internal/idempotency"
	"github.com/Proton-105/studio-booking-bot/internal/middleware"
	"github.com/Proton-105/studio-booking-bot/internal/ratelimit"
	"github.com/Proton-105/studio-booking-bot/internal/state"
	"github.com/Proton-105/studio-booking-bot/pkg/config"
)

// Deps are the collaborators the bot hands updates to.
type Deps struct {
	Engine       handlers.Engine
	Verifier     handlers.Verifier
	Content      handlers.Content
	Media        handlers.MediaFetcher
	Texts        handlers.Templates
	Limiter      ratelimit.Limiter
	Rules        *ratelimit.Rules
	Idempotency  idempotency.Manager
	ErrorHandler *errors.Handler
	Turns        *state.TurnLocker
	Logger       *slog.Logger
}

// Bot wraps telebot.Bot with the router serving every update.
type Bot struct {
	telebot *telebot.Bot
	router  *Router
	texts   handlers.Texts
	log     *slog.Logger

	started  atomic.Bool
	stopOnce sync.Once
}

// New builds a telegram bot configured for long polling or a webhook.
func New(cfg config.BotConfig, deps Deps) (*Bot, error) {
	settings := telebot.Settings{
		Token: cfg.Token,
	}

	if cfg.Mode == "webhook" {
		settings.Poller = &telebot.Webhook{
			Listen:         cfg.Listen,
			AllowedUpdates: []string{"message", "callback_query"},
			Endpoint:       &telebot.WebhookEndpoint{PublicURL: cfg.WebhookURL},
		}
	} else {
		settings.Poller = &telebot.LongPoller{
			Timeout:        cfg.Timeout,
			AllowedUpdates: []string{"message", "callback_query"},
		}
	}

	return NewWithSettings(settings, deps)
}

// NewWithSettings builds the bot from explicit telebot settings.
func NewWithSettings(settings telebot.Settings, deps Deps) (*Bot, error) {
	log := deps.Logger
	if log == nil {
		log = slog.Default()
	}

	settings.OnError = func(err error, c telebot.Context) {
		attrs := []any{slog.Any("error", err)}
		if c != nil {
			attrs = append(attrs, slog.Int64("user_id", handlers.SenderID(c)))
		}
		log.Error("telegram error", attrs...)
	}

	tb, err := telebot.NewBot(settings)
	if err != nil {
		return nil, fmt.Errorf("initialize telebot: %w", err)
	}

	b := &Bot{
		telebot: tb,
		texts:   deps.Texts,
		log:     log,
	}
	b.router = b.setupRouter(deps)

	tb.Handle(telebot.OnText, b.router.Route)
	tb.Handle(telebot.OnCallback, b.router.Route)

	return b, nil
}

// Start publishes the command list and runs the update loop until Stop.
func (b *Bot) Start() {
	if b.telebot == nil || !b.started.CompareAndSwap(false, true) {
		return
	}

	ctx := context.Background()
	commands := []telebot.Command{
		{Text: strings.TrimPrefix(CommandStart, "/"), Description: b.texts.Text(ctx, "commands.start")},
		{Text: strings.TrimPrefix(CommandBook, "/"), Description: b.texts.Text(ctx, "commands.book")},
		{Text: strings.TrimPrefix(CommandCancel, "/"), Description: b.texts.Text(ctx, "commands.cancel")},
	}
	if err := b.telebot.SetCommands(commands); err != nil {
		b.log.Warn("failed to publish bot commands", slog.Any("error", err))
	}

	username := ""
	if b.telebot.Me != nil {
		username = b.telebot.Me.Username
	}
	b.log.Info("telegram bot started", slog.String("username", username))
	b.telebot.Start()
}

// Stop gracefully stops the telegram bot. Only the first call after Start has an effect.
func (b *Bot) Stop() {
	if b.telebot == nil || !b.started.Load() {
		return
	}

	b.stopOnce.Do(func() {
		b.log.Info("stopping telegram bot...")
		b.telebot.Stop()
	})
}

// Telebot exposes the underlying telebot.Bot instance for integrations such as health checks.
func (b *Bot) Telebot() *telebot.Bot {
	return b.telebot
}

// Router exposes the update router.
func (b *Bot) Router() *Router {
	return b.router
}

func (b *Bot) setupRouter(deps Deps) *Router {
	kb := keyboard.NewBuilder(deps.Texts, b.log)
	screen := handlers.NewScreen(deps.Texts, deps.Content, deps.Media, kb, b.log)
	gate := handlers.NewGate(deps.Verifier, screen, deps.Texts, b.log)
	conversation := handlers.NewBooking(deps.Engine, gate, screen, b.log)
	info := handlers.NewInfo(deps.Content, screen, deps.Texts, b.log)

	dispatcher := NewDispatcher(deps.Engine, b.log)
	dispatcher.RegisterStateHandler(state.StateIdle, gate.Answer)
	for _, s := range state.BookingStates {
		dispatcher.RegisterStateHandler(s, conversation.Step)
	}

	router := NewRouter(dispatcher, b.log)
	router.Use(ContextMiddleware())
	router.Use(RecoveryMiddleware(b.log, deps.ErrorHandler, deps.Texts))
	router.Use(LoggingMiddleware(b.log))
	router.Use(middleware.Metrics)
	router.Use(middleware.Idempotency(deps.Idempotency, b.log))
	router.Use(middleware.RateLimit(deps.Limiter, deps.Rules, deps.Texts, b.log))
	router.Use(ErrorHandlingMiddleware(deps.ErrorHandler, deps.Texts))
	router.Use(SerializeTurnsMiddleware(deps.Turns))

	router.RegisterCommand(CommandStart, gate.Start)
	router.RegisterCommand(CommandBook, conversation.Start)
	router.RegisterCommand(CommandCancel, conversation.Home)
	router.RegisterCommand(CommandPing, handlers.NewPingHandler(deps.Texts))

	router.RegisterCallback(CallbackBook, conversation.Start)
	router.RegisterCallback(CallbackHome, conversation.Home)
	for _, key := range []string{CallbackBack, CallbackService, CallbackDate, CallbackTime, CallbackMaster} {
		router.RegisterCallback(key, conversation.Step)
	}

	router.RegisterCallback(CallbackRoute, info.Route)
	router.RegisterCallback(CallbackAbout, info.About)
	router.RegisterCallback(CallbackCerts, info.Certs)
	router.RegisterCallback(CallbackPay, info.Pay)
	router.RegisterCallback(CallbackPortfolio, info.Portfolio)
	router.RegisterCallback(CallbackStyle, info.Style)
	router.RegisterCallback(CallbackDetail, info.Detail)

	return router
}
