package bot

import (
	"log/slog"
	"sync"

	telebot "gopkg.in/telebot.v3"

	"github.com/Proton-105/studio-booking-bot/internal/bot/handlers"
	"github.com/Proton-105/studio-booking-bot/internal/state"
)

// Dispatcher routes free text to the handler of the user's conversation state.
type Dispatcher struct {
	engine        handlers.Engine
	stateHandlers map[state.State]handlers.Handler
	log           *slog.Logger
	mu            sync.RWMutex
}

// NewDispatcher creates a Dispatcher with an empty handlers registry.
func NewDispatcher(engine handlers.Engine, log *slog.Logger) *Dispatcher {
	if log == nil {
		log = slog.Default()
	}

	return &Dispatcher{
		engine:        engine,
		stateHandlers: make(map[state.State]handlers.Handler),
		log:           log,
	}
}

// RegisterStateHandler registers a handler for the provided state.
func (d *Dispatcher) RegisterStateHandler(s state.State, h handlers.Handler) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.stateHandlers[s] = h
}

// Dispatch routes the update based on the user's current state. A user without a
// conversation is in the idle state.
func (d *Dispatcher) Dispatch(c telebot.Context) error {
	userID := handlers.SenderID(c)
	if userID == 0 {
		d.log.Warn("cannot dispatch without sender information")
		return nil
	}

	ctx := handlers.Context(c)
	current, err := d.engine.Current(ctx, userID)
	if err != nil {
		return err
	}

	handler := d.getHandler(current)
	if handler == nil {
		d.log.InfoContext(ctx, "no handler registered for state", slog.String("state", string(current)), slog.Int64("user_id", userID))
		return nil
	}

	return handler(c)
}

func (d *Dispatcher) getHandler(s state.State) handlers.Handler {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.stateHandlers[s]
}
