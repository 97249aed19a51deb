package bot

import (
	"log/slog"
	"strings"
	"sync"

	telebot "gopkg.in/telebot.v3"

	"github.com/Proton-105/studio-booking-bot/internal/bot/handlers"
)

// Router dispatches commands, callbacks, and state-aware updates through a shared
// middleware chain.
type Router struct {
	mu          sync.RWMutex
	commands    map[string]handlers.Handler
	callbacks   map[string]handlers.Handler
	prefixes    []string
	dispatcher  *Dispatcher
	middlewares []handlers.Middleware
	log         *slog.Logger
}

// NewRouter builds a Router with empty registries.
func NewRouter(dispatcher *Dispatcher, log *slog.Logger) *Router {
	if log == nil {
		log = slog.Default()
	}

	return &Router{
		commands:    make(map[string]handlers.Handler),
		callbacks:   make(map[string]handlers.Handler),
		dispatcher:  dispatcher,
		middlewares: make([]handlers.Middleware, 0),
		log:         log,
	}
}

// RegisterCommand registers a handler for a bot command.
func (r *Router) RegisterCommand(cmd string, h handlers.Handler) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.commands[strings.ToLower(cmd)] = h
}

// RegisterCallback registers a handler for callback data. A key ending with ":"
// matches every payload it prefixes, other keys match exactly.
func (r *Router) RegisterCallback(key string, h handlers.Handler) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.callbacks[key]; !exists && strings.HasSuffix(key, ":") {
		r.prefixes = append(r.prefixes, key)
	}
	r.callbacks[key] = h
}

// Use appends a middleware to the chain.
func (r *Router) Use(mw handlers.Middleware) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.middlewares = append(r.middlewares, mw)
}

// Route directs the incoming update to the appropriate handler.
func (r *Router) Route(c telebot.Context) error {
	if c == nil {
		return nil
	}

	if callback := c.Callback(); callback != nil {
		return r.handleCallback(c, callback.Data)
	}

	return r.handleMessage(c)
}

func (r *Router) handleCallback(c telebot.Context, data string) error {
	handler := r.findCallbackHandler(data)
	if handler == nil {
		r.log.Info("no callback handler found", slog.String("data", data))
		return c.Respond()
	}

	return r.executeHandler(handler, c)
}

func (r *Router) handleMessage(c telebot.Context) error {
	if command := parseCommand(c.Text()); command != "" {
		if handler := r.getCommandHandler(command); handler != nil {
			return r.executeHandler(handler, c)
		}
	}

	if r.dispatcher == nil {
		return nil
	}
	return r.executeHandler(r.dispatcher.Dispatch, c)
}

func (r *Router) executeHandler(h handlers.Handler, c telebot.Context) error {
	wrapped := r.applyMiddlewares(h)
	if wrapped == nil {
		return nil
	}
	return wrapped(c)
}

// findCallbackHandler prefers an exact match, then the longest matching prefix.
func (r *Router) findCallbackHandler(data string) handlers.Handler {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if handler, ok := r.callbacks[data]; ok && !strings.HasSuffix(data, ":") {
		return handler
	}

	best := ""
	for _, prefix := range r.prefixes {
		if strings.HasPrefix(data, prefix) && len(prefix) > len(best) {
			best = prefix
		}
	}
	if best == "" {
		return nil
	}
	return r.callbacks[best]
}

func (r *Router) getCommandHandler(cmd string) handlers.Handler {
	r.mu.RLock()
	handler := r.commands[cmd]
	r.mu.RUnlock()
	return handler
}

// applyMiddlewares wraps the handler with all registered middlewares.
func (r *Router) applyMiddlewares(h handlers.Handler) handlers.Handler {
	if h == nil {
		return nil
	}

	middlewares := r.middlewaresSnapshot()
	wrapped := h
	for i := len(middlewares) - 1; i >= 0; i-- {
		wrapped = middlewares[i](wrapped)
	}

	return wrapped
}

func (r *Router) middlewaresSnapshot() []handlers.Middleware {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if len(r.middlewares) == 0 {
		return nil
	}

	snapshot := make([]handlers.Middleware, len(r.middlewares))
	copy(snapshot, r.middlewares)
	return snapshot
}
