package errors

import (
	"errors"
	"sync"
	"time"
)

const (
	ErrorThreshold      = 0.5
	MinRequests         = 10
	TimeoutDuration     = 30 * time.Second
	HalfOpenMaxRequests = 3
	// CountWindow bounds how long closed-state outcomes are remembered.
	CountWindow = time.Minute
)

type State int

const (
	StateClosed State = iota
	StateOpen
	StateHalfOpen
)

func (s State) String() string {
	switch s {
	case StateOpen:
		return "open"
	case StateHalfOpen:
		return "half_open"
	default:
		return "closed"
	}
}

var (
	// ErrCircuitOpen is returned without calling fn while the breaker is open.
	ErrCircuitOpen             = errors.New("circuit breaker is open")
	errHalfOpenTooManyRequests = errors.New("too many requests in half-open")
)

// CircuitBreaker stops calling a failing dependency once its error rate crosses
// ErrorThreshold and probes it again after the open timeout.
type CircuitBreaker struct {
	mu              sync.Mutex
	name            string
	openTimeout     time.Duration
	onStateChange   func(name string, from, to State)
	isFailure       func(error) bool
	state           State
	failures        int
	successes       int
	requests        int
	lastFailureTime time.Time
	windowStart     time.Time
	now             func() time.Time
}

// BreakerOption customises a CircuitBreaker.
type BreakerOption func(*CircuitBreaker)

// WithOpenTimeout overrides how long the breaker stays open.
func WithOpenTimeout(d time.Duration) BreakerOption {
	return func(cb *CircuitBreaker) {
		if d > 0 {
			cb.openTimeout = d
		}
	}
}

// WithStateChangeHook registers a callback invoked on every state change.
func WithStateChangeHook(fn func(name string, from, to State)) BreakerOption {
	return func(cb *CircuitBreaker) {
		cb.onStateChange = fn
	}
}

// WithFailureFilter decides which errors count against the dependency. Errors the
// filter rejects are returned to the caller but recorded as successful calls, since
// the dependency answered.
func WithFailureFilter(fn func(error) bool) BreakerOption {
	return func(cb *CircuitBreaker) {
		cb.isFailure = fn
	}
}

func NewCircuitBreaker(name string, opts ...BreakerOption) *CircuitBreaker {
	cb := &CircuitBreaker{
		name:        name,
		openTimeout: TimeoutDuration,
		state:       StateClosed,
		now:         time.Now,
	}
	for _, opt := range opts {
		opt(cb)
	}
	return cb
}

func (cb *CircuitBreaker) Call(fn func() error) error {
	if fn == nil {
		return nil
	}

	cb.mu.Lock()
	if cb.state == StateOpen {
		if cb.now().Sub(cb.lastFailureTime) >= cb.openTimeout {
			cb.setStateLocked(StateHalfOpen)
		} else {
			cb.mu.Unlock()
			return ErrCircuitOpen
		}
	}

	if cb.state == StateHalfOpen && cb.requests >= HalfOpenMaxRequests {
		cb.mu.Unlock()
		return errHalfOpenTooManyRequests
	}
	if cb.state == StateHalfOpen {
		cb.requests++
	}
	cb.mu.Unlock()

	callErr := fn()

	cb.mu.Lock()
	defer cb.mu.Unlock()

	if cb.state == StateClosed {
		cb.rollWindowLocked()
	}
	if cb.state != StateHalfOpen {
		cb.requests++
	}

	if callErr != nil && cb.counts(callErr) {
		cb.failures++

		if cb.state == StateHalfOpen {
			cb.lastFailureTime = cb.now()
			cb.setStateLocked(StateOpen)
		} else {
			cb.evaluateLocked()
		}

		return callErr
	}

	cb.successes++

	if cb.state == StateHalfOpen && cb.successes >= HalfOpenMaxRequests {
		cb.setStateLocked(StateClosed)
	}

	return callErr
}

func (cb *CircuitBreaker) counts(err error) bool {
	return cb.isFailure == nil || cb.isFailure(err)
}

// rollWindowLocked forgets closed-state outcomes older than CountWindow, so the error
// rate reflects recent calls only.
func (cb *CircuitBreaker) rollWindowLocked() {
	now := cb.now()
	if cb.windowStart.IsZero() || now.Sub(cb.windowStart) >= CountWindow {
		cb.failures = 0
		cb.successes = 0
		cb.requests = 0
		cb.windowStart = now
	}
}

func (cb *CircuitBreaker) evaluateLocked() {
	if cb.requests < MinRequests {
		return
	}

	errorRate := float64(cb.failures) / float64(cb.requests)
	if errorRate >= ErrorThreshold {
		cb.lastFailureTime = cb.now()
		cb.setStateLocked(StateOpen)
	}
}

func (cb *CircuitBreaker) State() State {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	return cb.state
}

func (cb *CircuitBreaker) setStateLocked(next State) {
	prev := cb.state
	cb.state = next
	cb.failures = 0
	cb.successes = 0
	cb.requests = 0
	cb.windowStart = cb.now()

	if prev != next && cb.onStateChange != nil {
		cb.onStateChange(cb.name, prev, next)
	}
}

// IsBreakerRejection reports whether err came from a breaker refusing the call
// without running it.
func IsBreakerRejection(err error) bool {
	return errors.Is(err, ErrCircuitOpen) || errors.Is(err, errHalfOpenTooManyRequests)
}
