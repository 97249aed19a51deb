// Package metrics exposes the bot's Prometheus instruments.
package metrics

import (
	"context"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/Proton-105/studio-booking-bot/internal/state"
)

var (
	botCommandsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "bot_commands_total",
			Help: "Total number of bot updates handled labeled by route and status",
		},
		[]string{"command", "status"},
	)
	commandDurationSeconds = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "command_duration_seconds",
			Help:    "Duration of bot update handling in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"command"},
	)
	stateTransitionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "state_transitions_total",
			Help: "Total number of booking state transitions",
		},
		[]string{"from", "to"},
	)
	errorsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "errors_total",
			Help: "Total number of errors split by code and severity",
		},
		[]string{"type", "severity"},
	)
	bookingSubmissionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "booking_submissions_total",
			Help: "Booking submissions by outcome",
		},
		[]string{"outcome"},
	)
	guardBlocksTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "booking_guard_blocks_total",
			Help: "Booking attempts refused because the user already has an active booking",
		},
	)
	backendRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "backend_request_duration_seconds",
			Help:    "Latency of studio backend requests",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "endpoint", "outcome"},
	)
	rateLimitDecisionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "rate_limit_decisions_total",
			Help: "Rate limiter decisions by rule and result",
		},
		[]string{"rule", "result"},
	)
	activeSessions = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "booking_sessions_active",
			Help: "Current number of booking conversations in progress",
		},
	)
	sessionsByState = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "booking_sessions_by_state",
			Help: "Number of booking conversations per state",
		},
		[]string{"state"},
	)
)

func init() {
	state.RegisterTransitionRecorder(RecordStateTransition)
}

// RecordCommand increments command counters and records duration.
func RecordCommand(command, status string, duration time.Duration) {
	command = orUnknown(command)
	status = orUnknown(status)

	botCommandsTotal.WithLabelValues(command, status).Inc()
	commandDurationSeconds.WithLabelValues(command).Observe(duration.Seconds())
}

// RecordStateTransition tracks FSM transitions.
func RecordStateTransition(from, to string) {
	stateTransitionsTotal.WithLabelValues(orUnknown(from), orUnknown(to)).Inc()
}

// RecordError increments error counters with metadata.
func RecordError(errType, severity string) {
	errorsTotal.WithLabelValues(orUnknown(errType), orUnknown(severity)).Inc()
}

// RecordBookingSubmission counts a submission outcome: accepted, rejected or duplicate.
func RecordBookingSubmission(outcome string) {
	bookingSubmissionsTotal.WithLabelValues(orUnknown(outcome)).Inc()
}

// RecordGuardBlock counts a refused booking attempt.
func RecordGuardBlock() {
	guardBlocksTotal.Inc()
}

// RecordBackendRequest observes one attempt against one backend endpoint.
func RecordBackendRequest(method, endpoint, outcome string, duration time.Duration) {
	backendRequestDuration.WithLabelValues(orUnknown(method), orUnknown(endpoint), orUnknown(outcome)).Observe(duration.Seconds())
}

// RecordRateLimit counts a limiter decision.
func RecordRateLimit(rule string, allowed bool) {
	result := "allowed"
	if !allowed {
		result = "limited"
	}
	rateLimitDecisionsTotal.WithLabelValues(orUnknown(rule), result).Inc()
}

func orUnknown(v string) string {
	if v == "" {
		return "unknown"
	}
	return v
}

// StateCollector periodically gathers session counts per state.
type StateCollector struct {
	fsm      state.StateMachine
	interval time.Duration
}

// NewStateCollector builds a metrics collector bound to the provided FSM.
func NewStateCollector(fsm state.StateMachine, interval time.Duration) *StateCollector {
	if interval <= 0 {
		interval = 10 * time.Second
	}
	return &StateCollector{fsm: fsm, interval: interval}
}

// Run polls the FSM until ctx is cancelled.
func (c *StateCollector) Run(ctx context.Context) {
	if c == nil || c.fsm == nil {
		return
	}

	ticker := time.NewTicker(c.interval)
	defer ticker.Stop()

	for {
		_ = c.collect(ctx)

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

func (c *StateCollector) collect(ctx context.Context) error {
	sessions, err := c.fsm.GetAllSessions(ctx)
	if err != nil {
		return err
	}

	activeSessions.Set(float64(len(sessions)))

	counts := make(map[state.State]int, len(state.BookingStates))
	for _, s := range sessions {
		if s != nil {
			counts[s.State]++
		}
	}

	sessionsByState.Reset()
	for _, tracked := range state.BookingStates {
		sessionsByState.WithLabelValues(string(tracked)).Set(float64(counts[tracked]))
		delete(counts, tracked)
	}
	for st, n := range counts {
		sessionsByState.WithLabelValues(orUnknown(string(st))).Set(float64(n))
	}

	return nil
}
