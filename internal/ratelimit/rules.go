package ratelimit

import (
	"fmt"
	"time"

	"github.com/Proton-105/studio-booking-bot/pkg/config"
)

// Rule names, also used as metric labels.
const (
	RulePerUser = "per_user"
	RuleBooking = "booking"
)

// Rule is a parsed limit.
type Rule struct {
	Name   string
	Limit  int
	Window time.Duration
}

// Rules holds the configured limits and the whitelist.
type Rules struct {
	PerUser   Rule
	Booking   Rule
	whitelist map[int64]struct{}
}

// NewRules parses the configured limits.
func NewRules(cfg config.RateLimitConfig) (*Rules, error) {
	perUser, err := parseRule(RulePerUser, cfg.PerUser)
	if err != nil {
		return nil, err
	}
	booking, err := parseRule(RuleBooking, cfg.Booking)
	if err != nil {
		return nil, err
	}

	whitelist := make(map[int64]struct{}, len(cfg.Whitelist))
	for _, id := range cfg.Whitelist {
		whitelist[id] = struct{}{}
	}

	return &Rules{PerUser: perUser, Booking: booking, whitelist: whitelist}, nil
}

// IsWhitelisted returns true if the userID bypasses rate limits.
func (r *Rules) IsWhitelisted(userID int64) bool {
	_, ok := r.whitelist[userID]
	return ok
}

// Key returns the limiter key of rule for a user.
func (r Rule) Key(userID int64) string {
	return fmt.Sprintf("%s:%d", r.Name, userID)
}

func parseRule(name string, rule config.RateLimitRule) (Rule, error) {
	if rule.Window == "" {
		return Rule{}, fmt.Errorf("rate limit %s: window duration is not set", name)
	}
	window, err := time.ParseDuration(rule.Window)
	if err != nil {
		return Rule{}, fmt.Errorf("rate limit %s: %w", name, err)
	}
	if window <= 0 || rule.Limit <= 0 {
		return Rule{}, fmt.Errorf("rate limit %s: limit and window must be positive", name)
	}
	return Rule{Name: name, Limit: rule.Limit, Window: window}, nil
}
