package config

import (
	"fmt"
	"strings"
	"time"
)

// Config holds runtime configuration for the studio booking bot.
type Config struct {
	AppEnv       string             `mapstructure:"app_env"`
	Bot          BotConfig          `mapstructure:"bot"`
	Backend      BackendConfig      `mapstructure:"backend"`
	Venue        VenueConfig        `mapstructure:"venue"`
	Session      SessionConfig      `mapstructure:"session"`
	Verification VerificationConfig `mapstructure:"verification"`
	Templates    TemplatesConfig    `mapstructure:"templates"`
	Redis        RedisConfig        `mapstructure:"redis"`
	Database     DatabaseConfig     `mapstructure:"database"`
	Jobs         JobsConfig         `mapstructure:"jobs"`
	RateLimit    RateLimitConfig    `mapstructure:"rate_limit"`
	Server       ServerConfig       `mapstructure:"server"`
	Logger       LoggerConfig       `mapstructure:"logger"`
	Sentry       SentryConfig       `mapstructure:"sentry"`
}

// BotConfig configures the Telegram transport.
type BotConfig struct {
	Token      string        `mapstructure:"token" validate:"required"`
	Mode       string        `mapstructure:"mode" validate:"oneof=polling webhook"`
	Timeout    time.Duration `mapstructure:"timeout"`
	WebhookURL string        `mapstructure:"webhook_url" validate:"required_if=Mode webhook"`
	Listen     string        `mapstructure:"listen"`
}

// BackendConfig configures the content gateway towards the studio backend.
type BackendConfig struct {
	URLs              []string      `mapstructure:"urls" validate:"min=1,dive,url"`
	Username          string        `mapstructure:"username"`
	Password          string        `mapstructure:"password"`
	GetTimeout        time.Duration `mapstructure:"get_timeout" validate:"gt=0"`
	PostTimeout       time.Duration `mapstructure:"post_timeout" validate:"gt=0"`
	MediaBaseURL      string        `mapstructure:"media_base_url" validate:"omitempty,url"`
	RequestsPerSecond float64       `mapstructure:"requests_per_second" validate:"gte=0"`
	Burst             int           `mapstructure:"burst" validate:"gte=0"`
}

// VenueConfig describes the studio calendar.
type VenueConfig struct {
	Timezone    string `mapstructure:"timezone" validate:"required"`
	Open        string `mapstructure:"open" validate:"required"`
	Close       string `mapstructure:"close" validate:"required"`
	BookingDays int    `mapstructure:"booking_days" validate:"gt=0"`
}

// SessionConfig controls booking session lifetime.
type SessionConfig struct {
	TTL             time.Duration `mapstructure:"ttl" validate:"gt=0"`
	CleanupInterval time.Duration `mapstructure:"cleanup_interval" validate:"gt=0"`
}

// VerificationConfig controls the anti-spam challenge.
type VerificationConfig struct {
	Required bool   `mapstructure:"required"`
	Store    string `mapstructure:"store" validate:"oneof=memory redis postgres"`
}

// TemplatesConfig controls message template resolution.
type TemplatesConfig struct {
	CacheTTL time.Duration `mapstructure:"cache_ttl" validate:"gt=0"`
	Language string        `mapstructure:"language" validate:"required"`
}

// RedisConfig holds Redis connection settings.
type RedisConfig struct {
	Enabled      bool          `mapstructure:"enabled"`
	Addr         string        `mapstructure:"addr" validate:"required_if=Enabled true"`
	Password     string        `mapstructure:"password"`
	DB           int           `mapstructure:"db"`
	PoolSize     int           `mapstructure:"pool_size"`
	MinIdleConns int           `mapstructure:"min_idle_conns"`
	PoolTimeout  time.Duration `mapstructure:"pool_timeout"`
	IdleTimeout  time.Duration `mapstructure:"idle_timeout"`
	MaxRetries   int           `mapstructure:"max_retries"`
}

// DatabaseConfig holds PostgreSQL settings for the durable verification store.
type DatabaseConfig struct {
	Enabled    bool   `mapstructure:"enabled"`
	Host       string `mapstructure:"host"`
	Port       int    `mapstructure:"port"`
	User       string `mapstructure:"user" validate:"required_if=Enabled true"`
	Password   string `mapstructure:"password"`
	Name       string `mapstructure:"name" validate:"required_if=Enabled true"`
	SSLMode    string `mapstructure:"ssl_mode"`
	Migrations bool   `mapstructure:"migrations"`
}

// JobsConfig controls the asynq background worker.
type JobsConfig struct {
	Enabled     bool `mapstructure:"enabled"`
	Concurrency int  `mapstructure:"concurrency" validate:"gte=0"`
	MaxRetry    int  `mapstructure:"max_retry" validate:"gte=0"`
}

// RateLimitRule is a single limit expressed as count per window.
type RateLimitRule struct {
	Limit  int    `mapstructure:"limit"`
	Window string `mapstructure:"window"`
}

// RateLimitConfig configures per-user update limits.
type RateLimitConfig struct {
	Enabled   bool          `mapstructure:"enabled"`
	PerUser   RateLimitRule `mapstructure:"per_user"`
	Booking   RateLimitRule `mapstructure:"booking"`
	Whitelist []int64       `mapstructure:"whitelist"`
}

// ServerConfig configures the operational HTTP server.
type ServerConfig struct {
	Port            string        `mapstructure:"port" validate:"required"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout" validate:"gt=0"`
}

// LoggerConfig configures slog output.
type LoggerConfig struct {
	Level      string `mapstructure:"level" validate:"oneof=debug info warn error"`
	Format     string `mapstructure:"format" validate:"oneof=json text"`
	File       string `mapstructure:"file"`
	MaxSizeMB  int    `mapstructure:"max_size_mb"`
	MaxBackups int    `mapstructure:"max_backups"`
	MaxAgeDays int    `mapstructure:"max_age_days"`
}

// SentryConfig configures error reporting.
type SentryConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	DSN     string `mapstructure:"dsn" validate:"required_if=Enabled true"`
}

// DSN returns the PostgreSQL connection string.
func (c DatabaseConfig) DSN() string {
	sslMode := c.SSLMode
	if sslMode == "" {
		sslMode = "disable"
	}

	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host,
		c.Port,
		c.User,
		c.Password,
		c.Name,
		sslMode,
	)
}

// MediaBase returns the base used to absolutize relative media URLs.
func (c BackendConfig) MediaBase() string {
	if c.MediaBaseURL != "" {
		return strings.TrimRight(c.MediaBaseURL, "/")
	}
	if len(c.URLs) > 0 {
		return strings.TrimRight(c.URLs[0], "/")
	}
	return ""
}
