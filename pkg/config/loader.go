// Package config provides configuration loading and validation utilities.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
	validator "github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

const configDir = "./configs"

// Load reads configuration from YAML files and environment variables, validates it, and returns the resulting Config.
func Load() (*Config, *viper.Viper, error) {
	if err := loadDotEnv(".env.local", ".env"); err != nil {
		return nil, nil, err
	}

	env := os.Getenv("APP_ENV")
	if env == "" {
		env = "development"
	}

	v := viper.New()
	v.SetConfigName(env)
	v.SetConfigType("yaml")
	v.AddConfigPath(configDir)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, nil, fmt.Errorf("read config: %w", err)
		}
	}

	cfg, err := decode(v)
	if err != nil {
		return nil, nil, err
	}
	cfg.AppEnv = env

	return cfg, v, nil
}

// loadDotEnv reads each file that exists into the environment. Variables already set
// win, so earlier files take precedence over later ones.
func loadDotEnv(files ...string) error {
	for _, file := range files {
		if err := godotenv.Load(file); err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				continue
			}
			return fmt.Errorf("load %s: %w", file, err)
		}
	}
	return nil
}

// Watch reloads the configuration file on change and passes the validated result to onChange.
// Invalid revisions are logged and ignored.
func Watch(v *viper.Viper, log *slog.Logger, onChange func(*Config)) {
	if v == nil || onChange == nil {
		return
	}
	if log == nil {
		log = slog.Default()
	}
	if v.ConfigFileUsed() == "" {
		log.Debug("config watch skipped: no config file in use")
		return
	}

	v.OnConfigChange(func(e fsnotify.Event) {
		cfg, err := decode(v)
		if err != nil {
			log.Warn("config reload rejected", slog.String("file", e.Name), slog.Any("error", err))
			return
		}

		log.Info("config reloaded", slog.String("file", e.Name), slog.String("op", e.Op.String()))
		onChange(cfg)
	})
	v.WatchConfig()
}

func decode(v *viper.Viper) (*Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	validate := validator.New(validator.WithRequiredStructEnabled())
	if err := validate.Struct(cfg); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}

	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("bot.token", "")
	v.SetDefault("bot.mode", "polling")
	v.SetDefault("bot.timeout", 10*time.Second)
	v.SetDefault("bot.webhook_url", "")
	v.SetDefault("bot.listen", ":8443")

	v.SetDefault("backend.urls", []string{"http://localhost:6050", "http://app:6050"})
	v.SetDefault("backend.username", "")
	v.SetDefault("backend.password", "")
	v.SetDefault("backend.get_timeout", 10*time.Second)
	v.SetDefault("backend.post_timeout", 15*time.Second)
	v.SetDefault("backend.media_base_url", "")
	v.SetDefault("backend.requests_per_second", 20.0)
	v.SetDefault("backend.burst", 10)

	v.SetDefault("venue.timezone", "Europe/Moscow")
	v.SetDefault("venue.open", "10:00")
	v.SetDefault("venue.close", "20:00")
	v.SetDefault("venue.booking_days", 30)

	v.SetDefault("session.ttl", 30*time.Minute)
	v.SetDefault("session.cleanup_interval", time.Minute)

	v.SetDefault("verification.required", true)
	v.SetDefault("verification.store", "memory")

	v.SetDefault("templates.cache_ttl", time.Minute)
	v.SetDefault("templates.language", "ru")

	v.SetDefault("redis.enabled", false)
	v.SetDefault("redis.addr", "localhost:6379")
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)
	v.SetDefault("redis.pool_size", 10)
	v.SetDefault("redis.min_idle_conns", 2)
	v.SetDefault("redis.pool_timeout", 4*time.Second)
	v.SetDefault("redis.idle_timeout", 5*time.Minute)
	v.SetDefault("redis.max_retries", 3)

	v.SetDefault("database.enabled", false)
	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.user", "")
	v.SetDefault("database.password", "")
	v.SetDefault("database.name", "")
	v.SetDefault("database.ssl_mode", "disable")
	v.SetDefault("database.migrations", true)

	v.SetDefault("jobs.enabled", false)
	v.SetDefault("jobs.concurrency", 5)
	v.SetDefault("jobs.max_retry", 5)

	v.SetDefault("rate_limit.enabled", true)
	v.SetDefault("rate_limit.per_user.limit", 30)
	v.SetDefault("rate_limit.per_user.window", "1m")
	v.SetDefault("rate_limit.booking.limit", 5)
	v.SetDefault("rate_limit.booking.window", "10m")
	v.SetDefault("rate_limit.whitelist", []int64{})

	v.SetDefault("server.port", "8080")
	v.SetDefault("server.shutdown_timeout", 10*time.Second)

	v.SetDefault("logger.level", "info")
	v.SetDefault("logger.format", "json")
	v.SetDefault("logger.file", "")
	v.SetDefault("logger.max_size_mb", 50)
	v.SetDefault("logger.max_backups", 5)
	v.SetDefault("logger.max_age_days", 14)

	v.SetDefault("sentry.enabled", false)
	v.SetDefault("sentry.dsn", "")
}
