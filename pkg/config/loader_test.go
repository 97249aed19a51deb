package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("APP_ENV", "test")
	t.Setenv("BOT_TOKEN", "123:abc")

	cfg, v, err := Load()
	require.NoError(t, err)
	require.NotNil(t, v)

	assert.Equal(t, "test", cfg.AppEnv)
	assert.Equal(t, "polling", cfg.Bot.Mode)
	assert.Equal(t, []string{"http://localhost:6050", "http://app:6050"}, cfg.Backend.URLs)
	assert.Equal(t, 10*time.Second, cfg.Backend.GetTimeout)
	assert.Equal(t, 15*time.Second, cfg.Backend.PostTimeout)
	assert.Equal(t, "Europe/Moscow", cfg.Venue.Timezone)
	assert.Equal(t, "10:00", cfg.Venue.Open)
	assert.Equal(t, "20:00", cfg.Venue.Close)
	assert.Equal(t, 30, cfg.Venue.BookingDays)
	assert.Equal(t, 30*time.Minute, cfg.Session.TTL)
	assert.Equal(t, time.Minute, cfg.Templates.CacheTTL)
	assert.True(t, cfg.Verification.Required)
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv("APP_ENV", "test")
	t.Setenv("BOT_TOKEN", "123:abc")
	t.Setenv("BACKEND_URLS", "http://primary:6050,http://secondary:6050")
	t.Setenv("VENUE_TIMEZONE", "Europe/Berlin")
	t.Setenv("LOGGER_LEVEL", "debug")

	cfg, _, err := Load()
	require.NoError(t, err)

	assert.Equal(t, []string{"http://primary:6050", "http://secondary:6050"}, cfg.Backend.URLs)
	assert.Equal(t, "Europe/Berlin", cfg.Venue.Timezone)
	assert.Equal(t, "debug", cfg.Logger.Level)
	assert.Equal(t, "http://primary:6050", cfg.Backend.MediaBase())
}

func TestLoad_MissingToken(t *testing.T) {
	t.Setenv("APP_ENV", "test")
	t.Setenv("BOT_TOKEN", "")

	_, _, err := Load()
	assert.Error(t, err)
}

func TestLoad_ReadsDotEnvWithoutLocalOverride(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".env"), []byte("LOGGER_FORMAT=text\nSTUDIO_DOTENV_MARKER=loaded\n"), 0o600))
	t.Chdir(dir)

	t.Setenv("APP_ENV", "test")
	t.Setenv("BOT_TOKEN", "123:abc")
	for _, key := range []string{"LOGGER_FORMAT", "STUDIO_DOTENV_MARKER"} {
		t.Setenv(key, "")
		require.NoError(t, os.Unsetenv(key))
	}

	cfg, _, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "loaded", os.Getenv("STUDIO_DOTENV_MARKER"))
	assert.Equal(t, "text", cfg.Logger.Format)
}

func TestLoadDotEnv_LocalFileWins(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".env.local"), []byte("STUDIO_DOTENV_MARKER=local\n"), 0o600))
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".env"), []byte("STUDIO_DOTENV_MARKER=shared\n"), 0o600))
	t.Chdir(dir)

	t.Setenv("STUDIO_DOTENV_MARKER", "")
	require.NoError(t, os.Unsetenv("STUDIO_DOTENV_MARKER"))

	require.NoError(t, loadDotEnv(".env.local", ".env"))
	assert.Equal(t, "local", os.Getenv("STUDIO_DOTENV_MARKER"))
}

func TestLoadDotEnv_MissingFilesAreSkipped(t *testing.T) {
	t.Chdir(t.TempDir())
	assert.NoError(t, loadDotEnv(".env.local", ".env"))
}

func TestDatabaseConfig_DSN(t *testing.T) {
	cfg := DatabaseConfig{Host: "db", Port: 5432, User: "bot", Password: "secret", Name: "studio"}
	assert.Equal(t, "host=db port=5432 user=bot password=secret dbname=studio sslmode=disable", cfg.DSN())
}
