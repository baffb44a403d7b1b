package config

import (
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestLoadConfig_Defaults(t *testing.T) {
	for _, key := range []string{"PORT", "REDIS_CONNSTRING", "STATS_BACKEND", "DATABASE_URL", "GAME_TTL", "BOT_THINK_DELAY", "LOG_LEVEL", "OTEL_ENABLED"} {
		t.Setenv(key, "")
	}

	cfg := LoadConfig()

	assert.Equal(t, "8080", cfg.Port)
	assert.Equal(t, "localhost:6379", cfg.RedisAddr)
	assert.Equal(t, StatsBackendSQLite, cfg.StatsBackend)
	assert.Equal(t, "./stats.db", cfg.DatabaseURL)
	assert.Equal(t, 24*time.Hour, cfg.GameTTL)
	assert.Equal(t, time.Duration(0), cfg.BotThinkDelay)
	assert.Equal(t, slog.LevelInfo, cfg.LogLevel)
	assert.False(t, cfg.OtelEnabled)
}

func TestLoadConfig_FromEnvironment(t *testing.T) {
	t.Setenv("PORT", "9090")
	t.Setenv("STATS_BACKEND", "Postgres")
	t.Setenv("DATABASE_URL", "")
	t.Setenv("REDIS_DB", "3")
	t.Setenv("GAME_TTL", "90m")
	t.Setenv("BOT_THINK_DELAY", "750ms")
	t.Setenv("LOG_LEVEL", "debug")
	t.Setenv("OTEL_ENABLED", "true")

	cfg := LoadConfig()

	assert.Equal(t, "9090", cfg.Port)
	assert.Equal(t, StatsBackendPostgres, cfg.StatsBackend)
	assert.Contains(t, cfg.DatabaseURL, "postgres://")
	assert.Equal(t, 3, cfg.RedisDB)
	assert.Equal(t, 90*time.Minute, cfg.GameTTL)
	assert.Equal(t, 750*time.Millisecond, cfg.BotThinkDelay)
	assert.Equal(t, slog.LevelDebug, cfg.LogLevel)
	assert.True(t, cfg.OtelEnabled)
}

func TestLoadConfig_InvalidValuesFallBack(t *testing.T) {
	t.Setenv("STATS_BACKEND", "mongo")
	t.Setenv("REDIS_DB", "three")
	t.Setenv("GAME_TTL", "forever")
	t.Setenv("OTEL_ENABLED", "maybe")
	t.Setenv("LOG_LEVEL", "chatty")

	cfg := LoadConfig()

	assert.Equal(t, StatsBackendSQLite, cfg.StatsBackend)
	assert.Equal(t, 0, cfg.RedisDB)
	assert.Equal(t, 24*time.Hour, cfg.GameTTL)
	assert.False(t, cfg.OtelEnabled)
	assert.Equal(t, slog.LevelInfo, cfg.LogLevel)
}
