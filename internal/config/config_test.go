package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestLoadDefaults(t *testing.T) {
	for _, key := range []string{"PORT", "LOG_LEVEL", "WORDS_DIR", "TICK_INTERVAL", "MESSAGE_INTERVAL",
		"REDIS_ADDR", "REDIS_DB", "HISTORY_QUEUE", "DATABASE_URL", "HISTORIAN_BATCH_SIZE",
		"HISTORIAN_FLUSH_MS", "TOKEN_EXPIRE_TIME"} {
		t.Setenv(key, "")
	}

	cfg := Load()
	assert.Equal(t, "8080", cfg.Port)
	assert.Equal(t, "info", cfg.LogLevel)
	assert.Equal(t, 100*time.Millisecond, cfg.TickInterval)
	assert.Equal(t, 100*time.Millisecond, cfg.MessageInterval)
	assert.Equal(t, DefaultHistoryQueue, cfg.HistoryQueue)
	assert.Equal(t, 20, cfg.HistorianBatchSize)
	assert.Equal(t, 500*time.Millisecond, cfg.HistorianFlush)
	assert.Zero(t, cfg.TokenTTL)
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("PORT", "9000")
	t.Setenv("TICK_INTERVAL", "250ms")
	t.Setenv("MESSAGE_INTERVAL", "not-a-duration")
	t.Setenv("REDIS_DB", "3")
	t.Setenv("TOKEN_EXPIRE_TIME", "72h")

	cfg := Load()
	assert.Equal(t, "9000", cfg.Port)
	assert.Equal(t, 250*time.Millisecond, cfg.TickInterval)
	assert.Equal(t, 100*time.Millisecond, cfg.MessageInterval, "bad durations fall back to the default")
	assert.Equal(t, 3, cfg.RedisDB)
	assert.Equal(t, 72*time.Hour, cfg.TokenTTL)
}
