package config

import (
	"bytes"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "intents.db", cfg.DBPath)
	assert.Equal(t, 2*time.Second, cfg.TickInterval)
	assert.Equal(t, "intents.submit", cfg.SubmitSubject)
	assert.Equal(t, "info", cfg.LogLevel)
	assert.False(t, cfg.EmbeddedNATS)
	assert.Equal(t, 32, cfg.MaxPending)
}

func TestLoad_FromEnv(t *testing.T) {
	t.Setenv("INTENTS_DB_PATH", "/tmp/x.db")
	t.Setenv("INTENTS_TICK_INTERVAL", "500ms")
	t.Setenv("INTENTS_EMBEDDED_NATS", "true")
	t.Setenv("INTENTS_LOG_FORMAT", "json")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "/tmp/x.db", cfg.DBPath)
	assert.Equal(t, 500*time.Millisecond, cfg.TickInterval)
	assert.True(t, cfg.EmbeddedNATS)
	assert.Equal(t, "json", cfg.LogFormat)
}

func TestValidate_CollectsAllErrors(t *testing.T) {
	cfg := Config{
		TickInterval:  time.Millisecond,
		NATSURL:       "nats://localhost:4222",
		EmbeddedNATS:  true,
		SubmitSubject: "intents.submit",
		LogLevel:      "loud",
		LogFormat:     "xml",
		MaxPending:    -1,
	}

	err := cfg.Validate()
	require.Error(t, err)
	msg := err.Error()
	assert.Contains(t, msg, "db path is required")
	assert.Contains(t, msg, "tick interval")
	assert.Contains(t, msg, "mutually exclusive")
	assert.Contains(t, msg, "log level")
	assert.Contains(t, msg, "log format")
	assert.Contains(t, msg, "max pending")
}

func TestLogger(t *testing.T) {
	var buf bytes.Buffer
	cfg := Config{LogLevel: "warn", LogFormat: "json"}

	cfg.Logger(&buf, false).Info("hidden")
	assert.Empty(t, buf.String())

	cfg.Logger(&buf, true).Debug("shown", "session", "s1")
	assert.Contains(t, buf.String(), `"session":"s1"`)
}
