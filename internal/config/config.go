// Package config loads process configuration from the environment and game
// rules from CUE.
package config

import (
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/pixil98/go-errors"
)

// Config is the process configuration of the intents server and CLI.
type Config struct {
	DBPath        string        `env:"INTENTS_DB_PATH"        envDefault:"intents.db"`
	RedisAddr     string        `env:"INTENTS_REDIS_ADDR"`
	NATSURL       string        `env:"INTENTS_NATS_URL"`
	EmbeddedNATS  bool          `env:"INTENTS_EMBEDDED_NATS"  envDefault:"false"`
	SubmitSubject string        `env:"INTENTS_SUBMIT_SUBJECT" envDefault:"intents.submit"`
	TickInterval  time.Duration `env:"INTENTS_TICK_INTERVAL"  envDefault:"2s"`
	RulesPath     string        `env:"INTENTS_RULES"`
	MaxPending    int           `env:"INTENTS_MAX_PENDING"    envDefault:"32"`
	LogLevel      string        `env:"INTENTS_LOG_LEVEL"      envDefault:"info"`
	LogFormat     string        `env:"INTENTS_LOG_FORMAT"     envDefault:"text"`
}

// MinTickInterval is the shortest solver cadence accepted.
const MinTickInterval = 100 * time.Millisecond

// Load reads the configuration from environment variables and validates it.
func Load() (Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("parse env: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

// Validate reports every problem with the configuration at once.
func (c *Config) Validate() error {
	el := errors.NewErrorList()

	if c.DBPath == "" {
		el.Add(fmt.Errorf("db path is required"))
	}
	if c.TickInterval < MinTickInterval {
		el.Add(fmt.Errorf("tick interval must be at least %s, got %s", MinTickInterval, c.TickInterval))
	}
	if c.NATSURL != "" && c.EmbeddedNATS {
		el.Add(fmt.Errorf("nats url and embedded nats are mutually exclusive"))
	}
	if c.MaxPending < 0 {
		el.Add(fmt.Errorf("max pending must not be negative, got %d", c.MaxPending))
	}
	if c.SubmitSubject == "" {
		el.Add(fmt.Errorf("submit subject is required"))
	}
	if _, err := c.level(); err != nil {
		el.Add(err)
	}
	switch c.LogFormat {
	case "text", "json":
	default:
		el.Add(fmt.Errorf("log format must be text or json, got %q", c.LogFormat))
	}

	return el.Err()
}

func (c *Config) level() (slog.Level, error) {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(strings.ToUpper(c.LogLevel))); err != nil {
		return slog.LevelInfo, fmt.Errorf("parsing log level: %w", err)
	}
	return lvl, nil
}

// Logger builds the process logger. verbose forces debug level.
func (c *Config) Logger(w io.Writer, verbose bool) *slog.Logger {
	lvl, _ := c.level()
	if verbose {
		lvl = slog.LevelDebug
	}
	opts := &slog.HandlerOptions{Level: lvl}
	if c.LogFormat == "json" {
		return slog.New(slog.NewJSONHandler(w, opts))
	}
	return slog.New(slog.NewTextHandler(w, opts))
}
