// Package config loads sentry-relay settings from the environment.
package config

import (
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/caarlos0/env/v10"
	"github.com/joho/godotenv"
	"github.com/lmittmann/tint"

	sentryadapter "github.com/pjscruggs/slog-sentry-adapter"
)

// Config holds all relay configuration.
type Config struct {
	SentryDSN         string        `env:"SENTRY_DSN,required,notEmpty"`
	SentryEnvironment string        `env:"SENTRY_ENVIRONMENT"`
	SentryRelease     string        `env:"SENTRY_RELEASE"`
	MinLevel          string        `env:"RELAY_MIN_LEVEL" envDefault:"debug"`
	BatchSize         int           `env:"RELAY_BATCH_SIZE" envDefault:"50"`
	FlushTimeout      time.Duration `env:"RELAY_FLUSH_TIMEOUT" envDefault:"2s"`
	SendContext       bool          `env:"RELAY_SEND_CONTEXT" envDefault:"true"`
	RateLimit         float64       `env:"RELAY_RATE_LIMIT" envDefault:"0"` // batches per second, 0 disables
	RateBurst         int           `env:"RELAY_RATE_BURST" envDefault:"10"`
	LogLevel          string        `env:"RELAY_LOG_LEVEL" envDefault:"info"`
	LogFormat         string        `env:"RELAY_LOG_FORMAT" envDefault:"text"`
	MetricsAddr       string        `env:"METRICS_ADDR"`
}

// Load reads configuration from environment variables.
func Load() (*Config, error) {
	// Attempt to load .env file for local development.
	_ = godotenv.Load()

	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, err
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	if _, err := sentryadapter.ParseLevel(c.MinLevel); err != nil {
		return fmt.Errorf("RELAY_MIN_LEVEL: %w", err)
	}
	if _, err := sentryadapter.ParseLevel(c.LogLevel); err != nil {
		return fmt.Errorf("RELAY_LOG_LEVEL: %w", err)
	}
	if c.BatchSize <= 0 {
		return fmt.Errorf("RELAY_BATCH_SIZE must be positive, got %d", c.BatchSize)
	}
	if c.RateLimit < 0 {
		return fmt.Errorf("RELAY_RATE_LIMIT must not be negative, got %v", c.RateLimit)
	}
	return nil
}

// MinSlogLevel returns the parsed RELAY_MIN_LEVEL.
func (c *Config) MinSlogLevel() slog.Level {
	level, _ := sentryadapter.ParseLevel(c.MinLevel)
	return level
}

// NewLogger builds the relay's own logger. It never reports to Sentry.
func (c *Config) NewLogger(w io.Writer) (*slog.Logger, error) {
	level, err := sentryadapter.ParseLevel(c.LogLevel)
	if err != nil {
		return nil, err
	}

	var handler slog.Handler
	switch c.LogFormat {
	case "json":
		handler = slog.NewJSONHandler(w, &slog.HandlerOptions{Level: level})
	case "text":
		handler = slog.NewTextHandler(w, &slog.HandlerOptions{Level: level})
	case "colored-text":
		handler = tint.NewHandler(w, &tint.Options{Level: level, TimeFormat: time.Kitchen})
	default:
		return nil, fmt.Errorf("invalid log format: %s", c.LogFormat)
	}
	return slog.New(handler), nil
}
