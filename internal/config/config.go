// Package config loads process configuration from ROLLOUT_* environment
// variables and builds the shared logger.
package config

import (
	"fmt"
	"time"
	_ "time/tzdata" // month windows may use any IANA zone

	"github.com/caarlos0/env/v11"
)

// Config is the flat rollout configuration.
type Config struct {
	DBPath         string        `env:"DB_PATH"`                          // empty means ~/.rollout/rollout.db
	QueryTimeout   time.Duration `env:"QUERY_TIMEOUT" envDefault:"5s"`    // per store or feed call
	ConnectTimeout time.Duration `env:"CONNECT_TIMEOUT" envDefault:"3s"`  // opening the database or redis
	BusyTimeout    time.Duration `env:"BUSY_TIMEOUT" envDefault:"2s"`     // sqlite write-lock wait
	RetryBackoff   time.Duration `env:"RETRY_BACKOFF" envDefault:"250ms"` // wait before the single retry
	MaxAttempts    int           `env:"MAX_ATTEMPTS" envDefault:"2"`

	TopUpPattern string `env:"TOPUP_PATTERN" envDefault:"top-up"`
	FallbackFile string `env:"FALLBACK_FILE"`
	Timezone     string `env:"TIMEZONE" envDefault:"UTC"`
	Concurrency  int    `env:"CONCURRENCY" envDefault:"8"`

	RedisAddr string        `env:"REDIS_ADDR"` // empty means in-process locking
	LockTTL   time.Duration `env:"LOCK_TTL" envDefault:"30s"`

	LogLevel  string `env:"LOG_LEVEL" envDefault:"info"`
	LogFormat string `env:"LOG_FORMAT" envDefault:"json"` // json or text
}

// Load parses ROLLOUT_* variables into a Config and validates it.
func Load() (*Config, error) {
	var cfg Config
	if err := env.ParseWithOptions(&cfg, env.Options{Prefix: "ROLLOUT_"}); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate rejects values the services cannot run with.
func (c *Config) Validate() error {
	if c.QueryTimeout <= 0 {
		return fmt.Errorf("ROLLOUT_QUERY_TIMEOUT must be positive, got %s", c.QueryTimeout)
	}
	if c.MaxAttempts < 1 || c.MaxAttempts > 2 {
		return fmt.Errorf("ROLLOUT_MAX_ATTEMPTS must be 1 or 2, got %d", c.MaxAttempts)
	}
	if c.Concurrency < 1 {
		return fmt.Errorf("ROLLOUT_CONCURRENCY must be at least 1, got %d", c.Concurrency)
	}
	if c.TopUpPattern == "" {
		return fmt.Errorf("ROLLOUT_TOPUP_PATTERN must not be empty")
	}
	if _, err := c.Location(); err != nil {
		return err
	}
	return nil
}

// Location resolves the configured time zone used for month windows.
func (c *Config) Location() (*time.Location, error) {
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return nil, fmt.Errorf("invalid ROLLOUT_TIMEZONE %q: %w", c.Timezone, err)
	}
	return loc, nil
}
