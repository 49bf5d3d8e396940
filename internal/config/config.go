// Package config reads the service configuration from the environment.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

type Config struct {
	HTTPAddr  string
	LogLevel  string
	LogFormat string

	OTelEnabled bool
	ServiceName string

	PrefsDriver string
	PrefsDSN    string

	GameDuration     time.Duration
	SessionRetention time.Duration
	SweepInterval    time.Duration

	// RandomSeed makes target generation reproducible when set.
	RandomSeed *uint64

	TelegramToken string
}

const (
	DefaultHTTPAddr      = ":8080"
	DefaultServiceName   = "disk-spinner"
	DefaultSweepInterval = 30 * time.Second
)

// Load reads the configuration. Unset keys fall back to defaults; malformed
// values are reported together.
func Load() (Config, error) {
	cfg := Config{
		HTTPAddr:         getenvDefault("HTTP_ADDR", DefaultHTTPAddr),
		LogLevel:         getenvDefault("LOG_LEVEL", "info"),
		LogFormat:        getenvDefault("LOG_FORMAT", "json"),
		ServiceName:      getenvDefault("OTEL_SERVICE_NAME", DefaultServiceName),
		PrefsDriver:      strings.ToLower(getenv("PREFS_DRIVER")),
		PrefsDSN:         getenv("PREFS_DSN"),
		GameDuration:     60 * time.Second,
		SessionRetention: 10 * time.Minute,
		SweepInterval:    DefaultSweepInterval,
		TelegramToken:    getenv("TELEGRAM_BOT_TOKEN"),
	}

	var errs []error

	if v := getenv("OTEL_ENABLED"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			errs = append(errs, fmt.Errorf("OTEL_ENABLED: %w", err))
		}
		cfg.OTelEnabled = b
	}

	errs = append(errs,
		duration("GAME_DURATION", &cfg.GameDuration),
		duration("SESSION_RETENTION", &cfg.SessionRetention),
		duration("SWEEP_INTERVAL", &cfg.SweepInterval),
	)

	if v := getenv("RANDOM_SEED"); v != "" {
		seed, err := strconv.ParseUint(v, 10, 64)
		if err != nil {
			errs = append(errs, fmt.Errorf("RANDOM_SEED: %w", err))
		} else {
			cfg.RandomSeed = &seed
		}
	}

	// DATABASE_URL alone selects Postgres.
	if cfg.PrefsDSN == "" {
		if dsn := getenv("DATABASE_URL"); dsn != "" {
			cfg.PrefsDSN = dsn
			if cfg.PrefsDriver == "" {
				cfg.PrefsDriver = "postgres"
			}
		}
	}
	if cfg.PrefsDriver == "" {
		cfg.PrefsDriver = "memory"
	}
	if cfg.PrefsDriver != "memory" && cfg.PrefsDSN == "" {
		errs = append(errs, fmt.Errorf("PREFS_DSN is required for driver %q", cfg.PrefsDriver))
	}

	if err := errors.Join(errs...); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// TelegramEnabled reports whether the chat front-end should run.
func (c Config) TelegramEnabled() bool { return c.TelegramToken != "" }

func duration(key string, dst *time.Duration) error {
	v := getenv(key)
	if v == "" {
		return nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return fmt.Errorf("%s: %w", key, err)
	}
	if d <= 0 {
		return fmt.Errorf("%s: must be positive, got %s", key, v)
	}
	*dst = d
	return nil
}

func getenv(key string) string {
	return strings.TrimSpace(os.Getenv(key))
}

func getenvDefault(key, def string) string {
	if v := getenv(key); v != "" {
		return v
	}
	return def
}
