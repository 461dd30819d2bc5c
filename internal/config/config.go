// Package config loads process configuration from the environment.
package config

import (
	"fmt"
	"math/big"
	"os"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
)

// Config is shared by every binary. Flags may override individual fields.
type Config struct {
	HTTPAddr           string        `env:"KBSTATS_HTTP_ADDR" envDefault:":8080"`
	PostgresDSN        string        `env:"POSTGRES_DSN"`
	ClickhouseDSN      string        `env:"CLICKHOUSE_DSN"`
	UseMemory          bool          `env:"KBSTATS_USE_MEMORY" envDefault:"false"`
	CacheTTL           time.Duration `env:"KBSTATS_CACHE_TTL" envDefault:"5m"`
	CacheMaxEntries    int           `env:"KBSTATS_CACHE_MAX_ENTRIES" envDefault:"1024"`
	HighValueThreshold string        `env:"KBSTATS_HIGH_VALUE_THRESHOLD" envDefault:"1000000000"`
	Workers            int           `env:"KBSTATS_WORKERS" envDefault:"0"`
	FetchRate          float64       `env:"KBSTATS_FETCH_RATE" envDefault:"20"`
	LogLevel           string        `env:"KBSTATS_LOG_LEVEL" envDefault:"info"`
	KillstreamURL      string        `env:"KBSTATS_KILLSTREAM_URL"`
	KillstreamChannels []string      `env:"KBSTATS_KILLSTREAM_CHANNELS" envSeparator:"," envDefault:"killstream"`
}

// Load reads Config from the environment.
func Load() (Config, error) {
	var cfg Config
	if err := ParseEnv(&cfg); err != nil {
		return Config{}, err
	}
	if _, err := cfg.Threshold(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// ParseEnv loads configuration from environment variables into target.
func ParseEnv(target any) error {
	if err := env.Parse(target); err != nil {
		return fmt.Errorf("parse env: %w", err)
	}
	return nil
}

// Threshold parses HighValueThreshold as a non-negative integer.
func (c Config) Threshold() (*big.Int, error) {
	v, ok := new(big.Int).SetString(strings.TrimSpace(c.HighValueThreshold), 10)
	if !ok || v.Sign() < 0 {
		return nil, fmt.Errorf("parse env: KBSTATS_HIGH_VALUE_THRESHOLD %q is not a non-negative integer", c.HighValueThreshold)
	}
	return v, nil
}

// LoadDotEnv copies KEY=VALUE lines from path into the process environment.
// Existing variables win. A missing file is not an error.
func LoadDotEnv(path string) {
	data, err := os.ReadFile(path)
	if err != nil {
		return
	}

	for _, line := range strings.Split(string(data), "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		key, value, ok := strings.Cut(line, "=")
		if !ok {
			continue
		}

		key = strings.TrimSpace(key)
		if _, set := os.LookupEnv(key); !set {
			os.Setenv(key, strings.Trim(strings.TrimSpace(value), `"`))
		}
	}
}
