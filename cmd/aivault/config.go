package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/caarlos0/env/v11"

	"github.com/rendis/aivault/internal/dashboard"
	"github.com/rendis/aivault/internal/executor"
	"github.com/rendis/aivault/internal/secrets"
)

const settingsFileName = "settings.json"

// Config holds aivault CLI configuration.
// Priority: env vars > settings.json > defaults.
type Config struct {
	Dir            string `json:"-" env:"AIVAULT_DIR"`
	LogLevel       string `json:"log_level" env:"AIVAULT_LOG_LEVEL"`
	DashboardAddr  string `json:"dashboard_addr" env:"AIVAULT_DASHBOARD_ADDR"`
	MaxOutputBytes int64  `json:"max_output_bytes" env:"AIVAULT_MAX_OUTPUT_BYTES"`
	MasterPassword string `json:"-" env:"AIVAULT_MASTER_PASSWORD"`
}

func defaultConfig() Config {
	return Config{
		Dir:            secrets.DefaultDir(),
		LogLevel:       "warn",
		DashboardAddr:  dashboard.DefaultAddr,
		MaxOutputBytes: executor.DefaultMaxOutputSize,
	}
}

func settingsPath(dir string) string {
	return filepath.Join(dir, settingsFileName)
}

// loadConfig layers settings.json and the environment over the defaults.
// The environment is read twice: once to locate the vault directory, and
// again after settings.json so it keeps the last word.
func loadConfig(environ []string) (Config, error) {
	cfg := defaultConfig()
	opts := env.Options{Environment: env.ToMap(environ)}

	if err := env.ParseWithOptions(&cfg, opts); err != nil {
		return cfg, fmt.Errorf("parse environment: %w", err)
	}

	data, err := os.ReadFile(settingsPath(cfg.Dir))
	switch {
	case errors.Is(err, fs.ErrNotExist):
	case err != nil:
		return cfg, fmt.Errorf("read %s: %w", settingsFileName, err)
	default:
		if err := json.Unmarshal(data, &cfg); err != nil {
			return cfg, fmt.Errorf("parse %s: %w", settingsPath(cfg.Dir), err)
		}
		if err := env.ParseWithOptions(&cfg, opts); err != nil {
			return cfg, fmt.Errorf("parse environment: %w", err)
		}
	}

	if cfg.MaxOutputBytes <= 0 {
		cfg.MaxOutputBytes = executor.DefaultMaxOutputSize
	}
	return cfg, nil
}
