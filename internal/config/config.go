// Package config holds CLI-wide defaults for the cotopha-patcher adapter
// layer (log level, history database path, telemetry endpoint). The core
// codec packages never read it.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

// Config is the general configuration for the cotopha CLI.
type Config struct {
	LogLevel          string `json:"log_level,omitempty"`
	HistoryPath       string `json:"history_path,omitempty"`
	TelemetryEnabled  bool   `json:"telemetry_enabled,omitempty"`
	TelemetryEndpoint string `json:"telemetry_endpoint,omitempty"`
}

var defaultConfig = &Config{
	LogLevel:         "info",
	TelemetryEnabled: false,
}

// DefaultConfig returns a config with built-in defaults only.
func DefaultConfig() *Config {
	cfg := *defaultConfig
	cfg.HistoryPath = defaultHistoryPath()
	return &cfg
}

func defaultHistoryPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".cotopha/history.db"
	}
	return filepath.Join(home, ".cotopha", "history.db")
}

// GetConfigPath returns the directory holding the CLI's config file,
// creating it if necessary.
func GetConfigPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get home directory: %w", err)
	}
	dir := filepath.Join(home, ".cotopha")
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("failed to create config directory: %w", err)
	}
	return dir, nil
}

// GetConfigFilePath returns the path to the JSON config file.
func GetConfigFilePath() (string, error) {
	dir, err := GetConfigPath()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "config.json"), nil
}

// Load reads the config file from disk, falling back to defaults when it
// does not exist, then applies COTOPHA_* environment variable overrides.
func Load() (*Config, error) {
	cfg := DefaultConfig()

	path, err := GetConfigFilePath()
	if err == nil {
		if data, readErr := os.ReadFile(path); readErr == nil {
			if jsonErr := json.Unmarshal(data, cfg); jsonErr != nil {
				return nil, fmt.Errorf("failed to parse config file %s: %w", path, jsonErr)
			}
		}
	}

	if v := os.Getenv("COTOPHA_LOG_LEVEL"); v != "" {
		cfg.LogLevel = v
	}
	if v := os.Getenv("COTOPHA_HISTORY_PATH"); v != "" {
		cfg.HistoryPath = v
	}
	if v := os.Getenv("COTOPHA_TELEMETRY_ENDPOINT"); v != "" {
		cfg.TelemetryEnabled = true
		cfg.TelemetryEndpoint = v
	}

	return cfg, nil
}

// Save writes cfg to the JSON config file, creating its directory if
// necessary.
func Save(cfg *Config) error {
	path, err := GetConfigFilePath()
	if err != nil {
		return err
	}

	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(path, data, 0o600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}
