package config

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Load reads configuration from an optional YAML file, applies environment
// overrides and defaults, and validates the result. path may be empty.
//
// A .env file in the working directory is loaded first (best-effort), so
// environment overrides and API keys can live there during development.
func Load(path string) (*Config, error) {
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		slog.Debug("No .env file loaded", "error", err)
	}

	cfg := &Config{}

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
		}
	}

	applyEnvOverrides(cfg)
	cfg.applyDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// applyEnvOverrides lets the most operationally relevant knobs be set from
// the environment without a config file.
func applyEnvOverrides(cfg *Config) {
	overrideInt("PROSPECTOR_MAX_RETRIES", &cfg.MaxRetries)
	overrideInt("PROSPECTOR_RETRY_DELAY_SECONDS", &cfg.RetryDelaySeconds)
	overrideInt("PROSPECTOR_LEAD_WORKER_CONCURRENCY", &cfg.LeadWorkerConcurrency)
	overrideInt("PROSPECTOR_EVENT_CHANNEL_CAPACITY", &cfg.EventChannelCapacity)
	overrideInt("PROSPECTOR_SCRAPE_MAX_CHARACTERS", &cfg.ScrapeMaxChars)
	overrideInt("PROSPECTOR_LLM_TIMEOUT_SECONDS", &cfg.LLMTimeoutSeconds)
}

func overrideInt(key string, dst *int) {
	raw := os.Getenv(key)
	if raw == "" {
		return
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		slog.Warn("Ignoring non-integer environment override", "key", key, "value", raw)
		return
	}
	*dst = v
}
