// Package config defines the pipeline configuration: explicit structs with
// YAML tags, defaulting, and validation. Values come from an optional YAML
// file plus environment variables; a .env file is honored when present.
package config

import (
	"fmt"
	"time"
)

// Config holds all operator-tunable settings for the pipeline.
type Config struct {
	// LLM call policy
	MaxRetries        int `yaml:"max_retries"`
	RetryDelaySeconds int `yaml:"retry_delay_seconds"`

	// Concurrency
	LeadWorkerConcurrency int `yaml:"lead_worker_concurrency"`
	EventChannelCapacity  int `yaml:"event_channel_capacity"`

	// Prompt and scrape limits
	LLMMaxPromptChars int `yaml:"llm_max_prompt_characters"`
	ScrapeMaxChars    int `yaml:"scrape_max_characters"`

	// Search policy
	SearchMaxResultsPerQuery int `yaml:"search_max_results_per_query"`
	TavilyQueriesPerLead     int `yaml:"tavily_total_queries_per_lead"`

	// Per-call timeouts (seconds)
	LLMTimeoutSeconds    int `yaml:"llm_timeout_seconds"`
	SearchTimeoutSeconds int `yaml:"search_timeout_seconds"`
	ScrapeTimeoutSeconds int `yaml:"scrape_timeout_seconds"`

	// LLMRequestsPerSecond caps gateway throughput across all workers.
	// Zero disables the limiter.
	LLMRequestsPerSecond float64 `yaml:"llm_requests_per_second"`

	// External service wiring (used by cmd; tests inject fakes)
	TavilyAPIKeyEnv string `yaml:"tavily_api_key_env"`
	PostgresDSNEnv  string `yaml:"postgres_dsn_env"`
	RedisAddrEnv    string `yaml:"redis_addr_env"`
}

// Defaults mirror the documented configuration contract.
const (
	DefaultMaxRetries               = 3
	DefaultRetryDelaySeconds        = 5
	DefaultLeadWorkerConcurrency    = 8
	DefaultEventChannelCapacity     = 64
	DefaultLLMMaxPromptChars        = 180_000
	DefaultScrapeMaxChars           = 10_000
	DefaultSearchMaxResultsPerQuery = 3
	DefaultTavilyQueriesPerLead     = 3
	DefaultLLMTimeoutSeconds        = 60
	DefaultSearchTimeoutSeconds     = 20
	DefaultScrapeTimeoutSeconds     = 15
)

// applyDefaults fills zero-valued fields with documented defaults.
func (c *Config) applyDefaults() {
	if c.MaxRetries == 0 {
		c.MaxRetries = DefaultMaxRetries
	}
	if c.RetryDelaySeconds == 0 {
		c.RetryDelaySeconds = DefaultRetryDelaySeconds
	}
	if c.LeadWorkerConcurrency == 0 {
		c.LeadWorkerConcurrency = DefaultLeadWorkerConcurrency
	}
	if c.EventChannelCapacity == 0 {
		c.EventChannelCapacity = DefaultEventChannelCapacity
	}
	if c.LLMMaxPromptChars == 0 {
		c.LLMMaxPromptChars = DefaultLLMMaxPromptChars
	}
	if c.ScrapeMaxChars == 0 {
		c.ScrapeMaxChars = DefaultScrapeMaxChars
	}
	if c.SearchMaxResultsPerQuery == 0 {
		c.SearchMaxResultsPerQuery = DefaultSearchMaxResultsPerQuery
	}
	if c.TavilyQueriesPerLead == 0 {
		c.TavilyQueriesPerLead = DefaultTavilyQueriesPerLead
	}
	if c.LLMTimeoutSeconds == 0 {
		c.LLMTimeoutSeconds = DefaultLLMTimeoutSeconds
	}
	if c.SearchTimeoutSeconds == 0 {
		c.SearchTimeoutSeconds = DefaultSearchTimeoutSeconds
	}
	if c.ScrapeTimeoutSeconds == 0 {
		c.ScrapeTimeoutSeconds = DefaultScrapeTimeoutSeconds
	}
	if c.TavilyAPIKeyEnv == "" {
		c.TavilyAPIKeyEnv = "TAVILY_API_KEY"
	}
	if c.PostgresDSNEnv == "" {
		c.PostgresDSNEnv = "DATABASE_URL"
	}
	if c.RedisAddrEnv == "" {
		c.RedisAddrEnv = "REDIS_ADDR"
	}
}

// Validate rejects configurations that cannot run.
func (c *Config) Validate() error {
	if c.MaxRetries < 0 {
		return fmt.Errorf("max_retries must be >= 0, got %d", c.MaxRetries)
	}
	if c.RetryDelaySeconds < 0 {
		return fmt.Errorf("retry_delay_seconds must be >= 0, got %d", c.RetryDelaySeconds)
	}
	if c.LeadWorkerConcurrency < 1 {
		return fmt.Errorf("lead_worker_concurrency must be >= 1, got %d", c.LeadWorkerConcurrency)
	}
	if c.EventChannelCapacity < 0 {
		return fmt.Errorf("event_channel_capacity must be >= 0, got %d", c.EventChannelCapacity)
	}
	if c.LLMMaxPromptChars < 1000 {
		return fmt.Errorf("llm_max_prompt_characters must be >= 1000, got %d", c.LLMMaxPromptChars)
	}
	if c.ScrapeMaxChars < 100 {
		return fmt.Errorf("scrape_max_characters must be >= 100, got %d", c.ScrapeMaxChars)
	}
	if c.LLMRequestsPerSecond < 0 {
		return fmt.Errorf("llm_requests_per_second must be >= 0, got %f", c.LLMRequestsPerSecond)
	}
	return nil
}

// RetryDelay returns the base retry delay as a duration.
func (c *Config) RetryDelay() time.Duration {
	return time.Duration(c.RetryDelaySeconds) * time.Second
}

// LLMTimeout returns the per-call LLM timeout.
func (c *Config) LLMTimeout() time.Duration {
	return time.Duration(c.LLMTimeoutSeconds) * time.Second
}

// SearchTimeout returns the per-call search timeout.
func (c *Config) SearchTimeout() time.Duration {
	return time.Duration(c.SearchTimeoutSeconds) * time.Second
}

// ScrapeTimeout returns the per-call scrape timeout.
func (c *Config) ScrapeTimeout() time.Duration {
	return time.Duration(c.ScrapeTimeoutSeconds) * time.Second
}

// Default returns a validated Config with all defaults applied.
func Default() *Config {
	cfg := &Config{}
	cfg.applyDefaults()
	return cfg
}
