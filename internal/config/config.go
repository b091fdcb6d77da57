// Package config loads service configuration from an optional YAML file
// overlaid with CARTAGE_-prefixed environment variables.
package config

import (
	"fmt"
	"os"

	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v3"
)

type Config struct {
	Addr        string `yaml:"addr" envconfig:"ADDR"`
	DatabaseURL string `yaml:"databaseUrl" envconfig:"DATABASE_URL"`
	RedisURL    string `yaml:"redisUrl" envconfig:"REDIS_URL"`
	Debug       bool   `yaml:"debug" envconfig:"DEBUG"`
	PrettyLogs  bool   `yaml:"prettyLogs" envconfig:"PRETTY_LOGS"`

	// Rate limit applied to solve endpoints.
	RateRPS   float64 `yaml:"rateRps" envconfig:"RATE_RPS"`
	RateBurst int     `yaml:"rateBurst" envconfig:"RATE_BURST"`

	Solver Solver `yaml:"solver"`
	Worker Worker `yaml:"worker"`
}

// Solver holds default search budgets; requests may override them.
type Solver struct {
	TimeBudgetMs  int    `yaml:"timeBudgetMs" envconfig:"TIME_BUDGET_MS"`
	MaxIterations int    `yaml:"maxIterations" envconfig:"MAX_ITERATIONS"`
	Acceptance    string `yaml:"acceptance" envconfig:"ACCEPTANCE"`
}

type Worker struct {
	PollIntervalMs int `yaml:"pollIntervalMs" envconfig:"POLL_INTERVAL_MS"`
	MaxAttempts    int `yaml:"maxAttempts" envconfig:"MAX_ATTEMPTS"`
	BatchSize      int `yaml:"batchSize" envconfig:"BATCH_SIZE"`
}

// Load reads the YAML file at path (skipped when empty or missing),
// applies environment overrides, then fills remaining zero values with
// defaults.
func Load(path string) (*Config, error) {
	cfg := &Config{}
	if path != "" {
		b, err := os.ReadFile(path)
		if err != nil && !os.IsNotExist(err) {
			return nil, fmt.Errorf("config: read %s: %w", path, err)
		}
		if err == nil {
			if err := yaml.Unmarshal(b, cfg); err != nil {
				return nil, fmt.Errorf("config: parse %s: %w", path, err)
			}
		}
	}
	if err := envconfig.Process("CARTAGE", cfg); err != nil {
		return nil, fmt.Errorf("config: env: %w", err)
	}
	cfg.fillDefaults()
	return cfg, nil
}

// Default returns a config with all defaults applied and no file or
// environment input. Used by tests.
func Default() *Config {
	cfg := &Config{}
	cfg.fillDefaults()
	return cfg
}

func (c *Config) fillDefaults() {
	if c.Addr == "" {
		c.Addr = ":8080"
	}
	if c.RateRPS <= 0 {
		c.RateRPS = 10
	}
	if c.RateBurst <= 0 {
		c.RateBurst = 20
	}
	if c.Solver.TimeBudgetMs <= 0 {
		c.Solver.TimeBudgetMs = 300
	}
	if c.Solver.Acceptance == "" {
		c.Solver.Acceptance = "greedy"
	}
	if c.Worker.PollIntervalMs <= 0 {
		c.Worker.PollIntervalMs = 1000
	}
	if c.Worker.MaxAttempts <= 0 {
		c.Worker.MaxAttempts = 3
	}
	if c.Worker.BatchSize <= 0 {
		c.Worker.BatchSize = 10
	}
}
