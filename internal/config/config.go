// Package config loads runtime configuration from environment variables.
package config

import (
	"fmt"

	"github.com/caarlos0/env/v11"
)

// Config holds the application configuration.
type Config struct {
	GeminiAPIKey string `env:"GEMINI_API_KEY"`
	ModelName    string `env:"RIFTWALKER_MODEL" envDefault:"gemini-2.5-flash"`
	DBPath       string `env:"RIFTWALKER_DB" envDefault:".riftwalker/riftwalker.db"`
	PlayerID     string `env:"RIFTWALKER_PLAYER" envDefault:"traveler"`
	Verbose      bool   `env:"RIFTWALKER_VERBOSE" envDefault:"false"`
}

// Load parses the configuration from the environment.
func Load() (*Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}
	if cfg.GeminiAPIKey == "" {
		return nil, fmt.Errorf("GEMINI_API_KEY environment variable is not set")
	}
	return &cfg, nil
}
