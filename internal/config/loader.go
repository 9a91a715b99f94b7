package config

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

// Load builds a Config by layering defaults, optional file, and env vars.
// Order of precedence (low -> high):.
//  1. defaults (New())
//  2. file (YAML) if ERAGUESS_CONFIG is set
//  3. env (prefix ERAGUESS_)
func Load(ctx context.Context) (*Config, error) {
	// Start with defaults
	base := New()

	k := koanf.New(".")

	// Load from file if provided
	if path := os.Getenv("ERAGUESS_CONFIG"); path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("%w: %w", ErrLoadConfig, err)
		}
	}

	// Environment variables: ERAGUESS_ADDR, ERAGUESS_QUEUE_SIZE, ...
	// Map env keys like ERAGUESS_QUEUE_SIZE -> queue_size (flat keys)
	// Preserve underscores to match koanf tags on the struct.
	envProvider := env.Provider("ERAGUESS_", ".", func(s string) string {
		s = strings.ToLower(s)
		s = strings.TrimPrefix(s, "eraguess_")
		return s
	})
	if err := k.Load(envProvider, nil); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrLoadConfig, err)
	}

	// Unmarshal into a copy
	cfg := *base
	if err := k.UnmarshalWithConf("", &cfg, koanf.UnmarshalConf{Tag: "koanf"}); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrLoadConfig, err)
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) validate() error {
	if c.Addr == "" {
		return fmt.Errorf("%w: addr must not be empty", ErrInvalidConfig)
	}
	if !c.HotStoreInMemory && c.HotStorePath == "" {
		return fmt.Errorf("%w: hot_store_path must not be empty", ErrInvalidConfig)
	}
	if c.RoundCount < 1 {
		return fmt.Errorf("%w: round_count must be at least 1", ErrInvalidConfig)
	}
	switch c.CurveStrategy {
	case "bucketed", "kde":
	default:
		return fmt.Errorf("%w: curve_strategy must be bucketed or kde", ErrInvalidConfig)
	}
	if c.CurvePointCount < 2 {
		return fmt.Errorf("%w: curve_point_count must be at least 2", ErrInvalidConfig)
	}
	if c.EmergencyCompletions < 0 {
		return fmt.Errorf("%w: emergency_completions must not be negative", ErrInvalidConfig)
	}
	return nil
}
