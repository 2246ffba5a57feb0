package config

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"

	"github.com/joho/godotenv"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

const (
	envPrefix      = "CTFBOARD_"
	envConfigFile  = "CTFBOARD_CONFIG_FILE"
	defaultFile    = "config.yaml"
	defaultEnvFile = ".env"
)

// nestedEnvKeys maps flattened env names onto nested keys.
var nestedEnvKeys = map[string]string{
	"tiebreaker_max":            "tiebreaker.max",
	"winners_top_overall_count": "winners.top_overall_count",
	"winners_top_window_count":  "winners.top_window_count",
	"winners_overall":           "winners.overall",
	"metrics_enabled":           "metrics.enabled",
	"metrics_namespace":         "metrics.namespace",
	"metrics_subsystem":         "metrics.subsystem",
	"metrics_buckets":           "metrics.buckets",
	"metrics_system_interval":   "metrics.system_interval",
	"seed_teams":                "seed.teams",
	"seed_windows":              "seed.windows",
	"seed_seed":                 "seed.seed",
}

// Load builds a Config by layering defaults, an optional file, and env vars.
// Order of precedence (low -> high):
//  1. defaults (New)
//  2. YAML file named by CTFBOARD_CONFIG_FILE, else ./config.yaml if present
//  3. env (prefix CTFBOARD_), after loading ./.env if present
func Load(ctx context.Context) (*Config, error) {
	if err := godotenv.Load(defaultEnvFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("%w: %s: %w", ErrLoadConfig, defaultEnvFile, err)
	}

	base := New()
	k := koanf.New(".")

	path := os.Getenv(envConfigFile)
	explicit := path != ""
	if !explicit {
		path = defaultFile
	}
	if _, err := os.Stat(path); err == nil || explicit {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("%w: %s: %w", ErrLoadConfig, path, err)
		}
	}

	// CTFBOARD_BOARD_CACHE_DURATION -> board_cache_duration,
	// CTFBOARD_TIEBREAKER_MAX -> tiebreaker.max
	envProvider := env.Provider(envPrefix, ".", func(s string) string {
		s = strings.ToLower(strings.TrimPrefix(s, envPrefix))
		if nested, ok := nestedEnvKeys[s]; ok {
			return nested
		}
		return s
	})
	if err := k.Load(envProvider, nil); err != nil {
		return nil, fmt.Errorf("%w: env: %w", ErrLoadConfig, err)
	}

	cfg := *base
	if err := k.UnmarshalWithConf("", &cfg, koanf.UnmarshalConf{Tag: "koanf"}); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrLoadConfig, err)
	}
	if err := cfg.Validate(ctx); err != nil {
		return nil, err
	}
	return &cfg, nil
}
