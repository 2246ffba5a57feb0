// Package config defines service configuration and how it is loaded.
package config

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"time"
)

// Backends.
const (
	StoreMemory   = "memory"
	StorePostgres = "postgres"
	CacheMemory   = "memory"
	CacheNATS     = "nats"
)

// Config contains process configuration.
type Config struct {
	// LogLevel controls verbosity: debug, info, warn, error.
	LogLevel string `koanf:"log_level"`
	// LogFormat is text or json.
	LogFormat string `koanf:"log_format"`

	// Addr configures the HTTP listen address, e.g. ":9080".
	Addr string `koanf:"addr"`
	// CORSOrigins lists browser origins allowed to call the API and open
	// live connections. "*" allows any.
	CORSOrigins []string `koanf:"cors_origins"`

	Store       string `koanf:"store"`
	PostgresDSN string `koanf:"postgres_dsn"`

	Cache      string `koanf:"cache"`
	NATSURL    string `koanf:"nats_url"`
	NATSBucket string `koanf:"nats_bucket"`

	// BoardCacheDuration is how long a computed board is served from cache.
	BoardCacheDuration time.Duration `koanf:"board_cache_duration"`
	CacheKeyPrefix     string        `koanf:"cache_key_prefix"`

	OverallCodename    string `koanf:"overall_codename"`
	TiebreakerCodename string `koanf:"tiebreaker_codename"`

	// ScoreNormalization is the bonus a perfect tiebreaker score adds to
	// the overall board.
	ScoreNormalization int  `koanf:"score_normalization"`
	Singleflight       bool `koanf:"singleflight"`
	FetchConcurrency   int  `koanf:"fetch_concurrency"`

	Tiebreaker Tiebreaker `koanf:"tiebreaker"`

	// RefreshInterval re-warms every board; 0 disables the warmer.
	RefreshInterval  time.Duration `koanf:"refresh_interval"`
	RefreshWorkers   int           `koanf:"refresh_workers"`
	RefreshQueueSize int           `koanf:"refresh_queue_size"`

	Winners Winners `koanf:"winners"`

	Metrics Metrics `koanf:"metrics"`

	// Seed fills the memory store with demo data at startup.
	Seed Seed `koanf:"seed"`
}

// Metrics shapes the Prometheus series served at /metrics.
type Metrics struct {
	Enabled   bool   `koanf:"enabled"`
	Namespace string `koanf:"namespace"`
	Subsystem string `koanf:"subsystem"`
	// Buckets are latency histogram bounds in milliseconds; empty keeps the built-in set.
	Buckets        []float64         `koanf:"buckets"`
	Labels         map[string]string `koanf:"labels"`
	SystemInterval time.Duration     `koanf:"system_interval"`
}

// Tiebreaker is the tiebreaker competition's final table.
type Tiebreaker struct {
	Max    int               `koanf:"max"`
	Scores []TiebreakerScore `koanf:"scores"`
}

// TiebreakerScore is one row of the tiebreaker table.
type TiebreakerScore struct {
	Team  string `koanf:"team"`
	Score int    `koanf:"score"`
}

// Table returns the scores keyed by team name.
func (t Tiebreaker) Table() map[string]int {
	out := make(map[string]int, len(t.Scores))
	for _, s := range t.Scores {
		out[s.Team] = s.Score
	}
	return out
}

// Winners is the published winners list; teams are names or IDs.
type Winners struct {
	TopOverallCount int             `koanf:"top_overall_count"`
	TopWindowCount  int             `koanf:"top_window_count"`
	Overall         []string        `koanf:"overall"`
	Windows         []WindowWinners `koanf:"windows"`
}

// WindowWinners lists one window's winners.
type WindowWinners struct {
	Window string   `koanf:"window"`
	Teams  []string `koanf:"teams"`
}

// Seed controls generated demo data.
type Seed struct {
	Teams   int    `koanf:"teams"`
	Windows int    `koanf:"windows"`
	Seed    uint64 `koanf:"seed"`
}

// New returns a Config holding the defaults.
func New() *Config {
	return &Config{
		LogLevel:           "info",
		LogFormat:          "text",
		Addr:               ":9080",
		CORSOrigins:        nil,
		Store:              StoreMemory,
		Cache:              CacheMemory,
		NATSBucket:         "ctfboard_boards",
		BoardCacheDuration: 60 * time.Second,
		CacheKeyPrefix:     "ctfboard_board_",
		OverallCodename:    "overall",
		TiebreakerCodename: "tiebreaker",
		ScoreNormalization: 1000,
		FetchConcurrency:   16,
		Tiebreaker:         Tiebreaker{Max: 4000},
		RefreshInterval:    30 * time.Second,
		RefreshWorkers:     4,
		RefreshQueueSize:   1024,
		Winners:            Winners{TopOverallCount: 3, TopWindowCount: 5},
		Metrics:            Metrics{Enabled: true, Namespace: "ctfboard", Subsystem: "boards", SystemInterval: 10 * time.Second},
		Seed:               Seed{Teams: 40, Windows: 3, Seed: 1},
	}
}

// Validate reports every problem found, wrapped in ErrInvalidConfig.
func (c *Config) Validate(_ context.Context) error {
	var errs []error
	add := func(format string, args ...any) { errs = append(errs, fmt.Errorf(format, args...)) }

	if c.Addr == "" {
		add("addr must not be empty")
	}
	if !slices.Contains([]string{"text", "json"}, c.LogFormat) {
		add("log_format %q must be text or json", c.LogFormat)
	}
	switch c.Store {
	case StoreMemory:
	case StorePostgres:
		if c.PostgresDSN == "" {
			add("postgres_dsn is required when store is postgres")
		}
	default:
		add("store %q must be memory or postgres", c.Store)
	}
	switch c.Cache {
	case CacheMemory:
	case CacheNATS:
		if c.NATSURL == "" {
			add("nats_url is required when cache is nats")
		}
		if c.NATSBucket == "" {
			add("nats_bucket must not be empty")
		}
	default:
		add("cache %q must be memory or nats", c.Cache)
	}
	if c.BoardCacheDuration <= 0 {
		add("board_cache_duration must be positive")
	}
	if c.OverallCodename == "" || c.TiebreakerCodename == "" {
		add("overall_codename and tiebreaker_codename must not be empty")
	} else if c.OverallCodename == c.TiebreakerCodename {
		add("overall_codename and tiebreaker_codename must differ")
	}
	if c.ScoreNormalization <= 0 {
		add("score_normalization must be positive")
	}
	if c.FetchConcurrency <= 0 {
		add("fetch_concurrency must be positive")
	}
	if c.Tiebreaker.Max <= 0 {
		add("tiebreaker.max must be positive")
	}
	seen := make(map[string]bool, len(c.Tiebreaker.Scores))
	for _, s := range c.Tiebreaker.Scores {
		if seen[s.Team] {
			add("tiebreaker team %q listed twice", s.Team)
		}
		seen[s.Team] = true
		if s.Score < 0 || s.Score > c.Tiebreaker.Max {
			add("tiebreaker score %d for %q outside [0, %d]", s.Score, s.Team, c.Tiebreaker.Max)
		}
	}
	if c.RefreshInterval < 0 {
		add("refresh_interval must not be negative")
	}
	if c.RefreshWorkers <= 0 {
		add("refresh_workers must be positive")
	}
	if c.RefreshQueueSize <= 0 {
		add("refresh_queue_size must be positive")
	}

	if c.Metrics.SystemInterval <= 0 {
		add("metrics.system_interval must be positive")
	}
	for i := 1; i < len(c.Metrics.Buckets); i++ {
		if c.Metrics.Buckets[i] <= c.Metrics.Buckets[i-1] {
			add("metrics.buckets must be strictly increasing")
			break
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("%w: %w", ErrInvalidConfig, errors.Join(errs...))
	}
	return nil
}
