// Package config defines service configuration structures and loading hooks.
//
// Conventions:
// - Provide New() to build a Config with defaults; Load layers file and env.
// - External errors must be wrapped via this package's error helpers.
package config

import (
	"runtime"
	"time"
)

// Config contains process configuration. Extend as needed.
type Config struct {
	// LogLevel controls verbosity: debug, info, warn, error.
	LogLevel string `koanf:"log_level"`

	// Addr configures the HTTP listen address, e.g. ":8080".
	Addr string `koanf:"addr"`

	// HotStorePath is the on-disk BadgerDB directory. Ignored when
	// HotStoreInMemory is set.
	HotStorePath string `koanf:"hot_store_path"`

	// HotStoreInMemory runs the hot store without persistence. For
	// development and tests only.
	HotStoreInMemory bool `koanf:"hot_store_in_memory"`

	// ArchiveBucket names the cold storage bucket. When empty, archived
	// batches are kept in an in-process archive (development mode).
	ArchiveBucket string `koanf:"archive_bucket"`

	// ArchivePrefix prefixes every archived object key.
	ArchivePrefix string `koanf:"archive_prefix"`

	// GCSCredentialsFile optionally points at a service account key.
	GCSCredentialsFile string `koanf:"gcs_credentials_file"`

	// RoundCount is the number of rounds per challenge.
	RoundCount int `koanf:"round_count"`

	// CurveStrategy selects the distribution synthesizer: "bucketed" or "kde".
	CurveStrategy string `koanf:"curve_strategy"`

	// CurvePointCount is the target number of points for the bucketed strategy.
	CurvePointCount int `koanf:"curve_point_count"`

	// GuessQueueSize bounds the in-memory guess event queue.
	GuessQueueSize int `koanf:"queue_size"`

	// WorkerCount sets the number of guess persistence workers.
	WorkerCount int `koanf:"worker_count"`

	// CacheTTL and CacheSweepInterval tune the distribution read cache.
	CacheTTL           time.Duration `koanf:"cache_ttl"`
	CacheSweepInterval time.Duration `koanf:"cache_sweep_interval"`

	// SweepInterval sets how often the archival sweep runs.
	SweepInterval time.Duration `koanf:"sweep_interval"`

	// AgeThresholdDays sets how many days old a challenge must be before
	// the sweep archives it.
	AgeThresholdDays int `koanf:"age_threshold_days"`

	// EmergencyCompletions triggers inline archival when a single day's
	// completions reach this count. Zero disables the trigger.
	EmergencyCompletions int64 `koanf:"emergency_completions"`
}

// New creates a Config populated with defaults.
func New() *Config {
	c := &Config{
		LogLevel:             "info",
		Addr:                 ":9080",
		HotStorePath:         "data/hotstore",
		ArchivePrefix:        "challenges",
		RoundCount:           5,
		CurveStrategy:        "bucketed",
		CurvePointCount:      15,
		GuessQueueSize:       100_000,
		WorkerCount:          runtime.NumCPU() * 4,
		CacheTTL:             30 * time.Second,
		CacheSweepInterval:   10 * time.Second,
		SweepInterval:        15 * time.Minute,
		AgeThresholdDays:     2,
		EmergencyCompletions: 1_000_000,
	}
	return c
}
