// GreenPulse - Sustainability Metrics Ingestion and Dashboard Backend
// Copyright 2026 accidentalscientist
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/accidentalscientist/greenpulse

package config

import "time"

// Config holds all application configuration loaded from environment variables
// and config files.
//
// Configuration Loading Order (Koanf v2):
//  1. Defaults: Built-in sensible defaults for all optional settings
//  2. Config File: Optional YAML config file (config.yaml) for persistent settings
//  3. Environment Variables: Override any setting
//
// Example:
//
//	cfg, err := config.Load()
//	if err != nil {
//	    logging.Fatal().Err(err).Msg("Failed to load config")
//	}
//	// cfg.Mongo.URI, cfg.Ingest.Interval, etc. are now populated
type Config struct {
	Mongo   MongoConfig   `koanf:"mongo"`
	Sources SourcesConfig `koanf:"sources"`
	Ingest  IngestConfig  `koanf:"ingest"`
	Server  ServerConfig  `koanf:"server"`
	Logging LoggingConfig `koanf:"logging"`
}

// MongoConfig holds MongoDB connection settings for the document store.
type MongoConfig struct {
	URI            string        `koanf:"uri"`
	Database       string        `koanf:"database"`
	ConnectTimeout time.Duration `koanf:"connect_timeout"`
}

// SourcesConfig holds the endpoints of the two external data providers.
//
// The OWID URL points at the full CO2 dataset CSV; the World Bank URL is the
// API base under which /country/{codes}/indicator/{code} paths are built.
type SourcesConfig struct {
	OWIDCSVURL       string        `koanf:"owid_csv_url"`
	WorldBankBaseURL string        `koanf:"world_bank_base_url"`
	RequestTimeout   time.Duration `koanf:"request_timeout"`
}

// IngestConfig controls the ingestion orchestrator and its scheduler.
type IngestConfig struct {
	// Interval is the scheduler tick interval. Ticks that arrive while a
	// run is still in flight are dropped, not queued.
	Interval time.Duration `koanf:"interval"`

	// StartYear and EndYear bound the target year range (inclusive).
	StartYear int `koanf:"start_year"`
	EndYear   int `koanf:"end_year"`

	// StalenessThreshold is the minimum count of non-synthetic records in
	// the target range for the store to be considered seeded.
	StalenessThreshold int64 `koanf:"staleness_threshold"`

	// FreshnessWindow is how recent the ingestion metadata's last_updated
	// must be for a run to be skipped.
	FreshnessWindow time.Duration `koanf:"freshness_window"`

	// PerCallDelay is the courtesy delay between successive per-year calls
	// to the World Bank API.
	PerCallDelay time.Duration `koanf:"per_call_delay"`
}

// ServerConfig holds HTTP server settings for the dashboard/status API.
type ServerConfig struct {
	Host        string        `koanf:"host"`
	Port        int           `koanf:"port"`
	Timeout     time.Duration `koanf:"timeout"`
	CORSOrigins []string      `koanf:"cors_origins"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level  string `koanf:"level"`
	Format string `koanf:"format"`
	Caller bool   `koanf:"caller"`
}

// YearRange returns the configured target years in ascending order.
func (c *IngestConfig) YearRange() []int {
	if c.EndYear < c.StartYear {
		return nil
	}
	years := make([]int, 0, c.EndYear-c.StartYear+1)
	for y := c.StartYear; y <= c.EndYear; y++ {
		years = append(years, y)
	}
	return years
}

// Load loads the configuration using Koanf v2 layered sources.
// It is the single entry point used by the composition root.
func Load() (*Config, error) {
	return LoadWithKoanf()
}
