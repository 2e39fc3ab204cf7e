// GreenPulse - Sustainability Metrics Ingestion and Dashboard Backend
// Copyright 2026 accidentalscientist
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/accidentalscientist/greenpulse

package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"
)

// Validate checks the configuration for errors and returns the first problem found.
func (c *Config) Validate() error {
	if err := c.Mongo.Validate(); err != nil {
		return fmt.Errorf("mongo: %w", err)
	}
	if err := c.Sources.Validate(); err != nil {
		return fmt.Errorf("sources: %w", err)
	}
	if err := c.Ingest.Validate(); err != nil {
		return fmt.Errorf("ingest: %w", err)
	}
	if err := c.Server.Validate(); err != nil {
		return fmt.Errorf("server: %w", err)
	}
	if err := c.Logging.Validate(); err != nil {
		return fmt.Errorf("logging: %w", err)
	}
	return nil
}

// Validate checks MongoDB connection settings.
func (c *MongoConfig) Validate() error {
	if c.URI == "" {
		return fmt.Errorf("uri is required")
	}
	if !strings.HasPrefix(c.URI, "mongodb://") && !strings.HasPrefix(c.URI, "mongodb+srv://") {
		return fmt.Errorf("uri must start with mongodb:// or mongodb+srv://, got %q", c.URI)
	}
	if c.Database == "" {
		return fmt.Errorf("database is required")
	}
	if c.ConnectTimeout <= 0 {
		return fmt.Errorf("connect_timeout must be positive, got %v", c.ConnectTimeout)
	}
	return nil
}

// Validate checks external source settings.
func (c *SourcesConfig) Validate() error {
	if err := validateHTTPURL(c.OWIDCSVURL); err != nil {
		return fmt.Errorf("owid_csv_url: %w", err)
	}
	if err := validateHTTPURL(c.WorldBankBaseURL); err != nil {
		return fmt.Errorf("world_bank_base_url: %w", err)
	}
	if c.RequestTimeout <= 0 {
		return fmt.Errorf("request_timeout must be positive, got %v", c.RequestTimeout)
	}
	return nil
}

// Validate checks ingestion settings.
func (c *IngestConfig) Validate() error {
	if c.Interval < time.Minute {
		return fmt.Errorf("interval must be at least 1 minute, got %v", c.Interval)
	}
	if c.StartYear < 1960 || c.StartYear > 2100 {
		return fmt.Errorf("start_year must be between 1960 and 2100, got %d", c.StartYear)
	}
	if c.EndYear < c.StartYear {
		return fmt.Errorf("end_year (%d) must not be before start_year (%d)", c.EndYear, c.StartYear)
	}
	if c.StalenessThreshold < 0 {
		return fmt.Errorf("staleness_threshold must not be negative, got %d", c.StalenessThreshold)
	}
	if c.FreshnessWindow <= 0 {
		return fmt.Errorf("freshness_window must be positive, got %v", c.FreshnessWindow)
	}
	if c.PerCallDelay < 0 {
		return fmt.Errorf("per_call_delay must not be negative, got %v", c.PerCallDelay)
	}
	return nil
}

// Validate checks HTTP server settings.
func (c *ServerConfig) Validate() error {
	if c.Host == "" {
		return fmt.Errorf("host is required")
	}
	if c.Port < 1 || c.Port > 65535 {
		return fmt.Errorf("port must be between 1 and 65535, got %d", c.Port)
	}
	if c.Timeout <= 0 {
		return fmt.Errorf("timeout must be positive, got %v", c.Timeout)
	}
	return nil
}

// Validate checks logging settings.
func (c *LoggingConfig) Validate() error {
	switch strings.ToLower(c.Level) {
	case "trace", "debug", "info", "warn", "error", "fatal", "panic", "":
	default:
		return fmt.Errorf("invalid level %q", c.Level)
	}
	switch strings.ToLower(c.Format) {
	case "json", "console", "":
	default:
		return fmt.Errorf("invalid format %q (must be json or console)", c.Format)
	}
	return nil
}

// validateHTTPURL checks that a string is a valid absolute http(s) URL.
func validateHTTPURL(raw string) error {
	if raw == "" {
		return fmt.Errorf("url is required")
	}
	u, err := url.Parse(raw)
	if err != nil {
		return fmt.Errorf("invalid url: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("url scheme must be http or https, got %q", u.Scheme)
	}
	if u.Host == "" {
		return fmt.Errorf("url must have a host")
	}
	return nil
}
