// GreenPulse - Sustainability Metrics Ingestion and Dashboard Backend
// Copyright 2026 accidentalscientist
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/accidentalscientist/greenpulse

package source

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/accidentalscientist/greenpulse/internal/config"
	"github.com/accidentalscientist/greenpulse/internal/logging"
	"github.com/accidentalscientist/greenpulse/internal/metrics"
)

// OWIDClient fetches the Our World in Data CO2 dataset: one large CSV
// covering all countries and years in a single request.
//
// Thread Safety: safe for concurrent use. Each request creates its own HTTP
// request and parser state.
type OWIDClient struct {
	csvURL         string
	client         *http.Client
	maxRetries     int
	retryBaseDelay time.Duration
}

// NewOWIDClient creates an OWID CSV client from the sources configuration.
func NewOWIDClient(cfg config.SourcesConfig) *OWIDClient {
	return &OWIDClient{
		csvURL: cfg.OWIDCSVURL,
		client: &http.Client{
			Timeout: cfg.RequestTimeout,
		},
		maxRetries:     5,
		retryBaseDelay: time.Second,
	}
}

// FetchCO2ByYear downloads the bulk CSV and returns accepted rows grouped by
// year. A row is accepted when its year is in targetYears, its country is in
// targetCountries, and at least one of the emission columns is populated.
//
// A transport-level failure returns ErrUnavailable: the bulk dataset is the
// primary emissions source and an unreachable endpoint means the whole run
// cannot proceed on live data. A non-2xx response returns an empty grouping
// and a warning instead, matching the per-call isolation policy.
func (c *OWIDClient) FetchCO2ByYear(ctx context.Context, targetYears []int, targetCountries map[string]bool) (YearRows, error) {
	start := time.Now()

	resp, err := c.doRequestWithRateLimit(ctx, c.csvURL)
	if err != nil {
		metrics.RecordSourceRequest("owid", "error", time.Since(start))
		return nil, fmt.Errorf("%w: fetching OWID CSV: %v", ErrUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		metrics.RecordSourceRequest("owid", "error", time.Since(start))
		logging.Warn().
			Int("status", resp.StatusCode).
			Msg("OWID CSV request returned non-200, treating as no data")
		return YearRows{}, nil
	}

	grouped, parsed, accepted, err := parseCO2CSV(resp.Body, targetYears, targetCountries)
	if err != nil {
		metrics.RecordSourceRequest("owid", "error", time.Since(start))
		return nil, fmt.Errorf("parsing OWID CSV: %w", err)
	}

	outcome := "success"
	if accepted == 0 {
		outcome = "empty"
	}
	metrics.RecordSourceRequest("owid", outcome, time.Since(start))
	metrics.RecordSourceRows("owid", accepted)

	logging.Info().
		Int("rows_parsed", parsed).
		Int("rows_accepted", accepted).
		Int("years_with_data", len(grouped)).
		Msg("Fetched OWID CO2 dataset")

	return grouped, nil
}

// doRequestWithRateLimit performs an HTTP GET with automatic HTTP 429
// handling: exponential backoff (1s, 2s, 4s, 8s, 16s) honoring Retry-After.
func (c *OWIDClient) doRequestWithRateLimit(ctx context.Context, reqURL string) (*http.Response, error) {
	var lastErr error

	for attempt := 0; attempt <= c.maxRetries; attempt++ {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, http.NoBody)
		if err != nil {
			return nil, fmt.Errorf("failed to create request: %w", err)
		}

		resp, err := c.client.Do(req)
		if err != nil {
			return nil, fmt.Errorf("HTTP request failed: %w", err)
		}

		if resp.StatusCode != http.StatusTooManyRequests {
			return resp, nil
		}

		_ = resp.Body.Close()

		if attempt == c.maxRetries {
			lastErr = fmt.Errorf("rate limit exceeded after %d retries (HTTP 429)", c.maxRetries)
			break
		}

		delay := c.retryBaseDelay * time.Duration(1<<uint(attempt))
		if retryAfter := resp.Header.Get("Retry-After"); retryAfter != "" {
			if seconds, err := time.ParseDuration(retryAfter + "s"); err == nil {
				delay = seconds
			}
		}

		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	return nil, lastErr
}

// Column names consumed from the OWID dataset. Any other columns are ignored.
const (
	colCountry      = "country"
	colYear         = "year"
	colCO2          = "co2"
	colCO2PerCapita = "co2_per_capita"
	colPopulation   = "population"
	colGDP          = "gdp"
)

// parseCO2CSV streams the CSV, filtering to the requested years and
// countries. Rows missing both emission columns are dropped. Malformed rows
// are skipped rather than failing the parse.
func parseCO2CSV(r io.Reader, targetYears []int, targetCountries map[string]bool) (YearRows, int, int, error) {
	reader := csv.NewReader(r)
	reader.ReuseRecord = true

	header, err := reader.Read()
	if err != nil {
		return nil, 0, 0, fmt.Errorf("reading CSV header: %w", err)
	}

	cols := make(map[string]int, len(header))
	for i, name := range header {
		cols[name] = i
	}
	for _, required := range []string{colCountry, colYear} {
		if _, ok := cols[required]; !ok {
			return nil, 0, 0, fmt.Errorf("CSV missing required column %q", required)
		}
	}

	yearSet := make(map[int]bool, len(targetYears))
	for _, y := range targetYears {
		yearSet[y] = true
	}

	grouped := make(YearRows, len(targetYears))
	parsed := 0
	accepted := 0

	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			// Skip malformed rows, keep streaming.
			continue
		}
		parsed++

		country := field(record, cols, colCountry)
		year, yearErr := strconv.Atoi(field(record, cols, colYear))
		if yearErr != nil || !yearSet[year] || !targetCountries[country] {
			continue
		}

		row := EmissionRow{
			Country:      country,
			Year:         year,
			CO2Total:     parseFloat(field(record, cols, colCO2)),
			CO2PerCapita: parseFloat(field(record, cols, colCO2PerCapita)),
			Population:   parseInt(field(record, cols, colPopulation)),
			GDP:          parseFloat(field(record, cols, colGDP)),
		}

		// Rows with neither emission figure cannot form a usable record.
		if row.CO2Total == nil && row.CO2PerCapita == nil {
			metrics.RecordRowRejected("owid", "no_numeric_fields")
			continue
		}

		grouped[year] = append(grouped[year], row)
		accepted++
	}

	return grouped, parsed, accepted, nil
}

func field(record []string, cols map[string]int, name string) string {
	idx, ok := cols[name]
	if !ok || idx >= len(record) {
		return ""
	}
	return record[idx]
}

func parseFloat(s string) *float64 {
	if s == "" {
		return nil
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return nil
	}
	return &v
}

func parseInt(s string) *int64 {
	if s == "" {
		return nil
	}
	// Population columns sometimes carry a decimal point.
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return nil
	}
	n := int64(v)
	return &n
}
