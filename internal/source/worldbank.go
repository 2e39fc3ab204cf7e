// GreenPulse - Sustainability Metrics Ingestion and Dashboard Backend
// Copyright 2026 accidentalscientist
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/accidentalscientist/greenpulse

package source

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/goccy/go-json"

	"github.com/accidentalscientist/greenpulse/internal/config"
	"github.com/accidentalscientist/greenpulse/internal/logging"
	"github.com/accidentalscientist/greenpulse/internal/metrics"
)

// World Bank indicator codes consumed by the pipeline.
const (
	IndicatorCO2PerCapita   = "EN.ATM.CO2E.PC" // CO2 emissions (metric tons per capita)
	IndicatorCO2TotalKt     = "EN.ATM.CO2E.KT" // CO2 emissions (kt)
	IndicatorRenewableShare = "EG.FEC.RNEW.ZS" // Renewable energy consumption (% of total final energy)
	IndicatorPopulation     = "SP.POP.TOTL"    // Population, total
	IndicatorGDPPerCapita   = "NY.GDP.PCAP.CD" // GDP per capita (current US$)
)

// wbPageSize must exceed countries x years for any single call so pagination
// is never silently truncated.
const wbPageSize = 5000

// WorldBankClient fetches per-indicator observations from the World Bank
// Open Data API. One call covers a batch of semicolon-joined country codes
// over a year range; the response envelope is [metadata, rows].
type WorldBankClient struct {
	baseURL string
	client  *http.Client
}

// NewWorldBankClient creates a World Bank API client from the sources
// configuration.
func NewWorldBankClient(cfg config.SourcesConfig) *WorldBankClient {
	return &WorldBankClient{
		baseURL: strings.TrimSuffix(cfg.WorldBankBaseURL, "/"),
		client: &http.Client{
			Timeout: cfg.RequestTimeout,
		},
	}
}

// wbRow mirrors the subset of a World Bank observation the pipeline reads.
type wbRow struct {
	CountryISO3 string   `json:"countryiso3code"`
	Date        string   `json:"date"`
	Value       *float64 `json:"value"`
	Country     struct {
		Value string `json:"value"`
	} `json:"country"`
}

// FetchIndicator retrieves one indicator for a batch of ISO3 country codes
// over an inclusive year range.
//
// Failure policy: a non-2xx response or an envelope with fewer than two
// elements yields an empty result with a warning, so one bad indicator/year
// never aborts the rest of the run. Transport-level failures return
// ErrUnavailable for the caller to decide.
func (c *WorldBankClient) FetchIndicator(ctx context.Context, indicator string, countries []string, startYear, endYear int) ([]Observation, error) {
	params := url.Values{}
	params.Set("format", "json")
	params.Set("date", fmt.Sprintf("%d:%d", startYear, endYear))
	params.Set("per_page", strconv.Itoa(wbPageSize))

	reqURL := fmt.Sprintf("%s/country/%s/indicator/%s?%s",
		c.baseURL, strings.Join(countries, ";"), indicator, params.Encode())

	start := time.Now()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, http.NoBody)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		metrics.RecordSourceRequest("world_bank", "error", time.Since(start))
		return nil, fmt.Errorf("%w: fetching indicator %s: %v", ErrUnavailable, indicator, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		metrics.RecordSourceRequest("world_bank", "error", time.Since(start))
		logging.Warn().
			Str("indicator", indicator).
			Int("status", resp.StatusCode).
			Msg("World Bank request returned non-200, treating as no data")
		return nil, nil
	}

	var envelope []json.RawMessage
	if err := json.NewDecoder(resp.Body).Decode(&envelope); err != nil {
		metrics.RecordSourceRequest("world_bank", "error", time.Since(start))
		logging.Warn().
			Str("indicator", indicator).
			Err(err).
			Msg("World Bank response is not a JSON array, treating as no data")
		return nil, nil
	}

	if len(envelope) < 2 {
		metrics.RecordSourceRequest("world_bank", "empty", time.Since(start))
		logging.Warn().
			Str("indicator", indicator).
			Int("envelope_len", len(envelope)).
			Msg("World Bank envelope has no data element")
		return nil, nil
	}

	var rows []wbRow
	if err := json.Unmarshal(envelope[1], &rows); err != nil {
		metrics.RecordSourceRequest("world_bank", "error", time.Since(start))
		logging.Warn().
			Str("indicator", indicator).
			Err(err).
			Msg("Failed to decode World Bank rows, treating as no data")
		return nil, nil
	}

	observations := make([]Observation, 0, len(rows))
	for _, row := range rows {
		year, err := strconv.Atoi(row.Date)
		if err != nil {
			continue
		}
		observations = append(observations, Observation{
			CountryISO3: row.CountryISO3,
			CountryName: row.Country.Value,
			Year:        year,
			Value:       row.Value,
		})
	}

	outcome := "success"
	if len(observations) == 0 {
		outcome = "empty"
	}
	metrics.RecordSourceRequest("world_bank", outcome, time.Since(start))
	metrics.RecordSourceRows("world_bank", len(observations))

	logging.Debug().
		Str("indicator", indicator).
		Int("rows", len(observations)).
		Int("start_year", startYear).
		Int("end_year", endYear).
		Msg("Fetched World Bank indicator")

	return observations, nil
}
