// GreenPulse - Sustainability Metrics Ingestion and Dashboard Backend
// Copyright 2026 accidentalscientist
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/accidentalscientist/greenpulse

// Package ingest implements the sustainability-metrics ingestion pipeline:
// multi-source fetch, field-level reconciliation, synthetic fallback,
// idempotent persistence and the recurring scheduler that drives it.
package ingest

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/accidentalscientist/greenpulse/internal/config"
	"github.com/accidentalscientist/greenpulse/internal/logging"
	"github.com/accidentalscientist/greenpulse/internal/metrics"
	"github.com/accidentalscientist/greenpulse/internal/models"
	"github.com/accidentalscientist/greenpulse/internal/source"
)

// EmissionSource is the bulk tabular adapter contract (OWID CSV).
type EmissionSource interface {
	FetchCO2ByYear(ctx context.Context, targetYears []int, targetCountries map[string]bool) (source.YearRows, error)
}

// IndicatorSource is the per-indicator JSON adapter contract (World Bank).
type IndicatorSource interface {
	FetchIndicator(ctx context.Context, indicator string, countries []string, startYear, endYear int) ([]source.Observation, error)
}

// MetricsStore is the persistence surface the orchestrator writes through.
type MetricsStore interface {
	UpsertEmission(ctx context.Context, rec *models.EmissionRecord) error
	UpsertEnergy(ctx context.Context, rec *models.EnergyRecord) error
	CountLiveEmissions(ctx context.Context, startYear, endYear int) (int64, error)
	GetMetadata(ctx context.Context) (*models.IngestionMetadata, error)
	UpsertMetadata(ctx context.Context, meta *models.IngestionMetadata) error
}

// ErrRunFailed wraps the triggering error when a run falls back to synthetic
// data. The fallback populates the store but the original failure is still
// surfaced, never swallowed.
var ErrRunFailed = errors.New("ingestion run failed")

// Service is the ingestion orchestrator. Each Run decides whether a re-seed
// is needed, drives the adapters and reconciler, falls back to the synthetic
// generator on failure, and persists canonical records.
type Service struct {
	emissions EmissionSource
	wb        IndicatorSource
	store     MetricsStore
	generator *Generator
	cfg       config.IngestConfig

	// limiter paces successive per-year World Bank calls; a courtesy to the
	// provider, not a correctness requirement.
	limiter *rate.Limiter

	// runMu serializes runs. The scheduler already guarantees one in-flight
	// run, but manual trigger endpoints share this path.
	runMu sync.Mutex
}

// NewService constructs the orchestrator with injected dependencies.
func NewService(emissions EmissionSource, wb IndicatorSource, store MetricsStore, generator *Generator, cfg config.IngestConfig) *Service {
	var limiter *rate.Limiter
	if cfg.PerCallDelay > 0 {
		limiter = rate.NewLimiter(rate.Every(cfg.PerCallDelay), 1)
	}
	return &Service{
		emissions: emissions,
		wb:        wb,
		store:     store,
		generator: generator,
		cfg:       cfg,
		limiter:   limiter,
	}
}

// Run executes one ingestion pass. Returns nil when the store was skipped
// (fresh) or refreshed from live sources; returns an ErrRunFailed-wrapped
// error when live ingestion failed and synthetic fallback was written.
func (s *Service) Run(ctx context.Context) error {
	s.runMu.Lock()
	defer s.runMu.Unlock()

	start := time.Now()

	fresh, err := s.isFresh(ctx)
	if err != nil {
		// A broken staleness check means the store itself is unhealthy;
		// proceed with a full run rather than guessing.
		logging.Warn().Err(err).Msg("Staleness check failed, forcing full run")
	}
	if fresh {
		logging.Info().Msg("Recent live data already exists, skipping ingestion run")
		metrics.RecordIngestRun("skipped_fresh", time.Since(start))
		return nil
	}

	liveErr := s.fetchAndReconcile(ctx)
	if liveErr == nil {
		if err := s.writeMetadata(ctx, "Our World in Data (CO2), World Bank (Energy)",
			"Our World in Data GitHub Repository", "World Bank Open Data API"); err != nil {
			logging.Error().Err(err).Msg("Failed to update ingestion metadata")
		}
		metrics.RecordIngestRun("live", time.Since(start))
		logging.Info().Dur("duration", time.Since(start)).Msg("Ingestion run completed from live sources")
		return nil
	}

	logging.Error().Err(liveErr).Msg("Live ingestion failed, falling back to synthetic data")

	if err := s.seedSynthetic(ctx); err != nil {
		metrics.RecordIngestRun("failed", time.Since(start))
		return fmt.Errorf("%w: %v (synthetic fallback also failed: %v)", ErrRunFailed, liveErr, err)
	}

	if err := s.writeMetadata(ctx, "Synthetic Generator", "synthetic", "synthetic"); err != nil {
		logging.Error().Err(err).Msg("Failed to update ingestion metadata after fallback")
	}

	metrics.RecordIngestRun("synthetic", time.Since(start))

	// Fallback does not suppress the error signal.
	return fmt.Errorf("%w: %v", ErrRunFailed, liveErr)
}

// isFresh reports whether the staleness gate allows skipping this run: the
// metadata record must exist, be inside the freshness window, and the count
// of live (non-synthetic) records for the target range must exceed the
// threshold. Metadata is authoritative; without it a full run proceeds even
// when live records exist.
func (s *Service) isFresh(ctx context.Context) (bool, error) {
	meta, err := s.store.GetMetadata(ctx)
	if err != nil {
		return false, err
	}
	if meta == nil {
		return false, nil
	}
	if time.Since(meta.LastUpdated) > s.cfg.FreshnessWindow {
		return false, nil
	}

	count, err := s.store.CountLiveEmissions(ctx, s.cfg.StartYear, s.cfg.EndYear)
	if err != nil {
		return false, err
	}
	return count > s.cfg.StalenessThreshold, nil
}

// fetchAndReconcile runs the two independent source passes: emissions from
// the OWID bulk CSV across the full year range, then renewables from the
// World Bank per year. Per-call failures are isolated; the run fails only
// when the bulk endpoint is unreachable or no usable output was produced.
func (s *Service) fetchAndReconcile(ctx context.Context) error {
	years := s.cfg.YearRange()

	grouped, err := s.emissions.FetchCO2ByYear(ctx, years, TargetCountrySet())
	if err != nil {
		return fmt.Errorf("bulk emissions fetch: %w", err)
	}

	emissionCount := s.persistEmissionRows(ctx, grouped)
	energyCount := s.persistEnergyYears(ctx, years)

	if emissionCount == 0 && energyCount == 0 {
		return errors.New("no usable output from either source")
	}

	logging.Info().
		Int("emission_records", emissionCount).
		Int("energy_records", energyCount).
		Msg("Reconciled live source data")

	return nil
}

// persistEmissionRows reconciles and upserts the bulk adapter's grouped rows
// in ascending year order. Row rejections and per-key upsert failures are
// logged and skipped.
func (s *Service) persistEmissionRows(ctx context.Context, grouped source.YearRows) int {
	years := make([]int, 0, len(grouped))
	for year := range grouped {
		years = append(years, year)
	}
	sort.Ints(years)

	written := 0
	for _, year := range years {
		for _, row := range grouped[year] {
			rec, err := ReconcileEmission(row)
			if err != nil {
				metrics.RecordRowRejected("owid", "missing_emission_fields")
				logging.Debug().Err(err).Msg("Dropped emission row")
				continue
			}
			if err := s.store.UpsertEmission(ctx, rec); err != nil {
				logging.Error().Err(err).
					Str("country", rec.Country).
					Int("year", rec.Year).
					Msg("Failed to upsert emission record")
				continue
			}
			written++
		}
		if n := len(grouped[year]); n > 0 {
			logging.Debug().Int("year", year).Int("rows", n).Msg("Processed emission year")
		}
	}

	metrics.RecordUpserts("emissions", string(models.SourceOWID), written)
	return written
}

// persistEnergyYears fetches the renewable share indicator per year in
// ascending order, pacing calls with the courtesy limiter, and upserts the
// derived energy records. A failed call yields an empty year, not a failed
// run.
func (s *Service) persistEnergyYears(ctx context.Context, years []int) int {
	codes := TargetISO3Codes()
	written := 0

	for _, year := range years {
		if s.limiter != nil {
			if err := s.limiter.Wait(ctx); err != nil {
				logging.Warn().Err(err).Msg("Energy pass aborted")
				break
			}
		}

		observations, err := s.wb.FetchIndicator(ctx, source.IndicatorRenewableShare, codes, year, year)
		if err != nil {
			logging.Warn().Err(err).Int("year", year).Msg("Renewable indicator call failed, continuing")
			continue
		}

		yearWritten := 0
		for _, obs := range observations {
			if obs.Value == nil {
				continue
			}
			country, ok := CountryNameForISO3(obs.CountryISO3)
			if !ok {
				continue
			}
			rec := ReconcileEnergy(country, obs.CountryISO3, obs.Year, *obs.Value, models.SourceWorldBank)
			if err := s.store.UpsertEnergy(ctx, rec); err != nil {
				logging.Error().Err(err).
					Str("country", rec.Country).
					Int("year", rec.Year).
					Msg("Failed to upsert energy record")
				continue
			}
			yearWritten++
		}

		written += yearWritten
		if yearWritten > 0 {
			logging.Debug().Int("year", year).Int("records", yearWritten).Msg("Processed energy year")
		}
	}

	metrics.RecordUpserts("energy", string(models.SourceWorldBank), written)
	return written
}

// seedSynthetic regenerates the full configured range from the synthetic
// generator, substituting for the entire run's output.
func (s *Service) seedSynthetic(ctx context.Context) error {
	years := s.cfg.YearRange()

	emissionRecs := s.generator.BackfillEmissions(years)
	energyRecs := s.generator.BackfillEnergy(years)

	emissionWritten := 0
	for _, rec := range emissionRecs {
		if err := s.store.UpsertEmission(ctx, rec); err != nil {
			logging.Error().Err(err).
				Str("country", rec.Country).
				Int("year", rec.Year).
				Msg("Failed to upsert synthetic emission record")
			continue
		}
		emissionWritten++
	}

	energyWritten := 0
	for _, rec := range energyRecs {
		if err := s.store.UpsertEnergy(ctx, rec); err != nil {
			logging.Error().Err(err).
				Str("country", rec.Country).
				Int("year", rec.Year).
				Msg("Failed to upsert synthetic energy record")
			continue
		}
		energyWritten++
	}

	metrics.RecordUpserts("emissions", string(models.SourceSynthetic), emissionWritten)
	metrics.RecordUpserts("energy", string(models.SourceSynthetic), energyWritten)

	if emissionWritten == 0 && energyWritten == 0 {
		return errors.New("no synthetic records persisted")
	}

	logging.Info().
		Int("emission_records", emissionWritten).
		Int("energy_records", energyWritten).
		Msg("Seeded synthetic data")

	return nil
}

// writeMetadata upserts the singleton ingestion metadata record describing
// provenance and coverage of the last successful reconciliation.
func (s *Service) writeMetadata(ctx context.Context, primary, co2Source, energySource string) error {
	return s.store.UpsertMetadata(ctx, &models.IngestionMetadata{
		Type:           models.MetadataTypeKey,
		PrimarySource:  primary,
		CO2Source:      co2Source,
		EnergySource:   energySource,
		CoverageYears:  fmt.Sprintf("%d-%d", s.cfg.StartYear, s.cfg.EndYear),
		CountriesCount: len(TargetCountries()),
		LastUpdated:    time.Now().UTC(),
	})
}

// RefreshEmissionsFromWorldBank re-derives emission records from World Bank
// indicators for the given years. The four indicators for one year are
// fetched concurrently since they are read-only and independent; years are
// serialized with the courtesy limiter.
func (s *Service) RefreshEmissionsFromWorldBank(ctx context.Context, years []int) (int, error) {
	codes := TargetISO3Codes()
	written := 0

	for _, year := range years {
		if s.limiter != nil {
			if err := s.limiter.Wait(ctx); err != nil {
				return written, err
			}
		}

		joined, err := s.fetchWBYear(ctx, codes, year)
		if err != nil {
			logging.Warn().Err(err).Int("year", year).Msg("World Bank year fetch failed, continuing")
			continue
		}

		yearWritten := 0
		for _, in := range joined {
			rec, err := reconcileWBEmission(in)
			if err != nil {
				metrics.RecordRowRejected("world_bank", "missing_emission_fields")
				continue
			}
			if err := s.store.UpsertEmission(ctx, rec); err != nil {
				logging.Error().Err(err).
					Str("country", rec.Country).
					Int("year", rec.Year).
					Msg("Failed to upsert emission record")
				continue
			}
			yearWritten++
		}

		written += yearWritten
		metrics.RecordUpserts("emissions", string(models.SourceWorldBank), yearWritten)
		logging.Info().Int("year", year).Int("records", yearWritten).Msg("Refreshed emissions from World Bank")
	}

	return written, nil
}

// fetchWBYear pulls the four emission-related indicators for one year
// concurrently and joins them per country.
func (s *Service) fetchWBYear(ctx context.Context, codes []string, year int) (map[string]wbCountryYear, error) {
	indicators := []string{
		source.IndicatorCO2PerCapita,
		source.IndicatorCO2TotalKt,
		source.IndicatorPopulation,
		source.IndicatorGDPPerCapita,
	}

	results := make([]map[string]*float64, len(indicators))
	errs := make([]error, len(indicators))

	var wg sync.WaitGroup
	for i, indicator := range indicators {
		wg.Add(1)
		go func(idx int, ind string) {
			defer wg.Done()
			observations, err := s.wb.FetchIndicator(ctx, ind, codes, year, year)
			if err != nil {
				errs[idx] = err
				return
			}
			byCountry := make(map[string]*float64, len(observations))
			for _, obs := range observations {
				if obs.Value != nil {
					byCountry[obs.CountryISO3] = obs.Value
				}
			}
			results[idx] = byCountry
		}(i, indicator)
	}
	wg.Wait()

	for _, err := range errs {
		if err != nil {
			return nil, err
		}
	}

	joined := make(map[string]wbCountryYear)
	for _, code := range codes {
		country, ok := CountryNameForISO3(code)
		if !ok {
			continue
		}
		in := wbCountryYear{
			country:      country,
			year:         year,
			co2PerCapita: results[0][code],
			co2TotalKt:   results[1][code],
			population:   results[2][code],
			gdpPerCapita: results[3][code],
		}
		if in.co2PerCapita == nil && in.co2TotalKt == nil {
			continue
		}
		joined[code] = in
	}

	return joined, nil
}
