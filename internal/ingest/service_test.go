// GreenPulse - Sustainability Metrics Ingestion and Dashboard Backend
// Copyright 2026 accidentalscientist
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/accidentalscientist/greenpulse

package ingest

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"sync"
	"testing"
	"time"

	"github.com/accidentalscientist/greenpulse/internal/config"
	"github.com/accidentalscientist/greenpulse/internal/models"
	"github.com/accidentalscientist/greenpulse/internal/source"
)

type mockStore struct {
	mu        sync.Mutex
	emissions map[string]*models.EmissionRecord
	energy    map[string]*models.EnergyRecord
	metadata  *models.IngestionMetadata

	emissionUpserts int
	energyUpserts   int
	countCalls      int
	failUpserts     bool
}

func newMockStore() *mockStore {
	return &mockStore{
		emissions: make(map[string]*models.EmissionRecord),
		energy:    make(map[string]*models.EnergyRecord),
	}
}

func recordKey(country string, year int) string {
	return fmt.Sprintf("%s/%d", country, year)
}

func (m *mockStore) UpsertEmission(_ context.Context, rec *models.EmissionRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failUpserts {
		return errors.New("write failed")
	}
	m.emissionUpserts++
	m.emissions[recordKey(rec.Country, rec.Year)] = rec
	return nil
}

func (m *mockStore) UpsertEnergy(_ context.Context, rec *models.EnergyRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failUpserts {
		return errors.New("write failed")
	}
	m.energyUpserts++
	m.energy[recordKey(rec.Country, rec.Year)] = rec
	return nil
}

func (m *mockStore) CountLiveEmissions(_ context.Context, startYear, endYear int) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.countCalls++
	var n int64
	for _, rec := range m.emissions {
		if rec.DataSource != models.SourceSynthetic && rec.Year >= startYear && rec.Year <= endYear {
			n++
		}
	}
	return n, nil
}

func (m *mockStore) GetMetadata(_ context.Context) (*models.IngestionMetadata, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.metadata, nil
}

func (m *mockStore) UpsertMetadata(_ context.Context, meta *models.IngestionMetadata) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.metadata = meta
	return nil
}

type mockEmissionSource struct {
	mu    sync.Mutex
	rows  source.YearRows
	err   error
	calls int
}

func (m *mockEmissionSource) FetchCO2ByYear(context.Context, []int, map[string]bool) (source.YearRows, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls++
	if m.err != nil {
		return nil, m.err
	}
	return m.rows, nil
}

type mockIndicatorSource struct {
	mu           sync.Mutex
	observations map[int][]source.Observation
	err          error
	calls        int
}

func (m *mockIndicatorSource) FetchIndicator(_ context.Context, _ string, _ []string, startYear, _ int) ([]source.Observation, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls++
	if m.err != nil {
		return nil, m.err
	}
	return m.observations[startYear], nil
}

func testIngestConfig() config.IngestConfig {
	return config.IngestConfig{
		Interval:           time.Minute,
		StartYear:          2022,
		EndYear:            2023,
		StalenessThreshold: 2,
		FreshnessWindow:    7 * 24 * time.Hour,
		PerCallDelay:       0, // no pacing in tests
	}
}

func testService(store *mockStore, emissions *mockEmissionSource, wb *mockIndicatorSource) *Service {
	gen := NewGenerator(rand.New(rand.NewSource(1)))
	return NewService(emissions, wb, store, gen, testIngestConfig())
}

func liveRows() source.YearRows {
	return source.YearRows{
		2022: {
			{Country: "United States", Year: 2022, CO2Total: floatPtr(5000), Population: intPtr(330_000_000)},
			{Country: "Germany", Year: 2022, CO2PerCapita: floatPtr(8.5), Population: intPtr(83_000_000)},
		},
		2023: {
			{Country: "United States", Year: 2023, CO2Total: floatPtr(4900), Population: intPtr(331_000_000)},
		},
	}
}

func TestRunLiveSources(t *testing.T) {
	store := newMockStore()
	emissions := &mockEmissionSource{rows: liveRows()}
	wb := &mockIndicatorSource{observations: map[int][]source.Observation{
		2023: {{CountryISO3: "NOR", Year: 2023, Value: floatPtr(71.6)}},
	}}

	svc := testService(store, emissions, wb)
	if err := svc.Run(context.Background()); err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	if len(store.emissions) != 3 {
		t.Errorf("got %d emission records, want 3", len(store.emissions))
	}
	usa := store.emissions[recordKey("United States", 2022)]
	if usa == nil {
		t.Fatal("missing United States/2022 record")
	}
	if usa.CO2PerCapita != 15.15 {
		t.Errorf("USA CO2PerCapita = %v, want 15.15", usa.CO2PerCapita)
	}
	deu := store.emissions[recordKey("Germany", 2022)]
	if deu == nil || deu.CO2Emissions != 705.5 {
		t.Errorf("Germany record = %+v, want CO2Emissions 705.5", deu)
	}

	nor := store.energy[recordKey("Norway", 2023)]
	if nor == nil {
		t.Fatal("missing Norway/2023 energy record")
	}
	if nor.DataSource != models.SourceWorldBank {
		t.Errorf("Norway DataSource = %q, want %q", nor.DataSource, models.SourceWorldBank)
	}

	if store.metadata == nil {
		t.Fatal("metadata not written")
	}
	if store.metadata.CoverageYears != "2022-2023" {
		t.Errorf("CoverageYears = %q, want 2022-2023", store.metadata.CoverageYears)
	}
	if store.metadata.CountriesCount != 50 {
		t.Errorf("CountriesCount = %d, want 50", store.metadata.CountriesCount)
	}
}

func TestRunSkipsWhenFresh(t *testing.T) {
	store := newMockStore()
	store.metadata = &models.IngestionMetadata{
		Type:        models.MetadataTypeKey,
		LastUpdated: time.Now().UTC(),
	}
	for _, rec := range []*models.EmissionRecord{
		{Country: "United States", Year: 2022, DataSource: models.SourceOWID},
		{Country: "Germany", Year: 2022, DataSource: models.SourceOWID},
		{Country: "France", Year: 2023, DataSource: models.SourceOWID},
	} {
		store.emissions[recordKey(rec.Country, rec.Year)] = rec
	}

	emissions := &mockEmissionSource{rows: liveRows()}
	wb := &mockIndicatorSource{}

	svc := testService(store, emissions, wb)
	if err := svc.Run(context.Background()); err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	if emissions.calls != 0 {
		t.Errorf("emission source called %d times, want 0", emissions.calls)
	}
	if wb.calls != 0 {
		t.Errorf("indicator source called %d times, want 0", wb.calls)
	}
	if store.emissionUpserts != 0 {
		t.Errorf("emission upserts = %d, want 0", store.emissionUpserts)
	}
}

func TestRunProceedsWhenMetadataStale(t *testing.T) {
	store := newMockStore()
	store.metadata = &models.IngestionMetadata{
		Type:        models.MetadataTypeKey,
		LastUpdated: time.Now().UTC().Add(-8 * 24 * time.Hour),
	}
	for _, rec := range []*models.EmissionRecord{
		{Country: "United States", Year: 2022, DataSource: models.SourceOWID},
		{Country: "Germany", Year: 2022, DataSource: models.SourceOWID},
		{Country: "France", Year: 2023, DataSource: models.SourceOWID},
	} {
		store.emissions[recordKey(rec.Country, rec.Year)] = rec
	}

	emissions := &mockEmissionSource{rows: liveRows()}
	svc := testService(store, emissions, &mockIndicatorSource{})

	if err := svc.Run(context.Background()); err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if emissions.calls != 1 {
		t.Errorf("emission source called %d times, want 1", emissions.calls)
	}
}

func TestRunProceedsWithoutMetadata(t *testing.T) {
	store := newMockStore()
	// Plenty of live records but no metadata: the gate must not skip.
	for year := 2022; year <= 2023; year++ {
		for _, country := range []string{"United States", "Germany", "France", "Japan"} {
			rec := &models.EmissionRecord{Country: country, Year: year, DataSource: models.SourceOWID}
			store.emissions[recordKey(country, year)] = rec
		}
	}

	emissions := &mockEmissionSource{rows: liveRows()}
	svc := testService(store, emissions, &mockIndicatorSource{})

	if err := svc.Run(context.Background()); err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if emissions.calls != 1 {
		t.Errorf("emission source called %d times, want 1", emissions.calls)
	}
}

func TestRunSyntheticFallback(t *testing.T) {
	store := newMockStore()
	emissions := &mockEmissionSource{err: fmt.Errorf("%w: connection refused", source.ErrUnavailable)}
	wb := &mockIndicatorSource{}

	svc := testService(store, emissions, wb)
	err := svc.Run(context.Background())

	if !errors.Is(err, ErrRunFailed) {
		t.Fatalf("Run() error = %v, want ErrRunFailed", err)
	}

	// Fallback must cover every (country, year) pair for both collections.
	wantPerCollection := 2 * len(TargetCountries())
	if len(store.emissions) != wantPerCollection {
		t.Errorf("got %d emission records, want %d", len(store.emissions), wantPerCollection)
	}
	if len(store.energy) != wantPerCollection {
		t.Errorf("got %d energy records, want %d", len(store.energy), wantPerCollection)
	}
	for key, rec := range store.emissions {
		if rec.DataSource != models.SourceSynthetic {
			t.Errorf("%s: DataSource = %q, want synthetic", key, rec.DataSource)
		}
	}

	if store.metadata == nil {
		t.Fatal("metadata not written after fallback")
	}
	if store.metadata.PrimarySource != "Synthetic Generator" {
		t.Errorf("PrimarySource = %q, want Synthetic Generator", store.metadata.PrimarySource)
	}
}

func TestRunFailsWhenNothingUsable(t *testing.T) {
	store := newMockStore()
	// Adapters respond but produce no usable rows; fallback still seeds.
	emissions := &mockEmissionSource{rows: source.YearRows{}}
	wb := &mockIndicatorSource{}

	svc := testService(store, emissions, wb)
	err := svc.Run(context.Background())

	if !errors.Is(err, ErrRunFailed) {
		t.Fatalf("Run() error = %v, want ErrRunFailed", err)
	}
	if len(store.emissions) == 0 {
		t.Error("expected synthetic fallback records")
	}
}

func TestRunContinuesPastIndicatorFailures(t *testing.T) {
	store := newMockStore()
	emissions := &mockEmissionSource{rows: liveRows()}
	wb := &mockIndicatorSource{err: errors.New("boom")}

	svc := testService(store, emissions, wb)
	if err := svc.Run(context.Background()); err != nil {
		t.Fatalf("Run() error = %v, want nil (indicator failures are per-call)", err)
	}

	if len(store.emissions) != 3 {
		t.Errorf("got %d emission records, want 3", len(store.emissions))
	}
	if len(store.energy) != 0 {
		t.Errorf("got %d energy records, want 0", len(store.energy))
	}
}

func TestRefreshEmissionsFromWorldBank(t *testing.T) {
	store := newMockStore()
	wb := &mockIndicatorSource{observations: map[int][]source.Observation{
		2022: {
			{CountryISO3: "USA", Year: 2022, Value: floatPtr(14.2)},
			{CountryISO3: "DEU", Year: 2022, Value: floatPtr(7.9)},
		},
	}}

	svc := testService(store, &mockEmissionSource{}, wb)
	written, err := svc.RefreshEmissionsFromWorldBank(context.Background(), []int{2022})
	if err != nil {
		t.Fatalf("RefreshEmissionsFromWorldBank() error = %v", err)
	}

	if written != 2 {
		t.Errorf("written = %d, want 2", written)
	}
	// Four indicators fetched for the single year.
	if wb.calls != 4 {
		t.Errorf("indicator calls = %d, want 4", wb.calls)
	}

	usa := store.emissions[recordKey("United States", 2022)]
	if usa == nil {
		t.Fatal("missing United States/2022 record")
	}
	if usa.DataSource != models.SourceWorldBank {
		t.Errorf("DataSource = %q, want %q", usa.DataSource, models.SourceWorldBank)
	}
}
