// GreenPulse - Sustainability Metrics Ingestion and Dashboard Backend
// Copyright 2026 accidentalscientist
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/accidentalscientist/greenpulse

// Package models defines data structures used throughout the GreenPulse application.
// These models represent the canonical sustainability records persisted by the
// ingestion pipeline and the metadata describing each reconciliation run.
package models

import "time"

// DataSource identifies the origin of a persisted record.
//
// Provenance is an all-or-nothing tag per record: a record whose base figures
// came from procedural generation is tagged synthetic even when some
// unrelated fields could have been sourced elsewhere.
type DataSource string

const (
	// SourceSynthetic marks procedurally generated placeholder data.
	SourceSynthetic DataSource = "synthetic"
	// SourceOWID marks data derived from the Our World in Data bulk CSV.
	SourceOWID DataSource = "owid"
	// SourceWorldBank marks data derived from the World Bank indicator API.
	SourceWorldBank DataSource = "world_bank"
)

// EmissionRecord is the canonical CO2 emissions record for one (country, year).
//
// The (country, year) pair is the natural key: the store holds at most one
// emission record per pair, and every successful upsert replaces the full
// field set.
//
// Invariant: CO2PerCapita is either taken directly from a source or derived
// as co2_emissions * 1e6 / population. It is set to 0 only when both the
// source figure and the population needed to derive it are missing; dashboard
// consumers treat 0 as "unknown" for ranking purposes.
type EmissionRecord struct {
	Country      string     `bson:"country" json:"country"`
	Year         int        `bson:"year" json:"year"`
	CO2Emissions float64    `bson:"co2_emissions" json:"co2_emissions"` // Metric megatons (Mt)
	Population   int64      `bson:"population" json:"population"`
	GDPPerCapita float64    `bson:"gdp_per_capita" json:"gdp_per_capita"` // Current US$
	CO2PerCapita float64    `bson:"co2_per_capita" json:"co2_per_capita"` // Tonnes per person
	DataSource   DataSource `bson:"data_source" json:"data_source"`
	CreatedAt    time.Time  `bson:"created_at" json:"created_at"`
	UpdatedAt    time.Time  `bson:"updated_at" json:"updated_at"`
}

// EnergyRecord is the canonical energy-mix record for one (country, year).
//
// Invariants (within rounding tolerance):
//   - RenewableEnergy + FossilFuelEnergy == TotalEnergyConsumption
//   - RenewableEnergy == TotalEnergyConsumption * RenewablePercentage / 100
//   - RenewablePercentage stays within [0, 100] even when a source supplies
//     an out-of-range raw value
type EnergyRecord struct {
	Country                string     `bson:"country" json:"country"`
	Year                   int        `bson:"year" json:"year"`
	RenewablePercentage    float64    `bson:"renewable_percentage" json:"renewable_percentage"`
	TotalEnergyConsumption float64    `bson:"total_energy_consumption" json:"total_energy_consumption"` // TWh
	RenewableEnergy        float64    `bson:"renewable_energy" json:"renewable_energy"`                 // TWh
	FossilFuelEnergy       float64    `bson:"fossil_fuel_energy" json:"fossil_fuel_energy"`             // TWh
	DataSource             DataSource `bson:"data_source" json:"data_source"`
	CreatedAt              time.Time  `bson:"created_at" json:"created_at"`
	UpdatedAt              time.Time  `bson:"updated_at" json:"updated_at"`
}

// MetadataTypeKey is the fixed key under which the singleton ingestion
// metadata record is upserted.
const MetadataTypeKey = "data_source"

// IngestionMetadata describes the most recent successful full reconciliation.
// A single record (Type == MetadataTypeKey) exists per deployment; the
// orchestrator's staleness check treats it as authoritative.
type IngestionMetadata struct {
	Type           string    `bson:"type" json:"type"`
	PrimarySource  string    `bson:"primary_source" json:"primary_source"`
	CO2Source      string    `bson:"co2_source" json:"co2_source"`
	EnergySource   string    `bson:"energy_source" json:"energy_source"`
	CoverageYears  string    `bson:"coverage_years" json:"coverage_years"` // "2010-2023"
	CountriesCount int       `bson:"countries_count" json:"countries_count"`
	LastUpdated    time.Time `bson:"last_updated" json:"last_updated"`
}

// SchedulerStatus reports the state of the recurring ingestion scheduler.
type SchedulerStatus struct {
	Running   bool       `json:"running"`
	InFlight  bool       `json:"in_flight"`
	NextRun   *time.Time `json:"next_run,omitempty"`
	LastRun   *time.Time `json:"last_run,omitempty"`
	LastError string     `json:"last_error,omitempty"`
}

// DashboardStats is the aggregate summary served to dashboard consumers.
// All aggregates are computed over the latest year present in the store.
type DashboardStats struct {
	TotalCountries         int                `json:"total_countries"`
	LatestYear             int                `json:"latest_year"`
	TotalCO2Emissions      float64            `json:"total_co2_emissions"`
	AvgRenewablePercentage float64            `json:"avg_renewable_percentage"`
	TopPerformers          []CountryPerCapita `json:"top_performers"`
	WorstPerformers        []CountryPerCapita `json:"worst_performers"`
	LastUpdated            time.Time          `json:"last_updated"`
}

// CountryPerCapita is a single entry in the per-capita performer rankings.
// Top performers have the lowest per-capita emissions.
type CountryPerCapita struct {
	Country      string  `bson:"country" json:"country"`
	CO2PerCapita float64 `bson:"co2_per_capita" json:"co2_per_capita"`
}

// CountryRenewable is a single bar in the renewable-energy-by-country chart.
type CountryRenewable struct {
	Country             string  `bson:"country" json:"country"`
	RenewablePercentage float64 `bson:"renewable_percentage" json:"renewable_percentage"`
}

// CountryEmissionsChange is one row of the year-over-year emissions
// comparison: a country's emissions in two years and the change between them.
type CountryEmissionsChange struct {
	Country       string  `bson:"country" json:"country"`
	Year1Value    float64 `bson:"year1_value" json:"year1_value"`
	Year2Value    float64 `bson:"year2_value" json:"year2_value"`
	Change        float64 `bson:"change" json:"change"`
	PercentChange float64 `bson:"percent_change" json:"percent_change"`
}

// TimeseriesPoint is one (year, value) observation in a country series.
type TimeseriesPoint struct {
	Year  int     `bson:"year" json:"year"`
	Value float64 `bson:"value" json:"value"`
}

// CountrySeries is a named line in the emissions timeseries chart.
type CountrySeries struct {
	Country string            `json:"country"`
	Points  []TimeseriesPoint `json:"points"`
}
