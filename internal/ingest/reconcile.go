// GreenPulse - Sustainability Metrics Ingestion and Dashboard Backend
// Copyright 2026 accidentalscientist
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/accidentalscientist/greenpulse

package ingest

import (
	"errors"
	"fmt"
	"math"

	"github.com/accidentalscientist/greenpulse/internal/models"
	"github.com/accidentalscientist/greenpulse/internal/source"
)

// ErrRowRejected marks a source row that lacks the minimum fields to form a
// usable record. Rejected rows are dropped and logged, never propagated as
// run failures.
var ErrRowRejected = errors.New("row rejected")

// ReconcileEmission derives a canonical emission record from an OWID bulk
// row. Field rules, in priority order:
//
//	co2_emissions:  source total if present, else co2_per_capita * population / 1e6,
//	                else the row is rejected.
//	co2_per_capita: source figure if present, else co2_emissions * 1e6 / population,
//	                else 0 (consumers treat 0 as "unknown" for ranking).
//	gdp_per_capita: total GDP / population when both present, else 0.
func ReconcileEmission(row source.EmissionRow) (*models.EmissionRecord, error) {
	var co2Total float64
	switch {
	case row.CO2Total != nil:
		co2Total = *row.CO2Total
	case row.CO2PerCapita != nil && row.Population != nil && *row.Population > 0:
		co2Total = *row.CO2PerCapita * float64(*row.Population) / 1e6
	default:
		return nil, fmt.Errorf("%w: %s/%d has no emission figure", ErrRowRejected, row.Country, row.Year)
	}

	var perCapita float64
	switch {
	case row.CO2PerCapita != nil:
		perCapita = *row.CO2PerCapita
	case row.Population != nil && *row.Population > 0:
		perCapita = co2Total * 1e6 / float64(*row.Population)
	}

	var population int64
	if row.Population != nil && *row.Population > 0 {
		population = *row.Population
	}

	var gdpPerCapita float64
	if row.GDP != nil && population > 0 {
		gdpPerCapita = *row.GDP / float64(population)
	}

	return &models.EmissionRecord{
		Country:      row.Country,
		Year:         row.Year,
		CO2Emissions: round2(co2Total),
		Population:   population,
		GDPPerCapita: round2(gdpPerCapita),
		CO2PerCapita: round2(perCapita),
		DataSource:   models.SourceOWID,
	}, nil
}

// wbCountryYear carries the joined World Bank indicator values for one
// country and year. Nil means the indicator had no figure.
type wbCountryYear struct {
	country      string
	year         int
	co2PerCapita *float64
	co2TotalKt   *float64
	population   *float64
	gdpPerCapita *float64
}

// reconcileWBEmission derives an emission record from joined World Bank
// indicators. The total arrives in kilotons and is converted to megatons.
func reconcileWBEmission(in wbCountryYear) (*models.EmissionRecord, error) {
	var co2Mt float64
	switch {
	case in.co2TotalKt != nil:
		co2Mt = *in.co2TotalKt / 1000
	case in.co2PerCapita != nil && in.population != nil && *in.population > 0:
		co2Mt = *in.co2PerCapita * *in.population / 1e6
	default:
		return nil, fmt.Errorf("%w: %s/%d has no emission figure", ErrRowRejected, in.country, in.year)
	}

	perCapita := 0.0
	switch {
	case in.co2PerCapita != nil:
		perCapita = *in.co2PerCapita
	case in.population != nil && *in.population > 0:
		perCapita = co2Mt * 1e6 / *in.population
	}

	var population int64
	if in.population != nil && *in.population > 0 {
		population = int64(*in.population)
	}

	var gdpPerCapita float64
	if in.gdpPerCapita != nil {
		gdpPerCapita = *in.gdpPerCapita
	}

	return &models.EmissionRecord{
		Country:      in.country,
		Year:         in.year,
		CO2Emissions: round2(co2Mt),
		Population:   population,
		GDPPerCapita: round2(gdpPerCapita),
		CO2PerCapita: round2(perCapita),
		DataSource:   models.SourceWorldBank,
	}, nil
}

// ReconcileEnergy derives an energy record from a renewable-share figure.
// Total energy consumption comes from the static per-country estimate table;
// the renewable/fossil split is always derived, never sourced. The raw share
// is clamped to [0, 100] regardless of what the provider reports.
func ReconcileEnergy(country, iso3 string, year int, renewableShare float64, provenance models.DataSource) *models.EnergyRecord {
	share := clamp(renewableShare, 0, 100)
	total := EstimateTotalEnergy(iso3)
	renewable := total * share / 100
	fossil := total - renewable

	return &models.EnergyRecord{
		Country:                country,
		Year:                   year,
		RenewablePercentage:    round2(share),
		TotalEnergyConsumption: round2(total),
		RenewableEnergy:        round2(renewable),
		FossilFuelEnergy:       round2(fossil),
		DataSource:             provenance,
	}
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
