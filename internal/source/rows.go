// GreenPulse - Sustainability Metrics Ingestion and Dashboard Backend
// Copyright 2026 accidentalscientist
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/accidentalscientist/greenpulse

// Package source contains the external data provider adapters: the OWID bulk
// CSV client for emissions and the World Bank per-indicator JSON client for
// renewables and demographics. Adapters return loosely-typed raw rows with
// explicit optional fields; all validation and derivation happens later in
// the reconciler.
package source

import "errors"

// ErrUnavailable marks a provider as unreachable at the transport level
// (DNS, connect, timeout). Callers distinguish it from a call that merely
// returned no data.
var ErrUnavailable = errors.New("source unavailable")

// EmissionRow is one accepted row from the OWID bulk CSV. Numeric fields are
// pointers: a nil value means the column was empty for that row.
type EmissionRow struct {
	Country      string
	Year         int
	CO2Total     *float64 // million tonnes
	CO2PerCapita *float64 // tonnes per person
	Population   *int64
	GDP          *float64 // total GDP, current US$
}

// YearRows groups accepted emission rows by year so callers can process the
// dataset year by year without re-fetching.
type YearRows map[int][]EmissionRow

// TotalRows counts rows across all years.
func (yr YearRows) TotalRows() int {
	n := 0
	for _, rows := range yr {
		n += len(rows)
	}
	return n
}

// Observation is one row from a World Bank indicator response. Value is nil
// when the API reports no figure for that country/year.
type Observation struct {
	CountryISO3 string
	CountryName string
	Year        int
	Value       *float64
}
