// GreenPulse - Sustainability Metrics Ingestion and Dashboard Backend
// Copyright 2026 accidentalscientist
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/accidentalscientist/greenpulse

package ingest

import "sort"

// Static domain tables: the target country list, its ISO3 codes for the
// World Bank API, curated emission/renewable baselines for the synthetic
// generator, and per-country total-energy estimates for the reconciler.
//
// The tables are constants by design. They seed plausible placeholder data
// and fill the one field (total energy consumption in TWh) neither provider
// exposes; they are not meant to track reality closely.

// countryISO3 maps canonical country names to ISO3 codes. The key set is
// the full target country list: a row from any source is accepted only if
// its country resolves here.
var countryISO3 = map[string]string{
	"United States":  "USA",
	"China":          "CHN",
	"India":          "IND",
	"Russia":         "RUS",
	"Japan":          "JPN",
	"Germany":        "DEU",
	"Iran":           "IRN",
	"South Korea":    "KOR",
	"Saudi Arabia":   "SAU",
	"Indonesia":      "IDN",
	"Canada":         "CAN",
	"Mexico":         "MEX",
	"Brazil":         "BRA",
	"Australia":      "AUS",
	"United Kingdom": "GBR",
	"Italy":          "ITA",
	"France":         "FRA",
	"Turkey":         "TUR",
	"Poland":         "POL",
	"Thailand":       "THA",
	"Egypt":          "EGY",
	"Argentina":      "ARG",
	"Malaysia":       "MYS",
	"Netherlands":    "NLD",
	"Spain":          "ESP",
	"Pakistan":       "PAK",
	"Bangladesh":     "BGD",
	"Vietnam":        "VNM",
	"Nigeria":        "NGA",
	"Philippines":    "PHL",
	"South Africa":   "ZAF",
	"Iraq":           "IRQ",
	"Venezuela":      "VEN",
	"Kazakhstan":     "KAZ",
	"Algeria":        "DZA",
	"Chile":          "CHL",
	"Morocco":        "MAR",
	"Peru":           "PER",
	"Israel":         "ISR",
	"Norway":         "NOR",
	"Finland":        "FIN",
	"Denmark":        "DNK",
	"Sweden":         "SWE",
	"Switzerland":    "CHE",
	"Austria":        "AUT",
	"Belgium":        "BEL",
	"Portugal":       "PRT",
	"Czech Republic": "CZE",
	"Greece":         "GRC",
	"Ukraine":        "UKR",
}

// iso3ToName is the inverse of countryISO3, built once at init.
var iso3ToName = func() map[string]string {
	m := make(map[string]string, len(countryISO3))
	for name, code := range countryISO3 {
		m[code] = name
	}
	return m
}()

// TargetCountries returns the canonical country name list in a stable order.
func TargetCountries() []string {
	names := make([]string, 0, len(countryISO3))
	for name := range countryISO3 {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// TargetCountrySet returns the country names as a membership set for the
// bulk adapter's row filter.
func TargetCountrySet() map[string]bool {
	set := make(map[string]bool, len(countryISO3))
	for name := range countryISO3 {
		set[name] = true
	}
	return set
}

// TargetISO3Codes returns the ISO3 codes in a stable order for the World
// Bank batch parameter.
func TargetISO3Codes() []string {
	codes := make([]string, 0, len(countryISO3))
	for _, code := range countryISO3 {
		codes = append(codes, code)
	}
	sort.Strings(codes)
	return codes
}

// CountryNameForISO3 resolves an ISO3 code to the canonical country name.
// Unknown codes return ok=false; callers drop those rows.
func CountryNameForISO3(code string) (string, bool) {
	name, ok := iso3ToName[code]
	return name, ok
}

// baseEmissions holds curated annual CO2 baselines in Mt for the major
// emitters. Countries absent here get a random baseline per generator run.
var baseEmissions = map[string]float64{
	"China":          10065,
	"United States":  5416,
	"India":          2654,
	"Russia":         1711,
	"Japan":          1162,
	"Germany":        759,
	"Iran":           720,
	"South Korea":    616,
	"Indonesia":      615,
	"Saudi Arabia":   517,
	"Canada":         572,
	"Mexico":         475,
	"Brazil":         462,
	"Australia":      415,
	"Turkey":         353,
	"United Kingdom": 351,
	"Poland":         340,
	"France":         331,
	"Italy":          330,
}

// baseRenewable holds curated renewable-share baselines (percent).
var baseRenewable = map[string]float64{
	"Norway":         98.5,
	"Sweden":         74.2,
	"Finland":        72.9,
	"Denmark":        65.3,
	"Austria":        62.8,
	"Switzerland":    62.5,
	"Canada":         59.3,
	"Brazil":         45.2,
	"Germany":        41.1,
	"Spain":          37.5,
	"United Kingdom": 33.1,
	"Italy":          31.8,
	"China":          28.8,
	"India":          25.2,
	"France":         23.4,
	"Australia":      21.2,
	"Japan":          20.4,
	"United States":  19.8,
	"Russia":         19.1,
}

// energyEstimates approximates total energy consumption in TWh per country,
// keyed by ISO3. Neither provider exposes this figure, so the reconciler
// derives the energy split from these estimates.
var energyEstimates = map[string]float64{
	"USA": 4000, "CHN": 7500, "IND": 1200, "RUS": 1100, "JPN": 1000,
	"DEU": 600, "BRA": 600, "CAN": 650, "KOR": 550, "GBR": 350,
	"ITA": 320, "FRA": 480, "AUS": 260, "ESP": 280, "MEX": 300,
	"IDN": 250, "TUR": 280, "SAU": 350, "IRN": 280, "THA": 200,
	"ZAF": 230, "POL": 170, "ARG": 130, "EGY": 180, "NLD": 120,
	"MYS": 180, "PAK": 120, "VNM": 220, "BGD": 80, "NGA": 30,
	"PHL": 100, "IRQ": 90, "VEN": 80, "KAZ": 100, "DZA": 70,
	"CHL": 80, "MAR": 40, "PER": 55, "ISR": 65, "NOR": 140,
	"FIN": 85, "DNK": 35, "SWE": 140, "CHE": 60, "AUT": 75,
	"BEL": 85, "PRT": 50, "CZE": 75, "GRC": 50, "UKR": 120,
}

// defaultEnergyEstimate is used for countries without a curated estimate.
const defaultEnergyEstimate = 50.0

// EstimateTotalEnergy returns the estimated total energy consumption in TWh
// for an ISO3 code.
func EstimateTotalEnergy(iso3 string) float64 {
	if v, ok := energyEstimates[iso3]; ok {
		return v
	}
	return defaultEnergyEstimate
}
