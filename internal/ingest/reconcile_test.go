// GreenPulse - Sustainability Metrics Ingestion and Dashboard Backend
// Copyright 2026 accidentalscientist
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/accidentalscientist/greenpulse

package ingest

import (
	"errors"
	"math"
	"testing"

	"github.com/accidentalscientist/greenpulse/internal/models"
	"github.com/accidentalscientist/greenpulse/internal/source"
)

func floatPtr(v float64) *float64 { return &v }
func intPtr(v int64) *int64       { return &v }

func TestReconcileEmission(t *testing.T) {
	tests := []struct {
		name             string
		row              source.EmissionRow
		wantCO2          float64
		wantPerCapita    float64
		wantPopulation   int64
		wantGDPPerCapita float64
		wantErr          bool
	}{
		{
			name: "total present per capita derived",
			row: source.EmissionRow{
				Country:    "United States",
				Year:       2022,
				CO2Total:   floatPtr(5000),
				Population: intPtr(330_000_000),
			},
			wantCO2:        5000,
			wantPerCapita:  15.15, // 5000 Mt * 1e6 / 330M people
			wantPopulation: 330_000_000,
		},
		{
			name: "per capita present total derived",
			row: source.EmissionRow{
				Country:      "Germany",
				Year:         2022,
				CO2PerCapita: floatPtr(8.5),
				Population:   intPtr(83_000_000),
			},
			wantCO2:        705.5, // 8.5 t/person * 83M people / 1e6
			wantPerCapita:  8.5,
			wantPopulation: 83_000_000,
		},
		{
			name: "both present source figures win",
			row: source.EmissionRow{
				Country:      "France",
				Year:         2021,
				CO2Total:     floatPtr(300),
				CO2PerCapita: floatPtr(4.4),
				Population:   intPtr(68_000_000),
			},
			wantCO2:        300,
			wantPerCapita:  4.4,
			wantPopulation: 68_000_000,
		},
		{
			name: "total without population leaves per capita zero",
			row: source.EmissionRow{
				Country:  "India",
				Year:     2020,
				CO2Total: floatPtr(2400),
			},
			wantCO2:       2400,
			wantPerCapita: 0,
		},
		{
			name: "gdp per capita derived from total gdp",
			row: source.EmissionRow{
				Country:    "Japan",
				Year:       2022,
				CO2Total:   floatPtr(1050),
				Population: intPtr(125_000_000),
				GDP:        floatPtr(4.2e12),
			},
			wantCO2:          1050,
			wantPerCapita:    8.4,
			wantPopulation:   125_000_000,
			wantGDPPerCapita: 33600,
		},
		{
			name: "no emission fields rejected",
			row: source.EmissionRow{
				Country:    "Spain",
				Year:       2022,
				Population: intPtr(47_000_000),
				GDP:        floatPtr(1.4e12),
			},
			wantErr: true,
		},
		{
			name: "per capita without population rejected",
			row: source.EmissionRow{
				Country:      "Italy",
				Year:         2022,
				CO2PerCapita: floatPtr(5.3),
			},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec, err := ReconcileEmission(tt.row)
			if tt.wantErr {
				if err == nil {
					t.Fatal("expected error, got nil")
				}
				if !errors.Is(err, ErrRowRejected) {
					t.Errorf("error = %v, want ErrRowRejected", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("ReconcileEmission() error = %v", err)
			}
			if rec.CO2Emissions != tt.wantCO2 {
				t.Errorf("CO2Emissions = %v, want %v", rec.CO2Emissions, tt.wantCO2)
			}
			if rec.CO2PerCapita != tt.wantPerCapita {
				t.Errorf("CO2PerCapita = %v, want %v", rec.CO2PerCapita, tt.wantPerCapita)
			}
			if rec.Population != tt.wantPopulation {
				t.Errorf("Population = %d, want %d", rec.Population, tt.wantPopulation)
			}
			if rec.GDPPerCapita != tt.wantGDPPerCapita {
				t.Errorf("GDPPerCapita = %v, want %v", rec.GDPPerCapita, tt.wantGDPPerCapita)
			}
			if rec.DataSource != models.SourceOWID {
				t.Errorf("DataSource = %q, want %q", rec.DataSource, models.SourceOWID)
			}
		})
	}
}

func TestReconcileWBEmission(t *testing.T) {
	tests := []struct {
		name          string
		in            wbCountryYear
		wantCO2       float64
		wantPerCapita float64
		wantErr       bool
	}{
		{
			name: "kilotons converted to megatons",
			in: wbCountryYear{
				country:    "China",
				year:       2022,
				co2TotalKt: floatPtr(11_500_000),
				population: floatPtr(1.41e9),
			},
			wantCO2:       11500,
			wantPerCapita: 8.16,
		},
		{
			name: "per capita fallback",
			in: wbCountryYear{
				country:      "Norway",
				year:         2022,
				co2PerCapita: floatPtr(7.5),
				population:   floatPtr(5.4e6),
			},
			wantCO2:       40.5,
			wantPerCapita: 7.5,
		},
		{
			name:    "no figures rejected",
			in:      wbCountryYear{country: "Chile", year: 2022},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec, err := reconcileWBEmission(tt.in)
			if tt.wantErr {
				if !errors.Is(err, ErrRowRejected) {
					t.Fatalf("error = %v, want ErrRowRejected", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("reconcileWBEmission() error = %v", err)
			}
			if rec.CO2Emissions != tt.wantCO2 {
				t.Errorf("CO2Emissions = %v, want %v", rec.CO2Emissions, tt.wantCO2)
			}
			if rec.CO2PerCapita != tt.wantPerCapita {
				t.Errorf("CO2PerCapita = %v, want %v", rec.CO2PerCapita, tt.wantPerCapita)
			}
			if rec.DataSource != models.SourceWorldBank {
				t.Errorf("DataSource = %q, want %q", rec.DataSource, models.SourceWorldBank)
			}
		})
	}
}

func TestReconcileEnergy(t *testing.T) {
	rec := ReconcileEnergy("Norway", "NOR", 2023, 71.6, models.SourceWorldBank)

	if rec.RenewablePercentage != 71.6 {
		t.Errorf("RenewablePercentage = %v, want 71.6", rec.RenewablePercentage)
	}
	if rec.TotalEnergyConsumption <= 0 {
		t.Errorf("TotalEnergyConsumption = %v, want > 0", rec.TotalEnergyConsumption)
	}

	// The split must be internally consistent.
	sum := rec.RenewableEnergy + rec.FossilFuelEnergy
	if math.Abs(sum-rec.TotalEnergyConsumption) > 0.02 {
		t.Errorf("renewable %v + fossil %v = %v, want total %v",
			rec.RenewableEnergy, rec.FossilFuelEnergy, sum, rec.TotalEnergyConsumption)
	}
	wantRenewable := round2(rec.TotalEnergyConsumption * 71.6 / 100)
	if math.Abs(rec.RenewableEnergy-wantRenewable) > 0.01 {
		t.Errorf("RenewableEnergy = %v, want %v", rec.RenewableEnergy, wantRenewable)
	}
	if rec.DataSource != models.SourceWorldBank {
		t.Errorf("DataSource = %q, want %q", rec.DataSource, models.SourceWorldBank)
	}
}

func TestReconcileEnergyClampsShare(t *testing.T) {
	tests := []struct {
		name  string
		share float64
		want  float64
	}{
		{"above range", 112.5, 100},
		{"below range", -3.0, 0},
		{"in range", 42.0, 42.0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := ReconcileEnergy("Brazil", "BRA", 2022, tt.share, models.SourceWorldBank)
			if rec.RenewablePercentage != tt.want {
				t.Errorf("RenewablePercentage = %v, want %v", rec.RenewablePercentage, tt.want)
			}
			if rec.FossilFuelEnergy < 0 {
				t.Errorf("FossilFuelEnergy = %v, want >= 0", rec.FossilFuelEnergy)
			}
		})
	}
}

func TestEstimateTotalEnergy(t *testing.T) {
	if got := EstimateTotalEnergy("USA"); got != 4000 {
		t.Errorf("EstimateTotalEnergy(USA) = %v, want 4000", got)
	}
	if got := EstimateTotalEnergy("XYZ"); got != defaultEnergyEstimate {
		t.Errorf("EstimateTotalEnergy(XYZ) = %v, want %v", got, defaultEnergyEstimate)
	}
}
