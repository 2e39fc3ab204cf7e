// GreenPulse - Sustainability Metrics Ingestion and Dashboard Backend
// Copyright 2026 accidentalscientist
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/accidentalscientist/greenpulse

package source

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/accidentalscientist/greenpulse/internal/config"
)

const testCSV = `iso_code,country,year,co2,co2_per_capita,population,gdp
USA,United States,2023,5000.5,15.1,330000000,25000000000000
USA,United States,2019,5100.2,15.6,328000000,24000000000000
DEU,Germany,2023,,8.5,83000000,
FRA,France,2023,277.3,,67000000,2900000000000
ESP,Spain,2023,,,47000000,1400000000000
ATA,Atlantis,2023,12.5,1.0,1000000,
`

func testOWIDClient(url string) *OWIDClient {
	c := NewOWIDClient(config.SourcesConfig{
		OWIDCSVURL:     url,
		RequestTimeout: 5 * time.Second,
	})
	c.retryBaseDelay = time.Millisecond
	return c
}

func TestFetchCO2ByYearFiltering(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/csv")
		_, _ = w.Write([]byte(testCSV))
	}))
	defer srv.Close()

	targets := map[string]bool{
		"United States": true,
		"Germany":       true,
		"France":        true,
		"Spain":         true,
	}

	rows, err := testOWIDClient(srv.URL).FetchCO2ByYear(context.Background(), []int{2023}, targets)
	if err != nil {
		t.Fatalf("FetchCO2ByYear() error = %v", err)
	}

	got := rows[2023]
	// Spain has no emission figure at all and must be dropped; Atlantis is
	// not a target country; the 2019 USA row is outside the year range.
	if len(got) != 3 {
		t.Fatalf("accepted %d rows for 2023, want 3: %+v", len(got), got)
	}
	if rows.TotalRows() != 3 {
		t.Errorf("TotalRows() = %d, want 3", rows.TotalRows())
	}

	byCountry := make(map[string]EmissionRow, len(got))
	for _, row := range got {
		byCountry[row.Country] = row
	}

	usa := byCountry["United States"]
	if usa.CO2Total == nil || *usa.CO2Total != 5000.5 {
		t.Errorf("USA CO2Total = %v, want 5000.5", usa.CO2Total)
	}
	if usa.Population == nil || *usa.Population != 330000000 {
		t.Errorf("USA Population = %v, want 330000000", usa.Population)
	}

	deu := byCountry["Germany"]
	if deu.CO2Total != nil {
		t.Errorf("Germany CO2Total = %v, want nil (empty column)", *deu.CO2Total)
	}
	if deu.CO2PerCapita == nil || *deu.CO2PerCapita != 8.5 {
		t.Errorf("Germany CO2PerCapita = %v, want 8.5", deu.CO2PerCapita)
	}
	if deu.GDP != nil {
		t.Errorf("Germany GDP = %v, want nil", *deu.GDP)
	}

	fra := byCountry["France"]
	if fra.CO2PerCapita != nil {
		t.Errorf("France CO2PerCapita = %v, want nil", *fra.CO2PerCapita)
	}
	if fra.CO2Total == nil || *fra.CO2Total != 277.3 {
		t.Errorf("France CO2Total = %v, want 277.3", fra.CO2Total)
	}
}

func TestFetchCO2ByYearNon200IsEmpty(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "internal error", http.StatusInternalServerError)
	}))
	defer srv.Close()

	rows, err := testOWIDClient(srv.URL).FetchCO2ByYear(context.Background(), []int{2023}, map[string]bool{"Germany": true})
	if err != nil {
		t.Fatalf("non-200 must not be an error, got %v", err)
	}
	if rows.TotalRows() != 0 {
		t.Errorf("non-200 returned %d rows, want 0", rows.TotalRows())
	}
}

func TestFetchCO2ByYearTransportFailure(t *testing.T) {
	// Closed server: connection refused is a transport failure and must
	// surface as ErrUnavailable for run-level escalation.
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	srv.Close()

	_, err := testOWIDClient(srv.URL).FetchCO2ByYear(context.Background(), []int{2023}, map[string]bool{"Germany": true})
	if !errors.Is(err, ErrUnavailable) {
		t.Errorf("transport failure error = %v, want ErrUnavailable", err)
	}
}

func TestFetchCO2ByYearRetriesOn429(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) <= 2 {
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		_, _ = w.Write([]byte(testCSV))
	}))
	defer srv.Close()

	rows, err := testOWIDClient(srv.URL).FetchCO2ByYear(context.Background(), []int{2023}, map[string]bool{"France": true})
	if err != nil {
		t.Fatalf("FetchCO2ByYear() after 429s error = %v", err)
	}
	if got := calls.Load(); got != 3 {
		t.Errorf("server saw %d calls, want 3 (two 429s then success)", got)
	}
	if len(rows[2023]) != 1 {
		t.Errorf("accepted %d rows, want 1", len(rows[2023]))
	}
}

func TestFetchCO2ByYearContextCancel(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer srv.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := testOWIDClient(srv.URL).FetchCO2ByYear(ctx, []int{2023}, map[string]bool{})
	if err == nil {
		t.Error("cancelled context must return an error")
	}
}
