// GreenPulse - Sustainability Metrics Ingestion and Dashboard Backend
// Copyright 2026 accidentalscientist
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/accidentalscientist/greenpulse

package api

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/accidentalscientist/greenpulse/internal/models"
)

// Version is the reported API version.
const Version = "1.0.0"

// Query parameter bounds for chart endpoints.
const (
	defaultTimeseriesLimit = 10
	maxTimeseriesLimit     = 50
	defaultRenewableLimit  = 10
	maxRenewableLimit      = 50
	defaultComparisonLimit = 10
	maxComparisonLimit     = 50
	defaultStartYear       = 2010
	defaultEndYear         = 2023
	defaultCompareYear1    = 2020
	defaultCompareYear2    = 2023
)

// DashboardStore is the read surface the handlers query.
type DashboardStore interface {
	Ping(ctx context.Context) error
	DashboardStats(ctx context.Context) (*models.DashboardStats, error)
	CO2Timeseries(ctx context.Context, countries []string, startYear, endYear, limit int) ([]models.CountrySeries, error)
	TopRenewableCountries(ctx context.Context, year, limit int) ([]models.CountryRenewable, error)
	EmissionsComparison(ctx context.Context, year1, year2, limit int) ([]models.CountryEmissionsChange, error)
	EmissionsByCountry(ctx context.Context, country string) ([]*models.EmissionRecord, error)
	EnergyByCountry(ctx context.Context, country string) ([]*models.EnergyRecord, error)
	ListCountries(ctx context.Context) ([]string, error)
	ListYears(ctx context.Context) ([]int, error)
	CountEmissions(ctx context.Context) (int64, error)
	CountEnergy(ctx context.Context) (int64, error)
	GetMetadata(ctx context.Context) (*models.IngestionMetadata, error)
}

// SchedulerStatusProvider exposes the ingestion scheduler state.
type SchedulerStatusProvider interface {
	Status() models.SchedulerStatus
}

// IngestTrigger starts a manual ingestion run through the scheduler's
// overlap guard. TriggerNow reports false when a run is already in flight.
type IngestTrigger interface {
	TriggerNow() bool
}

// Handler holds dependencies for all HTTP handlers.
type Handler struct {
	store     DashboardStore
	scheduler SchedulerStatusProvider
	trigger   IngestTrigger
	startTime time.Time
}

// NewHandler creates a handler set. scheduler and trigger may be nil when
// the API runs without an ingestion pipeline (read-only deployments).
func NewHandler(store DashboardStore, scheduler SchedulerStatusProvider, trigger IngestTrigger) *Handler {
	return &Handler{
		store:     store,
		scheduler: scheduler,
		trigger:   trigger,
		startTime: time.Now(),
	}
}

// Health reports overall service health: database connectivity, scheduler
// state, stored record volume, and uptime.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	dbConnected := h.store != nil && h.store.Ping(r.Context()) == nil

	schedulerRunning := false
	if h.scheduler != nil {
		schedulerRunning = h.scheduler.Status().Running
	}

	// Record counts are informational; a count failure degrades the figure,
	// not the health status.
	var totalRecords int64
	if dbConnected {
		if n, err := h.store.CountEmissions(r.Context()); err == nil {
			totalRecords += n
		}
		if n, err := h.store.CountEnergy(r.Context()); err == nil {
			totalRecords += n
		}
	}

	status := "healthy"
	if !dbConnected {
		status = "degraded"
	}

	respondJSON(w, http.StatusOK, &models.APIResponse{
		Status: "success",
		Data: models.HealthStatus{
			Status:            status,
			Version:           Version,
			DatabaseConnected: dbConnected,
			SchedulerRunning:  schedulerRunning,
			TotalRecords:      totalRecords,
			Uptime:            time.Since(h.startTime).Seconds(),
		},
		Metadata: models.Metadata{Timestamp: time.Now()},
	})
}

// DashboardStats serves the aggregate dashboard summary.
func (h *Handler) DashboardStats(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	stats, err := h.store.DashboardStats(r.Context())
	if err != nil {
		respondError(w, http.StatusInternalServerError, "DATABASE_ERROR", "Failed to compute dashboard stats", err)
		return
	}

	respondJSON(w, http.StatusOK, &models.APIResponse{
		Status: "success",
		Data:   stats,
		Metadata: models.Metadata{
			Timestamp:   time.Now(),
			QueryTimeMS: time.Since(start).Milliseconds(),
		},
	})
}

// CO2Timeseries serves per-country emission series for the line chart.
//
// Query parameters:
//   - countries: comma-separated country names (default: top emitters)
//   - start_year, end_year: year range (defaults 2010-2023)
//   - limit: max series when countries is unset (default 10, max 50)
func (h *Handler) CO2Timeseries(w http.ResponseWriter, r *http.Request) {
	startYear := getIntParam(r, "start_year", defaultStartYear)
	endYear := getIntParam(r, "end_year", defaultEndYear)
	if startYear > endYear {
		respondError(w, http.StatusBadRequest, "VALIDATION_ERROR", "start_year must not exceed end_year", nil)
		return
	}
	limit := clampInt(getIntParam(r, "limit", defaultTimeseriesLimit), 1, maxTimeseriesLimit)

	var countries []string
	if raw := r.URL.Query().Get("countries"); raw != "" {
		for _, c := range strings.Split(raw, ",") {
			if c = strings.TrimSpace(c); c != "" {
				countries = append(countries, c)
			}
		}
	}

	start := time.Now()
	series, err := h.store.CO2Timeseries(r.Context(), countries, startYear, endYear, limit)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "DATABASE_ERROR", "Failed to query emission timeseries", err)
		return
	}

	respondJSON(w, http.StatusOK, &models.APIResponse{
		Status: "success",
		Data:   series,
		Metadata: models.Metadata{
			Timestamp:   time.Now(),
			QueryTimeMS: time.Since(start).Milliseconds(),
		},
	})
}

// RenewableEnergy serves the top renewable-share countries for a year.
//
// Query parameters:
//   - year: target year (default: latest configured end year)
//   - limit: number of countries (default 10, max 50)
func (h *Handler) RenewableEnergy(w http.ResponseWriter, r *http.Request) {
	year := getIntParam(r, "year", defaultEndYear)
	limit := clampInt(getIntParam(r, "limit", defaultRenewableLimit), 1, maxRenewableLimit)

	start := time.Now()
	recs, err := h.store.TopRenewableCountries(r.Context(), year, limit)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "DATABASE_ERROR", "Failed to query renewable energy", err)
		return
	}

	respondJSON(w, http.StatusOK, &models.APIResponse{
		Status: "success",
		Data:   recs,
		Metadata: models.Metadata{
			Timestamp:   time.Now(),
			QueryTimeMS: time.Since(start).Milliseconds(),
		},
	})
}

// EmissionsComparison serves the year-over-year emissions change per country.
// Only countries with data for both years appear in the result.
//
// Query parameters:
//   - year1, year2: the two years to compare (defaults 2020 and 2023)
//   - limit: number of countries, ranked by year2 emissions (default 10, max 50)
func (h *Handler) EmissionsComparison(w http.ResponseWriter, r *http.Request) {
	year1 := getIntParam(r, "year1", defaultCompareYear1)
	year2 := getIntParam(r, "year2", defaultCompareYear2)
	if year1 == year2 {
		respondError(w, http.StatusBadRequest, "VALIDATION_ERROR", "comparison years must differ", nil)
		return
	}
	limit := clampInt(getIntParam(r, "limit", defaultComparisonLimit), 1, maxComparisonLimit)

	start := time.Now()
	comparison, err := h.store.EmissionsComparison(r.Context(), year1, year2, limit)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "DATABASE_ERROR", "Failed to query emissions comparison", err)
		return
	}

	respondJSON(w, http.StatusOK, &models.APIResponse{
		Status: "success",
		Data: map[string]interface{}{
			"years":      []int{year1, year2},
			"comparison": comparison,
		},
		Metadata: models.Metadata{
			Timestamp:   time.Now(),
			QueryTimeMS: time.Since(start).Milliseconds(),
		},
	})
}

// Countries lists the distinct countries with emission data.
func (h *Handler) Countries(w http.ResponseWriter, r *http.Request) {
	countries, err := h.store.ListCountries(r.Context())
	if err != nil {
		respondError(w, http.StatusInternalServerError, "DATABASE_ERROR", "Failed to list countries", err)
		return
	}

	respondJSON(w, http.StatusOK, &models.APIResponse{
		Status:   "success",
		Data:     countries,
		Metadata: models.Metadata{Timestamp: time.Now()},
	})
}

// Years lists the distinct years with emission data.
func (h *Handler) Years(w http.ResponseWriter, r *http.Request) {
	years, err := h.store.ListYears(r.Context())
	if err != nil {
		respondError(w, http.StatusInternalServerError, "DATABASE_ERROR", "Failed to list years", err)
		return
	}

	respondJSON(w, http.StatusOK, &models.APIResponse{
		Status:   "success",
		Data:     years,
		Metadata: models.Metadata{Timestamp: time.Now()},
	})
}

// CountryEmissions serves a single country's emission records by year.
func (h *Handler) CountryEmissions(w http.ResponseWriter, r *http.Request) {
	country := chi.URLParam(r, "country")
	if country == "" {
		respondError(w, http.StatusBadRequest, "VALIDATION_ERROR", "country is required", nil)
		return
	}

	recs, err := h.store.EmissionsByCountry(r.Context(), country)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "DATABASE_ERROR", "Failed to query emissions", err)
		return
	}
	if len(recs) == 0 {
		respondError(w, http.StatusNotFound, "NOT_FOUND", "No emission data for country", nil)
		return
	}

	respondJSON(w, http.StatusOK, &models.APIResponse{
		Status:   "success",
		Data:     recs,
		Metadata: models.Metadata{Timestamp: time.Now()},
	})
}

// CountryEnergy serves a single country's energy records by year.
func (h *Handler) CountryEnergy(w http.ResponseWriter, r *http.Request) {
	country := chi.URLParam(r, "country")
	if country == "" {
		respondError(w, http.StatusBadRequest, "VALIDATION_ERROR", "country is required", nil)
		return
	}

	recs, err := h.store.EnergyByCountry(r.Context(), country)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "DATABASE_ERROR", "Failed to query energy", err)
		return
	}
	if len(recs) == 0 {
		respondError(w, http.StatusNotFound, "NOT_FOUND", "No energy data for country", nil)
		return
	}

	respondJSON(w, http.StatusOK, &models.APIResponse{
		Status:   "success",
		Data:     recs,
		Metadata: models.Metadata{Timestamp: time.Now()},
	})
}

// IngestStatus reports the scheduler state and last-ingestion metadata.
func (h *Handler) IngestStatus(w http.ResponseWriter, r *http.Request) {
	var schedulerStatus *models.SchedulerStatus
	if h.scheduler != nil {
		s := h.scheduler.Status()
		schedulerStatus = &s
	}

	meta, err := h.store.GetMetadata(r.Context())
	if err != nil {
		respondError(w, http.StatusInternalServerError, "DATABASE_ERROR", "Failed to load ingestion metadata", err)
		return
	}

	respondJSON(w, http.StatusOK, &models.APIResponse{
		Status: "success",
		Data: map[string]interface{}{
			"scheduler": schedulerStatus,
			"metadata":  meta,
		},
		Metadata: models.Metadata{Timestamp: time.Now()},
	})
}

// TriggerIngest starts a manual ingestion run in the background. The run is
// asynchronous and goes through the scheduler's overlap guard, so its
// progress and result are visible on /ingest/status like a scheduled run.
func (h *Handler) TriggerIngest(w http.ResponseWriter, r *http.Request) {
	if h.trigger == nil {
		respondError(w, http.StatusServiceUnavailable, "NOT_AVAILABLE", "Ingestion is not configured", nil)
		return
	}

	if !h.trigger.TriggerNow() {
		respondError(w, http.StatusConflict, "INGEST_IN_PROGRESS", "An ingestion run is already in progress", nil)
		return
	}

	respondJSON(w, http.StatusAccepted, &models.APIResponse{
		Status:   "success",
		Data:     map[string]interface{}{"started": true},
		Metadata: models.Metadata{Timestamp: time.Now()},
	})
}
