// GreenPulse - Sustainability Metrics Ingestion and Dashboard Backend
// Copyright 2026 accidentalscientist
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/accidentalscientist/greenpulse

// Package api provides the HTTP surface for the dashboard: aggregate stats,
// chart queries, ingestion status, and operational endpoints. Routing uses
// chi with go-chi/cors for the browser frontend.
package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/go-chi/httprate"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/accidentalscientist/greenpulse/internal/config"
)

// requestsPerMinute caps per-IP request rates on the data endpoints.
// Dashboard polling sits far below this; the cap exists to stop runaway
// clients from hammering aggregation queries.
const requestsPerMinute = 300

// Router assembles the HTTP handler tree.
type Router struct {
	handler *Handler
	cfg     config.ServerConfig
}

// NewRouter creates a router around the given handler set.
func NewRouter(handler *Handler, cfg config.ServerConfig) *Router {
	return &Router{handler: handler, cfg: cfg}
}

// Setup configures all HTTP routes and returns the root handler.
func (router *Router) Setup() http.Handler {
	r := chi.NewRouter()

	// Global middleware, applied to all routes in order.
	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(chimiddleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   router.cfg.CORSOrigins,
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Content-Type"},
		AllowCredentials: false,
		MaxAge:           300,
	}))

	// Prometheus scrape endpoint, outside the API prefix and rate limiter.
	r.Handle("/metrics", promhttp.Handler())

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(httprate.Limit(requestsPerMinute, time.Minute, httprate.WithKeyFuncs(httprate.KeyByIP)))
		r.Use(prometheusMetrics)

		r.Get("/health", router.handler.Health)

		// Dashboard aggregates and chart queries
		r.Get("/dashboard/stats", router.handler.DashboardStats)
		r.Get("/dashboard/co2-timeseries", router.handler.CO2Timeseries)
		r.Get("/dashboard/renewable-energy", router.handler.RenewableEnergy)
		r.Get("/dashboard/emissions-comparison", router.handler.EmissionsComparison)

		// Per-country record access
		r.Get("/countries", router.handler.Countries)
		r.Get("/years", router.handler.Years)
		r.Get("/countries/{country}/emissions", router.handler.CountryEmissions)
		r.Get("/countries/{country}/energy", router.handler.CountryEnergy)

		// Ingestion control
		r.Get("/ingest/status", router.handler.IngestStatus)
		r.Post("/ingest/refresh", router.handler.TriggerIngest)
	})

	return r
}
