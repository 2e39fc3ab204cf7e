// GreenPulse - Sustainability Metrics Ingestion and Dashboard Backend
// Copyright 2026 accidentalscientist
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/accidentalscientist/greenpulse

package api

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"

	"github.com/accidentalscientist/greenpulse/internal/metrics"
)

// prometheusMetrics records per-request metrics: count by method, route
// pattern and status, latency histogram, and the active-request gauge.
// The chi route pattern is used rather than the raw path so per-country
// endpoints don't explode label cardinality.
func prometheusMetrics(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		metrics.TrackActiveRequest(true)
		defer metrics.TrackActiveRequest(false)

		ww := chimiddleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		endpoint := r.URL.Path
		if rctx := chi.RouteContext(r.Context()); rctx != nil && rctx.RoutePattern() != "" {
			endpoint = rctx.RoutePattern()
		}
		metrics.RecordAPIRequest(r.Method, endpoint, strconv.Itoa(ww.Status()), time.Since(start))
	})
}
