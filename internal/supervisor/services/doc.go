// GreenPulse - Sustainability Metrics Ingestion and Dashboard Backend
// Copyright 2026 accidentalscientist
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/accidentalscientist/greenpulse

/*
Package services provides suture.Service wrappers for GreenPulse components.

This package adapts application components to the suture v4 supervision model,
translating their lifecycle patterns (Start/Stop, ListenAndServe) into suture's
context-aware Serve pattern.

# Overview

Each wrapper implements the suture.Service interface:

	type Service interface {
	    Serve(ctx context.Context) error
	}

The wrappers handle:
  - Lifecycle translation (Start/Stop to Serve pattern)
  - Graceful shutdown via context cancellation
  - Error propagation for supervisor restart decisions
  - Service identification via fmt.Stringer

# Available Services

HTTP Server (HTTPServerService):
  - Wraps *http.Server with graceful shutdown
  - Converts ListenAndServe pattern to Serve
  - Configurable shutdown timeout for draining connections

Ingest Scheduler (IngestSchedulerService):
  - Wraps the ingestion scheduler's Start/Stop lifecycle
  - Blocks until context cancellation, then joins in-flight runs
*/
package services
