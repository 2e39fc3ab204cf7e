// GreenPulse - Sustainability Metrics Ingestion and Dashboard Backend
// Copyright 2026 accidentalscientist
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/accidentalscientist/greenpulse

/*
Package main is the entry point for the GreenPulse server application.

GreenPulse ingests country-level sustainability metrics (CO2 emissions and
renewable energy adoption) from public sources on a recurring schedule,
reconciles them into per-country-year records in MongoDB, and serves them to
a dashboard frontend over a REST API. When live sources are unavailable the
service falls back to a deterministic synthetic generator so the dashboard
always has data to show.

# Application Architecture

The server implements a layered architecture with Suture v4 process supervision:

	RootSupervisor ("greenpulse")
	├── IngestSupervisor ("ingest-layer")
	│   └── Ingestion Scheduler (recurring runs, skip-if-running)
	└── APISupervisor ("api-layer")
	    └── HTTP Server (dashboard REST endpoints)

Component initialization order:

 1. Configuration: Koanf v2 with environment variables and config files
 2. Store: MongoDB connection with (country, year) unique indexes
 3. Sources: OWID bulk CSV client (circuit breaker) and World Bank API client
 4. Ingestion: orchestrator, synthetic generator, and interval scheduler
 5. HTTP Server: chi router with CORS, rate limiting, and Prometheus metrics
 6. Supervisor tree: assembled last, owns all background lifecycles

# Configuration

Configuration is loaded via Koanf v2 with layered sources, highest priority
first: environment variables, config.yaml, built-in defaults. Commonly used
environment variables:

	MONGODB_URL          MongoDB connection URI (default mongodb://localhost:27017)
	MONGODB_DATABASE     Database name (default sustainability_dashboard)
	SCHEDULER_INTERVAL   Ingestion interval (default 30m)
	BACKEND_PORT         HTTP listen port (default 8000)
	CORS_ORIGINS         Comma-separated allowed origins
	LOG_LEVEL            trace|debug|info|warn|error

# Signal Handling

The server handles graceful shutdown on SIGINT and SIGTERM: the HTTP server
drains in-flight requests, the scheduler joins any in-flight ingestion run,
and the MongoDB client disconnects.
*/
package main
