// GreenPulse - Sustainability Metrics Ingestion and Dashboard Backend
// Copyright 2026 accidentalscientist
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/accidentalscientist/greenpulse

package main

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/accidentalscientist/greenpulse/internal/api"
	"github.com/accidentalscientist/greenpulse/internal/config"
	"github.com/accidentalscientist/greenpulse/internal/ingest"
	"github.com/accidentalscientist/greenpulse/internal/logging"
	"github.com/accidentalscientist/greenpulse/internal/source"
	"github.com/accidentalscientist/greenpulse/internal/store"
	"github.com/accidentalscientist/greenpulse/internal/supervisor"
	"github.com/accidentalscientist/greenpulse/internal/supervisor/services"
)

func main() {
	// Load configuration first to get logging settings
	cfg, err := config.Load()
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to load configuration")
	}

	logging.Init(logging.Config{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
		Caller: cfg.Logging.Caller,
	})

	logging.Info().
		Str("database", cfg.Mongo.Database).
		Int("start_year", cfg.Ingest.StartYear).
		Int("end_year", cfg.Ingest.EndYear).
		Dur("interval", cfg.Ingest.Interval).
		Msg("Starting GreenPulse")

	// Connect to MongoDB and ensure indexes
	connectCtx, connectCancel := context.WithTimeout(context.Background(), cfg.Mongo.ConnectTimeout)
	st, err := store.Connect(connectCtx, cfg.Mongo)
	connectCancel()
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to connect to MongoDB")
	}
	defer func() {
		closeCtx, closeCancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer closeCancel()
		if err := st.Close(closeCtx); err != nil {
			logging.Error().Err(err).Msg("Error closing MongoDB connection")
		}
	}()

	// Source adapters: OWID bulk CSV behind a circuit breaker, World Bank
	// indicator API with per-call failure isolation.
	owid := source.NewCircuitBreakerOWID(source.NewOWIDClient(cfg.Sources))
	worldBank := source.NewWorldBankClient(cfg.Sources)

	// Synthetic fallback generator
	generator := ingest.NewGenerator(rand.New(rand.NewSource(time.Now().UnixNano())))

	// Ingestion orchestrator and scheduler
	service := ingest.NewService(owid, worldBank, st, generator, cfg.Ingest)
	scheduler := ingest.NewScheduler(service, cfg.Ingest.Interval)

	// HTTP server
	handler := api.NewHandler(st, scheduler, scheduler)
	router := api.NewRouter(handler, cfg.Server)
	server := &http.Server{
		Addr:              fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:           router.Setup(),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       cfg.Server.Timeout,
		WriteTimeout:      cfg.Server.Timeout,
		IdleTimeout:       2 * cfg.Server.Timeout,
	}

	// Create context for graceful shutdown
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Bridge zerolog to slog for sutureslog compatibility
	slogLogger := logging.NewSlogLogger()

	tree, err := supervisor.NewSupervisorTree(slogLogger, supervisor.DefaultTreeConfig())
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to create supervisor tree")
	}

	tree.AddIngestService(services.NewIngestSchedulerService(scheduler))
	tree.AddAPIService(services.NewHTTPServerService(server, 10*time.Second))
	logging.Info().Str("addr", server.Addr).Msg("HTTP server service added")

	// Setup signal handling
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		logging.Info().Str("signal", sig.String()).Msg("Received shutdown signal")
		cancel()
	}()

	logging.Info().Msg("Starting supervisor tree...")
	errCh := tree.ServeBackground(ctx)

	// Wait for supervisor to finish (either from signal or error)
	select {
	case <-ctx.Done():
		logging.Info().Msg("Context canceled, waiting for supervisor to finish...")
	case err := <-errCh:
		if err != nil && !errors.Is(err, context.Canceled) {
			logging.Error().Err(err).Msg("Supervisor tree error")
		}
	}

	// Wait for the error channel to close (supervisor finished)
	for err := range errCh {
		if err != nil && !errors.Is(err, context.Canceled) {
			logging.Error().Err(err).Msg("Supervisor shutdown error")
		}
	}

	// Report any services that failed to stop within timeout
	unstopped, _ := tree.UnstoppedServiceReport()
	if len(unstopped) > 0 {
		logging.Warn().Int("count", len(unstopped)).Msg("Services failed to stop within timeout")
		for _, svc := range unstopped {
			logging.Warn().Str("service", svc.Name).Msg("Service failed to stop")
		}
	}

	logging.Info().Msg("Application stopped gracefully")
}
