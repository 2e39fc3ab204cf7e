// GreenPulse - Sustainability Metrics Ingestion and Dashboard Backend
// Copyright 2026 accidentalscientist
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/accidentalscientist/greenpulse

package services

import (
	"context"
)

// IngestSchedulerManager interface matches the ingestion scheduler lifecycle.
//
// This interface abstracts the scheduler's Start/Stop pattern, allowing the
// IngestSchedulerService wrapper to adapt it to suture's Serve pattern
// without modifying the scheduler code.
//
// The interface is satisfied by *ingest.Scheduler.
type IngestSchedulerManager interface {
	Start(ctx context.Context)
	Stop()
}

// IngestSchedulerService wraps the ingestion scheduler as a supervised service.
//
// It adapts the Start/Stop lifecycle pattern to suture's Serve pattern:
//  1. Calls Start(ctx) to begin the scheduling loop
//  2. Waits for context cancellation
//  3. Calls Stop() which joins any in-flight run
type IngestSchedulerService struct {
	manager IngestSchedulerManager
	name    string
}

// NewIngestSchedulerService creates a new ingestion scheduler service wrapper.
//
// Example usage:
//
//	scheduler := ingest.NewScheduler(service, cfg.Ingest.Interval)
//	svc := services.NewIngestSchedulerService(scheduler)
//	tree.AddIngestService(svc)
func NewIngestSchedulerService(manager IngestSchedulerManager) *IngestSchedulerService {
	return &IngestSchedulerService{
		manager: manager,
		name:    "ingest-scheduler",
	}
}

// Serve implements suture.Service.
//
// This method:
//  1. Starts the scheduler (which spawns its internal loop)
//  2. Blocks until the context is canceled
//  3. Stops the scheduler gracefully
func (s *IngestSchedulerService) Serve(ctx context.Context) error {
	s.manager.Start(ctx)

	// Wait for shutdown signal
	<-ctx.Done()

	s.manager.Stop()
	return ctx.Err()
}

// String implements fmt.Stringer for logging.
// Suture uses this to identify the service in log messages.
func (s *IngestSchedulerService) String() string {
	return s.name
}
