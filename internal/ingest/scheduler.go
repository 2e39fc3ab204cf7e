// GreenPulse - Sustainability Metrics Ingestion and Dashboard Backend
// Copyright 2026 accidentalscientist
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/accidentalscientist/greenpulse

package ingest

import (
	"context"
	"sync"
	"time"

	"github.com/accidentalscientist/greenpulse/internal/logging"
	"github.com/accidentalscientist/greenpulse/internal/models"
)

// Runner is the unit of work the scheduler drives on each tick.
type Runner interface {
	Run(ctx context.Context) error
}

// Scheduler triggers ingestion runs at a fixed interval. Runs never overlap:
// a tick that arrives while a run is still in flight is skipped, not queued.
type Scheduler struct {
	runner   Runner
	interval time.Duration

	mu       sync.Mutex
	running  bool
	inFlight bool
	lastRun  *time.Time
	nextRun  *time.Time
	lastErr  error
	stopCh   chan struct{}
	doneCh   chan struct{}
	wg       sync.WaitGroup
}

// manualRunTimeout bounds a manually triggered run, which is detached from
// any request context.
const manualRunTimeout = 30 * time.Minute

// NewScheduler creates a scheduler that invokes runner every interval.
func NewScheduler(runner Runner, interval time.Duration) *Scheduler {
	return &Scheduler{
		runner:   runner,
		interval: interval,
	}
}

// Start begins the scheduling loop. The first run fires immediately rather
// than waiting a full interval. Safe to call multiple times; subsequent
// calls are no-ops while running.
func (s *Scheduler) Start(ctx context.Context) {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		logging.Warn().Msg("Ingestion scheduler already running")
		return
	}
	s.running = true
	s.stopCh = make(chan struct{})
	s.doneCh = make(chan struct{})
	s.mu.Unlock()

	logging.Info().
		Dur("interval", s.interval).
		Msg("Starting ingestion scheduler")

	go s.loop(ctx)
}

// Stop halts the scheduling loop, waits for it to exit and joins any
// in-flight run. Safe to call when not running.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return
	}
	s.running = false
	close(s.stopCh)
	doneCh := s.doneCh
	s.mu.Unlock()

	<-doneCh
	s.wg.Wait()
	logging.Info().Msg("Ingestion scheduler stopped")
}

// IsRunning reports whether the scheduling loop is active.
func (s *Scheduler) IsRunning() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.running
}

// Status returns a snapshot of the scheduler state for the status endpoint.
func (s *Scheduler) Status() models.SchedulerStatus {
	s.mu.Lock()
	defer s.mu.Unlock()

	status := models.SchedulerStatus{
		Running:  s.running,
		InFlight: s.inFlight,
		NextRun:  s.nextRun,
		LastRun:  s.lastRun,
	}
	if s.lastErr != nil {
		status.LastError = s.lastErr.Error()
	}
	return status
}

func (s *Scheduler) loop(ctx context.Context) {
	defer close(s.doneCh)

	// Immediate first run so a fresh deployment serves data without
	// waiting out the first interval.
	s.dispatch(ctx)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			s.dispatch(ctx)
		case <-s.stopCh:
			return
		case <-ctx.Done():
			// Join the in-flight run before reporting stopped, same as Stop.
			s.wg.Wait()
			s.mu.Lock()
			s.running = false
			s.mu.Unlock()
			return
		}
	}
}

// TriggerNow starts a manual run in the background, bypassing the tick loop.
// Returns false without starting anything when a run is already in flight.
// The run shares the scheduler's overlap guard and status fields, so clients
// observe it through Status like any scheduled run. Works whether or not the
// loop has been started.
func (s *Scheduler) TriggerNow() bool {
	s.mu.Lock()
	if s.inFlight {
		s.mu.Unlock()
		return false
	}
	s.inFlight = true
	s.mu.Unlock()

	logging.Info().Msg("Manual ingestion run triggered")
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		ctx, cancel := context.WithTimeout(context.Background(), manualRunTimeout)
		defer cancel()
		s.execute(ctx)
	}()
	return true
}

// dispatch starts a run in the background unless one is already in flight,
// in which case the tick is dropped.
func (s *Scheduler) dispatch(ctx context.Context) {
	// The ticker fires on its own fixed cadence, so the next fire time is
	// tick + interval regardless of how long the dispatched run takes.
	next := time.Now().Add(s.interval)

	s.mu.Lock()
	s.nextRun = &next
	if s.inFlight {
		s.mu.Unlock()
		logging.Warn().Msg("Previous ingestion run still in flight, skipping tick")
		return
	}
	s.inFlight = true
	s.mu.Unlock()

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.execute(ctx)
	}()
}

func (s *Scheduler) execute(ctx context.Context) {
	start := time.Now()
	err := s.runner.Run(ctx)

	now := time.Now()

	s.mu.Lock()
	s.inFlight = false
	s.lastRun = &now
	s.lastErr = err
	s.mu.Unlock()

	if err != nil {
		logging.Error().Err(err).
			Dur("duration", time.Since(start)).
			Msg("Scheduled ingestion run failed")
		return
	}
	logging.Debug().
		Dur("duration", time.Since(start)).
		Msg("Scheduled ingestion run completed")
}
