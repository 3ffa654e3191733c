package sync

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/robfig/cron/v3"

	"github.com/wfworld/dashboard/store"
)

// Sweeper marks subscriptions whose end date has passed. It runs before
// each scheduled sync so expired clients drop out of the active counts
// even on days when the feeds bring no new rows.
type Sweeper interface {
	SweepExpired(ctx context.Context) (int, error)
}

// Scheduler manages cron-based sync scheduling.
type Scheduler struct {
	cron         *cron.Cron
	orchestrator *Orchestrator
	sweeper      Sweeper
	mu           sync.Mutex
	running      bool
}

// NewScheduler creates a new scheduler over the given store. The
// sweeper is optional.
func NewScheduler(st store.Gateway, settings *SettingsCache, sweeper Sweeper) (*Scheduler, error) {
	orchestrator := NewOrchestrator()
	if err := orchestrator.InitializeSyncServices(st, settings); err != nil {
		return nil, fmt.Errorf("initializing sync services: %w", err)
	}
	return &Scheduler{
		cron:         cron.New(),
		orchestrator: orchestrator,
		sweeper:      sweeper,
	}, nil
}

// Start begins the nightly schedule.
func (s *Scheduler) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.running {
		return fmt.Errorf("scheduler already running")
	}

	_, err := s.cron.AddFunc("0 3 * * *", func() {
		slog.Info("Starting scheduled daily sync")
		s.runDailySync()
	})
	if err != nil {
		return fmt.Errorf("adding daily schedule: %w", err)
	}

	s.cron.Start()
	s.running = true

	slog.Info("Sync scheduler started")
	return nil
}

// Stop gracefully stops the scheduler.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.running {
		return
	}

	slog.Info("Stopping sync scheduler")
	ctx := s.cron.Stop()
	<-ctx.Done()
	s.running = false
	slog.Info("Sync scheduler stopped")
}

// runDailySync runs the nightly sweep-then-sync sequence.
func (s *Scheduler) runDailySync() {
	ctx := context.Background()

	if s.sweeper != nil {
		if n, err := s.sweeper.SweepExpired(ctx); err != nil {
			slog.Warn("Failed to sweep expired subscriptions", "error", err)
		} else if n > 0 {
			slog.Info("Marked expired subscriptions", "count", n)
		}
	}

	if err := s.orchestrator.RunFullSync(ctx); err != nil {
		slog.Error("Daily sync failed", "error", err)
	} else {
		slog.Info("Daily sync completed successfully")
	}
}

// TriggerFullSync manually triggers the full sequence in the background.
func (s *Scheduler) TriggerFullSync() {
	go s.runDailySync()
}

// GetOrchestrator returns the orchestrator instance.
func (s *Scheduler) GetOrchestrator() *Orchestrator {
	return s.orchestrator
}
