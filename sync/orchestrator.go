package sync

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/wfworld/dashboard/feed"
	"github.com/wfworld/dashboard/google"
	"github.com/wfworld/dashboard/store"
)

const statusFailed = "failed"

// Service defines the interface for sync services.
type Service interface {
	Sync(ctx context.Context) error
	Name() string
	GetStats() Stats
	GetSkipReasons() []string
}

// Status represents the status of a sync operation.
type Status struct {
	Type        string     `json:"type"`
	Status      string     `json:"status"`
	StartTime   time.Time  `json:"start_time"`
	EndTime     *time.Time `json:"end_time,omitempty"`
	Error       string     `json:"error,omitempty"`
	Summary     Stats      `json:"summary"`
	SkipReasons []string   `json:"skip_reasons,omitempty"`
	Message     string     `json:"message,omitempty"`
}

// Orchestrator manages sync service execution. At most one job per sync
// type runs at a time, and the full sequence holds its own flag so the
// scheduler and manual triggers cannot overlap.
type Orchestrator struct {
	services            map[string]Service
	mu                  sync.RWMutex
	runningJobs         map[string]*Status
	lastCompletedStatus map[string]*Status
	jobSpacing          time.Duration
	fullSyncRunning     bool
}

// NewOrchestrator creates a new orchestrator.
func NewOrchestrator() *Orchestrator {
	return &Orchestrator{
		services:            make(map[string]Service),
		runningJobs:         make(map[string]*Status),
		lastCompletedStatus: make(map[string]*Status),
		jobSpacing:          2 * time.Second,
	}
}

// RegisterService registers a sync service.
func (o *Orchestrator) RegisterService(name string, service Service) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.services[name] = service
	slog.Info("Registered sync service", "name", name)
}

// IsRunning checks if a sync type is currently running.
func (o *Orchestrator) IsRunning(syncType string) bool {
	o.mu.RLock()
	defer o.mu.RUnlock()

	status, exists := o.runningJobs[syncType]
	return exists && status.Status == "running"
}

// IsFullSyncRunning reports whether the full sequence is in progress.
func (o *Orchestrator) IsFullSyncRunning() bool {
	o.mu.RLock()
	defer o.mu.RUnlock()
	return o.fullSyncRunning
}

// GetRunningJobs returns all currently running job names.
func (o *Orchestrator) GetRunningJobs() []string {
	o.mu.RLock()
	defer o.mu.RUnlock()

	var running []string
	for name, status := range o.runningJobs {
		if status.Status == "running" {
			running = append(running, name)
		}
	}
	return running
}

// RunSync executes a single sync service synchronously and returns its
// final status. A second call for the same type while one is in flight
// fails fast instead of queuing.
func (o *Orchestrator) RunSync(ctx context.Context, syncType string) (*Status, error) {
	o.mu.RLock()
	service, exists := o.services[syncType]
	o.mu.RUnlock()

	if !exists {
		return nil, fmt.Errorf("sync service not found: %s", syncType)
	}

	status := &Status{
		Type:      syncType,
		Status:    "running",
		StartTime: time.Now(),
	}

	o.mu.Lock()
	if existing, running := o.runningJobs[syncType]; running && existing.Status == "running" {
		o.mu.Unlock()
		return nil, fmt.Errorf("sync already in progress: %s", syncType)
	}
	o.runningJobs[syncType] = status
	o.mu.Unlock()

	err := o.runWithRecovery(ctx, service, status)

	endTime := time.Now()
	status.EndTime = &endTime
	stats := service.GetStats()
	stats.Duration = int(endTime.Sub(status.StartTime).Seconds())
	status.Summary = stats
	status.SkipReasons = service.GetSkipReasons()

	if err != nil {
		status.Status = statusFailed
		status.Error = err.Error()
		slog.Error("Sync failed", "syncType", syncType, "error", err)
	} else {
		status.Status = "success"
		if summarizer, ok := service.(interface{ Summary() string }); ok {
			status.Message = summarizer.Summary()
		}
		slog.Info("Sync completed successfully", "syncType", syncType)
	}

	o.mu.Lock()
	o.lastCompletedStatus[syncType] = status
	delete(o.runningJobs, syncType)
	o.mu.Unlock()

	statusCopy := *status
	return &statusCopy, err
}

// StartSync launches a sync in the background with an independent
// timeout so an HTTP handler returning does not cancel the run.
func (o *Orchestrator) StartSync(syncType string) error {
	o.mu.RLock()
	_, exists := o.services[syncType]
	o.mu.RUnlock()

	if !exists {
		return fmt.Errorf("sync service not found: %s", syncType)
	}
	if o.IsRunning(syncType) {
		return fmt.Errorf("sync already in progress: %s", syncType)
	}

	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Minute)
		defer cancel()
		_, _ = o.RunSync(ctx, syncType)
	}()

	return nil
}

// runWithRecovery executes a sync with panic containment.
func (o *Orchestrator) runWithRecovery(ctx context.Context, service Service, status *Status) (err error) {
	defer func() {
		if r := recover(); r != nil {
			slog.Error("Sync panicked", "syncType", status.Type, "panic", r)
			err = fmt.Errorf("panic: %v", r)
		}
	}()
	return service.Sync(ctx)
}

// RunFullSync runs the client sync followed by the sales sync. Clients
// go first so sales rows can reference freshly created client codes.
// Individual failures do not stop the sequence.
func (o *Orchestrator) RunFullSync(ctx context.Context) error {
	o.mu.Lock()
	if o.fullSyncRunning {
		o.mu.Unlock()
		return fmt.Errorf("full sync already in progress")
	}
	o.fullSyncRunning = true
	o.mu.Unlock()

	defer func() {
		o.mu.Lock()
		o.fullSyncRunning = false
		o.mu.Unlock()
	}()

	slog.Info("Starting full sync sequence")

	orderedJobs := []string{"clients", "sales"}
	for i, jobName := range orderedJobs {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		if i > 0 {
			slog.Info("Waiting before next sync", "duration", o.jobSpacing)
			time.Sleep(o.jobSpacing)
		}

		slog.Info("Full sync: starting service", "service", jobName,
			"progress", fmt.Sprintf("%d/%d", i+1, len(orderedJobs)))

		if _, err := o.RunSync(ctx, jobName); err != nil {
			slog.Error("Full sync: service failed", "service", jobName, "error", err)
		} else {
			slog.Info("Full sync: service completed", "service", jobName)
		}
	}

	slog.Info("Full sync sequence completed")
	return nil
}

// GetStatus returns the status of a sync job: the in-flight entry if
// one is running, otherwise the last completed run.
func (o *Orchestrator) GetStatus(syncType string) *Status {
	o.mu.RLock()
	defer o.mu.RUnlock()

	if status, exists := o.runningJobs[syncType]; exists {
		statusCopy := *status
		return &statusCopy
	}
	if status, exists := o.lastCompletedStatus[syncType]; exists {
		statusCopy := *status
		return &statusCopy
	}
	return nil
}

// SetJobSpacing sets the time to wait between jobs in a sequence.
func (o *Orchestrator) SetJobSpacing(duration time.Duration) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.jobSpacing = duration
}

// InitializeSyncServices creates and registers the feed sync services.
// When the Sheets API source is configured it takes priority over the
// Apps Script endpoints stored in settings.
func (o *Orchestrator) InitializeSyncServices(st store.Gateway, settings *SettingsCache) error {
	if google.IsEnabled() {
		source, err := google.NewSheetsSource(context.Background())
		if err != nil {
			slog.Warn("Sheets source disabled due to client error", "error", err)
		} else if source != nil {
			o.RegisterService("clients", NewClientsSyncFromSheets(st, settings, source))
			o.RegisterService("sales", NewSalesSyncFromSheets(st, settings, source))
			slog.Info("Sync services registered with direct Sheets source")
			return nil
		}
	}

	feedClient := feed.NewClient(feed.DefaultTimeout)
	o.RegisterService("clients", NewClientsSync(st, settings, feedClient.FetchClients))
	o.RegisterService("sales", NewSalesSync(st, settings, feedClient.FetchSales))

	slog.Info("All sync services registered")
	return nil
}
