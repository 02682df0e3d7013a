package token

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

// ExpiredDeleter removes tokens whose card expiry has passed.
// Both InMemoryStore and PostgresStore implement it.
type ExpiredDeleter interface {
	// DeleteExpired removes expired tokens and returns how many were removed.
	DeleteExpired(now time.Time) (int64, error)
}

// JobMetrics provides centralized background job metrics tracking.
// This interface allows the sweep to report to the centralized job metrics system.
type JobMetrics interface {
	IncJobsTotal(jobType, status string)
	ObserveJobDuration(jobType string, seconds float64)
	IncJobErrors(jobType, errorType string)
}

// ExpirySweepConfig configures the token expiry sweep job.
type ExpirySweepConfig struct {
	// Interval is the duration between sweep cycles.
	Interval time.Duration
	// Logger for job activity.
	Logger *slog.Logger
	// JobMetrics for centralized background job tracking.
	JobMetrics JobMetrics
}

// DefaultSweepInterval is the default interval between sweep cycles.
// Expiry only changes at month boundaries, so sweeping more often buys nothing.
const DefaultSweepInterval = 24 * time.Hour

// ExpirySweep periodically removes saved payment methods whose cards have
// expired, so they stop appearing in the admin's saved-method list.
type ExpirySweep struct {
	config ExpirySweepConfig
	store  ExpiredDeleter

	mu      sync.Mutex
	running bool
	stopCh  chan struct{}
	doneCh  chan struct{}
}

// NewExpirySweep creates a new token expiry sweep job.
func NewExpirySweep(config ExpirySweepConfig, store ExpiredDeleter) *ExpirySweep {
	if config.Interval == 0 {
		config.Interval = DefaultSweepInterval
	}
	if config.Logger == nil {
		config.Logger = slog.Default()
	}

	return &ExpirySweep{
		config: config,
		store:  store,
	}
}

// Start begins the periodic sweep.
// Returns immediately; the job runs in a background goroutine.
func (j *ExpirySweep) Start(ctx context.Context) error {
	j.mu.Lock()
	if j.running {
		j.mu.Unlock()
		return nil
	}
	j.running = true
	j.stopCh = make(chan struct{})
	j.doneCh = make(chan struct{})
	j.mu.Unlock()

	go j.run(ctx)
	return nil
}

// Stop signals the sweep to stop and waits for it to finish.
func (j *ExpirySweep) Stop() {
	j.mu.Lock()
	if !j.running {
		j.mu.Unlock()
		return
	}
	stopCh := j.stopCh
	doneCh := j.doneCh
	j.mu.Unlock()

	close(stopCh)
	<-doneCh

	j.mu.Lock()
	j.running = false
	j.mu.Unlock()
}

// IsRunning returns whether the sweep is currently running.
func (j *ExpirySweep) IsRunning() bool {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.running
}

// run is the main loop for the sweep job.
func (j *ExpirySweep) run(ctx context.Context) {
	defer close(j.doneCh)

	ticker := time.NewTicker(j.config.Interval)
	defer ticker.Stop()

	j.sweep()

	for {
		select {
		case <-ctx.Done():
			j.config.Logger.Info("token expiry sweep stopping due to context cancellation")
			return
		case <-j.stopCh:
			j.config.Logger.Info("token expiry sweep stopping due to stop signal")
			return
		case <-ticker.C:
			j.sweep()
		}
	}
}

// sweep removes all currently expired tokens and records job metrics.
func (j *ExpirySweep) sweep() {
	startTime := time.Now()

	removed, err := j.store.DeleteExpired(startTime)
	duration := time.Since(startTime).Seconds()

	if err != nil {
		j.config.Logger.Error("token expiry sweep failed", "error", err)
		if j.config.JobMetrics != nil {
			j.config.JobMetrics.IncJobsTotal("token_expiry_sweep", "failure")
			j.config.JobMetrics.ObserveJobDuration("token_expiry_sweep", duration)
			j.config.JobMetrics.IncJobErrors("token_expiry_sweep", "store_error")
		}
		return
	}

	if j.config.JobMetrics != nil {
		j.config.JobMetrics.IncJobsTotal("token_expiry_sweep", "success")
		j.config.JobMetrics.ObserveJobDuration("token_expiry_sweep", duration)
	}

	if removed > 0 {
		j.config.Logger.Info("token expiry sweep completed",
			"removed", removed,
			"duration_seconds", duration)
	} else {
		j.config.Logger.Debug("token expiry sweep completed, nothing to remove",
			"duration_seconds", duration)
	}
}

// SweepNow immediately runs a sweep without waiting for the ticker.
// This is useful for testing or forcing immediate cleanup.
func (j *ExpirySweep) SweepNow() {
	j.sweep()
}
