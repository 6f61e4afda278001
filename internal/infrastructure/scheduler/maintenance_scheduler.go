package scheduler

import (
	"context"
	"sync"
	"time"

	"github.com/cryptonexus/backend/internal/infrastructure/telemetry"
	"go.uber.org/zap"
)

// Job is one periodic maintenance task. Run returns how many records it
// changed.
type Job struct {
	Name string
	Run  func(ctx context.Context, now time.Time) (int, error)
}

// MaintenanceConfig holds configuration for the maintenance scheduler
type MaintenanceConfig struct {
	// Enabled determines if the scheduler is active
	Enabled bool

	// Interval is the time between ticks
	Interval time.Duration

	// JobTimeout bounds a single job attempt
	JobTimeout time.Duration

	// RetryAttempts is how many times a failed job is retried within a tick
	RetryAttempts int

	// RetryDelay is the pause before each retry
	RetryDelay time.Duration
}

// DefaultMaintenanceConfig returns default configuration
func DefaultMaintenanceConfig() MaintenanceConfig {
	return MaintenanceConfig{
		Enabled:       true,
		Interval:      time.Minute,
		JobTimeout:    30 * time.Second,
		RetryAttempts: 2,
		RetryDelay:    2 * time.Second,
	}
}

// TickResult summarizes one tick
type TickResult struct {
	Changed map[string]int
	Failed  []string
}

// MaintenanceScheduler runs escrow auto-release, payment and order expiry
// and Monero polling on a ticker
type MaintenanceScheduler struct {
	config MaintenanceConfig
	jobs   []Job
	logger *zap.Logger
	now    func() time.Time

	cancel    context.CancelFunc
	wg        sync.WaitGroup
	mu        sync.Mutex
	tickMu    sync.Mutex
	isRunning bool
}

// NewMaintenanceScheduler creates a scheduler for jobs
func NewMaintenanceScheduler(config MaintenanceConfig, logger *zap.Logger, jobs ...Job) *MaintenanceScheduler {
	if config.Interval <= 0 {
		config.Interval = time.Minute
	}
	if config.JobTimeout <= 0 {
		config.JobTimeout = 30 * time.Second
	}
	return &MaintenanceScheduler{
		config: config,
		jobs:   jobs,
		logger: logger,
		now:    time.Now,
	}
}

// Start starts the ticker loop
func (s *MaintenanceScheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.isRunning {
		s.mu.Unlock()
		return nil
	}
	if !s.config.Enabled {
		s.mu.Unlock()
		s.logger.Info("Maintenance scheduler is disabled")
		return nil
	}
	if len(s.jobs) == 0 {
		s.mu.Unlock()
		return ErrNoJobs
	}
	s.isRunning = true
	s.mu.Unlock()

	ctx, cancel := context.WithCancel(ctx)
	s.cancel = cancel

	s.wg.Add(1)
	go s.loop(ctx)

	names := make([]string, len(s.jobs))
	for i, j := range s.jobs {
		names[i] = j.Name
	}
	s.logger.Info("Maintenance scheduler started",
		zap.Duration("interval", s.config.Interval),
		zap.Strings("jobs", names),
	)
	return nil
}

// Stop gracefully stops the scheduler, waiting for a running tick
func (s *MaintenanceScheduler) Stop(ctx context.Context) error {
	s.mu.Lock()
	if !s.isRunning {
		s.mu.Unlock()
		return nil
	}
	s.isRunning = false
	s.mu.Unlock()

	if s.cancel != nil {
		s.cancel()
	}

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		s.logger.Info("Maintenance scheduler stopped gracefully")
		return nil
	case <-ctx.Done():
		s.logger.Warn("Maintenance scheduler stop timed out")
		return ctx.Err()
	}
}

// IsRunning returns whether the scheduler is running
func (s *MaintenanceScheduler) IsRunning() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.isRunning
}

// TriggerNow runs a tick in the background without waiting for the ticker
func (s *MaintenanceScheduler) TriggerNow(ctx context.Context) error {
	s.mu.Lock()
	if !s.isRunning {
		s.mu.Unlock()
		return ErrSchedulerNotRunning
	}
	s.wg.Add(1)
	s.mu.Unlock()

	go func() {
		defer s.wg.Done()
		s.RunOnce(ctx)
	}()
	return nil
}

func (s *MaintenanceScheduler) loop(ctx context.Context) {
	defer s.wg.Done()

	ticker := time.NewTicker(s.config.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.logger.Debug("Maintenance loop stopping")
			return
		case <-ticker.C:
			s.RunOnce(ctx)
		}
	}
}

// RunOnce runs every job once, in order. A failing job does not stop the
// ones after it. Overlapping ticks are serialized.
func (s *MaintenanceScheduler) RunOnce(ctx context.Context) TickResult {
	s.tickMu.Lock()
	defer s.tickMu.Unlock()

	result := TickResult{Changed: make(map[string]int, len(s.jobs))}
	now := s.now()
	for _, job := range s.jobs {
		if ctx.Err() != nil {
			break
		}
		n, err := s.runJob(ctx, job, now)
		if err != nil {
			result.Failed = append(result.Failed, job.Name)
			s.logger.Error("Maintenance job failed",
				zap.String("job", job.Name),
				zap.Error(err),
			)
			continue
		}
		result.Changed[job.Name] = n
		if n > 0 {
			s.logger.Info("Maintenance job completed",
				zap.String("job", job.Name),
				zap.Int("changed", n),
			)
		}
	}
	return result
}

// runJob executes one job with per-attempt timeout and retries
func (s *MaintenanceScheduler) runJob(ctx context.Context, job Job, now time.Time) (int, error) {
	var lastErr error
	for attempt := 0; attempt <= s.config.RetryAttempts; attempt++ {
		if attempt > 0 {
			s.logger.Warn("Retrying maintenance job",
				zap.String("job", job.Name),
				zap.Int("attempt", attempt),
				zap.Error(lastErr),
			)
			select {
			case <-ctx.Done():
				return 0, ctx.Err()
			case <-time.After(s.config.RetryDelay):
			}
		}

		jobCtx, cancel := context.WithTimeout(ctx, s.config.JobTimeout)
		var n int
		var err error
		telemetry.WithProfilingLabels(jobCtx, map[string]string{telemetry.ProfilingLabelJob: job.Name}, func(ctx context.Context) {
			n, err = job.Run(ctx, now)
		})
		cancel()
		if err == nil {
			return n, nil
		}
		lastErr = err
	}
	return 0, lastErr
}
