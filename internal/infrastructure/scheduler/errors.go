package scheduler

import "errors"

var (
	// ErrSchedulerNotRunning is returned when triggering a stopped scheduler
	ErrSchedulerNotRunning = errors.New("scheduler is not running")

	// ErrNoJobs is returned when starting a scheduler with nothing to run
	ErrNoJobs = errors.New("scheduler has no jobs")
)
