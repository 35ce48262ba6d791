package tasks

import "time"

// Config tunes the queue worker pool. Retry, timeout, and retention policy
// are per-queue decisions and live with each queue definition
// (see sync_connection.go), not here.
type Config struct {
	// Workers is the number of concurrent sync task workers. Default: 2
	Workers int

	// ReleaseAfter is when a claimed but unfinished sync task is released
	// back to the queue, e.g. after a crash mid-pass. Default: 15m
	ReleaseAfter time.Duration

	// CleanupInterval is how often finished tasks are swept from the
	// queue database. Default: 1h
	CleanupInterval time.Duration
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() Config {
	return Config{
		Workers:         2,
		ReleaseAfter:    15 * time.Minute,
		CleanupInterval: 1 * time.Hour,
	}
}
