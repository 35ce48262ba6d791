// Package scheduler runs the periodic due-connection scan that keeps
// enabled provider connections synced on their configured frequency.
package scheduler

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/JustinD79/diaguard/internal/database/connections"
	"github.com/JustinD79/diaguard/internal/entities"
	"github.com/JustinD79/diaguard/internal/syncer"
)

// scanTimeout bounds one full scan including every provider round-trip.
const scanTimeout = 10 * time.Minute

// SyncRunner triggers one sync pass. Implemented by the syncer service.
type SyncRunner interface {
	SyncNutritionData(ctx context.Context, userID uint, p entities.Provider, opts syncer.Options) syncer.Result
}

// NutritionSyncScheduler periodically scans sync configurations and runs a
// scheduled sync for every connection whose frequency has elapsed.
type NutritionSyncScheduler struct {
	conns    *connections.Repository
	runner   SyncRunner
	schedule string

	cron       *cron.Cron
	entryID    cron.EntryID
	mu         sync.RWMutex
	isRunning  bool
	isScanning bool
	cancelFunc context.CancelFunc
}

// NewNutritionSyncScheduler creates a scheduler that scans on the given cron
// schedule.
func NewNutritionSyncScheduler(conns *connections.Repository, runner SyncRunner, schedule string) *NutritionSyncScheduler {
	return &NutritionSyncScheduler{
		conns:    conns,
		runner:   runner,
		schedule: schedule,
		cron:     cron.New(cron.WithParser(cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow))),
	}
}

// Start begins the periodic scan.
func (s *NutritionSyncScheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.isRunning {
		return nil
	}

	entryID, err := s.cron.AddFunc(s.schedule, func() {
		s.runScan()
	})
	if err != nil {
		return fmt.Errorf("invalid cron schedule '%s': %w", s.schedule, err)
	}
	s.entryID = entryID

	var cancelCtx context.Context
	cancelCtx, s.cancelFunc = context.WithCancel(ctx)

	s.cron.Start()
	s.isRunning = true

	log.Printf("Nutrition sync scheduler: started with schedule '%s'", s.schedule)

	go func() {
		<-cancelCtx.Done()
		s.Stop()
	}()

	return nil
}

// Stop halts the scan schedule and waits for a running scan to finish.
func (s *NutritionSyncScheduler) Stop() {
	s.mu.Lock()
	if !s.isRunning {
		s.mu.Unlock()
		return
	}
	s.isRunning = false
	s.cancelFunc = nil
	s.mu.Unlock()

	// Wait outside the lock: a finishing scan needs it to clear its
	// scanning flag.
	<-s.cron.Stop().Done()

	log.Printf("Nutrition sync scheduler: stopped")
}

// RunNow triggers an immediate scan outside the schedule.
func (s *NutritionSyncScheduler) RunNow() {
	go s.runScan()
}

// IsRunning reports whether the scheduler is active.
func (s *NutritionSyncScheduler) IsRunning() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.isRunning
}

// IsScanning reports whether a scan is currently in progress.
func (s *NutritionSyncScheduler) IsScanning() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.isScanning
}

// NextRunTime returns when the next scan will occur, nil when stopped.
func (s *NutritionSyncScheduler) NextRunTime() *time.Time {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if !s.isRunning {
		return nil
	}
	for _, entry := range s.cron.Entries() {
		if entry.ID == s.entryID {
			t := entry.Next
			return &t
		}
	}
	return nil
}

// runScan syncs every enabled connection whose frequency has elapsed since
// its last sync. A scan already in progress is never overlapped.
func (s *NutritionSyncScheduler) runScan() {
	s.mu.Lock()
	if s.isScanning {
		s.mu.Unlock()
		log.Printf("Nutrition sync scan: skipped (already scanning)")
		return
	}
	s.isScanning = true
	s.mu.Unlock()

	defer func() {
		s.mu.Lock()
		s.isScanning = false
		s.mu.Unlock()
	}()

	configs, err := s.conns.ListEnabledConfigs(entities.DataTypeNutrition)
	if err != nil {
		log.Printf("Nutrition sync scan: failed to list sync configurations: %v", err)
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), scanTimeout)
	defer cancel()

	var ran, skipped int
	for _, cfg := range configs {
		conn, err := s.conns.GetByID(cfg.ConnectionID)
		if err != nil {
			log.Printf("Nutrition sync scan: failed to load connection %d: %v", cfg.ConnectionID, err)
			continue
		}

		if !dueForSync(conn.LastSyncAt, cfg.FrequencyMinutes) {
			skipped++
			continue
		}

		// Direction is left unset so the pass follows the connection's
		// own sync configuration.
		result := s.runner.SyncNutritionData(ctx, conn.UserID, conn.Provider, syncer.Options{
			SyncType: entities.SyncTypeScheduled,
		})
		ran++
		if !result.Success {
			log.Printf("Nutrition sync scan: connection %d finished with %d errors", conn.ID, len(result.Errors))
		}
	}

	log.Printf("Nutrition sync scan: completed, synced=%d skipped=%d", ran, skipped)
}

// dueForSync reports whether a connection's sync frequency has elapsed.
// A connection that never synced is always due.
func dueForSync(lastSyncAt *time.Time, frequencyMinutes int) bool {
	if lastSyncAt == nil {
		return true
	}
	if frequencyMinutes <= 0 {
		frequencyMinutes = 60
	}
	return time.Since(*lastSyncAt) >= time.Duration(frequencyMinutes)*time.Minute
}
