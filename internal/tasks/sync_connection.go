package tasks

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/mikestefanello/backlite"

	"github.com/JustinD79/diaguard/internal/entities"
	"github.com/JustinD79/diaguard/internal/syncer"
)

// SyncRunner triggers one sync pass. Implemented by the syncer service.
type SyncRunner interface {
	SyncNutritionData(ctx context.Context, userID uint, p entities.Provider, opts syncer.Options) syncer.Result
}

// SyncConnectionTask runs one nutrition sync pass for a (user, provider)
// pair in the background. Enqueued by the HTTP API so sync requests return
// immediately.
type SyncConnectionTask struct {
	UserID    uint              `json:"user_id"`
	Provider  entities.Provider `json:"provider"`
	Direction syncer.Direction  `json:"direction,omitempty"`
	StartDate time.Time         `json:"start_date,omitempty"`
	EndDate   time.Time         `json:"end_date,omitempty"`
}

// Config returns the queue configuration for sync tasks.
func (t SyncConnectionTask) Config() backlite.QueueConfig {
	return backlite.QueueConfig{
		Name:        "sync_connection",
		MaxAttempts: 3,
		Backoff:     time.Minute,
		Timeout:     10 * time.Minute,
		Retention: &backlite.Retention{
			Duration:   24 * time.Hour,
			OnlyFailed: false,
			Data:       &backlite.RetainData{OnlyFailed: true},
		},
	}
}

// SyncConnectionProcessor creates the processor function for sync tasks.
// The pass itself records every failure in the sync history, so the task
// only fails (and retries) when nothing at all succeeded.
func SyncConnectionProcessor(runner SyncRunner) backlite.QueueProcessor[SyncConnectionTask] {
	return func(ctx context.Context, task SyncConnectionTask) error {
		if runner == nil {
			return fmt.Errorf("sync runner not configured")
		}

		result := runner.SyncNutritionData(ctx, task.UserID, task.Provider, syncer.Options{
			StartDate: task.StartDate,
			EndDate:   task.EndDate,
			Direction: task.Direction,
			SyncType:  entities.SyncTypeManual,
		})

		if !result.Success && result.Exported == 0 && result.Imported == 0 {
			return fmt.Errorf("sync %s for user %d failed: %s",
				task.Provider, task.UserID, result.Errors[0])
		}

		log.Printf("[TASK] Synced %s for user %d: exported=%d imported=%d conflicts=%d",
			task.Provider, task.UserID, result.Exported, result.Imported, result.Conflicts)
		return nil
	}
}

// NewSyncConnectionQueue creates the backlite queue for sync tasks.
func NewSyncConnectionQueue(runner SyncRunner) backlite.Queue {
	return backlite.NewQueue(SyncConnectionProcessor(runner))
}
