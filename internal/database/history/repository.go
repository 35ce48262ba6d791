// Package history provides database operations for the append-only sync
// history log.
package history

import (
	"time"

	"gorm.io/gorm"

	"github.com/JustinD79/diaguard/internal/entities"
)

// Repository handles all sync history database operations.
type Repository struct {
	db *gorm.DB
}

// NewRepository creates a new history repository.
func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

// Open creates an in_progress history entry before any data movement, so
// partial failures are always recorded.
func (r *Repository) Open(userID, connectionID uint, syncType entities.SyncType, direction string) (*entities.SyncHistory, error) {
	entry := &entities.SyncHistory{
		UserID:       userID,
		ConnectionID: connectionID,
		SyncType:     syncType,
		Direction:    direction,
		DataType:     entities.DataTypeNutrition,
		Status:       entities.HistoryStatusInProgress,
		StartedAt:    time.Now(),
	}
	if err := r.db.Create(entry).Error; err != nil {
		return nil, err
	}
	return entry, nil
}

// Close finalizes a history entry with its terminal status and counters.
func (r *Repository) Close(id uint, status entities.HistoryStatus, processed, succeeded int) error {
	now := time.Now()
	return r.db.Model(&entities.SyncHistory{}).
		Where("id = ?", id).
		Updates(map[string]any{
			"status":            status,
			"completed_at":      now,
			"records_processed": processed,
			"records_succeeded": succeeded,
		}).Error
}

// GetByID returns a history entry by primary key.
func (r *Repository) GetByID(id uint) (*entities.SyncHistory, error) {
	var entry entities.SyncHistory
	err := r.db.First(&entry, id).Error
	if err != nil {
		return nil, err
	}
	return &entry, nil
}

// ListRecent returns a user's most recent history entries, optionally
// filtered to one provider's connections.
func (r *Repository) ListRecent(userID uint, provider *entities.Provider, limit int) ([]entities.SyncHistory, error) {
	query := r.db.Model(&entities.SyncHistory{}).
		Where("health_sync_history.user_id = ?", userID).
		Order("health_sync_history.started_at DESC")

	if provider != nil {
		query = query.
			Joins("JOIN health_app_connections ON health_app_connections.id = health_sync_history.connection_id").
			Where("health_app_connections.provider = ?", *provider)
	}
	if limit > 0 {
		query = query.Limit(limit)
	}

	var entries []entities.SyncHistory
	err := query.Find(&entries).Error
	return entries, err
}
