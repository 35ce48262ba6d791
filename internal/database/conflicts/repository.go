// Package conflicts provides database operations for pending sync conflicts.
package conflicts

import (
	"time"

	"gorm.io/gorm"

	"github.com/JustinD79/diaguard/internal/entities"
)

// Repository handles all sync conflict database operations.
type Repository struct {
	db *gorm.DB
}

// NewRepository creates a new conflicts repository.
func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

// Create records a new unresolved conflict.
func (r *Repository) Create(conflict *entities.SyncConflict) error {
	return r.db.Create(conflict).Error
}

// GetByID returns a conflict by primary key.
func (r *Repository) GetByID(id uint) (*entities.SyncConflict, error) {
	var conflict entities.SyncConflict
	err := r.db.First(&conflict, id).Error
	if err != nil {
		return nil, err
	}
	return &conflict, nil
}

// PendingConflict is a conflict joined with its connection's provider name
// for display.
type PendingConflict struct {
	entities.SyncConflict
	Provider entities.Provider `json:"provider"`
}

// ListPending returns all unresolved conflicts for a user, newest first,
// each joined with the provider it came from.
func (r *Repository) ListPending(userID uint) ([]PendingConflict, error) {
	var pending []PendingConflict
	err := r.db.Model(&entities.SyncConflict{}).
		Select("health_sync_conflicts.*, health_app_connections.provider AS provider").
		Joins("JOIN health_app_connections ON health_app_connections.id = health_sync_conflicts.connection_id").
		Where("health_sync_conflicts.user_id = ? AND health_sync_conflicts.is_resolved = ?", userID, false).
		Order("health_sync_conflicts.created_at DESC").
		Scan(&pending).Error
	return pending, err
}

// Resolve marks a conflict resolved and stores who resolved it and the
// resolution payload. It does not touch the meal log; applying the
// resolved data is the caller's responsibility.
func (r *Repository) Resolve(id uint, resolvedBy, resolutionData string) error {
	now := time.Now()
	return r.db.Model(&entities.SyncConflict{}).
		Where("id = ?", id).
		Updates(map[string]any{
			"is_resolved":     true,
			"resolved_by":     resolvedBy,
			"resolution_data": resolutionData,
			"resolved_at":     now,
		}).Error
}

// PendingExists reports whether an unresolved conflict already references
// the external record on this connection.
func (r *Repository) PendingExists(connectionID uint, externalRecordID string) (bool, error) {
	var count int64
	err := r.db.Model(&entities.SyncConflict{}).
		Where("connection_id = ? AND external_record_id = ? AND is_resolved = ?",
			connectionID, externalRecordID, false).
		Count(&count).Error
	return count > 0, err
}

// CountPending returns the number of unresolved conflicts for a user.
func (r *Repository) CountPending(userID uint) (int64, error) {
	var count int64
	err := r.db.Model(&entities.SyncConflict{}).
		Where("user_id = ? AND is_resolved = ?", userID, false).
		Count(&count).Error
	return count, err
}
