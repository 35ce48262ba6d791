// Package meals provides database operations for the local meal log.
package meals

import (
	"time"

	"gorm.io/gorm"

	"github.com/JustinD79/diaguard/internal/entities"
)

// Repository handles all meal log database operations.
type Repository struct {
	db *gorm.DB
}

// NewRepository creates a new meals repository.
func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

// Create persists a new meal log entry.
func (r *Repository) Create(meal *entities.MealLog) error {
	return r.db.Create(meal).Error
}

// GetByID returns one meal log entry.
func (r *Repository) GetByID(id uint) (*entities.MealLog, error) {
	var meal entities.MealLog
	err := r.db.First(&meal, id).Error
	if err != nil {
		return nil, err
	}
	return &meal, nil
}

// ListInWindow returns a user's meals consumed within [start, end],
// oldest first.
func (r *Repository) ListInWindow(userID uint, start, end time.Time) ([]entities.MealLog, error) {
	var logs []entities.MealLog
	err := r.db.
		Where("user_id = ? AND consumed_at >= ? AND consumed_at <= ?", userID, start, end).
		Order("consumed_at ASC").
		Find(&logs).Error
	return logs, err
}

// ListForUser returns a user's meals, newest first, with an optional limit.
func (r *Repository) ListForUser(userID uint, limit int) ([]entities.MealLog, error) {
	query := r.db.Where("user_id = ?", userID).Order("consumed_at DESC")
	if limit > 0 {
		query = query.Limit(limit)
	}
	var logs []entities.MealLog
	err := query.Find(&logs).Error
	return logs, err
}

// FindNearby returns a user's meals whose consumed_at lies within the given
// window around ts. Used by conflict detection to find a local meal that
// plausibly matches an incoming external record.
func (r *Repository) FindNearby(userID uint, ts time.Time, window time.Duration) ([]entities.MealLog, error) {
	var logs []entities.MealLog
	err := r.db.
		Where("user_id = ? AND consumed_at >= ? AND consumed_at <= ?",
			userID, ts.Add(-window), ts.Add(window)).
		Find(&logs).Error
	return logs, err
}

// Update saves changes to an existing meal log entry.
func (r *Repository) Update(meal *entities.MealLog) error {
	return r.db.Save(meal).Error
}

// Delete removes a meal log entry.
func (r *Repository) Delete(id uint) error {
	return r.db.Delete(&entities.MealLog{}, id).Error
}
