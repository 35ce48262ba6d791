// Package connections provides database operations for provider connections
// and their per-data-type sync configurations.
//
// # Usage
//
//	repo := connections.NewRepository(db)
//	conn, err := repo.Connect(userID, entities.ProviderCronometer, authData)
package connections

import (
	"time"

	"gorm.io/gorm"

	"github.com/JustinD79/diaguard/internal/entities"
)

// AuthData carries the (already encrypted) credentials stored on connect.
type AuthData struct {
	AccessToken  string
	RefreshToken string
	TokenExpiry  *time.Time
}

// Repository handles all connection and sync configuration database operations.
type Repository struct {
	db *gorm.DB
}

// NewRepository creates a new connections repository.
func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

// Connect upserts a connection for (user, provider), reactivating a
// previously disconnected one, and ensures a default sync configuration
// exists. Calling it twice updates rather than duplicates.
func (r *Repository) Connect(userID uint, provider entities.Provider, auth AuthData) (*entities.ProviderConnection, error) {
	var conn entities.ProviderConnection
	result := r.db.Where("user_id = ? AND provider = ?", userID, provider).First(&conn)

	if result.Error == gorm.ErrRecordNotFound {
		conn = entities.ProviderConnection{
			UserID:       userID,
			Provider:     provider,
			IsActive:     true,
			AccessToken:  auth.AccessToken,
			RefreshToken: auth.RefreshToken,
			TokenExpiry:  auth.TokenExpiry,
		}
		if err := r.db.Create(&conn).Error; err != nil {
			return nil, err
		}
	} else if result.Error != nil {
		return nil, result.Error
	} else {
		conn.IsActive = true
		conn.AccessToken = auth.AccessToken
		conn.RefreshToken = auth.RefreshToken
		conn.TokenExpiry = auth.TokenExpiry
		conn.ErrorCount = 0
		conn.LastError = ""
		if err := r.db.Save(&conn).Error; err != nil {
			return nil, err
		}
	}

	if err := r.ensureDefaultConfig(conn.ID); err != nil {
		return nil, err
	}

	return &conn, nil
}

// Disconnect deactivates the connection and clears its tokens.
// Historical exported/imported/conflict/history rows are kept as audit trail.
func (r *Repository) Disconnect(userID uint, provider entities.Provider) error {
	return r.db.Model(&entities.ProviderConnection{}).
		Where("user_id = ? AND provider = ?", userID, provider).
		Updates(map[string]any{
			"is_active":     false,
			"access_token":  "",
			"refresh_token": "",
			"token_expiry":  nil,
		}).Error
}

// GetActive returns the active connection for (user, provider).
func (r *Repository) GetActive(userID uint, provider entities.Provider) (*entities.ProviderConnection, error) {
	var conn entities.ProviderConnection
	err := r.db.Where("user_id = ? AND provider = ? AND is_active = ?", userID, provider, true).First(&conn).Error
	if err != nil {
		return nil, err
	}
	return &conn, nil
}

// GetByID returns a connection by primary key regardless of active state.
func (r *Repository) GetByID(id uint) (*entities.ProviderConnection, error) {
	var conn entities.ProviderConnection
	err := r.db.First(&conn, id).Error
	if err != nil {
		return nil, err
	}
	return &conn, nil
}

// ListForUser returns all connections (active and inactive) for a user.
func (r *Repository) ListForUser(userID uint) ([]entities.ProviderConnection, error) {
	var conns []entities.ProviderConnection
	err := r.db.Where("user_id = ?", userID).Order("provider ASC").Find(&conns).Error
	return conns, err
}

// ListActive returns all active connections across users, for the scheduler.
func (r *Repository) ListActive() ([]entities.ProviderConnection, error) {
	var conns []entities.ProviderConnection
	err := r.db.Where("is_active = ?", true).Find(&conns).Error
	return conns, err
}

// TouchLastSync advances the connection's sync watermark.
func (r *Repository) TouchLastSync(connectionID uint, at time.Time) error {
	return r.db.Model(&entities.ProviderConnection{}).
		Where("id = ?", connectionID).
		Update("last_sync_at", at).Error
}

// RecordError increments the connection's error counter and stores the
// last error message.
func (r *Repository) RecordError(connectionID uint, message string) error {
	return r.db.Model(&entities.ProviderConnection{}).
		Where("id = ?", connectionID).
		Updates(map[string]any{
			"error_count": gorm.Expr("error_count + 1"),
			"last_error":  message,
		}).Error
}

// GetConfig returns the sync configuration for a connection and data type.
func (r *Repository) GetConfig(connectionID uint, dataType string) (*entities.SyncConfig, error) {
	var cfg entities.SyncConfig
	err := r.db.Where("connection_id = ? AND data_type = ?", connectionID, dataType).First(&cfg).Error
	if err != nil {
		return nil, err
	}
	return &cfg, nil
}

// ConfigUpdate holds the mutable sync settings. Nil fields are left unchanged.
type ConfigUpdate struct {
	Direction          *entities.SyncDirection
	Enabled            *bool
	FrequencyMinutes   *int
	ConflictResolution *entities.ConflictPolicy
}

// UpdateConfig mutates the nutrition sync settings for a connection.
func (r *Repository) UpdateConfig(connectionID uint, dataType string, update ConfigUpdate) (*entities.SyncConfig, error) {
	cfg, err := r.GetConfig(connectionID, dataType)
	if err != nil {
		return nil, err
	}

	if update.Direction != nil {
		cfg.Direction = *update.Direction
	}
	if update.Enabled != nil {
		cfg.Enabled = *update.Enabled
	}
	if update.FrequencyMinutes != nil {
		cfg.FrequencyMinutes = *update.FrequencyMinutes
	}
	if update.ConflictResolution != nil {
		cfg.ConflictResolution = *update.ConflictResolution
	}

	if err := r.db.Save(cfg).Error; err != nil {
		return nil, err
	}
	return cfg, nil
}

// ListEnabledConfigs returns all enabled sync configurations joined with
// their active connections, for the scheduler's due-connection scan.
func (r *Repository) ListEnabledConfigs(dataType string) ([]entities.SyncConfig, error) {
	var configs []entities.SyncConfig
	err := r.db.
		Joins("JOIN health_app_connections ON health_app_connections.id = sync_configurations.connection_id").
		Where("sync_configurations.data_type = ? AND sync_configurations.enabled = ? AND health_app_connections.is_active = ?",
			dataType, true, true).
		Find(&configs).Error
	return configs, err
}

func (r *Repository) ensureDefaultConfig(connectionID uint) error {
	var existing entities.SyncConfig
	result := r.db.Where("connection_id = ? AND data_type = ?", connectionID, entities.DataTypeNutrition).First(&existing)
	if result.Error == gorm.ErrRecordNotFound {
		cfg := entities.DefaultSyncConfig(connectionID)
		return r.db.Create(&cfg).Error
	}
	return result.Error
}
