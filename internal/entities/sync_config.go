package entities

import (
	"time"
)

type SyncDirection string

const (
	SyncDirectionExportOnly    SyncDirection = "export_only"
	SyncDirectionImportOnly    SyncDirection = "import_only"
	SyncDirectionBidirectional SyncDirection = "bidirectional"
)

type ConflictPolicy string

const (
	ConflictPolicyNewestWins   ConflictPolicy = "newest_wins"
	ConflictPolicyExternalWins ConflictPolicy = "external_wins"
	ConflictPolicyLocalWins    ConflictPolicy = "local_wins"
	ConflictPolicyManual       ConflictPolicy = "manual"
)

// DataTypeNutrition is the only data type the sync service currently moves.
const DataTypeNutrition = "nutrition"

// SyncConfig holds per-connection, per-data-type sync settings.
// One row exists per (connection, data type), created with defaults when
// the connection is first established.
type SyncConfig struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	ConnectionID       uint           `gorm:"not null;uniqueIndex:idx_connection_datatype" json:"connection_id"`
	DataType           string         `gorm:"size:50;not null;uniqueIndex:idx_connection_datatype" json:"data_type"`
	Direction          SyncDirection  `gorm:"size:20" json:"direction"`
	Enabled            bool           `json:"enabled"`
	FrequencyMinutes   int            `json:"frequency_minutes"`
	ConflictResolution ConflictPolicy `gorm:"size:20" json:"conflict_resolution"`
}

func (SyncConfig) TableName() string {
	return "sync_configurations"
}

// DefaultSyncConfig returns the settings applied when a provider is connected.
func DefaultSyncConfig(connectionID uint) SyncConfig {
	return SyncConfig{
		ConnectionID:       connectionID,
		DataType:           DataTypeNutrition,
		Direction:          SyncDirectionBidirectional,
		Enabled:            true,
		FrequencyMinutes:   60,
		ConflictResolution: ConflictPolicyNewestWins,
	}
}

// AllowsExport reports whether local records may be sent to the provider.
func (c *SyncConfig) AllowsExport() bool {
	return c.Direction == SyncDirectionExportOnly || c.Direction == SyncDirectionBidirectional
}

// AllowsImport reports whether provider records may be pulled locally.
func (c *SyncConfig) AllowsImport() bool {
	return c.Direction == SyncDirectionImportOnly || c.Direction == SyncDirectionBidirectional
}
