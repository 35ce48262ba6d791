package entities

import (
	"time"
)

type ConflictType string

const (
	// ConflictTypeDuplicateMeal means an imported record plausibly describes
	// the same real-world meal as an existing local log entry.
	ConflictTypeDuplicateMeal ConflictType = "duplicate_meal"
)

// Resolution is the manual choice applied to a pending conflict.
type Resolution string

const (
	ResolutionUseLocal    Resolution = "use_local"
	ResolutionUseExternal Resolution = "use_external"
	ResolutionMerge       Resolution = "merge"
)

// IsValid reports whether r is a supported resolution choice.
func (r Resolution) IsValid() bool {
	switch r {
	case ResolutionUseLocal, ResolutionUseExternal, ResolutionMerge:
		return true
	}
	return false
}

// SyncConflict holds a local/external record pair pending manual resolution.
// The external record is neither imported nor applied while the conflict is
// open; LocalData and ExternalData are JSON-encoded NutritionEntry snapshots.
type SyncConflict struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	UserID        uint         `gorm:"not null;index" json:"user_id"`
	ConnectionID  uint         `gorm:"not null;index" json:"connection_id"`
	SyncHistoryID uint         `json:"sync_history_id"`
	LocalRecordID uint         `json:"local_record_id"`

	// ExternalRecordID lets later passes find the open conflict for an
	// external record instead of raising it again.
	ExternalRecordID string `gorm:"size:255;index" json:"external_record_id,omitempty"`
	DataType      string       `gorm:"size:50" json:"data_type"`
	LocalData     string       `gorm:"type:text" json:"local_data"`
	ExternalData  string       `gorm:"type:text" json:"external_data"`
	ConflictType  ConflictType `gorm:"size:50" json:"conflict_type"`

	IsResolved     bool       `gorm:"index" json:"is_resolved"`
	ResolvedBy     string     `gorm:"size:100" json:"resolved_by,omitempty"`
	ResolutionData string     `gorm:"type:text" json:"resolution_data,omitempty"`
	ResolvedAt     *time.Time `json:"resolved_at,omitempty"`
}

func (SyncConflict) TableName() string {
	return "health_sync_conflicts"
}
