package entities

import (
	"time"
)

type SyncType string

const (
	SyncTypeManual    SyncType = "manual"
	SyncTypeScheduled SyncType = "scheduled"
	SyncTypeSingle    SyncType = "single_record"
)

type HistoryStatus string

const (
	HistoryStatusInProgress HistoryStatus = "in_progress"
	HistoryStatusCompleted  HistoryStatus = "completed"
	HistoryStatusPartial    HistoryStatus = "partial"
	HistoryStatusFailed     HistoryStatus = "failed"
)

// SyncHistory is one append-only audit entry per sync invocation.
// Opened in_progress before any data moves; closed completed when no
// errors occurred, partial when some records succeeded, failed when none did.
type SyncHistory struct {
	ID uint `gorm:"primaryKey" json:"id"`

	UserID       uint          `gorm:"not null;index" json:"user_id"`
	ConnectionID uint          `gorm:"not null;index" json:"connection_id"`
	SyncType     SyncType      `gorm:"size:20" json:"sync_type"`
	Direction    string        `gorm:"size:20" json:"direction"`
	DataType     string        `gorm:"size:50" json:"data_type"`
	Status       HistoryStatus `gorm:"size:20" json:"status"`

	StartedAt   time.Time  `json:"started_at"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`

	RecordsProcessed int `json:"records_processed"`
	RecordsSucceeded int `json:"records_succeeded"`
}

func (SyncHistory) TableName() string {
	return "health_sync_history"
}
