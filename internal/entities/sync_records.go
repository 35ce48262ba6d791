package entities

import (
	"time"
)

type RecordStatus string

const (
	RecordStatusConfirmed RecordStatus = "confirmed"
	RecordStatusPending   RecordStatus = "pending"
)

// ExportedRecord marks one local meal as already sent to one provider.
// The unique index on (connection_id, local_record_id) is what makes
// exports idempotent: a second sync pass inserts nothing.
type ExportedRecord struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	CreatedAt time.Time `json:"created_at"`

	LocalRecordID    uint         `gorm:"not null;uniqueIndex:idx_export_conn_local" json:"local_record_id"`
	ConnectionID     uint         `gorm:"not null;uniqueIndex:idx_export_conn_local" json:"connection_id"`
	SyncHistoryID    uint         `gorm:"index" json:"sync_history_id"`
	ExternalRecordID string       `gorm:"size:255" json:"external_record_id"`
	ExportedData     string       `gorm:"type:text" json:"exported_data,omitempty"`
	Status           RecordStatus `gorm:"size:20;default:confirmed" json:"status"`
	ExportedAt       time.Time    `json:"exported_at"`
}

func (ExportedRecord) TableName() string {
	return "exported_health_data"
}

// ImportedRecord marks one provider record as already pulled through one
// connection. Idempotence key: (connection_id, external_record_id, data_type).
type ImportedRecord struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	CreatedAt time.Time `json:"created_at"`

	ExternalRecordID string       `gorm:"size:255;not null;uniqueIndex:idx_import_conn_ext" json:"external_record_id"`
	ConnectionID     uint         `gorm:"not null;uniqueIndex:idx_import_conn_ext" json:"connection_id"`
	DataType         string       `gorm:"size:50;not null;uniqueIndex:idx_import_conn_ext" json:"data_type"`
	SyncHistoryID    uint         `gorm:"index" json:"sync_history_id"`
	LocalRecordID    uint         `json:"local_record_id"`
	ImportedData     string       `gorm:"type:text" json:"imported_data,omitempty"`
	Status           RecordStatus `gorm:"size:20;default:confirmed" json:"status"`
	ImportedAt       time.Time    `json:"imported_at"`
}

func (ImportedRecord) TableName() string {
	return "imported_health_data"
}
