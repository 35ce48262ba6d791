// Package syncrecords provides database operations for the exported/imported
// record markers that make sync passes idempotent.
//
// Both marker tables carry a unique composite index, and inserts use
// ON CONFLICT DO NOTHING, so a duplicate marker is never created even when
// two sync passes race between the existence check and the write.
package syncrecords

import (
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/JustinD79/diaguard/internal/entities"
)

// Repository handles exported and imported record marker operations.
type Repository struct {
	db *gorm.DB
}

// NewRepository creates a new sync records repository.
func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

// HasExported reports whether a local record already has an export marker
// for the given connection.
func (r *Repository) HasExported(connectionID, localRecordID uint) (bool, error) {
	var count int64
	err := r.db.Model(&entities.ExportedRecord{}).
		Where("connection_id = ? AND local_record_id = ?", connectionID, localRecordID).
		Count(&count).Error
	return count > 0, err
}

// MarkExported inserts an export marker. Returns false without error when a
// marker for (connection, local record) already exists.
func (r *Repository) MarkExported(record *entities.ExportedRecord) (bool, error) {
	result := r.db.Clauses(clause.OnConflict{DoNothing: true}).Create(record)
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}

// HasImported reports whether an external record already has an import marker
// for the given connection and data type.
func (r *Repository) HasImported(connectionID uint, externalRecordID, dataType string) (bool, error) {
	var count int64
	err := r.db.Model(&entities.ImportedRecord{}).
		Where("connection_id = ? AND external_record_id = ? AND data_type = ?",
			connectionID, externalRecordID, dataType).
		Count(&count).Error
	return count > 0, err
}

// MarkImported inserts an import marker. Returns false without error when a
// marker for (connection, external record, data type) already exists.
func (r *Repository) MarkImported(record *entities.ImportedRecord) (bool, error) {
	result := r.db.Clauses(clause.OnConflict{DoNothing: true}).Create(record)
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}

// CountExported returns the number of export markers for a connection.
func (r *Repository) CountExported(connectionID uint) (int64, error) {
	var count int64
	err := r.db.Model(&entities.ExportedRecord{}).
		Where("connection_id = ?", connectionID).Count(&count).Error
	return count, err
}

// CountImported returns the number of import markers for a connection.
func (r *Repository) CountImported(connectionID uint) (int64, error) {
	var count int64
	err := r.db.Model(&entities.ImportedRecord{}).
		Where("connection_id = ?", connectionID).Count(&count).Error
	return count, err
}
