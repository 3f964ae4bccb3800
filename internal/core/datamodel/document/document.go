package document

import (
	"time"

	"gorm.io/datatypes"
)

// Document is one key/value row of the postgres-backed store.
type Document struct {
	Key       string         `gorm:"column:key;primaryKey"`
	Value     datatypes.JSON `gorm:"column:value;not null"`
	UpdatedAt time.Time      `gorm:"column:updated_at;not null"`
}

// TableName returns the table name for GORM
func (Document) TableName() string {
	return "kv_documents"
}
