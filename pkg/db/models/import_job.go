package models

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"

	"github.com/mkellerhals/sourcelane-backend/pkg/enums"
)

// ImportJob is the addressable record of one async supplier extraction run.
// Created on submission, mutated by the pipeline as it advances, read by
// polling clients. Terminal states are sticky.
type ImportJob struct {
	ID          uuid.UUID             `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	OwnerID     uuid.UUID             `gorm:"column:owner_id;type:uuid;not null;index"`
	SupplierURL string                `gorm:"column:supplier_url;not null"`
	CategoryID  *uuid.UUID            `gorm:"column:category_id;type:uuid"`
	Status      enums.ImportJobStatus `gorm:"column:status;type:text;not null;default:'pending'"`
	Progress    int                   `gorm:"column:progress;not null;default:0"`
	Step        string                `gorm:"column:step;not null;default:''"`
	Result      json.RawMessage       `gorm:"column:result;type:jsonb"`
	Error       *string               `gorm:"column:error"`
	CreatedAt   time.Time             `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt   time.Time             `gorm:"column:updated_at;autoUpdateTime"`
}
