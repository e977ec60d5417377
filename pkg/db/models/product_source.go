package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/mkellerhals/sourcelane-backend/pkg/enums"
)

// ProductSource links a catalog product to its supplier origin. Created once
// at import time; only a re-import may update it.
type ProductSource struct {
	ID                uuid.UUID         `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	ProductID         uuid.UUID         `gorm:"column:product_id;type:uuid;not null"`
	ProductSlug       string            `gorm:"column:product_slug;not null;index"`
	SupplierName      string            `gorm:"column:supplier_name;not null"`
	SupplierProductID string            `gorm:"column:supplier_product_id;not null;uniqueIndex:ux_product_sources_supplier_product"`
	SupplierURL       string            `gorm:"column:supplier_url;not null"`
	SupplierSKU       *string           `gorm:"column:supplier_sku"`
	VariantSKUMap     map[string]string `gorm:"column:variant_sku_map;type:jsonb;serializer:json"`
	OriginalPrice     decimal.Decimal   `gorm:"column:original_price;type:numeric(12,2);not null"`
	OriginalCurrency  enums.Currency    `gorm:"column:original_currency;type:text;not null;default:'USD'"`
	CreatedAt         time.Time         `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt         time.Time         `gorm:"column:updated_at;autoUpdateTime"`
}
