package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Product is the minimal catalog listing created by a supplier import. The
// storefront owns the rest of the merchandising surface.
type Product struct {
	ID          uuid.UUID        `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	Slug        string           `gorm:"column:slug;not null;uniqueIndex"`
	Title       string           `gorm:"column:title;not null"`
	Description *string          `gorm:"column:description"`
	CategoryID  *uuid.UUID       `gorm:"column:category_id;type:uuid"`
	Price       decimal.Decimal  `gorm:"column:price;type:numeric(12,2);not null"`
	Currency    string           `gorm:"column:currency;not null;default:'USD'"`
	Stock       *int             `gorm:"column:stock"`
	IsActive    bool             `gorm:"column:is_active;not null;default:true"`
	Variants    []ProductVariant `gorm:"foreignKey:ProductID;constraint:OnDelete:CASCADE"`
	CreatedAt   time.Time        `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt   time.Time        `gorm:"column:updated_at;autoUpdateTime"`
}

// ProductVariant is one sellable option of a catalog product.
type ProductVariant struct {
	ID         uuid.UUID         `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	ProductID  uuid.UUID         `gorm:"column:product_id;type:uuid;not null"`
	SKU        string            `gorm:"column:sku;not null;uniqueIndex"`
	Attributes map[string]string `gorm:"column:attributes;type:jsonb;serializer:json"`
	Price      decimal.Decimal   `gorm:"column:price;type:numeric(12,2);not null"`
	Stock      *int              `gorm:"column:stock"`
	CreatedAt  time.Time         `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt  time.Time         `gorm:"column:updated_at;autoUpdateTime"`
}
