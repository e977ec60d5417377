package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/mkellerhals/sourcelane-backend/pkg/enums"
	"github.com/mkellerhals/sourcelane-backend/pkg/types"
)

// DropshipOrder tracks the re-purchase of a store order's sourced items from
// the supplier. One row per store order that contains at least one sourced
// item; rows are never deleted, terminal states are final.
type DropshipOrder struct {
	ID              uuid.UUID                 `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	StoreOrderID    uuid.UUID                 `gorm:"column:store_order_id;type:uuid;not null;uniqueIndex"`
	Status          enums.DropshipOrderStatus `gorm:"column:status;type:text;not null;default:'pending'"`
	SupplierName    string                    `gorm:"column:supplier_name;not null"`
	SupplierOrderID *string                   `gorm:"column:supplier_order_id"`
	CustomerName    string                    `gorm:"column:customer_name;not null"`
	CustomerEmail   string                    `gorm:"column:customer_email;not null"`
	CustomerPhone   *string                   `gorm:"column:customer_phone"`
	ShippingAddress *types.Address            `gorm:"column:shipping_address;type:jsonb;serializer:json"`
	TrackingNumber  *string                   `gorm:"column:tracking_number"`
	Carrier         *string                   `gorm:"column:carrier"`
	TrackingURL     *string                   `gorm:"column:tracking_url"`
	ItemsCost       decimal.Decimal           `gorm:"column:items_cost;type:numeric(12,2);not null"`
	ShippingCost    decimal.Decimal           `gorm:"column:shipping_cost;type:numeric(12,2);not null"`
	TotalCost       decimal.Decimal           `gorm:"column:total_cost;type:numeric(12,2);not null"`
	Currency        enums.Currency            `gorm:"column:currency;type:text;not null;default:'USD'"`
	IssueNotes      *string                   `gorm:"column:issue_notes"`
	PlacedAt        *time.Time                `gorm:"column:placed_at"`
	ShippedAt       *time.Time                `gorm:"column:shipped_at"`
	DeliveredAt     *time.Time                `gorm:"column:delivered_at"`
	Items           []DropshipOrderItem       `gorm:"foreignKey:DropshipOrderID;constraint:OnDelete:CASCADE"`
	CreatedAt       time.Time                 `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt       time.Time                 `gorm:"column:updated_at;autoUpdateTime"`
}

// DropshipOrderItem is one supplier line of a dropship order. Created in the
// same transaction as its parent and immutable afterward.
type DropshipOrderItem struct {
	ID               uuid.UUID       `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	DropshipOrderID  uuid.UUID       `gorm:"column:dropship_order_id;type:uuid;not null"`
	ProductSourceID  uuid.UUID       `gorm:"column:product_source_id;type:uuid;not null"`
	StoreOrderItemID uuid.UUID       `gorm:"column:store_order_item_id;type:uuid;not null"`
	SupplierSKU      *string         `gorm:"column:supplier_sku"`
	Qty              int             `gorm:"column:qty;not null"`
	UnitCost         decimal.Decimal `gorm:"column:unit_cost;type:numeric(12,2);not null"`
	TotalCost        decimal.Decimal `gorm:"column:total_cost;type:numeric(12,2);not null"`
	CreatedAt        time.Time       `gorm:"column:created_at;autoCreateTime"`
}
