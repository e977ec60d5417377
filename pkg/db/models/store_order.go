package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/mkellerhals/sourcelane-backend/pkg/enums"
	"github.com/mkellerhals/sourcelane-backend/pkg/types"
)

// StoreOrder is the storefront order a dropship order is derived from. Cart,
// checkout and payment capture live elsewhere; fulfillment only reads contact
// data and advances shipping state.
type StoreOrder struct {
	ID              uuid.UUID              `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	OrderNumber     int64                  `gorm:"column:order_number;not null;uniqueIndex"`
	Status          enums.StoreOrderStatus `gorm:"column:status;type:text;not null;default:'paid'"`
	CustomerName    string                 `gorm:"column:customer_name;not null"`
	CustomerEmail   string                 `gorm:"column:customer_email;not null"`
	CustomerPhone   *string                `gorm:"column:customer_phone"`
	ShippingAddress *types.Address         `gorm:"column:shipping_address;type:jsonb;serializer:json"`
	ShippedAt       *time.Time             `gorm:"column:shipped_at"`
	DeliveredAt     *time.Time             `gorm:"column:delivered_at"`
	Items           []StoreOrderItem       `gorm:"foreignKey:OrderID;constraint:OnDelete:CASCADE"`
	Shipment        *Shipment              `gorm:"foreignKey:OrderID;constraint:OnDelete:CASCADE"`
	CreatedAt       time.Time              `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt       time.Time              `gorm:"column:updated_at;autoUpdateTime"`
}

// StoreOrderItem is one purchased line of a store order.
type StoreOrderItem struct {
	ID          uuid.UUID       `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	OrderID     uuid.UUID       `gorm:"column:order_id;type:uuid;not null"`
	ProductID   *uuid.UUID      `gorm:"column:product_id;type:uuid"`
	ProductSlug string          `gorm:"column:product_slug;not null"`
	SKU         *string         `gorm:"column:sku"`
	Title       string          `gorm:"column:title;not null"`
	Qty         int             `gorm:"column:qty;not null"`
	UnitPrice   decimal.Decimal `gorm:"column:unit_price;type:numeric(12,2);not null"`
	CreatedAt   time.Time       `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt   time.Time       `gorm:"column:updated_at;autoUpdateTime"`
}

// Shipment is the shipping record shared by the store order and its dropship
// order; tracking updates land here once and are read by both sides.
type Shipment struct {
	ID             uuid.UUID  `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	OrderID        uuid.UUID  `gorm:"column:order_id;type:uuid;not null;uniqueIndex"`
	TrackingNumber *string    `gorm:"column:tracking_number"`
	Carrier        *string    `gorm:"column:carrier"`
	TrackingURL    *string    `gorm:"column:tracking_url"`
	ShippedAt      *time.Time `gorm:"column:shipped_at"`
	DeliveredAt    *time.Time `gorm:"column:delivered_at"`
	CreatedAt      time.Time  `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt      time.Time  `gorm:"column:updated_at;autoUpdateTime"`
}
