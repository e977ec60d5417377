// Package payloads holds the typed event bodies stored inside outbox
// envelopes. Every event published to Pub/Sub decodes into one of these.
package payloads

import (
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/mkellerhals/sourcelane-backend/pkg/enums"
)

// ImportCompletedEvent announces a finished supplier import job.
type ImportCompletedEvent struct {
	JobID       uuid.UUID `json:"jobId"`
	OwnerID     uuid.UUID `json:"ownerId"`
	SupplierURL string    `json:"supplierUrl"`
	ProductID   uuid.UUID `json:"productId,omitempty"`
	ProductSlug string    `json:"productSlug,omitempty"`
}

// ImportFailedEvent announces a supplier import job that ended in failure.
type ImportFailedEvent struct {
	JobID   uuid.UUID `json:"jobId"`
	OwnerID uuid.UUID `json:"ownerId"`
	Error   string    `json:"error"`
}

// DropshipOrderCreatedEvent announces a new supplier re-purchase order.
type DropshipOrderCreatedEvent struct {
	OrderID      uuid.UUID       `json:"orderId"`
	StoreOrderID uuid.UUID       `json:"storeOrderId"`
	SupplierName string          `json:"supplierName"`
	ItemCount    int             `json:"itemCount"`
	TotalCost    decimal.Decimal `json:"totalCost"`
	Currency     enums.Currency  `json:"currency"`
}

// DropshipOrderPlacedEvent records the supplier-side order reference.
type DropshipOrderPlacedEvent struct {
	OrderID         uuid.UUID `json:"orderId"`
	StoreOrderID    uuid.UUID `json:"storeOrderId"`
	SupplierOrderID string    `json:"supplierOrderId"`
}

// DropshipOrderShippedEvent carries everything the shipping notification
// needs.
type DropshipOrderShippedEvent struct {
	OrderID        uuid.UUID `json:"orderId"`
	StoreOrderID   uuid.UUID `json:"storeOrderId"`
	CustomerName   string    `json:"customerName"`
	CustomerEmail  string    `json:"customerEmail"`
	TrackingNumber string    `json:"trackingNumber"`
	Carrier        *string   `json:"carrier,omitempty"`
	TrackingURL    *string   `json:"trackingUrl,omitempty"`
}

// DropshipOrderDeliveredEvent carries everything the delivery notification
// needs.
type DropshipOrderDeliveredEvent struct {
	OrderID       uuid.UUID `json:"orderId"`
	StoreOrderID  uuid.UUID `json:"storeOrderId"`
	CustomerName  string    `json:"customerName"`
	CustomerEmail string    `json:"customerEmail"`
}

// DropshipOrderIssueEvent routes a fulfillment problem to the operator
// channel.
type DropshipOrderIssueEvent struct {
	OrderID      uuid.UUID `json:"orderId"`
	StoreOrderID uuid.UUID `json:"storeOrderId"`
	Issue        string    `json:"issue"`
}

// DropshipOrderStatusChangedEvent records a generic status transition.
type DropshipOrderStatusChangedEvent struct {
	OrderID uuid.UUID                 `json:"orderId"`
	From    enums.DropshipOrderStatus `json:"from"`
	To      enums.DropshipOrderStatus `json:"to"`
}
