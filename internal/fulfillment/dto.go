package fulfillment

import (
	"github.com/mkellerhals/sourcelane-backend/pkg/db/models"
	"github.com/mkellerhals/sourcelane-backend/pkg/enums"
	"github.com/mkellerhals/sourcelane-backend/pkg/pagination"
)

// TrackingInput carries operator-supplied shipment data.
type TrackingInput struct {
	TrackingNumber string  `json:"trackingNumber" validate:"required"`
	Carrier        *string `json:"carrier,omitempty"`
	TrackingURL    *string `json:"trackingUrl,omitempty"`
}

// ListQuery is the raw list request coming from the API layer.
type ListQuery struct {
	Status string
	Limit  int
	Cursor string
}

// ListParams filters and pages the dropship order list.
type ListParams struct {
	Status *enums.DropshipOrderStatus
	Limit  int
	Cursor *pagination.Cursor
}

// OrderList wraps one page of dropship orders.
type OrderList struct {
	Items  []models.DropshipOrder `json:"items"`
	Cursor string                 `json:"cursor"`
}
